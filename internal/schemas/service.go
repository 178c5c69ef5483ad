// Package schemas manages reusable extraction schemas: a prompt plus labeled
// examples.
package schemas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/validation"
)

// Store persists schema definitions. Create assigns schema.ID. Get, Replace
// and Delete return ErrValidation for ids the backend could never have
// issued and ErrNotFound for well-formed ids that are absent.
type Store interface {
	Create(ctx context.Context, schema *model.Schema) error
	List(ctx context.Context) ([]model.Schema, error)
	Get(ctx context.Context, id string) (*model.Schema, error)
	Replace(ctx context.Context, schema *model.Schema) error
	Delete(ctx context.Context, id string) error
}

// Service implements schema CRUD on top of a Store.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService wires a Service. A nil logger falls back to slog.Default.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// DecodeDefinition validates a JSON payload and decodes it into a Schema. Any
// id in the payload is ignored; ids come from the store or the request path.
func DecodeDefinition(data []byte) (*model.Schema, error) {
	if err := validation.SchemaDefinition(data); err != nil {
		return nil, err
	}
	var schema model.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, model.WrapError(model.ErrValidation, "decode schema", err)
	}
	schema.ID = ""
	schema.Normalize()
	return &schema, nil
}

func (s *Service) Create(ctx context.Context, schema model.Schema) (*model.Schema, error) {
	schema.ID = ""
	schema.Normalize()
	if err := s.store.Create(ctx, &schema); err != nil {
		return nil, storeError("create schema", err)
	}
	s.logger.Info("schema_created", "id", schema.ID, "examples", len(schema.Examples))
	return &schema, nil
}

func (s *Service) List(ctx context.Context) ([]model.Schema, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, storeError("list schemas", err)
	}
	if list == nil {
		list = []model.Schema{}
	}
	for i := range list {
		list[i].Normalize()
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Schema, error) {
	schema, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storeError("get schema", err)
	}
	schema.Normalize()
	return schema, nil
}

// Update replaces the whole definition stored under id. The result is the
// supplied definition carrying the path id.
func (s *Service) Update(ctx context.Context, id string, schema model.Schema) (*model.Schema, error) {
	schema.ID = id
	schema.Normalize()
	if err := s.store.Replace(ctx, &schema); err != nil {
		return nil, storeError("update schema", err)
	}
	s.logger.Info("schema_updated", "id", id, "examples", len(schema.Examples))
	return &schema, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeError("delete schema", err)
	}
	s.logger.Info("schema_deleted", "id", id)
	return nil
}

// Examples returns only the stored examples, in order.
func (s *Service) Examples(ctx context.Context, id string) ([]model.Example, error) {
	schema, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return schema.Examples, nil
}

// DeletedMessage is the confirmation body returned after a delete.
func DeletedMessage(id string) string {
	return fmt.Sprintf("Schema with ID %s deleted successfully", id)
}

func storeError(operation string, err error) error {
	if model.IsKind(err, model.ErrValidation) || model.IsKind(err, model.ErrNotFound) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return model.WrapError(model.ErrStorage, operation, err)
}
