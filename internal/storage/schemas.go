package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

// MemorySchemaStore keeps schema definitions in insertion order.
type MemorySchemaStore struct {
	mu      sync.RWMutex
	order   []string
	schemas map[string]model.Schema
}

// NewMemorySchemaStore constructs a MemorySchemaStore.
func NewMemorySchemaStore() *MemorySchemaStore {
	return &MemorySchemaStore{
		schemas: make(map[string]model.Schema),
	}
}

func (m *MemorySchemaStore) Create(ctx context.Context, schema *model.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	schema.ID = uuid.NewString()
	m.schemas[schema.ID] = cloneSchema(*schema)
	m.order = append(m.order, schema.ID)
	return nil
}

func (m *MemorySchemaStore) List(ctx context.Context) ([]model.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Schema, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, cloneSchema(m.schemas[id]))
	}
	return out, nil
}

func (m *MemorySchemaStore) Get(ctx context.Context, id string) (*model.Schema, error) {
	if err := validateSchemaID(id); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	schema, ok := m.schemas[id]
	if !ok {
		return nil, model.NotFoundf("schema %q", id)
	}
	out := cloneSchema(schema)
	return &out, nil
}

// Replace overwrites the whole definition stored under schema.ID.
func (m *MemorySchemaStore) Replace(ctx context.Context, schema *model.Schema) error {
	if err := validateSchemaID(schema.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[schema.ID]; !ok {
		return model.NotFoundf("schema %q", schema.ID)
	}
	m.schemas[schema.ID] = cloneSchema(*schema)
	return nil
}

func (m *MemorySchemaStore) Delete(ctx context.Context, id string) error {
	if err := validateSchemaID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[id]; !ok {
		return model.NotFoundf("schema %q", id)
	}
	delete(m.schemas, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func validateSchemaID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.Validationf("invalid schema id %q", id)
	}
	return nil
}

// cloneSchema deep-copies the example tree so callers cannot mutate stored
// state through shared slices or maps.
func cloneSchema(in model.Schema) model.Schema {
	out := model.Schema{ID: in.ID, Prompt: in.Prompt, Examples: make([]model.Example, len(in.Examples))}
	for i, ex := range in.Examples {
		copied := model.Example{Text: ex.Text, Extractions: make([]model.Extraction, len(ex.Extractions))}
		for j, extraction := range ex.Extractions {
			attrs := make(model.Attributes, len(extraction.Attributes))
			for k, v := range extraction.Attributes {
				if v.Kind == model.AttributeList {
					v.List = append([]string{}, v.List...)
				}
				attrs[k] = v
			}
			extraction.Attributes = attrs
			copied.Extractions[j] = extraction
		}
		out.Examples[i] = copied
	}
	return out
}
