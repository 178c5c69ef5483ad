package schemas

import (
	"context"
	"errors"
	"testing"

	"github.com/dharsanguruparan/extractiq/internal/logging"
	"github.com/dharsanguruparan/extractiq/internal/model"
	"github.com/dharsanguruparan/extractiq/internal/storage"
)

func newTestService() *Service {
	return NewService(storage.NewMemorySchemaStore(), logging.Discard())
}

func example(text string) model.Example {
	return model.Example{
		Text: text,
		Extractions: []model.Extraction{{
			Class:      "entity",
			Text:       text,
			Attributes: model.Attributes{"source": model.StringAttribute(text)},
		}},
	}
}

func TestCreateThenGetWithEmptyExamples(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, model.Schema{Prompt: "extract names", Examples: []model.Example{}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected id")
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Prompt != "extract names" {
		t.Fatalf("unexpected prompt %q", got.Prompt)
	}
	if got.Examples == nil || len(got.Examples) != 0 {
		t.Fatalf("expected empty examples, got %#v", got.Examples)
	}
}

func TestCreateIgnoresClientID(t *testing.T) {
	svc := newTestService()
	created, err := svc.Create(context.Background(), model.Schema{ID: "client-chosen", Prompt: "p"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "client-chosen" {
		t.Fatalf("client id must not be used")
	}
}

func TestUpdateReplacesWholeDefinition(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	created, err := svc.Create(ctx, model.Schema{Prompt: "p1", Examples: []model.Example{example("a"), example("b")}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	updated, err := svc.Update(ctx, created.ID, model.Schema{Prompt: "p2"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != created.ID || updated.Prompt != "p2" || len(updated.Examples) != 0 {
		t.Fatalf("unexpected update result %+v", updated)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Prompt != "p2" || len(got.Examples) != 0 {
		t.Fatalf("expected full replace, got %+v", got)
	}
}

func TestUpdateMissingSchema(t *testing.T) {
	svc := newTestService()
	_, err := svc.Update(context.Background(), "6d1f1a2b-3c4d-4e5f-8a9b-0c1d2e3f4a5b", model.Schema{Prompt: "p"})
	if !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTwiceReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	created, err := svc.Create(ctx, model.Schema{Prompt: "p"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	err = svc.Delete(ctx, created.ID)
	if !model.IsKind(err, model.ErrNotFound) || model.IsKind(err, model.ErrValidation) {
		t.Fatalf("expected ErrNotFound only, got %v", err)
	}
}

func TestMalformedIDIsValidationError(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	if _, err := svc.Get(ctx, "not-an-id"); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("Get expected ErrValidation, got %v", err)
	}
	if err := svc.Delete(ctx, "not-an-id"); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("Delete expected ErrValidation, got %v", err)
	}
	if _, err := svc.Examples(ctx, "not-an-id"); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("Examples expected ErrValidation, got %v", err)
	}
}

func TestExamplesReturnsStoredOrder(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	created, err := svc.Create(ctx, model.Schema{
		Prompt:   "p",
		Examples: []model.Example{example("first"), example("second"), example("third")},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	examples, err := svc.Examples(ctx, created.ID)
	if err != nil {
		t.Fatalf("Examples() error = %v", err)
	}
	if len(examples) != 3 {
		t.Fatalf("expected 3 examples, got %d", len(examples))
	}
	for i, want := range []string{"first", "second", "third"} {
		if examples[i].Text != want {
			t.Fatalf("example %d = %q, want %q", i, examples[i].Text, want)
		}
	}
}

func TestListNeverNil(t *testing.T) {
	list, err := newTestService().List(context.Background())
	if err != nil || list == nil {
		t.Fatalf("expected empty list, got %v, %v", list, err)
	}
}

type brokenStore struct{ Store }

func (brokenStore) List(context.Context) ([]model.Schema, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailureIsStorageError(t *testing.T) {
	svc := NewService(brokenStore{}, logging.Discard())
	if _, err := svc.List(context.Background()); !model.IsKind(err, model.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

func TestDecodeDefinition(t *testing.T) {
	schema, err := DecodeDefinition([]byte(`{"id":"x","prompt":"extract names","examples":[{"text":"Ada","extractions":[{"extraction_class":"person","extraction_text":"Ada","attributes":{"n":1}}]}]}`))
	if err != nil {
		t.Fatalf("DecodeDefinition() error = %v", err)
	}
	if schema.ID != "" || schema.Prompt != "extract names" {
		t.Fatalf("unexpected schema %+v", schema)
	}
	if schema.Examples[0].Extractions[0].Attributes["n"].Number != 1 {
		t.Fatalf("attribute not decoded: %+v", schema.Examples[0].Extractions[0].Attributes)
	}

	if _, err := DecodeDefinition([]byte(`{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_class":"c","extraction_text":"x","attributes":{"o":{}}}]}]}`)); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation for nested attribute, got %v", err)
	}
}

func TestDeletedMessage(t *testing.T) {
	if got := DeletedMessage("abc"); got != "Schema with ID abc deleted successfully" {
		t.Fatalf("unexpected message %q", got)
	}
}
