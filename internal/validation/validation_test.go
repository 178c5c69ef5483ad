package validation

import (
	"strings"
	"testing"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

func TestSchemaDefinitionAcceptsValidPayloads(t *testing.T) {
	payloads := []string{
		`{"prompt":"extract names","examples":[]}`,
		`{"prompt":"p","examples":[{"text":"Ada","extractions":[{"extraction_class":"person","extraction_text":"Ada","attributes":{"age":36,"tags":["a","b"],"ok":true,"none":null},"color":"#00f"}]}]}`,
		`{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_class":"c","extraction_text":"x"}]}]}`,
	}
	for _, p := range payloads {
		if err := SchemaDefinition([]byte(p)); err != nil {
			t.Fatalf("SchemaDefinition(%s) error = %v", p, err)
		}
	}
}

func TestSchemaDefinitionRejectsInvalidPayloads(t *testing.T) {
	cases := map[string]string{
		"missing prompt":     `{"examples":[]}`,
		"missing examples":   `{"prompt":"p"}`,
		"prompt not string":  `{"prompt":5,"examples":[]}`,
		"nested attribute":   `{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_class":"c","extraction_text":"x","attributes":{"a":{"b":1}}}]}]}`,
		"mixed list":         `{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_class":"c","extraction_text":"x","attributes":{"a":["x",1]}}]}]}`,
		"missing class":      `{"prompt":"p","examples":[{"text":"t","extractions":[{"extraction_text":"x"}]}]}`,
		"not json":           `{prompt`,
		"trailing document":  `{"prompt":"p","examples":[]} {}`,
		"examples not array": `{"prompt":"p","examples":{}}`,
	}
	for name, p := range cases {
		err := SchemaDefinition([]byte(p))
		if !model.IsKind(err, model.ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", name, err)
		}
	}
}

func TestValidationMessageNamesLocation(t *testing.T) {
	err := SchemaDefinition([]byte(`{"prompt":"p","examples":[{"extractions":[]}]}`))
	if err == nil || !strings.Contains(err.Error(), "/examples/0") {
		t.Fatalf("expected location in message, got %v", err)
	}
}

func TestExamplesAllowsNull(t *testing.T) {
	if err := Examples([]byte(`null`)); err != nil {
		t.Fatalf("Examples(null) error = %v", err)
	}
	if err := Examples([]byte(`[{"text":"t"}]`)); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExtractionResult(t *testing.T) {
	if err := ExtractionResult([]byte(`{"text":"t","extractions":[]}`)); err != nil {
		t.Fatalf("ExtractionResult() error = %v", err)
	}
	if err := ExtractionResult([]byte(`{"text":"t"}`)); !model.IsKind(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
