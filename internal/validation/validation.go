// Package validation checks JSON payloads against the JSON Schemas ExtractIQ
// accepts at its boundaries: schema definitions, extraction requests and
// model output.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dharsanguruparan/extractiq/internal/model"
)

const defs = `
	"attribute": {
		"anyOf": [
			{"type": ["string", "number", "boolean", "null"]},
			{"type": "array", "items": {"type": "string"}}
		]
	},
	"extraction": {
		"type": "object",
		"required": ["extraction_class", "extraction_text"],
		"properties": {
			"extraction_class": {"type": "string"},
			"extraction_text": {"type": "string"},
			"attributes": {
				"type": ["object", "null"],
				"additionalProperties": {"$ref": "#/$defs/attribute"}
			},
			"color": {"type": ["string", "null"]}
		}
	},
	"example": {
		"type": "object",
		"required": ["text", "extractions"],
		"properties": {
			"text": {"type": "string"},
			"extractions": {"type": "array", "items": {"$ref": "#/$defs/extraction"}}
		}
	}`

// SchemaDefinitionJSON describes the body of POST /schemas and PUT /schemas/{id}.
const SchemaDefinitionJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["prompt", "examples"],
	"properties": {
		"id": {"type": "string"},
		"prompt": {"type": "string"},
		"examples": {"type": "array", "items": {"$ref": "#/$defs/example"}}
	},
	"$defs": {` + defs + `}
}`

// ExamplesJSON describes a bare examples list as sent to the extract routes.
const ExamplesJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": ["array", "null"],
	"items": {"$ref": "#/$defs/example"},
	"$defs": {` + defs + `}
}`

// ExtractionResultJSON describes what the extraction capability must return.
const ExtractionResultJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["extractions"],
	"properties": {
		"text": {"type": "string"},
		"extractions": {"type": "array", "items": {"$ref": "#/$defs/extraction"}}
	},
	"$defs": {` + defs + `}
}`

// Validator is a compiled JSON Schema.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles schemaJSON under the given resource name.
func Compile(name, schemaJSON string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Validator{name: name, schema: schema}, nil
}

// MustCompile is Compile for package-level schemas known to be valid.
func MustCompile(name, schemaJSON string) *Validator {
	v, err := Compile(name, schemaJSON)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks data and reports violations as ErrValidation.
func (v *Validator) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return model.Validationf("malformed JSON: %v", err)
	}
	if dec.More() {
		return model.Validationf("malformed JSON: trailing data after document")
	}
	if err := v.schema.Validate(doc); err != nil {
		return model.Validationf("%s", describe(err))
	}
	return nil
}

// describe flattens the validation tree into one readable line.
func describe(err error) string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(msgs, "; ")
}

var (
	schemaDefinition = MustCompile("schema-definition.json", SchemaDefinitionJSON)
	examples         = MustCompile("examples.json", ExamplesJSON)
	extractionResult = MustCompile("extraction-result.json", ExtractionResultJSON)
)

// SchemaDefinition validates a schema create or replace payload.
func SchemaDefinition(data []byte) error { return schemaDefinition.Validate(data) }

// Examples validates a raw examples list.
func Examples(data []byte) error { return examples.Validate(data) }

// ExtractionResult validates model output before it is decoded.
func ExtractionResult(data []byte) error { return extractionResult.Validate(data) }
