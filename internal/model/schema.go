package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Schema is a reusable prompt plus labeled examples that configures the
// extraction capability.
type Schema struct {
	ID       string    `json:"id"`
	Prompt   string    `json:"prompt"`
	Examples []Example `json:"examples"`
}

// Example pairs a source text with the extractions expected from it.
type Example struct {
	Text        string       `json:"text"`
	Extractions []Extraction `json:"extractions"`
}

// Extraction is a single labeled span.
type Extraction struct {
	Class      string     `json:"extraction_class"`
	Text       string     `json:"extraction_text"`
	Attributes Attributes `json:"attributes"`
	Color      string     `json:"color"`
}

// Attributes is the free-form attribute bag attached to an extraction.
type Attributes map[string]AttributeValue

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AttributeKind tags the value held by an AttributeValue.
type AttributeKind int

const (
	AttributeNull AttributeKind = iota
	AttributeString
	AttributeNumber
	AttributeBool
	AttributeList
)

func (k AttributeKind) String() string {
	switch k {
	case AttributeString:
		return "string"
	case AttributeNumber:
		return "number"
	case AttributeBool:
		return "bool"
	case AttributeList:
		return "list"
	default:
		return "null"
	}
}

// AttributeValue is a tagged union of the primitive values an attribute may
// carry. Only the field matching Kind is meaningful.
type AttributeValue struct {
	Kind   AttributeKind
	String string
	Number float64
	Bool   bool
	List   []string
}

func StringAttribute(s string) AttributeValue { return AttributeValue{Kind: AttributeString, String: s} }

func NumberAttribute(n float64) AttributeValue { return AttributeValue{Kind: AttributeNumber, Number: n} }

func BoolAttribute(b bool) AttributeValue { return AttributeValue{Kind: AttributeBool, Bool: b} }

func ListAttribute(items ...string) AttributeValue {
	if items == nil {
		items = []string{}
	}
	return AttributeValue{Kind: AttributeList, List: items}
}

// Interface returns the value as a plain Go value, suitable for drivers that
// encode generic maps (bson, jsonb).
func (v AttributeValue) Interface() any {
	switch v.Kind {
	case AttributeString:
		return v.String
	case AttributeNumber:
		return v.Number
	case AttributeBool:
		return v.Bool
	case AttributeList:
		out := make([]any, len(v.List))
		for i, s := range v.List {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

// AttributeFromInterface converts a decoded driver value back into the union.
func AttributeFromInterface(raw any) (AttributeValue, error) {
	switch val := raw.(type) {
	case nil:
		return AttributeValue{}, nil
	case string:
		return StringAttribute(val), nil
	case bool:
		return BoolAttribute(val), nil
	case float64:
		return NumberAttribute(val), nil
	case float32:
		return NumberAttribute(float64(val)), nil
	case int:
		return NumberAttribute(float64(val)), nil
	case int32:
		return NumberAttribute(float64(val)), nil
	case int64:
		return NumberAttribute(float64(val)), nil
	case []string:
		return ListAttribute(append([]string(nil), val...)...), nil
	case []any:
		items := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return AttributeValue{}, Validationf("attribute list item %d is %T, want string", i, item)
			}
			items = append(items, s)
		}
		return ListAttribute(items...), nil
	default:
		return AttributeValue{}, Validationf("unsupported attribute value of type %T", raw)
	}
}

// MarshalJSON encodes the union as its plain JSON value.
func (v AttributeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts strings, numbers, booleans, null and arrays of
// strings. Objects and mixed arrays are rejected.
func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode attribute: %w", err)
	}
	if n, ok := raw.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return Validationf("attribute number %q out of range", n.String())
		}
		*v = NumberAttribute(f)
		return nil
	}
	parsed, err := AttributeFromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ExtractionResult is the structured output of the extraction capability.
type ExtractionResult struct {
	Text        string       `json:"text"`
	Extractions []Extraction `json:"extractions"`
}

// Normalize replaces nil slices with empty ones so JSON responses never carry
// null where a sequence is expected.
func (s *Schema) Normalize() {
	if s.Examples == nil {
		s.Examples = []Example{}
	}
	for i := range s.Examples {
		s.Examples[i].normalize()
	}
}

func (e *Example) normalize() {
	if e.Extractions == nil {
		e.Extractions = []Extraction{}
	}
	for i := range e.Extractions {
		if e.Extractions[i].Attributes == nil {
			e.Extractions[i].Attributes = Attributes{}
		}
	}
}

// NormalizeExamples applies the same nil-to-empty rule to a bare example list.
func NormalizeExamples(examples []Example) []Example {
	if examples == nil {
		return []Example{}
	}
	for i := range examples {
		examples[i].normalize()
	}
	return examples
}
