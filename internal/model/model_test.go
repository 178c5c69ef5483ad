package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestAttributeValueJSON(t *testing.T) {
	var attrs Attributes
	data := `{"name":"Ada","age":36,"active":true,"tags":["a","b"],"none":null}`
	if err := json.Unmarshal([]byte(data), &attrs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if attrs["name"].Kind != AttributeString || attrs["name"].String != "Ada" {
		t.Fatalf("unexpected name %+v", attrs["name"])
	}
	if attrs["age"].Kind != AttributeNumber || attrs["age"].Number != 36 {
		t.Fatalf("unexpected age %+v", attrs["age"])
	}
	if attrs["active"].Kind != AttributeBool || !attrs["active"].Bool {
		t.Fatalf("unexpected active %+v", attrs["active"])
	}
	if attrs["tags"].Kind != AttributeList || strings.Join(attrs["tags"].List, ",") != "a,b" {
		t.Fatalf("unexpected tags %+v", attrs["tags"])
	}
	if attrs["none"].Kind != AttributeNull {
		t.Fatalf("unexpected none %+v", attrs["none"])
	}
	if got := strings.Join(attrs.Keys(), ","); got != "active,age,name,none,tags" {
		t.Fatalf("unexpected key order %q", got)
	}

	out, err := json.Marshal(attrs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"active":true,"age":36,"name":"Ada","none":null,"tags":["a","b"]}` {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestAttributeValueRejectsNestedValues(t *testing.T) {
	for _, data := range []string{`{"x":1}`, `["a",1]`, `[["a"]]`} {
		var v AttributeValue
		err := json.Unmarshal([]byte(data), &v)
		if err == nil {
			t.Fatalf("expected %s to be rejected", data)
		}
		if !IsKind(err, ErrValidation) {
			t.Fatalf("expected ErrValidation for %s, got %v", data, err)
		}
	}
}

func TestAttributeFromInterface(t *testing.T) {
	cases := []struct {
		raw  any
		kind AttributeKind
	}{
		{nil, AttributeNull},
		{"s", AttributeString},
		{int32(4), AttributeNumber},
		{int64(4), AttributeNumber},
		{2.5, AttributeNumber},
		{false, AttributeBool},
		{[]any{"x"}, AttributeList},
		{[]string{"x"}, AttributeList},
	}
	for _, tc := range cases {
		v, err := AttributeFromInterface(tc.raw)
		if err != nil {
			t.Fatalf("AttributeFromInterface(%v) error = %v", tc.raw, err)
		}
		if v.Kind != tc.kind {
			t.Fatalf("AttributeFromInterface(%v) kind = %s, want %s", tc.raw, v.Kind, tc.kind)
		}
	}
	if _, err := AttributeFromInterface(map[string]any{"a": 1}); !IsKind(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for map, got %v", err)
	}
}

func TestListAttributeNeverNil(t *testing.T) {
	out, err := json.Marshal(ListAttribute())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "[]" {
		t.Fatalf("expected [], got %s", out)
	}
}

func TestSchemaNormalize(t *testing.T) {
	s := Schema{Prompt: "p", Examples: []Example{{Text: "t", Extractions: []Extraction{{Class: "c", Text: "t"}}}, {Text: "u"}}}
	s.Normalize()
	if s.Examples[0].Extractions[0].Attributes == nil {
		t.Fatalf("expected attributes to be initialized")
	}
	if s.Examples[1].Extractions == nil {
		t.Fatalf("expected extractions to be initialized")
	}

	var empty Schema
	empty.Normalize()
	out, _ := json.Marshal(empty)
	if !strings.Contains(string(out), `"examples":[]`) {
		t.Fatalf("expected empty examples array, got %s", out)
	}
	if got := NormalizeExamples(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrStorage, "put blob", cause)
	if err.Error() != "put blob: storage failure: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsKind(err, ErrStorage) || !errors.Is(err, cause) {
		t.Fatalf("expected both kind and cause to be preserved")
	}

	nested := WrapError(ErrStorage, "upload", err)
	if nested.Error() != "upload: put blob: storage failure: connection refused" {
		t.Fatalf("kind should not repeat, got %q", nested.Error())
	}
	if got := WrapError(ErrNotFound, "get", nil).Error(); got != "get: not found" {
		t.Fatalf("unexpected nil-cause message %q", got)
	}
	if err := Validationf("bad %s", "input"); !IsKind(err, ErrValidation) || err.Error() != "validation failed: bad input" {
		t.Fatalf("unexpected validation error %v", err)
	}
	if err := NotFoundf("schema %q", "x"); !IsKind(err, ErrNotFound) || IsKind(err, ErrValidation) {
		t.Fatalf("unexpected not found error %v", err)
	}
}
