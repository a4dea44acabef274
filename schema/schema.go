// Package schema defines index field schemas and the mapping from JSON
// objects to indexable documents. Schema ownership is external to the index
// engine: schemas are resolved by prefix from a configuration document and
// handed to the engine when an index is first created.
package schema

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// IDField is the distinguished identifier field present in every document.
// It is unique within an index at any point in time; the writer enforces
// this with delete-then-add, not a uniqueness constraint.
const IDField = "__id"

// Kind describes how a field's value is analyzed.
type Kind string

const (
	// KindText is tokenized full text.
	KindText Kind = "text"
	// KindKeyword is a single verbatim term.
	KindKeyword Kind = "keyword"
)

// Field is one named field of an index schema.
type Field struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Indexed bool   `json:"indexed"`
	Stored  bool   `json:"stored"`
}

// Schema is the set of fields an index accepts. The IDField is implicit and
// must not be declared.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the named field, if declared.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks the schema for structural problems.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return errors.New("schema: field with empty name")
		}
		if f.Name == IDField {
			return fmt.Errorf("schema: %s is implicit and must not be declared", IDField)
		}
		if f.Kind != KindText && f.Kind != KindKeyword {
			return fmt.Errorf("schema: field %q has unknown kind %q", f.Name, f.Kind)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Document is a parsed, schema-conforming field-value mapping, including the
// IDField.
type Document map[string]string

// ID returns the document identifier.
func (d Document) ID() string {
	return d[IDField]
}

// Validation errors. All satisfy errors.Is(err, ErrInvalidDocument) so the
// HTTP boundary can map them to a 400 as a class.
var (
	ErrInvalidDocument = errors.New("schema: invalid document")
	ErrNotObject       = fmt.Errorf("%w: expected JSON object", ErrInvalidDocument)
	ErrEmptyDocument   = fmt.Errorf("%w: no schema fields present", ErrInvalidDocument)
)

// FieldError reports a field whose value does not match the schema.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("schema: field %q %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidDocument }

// ParseDocument maps a decoded JSON value onto the schema. Unknown fields are
// dropped silently; a document that maps to nothing is rejected. A missing
// IDField gets a generated id.
func (s *Schema) ParseDocument(v any) (Document, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	doc := make(Document, len(obj))
	for name, raw := range obj {
		if name == IDField {
			continue
		}
		if _, declared := s.Field(name); !declared {
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, &FieldError{Field: name, Reason: fmt.Sprintf("expected a string, got %T", raw)}
		}
		doc[name] = str
	}

	if len(doc) == 0 {
		return nil, ErrEmptyDocument
	}

	switch id := obj[IDField].(type) {
	case nil:
		doc[IDField] = uuid.NewString()
	case string:
		if id == "" {
			return nil, &FieldError{Field: IDField, Reason: "must not be empty"}
		}
		doc[IDField] = id
	default:
		return nil, &FieldError{Field: IDField, Reason: fmt.Sprintf("expected a string, got %T", id)}
	}

	return doc, nil
}
