// Package schema declares operation contracts as JSON Schema values and
// compiles them into validators.
//
// Schemas are plain [Schema] values (github.com/google/jsonschema-go), so they
// can be built with the helpers in this package or written out field by field:
//
//	params := schema.Object(schema.Props{
//		"userId": schema.UUID(),
//	})
//
// Validation is performed by a [Compiler], which owns a [FormatRegistry] and
// caches compiled validators. Compiled validators are immutable and safe to
// share between goroutines.
package schema

import (
	"encoding/json"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a JSON Schema document.
type Schema = jsonschema.Schema

// Props maps property names to their schemas.
type Props map[string]*Schema

// Any accepts every value.
func Any() *Schema {
	return &Schema{}
}

func String() *Schema {
	return &Schema{Type: "string"}
}

// UUID is a string in canonical UUID form.
func UUID() *Schema {
	return &Schema{Type: "string", Format: "uuid"}
}

func Email() *Schema {
	return &Schema{Type: "string", Format: "email"}
}

// DateTime is an RFC 3339 timestamp string.
func DateTime() *Schema {
	return &Schema{Type: "string", Format: "date-time"}
}

func Integer() *Schema {
	return &Schema{Type: "integer"}
}

func Number() *Schema {
	return &Schema{Type: "number"}
}

func Boolean() *Schema {
	return &Schema{Type: "boolean"}
}

func Array(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// Object is an object schema in which every property is required.
func Object(props Props) *Schema {
	s := PartialObject(props)
	for name := range props {
		s.Required = append(s.Required, name)
	}
	slices.Sort(s.Required)
	return s
}

// PartialObject is an object schema in which no property is required.
func PartialObject(props Props) *Schema {
	properties := make(map[string]*Schema, len(props))
	for name, p := range props {
		properties[name] = p
	}
	return &Schema{Type: "object", Properties: properties}
}

// Describe returns a copy of s carrying the given description.
func Describe(s *Schema, text string) *Schema {
	c := Clone(s)
	c.Description = text
	return c
}

// IsObject reports whether s describes a JSON object.
func IsObject(s *Schema) bool {
	if s == nil {
		return false
	}
	if s.Type == "object" {
		return true
	}
	return len(s.Types) == 1 && s.Types[0] == "object"
}

// Clone returns a deep copy of s.
func Clone(s *Schema) *Schema {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		c := *s
		return &c
	}
	var out Schema
	if err := json.Unmarshal(raw, &out); err != nil {
		c := *s
		return &c
	}
	return &out
}

// Document returns s as a generic JSON value. The accept-anything schema is
// returned as an empty object rather than the boolean true.
func Document(s *Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	switch v := doc.(type) {
	case map[string]any:
		return v, nil
	case bool:
		if v {
			return map[string]any{}, nil
		}
		return map[string]any{"not": map[string]any{}}, nil
	}
	return map[string]any{}, nil
}
