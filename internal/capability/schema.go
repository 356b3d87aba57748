// ABOUTME: Capability schema declarations: parameter specs, handler binding, and JSON Schema generation.
// ABOUTME: Schemas are immutable after registration; the full set is fixed at boot.

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput marks a handler-detected parameter problem the field-level
// validator cannot express (e.g. cross-field constraints). The orchestrator
// maps it to the invalid_parameters code.
var ErrInvalidInput = errors.New("invalid input")

// HandlerFunc executes a capability. It receives the calling user's ID and
// the normalized parameters as JSON, and returns the result as JSON or an
// error. Handlers hold no mutable state; any I/O goes through collaborators
// bound at construction.
type HandlerFunc func(ctx context.Context, callerID string, params json.RawMessage) (json.RawMessage, error)

// FieldType is one of the primitive parameter types a schema may declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// FieldSpec declares one parameter field: its type, whether it is required,
// and any bounds. Sensitive marks free-text fields that must never appear in
// execution log entries.
type FieldSpec struct {
	Name      string
	Type      FieldType
	Required  bool
	Sensitive bool

	Description string

	// String constraints.
	MinLen  int
	MaxLen  int
	Pattern string
	Format  string
	Enum    []string

	// Numeric constraints.
	Min *float64
	Max *float64

	// Array constraints.
	MinItems int
	MaxItems int
	ItemType FieldType

	// Default is applied during normalization when the field is absent.
	Default any
}

// Schema describes one capability: its unique name, parameter spec, handler
// binding, and the hints the permission checker needs to locate resource
// references inside the parameters.
type Schema struct {
	Name        string
	Description string
	Params      []FieldSpec
	Handler     HandlerFunc

	// Timeout overrides the dispatcher's default handler deadline when > 0.
	Timeout time.Duration

	// ThreadIDParam names the parameter carrying a thread reference. The
	// caller must be a member of that thread.
	ThreadIDParam string

	// UserRefParam names a parameter referencing another user. A caller may
	// always reference themselves; anyone else requires a scheduling
	// relationship.
	UserRefParam string

	// ParticipantsParam names an array parameter of user IDs, each subject
	// to the same rule as UserRefParam.
	ParticipantsParam string

	compiled *compiledSchema
}

// Field returns the spec for the named parameter, or nil.
func (s *Schema) Field(name string) *FieldSpec {
	for i := range s.Params {
		if s.Params[i].Name == name {
			return &s.Params[i]
		}
	}
	return nil
}

// jsonSchema renders the parameter spec as a JSON Schema document. Unknown
// fields are rejected so a misspelled optional parameter surfaces as a
// violation instead of being silently dropped.
func (s *Schema) jsonSchema() (map[string]any, error) {
	properties := make(map[string]any, len(s.Params))
	var required []string

	for _, f := range s.Params {
		if f.Name == "" {
			return nil, fmt.Errorf("capability %q: parameter with empty name", s.Name)
		}
		if f.Type == "" {
			return nil, fmt.Errorf("capability %q: parameter %q has no type", s.Name, f.Name)
		}
		prop := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		switch f.Type {
		case TypeString:
			if f.MinLen > 0 {
				prop["minLength"] = f.MinLen
			}
			if f.MaxLen > 0 {
				prop["maxLength"] = f.MaxLen
			}
			if f.Pattern != "" {
				prop["pattern"] = f.Pattern
			}
			if f.Format != "" {
				prop["format"] = f.Format
			}
			if len(f.Enum) > 0 {
				enum := make([]any, len(f.Enum))
				for i, v := range f.Enum {
					enum[i] = v
				}
				prop["enum"] = enum
			}
		case TypeNumber, TypeInteger:
			if f.Min != nil {
				prop["minimum"] = *f.Min
			}
			if f.Max != nil {
				prop["maximum"] = *f.Max
			}
		case TypeArray:
			if f.MinItems > 0 {
				prop["minItems"] = f.MinItems
			}
			if f.MaxItems > 0 {
				prop["maxItems"] = f.MaxItems
			}
			if f.ItemType != "" {
				prop["items"] = map[string]any{"type": string(f.ItemType)}
			}
		case TypeBoolean, TypeObject:
			// No extra constraints supported.
		default:
			return nil, fmt.Errorf("capability %q: parameter %q has unknown type %q", s.Name, f.Name, f.Type)
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		doc["required"] = req
	}
	return doc, nil
}

// SchemaJSON returns the capability's parameter spec rendered as a JSON
// Schema document, for catalogue listings and contract tests.
func (s *Schema) SchemaJSON() (json.RawMessage, error) {
	doc, err := s.jsonSchema()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
