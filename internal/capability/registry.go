// ABOUTME: Fixed capability registry built once at startup with a boot-time self-check.
// ABOUTME: Resolves capability names to immutable schemas; unknown names are not an error here.

package capability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// compiledSchema wraps the compiled JSON Schema used by the validator.
type compiledSchema struct {
	schema *jsonschema.Schema
}

// Registry holds the fixed set of capability schemas. It is immutable after
// construction and safe for concurrent use without locking.
type Registry struct {
	schemas map[string]*Schema
	names   []string
}

// NewRegistry builds the registry from a static declaration and runs the
// startup self-check: unique names, a bound handler per schema, typed
// parameter fields, resolvable permission hints, and a compilable parameter
// schema. Any failure is a boot-time fatal error for the caller to act on.
func NewRegistry(schemas []Schema, logger *slog.Logger) (*Registry, error) {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	for i := range schemas {
		s := schemas[i]
		if s.Name == "" {
			return nil, fmt.Errorf("capability declaration %d has no name", i)
		}
		if _, dup := r.schemas[s.Name]; dup {
			return nil, fmt.Errorf("capability %q declared twice", s.Name)
		}
		if s.Handler == nil {
			return nil, fmt.Errorf("capability %q has no handler", s.Name)
		}
		for _, hint := range []string{s.ThreadIDParam, s.UserRefParam, s.ParticipantsParam} {
			if hint != "" && s.Field(hint) == nil {
				return nil, fmt.Errorf("capability %q references unknown parameter %q", s.Name, hint)
			}
		}

		doc, err := s.jsonSchema()
		if err != nil {
			return nil, err
		}
		// Round-trip through encoding/json so the compiler sees the same
		// value shapes it will see for incoming parameters.
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("capability %q: encoding schema: %w", s.Name, err)
		}
		value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("capability %q: decoding schema: %w", s.Name, err)
		}
		resource := fmt.Sprintf("capability://%s/params.json", s.Name)
		if err := compiler.AddResource(resource, value); err != nil {
			return nil, fmt.Errorf("capability %q: adding schema resource: %w", s.Name, err)
		}
		compiled, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("capability %q: compiling schema: %w", s.Name, err)
		}
		s.compiled = &compiledSchema{schema: compiled}

		r.schemas[s.Name] = &s
		r.names = append(r.names, s.Name)
	}

	sort.Strings(r.names)

	if logger != nil {
		logger.Info("capability registry built", "capabilities", len(r.names))
	}
	return r, nil
}

// Resolve returns the schema for name, or false when the capability is
// unknown.
func (r *Registry) Resolve(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns the sorted capability names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	return len(r.schemas)
}

// Compiled exposes the compiled parameter schema for the validator.
func (s *Schema) Compiled() *jsonschema.Schema {
	if s.compiled == nil {
		return nil
	}
	return s.compiled.schema
}
