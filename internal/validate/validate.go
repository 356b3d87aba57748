// ABOUTME: Parameter validation against a capability's compiled JSON Schema.
// ABOUTME: Collects every violation, applies declared defaults, returns normalized parameters.

package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/murmurchat/concierge/internal/capability"
)

// printer renders jsonschema error kinds as human-readable reasons.
var printer = message.NewPrinter(language.English)

// Violation is one field-level schema violation.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Result is the outcome of validating one call's parameters. When OK is
// true, Normalized holds the parameters with declared defaults applied.
type Result struct {
	OK         bool
	Normalized map[string]any
	Violations []Violation
}

// Params validates raw parameters against the capability's schema. It is
// pure: no collaborator calls, deterministic for a given schema and input.
// All violations are reported, not just the first, so a caller can fix
// everything in one round trip.
func Params(schema *capability.Schema, raw json.RawMessage) Result {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	value, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return Result{Violations: []Violation{{Field: "", Reason: fmt.Sprintf("parameters are not valid JSON: %v", err)}}}
	}
	params, ok := value.(map[string]any)
	if !ok {
		return Result{Violations: []Violation{{Field: "", Reason: "parameters must be a JSON object"}}}
	}

	compiled := schema.Compiled()
	if compiled == nil {
		return Result{Violations: []Violation{{Field: "", Reason: "capability has no compiled schema"}}}
	}

	if err := compiled.Validate(value); err != nil {
		var verr *jsonschema.ValidationError
		if ve, isValidation := err.(*jsonschema.ValidationError); isValidation {
			verr = ve
		} else {
			return Result{Violations: []Violation{{Field: "", Reason: err.Error()}}}
		}
		var violations []Violation
		flatten(verr, &violations)
		if len(violations) == 0 {
			violations = append(violations, Violation{Field: "", Reason: verr.Error()})
		}
		return Result{Violations: violations}
	}

	normalized := applyDefaults(schema, params)
	return Result{OK: true, Normalized: normalized}
}

// flatten walks the validation error tree and records one violation per leaf
// cause. Missing required properties expand to one violation per field so the
// caller sees each by name.
func flatten(err *jsonschema.ValidationError, out *[]Violation) {
	if len(err.Causes) > 0 {
		for _, cause := range err.Causes {
			flatten(cause, out)
		}
		return
	}

	field := strings.Join(err.InstanceLocation, ".")
	switch k := err.ErrorKind.(type) {
	case *kind.Required:
		for _, missing := range k.Missing {
			*out = append(*out, Violation{
				Field:  joinPath(field, missing),
				Reason: "required field missing",
			})
		}
	case *kind.AdditionalProperties:
		for _, extra := range k.Properties {
			*out = append(*out, Violation{
				Field:  joinPath(field, extra),
				Reason: "unknown field",
			})
		}
	case *kind.Schema:
		// Root wrapper kind; nothing useful on its own.
	default:
		*out = append(*out, Violation{
			Field:  field,
			Reason: err.ErrorKind.LocalizedString(printer),
		})
	}
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// applyDefaults fills absent optional fields that declare a default. The
// input map is not mutated.
func applyDefaults(schema *capability.Schema, params map[string]any) map[string]any {
	normalized := make(map[string]any, len(params))
	for k, v := range params {
		normalized[k] = v
	}
	for _, f := range schema.Params {
		if f.Default == nil {
			continue
		}
		if _, present := normalized[f.Name]; !present {
			normalized[f.Name] = f.Default
		}
	}
	return normalized
}
