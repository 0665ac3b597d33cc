package validation

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	apperrors "product-research-workers/internal/common/errors"
)

// Schema is a JSON schema reflected from a Go type, compiled once and reused for
// both the model response_format and the validation of what comes back.
type Schema struct {
	name        string
	description string
	doc         map[string]interface{}
	compiled    *gojsonschema.Schema
	strict      bool
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the result into "field: message" lines.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

// Reflect builds the schema of T. Struct tags drive the constraints:
// `jsonschema:"minItems=1,maxItems=10"`, `jsonschema:"minimum=0,maximum=5"`,
// fields tagged omitempty are optional.
func Reflect[T any](name, description string) (*Schema, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	var zero T
	doc, err := toMap(reflector.Reflect(zero))
	if err != nil {
		return nil, fmt.Errorf("reflect schema %s: %w", name, err)
	}
	return FromMap(name, description, doc)
}

// MustReflect is Reflect for package-level schema variables.
func MustReflect[T any](name, description string) *Schema {
	s, err := Reflect[T](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// FromMap compiles a hand-written schema document.
func FromMap(name, description string, doc map[string]interface{}) (*Schema, error) {
	delete(doc, "$schema")
	delete(doc, "$id")

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{
		name:        name,
		description: description,
		doc:         doc,
		compiled:    compiled,
		strict:      allRequired(doc),
	}, nil
}

func (s *Schema) Name() string        { return s.name }
func (s *Schema) Description() string { return s.description }

// Strict reports whether every object property is required, which is what
// providers demand before they enforce a schema strictly.
func (s *Schema) Strict() bool { return s.strict }

// Document returns a copy of the schema document.
func (s *Schema) Document() map[string]interface{} {
	cp, _ := toMap(s.doc)
	return cp
}

// Check validates raw JSON and reports every violation.
func (s *Schema) Check(data []byte) (*ValidationResult, error) {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, err
	}
	return toResult(result), nil
}

// CheckValue validates an in-memory value (struct, map, slice).
func (s *Schema) CheckValue(v interface{}) (*ValidationResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return s.Check(data)
}

// Validate returns a SCHEMA_VALIDATION_FAILED error when data is not valid JSON
// or does not satisfy the schema.
func (s *Schema) Validate(data []byte) error {
	result, err := s.Check(data)
	if err != nil {
		return apperrors.NewSchemaDecodeFailedError(s.name, err)
	}
	if !result.Valid {
		return apperrors.NewSchemaValidationFailedError(s.name, result.Messages())
	}
	return nil
}

// ValidateValue is Validate for an in-memory value.
func (s *Schema) ValidateValue(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewSchemaDecodeFailedError(s.name, err)
	}
	return s.Validate(data)
}

// Decode validates data and unmarshals it into dst.
func (s *Schema) Decode(data []byte, dst interface{}) error {
	if err := s.Validate(data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewSchemaDecodeFailedError(s.name, err)
	}
	return nil
}

func toResult(result *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: result.Valid()}
	for _, e := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   e.Field(),
			Message: e.Description(),
			Code:    e.Type(),
		})
	}
	return out
}

func toMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func allRequired(node map[string]interface{}) bool {
	if props, ok := node["properties"].(map[string]interface{}); ok {
		required := map[string]bool{}
		if list, ok := node["required"].([]interface{}); ok {
			for _, r := range list {
				if name, ok := r.(string); ok {
					required[name] = true
				}
			}
		}
		for name, p := range props {
			if !required[name] {
				return false
			}
			if child, ok := p.(map[string]interface{}); ok && !allRequired(child) {
				return false
			}
		}
	}
	if items, ok := node["items"].(map[string]interface{}); ok {
		return allRequired(items)
	}
	return true
}
