package threshold

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Validator checks catalog documents against the catalog schema and invariants
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded catalog schema
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(catalogSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateFile loads and validates a catalog file
func (v *Validator) ValidateFile(path string) []ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return []ValidationError{{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}}
	}
	return v.Validate(path, data)
}

// Validate checks a catalog document. name is only used to label errors.
func (v *Validator) Validate(name string, data []byte) []ValidationError {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return []ValidationError{{File: name, Message: fmt.Sprintf("failed to parse YAML: %v", err)}}
	}

	if errs := v.validateSchema(name, doc); len(errs) > 0 {
		return errs
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return []ValidationError{{File: name, Message: fmt.Sprintf("failed to decode catalog: %v", err)}}
	}

	return validateExtraRules(name, file.Thresholds)
}

// validateSchema validates a decoded document against the JSON schema
func (v *Validator) validateSchema(name string, doc interface{}) []ValidationError {
	err := v.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) {
		return extractSchemaErrors(name, validationErr)
	}

	return []ValidationError{{File: name, Message: err.Error()}}
}

// extractSchemaErrors flattens the leaves of a schema validation error tree
func extractSchemaErrors(name string, err *jsonschema.ValidationError) []ValidationError {
	if len(err.Causes) > 0 {
		var errs []ValidationError
		for _, cause := range err.Causes {
			errs = append(errs, extractSchemaErrors(name, cause)...)
		}
		return errs
	}

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	return []ValidationError{{File: name, Path: path, Message: err.Error()}}
}

// validateExtraRules applies the rules the schema cannot express
func validateExtraRules(name string, specs []Spec) []ValidationError {
	var errs []ValidationError

	seen := make(map[Key]int)
	for i, spec := range specs {
		path := fmt.Sprintf("thresholds[%d]", i)

		if prev, exists := seen[spec.Key()]; exists {
			errs = append(errs, ValidationError{
				File:    name,
				Path:    path,
				Message: fmt.Sprintf("duplicate definition for %s (also at thresholds[%d])", spec.Key(), prev),
			})
			continue
		}
		seen[spec.Key()] = i

		if err := CheckSpec(spec); err != nil {
			errs = append(errs, ValidationError{File: name, Path: path, Message: err.Error()})
		}
	}

	return errs
}
