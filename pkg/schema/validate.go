package schema

import (
	"fmt"
	"sort"
)

// Field is one declared argument.
type Field struct {
	Type     Type
	Required bool
}

// Schema maps argument names to their declarations.
type Schema map[string]Field

// FromParameters builds a Schema from a tool's parameter declaration.
// Nil or empty parameters yield an empty Schema that accepts anything.
func FromParameters(params map[string]any) (Schema, error) {
	s := make(Schema)
	if len(params) == 0 {
		return s, nil
	}

	if typeName, ok := params["type"].(string); ok && typeName != "object" {
		return nil, fmt.Errorf("parameters must be an object schema, got %q", typeName)
	}

	if raw, ok := params["properties"]; ok {
		props, ok := asMap(raw)
		if !ok {
			return nil, fmt.Errorf("properties: expected object, got %T", raw)
		}
		for name, rawProp := range props {
			prop, ok := asMap(rawProp)
			if !ok {
				return nil, fmt.Errorf("property %s: expected object, got %T", name, rawProp)
			}
			t, err := ParseType(prop)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			s[name] = Field{Type: t}
		}
	}

	if raw, ok := params["required"]; ok {
		required, ok := asSlice(raw)
		if !ok {
			return nil, fmt.Errorf("required: expected list, got %T", raw)
		}
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("required: expected string, got %T", r)
			}
			f, declared := s[name]
			if !declared {
				f.Type = Any()
			}
			f.Required = true
			s[name] = f
		}
	}
	return s, nil
}

// Validate checks args against s and reports every failing field.
// Fields are checked in name order so the message is stable.
func Validate(s Schema, args map[string]any) error {
	if len(s) == 0 {
		return nil
	}

	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		field := s[name]
		value, present := args[name]
		if !present || value == nil {
			if field.Required {
				errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			}
			continue
		}
		if err := field.Type.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
