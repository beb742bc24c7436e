package schema

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Type validates a single argument value.
type Type interface {
	// Name returns the JSON Schema name of the type.
	Name() string
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type integerType struct{}

func (integerType) Name() string { return "integer" }

func (integerType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// encoding/json decodes every number as float64
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return nil
		}
		return fmt.Errorf("expected integer, got %v", v)
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}
}

type numberType struct{}

func (numberType) Name() string { return "number" }

func (numberType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	default:
		return fmt.Errorf("expected number, got %T", value)
	}
}

type booleanType struct{}

func (booleanType) Name() string { return "boolean" }

func (booleanType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

type arrayType struct {
	elem Type
}

func (t arrayType) Name() string {
	if t.elem == nil {
		return "array"
	}
	return "array<" + t.elem.Name() + ">"
}

func (t arrayType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected array, got %T", value)
	}
	if t.elem == nil {
		return nil
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type objectType struct{}

func (objectType) Name() string { return "object" }

func (objectType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string { return "any" }

func (anyType) Validate(any) error { return nil }

type enumType struct {
	base    Type
	allowed []any
}

func (t enumType) Name() string { return t.base.Name() }

func (t enumType) Validate(value any) error {
	if err := t.base.Validate(value); err != nil {
		return err
	}
	if slices.ContainsFunc(t.allowed, func(a any) bool { return equalScalar(a, value) }) {
		return nil
	}
	opts := make([]string, len(t.allowed))
	for i, a := range t.allowed {
		opts[i] = fmt.Sprint(a)
	}
	return fmt.Errorf("must be one of [%s]", strings.Join(opts, ", "))
}

// equalScalar compares enum members loosely across numeric kinds.
func equalScalar(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// String validates string values.
func String() Type { return stringType{} }

// Integer validates whole numbers, including integral float64 values.
func Integer() Type { return integerType{} }

// Number validates any numeric value.
func Number() Type { return numberType{} }

// Boolean validates bool values.
func Boolean() Type { return booleanType{} }

// Array validates slices whose elements match elem. A nil elem accepts any element.
func Array(elem Type) Type { return arrayType{elem: elem} }

// Object validates maps keyed by string.
func Object() Type { return objectType{} }

// Any accepts every value.
func Any() Type { return anyType{} }

// Enum restricts base to the allowed values.
func Enum(base Type, allowed ...any) Type {
	return enumType{base: base, allowed: allowed}
}

// ParseType converts a JSON Schema property declaration into a Type.
// A missing "type" accepts any value.
func ParseType(prop map[string]any) (Type, error) {
	var (
		t   Type
		err error
	)

	typeName, _ := prop["type"].(string)
	switch typeName {
	case "":
		t = Any()
	case "string":
		t = String()
	case "integer":
		t = Integer()
	case "number":
		t = Number()
	case "boolean":
		t = Boolean()
	case "object":
		t = Object()
	case "array":
		var elem Type
		if items, ok := asMap(prop["items"]); ok {
			if elem, err = ParseType(items); err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
		}
		t = Array(elem)
	default:
		return nil, fmt.Errorf("unsupported type: %q", typeName)
	}

	if enum, ok := asSlice(prop["enum"]); ok && len(enum) > 0 {
		t = Enum(t, enum...)
	}
	return t, nil
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, str := range s {
			out[i] = str
		}
		return out, true
	}
	return nil, false
}
