package schema

import (
	"fmt"
	"math"

	"github.com/paisatax/taxgraph/pkg/domain"
)

// Type defines the contract for value shape validation.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "number").
	Name() string
	// Validate checks if a non-nil value conforms to this type.
	Validate(value any) error
}

// --- Built-in Type Implementations ---

// NumberType validates numeric values of any Go numeric kind.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value any) error {
	n, ok := domain.AsNumber(value)
	if !ok {
		return fmt.Errorf("expected number, got %T", value)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("expected finite number, got %v", n)
	}
	return nil
}

// IntegerType validates whole numbers.
type IntegerType struct{}

func (t *IntegerType) Name() string { return "integer" }

func (t *IntegerType) Validate(value any) error {
	n, ok := domain.AsNumber(value)
	if !ok {
		return fmt.Errorf("expected integer, got %T", value)
	}
	// Accept floats that are whole numbers (from JSON unmarshaling)
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return fmt.Errorf("expected integer, got float (not a whole number)")
	}
	return nil
}

// TextType validates string values.
type TextType struct{}

func (t *TextType) Name() string { return "text" }

func (t *TextType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected text, got %T", value)
	}
	return nil
}

// BooleanType validates boolean values.
type BooleanType struct{}

func (t *BooleanType) Name() string { return "boolean" }

func (t *BooleanType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

// AnyType accepts every value.
type AnyType struct{}

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Validate(any) error { return nil }

// --- Factory Functions ---

// Number creates a number type validator.
func Number() Type { return &NumberType{} }

// Integer creates an integer type validator.
func Integer() Type { return &IntegerType{} }

// Text creates a text type validator.
func Text() Type { return &TextType{} }

// Boolean creates a boolean type validator.
func Boolean() Type { return &BooleanType{} }

// Any creates a validator that accepts everything.
func Any() Type { return &AnyType{} }

// ForValueType returns the validator for a declared value type.
func ForValueType(vt domain.ValueType) (Type, error) {
	switch vt {
	case domain.TypeAny:
		return Any(), nil
	case domain.TypeNumber:
		return Number(), nil
	case domain.TypeInteger:
		return Integer(), nil
	case domain.TypeText:
		return Text(), nil
	case domain.TypeBoolean:
		return Boolean(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", vt)
	}
}

// ParseType converts a type name ("number", "integer", "text", "boolean",
// "any" or "") to a domain.ValueType.
func ParseType(typeStr string) (domain.ValueType, error) {
	switch typeStr {
	case "", "any":
		return domain.TypeAny, nil
	case "number", "float", "money":
		return domain.TypeNumber, nil
	case "integer", "int":
		return domain.TypeInteger, nil
	case "text", "string":
		return domain.TypeText, nil
	case "boolean", "bool":
		return domain.TypeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported type: %s", typeStr)
	}
}
