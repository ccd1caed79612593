// Package schema validates node values against their declared constraints.
//
// It defines a small type system matching domain.ValueType (number,
// integer, text, boolean) plus sign and bound checks. Every failure is a
// *ValidationError carrying a machine-readable code, so callers can turn
// them into structured validation results without string matching.
//
// Basic usage:
//
//	min := 0.0
//	c := domain.Constraints{Type: domain.TypeNumber, NonNegative: true, Min: &min}
//
//	if err := schema.Check("wages", c, -5.0); err != nil {
//	    for _, ve := range schema.ValidationErrors(err) {
//	        fmt.Println(ve.Code) // negative_not_allowed, below_minimum
//	    }
//	}
//
// A nil value is always valid: it represents an absent value.
package schema
