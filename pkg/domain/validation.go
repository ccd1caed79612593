package domain

// Validation codes returned by the event validator.
const (
	CodeNodeNotFound         = "node_not_found"
	CodeNodeIsComputed       = "node_is_computed"
	CodeOverrideRequiresNote = "override_requires_note"
	CodeNotOverridden        = "not_overridden"
	CodeInvalidType          = "invalid_type"
	CodeNegativeNotAllowed   = "negative_not_allowed"
	CodeBelowMinimum         = "below_minimum"
	CodeAboveMaximum         = "above_maximum"
	CodeInvalidSource        = "invalid_source"
)

// ValidationIssue is one reason an event was rejected.
type ValidationIssue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// ValidationResult is the structured outcome of validating an event.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationIssue `json:"errors"`
}

// HasCode reports whether the result contains the given code.
func (r ValidationResult) HasCode(code string) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}
	return false
}
