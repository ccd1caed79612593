package runtime

import (
	"fmt"
	"strings"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/schema"
)

// Validate checks event against the catalog and state without applying it.
// All applicable failures are reported, not only the first.
func (e *Engine) Validate(event domain.InputEvent, state *domain.State) domain.ValidationResult {
	id := event.InstanceID
	def, known := e.catalog.Graph().Node(id)
	if !known || !state.Has(id) {
		return invalid(domain.ValidationIssue{
			Code:    domain.CodeNodeNotFound,
			NodeID:  id,
			Message: fmt.Sprintf("node %q is not part of this session", id),
		})
	}

	var issues []domain.ValidationIssue
	switch event.Source {
	case "", domain.SourcePreparer, domain.SourceOCR:
		if def.IsComputed() {
			issues = append(issues, domain.ValidationIssue{
				Code:    domain.CodeNodeIsComputed,
				NodeID:  id,
				Message: "computed nodes only accept override events",
			})
		}
	case domain.SourceOverride:
		if strings.TrimSpace(event.OverrideNote) == "" {
			issues = append(issues, domain.ValidationIssue{
				Code:    domain.CodeOverrideRequiresNote,
				NodeID:  id,
				Message: "override events must carry a note",
			})
		}
	case domain.SourceClearOverride:
		if state.Status(id) != domain.StatusOverride {
			issues = append(issues, domain.ValidationIssue{
				Code:    domain.CodeNotOverridden,
				NodeID:  id,
				Message: fmt.Sprintf("node %q is not overridden", id),
			})
		}
		// The value of a clear event is ignored.
		return result(issues)
	default:
		issues = append(issues, domain.ValidationIssue{
			Code:    domain.CodeInvalidSource,
			NodeID:  id,
			Message: fmt.Sprintf("unknown event source %q", event.Source),
		})
	}

	for _, ve := range schema.ValidationErrors(schema.Check(id, def.Constraints, event.Value)) {
		issues = append(issues, domain.ValidationIssue{Code: ve.Code, NodeID: id, Message: ve.Reason})
	}
	return result(issues)
}

func invalid(issues ...domain.ValidationIssue) domain.ValidationResult {
	return domain.ValidationResult{Valid: false, Errors: issues}
}

func result(issues []domain.ValidationIssue) domain.ValidationResult {
	if len(issues) == 0 {
		return domain.ValidationResult{Valid: true, Errors: []domain.ValidationIssue{}}
	}
	return invalid(issues...)
}
