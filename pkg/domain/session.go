package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// FilingStatus is the federal filing status of the return.
type FilingStatus string

const (
	FilingSingle                    FilingStatus = "single"
	FilingMarriedJointly            FilingStatus = "married_filing_jointly"
	FilingMarriedSeparately         FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold           FilingStatus = "head_of_household"
	FilingQualifyingSurvivingSpouse FilingStatus = "qualifying_surviving_spouse"
)

// SessionParams is the fixed context of a session. It never changes
// mid-session: a new context means a new session.
type SessionParams struct {
	TaxYear        int            `json:"tax_year" yaml:"tax_year" validate:"required,gte=1900,lte=2100"`
	FilingStatus   FilingStatus   `json:"filing_status" yaml:"filing_status" validate:"required,oneof=single married_filing_jointly married_filing_separately head_of_household qualifying_surviving_spouse"`
	HasSecondFiler bool           `json:"has_second_filer" yaml:"has_second_filer"`
	SessionKey     string         `json:"session_key" yaml:"session_key"`
	Slots          map[string]int `json:"slots,omitempty" yaml:"slots,omitempty" validate:"omitempty,dive,gte=0"`
}

// SlotCount returns how many instances of a repeatable family exist.
func (p SessionParams) SlotCount(family string) int {
	return p.Slots[family]
}

// ScopeKey returns a canonical string of everything that influences
// materialization. Two params with the same key materialize the same nodes.
func (p SessionParams) ScopeKey() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%s|%t", p.TaxYear, p.FilingStatus, p.HasSecondFiler)
	families := make([]string, 0, len(p.Slots))
	for f := range p.Slots {
		families = append(families, f)
	}
	sort.Strings(families)
	for _, f := range families {
		fmt.Fprintf(&sb, "|%s=%d", f, p.Slots[f])
	}
	return sb.String()
}

// Scope decides in which sessions a node instance exists at all.
// The zero value materializes the node in every session.
type Scope struct {
	// SecondFilerOnly restricts the node to sessions that declare a second filer.
	SecondFilerOnly bool
	// FilingStatuses, when non-empty, restricts the node to these statuses.
	FilingStatuses []FilingStatus
	// MinYear and MaxYear bound the tax years (0 = unbounded).
	MinYear int
	MaxYear int
	// Family and Index place the node in a repeatable family. The instance
	// exists when Index < params.Slots[Family].
	Family string
	Index  int
	// When is an optional custom predicate evaluated after the fields above.
	When func(SessionParams) bool
}

// Materialized reports whether a node with this scope exists for params.
func (s Scope) Materialized(p SessionParams) bool {
	if s.SecondFilerOnly && !p.HasSecondFiler {
		return false
	}
	if len(s.FilingStatuses) > 0 && !slices.Contains(s.FilingStatuses, p.FilingStatus) {
		return false
	}
	if s.MinYear != 0 && p.TaxYear < s.MinYear {
		return false
	}
	if s.MaxYear != 0 && p.TaxYear > s.MaxYear {
		return false
	}
	if s.Family != "" && s.Index >= p.SlotCount(s.Family) {
		return false
	}
	if s.When != nil && !s.When(p) {
		return false
	}
	return true
}

// Session is the persisted unit: the params a session was created with and
// the latest state produced for it.
type Session struct {
	Params    SessionParams `json:"params"`
	State     *State        `json:"state"`
	Revision  int           `json:"revision"`
	UpdatedAt time.Time     `json:"updated_at"`
}
