package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRuleFile is returned when a rule file fails validation.
var ErrInvalidRuleFile = errors.New("invalid rule file")

// File is the on-disk representation of a rule catalog.
type File struct {
	Name     string                `yaml:"name" json:"name" validate:"required"`
	Version  string                `yaml:"version" json:"version"`
	Families map[string]FamilySpec `yaml:"families" json:"families" validate:"omitempty,dive"`
	Nodes    []NodeSpec            `yaml:"nodes" json:"nodes" validate:"required,min=1,dive"`
}

// FamilySpec declares a repeatable group of nodes, such as one set of
// lines per W-2. Max bounds how many instances a session may open.
type FamilySpec struct {
	Description string `yaml:"description" json:"description"`
	Max         int    `yaml:"max" json:"max" validate:"gte=1,lte=100"`
}

// NodeSpec declares one node, or one node per family instance when Family
// is set. Inside a family template "{i}" in ids and deps is replaced by
// the instance index; "family.*.name" in deps expands to every instance.
type NodeSpec struct {
	ID          string         `yaml:"id" json:"id" validate:"required"`
	Kind        string         `yaml:"kind" json:"kind" validate:"required,oneof=input computed"`
	Description string         `yaml:"description" json:"description"`
	Type        string         `yaml:"type" json:"type"`
	NonNegative bool           `yaml:"non_negative" json:"non_negative"`
	Min         *float64       `yaml:"min" json:"min"`
	Max         *float64       `yaml:"max" json:"max"`
	Default     any            `yaml:"default" json:"default"`
	Family      string         `yaml:"family" json:"family"`
	Op          string         `yaml:"op" json:"op" validate:"required_if=Kind computed,excluded_if=Kind input"`
	Deps        []string       `yaml:"deps" json:"deps" validate:"excluded_if=Kind input"`
	Params      map[string]any `yaml:"params" json:"params"`
	Floor       *float64       `yaml:"floor" json:"floor"`
	Cap         *float64       `yaml:"cap" json:"cap"`
	When        []Condition    `yaml:"when" json:"when" validate:"omitempty,dive"`
	Scope       ScopeSpec      `yaml:"scope" json:"scope"`
}

// Condition is one clause of an applicability predicate. All clauses of a
// node must hold for it to apply.
type Condition struct {
	Node  string `yaml:"node" json:"node" validate:"required"`
	Op    string `yaml:"op" json:"op" validate:"required,oneof=gt gte lt lte eq ne set unset true false"`
	Value any    `yaml:"value" json:"value"`
}

// ScopeSpec restricts which sessions materialize the node.
type ScopeSpec struct {
	SecondFilerOnly bool     `yaml:"second_filer_only" json:"second_filer_only"`
	FilingStatuses  []string `yaml:"filing_statuses" json:"filing_statuses" validate:"omitempty,dive,oneof=single married_filing_jointly married_filing_separately head_of_household qualifying_surviving_spouse"`
	MinYear         int      `yaml:"min_year" json:"min_year" validate:"omitempty,gte=1900"`
	MaxYear         int      `yaml:"max_year" json:"max_year" validate:"omitempty,gte=1900"`
}

var fileValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads a rule file (YAML or JSON by extension).
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var f *File
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		f, err = ParseJSON(data)
	} else {
		f, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a YAML rule file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseJSON decodes and validates a JSON rule file.
func ParseJSON(data []byte) (*File, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks field-level rules and references to families.
// Graph-level checks (cycles, unknown dependencies) happen at registration.
func (f *File) Validate() error {
	if err := fileValidator.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRuleFile, err)
	}
	for _, n := range f.Nodes {
		if strings.ContainsAny(n.ID, " \t\n") {
			return fmt.Errorf("%w: node %q: ids may not contain whitespace", ErrInvalidRuleFile, n.ID)
		}
		if n.Family != "" {
			if _, ok := f.Families[n.Family]; !ok {
				return fmt.Errorf("%w: node %q: unknown family %q", ErrInvalidRuleFile, n.ID, n.Family)
			}
		}
		if n.Kind == "computed" {
			if _, ok := operators[n.Op]; !ok {
				return fmt.Errorf("%w: node %q: unknown op %q", ErrInvalidRuleFile, n.ID, n.Op)
			}
		}
	}
	return nil
}
