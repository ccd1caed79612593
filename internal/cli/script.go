package cli

import (
	"fmt"
	"os"

	"github.com/paisatax/taxgraph/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Script is a recorded preparer session: the params that open it and the
// events to replay, in order.
//
//	session:
//	  tax_year: 2024
//	  filing_status: single
//	events:
//	  - {instance_id: w2.0.wages, value: 52000}
//	  - {instance_id: agi, value: 50000, source: override, override_note: amended}
type Script struct {
	Session domain.SessionParams `yaml:"session"`
	Events  []domain.InputEvent  `yaml:"events"`
}

// LoadScript reads a YAML event script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes a YAML event script. Events without a source are
// preparer entries.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	for i, ev := range s.Events {
		if ev.InstanceID == "" {
			return nil, fmt.Errorf("event %d: missing instance_id", i)
		}
		if ev.Source == "" {
			s.Events[i].Source = domain.SourcePreparer
		}
	}
	return &s, nil
}
