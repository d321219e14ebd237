package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is the on-disk form of a target selection: explicit ids, network
// addresses and tag selectors in one file.
type Plan struct {
	IDs       []string  `yaml:"ids,omitempty"`
	Addresses []string  `yaml:"addresses,omitempty"`
	Tags      []PlanTag `yaml:"tags,omitempty"`
}

// PlanTag is one tag selector within a plan.
type PlanTag struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Specs converts the plan into target specs, skipping blank entries.
func (p Plan) Specs() ([]TargetSpec, error) {
	var specs []TargetSpec
	for _, id := range p.IDs {
		if id = strings.TrimSpace(id); id != "" {
			specs = append(specs, ExplicitID(id))
		}
	}
	for _, addr := range p.Addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			specs = append(specs, Address(addr))
		}
	}
	for _, tag := range p.Tags {
		if tag.Key == "" {
			return nil, errors.New("plan tag selector missing key")
		}
		specs = append(specs, Tag(tag.Key, tag.Value))
	}
	if len(specs) == 0 {
		return nil, errors.New("plan selects no targets")
	}
	return specs, nil
}

// LoadPlan parses a YAML plan file into target specs.
func LoadPlan(path string) ([]TargetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}

	return plan.Specs()
}
