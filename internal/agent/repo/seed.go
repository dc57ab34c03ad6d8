package repo

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/chative-realty/leadbot/internal/agent/model"
)

// Fixtures is the YAML seed format for agents and listings.
type Fixtures struct {
	Agents     []model.AgentConfig `yaml:"agents"`
	Properties []model.Property    `yaml:"properties"`
}

// LoadFixtures decodes and validates a fixtures document.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for _, a := range f.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agent %q has no id", a.Name)
		}
		for _, t := range a.EnabledTables {
			if !t.Known() {
				return nil, fmt.Errorf("agent %s: unknown table %q", a.ID, t)
			}
		}
	}
	for _, p := range f.Properties {
		if p.ID == "" || !p.Table.Known() {
			return nil, fmt.Errorf("property %q: id and a known table are required", p.Name)
		}
	}
	return &f, nil
}

// Seed upserts every agent and property in f.
func (s *SQLStore) Seed(ctx context.Context, f *Fixtures) error {
	for _, a := range f.Agents {
		if err := s.UpsertAgent(ctx, a); err != nil {
			return err
		}
	}
	for _, p := range f.Properties {
		if err := s.UpsertProperty(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
