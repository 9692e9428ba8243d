// Package pipeline provides the pipeline definition store, the YAML
// definition codec, structural validation, and preset-directory watching.
package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/councilhq/council/pkg/models"
)

// Marshal encodes a pipeline definition as YAML.
func Marshal(p *models.Pipeline) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal pipeline %s: %w", p.ID, err)
	}
	return data, nil
}

// Unmarshal decodes a YAML pipeline definition. Missing enum fields are
// filled with their defaults so hand-written definitions stay terse.
func Unmarshal(data []byte) (*models.Pipeline, error) {
	var p models.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline: %w", err)
	}
	applyDefaults(&p)
	return &p, nil
}

// applyDefaults fills zero-valued enum fields with their defaults.
func applyDefaults(p *models.Pipeline) {
	for pi := range p.Phases {
		ph := &p.Phases[pi]
		if ph.Consolidation == "" {
			ph.Consolidation = models.ConsolidateLastAction
		}
		if ph.MergeSeparator == "" {
			ph.MergeSeparator = "\n\n---\n\n"
		}
		for ai := range ph.Actions {
			a := &ph.Actions[ai]
			if a.Type == "" {
				a.Type = models.ActionStandard
			}
			if a.Mode == "" {
				a.Mode = models.ExecSync
			}
			if a.Trigger == "" {
				a.Trigger = models.TriggerSequential
			}
		}
	}
}
