package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/councilhq/council/pkg/models"
)

// DeliveryMode selects how finalized output reaches the external host.
type DeliveryMode string

const (
	// ModeSynthesis appends the final text as a host message.
	ModeSynthesis DeliveryMode = "synthesis"
	// ModeCompilation hands the final text to the host as a generation
	// prompt via the delivery slot instead of a direct message.
	ModeCompilation DeliveryMode = "compilation"
	// ModeInjection substitutes mapped content into the host's own
	// prompt construction via the before-generation hook.
	ModeInjection DeliveryMode = "injection"
)

// Valid returns true if the mode is a known value.
func (m DeliveryMode) Valid() bool {
	switch m {
	case ModeSynthesis, ModeCompilation, ModeInjection:
		return true
	default:
		return false
	}
}

// PromptSlot is the engine-owned compilation handoff: an explicit slot
// the host reads before it generates, replacing what would otherwise be
// an ambient global. Take clears the slot; Set overwrites any previous
// value.
type PromptSlot struct {
	mu    sync.Mutex
	text  string
	valid bool
}

// Set stores text in the slot, overwriting any previous value.
func (s *PromptSlot) Set(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.valid = true
}

// Take returns the slot contents and clears it. The boolean reports
// whether the slot held a value.
func (s *PromptSlot) Take() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.text, s.valid
	s.text, s.valid = "", false
	return text, ok
}

// Peek returns the slot contents without clearing.
func (s *PromptSlot) Peek() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text, s.valid
}

// Clear empties the slot.
func (s *PromptSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text, s.valid = "", false
}

// cachedResult is one TTL-bound injection retrieval result.
type cachedResult struct {
	text      string
	fetchedAt time.Time
}

// DeliveryAdapter applies the active delivery mode against the external
// host on run completion, and serves the injection-mode
// before-generation hook.
type DeliveryAdapter struct {
	host    Host
	curator Curator
	slot    *PromptSlot

	mu       sync.RWMutex
	mappings map[string]models.TokenMapping
	cache    map[string]cachedResult
	cacheTTL time.Duration
	now      func() time.Time
}

// NewDeliveryAdapter creates a DeliveryAdapter. cacheTTL bounds how long
// injection retrieval results are reused; zero disables caching.
func NewDeliveryAdapter(host Host, curator Curator, cacheTTL time.Duration) *DeliveryAdapter {
	return &DeliveryAdapter{
		host:     host,
		curator:  curator,
		slot:     &PromptSlot{},
		mappings: make(map[string]models.TokenMapping),
		cache:    make(map[string]cachedResult),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Slot returns the compilation delivery slot. The host holds this by
// reference and reads it before generating.
func (d *DeliveryAdapter) Slot() *PromptSlot {
	return d.slot
}

// Deliver applies the mode to a run's final output. Injection mode does
// not deliver per-run output; its work happens in BeforeGeneration.
func (d *DeliveryAdapter) Deliver(mode DeliveryMode, run *models.Run) error {
	switch mode {
	case ModeSynthesis:
		if d.host == nil {
			return fmt.Errorf("no host configured")
		}
		return d.host.AppendMessage(run.FinalOutput, map[string]string{
			"run_id":      run.ID,
			"pipeline_id": run.PipelineID,
		})
	case ModeCompilation:
		d.slot.Set(run.FinalOutput)
		if d.host == nil {
			return nil
		}
		return d.host.ProvideGenerationPrompt(run.FinalOutput)
	case ModeInjection:
		// Nothing to deliver at completion; mappings drive the hook.
		return nil
	default:
		return fmt.Errorf("unknown delivery mode %q", mode)
	}
}

// MapToken registers or replaces a token mapping for injection mode.
func (d *DeliveryAdapter) MapToken(m models.TokenMapping) error {
	if m.SourceToken == "" {
		return fmt.Errorf("token mapping has no source token")
	}
	if m.RAGPipelineID == "" && m.StaticValue == "" {
		return fmt.Errorf("token mapping %s has neither pipeline nor static value", m.SourceToken)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.mappings[m.SourceToken] = m
	delete(d.cache, m.SourceToken)
	return nil
}

// UnmapToken removes a token mapping and its cached result.
func (d *DeliveryAdapter) UnmapToken(sourceToken string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.mappings, sourceToken)
	delete(d.cache, sourceToken)
}

// Mappings returns a copy of the active token mappings.
func (d *DeliveryAdapter) Mappings() []models.TokenMapping {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]models.TokenMapping, 0, len(d.mappings))
	for _, m := range d.mappings {
		out = append(out, m)
	}
	return out
}

// BeforeGeneration is the injection-mode hook the host invokes before
// building its own prompt. For each placeholder with an enabled mapping
// it returns the substitution text, executing the mapped retrieval
// pipeline with per-mapping TTL caching. Placeholders without mappings
// are omitted so the host leaves them untouched.
func (d *DeliveryAdapter) BeforeGeneration(ctx context.Context, placeholders []string) (map[string]string, error) {
	subs := make(map[string]string)

	for _, ph := range placeholders {
		d.mu.RLock()
		m, ok := d.mappings[ph]
		d.mu.RUnlock()
		if !ok || !m.Enabled {
			continue
		}

		if m.StaticValue != "" {
			subs[ph] = m.StaticValue
			continue
		}

		text, err := d.retrieve(ctx, ph, m)
		if err != nil {
			log.Printf("[delivery] token %s: retrieval failed: %v", ph, err)
			continue
		}
		subs[ph] = text
	}
	return subs, nil
}

// retrieve executes a mapping's pipeline, serving a cached result while
// it is fresh.
func (d *DeliveryAdapter) retrieve(ctx context.Context, token string, m models.TokenMapping) (string, error) {
	if d.cacheTTL > 0 {
		d.mu.RLock()
		c, ok := d.cache[token]
		d.mu.RUnlock()
		if ok && d.now().Sub(c.fetchedAt) < d.cacheTTL {
			return c.text, nil
		}
	}

	if d.curator == nil {
		return "", fmt.Errorf("no curator configured")
	}
	query := fmt.Sprintf("token=%s max_results=%d format=%s", token, m.MaxResults, m.OutputFormat)
	text, err := d.curator.ExecutePipeline(ctx, m.RAGPipelineID, query)
	if err != nil {
		return "", err
	}

	if d.cacheTTL > 0 {
		d.mu.Lock()
		d.cache[token] = cachedResult{text: text, fetchedAt: d.now()}
		d.mu.Unlock()
	}
	return text, nil
}
