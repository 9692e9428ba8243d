package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/councilhq/council/internal/persist"
	"github.com/councilhq/council/pkg/models"
)

// Store holds pipeline definitions. Definitions are templates: the
// engine copies them into runs and never mutates the stored value.
type Store struct {
	pipelines map[string]*models.Pipeline
	backing   persist.Store
	mu        sync.RWMutex
}

// NewStore creates a Store. backing may be nil for a purely in-memory
// store (used by tests and one-shot CLI runs).
func NewStore(backing persist.Store) *Store {
	return &Store{
		pipelines: make(map[string]*models.Pipeline),
		backing:   backing,
	}
}

// Put registers a pipeline definition, persisting it when a backing
// store is configured. A missing ID is filled in.
func (s *Store) Put(p *models.Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline is nil")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()[:8]
	}

	s.mu.Lock()
	s.pipelines[p.ID] = p
	s.mu.Unlock()

	if s.backing != nil {
		data, err := Marshal(p)
		if err != nil {
			return err
		}
		if err := s.backing.Save(p.ID, data, persist.ScopePipeline); err != nil {
			return fmt.Errorf("persist pipeline %s: %w", p.ID, err)
		}
	}
	return nil
}

// Get returns a deep copy of the pipeline with the given ID, or nil.
// Copies keep run-time state from leaking back into the template.
func (s *Store) Get(id string) *models.Pipeline {
	s.mu.RLock()
	p, ok := s.pipelines[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return clonePipeline(p)
}

// List returns copies of all pipelines, sorted by ID.
func (s *Store) List() []*models.Pipeline {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, clonePipeline(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes a pipeline from the store and its backing.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	delete(s.pipelines, id)
	s.mu.Unlock()

	if s.backing != nil {
		return s.backing.Delete(id, persist.ScopePipeline)
	}
	return nil
}

// LoadDir loads every *.yaml / *.yml definition in dir into the store.
// Returns the number of pipelines loaded.
func (s *Store) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read pipeline directory: %w", err)
	}

	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("read %s: %w", path, err)
		}
		p, err := Unmarshal(data)
		if err != nil {
			log.Printf("[pipeline] skipping %s: %v", path, err)
			continue
		}
		if p.ID == "" {
			p.ID = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		s.mu.Lock()
		s.pipelines[p.ID] = p
		s.mu.Unlock()
		loaded++
	}
	return loaded, nil
}

// ExportPreset serializes all pipeline definitions as one YAML document
// stream.
func (s *Store) ExportPreset() ([]byte, error) {
	var b strings.Builder
	for _, p := range s.List() {
		data, err := Marshal(p)
		if err != nil {
			return nil, err
		}
		b.WriteString("---\n")
		b.Write(data)
	}
	return []byte(b.String()), nil
}

// ApplyPreset loads pipelines from a YAML document stream, replacing
// entries with matching IDs.
func (s *Store) ApplyPreset(data []byte) error {
	docs := strings.Split(string(data), "\n---\n")
	for _, doc := range docs {
		doc = strings.TrimPrefix(doc, "---\n")
		if strings.TrimSpace(doc) == "" {
			continue
		}
		p, err := Unmarshal([]byte(doc))
		if err != nil {
			return err
		}
		if err := s.Put(p); err != nil {
			return err
		}
	}
	return nil
}

func isYAML(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// clonePipeline deep-copies a pipeline definition.
func clonePipeline(p *models.Pipeline) *models.Pipeline {
	cp := *p
	cp.Phases = make([]models.Phase, len(p.Phases))
	for i := range p.Phases {
		ph := p.Phases[i]
		ph.Actions = append([]models.Action(nil), p.Phases[i].Actions...)
		for ai := range ph.Actions {
			a := &ph.Actions[ai]
			a.Participants.AgentIDs = append([]string(nil), a.Participants.AgentIDs...)
			a.Participants.PositionIDs = append([]string(nil), a.Participants.PositionIDs...)
			a.Participants.CandidateAgentIDs = append([]string(nil), a.Participants.CandidateAgentIDs...)
		}
		cp.Phases[i] = ph
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
