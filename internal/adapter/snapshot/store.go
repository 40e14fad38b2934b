// Package snapshot persists the combined assistant state as one JSON
// document: profile, skills inventory, application queue and applied-job
// history are always written together, so the file is a consistent
// point-in-time snapshot of all four.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/appcron/internal/domain"
)

// Store reads and writes the snapshot file.
type Store struct {
	path string
}

// New creates a store for the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

type historySnapshot struct {
	Records []*domain.AppliedJobRecord `json:"records"`
	Aliases map[string]string          `json:"aliases"`
}

// loadState tolerates malformed queue entries by deferring their decoding.
type loadState struct {
	Profile *domain.Profile                `json:"profile"`
	Skills  map[string]*domain.SkillRecord `json:"skills"`
	Queue   []json.RawMessage              `json:"queue"`
	History *historySnapshot               `json:"history"`
}

type saveState struct {
	Profile *domain.Profile                `json:"profile,omitempty"`
	Skills  map[string]*domain.SkillRecord `json:"skills,omitempty"`
	Queue   []*domain.Application          `json:"queue"`
	History historySnapshot                `json:"history"`
}

// Load restores the persisted state. A missing or unreadable store file is
// empty state, not an error: queue and registry come back empty but valid,
// profile and inventory come back nil so the caller can apply its own
// defaults. Individual malformed queue entries never abort the load; each
// becomes a "failed" placeholder task carrying the parse error in its notes.
func (s *Store) Load() (*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry, error) {
	queue := domain.NewQueue()
	registry := domain.NewRegistry()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("snapshot: cannot read %s, starting empty: %v", s.path, err)
		}
		return nil, nil, queue, registry, nil
	}

	var state loadState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("snapshot: corrupt store %s, starting empty: %v", s.path, err)
		return nil, nil, queue, registry, nil
	}

	items := make([]*domain.Application, 0, len(state.Queue))
	for _, raw := range state.Queue {
		items = append(items, decodeApplication(raw))
	}
	queue = domain.QueueFromItems(items)

	if state.History != nil {
		for _, record := range state.History.Records {
			if record != nil && record.Key != "" {
				registry.Records[record.Key] = record
			}
		}
		for alias, target := range state.History.Aliases {
			if _, ok := registry.Records[target]; ok {
				registry.Aliases[alias] = target
			}
		}
	}

	var inventory *domain.SkillsInventory
	if state.Skills != nil {
		inventory = domain.SkillsFromSnapshot(state.Skills)
	}

	return state.Profile, inventory, queue, registry, nil
}

// decodeApplication parses one queue entry, yielding a placeholder task when
// the entry cannot be decoded so the rest of the queue still loads.
func decodeApplication(raw json.RawMessage) *domain.Application {
	var app domain.Application
	err := json.Unmarshal(raw, &app)
	if err == nil && app.ApplyAt.IsZero() {
		err = fmt.Errorf("missing apply_at")
	}
	if err != nil {
		broken := domain.NewApplication(domain.JobPosting{Title: "Unknown", Company: "Unknown"}, time.Now())
		broken.Status = domain.StatusFailed
		broken.Notes = []string{"Could not load entry: " + err.Error()}
		return broken
	}
	if app.Status == "" {
		app.Status = domain.StatusPending
	}
	if app.ResumeStyle == "" {
		app.ResumeStyle = domain.DefaultStyle
	}
	if app.CoverLetterStyle == "" {
		app.CoverLetterStyle = domain.DefaultStyle
	}
	return &app
}

// Save writes the combined state as one document, replacing the whole file
// via write-to-temp plus rename so a crash mid-write can never leave a
// half-updated store behind.
func (s *Store) Save(profile *domain.Profile, inventory *domain.SkillsInventory, queue *domain.Queue, registry *domain.Registry) error {
	if queue == nil {
		queue = domain.NewQueue()
	}
	if registry == nil {
		registry = domain.NewRegistry()
	}

	state := saveState{
		Profile: profile,
		Queue:   queue.Items(),
		History: historySnapshot{
			Records: make([]*domain.AppliedJobRecord, 0, registry.Len()),
			Aliases: registry.Aliases,
		},
	}
	if state.Queue == nil {
		state.Queue = []*domain.Application{}
	}
	if inventory != nil {
		state.Skills = inventory.Snapshot()
	}
	for _, record := range registry.Records {
		state.History.Records = append(state.History.Records, record)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".appcron-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
