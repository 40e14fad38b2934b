package domain

import (
	"errors"
	"sort"
	"strings"
)

// ErrBlankSkill is returned when a skill name is empty after trimming.
var ErrBlankSkill = errors.New("skill name cannot be blank")

// SkillRecord tracks how often a skill is demanded and what it has led to.
// Counts only ever grow.
type SkillRecord struct {
	Name        string   `json:"name"`
	Occurrences int      `json:"occurrences"`
	Interviews  int      `json:"interviews"`
	Offers      int      `json:"offers"`
	Notes       []string `json:"notes,omitempty"`
}

// SkillsInventory accumulates skill demand and outcome counters, keyed
// case-insensitively while preserving first-seen display casing.
type SkillsInventory struct {
	skills map[string]*SkillRecord
}

// NewSkillsInventory returns an empty inventory.
func NewSkillsInventory() *SkillsInventory {
	return &SkillsInventory{skills: make(map[string]*SkillRecord)}
}

func skillKey(name string) string {
	return foldText(strings.TrimSpace(name))
}

func (s *SkillsInventory) ensure(name string) (*SkillRecord, error) {
	key := skillKey(name)
	if key == "" {
		return nil, ErrBlankSkill
	}
	record, ok := s.skills[key]
	if !ok {
		record = &SkillRecord{Name: strings.TrimSpace(name)}
		s.skills[key] = record
	}
	return record, nil
}

// Observe accumulates one batch of observed skill names. Repeats within the
// batch count individually; blank entries are skipped.
func (s *SkillsInventory) Observe(names []string) {
	for _, name := range names {
		record, err := s.ensure(name)
		if err != nil {
			continue
		}
		record.Occurrences++
	}
}

// RecordInterview credits the skill with an interview, creating a zero-state
// record if it was never observed.
func (s *SkillsInventory) RecordInterview(name string) error {
	record, err := s.ensure(name)
	if err != nil {
		return err
	}
	record.Interviews++
	return nil
}

// RecordOffer credits the skill with an offer, creating a zero-state record
// if it was never observed.
func (s *SkillsInventory) RecordOffer(name string) error {
	record, err := s.ensure(name)
	if err != nil {
		return err
	}
	record.Offers++
	return nil
}

// AddNote attaches a free-text note to the skill.
func (s *SkillsInventory) AddNote(name, note string) error {
	record, err := s.ensure(name)
	if err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		record.Notes = append(record.Notes, trimmed)
	}
	return nil
}

// Get returns the record for the skill, or nil.
func (s *SkillsInventory) Get(name string) *SkillRecord {
	return s.skills[skillKey(name)]
}

// Len returns the number of distinct skills.
func (s *SkillsInventory) Len() int {
	return len(s.skills)
}

// SortedByOpportunity ranks skills by high demand and low conversion: the gap
// occurrences-interviews-offers descending, ties by occurrences descending,
// then name ascending. Skills worth closing rank first.
func (s *SkillsInventory) SortedByOpportunity() []*SkillRecord {
	records := make([]*SkillRecord, 0, len(s.skills))
	for _, record := range s.skills {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		gapI := records[i].Occurrences - records[i].Interviews - records[i].Offers
		gapJ := records[j].Occurrences - records[j].Interviews - records[j].Offers
		if gapI != gapJ {
			return gapI > gapJ
		}
		if records[i].Occurrences != records[j].Occurrences {
			return records[i].Occurrences > records[j].Occurrences
		}
		return foldText(records[i].Name) < foldText(records[j].Name)
	})
	return records
}

// Snapshot returns the inventory keyed by its normalized skill keys, for
// persistence.
func (s *SkillsInventory) Snapshot() map[string]*SkillRecord {
	out := make(map[string]*SkillRecord, len(s.skills))
	for key, record := range s.skills {
		out[key] = record
	}
	return out
}

// SkillsFromSnapshot rebuilds an inventory from persisted data. Records with
// missing names fall back to their key.
func SkillsFromSnapshot(snapshot map[string]*SkillRecord) *SkillsInventory {
	inventory := NewSkillsInventory()
	for key, record := range snapshot {
		if record == nil {
			continue
		}
		if record.Name == "" {
			record.Name = key
		}
		inventory.skills[key] = record
	}
	return inventory
}
