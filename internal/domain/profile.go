package domain

import (
	"strings"
	"time"
)

// JobPreferences are the filters applied when ranking opportunities.
type JobPreferences struct {
	MinSalary         int      `json:"min_salary,omitempty" yaml:"min_salary"`
	Locations         []string `json:"locations,omitempty" yaml:"locations"`
	FocusDomains      []string `json:"focus_domains,omitempty" yaml:"focus_domains"`
	FelonFriendlyOnly bool     `json:"felon_friendly_only,omitempty" yaml:"felon_friendly_only"`
}

// Experience is a single work history item.
type Experience struct {
	Company      string     `json:"company" yaml:"company"`
	Role         string     `json:"role" yaml:"role"`
	StartDate    time.Time  `json:"start_date" yaml:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty" yaml:"end_date"`
	Achievements []string   `json:"achievements,omitempty" yaml:"achievements"`
}

// Current reports whether the position is ongoing.
func (e Experience) Current() bool {
	return e.EndDate == nil || e.EndDate.After(time.Now())
}

// Profile describes the job-seeker the assistant applies on behalf of.
type Profile struct {
	Name           string            `json:"name" yaml:"name"`
	Email          string            `json:"email" yaml:"email"`
	Phone          string            `json:"phone,omitempty" yaml:"phone"`
	Summary        string            `json:"summary,omitempty" yaml:"summary"`
	Skills         []string          `json:"skills,omitempty" yaml:"skills"`
	Certifications []string          `json:"certifications,omitempty" yaml:"certifications"`
	Experiences    []Experience      `json:"experiences,omitempty" yaml:"experiences"`
	Preferences    JobPreferences    `json:"job_preferences" yaml:"job_preferences"`
	Notes          map[string]string `json:"additional_notes,omitempty" yaml:"additional_notes"`
}

// AddSkill appends a skill unless it is already present, compared
// case-insensitively.
func (p *Profile) AddSkill(skill string) {
	trimmed := strings.TrimSpace(skill)
	if trimmed == "" {
		return
	}
	key := foldText(trimmed)
	for _, existing := range p.Skills {
		if foldText(existing) == key {
			return
		}
	}
	p.Skills = append(p.Skills, trimmed)
}

// UpdateContact overwrites any non-empty contact fields.
func (p *Profile) UpdateContact(email, phone string) {
	if email != "" {
		p.Email = email
	}
	if phone != "" {
		p.Phone = phone
	}
}

// AddNote stores a free-form note under a topic.
func (p *Profile) AddNote(topic, note string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	if p.Notes == nil {
		p.Notes = make(map[string]string)
	}
	p.Notes[topic] = strings.TrimSpace(note)
}
