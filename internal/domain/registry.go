package domain

import "time"

// AppliedJobRecord describes when a distinct job was last actioned.
type AppliedJobRecord struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	ApplyURL    string    `json:"apply_url,omitempty"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	LastStatus  string    `json:"last_status,omitempty"`
	Occurrences int       `json:"occurrences"`
}

// Touch registers another sighting of the same job.
func (r *AppliedJobRecord) Touch(status string) {
	r.LastSeenAt = time.Now()
	if status != "" {
		r.LastStatus = status
	}
	r.Occurrences++
}

// Registry maps every known fingerprint alias to a canonical record. It only
// grows; a personal job hunt accumulates history, it never forgets it.
//
// Invariant: every alias resolves to an existing record, and to exactly one.
// When Record re-aliases a key that pointed at a different record, the alias
// follows the new match (last write wins) but the old record is never merged
// or deleted; it stays reachable via its primary key and remaining aliases.
type Registry struct {
	Records map[string]*AppliedJobRecord
	Aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Records: make(map[string]*AppliedJobRecord),
		Aliases: make(map[string]string),
	}
}

// Find returns the record the posting resolves to, or nil. Does not mutate.
func (r *Registry) Find(posting JobPosting) *AppliedJobRecord {
	for _, key := range FingerprintKeys(posting) {
		target, ok := r.Aliases[key]
		if !ok {
			target = key
		}
		if record, ok := r.Records[target]; ok {
			return record
		}
	}
	return nil
}

// Record registers a sighting of the posting. An equivalent posting touches
// the existing record (last seen, occurrences, status, refreshed
// title/company/url) and registers the posting's current keys as aliases of
// it, so a slightly changed URL resolves next time too. A novel posting
// creates a record keyed by its strongest fingerprint.
//
// Recording an equivalent posting twice yields one record with two
// occurrences, which is the idempotence contract the rest of the system
// leans on.
func (r *Registry) Record(posting JobPosting, status string) *AppliedJobRecord {
	keys := FingerprintKeys(posting)

	var existing *AppliedJobRecord
	for _, key := range keys {
		if target, ok := r.Aliases[key]; ok {
			if record, ok := r.Records[target]; ok {
				existing = record
				break
			}
		}
	}

	if existing != nil {
		existing.Touch(status)
		for _, key := range keys {
			r.Aliases[key] = existing.Key
		}
		if posting.ApplyURL != "" {
			existing.ApplyURL = posting.ApplyURL
		}
		if posting.Company != "" {
			existing.Company = posting.Company
		}
		if posting.Title != "" {
			existing.Title = posting.Title
		}
		return existing
	}

	now := time.Now()
	record := &AppliedJobRecord{
		Key:         keys[0],
		Title:       posting.Title,
		Company:     posting.Company,
		ApplyURL:    posting.ApplyURL,
		FirstSeenAt: now,
		LastSeenAt:  now,
		LastStatus:  status,
		Occurrences: 1,
	}
	r.Records[keys[0]] = record
	for _, key := range keys {
		r.Aliases[key] = keys[0]
	}
	return record
}

// Len returns the number of distinct records.
func (r *Registry) Len() int {
	return len(r.Records)
}
