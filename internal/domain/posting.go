package domain

import (
	"net/url"
	"strings"
)

// JobPosting is a job opportunity as produced by discovery. Immutable once
// created; reconstructed verbatim from persisted snapshots.
type JobPosting struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Company       string   `json:"company"`
	Location      string   `json:"location,omitempty"`
	SalaryText    string   `json:"salary_text,omitempty"`
	Description   string   `json:"description,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	FelonFriendly *bool    `json:"felon_friendly,omitempty"`
	ApplyURL      string   `json:"apply_url,omitempty"`
	ContactEmail  string   `json:"contact_email,omitempty"`
}

// JobID returns the natural key for the posting: the external id when
// present, otherwise "title@company".
func (p JobPosting) JobID() string {
	if p.ID != "" {
		return p.ID
	}
	return p.Title + "@" + p.Company
}

// EmailAddress resolves the address for an email-based application path: the
// contact email when set, otherwise the address of a mailto apply URL.
// Returns "" when the posting has no email path.
func (p JobPosting) EmailAddress() string {
	if p.ContactEmail != "" {
		return p.ContactEmail
	}
	if strings.HasPrefix(p.ApplyURL, "mailto:") {
		if parsed, err := url.Parse(p.ApplyURL); err == nil {
			return parsed.Opaque
		}
	}
	return ""
}

// DedupeTags returns tags with duplicates removed case-insensitively,
// preserving input order and first-seen casing.
func DedupeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		key := foldText(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}
