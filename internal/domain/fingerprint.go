package domain

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

func foldText(s string) string {
	return folder.String(s)
}

// normalizeText collapses internal whitespace and case-folds, yielding a
// stable key fragment for loosely formatted title/company text.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(foldText(s)), " ")
}

func urlKey(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	// Opaque URLs (mailto:jobs@acme.example) carry their identity in the
	// address, not in host/path.
	if parsed.Opaque != "" {
		return "url::" + strings.ToLower(parsed.Opaque)
	}
	host := strings.ToLower(parsed.Host)
	path := strings.TrimRight(parsed.Path, "/")
	if host == "" && path == "" {
		return ""
	}
	key := "url::" + host + path
	if parsed.RawQuery != "" {
		key += "?" + parsed.RawQuery
	}
	return key
}

func roleKey(title, company string) string {
	titleKey := normalizeText(title)
	companyKey := normalizeText(company)
	if titleKey == "" && companyKey == "" {
		return ""
	}
	return "role::" + companyKey + "::" + titleKey
}

// FingerprintKeys derives the canonical lookup keys for a posting, strongest
// first: URL identity, then the (company, title) role combination, then a
// title-only fallback so every posting yields at least one key. Two postings
// describing the same real-world job share at least one key.
//
// Pure and deterministic; callers register the keys as aliases of one
// canonical record.
func FingerprintKeys(p JobPosting) []string {
	var keys []string
	if key := urlKey(p.ApplyURL); key != "" {
		keys = append(keys, key)
	}
	if key := roleKey(p.Title, p.Company); key != "" {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		fallback := normalizeText(p.Title)
		if fallback == "" {
			fallback = "unknown"
		}
		keys = append(keys, "fallback::"+fallback)
	}
	return keys
}
