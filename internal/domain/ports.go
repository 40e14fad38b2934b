package domain

import (
	"context"
	"errors"
)

// ErrDependencyMissing is returned by collaborators whose backing tool or
// service is unavailable, so the driver can log a remediation hint instead of
// a generic failure.
var ErrDependencyMissing = errors.New("collaborator dependency missing")

// Assessment is the fit scorer's verdict on a posting. The core consumes
// RequiredSkills and MatchScore; the rest is advisory.
type Assessment struct {
	RequiredSkills []string
	MatchedSkills  []string
	MissingSkills  []string
	MatchScore     float64
	Advice         []string
}

// FitScorer is the driven port for profile-vs-posting analysis.
type FitScorer interface {
	Analyse(profile *Profile, posting JobPosting) (*Assessment, error)
}

// DocumentRenderer is the driven port for tailored document generation.
type DocumentRenderer interface {
	RenderResume(profile *Profile, posting JobPosting, assessment *Assessment, style string) (string, error)
	RenderCoverLetter(profile *Profile, posting JobPosting, assessment *Assessment, style string) (string, error)
}

// Submitter is the driven port for browser-based form submission. A true
// result means a submit action was attempted, false means no submit control
// was found; both are distinct from an error.
type Submitter interface {
	Submit(ctx context.Context, profile *Profile, posting JobPosting, resumePath, coverLetterPath string, dryRun bool) (bool, error)
}

// Mailer is the driven port for email-based applications, used when the
// posting resolves to an email address.
type Mailer interface {
	Send(ctx context.Context, profile *Profile, posting JobPosting, resumePath, coverLetterPath string, dryRun bool) (bool, error)
}
