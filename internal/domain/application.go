package domain

import (
	"strings"
	"time"
)

// Application statuses. Any recorded outcome (interview, offer, rejected,
// ghosted, ...) becomes the status verbatim, so the set is open-ended; only
// pending tasks are eligible for scheduling.
const (
	StatusPending = "pending"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// DefaultStyle is the document style used when none is requested.
const DefaultStyle = "traditional"

const noteTimeLayout = "2006-01-02T15:04:05"

// Application is one queued application task for a posting.
type Application struct {
	Posting           JobPosting `json:"posting"`
	ApplyAt           time.Time  `json:"apply_at"`
	Status            string     `json:"status"`
	ResumePath        string     `json:"resume_path,omitempty"`
	CoverLetterPath   string     `json:"cover_letter_path,omitempty"`
	ResumeStyle       string     `json:"resume_style"`
	CoverLetterStyle  string     `json:"cover_letter_style"`
	Notes             []string   `json:"notes,omitempty"`
	Attempts          int        `json:"attempts"`
	LastError         string     `json:"last_error,omitempty"`
	Outcome           string     `json:"outcome,omitempty"`
	OutcomeRecordedAt *time.Time `json:"outcome_recorded_at,omitempty"`
}

// NewApplication creates a pending task for the posting, due at applyAt.
func NewApplication(posting JobPosting, applyAt time.Time) *Application {
	return &Application{
		Posting:          posting,
		ApplyAt:          applyAt,
		Status:           StatusPending,
		ResumeStyle:      DefaultStyle,
		CoverLetterStyle: DefaultStyle,
	}
}

// JobID is the task's natural key within the queue.
func (a *Application) JobID() string {
	return a.Posting.JobID()
}

// Pending reports whether the task is still eligible for a due check.
func (a *Application) Pending() bool {
	return a.Status == StatusPending
}

// MarkSuccess records a submitted application: status and outcome become
// "applied", the attempt counts, and any previous error is cleared.
func (a *Application) MarkSuccess() {
	now := time.Now()
	a.Status = StatusApplied
	a.Attempts++
	a.LastError = ""
	a.Notes = append(a.Notes, "Applied successfully on "+now.Format(noteTimeLayout))
	a.Outcome = StatusApplied
	a.OutcomeRecordedAt = &now
}

// MarkFailure records a failed attempt. The task stays pending; failures
// requeue work, they never drop it.
func (a *Application) MarkFailure(errMsg string) {
	a.Status = StatusPending
	a.Attempts++
	a.LastError = errMsg
	a.Notes = append(a.Notes, "Attempt failed on "+time.Now().Format(noteTimeLayout)+": "+errMsg)
}

// Defer moves the due time. Callers own backoff policy; no validation that
// the new time is in the future.
func (a *Application) Defer(newTime time.Time) {
	a.ApplyAt = newTime
}

// RecordOutcome registers an asynchronously learned result (interview, offer,
// rejected, ghosted, ...). The lower-cased outcome becomes both the outcome
// and the status, freezing the retry path without touching the attempt count.
func (a *Application) RecordOutcome(outcome, note string) {
	normalized := strings.ToLower(strings.TrimSpace(outcome))
	now := time.Now()
	a.Outcome = normalized
	a.OutcomeRecordedAt = &now
	a.Status = normalized
	a.Notes = append(a.Notes, "Outcome recorded ("+normalized+") on "+now.Format(noteTimeLayout)+".")
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		a.Notes = append(a.Notes, trimmed)
	}
}
