package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidPosting = errors.New("posting needs a title or company")
	ErrDuplicate      = errors.New("equivalent posting already queued")
	ErrAlreadyApplied = errors.New("posting already actioned")
	ErrNotFound       = errors.New("application not found")
)

// Decision classifies a discovered posting against the queue and registry.
type Decision string

const (
	DecisionNew     Decision = "new"
	DecisionQueued  Decision = "queued"
	DecisionApplied Decision = "applied"
)

// Screener makes the new / duplicate / already-applied call for incoming
// postings and owns validated enqueueing.
type Screener struct {
	queue    *Queue
	registry *Registry
}

// NewScreener creates a Screener over the given queue and registry.
func NewScreener(queue *Queue, registry *Registry) *Screener {
	return &Screener{queue: queue, registry: registry}
}

// Screen classifies the posting. Registry hits win over queue hits: a job we
// already actioned stays "applied" even if a stale task lingers in the queue.
func (s *Screener) Screen(posting JobPosting) Decision {
	if s.registry.Find(posting) != nil {
		return DecisionApplied
	}
	if s.queue.FindMatching(posting) != nil {
		return DecisionQueued
	}
	return DecisionNew
}

// Enqueue validates the posting, screens it, and adds a pending task due at
// applyAt. Duplicate and already-applied postings are rejected unless force
// is set; a forced re-add goes through the queue's replace-and-merge path,
// refreshing the task while keeping its history.
func (s *Screener) Enqueue(posting JobPosting, applyAt time.Time, force bool) (*Application, error) {
	if posting.Title == "" && posting.Company == "" {
		return nil, ErrInvalidPosting
	}
	if !force {
		switch s.Screen(posting) {
		case DecisionApplied:
			return nil, ErrAlreadyApplied
		case DecisionQueued:
			return nil, ErrDuplicate
		}
	}
	posting.Tags = DedupeTags(posting.Tags)
	app := NewApplication(posting, applyAt)
	s.queue.Add(app)
	return app, nil
}

// RecordOutcome applies an asynchronously learned outcome to a queued task
// and mirrors it into the registry so future discovery resolves the job as
// actioned.
func (s *Screener) RecordOutcome(jobID, outcome, note string) (*Application, error) {
	app := s.queue.Get(jobID)
	if app == nil {
		return nil, ErrNotFound
	}
	app.RecordOutcome(outcome, note)
	s.registry.Record(app.Posting, app.Outcome)
	return app, nil
}
