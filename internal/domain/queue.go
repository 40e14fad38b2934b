package domain

import (
	"sort"
	"time"
)

// Queue is the ordered collection of application tasks. At most one entry
// exists per job id; insertion order is otherwise preserved.
type Queue struct {
	items []*Application
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// QueueFromItems rebuilds a queue from persisted tasks as-is, without the
// replace-and-merge pass of Add.
func QueueFromItems(items []*Application) *Queue {
	return &Queue{items: items}
}

// Add inserts a task. If an entry with the same job id already exists it is
// replaced, but its notes are carried forward (existing notes first) along
// with its attempt count and last error, so refreshing a queued application
// never loses history.
func (q *Queue) Add(app *Application) {
	id := app.JobID()
	if existing := q.Get(id); existing != nil {
		app.Notes = append(append([]string{}, existing.Notes...), app.Notes...)
		app.Attempts = existing.Attempts
		app.LastError = existing.LastError
		q.Remove(id)
	}
	q.items = append(q.items, app)
}

// Get returns the task with the given job id, or nil.
func (q *Queue) Get(jobID string) *Application {
	for _, app := range q.items {
		if app.JobID() == jobID {
			return app
		}
	}
	return nil
}

// FindMatching returns the first queued task whose posting fingerprints to
// the same job as the given posting, or nil. Catches duplicate enqueues and
// re-discovered listings even when text formatting or the URL differs.
func (q *Queue) FindMatching(posting JobPosting) *Application {
	keys := FingerprintKeys(posting)
	want := make(map[string]bool, len(keys))
	for _, key := range keys {
		want[key] = true
	}
	for _, app := range q.items {
		for _, key := range FingerprintKeys(app.Posting) {
			if want[key] {
				return app
			}
		}
	}
	return nil
}

// Due returns pending tasks due at or before when, earliest first. Ties keep
// queue order.
func (q *Queue) Due(when time.Time) []*Application {
	var due []*Application
	for _, app := range q.items {
		if app.Pending() && !app.ApplyAt.After(when) {
			due = append(due, app)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ApplyAt.Before(due[j].ApplyAt)
	})
	return due
}

// Pending returns all pending tasks in queue order.
func (q *Queue) Pending() []*Application {
	var pending []*Application
	for _, app := range q.items {
		if app.Pending() {
			pending = append(pending, app)
		}
	}
	return pending
}

// Remove drops the task with the given job id. Returns false if absent.
// Removal is the only way a task leaves the queue.
func (q *Queue) Remove(jobID string) bool {
	for i, app := range q.items {
		if app.JobID() == jobID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Items returns the tasks in queue order.
func (q *Queue) Items() []*Application {
	return q.items
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	return len(q.items)
}
