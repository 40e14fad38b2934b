package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cwygoda/appcron/internal/domain"
)

// memStore implements Store over in-memory state.
type memStore struct {
	profile   *domain.Profile
	inventory *domain.SkillsInventory
	queue     *domain.Queue
	registry  *domain.Registry
	saves     int
	loadErr   error
	saveErr   error
}

func newMemStore() *memStore {
	return &memStore{
		profile:   &domain.Profile{Name: "Jane", Email: "jane@example.com"},
		inventory: domain.NewSkillsInventory(),
		queue:     domain.NewQueue(),
		registry:  domain.NewRegistry(),
	}
}

func (m *memStore) Load() (*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry, error) {
	if m.loadErr != nil {
		return nil, nil, nil, nil, m.loadErr
	}
	return m.profile, m.inventory, m.queue, m.registry, nil
}

func (m *memStore) Save(p *domain.Profile, i *domain.SkillsInventory, q *domain.Queue, r *domain.Registry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.profile, m.inventory, m.queue, m.registry = p, i, q, r
	return nil
}

// mockScorer implements domain.FitScorer.
type mockScorer struct {
	skills []string
	err    error
}

func (m *mockScorer) Analyse(profile *domain.Profile, posting domain.JobPosting) (*domain.Assessment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Assessment{RequiredSkills: m.skills, MatchScore: 0.5}, nil
}

// mockRenderer implements domain.DocumentRenderer.
type mockRenderer struct {
	err error
}

func (m *mockRenderer) RenderResume(profile *domain.Profile, posting domain.JobPosting, a *domain.Assessment, style string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "resume for " + posting.Title, nil
}

func (m *mockRenderer) RenderCoverLetter(profile *domain.Profile, posting domain.JobPosting, a *domain.Assessment, style string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "cover letter for " + posting.Title, nil
}

// mockSubmitter implements domain.Submitter.
type mockSubmitter struct {
	result bool
	err    error
	calls  int
}

func (m *mockSubmitter) Submit(ctx context.Context, profile *domain.Profile, posting domain.JobPosting, resumePath, coverPath string, dryRun bool) (bool, error) {
	m.calls++
	return m.result, m.err
}

// mockMailer implements domain.Mailer.
type mockMailer struct {
	result bool
	err    error
	calls  int
}

func (m *mockMailer) Send(ctx context.Context, profile *domain.Profile, posting domain.JobPosting, resumePath, coverPath string, dryRun bool) (bool, error) {
	m.calls++
	return m.result, m.err
}

// mockJournal implements Recorder.
type mockJournal struct {
	events []string
}

func (m *mockJournal) Record(ctx context.Context, jobID, event, detail string) error {
	m.events = append(m.events, event)
	return nil
}

func dueTask(store *memStore, posting domain.JobPosting) *domain.Application {
	task := domain.NewApplication(posting, time.Now().Add(-time.Minute))
	store.queue.Add(task)
	return task
}

func newTestWorker(t *testing.T, store *memStore, deps Deps, opts Options) *Worker {
	t.Helper()
	deps.Store = store
	if opts.DocumentsDir == "" {
		opts.DocumentsDir = t.TempDir()
	}
	return New(deps, opts)
}

func TestWorker_SuccessfulSubmission(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme", ApplyURL: "https://acme.example/1"})
	submitter := &mockSubmitter{result: true}
	journal := &mockJournal{}

	w := newTestWorker(t, store, Deps{
		Scorer:    &mockScorer{skills: []string{"welding", "blueprints"}},
		Renderer:  &mockRenderer{},
		Submitter: submitter,
		Journal:   journal,
	}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if task.Status != domain.StatusApplied {
		t.Errorf("Status = %q, want applied", task.Status)
	}
	if submitter.calls != 1 {
		t.Errorf("submitter calls = %d, want 1", submitter.calls)
	}
	if task.ResumePath == "" || task.CoverLetterPath == "" {
		t.Errorf("document paths not recorded: %q / %q", task.ResumePath, task.CoverLetterPath)
	}
	if store.inventory.Get("welding") == nil {
		t.Error("required skills not fed to inventory")
	}
	if store.registry.Find(task.Posting) == nil {
		t.Error("success not recorded in registry")
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	if len(journal.events) != 1 || journal.events[0] != "applied" {
		t.Errorf("journal events = %v, want [applied]", journal.events)
	}
}

func TestWorker_FailureRequeuesWithBackoff(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})
	retry := 30 * time.Minute

	w := newTestWorker(t, store, Deps{
		Submitter: &mockSubmitter{err: errors.New("page crashed")},
	}, Options{RetryDelay: retry})

	start := time.Now()
	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if task.Status != domain.StatusPending {
		t.Errorf("Status = %q, want pending", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", task.Attempts)
	}
	if task.LastError != "page crashed" {
		t.Errorf("LastError = %q", task.LastError)
	}
	if task.ApplyAt.Before(start.Add(retry - time.Minute)) {
		t.Errorf("ApplyAt = %v, want deferred by about %v", task.ApplyAt, retry)
	}
	if store.saves != 1 {
		t.Error("state not saved after failed pass")
	}
}

func TestWorker_NoSubmitControlRequeues(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})

	w := newTestWorker(t, store, Deps{
		Submitter: &mockSubmitter{result: false},
	}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if task.Status != domain.StatusPending || task.LastError != "no submit control detected" {
		t.Errorf("status/lastError = %q/%q", task.Status, task.LastError)
	}
}

func TestWorker_DependencyMissing(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})

	// No submitter configured at all.
	w := newTestWorker(t, store, Deps{}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if task.Status != domain.StatusPending {
		t.Errorf("Status = %q, want pending (dependency errors are retryable)", task.Status)
	}
	if !strings.Contains(task.LastError, "no submission backend configured") {
		t.Errorf("LastError = %q", task.LastError)
	}
}

func TestWorker_EmailRouting(t *testing.T) {
	tests := []struct {
		name    string
		posting domain.JobPosting
	}{
		{
			name:    "contact email",
			posting: domain.JobPosting{Title: "Welder", Company: "Acme", ContactEmail: "jobs@acme.example"},
		},
		{
			name:    "mailto apply url",
			posting: domain.JobPosting{Title: "Welder", Company: "Acme", ApplyURL: "mailto:jobs@acme.example?subject=Welder"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			dueTask(store, tt.posting)
			mailer := &mockMailer{result: true}
			submitter := &mockSubmitter{result: true}

			w := newTestWorker(t, store, Deps{Mailer: mailer, Submitter: submitter}, Options{})
			if err := w.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce() error = %v", err)
			}
			if mailer.calls != 1 {
				t.Errorf("mailer calls = %d, want 1", mailer.calls)
			}
			if submitter.calls != 0 {
				t.Errorf("submitter calls = %d, want 0 for email path", submitter.calls)
			}
		})
	}
}

func TestWorker_OneFailureDoesNotAbortPass(t *testing.T) {
	store := newMemStore()

	bad := domain.NewApplication(domain.JobPosting{ID: "bad", Title: "A", Company: "X", ContactEmail: "a@x"}, time.Now().Add(-2*time.Minute))
	good := domain.NewApplication(domain.JobPosting{ID: "good", Title: "B", Company: "X"}, time.Now().Add(-time.Minute))
	store.queue.Add(bad)
	store.queue.Add(good)

	w := newTestWorker(t, store, Deps{
		Mailer:    &mockMailer{err: fmt.Errorf("%w: smtp unreachable", domain.ErrDependencyMissing)},
		Submitter: &mockSubmitter{result: true},
	}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if bad.Status != domain.StatusPending {
		t.Errorf("bad Status = %q, want pending", bad.Status)
	}
	if good.Status != domain.StatusApplied {
		t.Errorf("good Status = %q, want applied despite earlier failure", good.Status)
	}
}

func TestWorker_DryRun(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})
	submitter := &mockSubmitter{result: true}

	w := newTestWorker(t, store, Deps{Submitter: submitter}, Options{DryRun: true})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if submitter.calls != 0 {
		t.Errorf("submitter calls = %d, want 0 in dry run", submitter.calls)
	}
	if task.Status != domain.StatusPending || task.Attempts != 0 {
		t.Errorf("status/attempts = %q/%d, want pending/0", task.Status, task.Attempts)
	}
	if len(task.Notes) != 1 || !strings.Contains(task.Notes[0], "Dry run") {
		t.Errorf("Notes = %v, want dry-run note", task.Notes)
	}
	if !task.ApplyAt.After(time.Now()) {
		t.Error("dry run should defer the task")
	}
}

func TestWorker_RetryCap(t *testing.T) {
	store := newMemStore()
	task := dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})

	w := newTestWorker(t, store, Deps{
		Submitter: &mockSubmitter{err: errors.New("boom")},
	}, Options{MaxAttempts: 1, RetryDelay: time.Minute})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if task.Attempts != 1 || task.Status != domain.StatusPending {
		t.Fatalf("attempts/status = %d/%q", task.Attempts, task.Status)
	}

	// Second pass: the capped task is skipped, not retried.
	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	if task.Attempts != 1 {
		t.Errorf("Attempts = %d after cap, want still 1", task.Attempts)
	}

	noteFound := false
	for _, note := range task.Notes {
		if strings.Contains(note, "Retry cap") {
			noteFound = true
		}
	}
	if !noteFound {
		t.Errorf("Notes = %v, want retry cap note", task.Notes)
	}
}

func TestWorker_NoDueTasks(t *testing.T) {
	store := newMemStore()
	w := newTestWorker(t, store, Deps{}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if store.saves != 0 {
		t.Errorf("saves = %d, want 0 when nothing was due", store.saves)
	}
}

func TestWorker_LoadErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("disk gone")
	w := newTestWorker(t, store, Deps{}, Options{})

	if err := w.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce() = nil, want load error")
	}
}

func TestWorker_DefaultProfileAndInventory(t *testing.T) {
	store := newMemStore()
	store.profile = nil
	store.inventory = nil
	dueTask(store, domain.JobPosting{Title: "Welder", Company: "Acme"})

	w := newTestWorker(t, store, Deps{
		Scorer:    &mockScorer{skills: []string{"welding"}},
		Submitter: &mockSubmitter{result: true},
	}, Options{})

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if store.profile == nil || store.profile.Name != "Unknown" {
		t.Errorf("profile = %+v, want Unknown default", store.profile)
	}
	if store.inventory == nil || store.inventory.Get("welding") == nil {
		t.Error("inventory default not created or not fed")
	}
}
