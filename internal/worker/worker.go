// Package worker drives the application queue: each pass loads the persisted
// state, processes every due task strictly in order, and commits one snapshot
// at the end.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwygoda/appcron/internal/domain"
)

// Store is the persistence boundary the worker drives.
type Store interface {
	Load() (*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry, error)
	Save(*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry) error
}

// Recorder appends events to the attempt journal. Optional.
type Recorder interface {
	Record(ctx context.Context, jobID, event, detail string) error
}

// Deps are the worker's collaborators. Store is required; the ports may be
// nil, in which case the corresponding step is skipped or the task fails with
// a dependency-missing error.
type Deps struct {
	Store     Store
	Scorer    domain.FitScorer
	Renderer  domain.DocumentRenderer
	Submitter domain.Submitter
	Mailer    domain.Mailer
	Journal   Recorder
}

// Options tune a worker.
type Options struct {
	DocumentsDir string
	RetryDelay   time.Duration // backoff after a failed attempt
	PollInterval time.Duration // delay between passes in Run
	DryRun       bool
	MaxAttempts  int // 0 = retry forever
}

func (o *Options) defaults() {
	if o.DocumentsDir == "" {
		o.DocumentsDir = "generated_documents"
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 45 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Minute
	}
}

// Worker processes due application tasks.
type Worker struct {
	deps Deps
	opts Options
}

// New creates a worker.
func New(deps Deps, opts Options) *Worker {
	opts.defaults()
	return &Worker{deps: deps, opts: opts}
}

// Run executes passes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("worker started, polling every %s", w.opts.PollInterval)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("worker shutting down")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				log.Printf("pass error: %v", err)
			}
		}
	}
}

// RunOnce executes a single pass: load, process every due task, save. A
// task's failure never aborts the rest of the pass.
func (w *Worker) RunOnce(ctx context.Context) error {
	profile, inventory, queue, registry, err := w.deps.Store.Load()
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if profile == nil {
		profile = &domain.Profile{Name: "Unknown", Email: "unknown@example.com"}
	}
	if inventory == nil {
		inventory = domain.NewSkillsInventory()
	}

	now := time.Now()
	due := queue.Due(now)
	if len(due) == 0 {
		log.Println("no pending applications ready to run")
		return nil
	}

	for _, task := range due {
		if ctx.Err() != nil {
			break
		}
		w.processTask(ctx, task, profile, inventory, registry, now)
	}

	if err := w.deps.Store.Save(profile, inventory, queue, registry); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (w *Worker) processTask(ctx context.Context, task *domain.Application, profile *domain.Profile, inventory *domain.SkillsInventory, registry *domain.Registry, now time.Time) {
	jobID := task.JobID()

	if w.opts.MaxAttempts > 0 && task.Attempts >= w.opts.MaxAttempts {
		log.Printf("job %s: retry cap reached (%d attempts), leaving pending", jobID, task.Attempts)
		return
	}

	log.Printf("processing %s at %s (job id: %s)", task.Posting.Title, task.Posting.Company, jobID)

	var assessment *domain.Assessment
	if w.deps.Scorer != nil {
		var err error
		assessment, err = w.deps.Scorer.Analyse(profile, task.Posting)
		if err != nil {
			w.fail(ctx, task, now, fmt.Errorf("fit analysis: %w", err))
			return
		}
		inventory.Observe(assessment.RequiredSkills)
	}

	if err := w.ensureDocuments(task, profile, assessment); err != nil {
		w.fail(ctx, task, now, fmt.Errorf("document generation: %w", err))
		return
	}

	if w.opts.DryRun {
		log.Printf("[dry-run] would submit application for job %s", jobID)
		task.Notes = append(task.Notes, "Dry run executed; application remains queued for a real run.")
		task.Defer(now.Add(w.opts.RetryDelay))
		return
	}

	submitted, err := w.submit(ctx, task, profile)
	if err != nil {
		w.fail(ctx, task, now, err)
		return
	}
	if !submitted {
		w.fail(ctx, task, now, errors.New("no submit control detected"))
		return
	}

	task.MarkSuccess()
	registry.Record(task.Posting, domain.StatusApplied)
	w.journal(ctx, jobID, "applied", "")
	log.Printf("job %s: applied", jobID)
}

// submit routes the task: email when the posting resolves to an address,
// browser submission otherwise.
func (w *Worker) submit(ctx context.Context, task *domain.Application, profile *domain.Profile) (bool, error) {
	if task.Posting.EmailAddress() != "" {
		if w.deps.Mailer == nil {
			return false, fmt.Errorf("%w: no email backend configured", domain.ErrDependencyMissing)
		}
		return w.deps.Mailer.Send(ctx, profile, task.Posting, task.ResumePath, task.CoverLetterPath, false)
	}
	if w.deps.Submitter == nil {
		return false, fmt.Errorf("%w: no submission backend configured", domain.ErrDependencyMissing)
	}
	return w.deps.Submitter.Submit(ctx, profile, task.Posting, task.ResumePath, task.CoverLetterPath, false)
}

// fail records the attempt and defers the task by the retry delay. When a
// retry cap is configured and now reached, the task stays pending but is not
// re-deferred; it will be skipped until an operator steps in.
func (w *Worker) fail(ctx context.Context, task *domain.Application, now time.Time, err error) {
	task.MarkFailure(err.Error())
	w.journal(ctx, task.JobID(), "failed", err.Error())

	if errors.Is(err, domain.ErrDependencyMissing) {
		log.Printf("job %s: dependency missing: %v (configure the backend and the task will retry)", task.JobID(), err)
	} else {
		log.Printf("job %s: attempt failed: %v", task.JobID(), err)
	}

	if w.opts.MaxAttempts > 0 && task.Attempts >= w.opts.MaxAttempts {
		task.Notes = append(task.Notes, fmt.Sprintf("Retry cap of %d attempts reached; manual action required.", w.opts.MaxAttempts))
		log.Printf("job %s: retry cap of %d attempts reached", task.JobID(), w.opts.MaxAttempts)
		return
	}
	task.Defer(now.Add(w.opts.RetryDelay))
}

// ensureDocuments renders the resume and cover letter for the task, reusing
// previously chosen paths so a retried task overwrites its own documents.
func (w *Worker) ensureDocuments(task *domain.Application, profile *domain.Profile, assessment *domain.Assessment) error {
	if w.deps.Renderer == nil {
		return nil
	}
	if err := os.MkdirAll(w.opts.DocumentsDir, 0755); err != nil {
		return err
	}

	slug := slugify(task.Posting.Title, task.Posting.Company, task.JobID())
	resumePath := task.ResumePath
	if resumePath == "" {
		resumePath = filepath.Join(w.opts.DocumentsDir, slug+"_resume.md")
	}
	coverPath := task.CoverLetterPath
	if coverPath == "" {
		coverPath = filepath.Join(w.opts.DocumentsDir, slug+"_cover_letter.md")
	}

	resume, err := w.deps.Renderer.RenderResume(profile, task.Posting, assessment, task.ResumeStyle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(resumePath, []byte(resume), 0644); err != nil {
		return err
	}
	task.ResumePath = resumePath

	cover, err := w.deps.Renderer.RenderCoverLetter(profile, task.Posting, assessment, task.CoverLetterStyle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(coverPath, []byte(cover), 0644); err != nil {
		return err
	}
	task.CoverLetterPath = coverPath
	return nil
}

func (w *Worker) journal(ctx context.Context, jobID, event, detail string) {
	if w.deps.Journal == nil {
		return
	}
	if err := w.deps.Journal.Record(ctx, jobID, event, detail); err != nil {
		log.Printf("journal write failed: %v", err)
	}
}

func slugify(parts ...string) string {
	var cleaned []string
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		cleaned = append(cleaned, strings.ReplaceAll(part, " ", "-"))
	}
	joined := strings.Join(cleaned, "-")
	var b strings.Builder
	for _, r := range joined {
		if r == '-' || r == '_' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
