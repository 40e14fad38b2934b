package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	httpAdapter "github.com/cwygoda/appcron/internal/adapter/http"
	"github.com/cwygoda/appcron/internal/adapter/journal"
	"github.com/cwygoda/appcron/internal/adapter/snapshot"
	"github.com/cwygoda/appcron/internal/config"
	"github.com/cwygoda/appcron/internal/domain"
	"github.com/cwygoda/appcron/internal/worker"
)

const usage = `Usage: appcron <command> [flags]

Commands:
  enqueue   Screen a posting against past applications and queue it
  due       List applications due to run
  outcome   Record an interview/offer/rejection for an application
  remove    Remove a queued application
  skills    Show skills ranked by opportunity gap
  plan      Pace the pending queue into a human-looking schedule
  run       Process due applications (one pass, or -forever)
  serve     Run the HTTP server and background worker

Run 'appcron <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "enqueue":
		err = cmdEnqueue(args)
	case "due":
		err = cmdDue(args)
	case "outcome":
		err = cmdOutcome(args)
	case "remove":
		err = cmdRemove(args)
	case "skills":
		err = cmdSkills(args)
	case "plan":
		err = cmdPlan(args)
	case "run":
		err = cmdRun(args)
	case "serve":
		err = cmdServe(args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// appState bundles the loaded snapshot with its store and optional journal.
type appState struct {
	store     *snapshot.Store
	journal   *journal.Journal
	profile   *domain.Profile
	inventory *domain.SkillsInventory
	queue     *domain.Queue
	registry  *domain.Registry
}

func loadState(cfg *config.Config) (*appState, error) {
	store := snapshot.New(cfg.StorePath)
	profile, inventory, queue, registry, err := store.Load()
	if err != nil {
		return nil, err
	}

	if inventory == nil {
		inventory = domain.NewSkillsInventory()
	}
	if profile == nil && cfg.ProfilePath != "" {
		profile, err = loadProfileSeed(cfg.ProfilePath)
		if err != nil {
			return nil, fmt.Errorf("load profile %s: %w", cfg.ProfilePath, err)
		}
		log.Printf("seeded profile for %s from %s", profile.Name, cfg.ProfilePath)
	}

	a := &appState{
		store:     store,
		profile:   profile,
		inventory: inventory,
		queue:     queue,
		registry:  registry,
	}
	if cfg.JournalPath != "" {
		a.journal, err = journal.New(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal %s: %w", cfg.JournalPath, err)
		}
	}
	return a, nil
}

func loadProfileSeed(path string) (*domain.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var profile domain.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (a *appState) save() error {
	return a.store.Save(a.profile, a.inventory, a.queue, a.registry)
}

func (a *appState) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Printf("closing journal: %v", err)
		}
	}
}

func (a *appState) record(jobID, event, detail string) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(context.Background(), jobID, event, detail); err != nil {
		log.Printf("journal write failed: %v", err)
	}
}

func cmdEnqueue(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	var (
		title    = fs.String("title", "", "Job title")
		company  = fs.String("company", "", "Company name")
		applyURL = fs.String("url", "", "Application URL")
		email    = fs.String("email", "", "Contact email for submission")
		location = fs.String("location", "", "Job location")
		tags     = fs.String("tags", "", "Comma-separated skill tags")
		at       = fs.String("at", "", "Apply time (RFC 3339, default now)")
		force    = fs.Bool("force", false, "Queue even if it looks like a duplicate")
	)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	applyAt := time.Now()
	if *at != "" {
		applyAt, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
	}

	posting := domain.JobPosting{
		Title:        *title,
		Company:      *company,
		Location:     *location,
		ApplyURL:     *applyURL,
		ContactEmail: *email,
		Tags:         splitTags(*tags),
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	screener := domain.NewScreener(a.queue, a.registry)
	task, err := screener.Enqueue(posting, applyAt, *force)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyApplied):
			rec := a.registry.Find(posting)
			fmt.Printf("Already applied: %s at %s (last status %s, seen %d times). Use -force to queue anyway.\n",
				rec.Title, rec.Company, rec.LastStatus, rec.Occurrences)
			return nil
		case errors.Is(err, domain.ErrDuplicate):
			fmt.Println("Already queued. Use -force to replace the queued entry.")
			return nil
		}
		return err
	}

	a.record(task.JobID(), journal.EventEnqueued, "")
	if err := a.save(); err != nil {
		return err
	}
	fmt.Printf("Queued %s at %s for %s (job id: %s)\n",
		posting.Title, posting.Company, task.ApplyAt.Format(time.RFC3339), task.JobID())
	return nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func cmdDue(args []string) error {
	fs := flag.NewFlagSet("due", flag.ExitOnError)
	at := fs.String("at", "", "Due check time (RFC 3339, default now)")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	when := time.Now()
	if *at != "" {
		when, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("parse -at: %w", err)
		}
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	due := a.queue.Due(when)
	if len(due) == 0 {
		fmt.Println("Nothing due.")
		return nil
	}
	for _, task := range due {
		fmt.Printf("%s  %s at %s (attempts: %d, job id: %s)\n",
			task.ApplyAt.Format("2006-01-02 15:04"), task.Posting.Title,
			task.Posting.Company, task.Attempts, task.JobID())
	}
	return nil
}

func cmdOutcome(args []string) error {
	fs := flag.NewFlagSet("outcome", flag.ExitOnError)
	var (
		id      = fs.String("id", "", "Job id of the application")
		outcome = fs.String("outcome", "", "Outcome (interview, offer, rejected, ghosted, ...)")
		note    = fs.String("note", "", "Optional free-form note")
	)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if *id == "" || *outcome == "" {
		return errors.New("outcome requires -id and -outcome")
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	screener := domain.NewScreener(a.queue, a.registry)
	task, err := screener.RecordOutcome(*id, *outcome, *note)
	if err != nil {
		return err
	}

	a.record(task.JobID(), journal.EventOutcome, task.Outcome)
	if err := a.save(); err != nil {
		return err
	}
	fmt.Printf("Recorded outcome %q for %s at %s\n", task.Outcome, task.Posting.Title, task.Posting.Company)
	return nil
}

func cmdRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	id := fs.String("id", "", "Job id of the queued application")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if *id == "" {
		return errors.New("remove requires -id")
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.queue.Remove(*id) {
		return fmt.Errorf("no queued application with id %q", *id)
	}
	a.record(*id, journal.EventRemoved, "")
	if err := a.save(); err != nil {
		return err
	}
	fmt.Printf("Removed %s from the queue.\n", *id)
	return nil
}

func cmdSkills(args []string) error {
	fs := flag.NewFlagSet("skills", flag.ExitOnError)
	var (
		interview = fs.String("interview", "", "Credit an interview to this skill")
		offer     = fs.String("offer", "", "Credit an offer to this skill")
		noteFor   = fs.String("note-for", "", "Skill to attach -note to")
		note      = fs.String("note", "", "Note text for -note-for")
	)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	mutated := false
	if *interview != "" {
		if err := a.inventory.RecordInterview(*interview); err != nil {
			return err
		}
		mutated = true
	}
	if *offer != "" {
		if err := a.inventory.RecordOffer(*offer); err != nil {
			return err
		}
		mutated = true
	}
	if *noteFor != "" {
		if err := a.inventory.AddNote(*noteFor, *note); err != nil {
			return err
		}
		mutated = true
	}
	if mutated {
		if err := a.save(); err != nil {
			return err
		}
	}

	records := a.inventory.SortedByOpportunity()
	if len(records) == 0 {
		fmt.Println("No skills observed yet.")
		return nil
	}
	fmt.Printf("%-28s %11s %10s %6s %5s\n", "SKILL", "OCCURRENCES", "INTERVIEWS", "OFFERS", "GAP")
	for _, rec := range records {
		gap := rec.Occurrences - rec.Interviews - rec.Offers
		fmt.Printf("%-28s %11d %10d %6d %5d\n", rec.Name, rec.Occurrences, rec.Interviews, rec.Offers, gap)
	}
	return nil
}

func cmdPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	var (
		start      = fs.String("start", "", "First slot (RFC 3339, default now)")
		interval   = fs.Int("interval", 30, "Minimum minutes between applications")
		breakEvery = fs.Int("break-every", 5, "Insert a break after this many applications")
		breakFor   = fs.Duration("break-for", 2*time.Hour, "Break length")
		apply      = fs.Bool("apply", false, "Write the planned times back to the queue")
	)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	startAt := time.Now()
	if *start != "" {
		startAt, err = time.Parse(time.RFC3339, *start)
		if err != nil {
			return fmt.Errorf("parse -start: %w", err)
		}
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	pending := a.queue.Pending()
	if len(pending) == 0 {
		fmt.Println("Nothing pending to plan.")
		return nil
	}

	jobs := make([]domain.JobRef, 0, len(pending))
	for _, task := range pending {
		jobs = append(jobs, domain.JobRef{
			ID:      task.JobID(),
			Title:   task.Posting.Title,
			Company: task.Posting.Company,
		})
	}

	schedule, err := domain.PlanSchedule(jobs, domain.ScheduleOptions{
		Start:              startAt,
		MinIntervalMinutes: *interval,
		BreakEvery:         *breakEvery,
		BreakDuration:      *breakFor,
	})
	if err != nil {
		return err
	}

	for _, slot := range schedule {
		fmt.Printf("%s  %s at %s\n", slot.ApplyAt.Format("2006-01-02 15:04"), slot.Title, slot.Company)
	}

	if *apply {
		for _, slot := range schedule {
			if task := a.queue.Get(slot.JobID); task != nil {
				task.Defer(slot.ApplyAt)
				a.record(slot.JobID, journal.EventDeferred, "paced to "+slot.ApplyAt.Format(time.RFC3339))
			}
		}
		if err := a.save(); err != nil {
			return err
		}
		fmt.Printf("Applied the schedule to %d queued applications.\n", len(schedule))
	}
	return nil
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	forever := fs.Bool("forever", false, "Keep polling instead of a single pass")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	store := snapshot.New(cfg.StorePath)
	var rec worker.Recorder
	var jrnl *journal.Journal
	if cfg.JournalPath != "" {
		jrnl, err = journal.New(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal %s: %w", cfg.JournalPath, err)
		}
		defer jrnl.Close()
		rec = jrnl
	}

	w := worker.New(worker.Deps{
		Store:   store,
		Journal: rec,
	}, worker.Options{
		DocumentsDir: cfg.DocumentsDir,
		RetryDelay:   cfg.RetryDelay,
		PollInterval: cfg.PollInterval,
		DryRun:       cfg.DryRun,
		MaxAttempts:  cfg.MaxAttempts,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *forever {
		w.Run(ctx)
		return nil
	}
	return w.RunOnce(ctx)
}

// liveStore adapts the serve-mode in-memory state to the worker's persistence
// boundary. Loads are free; saves adopt any replacements into the shared
// server state, then persist, so a later handler save never writes stale
// fields over what the worker just committed.
type liveStore struct {
	state *httpAdapter.State
	disk  *snapshot.Store
}

func (ls *liveStore) Load() (*domain.Profile, *domain.SkillsInventory, *domain.Queue, *domain.Registry, error) {
	return ls.state.Profile, ls.state.Inventory, ls.state.Queue, ls.state.Registry, nil
}

func (ls *liveStore) Save(p *domain.Profile, i *domain.SkillsInventory, q *domain.Queue, r *domain.Registry) error {
	ls.state.Profile, ls.state.Inventory, ls.state.Queue, ls.state.Registry = p, i, q, r
	return ls.disk.Save(p, i, q, r)
}

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	a, err := loadState(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	log.Printf("starting appcron on port %d", cfg.Port)
	log.Printf("store: %s", cfg.StorePath)
	if cfg.JournalPath != "" {
		log.Printf("journal: %s", cfg.JournalPath)
	}

	var rec httpAdapter.Recorder
	var wrec worker.Recorder
	if a.journal != nil {
		rec = a.journal
		wrec = a.journal
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	state := &httpAdapter.State{
		Profile:   a.profile,
		Inventory: a.inventory,
		Queue:     a.queue,
		Registry:  a.registry,
	}
	srv := httpAdapter.NewServer(state, a.store, rec, addr)

	// The worker operates on the server's live state, not on a fresh load
	// from disk, and each pass runs inside the server's lock. State stays
	// single-writer even with both surfaces up.
	w := worker.New(worker.Deps{
		Store:   &liveStore{state: state, disk: a.store},
		Journal: wrec,
	}, worker.Options{
		DocumentsDir: cfg.DocumentsDir,
		RetryDelay:   cfg.RetryDelay,
		PollInterval: cfg.PollInterval,
		DryRun:       cfg.DryRun,
		MaxAttempts:  cfg.MaxAttempts,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			if err := srv.Exclusive(func() error { return w.RunOnce(ctx) }); err != nil {
				log.Printf("worker pass failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
	return nil
}
