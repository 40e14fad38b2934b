package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwygoda/appcron/internal/domain"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.json"))
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := tempStore(t)

	profile, inventory, queue, registry, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if profile != nil || inventory != nil {
		t.Errorf("profile/inventory = %v/%v, want nil/nil", profile, inventory)
	}
	if queue == nil || queue.Len() != 0 {
		t.Errorf("queue = %v, want empty but valid", queue)
	}
	if registry == nil || registry.Len() != 0 {
		t.Errorf("registry = %v, want empty but valid", registry)
	}
}

func TestStore_LoadCorruptFile(t *testing.T) {
	store := tempStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, queue, registry, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want empty state instead", err)
	}
	if queue.Len() != 0 || registry.Len() != 0 {
		t.Errorf("queue/registry not empty after corrupt load")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	store := tempStore(t)

	profile := &domain.Profile{Name: "Jane Doe", Email: "jane@example.com"}
	profile.AddSkill("Welding")

	inventory := domain.NewSkillsInventory()
	inventory.Observe([]string{"Welding", "Forklift", "Welding"})
	inventory.RecordInterview("Forklift")

	queue := domain.NewQueue()
	registry := domain.NewRegistry()

	posting := domain.JobPosting{
		ID:       "j1",
		Title:    "Welder",
		Company:  "Acme",
		ApplyURL: "https://acme.example/jobs/1",
		Tags:     []string{"welding", "metal"},
	}
	app := domain.NewApplication(posting, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	app.MarkFailure("timeout")
	app.RecordOutcome("interview", "phone screen")
	queue.Add(app)

	second := domain.NewApplication(domain.JobPosting{Title: "Machinist", Company: "Gear Works"}, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))
	queue.Add(second)

	registry.Record(posting, "applied")

	if err := store.Save(profile, inventory, queue, registry); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	gotProfile, gotInventory, gotQueue, gotRegistry, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if gotProfile == nil || gotProfile.Name != "Jane Doe" || len(gotProfile.Skills) != 1 {
		t.Errorf("profile = %+v, want Jane Doe with one skill", gotProfile)
	}
	if gotInventory == nil || gotInventory.Get("welding").Occurrences != 2 || gotInventory.Get("forklift").Interviews != 1 {
		t.Errorf("inventory did not round-trip")
	}

	if gotQueue.Len() != 2 {
		t.Fatalf("queue Len() = %d, want 2", gotQueue.Len())
	}
	gotApp := gotQueue.Get("j1")
	if gotApp == nil {
		t.Fatal("task j1 missing after load")
	}
	if gotApp.Status != "interview" || gotApp.Attempts != 1 || gotApp.LastError != "timeout" {
		t.Errorf("task = status %q attempts %d lastError %q", gotApp.Status, gotApp.Attempts, gotApp.LastError)
	}
	if len(gotApp.Notes) != 3 {
		t.Errorf("Notes = %v, want 3 in original order", gotApp.Notes)
	}
	if gotApp.OutcomeRecordedAt == nil {
		t.Error("OutcomeRecordedAt lost in round trip")
	}
	if len(gotApp.Posting.Tags) != 2 {
		t.Errorf("Tags = %v, want 2", gotApp.Posting.Tags)
	}
	if gotQueue.Get("Machinist@Gear Works") == nil {
		t.Error("second task missing after load")
	}

	// Registry resolves the original posting the same way.
	record := gotRegistry.Find(posting)
	if record == nil {
		t.Fatal("registry does not resolve original posting after load")
	}
	if record.LastStatus != "applied" || record.Occurrences != 1 {
		t.Errorf("record = %+v", record)
	}
	if gotRegistry.Find(domain.JobPosting{ApplyURL: posting.ApplyURL}) != record {
		t.Error("URL alias lost in round trip")
	}
}

func TestStore_MalformedQueueEntryIsolated(t *testing.T) {
	store := tempStore(t)
	raw := `{
		"queue": [
			{"posting": {"title": "Good", "company": "Co"}, "apply_at": "2026-03-02T09:00:00Z", "status": "pending"},
			{"posting": {"title": "Bad", "company": "Co"}, "apply_at": "not-a-time"}
		]
	}`
	if err := os.WriteFile(store.Path(), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, queue, _, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if queue.Len() != 2 {
		t.Fatalf("queue Len() = %d, want good entry plus placeholder", queue.Len())
	}
	if queue.Get("Good@Co") == nil {
		t.Error("well-formed entry did not load")
	}
	broken := queue.Get("Unknown@Unknown")
	if broken == nil {
		t.Fatal("placeholder task missing")
	}
	if broken.Status != domain.StatusFailed {
		t.Errorf("placeholder status = %q, want failed", broken.Status)
	}
	if len(broken.Notes) != 1 || !strings.HasPrefix(broken.Notes[0], "Could not load entry:") {
		t.Errorf("placeholder notes = %v", broken.Notes)
	}
}

func TestStore_SaveIsAtomicReplace(t *testing.T) {
	store := tempStore(t)

	if err := store.Save(nil, nil, domain.NewQueue(), domain.NewRegistry()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(nil, nil, domain.NewQueue(), domain.NewRegistry()); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	// No temp files left behind next to the snapshot.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".appcron-") {
			t.Errorf("stray temp file %s left behind", entry.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want only the snapshot", len(entries))
	}
}

func TestStore_SaveNilQueueAndRegistry(t *testing.T) {
	store := tempStore(t)
	if err := store.Save(nil, nil, nil, nil); err != nil {
		t.Fatalf("Save(nil...) error = %v", err)
	}
	_, _, queue, registry, err := store.Load()
	if err != nil || queue.Len() != 0 || registry.Len() != 0 {
		t.Errorf("Load() after nil save = %v, queue %d, registry %d", err, queue.Len(), registry.Len())
	}
}
