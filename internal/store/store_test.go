package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bugbot/internal/types"
)

const testDevelopers = `[
	{"developer_id": 1, "name": "Alice Chen"},
	{"developer_id": 2, "name": "Bob Martinez"}
]`

const testBugs = `[
	{"bug_id": 101, "assigned_dev": 1, "description": "Login page crashes on empty password", "status": "Open", "solved": false, "progress_notes": ""},
	{"bug_id": 102, "assigned_dev": 1, "description": "Session cookie not cleared on logout", "status": "In Progress", "solved": false, "progress_notes": "2025-01-10 09:00:00 - reproduced locally"},
	{"bug_id": 201, "assigned_dev": 2, "description": "CSV export drops header row", "status": "Testing", "solved": false, "progress_notes": ""}
]`

func newTestStore(t *testing.T) *BugStore {
	t.Helper()

	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "bugs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	devsPath := filepath.Join(dir, "developers.json")
	bugsPath := filepath.Join(dir, "bugs.json")
	if err := os.WriteFile(devsPath, []byte(testDevelopers), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bugsPath, []byte(testBugs), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.SeedFromJSON(devsPath, bugsPath); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	return s
}

func TestFindDeveloperByID(t *testing.T) {
	s := newTestStore(t)

	dev, err := s.FindDeveloperByID(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev == nil || dev.Name != "Alice Chen" {
		t.Errorf("expected Alice Chen, got %+v", dev)
	}

	dev, err = s.FindDeveloperByID(99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev != nil {
		t.Errorf("expected nil for unknown developer, got %+v", dev)
	}
}

func TestListDevelopers(t *testing.T) {
	s := newTestStore(t)

	devs, err := s.ListDevelopers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(devs) != 2 {
		t.Fatalf("expected 2 developers, got %d", len(devs))
	}
	if devs[0].ID != 1 || devs[1].ID != 2 {
		t.Errorf("expected roster ordered by id, got %+v", devs)
	}
}

func TestGetBugsForDeveloper(t *testing.T) {
	s := newTestStore(t)

	bugs, err := s.GetBugsForDeveloper(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bugs) != 2 {
		t.Fatalf("expected 2 bugs for developer 1, got %d", len(bugs))
	}
	if bugs[0].ID != 101 || bugs[1].ID != 102 {
		t.Errorf("expected bugs ordered by id, got %+v", bugs)
	}
	if bugs[1].Status != types.StatusInProgress {
		t.Errorf("status = %v, want In Progress", bugs[1].Status)
	}
	if bugs[1].ProgressNotes != "2025-01-10 09:00:00 - reproduced locally" {
		t.Errorf("expected seeded progress note to survive, got %q", bugs[1].ProgressNotes)
	}

	bugs, err = s.GetBugsForDeveloper(99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bugs) != 0 {
		t.Errorf("expected no bugs for unknown developer, got %d", len(bugs))
	}
}

func TestAppendProgress(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time {
		return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	}

	ok, err := s.AppendProgress(101, "patched the null check", types.StatusResolved, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected append to succeed for existing bug")
	}

	bug, err := s.GetBug(101)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bug.Status != types.StatusResolved || !bug.Solved {
		t.Errorf("bug not updated: %+v", bug)
	}
	want := "2025-03-14 15:09:26 - patched the null check"
	if bug.ProgressNotes != want {
		t.Errorf("notes = %q, want %q", bug.ProgressNotes, want)
	}
}

func TestAppendProgressPreservesExistingNotes(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.AppendProgress(102, "fix verified in staging", types.StatusResolved, true)
	if err != nil || !ok {
		t.Fatalf("append failed: ok=%v err=%v", ok, err)
	}

	bug, err := s.GetBug(102)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(bug.ProgressNotes, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 note lines, got %d: %q", len(lines), bug.ProgressNotes)
	}
	if !strings.Contains(lines[1], "fix verified in staging") {
		t.Errorf("new note missing: %q", bug.ProgressNotes)
	}
}

func TestAppendProgressUnknownBug(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.AppendProgress(999, "note", types.StatusOpen, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected append to report false for unknown bug")
	}
}

func TestSeedReplacesExistingData(t *testing.T) {
	s := newTestStore(t)

	dir := t.TempDir()
	devsPath := filepath.Join(dir, "developers.json")
	bugsPath := filepath.Join(dir, "bugs.json")
	os.WriteFile(devsPath, []byte(`[{"developer_id": 5, "name": "Dana Kim"}]`), 0o644)
	os.WriteFile(bugsPath, []byte(`[{"bug_id": 500, "assigned_dev": 5, "description": "x", "status": "Open", "solved": false}]`), 0o644)

	if err := s.SeedFromJSON(devsPath, bugsPath); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	devs, _ := s.ListDevelopers()
	if len(devs) != 1 || devs[0].ID != 5 {
		t.Errorf("expected reseed to replace roster, got %+v", devs)
	}
	if bug, _ := s.GetBug(101); bug != nil {
		t.Error("expected old bugs cleared on reseed")
	}
}

func TestSeedRejectsInvalidStatus(t *testing.T) {
	s := newTestStore(t)

	dir := t.TempDir()
	devsPath := filepath.Join(dir, "developers.json")
	bugsPath := filepath.Join(dir, "bugs.json")
	os.WriteFile(devsPath, []byte(`[]`), 0o644)
	os.WriteFile(bugsPath, []byte(`[{"bug_id": 1, "assigned_dev": 1, "description": "x", "status": "Done", "solved": false}]`), 0o644)

	if err := s.SeedFromJSON(devsPath, bugsPath); err == nil {
		t.Error("expected seed to reject invalid status")
	}
}
