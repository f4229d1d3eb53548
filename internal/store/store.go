// Package store persists the developer roster and bug tracker state in
// SQLite, and exposes the read/append surface the dialogue layer works
// through.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"bugbot/internal/logging"
	"bugbot/internal/types"
)

// BugStore is a SQLite-backed implementation of types.BugStore.
// Thread-safe; all access is serialized through a mutex since sessions
// are interactive and contention is negligible.
type BugStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	now    func() time.Time
}

// Open opens (creating if needed) the bug database at path.
func Open(path string) (*BugStore, error) {
	logging.StoreDebug("Opening bug store at path: %s", path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &BugStore{db: db, dbPath: path, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	logging.Store("Bug store ready at %s", path)
	return s, nil
}

// Close closes the underlying database.
func (s *BugStore) Close() error {
	return s.db.Close()
}

func (s *BugStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS developers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bugs (
		id INTEGER PRIMARY KEY,
		assigned_dev INTEGER NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		solved BOOLEAN NOT NULL DEFAULT 0,
		progress_notes TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bugs_assigned_dev ON bugs(assigned_dev);
	`

	_, err := s.db.Exec(schema)
	return err
}

// FindDeveloperByID returns the developer with the given id, or nil if
// no such developer exists.
func (s *BugStore) FindDeveloperByID(id int) (*types.Developer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dev types.Developer
	err := s.db.QueryRow(`SELECT id, name FROM developers WHERE id = ?`, id).
		Scan(&dev.ID, &dev.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up developer %d: %w", id, err)
	}
	return &dev, nil
}

// ListDevelopers returns the full roster ordered by id.
func (s *BugStore) ListDevelopers() ([]types.Developer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, name FROM developers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list developers: %w", err)
	}
	defer rows.Close()

	var devs []types.Developer
	for rows.Next() {
		var dev types.Developer
		if err := rows.Scan(&dev.ID, &dev.Name); err != nil {
			return nil, err
		}
		devs = append(devs, dev)
	}
	return devs, rows.Err()
}

// GetBugsForDeveloper returns all bugs assigned to the developer,
// ordered by bug id. An unknown developer yields an empty slice, not an
// error; the dialogue layer distinguishes the two via the roster.
func (s *BugStore) GetBugsForDeveloper(devID int) ([]types.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, assigned_dev, description, status, solved, progress_notes
		FROM bugs WHERE assigned_dev = ? ORDER BY id`, devID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bugs for developer %d: %w", devID, err)
	}
	defer rows.Close()

	var bugs []types.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, err
		}
		bugs = append(bugs, *bug)
	}
	return bugs, rows.Err()
}

// GetBug returns the bug with the given id, or nil if it does not
// exist.
func (s *BugStore) GetBug(bugID int) (*types.Bug, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getBugLocked(bugID)
}

func (s *BugStore) getBugLocked(bugID int) (*types.Bug, error) {
	row := s.db.QueryRow(`
		SELECT id, assigned_dev, description, status, solved, progress_notes
		FROM bugs WHERE id = ?`, bugID)

	bug, err := scanBug(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up bug %d: %w", bugID, err)
	}
	return bug, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*types.Bug, error) {
	var bug types.Bug
	if err := row.Scan(&bug.ID, &bug.AssignedDev, &bug.Description,
		&bug.Status, &bug.Solved, &bug.ProgressNotes); err != nil {
		return nil, err
	}
	return &bug, nil
}

// AppendProgress appends a timestamped note to the bug and updates its
// status and solved flag. Returns false when the bug does not exist.
func (s *BugStore) AppendProgress(bugID int, note string, status types.BugStatus, solved bool) (bool, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AppendProgress")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	bug, err := s.getBugLocked(bugID)
	if err != nil {
		return false, err
	}
	if bug == nil {
		logging.StoreDebug("AppendProgress: bug %d not found", bugID)
		return false, nil
	}

	notes := types.TimestampNote(note, s.now())
	if bug.ProgressNotes != "" {
		notes = bug.ProgressNotes + "\n" + notes
	}

	_, err = s.db.Exec(`
		UPDATE bugs
		SET progress_notes = ?, status = ?, solved = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		notes, string(status), solved, bugID)
	if err != nil {
		return false, fmt.Errorf("failed to update bug %d: %w", bugID, err)
	}

	logging.Store("Bug %d updated: status=%s solved=%v", bugID, status, solved)
	return true, nil
}

// seedDeveloper and seedBug mirror the JSON fixture layout.
type seedDeveloper struct {
	DeveloperID int    `json:"developer_id"`
	Name        string `json:"name"`
}

type seedBug struct {
	BugID         int    `json:"bug_id"`
	AssignedDev   int    `json:"assigned_dev"`
	Description   string `json:"description"`
	Status        string `json:"status"`
	Solved        bool   `json:"solved"`
	ProgressNotes string `json:"progress_notes"`
}

// SeedFromJSON loads the roster and bug table from the two fixture
// files, replacing whatever is currently stored.
func (s *BugStore) SeedFromJSON(developersPath, bugsPath string) error {
	devData, err := os.ReadFile(developersPath)
	if err != nil {
		return fmt.Errorf("failed to read developers file: %w", err)
	}
	var devs []seedDeveloper
	if err := json.Unmarshal(devData, &devs); err != nil {
		return fmt.Errorf("failed to parse developers file: %w", err)
	}

	bugData, err := os.ReadFile(bugsPath)
	if err != nil {
		return fmt.Errorf("failed to read bugs file: %w", err)
	}
	var bugs []seedBug
	if err := json.Unmarshal(bugData, &bugs); err != nil {
		return fmt.Errorf("failed to parse bugs file: %w", err)
	}

	for _, bug := range bugs {
		if _, err := types.ParseStatus(bug.Status); err != nil {
			return fmt.Errorf("bug %d has invalid status %q", bug.BugID, bug.Status)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM developers`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bugs`); err != nil {
		return err
	}

	for _, dev := range devs {
		if _, err := tx.Exec(`INSERT INTO developers (id, name) VALUES (?, ?)`,
			dev.DeveloperID, dev.Name); err != nil {
			return fmt.Errorf("failed to insert developer %d: %w", dev.DeveloperID, err)
		}
	}

	for _, bug := range bugs {
		status, _ := types.ParseStatus(bug.Status)
		if _, err := tx.Exec(`
			INSERT INTO bugs (id, assigned_dev, description, status, solved, progress_notes)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bug.BugID, bug.AssignedDev, bug.Description, string(status),
			bug.Solved, bug.ProgressNotes); err != nil {
			return fmt.Errorf("failed to insert bug %d: %w", bug.BugID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	logging.Store("Seeded %d developers and %d bugs from fixtures", len(devs), len(bugs))
	return nil
}
