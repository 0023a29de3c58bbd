// Package history archives finished migration passes in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/rflorenc/shop-migration-workbench/internal/history/migrations"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one archived migration pass.
type Run struct {
	ID         string                `json:"id"`
	JobID      string                `json:"job_id,omitempty"`
	Kind       models.EntityKind     `json:"kind"`
	OwnerType  string                `json:"owner_type,omitempty"`
	Policy     models.ConflictPolicy `json:"policy"`
	DryRun     bool                  `json:"dry_run"`
	SourceShop string                `json:"source_shop"`
	TargetShop string                `json:"target_shop"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Summary    models.Summary        `json:"summary"`
	Error      string                `json:"error,omitempty"`
	Results    []models.Outcome      `json:"results,omitempty"`
}

// Store is the run archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the archive at path and brings its schema up to date.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies the embedded *.up.sql files newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Save archives a run, assigning an id when it has none.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	results := run.Results
	if results == nil {
		results = []models.Outcome{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, job_id, kind, owner_type, policy, dry_run, source_shop, target_shop,
			started_at, finished_at, total, created, updated, skipped, errors, conflicts, error, results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.JobID, string(run.Kind), run.OwnerType, string(run.Policy), run.DryRun,
		run.SourceShop, run.TargetShop, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Summary.Total, run.Summary.Created, run.Summary.Updated, run.Summary.Skipped,
		run.Summary.Errors, run.Summary.Conflicts, run.Error, string(resultsJSON))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

const runColumns = `id, job_id, kind, owner_type, policy, dry_run, source_shop, target_shop,
	started_at, finished_at, total, created, updated, skipped, errors, conflicts, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (*Run, error) {
	var run Run
	var kind, policy string
	var startedAt, finishedAt sql.NullTime
	dest := []any{&run.ID, &run.JobID, &kind, &run.OwnerType, &policy, &run.DryRun,
		&run.SourceShop, &run.TargetShop, &startedAt, &finishedAt,
		&run.Summary.Total, &run.Summary.Created, &run.Summary.Updated, &run.Summary.Skipped,
		&run.Summary.Errors, &run.Summary.Conflicts, &run.Error}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	run.Kind = models.EntityKind(kind)
	run.Policy = models.ConflictPolicy(policy)
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

// Get returns a run with its results.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+", results FROM runs WHERE id = ?", id)
	var resultsJSON string
	run, err := scanRun(row, &resultsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &run.Results); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}
	return run, nil
}

// List returns the most recent runs without their results. A non-positive
// limit returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY finished_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ListByJob returns the runs of one job in the order they were saved.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]Run, error) {
	return s.query(ctx, "SELECT "+runColumns+" FROM runs WHERE job_id = ? ORDER BY rowid", jobID)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run. Deleting a missing run is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	return nil
}
