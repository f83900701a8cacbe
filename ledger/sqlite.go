package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	// one writer at a time; workers report concurrently
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) BeginRun(ctx context.Context, subjects int) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}

	run := Run{ID: uuid.New().String(), StartedAt: time.Now().UTC(), Subjects: subjects}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, subjects)
		VALUES (?, ?, ?)
	`, run.ID, run.StartedAt.Format(time.RFC3339Nano), run.Subjects)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, runID string, rec Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, subject, state, reason, epochs, rejected, components, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, subject) DO UPDATE SET
			state = excluded.state,
			reason = excluded.reason,
			epochs = excluded.epochs,
			rejected = excluded.rejected,
			components = excluded.components,
			elapsed_ns = excluded.elapsed_ns
	`, runID, rec.Subject, rec.State, rec.Reason, rec.Epochs, rec.Rejected, rec.Excluded, int64(rec.Elapsed))
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", rec.Subject, err)
	}
	return nil
}

func (s *SQLiteStore) Outcomes(ctx context.Context, runID string) ([]Record, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var id string
	err = db.QueryRowContext(ctx, `SELECT id FROM runs WHERE id = ?`, runID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT subject, state, reason, epochs, rejected, components, elapsed_ns
		FROM outcomes WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			elapsed int64
		)
		if err := rows.Scan(&rec.Subject, &rec.State, &rec.Reason, &rec.Epochs, &rec.Rejected, &rec.Excluded, &elapsed); err != nil {
			return nil, false, err
		}
		rec.Elapsed = time.Duration(elapsed)
		out = append(out, rec)
	}
	return out, true, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			subjects INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS outcomes (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			subject TEXT NOT NULL,
			state TEXT NOT NULL,
			reason TEXT NOT NULL,
			epochs INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			components INTEGER NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			UNIQUE (run_id, subject)
		);
	`)
	return err
}
