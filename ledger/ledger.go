// Package ledger records the outcome of every subject of every batch run.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Run describes one batch invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	Subjects  int
}

// Record is the outcome of one subject within a run.
type Record struct {
	Subject  string
	State    string
	Reason   string
	Epochs   int // balanced epochs written
	Rejected int // epochs dropped for amplitude
	Excluded int // artifact components removed
	Elapsed  time.Duration
}

// Store persists runs and their subject outcomes.
type Store interface {
	Init(ctx context.Context) error
	BeginRun(ctx context.Context, subjects int) (Run, error)
	RecordOutcome(ctx context.Context, runID string, rec Record) error
	Outcomes(ctx context.Context, runID string) ([]Record, bool, error)
}

// NewStore returns the backend named by kind.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", kind)
	}
}

// CloseIfSupported closes store when the backend holds resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
