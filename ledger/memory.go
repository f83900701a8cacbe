package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]Run
	outcomes map[string][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]Run)
	s.outcomes = make(map[string][]Record)
	return nil
}

func (s *MemoryStore) BeginRun(_ context.Context, subjects int) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs == nil {
		return Run{}, errors.New("store is not initialized")
	}
	run := Run{ID: uuid.New().String(), StartedAt: time.Now().UTC(), Subjects: subjects}
	s.runs[run.ID] = run
	return run, nil
}

func (s *MemoryStore) RecordOutcome(_ context.Context, runID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return errors.New("unknown run " + runID)
	}
	for i, prev := range s.outcomes[runID] {
		if prev.Subject == rec.Subject {
			s.outcomes[runID][i] = rec
			return nil
		}
	}
	s.outcomes[runID] = append(s.outcomes[runID], rec)
	return nil
}

func (s *MemoryStore) Outcomes(_ context.Context, runID string) ([]Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, false, nil
	}
	return slices.Clone(s.outcomes[runID]), true, nil
}
