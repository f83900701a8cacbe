package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/Noofbiz/eegprep/ledger"
)

// Batch runs many subjects, each in isolation.
type Batch struct {
	Driver  *Driver
	Workers int          // <= 1 runs subjects one after another
	Ledger  ledger.Store // optional

	// OnOutcome, when set, receives outcomes in subject order as soon as
	// all earlier subjects are done.
	OnOutcome func(Outcome)
}

// Result summarises a batch.
type Result struct {
	RunID    string
	Outcomes []Outcome
}

// Count returns the number of outcomes in state s.
func (r *Result) Count(s State) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == s {
			n++
		}
	}
	return n
}

// Complete reports whether every subject was saved.
func (r *Result) Complete() bool {
	return r.Count(Saved) == len(r.Outcomes)
}

// Run processes subjects through a pool of b.Workers goroutines. One
// subject's failure never stops the others. The returned error is only set
// when the ledger cannot start a run.
func (b *Batch) Run(ctx context.Context, subjects []string) (*Result, error) {
	res := &Result{Outcomes: make([]Outcome, len(subjects))}
	if b.Ledger != nil {
		run, err := b.Ledger.BeginRun(ctx, len(subjects))
		if err != nil {
			return nil, fmt.Errorf("begin ledger run: %w", err)
		}
		res.RunID = run.ID
	}
	if len(subjects) == 0 {
		return res, nil
	}

	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(subjects) {
		workers = len(subjects)
	}

	ready := make([]chan struct{}, len(subjects))
	for i := range ready {
		ready[i] = make(chan struct{})
	}
	jobs := make(chan int, len(subjects))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				res.Outcomes[i] = b.Driver.Run(ctx, subjects[i])
				close(ready[i])
			}
		}()
	}

	for i := range subjects {
		jobs <- i
	}
	close(jobs)

	for i := range subjects {
		<-ready[i]
		b.report(ctx, res.RunID, res.Outcomes[i])
	}
	wg.Wait()

	return res, nil
}

func (b *Batch) report(ctx context.Context, runID string, o Outcome) {
	if b.Ledger != nil {
		err := b.Ledger.RecordOutcome(context.WithoutCancel(ctx), runID, ledger.Record{
			Subject:  o.Subject,
			State:    o.State.String(),
			Reason:   o.Reason(),
			Epochs:   o.Epochs,
			Rejected: o.Rejected,
			Excluded: len(o.Excluded),
			Elapsed:  o.Elapsed,
		})
		if err != nil {
			b.Driver.logger().Warn("ledger write failed", "subject", o.Subject, "error", err)
		}
	}
	if b.OnOutcome != nil {
		b.OnOutcome(o)
	}
}
