package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Noofbiz/eegprep/balance"
	"github.com/Noofbiz/eegprep/epochs"
	"github.com/Noofbiz/eegprep/filter"
	"github.com/Noofbiz/eegprep/ica"
	"github.com/Noofbiz/eegprep/logging"
	"github.com/Noofbiz/eegprep/montage"
	"github.com/Noofbiz/eegprep/recording"
	"github.com/Noofbiz/eegprep/report"
	"github.com/Noofbiz/eegprep/store"
)

// Source loads the raw recording of a subject. found is false when the
// subject has no input.
type Source interface {
	Load(ctx context.Context, subject string) (rec *recording.Recording, found bool, err error)
}

// Sink persists the outputs of a subject.
type Sink interface {
	Save(subject string, clean *recording.Recording, set *epochs.EpochSet) (store.Artifacts, error)
}

// Driver runs subjects through the preprocessing steps. A Driver holds no
// per-subject state and may run several subjects concurrently.
type Driver struct {
	Source             Source
	Sink               Sink
	Layout             *montage.Layout
	SignalChannelCount int
	Low, High          float64 // pass band in Hz
	Remover            *ica.Remover
	Segment            epochs.Config
	BalanceSeed        int64
	PlotDir            string // class-average and component plots are skipped when empty
	Logger             *slog.Logger

	// OnTransition, when set, is called for every state a subject enters.
	OnTransition func(subject string, s State)
}

// NewDriver returns a Driver with the default processing constants.
func NewDriver(source Source, sink Sink) *Driver {
	return &Driver{
		Source:             source,
		Sink:               sink,
		Layout:             montage.Standard1020(),
		SignalChannelCount: recording.DefaultSignalChannelCount,
		Low:                1,
		High:               40,
		Remover:            ica.NewRemover(ica.DefaultConfig()),
		Segment:            epochs.DefaultConfig(),
		BalanceSeed:        balance.DefaultSeed,
	}
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Run processes one subject to a terminal state. Errors never escape: they
// are reported in the Outcome. A panic in any step fails the subject at
// that step.
func (d *Driver) Run(ctx context.Context, subject string) (res Outcome) {
	start := time.Now()
	log := logging.Subject(d.logger(), subject)
	out := Outcome{Subject: subject}

	enter := func(s State) {
		out.At = s
		if d.OnTransition != nil {
			d.OnTransition(subject, s)
		}
	}
	finish := func(s State, err error) Outcome {
		out.State = s
		out.Err = err
		out.Elapsed = time.Since(start)
		if d.OnTransition != nil {
			d.OnTransition(subject, s)
		}
		switch s {
		case Skipped:
			log.Warn("subject skipped", "stage", out.At.String(), "reason", err)
		case Failed:
			log.Error("subject failed", "stage", out.At.String(), "error", err)
		default:
			log.Info("subject saved", "epochs", out.Epochs, "elapsed", out.Elapsed)
		}
		return out
	}
	// fail terminates at the step being attempted.
	fail := func(s State, err error) Outcome {
		out.At = s
		return finish(classify(err), err)
	}

	defer func() {
		if p := recover(); p != nil {
			// out.At is the last step reached; fail at the one after it.
			if out.At < Saved {
				out.At++
			}
			res = finish(Failed, fmt.Errorf("panic: %v", p))
		}
	}()

	if d.OnTransition != nil {
		d.OnTransition(subject, NotStarted)
	}

	rec, found, err := d.Source.Load(ctx, subject)
	if err != nil {
		return fail(Loaded, err)
	}
	if !found {
		return fail(Loaded, fmt.Errorf("%s: %w", subject, ErrMissingInput))
	}
	enter(Loaded)
	log.Debug("recording loaded", "channels", rec.Channels(), "samples", rec.Samples(), "sample_rate", rec.SampleRate)

	rec = recording.AssignRoles(rec, d.SignalChannelCount)
	enter(RoleAssigned)

	if err := ctx.Err(); err != nil {
		return fail(Normalized, err)
	}
	if rec, err = montage.Normalize(rec, d.Layout); err != nil {
		return fail(Normalized, err)
	}
	enter(Normalized)

	if rec, err = filter.BandPass(rec, d.Low, d.High); err != nil {
		return fail(Filtered, err)
	}
	enter(Filtered)

	if err := ctx.Err(); err != nil {
		return fail(Denoised, err)
	}
	clean, rep, err := d.Remover.Remove(rec)
	if err != nil {
		return fail(Denoised, err)
	}
	out.Excluded = rep.Excluded
	enter(Denoised)
	log.Info("artifacts removed", "stage", Denoised.String(), "excluded", rep.Excluded, "iterations", rep.Iterations)

	set, err := epochs.Segment(clean, d.Segment)
	if err != nil {
		return fail(Segmented, err)
	}
	out.Rejected = set.Rejected
	enter(Segmented)
	log.Info("epochs cut", "stage", Segmented.String(), "kept", set.Len(), "rejected", set.Rejected, "truncated", set.Truncated)

	balanced := balance.Balance(set, d.BalanceSeed)
	out.Epochs = balanced.Len()
	enter(Balanced)
	log.Debug("classes balanced", "per_class", balance.Counts(balanced))

	if err := ctx.Err(); err != nil {
		return fail(Saved, err)
	}
	if out.Artifacts, err = d.Sink.Save(subject, clean, balanced); err != nil {
		return fail(Saved, err)
	}
	d.plot(log, subject, set, rep)

	out.At = Saved
	return finish(Saved, nil)
}

// plot writes the diagnostic images. Failures are logged only.
func (d *Driver) plot(log *slog.Logger, subject string, set *epochs.EpochSet, rep ica.Report) {
	if d.PlotDir == "" {
		return
	}
	if set.Len() > 0 {
		if err := report.PlotClassAverages(set, filepath.Join(d.PlotDir, subject+"_classes.png")); err != nil {
			log.Warn("class average plot failed", "error", err)
		}
	}
	if len(rep.Scores) > 0 {
		if err := report.PlotComponentScores(rep, filepath.Join(d.PlotDir, subject+"_ica.png")); err != nil {
			log.Warn("component score plot failed", "error", err)
		}
	}
}
