package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Noofbiz/eegprep/config"
	"github.com/Noofbiz/eegprep/ica"
	"github.com/Noofbiz/eegprep/ledger"
	"github.com/Noofbiz/eegprep/loader"
	"github.com/Noofbiz/eegprep/logging"
	"github.com/Noofbiz/eegprep/montage"
	"github.com/Noofbiz/eegprep/pipeline"
	"github.com/Noofbiz/eegprep/printer"
	"github.com/Noofbiz/eegprep/store"
	"github.com/spf13/cobra"
)

// defaultConfigFile is picked up from the working directory when --config
// is not given.
const defaultConfigFile = "eegprep.yml"

var (
	version string
	commit  string
	date    string

	configPath string
	workers    int
	strict     bool
	plots      bool
)

// rootCmd runs the preprocessing batch
var rootCmd = &cobra.Command{
	Use:   "eegprep",
	Short: "Batch EEG preprocessing for motor-imagery classification",
	Long: `eegprep turns raw multi-channel EEG recordings into cleaned, labelled,
class-balanced epochs ready for classifier training.

For every subject it assigns channel roles, applies the standard 10-20
layout with an average reference, band-pass filters to 1-40 Hz, removes
ocular artifacts with ICA, cuts 4 s epochs after each motor-imagery cue and
balances the classes. Missing subjects are skipped without stopping the
batch.

With no flags the built-in defaults (or ./eegprep.yml, if present) are used.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBatch,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration (default ./eegprep.yml when present)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Subjects processed in parallel (overrides config)")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any subject is skipped or fails")
	rootCmd.Flags().BoolVar(&plots, "plots", false, "Write class-average and ICA score plots")
}

// loadConfig resolves the configuration from --config, ./eegprep.yml or
// the built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.Default(), nil
		}
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.Error(
			"Configuration error",
			err.Error(),
			[]string{
				fmt.Sprintf("Fix %s and run again", path),
				"Remove it to use the built-in defaults",
			},
		)
	}
	return cfg, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = workers
	}
	if cmd.Flags().Changed("strict") {
		cfg.StrictExit = strict
	}
	if cmd.Flags().Changed("plots") {
		cfg.Plots = plots
	}
	if err := cfg.Validate(); err != nil {
		return printer.Error("Configuration error", err.Error(), nil)
	}

	logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fs, err := store.NewFileStore(cfg.ProcessedDir, cfg.FeaturesDir)
	if err != nil {
		return err
	}

	lg, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.CloseIfSupported(lg) }()

	batch := &pipeline.Batch{
		Driver:    newDriver(cfg, fs),
		Workers:   cfg.Workers,
		Ledger:    lg,
		OnOutcome: printOutcome,
	}

	printer.Step("Processing %d subjects from %s (%d workers)\n", len(cfg.Subjects), cfg.RawDir, cfg.Workers)
	res, err := batch.Run(ctx, cfg.Subjects)
	if err != nil {
		return err
	}

	printer.Info("\nBatch preprocessing complete! %d saved, %d skipped, %d failed (run %s)\n",
		res.Count(pipeline.Saved), res.Count(pipeline.Skipped), res.Count(pipeline.Failed), res.RunID)

	if cfg.StrictExit && !res.Complete() {
		return errors.New("batch incomplete: not every subject was saved")
	}
	return nil
}

func newDriver(cfg *config.Config, fs *store.FileStore) *pipeline.Driver {
	src := loader.New(cfg.RawDir)
	src.Extension = cfg.FileExtension

	d := pipeline.NewDriver(src, fs)
	d.Layout = montage.Standard1020()
	d.SignalChannelCount = cfg.SignalChannelCount
	d.Low, d.High = cfg.Band.Low, cfg.Band.High
	d.Remover = ica.NewRemover(cfg.DecompositionConfig())
	d.Remover.Threshold = cfg.ICA.Threshold
	d.Segment = cfg.SegmentConfig()
	d.BalanceSeed = cfg.Balance.Seed
	if cfg.Plots {
		d.PlotDir = filepath.Join(cfg.ProcessedDir, "plots")
	}
	return d
}

func openLedger(ctx context.Context, cfg *config.Config) (ledger.Store, error) {
	if cfg.Ledger.Backend == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(cfg.Ledger.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	lg, err := ledger.NewStore(cfg.Ledger.Backend, cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	if err := lg.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return lg, nil
}

func printOutcome(o pipeline.Outcome) {
	switch o.State {
	case pipeline.Saved:
		printer.Success("Saved %d balanced trials for %s (%s, %d components removed)\n",
			o.Epochs, o.Subject, printer.Bytes(o.Artifacts.Bytes), len(o.Excluded))
	case pipeline.Skipped:
		if errors.Is(o.Err, pipeline.ErrMissingInput) {
			printer.Warning("Raw file for %s not found, skipping\n", o.Subject)
		} else {
			printer.Warning("No motor imagery events found for %s, skipping\n", o.Subject)
		}
	default:
		printer.Failure("%s failed while %s: %v\n", o.Subject, stageVerb(o.At), o.Err)
	}
}

// stageVerb describes the step a subject was in.
func stageVerb(s pipeline.State) string {
	switch s {
	case pipeline.Loaded:
		return "loading"
	case pipeline.Normalized:
		return "applying the layout"
	case pipeline.Filtered:
		return "filtering"
	case pipeline.Denoised:
		return "removing artifacts"
	case pipeline.Segmented:
		return "segmenting"
	case pipeline.Saved:
		return "saving"
	default:
		return s.String()
	}
}
