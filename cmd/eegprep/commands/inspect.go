package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Noofbiz/eegprep/datasets"
	"github.com/Noofbiz/eegprep/printer"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [features-dir]",
	Short: "Summarise the produced feature tensors",
	Long: `Inspect reads the <subject>_X.tensor / <subject>_y.tensor pairs in the
features directory (from the configuration when not given) and prints, per
subject, the number of balanced epochs and the size on disk, followed by the
epoch shape and the overall class distribution.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.FeaturesDir
	}

	ds, err := datasets.NewEpochDataset(dir)
	if err != nil {
		return printer.Error(
			"No features found",
			err.Error(),
			[]string{"Run eegprep first to produce the feature tensors"},
		)
	}

	out := cmd.OutOrStdout()
	sizes := ds.SubjectSizes()
	for i, subject := range ds.Subjects() {
		var bytes int64
		for _, suffix := range []string{"_X.tensor", "_y.tensor"} {
			if info, err := os.Stat(filepath.Join(dir, subject+suffix)); err == nil {
				bytes += info.Size()
			}
		}
		fmt.Fprintf(out, "%-8s %5d epochs  %s\n", subject, sizes[i], printer.Bytes(bytes))
	}

	channels, samples := ds.Shape()
	fmt.Fprintf(out, "\n%d epochs of %d channels x %d samples\n", ds.Len(), channels, samples)

	counts := make(map[int32]int)
	for _, y := range ds.Labels() {
		counts[y]++
	}
	classes := make([]int, 0, len(counts))
	for y := range counts {
		classes = append(classes, int(y))
	}
	sort.Ints(classes)
	for _, y := range classes {
		fmt.Fprintf(out, "  class %d: %d\n", y, counts[int32(y)])
	}
	return nil
}
