package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"descry/pkg/types"
)

var flagWatch bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Scan a project and index new or changed files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep watching for changes and rescan")
}

func runIndex(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	root := p.cfg.ProjectRoot
	if len(args) == 1 {
		root = args[0]
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}

	fmt.Printf("Indexing %s...\n", root)
	start := time.Now()

	report, err := p.scanner.Scan(cmd.Context(), root)
	if err != nil {
		return err
	}
	printReport(report, time.Since(start))

	if !flagWatch {
		return nil
	}

	fmt.Println("Watching for changes (ctrl-c to stop)...")
	return p.scanner.Watch(cmd.Context(), root, p.cfg.Scan.Debounce, p.searcher.InvalidateCache)
}

func printReport(report *types.ScanReport, elapsed time.Duration) {
	fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Added:     %d\n", len(report.Added))
	fmt.Printf("  Updated:   %d\n", len(report.Updated))
	fmt.Printf("  Removed:   %d\n", len(report.Removed))
	fmt.Printf("  Unchanged: %d\n", report.Unchanged)
	if len(report.Failed) > 0 {
		fmt.Printf("  Failed:    %d\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Printf("    %s: %v\n", f.Path, f.Err)
		}
	}
}
