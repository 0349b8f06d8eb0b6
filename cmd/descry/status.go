package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index contents and health",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	stats, err := p.store.Stats(ctx)
	if err != nil {
		return err
	}
	provider, model, err := p.store.EmbeddingModel(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Index: %s\n", p.cfg.IndexPath)
	fmt.Printf("  Files:      %d (%d described)\n", stats.Files, stats.Described)
	fmt.Printf("  Vectors:    %d (dimension %d, %s)\n", stats.Vectors, stats.Dimension, stats.Metric)
	fmt.Printf("  Embedding:  %s/%s\n", provider, model)
	fmt.Printf("  Size:       %.2f MB\n", stats.IndexSizeMB)

	if err := p.store.VerifyIntegrity(ctx); err != nil {
		fmt.Printf("  Integrity:  FAILED (%v)\n", err)
		return err
	}
	fmt.Printf("  Integrity:  ok\n")
	return nil
}
