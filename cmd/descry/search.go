package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find files relevant to a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "top-k", "k", 10, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	query := strings.Join(args, " ")
	result, err := p.searcher.Search(cmd.Context(), query, flagTopK)
	if err != nil {
		return err
	}

	if len(result) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	for i, m := range result {
		fmt.Printf("%2d. %-50s %.3f (keyword %.3f, vector %.3f)\n",
			i+1, m.Path, m.Score, m.KeywordScore, m.VectorScore)
	}
	return nil
}
