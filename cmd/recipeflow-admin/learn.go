package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newLearnCmd(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "learn [cuisine]",
		Short: "Recompute cuisine knowledge from stored sacred analyses",
		Long: `Recomputes a knowledge base from every sacred analysis of the cuisine.

Learning needs at least two analyses; cuisines with fewer are skipped.

Examples:
  recipeflow-admin learn italian
  recipeflow-admin learn --all`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass a cuisine or --all, not both")
			}
			if !all && len(args) != 1 {
				return errors.New("a cuisine is required unless --all is set")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc inbound.KnowledgeService
			stop, err := c.startServices(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			if all {
				return learnAll(c, cmd, svc)
			}

			kb, err := svc.Learn(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Learned %s from %s recipes (avg quality %.1f)\n",
				kb.Cuisine, humanize.Comma(int64(kb.RecipeCount)), kb.AvgQualityScore)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "learn every cuisine that has analyses")
	return cmd
}

func learnAll(c *cli, cmd *cobra.Command, svc inbound.KnowledgeService) error {
	var bar *pb.ProgressBar
	report, err := svc.LearnAll(cmd.Context(), func(p inbound.LearnProgress) {
		if bar == nil {
			bar = newProgressBar(p.Total, "learning ")
		}
		bar.Increment()
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Learned %d, skipped %d, failed %d\n",
		len(report.Learned), len(report.Skipped), len(report.Failed))
	for _, cuisine := range sortedKeys(report.Failed) {
		fmt.Fprintf(c.out, "  %s: %s\n", cuisine, report.Failed[cuisine])
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d cuisine(s) failed to learn", len(report.Failed))
	}
	return nil
}

func newProgressBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.Full.Start(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.CleanOnFinish, true)
	return bar
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
