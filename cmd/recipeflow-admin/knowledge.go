package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alchemorsel/recipeflow/internal/domain/knowledge"
	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newKnowledgeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect learned knowledge bases",
	}

	var output string
	show := &cobra.Command{
		Use:   "show <cuisine>",
		Short: "Print the knowledge base of a cuisine",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOutput(output)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc inbound.KnowledgeService
			stop, err := c.startServices(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			kb, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeKnowledgeBase(c.out, kb, output)
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")

	cmd.AddCommand(show)
	return cmd
}

func validateOutput(output string) error {
	switch output {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q, want text, json or yaml", output)
	}
}

func writeKnowledgeBase(w io.Writer, kb *knowledge.KnowledgeBase, output string) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(kb)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(kb); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "Cuisine:       %s\n", kb.Cuisine)
	fmt.Fprintf(w, "Recipes:       %s\n", humanize.Comma(int64(kb.RecipeCount)))
	fmt.Fprintf(w, "Avg quality:   %.1f\n", kb.AvgQualityScore)
	fmt.Fprintf(w, "Last learned:  %s\n", humanize.Time(kb.LastLearnedAt))

	if len(kb.CommonSacredIngredients) > 0 {
		fmt.Fprintln(w, "Sacred ingredients:")
		for _, s := range kb.CommonSacredIngredients {
			fmt.Fprintf(w, "  %-24s %3d%%  %s\n", s.Ingredient, s.Frequency, s.Reason)
		}
	}
	writeList(w, "Techniques", kb.CommonSacredTechniques)
	writeList(w, "Flavour profiles", kb.CommonFlavourProfiles)
	writeList(w, "Hero ingredients", kb.TypicalHeroIngredients)

	if len(kb.CommonlyRemoved) > 0 {
		fmt.Fprintln(w, "Commonly removed:")
		for _, r := range kb.CommonlyRemoved {
			fmt.Fprintf(w, "  %-24s %3d%%\n", r.Ingredient, r.Frequency)
		}
	}
	if len(kb.CommonSubstitutions) > 0 {
		fmt.Fprintln(w, "Substitutions:")
		for _, s := range kb.CommonSubstitutions {
			fmt.Fprintf(w, "  %s -> %s\n", s.Original, s.Substitute)
		}
	}
	if len(kb.CommonSideTasks) > 0 {
		fmt.Fprintln(w, "Side tasks:")
		for _, s := range kb.CommonSideTasks {
			fmt.Fprintf(w, "  %-24s %3d%%\n", s.Task, s.Frequency)
		}
	}
	return nil
}

func writeList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(items, ", "))
}
