package main

import (
	"fmt"

	"github.com/alchemorsel/recipeflow/internal/ports/inbound"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newCardsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Work with workflow cards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate <recipe-id>",
		Short: "Generate, or regenerate, the workflow cards of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipeID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("recipe id must be a UUID: %w", err)
			}

			var svc inbound.CardService
			stop, err := c.startServices(cmd.Context(), &svc)
			if err != nil {
				return err
			}
			defer stop()

			result, err := svc.Generate(cmd.Context(), recipeID)
			if err != nil {
				return err
			}

			mode := "generic"
			if result.SacredAware {
				mode = "sacred-aware"
			}
			fmt.Fprintf(c.out, "Generated %d %s cards for recipe %s\n", result.CardCount, mode, result.RecipeID)
			return nil
		},
	})
	return cmd
}
