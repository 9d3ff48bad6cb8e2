package main

import (
	"fmt"

	"github.com/aretw0/pageflow/internal/cli"
	"github.com/aretw0/pageflow/internal/presentation/tui"
	"github.com/aretw0/pageflow/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the flows for consistency",
	Long:  `Loads every flow and reports unreachable states and dead ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		graphs, err := cli.LoadFlows(cfg.Flows)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for _, g := range graphs {
			if err := validator.ValidateGraph(g); err != nil {
				failed++
				fmt.Fprintf(out, "%s %s\n%v\n", tui.Status(out, false), g.ID(), err)
				continue
			}
			fmt.Fprintf(out, "%s %s\n", tui.Status(out, true), g.ID())
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d flows are invalid", failed, len(graphs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
