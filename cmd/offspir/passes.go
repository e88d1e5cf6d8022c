package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"offspir/internal/ir"
	"offspir/internal/pipeline"
)

var passesDiscipline string

func init() {
	passesCmd.Flags().StringVar(&passesDiscipline, "discipline", "", "marshalling discipline (inside|outside)")
}

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List the pipeline stages in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		run := pipeline.NewRun(ir.NewModule("probe"), pipeline.Options{
			Discipline:  passesDiscipline,
			InlineHints: true,
			GlobalDCE:   true,
		})
		stages, err := run.Stages()
		if err != nil {
			return err
		}
		name := color.New(color.FgCyan)
		for i, s := range stages {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, name.Sprint(s.Name))
		}
		return nil
	},
}
