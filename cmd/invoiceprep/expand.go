package main

import (
	"github.com/nao1215/invoiceprep/meta"
	"github.com/spf13/cobra"
)

func newExpandCmd(a *app) *cobra.Command {
	var input, output, dash string

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Fold leading meta rows into companion columns",
		Long: `expand reads a table whose "meta" column tags its first rows, turns every
tagged row into companion columns <group>.<index>.<tag> and writes the data rows
with the new columns appended. Columns named "Unnamed..." are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy, err := a.dashPolicy(cmd, dash)
			if err != nil {
				return err
			}
			table, err := a.readTable(input)
			if err != nil {
				return err
			}

			expander := meta.NewExpander(meta.WithDashPolicy(policy), meta.WithLogger(a.logger()))
			expanded, err := expander.Expand(table)
			if err != nil {
				return err
			}
			return a.writeTable(output, expanded)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", `input file, "-" reads CSV from stdin`)
	cmd.Flags().StringVarP(&output, "output", "o", stdio, `output file, "-" writes CSV to stdout`)
	cmd.Flags().StringVar(&dash, "dash-policy", "", `how rows tagged "-" are read: skip or terminate`)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
