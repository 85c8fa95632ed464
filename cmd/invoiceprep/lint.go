package main

import (
	"fmt"

	"github.com/nao1215/invoiceprep/meta"
	"github.com/spf13/cobra"
)

func newLintCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Report column names that almost follow <group>.<index>.<subfield>",
		Long: `lint prints the columns whose names look like indexed columns but would be
ignored by expand and structure, such as "item_lines.1" or "item_lines..amount".
It exits with an error when any column is reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := a.readTable(input)
			if err != nil {
				return err
			}

			warnings := meta.Lint(table.Headers)
			for _, w := range warnings {
				fmt.Fprintln(cmd.OutOrStdout(), w.String())
			}
			if len(warnings) > 0 {
				return fmt.Errorf("found %d suspicious column names", len(warnings))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", `input file, "-" reads CSV from stdin`)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
