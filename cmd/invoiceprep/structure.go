package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/nao1215/invoiceprep/meta"
	"github.com/nao1215/invoiceprep/record"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Record output formats.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func newStructureCmd(a *app) *cobra.Command {
	var input, output, format, dash string

	cmd := &cobra.Command{
		Use:   "structure",
		Short: "Write each row as a nested record for document templates",
		Long: `structure expands the meta rows of the input, then nests every
<group>.<index>.<subfield> column of each row as record[group][index][subfield].
Records are written as JSON lines or as a stream of YAML documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatJSON && format != formatYAML {
				return fmt.Errorf("unknown record format: %s", format)
			}
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
			records, err := record.FromTable(expanded)
			if err != nil {
				return err
			}

			a.logger().Info("structured records", "records", len(records), "format", format)
			return a.createOutput(output, func(w io.Writer) error {
				if format == formatYAML {
					return writeYAML(w, records)
				}
				return writeJSONLines(w, records)
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", `input file, "-" reads CSV from stdin`)
	cmd.Flags().StringVarP(&output, "output", "o", stdio, `output file, "-" writes to stdout`)
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "record format: json or yaml")
	cmd.Flags().StringVar(&dash, "dash-policy", "", `how rows tagged "-" are read: skip or terminate`)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func writeJSONLines(w io.Writer, records []*record.Record) error {
	encoder := json.NewEncoder(w)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	return nil
}

func writeYAML(w io.Writer, records []*record.Record) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}
	return encoder.Close()
}
