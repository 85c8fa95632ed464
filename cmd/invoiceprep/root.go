package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/invoiceprep"
	"github.com/nao1215/invoiceprep/internal/config"
	"github.com/nao1215/invoiceprep/internal/logging"
	"github.com/nao1215/invoiceprep/meta"
	"github.com/spf13/cobra"
)

// stdio is the path meaning standard input or output, as CSV.
const stdio = "-"

// app holds the state shared by the commands of one run.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	reportPath string

	cfg       *config.Config
	collector *logging.Collector
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoiceprep",
		Short: "Prepare invoice exports for payment imports and document templates",
		Long: `invoiceprep reads invoice exports (CSV, TSV, LTSV, XLSX or Parquet, optionally
compressed) whose first rows may carry metadata such as column titles or charge
dates, and turns them into:

  - expanded tables where each meta row became companion columns (expand)
  - nested records for document templates, as JSON lines or YAML (structure)
  - validated GoCardless bulk payment files (payments)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.reportPath, "report", "", "write the log of the run to this file")

	cmd.AddCommand(
		newExpandCmd(a),
		newStructureCmd(a),
		newPaymentsCmd(a),
		newLintCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies the logging flags and creates the
// log collector.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	collector, err := logging.NewCollector(a.stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.collector = collector
	return nil
}

func (a *app) logger() *slog.Logger {
	if a.collector == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.collector.Logger()
}

// dashPolicy returns the --dash-policy flag when set, else the configured policy.
func (a *app) dashPolicy(cmd *cobra.Command, flag string) (meta.DashPolicy, error) {
	if cmd.Flags().Changed("dash-policy") {
		return meta.ParseDashPolicy(flag)
	}
	return a.cfg.DashPolicy()
}

// writeReport saves the collected log, followed by runErr when the run failed.
func (a *app) writeReport(runErr error) (err error) {
	if a.reportPath == "" || a.collector == nil {
		return nil
	}

	f, err := os.Create(a.reportPath)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close report: %w", closeErr)
		}
	}()

	if _, err := a.collector.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if runErr != nil {
		if _, err := fmt.Fprintf(f, "\nError: %v\n", runErr); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// readTable parses the file at path, or CSV from standard input for "-".
func (a *app) readTable(path string) (*invoiceprep.Table, error) {
	if path == stdio {
		return invoiceprep.Parse(a.stdin, invoiceprep.FileType{Format: invoiceprep.CSV})
	}

	fileType := invoiceprep.DetectFileType(path)
	if !fileType.IsSupported() {
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}

	f, err := os.Open(path) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	table, err := invoiceprep.Parse(f, fileType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger().Debug("read table", "path", path, "type", fileType.String(), "rows", table.Len())
	return table, nil
}

// writeTable writes table to the file at path, or CSV to standard output for
// "-" and "".
func (a *app) writeTable(path string, table *invoiceprep.Table) error {
	if path == "" || path == stdio {
		return invoiceprep.Write(a.stdout, table, invoiceprep.FileType{Format: invoiceprep.CSV})
	}

	fileType := invoiceprep.DetectFileType(path)
	if !fileType.IsSupported() {
		return fmt.Errorf("unsupported file type: %s", path)
	}
	return a.createOutput(path, func(w io.Writer) error {
		return invoiceprep.Write(w, table, fileType)
	})
}

// createOutput creates the file at path, or uses standard output for "-" and
// "", and hands it to write.
func (a *app) createOutput(path string, write func(io.Writer) error) (err error) {
	if path == "" || path == stdio {
		return write(a.stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", closeErr)
		}
	}()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
