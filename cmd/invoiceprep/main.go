// Command invoiceprep reshapes invoice exports for payment imports and
// document templates.
//
// Usage:
//
//	invoiceprep expand    --input invoices.csv [--output expanded.csv]
//	invoiceprep structure --input invoices.csv [--format json|yaml]
//	invoiceprep payments  --invoices invoices.csv --customers customers.csv --invoice-id-prefix INV2023
//	invoiceprep lint      --input invoices.csv
//	invoiceprep version
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code. The report, when
// requested, is written whether the command succeeded or not.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if reportErr := a.writeReport(err); reportErr != nil {
		err = errors.Join(err, reportErr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
