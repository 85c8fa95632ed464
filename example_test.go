package invoiceprep_test

import (
	"fmt"
	"os"
	"strings"

	"github.com/nao1215/invoiceprep"
)

func ExampleParse_csv() {
	csvData := `parent_id,amount_due,payments.1.amount
ID123,12.34,12.34
ID124,20,20`

	result, err := invoiceprep.Parse(strings.NewReader(csvData), invoiceprep.FileType{Format: invoiceprep.CSV})
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println("Headers:", result.Headers)
	fmt.Println("Records:", result.Len())
	fmt.Println("First row:", result.Records[0])
	// Output:
	// Headers: [parent_id amount_due payments.1.amount]
	// Records: 2
	// First row: [ID123 12.34 12.34]
}

func ExampleDetectFileType() {
	paths := []string{
		"invoices.csv",
		"invoices.csv.gz",
		"customers.xlsx",
		"payments.parquet.zst",
		"report.pdf",
	}

	for _, path := range paths {
		ft := invoiceprep.DetectFileType(path)
		fmt.Printf("%s -> %s (supported: %t)\n", path, ft, ft.IsSupported())
	}
	// Output:
	// invoices.csv -> CSV (supported: true)
	// invoices.csv.gz -> CSV (gzip) (supported: true)
	// customers.xlsx -> XLSX (supported: true)
	// payments.parquet.zst -> Parquet (zstd) (supported: true)
	// report.pdf -> Unsupported (supported: false)
}

func ExampleWrite() {
	table, err := invoiceprep.NewTable(
		[]string{"payment.amount", "payment.currency", "payment.description"},
		[][]string{{"12.34", "GBP", "INV123/ID123/1"}},
	)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	if err := invoiceprep.Write(os.Stdout, table, invoiceprep.FileType{Format: invoiceprep.CSV}); err != nil {
		fmt.Println("Error:", err)
	}
	// Output:
	// payment.amount,payment.currency,payment.description
	// 12.34,GBP,INV123/ID123/1
}

func ExampleIsEmpty() {
	for _, v := range []string{"", "NaN", "0.00", "12.34", "Item 1"} {
		fmt.Printf("%q: %t\n", v, invoiceprep.IsEmpty(v))
	}
	// Output:
	// "": true
	// "NaN": true
	// "0.00": true
	// "12.34": false
	// "Item 1": false
}

func ExampleTable_Row() {
	table, err := invoiceprep.NewTable(
		[]string{"parent_id", "item_lines.1.amount"},
		[][]string{{"ID123", "10"}},
	)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	for _, field := range table.Row(0) {
		fmt.Printf("%s=%s\n", field.Name, field.Value)
	}
	// Output:
	// parent_id=ID123
	// item_lines.1.amount=10
}
