package invoiceprep

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// parseXLSX parses the first sheet of an Excel workbook.
func parseXLSX(reader io.Reader) (*Table, error) {
	// excelize needs the whole workbook
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read XLSX data: %w", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("no sheets found in XLSX file")
	}

	sheetName := sheets[0]
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}

	if len(rows) == 0 {
		return nil, errors.New("empty XLSX sheet")
	}
	if len(rows[0]) == 0 {
		return nil, errors.New("no headers found in XLSX")
	}

	// GetRows drops trailing blank cells. Data cells right of the last header
	// get blank headers, named like any other blank header; short rows are
	// padded by NewTable.
	headers := rows[0]
	for _, row := range rows[1:] {
		for len(headers) < len(row) {
			headers = append(headers, "")
		}
	}
	return NewTable(nameBlankHeaders(headers), rows[1:])
}

// writeXLSX writes the table, header first, to the first sheet of a new workbook.
// Cells are written as text so values round-trip unchanged.
func writeXLSX(writer io.Writer, table *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := f.GetSheetName(0)
	rows := append([][]string{table.Headers}, table.Records...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+1, err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(writer); err != nil {
		return fmt.Errorf("failed to write XLSX: %w", err)
	}
	return nil
}
