package invoiceprep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// parseParquet parses Parquet data from reader.
func parseParquet(reader io.Reader) (*Table, error) {
	// the footer is at the end of the file
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty parquet file")
	}

	pqReader, err := pqfile.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	headers := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		headers[i] = field.Name
	}

	records := [][]string{}
	tableReader := array.NewTableReader(table, 0)
	defer tableReader.Release()

	for tableReader.Next() {
		batch := tableReader.Record()
		for i := range int(batch.NumRows()) {
			row := make([]string, batch.NumCols())
			for j, col := range batch.Columns() {
				row[j] = cellValue(col, i)
			}
			records = append(records, row)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("error reading table records: %w", err)
	}

	return NewTable(headers, records)
}

// writeParquet writes the table as a single row group with one UTF-8 column per
// header. Cells keep their text so amounts and identifiers are not reformatted.
func writeParquet(writer io.Writer, table *Table) error {
	fields := make([]arrow.Field, len(table.Headers))
	for i, h := range table.Headers {
		fields[i] = arrow.Field{Name: h, Type: arrow.BinaryTypes.String}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()

	for _, record := range table.Records {
		for i, value := range record {
			builder.Field(i).(*array.StringBuilder).Append(value)
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	arrowTable := array.NewTableFromRecords(schema, []arrow.Record{record})
	defer arrowTable.Release()

	chunkSize := int64(max(len(table.Records), 1))
	// the parquet writer closes its sink; hide Close from it so the caller
	// keeps ownership of writer
	sink := struct{ io.Writer }{writer}
	if err := pqarrow.WriteTable(arrowTable, sink, chunkSize, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("failed to write parquet: %w", err)
	}
	return nil
}

// cellValue renders the value at index as table text. Dates are rendered as
// YYYY-MM-DD, timestamps as RFC 3339 and decimals with their scale, so that
// amounts and charge dates read like their CSV counterparts.
func cellValue(arr arrow.Array, index int) string {
	if arr.IsNull(index) {
		return ""
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return strconv.FormatBool(a.Value(index))

	case *array.Int8:
		return strconv.FormatInt(int64(a.Value(index)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(a.Value(index)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(index)), 10)
	case *array.Int64:
		return strconv.FormatInt(a.Value(index), 10)

	case *array.Uint8:
		return strconv.FormatUint(uint64(a.Value(index)), 10)
	case *array.Uint16:
		return strconv.FormatUint(uint64(a.Value(index)), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(a.Value(index)), 10)
	case *array.Uint64:
		return strconv.FormatUint(a.Value(index), 10)

	case *array.Float32:
		return strconv.FormatFloat(float64(a.Value(index)), 'f', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(a.Value(index), 'f', -1, 64)
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		return a.Value(index).ToString(scale)

	case *array.String:
		return a.Value(index)
	case *array.LargeString:
		return a.Value(index)
	case *array.Binary:
		return string(a.Value(index))

	case *array.Date32:
		return a.Value(index).ToTime().Format(time.DateOnly)
	case *array.Date64:
		return a.Value(index).ToTime().Format(time.DateOnly)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(index).ToTime(unit).Format(time.RFC3339Nano)

	default:
		return fmt.Sprintf("%v", arr.GetOneForMarshal(index))
	}
}
