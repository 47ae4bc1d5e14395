package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	// BOMPrefix emits a UTF-8 BOM so Excel detects the encoding.
	BOMPrefix bool
}

// WriteCSV streams the table to w as CSV.
func WriteCSV(w io.Writer, table *Table, opts CSVOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(table.Headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for i, record := range table.Records {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
