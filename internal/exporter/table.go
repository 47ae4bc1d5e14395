// Package exporter flattens merged report rows into tabular CSV and XLSX
// downloads.
package exporter

import (
	"strconv"

	"emspulse/pkg/contracts/domain"
)

const timestampFormat = "02-01-2006 15:04"

// Missing values render as a dash, matching the PDF table.
const missingValue = "-"

// Table is a flattened view of merged rows: a timestamp column followed by
// one column per parameter base name.
type Table struct {
	Headers []string
	Records [][]string
}

// BuildTable flattens rows into export form. Column order follows
// baseNames; buckets are assumed sorted by the caller.
func BuildTable(baseNames []string, rows []domain.MergedRow) *Table {
	headers := make([]string, 0, len(baseNames)+1)
	headers = append(headers, "Timestamp")
	headers = append(headers, baseNames...)

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, 0, len(headers))
		record = append(record, row.Bucket.Format(timestampFormat))
		for _, name := range baseNames {
			record = append(record, formatValue(row.Values[name]))
		}
		records = append(records, record)
	}

	return &Table{Headers: headers, Records: records}
}

func formatValue(v *float64) string {
	if v == nil {
		return missingValue
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
