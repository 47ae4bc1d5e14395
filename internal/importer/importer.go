// Package importer parses sensor reading exports for bulk ingestion. Data
// loggers export either CSV or Excel workbooks; both carry a header row
// with a timestamp column followed by one column per series.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"emspulse/pkg/contracts/domain"
)

// Timestamp layouts accepted in export files, tried in order. Numeric
// cells are treated as unix epoch milliseconds.
var timestampLayouts = []string{
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	time.RFC3339,
}

// Result is one parsed export: samples grouped by series name, plus rows
// that could not be parsed.
type Result struct {
	Series  map[string][]domain.Sample
	Skipped int
}

// Importer parses reading exports.
type Importer struct {
	logger *slog.Logger
}

// New creates an importer.
func New(logger *slog.Logger) *Importer {
	return &Importer{logger: logger.With(slog.String("component", "importer"))}
}

// Parse dispatches on the file extension. Only .csv and .xlsx are
// supported.
func (im *Importer) Parse(r io.Reader, filename string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return im.ParseCSV(r)
	case ".xlsx":
		return im.ParseXLSX(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a CSV export.
func (im *Importer) ParseCSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return im.parseRows(rows)
}

// ParseXLSX reads an Excel export. The first sheet with a recognizable
// header row wins; loggers often prepend metadata sheets.
func (im *Importer) ParseXLSX(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		if headerIndex(rows) < 0 {
			continue
		}
		im.logger.Debug("reading sheet", slog.String("sheet", name))
		return im.parseRows(rows)
	}
	return nil, fmt.Errorf("no sheet with a timestamp header found")
}

// parseRows locates the header row and folds the data rows into series.
// Unparsable rows are skipped with a warning, not fatal; a single bad
// reading must not reject a whole export.
func (im *Importer) parseRows(rows [][]string) (*Result, error) {
	header := headerIndex(rows)
	if header < 0 {
		return nil, fmt.Errorf("no timestamp header row found")
	}

	names := make([]string, 0, len(rows[header])-1)
	for _, cell := range rows[header][1:] {
		names = append(names, strings.TrimSpace(cell))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("header row has no series columns")
	}

	result := &Result{Series: make(map[string][]domain.Sample, len(names))}
	for i := header + 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		ts, err := parseTimestamp(strings.TrimSpace(row[0]))
		if err != nil {
			im.logger.Warn("skipping row with bad timestamp",
				slog.Int("row", i),
				slog.String("value", row[0]))
			result.Skipped++
			continue
		}

		for col, name := range names {
			if name == "" || col+1 >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col+1])
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				im.logger.Warn("skipping unparsable value",
					slog.Int("row", i),
					slog.String("series", name),
					slog.String("value", cell))
				result.Skipped++
				continue
			}
			result.Series[name] = append(result.Series[name], domain.Sample{
				Timestamp: ts,
				Value:     value,
			})
		}
	}

	return result, nil
}

// headerIndex finds the first row whose first cell is a timestamp label.
// Logger exports may carry preamble rows before it.
func headerIndex(rows [][]string) int {
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		first := strings.ToLower(strings.TrimSpace(row[0]))
		if first == "timestamp" || first == "time" || first == "date/time" {
			return i
		}
	}
	return -1
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
