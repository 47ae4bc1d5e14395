// Package report composes the environmental report PDF: paginated data
// table, per-page letterhead and footer, statistics block, and post-hoc
// review/approval stamping of stored artifacts.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"emspulse/internal/errors"
	"emspulse/internal/pdf"
	"emspulse/pkg/contracts/domain"
)

// DefaultRowsPerPage is the page break threshold when none is configured.
const DefaultRowsPerPage = 22

const (
	marginLeft  = 40.0
	marginRight = 40.0
	rowHeight   = 18.0
	tableTop    = 690.0
	footerY     = 30.0

	timestampFormat = "02-01-2006 15:04"
	printedFormat   = "02-01-2006 15:04:05"
)

// Placeholder rendered for missing values and empty statistics.
const (
	missingValue = "-"
	noData       = "N/A"
)

// RangeFlag classifies a value against its parameter's configured bounds.
type RangeFlag int

const (
	InRange RangeFlag = iota
	AboveRange
	BelowRange
)

// ClassifyValue compares a value against the parameter bounds. Unbounded
// specs always classify as in range.
func ClassifyValue(spec domain.ParameterSpec, value float64) RangeFlag {
	switch {
	case value > spec.To:
		return AboveRange
	case value < spec.From:
		return BelowRange
	default:
		return InRange
	}
}

// Layout carries the presentation settings of the renderer.
type Layout struct {
	RowsPerPage int
	Heading     string
	Address     string
}

// Artifact is one finished render: the document bytes plus the derived
// display heading and download filename.
type Artifact struct {
	Bytes    []byte
	Heading  string
	Filename string
}

// Renderer builds report artifacts from merged rows and statistics.
type Renderer struct {
	layout Layout
	logger *slog.Logger
}

// NewRenderer creates a renderer. Zero layout fields fall back to defaults.
func NewRenderer(layout Layout, logger *slog.Logger) *Renderer {
	if layout.RowsPerPage <= 0 {
		layout.RowsPerPage = DefaultRowsPerPage
	}
	if layout.Heading == "" {
		layout.Heading = "EMS Report"
	}
	return &Renderer{layout: layout, logger: logger.With(slog.String("component", "report_renderer"))}
}

// column is one value column of the table, resolved once per render.
type column struct {
	spec domain.ParameterSpec
	x    float64
}

// Render composes the full document. Zero rows still produce a one-page
// artifact with headers and an all-placeholder statistics block. Any page
// composition failure aborts the whole render; no partial artifact escapes.
func (r *Renderer) Render(ctx context.Context, tmpl *domain.Template, rows []domain.MergedRow,
	stats map[string]domain.StatSummary, window domain.Window, author string, now time.Time) (*Artifact, error) {

	heading := r.buildHeading(tmpl)
	columns := r.resolveColumns(tmpl)

	doc := pdf.NewDocument(heading)

	var (
		page        *pdf.Page
		y           float64
		pageRegions []*pdf.TextRegion
	)

	startPage := func() {
		page = doc.AddPage()
		r.drawLetterhead(page, doc, tmpl, heading, window, author)
		region := r.drawFooter(page, doc, author, now)
		pageRegions = append(pageRegions, region)
		y = tableTop
		r.drawTableHeader(page, columns, &y)
	}

	startPage()
	for i, row := range rows {
		if i > 0 && i%r.layout.RowsPerPage == 0 {
			startPage()
		}
		r.drawDataRow(page, columns, row, &y)
	}

	// Statistics block reuses the header; move to a fresh page when the
	// remaining space cannot hold its five lines.
	if y < footerY+6*rowHeight {
		startPage()
	} else {
		y -= rowHeight
		r.drawTableHeader(page, columns, &y)
	}
	r.drawStatistics(page, columns, stats, &y)

	total := strconv.Itoa(doc.PageCount())
	for _, region := range pageRegions {
		region.Set(total)
	}

	out, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrRenderFailure, err)
	}

	r.logger.InfoContext(ctx, "report rendered",
		slog.String("heading", heading),
		slog.Int("rows", len(rows)),
		slog.Int("pages", doc.PageCount()),
		slog.Int("bytes", len(out)))

	return &Artifact{
		Bytes:    out,
		Heading:  heading,
		Filename: Filename(heading),
	}, nil
}

// buildHeading derives the room-specific report title.
func (r *Renderer) buildHeading(tmpl *domain.Template) string {
	heading := r.layout.Heading
	if tmpl.RoomName != "" {
		heading += " - " + tmpl.RoomName
	}
	if tmpl.AdditionalInfo != "" {
		heading += " - " + tmpl.AdditionalInfo
	}
	return heading
}

// resolveColumns maps each distinct base name to its first spec and a fixed
// x position. The timestamp column always comes first.
func (r *Renderer) resolveColumns(tmpl *domain.Template) []column {
	specs := tmpl.Specs()
	seen := make(map[string]struct{}, len(specs))
	ordered := make([]domain.ParameterSpec, 0, len(specs))
	for _, spec := range specs {
		if _, ok := seen[spec.BaseName]; ok {
			continue
		}
		seen[spec.BaseName] = struct{}{}
		ordered = append(ordered, spec)
	}

	usable := pdf.A4Width - marginLeft - marginRight
	tsWidth := 110.0
	valWidth := (usable - tsWidth) / float64(max(len(ordered), 1))

	columns := make([]column, len(ordered))
	for i, spec := range ordered {
		columns[i] = column{spec: spec, x: marginLeft + tsWidth + float64(i)*valWidth}
	}
	return columns
}

func (r *Renderer) drawLetterhead(page *pdf.Page, doc *pdf.Document, tmpl *domain.Template,
	heading string, window domain.Window, author string) {

	right := doc.PageWidth() - marginRight

	if r.layout.Address != "" {
		page.Text(marginLeft, 810, pdf.FontRegular, 8, r.layout.Address)
	}
	page.Text(marginLeft, 790, pdf.FontBold, 14, heading)
	page.SetLineWidth(1)
	page.Line(marginLeft, 784, right, 784)

	info := []string{
		"Room: " + nonEmpty(tmpl.RoomName, missingValue),
		"Group: " + nonEmpty(tmpl.ReportGroup, missingValue),
		"Operator: " + nonEmpty(author, missingValue),
		fmt.Sprintf("Window: %s to %s",
			window.Start.Format(timestampFormat), window.End.Format(timestampFormat)),
	}
	y := 768.0
	for _, line := range info {
		page.Text(marginLeft, y, pdf.FontRegular, 9, line)
		y -= 12
	}
}

// drawFooter emits the print line and reserves the total-page-count region,
// which is only resolvable once the whole document is paginated.
func (r *Renderer) drawFooter(page *pdf.Page, doc *pdf.Document, author string, now time.Time) *pdf.TextRegion {
	right := doc.PageWidth() - marginRight

	page.Text(marginLeft, footerY, pdf.FontRegular, 8,
		"Printed On: "+now.Format(printedFormat)+"   Printed By: "+nonEmpty(author, missingValue))

	label := fmt.Sprintf("Page No: %d of ", doc.PageCount())
	page.Text(right-120, footerY, pdf.FontRegular, 8, label)
	return page.ReserveText(right-120+float64(len(label))*4.0, footerY, pdf.FontRegular, 8)
}

func (r *Renderer) drawTableHeader(page *pdf.Page, columns []column, y *float64) {
	page.Text(marginLeft, *y, pdf.FontBold, 9, "Timestamp")
	for _, col := range columns {
		page.Text(col.x, *y, pdf.FontBold, 9, col.spec.HeaderLabel())
		if col.spec.HasRange() {
			page.Text(col.x, *y-9, pdf.FontRegular, 7,
				fmt.Sprintf("Range: %.0f - %.0f", col.spec.From, col.spec.To))
		}
	}
	page.SetLineWidth(0.5)
	page.Line(marginLeft, *y-12, pdf.A4Width-marginRight, *y-12)
	*y -= rowHeight + 4
}

func (r *Renderer) drawDataRow(page *pdf.Page, columns []column, row domain.MergedRow, y *float64) {
	page.Text(marginLeft, *y, pdf.FontRegular, 9, row.Bucket.Format(timestampFormat))
	for _, col := range columns {
		page.Text(col.x, *y, pdf.FontRegular, 9, r.cellText(col.spec, row.Values[col.spec.BaseName]))
	}
	*y -= rowHeight
}

// cellText formats one value cell; out-of-range values carry a marker so
// excursions stand out when scanning the table.
func (r *Renderer) cellText(spec domain.ParameterSpec, value *float64) string {
	if value == nil {
		return missingValue
	}
	text := strconv.FormatFloat(*value, 'f', -1, 64)
	switch ClassifyValue(spec, *value) {
	case AboveRange:
		return text + " *H"
	case BelowRange:
		return text + " *L"
	default:
		return text
	}
}

// drawStatistics appends the Max / Min / Avg block. Max and Min each take a
// value line plus the originating timestamp beneath; Avg has no timestamp.
func (r *Renderer) drawStatistics(page *pdf.Page, columns []column, stats map[string]domain.StatSummary, y *float64) {
	writeLine := func(label string, cell func(domain.StatSummary) string) {
		if label != "" {
			page.Text(marginLeft, *y, pdf.FontBold, 9, label)
		}
		for _, col := range columns {
			page.Text(col.x, *y, pdf.FontRegular, 9, cell(stats[col.spec.BaseName]))
		}
		*y -= rowHeight
	}

	writeLine("Max", func(s domain.StatSummary) string {
		if s.Max == nil {
			return noData
		}
		return strconv.FormatInt(s.Max.Value, 10)
	})
	writeLine("", func(s domain.StatSummary) string {
		if s.Max == nil {
			return ""
		}
		return s.Max.At.Format(timestampFormat)
	})
	writeLine("Min", func(s domain.StatSummary) string {
		if s.Min == nil {
			return noData
		}
		return strconv.FormatInt(s.Min.Value, 10)
	})
	writeLine("", func(s domain.StatSummary) string {
		if s.Min == nil {
			return ""
		}
		return s.Min.At.Format(timestampFormat)
	})
	writeLine("Avg", func(s domain.StatSummary) string {
		if s.Avg == nil {
			return noData
		}
		return strconv.FormatInt(*s.Avg, 10)
	})
}

var filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Filename derives the download filename from a heading: unsafe runs
// collapse to single underscores.
func Filename(heading string) string {
	clean := filenameUnsafe.ReplaceAllString(heading, "_")
	clean = strings.Trim(clean, "_")
	if clean == "" {
		clean = "report"
	}
	return clean + ".pdf"
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
