package report

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emspulse/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTemplate() *domain.Template {
	return &domain.Template{
		ID:          1,
		Name:        "Cleanroom 12",
		ReportGroup: "Environment",
		RoomID:      "R12",
		RoomName:    "Cleanroom 12",
		Parameters:  []string{"Temp_From_10_To_30_Unit_C", "Humidity_Unit_pct"},
	}
}

func testWindow() domain.Window {
	return domain.Window{
		Start: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC),
	}
}

func rowsOf(n int, start time.Time) []domain.MergedRow {
	rows := make([]domain.MergedRow, n)
	for i := range rows {
		temp := 20.0 + float64(i%5)
		hum := 45.0
		rows[i] = domain.MergedRow{
			Bucket: start.Add(time.Duration(i) * 15 * time.Minute),
			Values: map[string]*float64{"Temp": &temp, "Humidity": &hum},
		}
	}
	return rows
}

func statsFor(rows []domain.MergedRow) map[string]domain.StatSummary {
	avg := int64(22)
	return map[string]domain.StatSummary{
		"Temp": {
			Max: &domain.Extreme{Value: 24, At: rows[len(rows)-1].Bucket},
			Min: &domain.Extreme{Value: 20, At: rows[0].Bucket},
			Avg: &avg,
		},
		"Humidity": {},
	}
}

func TestRender_Basic(t *testing.T) {
	r := NewRenderer(Layout{Heading: "EMS Report", Address: "Plant 4, Hall B"}, discardLogger())
	rows := rowsOf(5, testWindow().Start)

	artifact, err := r.Render(context.Background(), testTemplate(), rows, statsFor(rows),
		testWindow(), "alice", time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	content := string(artifact.Bytes)
	assert.Equal(t, "EMS Report - Cleanroom 12", artifact.Heading)
	assert.Equal(t, "EMS_Report_Cleanroom_12.pdf", artifact.Filename)
	assert.Contains(t, content, "(Temp\\(C\\)) Tj")
	assert.Contains(t, content, "(Range: 10 - 30) Tj")
	assert.Contains(t, content, "(Humidity\\(pct\\)) Tj")
	assert.Contains(t, content, "Printed By: alice) Tj")
	assert.Contains(t, content, "(Page No: 1 of ) Tj")
	// Empty Humidity summary renders placeholders, not zeros.
	assert.Contains(t, content, "(N/A) Tj")
}

func TestRender_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		wantPages int
	}{
		{name: "single partial page", rows: 5, wantPages: 1},
		{name: "exactly one page", rows: 22, wantPages: 1},
		{name: "two data pages", rows: 23, wantPages: 2},
		{name: "three data pages", rows: 60, wantPages: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(Layout{}, discardLogger())
			rows := rowsOf(tt.rows, testWindow().Start)

			artifact, err := r.Render(context.Background(), testTemplate(), rows, statsFor(rows),
				testWindow(), "alice", time.Now())
			require.NoError(t, err)

			content := string(artifact.Bytes)
			assert.Contains(t, content, "/Count "+strconv.Itoa(tt.wantPages))
			// Every page footer resolves the same deferred total.
			assert.Equal(t, tt.wantPages,
				strings.Count(content, "("+strconv.Itoa(tt.wantPages)+") Tj"),
				"each page resolves the deferred page total exactly once")
		})
	}
}

func TestRender_EmptyWindow(t *testing.T) {
	r := NewRenderer(Layout{}, discardLogger())

	artifact, err := r.Render(context.Background(), testTemplate(), nil,
		map[string]domain.StatSummary{"Temp": {}, "Humidity": {}},
		testWindow(), "alice", time.Now())
	require.NoError(t, err)

	content := string(artifact.Bytes)
	assert.Contains(t, content, "/Count 1", "zero rows still produce a one-page artifact")
	assert.Equal(t, 6, strings.Count(content, "(N/A) Tj"),
		"max, min and avg placeholders for both parameters")
}

func TestRender_OutOfRangeMarker(t *testing.T) {
	r := NewRenderer(Layout{}, discardLogger())
	hot := 35.0
	cold := 5.0
	ok := 20.0
	rows := []domain.MergedRow{
		{Bucket: testWindow().Start, Values: map[string]*float64{"Temp": &hot, "Humidity": &ok}},
		{Bucket: testWindow().Start.Add(15 * time.Minute), Values: map[string]*float64{"Temp": &cold, "Humidity": nil}},
	}

	artifact, err := r.Render(context.Background(), testTemplate(), rows, statsFor(rows),
		testWindow(), "alice", time.Now())
	require.NoError(t, err)

	content := string(artifact.Bytes)
	assert.Contains(t, content, "(35 *H) Tj", "above-range value is flagged")
	assert.Contains(t, content, "(5 *L) Tj", "below-range value is flagged")
	assert.Contains(t, content, "(20) Tj", "in-range value is bare")
	assert.Contains(t, content, "(-) Tj", "missing value renders the placeholder")
	// Humidity has no configured range: 45 never carries a marker.
	assert.NotContains(t, content, "(45 *")
}

func TestClassifyValue(t *testing.T) {
	ranged := domain.ParseParameter("Temp_From_10_To_30_Unit_C")
	unbounded := domain.ParseParameter("Humidity_Unit_pct")

	tests := []struct {
		name  string
		spec  domain.ParameterSpec
		value float64
		want  RangeFlag
	}{
		{"above", ranged, 30.5, AboveRange},
		{"below", ranged, 9.9, BelowRange},
		{"inside", ranged, 30, InRange},
		{"lower bound inclusive", ranged, 10, InRange},
		{"unbounded never flags high", unbounded, 1e9, InRange},
		{"unbounded never flags low", unbounded, -1e9, InRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyValue(tt.spec, tt.value))
		})
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"EMS Report - Cleanroom 12", "EMS_Report_Cleanroom_12.pdf"},
		{"Room #4 (West)", "Room_4_West.pdf"},
		{"___", "report.pdf"},
		{"", "report.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(tt.heading))
		})
	}
}
