package timeseries

import (
	"fmt"
	"sort"
	"time"

	"emspulse/internal/errors"
	"emspulse/pkg/contracts/domain"
)

// MergeOptions control the alignment pass.
type MergeOptions struct {
	// GridMinutes is the bucket granularity. Zero means DefaultGridMinutes.
	GridMinutes int

	// DenseGrid seeds the skeleton from every grid bucket in the window
	// instead of from the base series' own timestamps. Sparse series then
	// produce gap rows rather than a shortened report.
	DenseGrid bool
}

// Merge aligns the source series onto a shared bucket grid and returns one
// row per skeleton bucket, sorted ascending.
//
// The series with the most in-window samples becomes the base series (ties
// break toward the earlier entry in the slice). Its normalized timestamps
// define the skeleton; every other series can only fill buckets the base
// series already produced, and samples landing outside the skeleton are
// dropped. Every returned bucket lies within the window: a sample whose
// floored bucket precedes an off-grid window start is dropped. Row value
// maps always carry the full base-name key set, with nil for missing
// values.
//
// Returns ErrInvalidWindow when the window is inverted, and ErrNoSourceData
// with an empty row set when no series has any in-window sample; callers
// degrade the latter to an empty report.
func Merge(tmpl *domain.Template, series []domain.SourceSeries, window domain.Window, opts MergeOptions) ([]domain.MergedRow, error) {
	if window.Start.After(window.End) {
		return nil, fmt.Errorf("%w: start=%s end=%s",
			errors.ErrInvalidWindow, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	}
	if len(tmpl.Parameters) == 0 {
		return nil, fmt.Errorf("template %d: %w", tmpl.ID, errors.ErrMissingParameters)
	}

	grid := opts.GridMinutes
	if grid <= 0 {
		grid = DefaultGridMinutes
	}

	// Clip every series to the window up front so base selection and
	// fold-in see the same sample set.
	inWindow := make([][]domain.Sample, len(series))
	total := 0
	baseIdx, baseCount := -1, -1
	for i, s := range series {
		for _, sample := range s.Samples {
			if window.Contains(sample.Timestamp) {
				inWindow[i] = append(inWindow[i], sample)
			}
		}
		total += len(inWindow[i])
		if len(inWindow[i]) > baseCount {
			baseIdx, baseCount = i, len(inWindow[i])
		}
	}
	if total == 0 {
		return []domain.MergedRow{}, errors.ErrNoSourceData
	}

	baseNames := tmpl.BaseNames()

	// Skeleton: either the dense grid across the whole window, or the base
	// series' own normalized buckets with duplicates collapsed first-wins.
	rowsByBucket := make(map[time.Time]*domain.MergedRow)
	var order []time.Time
	addRow := func(bucket time.Time) *domain.MergedRow {
		if row, ok := rowsByBucket[bucket]; ok {
			return row
		}
		row := &domain.MergedRow{Bucket: bucket, Values: make(map[string]*float64, len(baseNames))}
		for _, name := range baseNames {
			row.Values[name] = nil
		}
		rowsByBucket[bucket] = row
		order = append(order, bucket)
		return row
	}

	if opts.DenseGrid {
		for _, bucket := range Enumerate(window, grid) {
			addRow(bucket)
		}
	}

	baseName := series[baseIdx].Name
	for _, sample := range inWindow[baseIdx] {
		bucket := Normalize(sample.Timestamp, grid)
		row, exists := rowsByBucket[bucket]
		if !exists {
			if opts.DenseGrid {
				// Dense skeleton already enumerated every bucket the
				// window admits; anything else is out of range.
				continue
			}
			if bucket.Before(window.Start) {
				// An off-grid window start floors early samples onto a
				// bucket outside the window. The skeleton only admits
				// in-window buckets, same as the dense variant.
				continue
			}
			row = addRow(bucket)
		}
		if row.Values[baseName] == nil {
			v := sample.Value
			row.Values[baseName] = &v
		}
	}

	// Fold the remaining series into existing buckets only.
	for i, s := range series {
		if i == baseIdx {
			continue
		}
		for _, sample := range inWindow[i] {
			bucket := Normalize(sample.Timestamp, grid)
			row, ok := rowsByBucket[bucket]
			if !ok {
				continue // base series defines the timeline
			}
			v := sample.Value
			row.Values[s.Name] = &v
		}
	}

	sort.Slice(order, func(a, b int) bool { return order[a].Before(order[b]) })

	merged := make([]domain.MergedRow, 0, len(order))
	for _, bucket := range order {
		merged = append(merged, *rowsByBucket[bucket])
	}
	return merged, nil
}
