package domain

import "time"

// Sample is one raw reading from a source series. Sampling is irregular and
// the series are independently clocked; timestamps carry millisecond precision.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SourceSeries is one external time-series source, identified by the
// parameter base name it feeds.
type SourceSeries struct {
	Name    string   `json:"name"`
	Samples []Sample `json:"samples"`
}

// Window is an inclusive time range over which a report is generated.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the window, ends inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MergedRow is one aligned row of the final report: a grid bucket plus one
// value slot per template parameter base name. Missing values are explicit
// nils, never omitted keys.
type MergedRow struct {
	Bucket time.Time           `json:"bucket"`
	Values map[string]*float64 `json:"values"`
}

// Extreme is a max or min statistic together with the bucket it came from.
type Extreme struct {
	Value int64     `json:"value"`
	At    time.Time `json:"at"`
}

// StatSummary holds the per-parameter statistics over a window. A parameter
// with no valid samples has all slots nil; callers render that as "N/A",
// never as zero. Values are truncated to whole units for display, matching
// the installation's whole-unit sensor semantics.
type StatSummary struct {
	Max *Extreme `json:"max,omitempty"`
	Min *Extreme `json:"min,omitempty"`
	Avg *int64   `json:"avg,omitempty"`
}
