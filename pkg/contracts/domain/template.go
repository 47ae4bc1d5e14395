package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Template describes one report definition: which parameters are pulled,
// in which column order, and which room/group the report belongs to.
// Templates are owned by the configuration subsystem and treated as
// immutable once a report referencing them exists.
type Template struct {
	ID             int64    `json:"id" db:"id"`
	Name           string   `json:"name" db:"name"`
	ReportGroup    string   `json:"report_group" db:"report_group"`
	RoomID         string   `json:"room_id" db:"room_id"`
	RoomName       string   `json:"room_name" db:"room_name"`
	AdditionalInfo string   `json:"additional_info,omitempty" db:"additional_info"`
	Parameters     []string `json:"parameters" db:"parameters"`
}

// ParameterSpec is the parsed view of one template parameter string.
// The raw encoding is <BaseName>[_From_<num>_To_<num>][_Unit_<unit>];
// any subset of the optional suffixes may be absent.
type ParameterSpec struct {
	Raw      string  `json:"raw"`
	BaseName string  `json:"base_name"`
	Unit     string  `json:"unit,omitempty"`
	From     float64 `json:"from,omitempty"`
	To       float64 `json:"to,omitempty"`
}

var (
	rangePattern = regexp.MustCompile(`_From_(\d+(?:\.\d+)?)_To_(\d+(?:\.\d+)?)`)
	unitPattern  = regexp.MustCompile(`_Unit_([A-Za-z%]+)$`)
	suffixStart  = regexp.MustCompile(`(_From_.*|_Unit_.*)$`)
)

// ParseParameter parses a raw template parameter string. Parsing is total:
// a missing range yields (-Inf, +Inf) and a missing unit yields "".
func ParseParameter(raw string) ParameterSpec {
	spec := ParameterSpec{
		Raw:      raw,
		BaseName: suffixStart.ReplaceAllString(raw, ""),
		From:     math.Inf(-1),
		To:       math.Inf(1),
	}
	if m := rangePattern.FindStringSubmatch(raw); m != nil {
		spec.From, _ = strconv.ParseFloat(m[1], 64)
		spec.To, _ = strconv.ParseFloat(m[2], 64)
	}
	if m := unitPattern.FindStringSubmatch(raw); m != nil {
		spec.Unit = m[1]
	}
	return spec
}

// HasRange reports whether both bounds were configured explicitly.
func (p ParameterSpec) HasRange() bool {
	return !math.IsInf(p.From, -1) && !math.IsInf(p.To, 1)
}

// HeaderLabel returns the column label used by the renderer: the base name,
// decorated with the unit when one is configured.
func (p ParameterSpec) HeaderLabel() string {
	label := strings.TrimPrefix(p.BaseName, "EMS_NEW_")
	if p.Unit == "" {
		return label
	}
	return label + "(" + p.Unit + ")"
}

// Specs parses every parameter of the template, preserving order.
func (t *Template) Specs() []ParameterSpec {
	specs := make([]ParameterSpec, 0, len(t.Parameters))
	for _, raw := range t.Parameters {
		specs = append(specs, ParseParameter(raw))
	}
	return specs
}

// BaseNames returns the distinct parameter base names in template order.
func (t *Template) BaseNames() []string {
	seen := make(map[string]struct{}, len(t.Parameters))
	names := make([]string, 0, len(t.Parameters))
	for _, raw := range t.Parameters {
		base := ParseParameter(raw).BaseName
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		names = append(names, base)
	}
	return names
}
