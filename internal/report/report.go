// Package report aggregates dataset rows for the dashboard widgets.
// All functions are pure and never modify their input.
package report

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/samber/lo"
)

// Filter maps a column name to the wanted canonical cell text.
// Blank values match anything.
type Filter map[string]string

// FilterFromQuery builds a filter from query parameters, considering only the given columns.
func FilterFromQuery(query url.Values, columns []string) Filter {
	f := make(Filter)
	for _, column := range columns {
		want := strings.TrimSpace(query.Get(column))
		if want == "" || strings.EqualFold(want, "all") {
			continue
		}
		f[column] = want
	}
	return f
}

// Matches reports whether the row satisfies every condition of the filter.
func (f Filter) Matches(row dataset.Row) bool {
	for column, want := range f {
		if want == "" {
			continue
		}
		if !strings.EqualFold(row.Get(column).String(), want) {
			return false
		}
	}
	return true
}

// Apply returns the rows matching the filter, in input order.
func Apply(rows []dataset.Row, f Filter) []dataset.Row {
	if len(f) == 0 {
		return rows
	}
	return lo.Filter(rows, func(row dataset.Row, _ int) bool {
		return f.Matches(row)
	})
}

// Distinct returns the sorted set of non-null values of a column.
func Distinct(rows []dataset.Row, column string) []string {
	values := lo.FilterMap(rows, func(row dataset.Row, _ int) (string, bool) {
		v := row.Get(column)
		return v.String(), !v.IsNull()
	})
	values = lo.Uniq(values)
	slices.Sort(values)
	return values
}

// Bucket is one slice of a pie or bar chart.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CountBy counts the non-null values of a column, largest bucket first.
func CountBy(rows []dataset.Row, column string) []Bucket {
	counts := lo.CountValuesBy(
		lo.Filter(rows, func(row dataset.Row, _ int) bool { return !row.Get(column).IsNull() }),
		func(row dataset.Row) string { return row.Get(column).String() },
	)

	buckets := lo.MapToSlice(counts, func(label string, count int) Bucket {
		return Bucket{Label: label, Count: count}
	})
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return buckets
}

// Point is the row count for one numeric key, e.g. one year.
type Point struct {
	Key   float64 `json:"key"`
	Count int     `json:"count"`
}

// Series counts rows per numeric value of a column in ascending key order.
// Cells that are not numeric are skipped.
func Series(rows []dataset.Row, column string) []Point {
	counts := make(map[float64]int)
	for _, row := range rows {
		if key, ok := row.Get(column).Float(); ok {
			counts[key]++
		}
	}

	points := lo.MapToSlice(counts, func(key float64, count int) Point {
		return Point{Key: key, Count: count}
	})
	slices.SortFunc(points, func(a, b Point) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return points
}

// Rate returns the share of true cells among the boolean cells of a column.
// ok is false when the column has no boolean cells.
func Rate(rows []dataset.Row, column string) (rate float64, ok bool) {
	var total, yes int
	for _, row := range rows {
		b, isBool := row.Get(column).Bool()
		if !isBool {
			continue
		}
		total++
		if b {
			yes++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(yes) / float64(total), true
}

// Summary is the headline block of the dashboard.
type Summary struct {
	Rows       int      `json:"rows"`
	Vaccinated *float64 `json:"vaccinatedRate,omitempty"`
	States     int      `json:"states"`
	Cities     int      `json:"cities"`
}

// Summarize computes the headline numbers of the vaccination dataset.
func Summarize(rows []dataset.Row) Summary {
	s := Summary{
		Rows:   len(rows),
		States: len(Distinct(rows, dataset.ColumnState)),
		Cities: len(Distinct(rows, dataset.ColumnCity)),
	}
	if rate, ok := Rate(rows, dataset.ColumnVaccinated); ok {
		s.Vaccinated = lo.ToPtr(rate)
	}
	return s
}
