package report

import (
	"net/url"
	"strings"
	"testing"

	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaccinationCSV = `STATE,CITY,AGE_GROUP,GENDER,VACCINATED,Year
CA,Los Angeles,18-29,F,true,2021
CA,Los Angeles,30-49,M,false,2021
CA,San Francisco,18-29,F,true,2022
NY,New York,65+,M,true,2022
NY,New York,30-49,F,,2023
TX,,18-29,M,false,2023
`

func loadRows(t *testing.T) []dataset.Row {
	t.Helper()
	table, err := dataset.Parse(strings.NewReader(vaccinationCSV))
	require.NoError(t, err)
	return table.Rows
}

func cities(rows []dataset.Row) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.Get(dataset.ColumnCity).String()
	}
	return out
}

func TestFilterFromQuery(t *testing.T) {
	query := url.Values{
		"STATE":   {"ca"},
		"CITY":    {"  "},
		"GENDER":  {"All"},
		"unknown": {"x"},
	}

	f := FilterFromQuery(query, dataset.FilterColumns)
	assert.Equal(t, Filter{"STATE": "ca"}, f)
}

func TestApply(t *testing.T) {
	rows := loadRows(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{
			name:   "no filter keeps everything",
			filter: nil,
			want:   []string{"Los Angeles", "Los Angeles", "San Francisco", "New York", "New York", ""},
		},
		{
			name:   "case-insensitive state",
			filter: Filter{"STATE": "ca"},
			want:   []string{"Los Angeles", "Los Angeles", "San Francisco"},
		},
		{
			name:   "boolean on canonical text",
			filter: Filter{"VACCINATED": "TRUE"},
			want:   []string{"Los Angeles", "San Francisco", "New York"},
		},
		{
			name:   "combined",
			filter: Filter{"STATE": "CA", "GENDER": "F", "Year": "2022"},
			want:   []string{"San Francisco"},
		},
		{
			name:   "blank condition matches all",
			filter: Filter{"STATE": ""},
			want:   []string{"Los Angeles", "Los Angeles", "San Francisco", "New York", "New York", ""},
		},
		{
			name:   "no match",
			filter: Filter{"STATE": "WA"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cities(Apply(rows, tt.filter)))
		})
	}

	assert.Len(t, rows, 6, "input must not be modified")
}

func TestDistinct(t *testing.T) {
	rows := loadRows(t)

	assert.Equal(t, []string{"Los Angeles", "New York", "San Francisco"}, Distinct(rows, dataset.ColumnCity))
	assert.Equal(t, []string{"false", "true"}, Distinct(rows, dataset.ColumnVaccinated))
	assert.Empty(t, Distinct(rows, "missing"))
}

func TestCountBy(t *testing.T) {
	rows := loadRows(t)

	assert.Equal(t, []Bucket{
		{Label: "18-29", Count: 3},
		{Label: "30-49", Count: 2},
		{Label: "65+", Count: 1},
	}, CountBy(rows, dataset.ColumnAgeGroup))

	// ties are ordered by label, nulls are skipped
	assert.Equal(t, []Bucket{
		{Label: "CA", Count: 3},
		{Label: "NY", Count: 2},
		{Label: "TX", Count: 1},
	}, CountBy(rows, dataset.ColumnState))
	assert.Equal(t, []Bucket{
		{Label: "true", Count: 3},
		{Label: "false", Count: 2},
	}, CountBy(rows, dataset.ColumnVaccinated))
}

func TestSeries(t *testing.T) {
	rows := loadRows(t)

	assert.Equal(t, []Point{
		{Key: 2021, Count: 2},
		{Key: 2022, Count: 2},
		{Key: 2023, Count: 2},
	}, Series(rows, dataset.ColumnYear))
	assert.Empty(t, Series(rows, dataset.ColumnCity))
}

func TestRate(t *testing.T) {
	rows := loadRows(t)

	rate, ok := Rate(rows, dataset.ColumnVaccinated)
	require.True(t, ok)
	assert.InDelta(t, 0.6, rate, 1e-9)

	_, ok = Rate(rows, dataset.ColumnCity)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	s := Summarize(loadRows(t))

	assert.Equal(t, 6, s.Rows)
	assert.Equal(t, 3, s.States)
	assert.Equal(t, 3, s.Cities)
	require.NotNil(t, s.Vaccinated)
	assert.InDelta(t, 0.6, *s.Vaccinated, 1e-9)

	empty := Summarize(nil)
	assert.Zero(t, empty.Rows)
	assert.Nil(t, empty.Vaccinated)
}
