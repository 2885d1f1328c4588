package handler

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/jon4hz/vaxboard/internal/engine"
	"github.com/jon4hz/vaxboard/internal/geo"
	"github.com/jon4hz/vaxboard/internal/report"
	"github.com/jon4hz/vaxboard/internal/session"
	"github.com/mergestat/timediff"
	"github.com/samber/lo"
)

// maxTableRows caps the rows rendered into the dashboard table.
const maxTableRows = 200

type Handler struct {
	engine *engine.Engine
	config *config.Config
}

func New(eng *engine.Engine, cfg *config.Config) *Handler {
	return &Handler{
		engine: eng,
		config: cfg,
	}
}

// TemplateFuncs are the helpers available to the page templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"percent": func(p *float64) string {
			if p == nil {
				return "n/a"
			}
			return humanize.FormatFloat("#,###.#", *p*100) + "%"
		},
		"ago": func(t time.Time) string {
			return timediff.TimeDiff(t)
		},
		"width": func(n, largest int) int {
			if largest <= 0 {
				return 0
			}
			return n * 100 / largest
		},
	}
}

type pageData struct {
	Title   string
	Session session.Session
}

type filterView struct {
	Column   string
	Options  []string
	Selected string
}

type chartView struct {
	Column  string
	Buckets []report.Bucket
	Max     int
}

type dashboardData struct {
	pageData
	Status        *dataset.Status
	Sources       []dataset.SourceStatus
	Summary       report.Summary
	Filters       []filterView
	Charts        []chartView
	Series        []report.Point
	SeriesColumn  string
	SeriesMax     int
	City          string
	State         string
	Boundary      *geo.Boundary
	BoundaryError string
	Columns       []string
	Rows          [][]string
	Shown         int
	Total         int
	Error         string
}

// chartColumns are rendered as bar charts on the dashboard.
var chartColumns = []string{
	dataset.ColumnAgeGroup,
	dataset.ColumnGender,
	dataset.ColumnEthnicity,
	dataset.ColumnVaccinated,
}

func (h *Handler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	data := dashboardData{
		pageData: pageData{Title: "Dashboard", Session: session.FromContext(c)},
		City:     c.Query("city"),
		State:    c.Query("state"),
	}

	status, err := h.engine.Dataset().Status(ctx)
	if err != nil {
		log.Error("Failed to read dataset status", "error", err)
		status = &dataset.Status{}
		data.Error = "The local dataset could not be read."
	}
	data.Status = status
	data.Sources = h.engine.Sources().Status()

	if status.Populated {
		if err := h.fillDashboard(c, &data); err != nil {
			log.Error("Failed to read dataset", "error", err)
			data.Error = "The local dataset could not be read."
		}
	}

	c.HTML(http.StatusOK, "dashboard.html", data)
}

func (h *Handler) fillDashboard(c *gin.Context, data *dashboardData) error {
	ctx := c.Request.Context()
	table, err := h.engine.Dataset().Table(ctx)
	if err != nil {
		return err
	}

	filterColumns := lo.Filter(dataset.FilterColumns, func(name string, _ int) bool {
		_, ok := table.Column(name)
		return ok
	})
	filter := report.FilterFromQuery(c.Request.URL.Query(), filterColumns)
	rows := report.Apply(table.Rows, filter)

	data.Summary = report.Summarize(rows)
	data.Filters = lo.Map(filterColumns, func(name string, _ int) filterView {
		return filterView{
			Column:   name,
			Options:  report.Distinct(table.Rows, name),
			Selected: filter[name],
		}
	})

	for _, name := range chartColumns {
		if _, ok := table.Column(name); !ok {
			continue
		}
		buckets := report.CountBy(rows, name)
		data.Charts = append(data.Charts, chartView{
			Column:  name,
			Buckets: buckets,
			Max:     lo.Max(lo.Map(buckets, func(b report.Bucket, _ int) int { return b.Count })),
		})
	}

	if _, ok := table.Column(dataset.ColumnYear); ok {
		data.SeriesColumn = dataset.ColumnYear
		data.Series = report.Series(rows, dataset.ColumnYear)
		data.SeriesMax = lo.Max(lo.Map(data.Series, func(p report.Point, _ int) int { return p.Count }))
	}

	if data.City != "" && h.engine.Boundaries().Enabled() {
		boundary, err := h.engine.Boundaries().Lookup(ctx, data.City, data.State)
		switch {
		case err == nil:
			data.Boundary = boundary
		case errors.Is(err, geo.ErrCityNotFound):
			data.BoundaryError = "City '" + data.City + "' was not found in the boundary file."
		default:
			log.Warn("Failed to look up city boundary", "city", data.City, "error", err)
			data.BoundaryError = "City outlines are unavailable right now."
		}
	}

	data.Columns = table.ColumnNames()
	data.Total = len(rows)
	shown := rows[:min(len(rows), maxTableRows)]
	data.Shown = len(shown)
	data.Rows = lo.Map(shown, func(row dataset.Row, _ int) []string {
		return lo.Map(data.Columns, func(name string, _ int) string {
			return row.Get(name).String()
		})
	})
	return nil
}

// RefreshPage triggers a dataset refresh from the dashboard and returns to it.
func (h *Handler) RefreshPage(c *gin.Context) {
	if _, err := h.engine.RefreshDataset(c.Request.Context()); err != nil {
		log.Warn("Manual dataset refresh failed", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}
