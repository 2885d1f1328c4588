package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/jon4hz/vaxboard/internal/geo"
	"github.com/jon4hz/vaxboard/internal/report"
	"github.com/jon4hz/vaxboard/internal/session"
	"github.com/mergestat/timediff"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"username": session.FromContext(c).Username,
	})
}

func (h *Handler) Status(c *gin.Context) {
	status, err := h.engine.Dataset().Status(c.Request.Context())
	if err != nil {
		log.Error("Failed to read dataset status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read dataset status"})
		return
	}

	resp := gin.H{
		"success": true,
		"status":  status,
		"caches":  h.engine.GetCacheStats(),
		"sources": h.engine.Sources().Status(),
	}
	if status.LastLoad != nil {
		resp["lastLoadAgo"] = timediff.TimeDiff(status.LastLoad.LoadedAt)
	}
	if job, ok := h.engine.RefreshJob(); ok {
		resp["refreshJob"] = job
	}
	c.JSON(http.StatusOK, resp)
}

// filtered reads the dataset and applies the filter given in the query string.
func (h *Handler) filtered(c *gin.Context) (*dataset.Table, []dataset.Row, bool) {
	table, err := h.engine.Dataset().Table(c.Request.Context())
	if err != nil {
		log.Error("Failed to read dataset", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to read dataset"})
		return nil, nil, false
	}
	filter := report.FilterFromQuery(c.Request.URL.Query(), table.ColumnNames())
	return table, report.Apply(table.Rows, filter), true
}

func parseIntQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	n, err := safecast.Convert[int](v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	return n, nil
}

func (h *Handler) Records(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", defaultPageSize)
	if err != nil || limit == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
		return
	}
	offset, err := parseIntQuery(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid offset"})
		return
	}
	limit = min(limit, maxPageSize)

	table, rows, ok := h.filtered(c)
	if !ok {
		return
	}

	start := min(offset, len(rows))
	end := min(start+limit, len(rows))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   len(rows),
		"offset":  start,
		"table":   dataset.Table{Columns: table.Columns, Rows: rows[start:end]},
	})
}

// column reads the column query parameter and checks that the table has it.
func column(c *gin.Context, table *dataset.Table, def string) (string, bool) {
	name := c.DefaultQuery("column", def)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "column is required"})
		return "", false
	}
	if _, ok := table.Column(name); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown column " + strconv.Quote(name)})
		return "", false
	}
	return name, true
}

func (h *Handler) Summary(c *gin.Context) {
	table, rows, ok := h.filtered(c)
	if !ok {
		return
	}
	name, ok := column(c, table, "")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"column":  name,
		"buckets": report.CountBy(rows, name),
		"summary": report.Summarize(rows),
	})
}

func (h *Handler) Series(c *gin.Context) {
	table, rows, ok := h.filtered(c)
	if !ok {
		return
	}
	name, ok := column(c, table, dataset.ColumnYear)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"column":  name,
		"points":  report.Series(rows, name),
	})
}

func (h *Handler) Boundary(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "city is required"})
		return
	}

	boundary, err := h.engine.Boundaries().Lookup(c.Request.Context(), city, c.Query("state"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "boundary": boundary})
	case errors.Is(err, geo.ErrCityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "City '" + city + "' not found"})
	case errors.Is(err, geo.ErrNotConfigured):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "City outlines are not configured"})
	default:
		log.Warn("Failed to look up city boundary", "city", city, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "City outlines are unavailable right now"})
	}
}

func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.engine.RefreshDataset(c.Request.Context())
	if err != nil {
		var fetchErr *dataset.FetchError
		var parseErr *dataset.ParseError
		if errors.As(err, &fetchErr) || errors.As(err, &parseErr) {
			log.Warn("Manual dataset refresh failed", "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "warning": true, "error": err.Error()})
			return
		}
		log.Error("Manual dataset refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to refresh dataset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "rows": n})
}
