package dataset

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Source is an auxiliary CSV document that is checked but not cached.
type Source struct {
	Label string
	URL   string
}

// SourceStatus is the outcome of the last check of a Source.
type SourceStatus struct {
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	Loaded    bool      `json:"loaded"`
	Rows      int       `json:"rows"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt,omitzero"`
}

// Sources tracks whether the auxiliary documents can be downloaded and parsed.
type Sources struct {
	fetcher Fetcher

	mu     sync.RWMutex
	status []SourceStatus
}

func NewSources(fetcher Fetcher, sources []Source) *Sources {
	status := make([]SourceStatus, len(sources))
	for i, src := range sources {
		status[i] = SourceStatus{Label: src.Label, URL: src.URL}
	}
	return &Sources{fetcher: fetcher, status: status}
}

// Check downloads and parses every source concurrently and records the outcome.
// A failing source never fails the others.
func (s *Sources) Check(ctx context.Context) []SourceStatus {
	current := s.Status()

	var g errgroup.Group
	for i := range current {
		g.Go(func() error {
			current[i] = s.check(ctx, current[i])
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.status = current
	s.mu.Unlock()
	return slices.Clone(current)
}

func (s *Sources) check(ctx context.Context, st SourceStatus) SourceStatus {
	st.CheckedAt = time.Now()
	st.Loaded, st.Rows, st.Error = false, 0, ""

	body, err := s.fetcher.Fetch(ctx, st.URL)
	if err == nil {
		var table *Table
		if table, err = Parse(bytes.NewReader(body)); err == nil {
			st.Loaded, st.Rows = true, len(table.Rows)
			log.Info("source loaded successfully", "label", st.Label, "rows", st.Rows)
			return st
		}
	}
	st.Error = err.Error()
	log.Warn("failed to load source", "label", st.Label, "error", err)
	return st
}

// Status returns the outcome of the last check. Sources that were never
// checked have a zero CheckedAt.
func (s *Sources) Status() []SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.status)
}
