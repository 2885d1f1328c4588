// Package geo looks up city outlines in a remote GeoJSON document.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/vaxboard/internal/cache"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Feature property keys.
const (
	PropertyCity  = "CITY"
	PropertyState = "STATE"
)

const documentKey = "document"

var (
	// ErrCityNotFound is returned when no feature matches the requested city.
	ErrCityNotFound = errors.New("city not found")
	// ErrNotConfigured is returned when no GeoJSON source is configured.
	ErrNotConfigured = errors.New("no boundary source configured")
)

// Fetcher retrieves a remote document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Center is a map position.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Boundary is the outline of one city.
type Boundary struct {
	City     string                     `json:"city"`
	State    string                     `json:"state,omitempty"`
	Center   Center                     `json:"center"`
	Bounds   [2]Center                  `json:"bounds"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Boundaries resolves city outlines. The raw document is kept in the cache,
// so it is downloaded at most once per cache lifetime.
type Boundaries struct {
	fetcher  Fetcher
	url      string
	document *cache.PrefixedCache[json.RawMessage]
}

// NewBoundaries creates a boundary lookup. document may be nil, the source is then
// fetched on every lookup.
func NewBoundaries(fetcher Fetcher, url string, document *cache.PrefixedCache[json.RawMessage]) *Boundaries {
	return &Boundaries{
		fetcher:  fetcher,
		url:      url,
		document: document,
	}
}

// Enabled reports whether a GeoJSON source is configured.
func (b *Boundaries) Enabled() bool {
	return b.url != ""
}

// Warm downloads the document into the cache.
func (b *Boundaries) Warm(ctx context.Context) error {
	if !b.Enabled() {
		return nil
	}
	_, err := b.load(ctx)
	return err
}

func (b *Boundaries) load(ctx context.Context) (*geojson.FeatureCollection, error) {
	if !b.Enabled() {
		return nil, ErrNotConfigured
	}

	var raw []byte
	if b.document != nil {
		cached, err := b.document.Get(ctx, documentKey)
		if err == nil && len(cached) > 0 {
			raw = cached
		} else if err != nil && !cache.IsNotFound(err) {
			log.Debug("failed to get boundary document from cache, fetching", "error", err)
		}
	}

	fromCache := raw != nil
	if !fromCache {
		body, err := b.fetcher.Fetch(ctx, b.url)
		if err != nil {
			return nil, err
		}
		raw = body
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundary document: %w", err)
	}

	if !fromCache && b.document != nil {
		if err := b.document.Set(ctx, documentKey, json.RawMessage(raw)); err != nil {
			log.Warn("failed to cache boundary document", "error", err)
		}
	}
	return fc, nil
}

// Lookup returns the outline of a city. The city is matched case-insensitively.
// When state is given, features carrying a different state are skipped.
func (b *Boundaries) Lookup(ctx context.Context, city, state string) (*Boundary, error) {
	city = strings.TrimSpace(city)
	state = strings.TrimSpace(state)
	if city == "" {
		return nil, ErrCityNotFound
	}

	fc, err := b.load(ctx)
	if err != nil {
		return nil, err
	}

	matches := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		if !strings.EqualFold(property(f, PropertyCity), city) {
			continue
		}
		if featureState := property(f, PropertyState); state != "" && featureState != "" &&
			!strings.EqualFold(featureState, state) {
			continue
		}
		matches.Append(f)
	}
	if len(matches.Features) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, city)
	}

	geometries := make(orb.Collection, len(matches.Features))
	for i, f := range matches.Features {
		geometries[i] = f.Geometry
	}
	center, _ := planar.CentroidArea(geometries)
	bound := geometries.Bound()

	return &Boundary{
		City:     city,
		State:    state,
		Center:   Center{Lat: center.Lat(), Lon: center.Lon()},
		Bounds:   [2]Center{{Lat: bound.Min.Lat(), Lon: bound.Min.Lon()}, {Lat: bound.Max.Lat(), Lon: bound.Max.Lon()}},
		Features: matches,
	}, nil
}

// property returns a feature property as text. Numeric codes such as FIPS
// states are formatted, missing properties are empty.
func property(f *geojson.Feature, key string) string {
	switch v := f.Properties[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
