package feature

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
)

// ErrNotFound is returned when no feature matches a lookup.
var ErrNotFound = errors.New("feature not found")

// DefaultTolerance is the click radius, in degrees, for point layers.
const DefaultTolerance = 0.05

// Opener opens a named data file.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Layer is one loaded layer.
type Layer struct {
	Def      catalog.Layer
	Features []*geojson.Feature
	Err      error
}

// Store keeps every layer's features in memory.
type Store struct {
	mu        sync.RWMutex
	layers    map[string]*Layer
	regions   catalog.RegionSettings
	regionBag map[string]Props
	Tolerance float64
}

// NewStore creates an empty store.
func NewStore(regions catalog.RegionSettings) *Store {
	return &Store{
		layers:    make(map[string]*Layer),
		regions:   regions,
		regionBag: make(map[string]Props),
		Tolerance: DefaultTolerance,
	}
}

// Load reads every layer's GeoJSON from src. A layer that fails to load is
// logged and kept empty; Load only fails when ctx is cancelled.
func (s *Store) Load(ctx context.Context, src Opener, layers []catalog.Layer) error {
	loaded := make(map[string]*Layer, len(layers))
	for _, def := range layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := &Layer{Def: def}
		fc, err := readCollection(ctx, src, def.File)
		if err != nil {
			l.Err = err
			logger.L().Warn("layer_load_failed", "layer", def.ID, "file", def.File, "err", err)
			metrics.LayerLoadFailuresTotal.WithLabelValues(def.ID).Inc()
		} else {
			l.Features = fc.Features
			logger.L().Debug("layer_loaded", "layer", def.ID, "features", len(fc.Features))
		}
		loaded[def.ID] = l
	}

	s.mu.Lock()
	s.layers = loaded
	s.regionBag = buildRegionCache(loaded[s.regions.Layer], s.regions.Key)
	s.mu.Unlock()
	return nil
}

// Put replaces one layer's features directly.
func (s *Store) Put(def catalog.Layer, fc *geojson.FeatureCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &Layer{Def: def}
	if fc != nil {
		l.Features = fc.Features
	}
	s.layers[def.ID] = l
	if def.ID == s.regions.Layer {
		s.regionBag = buildRegionCache(l, s.regions.Key)
	}
}

func readCollection(ctx context.Context, src Opener, name string) (*geojson.FeatureCollection, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return fc, nil
}

func buildRegionCache(l *Layer, key string) map[string]Props {
	cache := make(map[string]Props)
	if l == nil || key == "" {
		return cache
	}
	for _, f := range l.Features {
		p := Props(f.Properties)
		if id := p.String(key); id != "" {
			cache[id] = p
		}
	}
	return cache
}

// Layer returns a loaded layer.
func (s *Store) Layer(id string) (*Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[id]
	return l, ok
}

// Status reports the feature count per layer, or -1 for layers that failed.
func (s *Store) Status() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.layers))
	for id, l := range s.layers {
		if l.Err != nil {
			out[id] = -1
			continue
		}
		out[id] = len(l.Features)
	}
	return out
}

// RegionCache returns the parent-region property bag for id.
func (s *Store) RegionCache(id string) (Props, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.regionBag[id]
	return p, ok
}

// Distinct returns the sorted distinct non-empty values of field across a
// layer's features.
func (s *Store) Distinct(layerID, field string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, f := range l.Features {
		v := strings.TrimSpace(Props(f.Properties).String(field))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// Feature finds a feature by the layer's id field, or by index when the
// layer has none or id is numeric.
func (s *Store) Feature(layerID, id string) (Props, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w %q", catalog.ErrUnknownLayer, layerID)
	}
	if l.Def.IDField != "" {
		for _, f := range l.Features {
			if Props(f.Properties).String(l.Def.IDField) == id {
				return Props(f.Properties), nil
			}
		}
	}
	if i, err := strconv.Atoi(id); err == nil && i >= 0 && i < len(l.Features) {
		return Props(l.Features[i].Properties), nil
	}
	return nil, ErrNotFound
}

// Locate returns the feature of layerID under the clicked point. Polygon
// layers use containment; point layers pick the nearest feature within the
// store tolerance.
func (s *Store) Locate(layerID string, lng, lat float64) (Props, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w %q", catalog.ErrUnknownLayer, layerID)
	}
	pt := orb.Point{lng, lat}

	best, bestDist := -1, math.Inf(1)
	for i, f := range l.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return Props(f.Properties), nil
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return Props(f.Properties), nil
			}
		case orb.Point:
			if d := planar.Distance(g, pt); d <= s.Tolerance && d < bestDist {
				best, bestDist = i, d
			}
		case orb.MultiPoint:
			for _, p := range g {
				if d := planar.Distance(p, pt); d <= s.Tolerance && d < bestDist {
					best, bestDist = i, d
				}
			}
		}
	}
	if best >= 0 {
		return Props(l.Features[best].Properties), nil
	}
	return nil, ErrNotFound
}
