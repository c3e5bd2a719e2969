package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
)

// Report summarizes a merge.
type Report struct {
	Observations int      `json:"observations"`
	Regions      int      `json:"regions"`
	Updated      int      `json:"updated"`
	Unmatched    []string `json:"unmatched,omitempty"`
	Skipped      []string `json:"skipped,omitempty"`
}

// Aliases resolves a feature's region name to the export's region key.
type Aliases map[string]string

// NewAliases normalizes an alias table. Canonical names map to themselves.
func NewAliases(raw map[string]string) Aliases {
	a := make(Aliases, len(raw)*2)
	for k, v := range raw {
		a[Normalize(k)] = Normalize(v)
		a[Normalize(v)] = Normalize(v)
	}
	return a
}

// Resolve returns the export key for a feature name.
func (a Aliases) Resolve(name string) string {
	n := Normalize(name)
	if t, ok := a[n]; ok {
		return t
	}
	return n
}

// Merge writes each region's values into the properties of the features
// whose ADM_2_rus, ADM1_EN or name resolves to it.
func Merge(fc *geojson.FeatureCollection, data map[string]map[string]float64, aliases Aliases) Report {
	rep := Report{Regions: len(data)}
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		name := feature.First(feature.Props(f.Properties), "ADM_2_rus", "ADM1_EN", "name")
		if name == "" {
			continue
		}
		target := aliases.Resolve(name)
		values, ok := data[target]
		if !ok {
			rep.Unmatched = append(rep.Unmatched, name)
			logger.L().Warn("ingest_region_unmatched", "region", name, "key", target)
			continue
		}
		for k, v := range values {
			f.Properties[k] = v
		}
		rep.Updated++
	}
	sort.Strings(rep.Unmatched)
	return rep
}

// Opener opens a named export or layer file.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Sink stages parsed observations and returns the latest value per region
// and key across everything staged.
type Sink interface {
	Save(ctx context.Context, obs []Observation) error
	Latest(ctx context.Context) (map[string]map[string]float64, error)
}

// Run parses every source of cfg, stages the observations in sink (when
// not nil) and merges them into the target layer. Missing export files are
// logged and skipped.
func Run(ctx context.Context, src Opener, cfg Config, aliases Aliases, sink Sink) (*geojson.FeatureCollection, Report, error) {
	var rep Report
	var all []Observation
	for _, rule := range cfg.Sources {
		obs, err := parseSource(ctx, src, rule)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, rep, err
			}
			logger.L().Warn("ingest_source_skipped", "file", rule.File, "err", err)
			rep.Skipped = append(rep.Skipped, rule.File)
			continue
		}
		metrics.IngestObservationsTotal.WithLabelValues(rule.Prefix).Add(float64(len(obs)))
		logger.L().Info("ingest_source_parsed", "file", rule.File, "prefix", rule.Prefix, "observations", len(obs))
		all = append(all, obs...)
	}
	rep.Observations = len(all)

	data := Collect(all)
	if sink != nil {
		if err := sink.Save(ctx, all); err != nil {
			return nil, rep, fmt.Errorf("stage observations: %w", err)
		}
		latest, err := sink.Latest(ctx)
		if err != nil {
			return nil, rep, fmt.Errorf("read staged observations: %w", err)
		}
		data = latest
	}

	fc, err := readLayer(ctx, src, cfg.Target)
	if err != nil {
		return nil, rep, err
	}
	merged := Merge(fc, data, aliases)
	merged.Observations = rep.Observations
	merged.Skipped = rep.Skipped
	return fc, merged, nil
}

func parseSource(ctx context.Context, src Opener, rule Rule) ([]Observation, error) {
	rc, err := src.Open(ctx, rule.File)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Parse(rc, rule)
}

func readLayer(ctx context.Context, src Opener, name string) (*geojson.FeatureCollection, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open target %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read target %s: %w", name, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse target %s: %w", name, err)
	}
	return fc, nil
}
