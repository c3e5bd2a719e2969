// Package registry holds the manufacturer registry: producer records
// grouped by settlement name.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
)

// Record is one manufacturer. Every field is display text; numeric source
// values are kept as written.
type Record struct {
	City           string `json:"city" doc:"Settlement the producer is registered in"`
	Name           string `json:"name" doc:"Company name"`
	Classification string `json:"classification" doc:"Product classification"`
	Capacity       string `json:"capacity,omitempty" doc:"Annual capacity"`
	Contact        string `json:"contact,omitempty" doc:"Contact details"`
}

var aliases = map[string][]string{
	"city":           {"city", "City", "Город", "Населенный пункт", "Населённый пункт"},
	"name":           {"name", "Name", "Наименование", "Наименование предприятия"},
	"classification": {"classification", "Classification", "Классификация", "Категория"},
	"capacity":       {"capacity", "Capacity", "Мощность", "Производственная мощность"},
	"contact":        {"contact", "Contact", "Контакты", "Телефон"},
}

func pick(m map[string]any, field string) string {
	for _, k := range aliases[field] {
		if v, ok := m[k]; ok && v != nil {
			return strings.TrimSpace(feature.ToString(v))
		}
	}
	return ""
}

// FromMap builds a record from a decoded JSON object.
func FromMap(m map[string]any) Record {
	return Record{
		City:           pick(m, "city"),
		Name:           pick(m, "name"),
		Classification: pick(m, "classification"),
		Capacity:       pick(m, "capacity"),
		Contact:        pick(m, "contact"),
	}
}

// Decode reads records from a JSON array, or from a JSON string holding an
// array, as found in feature properties.
func Decode(v any) ([]Record, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		var raw []map[string]any
		if err := json.Unmarshal([]byte(t), &raw); err != nil {
			return nil, fmt.Errorf("decode manufacturers: %w", err)
		}
		return fromMaps(raw), nil
	case []any:
		out := make([]Record, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, FromMap(m))
			}
		}
		return out, nil
	case []map[string]any:
		return fromMaps(t), nil
	}
	return nil, fmt.Errorf("decode manufacturers: unsupported %T", v)
}

func fromMaps(raw []map[string]any) []Record {
	out := make([]Record, 0, len(raw))
	for _, m := range raw {
		out = append(out, FromMap(m))
	}
	return out
}

// Registry maps normalized city names to their records.
type Registry struct {
	byCity  map[string][]Record
	classes []string
	total   int
}

// Empty returns a registry with no records.
func Empty() *Registry {
	return &Registry{byCity: map[string][]Record{}}
}

// Normalize is the city matching key: trimmed and upper-cased.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// New groups records by city. Records without a city are dropped.
func New(records []Record) *Registry {
	r := Empty()
	seen := make(map[string]struct{})
	for _, rec := range records {
		key := Normalize(rec.City)
		if key == "" {
			continue
		}
		r.byCity[key] = append(r.byCity[key], rec)
		r.total++
		if c := strings.TrimSpace(rec.Classification); c != "" {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				r.classes = append(r.classes, c)
			}
		}
	}
	sort.Strings(r.classes)
	return r
}

// Parse reads a registry from a JSON array of records.
func Parse(rd io.Reader) (*Registry, error) {
	var raw []map[string]any
	if err := json.NewDecoder(rd).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return New(fromMaps(raw)), nil
}

// Opener opens a named data file.
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Load fetches and parses the registry. Any failure is logged and yields
// an empty registry, so dependent popups degrade instead of failing.
func Load(ctx context.Context, src Opener, name string) *Registry {
	if name == "" {
		return Empty()
	}
	rc, err := src.Open(ctx, name)
	if err != nil {
		logger.L().Warn("registry_load_failed", "file", name, "err", err)
		metrics.RegistryLoadFailuresTotal.Inc()
		return Empty()
	}
	defer rc.Close()
	reg, err := Parse(rc)
	if err != nil {
		logger.L().Warn("registry_load_failed", "file", name, "err", err)
		metrics.RegistryLoadFailuresTotal.Inc()
		return Empty()
	}
	logger.L().Info("registry_loaded", "file", name, "records", reg.Len(), "cities", len(reg.byCity))
	return reg
}

// Lookup returns the records registered for city.
func (r *Registry) Lookup(city string) []Record {
	if r == nil {
		return nil
	}
	return r.byCity[Normalize(city)]
}

// Classifications returns the sorted distinct classifications.
func (r *Registry) Classifications() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.classes...)
}

// Len returns the number of records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.total
}

// Filter keeps records whose classification equals class. An empty class
// keeps everything.
func Filter(records []Record, class string) []Record {
	class = strings.TrimSpace(class)
	if class == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if strings.EqualFold(strings.TrimSpace(rec.Classification), class) {
			out = append(out, rec)
		}
	}
	return out
}
