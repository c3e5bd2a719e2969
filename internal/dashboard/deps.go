// Package dashboard holds the per-session selection state and the
// controller that keeps map paint, legend, chart and popup consistent with
// it.
package dashboard

import (
	"errors"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/chart"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/popup"
	"github.com/joeblew999/plat-stat/internal/registry"
	"github.com/joeblew999/plat-stat/internal/style"
	"github.com/joeblew999/plat-stat/internal/templates"
)

// Deps are the read-only collaborators shared by every session.
type Deps struct {
	Catalog  *catalog.Catalog
	Store    *feature.Store
	Registry *registry.Registry
	Engine   *style.Engine
	Binder   *chart.Binder
	Composer *popup.Composer
	Bus      *EventBus
}

// NewDeps wires the composers over a loaded catalog, feature store and
// registry.
func NewDeps(cat *catalog.Catalog, store *feature.Store, reg *registry.Registry, r *templates.Renderer) *Deps {
	if reg == nil {
		reg = registry.Empty()
	}
	return &Deps{
		Catalog:  cat,
		Store:    store,
		Registry: reg,
		Engine:   style.NewEngine(cat),
		Binder:   chart.NewBinder(cat.Regions, store),
		Composer: popup.NewComposer(r, reg),
		Bus:      DefaultBus,
	}
}

// IsManufacturerFilter reports whether m filters the settlement layer's
// manufacturer cards.
func (d *Deps) IsManufacturerFilter(m *catalog.Metric) bool {
	td, ok := m.Variant.(catalog.ToggleDropdown)
	if !ok || td.PopupField != "" {
		return false
	}
	l, ok := d.Catalog.Layer(td.TargetLayer)
	return ok && l.Popup == catalog.PopupSettlement
}

// ManufacturerFilter returns the catalog's manufacturer filter metric.
func (d *Deps) ManufacturerFilter() (*catalog.Metric, bool) {
	for _, m := range d.Catalog.Metrics() {
		if d.IsManufacturerFilter(m) {
			return m, true
		}
	}
	return nil, false
}

// Options returns the dropdown values of a filter metric. The manufacturer
// filter lists the registry classifications; other filters list the
// distinct values of their field on the target layer.
func (d *Deps) Options(m *catalog.Metric) []string {
	if d.IsManufacturerFilter(m) {
		return d.Registry.Classifications()
	}
	switch v := m.Variant.(type) {
	case catalog.ToggleDropdown:
		return d.Store.Distinct(v.TargetLayer, v.Field)
	case catalog.Dropdown:
		return d.Store.Distinct(v.TargetLayer, v.Field)
	}
	return nil
}

// ErrNoFeatureRef is returned when a FeatureRef names no feature at all.
var ErrNoFeatureRef = errors.New("one of properties, feature id or lng/lat is required")

// FeatureRef identifies a clicked feature: by its raw properties, by id, or
// by the clicked coordinate, in that order of precedence.
type FeatureRef struct {
	Properties map[string]any
	ID         string
	Lng, Lat   *float64
}

// Resolve finds the properties a FeatureRef points at on layerID.
func (d *Deps) Resolve(layerID string, ref FeatureRef) (feature.Properties, error) {
	var (
		props feature.Props
		err   error
	)
	switch {
	case ref.Properties != nil:
		return feature.Props(ref.Properties), nil
	case ref.ID != "":
		props, err = d.Store.Feature(layerID, ref.ID)
	case ref.Lng != nil && ref.Lat != nil:
		props, err = d.Store.Locate(layerID, *ref.Lng, *ref.Lat)
	default:
		return nil, ErrNoFeatureRef
	}
	if err != nil {
		return nil, err
	}
	return props, nil
}
