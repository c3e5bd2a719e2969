// Package catalog holds the static dashboard configuration: the metric catalog,
// layer definitions, administrative levels and the base map style.
//
// A catalog is read once at startup and is immutable afterwards.
package catalog

import "errors"

var (
	// ErrUnknownMetric is returned when a metric id is not in the catalog.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrUnknownLevel is returned when an admin level key is not defined.
	ErrUnknownLevel = errors.New("unknown admin level")
	// ErrUnknownLayer is returned when a layer id is not defined.
	ErrUnknownLayer = errors.New("unknown layer")
)

// Kind is the rendering type of a metric.
type Kind string

const (
	KindChoropleth      Kind = "choropleth"
	KindMultiChoropleth Kind = "multi-choropleth"
	KindTradeSwitch     Kind = "trade-switch"
	KindToggle          Kind = "toggle"
	KindToggleDropdown  Kind = "toggle-dropdown"
	KindDropdown        Kind = "dropdown"
	KindAnalysis        Kind = "analysis"
)

// TradeMode selects the sub-rule of a trade-switch metric.
type TradeMode string

const (
	Retail    TradeMode = "retail"
	Wholesale TradeMode = "wholesale"
)

// Valid reports whether m is a known trade mode.
func (m TradeMode) Valid() bool {
	return m == Retail || m == Wholesale
}

// ColorRule is a step function from a numeric feature field to a color.
// Colors[i] applies from Stops[i] (inclusive) up to Stops[i+1].
type ColorRule struct {
	Field       string    `yaml:"field" json:"field" doc:"Feature property read per feature"`
	Stops       []float64 `yaml:"stops" json:"stops" doc:"Ascending bucket lower bounds"`
	Colors      []string  `yaml:"colors" json:"colors" doc:"One color per bucket"`
	LegendTitle string    `yaml:"legendTitle,omitempty" json:"legendTitle,omitempty" doc:"Legend title for this rule"`
}

// Variant is the kind-specific payload of a metric. The set of variants is
// closed: every implementation lives in this package.
type Variant interface {
	Kind() Kind
	variant()
}

// Choropleth colors one target layer by a single field.
type Choropleth struct {
	TargetLayer string
	Rule        ColorRule
	// Monthly divides the field by 12 inside the paint expression.
	Monthly bool
}

// MultiChoropleth maps each layer to its own rule.
type MultiChoropleth struct {
	Layers map[string]ColorRule
}

// TradeSwitch colors the target layer with the rule of the active trade mode.
type TradeSwitch struct {
	TargetLayer string
	Modes       map[TradeMode]ColorRule
}

// Toggle flips the visibility of a single layer.
type Toggle struct {
	Layer string
}

// ToggleDropdown is a checkbox with a value filter (e.g. manufacturer registry).
type ToggleDropdown struct {
	TargetLayer string
	Field       string
	PopupField  string
}

// Dropdown filters a layer by a field value.
type Dropdown struct {
	TargetLayer string
	Field       string
}

// Analysis only changes popup content; it never recolors a layer.
type Analysis struct {
	TargetLayer string
	Staples     []string
	Groups      []ProductGroup
}

func (Choropleth) Kind() Kind      { return KindChoropleth }
func (MultiChoropleth) Kind() Kind { return KindMultiChoropleth }
func (TradeSwitch) Kind() Kind     { return KindTradeSwitch }
func (Toggle) Kind() Kind          { return KindToggle }
func (ToggleDropdown) Kind() Kind  { return KindToggleDropdown }
func (Dropdown) Kind() Kind        { return KindDropdown }
func (Analysis) Kind() Kind        { return KindAnalysis }

func (Choropleth) variant()      {}
func (MultiChoropleth) variant() {}
func (TradeSwitch) variant()     {}
func (Toggle) variant()          {}
func (ToggleDropdown) variant()  {}
func (Dropdown) variant()        {}
func (Analysis) variant()        {}

// ProductGroup is a thematic category of food-balance product fields.
type ProductGroup struct {
	Name   string   `yaml:"name" json:"name"`
	Fields []string `yaml:"fields" json:"fields"`
}

// ChartMode selects how the chart is bound for a metric.
type ChartMode string

const (
	ChartNone       ChartMode = ""
	ChartPopulation ChartMode = "population"
	ChartUrbanRural ChartMode = "urban-rural"
	ChartSeries     ChartMode = "series"
)

// ChartSpec describes the chart binding of a metric.
type ChartSpec struct {
	Mode   ChartMode `yaml:"mode" json:"mode" enum:"population,urban-rural,series" doc:"Chart binding mode"`
	Prefix string    `yaml:"prefix,omitempty" json:"prefix,omitempty" doc:"Series key prefix for series mode"`
	Label  string    `yaml:"label,omitempty" json:"label,omitempty"`
	Color  string    `yaml:"color,omitempty" json:"color,omitempty"`
	Total  string    `yaml:"total,omitempty" json:"total,omitempty"`
	Male   string    `yaml:"male,omitempty" json:"male,omitempty"`
	Female string    `yaml:"female,omitempty" json:"female,omitempty"`
	Urban  string    `yaml:"urban,omitempty" json:"urban,omitempty"`
	Rural  string    `yaml:"rural,omitempty" json:"rural,omitempty"`
}

// PopupRow is the single metric-specific row added to region popups.
type PopupRow struct {
	Label   string  `yaml:"label" json:"label"`
	Field   string  `yaml:"field" json:"field"`
	Unit    string  `yaml:"unit,omitempty" json:"unit,omitempty"`
	Divisor float64 `yaml:"divisor,omitempty" json:"divisor,omitempty"`
	Note    string  `yaml:"note,omitempty" json:"note,omitempty"`
}

// Metric is a user-selectable data lens.
type Metric struct {
	ID          string
	Label       string
	LegendTitle string
	Category    string
	Chart       ChartSpec
	Popup       *PopupRow
	Variant     Variant

	doc MetricDoc
}

// Kind returns the metric's rendering type.
func (m *Metric) Kind() Kind {
	if m == nil || m.Variant == nil {
		return ""
	}
	return m.Variant.Kind()
}

// Describe returns the declarative form of the metric.
func (m *Metric) Describe() MetricDoc {
	return m.doc
}

// LayerType is the geometry rendering type of a layer.
type LayerType string

const (
	LayerFill      LayerType = "fill"
	LayerLine      LayerType = "line"
	LayerPointIcon LayerType = "point-icon"
)

// PopupKind selects the popup composition strategy of a layer.
type PopupKind string

const (
	PopupNone       PopupKind = ""
	PopupDistrict   PopupKind = "district"
	PopupRegion     PopupKind = "region"
	PopupSettlement PopupKind = "settlement"
	PopupStorage    PopupKind = "storage"
	PopupFair       PopupKind = "fair"
)

// Layer is a render layer backed by one GeoJSON file.
type Layer struct {
	ID          string    `yaml:"id" json:"id" doc:"Layer identifier" example:"balance"`
	File        string    `yaml:"file" json:"file" doc:"Data file name" example:"balance.geojson"`
	Type        LayerType `yaml:"type" json:"type" enum:"fill,line,point-icon" doc:"Rendering type"`
	BaseColor   string    `yaml:"baseColor,omitempty" json:"baseColor,omitempty" doc:"Fill color when no metric applies"`
	Opacity     float64   `yaml:"opacity,omitempty" json:"opacity,omitempty" minimum:"0" maximum:"1"`
	BorderColor string    `yaml:"borderColor,omitempty" json:"borderColor,omitempty"`
	Color       string    `yaml:"color,omitempty" json:"color,omitempty"`
	Width       float64   `yaml:"width,omitempty" json:"width,omitempty"`
	DashArray   []float64 `yaml:"dashArray,omitempty" json:"dashArray,omitempty"`
	Icon        string    `yaml:"icon,omitempty" json:"icon,omitempty"`
	Size        float64   `yaml:"size,omitempty" json:"size,omitempty"`
	Interactive *bool     `yaml:"interactive,omitempty" json:"interactive,omitempty"`
	IDField     string    `yaml:"idField,omitempty" json:"idField,omitempty"`
	Popup       PopupKind `yaml:"popup,omitempty" json:"popup,omitempty" doc:"Popup composition strategy"`
}

// IsInteractive reports whether clicks on the layer produce popups.
func (l Layer) IsInteractive() bool {
	return l.Interactive == nil || *l.Interactive
}

// MarkerID returns the id of the paired circle sublayer, or "".
func (l Layer) MarkerID() string {
	if l.Type == LayerPointIcon {
		return l.ID + "_circle"
	}
	return ""
}

// Base returns the base fill color.
func (l Layer) Base() string {
	if l.BaseColor == "" {
		return "#ccc"
	}
	return l.BaseColor
}

// AdminLevel is one administrative zoom level.
type AdminLevel struct {
	Key     string   `yaml:"key" json:"key" doc:"Level key" example:"republic"`
	Name    string   `yaml:"name" json:"name" doc:"Button label"`
	Layers  []string `yaml:"layers" json:"layersToShow" doc:"Polygon layers shown at this level"`
	Borders []string `yaml:"borders" json:"bordersToShow" doc:"Line layers shown at this level"`
}

// Shows reports whether the layer is visible at this level.
func (a AdminLevel) Shows(layerID string) bool {
	for _, id := range a.Layers {
		if id == layerID {
			return true
		}
	}
	for _, id := range a.Borders {
		if id == layerID {
			return true
		}
	}
	return false
}

// Category is one accordion section.
type Category struct {
	ID      string
	Title   string
	Metrics []*Metric
}

// MapStyle is the base map descriptor.
type MapStyle struct {
	Center      [2]float64 `yaml:"center" json:"center"`
	Zoom        float64    `yaml:"zoom" json:"zoom"`
	Tiles       []string   `yaml:"tiles" json:"tiles"`
	TileSize    int        `yaml:"tileSize" json:"tileSize"`
	Attribution string     `yaml:"attribution" json:"attribution"`
}

// RegionSettings configures the parent-region cache used for district charts.
type RegionSettings struct {
	Layer    string   `yaml:"layer" json:"layer"`
	Key      string   `yaml:"key" json:"key"`
	Children []string `yaml:"children" json:"children"`
}

// IsChild reports whether layerID is a sub-region layer.
func (r RegionSettings) IsChild(layerID string) bool {
	for _, id := range r.Children {
		if id == layerID {
			return true
		}
	}
	return false
}
