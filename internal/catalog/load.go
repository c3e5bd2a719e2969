package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// MetricDoc is the declarative (file) form of a metric.
type MetricDoc struct {
	ID          string                  `yaml:"id" json:"id" doc:"Metric identifier" example:"crime_rate"`
	Label       string                  `yaml:"label" json:"label" doc:"Display text"`
	Type        Kind                    `yaml:"type" json:"type" enum:"choropleth,multi-choropleth,trade-switch,toggle,toggle-dropdown,dropdown,analysis"`
	LegendTitle string                  `yaml:"legendTitle,omitempty" json:"legendTitle,omitempty"`
	TargetLayer string                  `yaml:"targetLayer,omitempty" json:"targetLayer,omitempty"`
	Layer       string                  `yaml:"layer,omitempty" json:"layer,omitempty"`
	Field       string                  `yaml:"field,omitempty" json:"field,omitempty"`
	PopupField  string                  `yaml:"popupField,omitempty" json:"popupField,omitempty"`
	Stops       []float64               `yaml:"stops,omitempty" json:"stops,omitempty"`
	Colors      []string                `yaml:"colors,omitempty" json:"colors,omitempty"`
	Monthly     bool                    `yaml:"monthly,omitempty" json:"monthly,omitempty"`
	Layers      map[string]ColorRule    `yaml:"layers,omitempty" json:"layers,omitempty"`
	Modes       map[TradeMode]ColorRule `yaml:"modes,omitempty" json:"modes,omitempty"`
	Staples     []string                `yaml:"staples,omitempty" json:"staples,omitempty"`
	Groups      []ProductGroup          `yaml:"groups,omitempty" json:"groups,omitempty"`
	Chart       *ChartSpec              `yaml:"chart,omitempty" json:"chart,omitempty"`
	Popup       *PopupRow               `yaml:"popup,omitempty" json:"popup,omitempty"`
}

type categoryDoc struct {
	ID      string      `yaml:"id"`
	Title   string      `yaml:"title"`
	Metrics []MetricDoc `yaml:"metrics"`
}

type document struct {
	Map           MapStyle          `yaml:"map"`
	Icons         map[string]string `yaml:"icons"`
	Regions       RegionSettings    `yaml:"regions"`
	RegionAliases map[string]string `yaml:"regionAliases"`
	Levels        []AdminLevel      `yaml:"levels"`
	Layers        []Layer           `yaml:"layers"`
	Categories    []categoryDoc     `yaml:"categories"`
}

// Catalog is the loaded, validated configuration.
type Catalog struct {
	Map           MapStyle
	Icons         map[string]string
	Regions       RegionSettings
	RegionAliases map[string]string
	Levels        []AdminLevel
	Layers        []Layer
	Categories    []Category

	layers  map[string]int
	levels  map[string]int
	metrics map[string]*Metric
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultYAML))
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes and validates a catalog.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Catalog, error) {
	c := &Catalog{
		Map:           doc.Map,
		Icons:         doc.Icons,
		Regions:       doc.Regions,
		RegionAliases: doc.RegionAliases,
		Levels:        doc.Levels,
		Layers:        doc.Layers,
		layers:        make(map[string]int, len(doc.Layers)),
		levels:        make(map[string]int, len(doc.Levels)),
		metrics:       make(map[string]*Metric),
	}

	for i, l := range doc.Layers {
		if l.ID == "" {
			return nil, fmt.Errorf("layer %d: missing id", i)
		}
		if _, dup := c.layers[l.ID]; dup {
			return nil, fmt.Errorf("layer %q: duplicate id", l.ID)
		}
		switch l.Type {
		case LayerFill, LayerLine, LayerPointIcon:
		default:
			return nil, fmt.Errorf("layer %q: unsupported type %q", l.ID, l.Type)
		}
		c.layers[l.ID] = i
	}

	if len(doc.Levels) == 0 {
		return nil, fmt.Errorf("catalog defines no admin levels")
	}
	for i, lvl := range doc.Levels {
		if _, dup := c.levels[lvl.Key]; dup {
			return nil, fmt.Errorf("level %q: duplicate key", lvl.Key)
		}
		for _, id := range append(append([]string{}, lvl.Layers...), lvl.Borders...) {
			if _, ok := c.layers[id]; !ok {
				return nil, fmt.Errorf("level %q: %w %q", lvl.Key, ErrUnknownLayer, id)
			}
		}
		c.levels[lvl.Key] = i
	}

	for _, cd := range doc.Categories {
		cat := Category{ID: cd.ID, Title: cd.Title}
		for _, md := range cd.Metrics {
			if _, dup := c.metrics[md.ID]; dup {
				return nil, fmt.Errorf("metric %q: duplicate id", md.ID)
			}
			m, err := c.buildMetric(md)
			if err != nil {
				return nil, fmt.Errorf("metric %q: %w", md.ID, err)
			}
			m.Category = cd.ID
			c.metrics[m.ID] = m
			cat.Metrics = append(cat.Metrics, m)
		}
		c.Categories = append(c.Categories, cat)
	}

	return c, nil
}

func (c *Catalog) buildMetric(md MetricDoc) (*Metric, error) {
	if md.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	m := &Metric{
		ID:          md.ID,
		Label:       md.Label,
		LegendTitle: md.LegendTitle,
		Popup:       md.Popup,
		doc:         md,
	}
	if md.Chart != nil {
		m.Chart = withChartDefaults(*md.Chart)
	}

	switch md.Type {
	case KindChoropleth:
		rule := ColorRule{Field: md.Field, Stops: md.Stops, Colors: md.Colors, LegendTitle: md.LegendTitle}
		if err := c.checkTarget(md.TargetLayer); err != nil {
			return nil, err
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		m.Variant = Choropleth{TargetLayer: md.TargetLayer, Rule: rule, Monthly: md.Monthly}
	case KindMultiChoropleth:
		if len(md.Layers) == 0 {
			return nil, fmt.Errorf("multi-choropleth without layers")
		}
		for id, rule := range md.Layers {
			if err := c.checkTarget(id); err != nil {
				return nil, err
			}
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("layer %q: %w", id, err)
			}
		}
		m.Variant = MultiChoropleth{Layers: md.Layers}
	case KindTradeSwitch:
		if err := c.checkTarget(md.TargetLayer); err != nil {
			return nil, err
		}
		for _, mode := range []TradeMode{Retail, Wholesale} {
			rule, ok := md.Modes[mode]
			if !ok {
				return nil, fmt.Errorf("trade-switch missing %s mode", mode)
			}
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("mode %s: %w", mode, err)
			}
		}
		m.Variant = TradeSwitch{TargetLayer: md.TargetLayer, Modes: md.Modes}
	case KindToggle:
		if err := c.checkTarget(md.Layer); err != nil {
			return nil, err
		}
		m.Variant = Toggle{Layer: md.Layer}
	case KindToggleDropdown:
		if err := c.checkTarget(md.TargetLayer); err != nil {
			return nil, err
		}
		m.Variant = ToggleDropdown{TargetLayer: md.TargetLayer, Field: md.Field, PopupField: md.PopupField}
	case KindDropdown:
		if err := c.checkTarget(md.TargetLayer); err != nil {
			return nil, err
		}
		m.Variant = Dropdown{TargetLayer: md.TargetLayer, Field: md.Field}
	case KindAnalysis:
		m.Variant = Analysis{TargetLayer: md.TargetLayer, Staples: md.Staples, Groups: md.Groups}
	default:
		return nil, fmt.Errorf("unsupported type %q", md.Type)
	}
	return m, nil
}

func (c *Catalog) checkTarget(id string) error {
	if _, ok := c.layers[id]; !ok {
		return fmt.Errorf("%w %q", ErrUnknownLayer, id)
	}
	return nil
}

func withChartDefaults(s ChartSpec) ChartSpec {
	switch s.Mode {
	case ChartPopulation:
		if s.Total == "" {
			s.Total = "popul_total"
		}
		if s.Male == "" {
			s.Male = "popul_male"
		}
		if s.Female == "" {
			s.Female = "popul_female"
		}
	case ChartUrbanRural:
		if s.Urban == "" {
			s.Urban = "expenses_urban"
		}
		if s.Rural == "" {
			s.Rural = "expenses_rural"
		}
	case ChartSeries:
		if s.Color == "" {
			s.Color = "#3388ff"
		}
	}
	return s
}

// Validate checks the stops/colors invariants of a rule.
func (r ColorRule) Validate() error {
	if r.Field == "" {
		return fmt.Errorf("rule has no field")
	}
	if len(r.Colors) == 0 {
		return fmt.Errorf("rule %q has no colors", r.Field)
	}
	if len(r.Colors) != len(r.Stops) {
		return fmt.Errorf("rule %q: %d colors for %d stops", r.Field, len(r.Colors), len(r.Stops))
	}
	for i := 1; i < len(r.Stops); i++ {
		if r.Stops[i] <= r.Stops[i-1] {
			return fmt.Errorf("rule %q: stops not strictly increasing at %d", r.Field, i)
		}
	}
	return nil
}

// Layer returns a layer definition by id.
func (c *Catalog) Layer(id string) (Layer, bool) {
	i, ok := c.layers[id]
	if !ok {
		return Layer{}, false
	}
	return c.Layers[i], true
}

// Level returns an admin level by key.
func (c *Catalog) Level(key string) (AdminLevel, bool) {
	i, ok := c.levels[key]
	if !ok {
		return AdminLevel{}, false
	}
	return c.Levels[i], true
}

// DefaultLevel is the level a fresh session starts at.
func (c *Catalog) DefaultLevel() string {
	if _, ok := c.levels["republic"]; ok {
		return "republic"
	}
	return c.Levels[0].Key
}

// Metric returns a metric by id.
func (c *Catalog) Metric(id string) (*Metric, bool) {
	m, ok := c.metrics[id]
	return m, ok
}

// Metrics returns all metrics in accordion order.
func (c *Catalog) Metrics() []*Metric {
	var out []*Metric
	for _, cat := range c.Categories {
		out = append(out, cat.Metrics...)
	}
	return out
}
