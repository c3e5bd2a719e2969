package chart

import (
	"errors"
	"math"
	"strconv"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/feature"
)

// ErrNoProperties is returned when Build is called without a feature.
var ErrNoProperties = errors.New("chart: no feature properties")

const (
	positiveBar  = "rgba(52, 152, 219, 0.7)"
	negativeBar  = "rgba(231, 76, 60, 0.7)"
	currentLabel = "Текущий показатель"
)

// RegionLookup resolves a parent region's property bag.
type RegionLookup interface {
	RegionCache(id string) (feature.Props, bool)
}

// Binder builds chart configs.
type Binder struct {
	regions catalog.RegionSettings
	lookup  RegionLookup
}

// NewBinder creates a binder. lookup may be nil, which disables district
// substitution.
func NewBinder(regions catalog.RegionSettings, lookup RegionLookup) *Binder {
	return &Binder{regions: regions, lookup: lookup}
}

var populationSpec = catalog.ChartSpec{
	Mode:   catalog.ChartPopulation,
	Total:  "popul_total",
	Male:   "popul_male",
	Female: "popul_female",
}

// Build returns the chart for a click on layerID with the given metric
// active. A nil metric binds the population chart.
func (b *Binder) Build(m *catalog.Metric, layerID string, props feature.Properties) (*Config, error) {
	if props == nil {
		return nil, ErrNoProperties
	}
	src, title := b.resolve(layerID, props)

	spec := populationSpec
	if m != nil {
		spec = m.Chart
	}

	cfg := &Config{Title: title, Labels: []string{}, Datasets: []Dataset{}}
	switch spec.Mode {
	case catalog.ChartPopulation:
		population(cfg, src, spec)
	case catalog.ChartUrbanRural:
		urbanRural(cfg, src, spec)
	case catalog.ChartSeries:
		series(cfg, src, spec)
	}
	return cfg, nil
}

func (b *Binder) resolve(layerID string, props feature.Properties) (feature.Properties, string) {
	title := feature.First(props, "ADM1_EN", "ADM_2_rus", "name")
	if title == "" {
		title = "Регион"
	}
	if b.lookup == nil || !b.regions.IsChild(layerID) {
		return props, title
	}
	parentID := props.String(b.regions.Key)
	if parentID == "" {
		return props, title
	}
	parent, ok := b.lookup.RegionCache(parentID)
	if !ok {
		return props, title
	}
	if t := feature.First(parent, "ADM1_EN", "ADM_2_rus"); t != "" {
		title = t
	}
	return parent, title
}

func population(cfg *Config, p feature.Properties, spec catalog.ChartSpec) {
	total := p.Series(spec.Total)
	male := p.Series(spec.Male)
	female := p.Series(spec.Female)
	years := feature.Years(total, male, female)

	totals := make([]*float64, 0, len(years))
	diffs := make([]*float64, 0, len(years))
	colors := make([]string, 0, len(years))
	for _, y := range years {
		cfg.Labels = append(cfg.Labels, strconv.Itoa(y))
		if v, ok := feature.At(total, y); ok {
			totals = append(totals, num(v))
		} else {
			totals = append(totals, nil)
		}
		mv, _ := feature.At(male, y)
		fv, _ := feature.At(female, y)
		d := mv - fv
		diffs = append(diffs, num(d))
		if d > 0 {
			colors = append(colors, positiveBar)
		} else {
			colors = append(colors, negativeBar)
		}
	}

	cfg.Datasets = []Dataset{
		{
			Type:        "line",
			Label:       "Всего население (чел.)",
			Data:        totals,
			BorderColor: "#2c3e50",
			BorderWidth: 2,
			PointRadius: 2,
			YAxisID:     "y",
			Order:       1,
		},
		{
			Type:            "bar",
			Label:           "Разница (М выше 0 / Ж ниже 0)",
			Data:            diffs,
			BackgroundColor: colors,
			YAxisID:         "y1",
			Order:           2,
		},
	}
	cfg.Scales = map[string]Axis{
		"y": {
			Type: "linear", Display: true, Position: "left",
			Title: &AxisTitle{Display: true, Text: "Всего (чел)"},
		},
		"y1": {
			Type: "linear", Display: true, Position: "right",
			Title: &AxisTitle{Display: true, Text: "Разница М/Ж (чел)"},
			Grid:  &Grid{DrawOnChartArea: false},
		},
	}
}

func urbanRural(cfg *Config, p feature.Properties, spec catalog.ChartSpec) {
	urban := p.Series(spec.Urban)
	rural := p.Series(spec.Rural)
	years := feature.Years(urban, rural)

	monthly := func(s []feature.Point) []*float64 {
		out := make([]*float64, 0, len(years))
		for _, y := range years {
			if v, ok := feature.At(s, y); ok {
				out = append(out, num(math.Round(v/12)))
			} else {
				out = append(out, nil)
			}
		}
		return out
	}
	for _, y := range years {
		cfg.Labels = append(cfg.Labels, strconv.Itoa(y))
	}
	cfg.Datasets = []Dataset{
		{Type: "line", Label: "Город (мес.)", Data: monthly(urban), BorderColor: "#e74c3c", YAxisID: "y"},
		{Type: "line", Label: "Село (мес.)", Data: monthly(rural), BorderColor: "#27ae60", YAxisID: "y"},
	}
	cfg.Scales = map[string]Axis{
		"y":  {Display: true},
		"y1": {Display: false},
	}
}

func series(cfg *Config, p feature.Properties, spec catalog.ChartSpec) {
	if spec.Prefix == "" {
		return
	}
	ds := Dataset{
		Label:           spec.Label,
		BorderColor:     spec.Color,
		BackgroundColor: spec.Color + "33",
		Fill:            true,
		YAxisID:         "y",
	}
	if s := p.Series(spec.Prefix); len(s) > 0 {
		for _, pt := range s {
			cfg.Labels = append(cfg.Labels, strconv.Itoa(pt.Year))
			ds.Data = append(ds.Data, num(math.Round(pt.Value)))
		}
		cfg.Datasets = []Dataset{ds}
		return
	}
	if !feature.Truthy(p, spec.Prefix) {
		return
	}
	v, ok := p.Float(spec.Prefix)
	if !ok {
		return
	}
	ds.Type = "bar"
	ds.Data = []*float64{num(math.Round(v))}
	cfg.Labels = []string{currentLabel}
	cfg.Datasets = []Dataset{ds}
}

func num(v float64) *float64 { return &v }
