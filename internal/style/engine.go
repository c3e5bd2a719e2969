package style

import "github.com/joeblew999/plat-stat/internal/catalog"

// LayerPaint is the fill-color assignment of one polygon layer.
type LayerPaint struct {
	LayerID string `json:"layerId" doc:"Render layer id"`
	// FillColor is either a CSS color or a MapLibre step expression.
	FillColor any  `json:"fillColor" doc:"CSS color or MapLibre expression"`
	Applied   bool `json:"applied" doc:"Whether a metric rule colors this layer"`
}

// Input is the part of the selection state coloring depends on.
type Input struct {
	Level     catalog.AdminLevel
	Metric    *catalog.Metric
	TradeMode catalog.TradeMode
}

// Result is the outcome of Reapply.
type Result struct {
	Paint  []LayerPaint `json:"paint"`
	Legend *Legend      `json:"legend,omitempty"`
}

// Rule is a color rule resolved for one layer.
type Rule struct {
	catalog.ColorRule
	Monthly bool
	Title   string
}

// RuleFor resolves the rule metric applies to layerID, if any.
func RuleFor(m *catalog.Metric, layerID string, mode catalog.TradeMode) (Rule, bool) {
	if m == nil {
		return Rule{}, false
	}
	switch v := m.Variant.(type) {
	case catalog.TradeSwitch:
		if layerID != v.TargetLayer {
			return Rule{}, false
		}
		if !mode.Valid() {
			mode = catalog.Retail
		}
		r, ok := v.Modes[mode]
		if !ok {
			return Rule{}, false
		}
		return Rule{ColorRule: r, Title: r.LegendTitle}, true
	case catalog.MultiChoropleth:
		r, ok := v.Layers[layerID]
		if !ok {
			return Rule{}, false
		}
		return Rule{ColorRule: r, Title: m.LegendTitle}, true
	case catalog.Choropleth:
		if layerID != v.TargetLayer {
			return Rule{}, false
		}
		title := m.LegendTitle
		if title == "" {
			title = v.Rule.LegendTitle
		}
		return Rule{ColorRule: v.Rule, Monthly: v.Monthly, Title: title}, true
	case catalog.Toggle, catalog.ToggleDropdown, catalog.Dropdown, catalog.Analysis:
		return Rule{}, false
	}
	return Rule{}, false
}

// Engine recolors the visible polygon layers.
type Engine struct {
	cat *catalog.Catalog
}

// NewEngine creates an engine over the catalog.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

// Reapply returns one paint per polygon layer visible at in.Level, in level
// order, and the legend of the last applied rule. Without a metric, or when
// no rule applies, every layer gets its base color and the legend is nil.
func (e *Engine) Reapply(in Input) Result {
	res := Result{Paint: make([]LayerPaint, 0, len(in.Level.Layers))}
	for _, id := range in.Level.Layers {
		def, ok := e.cat.Layer(id)
		if !ok || def.Type != catalog.LayerFill {
			continue
		}
		p := LayerPaint{LayerID: id, FillColor: def.Base()}
		if r, ok := RuleFor(in.Metric, id, in.TradeMode); ok {
			p.FillColor = StepExpression(r.ColorRule, r.Monthly)
			p.Applied = true
			res.Legend = BuildLegend(r.ColorRule, r.Title)
		}
		res.Paint = append(res.Paint, p)
	}
	return res
}
