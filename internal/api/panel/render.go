// Package panel contains the Datastar SSE handlers behind the dashboard's
// level buttons, metric accordion, legend and popup.
package panel

import (
	"html/template"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/dashboard"
	"github.com/joeblew999/plat-stat/internal/humastar"
	"github.com/joeblew999/plat-stat/internal/logger"
)

// Element selectors patched by the handlers.
const (
	LevelsSelector    = "#level-buttons"
	AccordionSelector = "#accordion"
	LegendSelector    = "#legend"
	PopupSelector     = "#popup"
)

// allOption is the dropdown placeholder that matches everything.
const allOption = "Все"

type levelButton struct {
	Key    string
	Name   string
	Active bool
}

type section struct {
	ID       string
	Title    string
	Open     bool
	Controls []control
}

type control struct {
	ID      string
	Label   string
	Kind    string
	Active  bool
	Checked bool
	Mode    string
	Options template.HTML
}

func (h *Handler) render(name string, data any) string {
	html, err := h.Renderer.Render(name, data)
	if err != nil {
		logger.L().Error("panel_render_failed", "template", name, "err", err)
		return ""
	}
	return html
}

func (h *Handler) renderLevels(state dashboard.State) string {
	levels := h.deps.Catalog.Levels
	buttons := make([]levelButton, len(levels))
	for i, l := range levels {
		buttons[i] = levelButton{Key: l.Key, Name: l.Name, Active: l.Key == state.Level}
	}
	return h.render("level-buttons", buttons)
}

func (h *Handler) renderAccordion(v dashboard.View) string {
	st := v.State
	var sections []section
	for _, cat := range h.deps.Catalog.Categories {
		s := section{ID: cat.ID, Title: cat.Title}
		for _, m := range cat.Metrics {
			c := control{ID: m.ID, Label: m.Label, Kind: string(m.Kind()), Mode: string(st.TradeMode)}
			switch variant := m.Variant.(type) {
			case catalog.Toggle:
				c.Checked = v.Visibility[variant.Layer]
			case catalog.ToggleDropdown, catalog.Dropdown:
				f := st.Filters[m.ID]
				c.Checked = f.Enabled
				c.Options = h.RenderSelect(allOption, h.options(m, f.Value))
			default:
				c.Active = m.ID == st.MetricID
			}
			if c.Active {
				s.Open = true
			}
			s.Controls = append(s.Controls, c)
		}
		sections = append(sections, s)
	}
	return h.render("accordion", sections)
}

func (h *Handler) options(m *catalog.Metric, selected string) []humastar.SelectOptionData {
	values := h.deps.Options(m)
	out := make([]humastar.SelectOptionData, len(values))
	for i, v := range values {
		out[i] = humastar.SelectOptionData{Value: v, Label: v, Selected: v == selected}
	}
	return out
}

func (h *Handler) renderLegend(v dashboard.View) string {
	return h.render("legend", v.Legend)
}

// mapView is the payload of the map-view browser event.
func mapView(id string, v dashboard.View) map[string]any {
	return map[string]any{
		"session":    id,
		"level":      v.State.Level,
		"metric":     v.State.MetricID,
		"visibility": v.Visibility,
		"paint":      v.Paint,
	}
}

// chartUpdate is the payload of the chart-update browser event.
func chartUpdate(id string, sel dashboard.Selection) map[string]any {
	out := map[string]any{"session": id, "layer": sel.LayerID}
	if sel.Chart != nil {
		out["chart"] = sel.Chart
	}
	if sel.ChartError != "" {
		out["error"] = sel.ChartError
	}
	return out
}
