package dashboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/chart"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/metrics"
	"github.com/joeblew999/plat-stat/internal/popup"
	"github.com/joeblew999/plat-stat/internal/style"
)

var (
	// ErrNotFilter is returned when a filter action names a metric that is
	// not a dropdown filter.
	ErrNotFilter = errors.New("metric is not a filter")
	// ErrInvalidTradeMode is returned for a trade mode other than retail or wholesale.
	ErrInvalidTradeMode = errors.New("invalid trade mode")
	// ErrNotInteractive is returned when selecting on a layer without popups.
	ErrNotInteractive = errors.New("layer is not interactive")
)

// Filter is the state of one dropdown filter.
type Filter struct {
	Enabled bool   `json:"enabled" doc:"Checkbox state"`
	Value   string `json:"value,omitempty" doc:"Selected dropdown value; empty matches everything"`
}

// State is one session's UI selection.
type State struct {
	Level     string            `json:"level" doc:"Current admin level key" example:"republic"`
	MetricID  string            `json:"metric,omitempty" doc:"Active metric id"`
	TradeMode catalog.TradeMode `json:"tradeMode" enum:"retail,wholesale"`
	Toggles   map[string]bool   `json:"toggles,omitempty" doc:"Layer visibility overrides"`
	Filters   map[string]Filter `json:"filters,omitempty" doc:"Filter state by metric id"`
}

func (s State) clone() State {
	out := s
	out.Toggles = make(map[string]bool, len(s.Toggles))
	for k, v := range s.Toggles {
		out.Toggles[k] = v
	}
	out.Filters = make(map[string]Filter, len(s.Filters))
	for k, v := range s.Filters {
		out.Filters[k] = v
	}
	return out
}

// View is everything the map needs to redraw after a state change.
type View struct {
	State      State              `json:"state"`
	Visibility map[string]bool    `json:"visibility" doc:"Visible flag per layer and marker sublayer"`
	Paint      []style.LayerPaint `json:"paint"`
	Legend     *style.Legend      `json:"legend,omitempty"`
}

// Selection is the outcome of clicking a feature.
type Selection struct {
	LayerID    string        `json:"layerId"`
	Chart      *chart.Config `json:"chart,omitempty"`
	ChartError string        `json:"chartError,omitempty"`
	Popup      popup.Popup   `json:"popup"`
}

// Controller owns one session's state. Every action runs to completion
// under the lock, so two actions of the same session never interleave.
type Controller struct {
	mu       sync.Mutex
	id       string
	deps     *Deps
	state    State
	chart    *chart.Config
	selected *Selection
	lastUsed time.Time
}

// NewController creates a controller at the default level with no metric,
// retail trade mode and every filter off.
func NewController(id string, d *Deps) *Controller {
	return &Controller{
		id:   id,
		deps: d,
		state: State{
			Level:     d.Catalog.DefaultLevel(),
			TradeMode: catalog.Retail,
			Toggles:   map[string]bool{},
			Filters:   map[string]Filter{},
		},
		lastUsed: time.Now(),
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// View recomputes the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// Chart returns the chart of the last selection, if any.
func (c *Controller) Chart() *chart.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chart
}

// LastSelection returns the last selection, if any.
func (c *Controller) LastSelection() *Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Controller) metric() *catalog.Metric {
	if c.state.MetricID == "" {
		return nil
	}
	m, _ := c.deps.Catalog.Metric(c.state.MetricID)
	return m
}

func (c *Controller) view() View {
	level, ok := c.deps.Catalog.Level(c.state.Level)
	if !ok {
		level, _ = c.deps.Catalog.Level(c.deps.Catalog.DefaultLevel())
	}
	res := c.deps.Engine.Reapply(style.Input{
		Level:     level,
		Metric:    c.metric(),
		TradeMode: c.state.TradeMode,
	})
	return View{
		State:      c.state.clone(),
		Visibility: style.Visibility(c.deps.Catalog.Layers, level, c.state.Toggles),
		Paint:      res.Paint,
		Legend:     res.Legend,
	}
}

func (c *Controller) publish(resource, action string) {
	c.deps.Bus.Publish(Event{Resource: resource, Action: action, ID: c.id})
}

// SwitchLevel moves to another admin level. Toggles are cleared and the
// active metric is reapplied. An unknown key leaves the state untouched and
// reports false.
func (c *Controller) SwitchLevel(key string) (View, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.deps.Catalog.Level(key); !ok {
		return c.view(), false
	}
	c.state.Level = key
	c.state.Toggles = map[string]bool{}
	metrics.LevelSwitchesTotal.WithLabelValues(key).Inc()
	c.publish("view", "level")
	return c.view(), true
}

// ActivateMetric selects a metric. Toggle metrics flip their layer's
// visibility and filter metrics flip their checkbox; neither replaces the
// active metric.
func (c *Controller) ActivateMetric(id string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.deps.Catalog.Metric(id)
	if !ok {
		return View{}, fmt.Errorf("%w %q", catalog.ErrUnknownMetric, id)
	}
	metrics.MetricActivationsTotal.WithLabelValues(id).Inc()

	switch v := m.Variant.(type) {
	case catalog.Toggle:
		c.toggle(v.Layer)
		c.publish("view", "toggle")
		return c.view(), nil
	case catalog.ToggleDropdown, catalog.Dropdown:
		f := c.state.Filters[id]
		f.Enabled = !f.Enabled
		c.state.Filters[id] = f
		c.publish("view", "filter")
		return c.view(), nil
	case catalog.Choropleth, catalog.MultiChoropleth, catalog.TradeSwitch, catalog.Analysis:
	}
	c.state.MetricID = id
	c.publish("view", "metric")
	return c.view(), nil
}

// ClearMetric deactivates the active metric.
func (c *Controller) ClearMetric() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MetricID = ""
	c.publish("view", "metric")
	return c.view()
}

func (c *Controller) toggle(layerID string) {
	level, _ := c.deps.Catalog.Level(c.state.Level)
	visible := level.Shows(layerID)
	if t, ok := c.state.Toggles[layerID]; ok {
		visible = t
	}
	c.state.Toggles[layerID] = !visible
}

// SetTradeMode switches between retail and wholesale and makes the
// catalog's trade-switch metric the active one, whatever was active before.
func (c *Controller) SetTradeMode(mode catalog.TradeMode) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !mode.Valid() {
		return View{}, fmt.Errorf("%w %q", ErrInvalidTradeMode, mode)
	}
	c.state.TradeMode = mode
	if c.metric().Kind() != catalog.KindTradeSwitch {
		for _, m := range c.deps.Catalog.Metrics() {
			if m.Kind() == catalog.KindTradeSwitch {
				c.state.MetricID = m.ID
				break
			}
		}
	}
	c.publish("view", "trade-mode")
	return c.view(), nil
}

// SetFilter sets a dropdown filter's checkbox and value.
func (c *Controller) SetFilter(metricID string, enabled bool, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.deps.Catalog.Metric(metricID)
	if !ok {
		return View{}, fmt.Errorf("%w %q", catalog.ErrUnknownMetric, metricID)
	}
	switch m.Kind() {
	case catalog.KindToggleDropdown, catalog.KindDropdown:
	default:
		return View{}, fmt.Errorf("%w: %s", ErrNotFilter, metricID)
	}
	c.state.Filters[metricID] = Filter{Enabled: enabled, Value: value}
	c.publish("view", "filter")
	return c.view(), nil
}

// SetManufacturerFilter sets the manufacturer registry filter.
func (c *Controller) SetManufacturerFilter(enabled bool, classification string) (View, error) {
	m, ok := c.deps.ManufacturerFilter()
	if !ok {
		return View{}, fmt.Errorf("%w: no manufacturer filter in catalog", ErrNotFilter)
	}
	return c.SetFilter(m.ID, enabled, classification)
}

func (c *Controller) activeFilters() []popup.Filter {
	var out []popup.Filter
	for _, m := range c.deps.Catalog.Metrics() {
		f, ok := c.state.Filters[m.ID]
		if !ok || !f.Enabled {
			continue
		}
		out = append(out, popup.Filter{Metric: m, Value: f.Value})
	}
	return out
}

// Select handles a click on a feature of layerID. The chart and the popup
// are built independently: a chart failure is logged and reported in the
// selection while the popup is still returned.
func (c *Controller) Select(layerID string, props feature.Properties) (Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	layer, ok := c.deps.Catalog.Layer(layerID)
	if !ok {
		return Selection{}, fmt.Errorf("%w %q", catalog.ErrUnknownLayer, layerID)
	}
	if !layer.IsInteractive() {
		return Selection{}, fmt.Errorf("%w: %s", ErrNotInteractive, layerID)
	}
	metrics.SelectionsTotal.WithLabelValues(layerID).Inc()

	m := c.metric()
	sel := Selection{LayerID: layerID}
	cfg, err := c.buildChart(m, layerID, props)
	if err != nil {
		logger.L().Error("chart_update_failed", "session", c.id, "layer", layerID, "err", err)
		metrics.ChartFailuresTotal.Inc()
		sel.ChartError = err.Error()
	} else {
		sel.Chart = cfg
		c.chart = cfg
	}

	p, err := c.deps.Composer.Compose(popup.Request{
		Layer:   layer,
		Props:   props,
		Metric:  m,
		Filters: c.activeFilters(),
	})
	if err != nil {
		return Selection{}, fmt.Errorf("compose popup: %w", err)
	}
	sel.Popup = p
	c.selected = &sel
	c.publish("selection", "select")
	return sel, nil
}

func (c *Controller) buildChart(m *catalog.Metric, layerID string, props feature.Properties) (cfg *chart.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			cfg, err = nil, fmt.Errorf("chart panic: %v", r)
		}
	}()
	return c.deps.Binder.Build(m, layerID, props)
}

func (c *Controller) touch(now time.Time) {
	c.mu.Lock()
	c.lastUsed = now
	c.mu.Unlock()
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}
