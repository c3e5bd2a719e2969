package panel

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/dashboard"
	"github.com/joeblew999/plat-stat/internal/humastar"
	"github.com/joeblew999/plat-stat/internal/templates"
)

// Handler serves the panel fragments and routes panel actions into the
// session controllers.
type Handler struct {
	humastar.Handler
	sessions *dashboard.Sessions
	deps     *dashboard.Deps
}

// NewHandler creates a panel handler.
func NewHandler(sessions *dashboard.Sessions, deps *dashboard.Deps, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		deps:     deps,
	}
}

// SessionQuery carries the session id on GET panel requests.
type SessionQuery struct {
	Session string `query:"session" doc:"Session ID; a new session is started when empty or unknown"`
}

func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags("panel")
	huma.Get(api, "/api/v1/panel/levels", h.Levels, tags)
	huma.Get(api, "/api/v1/panel/accordion", h.Accordion, tags)
	huma.Post(api, "/api/v1/panel/level", h.Level, tags)
	huma.Post(api, "/api/v1/panel/metric", h.Metric, tags)
	huma.Post(api, "/api/v1/panel/trade-mode", h.TradeMode, tags)
	huma.Post(api, "/api/v1/panel/manufacturers", h.Manufacturers, tags)
	huma.Post(api, "/api/v1/panel/select", h.Select, tags)
	huma.Get(api, "/api/v1/panel/events", h.Events, tags)
}

// Levels renders the level buttons.
func (h *Handler) Levels(ctx context.Context, input *SessionQuery) (*huma.StreamResponse, error) {
	c := h.sessions.GetOrCreate(input.Session)
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"session": c.ID()})
		sse.Patch(h.renderLevels(c.State()), LevelsSelector)
	}), nil
}

// Accordion renders the metric categories with the current control state.
func (h *Handler) Accordion(ctx context.Context, input *SessionQuery) (*huma.StreamResponse, error) {
	c := h.sessions.GetOrCreate(input.Session)
	v := c.View()
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"session": c.ID()})
		sse.Patch(h.renderAccordion(v), AccordionSelector)
		sse.Patch(h.renderLegend(v), LegendSelector)
	}), nil
}

// Level switches the admin level from the $level signal.
func (h *Handler) Level(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := h.sessions.GetOrCreate(signals.String("session"))
	key := signals.String("level")
	v, ok := c.SwitchLevel(key)
	return h.Stream(func(sse humastar.SSE) {
		if !ok {
			sse.Error("Неизвестный уровень: " + key)
			return
		}
		h.sendView(sse, c.ID(), v)
	}), nil
}

// Metric activates $metric, or flips the layer named by $toggle.
func (h *Handler) Metric(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := h.sessions.GetOrCreate(signals.String("session"))
	id := signals.String("toggle")
	if id == "" {
		id = signals.String("metric")
	}
	var v dashboard.View
	if id == "" {
		v = c.ClearMetric()
	} else if v, err = c.ActivateMetric(id); err != nil {
		return h.fail(c.ID(), err), nil
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sendView(sse, c.ID(), v)
	}), nil
}

// TradeMode switches retail and wholesale from the $mode signal.
func (h *Handler) TradeMode(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := h.sessions.GetOrCreate(signals.String("session"))
	v, err := c.SetTradeMode(catalog.TradeMode(signals.String("mode")))
	if err != nil {
		return h.fail(c.ID(), err), nil
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sendView(sse, c.ID(), v)
	}), nil
}

// Manufacturers updates a dropdown filter from $filter, $enabled and
// $value. Without $filter the manufacturer registry filter is meant.
func (h *Handler) Manufacturers(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := h.sessions.GetOrCreate(signals.String("session"))
	enabled, value := signals.Bool("enabled"), signals.String("value")
	var v dashboard.View
	if id := signals.String("filter"); id != "" {
		if !signals.Has("value") {
			value = c.State().Filters[id].Value
		}
		v, err = c.SetFilter(id, enabled, value)
	} else {
		v, err = c.SetManufacturerFilter(enabled, value)
	}
	if err != nil {
		return h.fail(c.ID(), err), nil
	}
	return h.Stream(func(sse humastar.SSE) {
		h.sendView(sse, c.ID(), v)
	}), nil
}

// Select handles a map click from $layer with $featureId or $lng/$lat.
func (h *Handler) Select(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	c := h.sessions.GetOrCreate(signals.String("session"))
	layer := signals.String("layer")
	ref := dashboard.FeatureRef{
		Properties: signals.Object("properties"),
		ID:         signals.String("featureId"),
		Lng:        signals.Float("lng"),
		Lat:        signals.Float("lat"),
	}
	props, err := h.deps.Resolve(layer, ref)
	if err != nil {
		return h.fail(c.ID(), err), nil
	}
	sel, err := c.Select(layer, props)
	if err != nil {
		return h.fail(c.ID(), err), nil
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"session": c.ID()})
		h.sendSelection(sse, c.ID(), sel)
	}), nil
}

// Events streams the session's view and selection changes, including
// those made through the REST API.
func (h *Handler) Events(ctx context.Context, input *SessionQuery) (*huma.StreamResponse, error) {
	c := h.sessions.GetOrCreate(input.Session)
	bus := h.deps.Bus
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := bus.Subscribe()
			defer bus.Unsubscribe(ch)

			sse.Signals(map[string]any{"session": c.ID()})
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					if ev.ID != c.ID() {
						continue
					}
					switch ev.Resource {
					case "view":
						h.sendView(sse, c.ID(), c.View())
					case "selection":
						if sel := c.LastSelection(); sel != nil {
							h.sendSelection(sse, c.ID(), *sel)
						}
					}
				}
			}
		},
	}, nil
}

func (h *Handler) sendView(sse humastar.SSE, id string, v dashboard.View) {
	sse.Signals(map[string]any{"session": id, "level": v.State.Level, "metric": v.State.MetricID, "error": ""})
	sse.Patch(h.renderLevels(v.State), LevelsSelector)
	sse.Patch(h.renderAccordion(v), AccordionSelector)
	sse.Patch(h.renderLegend(v), LegendSelector)
	sse.Emit("map-view", mapView(id, v))
}

func (h *Handler) sendSelection(sse humastar.SSE, id string, sel dashboard.Selection) {
	sse.Patch(string(sel.Popup.HTML), PopupSelector)
	sse.Emit("chart-update", chartUpdate(id, sel))
}

// fail reports an action error to the page as the $error signal.
func (h *Handler) fail(id string, err error) *huma.StreamResponse {
	msg := err.Error()
	switch {
	case errors.Is(err, catalog.ErrUnknownMetric):
		msg = "Неизвестный показатель"
	case errors.Is(err, catalog.ErrUnknownLayer):
		msg = "Неизвестный слой"
	case errors.Is(err, dashboard.ErrNoFeatureRef):
		msg = "Не выбран объект"
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"session": id, "error": msg})
	})
}
