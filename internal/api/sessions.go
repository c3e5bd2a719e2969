package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/chart"
	"github.com/joeblew999/plat-stat/internal/dashboard"
	"github.com/joeblew999/plat-stat/internal/humastar"
)

// sessionActions are the links every session view advertises.
var sessionActions = []humastar.ActionDef{
	{Rel: "level", Pattern: "/api/v1/sessions/%s/level", Method: http.MethodPut, Title: "Switch admin level"},
	{Rel: "metric", Pattern: "/api/v1/sessions/%s/metric", Method: http.MethodPut, Title: "Activate a metric"},
	{Rel: "select", Pattern: "/api/v1/sessions/%s/select", Method: http.MethodPost, Title: "Select a feature"},
}

// SessionBody is a session's current view.
type SessionBody struct {
	ID string `json:"id" doc:"Session ID" format:"uuid"`
	dashboard.View
}

// Actions implements humastar.Actor.
func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, sessionActions...)
}

type SessionOutput struct {
	Body SessionBody
}

type LevelInput struct {
	SessionInput
	Body struct {
		Level string `json:"level" required:"true" doc:"Admin level key" example:"oblast"`
	}
}

type MetricInput struct {
	SessionInput
	Body struct {
		Metric string `json:"metric" doc:"Metric id; empty clears the active metric" example:"crime_rate"`
	}
}

type TradeModeInput struct {
	SessionInput
	Body struct {
		Mode catalog.TradeMode `json:"mode" required:"true" enum:"retail,wholesale"`
	}
}

type ManufacturersInput struct {
	SessionInput
	Body struct {
		Enabled        bool   `json:"enabled" doc:"Filter checkbox"`
		Classification string `json:"classification,omitempty" doc:"Classification to show; empty shows all"`
	}
}

type FilterInput struct {
	SessionInput
	Metric string `path:"metric" doc:"Filter metric id" example:"raw_materials_toggle"`
	Body   dashboard.Filter
}

type SelectInput struct {
	SessionInput
	Body struct {
		Layer      string         `json:"layer" required:"true" doc:"Layer id" example:"balance"`
		Lng        *float64       `json:"lng,omitempty" doc:"Click longitude"`
		Lat        *float64       `json:"lat,omitempty" doc:"Click latitude"`
		FeatureID  string         `json:"featureId,omitempty" doc:"Feature id (idField value or index)"`
		Properties map[string]any `json:"properties,omitempty" doc:"Raw feature properties"`
	}
}

type SelectOutput struct {
	Body dashboard.Selection
}

type ChartPNGInput struct {
	SessionInput
	Width  int `query:"width" minimum:"0" maximum:"4000" doc:"Image width, 0 for default"`
	Height int `query:"height" minimum:"0" maximum:"4000" doc:"Image height, 0 for default"`
}

type ChartPNGOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// RegisterSessions registers the per-session state routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Create session",
		DefaultStatus: http.StatusCreated,
		Tags:          []string{"sessions"},
	}, h.CreateSession)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/view", h.GetView, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/level", h.PutLevel, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/metric", h.PutMetric, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/trade-mode", h.PutTradeMode, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/manufacturers", h.PutManufacturers, huma.OperationTags("sessions"))
	huma.Put(api, "/api/v1/sessions/{id}/filters/{metric}", h.PutFilter, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{id}/select", h.Select, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/chart.png", h.GetChartPNG, huma.OperationTags("sessions"))
}

func (h *APIHandler) session(id string) (*dashboard.Controller, error) {
	c, err := h.svc.Sessions.Get(id)
	if err != nil {
		return nil, httpError(err)
	}
	return c, nil
}

func viewOutput(id string, v dashboard.View) *SessionOutput {
	return &SessionOutput{Body: SessionBody{ID: id, View: v}}
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	c := h.svc.Sessions.Create()
	return viewOutput(c.ID(), c.View()), nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *SessionInput) (*struct{ Body dashboard.State }, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return &struct{ Body dashboard.State }{Body: c.State()}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *SessionInput) (*struct{ Body MessageBody }, error) {
	if !h.svc.Sessions.Delete(input.ID) {
		return nil, huma.Error404NotFound("session not found")
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session deleted"}}, nil
}

func (h *APIHandler) GetView(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return viewOutput(c.ID(), c.View()), nil
}

func (h *APIHandler) PutLevel(ctx context.Context, input *LevelInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, ok := c.SwitchLevel(input.Body.Level)
	if !ok {
		return nil, huma.Error422UnprocessableEntity(catalog.ErrUnknownLevel.Error() + ": " + input.Body.Level)
	}
	return viewOutput(c.ID(), v), nil
}

func (h *APIHandler) PutMetric(ctx context.Context, input *MetricInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	if input.Body.Metric == "" {
		return viewOutput(c.ID(), c.ClearMetric()), nil
	}
	v, err := c.ActivateMetric(input.Body.Metric)
	if err != nil {
		return nil, httpError(err)
	}
	return viewOutput(c.ID(), v), nil
}

func (h *APIHandler) PutTradeMode(ctx context.Context, input *TradeModeInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := c.SetTradeMode(input.Body.Mode)
	if err != nil {
		return nil, httpError(err)
	}
	return viewOutput(c.ID(), v), nil
}

func (h *APIHandler) PutManufacturers(ctx context.Context, input *ManufacturersInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := c.SetManufacturerFilter(input.Body.Enabled, input.Body.Classification)
	if err != nil {
		return nil, httpError(err)
	}
	return viewOutput(c.ID(), v), nil
}

func (h *APIHandler) PutFilter(ctx context.Context, input *FilterInput) (*SessionOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	v, err := c.SetFilter(input.Metric, input.Body.Enabled, input.Body.Value)
	if err != nil {
		return nil, httpError(err)
	}
	return viewOutput(c.ID(), v), nil
}

func (h *APIHandler) Select(ctx context.Context, input *SelectInput) (*SelectOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	props, err := h.svc.Deps.Resolve(input.Body.Layer, dashboard.FeatureRef{
		Properties: input.Body.Properties,
		ID:         input.Body.FeatureID,
		Lng:        input.Body.Lng,
		Lat:        input.Body.Lat,
	})
	if err != nil {
		return nil, httpError(err)
	}
	sel, err := c.Select(input.Body.Layer, props)
	if err != nil {
		return nil, httpError(err)
	}
	return &SelectOutput{Body: sel}, nil
}

func (h *APIHandler) GetChartPNG(ctx context.Context, input *ChartPNGInput) (*ChartPNGOutput, error) {
	c, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := chart.RenderPNG(c.Chart(), &buf, input.Width, input.Height); err != nil {
		if errors.Is(err, chart.ErrEmpty) {
			return nil, huma.Error404NotFound("no chart for this session yet")
		}
		return nil, huma.Error500InternalServerError("render chart", err)
	}
	return &ChartPNGOutput{ContentType: "image/png", Body: buf.Bytes()}, nil
}
