// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/dashboard"
	"github.com/joeblew999/plat-stat/internal/feature"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Deps     *dashboard.Deps
	Sessions *dashboard.Sessions
	// DataURL is where the server exposes layer files, used by the style
	// document.
	DataURL string
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Metric ID" example:"crime_rate"`
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID" format:"uuid"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string         `json:"status" doc:"Health status" example:"ok"`
	Version string         `json:"version" doc:"API version" example:"0.1.0"`
	Layers  map[string]int `json:"layers" doc:"Features per layer, -1 when loading failed"`
}

// APIHandler holds all REST API handlers. Methods named Register* add one
// group of routes each.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route.
func RegisterRoutes(api huma.API, svc *Services) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterCatalog(api)
	h.RegisterSessions(api)
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	status := "ok"
	layers := map[string]int{}
	if h.svc != nil && h.svc.Deps != nil && h.svc.Deps.Store != nil {
		layers = h.svc.Deps.Store.Status()
		for _, n := range layers {
			if n < 0 {
				status = "degraded"
			}
		}
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: status, Version: Version, Layers: layers}}, nil
}

// httpError maps service errors onto Huma status errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound),
		errors.Is(err, catalog.ErrUnknownMetric),
		errors.Is(err, catalog.ErrUnknownLayer),
		errors.Is(err, feature.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, dashboard.ErrNoFeatureRef):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, catalog.ErrUnknownLevel),
		errors.Is(err, dashboard.ErrNotFilter),
		errors.Is(err, dashboard.ErrInvalidTradeMode),
		errors.Is(err, dashboard.ErrNotInteractive):
		return huma.Error422UnprocessableEntity(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
