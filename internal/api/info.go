package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	cfg InfoConfig
}

// InfoConfig describes how the running service was configured.
type InfoConfig struct {
	Source   string // source driver
	DataDir  string // fs root or s3 bucket/prefix
	DB       bool
	Sessions func() int
}

func NewInfoHandler(cfg InfoConfig) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	Source   string   `json:"source" doc:"Data source driver" enum:"fs,s3"`
	DataDir  string   `json:"data_dir" doc:"Data directory or bucket location"`
	DB       bool     `json:"db" doc:"Whether the indicator warehouse is available"`
	Sessions int      `json:"sessions" doc:"Live dashboard sessions"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"choropleth", "charts", "popups", "panel-sse", "chart-png"}
	if h.cfg.DB {
		features = append(features, "duckdb")
	}
	sessions := 0
	if h.cfg.Sessions != nil {
		sessions = h.cfg.Sessions()
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-stat",
		Version:  Version,
		Source:   h.cfg.Source,
		DataDir:  h.cfg.DataDir,
		DB:       h.cfg.DB,
		Sessions: sessions,
		Features: features,
	}}, nil
}
