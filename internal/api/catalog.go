package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/humastar"
	"github.com/joeblew999/plat-stat/internal/style"
)

type CategoryBody struct {
	ID      string              `json:"id" doc:"Category id" example:"safety"`
	Title   string              `json:"title" doc:"Accordion section title"`
	Metrics []catalog.MetricDoc `json:"metrics" doc:"Metrics in display order"`
}

type CatalogBody struct {
	Map        catalog.MapStyle     `json:"map"`
	Levels     []catalog.AdminLevel `json:"levels"`
	Layers     []catalog.Layer      `json:"layers"`
	Categories []CategoryBody       `json:"categories"`
}

type MetricBody struct {
	catalog.MetricDoc
	Category string   `json:"category" doc:"Owning category id"`
	Options  []string `json:"options,omitempty" doc:"Dropdown values for filter metrics"`
}

type MetricSummary struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Type     catalog.Kind `json:"type"`
	Category string       `json:"category"`
}

type ListMetricsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"0" maximum:"200" default:"50" doc:"Page size"`
}

type LayerBody struct {
	catalog.Layer
	Features int `json:"features" doc:"Loaded feature count, -1 when loading failed"`
}

type ClassificationsBody struct {
	Classifications []string `json:"classifications" doc:"Distinct registry classifications, sorted"`
	Manufacturers   int      `json:"manufacturers" doc:"Registry size"`
}

// RegisterCatalog registers the read-only configuration routes.
func (h *APIHandler) RegisterCatalog(api huma.API) {
	huma.Get(api, "/api/v1/catalog", h.GetCatalog, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/metrics", h.ListMetrics, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/metrics/{id}", h.GetMetric, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/levels", h.GetLevels, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/style", h.GetStyle, huma.OperationTags("catalog"))
	huma.Get(api, "/api/v1/manufacturers/classifications", h.GetClassifications, huma.OperationTags("manufacturers"))
}

func (h *APIHandler) catalog() *catalog.Catalog {
	return h.svc.Deps.Catalog
}

func (h *APIHandler) GetCatalog(ctx context.Context, input *struct{}) (*struct{ Body CatalogBody }, error) {
	cat := h.catalog()
	body := CatalogBody{
		Map:        cat.Map,
		Levels:     cat.Levels,
		Layers:     cat.Layers,
		Categories: make([]CategoryBody, 0, len(cat.Categories)),
	}
	for _, c := range cat.Categories {
		cb := CategoryBody{ID: c.ID, Title: c.Title, Metrics: []catalog.MetricDoc{}}
		for _, m := range c.Metrics {
			cb.Metrics = append(cb.Metrics, m.Describe())
		}
		body.Categories = append(body.Categories, cb)
	}
	return &struct{ Body CatalogBody }{Body: body}, nil
}

func (h *APIHandler) ListMetrics(ctx context.Context, input *ListMetricsInput) (*struct {
	Body humastar.PageBody[MetricSummary]
}, error) {
	all := h.catalog().Metrics()
	items := make([]MetricSummary, 0, len(all))
	for _, m := range all {
		items = append(items, MetricSummary{ID: m.ID, Label: m.Label, Type: m.Kind(), Category: m.Category})
	}
	return &struct {
		Body humastar.PageBody[MetricSummary]
	}{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetMetric(ctx context.Context, input *IDInput) (*struct{ Body MetricBody }, error) {
	m, ok := h.catalog().Metric(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("metric not found")
	}
	return &struct{ Body MetricBody }{Body: MetricBody{
		MetricDoc: m.Describe(),
		Category:  m.Category,
		Options:   h.svc.Deps.Options(m),
	}}, nil
}

func (h *APIHandler) GetLevels(ctx context.Context, input *struct{}) (*struct{ Body []catalog.AdminLevel }, error) {
	return &struct{ Body []catalog.AdminLevel }{Body: h.catalog().Levels}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body []LayerBody }, error) {
	status := h.svc.Deps.Store.Status()
	out := make([]LayerBody, 0, len(h.catalog().Layers))
	for _, l := range h.catalog().Layers {
		n, ok := status[l.ID]
		if !ok {
			n = -1
		}
		out = append(out, LayerBody{Layer: l, Features: n})
	}
	return &struct{ Body []LayerBody }{Body: out}, nil
}

func (h *APIHandler) GetStyle(ctx context.Context, input *struct{}) (*struct{ Body style.Document }, error) {
	dataURL := h.svc.DataURL
	if dataURL == "" {
		dataURL = "/data"
	}
	return &struct{ Body style.Document }{Body: style.BuildDocument(h.catalog(), dataURL)}, nil
}

func (h *APIHandler) GetClassifications(ctx context.Context, input *struct{}) (*struct{ Body ClassificationsBody }, error) {
	reg := h.svc.Deps.Registry
	classes := reg.Classifications()
	if classes == nil {
		classes = []string{}
	}
	return &struct{ Body ClassificationsBody }{Body: ClassificationsBody{
		Classifications: classes,
		Manufacturers:   reg.Len(),
	}}, nil
}
