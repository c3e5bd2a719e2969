package style

import (
	"strings"

	"github.com/joeblew999/plat-stat/internal/catalog"
)

// HighlightLayer outlines the selected feature. Fill layers are stacked
// below it.
const HighlightLayer = "highlight-line"

const (
	defaultFillOpacity = 0.6
	defaultOutline     = "#fff"
	iconSize           = 0.5
)

// Document is a MapLibre style document.
type Document struct {
	Version int               `json:"version"`
	Center  [2]float64        `json:"center"`
	Zoom    float64           `json:"zoom"`
	Sprite  string            `json:"sprite,omitempty"`
	Glyphs  string            `json:"glyphs,omitempty"`
	Sources map[string]Source `json:"sources"`
	Layers  []MapLayer        `json:"layers"`
	// Images maps icon ids to URLs the page registers before adding layers.
	Images map[string]string `json:"images,omitempty"`
}

// Source is a raster or GeoJSON source.
type Source struct {
	Type        string   `json:"type"`
	Tiles       []string `json:"tiles,omitempty"`
	TileSize    int      `json:"tileSize,omitempty"`
	Attribution string   `json:"attribution,omitempty"`
	Data        any      `json:"data,omitempty"`
}

// MapLayer is one style layer.
type MapLayer struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Layout map[string]any `json:"layout,omitempty"`
	Paint  map[string]any `json:"paint,omitempty"`
}

// BuildDocument turns the catalog into a style document. Layer data is
// served under dataURL; visibility comes from the default level.
func BuildDocument(cat *catalog.Catalog, dataURL string) Document {
	level, _ := cat.Level(cat.DefaultLevel())
	visible := Visibility(cat.Layers, level, nil)
	dataURL = strings.TrimRight(dataURL, "/")

	doc := Document{
		Version: 8,
		Center:  cat.Map.Center,
		Zoom:    cat.Map.Zoom,
		Sources: map[string]Source{
			"basemap": {
				Type:        "raster",
				Tiles:       cat.Map.Tiles,
				TileSize:    cat.Map.TileSize,
				Attribution: cat.Map.Attribution,
			},
			"highlight-source": {
				Type: "geojson",
				Data: map[string]any{"type": "FeatureCollection", "features": []any{}},
			},
		},
		Images: cat.Icons,
	}
	doc.Layers = append(doc.Layers, MapLayer{ID: "basemap", Type: "raster", Source: "basemap"})

	var fills, rest []MapLayer
	for _, l := range cat.Layers {
		doc.Sources[l.ID] = Source{Type: "geojson", Data: dataURL + "/" + l.File}
		switch l.Type {
		case catalog.LayerFill:
			fills = append(fills, MapLayer{
				ID: l.ID, Type: "fill", Source: l.ID,
				Layout: layout(visible[l.ID]),
				Paint: map[string]any{
					"fill-color":         l.Base(),
					"fill-opacity":       orDefault(l.Opacity, defaultFillOpacity),
					"fill-outline-color": orString(l.BorderColor, defaultOutline),
				},
			})
		case catalog.LayerLine:
			dash := l.DashArray
			if len(dash) == 0 {
				dash = []float64{1, 0}
			}
			rest = append(rest, MapLayer{
				ID: l.ID, Type: "line", Source: l.ID,
				Layout: layout(visible[l.ID]),
				Paint: map[string]any{
					"line-color":     l.Color,
					"line-width":     l.Width,
					"line-dasharray": dash,
				},
			})
		case catalog.LayerPointIcon:
			rest = append(rest,
				MapLayer{
					ID: l.MarkerID(), Type: "circle", Source: l.ID,
					Layout: layout(visible[l.MarkerID()]),
					Paint: map[string]any{
						"circle-radius":       l.Size,
						"circle-color":        l.Color,
						"circle-stroke-width": 1,
						"circle-stroke-color": "#fff",
					},
				},
				MapLayer{
					ID: l.ID, Type: "symbol", Source: l.ID,
					Layout: map[string]any{
						"visibility":         visibility(visible[l.ID]),
						"icon-image":         l.Icon,
						"icon-size":          iconSize,
						"icon-allow-overlap": true,
					},
				},
			)
		}
	}

	doc.Layers = append(doc.Layers, fills...)
	doc.Layers = append(doc.Layers, MapLayer{
		ID: HighlightLayer, Type: "line", Source: "highlight-source",
		Paint: map[string]any{"line-color": "#f1c40f", "line-width": 3},
	})
	doc.Layers = append(doc.Layers, rest...)
	return doc
}

func layout(visible bool) map[string]any {
	return map[string]any{"visibility": visibility(visible)}
}

func visibility(visible bool) string {
	if visible {
		return "visible"
	}
	return "none"
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
