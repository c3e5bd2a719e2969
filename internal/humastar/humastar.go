// Package humastar bridges Huma (REST/OpenAPI) with Datastar (SSE/hypermedia).
//
// Panel handlers embed [Handler], read the page's signals through
// [SignalsInput] and answer with a [huma.StreamResponse] whose body patches
// HTML fragments, signals and browser events:
//
//	func (h *PanelHandler) Level(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
//	    signals, err := input.MustParse()
//	    if err != nil {
//	        return nil, err
//	    }
//	    v, _ := h.sessions.GetOrCreate(signals.String("session")).SwitchLevel(signals.String("level"))
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.renderLevels(v), "#level-buttons")
//	        sse.Emit("map-view", v)
//	    }), nil
//	}
//
// The REST side gets RFC 8288 Link headers derived from the OpenAPI paths,
// see [AutoLinks] and [LinkTransformer].
package humastar

import (
	"bytes"
	"html/template"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-stat/internal/logger"
	"github.com/joeblew999/plat-stat/internal/templates"
)

// Handler is an embeddable base for panel handlers.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a StreamResponse that calls fn with a ready SSE helper.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			fn(NewSSE(humaCtx))
		},
	}
}

// RenderSelect renders the <option> list of a dropdown, see [RenderSelect].
func (h *Handler) RenderSelect(placeholder string, options []SelectOptionData) template.HTML {
	return RenderSelect(h.Renderer, placeholder, options)
}

// SelectOptionData is one <option> of a dropdown.
type SelectOptionData struct {
	Value    string
	Label    string
	Selected bool
}

// RenderSelect renders a placeholder option with an empty value followed by
// options. The placeholder is selected when no option is.
func RenderSelect(r *templates.Renderer, placeholder string, options []SelectOptionData) template.HTML {
	first := SelectOptionData{Label: placeholder, Selected: true}
	for _, opt := range options {
		if opt.Selected {
			first.Selected = false
			break
		}
	}
	var buf bytes.Buffer
	for _, opt := range append([]SelectOptionData{first}, options...) {
		if err := r.RenderToBuffer(&buf, "select-option", opt); err != nil {
			logger.L().Error("select_render_failed", "err", err)
			return ""
		}
	}
	// Fragments are escaped by html/template.
	return template.HTML(buf.String())
}
