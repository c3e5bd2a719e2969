package humastar

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-stat/internal/logger"
)

// SSE wraps a Datastar event generator for one streamed response.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE creates a Datastar SSE helper from a Huma streaming context.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the inner HTML of the element at selector.
func (s SSE) Patch(html, selector string) {
	if err := s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	); err != nil {
		logger.L().Debug("sse_patch_failed", "selector", selector, "err", err)
	}
}

// Signals merges values into the page's signals.
func (s SSE) Signals(signals map[string]any) {
	if err := s.MarshalAndPatchSignals(signals); err != nil {
		logger.L().Debug("sse_signals_failed", "err", err)
	}
}

// Error shows msg through the $error signal.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// Emit dispatches a browser CustomEvent named event with payload as its
// detail. The map script listens for these.
func (s SSE) Emit(event string, payload any) {
	if err := s.DispatchCustomEvent(event, payload); err != nil {
		logger.L().Debug("sse_event_failed", "event", event, "err", err)
	}
}
