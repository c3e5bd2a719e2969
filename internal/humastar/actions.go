package humastar

import (
	"fmt"
	"strings"
)

// Action is a state-dependent hypermedia link, written as
//
//	<url>; rel="select"; method="POST"; title="Select a feature"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
	Schema string // JSON Schema URL for the request body
}

// Actor is implemented by response bodies that offer actions depending on
// their current state.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	if a.Schema != "" {
		fmt.Fprintf(&b, `; schema="%s"`, a.Schema)
	}
	return b.String()
}

// ActionDef is an action template whose Pattern holds one %s for the
// resource id.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for one resource id.
func ActionsFor(id string, defs ...ActionDef) []Action {
	out := make([]Action, len(defs))
	for i, d := range defs {
		out[i] = Action{Rel: d.Rel, Href: fmt.Sprintf(d.Pattern, id), Method: d.Method, Title: d.Title}
	}
	return out
}
