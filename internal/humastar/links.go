package humastar

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
)

// EntryPath is the API entry point every collection links back to.
const EntryPath = "/health"

// searchPath is linked as rel="search" when the warehouse query route exists.
const searchPath = "/api/v1/query"

var (
	linkMu  sync.RWMutex
	linkMap map[string][]string
)

// AutoLinks derives RFC 8288 links from the registered OpenAPI paths. Paths
// tagged with any of skipTags (Datastar panel routes) are left out. Call it
// after every route is registered.
func AutoLinks(api huma.API, skipTags ...string) {
	oapi := api.OpenAPI()
	m := map[string][]string{}
	add := func(from, to, rel string) {
		v := fmt.Sprintf(`<%s>; rel="%s"`, to, rel)
		for _, have := range m[from] {
			if have == v {
				return
			}
		}
		m[from] = append(m[from], v)
	}

	var collections, items []string
	for p, pi := range oapi.Paths {
		if hasAnyTag(primaryTags(pi), skipTags) {
			continue
		}
		if strings.Contains(p, "{") {
			items = append(items, p)
		} else {
			collections = append(collections, p)
		}
	}
	sort.Strings(collections)
	sort.Strings(items)
	_, hasSearch := oapi.Paths[searchPath]

	for _, it := range items {
		// /sessions/{id}/view is a sub-resource of /sessions/{id}
		parent := path.Dir(it)
		if _, ok := oapi.Paths[parent]; ok {
			add(it, parent, "up")
			if !strings.Contains(parent, "{") {
				add(it, parent, "collection")
				add(parent, it, "item")
			}
		}
		if pi := oapi.Paths[it]; pi.Put != nil || pi.Patch != nil {
			add(it, it, "edit")
		}
	}

	for _, c := range collections {
		if c == EntryPath {
			continue
		}
		add(c, EntryPath, "up")
		add(EntryPath, c, lastSegment(c))
		if pi := oapi.Paths[c]; pi.Post != nil {
			add(c, c, "create-form")
		}
		if hasSearch && c != searchPath {
			add(c, searchPath, "search")
		}
	}
	add(EntryPath, "/openapi.json", "service-desc")
	add(EntryPath, "/docs", "service-doc")

	for p, pi := range oapi.Paths {
		if ref := responseSchema(pi); ref != "" {
			add(p, "/openapi.json#/components/schemas/"+ref, "describedby")
		}
	}

	for p, pi := range oapi.Paths {
		for _, op := range operationsOf(pi) {
			if op != nil {
				documentLinks(op, m[p])
			}
		}
	}

	linkMu.Lock()
	linkMap = m
	linkMu.Unlock()
}

// Links returns the derived Link header values for an operation path.
func Links(opPath string) []string {
	linkMu.RLock()
	defer linkMu.RUnlock()
	return linkMap[opPath]
}

// LinkTransformer returns a Huma Transformer that writes the derived Link
// headers plus a self link, pagination links and state-dependent actions.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}
		for _, link := range Links(op.Path) {
			ctx.AppendHeader("Link", link)
		}
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}
		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}
		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}
		return v, nil
	}
}

// RootLinks returns the entry point links for non-Huma handlers.
func RootLinks() []string {
	return Links(EntryPath)
}

func primaryTags(pi *huma.PathItem) []string {
	for _, op := range operationsOf(pi) {
		if op != nil && len(op.Tags) > 0 {
			return op.Tags
		}
	}
	return nil
}

func operationsOf(pi *huma.PathItem) []*huma.Operation {
	return []*huma.Operation{pi.Get, pi.Post, pi.Put, pi.Patch, pi.Delete}
}

func hasAnyTag(tags, want []string) bool {
	for _, t := range tags {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

func lastSegment(p string) string {
	parts := strings.Split(strings.TrimRight(p, "/"), "/")
	return parts[len(parts)-1]
}

// documentLinks mirrors the Link headers into the OpenAPI success response.
func documentLinks(op *huma.Operation, headers []string) {
	if op.Responses == nil || len(headers) == 0 {
		return
	}
	var resp *huma.Response
	for code, r := range op.Responses {
		if strings.HasPrefix(code, "2") {
			resp = r
			break
		}
	}
	if resp == nil {
		return
	}
	if resp.Links == nil {
		resp.Links = map[string]*huma.Link{}
	}
	for _, h := range headers {
		rel, href := parseLinkHeader(h)
		if rel == "" {
			continue
		}
		resp.Links[rel] = &huma.Link{OperationRef: href, Description: "Related: " + rel}
	}
}

func responseSchema(pi *huma.PathItem) string {
	if pi.Get == nil || pi.Get.Responses == nil {
		return ""
	}
	for code, resp := range pi.Get.Responses {
		if !strings.HasPrefix(code, "2") || resp.Content == nil {
			continue
		}
		for _, mt := range resp.Content {
			if mt.Schema != nil && mt.Schema.Ref != "" {
				return lastSegment(mt.Schema.Ref)
			}
		}
	}
	return ""
}

// parseLinkHeader splits `<url>; rel="name"`.
func parseLinkHeader(h string) (rel, href string) {
	target, params, ok := strings.Cut(h, ";")
	if !ok {
		return "", ""
	}
	href = strings.Trim(strings.TrimSpace(target), "<>")
	params = strings.TrimSpace(params)
	if strings.HasPrefix(params, `rel="`) {
		rel = strings.Trim(params[len(`rel=`):], `"`)
	}
	return rel, href
}
