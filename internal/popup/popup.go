// Package popup composes the detail view shown for a clicked map feature.
package popup

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/registry"
	"github.com/joeblew999/plat-stat/internal/style"
	"github.com/joeblew999/plat-stat/internal/templates"
)

const (
	noData        = "Нет данных"
	noProducers   = "Нет производителей данной категории"
	noAddress     = "Адрес не указан"
	storageTitle  = "Овощехранилище"
	fairTitle     = "Ярмарка"
	districtTitle = "Район"
)

// Property keys read by the composition rules.
const (
	keyManufacturers = "manufacturers"
	keyStorageOwner  = "Наименование компании владельца"
	keyStorageCap    = "Мощность овощехранилища, в тоннах"
	keyAddress       = "Адрес"
	keyPopulation    = "popul"
	keyDistrictPop   = "Численность населения"
)

// Filter is an enabled toggle-dropdown filter and its selected value.
type Filter struct {
	Metric *catalog.Metric
	Value  string
}

// Request is one click to compose a popup for.
type Request struct {
	Layer   catalog.Layer
	Props   feature.Properties
	Metric  *catalog.Metric
	Filters []Filter
}

// Popup is the composed detail view. HTML is the full fragment ready to be
// placed in the map popup.
type Popup struct {
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle,omitempty"`
	Body     template.HTML `json:"body"`
	Footer   template.HTML `json:"footer,omitempty"`
	HTML     template.HTML `json:"html"`
}

type row struct {
	Label string
	Value string
}

type item struct {
	Name  string
	Value string
	Unit  string
}

type group struct {
	Name  string
	Items []item
}

type flow struct {
	Product     string
	Destination string
	Percent     string
	Class       Severity
}

type content struct {
	Rows    []row
	Groups  []group
	Flows   []flow
	Cards   []registry.Record
	Tail    []row
	Message string
	Note    string
}

func (c *content) empty() bool {
	return len(c.Rows) == 0 && len(c.Groups) == 0 && len(c.Flows) == 0 &&
		len(c.Cards) == 0 && len(c.Tail) == 0 && c.Message == ""
}

// Composer builds popups with the HTML fragments of a renderer.
type Composer struct {
	renderer *templates.Renderer
	registry *registry.Registry
}

// NewComposer creates a composer. A nil registry behaves as empty.
func NewComposer(r *templates.Renderer, reg *registry.Registry) *Composer {
	if reg == nil {
		reg = registry.Empty()
	}
	return &Composer{renderer: r, registry: reg}
}

// Compose builds the popup for the request. All feature text is escaped by
// the templates; missing properties are omitted rather than failing.
func (c *Composer) Compose(req Request) (Popup, error) {
	p := req.Props
	if p == nil {
		p = feature.Props{}
	}
	title := feature.First(p, "ADM_2_rus", "name")
	subtitle := p.String("ADM1_EN")
	var body content

	switch req.Layer.Popup {
	case catalog.PopupDistrict:
		title, subtitle = c.district(&body, p, req.Metric)
	case catalog.PopupRegion:
		c.region(&body, p, req.Metric)
	case catalog.PopupSettlement:
		title = p.String("name")
		c.settlement(&body, req.Layer, p, req.Filters)
	case catalog.PopupStorage:
		title = storageTitle
		storage(&body, p)
	case catalog.PopupFair:
		title = fairTitle
		fair(&body, p)
	case catalog.PopupNone:
	}
	filterRows(&body, req.Layer, p, req.Filters)

	if body.empty() {
		body.Message = noData
	}
	return c.render(title, subtitle, &body)
}

func (c *Composer) render(title, subtitle string, body *content) (Popup, error) {
	out := Popup{Title: title, Subtitle: subtitle}
	var err error
	if out.Body, err = c.renderer.RenderHTML("popup-body", body); err != nil {
		return Popup{}, fmt.Errorf("render popup body: %w", err)
	}
	if body.Note != "" {
		if out.Footer, err = c.renderer.RenderHTML("popup-note", body.Note); err != nil {
			return Popup{}, fmt.Errorf("render popup note: %w", err)
		}
	}
	if out.HTML, err = c.renderer.RenderHTML("popup", out); err != nil {
		return Popup{}, fmt.Errorf("render popup: %w", err)
	}
	return out, nil
}

func (c *Composer) district(body *content, p feature.Properties, m *catalog.Metric) (string, string) {
	name := feature.First(p, "ADM2_rus", "ADM_2_rus", "name", "NAME_2")
	if name == "" {
		name = districtTitle
	}
	region := feature.First(p, "ADM1_rus", "ADM1_EN")

	pop := "0"
	if v, ok := p.Float(keyDistrictPop); ok {
		pop = style.FormatNumber(v, 3)
	} else if v, ok := p.Float(keyPopulation); ok {
		pop = style.FormatNumber(v, 3)
	} else if s := feature.First(p, keyDistrictPop, keyPopulation); s != "" {
		pop = s
	}
	body.Rows = append(body.Rows,
		row{"Область:", region},
		row{"Район:", name},
		row{"Население:", pop + " чел."},
	)

	if a, ok := analysis(m); ok {
		for _, g := range a.Groups {
			var items []item
			for _, field := range g.Fields {
				v := strings.TrimSpace(p.String(field))
				if v == "" {
					continue
				}
				items = append(items, item{Name: productName(field), Value: v, Unit: unitFor(field)})
			}
			if len(items) > 0 {
				body.Groups = append(body.Groups, group{Name: g.Name, Items: items})
			}
		}
	}
	return name, region
}

func (c *Composer) region(body *content, p feature.Properties, m *catalog.Metric) {
	pop, _ := p.Float(keyPopulation)
	body.Rows = append(body.Rows, row{"Население:", style.FormatNumber(pop, 3)})

	if a, ok := analysis(m); ok {
		for _, prod := range a.Staples {
			raw := strings.TrimSpace(p.String(prod))
			if raw == "" {
				continue
			}
			mk := ParseMarkup(raw)
			body.Flows = append(body.Flows, flow{
				Product:     prod,
				Destination: mk.Destination,
				Percent:     strconv.FormatFloat(mk.Percent, 'f', -1, 64),
				Class:       mk.Severity,
			})
		}
	}

	if m == nil || m.Popup == nil {
		return
	}
	v, ok := p.Float(m.Popup.Field)
	if !ok {
		return
	}
	frac := 3
	if m.Popup.Divisor > 0 {
		v /= m.Popup.Divisor
		frac = 0
	}
	value := style.FormatNumber(v, frac)
	if m.Popup.Unit != "" {
		value += " " + m.Popup.Unit
	}
	body.Tail = append(body.Tail, row{m.Popup.Label + ":", value})
	body.Note = m.Popup.Note
}

func (c *Composer) settlement(body *content, layer catalog.Layer, p feature.Properties, filters []Filter) {
	if f, ok := manufacturerFilter(layer, filters); ok {
		records := c.manufacturers(p)
		records = registry.Filter(records, f.Value)
		if len(records) == 0 {
			body.Message = noProducers
			return
		}
		body.Cards = records
		return
	}
	if v, ok := p.Float(keyPopulation); ok {
		body.Rows = append(body.Rows, row{"Население:", style.FormatNumber(v, 3)})
	} else if s := p.String(keyPopulation); s != "" {
		body.Rows = append(body.Rows, row{"Население:", s})
	}
}

// manufacturers reads the feature's own list first and falls back to the
// registry entry for the settlement name.
func (c *Composer) manufacturers(p feature.Properties) []registry.Record {
	if v, ok := p.Lookup(keyManufacturers); ok {
		if recs, err := registry.Decode(v); err == nil && len(recs) > 0 {
			return recs
		}
	}
	return c.registry.Lookup(p.String("name"))
}

func storage(body *content, p feature.Properties) {
	if owner := p.String(keyStorageOwner); owner != "" {
		body.Rows = append(body.Rows, row{Value: owner})
	}
	if capacity := p.String(keyStorageCap); capacity != "" {
		body.Rows = append(body.Rows, row{"Мощность:", capacity + " т"})
	}
}

func fair(body *content, p feature.Properties) {
	addr := p.String(keyAddress)
	if addr == "" {
		addr = noAddress
	}
	body.Rows = append(body.Rows, row{Value: addr})
}

// filterRows adds the popup field of every enabled filter that targets the
// layer and matches the feature.
func filterRows(body *content, layer catalog.Layer, p feature.Properties, filters []Filter) {
	for _, f := range filters {
		if f.Metric == nil {
			continue
		}
		td, ok := f.Metric.Variant.(catalog.ToggleDropdown)
		if !ok || td.TargetLayer != layer.ID || td.PopupField == "" {
			continue
		}
		if f.Value != "" && !strings.Contains(p.String(td.Field), f.Value) {
			continue
		}
		if v := strings.TrimSpace(p.String(td.PopupField)); v != "" {
			body.Tail = append(body.Tail, row{f.Metric.Label + ":", v})
		}
	}
}

func manufacturerFilter(layer catalog.Layer, filters []Filter) (Filter, bool) {
	for _, f := range filters {
		if f.Metric == nil {
			continue
		}
		if td, ok := f.Metric.Variant.(catalog.ToggleDropdown); ok && td.TargetLayer == layer.ID && td.PopupField == "" {
			return f, true
		}
	}
	return Filter{}, false
}

func analysis(m *catalog.Metric) (catalog.Analysis, bool) {
	if m == nil {
		return catalog.Analysis{}, false
	}
	a, ok := m.Variant.(catalog.Analysis)
	return a, ok
}

func unitFor(field string) string {
	if strings.Contains(field, "штук") {
		return "шт"
	}
	return "т"
}

func productName(field string) string {
	name, _, _ := strings.Cut(field, "(")
	return strings.TrimSpace(name)
}
