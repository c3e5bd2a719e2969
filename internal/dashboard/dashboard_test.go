package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/registry"
	"github.com/joeblew999/plat-stat/internal/style"
	"github.com/joeblew999/plat-stat/internal/templates"
)

const balanceJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"ADM1_EN":"Kostanay Region","ADM_2_rus":"КОСТАНАЙСКАЯ ОБЛАСТЬ","popul":830000,"crime_2015":50,"crime_2021":80,"Материал/оборудование":"Зерно"},
 "geometry":{"type":"Polygon","coordinates":[[[60,50],[66,50],[66,54],[60,54],[60,50]]]}},
{"type":"Feature","properties":{"ADM1_EN":"Akmola Region","Материал/оборудование":"Мука"},
 "geometry":{"type":"Polygon","coordinates":[[[66,50],[72,50],[72,54],[66,54],[66,50]]]}}
]}`

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(balanceJSON))
	if err != nil {
		t.Fatal(err)
	}
	store := feature.NewStore(cat.Regions)
	balance, _ := cat.Layer("balance")
	store.Put(balance, fc)

	reg, err := registry.Parse(strings.NewReader(`[{"city":"Рудный","name":"Агро","classification":"Молочная продукция"}]`))
	if err != nil {
		t.Fatal(err)
	}
	r, err := templates.Default()
	if err != nil {
		t.Fatal(err)
	}
	d := NewDeps(cat, store, reg, r)
	d.Bus = NewEventBus()
	return d
}

func paintFor(v View, layerID string) (style.LayerPaint, bool) {
	for _, p := range v.Paint {
		if p.LayerID == layerID {
			return p, true
		}
	}
	return style.LayerPaint{}, false
}

func TestNewControllerDefaults(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	v := c.View()
	if v.State.Level != "republic" || v.State.MetricID != "" || v.State.TradeMode != catalog.Retail {
		t.Fatalf("state=%+v", v.State)
	}
	if v.Legend != nil {
		t.Fatalf("legend=%+v, want nil", v.Legend)
	}
	p, ok := paintFor(v, "balance")
	if !ok || p.Applied || p.FillColor != "#ccc" {
		t.Fatalf("balance paint=%+v", p)
	}
	want := map[string]bool{"balance": true, "kazborder": true, "districts": false, "towns": false, "towns_circle": false}
	for id, vis := range want {
		if v.Visibility[id] != vis {
			t.Fatalf("visibility[%s]=%v, want %v", id, v.Visibility[id], vis)
		}
	}
}

func TestSwitchLevel(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	if _, err := c.ActivateMetric("crime_rate"); err != nil {
		t.Fatal(err)
	}

	v, ok := c.SwitchLevel("oblast")
	if !ok {
		t.Fatal("oblast should switch")
	}
	if !v.Visibility["districts"] || v.Visibility["balance"] || !v.Visibility["oblborders"] {
		t.Fatalf("visibility=%v", v.Visibility)
	}
	if p, _ := paintFor(v, "districts"); p.Applied {
		t.Fatal("crime rate targets balance; districts must keep the base color")
	}
	if v.Legend != nil {
		t.Fatal("no rule applies at oblast level, legend should be hidden")
	}
	if v.State.MetricID != "crime_rate" {
		t.Fatal("level switch must keep the active metric")
	}

	v, ok = c.SwitchLevel("galaxy")
	if ok || v.State.Level != "oblast" {
		t.Fatalf("unknown level ok=%v level=%q", ok, v.State.Level)
	}
}

func TestActivateMetricRecolors(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	v, err := c.ActivateMetric("crime_rate")
	if err != nil {
		t.Fatal(err)
	}
	p, _ := paintFor(v, "balance")
	if !p.Applied {
		t.Fatalf("balance not colored: %+v", p)
	}
	if v.Legend == nil || v.Legend.Title != "Преступлений на 10 тыс. чел." {
		t.Fatalf("legend=%+v", v.Legend)
	}

	c.SwitchLevel("oblast")
	v, _ = c.ActivateMetric("population")
	if p, _ := paintFor(v, "districts"); !p.Applied {
		t.Fatal("population colors districts")
	}

	if _, err := c.ActivateMetric("nope"); !errors.Is(err, catalog.ErrUnknownMetric) {
		t.Fatalf("err=%v, want ErrUnknownMetric", err)
	}
	if v := c.ClearMetric(); v.Legend != nil || v.State.MetricID != "" {
		t.Fatalf("cleared view=%+v", v)
	}
}

func TestToggleMetric(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	c.ActivateMetric("crime_rate")

	v, err := c.ActivateMetric("layer_fairs")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Visibility["fairs"] || !v.Visibility["fairs_circle"] {
		t.Fatalf("fairs should be shown: %v", v.Visibility)
	}
	if v.State.MetricID != "crime_rate" {
		t.Fatal("toggle must not replace the active metric")
	}
	v, _ = c.ActivateMetric("layer_fairs")
	if v.Visibility["fairs"] {
		t.Fatal("second toggle should hide fairs")
	}

	c.ActivateMetric("layer_storages")
	v, _ = c.SwitchLevel("rayon")
	if v.Visibility["storages"] {
		t.Fatal("level switch clears toggles")
	}
}

func TestTradeMode(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	c.ActivateMetric("crime_rate")
	c.SwitchLevel("oblast")

	v, err := c.SetTradeMode(catalog.Wholesale)
	if err != nil {
		t.Fatal(err)
	}
	if v.State.MetricID != "trade_volume" || v.State.TradeMode != catalog.Wholesale {
		t.Fatalf("state=%+v", v.State)
	}
	if v.Legend == nil || v.Legend.Title != "Опт (млн ₸)" {
		t.Fatalf("legend=%+v", v.Legend)
	}
	if _, err := c.SetTradeMode("barter"); !errors.Is(err, ErrInvalidTradeMode) {
		t.Fatalf("err=%v", err)
	}
}

func TestTradeModeWithoutMetric(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	if c.State().MetricID != "" {
		t.Fatalf("new session metric=%q, want none", c.State().MetricID)
	}
	v, err := c.SetTradeMode(catalog.Retail)
	if err != nil {
		t.Fatal(err)
	}
	if v.State.MetricID != "trade_volume" {
		t.Fatalf("metric=%q, want trade_volume", v.State.MetricID)
	}
}

func TestFilters(t *testing.T) {
	d := newTestDeps(t)
	c := NewController("s1", d)

	v, err := c.SetManufacturerFilter(true, "Молочная продукция")
	if err != nil {
		t.Fatal(err)
	}
	if f := v.State.Filters["manufacturers_filter"]; !f.Enabled || f.Value != "Молочная продукция" {
		t.Fatalf("filter=%+v", f)
	}
	if _, err := c.SetFilter("crime_rate", true, ""); !errors.Is(err, ErrNotFilter) {
		t.Fatalf("err=%v, want ErrNotFilter", err)
	}

	v, _ = c.ActivateMetric("raw_materials_toggle")
	if !v.State.Filters["raw_materials_toggle"].Enabled || v.State.MetricID != "" {
		t.Fatalf("state=%+v", v.State)
	}

	mf, ok := d.ManufacturerFilter()
	if !ok || mf.ID != "manufacturers_filter" {
		t.Fatalf("manufacturer filter=%v", mf)
	}
	if got := d.Options(mf); len(got) != 1 || got[0] != "Молочная продукция" {
		t.Fatalf("options=%v", got)
	}
	raw, _ := d.Catalog.Metric("raw_materials_toggle")
	if got := d.Options(raw); len(got) != 2 || got[0] != "Зерно" {
		t.Fatalf("raw options=%v", got)
	}
}

func TestSelectCrimeScenario(t *testing.T) {
	d := newTestDeps(t)
	c := NewController("s1", d)
	v, _ := c.ActivateMetric("crime_rate")

	props, err := d.Store.Locate("balance", 63, 52)
	if err != nil {
		t.Fatal(err)
	}
	sel, err := c.Select("balance", props)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Chart == nil || strings.Join(sel.Chart.Labels, ",") != "2015,2021" {
		t.Fatalf("chart=%+v", sel.Chart)
	}
	data := sel.Chart.Datasets[0].Data
	if *data[0] != 50 || *data[1] != 80 {
		t.Fatalf("series=%v,%v", *data[0], *data[1])
	}
	if !strings.Contains(string(sel.Popup.Body), "Преступность (2021):") || !strings.Contains(string(sel.Popup.Body), "80 ед.") {
		t.Fatalf("popup=%s", sel.Popup.Body)
	}

	m, _ := d.Catalog.Metric("crime_rate")
	rule, _ := style.RuleFor(m, "balance", catalog.Retail)
	val := 80.0
	if got := style.Evaluate(rule.ColorRule, &val, false); got != "#fc9272" {
		t.Fatalf("bucket color=%q", got)
	}
	if p, _ := paintFor(v, "balance"); !p.Applied {
		t.Fatal("balance should be colored")
	}
	if c.Chart() != sel.Chart || c.LastSelection() == nil {
		t.Fatal("selection not retained")
	}
}

func TestSelectChartFailureKeepsPopup(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	sel, err := c.Select("balance", nil)
	if err != nil {
		t.Fatal(err)
	}
	if sel.ChartError == "" || sel.Chart != nil {
		t.Fatalf("chart should fail: %+v", sel)
	}
	if sel.Popup.HTML == "" {
		t.Fatal("popup must still be composed")
	}
}

func TestSelectErrors(t *testing.T) {
	c := NewController("s1", newTestDeps(t))
	if _, err := c.Select("nope", feature.Props{}); !errors.Is(err, catalog.ErrUnknownLayer) {
		t.Fatalf("err=%v", err)
	}
	if _, err := c.Select("kazborder", feature.Props{}); !errors.Is(err, ErrNotInteractive) {
		t.Fatalf("err=%v", err)
	}
}

func TestEventsPublished(t *testing.T) {
	d := newTestDeps(t)
	ch := d.Bus.Subscribe()
	defer d.Bus.Unsubscribe(ch)

	c := NewController("s1", d)
	c.SwitchLevel("rayon")
	select {
	case ev := <-ch:
		if ev.Resource != "view" || ev.Action != "level" || ev.ID != "s1" {
			t.Fatalf("event=%+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(newTestDeps(t), time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	c := s.Create()
	got, err := s.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("get=%v err=%v", got, err)
	}
	if _, err := s.Get("not-a-uuid"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err=%v", err)
	}
	if other := s.GetOrCreate(""); other == c {
		t.Fatal("empty id should create a session")
	}
	if s.Len() != 2 {
		t.Fatalf("len=%d", s.Len())
	}

	now = now.Add(30 * time.Second)
	s.Get(c.ID())
	now = now.Add(45 * time.Second)
	if n := s.Prune(); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if _, err := s.Get(c.ID()); err != nil {
		t.Fatal("recently used session was pruned")
	}
	if !s.Delete(c.ID()) || s.Len() != 0 {
		t.Fatal("delete failed")
	}
}
