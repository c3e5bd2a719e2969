package style

import (
	"reflect"
	"strings"
	"testing"
	"unicode"

	"github.com/joeblew999/plat-stat/internal/catalog"
)

func ptr(v float64) *float64 { return &v }

var abc = catalog.ColorRule{Field: "f", Stops: []float64{0, 10, 20}, Colors: []string{"A", "B", "C"}}

func TestEvaluateBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		value *float64
		want  string
	}{
		{"exact stop", ptr(10), "B"},
		{"just below", ptr(9.999), "A"},
		{"above last", ptr(25), "C"},
		{"null", nil, "A"},
		{"negative", ptr(-5), "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(abc, tt.value, false); got != tt.want {
				t.Fatalf("Evaluate=%q, want %q", got, tt.want)
			}
		})
	}
	if got := Evaluate(abc, ptr(240), true); got != "C" {
		t.Fatalf("monthly 240/12=20 -> %q, want C", got)
	}
}

func TestStepExpression(t *testing.T) {
	got := StepExpression(abc, false)
	want := []any{"step", []any{"coalesce", []any{"get", "f"}, 0}, "A", 10.0, "B", 20.0, "C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v\nwant %#v", got, want)
	}
	monthly := StepExpression(abc, true)
	in := monthly[1].([]any)
	if in[0] != "/" || in[2] != 12 {
		t.Fatalf("monthly input=%#v", in)
	}
}

func TestValueExpr(t *testing.T) {
	tests := []struct {
		monthly bool
		want    []any
	}{
		{false, []any{"coalesce", []any{"get", "f"}, 0}},
		{true, []any{"/", []any{"coalesce", []any{"get", "f"}, 0}, 12}},
	}
	for _, tt := range tests {
		if got := valueExpr("f", tt.monthly); !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("monthly=%v got %#v, want %#v", tt.monthly, got, tt.want)
		}
	}
	// The engine input type shares the package namespace.
	in := Input{TradeMode: catalog.Retail}
	if in.Metric != nil {
		t.Fatalf("zero input has metric %+v", in.Metric)
	}
}

func TestBuildLegend(t *testing.T) {
	rule := catalog.ColorRule{Field: "f", Stops: []float64{0, 1000, 2000000}, Colors: []string{"a", "b", "c"}}
	lg := BuildLegend(rule, "T")
	var labels []string
	for _, it := range lg.Items {
		labels = append(labels, it.Label)
	}
	want := []string{"< 1k", "1k - 2.0M", "> 2.0M"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels=%v, want %v", labels, want)
	}
	if lg.Title != "T" || lg.Items[1].Color != "b" {
		t.Fatalf("legend=%+v", lg)
	}

	single := BuildLegend(catalog.ColorRule{Field: "f", Stops: []float64{5}, Colors: []string{"x"}}, "")
	if single.Items[0].Label != "> 5" {
		t.Fatalf("single-stop label=%q", single.Items[0].Label)
	}
}

func TestFormatStop(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		27:        "27",
		1400:      "1k",
		2500:      "3k",
		15000:     "15k",
		1_500_000: "1.5M",
		3_020_000: "3.0M",
		10508:     "11k",
	}
	for v, want := range tests {
		if got := FormatStop(v); got != want {
			t.Fatalf("FormatStop(%v)=%q, want %q", v, got, want)
		}
	}
}

func TestFormatNumberGroups(t *testing.T) {
	got := FormatNumber(870000, 0)
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, got)
	if digits != "870000" || got == "870000" {
		t.Fatalf("FormatNumber=%q, want grouped 870000", got)
	}
}

func TestVisibilityAllLevels(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	for _, lvl := range cat.Levels {
		vis := Visibility(cat.Layers, lvl, nil)
		for _, l := range cat.Layers {
			want := contains(lvl.Layers, l.ID) || contains(lvl.Borders, l.ID)
			if vis[l.ID] != want {
				t.Fatalf("level %s layer %s visible=%v, want %v", lvl.Key, l.ID, vis[l.ID], want)
			}
			if m := l.MarkerID(); m != "" && vis[m] != want {
				t.Fatalf("level %s marker %s visible=%v, want %v", lvl.Key, m, vis[m], want)
			}
		}
	}
}

func TestVisibilityToggles(t *testing.T) {
	cat, _ := catalog.Default()
	lvl, _ := cat.Level("republic")
	vis := Visibility(cat.Layers, lvl, map[string]bool{"fairs": true, "balance": false})
	if !vis["fairs"] || !vis["fairs_circle"] {
		t.Fatal("toggled fairs should be visible with its marker")
	}
	if vis["balance"] {
		t.Fatal("toggle should hide balance")
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func TestReapply(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(cat)
	republic, _ := cat.Level("republic")
	oblast, _ := cat.Level("oblast")

	res := e.Reapply(Input{Level: republic})
	if res.Legend != nil {
		t.Fatal("no metric should hide the legend")
	}
	if len(res.Paint) != 1 || res.Paint[0].FillColor != "#ccc" {
		t.Fatalf("base paint=%+v", res.Paint)
	}

	crime, _ := cat.Metric("crime_rate")
	res = e.Reapply(Input{Level: republic, Metric: crime})
	if !res.Paint[0].Applied || res.Legend == nil || res.Legend.Title != "Преступлений на 10 тыс. чел." {
		t.Fatalf("crime paint=%+v legend=%+v", res.Paint, res.Legend)
	}
	again := e.Reapply(Input{Level: republic, Metric: crime})
	if !reflect.DeepEqual(res, again) {
		t.Fatal("Reapply is not idempotent")
	}

	res = e.Reapply(Input{Level: oblast, Metric: crime})
	if res.Paint[0].Applied || res.Paint[0].FillColor != "#999" || res.Legend != nil {
		t.Fatalf("crime at oblast should fall back to base: %+v", res)
	}

	pop, _ := cat.Metric("population")
	res = e.Reapply(Input{Level: oblast, Metric: pop})
	expr := res.Paint[0].FillColor.([]any)
	if expr[1].([]any)[1].([]any)[1] != "Численность населения" {
		t.Fatalf("population at oblast uses wrong field: %#v", expr)
	}
	if res.Legend.Title != "Численность (чел.)" {
		t.Fatalf("legend title=%q", res.Legend.Title)
	}

	trade, _ := cat.Metric("trade_volume")
	res = e.Reapply(Input{Level: oblast, Metric: trade, TradeMode: catalog.Wholesale})
	if res.Legend.Title != "Опт (млн ₸)" {
		t.Fatalf("wholesale legend=%q", res.Legend.Title)
	}

	exp, _ := cat.Metric("expenses_total")
	res = e.Reapply(Input{Level: republic, Metric: exp})
	in := res.Paint[0].FillColor.([]any)[1].([]any)
	if in[0] != "/" {
		t.Fatalf("expenses should divide by 12: %#v", in)
	}

	fb, _ := cat.Metric("food_balance")
	res = e.Reapply(Input{Level: oblast, Metric: fb})
	if res.Paint[0].Applied || res.Legend != nil {
		t.Fatal("analysis metric must not recolor")
	}

	settlement, _ := cat.Level("settlement")
	res = e.Reapply(Input{Level: settlement, Metric: pop})
	if len(res.Paint) != 0 {
		t.Fatalf("point layers are not painted: %+v", res.Paint)
	}
}

func TestBuildDocument(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	doc := BuildDocument(cat, "/data/")
	if doc.Version != 8 {
		t.Fatalf("version=%d", doc.Version)
	}
	if got := doc.Sources["balance"].Data; got != "/data/balance.geojson" {
		t.Fatalf("balance data=%v", got)
	}

	index := map[string]int{}
	for i, l := range doc.Layers {
		index[l.ID] = i
	}
	for _, id := range []string{"basemap", "balance", HighlightLayer, "kazborder", "towns", "towns_circle"} {
		if _, ok := index[id]; !ok {
			t.Fatalf("layer %q missing", id)
		}
	}
	if index["okruga"] > index[HighlightLayer] || index["kazborder"] < index[HighlightLayer] {
		t.Fatal("fill layers must sit below the highlight, lines above")
	}

	balance := doc.Layers[index["balance"]]
	if balance.Layout["visibility"] != "visible" {
		t.Fatalf("balance visibility=%v, want visible at the republic level", balance.Layout["visibility"])
	}
	if balance.Paint["fill-opacity"] != 0.6 {
		t.Fatalf("fill-opacity=%v", balance.Paint["fill-opacity"])
	}
	if doc.Layers[index["okruga"]].Paint["fill-opacity"] != 0.4 {
		t.Fatal("configured opacity not used")
	}
	if doc.Layers[index["towns"]].Layout["visibility"] != "none" {
		t.Fatal("towns should be hidden at the republic level")
	}
}
