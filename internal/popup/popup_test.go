package popup

import (
	"strings"
	"testing"

	"github.com/joeblew999/plat-stat/internal/catalog"
	"github.com/joeblew999/plat-stat/internal/feature"
	"github.com/joeblew999/plat-stat/internal/registry"
	"github.com/joeblew999/plat-stat/internal/templates"
)

func testComposer(t *testing.T, reg *registry.Registry) (*Composer, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	r, err := templates.Default()
	if err != nil {
		t.Fatal(err)
	}
	return NewComposer(r, reg), cat
}

func layer(t *testing.T, cat *catalog.Catalog, id string) catalog.Layer {
	t.Helper()
	l, ok := cat.Layer(id)
	if !ok {
		t.Fatalf("layer %q missing", id)
	}
	return l
}

func metric(t *testing.T, cat *catalog.Catalog, id string) *catalog.Metric {
	t.Helper()
	m, ok := cat.Metric(id)
	if !ok {
		t.Fatalf("metric %q missing", id)
	}
	return m
}

func TestParseMarkup(t *testing.T) {
	tests := []struct {
		raw      string
		dest     string
		pct      float64
		severity Severity
	}{
		{"г. Алматы (53.33)", "г. Алматы", 53.33, SeverityHigh},
		{"Костанай (30)", "Костанай", 30, SeverityMedium},
		{"Костанай (15,5)", "Костанай", 15.5, SeverityMedium},
		{"Костанай (14.99)", "Костанай", 14.99, SeverityLow},
		{"Костанай(0)", "Костанай", 0, SeverityLow},
		{"нет данных", "нет данных", 0, SeverityNone},
		{"Регион (abc)", "Регион (abc)", 0, SeverityNone},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseMarkup(tt.raw)
			if got.Destination != tt.dest || got.Percent != tt.pct || got.Severity != tt.severity {
				t.Fatalf("ParseMarkup(%q)=%+v, want %q %v %q", tt.raw, got, tt.dest, tt.pct, tt.severity)
			}
		})
	}
}

func TestRegionPopupWithMetricRow(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{
		Layer:  layer(t, cat, "balance"),
		Props:  feature.Props{"ADM_2_rus": "Костанайская", "ADM1_EN": "Kostanay Region", "popul": 830000.0, "crime_2015": 50.0, "crime_2021": 80.0},
		Metric: metric(t, cat, "crime_rate"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Костанайская" || p.Subtitle != "Kostanay Region" {
		t.Fatalf("title=%q subtitle=%q", p.Title, p.Subtitle)
	}
	body := string(p.Body)
	if !strings.Contains(body, "Преступность (2021):") || !strings.Contains(body, "<b>80 ед.</b>") {
		t.Fatalf("crime row missing: %s", body)
	}
	if !strings.Contains(body, "Население:") {
		t.Fatalf("population row missing: %s", body)
	}
	if !strings.Contains(string(p.HTML), "popup-title-main") {
		t.Fatalf("html=%s", p.HTML)
	}
}

func TestRegionPopupMonthlyDivisorAndNote(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{
		Layer:  layer(t, cat, "balance"),
		Props:  feature.Props{"expenses_total_2024": 1200.0},
		Metric: metric(t, cat, "expenses_total"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(p.Body), "<b>100 ₸</b>") {
		t.Fatalf("monthly row: %s", p.Body)
	}
	if !strings.Contains(string(p.Footer), "(см. динамику ниже)") {
		t.Fatalf("footer=%q", p.Footer)
	}
}

func TestRegionPopupSkipsAbsentMetricField(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{
		Layer:  layer(t, cat, "balance"),
		Props:  feature.Props{"popul": 10.0},
		Metric: metric(t, cat, "vrp_capita"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(p.Body), "ВРП") {
		t.Fatalf("absent metric field should not add a row: %s", p.Body)
	}
}

func TestRegionFoodFlows(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{
		Layer: layer(t, cat, "balance"),
		Props: feature.Props{
			"Картофель":    "г. Алматы (53.33)",
			"Морковь":      "Костанай (10)",
			"Сахар-песок":  "без пометки",
			"Лук репчатый": "  ",
		},
		Metric: metric(t, cat, "food_balance"),
	})
	if err != nil {
		t.Fatal(err)
	}
	body := string(p.Body)
	for _, want := range []string{"→ г. Алматы", "markup-red", "Наценка: 53.33%", "markup-green", "→ без пометки", "Наценка: 0%"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %s", want, body)
		}
	}
	if strings.Contains(body, "Лук репчатый") {
		t.Fatalf("blank staple should be skipped: %s", body)
	}
	if got := strings.Count(body, "bal-card"); got != 3 {
		t.Fatalf("cards=%d, want 3", got)
	}
}

func TestDistrictPopup(t *testing.T) {
	c, cat := testComposer(t, nil)
	props := feature.Props{
		"ADM2_rus": "Аулиекольский",
		"ADM1_EN":  "Kostanay Region",
		"Численность населения":  45000.0,
		"Картофель":              120.0,
		"Яйца куриные, штук/год": "3000",
		"Хлеб пшеничный (хлеб и сдобные булочки из муки пшеничной высшего сорта и 1 сорта)": 7.5,
	}
	base, err := c.Compose(Request{Layer: layer(t, cat, "districts"), Props: props})
	if err != nil {
		t.Fatal(err)
	}
	if base.Title != "Аулиекольский" || base.Subtitle != "Kostanay Region" {
		t.Fatalf("title=%q subtitle=%q", base.Title, base.Subtitle)
	}
	if strings.Contains(string(base.Body), "product-group-title") {
		t.Fatal("groups shown without the analysis metric")
	}
	if !strings.Contains(string(base.Body), "чел.") {
		t.Fatalf("population row: %s", base.Body)
	}

	food, err := c.Compose(Request{Layer: layer(t, cat, "districts"), Props: props, Metric: metric(t, cat, "food_balance")})
	if err != nil {
		t.Fatal(err)
	}
	body := string(food.Body)
	for _, want := range []string{"Зерновые и мука", "Овощи и бахчевые", "Молочные продукты и яйца", ">Хлеб пшеничный<", "3000 шт", "120 т"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in %s", want, body)
		}
	}
	if strings.Contains(body, "Мясо и рыба") || strings.Contains(body, "Прочее") {
		t.Fatalf("empty groups must be omitted: %s", body)
	}
}

func TestDistrictDefaults(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{Layer: layer(t, cat, "districts"), Props: feature.Props{}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Район" {
		t.Fatalf("title=%q", p.Title)
	}
	if !strings.Contains(string(p.Body), "<b>0 чел.</b>") {
		t.Fatalf("body=%s", p.Body)
	}
}

func TestEscapesFeatureText(t *testing.T) {
	c, cat := testComposer(t, nil)
	p, err := c.Compose(Request{
		Layer: layer(t, cat, "districts"),
		Props: feature.Props{"ADM2_rus": "<script>alert(1)</script>"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(p.HTML), "<script>") {
		t.Fatalf("unescaped markup: %s", p.HTML)
	}
	if !strings.Contains(string(p.HTML), "&lt;script&gt;alert(1)&lt;/script&gt;") {
		t.Fatalf("escaped form missing: %s", p.HTML)
	}
}

const registryJSON = `[
 {"city": "Рудный", "name": "Рудный Хлеб", "classification": "Хлебобулочные", "capacity": "500 т", "contact": "+7 714"},
 {"city": "Рудный", "name": "Молоко Ру", "classification": "Молочная продукция"}
]`

func TestSettlementManufacturers(t *testing.T) {
	reg, err := registry.Parse(strings.NewReader(registryJSON))
	if err != nil {
		t.Fatal(err)
	}
	c, cat := testComposer(t, reg)
	towns := layer(t, cat, "towns")
	filter := metric(t, cat, "manufacturers_filter")

	tests := []struct {
		name    string
		props   feature.Props
		filters []Filter
		want    []string
		reject  []string
	}{
		{
			name:   "no filter shows population",
			props:  feature.Props{"name": "Рудный", "popul": 130000.0},
			want:   []string{"Население:"},
			reject: []string{"mfr-card"},
		},
		{
			name:    "registry fallback",
			props:   feature.Props{"name": "Рудный"},
			filters: []Filter{{Metric: filter}},
			want:    []string{"Рудный Хлеб", "Молоко Ру", "Мощность: 500 т"},
		},
		{
			name:    "classification filter",
			props:   feature.Props{"name": "Рудный"},
			filters: []Filter{{Metric: filter, Value: "Молочная продукция"}},
			want:    []string{"Молоко Ру"},
			reject:  []string{"Рудный Хлеб"},
		},
		{
			name:    "feature list wins",
			props:   feature.Props{"name": "Рудный", "manufacturers": `[{"name":"Своё","classification":"Мясная продукция"}]`},
			filters: []Filter{{Metric: filter}},
			want:    []string{"Своё"},
			reject:  []string{"Молоко Ру"},
		},
		{
			name:    "decoded array",
			props:   feature.Props{"name": "X", "manufacturers": []any{map[string]any{"name": "<b>bold</b>"}}},
			filters: []Filter{{Metric: filter}},
			want:    []string{"&lt;b&gt;bold&lt;/b&gt;"},
		},
		{
			name:    "nothing after filtering",
			props:   feature.Props{"name": "Рудный"},
			filters: []Filter{{Metric: filter, Value: "Рыба"}},
			want:    []string{noProducers},
			reject:  []string{"mfr-card"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Compose(Request{Layer: towns, Props: tt.props, Filters: tt.filters})
			if err != nil {
				t.Fatal(err)
			}
			body := string(p.Body)
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Fatalf("missing %q in %s", w, body)
				}
			}
			for _, r := range tt.reject {
				if strings.Contains(body, r) {
					t.Fatalf("unexpected %q in %s", r, body)
				}
			}
		})
	}
}

func TestRawMaterialsFilterRow(t *testing.T) {
	c, cat := testComposer(t, nil)
	raw := metric(t, cat, "raw_materials_toggle")
	props := feature.Props{"popul": 1.0, "Материал/оборудование": "Зерно; Мука", "combined_info": "Элеватор, 2 шт"}

	p, _ := c.Compose(Request{Layer: layer(t, cat, "balance"), Props: props, Filters: []Filter{{Metric: raw, Value: "Мука"}}})
	if !strings.Contains(string(p.Body), "Элеватор, 2 шт") {
		t.Fatalf("matching filter should add the info row: %s", p.Body)
	}
	p, _ = c.Compose(Request{Layer: layer(t, cat, "balance"), Props: props, Filters: []Filter{{Metric: raw, Value: "Сталь"}}})
	if strings.Contains(string(p.Body), "Элеватор") {
		t.Fatalf("non-matching filter added a row: %s", p.Body)
	}
}

func TestFixedPopups(t *testing.T) {
	c, cat := testComposer(t, nil)
	tests := []struct {
		layer string
		props feature.Props
		title string
		want  string
	}{
		{"storages", feature.Props{"Наименование компании владельца": "ТОО Агро", "Мощность овощехранилища, в тоннах": 1500.0}, "Овощехранилище", "1500 т"},
		{"fairs", feature.Props{"Адрес": "ул. Абая 1"}, "Ярмарка", "ул. Абая 1"},
		{"fairs", feature.Props{}, "Ярмарка", "Адрес не указан"},
		{"okruga", feature.Props{"name": "Округ"}, "Округ", "Нет данных"},
	}
	for _, tt := range tests {
		t.Run(tt.layer+"/"+tt.want, func(t *testing.T) {
			p, err := c.Compose(Request{Layer: layer(t, cat, tt.layer), Props: tt.props})
			if err != nil {
				t.Fatal(err)
			}
			if p.Title != tt.title {
				t.Fatalf("title=%q, want %q", p.Title, tt.title)
			}
			if !strings.Contains(string(p.Body), tt.want) {
				t.Fatalf("body=%s, want %q", p.Body, tt.want)
			}
		})
	}
}
