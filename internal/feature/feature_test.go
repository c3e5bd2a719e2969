package feature

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/joeblew999/plat-stat/internal/catalog"
)

func TestExtractSeries(t *testing.T) {
	props := Props{
		"crime_2019":  "120",
		"crime_2017":  100.0,
		"crime_2018":  nil,
		"crime_20200": 1.0,
		"crime_total": 5.0,
		"xcrime_2016": 7.0,
		"crime_2021":  "n/a",
		"crime_2015":  0.0,
	}
	got := ExtractSeries(props, "crime")
	want := []Point{{2015, 0}, {2017, 100}, {2019, 120}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtractSeriesEmpty(t *testing.T) {
	got := ExtractSeries(Props{"a": 1.0}, "vrp")
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v, want empty non-nil slice", got)
	}
}

func TestExtractSeriesQuotesPrefix(t *testing.T) {
	got := ExtractSeries(Props{"a.b_2020": 1.0, "axb_2020": 2.0}, "a.b")
	if len(got) != 1 || got[0].Value != 1 {
		t.Fatalf("got %v", got)
	}
}

func TestYearsAndAt(t *testing.T) {
	a := []Point{{2019, 1}, {2021, 3}}
	b := []Point{{2020, 2}, {2021, 4}}
	years := Years(a, b)
	if len(years) != 3 || years[0] != 2019 || years[2] != 2021 {
		t.Fatalf("years=%v", years)
	}
	if _, ok := At(a, 2020); ok {
		t.Fatal("2020 should be missing from a")
	}
	if v, _ := At(b, 2021); v != 4 {
		t.Fatalf("At(b, 2021)=%v", v)
	}
}

func TestProps(t *testing.T) {
	p := Props{"n": 12.5, "s": " 7 ", "bad": "x", "null": nil, "b": true}
	if v, ok := p.Float("n"); !ok || v != 12.5 {
		t.Fatalf("Float(n)=%v,%v", v, ok)
	}
	if v, ok := p.Float("s"); !ok || v != 7 {
		t.Fatalf("Float(s)=%v,%v", v, ok)
	}
	if _, ok := p.Float("bad"); ok {
		t.Fatal("Float(bad) should fail")
	}
	if _, ok := p.Lookup("null"); ok {
		t.Fatal("null should count as absent")
	}
	if p.String("n") != "12.5" {
		t.Fatalf("String(n)=%q", p.String("n"))
	}
	if First(p, "missing", "null", "s") != " 7 " {
		t.Fatalf("First picked %q", First(p, "missing", "null", "s"))
	}
	if !Truthy(p, "b") || Truthy(p, "null") || Truthy(Props{"z": 0.0}, "z") {
		t.Fatal("Truthy mismatch")
	}
}

type mapOpener map[string]string

func (m mapOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	s, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

const regionsJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"ADM1_EN":"Kostanay Region","ADM_2_rus":"КОСТАНАЙСКАЯ ОБЛАСТЬ","popul_total_2020":870000},
 "geometry":{"type":"Polygon","coordinates":[[[60,50],[66,50],[66,54],[60,54],[60,50]]]}},
{"type":"Feature","properties":{"ADM1_EN":"Akmola Region","ADM_2_rus":"АКМОЛИНСКАЯ ОБЛАСТЬ"},
 "geometry":{"type":"MultiPolygon","coordinates":[[[[66,50],[72,50],[72,54],[66,54],[66,50]]]]}}
]}`

const townsJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"Костанай"},"geometry":{"type":"Point","coordinates":[63.6,53.2]}},
{"type":"Feature","properties":{"name":"Рудный"},"geometry":{"type":"Point","coordinates":[63.1,52.96]}}
]}`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(catalog.RegionSettings{Layer: "balance", Key: "ADM1_EN", Children: []string{"districts"}})
	layers := []catalog.Layer{
		{ID: "balance", File: "balance.geojson", Type: catalog.LayerFill, IDField: "ADM_2_rus"},
		{ID: "towns", File: "towns.geojson", Type: catalog.LayerPointIcon},
		{ID: "fairs", File: "fairs.geojson", Type: catalog.LayerPointIcon},
		{ID: "broken", File: "broken.geojson", Type: catalog.LayerFill},
	}
	src := mapOpener{
		"balance.geojson": regionsJSON,
		"towns.geojson":   townsJSON,
		"broken.geojson":  "{not json",
	}
	if err := s.Load(context.Background(), src, layers); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStoreLoadDegrades(t *testing.T) {
	s := newTestStore(t)
	st := s.Status()
	if st["balance"] != 2 || st["towns"] != 2 {
		t.Fatalf("status=%v", st)
	}
	if st["fairs"] != -1 || st["broken"] != -1 {
		t.Fatalf("failed layers should report -1: %v", st)
	}
}

func TestStoreLocate(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Locate("balance", 63, 52)
	if err != nil {
		t.Fatal(err)
	}
	if p.String("ADM1_EN") != "Kostanay Region" {
		t.Fatalf("located %q", p.String("ADM1_EN"))
	}
	p, err = s.Locate("balance", 70, 52)
	if err != nil || p.String("ADM1_EN") != "Akmola Region" {
		t.Fatalf("multipolygon locate: %v %v", p, err)
	}
	if _, err := s.Locate("balance", 10, 10); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}

	p, err = s.Locate("towns", 63.11, 52.95)
	if err != nil || p.String("name") != "Рудный" {
		t.Fatalf("nearest town: %v %v", p, err)
	}
	if _, err := s.Locate("towns", 70, 40); !errors.Is(err, ErrNotFound) {
		t.Fatalf("far click err=%v", err)
	}
	if _, err := s.Locate("nope", 0, 0); !errors.Is(err, catalog.ErrUnknownLayer) {
		t.Fatalf("err=%v, want ErrUnknownLayer", err)
	}
}

func TestStoreFeatureAndRegionCache(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Feature("balance", "АКМОЛИНСКАЯ ОБЛАСТЬ")
	if err != nil || p.String("ADM1_EN") != "Akmola Region" {
		t.Fatalf("by id field: %v %v", p, err)
	}
	p, err = s.Feature("towns", "1")
	if err != nil || p.String("name") != "Рудный" {
		t.Fatalf("by index: %v %v", p, err)
	}
	if _, err := s.Feature("towns", "9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	bag, ok := s.RegionCache("Kostanay Region")
	if !ok {
		t.Fatal("region cache miss")
	}
	if v, _ := bag.Float("popul_total_2020"); v != 870000 {
		t.Fatalf("cached value=%v", v)
	}
}

func TestStoreDistinct(t *testing.T) {
	s := newTestStore(t)
	got := s.Distinct("towns", "name")
	if len(got) != 2 || got[0] != "Костанай" || got[1] != "Рудный" {
		t.Fatalf("distinct=%v", got)
	}
	if got := s.Distinct("nope", "name"); got != nil {
		t.Fatalf("unknown layer distinct=%v", got)
	}
}
