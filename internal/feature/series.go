package feature

import (
	"regexp"
	"sort"
	"strconv"
)

// Point is one (year, value) observation.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// ExtractSeries scans props for keys of the exact form "<prefix>_YYYY" and
// returns their values sorted by year. Null or non-numeric values are skipped.
func ExtractSeries(props map[string]any, prefix string) []Point {
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(\d{4})$`)
	out := []Point{}
	for k, v := range props {
		m := re.FindStringSubmatch(k)
		if m == nil || v == nil {
			continue
		}
		f, ok := ToFloat(v)
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		out = append(out, Point{Year: year, Value: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Years returns the sorted union of years across series.
func Years(series ...[]Point) []int {
	seen := make(map[int]struct{})
	for _, s := range series {
		for _, p := range s {
			seen[p.Year] = struct{}{}
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// At returns the value recorded for year.
func At(series []Point, year int) (float64, bool) {
	for _, p := range series {
		if p.Year == year {
			return p.Value, true
		}
	}
	return 0, false
}
