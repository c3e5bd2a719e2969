package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/joeblew999/plat-stat/internal/feature"
)

// Period is one dated value of an export record.
type Period struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Value any    `json:"value"`
}

// Record is one row of an open-data export. The first term name is the
// region.
type Record struct {
	TermNames []string `json:"termNames"`
	Periods   []Period `json:"periods"`
}

// Observation is one indicator value for one region and year.
type Observation struct {
	Source string
	Region string
	Key    string
	Year   int
	Value  float64
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// Year extracts the year of a period: the last dotted segment of the date
// ("31.12.2023"), otherwise the first four digits of the name.
func Year(p Period) (int, bool) {
	if strings.Contains(p.Date, ".") {
		parts := strings.Split(p.Date, ".")
		if y, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil && y >= 1000 && y <= 9999 {
			return y, true
		}
	}
	if m := yearPattern.FindString(p.Name); m != "" {
		y, _ := strconv.Atoi(m)
		return y, true
	}
	return 0, false
}

// Normalize is the region matching key: trimmed and upper-cased.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Parse reads an export and applies rule. Records without term names, or
// not matching a subtype when the rule has subtypes, are skipped, as are
// periods without a year or a numeric value.
func Parse(r io.Reader, rule Rule) ([]Observation, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", rule.File, err)
	}
	var out []Observation
	for _, rec := range records {
		if len(rec.TermNames) == 0 {
			continue
		}
		if !rule.keepTerms(rec.TermNames) {
			continue
		}
		suffix, ok := rule.suffix(rec.TermNames)
		if !ok {
			continue
		}
		region := Normalize(rec.TermNames[0])
		for _, p := range rec.Periods {
			if !rule.keepPeriod(p.Name) {
				continue
			}
			year, ok := Year(p)
			if !ok {
				continue
			}
			v, ok := feature.ToFloat(p.Value)
			if !ok {
				continue
			}
			out = append(out, Observation{
				Source: rule.File,
				Region: region,
				Key:    fmt.Sprintf("%s%s_%d", rule.Prefix, suffix, year),
				Year:   year,
				Value:  v,
			})
		}
	}
	return out, nil
}

func (r Rule) keepTerms(terms []string) bool {
	for _, f := range r.TermFilters {
		if f.Index < 0 || f.Index >= len(terms) || !strings.Contains(terms[f.Index], f.Contains) {
			return false
		}
	}
	return true
}

// suffix finds the first subtype keyword in the term names, scanning terms
// in order and keywords in rule order.
func (r Rule) suffix(terms []string) (string, bool) {
	if len(r.Subtypes) == 0 {
		return "", true
	}
	for i, term := range terms {
		lt := strings.ToLower(term)
		for _, st := range r.Subtypes {
			if st.Term != nil && *st.Term != i {
				continue
			}
			if strings.Contains(lt, strings.ToLower(st.Keyword)) {
				return st.Suffix, true
			}
		}
	}
	return "", false
}

func (r Rule) keepPeriod(name string) bool {
	if len(r.FilterKeywords) == 0 {
		return true
	}
	for _, w := range r.FilterKeywords {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

// Collect groups observations by region. A later observation of the same
// key wins.
func Collect(obs []Observation) map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, o := range obs {
		m, ok := out[o.Region]
		if !ok {
			m = make(map[string]float64)
			out[o.Region] = m
		}
		m[o.Key] = o.Value
	}
	return out
}
