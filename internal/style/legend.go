package style

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/joeblew999/plat-stat/internal/catalog"
)

var ru = message.NewPrinter(language.Russian)

// LegendItem is one swatch row.
type LegendItem struct {
	Color string `json:"color" doc:"Bucket color"`
	Label string `json:"label" doc:"Bucket range label" example:"1k - 2.0M"`
}

// Legend describes the color buckets of the applied rule.
type Legend struct {
	Title string       `json:"title"`
	Items []LegendItem `json:"items"`
}

// BuildLegend renders one row per color bucket. The first bucket is
// labeled "< stop[1]", the last "> stop[n-1]" and the rest "a - b".
func BuildLegend(rule catalog.ColorRule, title string) *Legend {
	lg := &Legend{Title: title, Items: make([]LegendItem, 0, len(rule.Colors))}
	n := len(rule.Stops)
	for i, color := range rule.Colors {
		var label string
		switch {
		case i == 0 && n > 1:
			label = "< " + FormatStop(rule.Stops[1])
		case i+1 >= n:
			label = "> " + FormatStop(rule.Stops[i])
		default:
			label = FormatStop(rule.Stops[i]) + " - " + FormatStop(rule.Stops[i+1])
		}
		lg.Items = append(lg.Items, LegendItem{Color: color, Label: label})
	}
	return lg
}

// FormatStop abbreviates a threshold: X.YM from a million, Xk from a
// thousand, otherwise a ru-RU formatted number.
func FormatStop(v float64) string {
	switch {
	case v >= 1e6:
		return strconv.FormatFloat(round(v/1e6, 1), 'f', 1, 64) + "M"
	case v >= 1e3:
		return strconv.FormatFloat(math.Round(v/1e3), 'f', 0, 64) + "k"
	}
	return FormatNumber(v, 3)
}

// FormatNumber formats v with Russian digit grouping and at most frac
// fraction digits.
func FormatNumber(v float64, frac int) string {
	return ru.Sprint(number.Decimal(v, number.MaxFractionDigits(frac)))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
