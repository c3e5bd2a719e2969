package popup

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity is the CSS class of a markup percentage band.
type Severity string

const (
	SeverityNone   Severity = ""
	SeverityLow    Severity = "markup-green"
	SeverityMedium Severity = "markup-yellow"
	SeverityHigh   Severity = "markup-red"
)

var markupPattern = regexp.MustCompile(`^(.*?)\s*\((\d+(?:[.,]\d+)?)\)$`)

// Classify bands a markup percentage: above 30 is high, from 15 medium.
func Classify(pct float64) Severity {
	switch {
	case pct > 30:
		return SeverityHigh
	case pct >= 15:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Markup is a parsed "<destination> (<percent>)" flow value.
type Markup struct {
	Destination string
	Percent     float64
	Severity    Severity
}

// ParseMarkup splits a composite flow value. A value that does not match the
// pattern is returned whole as the destination with zero percent and no
// severity.
func ParseMarkup(raw string) Markup {
	raw = strings.TrimSpace(raw)
	m := markupPattern.FindStringSubmatch(raw)
	if m == nil {
		return Markup{Destination: raw}
	}
	pct, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil {
		return Markup{Destination: raw}
	}
	return Markup{
		Destination: strings.TrimSpace(m[1]),
		Percent:     pct,
		Severity:    Classify(pct),
	}
}
