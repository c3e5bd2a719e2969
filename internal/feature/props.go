// Package feature provides typed access to GeoJSON feature properties and
// an in-memory store of the dashboard's layers.
package feature

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Properties is read-only access to a feature's property bag. Keys are
// consumed dynamically; a missing key is never an error.
type Properties interface {
	Lookup(key string) (any, bool)
	Float(key string) (float64, bool)
	String(key string) string
	Series(prefix string) []Point
}

// Props is the map-backed Properties implementation.
type Props map[string]any

// Lookup returns the raw value at key. A JSON null counts as absent.
func (p Props) Lookup(key string) (any, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Float returns the numeric value at key. Numeric strings are parsed.
func (p Props) Float(key string) (float64, bool) {
	v, ok := p.Lookup(key)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// String returns the value at key formatted as text, or "".
func (p Props) String(key string) string {
	v, ok := p.Lookup(key)
	if !ok {
		return ""
	}
	return ToString(v)
}

// Series extracts the "<prefix>_<year>" time series.
func (p Props) Series(prefix string) []Point {
	return ExtractSeries(p, prefix)
}

// First returns the first non-empty string among keys.
func First(p Properties, keys ...string) string {
	for _, k := range keys {
		if s := p.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Truthy reports whether the value at key is present and not a zero value.
func Truthy(p Properties, key string) bool {
	v, ok := p.Lookup(key)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return true
}

// ToFloat converts a decoded JSON value to a float.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ToString converts a decoded JSON value to display text.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
