package humastar

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
)

// Signals are the page's Datastar signals, posted as one flat JSON object.
type Signals map[string]any

// ParseSignals parses a Datastar request body.
func ParseSignals(body []byte) (Signals, error) {
	var signals Signals
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal, or "".
func (s Signals) String(key string) string {
	str, _ := s[key].(string)
	return str
}

// Bool returns a bool signal, or false.
func (s Signals) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Float returns a numeric signal, or nil when it is missing or not a number.
func (s Signals) Float(key string) *float64 {
	f, ok := s[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

// Object returns an object signal, or nil.
func (s Signals) Object(key string) map[string]any {
	m, _ := s[key].(map[string]any)
	return m
}

// Has reports whether key was sent, even with a zero value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// SignalsInput receives the raw Datastar request body.
type SignalsInput struct {
	RawBody []byte
}

// MustParse parses the signals or returns a Huma 400 error.
func (i *SignalsInput) MustParse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid request data: " + err.Error())
	}
	return signals, nil
}
