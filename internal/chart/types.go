// Package chart binds a clicked feature's history to a Chart.js config and
// renders the same config to PNG.
package chart

// Dataset is one Chart.js dataset. Data entries are nil for gaps.
type Dataset struct {
	Type            string     `json:"type,omitempty" enum:"line,bar"`
	Label           string     `json:"label"`
	Data            []*float64 `json:"data"`
	BorderColor     string     `json:"borderColor,omitempty"`
	BackgroundColor any        `json:"backgroundColor,omitempty" doc:"One color, or one per bar"`
	BorderWidth     float64    `json:"borderWidth,omitempty"`
	PointRadius     float64    `json:"pointRadius,omitempty"`
	Fill            bool       `json:"fill"`
	YAxisID         string     `json:"yAxisID,omitempty"`
	Order           int        `json:"order,omitempty"`
}

// AxisTitle labels an axis.
type AxisTitle struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

// Grid controls axis gridlines.
type Grid struct {
	DrawOnChartArea bool `json:"drawOnChartArea"`
}

// Axis is one Chart.js scale.
type Axis struct {
	Type     string     `json:"type,omitempty"`
	Display  bool       `json:"display"`
	Position string     `json:"position,omitempty"`
	Title    *AxisTitle `json:"title,omitempty"`
	Grid     *Grid      `json:"grid,omitempty"`
}

// Config is a complete chart state. Each Build returns a fresh Config that
// replaces the previous one entirely.
type Config struct {
	Title    string          `json:"title" doc:"Resolved region name"`
	Labels   []string        `json:"labels"`
	Datasets []Dataset       `json:"datasets"`
	Scales   map[string]Axis `json:"scales,omitempty"`
}

// Empty reports whether the config has nothing to draw.
func (c *Config) Empty() bool {
	return c == nil || len(c.Datasets) == 0 || len(c.Labels) == 0
}
