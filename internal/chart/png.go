package chart

import (
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmpty is returned when a config has nothing to draw.
var ErrEmpty = errors.New("chart: nothing to render")

// Default PNG size.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// RenderPNG draws cfg as a PNG. Single-label configs render as a bar chart;
// everything else as line series keyed by year, with "y1" datasets on the
// secondary axis. Null points are skipped.
func RenderPNG(cfg *Config, w io.Writer, width, height int) error {
	if cfg.Empty() {
		return ErrEmpty
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if len(cfg.Labels) == 1 {
		return renderBars(cfg, w, width, height)
	}

	xs := make([]float64, len(cfg.Labels))
	for i, l := range cfg.Labels {
		if y, err := strconv.Atoi(l); err == nil {
			xs[i] = float64(y)
		} else {
			xs[i] = float64(i)
		}
	}

	var (
		series         []gochart.Series
		primary, secon bounds
	)
	for i, ds := range cfg.Datasets {
		sx, sy := points(xs, ds.Data)
		if len(sx) == 0 {
			continue
		}
		if len(sx) == 1 {
			sx = append(sx, sx[0]+1)
			sy = append(sy, sy[0])
		}
		s := gochart.ContinuousSeries{
			Name:    ds.Label,
			XValues: sx,
			YValues: sy,
			Style:   seriesStyle(ds, i),
		}
		if ds.YAxisID == "y1" {
			s.YAxis = gochart.YAxisSecondary
			secon.add(sy)
		} else {
			primary.add(sy)
		}
		series = append(series, s)
	}
	if len(series) == 0 {
		return ErrEmpty
	}

	ch := gochart.Chart{
		Title:      cfg.Title,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return strconv.Itoa(int(math.Round(f)))
				}
				return ""
			},
		},
		YAxis:  gochart.YAxis{Range: primary.axisRange()},
		Series: series,
	}
	if secon.set {
		ch.YAxisSecondary = gochart.YAxis{Range: secon.axisRange()}
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return ch.Render(gochart.PNG, w)
}

func renderBars(cfg *Config, w io.Writer, width, height int) error {
	var bars []gochart.Value
	var b bounds
	for i, ds := range cfg.Datasets {
		if len(ds.Data) == 0 || ds.Data[0] == nil {
			continue
		}
		v := *ds.Data[0]
		b.add([]float64{v, 0})
		bars = append(bars, gochart.Value{
			Label: ds.Label,
			Value: v,
			Style: seriesStyle(ds, i),
		})
	}
	if len(bars) == 0 {
		return ErrEmpty
	}
	bc := gochart.BarChart{
		Title:    cfg.Title,
		Width:    width,
		Height:   height,
		BarWidth: 60,
		Bars:     bars,
		YAxis:    gochart.YAxis{Range: b.axisRange()},
	}
	return bc.Render(gochart.PNG, w)
}

func points(xs []float64, data []*float64) ([]float64, []float64) {
	var sx, sy []float64
	for i, v := range data {
		if v == nil || i >= len(xs) {
			continue
		}
		sx = append(sx, xs[i])
		sy = append(sy, *v)
	}
	return sx, sy
}

var fallbackColors = []drawing.Color{gochart.ColorBlue, gochart.ColorGreen, gochart.ColorRed, gochart.ColorOrange}

func seriesStyle(ds Dataset, i int) gochart.Style {
	c, ok := parseHex(ds.BorderColor)
	if !ok {
		c = fallbackColors[i%len(fallbackColors)]
	}
	st := gochart.Style{StrokeColor: c, StrokeWidth: 2, FillColor: c}
	if ds.Type == "line" || ds.Type == "" {
		st.FillColor = drawing.ColorTransparent
		if ds.Fill {
			st.FillColor = c.WithAlpha(51)
		}
		st.DotWidth = 2
		st.DotColor = c
	}
	return st
}

func parseHex(s string) (drawing.Color, bool) {
	h := strings.TrimPrefix(s, "#")
	if !strings.HasPrefix(s, "#") || (len(h) != 3 && len(h) != 6) {
		return drawing.Color{}, false
	}
	return drawing.ColorFromHex(h), true
}

type bounds struct {
	set      bool
	min, max float64
}

func (b *bounds) add(vs []float64) {
	for _, v := range vs {
		if !b.set {
			b.min, b.max, b.set = v, v, true
			continue
		}
		b.min = math.Min(b.min, v)
		b.max = math.Max(b.max, v)
	}
}

func (b bounds) axisRange() gochart.Range {
	if !b.set {
		return nil
	}
	lo, hi := b.min, b.max
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.05
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
