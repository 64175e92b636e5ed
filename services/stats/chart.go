package stats

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNotEnoughData means every bucket is too small to chart sensibly.
var ErrNotEnoughData = errors.New("not enough data to plot")

// Meta labels a rendered chart.
type Meta struct {
	XLabel      string
	YLabel      string
	Title       string
	Filename    string
	Description string
	ExtraText   string
}

// Artifact is a rendered chart ready to attach to a discord response.
type Artifact struct {
	Filename    string
	Description string
	PNG         []byte
}

var (
	barFill   = drawing.Color{R: 0x36, G: 0x93, B: 0xf5, A: 255}
	totalFill = drawing.Color{R: 0xf5, G: 0x8a, B: 0x36, A: 255}
)

// PlotBarChart renders counts as a PNG bar chart. The Total bucket is
// drawn last in a distinct colour. Returns ErrNotEnoughData when the
// largest bucket is too small to produce a readable axis.
func PlotBarChart(counts *Counts, meta Meta) (Artifact, error) {
	maxValue := counts.Max()
	if int(math.Ceil(float64(maxValue)/15)) < 1 {
		return Artifact{}, ErrNotEnoughData
	}

	labels := orderLabels(counts)
	bars := make([]chart.Value, 0, len(labels))
	for _, label := range labels {
		style := chart.Style{FillColor: barFill, StrokeColor: barFill}
		if label == "Total" {
			style = chart.Style{FillColor: totalFill, StrokeColor: totalFill}
		}
		bars = append(bars, chart.Value{
			Label: label,
			Value: float64(counts.Values[label]),
			Style: style,
		})
	}

	width := 640
	if w := 96 * len(bars); w > width {
		width = w
	}

	graph := chart.BarChart{
		Title:    meta.Title,
		Width:    width,
		Height:   480,
		BarWidth: 56,
		XAxis:    chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Name:  meta.YLabel,
			Ticks: valueTicks(maxValue),
			Range: &chart.ContinuousRange{Min: 0, Max: float64(maxValue + 1)},
		},
		Bars: bars,
	}
	if footer := chartFooter(meta); footer != "" {
		graph.Elements = []chart.Renderable{renderFooter(footer)}
	}

	var buffer bytes.Buffer
	if err := graph.Render(chart.PNG, &buffer); err != nil {
		return Artifact{}, fmt.Errorf("render bar chart: %w", err)
	}
	return Artifact{
		Filename:    meta.Filename,
		Description: meta.Description,
		PNG:         buffer.Bytes(),
	}, nil
}

// orderLabels keeps the counts' own order, drops zero buckets past the
// first five to keep wide charts readable, and moves Total to the end.
func orderLabels(counts *Counts) []string {
	var regular []string
	hasTotal := false
	for _, label := range counts.Labels {
		if label == "Total" {
			hasTotal = true
			continue
		}
		regular = append(regular, label)
	}

	if len(regular) > 4 {
		kept := regular[:0]
		for i, label := range regular {
			if counts.Values[label] > 0 || i <= 4 {
				kept = append(kept, label)
			}
		}
		regular = kept
	}

	if hasTotal {
		regular = append(regular, "Total")
	}
	return regular
}

// Ticks from 0 to max+1 in steps that keep at most 15 gridlines.
func valueTicks(maxValue int) []chart.Tick {
	top := maxValue + 1
	step := int(math.Ceil(float64(top) / 15))
	var ticks []chart.Tick
	for v := 0; v <= top; v += step {
		ticks = append(ticks, chart.Tick{
			Value: float64(v),
			Label: strconv.Itoa(v),
		})
	}
	return ticks
}

func chartFooter(meta Meta) string {
	switch {
	case meta.XLabel != "" && meta.ExtraText != "":
		return meta.XLabel + " | " + meta.ExtraText
	case meta.XLabel != "":
		return meta.XLabel
	default:
		return meta.ExtraText
	}
}

func renderFooter(text string) chart.Renderable {
	return func(r chart.Renderer, canvasBox chart.Box, defaults chart.Style) {
		r.SetFontColor(drawing.ColorFromHex("666666"))
		r.SetFontSize(9)
		measured := r.MeasureText(text)
		x := (canvasBox.Width() - measured.Width()) / 2
		r.Text(text, canvasBox.Left+x, canvasBox.Bottom+28)
	}
}
