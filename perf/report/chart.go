package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/wesleyorama2/throughput/perf/histogram"
)

// ErrEmptyHistogram is returned when asked to render a histogram without samples.
var ErrEmptyHistogram = errors.New("histogram has no samples")

// ChartRenderer displays the latency distribution of a finished run.
type ChartRenderer interface {
	Display(h histogram.Histogram, title string) error
}

// ChartRendererFunc adapts a function to the ChartRenderer interface.
type ChartRendererFunc func(h histogram.Histogram, title string) error

// Display calls f.
func (f ChartRendererFunc) Display(h histogram.Histogram, title string) error {
	return f(h, title)
}

// PNGChart renders the percentile curve (0..100 against latency in ms) as a
// PNG image.
type PNGChart struct {
	// Path is the output file. Ignored when Writer is set.
	Path string

	// Writer receives the image instead of a file
	Writer io.Writer

	Width  int
	Height int
}

// NewPNGChart creates a renderer writing to path.
func NewPNGChart(path string) *PNGChart {
	return &PNGChart{Path: path, Width: 800, Height: 400}
}

// Display renders h to the configured destination.
func (c *PNGChart) Display(h histogram.Histogram, title string) error {
	if h.TotalCount() == 0 {
		return ErrEmptyHistogram
	}

	xs := make([]float64, 0, 101)
	ys := make([]float64, 0, 101)
	top := 0.0
	for p := 0; p <= 100; p++ {
		v := ms(h.ValueAtPercentile(float64(p)))
		xs = append(xs, float64(p))
		ys = append(ys, v)
		if v > top {
			top = v
		}
	}
	if top <= 0 {
		top = 1
	}

	graph := chart.Chart{
		Title:  title,
		Width:  c.Width,
		Height: c.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  "percentile",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		YAxis: chart.YAxis{
			Name:  "ms",
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.05},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    title,
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
				},
			},
		},
	}

	if c.Writer != nil {
		return graph.Render(chart.PNG, c.Writer)
	}

	f, err := os.Create(c.Path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}

	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return f.Close()
}
