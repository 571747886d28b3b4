package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/wcharczuk/go-chart"
)

// ErrNoData is returned when there is not enough data for a chart.
var ErrNoData = errors.New("not enough data")

const (
	barWidth   = 40
	barSpacing = 24
)

// Line renders the named series against their index, starting at 1.
func Line(w io.Writer, title, xName, yName string, names []string, series [][]float64) error {
	var lines []chart.Series
	for i, s := range series {
		if len(s) < 2 {
			return fmt.Errorf("series '%s' has %d points: %w", names[i], len(s), ErrNoData)
		}
		x := make([]float64, len(s))
		for j := range x {
			x[j] = float64(j + 1)
		}
		lines = append(lines, chart.ContinuousSeries{
			Name:    names[i],
			XValues: x,
			YValues: s,
			Style: chart.Style{
				Show:        true,
				StrokeColor: chart.GetAlternateColor(i),
			},
		})
	}
	if len(lines) == 0 {
		return ErrNoData
	}

	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      xName,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Name:      yName,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		Series: lines,
	}
	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}
	return graph.Render(chart.PNG, w)
}

// Bars renders one bar per label.
func Bars(w io.Writer, title string, labels []string, values []float64) error {
	if len(values) == 0 || len(values) != len(labels) {
		return fmt.Errorf("%d labels for %d values: %w", len(labels), len(values), ErrNoData)
	}
	bars := make([]chart.Value, len(values))
	for i, v := range values {
		bars[i] = chart.Value{
			Label: labels[i],
			Value: v,
		}
	}
	graph := chart.BarChart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		Background: chart.Style{
			Padding: chart.Box{
				Top: 40,
			},
		},
		Height:     512,
		Width:      (barWidth+barSpacing)*len(values) + 128,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.StyleShow(),
		YAxis: chart.YAxis{
			Style: chart.StyleShow(),
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

// Save renders into a png file under dir, doing nothing when dir is empty.
func Save(dir, name string, render func(w io.Writer) error) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not make dir '%s': %w", dir, err)
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("could not create file '%s': %w", p, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("could not render '%s': %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not close file '%s': %w", p, err)
	}
	log.Info().Str("file", p).Msg("chart saved")
	return nil
}
