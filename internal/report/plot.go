package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/guptarohit/asciigraph"
)

const plotHeight = 10

// Plot draws the series as a console line chart.
func Plot(w io.Writer, caption string, series []float64) {
	if len(series) == 0 {
		return
	}
	fmt.Fprintln(w, asciigraph.Plot(series,
		asciigraph.Height(plotHeight),
		asciigraph.Caption(caption)))
	fmt.Fprintln(w)
}

// Rank returns the indexes of the values in descending order.
func Rank(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return values[idx[a]] > values[idx[b]]
	})
	return idx
}
