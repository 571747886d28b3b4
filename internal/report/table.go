package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/drakos74/case-studies/internal/evaluation"
	"github.com/drakos74/case-studies/internal/math/ml"
	"github.com/olekukonko/tablewriter"
)

// F formats a score for display.
func F(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Table renders the rows below the given header.
func Table(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}

// Counts renders the number of samples per class.
func Counts(w io.Writer, classes []string, counts []int) {
	rows := make([][]string, len(classes))
	for i, c := range classes {
		rows[i] = []string{strconv.Itoa(i), c, strconv.Itoa(counts[i])}
	}
	Table(w, []string{"label", "class", "n"}, rows)
}

// Confusion renders predictions as rows against the truth as columns.
func Confusion(w io.Writer, cm *evaluation.Matrix) {
	header := append([]string{"Prediction \\ Truth"}, cm.Classes...)
	rows := make([][]string, len(cm.Classes))
	for i, predicted := range cm.Classes {
		row := []string{predicted}
		for _, actual := range cm.Classes {
			row = append(row, strconv.Itoa(cm.Count(actual, predicted)))
		}
		rows[i] = row
	}
	Table(w, header, rows)
}

// Summary renders accuracy and the per class scores.
func Summary(w io.Writer, s evaluation.Summary) {
	rows := make([][]string, 0, len(s.Classes)+1)
	for _, c := range s.Classes {
		rows = append(rows, []string{c.Class, F(c.Precision), F(c.Recall), F(c.F1), strconv.Itoa(c.Support)})
	}
	rows = append(rows, []string{"accuracy", "", "", F(s.Accuracy), strconv.Itoa(s.N)})
	Table(w, []string{"class", "precision", "recall", "f1", "support"}, rows)
}

// Metrics renders one metric per row.
func Metrics(w io.Writer, m evaluation.Metrics) {
	names := m.Names()
	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, F(m[name])}
	}
	Table(w, []string{".metric", ".estimate"}, rows)
}

// Resamples renders the metrics of each resample, one resample per row.
func Resamples(w io.Writer, ids []string, resamples []evaluation.Metrics) {
	if len(resamples) == 0 {
		return
	}
	names := resamples[0].Names()
	rows := make([][]string, len(resamples))
	for i, m := range resamples {
		row := []string{ids[i]}
		for _, name := range names {
			row = append(row, F(m[name]))
		}
		rows[i] = row
	}
	Table(w, append([]string{"id"}, names...), rows)
}

// Estimates renders the aggregated resample metrics.
func Estimates(w io.Writer, estimates []evaluation.Estimate) {
	rows := make([][]string, len(estimates))
	for i, e := range estimates {
		rows[i] = []string{e.Metric, F(e.Mean), strconv.Itoa(e.N), F(e.StdErr)}
	}
	Table(w, []string{".metric", "mean", "n", "std_err"}, rows)
}

// Coefficients renders the tidy coefficient table.
func Coefficients(w io.Writer, coefficients []ml.Coefficient) {
	rows := make([][]string, len(coefficients))
	for i, c := range coefficients {
		rows[i] = []string{c.Term, F(c.Estimate), F(c.StdError), F(c.Statistic), fmt.Sprintf("%.3g", c.PValue)}
	}
	Table(w, []string{"term", "estimate", "std.error", "statistic", "p.value"}, rows)
}

// Importance renders the feature importance, most important first.
func Importance(w io.Writer, features []string, importance []float64) {
	rows := make([][]string, len(features))
	for rank, i := range Rank(importance) {
		rows[rank] = []string{strconv.Itoa(rank + 1), features[i], F(importance[i])}
	}
	Table(w, []string{"rank", "feature", "importance"}, rows)
}
