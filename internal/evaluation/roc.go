package evaluation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ROCAUC returns the area under the roc curve of the scores against the actual classes.
func ROCAUC(scores []float64, actual []bool) (float64, error) {
	if len(scores) != len(actual) {
		return math.NaN(), fmt.Errorf("%d scores vs %d classes: %w", len(scores), len(actual), ErrLength)
	}
	positives := 0
	for _, a := range actual {
		if a {
			positives++
		}
	}
	if positives == 0 || positives == len(actual) {
		return math.NaN(), ErrSingleClass
	}
	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(actual))
	copy(classes, actual)

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
