package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	golearn "github.com/sjwhitworth/golearn/evaluation"
)

const (
	Accuracy       = "accuracy"
	Precision      = "precision"
	Recall         = "recall"
	F1             = "f_meas"
	AreaUnderCurve = "roc_auc"
)

var (
	// ErrLength is returned when actual and predicted values do not line up.
	ErrLength = errors.New("length mismatch")
	// ErrClass is returned for a class index outside the known classes.
	ErrClass = errors.New("unknown class")
	// ErrSingleClass is returned when a curve needs both classes to be present.
	ErrSingleClass = errors.New("only one class present")
)

// Matrix is a confusion matrix over named classes.
type Matrix struct {
	golearn.ConfusionMatrix
	Classes []string
	N       int
}

// Confusion counts actual against predicted classes.
func Confusion(actual, predicted []int, classes []string) (*Matrix, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("%d actual vs %d predicted: %w", len(actual), len(predicted), ErrLength)
	}
	cm := make(golearn.ConfusionMatrix, len(classes))
	for _, a := range classes {
		cm[a] = make(map[string]int, len(classes))
		for _, p := range classes {
			cm[a][p] = 0
		}
	}
	for i := range actual {
		a, p := actual[i], predicted[i]
		if a < 0 || a >= len(classes) || p < 0 || p >= len(classes) {
			return nil, fmt.Errorf("row %d actual %d predicted %d of %d classes: %w", i, a, p, len(classes), ErrClass)
		}
		cm[classes[a]][classes[p]]++
	}
	return &Matrix{
		ConfusionMatrix: cm,
		Classes:         classes,
		N:               len(actual),
	}, nil
}

// Count returns the number of rows of the actual class predicted as the other one.
func (m *Matrix) Count(actual, predicted string) int {
	return m.ConfusionMatrix[actual][predicted]
}

// Accuracy is the share of correct predictions.
func (m *Matrix) Accuracy() float64 {
	return golearn.GetAccuracy(m.ConfusionMatrix)
}

// String renders the golearn summary.
func (m *Matrix) String() string {
	return golearn.GetSummary(m.ConfusionMatrix)
}

// ClassScore holds the one-vs-rest scores of a class.
type ClassScore struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Summary holds the scores of a confusion matrix.
type Summary struct {
	N        int          `json:"n"`
	Accuracy float64      `json:"accuracy"`
	Classes  []ClassScore `json:"classes"`
}

// Summary computes accuracy and per class precision, recall and f1.
func (m *Matrix) Summary() Summary {
	scores := make([]ClassScore, len(m.Classes))
	for i, c := range m.Classes {
		support := 0
		for _, n := range m.ConfusionMatrix[c] {
			support += n
		}
		scores[i] = ClassScore{
			Class:     c,
			Precision: defined(golearn.GetPrecision(c, m.ConfusionMatrix)),
			Recall:    defined(golearn.GetRecall(c, m.ConfusionMatrix)),
			F1:        defined(golearn.GetF1Score(c, m.ConfusionMatrix)),
			Support:   support,
		}
	}
	return Summary{
		N:        m.N,
		Accuracy: m.Accuracy(),
		Classes:  scores,
	}
}

// Metrics maps a metric name to its value.
type Metrics map[string]float64

// Names returns the metric names in order.
func (m Metrics) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON leaves out undefined values.
func (m Metrics) MarshalJSON() ([]byte, error) {
	finite := make(map[string]float64, len(m))
	for name, v := range m {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite[name] = v
		}
	}
	return json.Marshal(finite)
}

// defined reports a ratio with an empty denominator as zero.
func defined(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Binary scores positive class probabilities with a 0.5 threshold,
// taking the view of the positive class for precision, recall and f1.
func Binary(actual []int, scores []float64, positive int, classes []string) (Metrics, *Matrix, error) {
	if len(classes) != 2 {
		return nil, nil, fmt.Errorf("binary metrics for %d classes: %w", len(classes), ErrClass)
	}
	if positive < 0 || positive > 1 {
		return nil, nil, fmt.Errorf("positive class %d: %w", positive, ErrClass)
	}
	if len(actual) != len(scores) {
		return nil, nil, fmt.Errorf("%d actual vs %d scores: %w", len(actual), len(scores), ErrLength)
	}
	negative := 1 - positive
	predicted := make([]int, len(scores))
	truth := make([]bool, len(scores))
	for i, s := range scores {
		predicted[i] = negative
		if s >= 0.5 {
			predicted[i] = positive
		}
		truth[i] = actual[i] == positive
	}
	cm, err := Confusion(actual, predicted, classes)
	if err != nil {
		return nil, nil, err
	}
	class := classes[positive]
	metrics := Metrics{
		Accuracy:  cm.Accuracy(),
		Precision: defined(golearn.GetPrecision(class, cm.ConfusionMatrix)),
		Recall:    defined(golearn.GetRecall(class, cm.ConfusionMatrix)),
		F1:        defined(golearn.GetF1Score(class, cm.ConfusionMatrix)),
	}
	auc, err := ROCAUC(scores, truth)
	if err != nil && !errors.Is(err, ErrSingleClass) {
		return nil, nil, err
	}
	metrics[AreaUnderCurve] = auc
	return metrics, cm, nil
}
