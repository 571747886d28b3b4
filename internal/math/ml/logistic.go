package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/cdipaolo/goml/base"
	"github.com/cdipaolo/goml/linear"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Intercept is the name of the bias term in the coefficient table.
const Intercept = "(Intercept)"

// LogisticConfig holds the optimisation parameters for the logistic regression.
type LogisticConfig struct {
	Alpha          float64 `json:"alpha"`
	Regularization float64 `json:"regularization"`
	Iterations     int     `json:"iterations"`
	// Newton refines the gradient ascent estimate with iteratively reweighted least squares,
	// maximising the likelihood with the same ridge penalty.
	Newton int `json:"newton"`
}

// Coefficient is one row of the tidy coefficient table.
type Coefficient struct {
	Term      string  `json:"term"`
	Estimate  float64 `json:"estimate"`
	StdError  float64 `json:"std_error"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// MarshalJSON writes undefined statistics as null.
func (c Coefficient) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Term      string   `json:"term"`
		Estimate  float64  `json:"estimate"`
		StdError  *float64 `json:"std_error"`
		Statistic *float64 `json:"statistic"`
		PValue    *float64 `json:"p_value"`
	}{
		Term:      c.Term,
		Estimate:  c.Estimate,
		StdError:  finite(c.StdError),
		Statistic: finite(c.Statistic),
		PValue:    finite(c.PValue),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Logistic is a binary logistic regression.
type Logistic struct {
	cfg   LogisticConfig
	model *linear.Logistic
	x     [][]float64
	cov   *mat.Dense
}

// NewLogistic creates a new logistic regression.
func NewLogistic(cfg LogisticConfig) *Logistic {
	return &Logistic{cfg: cfg}
}

// debugWriter forwards the optimiser output to the debug log.
type debugWriter string

func (w debugWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		log.Debug().Str("model", string(w)).Msg(msg)
	}
	return len(p), nil
}

// Fit trains the model on the given features and 0/1 labels.
func (l *Logistic) Fit(x [][]float64, y []int) error {
	if _, err := checkXY(x, y); err != nil {
		return err
	}
	expected := make([]float64, len(y))
	for i, c := range y {
		if c != 0 && c != 1 {
			return fmt.Errorf("label %d at row %d is not binary: %w", c, i, ErrDimension)
		}
		expected[i] = float64(c)
	}

	model := linear.NewLogistic(base.BatchGA, l.cfg.Alpha, l.cfg.Regularization, l.cfg.Iterations, x, expected)
	model.Output = debugWriter("logistic")
	if err := model.Learn(); err != nil {
		return fmt.Errorf("could not fit logistic regression: %w", err)
	}
	l.model = model
	l.x = x

	for i := 0; i < l.cfg.Newton; i++ {
		delta, ok := l.newtonStep(expected)
		if !ok {
			log.Warn().Int("iteration", i).Msg("information matrix is singular, keeping gradient ascent estimate")
			break
		}
		if delta < 1e-8 {
			break
		}
	}
	l.cov = l.covariance()
	return nil
}

func (l *Logistic) theta() []float64 {
	return l.model.Parameters
}

func (l *Logistic) linear(row []float64) float64 {
	theta := l.theta()
	z := theta[0]
	for j, v := range row {
		z += theta[j+1] * v
	}
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// information builds the fisher information X'WX for the current estimate,
// plus the ridge penalty on the diagonal.
func (l *Logistic) information() *mat.Dense {
	n, k := len(l.x), len(l.theta())
	design := mat.NewDense(n, k, nil)
	weighted := mat.NewDense(n, k, nil)
	for i, row := range l.x {
		p := sigmoid(l.linear(row))
		w := p * (1 - p)
		design.Set(i, 0, 1)
		weighted.Set(i, 0, w)
		for j, v := range row {
			design.Set(i, j+1, v)
			weighted.Set(i, j+1, w*v)
		}
	}
	var info mat.Dense
	info.Mul(design.T(), weighted)
	// the ridge penalty leaves the intercept alone
	for j := 1; j < k; j++ {
		info.Set(j, j, info.At(j, j)+l.cfg.Regularization)
	}
	return &info
}

func (l *Logistic) covariance() *mat.Dense {
	var cov mat.Dense
	if err := cov.Inverse(l.information()); err != nil {
		log.Warn().Err(err).Msg("could not invert information matrix")
		return nil
	}
	return &cov
}

// newtonStep applies one reweighted least squares update and returns its size.
func (l *Logistic) newtonStep(y []float64) (float64, bool) {
	k := len(l.theta())
	score := mat.NewVecDense(k, nil)
	for i, row := range l.x {
		r := y[i] - sigmoid(l.linear(row))
		score.SetVec(0, score.AtVec(0)+r)
		for j, v := range row {
			score.SetVec(j+1, score.AtVec(j+1)+r*v)
		}
	}
	for j := 1; j < k; j++ {
		score.SetVec(j, score.AtVec(j)-l.cfg.Regularization*l.theta()[j])
	}
	var step mat.VecDense
	if err := step.SolveVec(l.information(), score); err != nil {
		return 0, false
	}
	delta := 0.0
	for j := 0; j < k; j++ {
		d := step.AtVec(j)
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, false
		}
		l.model.Parameters[j] += d
		delta = math.Max(delta, math.Abs(d))
	}
	return delta, true
}

// Predict returns the probability of the positive class.
func (l *Logistic) Predict(x []float64) (float64, error) {
	if l.model == nil {
		return 0, ErrNotTrained
	}
	if len(x) != len(l.theta())-1 {
		return 0, fmt.Errorf("input of size %d instead of %d: %w", len(x), len(l.theta())-1, ErrDimension)
	}
	p, err := l.model.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("could not predict: %w", err)
	}
	return p[0], nil
}

// Probabilities returns the probability of each class.
func (l *Logistic) Probabilities(x []float64) ([]float64, error) {
	p, err := l.Predict(x)
	if err != nil {
		return nil, err
	}
	return []float64{1 - p, p}, nil
}

// Coefficients returns the estimates with their standard errors, z statistics and p-values.
// Standard errors are NaN when the information matrix is singular.
func (l *Logistic) Coefficients(features []string) ([]Coefficient, error) {
	if l.model == nil {
		return nil, ErrNotTrained
	}
	theta := l.theta()
	if len(features) != len(theta)-1 {
		return nil, fmt.Errorf("%d feature names for %d coefficients: %w", len(features), len(theta)-1, ErrDimension)
	}
	terms := append([]string{Intercept}, features...)
	coefficients := make([]Coefficient, len(theta))
	for j, estimate := range theta {
		se := math.NaN()
		if l.cov != nil {
			se = math.Sqrt(l.cov.At(j, j))
		}
		z := estimate / se
		coefficients[j] = Coefficient{
			Term:      terms[j],
			Estimate:  estimate,
			StdError:  se,
			Statistic: z,
			PValue:    2 * (1 - distuv.UnitNormal.CDF(math.Abs(z))),
		}
	}
	return coefficients, nil
}
