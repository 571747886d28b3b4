package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/drakos74/case-studies/internal/buffer"
	"github.com/drakos74/case-studies/internal/math/ml"
	"github.com/drakos74/case-studies/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	Loss         = "loss"
	Accuracy     = "accuracy"
	TestLoss     = "val_loss"
	TestAccuracy = "val_accuracy"
)

// ErrNoSamples is returned when there is nothing to train on.
var ErrNoSamples = errors.New("no training samples")

// check for cancellation every so many samples
const checkEvery = 256

// Model is a classifier trained one sample at a time.
type Model interface {
	// TrainSample runs one update and returns the loss and the class predicted before it.
	TrainSample(x []float64, label int) (float64, int, error)
	Probabilities(x []float64) ([]float64, error)
}

// Samples gives indexed access to labelled inputs.
type Samples interface {
	Len() int
	Sample(i int) ([]float64, int)
}

// Config defines the training loop.
type Config struct {
	Epochs int `json:"epochs"`
	// Patience is the number of epochs without validation accuracy improvement before stopping, zero disables it.
	Patience int    `json:"patience"`
	Seed     int64  `json:"seed"`
	Study    string `json:"-"`
}

// Epoch holds the scores after one pass over the training set.
type Epoch struct {
	Index        int           `json:"epoch"`
	Loss         float64       `json:"loss"`
	Accuracy     float64       `json:"accuracy"`
	TestLoss     float64       `json:"val_loss"`
	TestAccuracy float64       `json:"val_accuracy"`
	Duration     time.Duration `json:"duration"`
}

// History is the record of a training run.
type History struct {
	Epochs  []Epoch `json:"epochs"`
	Best    int     `json:"best"`
	Stopped bool    `json:"stopped"`
}

// Series returns one score across all epochs.
func (h *History) Series(name string) []float64 {
	series := make([]float64, len(h.Epochs))
	for i, e := range h.Epochs {
		switch name {
		case Loss:
			series[i] = e.Loss
		case Accuracy:
			series[i] = e.Accuracy
		case TestLoss:
			series[i] = e.TestLoss
		case TestAccuracy:
			series[i] = e.TestAccuracy
		}
	}
	return series
}

// Last returns the last epoch.
func (h *History) Last() (Epoch, bool) {
	if len(h.Epochs) == 0 {
		return Epoch{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// Trainer runs the epoch loop.
type Trainer struct {
	cfg Config
	rnd *rand.Rand
}

// New creates a new trainer.
func New(cfg Config) *Trainer {
	return &Trainer{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Fit trains the model on the training samples in shuffled order for the configured epochs,
// evaluating on the validation samples after each one. The validation samples must not
// be the ones the final model is scored on, they drive the early stop.
// On cancellation the history so far is returned together with the context error.
func (t *Trainer) Fit(ctx context.Context, model Model, train, validation Samples) (*History, error) {
	if train.Len() == 0 {
		return nil, ErrNoSamples
	}
	history := &History{
		Epochs: make([]Epoch, 0, t.cfg.Epochs),
	}
	var window *buffer.MultiBuffer
	if t.cfg.Patience > 0 {
		window = buffer.NewMultiBuffer(t.cfg.Patience + 1)
	}
	for e := 0; e < t.cfg.Epochs; e++ {
		start := time.Now()
		loss, hits := 0.0, 0
		for n, i := range t.rnd.Perm(train.Len()) {
			if n%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return history, err
				}
			}
			x, y := train.Sample(i)
			l, predicted, err := model.TrainSample(x, y)
			if err != nil {
				return history, fmt.Errorf("could not train on sample %d: %w", i, err)
			}
			loss += l
			if predicted == y {
				hits++
			}
		}
		eval, err := Evaluate(ctx, model, validation)
		if err != nil {
			return history, err
		}
		epoch := Epoch{
			Index:        e + 1,
			Loss:         loss / float64(train.Len()),
			Accuracy:     float64(hits) / float64(train.Len()),
			TestLoss:     eval.Loss,
			TestAccuracy: eval.Accuracy,
			Duration:     time.Since(start),
		}
		history.Epochs = append(history.Epochs, epoch)
		if epoch.TestAccuracy > history.Epochs[history.Best].TestAccuracy {
			history.Best = e
		}
		metrics.Observer.Epoch(t.cfg.Study)
		log.Info().
			Int("epoch", epoch.Index).
			Float64(Loss, epoch.Loss).
			Float64(Accuracy, epoch.Accuracy).
			Float64(TestLoss, epoch.TestLoss).
			Float64(TestAccuracy, epoch.TestAccuracy).
			Dur("duration", epoch.Duration).
			Msg("epoch")

		if window != nil {
			window.Push(epoch.TestLoss, epoch.TestAccuracy)
			if window.Stale(1) {
				log.Info().
					Int("epoch", epoch.Index).
					Int("patience", t.cfg.Patience).
					Msg("no improvement, stopping early")
				history.Stopped = true
				break
			}
		}
	}
	return history, nil
}

// Evaluation holds the scores of a model on a set of samples.
type Evaluation struct {
	Loss          float64     `json:"loss"`
	Accuracy      float64     `json:"accuracy"`
	Actual        []int       `json:"-"`
	Predicted     []int       `json:"-"`
	Probabilities [][]float64 `json:"-"`
}

// Evaluate scores the model on the given samples.
func Evaluate(ctx context.Context, model Model, samples Samples) (*Evaluation, error) {
	n := samples.Len()
	eval := &Evaluation{
		Actual:        make([]int, n),
		Predicted:     make([]int, n),
		Probabilities: make([][]float64, n),
	}
	if n == 0 {
		return eval, nil
	}
	hits := 0
	for i := 0; i < n; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		x, y := samples.Sample(i)
		probs, err := model.Probabilities(x)
		if err != nil {
			return nil, fmt.Errorf("could not evaluate sample %d: %w", i, err)
		}
		predicted := ml.ArgMax(probs)
		eval.Loss += ml.Loss(probs, y)
		eval.Actual[i] = y
		eval.Predicted[i] = predicted
		eval.Probabilities[i] = probs
		if predicted == y {
			hits++
		}
	}
	eval.Loss /= float64(n)
	eval.Accuracy = float64(hits) / float64(n)
	return eval, nil
}
