// Package fashion trains a dense image classifier on a 10 class 28x28 grayscale dataset
// and evaluates it on the held-out partition.
package fashion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/drakos74/case-studies/internal/data/mnist"
	"github.com/drakos74/case-studies/internal/evaluation"
	"github.com/drakos74/case-studies/internal/math/ml"
	"github.com/drakos74/case-studies/internal/metrics"
	"github.com/drakos74/case-studies/internal/report"
	"github.com/drakos74/case-studies/internal/split"
	"github.com/drakos74/case-studies/internal/storage"
	"github.com/drakos74/case-studies/internal/training"
	"github.com/rs/zerolog/log"
)

const (
	model     = "network"
	gridWidth = 5
)

// Prediction is the network output for one test image.
type Prediction struct {
	Index         int       `json:"index"`
	Actual        string    `json:"actual"`
	Predicted     string    `json:"predicted"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
}

// Correct checks if the predicted class is the actual one.
func (p Prediction) Correct() bool {
	return p.Actual == p.Predicted
}

// Report is the outcome of a walkthrough run.
type Report struct {
	Study        string             `json:"study"`
	Run          string             `json:"run"`
	Started      time.Time          `json:"started"`
	Duration     time.Duration      `json:"duration"`
	Config       Config             `json:"config"`
	TrainShape   [3]int             `json:"train_shape"`
	TestShape    [3]int             `json:"test_shape"`
	Fit          int                `json:"fit"`
	Validation   int                `json:"validation"`
	Params       int                `json:"params"`
	History      *training.History  `json:"history"`
	TestLoss     float64            `json:"test_loss"`
	TestAccuracy float64            `json:"test_accuracy"`
	Summary      evaluation.Summary `json:"summary"`
	Predictions  []Prediction       `json:"predictions"`
}

// Study runs the walkthrough steps, printing summaries to out.
type Study struct {
	cfg    Config
	out    io.Writer
	store  storage.Persistence
	client *http.Client
}

// New creates a new study. The config is validated and completed with defaults.
func New(cfg Config, out io.Writer, store storage.Persistence) (*Study, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = storage.NewVoidStorage()
	}
	return &Study{
		cfg:    cfg,
		out:    out,
		store:  store,
		client: http.DefaultClient,
	}, nil
}

// Run executes all steps in order and stops at the first error.
func (s *Study) Run(ctx context.Context) (*Report, error) {
	key := storage.NewKey(Name, "summary")
	rep := &Report{
		Study:   Name,
		Run:     key.Run,
		Started: time.Now(),
		Config:  s.cfg,
	}

	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	train := ds.Train.Slice(s.cfg.TrainLimit)
	test := ds.Test.Slice(s.cfg.TestLimit)
	rep.TrainShape, rep.TestShape = train.Shape(), test.Shape()

	s.inspect(train, ds.Classes)

	fit, validation, err := s.holdOut(train)
	if err != nil {
		return nil, err
	}
	rep.Fit, rep.Validation = fit.Len(), validation.Len()

	network, err := ml.NewNetwork(ml.NetworkConfig{
		Inputs:       mnist.Pixels,
		Hidden:       s.cfg.Hidden,
		Classes:      len(ds.Classes),
		LearningRate: s.cfg.LearningRate,
		Activation:   s.cfg.Activation,
		Seed:         s.cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("could not build network: %w", err)
	}
	rep.Params = network.Params()
	s.section("model")
	fmt.Fprintf(s.out, "dense %d -> %v -> %d, %d parameters\n", mnist.Pixels, s.cfg.Hidden, len(ds.Classes), rep.Params)

	history, err := training.New(training.Config{
		Epochs:   s.cfg.Epochs,
		Patience: s.cfg.Patience,
		Seed:     s.cfg.Seed,
		Study:    Name,
	}).Fit(ctx, network, fit, validation)
	if err != nil {
		return nil, fmt.Errorf("could not train network: %w", err)
	}
	rep.History = history
	s.history(history)

	eval, err := training.Evaluate(ctx, network, test)
	if err != nil {
		return nil, fmt.Errorf("could not evaluate network: %w", err)
	}
	rep.TestLoss, rep.TestAccuracy = eval.Loss, eval.Accuracy
	s.section("evaluation")
	fmt.Fprintf(s.out, "test loss %s test accuracy %s\n", report.F(eval.Loss), report.F(eval.Accuracy))
	metrics.Observer.Score(Name, model, evaluation.Accuracy, eval.Accuracy)

	rep.Predictions = s.predictions(eval, test, ds.Classes)
	if err := s.single(network, test, ds.Classes); err != nil {
		return nil, err
	}

	cm, err := evaluation.Confusion(eval.Actual, eval.Predicted, ds.Classes)
	if err != nil {
		return nil, fmt.Errorf("could not build confusion matrix: %w", err)
	}
	rep.Summary = cm.Summary()
	s.section("confusion matrix")
	report.Confusion(s.out, cm)
	report.Summary(s.out, rep.Summary)

	rep.Duration = time.Since(rep.Started)
	if err := s.store.Store(key, rep); err != nil {
		return nil, fmt.Errorf("could not store report: %w", err)
	}
	log.Info().
		Str("run", rep.Run).
		Float64("accuracy", rep.TestAccuracy).
		Dur("duration", rep.Duration).
		Msg("study completed")
	return rep, nil
}

func (s *Study) section(title string) {
	fmt.Fprintf(s.out, "\n## %s\n\n", title)
}

// load downloads the missing files when a url is configured and reads the dataset.
func (s *Study) load(ctx context.Context) (*mnist.Dataset, error) {
	if s.cfg.DownloadURL != "" {
		if err := mnist.Download(ctx, s.client, s.cfg.DownloadURL, s.cfg.DataDir, s.cfg.Checksums); err != nil {
			return nil, fmt.Errorf("could not download dataset: %w", err)
		}
	}
	ds, err := mnist.Load(s.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("could not load dataset: %w", err)
	}
	return ds, nil
}

// holdOut carves a stratified validation set out of the training images,
// so the test images stay unseen until the final evaluation.
func (s *Study) holdOut(train mnist.Set) (mnist.Set, mnist.Set, error) {
	sp, err := split.Initial(train.Len(), 1-s.cfg.Validation, s.cfg.Seed, train.Strata())
	if err != nil {
		return mnist.Set{}, mnist.Set{}, fmt.Errorf("could not hold out validation images: %w", err)
	}
	fit, validation := train.Subset(sp.Train), train.Subset(sp.Test)
	log.Info().
		Int("fit", fit.Len()).
		Int("validation", validation.Len()).
		Msg("held out validation images")
	return fit, validation, nil
}

// inspect prints the shapes, the class balance and a preview of the first images.
func (s *Study) inspect(train mnist.Set, classes []string) {
	s.section("data")
	fmt.Fprintf(s.out, "train images %v\n", train.Shape())
	report.Counts(s.out, classes, train.Counts(len(classes)))
	if train.Len() == 0 {
		return
	}
	fmt.Fprintf(s.out, "\nfirst image, %s\n", classes[train.Labels[0]])
	report.ASCII(s.out, train.Images[0][:], mnist.ImgSize)

	n := s.cfg.Preview
	if n > train.Len() {
		n = train.Len()
	}
	images := make([][]byte, n)
	for i := range images {
		images[i] = train.Images[i][:]
	}
	s.chart("images.png", func(w io.Writer) error {
		return report.ImageGrid(w, images, mnist.ImgSize, gridWidth)
	})
}

func (s *Study) history(history *training.History) {
	s.section("training")
	rows := make([][]string, len(history.Epochs))
	for i, e := range history.Epochs {
		rows[i] = []string{fmt.Sprint(e.Index), report.F(e.Loss), report.F(e.Accuracy), report.F(e.TestLoss), report.F(e.TestAccuracy), e.Duration.Round(time.Millisecond).String()}
	}
	report.Table(s.out, []string{"epoch", training.Loss, training.Accuracy, training.TestLoss, training.TestAccuracy, "duration"}, rows)
	if last, ok := history.Last(); ok {
		fmt.Fprintf(s.out, "last epoch %d, validation accuracy %s\n", last.Index, report.F(last.TestAccuracy))
	}
	if history.Stopped {
		fmt.Fprintf(s.out, "stopped early, best epoch %d\n", history.Best+1)
	}
	report.Plot(s.out, training.Loss, history.Series(training.Loss))
	report.Plot(s.out, training.TestAccuracy, history.Series(training.TestAccuracy))
	s.chart("history.png", func(w io.Writer) error {
		return report.Line(w, "training history", "epoch", "accuracy",
			[]string{training.Accuracy, training.TestAccuracy},
			[][]float64{history.Series(training.Accuracy), history.Series(training.TestAccuracy)})
	})
}

// predictions reports the first test images with their predicted class and confidence.
func (s *Study) predictions(eval *training.Evaluation, test mnist.Set, classes []string) []Prediction {
	n := s.cfg.Predictions
	if n > test.Len() {
		n = test.Len()
	}
	predictions := make([]Prediction, n)
	rows := make([][]string, n)
	for i := range predictions {
		probs := eval.Probabilities[i]
		p := Prediction{
			Index:         i,
			Actual:        classes[eval.Actual[i]],
			Predicted:     classes[eval.Predicted[i]],
			Confidence:    probs[eval.Predicted[i]],
			Probabilities: probs,
		}
		predictions[i] = p
		rows[i] = []string{fmt.Sprint(i), p.Predicted, report.F(p.Confidence), p.Actual, fmt.Sprint(p.Correct())}
	}
	s.section("predictions")
	report.Table(s.out, []string{"image", "predicted", "confidence", "actual", "correct"}, rows)
	return predictions
}

// single predicts one image on its own, the way a new input would be classified.
func (s *Study) single(network *ml.Network, test mnist.Set, classes []string) error {
	if test.Len() == 0 {
		return nil
	}
	x, y := test.Sample(0)
	probs, err := network.Probabilities(x)
	if err != nil {
		return fmt.Errorf("could not predict single image: %w", err)
	}
	predicted := ml.ArgMax(probs)
	s.section("single image")
	fmt.Fprintf(s.out, "predicted %s (%s) actual %s\n", classes[predicted], report.F(probs[predicted]), classes[y])
	s.chart("prediction.png", func(w io.Writer) error {
		return report.Bars(w, fmt.Sprintf("image 0: %s", classes[y]), classes, probs)
	})
	return nil
}

// chart renders into the output dir, a failing chart does not stop the study.
func (s *Study) chart(name string, render func(w io.Writer) error) {
	if err := report.Save(s.cfg.OutputDir, name, render); err != nil {
		log.Warn().Err(err).Str("chart", name).Msg("could not render chart")
	}
}
