// Package churn classifies customer churn from tabular account data:
// a baseline logistic regression and a cross-validated random forest,
// both fed by a recipe prepared on the training split only.
package churn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/drakos74/case-studies/internal/data/frame"
	"github.com/drakos74/case-studies/internal/evaluation"
	"github.com/drakos74/case-studies/internal/math/ml"
	"github.com/drakos74/case-studies/internal/metrics"
	"github.com/drakos74/case-studies/internal/recipe"
	"github.com/drakos74/case-studies/internal/report"
	"github.com/drakos74/case-studies/internal/split"
	"github.com/drakos74/case-studies/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	logistic = "logistic"
	forest   = "forest"
	holdout  = "holdout"
	glimpse  = 5
)

// ErrPositiveClass is returned when the positive class is not one of the outcome levels.
var ErrPositiveClass = errors.New("positive class not found")

// Resample holds the assessment metrics of one fold.
type Resample struct {
	ID      string             `json:"id"`
	Metrics evaluation.Metrics `json:"metrics"`
}

// Importance is the score of one feature in the final forest.
type Importance struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// Report is the outcome of a walkthrough run.
type Report struct {
	Study    string        `json:"study"`
	Run      string        `json:"run"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Config   Config        `json:"config"`

	Rows    int      `json:"rows"`
	Dropped int      `json:"dropped"`
	Train   int      `json:"train"`
	Test    int      `json:"test"`
	Classes []string `json:"classes"`

	Features     []string           `json:"features"`
	Coefficients []ml.Coefficient   `json:"coefficients"`
	Logistic     evaluation.Metrics `json:"logistic"`

	Resamples       []Resample            `json:"resamples"`
	CrossValidation []evaluation.Estimate `json:"cross_validation"`
	Forest          evaluation.Metrics    `json:"forest"`
	Importance      []Importance          `json:"importance"`

	Holdout evaluation.Summary `json:"holdout"`
}

// Study runs the walkthrough steps, printing summaries to out.
type Study struct {
	cfg   Config
	out   io.Writer
	store storage.Persistence
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
		cfg:   cfg,
		out:   out,
		store: store,
	}, nil
}

// data is the model ready form of both partitions.
type data struct {
	train, test *recipe.Matrix
	// positive is the class index of the positive outcome
	positive int
	// strata of the training rows, if stratified
	strata []string
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

	rows, err := s.load(ctx, rep)
	if err != nil {
		return nil, err
	}
	d, err := s.prepare(rows, rep)
	if err != nil {
		return nil, err
	}
	if err := s.baseline(d, rep); err != nil {
		return nil, err
	}
	if err := s.crossValidate(ctx, d, rep); err != nil {
		return nil, err
	}
	if err := s.final(d, rep); err != nil {
		return nil, err
	}
	if err := s.holdout(d, rep); err != nil {
		return nil, err
	}

	rep.Duration = time.Since(rep.Started)
	if err := s.store.Store(key, rep); err != nil {
		return nil, fmt.Errorf("could not store report: %w", err)
	}
	log.Info().
		Str("run", rep.Run).
		Float64("logistic", rep.Logistic[evaluation.Accuracy]).
		Float64("forest", rep.Forest[evaluation.Accuracy]).
		Dur("duration", rep.Duration).
		Msg("study completed")
	return rep, nil
}

func (s *Study) section(title string) {
	fmt.Fprintf(s.out, "\n## %s\n\n", title)
}

// load reads the csv, drops the identifier column and the rows with missing values.
func (s *Study) load(ctx context.Context, rep *Report) ([]frame.Row, error) {
	f, err := os.Open(s.cfg.CSV)
	if err != nil {
		return nil, fmt.Errorf("could not open '%s': %w", s.cfg.CSV, err)
	}
	defer f.Close()

	df, err := frame.Load(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("could not load '%s': %w", s.cfg.CSV, err)
	}
	s.section("data")
	df.Glimpse(s.out, glimpse)

	if s.cfg.ID != "" {
		if err := df.DropColumn(s.cfg.ID); err != nil {
			return nil, fmt.Errorf("could not drop id column: %w", err)
		}
	}
	if _, err := df.Column(s.cfg.Label); err != nil {
		return nil, fmt.Errorf("label column: %w", err)
	}

	before, _ := df.Shape()
	dropped, err := df.DropMissing(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not drop missing values: %w", err)
	}
	after, cols := df.Shape()
	rep.Rows, rep.Dropped = after, dropped
	fmt.Fprintf(s.out, "%d rows, %d dropped with missing values, %d left with %d columns\n", before, dropped, after, cols)
	return df.Rows(), nil
}

// prepare splits the rows, preps the recipe on the training rows and bakes both partitions.
func (s *Study) prepare(rows []frame.Row, rep *Report) (*data, error) {
	var strata []string
	if s.cfg.Strata {
		strata = make([]string, len(rows))
		for i, row := range rows {
			strata[i] = row[s.cfg.Label]
		}
	}
	sp, err := split.Initial(len(rows), s.cfg.Prop, s.cfg.Seed, strata)
	if err != nil {
		return nil, fmt.Errorf("could not split rows: %w", err)
	}
	trainRows, testRows := split.Subset(rows, sp.Train), split.Subset(rows, sp.Test)
	rep.Train, rep.Test = len(trainRows), len(testRows)
	s.section("split")
	report.Table(s.out, []string{"partition", "rows"}, [][]string{
		{"training", fmt.Sprint(len(trainRows))},
		{"testing", fmt.Sprint(len(testRows))},
		{"total", fmt.Sprint(len(rows))},
	})

	rec := recipe.New(s.cfg.Label).StringToFactor()
	if s.cfg.Normalize {
		rec = rec.Normalize()
	}
	if s.cfg.OneHot {
		rec = rec.Dummy()
	}
	prepared, err := rec.Prep(trainRows)
	if err != nil {
		return nil, fmt.Errorf("could not prep recipe: %w", err)
	}
	s.section("recipe")
	prepared.Summary(s.out)

	train, err := prepared.Juice()
	if err != nil {
		return nil, err
	}
	test, err := prepared.Bake(testRows)
	if err != nil {
		return nil, fmt.Errorf("could not bake test rows: %w", err)
	}
	rep.Features, rep.Classes = prepared.Features, prepared.Classes

	positive := -1
	for i, c := range prepared.Classes {
		if c == s.cfg.Positive {
			positive = i
		}
	}
	if positive < 0 {
		return nil, fmt.Errorf("'%s' not in %v: %w", s.cfg.Positive, prepared.Classes, ErrPositiveClass)
	}
	if len(prepared.Classes) != 2 {
		return nil, fmt.Errorf("outcome has classes %v: %w", prepared.Classes, evaluation.ErrClass)
	}

	var trainStrata []string
	if strata != nil {
		trainStrata = split.Subset(strata, sp.Train)
	}
	return &data{
		train:    train,
		test:     test,
		positive: positive,
		strata:   trainStrata,
	}, nil
}

// binary maps the outcome to 1 for the positive class and 0 otherwise.
func (d *data) binary(y []int) []int {
	b := make([]int, len(y))
	for i, c := range y {
		if c == d.positive {
			b[i] = 1
		}
	}
	return b
}

// baseline fits the logistic regression on the training set and scores it on the test set.
func (s *Study) baseline(d *data, rep *Report) error {
	model := ml.NewLogistic(s.cfg.Logistic)
	if err := model.Fit(d.train.X, d.binary(d.train.Y)); err != nil {
		return fmt.Errorf("could not fit logistic regression: %w", err)
	}
	metrics.Observer.Fit(Name, logistic)

	coefficients, err := model.Coefficients(d.train.Features)
	if err != nil {
		return err
	}
	rep.Coefficients = coefficients
	s.section("logistic regression")
	report.Coefficients(s.out, coefficients)

	scores := make([]float64, d.test.Rows())
	for i, x := range d.test.X {
		p, err := model.Predict(x)
		if err != nil {
			return fmt.Errorf("could not predict test row %d: %w", i, err)
		}
		scores[i] = p
	}
	m, err := s.score(logistic, d, d.test.Y, scores)
	if err != nil {
		return err
	}
	rep.Logistic = m
	return nil
}

// score evaluates positive class probabilities and prints the confusion matrix and metrics.
func (s *Study) score(model string, d *data, actual []int, scores []float64) (evaluation.Metrics, error) {
	m, cm, err := evaluation.Binary(actual, scores, d.positive, d.test.Classes)
	if err != nil {
		return nil, fmt.Errorf("could not score %s: %w", model, err)
	}
	report.Confusion(s.out, cm)
	report.Metrics(s.out, m)
	for name, v := range m {
		metrics.Observer.Score(Name, model, name, v)
	}
	return m, nil
}

// crossValidate fits a forest on every fold's analysis set and scores it on the assessment set.
func (s *Study) crossValidate(ctx context.Context, d *data, rep *Report) error {
	folds, err := split.VFold(d.train.Rows(), s.cfg.Folds, s.cfg.Seed, d.strata)
	if err != nil {
		return fmt.Errorf("could not create folds: %w", err)
	}
	ids := make([]string, len(folds))
	resamples := make([]evaluation.Metrics, len(folds))
	for i, fold := range folds {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		rf := ml.NewForest(s.cfg.Forest)
		if err := rf.Fit(split.Subset(d.train.X, fold.Analysis), split.Subset(d.train.Y, fold.Analysis)); err != nil {
			return fmt.Errorf("could not fit forest on %s: %w", fold.ID, err)
		}
		metrics.Observer.Fit(Name, forest)

		x := split.Subset(d.train.X, fold.Assessment)
		scores, err := positiveVotes(rf, x, d.positive)
		if err != nil {
			return fmt.Errorf("could not assess %s: %w", fold.ID, err)
		}
		m, _, err := evaluation.Binary(split.Subset(d.train.Y, fold.Assessment), scores, d.positive, d.train.Classes)
		if err != nil {
			return fmt.Errorf("could not score %s: %w", fold.ID, err)
		}
		ids[i], resamples[i] = fold.ID, m
		rep.Resamples = append(rep.Resamples, Resample{ID: fold.ID, Metrics: m})
		log.Info().
			Str("fold", fold.ID).
			Int("analysis", len(fold.Analysis)).
			Int("assessment", len(fold.Assessment)).
			Float64(evaluation.Accuracy, m[evaluation.Accuracy]).
			Float64(evaluation.AreaUnderCurve, m[evaluation.AreaUnderCurve]).
			Dur("duration", time.Since(start)).
			Msg("fold assessed")
	}

	estimates, err := evaluation.Aggregate(resamples)
	if err != nil {
		return fmt.Errorf("could not aggregate folds: %w", err)
	}
	rep.CrossValidation = estimates
	s.section(fmt.Sprintf("random forest, %d-fold cross-validation", len(folds)))
	report.Resamples(s.out, ids, resamples)
	report.Estimates(s.out, estimates)

	names := []string{evaluation.Accuracy, evaluation.AreaUnderCurve}
	series := make([][]float64, len(names))
	for j, name := range names {
		series[j] = make([]float64, len(resamples))
		for i, m := range resamples {
			series[j][i] = m[name]
		}
	}
	s.chart("resamples.png", func(w io.Writer) error {
		return report.Line(w, "cross-validation", "fold", "score", names, series)
	})
	return nil
}

func positiveVotes(rf *ml.RandomForest, x [][]float64, positive int) ([]float64, error) {
	scores := make([]float64, len(x))
	for i, row := range x {
		votes, err := rf.Vote(row)
		if err != nil {
			return nil, err
		}
		if positive < len(votes) {
			scores[i] = votes[positive]
		}
	}
	return scores, nil
}

// final fits the forest on the whole training set and scores it on the test set.
func (s *Study) final(d *data, rep *Report) error {
	rf := ml.NewForest(s.cfg.Forest)
	if err := rf.Fit(d.train.X, d.train.Y); err != nil {
		return fmt.Errorf("could not fit final forest: %w", err)
	}
	metrics.Observer.Fit(Name, forest)

	scores, err := positiveVotes(rf, d.test.X, d.positive)
	if err != nil {
		return fmt.Errorf("could not predict test rows: %w", err)
	}
	s.section("random forest, test set")
	m, err := s.score(forest, d, d.test.Y, scores)
	if err != nil {
		return err
	}
	rep.Forest = m

	importance, err := rf.FeatureImportance()
	if err != nil {
		return err
	}
	top := report.Rank(importance)
	if len(top) > s.cfg.Importance {
		top = top[:s.cfg.Importance]
	}
	features := make([]string, len(top))
	values := make([]float64, len(top))
	for i, j := range top {
		features[i], values[i] = d.train.Features[j], importance[j]
		rep.Importance = append(rep.Importance, Importance{Feature: features[i], Value: values[i]})
	}
	s.section("feature importance")
	report.Importance(s.out, features, values)
	s.chart("importance.png", func(w io.Writer) error {
		return report.Bars(w, "feature importance", features, values)
	})
	return nil
}

// holdout compares against a golearn forest grown on equal width binned features.
func (s *Study) holdout(d *data, rep *Report) error {
	tree := ml.NewTree(s.cfg.Holdout)
	if err := tree.Fit(d.train.X, d.train.Y); err != nil {
		return fmt.Errorf("could not fit holdout forest: %w", err)
	}
	metrics.Observer.Fit(Name, holdout)
	predicted, err := tree.Predict(d.test.X)
	if err != nil {
		return fmt.Errorf("could not predict with holdout forest: %w", err)
	}
	cm, err := evaluation.Confusion(d.test.Y, predicted, d.test.Classes)
	if err != nil {
		return err
	}
	rep.Holdout = cm.Summary()
	metrics.Observer.Score(Name, holdout, evaluation.Accuracy, rep.Holdout.Accuracy)
	s.section("discretised forest, test set")
	report.Confusion(s.out, cm)
	report.Summary(s.out, rep.Holdout)
	return nil
}

// chart renders into the output dir, a failing chart does not stop the study.
func (s *Study) chart(name string, render func(w io.Writer) error) {
	if err := report.Save(s.cfg.OutputDir, name, render); err != nil {
		log.Warn().Err(err).Str("chart", name).Msg("could not render chart")
	}
}
