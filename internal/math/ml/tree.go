package ml

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"github.com/sjwhitworth/golearn/filters"
)

// defaultBins is the number of equal width intervals per feature when none is configured.
const defaultBins = 10

// Tree is a golearn random forest grown over binned features.
type Tree struct {
	cfg ForestConfig
	p   int
	// columns that vary in the training data, constant ones carry no split
	keep     []int
	min, max []float64
	attrs    []base.Attribute
	class    *base.CategoricalAttribute
	filter   *filters.BinningFilter
	forest   base.Classifier
}

// NewTree creates a new discretised forest.
func NewTree(cfg ForestConfig) *Tree {
	return &Tree{cfg: cfg}
}

// grid converts the rows into golearn instances sharing the tree attributes.
// Values outside the training range are clamped, so they fall into the outer bins.
func (t *Tree) grid(x [][]float64, y []int) (*base.DenseInstances, error) {
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(t.attrs))
	for i, a := range t.attrs {
		specs[i] = inst.AddAttribute(a)
	}
	classSpec := inst.AddAttribute(t.class)
	if err := inst.AddClassAttribute(t.class); err != nil {
		return nil, fmt.Errorf("could not set class attribute: %w", err)
	}
	if err := inst.Extend(len(x)); err != nil {
		return nil, fmt.Errorf("could not allocate %d rows: %w", len(x), err)
	}
	for i, row := range x {
		if len(row) != t.p {
			return nil, fmt.Errorf("row %d has %d features instead of %d: %w", i, len(row), t.p, ErrDimension)
		}
		for k, j := range t.keep {
			v := row[j]
			if v < t.min[j] {
				v = t.min[j]
			} else if v > t.max[j] {
				v = t.max[j]
			}
			inst.Set(specs[k], i, base.PackFloatToBytes(v))
		}
		label := 0
		if y != nil {
			label = y[i]
		}
		inst.Set(classSpec, i, t.class.GetSysValFromString(strconv.Itoa(label)))
	}
	return inst, nil
}

// Fit bins the training features into equal width intervals and grows the forest.
func (t *Tree) Fit(x [][]float64, y []int) error {
	p, err := checkXY(x, y)
	if err != nil {
		return err
	}
	t.p = p
	t.min, t.max = bounds(x)
	t.keep = t.keep[:0]
	t.attrs = t.attrs[:0]
	for j := 0; j < p; j++ {
		if t.max[j] > t.min[j] {
			t.keep = append(t.keep, j)
			t.attrs = append(t.attrs, base.NewFloatAttribute(fmt.Sprintf("x%d", j)))
		}
	}
	if len(t.keep) == 0 {
		return fmt.Errorf("all %d features are constant: %w", p, ErrDimension)
	}
	t.class = base.NewCategoricalAttribute()
	t.class.SetName("class")

	train, err := t.grid(x, y)
	if err != nil {
		return err
	}

	bins := t.cfg.Bins
	if bins <= 0 {
		bins = defaultBins
	}
	filt := filters.NewBinningFilter(train, bins)
	for _, a := range t.attrs {
		if err := filt.AddAttribute(a); err != nil {
			return fmt.Errorf("could not bin attribute %s: %w", a.GetName(), err)
		}
	}
	if err := filt.Train(); err != nil {
		return fmt.Errorf("could not discretise features: %w", err)
	}
	t.filter = filt

	features := t.cfg.Features
	if features <= 0 || features > len(t.keep) {
		features = len(t.keep)
	}
	rand.Seed(t.cfg.Seed)
	forest := ensemble.NewRandomForest(t.cfg.Trees, features)
	if err := forest.Fit(base.NewLazilyFilteredInstances(train, filt)); err != nil {
		return fmt.Errorf("could not fit forest: %w", err)
	}
	t.forest = forest
	log.Debug().
		Int("trees", t.cfg.Trees).
		Int("features", features).
		Int("binned", len(t.keep)).
		Int("bins", bins).
		Int("rows", len(x)).
		Msg("discretised forest trained")
	return nil
}

// bounds returns the per feature minimum and maximum.
func bounds(x [][]float64) ([]float64, []float64) {
	lo := append([]float64{}, x[0]...)
	hi := append([]float64{}, x[0]...)
	for _, row := range x[1:] {
		for j, v := range row {
			if v < lo[j] {
				lo[j] = v
			}
			if v > hi[j] {
				hi[j] = v
			}
		}
	}
	return lo, hi
}

// Predict classifies the rows with the bins learned on the training data.
func (t *Tree) Predict(x [][]float64) ([]int, error) {
	if t.forest == nil {
		return nil, ErrNotTrained
	}
	if len(x) == 0 {
		return []int{}, nil
	}
	test, err := t.grid(x, nil)
	if err != nil {
		return nil, err
	}
	predictions, err := t.forest.Predict(base.NewLazilyFilteredInstances(test, t.filter))
	if err != nil {
		return nil, fmt.Errorf("could not predict: %w", err)
	}
	classes := make([]int, len(x))
	for i := range classes {
		c, err := strconv.Atoi(base.GetClass(predictions, i))
		if err != nil {
			return nil, fmt.Errorf("unexpected class at row %d: %w", i, err)
		}
		classes[i] = c
	}
	return classes, nil
}
