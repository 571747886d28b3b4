// Package recipe describes preprocessing steps that are prepared on training rows
// and then baked, unchanged, into any partition of the data.
package recipe

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/drakos74/case-studies/internal/data/frame"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotPrepared  = errors.New("recipe not prepared")
	ErrUnknownLevel = errors.New("unknown level")
	ErrNominal      = errors.New("nominal column without factor step")
)

// Kind is the type a column is given when the recipe is prepared.
type Kind int

const (
	Numeric Kind = iota
	Nominal
)

func (k Kind) String() string {
	if k == Nominal {
		return "nominal"
	}
	return "numeric"
}

type stepType string

const (
	stringToFactor stepType = "string2factor"
	normalize      stepType = "normalize"
	dummy          stepType = "dummy"
)

// Recipe is the unprepared specification of the preprocessing.
type Recipe struct {
	outcome    string
	predictors []string
	steps      []stepType
}

// New creates a recipe for the given outcome. Without predictors,
// every other column of the training rows is used.
func New(outcome string, predictors ...string) *Recipe {
	return &Recipe{
		outcome:    outcome,
		predictors: predictors,
		steps:      make([]stepType, 0),
	}
}

// StringToFactor turns the nominal columns into factors with the levels found in training.
func (r *Recipe) StringToFactor() *Recipe {
	r.steps = append(r.steps, stringToFactor)
	return r
}

// Normalize centers and scales the numeric predictors with the training mean and deviation.
func (r *Recipe) Normalize() *Recipe {
	r.steps = append(r.steps, normalize)
	return r
}

// Dummy encodes the factor predictors as one indicator per non-reference level.
func (r *Recipe) Dummy() *Recipe {
	r.steps = append(r.steps, dummy)
	return r
}

func (r *Recipe) has(s stepType) bool {
	for _, step := range r.steps {
		if step == s {
			return true
		}
	}
	return false
}

// Column is the learned state of a single predictor.
type Column struct {
	Name   string
	Kind   Kind
	Levels []string
	Mean   float64
	Sd     float64
}

// Prepared holds everything learned from the training rows.
type Prepared struct {
	recipe   *Recipe
	Columns  []Column
	Classes  []string
	Features []string
	training *Matrix
}

// Matrix is the baked, model ready form of a set of rows.
type Matrix struct {
	X        [][]float64
	Y        []int
	Features []string
	Classes  []string
}

// Rows returns the number of rows in the matrix.
func (m *Matrix) Rows() int {
	return len(m.X)
}

// Labels returns the outcome as class names.
func (m *Matrix) Labels() []string {
	ll := make([]string, len(m.Y))
	for i, y := range m.Y {
		ll[i] = m.Classes[y]
	}
	return ll
}

// Prep learns the column kinds, factor levels and scaling from the training rows only.
func (r *Recipe) Prep(rows []frame.Row) (*Prepared, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot prepare recipe without rows")
	}

	predictors := r.predictors
	if len(predictors) == 0 {
		for name := range rows[0] {
			if name != r.outcome {
				predictors = append(predictors, name)
			}
		}
		sort.Strings(predictors)
	}

	classes, err := levels(rows, r.outcome)
	if err != nil {
		return nil, err
	}

	p := &Prepared{
		recipe:  r,
		Classes: classes,
		Columns: make([]Column, len(predictors)),
	}

	for i, name := range predictors {
		col := Column{Name: name, Kind: Numeric}
		values := make([]float64, len(rows))
		for j, row := range rows {
			v, ok := row[name]
			if !ok {
				return nil, fmt.Errorf("'%s' missing from training row %d: %w", name, j, frame.ErrColumnNotFound)
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				col.Kind = Nominal
				break
			}
			values[j] = f
		}
		switch col.Kind {
		case Nominal:
			if !r.has(stringToFactor) {
				return nil, fmt.Errorf("column '%s': %w", name, ErrNominal)
			}
			lvls, err := levels(rows, name)
			if err != nil {
				return nil, err
			}
			col.Levels = lvls
		case Numeric:
			col.Mean, col.Sd = stat.MeanStdDev(values, nil)
		}
		p.Columns[i] = col
	}

	for _, col := range p.Columns {
		p.Features = append(p.Features, r.features(col)...)
	}

	p.training, err = p.Bake(rows)
	if err != nil {
		return nil, fmt.Errorf("could not bake training rows: %w", err)
	}

	log.Info().
		Int("rows", len(rows)).
		Int("predictors", len(p.Columns)).
		Int("features", len(p.Features)).
		Strs("classes", p.Classes).
		Msg("prepared recipe")
	return p, nil
}

func (r *Recipe) features(col Column) []string {
	if col.Kind == Numeric || !r.has(dummy) {
		return []string{col.Name}
	}
	ff := make([]string, 0, len(col.Levels)-1)
	for _, l := range col.Levels[1:] {
		ff = append(ff, fmt.Sprintf("%s_%s", col.Name, sanitize(l)))
	}
	return ff
}

// Juice returns the baked training rows the recipe was prepared on.
func (p *Prepared) Juice() (*Matrix, error) {
	if p == nil || p.training == nil {
		return nil, ErrNotPrepared
	}
	return p.training, nil
}

// Bake applies the prepared steps to the given rows.
func (p *Prepared) Bake(rows []frame.Row) (*Matrix, error) {
	if p == nil || p.recipe == nil {
		return nil, ErrNotPrepared
	}
	m := &Matrix{
		X:        make([][]float64, len(rows)),
		Y:        make([]int, len(rows)),
		Features: p.Features,
		Classes:  p.Classes,
	}
	for i, row := range rows {
		x := make([]float64, 0, len(p.Features))
		for _, col := range p.Columns {
			v, ok := row[col.Name]
			if !ok {
				return nil, fmt.Errorf("'%s' missing from row %d: %w", col.Name, i, frame.ErrColumnNotFound)
			}
			xx, err := p.value(col, v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			x = append(x, xx...)
		}
		m.X[i] = x

		y, err := index(p.Classes, row[p.recipe.outcome])
		if err != nil {
			return nil, fmt.Errorf("outcome '%s' row %d: %w", p.recipe.outcome, i, err)
		}
		m.Y[i] = y
	}
	return m, nil
}

func (p *Prepared) value(col Column, v string) ([]float64, error) {
	switch col.Kind {
	case Numeric:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("column '%s' value '%s' is not numeric: %w", col.Name, v, err)
		}
		if p.recipe.has(normalize) && col.Sd > 0 {
			f = (f - col.Mean) / col.Sd
		}
		return []float64{f}, nil
	default:
		l, err := index(col.Levels, v)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", col.Name, err)
		}
		if !p.recipe.has(dummy) {
			return []float64{float64(l)}, nil
		}
		dd := make([]float64, len(col.Levels)-1)
		if l > 0 {
			dd[l-1] = 1
		}
		return dd, nil
	}
}

// Summary prints the learned state of every predictor.
func (p *Prepared) Summary(w io.Writer) {
	steps := make([]string, len(p.recipe.steps))
	for i, s := range p.recipe.steps {
		steps[i] = string(s)
	}
	fmt.Fprintf(w, "Recipe: %s ~ . [%s]\n", p.recipe.outcome, strings.Join(steps, ", "))

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"column", "kind", "levels", "mean", "sd"})
	table.SetAutoWrapText(false)
	for _, col := range p.Columns {
		switch col.Kind {
		case Nominal:
			table.Append([]string{col.Name, col.Kind.String(), strings.Join(col.Levels, "|"), "", ""})
		default:
			table.Append([]string{col.Name, col.Kind.String(), "",
				strconv.FormatFloat(col.Mean, 'f', 3, 64),
				strconv.FormatFloat(col.Sd, 'f', 3, 64)})
		}
	}
	table.Render()
}

func levels(rows []frame.Row, name string) ([]string, error) {
	set := make(map[string]struct{})
	for i, row := range rows {
		v, ok := row[name]
		if !ok {
			return nil, fmt.Errorf("'%s' missing from row %d: %w", name, i, frame.ErrColumnNotFound)
		}
		set[v] = struct{}{}
	}
	ll := make([]string, 0, len(set))
	for l := range set {
		ll = append(ll, l)
	}
	sort.Strings(ll)
	return ll, nil
}

func index(levels []string, v string) (int, error) {
	i := sort.SearchStrings(levels, v)
	if i < len(levels) && levels[i] == v {
		return i, nil
	}
	return -1, fmt.Errorf("'%s' not in %v: %w", v, levels, ErrUnknownLevel)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '.'
	}, s)
}
