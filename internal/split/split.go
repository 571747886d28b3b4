// Package split partitions row indices into train/test sets and cross-validation folds.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
)

var ErrTooFewRows = errors.New("too few rows")

// Split is a train/test partition of row indices.
type Split struct {
	Train []int
	Test  []int
}

// Fold is one resample of a v-fold cross-validation.
// Analysis is used to fit, Assessment to evaluate.
type Fold struct {
	ID         string
	Analysis   []int
	Assessment []int
}

// Initial splits n rows into a train set holding prop of the rows and a test set with the rest.
// When strata are given, the proportion is kept within every stratum.
func Initial(n int, prop float64, seed int64, strata []string) (Split, error) {
	if prop <= 0 || prop >= 1 {
		return Split{}, fmt.Errorf("proportion must be in (0,1) but was %f", prop)
	}
	if n < 2 {
		return Split{}, fmt.Errorf("cannot split %d rows: %w", n, ErrTooFewRows)
	}
	if strata != nil && len(strata) != n {
		return Split{}, fmt.Errorf("strata size %d does not match rows %d", len(strata), n)
	}

	rnd := rand.New(rand.NewSource(seed))
	var s Split
	for _, group := range groups(n, strata) {
		rnd.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		k := int(math.Round(float64(len(group)) * prop))
		s.Train = append(s.Train, group[:k]...)
		s.Test = append(s.Test, group[k:]...)
	}
	sort.Ints(s.Train)
	sort.Ints(s.Test)

	log.Debug().
		Int("rows", n).
		Int("train", len(s.Train)).
		Int("test", len(s.Test)).
		Float64("prop", prop).
		Msg("initial split")
	return s, nil
}

// VFold creates v folds over n rows. Every row lands in exactly one assessment set.
// With strata, rows of each stratum are dealt out across the folds in turn.
func VFold(n, v int, seed int64, strata []string) ([]Fold, error) {
	if v < 2 {
		return nil, fmt.Errorf("need at least 2 folds but got %d", v)
	}
	if n < v {
		return nil, fmt.Errorf("cannot create %d folds out of %d rows: %w", v, n, ErrTooFewRows)
	}
	if strata != nil && len(strata) != n {
		return nil, fmt.Errorf("strata size %d does not match rows %d", len(strata), n)
	}

	rnd := rand.New(rand.NewSource(seed))
	assessment := make([][]int, v)
	next := 0
	for _, group := range groups(n, strata) {
		rnd.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for _, idx := range group {
			assessment[next] = append(assessment[next], idx)
			next = (next + 1) % v
		}
	}

	folds := make([]Fold, v)
	for i := range folds {
		sort.Ints(assessment[i])
		folds[i] = Fold{
			ID:         fmt.Sprintf("Fold%02d", i+1),
			Analysis:   complement(n, assessment[i]),
			Assessment: assessment[i],
		}
	}
	return folds, nil
}

// Subset picks the elements of values at the given indices.
func Subset[T any](values []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// groups returns the row indices per stratum, in a stable stratum order.
func groups(n int, strata []string) [][]int {
	if strata == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}
	byKey := make(map[string][]int)
	keys := make([]string, 0)
	for i, s := range strata {
		if _, ok := byKey[s]; !ok {
			keys = append(keys, s)
		}
		byKey[s] = append(byKey[s], i)
	}
	sort.Strings(keys)
	gg := make([][]int, len(keys))
	for i, k := range keys {
		gg[i] = byKey[k]
	}
	return gg
}

func complement(n int, sorted []int) []int {
	out := make([]int, 0, n-len(sorted))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(sorted) && sorted[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}
