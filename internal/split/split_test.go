package split

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(n, every int) []string {
	ll := make([]string, n)
	for i := range ll {
		if i%every == 0 {
			ll[i] = "Yes"
		} else {
			ll[i] = "No"
		}
	}
	return ll
}

func TestInitial(t *testing.T) {

	type test struct {
		n      int
		prop   float64
		strata []string
		train  int
	}

	tests := map[string]test{
		"plain": {
			n:     100,
			prop:  0.75,
			train: 75,
		},
		"stratified": {
			n:      100,
			prop:   0.8,
			strata: labels(100, 4),
			train:  80,
		},
		"odd": {
			n:     7,
			prop:  0.5,
			train: 4,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s, err := Initial(tt.n, tt.prop, 42, tt.strata)
			require.NoError(t, err)
			assert.Equal(t, tt.train, len(s.Train))
			assert.Equal(t, tt.n, len(s.Train)+len(s.Test))

			seen := make(map[int]bool)
			for _, i := range append(append([]int{}, s.Train...), s.Test...) {
				assert.False(t, seen[i], "index %d used twice", i)
				seen[i] = true
			}
			assert.Equal(t, tt.n, len(seen))
		})
	}
}

func TestInitial_Stratified(t *testing.T) {
	strata := labels(200, 4)
	s, err := Initial(200, 0.8, 1, strata)
	require.NoError(t, err)

	yes := 0
	for _, i := range s.Train {
		if strata[i] == "Yes" {
			yes++
		}
	}
	assert.Equal(t, 40, yes)
}

func TestInitial_Reproducible(t *testing.T) {
	a, err := Initial(50, 0.7, 123, nil)
	require.NoError(t, err)
	b, err := Initial(50, 0.7, 123, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Initial(50, 0.7, 124, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.Train, c.Train)
}

func TestInitial_Errors(t *testing.T) {
	_, err := Initial(10, 1.0, 1, nil)
	assert.Error(t, err)
	_, err = Initial(1, 0.5, 1, nil)
	assert.True(t, errors.Is(err, ErrTooFewRows))
	_, err = Initial(10, 0.5, 1, []string{"a"})
	assert.Error(t, err)
}

func TestVFold(t *testing.T) {

	type test struct {
		n      int
		v      int
		strata []string
	}

	tests := map[string]test{
		"even":       {n: 100, v: 10},
		"uneven":     {n: 103, v: 10},
		"stratified": {n: 97, v: 10, strata: labels(97, 3)},
		"minimal":    {n: 2, v: 2},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			folds, err := VFold(tt.n, tt.v, 7, tt.strata)
			require.NoError(t, err)
			assert.Equal(t, tt.v, len(folds))

			covered := make(map[int]int)
			for _, f := range folds {
				assert.Equal(t, tt.n, len(f.Analysis)+len(f.Assessment))
				in := make(map[int]bool)
				for _, i := range f.Assessment {
					in[i] = true
					covered[i]++
				}
				for _, i := range f.Analysis {
					assert.False(t, in[i], "index %d in both sets of %s", i, f.ID)
				}
				assert.True(t, len(f.Assessment) >= tt.n/tt.v)
				assert.True(t, len(f.Assessment) <= tt.n/tt.v+1)
			}
			assert.Equal(t, tt.n, len(covered))
			for i, c := range covered {
				assert.Equal(t, 1, c, "index %d assessed %d times", i, c)
			}
		})
	}
}

func TestVFold_Reproducible(t *testing.T) {
	a, err := VFold(40, 10, 99, nil)
	require.NoError(t, err)
	b, err := VFold(40, 10, 99, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "Fold01", a[0].ID)
	assert.Equal(t, "Fold10", a[9].ID)
}

func TestVFold_Errors(t *testing.T) {
	_, err := VFold(5, 10, 1, nil)
	assert.True(t, errors.Is(err, ErrTooFewRows))
	_, err = VFold(5, 1, 1, nil)
	assert.Error(t, err)
}

func TestSubset(t *testing.T) {
	vv := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"d", "b"}, Subset(vv, []int{3, 1}))
}
