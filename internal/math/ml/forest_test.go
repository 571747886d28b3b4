package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomForest(t *testing.T) {
	x, y := separable(300, 5, 1)

	forest := NewForest(ForestConfig{Trees: 50, Seed: 5})
	require.NoError(t, forest.Fit(x, y))

	predicted := make([]int, len(x))
	for i := range x {
		votes, err := forest.Vote(x[i])
		require.NoError(t, err)
		require.Len(t, votes, 2)
		c, err := forest.Predict(x[i])
		require.NoError(t, err)
		predicted[i] = c
	}
	assert.Greater(t, accuracy(y, predicted), 0.85)

	importance, err := forest.FeatureImportance()
	require.NoError(t, err)
	assert.Len(t, importance, 3)

	_, err = forest.Vote([]float64{1})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestRandomForest_NotTrained(t *testing.T) {
	forest := NewForest(ForestConfig{Trees: 10})

	_, err := forest.Vote([]float64{1, 2})
	assert.ErrorIs(t, err, ErrNotTrained)
	_, err = forest.FeatureImportance()
	assert.ErrorIs(t, err, ErrNotTrained)
	assert.ErrorIs(t, forest.Fit(nil, nil), ErrDimension)
}

func TestTree(t *testing.T) {
	x, y := separable(200, 9, 0)
	test, expected := separable(100, 10, 0)

	tree := NewTree(ForestConfig{Trees: 20, Features: 2, Seed: 9})
	_, err := tree.Predict(test)
	assert.ErrorIs(t, err, ErrNotTrained)

	require.NoError(t, tree.Fit(x, y))

	predicted, err := tree.Predict(test)
	require.NoError(t, err)
	require.Len(t, predicted, len(test))
	assert.Greater(t, accuracy(expected, predicted), 0.8)

	fitted, err := tree.Predict(x)
	require.NoError(t, err)
	assert.Greater(t, accuracy(y, fitted), 0.85)
	counts := make(map[int]int)
	for _, c := range predicted {
		counts[c]++
	}
	assert.Greater(t, counts[0], 20)
	assert.Greater(t, counts[1], 20)

	_, err = tree.Predict([][]float64{{1}})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestTree_Bins(t *testing.T) {
	x, y := separable(200, 11, 0)
	// a constant column is left out of the bins
	for i := range x {
		x[i] = append(x[i], 1)
	}

	type test struct {
		bins int
	}

	tests := map[string]test{
		"default": {},
		"coarse":  {bins: 4},
		"fine":    {bins: 20},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			tree := NewTree(ForestConfig{Trees: 20, Features: 3, Seed: 3, Bins: tt.bins})
			require.NoError(t, tree.Fit(x, y))

			// values outside the training range land in the outer bins
			predicted, err := tree.Predict([][]float64{{-5, -5, 1}, {5, 5, 1}, {0.9, 0.95, 7}})
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 1}, predicted)
		})
	}

	constant := [][]float64{{1, 2}, {1, 2}, {1, 2}}
	assert.ErrorIs(t, NewTree(ForestConfig{Trees: 2}).Fit(constant, []int{0, 1, 0}), ErrDimension)
}
