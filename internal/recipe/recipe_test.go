package recipe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/drakos74/case-studies/internal/data/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func train() []frame.Row {
	return []frame.Row{
		{"tenure": "1", "Contract": "Month-to-month", "Churn": "Yes"},
		{"tenure": "3", "Contract": "One year", "Churn": "No"},
		{"tenure": "5", "Contract": "Two year", "Churn": "No"},
		{"tenure": "7", "Contract": "Month-to-month", "Churn": "Yes"},
	}
}

func TestRecipe_Prep(t *testing.T) {
	p, err := New("Churn").StringToFactor().Normalize().Dummy().Prep(train())
	require.NoError(t, err)

	assert.Equal(t, []string{"No", "Yes"}, p.Classes)
	assert.Equal(t, []string{"Contract_One.year", "Contract_Two.year", "tenure"}, p.Features)

	contract := p.Columns[0]
	assert.Equal(t, Nominal, contract.Kind)
	assert.Equal(t, []string{"Month-to-month", "One year", "Two year"}, contract.Levels)

	tenure := p.Columns[1]
	assert.Equal(t, Numeric, tenure.Kind)
	assert.InDelta(t, 4.0, tenure.Mean, 1e-9)
	assert.True(t, tenure.Sd > 0)

	juice, err := p.Juice()
	require.NoError(t, err)
	assert.Equal(t, 4, juice.Rows())
	assert.Equal(t, []int{1, 0, 0, 1}, juice.Y)
	assert.Equal(t, []string{"Yes", "No", "No", "Yes"}, juice.Labels())
	// reference level encodes as all zeros
	assert.Equal(t, []float64{0, 0}, juice.X[0][:2])
	assert.Equal(t, []float64{1, 0}, juice.X[1][:2])
	assert.Equal(t, []float64{0, 1}, juice.X[2][:2])
}

func TestPrepared_Bake(t *testing.T) {

	p, err := New("Churn", "tenure", "Contract").StringToFactor().Normalize().Prep(train())
	require.NoError(t, err)

	type test struct {
		rows []frame.Row
		x    [][]float64
		err  error
	}

	tests := map[string]test{
		"uses-training-statistics": {
			rows: []frame.Row{
				{"tenure": "4", "Contract": "Two year", "Churn": "No"},
			},
			x: [][]float64{{0, 2}},
		},
		"unknown-level": {
			rows: []frame.Row{
				{"tenure": "4", "Contract": "Three year", "Churn": "No"},
			},
			err: ErrUnknownLevel,
		},
		"unknown-outcome": {
			rows: []frame.Row{
				{"tenure": "4", "Contract": "Two year", "Churn": "Maybe"},
			},
			err: ErrUnknownLevel,
		},
		"missing-column": {
			rows: []frame.Row{
				{"Contract": "Two year", "Churn": "No"},
			},
			err: frame.ErrColumnNotFound,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := p.Bake(tt.rows)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.x, m.X)
		})
	}
}

func TestPrepared_BakeDoesNotLearn(t *testing.T) {
	p, err := New("Churn").StringToFactor().Normalize().Prep(train())
	require.NoError(t, err)
	before := p.Columns[1]

	_, err = p.Bake([]frame.Row{
		{"tenure": "1000", "Contract": "One year", "Churn": "No"},
	})
	require.NoError(t, err)
	assert.Equal(t, before, p.Columns[1])
}

func TestRecipe_PrepErrors(t *testing.T) {
	_, err := New("Churn").Prep(train())
	assert.True(t, errors.Is(err, ErrNominal))

	_, err = New("Churn").Prep(nil)
	assert.Error(t, err)

	var p *Prepared
	_, err = p.Bake(train())
	assert.True(t, errors.Is(err, ErrNotPrepared))
}

func TestPrepared_Summary(t *testing.T) {
	p, err := New("Churn").StringToFactor().Prep(train())
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	p.Summary(buf)
	assert.Contains(t, buf.String(), "string2factor")
	assert.Contains(t, buf.String(), "Month-to-month|One year|Two year")
}
