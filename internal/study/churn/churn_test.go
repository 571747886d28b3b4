package churn

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drakos74/case-studies/infra/config"
	"github.com/drakos74/case-studies/internal/data/frame"
	"github.com/drakos74/case-studies/internal/evaluation"
	"github.com/drakos74/case-studies/internal/math/ml"
	"github.com/drakos74/case-studies/internal/storage/file/json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

var contracts = []string{"Month-to-month", "One year", "Two year"}

// customers writes a telco like csv where short month-to-month contracts churn,
// with a fraction of the labels flipped and a few blank charges.
func customers(t *testing.T, n int, blank int) string {
	rnd := rand.New(rand.NewSource(7))
	var b strings.Builder
	b.WriteString("customerID,gender,SeniorCitizen,tenure,Contract,MonthlyCharges,TotalCharges,Churn\n")
	for i := 0; i < n; i++ {
		gender := "Female"
		if rnd.Intn(2) == 0 {
			gender = "Male"
		}
		tenure := rnd.Intn(72)
		contract := contracts[rnd.Intn(len(contracts))]
		monthly := 20 + rnd.Float64()*100
		total := fmt.Sprintf("%.2f", monthly*float64(tenure+1))
		if i < blank {
			total = " "
		}
		churn := contract == contracts[0] && tenure < 24
		if rnd.Float64() < 0.05 {
			churn = !churn
		}
		label := "No"
		if churn {
			label = "Yes"
		}
		fmt.Fprintf(&b, "%04d-CUST,%s,%d,%d,%s,%.2f,%s,%s\n", i, gender, rnd.Intn(2), tenure, contract, monthly, total, label)
	}
	file := filepath.Join(t.TempDir(), "customers.csv")
	require.NoError(t, os.WriteFile(file, []byte(b.String()), 0644))
	return file
}

func TestStudy_Run(t *testing.T) {
	out := t.TempDir()
	store := json.NewLocalStorage()
	var console bytes.Buffer

	study, err := New(Config{
		CSV:       customers(t, 300, 3),
		ID:        "customerID",
		Strata:    true,
		Seed:      42,
		Folds:     5,
		Normalize: true,
		OneHot:    true,
		Logistic:  ml.LogisticConfig{Newton: 25, Regularization: 0.01},
		Forest:    trees(20),
		Holdout:   trees(10),
		OutputDir: out,
	}, &console, store)
	require.NoError(t, err)

	rep, err := study.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Name, rep.Study)
	assert.Equal(t, 297, rep.Rows)
	assert.Equal(t, 3, rep.Dropped)
	assert.Equal(t, rep.Rows, rep.Train+rep.Test)
	assert.InDelta(t, 0.8*297, float64(rep.Train), 3)
	assert.Equal(t, []string{"No", "Yes"}, rep.Classes)
	assert.NotContains(t, rep.Features, "customerID")
	assert.Contains(t, rep.Features, "Contract_One.year")

	require.Len(t, rep.Coefficients, len(rep.Features)+1)
	assert.Greater(t, rep.Logistic[evaluation.Accuracy], 0.65)
	assert.Greater(t, rep.Logistic[evaluation.AreaUnderCurve], 0.7)

	require.Len(t, rep.Resamples, 5)
	assert.Equal(t, "Fold01", rep.Resamples[0].ID)
	require.Len(t, rep.CrossValidation, 5)
	for _, e := range rep.CrossValidation {
		assert.Equal(t, 5, e.N, e.Metric)
		assert.GreaterOrEqual(t, e.StdErr, 0.0, e.Metric)
	}
	assert.Greater(t, rep.Forest[evaluation.Accuracy], 0.75)
	assert.NotEmpty(t, rep.Importance)
	assert.LessOrEqual(t, len(rep.Importance), 15)
	for i := 1; i < len(rep.Importance); i++ {
		assert.GreaterOrEqual(t, rep.Importance[i-1].Value, rep.Importance[i].Value)
	}
	assert.Equal(t, rep.Test, rep.Holdout.N)
	assert.Greater(t, rep.Holdout.Accuracy, 0.8)
	require.Len(t, rep.Holdout.Classes, 2)
	for _, c := range rep.Holdout.Classes {
		assert.Greater(t, c.Support, 0, c.Class)
		// a forest stuck on the majority class would have no recall on churners
		if c.Class == "Yes" {
			assert.Greater(t, c.Recall, 0.3)
		}
	}

	text := console.String()
	for _, section := range []string{"## data", "## split", "## recipe", "## logistic regression", "cross-validation", "## feature importance", "Prediction \\ Truth"} {
		assert.Contains(t, text, section)
	}
	for _, name := range []string{"importance.png", "resamples.png"} {
		_, err = os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	keys := store.Keys()
	require.Len(t, keys, 1)
	var stored Report
	require.NoError(t, store.Load(keys[0], &stored))
	assert.Equal(t, rep.Run, stored.Run)
	assert.Equal(t, rep.Train, stored.Train)
}

func trees(n int) ml.ForestConfig {
	return ml.ForestConfig{Trees: n}
}

func TestStudy_Errors(t *testing.T) {
	csv := customers(t, 60, 0)

	type test struct {
		cfg Config
		err error
	}

	tests := map[string]test{
		"missing-file": {
			cfg: Config{CSV: filepath.Join(t.TempDir(), "none.csv")},
			err: os.ErrNotExist,
		},
		"missing-label": {
			cfg: Config{CSV: csv, Label: "Cancelled"},
			err: frame.ErrColumnNotFound,
		},
		"missing-id": {
			cfg: Config{CSV: csv, ID: "accountID"},
			err: frame.ErrColumnNotFound,
		},
		"positive-class": {
			cfg: Config{CSV: csv, ID: "customerID", Positive: "Maybe"},
			err: ErrPositiveClass,
		},
		"multi-class": {
			cfg: Config{CSV: csv, ID: "customerID", Label: "Contract", Positive: "Two year"},
			err: evaluation.ErrClass,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			study, err := New(tt.cfg, &bytes.Buffer{}, nil)
			require.NoError(t, err)
			_, err = study.Run(context.Background())
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Seed: 3}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Churn", cfg.Label)
	assert.Equal(t, "Yes", cfg.Positive)
	assert.Equal(t, 0.8, cfg.Prop)
	assert.Equal(t, 10, cfg.Folds)
	assert.Equal(t, 100, cfg.Forest.Trees)
	assert.Equal(t, int64(3), cfg.Forest.Seed)
	assert.Equal(t, int64(3), cfg.Holdout.Seed)

	type test struct {
		cfg Config
	}

	tests := map[string]test{
		"label-is-id": {cfg: Config{ID: "Churn"}},
		"prop":        {cfg: Config{Prop: 1.2}},
		"folds":       {cfg: Config{Folds: 1}},
		"logistic":    {cfg: Config{Logistic: ml.LogisticConfig{Regularization: -1}}},
		"trees":       {cfg: Config{Forest: ml.ForestConfig{Trees: -2}}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(tt.cfg, &bytes.Buffer{}, nil)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestConfig_Shipped(t *testing.T) {
	var cfg Config
	_, err := config.Load(filepath.Join("..", "..", "..", config.Path, Name+".json"), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "customerID", cfg.ID)
	assert.Equal(t, 25, cfg.Logistic.Newton)
	assert.Equal(t, int64(42), cfg.Forest.Seed)
}
