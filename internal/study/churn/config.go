package churn

import (
	"github.com/drakos74/case-studies/infra/config"
	"github.com/drakos74/case-studies/internal/math/ml"
)

// Name is the study name used for configs, reports and metrics.
const Name = "churn"

// Config defines the churn walkthrough.
type Config struct {
	CSV      string `json:"csv"`
	ID       string `json:"id"`
	Label    string `json:"label"`
	Positive string `json:"positive"`

	Prop   float64 `json:"prop"`
	Strata bool    `json:"strata"`
	Seed   int64   `json:"seed"`
	Folds  int     `json:"folds"`

	Normalize bool `json:"normalize"`
	OneHot    bool `json:"one_hot"`

	Logistic ml.LogisticConfig `json:"logistic"`
	Forest   ml.ForestConfig   `json:"forest"`
	Holdout  ml.ForestConfig   `json:"holdout"`

	Importance int    `json:"importance"`
	OutputDir  string `json:"output_dir"`
	ReportDir  string `json:"report_dir"`
}

// Validate fills in the defaults and checks the values.
func (c *Config) Validate() error {
	if c.CSV == "" {
		c.CSV = "data/churn/WA_Fn-UseC_-Telco-Customer-Churn.csv"
	}
	if c.Label == "" {
		c.Label = "Churn"
	}
	if c.Positive == "" {
		c.Positive = "Yes"
	}
	if c.Prop == 0 {
		c.Prop = 0.8
	}
	if c.Folds == 0 {
		c.Folds = 10
	}
	if c.Logistic.Alpha == 0 {
		c.Logistic.Alpha = 0.0001
	}
	if c.Logistic.Iterations == 0 {
		c.Logistic.Iterations = 500
	}
	if c.Forest.Trees == 0 {
		c.Forest.Trees = 100
	}
	if c.Holdout.Trees == 0 {
		c.Holdout.Trees = 50
	}
	if c.Importance == 0 {
		c.Importance = 15
	}
	if c.Forest.Seed == 0 {
		c.Forest.Seed = c.Seed
	}
	if c.Holdout.Seed == 0 {
		c.Holdout.Seed = c.Seed
	}

	if c.Label == c.ID {
		return config.Invalid("label", c.Label)
	}
	if c.Prop <= 0 || c.Prop >= 1 {
		return config.Invalid("prop", c.Prop)
	}
	if c.Folds < 2 {
		return config.Invalid("folds", c.Folds)
	}
	if c.Logistic.Alpha < 0 || c.Logistic.Iterations < 0 || c.Logistic.Newton < 0 || c.Logistic.Regularization < 0 {
		return config.Invalid("logistic", c.Logistic)
	}
	if c.Forest.Trees < 1 || c.Forest.Features < 0 {
		return config.Invalid("forest", c.Forest)
	}
	if c.Holdout.Trees < 1 || c.Holdout.Features < 0 {
		return config.Invalid("holdout", c.Holdout)
	}
	if c.Importance < 0 {
		return config.Invalid("importance", c.Importance)
	}
	return nil
}
