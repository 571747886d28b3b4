package fashion

import (
	"github.com/drakos74/case-studies/infra/config"
	"github.com/drakos74/case-studies/internal/data/mnist"
	"github.com/drakos74/case-studies/internal/math/ml"
)

// Name is the study name used for configs, reports and metrics.
const Name = "fashion"

// Config defines the image classification walkthrough.
type Config struct {
	DataDir     string            `json:"data_dir"`
	DownloadURL string            `json:"download_url"`
	Checksums   map[string]string `json:"checksums"`

	Hidden       []int   `json:"hidden"`
	Activation   string  `json:"activation"`
	LearningRate float64 `json:"learning_rate"`

	// Validation is the share of training images held out to score every epoch.
	Validation float64 `json:"validation"`
	Epochs     int     `json:"epochs"`
	Patience   int     `json:"patience"`
	TrainLimit int     `json:"train_limit"`
	TestLimit  int     `json:"test_limit"`
	Seed       int64   `json:"seed"`

	Predictions int    `json:"predictions"`
	Preview     int    `json:"preview"`
	OutputDir   string `json:"output_dir"`
	ReportDir   string `json:"report_dir"`
}

// Validate fills in the defaults and checks the values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = "data/fashion"
	}
	if len(c.Hidden) == 0 {
		c.Hidden = []int{128}
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.01
	}
	if c.Epochs == 0 {
		c.Epochs = 10
	}
	if c.Validation == 0 {
		c.Validation = 0.1
	}
	if c.Predictions == 0 {
		c.Predictions = 15
	}
	if c.Preview == 0 {
		c.Preview = 25
	}
	for _, h := range c.Hidden {
		if h < 1 {
			return config.Invalid("hidden", c.Hidden)
		}
	}
	if _, err := ml.Activation(c.Activation); err != nil {
		return config.Invalid("activation", c.Activation)
	}
	if c.LearningRate < 0 {
		return config.Invalid("learning_rate", c.LearningRate)
	}
	if c.Validation <= 0 || c.Validation >= 1 {
		return config.Invalid("validation", c.Validation)
	}
	if c.Epochs < 1 {
		return config.Invalid("epochs", c.Epochs)
	}
	if c.Patience < 0 {
		return config.Invalid("patience", c.Patience)
	}
	if c.TrainLimit < 0 {
		return config.Invalid("train_limit", c.TrainLimit)
	}
	if c.TestLimit < 0 {
		return config.Invalid("test_limit", c.TestLimit)
	}
	if c.Predictions < 0 {
		return config.Invalid("predictions", c.Predictions)
	}
	if c.Preview < 0 || c.Preview > 100 {
		return config.Invalid("preview", c.Preview)
	}
	for file := range c.Checksums {
		if !known(file) {
			return config.Invalid("checksums", file)
		}
	}
	return nil
}

func known(file string) bool {
	for _, name := range mnist.Files {
		if file == name+".gz" {
			return true
		}
	}
	return false
}
