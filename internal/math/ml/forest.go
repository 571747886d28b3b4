package ml

import (
	"fmt"
	"math/rand"

	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog/log"
)

// ForestConfig holds the random forest parameters.
type ForestConfig struct {
	Trees int `json:"trees"`
	// Features is the number of candidate features per split, zero means sqrt(p).
	Features int   `json:"features"`
	Seed     int64 `json:"seed"`
	// Bins is the number of equal width intervals per feature of the discretised Tree, zero means 10.
	Bins int `json:"bins"`
}

// RandomForest is a voting ensemble of decision trees.
type RandomForest struct {
	cfg      ForestConfig
	forest   *randomforest.Forest
	features int
	classes  int
}

// NewForest creates a new random forest.
func NewForest(cfg ForestConfig) *RandomForest {
	return &RandomForest{
		cfg: cfg,
	}
}

// Fit grows the trees on the given data.
func (rf *RandomForest) Fit(x [][]float64, y []int) error {
	p, err := checkXY(x, y)
	if err != nil {
		return err
	}
	classes := 0
	for _, c := range y {
		if c < 0 {
			return fmt.Errorf("negative class %d: %w", c, ErrDimension)
		}
		if c+1 > classes {
			classes = c + 1
		}
	}
	// trees are grown from the global source
	rand.Seed(rf.cfg.Seed)
	forest := &randomforest.Forest{}
	forest.Data = randomforest.ForestData{X: x, Class: y}
	if rf.cfg.Features > 0 {
		forest.MFeatures = rf.cfg.Features
	}
	forest.Train(rf.cfg.Trees)
	rf.forest = forest
	rf.features = p
	rf.classes = classes
	log.Debug().
		Int("trees", rf.cfg.Trees).
		Int("rows", len(x)).
		Int("features", p).
		Msg("forest trained")
	return nil
}

// Vote returns the share of trees voting for each class.
func (rf *RandomForest) Vote(x []float64) ([]float64, error) {
	if rf.forest == nil {
		return nil, ErrNotTrained
	}
	if len(x) != rf.features {
		return nil, fmt.Errorf("input of size %d instead of %d: %w", len(x), rf.features, ErrDimension)
	}
	votes := rf.forest.Vote(x)
	// classes never seen in training get no votes
	probs := make([]float64, rf.classes)
	copy(probs, votes)
	return probs, nil
}

// Probabilities is an alias for Vote.
func (rf *RandomForest) Probabilities(x []float64) ([]float64, error) {
	return rf.Vote(x)
}

// Predict returns the class with most votes.
func (rf *RandomForest) Predict(x []float64) (int, error) {
	votes, err := rf.Vote(x)
	if err != nil {
		return 0, err
	}
	return ArgMax(votes), nil
}

// FeatureImportance returns the importance of each feature.
func (rf *RandomForest) FeatureImportance() ([]float64, error) {
	if rf.forest == nil {
		return nil, ErrNotTrained
	}
	importance := make([]float64, rf.features)
	copy(importance, rf.forest.FeatureImportance)
	return importance, nil
}
