package learners

import (
	"math"
	"math/rand"
)

// ForestConfig tunes the bagged-tree learner.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

// DefaultForestConfig returns the production defaults.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{Trees: 25, MaxDepth: 12, MinLeaf: 1, Seed: 17}
}

// Forest is a bagged ensemble of randomized decision trees: each tree is
// trained on a bootstrap sample with a random sqrt-sized feature subset per
// split, and prediction averages the leaf distributions.
type Forest struct {
	Trees   []*TreeNode `json:"trees"`
	Classes int         `json:"classes"`
}

// TrainForest fits a forest on the given vectors and label indices.
// Deterministic for a fixed config seed.
func TrainForest(x [][]float64, y []int, classes int, cfg ForestConfig) *Forest {
	rng := rand.New(rand.NewSource(cfg.Seed))
	dim := 0
	if len(x) > 0 {
		dim = len(x[0])
	}
	featsPerSplit := int(math.Sqrt(float64(dim)))
	if featsPerSplit < 1 {
		featsPerSplit = 1
	}

	trees := make([]*TreeNode, cfg.Trees)
	for t := range trees {
		boot := make([]int, len(x))
		for i := range boot {
			boot[i] = rng.Intn(len(x))
		}
		trees[t] = buildClassTree(x, y, boot, classes, 0, cfg.MaxDepth, cfg.MinLeaf, featsPerSplit, rng)
	}
	return &Forest{Trees: trees, Classes: classes}
}

// Name implements core.BaseLearner.
func (f *Forest) Name() string { return "forest" }

// PredictProba implements core.BaseLearner by averaging leaf distributions
// across all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	probs := make([]float64, f.Classes)
	for _, tree := range f.Trees {
		for i, p := range tree.predictProbs(x) {
			probs[i] += p
		}
	}
	for i := range probs {
		probs[i] /= float64(len(f.Trees))
	}
	return probs
}
