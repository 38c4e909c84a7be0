package learners

import (
	"math"
	"math/rand"
)

// BoostedConfig tunes the gradient-boosted learner.
type BoostedConfig struct {
	Rounds       int
	MaxDepth     int
	MinLeaf      int
	LearningRate float64
	Seed         int64
}

// DefaultBoostedConfig returns the production defaults.
func DefaultBoostedConfig() BoostedConfig {
	return BoostedConfig{Rounds: 40, MaxDepth: 3, MinLeaf: 5, LearningRate: 0.1, Seed: 29}
}

// Boosted is a sequential ensemble of shallow regression trees fitted to the
// softmax residuals of the previous stage (one tree per class per round).
// Scores accumulate with a learning-rate weight and convert to probabilities
// through a softmax.
type Boosted struct {
	Stages       [][]*TreeNode `json:"stages"`
	Classes      int           `json:"classes"`
	LearningRate float64       `json:"learning_rate"`
}

// maxLeafValue caps Newton-step leaf estimates; near-pure leaves otherwise
// produce unbounded steps.
const maxLeafValue = 4.0

// TrainBoosted fits a boosted ensemble on vectors and label indices.
// Deterministic for a fixed config seed.
func TrainBoosted(x [][]float64, y []int, classes int, cfg BoostedConfig) *Boosted {
	rng := rand.New(rand.NewSource(cfg.Seed))
	n := len(x)
	dim := 0
	if n > 0 {
		dim = len(x[0])
	}
	featsPerSplit := int(math.Sqrt(float64(dim)))
	if featsPerSplit < 1 {
		featsPerSplit = 1
	}

	scores := make([][]float64, n)
	for i := range scores {
		scores[i] = make([]float64, classes)
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	stages := make([][]*TreeNode, 0, cfg.Rounds)
	residual := make([]float64, n)
	for round := 0; round < cfg.Rounds; round++ {
		stage := make([]*TreeNode, classes)
		for k := 0; k < classes; k++ {
			for i := 0; i < n; i++ {
				p := softmax(scores[i])
				target := 0.0
				if y[i] == k {
					target = 1.0
				}
				residual[i] = target - p[k]
			}
			leafFn := newtonLeaf(residual, classes)
			stage[k] = buildRegTree(x, residual, all, 0, cfg.MaxDepth, cfg.MinLeaf, featsPerSplit, rng, leafFn)
		}
		for i := 0; i < n; i++ {
			for k := 0; k < classes; k++ {
				scores[i][k] += cfg.LearningRate * stage[k].predictValue(x[i])
			}
		}
		stages = append(stages, stage)
	}
	return &Boosted{Stages: stages, Classes: classes, LearningRate: cfg.LearningRate}
}

// newtonLeaf returns the multinomial-deviance leaf estimate
// ((K-1)/K) * sum(r) / sum(|r|(1-|r|)), clamped to ±maxLeafValue.
func newtonLeaf(residual []float64, classes int) func(idx []int) float64 {
	return func(idx []int) float64 {
		var num, den float64
		for _, i := range idx {
			r := residual[i]
			num += r
			den += math.Abs(r) * (1 - math.Abs(r))
		}
		if den < 1e-10 {
			return 0
		}
		v := (float64(classes-1) / float64(classes)) * num / den
		if v > maxLeafValue {
			return maxLeafValue
		}
		if v < -maxLeafValue {
			return -maxLeafValue
		}
		return v
	}
}

// Name implements core.BaseLearner.
func (b *Boosted) Name() string { return "boosted" }

// PredictProba implements core.BaseLearner.
func (b *Boosted) PredictProba(x []float64) []float64 {
	scores := make([]float64, b.Classes)
	for _, stage := range b.Stages {
		for k, tree := range stage {
			scores[k] += b.LearningRate * tree.predictValue(x)
		}
	}
	return softmax(scores)
}

// softmax converts raw scores to a probability distribution, shifted by the
// max score for numeric stability.
func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
