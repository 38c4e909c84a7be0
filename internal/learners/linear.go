package learners

// LinearConfig tunes the multinomial linear learner.
type LinearConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// DefaultLinearConfig returns the production defaults.
func DefaultLinearConfig() LinearConfig {
	return LinearConfig{Epochs: 300, LearningRate: 0.5, L2: 1e-4}
}

// Linear is an L2-regularized multinomial (softmax) regression model trained
// with full-batch gradient descent from a zero initialization, which keeps
// training deterministic without a seed.
type Linear struct {
	// Weights is classes x (dim+1); the final column is the bias.
	Weights [][]float64 `json:"weights"`
}

// TrainLinear fits the linear learner on vectors and label indices.
func TrainLinear(x [][]float64, y []int, classes int, cfg LinearConfig) *Linear {
	n := len(x)
	dim := 0
	if n > 0 {
		dim = len(x[0])
	}
	w := make([][]float64, classes)
	for k := range w {
		w[k] = make([]float64, dim+1)
	}
	if n == 0 {
		return &Linear{Weights: w}
	}

	grad := make([][]float64, classes)
	for k := range grad {
		grad[k] = make([]float64, dim+1)
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for k := range grad {
			for j := range grad[k] {
				grad[k][j] = 0
			}
		}
		for i := 0; i < n; i++ {
			p := scoreProbs(w, x[i])
			for k := 0; k < classes; k++ {
				diff := p[k]
				if y[i] == k {
					diff -= 1
				}
				row := grad[k]
				for j, v := range x[i] {
					row[j] += diff * v
				}
				row[dim] += diff
			}
		}
		for k := 0; k < classes; k++ {
			for j := 0; j <= dim; j++ {
				g := grad[k][j]/float64(n) + cfg.L2*w[k][j]
				w[k][j] -= cfg.LearningRate * g
			}
		}
	}
	return &Linear{Weights: w}
}

func scoreProbs(w [][]float64, x []float64) []float64 {
	scores := make([]float64, len(w))
	for k, row := range w {
		s := row[len(row)-1]
		for j, v := range x {
			s += row[j] * v
		}
		scores[k] = s
	}
	return softmax(scores)
}

// Name implements core.BaseLearner.
func (l *Linear) Name() string { return "linear" }

// PredictProba implements core.BaseLearner.
func (l *Linear) PredictProba(x []float64) []float64 {
	return scoreProbs(l.Weights, x)
}
