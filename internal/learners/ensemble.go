package learners

import "github.com/mikey/mail-classifier/internal/core"

// Combine soft-votes any number of per-learner distributions: the final
// distribution is the per-category arithmetic mean, and the winner is its
// argmax. Ties resolve to the earliest category in vocabulary order, which
// the strict > comparison gives for free. Averaging (rather than majority
// voting) keeps calibrated uncertainty: a 51%-confident learner moves the
// outcome less than a 95%-confident one.
func Combine(dists ...[]float64) (winner int, avg []float64) {
	avg = make([]float64, len(dists[0]))
	for _, d := range dists {
		for i, p := range d {
			avg[i] += p
		}
	}
	winner = 0
	for i := range avg {
		avg[i] /= float64(len(dists))
		if avg[i] > avg[winner] {
			winner = i
		}
	}
	return winner, avg
}

// Predict runs every learner on a vector and soft-votes the results.
func Predict(models []core.BaseLearner, vector []float64) (winner int, avg []float64) {
	dists := make([][]float64, len(models))
	for i, m := range models {
		dists[i] = m.PredictProba(vector)
	}
	return Combine(dists...)
}
