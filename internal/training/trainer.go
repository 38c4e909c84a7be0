package training

import (
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/features"
	"github.com/mikey/mail-classifier/internal/learners"
	"github.com/mikey/mail-classifier/internal/textproc"
)

// Trainer builds candidate model snapshots from labeled corpora: a fresh
// feature extractor fit plus three fresh base learners, all from scratch.
type Trainer struct {
	cfg    config.TrainingConfig
	logger *zap.Logger
}

// NewTrainer creates a trainer.
func NewTrainer(cfg config.TrainingConfig, logger *zap.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: logger}
}

// Train fits a candidate snapshot on the train partition and records its
// accuracy on the held-out partition. The returned snapshot is complete and
// immutable; nothing about the deployed model is touched.
func (t *Trainer) Train(train, held []Sample) (*core.ModelSnapshot, error) {
	started := time.Now()

	texts := make([]string, len(train))
	for i, s := range train {
		texts[i] = textproc.Normalize("", s.Text)
	}
	extractor := features.NewExtractor(texts, t.cfg.VocabSize)

	x := make([][]float64, len(train))
	y := make([]int, len(train))
	for i, s := range train {
		x[i] = extractor.ExtractText(s.Text)
		y[i] = core.CategoryIndex(s.Category)
	}
	classes := core.NumCategories()

	forest := learners.TrainForest(x, y, classes, learners.ForestConfig{
		Trees:    t.cfg.ForestTrees,
		MaxDepth: t.cfg.ForestMaxDepth,
		MinLeaf:  1,
		Seed:     t.cfg.Seed,
	})
	boosted := learners.TrainBoosted(x, y, classes, learners.BoostedConfig{
		Rounds:       t.cfg.BoostedRounds,
		MaxDepth:     t.cfg.BoostedMaxDepth,
		MinLeaf:      5,
		LearningRate: t.cfg.BoostedLearningRate,
		Seed:         t.cfg.Seed + 1,
	})
	linear := learners.TrainLinear(x, y, classes, learners.LinearConfig{
		Epochs:       t.cfg.LinearEpochs,
		LearningRate: t.cfg.LinearLearningRate,
		L2:           t.cfg.LinearL2,
	})

	snapshot := &core.ModelSnapshot{
		Version:         ulid.Make().String(),
		CreatedAt:       time.Now().UTC(),
		TrainingSamples: len(train) + len(held),
		Extractor:       extractor,
		Learners:        []core.BaseLearner{forest, boosted, linear},
	}
	snapshot.HeldOutAccuracy = Evaluate(snapshot, held)

	t.logger.Info("Trained candidate snapshot",
		zap.String("version", snapshot.Version),
		zap.Int("train_samples", len(train)),
		zap.Int("held_out_samples", len(held)),
		zap.Float64("held_out_accuracy", snapshot.HeldOutAccuracy),
		zap.Duration("elapsed", time.Since(started)))
	return snapshot, nil
}

// Evaluate returns micro-averaged accuracy of a snapshot on labeled samples:
// the plain fraction of correct predictions. Both sides of the promotion
// gate are measured on the same partition, so imbalance distorts them
// equally.
func Evaluate(snapshot *core.ModelSnapshot, samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		vector := snapshot.Extractor.Extract(&core.Email{Body: s.Text})
		winner, _ := learners.Predict(snapshot.Learners, vector)
		if core.Categories[winner] == s.Category {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
