package core

import (
	"context"
	"sync/atomic"
)

// FeatureExtractor turns an email into a fixed-length numeric feature vector.
// The fitted vocabulary travels with the snapshot, so extraction is
// deterministic for a given snapshot.
type FeatureExtractor interface {
	// Extract returns the feature vector for an email. Output length is
	// always Dim(), regardless of input; empty fields yield zero features.
	Extract(email *Email) []float64

	// Dim returns the constant feature vector length.
	Dim() int
}

// BaseLearner is a trained probabilistic classifier over feature vectors.
type BaseLearner interface {
	// Name identifies the learner family (forest, boosted, linear).
	Name() string

	// PredictProba returns a probability per vocabulary category, in
	// vocabulary order, summing to 1.
	PredictProba(vector []float64) []float64
}

// PredictionCache fronts the ensemble on the serving path. Implementations
// must be safe for concurrent use and must treat entries written under a
// different model version as misses.
type PredictionCache interface {
	// Get returns the cached result for a fingerprint if it was produced
	// under modelVersion. A stale or missing entry is a miss.
	Get(ctx context.Context, fingerprint, modelVersion string) (*ClassificationResult, bool)

	// Put stores a result under its fingerprint. Errors are swallowed by
	// implementations: caching is a side-effect optimization and must never
	// affect classification correctness.
	Put(ctx context.Context, fingerprint string, result *ClassificationResult)

	// Stop releases any background resources.
	Stop()
}

// SnapshotStore persists model snapshots, append-only with one current marker.
type SnapshotStore interface {
	// SaveSnapshot appends a snapshot. If markCurrent is true the current
	// marker moves to it atomically.
	SaveSnapshot(ctx context.Context, snapshot *ModelSnapshot, markCurrent bool) error

	// LoadCurrent returns the deployed snapshot, or ErrNoSnapshot.
	LoadCurrent(ctx context.Context) (*ModelSnapshot, error)
}

// FeedbackStore is the durable queue of user corrections.
type FeedbackStore interface {
	// AppendFeedback stores a new unconsumed sample.
	AppendFeedback(ctx context.Context, sample *FeedbackSample) error

	// AllFeedback returns every stored sample, oldest first.
	AllFeedback(ctx context.Context) ([]*FeedbackSample, error)

	// CountUnconsumed returns the number of samples not yet folded into a
	// promoted snapshot.
	CountUnconsumed(ctx context.Context) (int, error)

	// MarkConsumed flips the consumed flag for the given sample IDs.
	MarkConsumed(ctx context.Context, ids []string) error
}

// ClassificationLog is the append-only audit log of served classifications.
type ClassificationLog interface {
	AppendRecord(ctx context.Context, record *LogRecord) error
}

// Retrainer triggers the retraining state machine.
type Retrainer interface {
	Retrain(ctx context.Context, force bool) (*RetrainReport, error)
}

// Deployment is the single atomically-swappable handle to the deployed
// snapshot. Readers load a complete snapshot reference; the retraining
// controller swaps it at promotion. There is never a window where a reader
// observes a mix of old extractor state and new learners.
type Deployment struct {
	current atomic.Pointer[ModelSnapshot]
}

// NewDeployment creates a deployment handle, optionally pre-loaded.
func NewDeployment(snapshot *ModelSnapshot) *Deployment {
	d := &Deployment{}
	if snapshot != nil {
		d.current.Store(snapshot)
	}
	return d
}

// Current returns the deployed snapshot, or nil before first deployment.
func (d *Deployment) Current() *ModelSnapshot {
	return d.current.Load()
}

// Swap atomically replaces the deployed snapshot.
func (d *Deployment) Swap(snapshot *ModelSnapshot) {
	d.current.Store(snapshot)
}
