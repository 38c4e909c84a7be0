package training

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/core"
)

// State is the retraining state machine's position. Idle accumulates
// feedback; a triggered run walks Training, Evaluating, then Promoting or
// Rejected, and returns to Idle.
type State int32

const (
	StateIdle State = iota
	StateTraining
	StateEvaluating
	StatePromoting
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTraining:
		return "training"
	case StateEvaluating:
		return "evaluating"
	case StatePromoting:
		return "promoting"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Observer receives terminal retraining outcomes, typically for metrics.
type Observer interface {
	ObserveRetrain(status string)
}

// Controller orchestrates candidate training and atomic promotion. It owns
// the deployment handle's write side: every swap of the deployed snapshot
// goes through here. Training runs hold no lock that serving depends on;
// the only contention with classification is the pointer swap itself.
type Controller struct {
	deployment *core.Deployment
	snapshots  core.SnapshotStore
	feedback   core.FeedbackStore
	trainer    *Trainer
	logger     *zap.Logger
	observer   Observer

	feedbackThreshold int
	minImprovement    float64
	holdoutFraction   float64
	splitSeed         int64

	state atomic.Int32
}

// NewController creates a retraining controller. observer may be nil.
func NewController(
	deployment *core.Deployment,
	snapshots core.SnapshotStore,
	feedback core.FeedbackStore,
	trainer *Trainer,
	logger *zap.Logger,
	observer Observer,
	feedbackThreshold int,
	minImprovement float64,
	holdoutFraction float64,
	splitSeed int64,
) *Controller {
	return &Controller{
		deployment:        deployment,
		snapshots:         snapshots,
		feedback:          feedback,
		trainer:           trainer,
		logger:            logger,
		observer:          observer,
		feedbackThreshold: feedbackThreshold,
		minImprovement:    minImprovement,
		holdoutFraction:   holdoutFraction,
		splitSeed:         splitSeed,
	}
}

// State returns the current state machine position.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Bootstrap trains and deploys the initial snapshot from the seed corpus.
// There is no incumbent, so the improvement gate does not apply. A no-op
// when a snapshot is already deployed.
func (c *Controller) Bootstrap(ctx context.Context) (*core.ModelSnapshot, error) {
	if current := c.deployment.Current(); current != nil {
		return current, nil
	}
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateTraining)) {
		return nil, core.ErrTrainingInProgress
	}
	defer c.state.Store(int32(StateIdle))

	corpus, err := SeedCorpus()
	if err != nil {
		return nil, fmt.Errorf("load seed corpus: %w", err)
	}
	train, held, err := StratifiedSplit(corpus, c.holdoutFraction, c.splitSeed)
	if err != nil {
		return nil, fmt.Errorf("split seed corpus: %w", err)
	}
	snapshot, err := c.trainer.Train(train, held)
	if err != nil {
		return nil, fmt.Errorf("train bootstrap snapshot: %w", err)
	}
	if err := c.snapshots.SaveSnapshot(ctx, snapshot, true); err != nil {
		return nil, fmt.Errorf("persist bootstrap snapshot: %w", err)
	}
	c.deployment.Swap(snapshot)
	c.logger.Info("Bootstrapped initial model",
		zap.String("version", snapshot.Version),
		zap.Float64("held_out_accuracy", snapshot.HeldOutAccuracy))
	return snapshot, nil
}

// Retrain triggers the state machine. Below the feedback threshold without
// force, or while a run is already in progress, the trigger is a no-op and
// reports skipped. A failed or non-improving candidate is discarded and the
// incumbent keeps serving untouched; feedback stays unconsumed for the next
// trigger. Retraining is never retried automatically.
func (c *Controller) Retrain(ctx context.Context, force bool) (*core.RetrainReport, error) {
	deployed := c.deployment.Current()
	if deployed == nil {
		return nil, core.ErrNoSnapshot
	}

	unconsumed, err := c.feedback.CountUnconsumed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unconsumed feedback: %w", err)
	}
	if !force && unconsumed < c.feedbackThreshold {
		return c.finish(&core.RetrainReport{
			Status:      core.RetrainSkipped,
			OldAccuracy: deployed.HeldOutAccuracy,
			Reason:      fmt.Sprintf("%d unconsumed samples below threshold %d", unconsumed, c.feedbackThreshold),
		}), nil
	}

	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateTraining)) {
		return c.finish(&core.RetrainReport{
			Status:      core.RetrainSkipped,
			OldAccuracy: deployed.HeldOutAccuracy,
			Reason:      "training already in progress",
		}), nil
	}
	defer c.state.Store(int32(StateIdle))

	report, err := c.run(ctx, deployed)
	if err != nil {
		return nil, err
	}
	return c.finish(report), nil
}

func (c *Controller) run(ctx context.Context, deployed *core.ModelSnapshot) (*core.RetrainReport, error) {
	samples, feedbackIDs, err := c.assembleCorpus(ctx)
	if err != nil {
		return nil, err
	}

	train, held, err := StratifiedSplit(samples, c.holdoutFraction, c.splitSeed)
	if err != nil {
		return c.reject(deployed, 0, len(samples), fmt.Sprintf("split failed: %v", err)), nil
	}

	candidate, err := c.trainer.Train(train, held)
	if err != nil {
		return c.reject(deployed, 0, len(samples), fmt.Sprintf("training failed: %v", err)), nil
	}

	c.state.Store(int32(StateEvaluating))
	deployedAccuracy := Evaluate(deployed, held)
	improvement := candidate.HeldOutAccuracy - deployedAccuracy
	c.logger.Info("Evaluated candidate against deployed model",
		zap.String("candidate", candidate.Version),
		zap.String("deployed", deployed.Version),
		zap.Float64("candidate_accuracy", candidate.HeldOutAccuracy),
		zap.Float64("deployed_accuracy", deployedAccuracy),
		zap.Float64("improvement", improvement))

	if improvement < c.minImprovement {
		return c.reject(deployed, candidate.HeldOutAccuracy, len(samples),
			fmt.Sprintf("improvement %.4f below minimum %.4f", improvement, c.minImprovement)), nil
	}

	c.state.Store(int32(StatePromoting))
	if err := c.snapshots.SaveSnapshot(ctx, candidate, true); err != nil {
		return c.reject(deployed, candidate.HeldOutAccuracy, len(samples),
			fmt.Sprintf("persist failed: %v", err)), nil
	}
	// The swap is the single point of contention with serving: in-flight
	// classifications see either the whole old snapshot or the whole new
	// one. Cache entries under the old version turn stale lazily via the
	// version check on read.
	c.deployment.Swap(candidate)
	if err := c.feedback.MarkConsumed(ctx, feedbackIDs); err != nil {
		c.logger.Error("Failed to mark feedback consumed after promotion", zap.Error(err))
	}

	c.logger.Info("Promoted candidate snapshot",
		zap.String("version", candidate.Version),
		zap.Float64("accuracy", candidate.HeldOutAccuracy))
	return &core.RetrainReport{
		Status:          core.RetrainDeployed,
		OldAccuracy:     deployedAccuracy,
		NewAccuracy:     candidate.HeldOutAccuracy,
		TrainingSamples: len(samples),
	}, nil
}

// assembleCorpus combines the seed corpus with all stored feedback:
// consumed samples are history, unconsumed are the new signal. The IDs of
// unconsumed samples are returned for consumption on promotion.
func (c *Controller) assembleCorpus(ctx context.Context) ([]Sample, []string, error) {
	seed, err := SeedCorpus()
	if err != nil {
		return nil, nil, fmt.Errorf("load seed corpus: %w", err)
	}
	feedback, err := c.feedback.AllFeedback(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load feedback: %w", err)
	}

	samples := make([]Sample, 0, len(seed)+len(feedback))
	samples = append(samples, seed...)
	var unconsumedIDs []string
	for _, fb := range feedback {
		samples = append(samples, Sample{Text: fb.Text, Category: fb.Category})
		if !fb.Consumed {
			unconsumedIDs = append(unconsumedIDs, fb.ID)
		}
	}
	return samples, unconsumedIDs, nil
}

func (c *Controller) reject(deployed *core.ModelSnapshot, candidateAccuracy float64, samples int, reason string) *core.RetrainReport {
	c.state.Store(int32(StateRejected))
	c.logger.Warn("Rejected candidate snapshot",
		zap.String("deployed", deployed.Version),
		zap.String("reason", reason))
	return &core.RetrainReport{
		Status:          core.RetrainRejected,
		OldAccuracy:     deployed.HeldOutAccuracy,
		NewAccuracy:     candidateAccuracy,
		TrainingSamples: samples,
		Reason:          reason,
	}
}

func (c *Controller) finish(report *core.RetrainReport) *core.RetrainReport {
	if c.observer != nil {
		c.observer.ObserveRetrain(string(report.Status))
	}
	return report
}
