package training

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
)

type fakeSnapshotStore struct {
	mu      sync.Mutex
	current *core.ModelSnapshot
	saved   []*core.ModelSnapshot
}

func (s *fakeSnapshotStore) SaveSnapshot(ctx context.Context, snapshot *core.ModelSnapshot, markCurrent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, snapshot)
	if markCurrent {
		s.current = snapshot
	}
	return nil
}

func (s *fakeSnapshotStore) LoadCurrent(ctx context.Context) (*core.ModelSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, core.ErrNoSnapshot
	}
	return s.current, nil
}

type fakeFeedbackStore struct {
	mu      sync.Mutex
	samples []*core.FeedbackSample
}

func (s *fakeFeedbackStore) AppendFeedback(ctx context.Context, sample *core.FeedbackSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeFeedbackStore) AllFeedback(ctx context.Context) ([]*core.FeedbackSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.FeedbackSample, len(s.samples))
	copy(out, s.samples)
	return out, nil
}

func (s *fakeFeedbackStore) CountUnconsumed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sample := range s.samples {
		if !sample.Consumed {
			count++
		}
	}
	return count, nil
}

func (s *fakeFeedbackStore) MarkConsumed(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	for _, sample := range s.samples {
		if idSet[sample.ID] {
			sample.Consumed = true
		}
	}
	return nil
}

func (s *fakeFeedbackStore) add(text string, category core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, &core.FeedbackSample{
		ID:        fmt.Sprintf("fb-%d", len(s.samples)),
		Text:      text,
		Category:  category,
		CreatedAt: time.Now(),
	})
}

func strongTrainingConfig() config.TrainingConfig {
	return config.TrainingConfig{
		VocabSize:           300,
		FeedbackThreshold:   100,
		MinImprovement:      0.01,
		HoldoutFraction:     0.2,
		Seed:                42,
		ForestTrees:         15,
		ForestMaxDepth:      10,
		BoostedRounds:       20,
		BoostedMaxDepth:     3,
		BoostedLearningRate: 0.1,
		LinearEpochs:        150,
		LinearLearningRate:  0.5,
		LinearL2:            1e-4,
	}
}

// weakTrainingConfig deliberately cripples the learners so that a properly
// configured candidate clears the promotion gate.
func weakTrainingConfig() config.TrainingConfig {
	cfg := strongTrainingConfig()
	cfg.VocabSize = 3
	cfg.ForestTrees = 1
	cfg.ForestMaxDepth = 1
	cfg.BoostedRounds = 1
	cfg.LinearEpochs = 1
	return cfg
}

func newTestController(t *testing.T, trainerCfg config.TrainingConfig, threshold int, minImprovement float64) (*Controller, *core.Deployment, *fakeSnapshotStore, *fakeFeedbackStore) {
	t.Helper()
	deployment := core.NewDeployment(nil)
	snapshots := &fakeSnapshotStore{}
	feedback := &fakeFeedbackStore{}
	trainer := NewTrainer(trainerCfg, zap.NewNop())
	controller := NewController(deployment, snapshots, feedback, trainer, zap.NewNop(), nil,
		threshold, minImprovement, 0.2, 42)
	return controller, deployment, snapshots, feedback
}

func TestBootstrapDeploysInitialSnapshot(t *testing.T) {
	controller, deployment, snapshots, _ := newTestController(t, strongTrainingConfig(), 100, 0.01)

	snapshot, err := controller.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if deployment.Current() != snapshot {
		t.Fatal("bootstrap should deploy the trained snapshot")
	}
	if snapshots.current != snapshot {
		t.Fatal("bootstrap should persist the snapshot as current")
	}
	if snapshot.HeldOutAccuracy <= 0.5 {
		t.Fatalf("seed-corpus model should beat chance by a wide margin, accuracy %v", snapshot.HeldOutAccuracy)
	}

	// A second bootstrap is a no-op.
	again, err := controller.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	if again != snapshot {
		t.Fatal("second bootstrap must not replace the deployed snapshot")
	}
}

func TestRetrainSkippedBelowThreshold(t *testing.T) {
	controller, deployment, _, feedback := newTestController(t, strongTrainingConfig(), 100, 0.01)
	if _, err := controller.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	before := deployment.Current().Version

	for i := 0; i < 99; i++ {
		feedback.add(fmt.Sprintf("free prize winner click now offer %d", i), core.CategorySpam)
	}
	report, err := controller.Retrain(context.Background(), false)
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if report.Status != core.RetrainSkipped {
		t.Fatalf("99 of 100 samples should skip, got %s", report.Status)
	}
	if deployment.Current().Version != before {
		t.Fatal("skipped retrain must not touch the deployment")
	}

	// The hundredth sample arms the trigger; the run must now reach a
	// terminal deployed/rejected outcome.
	feedback.add("free prize winner click now final offer", core.CategorySpam)
	report, err = controller.Retrain(context.Background(), false)
	if err != nil {
		t.Fatalf("retrain at threshold: %v", err)
	}
	if report.Status != core.RetrainDeployed && report.Status != core.RetrainRejected {
		t.Fatalf("at threshold the run must complete, got %s", report.Status)
	}
}

func TestRetrainRejectionLeavesDeploymentUntouched(t *testing.T) {
	// An impossible improvement bar forces rejection.
	controller, deployment, _, feedback := newTestController(t, strongTrainingConfig(), 1, 1.0)
	if _, err := controller.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	before := deployment.Current().Version

	feedback.add("your invoice is overdue please pay the balance", core.CategoryBilling)
	feedback.add("payment failed update billing information", core.CategoryBilling)

	report, err := controller.Retrain(context.Background(), true)
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if report.Status != core.RetrainRejected {
		t.Fatalf("expected rejected, got %s", report.Status)
	}
	if deployment.Current().Version != before {
		t.Fatal("rejected retrain must leave the deployed snapshot unchanged")
	}
	unconsumed, _ := feedback.CountUnconsumed(context.Background())
	if unconsumed != 2 {
		t.Fatalf("rejected retrain must leave feedback unconsumed, got %d", unconsumed)
	}
	if controller.State() != StateIdle {
		t.Fatalf("controller should return to idle, state %s", controller.State())
	}
}

func TestRetrainPromotesImprovedCandidate(t *testing.T) {
	// Deploy a crippled incumbent, then retrain with a proper trainer:
	// the candidate must clear the gate and swap in atomically.
	deployment := core.NewDeployment(nil)
	snapshots := &fakeSnapshotStore{}
	feedback := &fakeFeedbackStore{}

	weak := NewController(deployment, snapshots, feedback,
		NewTrainer(weakTrainingConfig(), zap.NewNop()), zap.NewNop(), nil, 1, 0.01, 0.2, 42)
	if _, err := weak.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap weak incumbent: %v", err)
	}
	incumbent := deployment.Current()

	strong := NewController(deployment, snapshots, feedback,
		NewTrainer(strongTrainingConfig(), zap.NewNop()), zap.NewNop(), nil, 1, 0.01, 0.2, 42)

	feedback.add("winner claim your free prize click now", core.CategorySpam)
	feedback.add("quarterly budget review meeting with the project team", core.CategoryWork)

	report, err := strong.Retrain(context.Background(), true)
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if report.Status != core.RetrainDeployed {
		t.Fatalf("expected deployed, got %s (%s)", report.Status, report.Reason)
	}
	if report.NewAccuracy-report.OldAccuracy < 0.01 {
		t.Fatalf("promotion must clear the gate: old %v new %v", report.OldAccuracy, report.NewAccuracy)
	}
	promoted := deployment.Current()
	if promoted == incumbent {
		t.Fatal("promotion must swap the deployed snapshot")
	}
	if snapshots.current != promoted {
		t.Fatal("promoted snapshot must be persisted as current")
	}
	unconsumed, _ := feedback.CountUnconsumed(context.Background())
	if unconsumed != 0 {
		t.Fatalf("promotion must consume folded-in feedback, %d left", unconsumed)
	}
}

func TestRetrainWithoutDeploymentFails(t *testing.T) {
	controller, _, _, _ := newTestController(t, strongTrainingConfig(), 1, 0.01)
	if _, err := controller.Retrain(context.Background(), true); err != core.ErrNoSnapshot {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestStateStringNames(t *testing.T) {
	states := map[State]string{
		StateIdle:       "idle",
		StateTraining:   "training",
		StateEvaluating: "evaluating",
		StatePromoting:  "promoting",
		StateRejected:   "rejected",
	}
	for state, want := range states {
		if state.String() != want {
			t.Fatalf("state %d: got %q want %q", state, state.String(), want)
		}
	}
}
