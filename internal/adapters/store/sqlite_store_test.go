package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/training"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "engine.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// trainTinySnapshot produces a real snapshot cheaply; accuracy is
// irrelevant here, only that encode/decode preserves behavior.
func trainTinySnapshot(t *testing.T) *core.ModelSnapshot {
	t.Helper()
	corpus, err := training.SeedCorpus()
	if err != nil {
		t.Fatalf("seed corpus: %v", err)
	}
	train, held, err := training.StratifiedSplit(corpus, 0.2, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	trainer := training.NewTrainer(config.TrainingConfig{
		VocabSize:           60,
		HoldoutFraction:     0.2,
		Seed:                42,
		ForestTrees:         3,
		ForestMaxDepth:      4,
		BoostedRounds:       3,
		BoostedMaxDepth:     2,
		BoostedLearningRate: 0.1,
		LinearEpochs:        20,
		LinearLearningRate:  0.5,
		LinearL2:            1e-4,
	}, zap.NewNop())
	snapshot, err := trainer.Train(train, held)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return snapshot
}

func TestLoadCurrentEmptyStore(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.LoadCurrent(context.Background()); !errors.Is(err, core.ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	snapshot := trainTinySnapshot(t)

	if err := s.SaveSnapshot(ctx, snapshot, true); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	loaded, err := s.LoadCurrent(ctx)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}

	if loaded.Version != snapshot.Version {
		t.Fatalf("version %q != %q", loaded.Version, snapshot.Version)
	}
	if loaded.HeldOutAccuracy != snapshot.HeldOutAccuracy {
		t.Fatalf("accuracy %v != %v", loaded.HeldOutAccuracy, snapshot.HeldOutAccuracy)
	}
	if loaded.TrainingSamples != snapshot.TrainingSamples {
		t.Fatalf("training samples %d != %d", loaded.TrainingSamples, snapshot.TrainingSamples)
	}
	if len(loaded.Learners) != len(snapshot.Learners) {
		t.Fatalf("learner count %d != %d", len(loaded.Learners), len(snapshot.Learners))
	}

	// The decoded snapshot must predict bit-identically to the original.
	for _, text := range []string{
		"You have won $1,000,000! Click here now!",
		"Board meeting moved to 10 AM tomorrow",
		"Your invoice is attached",
	} {
		email := &core.Email{Body: text}
		before := snapshot.Extractor.Extract(email)
		after := loaded.Extractor.Extract(email)
		if len(before) != len(after) {
			t.Fatalf("extractor dim changed: %d != %d", len(before), len(after))
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("feature %d differs for %q: %v != %v", i, text, before[i], after[i])
			}
		}
		for j := range snapshot.Learners {
			pBefore := snapshot.Learners[j].PredictProba(before)
			pAfter := loaded.Learners[j].PredictProba(after)
			for k := range pBefore {
				if pBefore[k] != pAfter[k] {
					t.Fatalf("learner %s class %d differs: %v != %v",
						snapshot.Learners[j].Name(), k, pBefore[k], pAfter[k])
				}
			}
		}
	}
}

func TestCurrentMarkerIsUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	first := trainTinySnapshot(t)

	second := *first
	second.Version = first.Version + "-b"
	third := *first
	third.Version = first.Version + "-c"

	if err := s.SaveSnapshot(ctx, first, true); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.SaveSnapshot(ctx, &second, true); err != nil {
		t.Fatalf("save second: %v", err)
	}
	loaded, err := s.LoadCurrent(ctx)
	if err != nil {
		t.Fatalf("load current: %v", err)
	}
	if loaded.Version != second.Version {
		t.Fatalf("current marker did not move: %q", loaded.Version)
	}

	// Saving without the marker keeps the deployed snapshot in place.
	if err := s.SaveSnapshot(ctx, &third, false); err != nil {
		t.Fatalf("save third: %v", err)
	}
	loaded, err = s.LoadCurrent(ctx)
	if err != nil {
		t.Fatalf("load current after unmarked save: %v", err)
	}
	if loaded.Version != second.Version {
		t.Fatalf("unmarked save moved the marker to %q", loaded.Version)
	}
}

func TestFeedbackLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, category := range []core.Category{core.CategorySpam, core.CategoryWork, core.CategoryBilling} {
		err := s.AppendFeedback(ctx, &core.FeedbackSample{
			ID:        string(rune('a' + i)),
			Text:      "sample " + string(category),
			Category:  category,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append feedback %d: %v", i, err)
		}
	}

	count, err := s.CountUnconsumed(ctx)
	if err != nil {
		t.Fatalf("count unconsumed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 unconsumed, got %d", count)
	}

	samples, err := s.AllFeedback(ctx)
	if err != nil {
		t.Fatalf("all feedback: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	for i, want := range []string{"a", "b", "c"} {
		if samples[i].ID != want {
			t.Fatalf("feedback out of order at %d: %q", i, samples[i].ID)
		}
	}
	if samples[1].Category != core.CategoryWork {
		t.Fatalf("category not preserved: %q", samples[1].Category)
	}

	if err := s.MarkConsumed(ctx, []string{"a", "c"}); err != nil {
		t.Fatalf("mark consumed: %v", err)
	}
	count, err = s.CountUnconsumed(ctx)
	if err != nil {
		t.Fatalf("count after consume: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unconsumed, got %d", count)
	}
	samples, err = s.AllFeedback(ctx)
	if err != nil {
		t.Fatalf("all feedback after consume: %v", err)
	}
	if !samples[0].Consumed || samples[1].Consumed || !samples[2].Consumed {
		t.Fatalf("consumed flags wrong: %v %v %v",
			samples[0].Consumed, samples[1].Consumed, samples[2].Consumed)
	}

	if err := s.MarkConsumed(ctx, nil); err != nil {
		t.Fatalf("mark consumed with no ids: %v", err)
	}
}

func TestAppendRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := s.AppendRecord(ctx, &core.LogRecord{
			Fingerprint:  "abc123",
			Category:     core.CategorySpam,
			Confidence:   0.97,
			ModelVersion: "v1",
			FromCache:    i == 1,
			ClassifiedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("append record %d: %v", i, err)
		}
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}

	if _, err := s.LoadCurrent(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("LoadCurrent after close: %v", err)
	}
	if err := s.AppendFeedback(ctx, &core.FeedbackSample{ID: "x"}); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("AppendFeedback after close: %v", err)
	}
	if _, err := s.CountUnconsumed(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("CountUnconsumed after close: %v", err)
	}
}
