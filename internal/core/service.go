package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ClassificationObserver receives serving-path events, typically for metrics.
type ClassificationObserver interface {
	ObserveClassification(category string, fromCache bool)
	ObserveFeedback()
}

// Fingerprinter computes the cache key for an email's normalized text.
type Fingerprinter func(subject, body string) string

// Combiner soft-votes per-learner distributions into a winning category
// index and the averaged distribution. Injected so the voting rule lives
// in one place; core cannot import the learners package that owns it.
type Combiner func(dists ...[]float64) (winner int, avg []float64)

// ClassifierService is the core serving surface of the engine: it fronts
// the deployed ensemble with the prediction cache, records every served
// classification, and accepts user corrections.
type ClassifierService struct {
	deployment   *Deployment
	cache        PredictionCache
	feedback     FeedbackStore
	log          ClassificationLog
	retrainer    Retrainer
	fingerprint  Fingerprinter
	combine      Combiner
	logger       *zap.Logger
	observer     ClassificationObserver
	cacheEnabled bool
	batchWorkers int
}

// NewClassifierService creates the serving service. observer may be nil.
func NewClassifierService(
	deployment *Deployment,
	cache PredictionCache,
	feedback FeedbackStore,
	log ClassificationLog,
	retrainer Retrainer,
	fingerprint Fingerprinter,
	combine Combiner,
	logger *zap.Logger,
	observer ClassificationObserver,
	cacheEnabled bool,
	batchWorkers int,
) *ClassifierService {
	if batchWorkers < 1 {
		batchWorkers = 1
	}
	return &ClassifierService{
		deployment:   deployment,
		cache:        cache,
		feedback:     feedback,
		log:          log,
		retrainer:    retrainer,
		fingerprint:  fingerprint,
		combine:      combine,
		logger:       logger,
		observer:     observer,
		cacheEnabled: cacheEnabled,
		batchWorkers: batchWorkers,
	}
}

// Classify classifies a single email. With the cache enabled, a hit under
// the deployed model version is returned as-is apart from FromCache;
// observable category, confidence and distribution are identical either
// way.
func (s *ClassifierService) Classify(ctx context.Context, email *Email) (*ClassificationResult, error) {
	snapshot := s.deployment.Current()
	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	fingerprint := s.fingerprint(email.Subject, email.Body)

	if s.cacheEnabled {
		if cached, ok := s.cache.Get(ctx, fingerprint, snapshot.Version); ok {
			s.logger.Debug("Prediction cache hit", zap.String("fingerprint", fingerprint))
			hit := *cached
			hit.FromCache = true
			s.record(ctx, fingerprint, &hit)
			return &hit, nil
		}
	}

	result := s.predict(snapshot, email)
	if s.cacheEnabled {
		s.cache.Put(ctx, fingerprint, result)
	}
	s.record(ctx, fingerprint, result)
	return result, nil
}

// ClassifyBatch classifies emails concurrently and returns results in input
// order. Output is identical to calling Classify once per item; only
// throughput differs.
func (s *ClassifierService) ClassifyBatch(ctx context.Context, emails []*Email) ([]*ClassificationResult, error) {
	results := make([]*ClassificationResult, len(emails))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)
	for i, email := range emails {
		g.Go(func() error {
			result, err := s.Classify(ctx, email)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// predict runs the ensemble: extract once, ask every learner, soft-vote.
func (s *ClassifierService) predict(snapshot *ModelSnapshot, email *Email) *ClassificationResult {
	vector := snapshot.Extractor.Extract(email)

	dists := make([][]float64, len(snapshot.Learners))
	for i, learner := range snapshot.Learners {
		dists[i] = learner.PredictProba(vector)
	}
	winner, avg := s.combine(dists...)

	distribution := make(map[Category]float64, len(avg))
	for i, p := range avg {
		distribution[Categories[i]] = p
	}
	return &ClassificationResult{
		Category:     Categories[winner],
		Confidence:   avg[winner],
		Distribution: distribution,
		ModelVersion: snapshot.Version,
		ProcessingID: uuid.NewString(),
		ClassifiedAt: time.Now().UTC(),
	}
}

// record appends to the classification log and counts the serve. Log
// failures are reported but never fail the classification.
func (s *ClassifierService) record(ctx context.Context, fingerprint string, result *ClassificationResult) {
	if s.observer != nil {
		s.observer.ObserveClassification(string(result.Category), result.FromCache)
	}
	err := s.log.AppendRecord(ctx, &LogRecord{
		Fingerprint:  fingerprint,
		Category:     result.Category,
		Confidence:   result.Confidence,
		ModelVersion: result.ModelVersion,
		FromCache:    result.FromCache,
		ClassifiedAt: result.ClassifiedAt,
	})
	if err != nil {
		s.logger.Error("Failed to append classification log", zap.Error(err))
	}
}

// SubmitFeedback validates and stores a user correction. A category outside
// the vocabulary is rejected and nothing is stored.
func (s *ClassifierService) SubmitFeedback(ctx context.Context, text string, corrected Category) error {
	if CategoryIndex(corrected) < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, corrected)
	}
	sample := &FeedbackSample{
		ID:        uuid.NewString(),
		Text:      text,
		Category:  corrected,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.feedback.AppendFeedback(ctx, sample); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	if s.observer != nil {
		s.observer.ObserveFeedback()
	}
	s.logger.Debug("Accepted feedback sample",
		zap.String("id", sample.ID),
		zap.String("category", string(corrected)))
	return nil
}

// Retrain triggers the retraining state machine.
func (s *ClassifierService) Retrain(ctx context.Context, force bool) (*RetrainReport, error) {
	return s.retrainer.Retrain(ctx, force)
}

// ModelStatus reports the deployed snapshot and pending feedback volume.
func (s *ClassifierService) ModelStatus(ctx context.Context) (*ModelStatus, error) {
	snapshot := s.deployment.Current()
	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	unconsumed, err := s.feedback.CountUnconsumed(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unconsumed feedback: %w", err)
	}
	return &ModelStatus{
		DeployedVersion:    snapshot.Version,
		DeployedAccuracy:   snapshot.HeldOutAccuracy,
		UnconsumedFeedback: unconsumed,
	}, nil
}
