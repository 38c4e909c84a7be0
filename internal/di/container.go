package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/store"
	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/factory"
	"github.com/mikey/mail-classifier/internal/learners"
	"github.com/mikey/mail-classifier/internal/logging"
	"github.com/mikey/mail-classifier/internal/observability/metrics"
	"github.com/mikey/mail-classifier/internal/textproc"
	"github.com/mikey/mail-classifier/internal/training"
)

// BuildContainer creates and configures a dependency injection container.
// verbose and jsonLog come from CLI flags and take precedence over the
// logging configuration.
func BuildContainer(verbose, jsonLog bool) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		if verbose || jsonLog {
			return logging.InitConsoleLogger(verbose, jsonLog)
		}
		return logging.InitLogger(cfg)
	}); err != nil {
		return nil, err
	}

	// Register metrics
	if err := container.Provide(metrics.NewEngineMetrics); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}

	// Register the engine store and its port views
	if err := container.Provide(func(f *factory.StoreFactory) (*store.SQLiteStore, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.SQLiteStore) core.SnapshotStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.SQLiteStore) core.FeedbackStore { return s }); err != nil {
		return nil, err
	}
	if err := container.Provide(func(s *store.SQLiteStore) core.ClassificationLog { return s }); err != nil {
		return nil, err
	}

	// Register prediction cache
	if err := container.Provide(func(f *factory.CacheFactory) (core.PredictionCache, error) {
		return f.CreatePredictionCache()
	}); err != nil {
		return nil, err
	}

	// Register the deployment handle, loaded from the current snapshot if
	// one exists. Serving commands require one; bootstrap creates it.
	if err := container.Provide(func(snapshots core.SnapshotStore) (*core.Deployment, error) {
		snapshot, err := snapshots.LoadCurrent(context.Background())
		if err != nil {
			if err == core.ErrNoSnapshot {
				return core.NewDeployment(nil), nil
			}
			return nil, err
		}
		return core.NewDeployment(snapshot), nil
	}); err != nil {
		return nil, err
	}

	// Register trainer and retraining controller
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *training.Trainer {
		return training.NewTrainer(cfg.GetTraining(), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		deployment *core.Deployment,
		snapshots core.SnapshotStore,
		feedback core.FeedbackStore,
		trainer *training.Trainer,
		logger *zap.Logger,
		m *metrics.EngineMetrics,
	) *training.Controller {
		trainCfg := cfg.GetTraining()
		return training.NewController(
			deployment, snapshots, feedback, trainer, logger, m,
			trainCfg.FeedbackThreshold, trainCfg.MinImprovement,
			trainCfg.HoldoutFraction, trainCfg.Seed,
		)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(c *training.Controller) core.Retrainer { return c }); err != nil {
		return nil, err
	}

	// Register classifier service
	if err := container.Provide(func(
		cfg *config.Config,
		deployment *core.Deployment,
		cache core.PredictionCache,
		feedback core.FeedbackStore,
		log core.ClassificationLog,
		retrainer core.Retrainer,
		logger *zap.Logger,
		m *metrics.EngineMetrics,
		cacheFactory *factory.CacheFactory,
	) *core.ClassifierService {
		return core.NewClassifierService(
			deployment, cache, feedback, log, retrainer,
			textproc.Fingerprint, learners.Combine, logger, m,
			cacheFactory.IsCacheEnabled(), cfg.GetEngine().BatchWorkers,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
