package config

// EngineConfig represents the configuration for the serving engine
type EngineConfig struct {
	BatchWorkers int
}

// CacheConfig represents the configuration for the prediction cache
type CacheConfig struct {
	Type       string
	Enabled    bool
	Capacity   int
	SQLitePath string
	MySQLDSN   string
}

// StorageConfig represents the configuration for the engine store
type StorageConfig struct {
	SQLitePath string
}

// TrainingConfig represents the configuration for model training
type TrainingConfig struct {
	VocabSize           int
	FeedbackThreshold   int
	MinImprovement      float64
	HoldoutFraction     float64
	Seed                int64
	ForestTrees         int
	ForestMaxDepth      int
	BoostedRounds       int
	BoostedMaxDepth     int
	BoostedLearningRate float64
	LinearEpochs        int
	LinearLearningRate  float64
	LinearL2            float64
}

// GetEngine returns the engine configuration
func (c *Config) GetEngine() EngineConfig {
	return EngineConfig{
		BatchWorkers: c.GetInt("engine.batch_workers"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:       c.GetString("cache.type"),
		Enabled:    c.GetBool("cache.enabled"),
		Capacity:   c.GetInt("cache.capacity"),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
	}
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		SQLitePath: c.GetString("storage.sqlite_path"),
	}
}

// GetTraining returns the training configuration
func (c *Config) GetTraining() TrainingConfig {
	return TrainingConfig{
		VocabSize:           c.GetInt("training.vocab_size"),
		FeedbackThreshold:   c.GetInt("training.feedback_threshold"),
		MinImprovement:      c.GetFloat64("training.min_improvement"),
		HoldoutFraction:     c.GetFloat64("training.holdout_fraction"),
		Seed:                c.GetInt64("training.seed"),
		ForestTrees:         c.GetInt("training.forest_trees"),
		ForestMaxDepth:      c.GetInt("training.forest_max_depth"),
		BoostedRounds:       c.GetInt("training.boosted_rounds"),
		BoostedMaxDepth:     c.GetInt("training.boosted_max_depth"),
		BoostedLearningRate: c.GetFloat64("training.boosted_learning_rate"),
		LinearEpochs:        c.GetInt("training.linear_epochs"),
		LinearLearningRate:  c.GetFloat64("training.linear_learning_rate"),
		LinearL2:            c.GetFloat64("training.linear_l2"),
	}
}
