package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/store"
	"github.com/mikey/mail-classifier/internal/config"
)

// StoreFactory creates the engine store based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{cfg: cfg, logger: logger}
}

// CreateStore opens the engine store
func (f *StoreFactory) CreateStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(f.cfg.GetStorage().SQLitePath, f.logger)
}
