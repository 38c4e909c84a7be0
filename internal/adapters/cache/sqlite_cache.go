package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mail-classifier/internal/core"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the PredictionCache port.
// Insertion order is tracked by rowid, which makes FIFO eviction a single
// DELETE. Storage errors degrade to cache-miss behavior; classification
// correctness is never sacrificed for caching.
type SQLiteCache struct {
	db       *sql.DB
	capacity int
	logger   *zap.Logger
	onEvict  func()
}

// NewSQLiteCache creates a new SQLite prediction cache.
func NewSQLiteCache(dbPath string, capacity int, logger *zap.Logger, onEvict func()) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_cache (
			fingerprint TEXT PRIMARY KEY,
			category TEXT,
			confidence REAL,
			distribution TEXT,
			model_version TEXT,
			processing_id TEXT,
			classified_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteCache{db: db, capacity: capacity, logger: logger, onEvict: onEvict}, nil
}

// Get retrieves a cached result, treating version mismatches and storage
// errors as misses. Stale entries are deleted on sight.
func (c *SQLiteCache) Get(ctx context.Context, fingerprint, modelVersion string) (*core.ClassificationResult, bool) {
	var category, distribution, version, processingID string
	var confidence float64
	var classifiedAt time.Time

	err := c.db.QueryRowContext(ctx, `
		SELECT category, confidence, distribution, model_version, processing_id, classified_at
		FROM prediction_cache
		WHERE fingerprint = ?
	`, fingerprint).Scan(&category, &confidence, &distribution, &version, &processingID, &classifiedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query prediction cache", zap.Error(err))
		}
		return nil, false
	}

	if version != modelVersion {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM prediction_cache WHERE fingerprint = ?`, fingerprint); err != nil {
			c.logger.Error("Failed to evict stale cache entry", zap.Error(err))
		} else if c.onEvict != nil {
			c.onEvict()
		}
		return nil, false
	}

	var dist map[core.Category]float64
	if err := json.Unmarshal([]byte(distribution), &dist); err != nil {
		c.logger.Error("Failed to decode cached distribution", zap.Error(err))
		return nil, false
	}

	return &core.ClassificationResult{
		Category:     core.Category(category),
		Confidence:   confidence,
		Distribution: dist,
		ModelVersion: version,
		ProcessingID: processingID,
		ClassifiedAt: classifiedAt,
	}, true
}

// Put stores a result and trims the table back to capacity, oldest rows first.
func (c *SQLiteCache) Put(ctx context.Context, fingerprint string, result *core.ClassificationResult) {
	distribution, err := json.Marshal(result.Distribution)
	if err != nil {
		c.logger.Error("Failed to encode distribution", zap.Error(err))
		return
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prediction_cache
			(fingerprint, category, confidence, distribution, model_version, processing_id, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fingerprint, string(result.Category), result.Confidence, string(distribution),
		result.ModelVersion, result.ProcessingID, result.ClassifiedAt)
	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err))
		return
	}

	res, err := c.db.ExecContext(ctx, `
		DELETE FROM prediction_cache
		WHERE rowid IN (
			SELECT rowid FROM prediction_cache
			ORDER BY rowid ASC
			LIMIT max((SELECT count(*) FROM prediction_cache) - ?, 0)
		)
	`, c.capacity)
	if err != nil {
		c.logger.Error("Failed to trim prediction cache", zap.Error(err))
		return
	}
	if evicted, err := res.RowsAffected(); err == nil && evicted > 0 && c.onEvict != nil {
		for i := int64(0); i < evicted; i++ {
			c.onEvict()
		}
	}
}

// Stop closes the database connection.
func (c *SQLiteCache) Stop() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite cache database", zap.Error(err))
	}
}
