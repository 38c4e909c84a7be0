package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mikey/mail-classifier/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the PredictionCache port, for
// deployments sharing one cache across several classifier instances. FIFO
// order comes from the auto-increment id.
type MySQLCache struct {
	db       *sql.DB
	capacity int
	logger   *zap.Logger
	onEvict  func()
}

// ensureParseTime forces parseTime on the DSN; without it the driver
// returns TIMESTAMP columns as []byte and scanning classified_at into
// time.Time fails on every read.
func ensureParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewMySQLCache creates a new MySQL prediction cache.
func NewMySQLCache(dsn string, capacity int, logger *zap.Logger, onEvict func()) (*MySQLCache, error) {
	dsn, err := ensureParseTime(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS prediction_cache (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			fingerprint VARCHAR(64) NOT NULL UNIQUE,
			category VARCHAR(32),
			confidence DOUBLE,
			distribution TEXT,
			model_version VARCHAR(32),
			processing_id VARCHAR(64),
			classified_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLCache{db: db, capacity: capacity, logger: logger, onEvict: onEvict}, nil
}

// Get retrieves a cached result, treating version mismatches and storage
// errors as misses.
func (c *MySQLCache) Get(ctx context.Context, fingerprint, modelVersion string) (*core.ClassificationResult, bool) {
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
func (c *MySQLCache) Put(ctx context.Context, fingerprint string, result *core.ClassificationResult) {
	distribution, err := json.Marshal(result.Distribution)
	if err != nil {
		c.logger.Error("Failed to encode distribution", zap.Error(err))
		return
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO prediction_cache
			(fingerprint, category, confidence, distribution, model_version, processing_id, classified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category = VALUES(category),
			confidence = VALUES(confidence),
			distribution = VALUES(distribution),
			model_version = VALUES(model_version),
			processing_id = VALUES(processing_id),
			classified_at = VALUES(classified_at)
	`, fingerprint, string(result.Category), result.Confidence, string(distribution),
		result.ModelVersion, result.ProcessingID, result.ClassifiedAt)
	if err != nil {
		c.logger.Error("Failed to insert cache entry", zap.Error(err))
		return
	}

	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prediction_cache`).Scan(&count); err != nil {
		c.logger.Error("Failed to count cache entries", zap.Error(err))
		return
	}
	if count <= c.capacity {
		return
	}
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM prediction_cache ORDER BY id ASC LIMIT ?
	`, count-c.capacity)
	if err != nil {
		c.logger.Error("Failed to trim prediction cache", zap.Error(err))
		return
	}
	if evicted, err := res.RowsAffected(); err == nil && c.onEvict != nil {
		for i := int64(0); i < evicted; i++ {
			c.onEvict()
		}
	}
}

// Stop closes the database connection.
func (c *MySQLCache) Stop() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL cache connection", zap.Error(err))
	}
}
