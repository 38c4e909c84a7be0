// Package store persists the engine's durable state: model snapshots
// (append-only with one current marker), the feedback queue, and the
// classification log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/store/migrations"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/training"
)

// ErrStoreClosed is returned on use after Close.
var ErrStoreClosed = errors.New("store closed")

// SQLiteStore implements the SnapshotStore, FeedbackStore and
// ClassificationLog ports on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	logger *zap.Logger
}

// NewSQLiteStore opens or creates the engine store and runs schema
// migrations.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps log appends from blocking concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	return nil
}

// SaveSnapshot appends a snapshot; with markCurrent the current marker
// moves to it in the same transaction, so there is never a window with
// zero or two current snapshots.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snapshot *core.ModelSnapshot, markCurrent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	payload, err := training.EncodeSnapshotPayload(snapshot)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO model_snapshots (version, created_at, held_out_accuracy, training_samples, payload, is_current)
		VALUES (?, ?, ?, ?, ?, 0)
	`, snapshot.Version, snapshot.CreatedAt, snapshot.HeldOutAccuracy, snapshot.TrainingSamples, payload)
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}

	if markCurrent {
		if _, err := tx.ExecContext(ctx, `UPDATE model_snapshots SET is_current = 0 WHERE is_current = 1`); err != nil {
			return fmt.Errorf("store: clear current marker: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE model_snapshots SET is_current = 1 WHERE version = ?`, snapshot.Version); err != nil {
			return fmt.Errorf("store: set current marker: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit snapshot: %w", err)
	}
	return nil
}

// LoadCurrent returns the deployed snapshot. A missing marker yields
// core.ErrNoSnapshot; a corrupt payload is an error, since serving
// fabricated predictions is worse than refusing to start.
func (s *SQLiteStore) LoadCurrent(ctx context.Context) (*core.ModelSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	snapshot := &core.ModelSnapshot{}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT version, created_at, held_out_accuracy, training_samples, payload
		FROM model_snapshots
		WHERE is_current = 1
	`).Scan(&snapshot.Version, &snapshot.CreatedAt, &snapshot.HeldOutAccuracy, &snapshot.TrainingSamples, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNoSnapshot
		}
		return nil, fmt.Errorf("store: load current snapshot: %w", err)
	}

	extractor, models, err := training.DecodeSnapshotPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("store: corrupt snapshot %s: %w", snapshot.Version, err)
	}
	snapshot.Extractor = extractor
	snapshot.Learners = models
	return snapshot, nil
}

// AppendFeedback stores a new unconsumed feedback sample.
func (s *SQLiteStore) AppendFeedback(ctx context.Context, sample *core.FeedbackSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, text, corrected_category, consumed, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, sample.ID, sample.Text, string(sample.Category), sample.CreatedAt)
	if err != nil {
		return fmt.Errorf("store: insert feedback: %w", err)
	}
	return nil
}

// AllFeedback returns every stored sample, oldest first.
func (s *SQLiteStore) AllFeedback(ctx context.Context) ([]*core.FeedbackSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, corrected_category, consumed, created_at
		FROM feedback
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query feedback: %w", err)
	}
	defer rows.Close()

	var samples []*core.FeedbackSample
	for rows.Next() {
		sample := &core.FeedbackSample{}
		var category string
		if err := rows.Scan(&sample.ID, &sample.Text, &category, &sample.Consumed, &sample.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan feedback: %w", err)
		}
		sample.Category = core.Category(category)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// CountUnconsumed returns the number of samples awaiting retraining.
func (s *SQLiteStore) CountUnconsumed(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback WHERE consumed = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("store: count unconsumed feedback: %w", err)
	}
	return count, nil
}

// MarkConsumed flips the consumed flag for the given sample IDs.
func (s *SQLiteStore) MarkConsumed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE feedback SET consumed = 1 WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("store: mark feedback consumed: %w", err)
	}
	return nil
}

// AppendRecord appends one row to the classification log.
func (s *SQLiteStore) AppendRecord(ctx context.Context, record *core.LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_log (fingerprint, category, confidence, model_version, from_cache, classified_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, record.Fingerprint, string(record.Category), record.Confidence, record.ModelVersion, record.FromCache, record.ClassifiedAt)
	if err != nil {
		return fmt.Errorf("store: append classification log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
