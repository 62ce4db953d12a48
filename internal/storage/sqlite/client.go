package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/cache"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/pkg/logger"
)

const (
	backend        = "sqlite"
	snapshotsTable = "snapshots"
)

// Client persists relationship snapshots in a local SQLite file, one row per
// cache key.
type Client struct {
	db  *sql.DB
	key string
}

var _ cache.Cache = (*Client)(nil)

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: writers are serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite snapshot cache initialized", zap.String("path", dbPath))

	return &Client{db: db, key: cache.Key}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		cache_key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		relationship_count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) Get(ctx context.Context) (*models.Snapshot, bool, error) {
	query, args, err := sq.Select("data", "timestamp").
		From(snapshotsTable).
		Where(sq.Eq{"cache_key": c.key}).
		ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build snapshot query: %w", err)
	}

	var data string
	var timestamp int64
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&data, &timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get relationship snapshot: %w", err)
	}

	var report models.RelationshipReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		logger.Warn("Discarding unreadable relationship snapshot", zap.String("key", c.key), zap.Error(err))
		metrics.CacheMisses.WithLabelValues(backend).Inc()
		return nil, false, nil
	}

	metrics.CacheHits.WithLabelValues(backend).Inc()
	return &models.Snapshot{Data: report, Timestamp: timestamp}, true, nil
}

func (c *Client) Set(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship snapshot: %w", err)
	}

	query, args, err := sq.Insert(snapshotsTable).
		Columns("cache_key", "data", "timestamp", "relationship_count", "updated_at").
		Values(c.key, string(data), snap.Timestamp, len(snap.Data.Relationships), time.Now().Unix()).
		Suffix(`ON CONFLICT(cache_key) DO UPDATE SET
			data = excluded.data,
			timestamp = excluded.timestamp,
			relationship_count = excluded.relationship_count,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build snapshot upsert: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set relationship snapshot: %w", err)
	}

	logger.Debug("Relationship snapshot cached", zap.String("key", c.key), zap.Int("bytes", len(data)))
	return nil
}

func (c *Client) Clear(ctx context.Context) error {
	query, args, err := sq.Delete(snapshotsTable).Where(sq.Eq{"cache_key": c.key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build snapshot delete: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to clear relationship snapshot: %w", err)
	}

	logger.Info("Relationship snapshot cache cleared", zap.String("key", c.key))
	return nil
}
