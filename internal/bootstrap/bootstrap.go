// Package bootstrap builds the dashboard's components from configuration.
// The API server and the CLI share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/analysis"
	"github.com/sydialogue/dashboard/internal/api/handlers"
	"github.com/sydialogue/dashboard/internal/cache"
	rediscache "github.com/sydialogue/dashboard/internal/cache/redis"
	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/entities"
	"github.com/sydialogue/dashboard/internal/kg/neo4j"
	"github.com/sydialogue/dashboard/internal/storage/sqlite"
	"github.com/sydialogue/dashboard/pkg/circuitbreaker"
	"github.com/sydialogue/dashboard/pkg/config"
	"github.com/sydialogue/dashboard/pkg/logger"
)

type Components struct {
	Service  *dashboard.Service
	Analysis *analysis.Client
	Cache    cache.Cache
	Catalog  *entities.Catalog
	// Graph is nil unless neo4j export is enabled.
	Graph *neo4j.Client

	closers []func(ctx context.Context) error
}

// New connects every configured backend. A Neo4j that cannot be reached
// disables graph export instead of failing startup.
func New(ctx context.Context, cfg *config.Config) (*Components, error) {
	c := &Components{}

	catalog, err := entities.LoadCatalog(cfg.Entities.CatalogPath)
	if err != nil {
		return nil, err
	}
	c.Catalog = catalog

	client, err := analysis.NewClient(analysis.Config{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout(),
		Breaker: circuitbreaker.Config{
			MaxRequests:      1,
			Timeout:          cfg.Analysis.Breaker.Timeout(),
			FailureThreshold: cfg.Analysis.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Analysis.Breaker.SuccessThreshold,
		},
	})
	if err != nil {
		return nil, err
	}
	c.Analysis = client

	store, closeStore, err := OpenCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Cache = store
	c.closers = append(c.closers, closeStore)

	opts := dashboard.Options{
		Upstream: client,
		Cache:    store,
		Catalog:  catalog,
		Query: analysis.RelationshipQuery{
			MinArticles: cfg.Analysis.MinArticles,
			MaxPairs:    cfg.Analysis.MaxPairs,
		},
	}

	if cfg.Neo4j.Enabled {
		graph, err := neo4j.NewClient(ctx, neo4j.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
			Timeout:  cfg.Neo4j.Timeout(),
		})
		if err != nil {
			logger.Warn("Graph export disabled", zap.Error(err))
		} else {
			c.Graph = graph
			opts.Graph = graph
			opts.GraphTimeout = cfg.Neo4j.Timeout() * 3
			c.closers = append(c.closers, graph.Close)
		}
	}

	c.Service = dashboard.NewService(opts)
	return c, nil
}

// OpenCache opens the configured snapshot cache and returns its closer.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Cache, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Cache.Backend {
	case config.CacheMemory, "":
		return cache.NewMemory(), noop, nil

	case config.CacheRedis:
		client, err := rediscache.NewClient(ctx, rediscache.Options{
			Host:      cfg.Redis.Host,
			Port:      cfg.Redis.Port,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, func(context.Context) error { return client.Close() }, nil

	case config.CacheSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		client, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return client, func(context.Context) error { return client.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// Checks returns the readiness checks for the API server.
func (c *Components) Checks() map[string]handlers.Check {
	return map[string]handlers.Check{
		"cache": func(ctx context.Context) error {
			_, _, err := c.Cache.Get(ctx)
			return err
		},
		"analysis": func(context.Context) error {
			if c.Analysis.BreakerState() == circuitbreaker.StateOpen {
				return errors.New("analysis circuit breaker open")
			}
			return nil
		},
	}
}

// Close waits for pending graph exports, then releases backends.
func (c *Components) Close(ctx context.Context) error {
	if c.Service != nil {
		c.Service.Close()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
