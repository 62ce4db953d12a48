// Package neo4j mirrors relationship snapshots into a Neo4j graph.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/kg/builder"
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/pkg/circuitbreaker"
	"github.com/sydialogue/dashboard/pkg/logger"
	"github.com/sydialogue/dashboard/pkg/retry"
)

type Config struct {
	URI      string
	Username string
	Password string
	Database string
	// Timeout bounds one publish, retries included.
	Timeout time.Duration
}

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
	log         *zap.Logger
}

const mergeEntities = `
	UNWIND $entities AS e
	MERGE (n:Entity {id: e.id})
	SET n.name_en = e.name_en,
	    n.name_ar = e.name_ar,
	    n.type = e.type,
	    n.updated_at = timestamp()
`

// Relations are keyed by their endpoints: a newer snapshot replaces the
// predicate between two entities instead of adding a parallel edge.
const mergeRelations = `
	UNWIND $relations AS r
	MATCH (s:Entity {id: r.subject})
	MATCH (o:Entity {id: r.object})
	MERGE (s)-[rel:RELATES]->(o)
	SET rel.type = r.predicate,
	    rel.direction = r.direction,
	    rel.strength = r.strength,
	    rel.score = r.score,
	    rel.evolution = r.evolution,
	    rel.article_count = r.article_count,
	    rel.description = r.description,
	    rel.themes = r.themes,
	    rel.source_docs = r.source_docs,
	    rel.snapshot = $snapshot,
	    rel.updated_at = timestamp()
`

// Edges that disappeared from the latest snapshot are dropped.
const pruneRelations = `
	MATCH ()-[rel:RELATES]->()
	WHERE rel.snapshot <> $snapshot
	DELETE rel
`

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Operation:      "neo4j_publish",
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", cfg.URI), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
		log:         logger.Named("neo4j"),
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Export publishes the graph projection of report.
func (c *Client) Export(ctx context.Context, report models.RelationshipReport) error {
	return c.Publish(ctx, builder.Build(report))
}

// Publish merges the graph's entities and relations in one write
// transaction, then removes relations the graph no longer contains.
func (c *Client) Publish(ctx context.Context, g builder.Graph) error {
	snapshot := time.Now().UnixMilli()
	params := map[string]any{
		"entities":  entityParams(g.Entities),
		"relations": relationParams(g.Relations),
		"snapshot":  snapshot,
	}

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, query := range []string{mergeEntities, mergeRelations, pruneRelations} {
				result, err := tx.Run(ctx, query, params)
				if err != nil {
					return nil, err
				}
				if _, err := result.Consume(ctx); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to publish relationship graph: %w", err)
	}

	c.log.Info("Relationship graph published",
		zap.Int("entities", len(g.Entities)),
		zap.Int("relations", len(g.Relations)),
	)
	return nil
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{
				AccessMode:   neo4j.AccessModeWrite,
				DatabaseName: c.database,
			})
			defer session.Close(ctx)
			return retryable(operation(session))
		})
	})
}

// retryable marks errors the driver does not consider transient, such as
// Cypher syntax or constraint failures, so retry.Do returns them at once.
func retryable(err error) error {
	if err == nil || neo4j.IsRetryable(err) {
		return err
	}
	return retry.Permanent(err)
}

func entityParams(entities []builder.Entity) []any {
	out := make([]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, map[string]any{
			"id":      e.ID,
			"name_en": e.NameEN,
			"name_ar": e.NameAR,
			"type":    e.Type,
		})
	}
	return out
}

func relationParams(relations []builder.Relation) []any {
	out := make([]any, 0, len(relations))
	for _, r := range relations {
		themes := r.Themes
		if themes == nil {
			themes = []string{}
		}
		out = append(out, map[string]any{
			"subject":       r.Subject,
			"object":        r.Object,
			"predicate":     r.Predicate,
			"direction":     r.Direction,
			"strength":      r.Strength,
			"score":         r.Score,
			"evolution":     r.Evolution,
			"article_count": int64(r.ArticleCount),
			"description":   r.Description,
			"themes":        themes,
			"source_docs":   r.SourceURLs,
		})
	}
	return out
}
