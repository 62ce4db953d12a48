// Package dashboard is the application layer behind the HTTP API and the
// CLI: it calls the analysis service, normalizes what comes back, keeps the
// relationship snapshot cache and fans new snapshots out to subscribers.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/analysis"
	"github.com/sydialogue/dashboard/internal/cache"
	"github.com/sydialogue/dashboard/internal/entities"
	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/internal/normalize"
	"github.com/sydialogue/dashboard/pkg/logger"
)

var (
	// ErrUpstreamUnavailable wraps every transport failure. Users see a
	// generic message; the wrapped error is for logs.
	ErrUpstreamUnavailable = errors.New("analysis service unavailable")
	ErrNoTargets           = errors.New("no targets provided")
)

type Upstream interface {
	Analyze(ctx context.Context, targets []string) (json.RawMessage, error)
	Relationships(ctx context.Context, q analysis.RelationshipQuery) (json.RawMessage, error)
	Entities(ctx context.Context) (json.RawMessage, error)
	Articles(ctx context.Context) ([]models.Article, error)
	Reindex(ctx context.Context) (int, error)
}

// GraphExporter mirrors a fresh relationship report into a graph database.
type GraphExporter interface {
	Export(ctx context.Context, report models.RelationshipReport) error
}

// Broadcaster receives every relationship view produced by a refresh.
type Broadcaster interface {
	Broadcast(view RelationshipView)
}

type Options struct {
	Upstream Upstream
	Cache    cache.Cache
	Catalog  *entities.Catalog
	Query    analysis.RelationshipQuery

	// Graph and Broadcaster are optional.
	Graph        GraphExporter
	GraphTimeout time.Duration
	Broadcaster  Broadcaster
	Now          func() time.Time
}

type Service struct {
	upstream     Upstream
	cache        cache.Cache
	catalog      *entities.Catalog
	query        analysis.RelationshipQuery
	graph        GraphExporter
	graphTimeout time.Duration
	now          func() time.Time
	log          *zap.Logger

	mu          sync.RWMutex
	broadcaster Broadcaster

	exports sync.WaitGroup
}

func NewService(opts Options) *Service {
	s := &Service{
		upstream:     opts.Upstream,
		cache:        opts.Cache,
		catalog:      opts.Catalog,
		query:        opts.Query,
		graph:        opts.Graph,
		graphTimeout: opts.GraphTimeout,
		broadcaster:  opts.Broadcaster,
		now:          opts.Now,
		log:          logger.Named("dashboard"),
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.catalog == nil {
		s.catalog = entities.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.graphTimeout <= 0 {
		s.graphTimeout = 30 * time.Second
	}
	return s
}

// SetBroadcaster wires the subscriber hub after construction; the hub and
// the service depend on each other.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

// Sentiment analyses targets. Blank and repeated targets are dropped; none
// left is ErrNoTargets.
func (s *Service) Sentiment(ctx context.Context, targets []string) (SentimentView, error) {
	cleaned := CleanTargets(targets)
	if len(cleaned) == 0 {
		return SentimentView{}, ErrNoTargets
	}

	raw, err := s.upstream.Analyze(ctx, cleaned)
	if err != nil {
		return SentimentView{}, upstreamError(ctx, err)
	}

	report, err := normalize.ParseSentimentPayload(raw)
	if err != nil {
		if s.degraded("sentiment", err) {
			return noSentiment(), nil
		}
		return SentimentView{}, err
	}
	entities.EnrichSentiment(report)

	s.log.Info("Sentiment analysed",
		zap.Strings("targets", cleaned),
		zap.Int("targets_returned", len(report.Order)),
	)
	return newSentimentView(report), nil
}

// Relationships returns the cached relationship snapshot, or builds a new one
// when refresh is set or nothing is cached.
func (s *Service) Relationships(ctx context.Context, refresh bool) (RelationshipView, error) {
	var cached *models.Snapshot
	if snap, ok := s.cachedSnapshot(ctx); ok {
		cached = snap
		if !refresh {
			return newRelationshipView(*snap, SourceCache), nil
		}
	}

	raw, err := s.upstream.Relationships(ctx, s.query)
	if err != nil {
		return RelationshipView{}, upstreamError(ctx, err)
	}

	report, err := normalize.NormalizeRelationshipReport(raw)
	if err != nil {
		if !s.degraded("relationships", err) {
			return RelationshipView{}, err
		}
		if cached != nil {
			return newRelationshipView(*cached, SourceCache), nil
		}
		return noRelationships(), nil
	}
	s.catalog.Enrich(report)

	snap := models.Snapshot{Data: *report, Timestamp: s.now().UnixMilli()}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.log.Error("Failed to cache relationship snapshot", zap.Error(err))
	}

	metrics.SnapshotTimestamp.Set(float64(snap.Timestamp) / 1000)
	metrics.RelationshipEdges.Set(float64(len(report.Relationships)))
	s.log.Info("Relationship map built",
		zap.Int("relationships", len(report.Relationships)),
		zap.Int("nodes", len(report.Nodes)),
		zap.Int("total_articles", report.Stats.TotalArticles),
	)

	view := newRelationshipView(snap, SourceUpstream)
	s.broadcast(view)
	s.export(*report)
	return view, nil
}

// CachedRelationships returns the cached snapshot without calling upstream.
func (s *Service) CachedRelationships(ctx context.Context) (RelationshipView, bool) {
	snap, ok := s.cachedSnapshot(ctx)
	if !ok {
		return noRelationships(), false
	}
	return newRelationshipView(*snap, SourceCache), true
}

func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear relationship cache: %w", err)
	}
	s.log.Info("Relationship cache cleared")
	s.broadcast(noRelationships())
	return nil
}

// Entities lists the tracked entities. When the service's answer cannot be
// read the local catalog is listed instead.
func (s *Service) Entities(ctx context.Context) ([]models.EntityRef, error) {
	raw, err := s.upstream.Entities(ctx)
	if err != nil {
		return nil, upstreamError(ctx, err)
	}

	list, err := normalize.NormalizeEntities(raw)
	if err != nil {
		if s.degraded("entities", err) {
			return s.catalog.Refs(), nil
		}
		return nil, err
	}

	report := models.RelationshipReport{Nodes: list}
	s.catalog.Enrich(&report)
	return report.Nodes, nil
}

func (s *Service) Articles(ctx context.Context) ([]models.Article, error) {
	articles, err := s.upstream.Articles(ctx)
	if err != nil {
		return nil, upstreamError(ctx, err)
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return articles, nil
}

// Reindex asks the service to rebuild its article index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	count, err := s.upstream.Reindex(ctx)
	if err != nil {
		return 0, upstreamError(ctx, err)
	}
	s.log.Info("Article index rebuilt", zap.Int("articles", count))
	return count, nil
}

// Close waits for graph exports still in flight.
func (s *Service) Close() {
	s.exports.Wait()
}

func (s *Service) cachedSnapshot(ctx context.Context) (*models.Snapshot, bool) {
	snap, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("Relationship cache unavailable", zap.Error(err))
		return nil, false
	}
	return snap, ok
}

// degraded reports whether err is a decode failure, which is logged and
// rendered as "no data". Embedded payload errors are not degraded.
func (s *Service) degraded(report string, err error) bool {
	var payloadErr *normalize.PayloadError
	if errors.As(err, &payloadErr) {
		metrics.PayloadFailures.WithLabelValues(report, "payload_error").Inc()
		s.log.Info("Analysis service reported an error", zap.String("report", report), zap.String("message", payloadErr.Message))
		return false
	}
	if errors.Is(err, normalize.ErrUndecodable) {
		metrics.PayloadFailures.WithLabelValues(report, "undecodable").Inc()
		s.log.Warn("Undecodable analysis payload", zap.String("report", report), zap.Error(err))
		return true
	}
	return false
}

func (s *Service) broadcast(view RelationshipView) {
	s.mu.RLock()
	b := s.broadcaster
	s.mu.RUnlock()

	if b != nil {
		b.Broadcast(view)
	}
}

func (s *Service) export(report models.RelationshipReport) {
	if s.graph == nil {
		return
	}

	s.exports.Add(1)
	go func() {
		defer s.exports.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.graphTimeout)
		defer cancel()

		if err := s.graph.Export(ctx, report); err != nil {
			metrics.GraphExports.WithLabelValues("error").Inc()
			s.log.Error("Failed to export relationship graph", zap.Error(err))
			return
		}
		metrics.GraphExports.WithLabelValues("ok").Inc()
	}()
}

// upstreamError keeps caller cancellation distinguishable from an
// unavailable service.
func upstreamError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

// CleanTargets trims targets and drops blanks and case-insensitive repeats,
// keeping first-seen order.
func CleanTargets(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
