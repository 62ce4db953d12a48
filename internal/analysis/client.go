package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sydialogue/dashboard/internal/metrics"
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/pkg/circuitbreaker"
	"github.com/sydialogue/dashboard/pkg/logger"
)

const (
	endpointAnalyze       = "analyze"
	endpointRelationships = "relationships"
	endpointEntities      = "entities"
	endpointArticles      = "articles"
	endpointReindex       = "reindex"

	maxBodyBytes  = 32 << 20
	maxErrorBytes = 512

	RequestIDHeader = "X-Request-ID"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Config
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client calls the analysis service. Calls are never retried: a failure is
// reported to the user, who can ask again.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	cb      *circuitbreaker.CircuitBreaker
	log     *zap.Logger
}

// RelationshipQuery bounds a relationship build. Zero values leave the
// service defaults in place.
type RelationshipQuery struct {
	MinArticles int
	MaxPairs    int
}

func (q RelationshipQuery) values() url.Values {
	v := url.Values{}
	if q.MinArticles > 0 {
		v.Set("min_articles", strconv.Itoa(q.MinArticles))
	}
	if q.MaxPairs > 0 {
		v.Set("max_pairs", strconv.Itoa(q.MaxPairs))
	}
	return v
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("analysis base url must be http or https, got %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	log := logger.Named("analysis")

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = countsAgainstBreaker
	breakerCfg.Logger = log
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	}

	log.Info("Analysis client initialized",
		zap.String("base_url", base.String()),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		baseURL: base,
		http:    httpClient,
		timeout: timeout,
		cb:      circuitbreaker.NewCircuitBreaker("analysis", breakerCfg),
		log:     log,
	}, nil
}

// Analyze asks for the sentiment of targets. The raw response is returned
// for the normalizer: it usually wraps the report in sentiment_analysis.
func (c *Client) Analyze(ctx context.Context, targets []string) (json.RawMessage, error) {
	body := map[string][]string{"targets": targets}
	return c.do(ctx, endpointAnalyze, http.MethodPost, "/api/analyze", nil, body)
}

// Relationships asks the service to build the relationship map.
func (c *Client) Relationships(ctx context.Context, q RelationshipQuery) (json.RawMessage, error) {
	return c.do(ctx, endpointRelationships, http.MethodGet, "/api/relationships", q.values(), nil)
}

func (c *Client) Entities(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, endpointEntities, http.MethodGet, "/api/relationships/entities", nil, nil)
}

// Articles lists the article index the service analyses.
func (c *Client) Articles(ctx context.Context) ([]models.Article, error) {
	raw, err := c.do(ctx, endpointArticles, http.MethodGet, "/api/articles", nil, nil)
	if err != nil {
		return nil, err
	}

	var articles []models.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode article index: %w", err)
	}
	return articles, nil
}

// Reindex asks the service to rebuild its search index and returns the number
// of articles indexed.
func (c *Client) Reindex(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, endpointReindex, http.MethodPost, "/api/index", nil, struct{}{})
	if err != nil {
		return 0, err
	}

	var resp struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("failed to decode reindex response: %w", err)
	}
	return resp.Count, nil
}

func (c *Client) BreakerState() circuitbreaker.State {
	return c.cb.State()
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body any) (json.RawMessage, error) {
	start := time.Now()
	requestID := RequestIDFromContext(ctx)

	payload, err := circuitbreaker.ExecuteWithResult(ctx, c.cb, func() ([]byte, error) {
		return c.roundTrip(ctx, endpoint, method, path, query, body, requestID)
	})

	metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues(endpoint, outcome(err)).Inc()

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			err = &TransportError{Endpoint: endpoint, Err: err}
		}
		c.log.Warn("Analysis service call failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	c.log.Debug("Analysis service call completed",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return payload, nil
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, body any, requestID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := data
		if len(snippet) > maxErrorBytes {
			snippet = snippet[:maxErrorBytes]
		}
		return nil, &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	return data, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return "circuit_open"
	}
	var te *TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return "http_error"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "network_error"
}

type requestIDKey struct{}

// WithRequestID attaches the id sent upstream as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the attached request id, or a fresh one.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
