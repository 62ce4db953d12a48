package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/sydialogue/dashboard/internal/analysis"
	"github.com/sydialogue/dashboard/internal/api/handlers"
	"github.com/sydialogue/dashboard/internal/dashboard"
	"github.com/sydialogue/dashboard/internal/models"
)

type stubUpstream struct {
	mu sync.Mutex

	analyze       string
	relationships string
	entities      string
	articles      []models.Article
	err           error

	requestIDs []string
}

func (s *stubUpstream) record(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestIDs = append(s.requestIDs, analysis.RequestIDFromContext(ctx))
}

func (s *stubUpstream) Analyze(ctx context.Context, _ []string) (json.RawMessage, error) {
	s.record(ctx)
	return json.RawMessage(s.analyze), s.err
}

func (s *stubUpstream) Relationships(ctx context.Context, _ analysis.RelationshipQuery) (json.RawMessage, error) {
	s.record(ctx)
	return json.RawMessage(s.relationships), s.err
}

func (s *stubUpstream) Entities(ctx context.Context) (json.RawMessage, error) {
	s.record(ctx)
	return json.RawMessage(s.entities), s.err
}

func (s *stubUpstream) Articles(ctx context.Context) ([]models.Article, error) {
	s.record(ctx)
	return s.articles, s.err
}

func (s *stubUpstream) Reindex(ctx context.Context) (int, error) {
	s.record(ctx)
	return len(s.articles), s.err
}

func newTestApp(up *stubUpstream, checks map[string]handlers.Check) *fiber.App {
	svc := dashboard.NewService(dashboard.Options{Upstream: up})
	return NewApp(Config{Service: svc, Checks: checks, IsDevelopment: true})
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func sentimentRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sentiment", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode error envelope %q: %v", body, err)
	}
	return env.Error
}

func TestSentimentEndpoint(t *testing.T) {
	t.Parallel()

	up := &stubUpstream{analyze: `{"sentiment_analysis": {"targets": {"Russia": {"sentiment": "positive", "score": 0.6}}}}`}
	app := newTestApp(up, nil)

	req := sentimentRequest(`{"targets": ["Russia"]}`)
	req.Header.Set("X-Request-ID", "req-123")
	resp, body := do(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var view dashboard.SentimentView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Targets) != 1 || view.Targets[0].Name != "Russia" || view.Targets[0].DisplayScore != "0.60" {
		t.Fatalf("unexpected view %+v", view)
	}
	if resp.Header.Get("X-Request-ID") != "req-123" {
		t.Errorf("request id not echoed, got %q", resp.Header.Get("X-Request-ID"))
	}
	if len(up.requestIDs) != 1 || up.requestIDs[0] != "req-123" {
		t.Errorf("request id not forwarded upstream: %v", up.requestIDs)
	}
}

func TestSentimentErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		up      *stubUpstream
		body    string
		status  int
		message string
	}{
		{
			name:    "embedded error shown verbatim",
			up:      &stubUpstream{analyze: `{"error": "Index not built"}`},
			body:    `{"targets": ["x"]}`,
			status:  fiber.StatusUnprocessableEntity,
			message: "Index not built",
		},
		{
			name:    "transport failure is generic",
			up:      &stubUpstream{err: &analysis.TransportError{Endpoint: "analyze", StatusCode: 500, Body: "Traceback ..."}},
			body:    `{"targets": ["x"]}`,
			status:  fiber.StatusBadGateway,
			message: "Analysis service unavailable",
		},
		{
			name:    "validation",
			up:      &stubUpstream{},
			body:    `{"targets": ["  "]}`,
			status:  fiber.StatusBadRequest,
			message: "At least one target is required",
		},
		{
			name:    "unexpected error",
			up:      &stubUpstream{err: errors.New("boom")},
			body:    `{"targets": ["x"]}`,
			status:  fiber.StatusBadGateway,
			message: "Analysis service unavailable",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, body := do(t, newTestApp(tt.up, nil), sentimentRequest(tt.body))
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
			if got := errorMessage(t, body); got != tt.message {
				t.Fatalf("error = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestSentimentUndecodableIsNoData(t *testing.T) {
	t.Parallel()

	app := newTestApp(&stubUpstream{analyze: `"not json at all"`}, nil)
	resp, body := do(t, app, sentimentRequest(`{"targets": ["x"]}`))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var view dashboard.SentimentView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !view.NoData || len(view.Targets) != 0 {
		t.Fatalf("expected no-data view, got %+v", view)
	}
}

func TestRelationshipsETag(t *testing.T) {
	t.Parallel()

	up := &stubUpstream{relationships: `{"relationships": [{"entity1": "a", "entity2": "b", "relationship_type": "tension"}]}`}
	app := newTestApp(up, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/relationships", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var view dashboard.RelationshipView
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Relationships) != 1 || view.Relationships[0].Score != -0.3 || view.Source != dashboard.SourceUpstream {
		t.Fatalf("unexpected view %+v", view)
	}

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/relationships", nil))
	etag := resp.Header.Get("ETag")
	if resp.StatusCode != fiber.StatusOK || etag == "" {
		t.Fatalf("expected cached snapshot with ETag, got %d %q", resp.StatusCode, etag)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/relationships", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = do(t, app, req)
	if resp.StatusCode != fiber.StatusNotModified {
		t.Fatalf("expected 304 for cached snapshot, got %d", resp.StatusCode)
	}

	if got := len(up.requestIDs); got != 1 {
		t.Fatalf("cached snapshot must not call upstream again, got %d calls", got)
	}
}

func TestRelationshipsRefreshAndClear(t *testing.T) {
	t.Parallel()

	up := &stubUpstream{relationships: `{"relationships": []}`}
	app := newTestApp(up, nil)

	for i := 0; i < 2; i++ {
		resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/relationships?refresh=true", nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
		}
	}
	if got := len(up.requestIDs); got != 2 {
		t.Fatalf("expected two upstream builds, got %d", got)
	}

	resp, _ := do(t, app, httptest.NewRequest(http.MethodDelete, "/api/v1/relationships/cache", nil))
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestEntitiesAndArticles(t *testing.T) {
	t.Parallel()

	up := &stubUpstream{
		entities: `{"entities": [{"id": "قسد", "name_en": "SDF", "type": "armed_group"}]}`,
		articles: []models.Article{{Title: "t", URL: "https://sydialogue.org/a"}},
	}
	app := newTestApp(up, nil)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/relationships/entities", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("entities: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var refs []models.EntityRef
	if err := json.Unmarshal(body, &refs); err != nil {
		t.Fatalf("decode entities: %v", err)
	}
	if len(refs) != 1 || refs[0].NameEN != "SDF" {
		t.Fatalf("unexpected entities %+v", refs)
	}

	resp, body = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/articles", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("articles: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var articles []models.Article
	if err := json.Unmarshal(body, &articles); err != nil {
		t.Fatalf("decode articles: %v", err)
	}
	if len(articles) != 1 || articles[0].URL != "https://sydialogue.org/a" {
		t.Fatalf("unexpected articles %+v", articles)
	}

	resp, body = do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/articles/index", nil))
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(body), `"count":1`) {
		t.Fatalf("reindex: unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	checks := map[string]handlers.Check{
		"cache":    func(context.Context) error { return nil },
		"analysis": func(context.Context) error { return errors.New("circuit open") },
	}
	app := newTestApp(&stubUpstream{}, checks)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("ready: expected 503, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"analysis":"circuit open"`) || !strings.Contains(string(body), `"cache":"ok"`) {
		t.Fatalf("unexpected readiness body %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	resp, _ := do(t, newTestApp(&stubUpstream{}, nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
