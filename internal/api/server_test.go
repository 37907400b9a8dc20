package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lectern/lectern/internal/api"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/rag"
	"github.com/lectern/lectern/internal/tools"
)

// stubService is a hand-rolled QueryService with call tracking.
type stubService struct {
	resp    *rag.QueryResponse
	err     error
	stats   rag.CourseStats
	cleared []string

	gotQuery   string
	gotSession string
}

func (s *stubService) Query(_ context.Context, query, sessionID string) (*rag.QueryResponse, error) {
	s.gotQuery = query
	s.gotSession = sessionID
	return s.resp, s.err
}

func (s *stubService) Stats() rag.CourseStats { return s.stats }

func (s *stubService) ClearSession(id string) { s.cleared = append(s.cleared, id) }

func newTestServer(t *testing.T, svc api.QueryService) *httptest.Server {
	t.Helper()
	srv, err := api.NewServer(api.ServerConfig{
		Logger:    log.NewNop(),
		Service:   svc,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestQueryEndpoint(t *testing.T) {
	svc := &stubService{
		resp: &rag.QueryResponse{
			Answer:    "Lesson 3 covers tools.",
			Sources:   []tools.Source{{Text: "MCP - Lesson 3", Link: "https://example.com/3"}},
			SessionID: "sess-1",
		},
	}
	ts := newTestServer(t, svc)

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"what is in lesson 3?","session_id":"sess-1"}`))
	if err != nil {
		t.Fatalf("POST /api/query error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID header")
	}

	var body rag.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Answer != "Lesson 3 covers tools." || body.SessionID != "sess-1" {
		t.Errorf("body = %+v", body)
	}
	if len(body.Sources) != 1 || body.Sources[0].Link != "https://example.com/3" {
		t.Errorf("sources = %+v", body.Sources)
	}

	if svc.gotQuery != "what is in lesson 3?" || svc.gotSession != "sess-1" {
		t.Errorf("service saw query=%q session=%q", svc.gotQuery, svc.gotSession)
	}
}

func TestQueryEndpointNullSourcesBecomeEmptyArray(t *testing.T) {
	svc := &stubService{resp: &rag.QueryResponse{Answer: "General answer.", SessionID: "s"}}
	ts := newTestServer(t, svc)

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"general question"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if string(raw["sources"]) != "[]" {
		t.Errorf("sources = %s, want []", raw["sources"])
	}
}

func TestQueryEndpointValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed json", body: `{`, code: "invalid_body"},
		{name: "blank query", body: `{"query":"   "}`, code: "empty_query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{})

			resp, err := http.Post(ts.URL+"/api/query", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("error code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestQueryEndpointGenerationFailure(t *testing.T) {
	ts := newTestServer(t, &stubService{err: errors.New("model unavailable")})

	resp, err := http.Post(ts.URL+"/api/query", "application/json",
		strings.NewReader(`{"query":"anything"}`))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestCoursesEndpoint(t *testing.T) {
	svc := &stubService{stats: rag.CourseStats{
		TotalCourses: 2,
		CourseTitles: []string{"Alpha", "Beta"},
	}}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/api/courses")
	if err != nil {
		t.Fatalf("GET /api/courses error = %v", err)
	}
	defer resp.Body.Close()

	var stats rag.CourseStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if stats.TotalCourses != 2 || len(stats.CourseTitles) != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(t, svc)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/sess-9", nil)
	if err != nil {
		t.Fatalf("NewRequest error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != "sess-9" {
		t.Errorf("cleared = %v", svc.cleared)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubService{stats: rag.CourseStats{TotalCourses: 3}})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	ready, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready error = %v", err)
	}
	defer ready.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(ready.Body).Decode(&body); err != nil {
		t.Fatalf("decoding /ready: %v", err)
	}
	if body["status"] != "ready" || body["courses"].(float64) != 3 {
		t.Errorf("/ready body = %v", body)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	srv, err := api.NewServer(api.ServerConfig{
		Logger:    log.NewNop(),
		Service:   &stubService{},
		RateBurst: 2,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var limited bool
	for i := 0; i < 5; i++ {
		resp, err := http.Get(ts.URL + "/api/courses")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("no request was rate limited after exhausting the burst")
	}
}
