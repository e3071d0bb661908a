package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpserver "placefinder/internal/adapters/http_server"
	"placefinder/internal/app"
	"placefinder/internal/domain"
)

type stubExtractor struct {
	q   domain.ParsedQuery
	err error
	got string
}

func (s *stubExtractor) Extract(ctx context.Context, message string) (domain.ParsedQuery, error) {
	s.got = message
	return s.q, s.err
}

type stubPlaces struct {
	rs  []domain.PlaceResult
	err error
}

func (s *stubPlaces) Search(ctx context.Context, p domain.ParsedQuery) (domain.SearchResponse, error) {
	if s.err != nil {
		return domain.SearchResponse{}, s.err
	}
	return domain.NewSearchResponse(domain.FilterMinRating(s.rs, p.Rating)), nil
}

type stubLimiter struct {
	d   domain.RateDecision
	err error
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (domain.RateDecision, error) {
	return s.d, s.err
}

func f64(v float64) *float64 { return &v }
func yes() *bool            { b := true; return &b }

func newServer(h *httpserver.Handlers) http.Handler {
	return newServerWith(httpserver.Options{Timeout: 5 * time.Second}, h)
}

func newServerWith(opts httpserver.Options, h *httpserver.Handlers) http.Handler {
	srv := httpserver.New(opts)
	srv.MountHandlers(h)
	return srv.Mux()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return m
}

func TestSearch_OK(t *testing.T) {
	ex := &stubExtractor{q: domain.ParsedQuery{Query: "sushi", Near: "Chicago, IL", Rating: f64(7)}}
	pl := &stubPlaces{rs: []domain.PlaceResult{
		{ID: "a", Name: "A", Rating: f64(9.5)},
		{ID: "b", Name: "B", Rating: f64(4.2)},
	}}
	h := newServer(&httpserver.Handlers{S: app.NewSearchService(ex, pl)})

	rr := post(t, h, "/api/search", `{"message":"good sushi in Chicago, 3.5 stars"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var out domain.SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || len(out.Results) != 1 || out.Results[0].ID != "a" {
		t.Fatalf("unexpected response: %+v", out)
	}
	if ex.got != "good sushi in Chicago, 3.5 stars" {
		t.Fatalf("extractor got %q", ex.got)
	}
}

func TestSearch_EmptyResultsAreAnArray(t *testing.T) {
	ex := &stubExtractor{q: domain.ParsedQuery{Query: "x", Near: "y", Rating: f64(9.9)}}
	pl := &stubPlaces{rs: []domain.PlaceResult{{ID: "a", Rating: f64(1)}}}
	h := newServer(&httpserver.Handlers{S: app.NewSearchService(ex, pl)})

	rr := post(t, h, "/api/search", `{"message":"x near y"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"results":[]`) || !strings.Contains(rr.Body.String(), `"total":0`) {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSearch_ExecuteAliasAcceptsQueryField(t *testing.T) {
	ex := &stubExtractor{q: domain.ParsedQuery{Query: "tacos", Near: "Austin, TX"}}
	h := newServer(&httpserver.Handlers{S: app.NewSearchService(ex, &stubPlaces{})})

	rr := post(t, h, "/api/execute", `{"query":"tacos in Austin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ex.got != "tacos in Austin" {
		t.Fatalf("extractor got %q", ex.got)
	}
}

func TestSearch_OpenFirst(t *testing.T) {
	ex := &stubExtractor{q: domain.ParsedQuery{Query: "bar", Near: "Berlin"}}
	pl := &stubPlaces{rs: []domain.PlaceResult{
		{ID: "closed"},
		{ID: "open", Hours: &domain.Hours{OpenNow: yes()}},
	}}
	h := newServer(&httpserver.Handlers{S: app.NewSearchService(ex, pl)})

	rr := post(t, h, "/api/search", `{"message":"bars in Berlin","open_first":true}`)
	var out domain.SearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 || out.Results[0].ID != "open" {
		t.Fatalf("open place must come first: %+v", out.Results)
	}
}

func TestSearch_ErrorMapping(t *testing.T) {
	timeout := domain.SearchError("places API request timed out", context.DeadlineExceeded)
	cases := []struct {
		name   string
		body   string
		svc    *app.SearchService
		status int
		kind   string
	}{
		{"bad json", `{"message":`, app.NewSearchService(&stubExtractor{}, &stubPlaces{}), 400, "invalid_input"},
		{"empty body", ``, app.NewSearchService(&stubExtractor{}, &stubPlaces{}), 400, "invalid_input"},
		{"blank message", `{"message":"   "}`, app.NewSearchService(&stubExtractor{}, &stubPlaces{}), 400, "invalid_input"},
		{"not configured", `{"message":"hi"}`, app.NewSearchService(nil, nil), 500, "configuration_error"},
		{"extraction", `{"message":"hi"}`, app.NewSearchService(&stubExtractor{err: domain.ExtractionError("no content from model", nil)}, &stubPlaces{}), 502, "extraction_error"},
		{"search", `{"message":"hi"}`, app.NewSearchService(&stubExtractor{q: domain.ParsedQuery{Query: "a", Near: "b"}}, &stubPlaces{err: domain.SearchError("places API request failed", nil)}), 502, "search_error"},
		{"timeout", `{"message":"hi"}`, app.NewSearchService(&stubExtractor{q: domain.ParsedQuery{Query: "a", Near: "b"}}, &stubPlaces{err: timeout}), 504, "search_error"},
		{"unknown", `{"message":"hi"}`, app.NewSearchService(&stubExtractor{err: errors.New("boom")}, &stubPlaces{}), 500, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, newServer(&httpserver.Handlers{S: tc.svc}), "/api/search", tc.body)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d (body=%s)", rr.Code, tc.status, rr.Body.String())
			}
			m := decodeError(t, rr)
			if m["kind"] != tc.kind {
				t.Fatalf("kind = %v, want %s", m["kind"], tc.kind)
			}
			if s, _ := m["error"].(string); s == "" {
				t.Fatalf("error message must be present: %v", m)
			}
		})
	}
}

type slowPlaces struct{}

func (slowPlaces) Search(ctx context.Context, p domain.ParsedQuery) (domain.SearchResponse, error) {
	<-ctx.Done()
	return domain.SearchResponse{}, domain.SearchError("places API request timed out", ctx.Err())
}

func TestSearch_RequestTimeoutIsJSON504(t *testing.T) {
	ex := &stubExtractor{q: domain.ParsedQuery{Query: "a", Near: "b"}}
	h := newServerWith(httpserver.Options{Timeout: 50 * time.Millisecond},
		&httpserver.Handlers{S: app.NewSearchService(ex, slowPlaces{})})

	rr := post(t, h, "/api/search", `{"message":"hi"}`)
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if m := decodeError(t, rr); m["kind"] != "search_error" {
		t.Fatalf("unexpected body: %v", m)
	}
}

func TestHealthz(t *testing.T) {
	h := newServer(&httpserver.Handlers{S: app.NewSearchService(nil, nil)})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}
