package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"placefinder/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so every vec has a series
	observability.ObserveHTTP("/api/search", "POST", 200, 12*time.Millisecond)
	observability.ObserveExternal("foursquare", "places_search", 200, 30*time.Millisecond)
	observability.ObserveRateLimit("memory", false)
	observability.ObservePipelineFailure("extraction_error")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"placefinder_http_requests_total",
		"placefinder_external_requests_total",
		`placefinder_ratelimit_decisions_total{backend="memory",decision="deny"}`,
		`placefinder_pipeline_failures_total{kind="extraction_error"}`,
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}
