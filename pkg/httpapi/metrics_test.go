package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetricsHandlerExposesRequestCounter(t *testing.T) {
	m := NewMetrics()
	m.observe("/v1/entities", "POST", 201)
	m.observeRateLimitRejection()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "zoned_http_requests_total") {
		t.Fatalf("expected zoned_http_requests_total in metrics output, got: %s", body)
	}
	if !strings.Contains(body, "zoned_rate_limit_rejections_total") {
		t.Fatalf("expected zoned_rate_limit_rejections_total in metrics output, got: %s", body)
	}
}

func TestServerWithNilMetricsDoesNotPanic(t *testing.T) {
	s := newTestServer(t)
	mux := s.NewMux()

	req := httptest.NewRequest("GET", "/v1/entities/not-a-uuid", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != 422 {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}
