package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersAllInstruments(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200").Add(0)
	m.HTTPRequestDuration.WithLabelValues("GET", "/health").Observe(0)
	m.EventsEmittedTotal.WithLabelValues("SETTLEMENT").Add(0)
	m.DeliveryAttemptsTotal.WithLabelValues("SENT").Add(0)
	m.DeliveryDuration.Observe(0)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}

	expected := []string{
		"webhook_http_requests_total",
		"webhook_http_request_duration_seconds",
		"webhook_events_emitted_total",
		"webhook_delivery_attempts_total",
		"webhook_delivery_duration_seconds",
	}
	for _, name := range expected {
		assert.True(t, names[name], "metric %s not registered", name)
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	assert.Panics(t, func() {
		NewMetrics(registry)
	})
}

func TestMetrics_DeliveryCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.DeliveryAttemptsTotal.WithLabelValues("SENT").Inc()
	m.DeliveryAttemptsTotal.WithLabelValues("SENT").Inc()
	m.DeliveryAttemptsTotal.WithLabelValues("FAILED").Inc()

	expected := `
# HELP webhook_delivery_attempts_total Total number of delivery attempts by final status
# TYPE webhook_delivery_attempts_total counter
webhook_delivery_attempts_total{status="FAILED"} 1
webhook_delivery_attempts_total{status="SENT"} 2
`
	err := testutil.CollectAndCompare(m.DeliveryAttemptsTotal, strings.NewReader(expected))
	assert.NoError(t, err)

	m.EventsEmittedTotal.WithLabelValues("AUTH_RESULT").Inc()
	assert.Equal(t, 1, testutil.CollectAndCount(m.EventsEmittedTotal))
}

func TestMetrics_Handler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.EventsEmittedTotal.WithLabelValues("CHARGEBACK").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "# HELP webhook_events_emitted_total")
	assert.Contains(t, body, `webhook_events_emitted_total{event_type="CHARGEBACK"} 1`)
}

func TestHTTPMiddleware_RecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := gin.New()
	router.Use(HTTPMiddleware(m))
	router.GET("/api/v1/webhooks/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/wh_123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	expected := `
# HELP webhook_http_requests_total Total number of HTTP requests
# TYPE webhook_http_requests_total counter
webhook_http_requests_total{method="GET",path="/api/v1/webhooks/:id",status="200"} 1
`
	err := testutil.CollectAndCompare(m.HTTPRequestsTotal, strings.NewReader(expected))
	assert.NoError(t, err)

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestHTTPMiddleware_UnmatchedRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := gin.New()
	router.Use(HTTPMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	expected := `
# HELP webhook_http_requests_total Total number of HTTP requests
# TYPE webhook_http_requests_total counter
webhook_http_requests_total{method="GET",path="unmatched",status="404"} 1
`
	err := testutil.CollectAndCompare(m.HTTPRequestsTotal, strings.NewReader(expected))
	assert.NoError(t, err)
}
