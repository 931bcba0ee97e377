package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics()
		NewMetrics()
	})
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()

	m.RecordTracked("EventData")
	m.RecordTracked("EventData")
	m.RecordQueuedCall(false)
	m.RecordQueuedCall(true)
	m.RecordFlush(true)
	m.RecordDependency(false)
	m.RecordBatch("200", 3, 10*time.Millisecond)
	m.RecordEnvelopes(2, 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ItemsTracked.WithLabelValues("EventData")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.QueuedCalls.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Flushes.WithLabelValues("async")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Dependencies.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BatchesSent.WithLabelValues("200")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.EnvelopesReceived.WithLabelValues("accepted")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/ping", "200")))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "collector_http_requests_total"))
}
