package dependencies

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/shared/id"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	err      error
}

func (r *recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("")), Request: req}, nil
}

type tracked struct {
	deps []telemetry.Dependency
}

func (t *tracked) TrackDependency(d telemetry.Dependency, _ map[string]any) {
	t.deps = append(t.deps, d)
}

type countingLogger struct {
	ids []diagnostics.MessageID
}

func (l *countingLogger) WarnToConsole(string) {}

func (l *countingLogger) ThrowInternal(_ diagnostics.Severity, id diagnostics.MessageID, _ string, _ map[string]any) {
	l.ids = append(l.ids, id)
}

func get(t *testing.T, rt http.RoundTripper, rawURL string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	return resp
}

func TestTracksDependency(t *testing.T) {
	base := &recorder{status: http.StatusNotFound}
	tr := &tracked{}
	metrics := monitoring.NewMetrics()
	rt := NewTransport(base, config.Resolve(nil), tr,
		WithMetrics(metrics),
		WithOperation(func() string { return "0123456789abcdef0123456789abcdef" }))

	get(t, rt, "https://api.example.com/orders?id=1")

	require.Len(t, tr.deps, 1)
	dep := tr.deps[0]
	assert.Equal(t, "GET /orders", dep.Name)
	assert.Equal(t, "api.example.com", dep.Target)
	assert.Equal(t, "404", dep.ResultCode)
	assert.False(t, dep.Success)
	assert.Equal(t, DependencyType, dep.Type)
	assert.True(t, strings.HasPrefix(dep.ID, "|0123456789abcdef0123456789abcdef."))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Dependencies.WithLabelValues("failure")))
}

func TestTransportError(t *testing.T) {
	base := &recorder{err: errors.New("connection refused")}
	tr := &tracked{}
	rt := NewTransport(base, config.Resolve(nil), tr)

	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/x", nil)
	_, err := rt.RoundTrip(req)
	assert.Error(t, err)
	require.Len(t, tr.deps, 1)
	assert.Equal(t, "0", tr.deps[0].ResultCode)
	assert.False(t, tr.deps[0].Success)
}

func TestDisabledTrackingPassesThrough(t *testing.T) {
	base := &recorder{}
	tr := &tracked{}
	rt := NewTransport(base, config.Resolve(&config.Configuration{DisableAjaxTracking: config.FlagOf(true)}), tr)

	get(t, rt, "https://api.example.com/")

	assert.Empty(t, tr.deps)
	require.Len(t, base.requests, 1)
	assert.Empty(t, base.requests[0].Header.Get(RequestIDHeader))
}

func TestBrowserLinkFiltering(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		tracked int
	}{
		{"filtered by default", false, 0},
		{"tracked when enabled", true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &tracked{}
			cfg := config.Resolve(&config.Configuration{IsBrowserLinkTrackingEnabled: config.FlagOf(tt.enabled)})
			rt := NewTransport(&recorder{}, cfg, tr)

			get(t, rt, "http://localhost:5000/abc/browserLinkSignalR/poll")
			assert.Len(t, tr.deps, tt.tracked)
		})
	}
}

func TestMaxCallsPerView(t *testing.T) {
	tr := &tracked{}
	logger := &countingLogger{}
	cfg := config.Resolve(&config.Configuration{MaxAjaxCallsPerView: config.NumberOf(2)})
	rt := NewTransport(&recorder{}, cfg, tr, WithLogger(logger))

	for i := 0; i < 5; i++ {
		get(t, rt, "https://api.example.com/")
	}
	assert.Len(t, tr.deps, 2)
	assert.Equal(t, []diagnostics.MessageID{diagnostics.MaxAjaxPerPVExceeded}, logger.ids)

	rt.ResetView()
	get(t, rt, "https://api.example.com/")
	assert.Len(t, tr.deps, 3)
}

func TestUnlimitedCalls(t *testing.T) {
	tr := &tracked{}
	cfg := config.Resolve(&config.Configuration{MaxAjaxCallsPerView: config.NumberOf(-1)})
	rt := NewTransport(&recorder{}, cfg, tr)

	for i := 0; i < 600; i++ {
		get(t, rt, "https://api.example.com/")
	}
	assert.Len(t, tr.deps, 600)
}

func TestCorrelationHeaders(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Configuration
		url     string
		headers bool
	}{
		{name: "same origin", url: "https://app.example.com/api", headers: true},
		{name: "same origin with port", url: "https://app.example.com:8443/api", headers: true},
		{name: "cross origin without cors", url: "https://other.example.net/", headers: false},
		{
			name:    "cross origin with cors",
			cfg:     &config.Configuration{EnableCorsCorrelation: config.FlagOf(true)},
			url:     "https://other.example.net/",
			headers: true,
		},
		{
			name:    "excluded blob storage",
			cfg:     &config.Configuration{EnableCorsCorrelation: config.FlagOf(true)},
			url:     "https://account.BLOB.core.windows.net/container",
			headers: false,
		},
		{
			name:    "custom exclusion",
			cfg:     &config.Configuration{CorrelationHeaderExcludedDomains: []string{"app.example.com"}},
			url:     "https://app.example.com/api",
			headers: false,
		},
		{
			name: "unicode exclusion matches ascii host",
			cfg: &config.Configuration{
				EnableCorsCorrelation:            config.FlagOf(true),
				CorrelationHeaderExcludedDomains: []string{"*.bücher.example"},
			},
			url:     "https://shop.xn--bcher-kva.example/",
			headers: false,
		},
		{
			name: "ascii exclusion matches unicode host",
			cfg: &config.Configuration{
				EnableCorsCorrelation:            config.FlagOf(true),
				CorrelationHeaderExcludedDomains: []string{"*.xn--bcher-kva.example"},
			},
			url:     "https://shop.BÜCHER.example/",
			headers: false,
		},
		{
			name:    "disabled",
			cfg:     &config.Configuration{DisableCorrelationHeaders: config.FlagOf(true)},
			url:     "https://app.example.com/api",
			headers: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &recorder{}
			rt := NewTransport(base, config.Resolve(tt.cfg), &tracked{}, WithOrigin("https://app.example.com"))

			get(t, rt, tt.url)

			require.Len(t, base.requests, 1)
			sent := base.requests[0]
			if !tt.headers {
				assert.Empty(t, sent.Header.Get(RequestIDHeader))
				assert.Empty(t, sent.Header.Get(TraceparentHeader))
				return
			}
			parts := strings.Split(sent.Header.Get(TraceparentHeader), "-")
			require.Len(t, parts, 4)
			assert.Equal(t, "00", parts[0])
			assert.True(t, id.IsOperationID(parts[1]))
			assert.True(t, id.IsSpanID(parts[2]))
			assert.Equal(t, "|"+parts[1]+"."+parts[2]+".", sent.Header.Get(RequestIDHeader))
		})
	}
}

func TestCanonicalHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "App.Example.COM", want: "app.example.com"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "*.Bücher.example", want: "*.xn--bcher-kva.example"},
		{in: "xn--bcher-kva.example", want: "xn--bcher-kva.example"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalHost(tt.in), tt.in)
	}
	assert.Equal(t, "xn--bcher-kva.example", hostOf("https://bücher.example:8443"))
}

func TestOriginalRequestUntouched(t *testing.T) {
	var seen *http.Request
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})
	rt := NewTransport(base, config.Resolve(nil), &tracked{})

	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	_, err := rt.RoundTrip(req)
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get(RequestIDHeader))
	assert.NotEmpty(t, seen.Header.Get(RequestIDHeader))
}
