package dependencies

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/net/idna"

	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/shared/id"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

// Correlation headers.
const (
	RequestIDHeader   = "Request-Id"
	TraceparentHeader = "traceparent"
)

// DependencyType is recorded on every tracked call.
const DependencyType = "Http"

var browserLinkPaths = []string{"/browserLinkSignalR/", "/__browserLink/"}

// Tracker receives collected dependency calls.
type Tracker interface {
	TrackDependency(d telemetry.Dependency, custom map[string]any)
}

// Transport is an http.RoundTripper that tracks outbound calls as
// dependencies and adds correlation headers.
type Transport struct {
	base      http.RoundTripper
	cfg       *config.Resolved
	tracker   Tracker
	logger    diagnostics.Logger
	metrics   *monitoring.Metrics
	ids       *id.Generator
	origin    string
	operation func() string

	mu     sync.Mutex
	calls  int
	warned bool
}

// Option customizes a Transport.
type Option func(*Transport)

// WithOrigin sets the host treated as same-origin. Any other host is
// cross-origin. Without an origin every host is same-origin.
func WithOrigin(origin string) Option {
	return func(t *Transport) {
		t.origin = hostOf(origin)
	}
}

// WithOperation supplies the current operation id for correlation.
func WithOperation(fn func() string) Option {
	return func(t *Transport) {
		t.operation = fn
	}
}

// WithMetrics counts tracked calls by outcome.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithLogger reports internal diagnostics.
func WithLogger(l diagnostics.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTransport wraps base; nil means http.DefaultTransport.
func NewTransport(base http.RoundTripper, cfg *config.Resolved, tracker Tracker, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg == nil {
		cfg = config.Resolve(nil)
	}
	t := &Transport{
		base:    base,
		cfg:     cfg,
		tracker: tracker,
		logger:  diagnostics.Nop{},
		ids:     id.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if t.operation == nil {
		t.operation = func() string { return t.ids.OperationID().String() }
	}
	return t
}

// ResetView restarts the per-view call budget. It is called on every page
// view.
func (t *Transport) ResetView() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = 0
	t.warned = false
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.cfg.DisableAjaxTracking {
		return t.base.RoundTrip(req)
	}
	if !t.cfg.IsBrowserLinkTrackingEnabled && isBrowserLink(req.URL) {
		return t.base.RoundTrip(req)
	}
	if !t.admit() {
		return t.base.RoundTrip(req)
	}

	operation := t.operation()
	span := t.ids.SpanID().String()
	requestID := "|" + operation + "." + span + "."

	if t.correlate(req.URL) {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
		req.Header.Set(TraceparentHeader, "00-"+operation+"-"+span+"-01")
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	dep := telemetry.Dependency{
		ID:       requestID,
		Name:     req.Method + " " + req.URL.Path,
		Target:   req.URL.Host,
		Type:     DependencyType,
		Data:     req.URL.String(),
		Duration: elapsed,
	}
	if err != nil {
		dep.ResultCode = "0"
		dep.Properties = map[string]any{"error": err.Error()}
	} else {
		dep.ResultCode = strconv.Itoa(resp.StatusCode)
		dep.Success = resp.StatusCode < http.StatusBadRequest
	}

	if t.tracker != nil {
		t.tracker.TrackDependency(dep, nil)
	}
	if t.metrics != nil {
		t.metrics.RecordDependency(dep.Success)
	}
	return resp, err
}

// admit counts the call against the per-view budget.
func (t *Transport) admit() bool {
	limit := t.cfg.MaxAjaxCallsPerView

	t.mu.Lock()
	defer t.mu.Unlock()

	if limit < 0 {
		return true
	}
	t.calls++
	if t.calls <= limit {
		return true
	}
	if !t.warned {
		t.warned = true
		t.logger.ThrowInternal(diagnostics.Warning, diagnostics.MaxAjaxPerPVExceeded,
			"Maximum dependency calls per view exceeded", map[string]any{"limit": limit})
	}
	return false
}

// correlate decides whether u receives correlation headers.
func (t *Transport) correlate(u *url.URL) bool {
	if t.cfg.DisableCorrelationHeaders {
		return false
	}
	host := canonicalHost(u.Hostname())
	for _, pattern := range t.cfg.CorrelationHeaderExcludedDomains {
		if ok, err := doublestar.Match(canonicalHost(pattern), host); err == nil && ok {
			return false
		}
	}
	if t.origin != "" && host != t.origin {
		return t.cfg.EnableCorsCorrelation
	}
	return true
}

func isBrowserLink(u *url.URL) bool {
	for _, p := range browserLinkPaths {
		if strings.Contains(u.Path, p) {
			return true
		}
	}
	return false
}

func hostOf(origin string) string {
	if strings.Contains(origin, "://") {
		if u, err := url.Parse(origin); err == nil {
			return canonicalHost(u.Hostname())
		}
	}
	if h, _, ok := strings.Cut(origin, ":"); ok {
		return canonicalHost(h)
	}
	return canonicalHost(origin)
}

// canonicalHost lowercases h and converts internationalized labels to their
// ASCII form, so "bücher.example" and "xn--bcher-kva.example" compare equal.
// Wildcards pass through unchanged.
func canonicalHost(h string) string {
	h = strings.ToLower(h)
	if ascii, err := idna.Punycode.ToASCII(h); err == nil {
		return ascii
	}
	return h
}
