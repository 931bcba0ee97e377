package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/insights/internal/channel"
	"github.com/GriffinCanCode/insights/internal/config"
	"github.com/GriffinCanCode/insights/internal/diagnostics"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
	"github.com/GriffinCanCode/insights/internal/pipeline"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

func newTestServer(t *testing.T, rl RateLimitConfig) (*Server, *httptest.Server, *MemorySink, *monitoring.Metrics) {
	t.Helper()
	sink := NewMemorySink(0)
	metrics := monitoring.NewMetrics()
	srv := NewServer(Config{RateLimit: rl}, logging.NewNop(), metrics, sink)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Close()
		ts.Close()
	})
	return srv, ts, sink, metrics
}

func envelope(ikey, name string) telemetry.Envelope {
	item := telemetry.Event{Name: name}.Item(nil)
	item.IKey = ikey
	return telemetry.NewEnvelope(item)
}

func post(t *testing.T, url string, body []byte, gzip bool) (*http.Response, telemetry.TrackResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/v2/track", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", telemetry.ContentType)
	if gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out telemetry.TrackResponse
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = sonic.Unmarshal(data, &out)
	return resp, out
}

func TestTrackAcceptsBatches(t *testing.T) {
	batch := []telemetry.Envelope{envelope("ikey", "a"), envelope("ikey", "b")}

	tests := []struct {
		name string
		gzip bool
	}{
		{name: "gzip", gzip: true},
		{name: "plain", gzip: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts, sink, metrics := newTestServer(t, RateLimitConfig{})

			var body []byte
			var err error
			if tt.gzip {
				body, err = telemetry.Encode(batch)
			} else {
				body, err = telemetry.Marshal(batch)
			}
			require.NoError(t, err)

			resp, out := post(t, ts.URL, body, tt.gzip)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, 2, out.ItemsReceived)
			assert.Equal(t, 2, out.ItemsAccepted)
			assert.Empty(t, out.Errors)
			assert.Len(t, sink.Envelopes(), 2)
			assert.Equal(t, float64(2), testutil.ToFloat64(metrics.EnvelopesReceived.WithLabelValues("accepted")))
		})
	}
}

func TestTrackPartialRejection(t *testing.T) {
	_, ts, sink, _ := newTestServer(t, RateLimitConfig{})

	missingName := envelope("ikey", "x")
	missingName.Name = ""
	body, err := telemetry.Encode([]telemetry.Envelope{
		envelope("ikey", "ok"),
		envelope("", "no key"),
		missingName,
	})
	require.NoError(t, err)

	resp, out := post(t, ts.URL, body, true)
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, 3, out.ItemsReceived)
	assert.Equal(t, 1, out.ItemsAccepted)
	require.Len(t, out.Errors, 2)
	assert.Equal(t, 1, out.Errors[0].Index)
	assert.Equal(t, http.StatusBadRequest, out.Errors[0].StatusCode)
	assert.Contains(t, out.Errors[0].Message, "iKey")
	assert.Equal(t, 2, out.Errors[1].Index)
	assert.Contains(t, out.Errors[1].Message, "name")
	assert.Len(t, sink.Envelopes(), 1)
}

func TestTrackRejectsMalformedBody(t *testing.T) {
	_, ts, _, _ := newTestServer(t, RateLimitConfig{})

	resp, _ := post(t, ts.URL, []byte("{not json"), false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, ts.URL, []byte("not gzip"), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts, _, _ := newTestServer(t, RateLimitConfig{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(data), "insights_")
}

func TestRateLimit(t *testing.T) {
	_, ts, _, _ := newTestServer(t, RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Contains(t, statuses[1:], http.StatusTooManyRequests)
}

func TestLiveTail(t *testing.T) {
	srv, ts, _, metrics := newTestServer(t, RateLimitConfig{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v2/live"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Hub().Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.LiveSubscribers))

	body, err := telemetry.Encode([]telemetry.Envelope{envelope("ikey", "live")})
	require.NoError(t, err)
	post(t, ts.URL, body, true)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got []telemetry.Envelope
	require.NoError(t, sonic.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].Data.BaseData["name"])
}

type nopHandle struct{}

func (nopHandle) Track(*telemetry.Item)                      {}
func (nopHandle) Logger() diagnostics.Logger                 { return diagnostics.Nop{} }
func (nopHandle) Version() string                            { return "2.0.0" }
func (nopHandle) TransmissionControls() [][]pipeline.Channel { return nil }

func TestSenderDeliversToCollector(t *testing.T) {
	_, ts, sink, _ := newTestServer(t, RateLimitConfig{})

	opts := channel.DefaultClientOptions()
	opts.RetryMax = 0
	sender := channel.NewSender(channel.WithClientOptions(opts))
	cfg := config.Resolve(&config.Configuration{
		InstrumentationKey: "ikey",
		EndpointURL:        ts.URL + "/v2/track",
	})
	require.NoError(t, sender.Initialize(cfg, nopHandle{}, nil))

	for _, name := range []string{"one", "two", "three"} {
		item := telemetry.Event{Name: name}.Item(nil)
		item.IKey = "ikey"
		sender.ProcessTelemetry(item)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sender.Close(ctx))

	got := sink.Envelopes()
	require.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Data.BaseData["name"])
	assert.Equal(t, 0, sender.Buffered())
}

func TestMemorySinkLimit(t *testing.T) {
	sink := NewMemorySink(2)
	sink.Accept([]telemetry.Envelope{envelope("k", "a"), envelope("k", "b"), envelope("k", "c")})
	got := sink.Envelopes()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Data.BaseData["name"])
}
