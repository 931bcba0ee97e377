package insights_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/insights"
	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/properties"
	"github.com/GriffinCanCode/insights/internal/server"
	"github.com/GriffinCanCode/insights/internal/telemetry"
)

func newCollector(t *testing.T) (*httptest.Server, *server.MemorySink) {
	t.Helper()
	sink := server.NewMemorySink(0)
	srv := server.NewServer(server.Config{}, logging.NewNop(), nil, sink)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sink
}

func clientOptions() insights.ClientOptions {
	opts := insights.DefaultClientOptions()
	opts.RetryMax = 0
	return opts
}

func TestBufferedCallsReachCollector(t *testing.T) {
	ts, sink := newCollector(t)

	snippet := insights.NewSnippet(&insights.Configuration{
		InstrumentationKey: "00000000-0000-0000-0000-000000000001",
		EndpointURL:        ts.URL + "/v2/track",
	})
	require.NoError(t, snippet.Call(func(ai *insights.ApplicationInsights) error {
		ai.TrackPageView(insights.PageView{Name: "home"}, nil)
		return nil
	}))
	require.NoError(t, snippet.Call(func(ai *insights.ApplicationInsights) error {
		ai.TrackEvent(insights.Event{Name: "signup"}, map[string]any{"plan": "pro"})
		return nil
	}))

	ai, err := insights.Load(snippet,
		insights.WithLogger(logging.NewNop()),
		insights.WithSessionStore(properties.NewMemoryStore()),
		insights.WithClientOptions(clientOptions()),
	)
	require.NoError(t, err)
	ai.TrackTrace(insights.Trace{Message: "after load"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ai.Close(ctx))

	got := sink.Envelopes()
	require.Len(t, got, 3)
	assert.Equal(t, "Microsoft.ApplicationInsights.00000000000000000000000000000001.Pageview", got[0].Name)
	assert.Equal(t, telemetry.EventType, got[1].Data.BaseType)
	assert.Equal(t, telemetry.TraceType, got[2].Data.BaseType)
	assert.Equal(t, got[0].Tags[telemetry.TagSessionID], got[2].Tags[telemetry.TagSessionID])
	assert.Equal(t, "go:"+insights.Version, got[0].Tags[telemetry.TagSDKVersion])
}

func TestLightClient(t *testing.T) {
	ts, sink := newCollector(t)

	_, err := insights.NewLight(nil)
	assert.ErrorIs(t, err, insights.ErrInvalidConfiguration)

	light, err := insights.NewLight(&insights.Configuration{
		InstrumentationKey: "ikey",
		EndpointURL:        ts.URL + "/v2/track",
	}, insights.WithLogger(logging.NewNop()), insights.WithClientOptions(clientOptions()))
	require.NoError(t, err)

	light.Track(insights.Event{Name: "manual"}.Item(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, light.Close(ctx))

	got := sink.Envelopes()
	require.Len(t, got, 1)
	assert.Equal(t, "ikey", got[0].IKey)
}
