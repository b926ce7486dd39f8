package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

func TestCollectorCountsCommandsAndFailures(t *testing.T) {
	c := NewCollector("test", nil)
	ctx := context.Background()

	c.Record(ctx, dashboard.TelemetryCommandCompleted, map[string]any{"command": "GDC.DASH/CMD.RENAME", "duration_ms": 12.5})
	c.Record(ctx, dashboard.TelemetryCommandFailed, map[string]any{"command": "GDC.DASH/CMD.RENAME", "kind": "USER_ERROR"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Events.WithLabelValues(dashboard.TelemetryCommandCompleted, "GDC.DASH/CMD.RENAME")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Failures.WithLabelValues("GDC.DASH/CMD.RENAME", "USER_ERROR")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Duration))
}

func TestCollectorTracksQueryCacheOutcome(t *testing.T) {
	c := NewCollector("", nil)
	ctx := context.Background()

	c.Record(ctx, dashboard.TelemetryQueryCompleted, map[string]any{"query": "elements", "cached": false})
	c.Record(ctx, dashboard.TelemetryQueryCompleted, map[string]any{"query": "elements", "cached": true})
	c.Record(ctx, dashboard.TelemetryQueryCompleted, map[string]any{"query": "elements", "cached": true})
	c.Record(ctx, dashboard.TelemetryQueryFailed, map[string]any{"query": "elements", "cached": false, "kind": "INTERNAL_ERROR"})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.QueryCache.WithLabelValues("elements", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.QueryCache.WithLabelValues("elements", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Failures.WithLabelValues("elements", "INTERNAL_ERROR")))
}

func TestCollectorHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("dash", nil)
	c.Record(context.Background(), "dashboard.transport.command", map[string]any{"command": "x", "duration_ms": int64(3)})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "dash_telemetry_events_total"))
	assert.True(t, strings.Contains(string(body), "dash_operation_duration_seconds"))
}
