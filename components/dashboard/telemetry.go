package dashboard

import (
	"context"
	"time"
)

// Telemetry records processor events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}

// Telemetry event names recorded by the processor.
const (
	TelemetryCommandCompleted = "dashboard.command.completed"
	TelemetryCommandFailed    = "dashboard.command.failed"
	TelemetryCommandRejected  = "dashboard.command.rejected"
	TelemetryQueryCompleted   = "dashboard.query.completed"
	TelemetryQueryFailed      = "dashboard.query.failed"
)

func durationMillis(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000
}
