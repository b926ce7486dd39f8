package commands

import (
	"context"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Telemetry is the processor's recorder, so one collector can observe the
// processor and its transports.
type Telemetry = dashboard.Telemetry

// Telemetry event names recorded by the transport commanders.
const (
	TelemetryTransportCommand       = "dashboard.transport.command"
	TelemetryTransportCommandFailed = "dashboard.transport.command_failed"
	TelemetryReplay                 = "dashboard.replay"
)

type discardTelemetry struct{}

func (discardTelemetry) Record(context.Context, string, map[string]any) {}

func telemetryOrDiscard(t Telemetry) Telemetry {
	if t == nil {
		return discardTelemetry{}
	}
	return t
}
