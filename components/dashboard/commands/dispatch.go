package commands

import (
	"context"
	"errors"
	"time"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Executor runs a dashboard command to completion. *dashboard.Processor
// satisfies it.
type Executor interface {
	Execute(ctx context.Context, cmd dashboard.Command) (dashboard.Result, error)
}

var errMissingExecutor = errors.New("commands: executor is required")

// DispatchCommand routes any dashboard command through the processor so
// transports can depend on a single commander.
type DispatchCommand struct {
	executor  Executor
	telemetry Telemetry
	now       func() time.Time
}

// NewDispatchCommand creates a command instance.
func NewDispatchCommand(executor Executor, telemetry Telemetry) *DispatchCommand {
	return &DispatchCommand{executor: executor, telemetry: telemetryOrDiscard(telemetry), now: time.Now}
}

var _ gocommand.Commander[dashboard.Command] = (*DispatchCommand)(nil)

// Execute runs msg and drops the result.
func (c *DispatchCommand) Execute(ctx context.Context, msg dashboard.Command) error {
	_, err := c.Dispatch(ctx, msg)
	return err
}

// Dispatch runs msg and returns its result with the emitted events.
func (c *DispatchCommand) Dispatch(ctx context.Context, msg dashboard.Command) (dashboard.Result, error) {
	if c.executor == nil {
		return dashboard.Result{}, errMissingExecutor
	}
	if msg == nil {
		return dashboard.Result{}, errors.New("commands: command is required")
	}
	start := c.now()
	result, err := c.executor.Execute(ctx, msg)
	payload := map[string]any{
		"command":        msg.CommandType(),
		"correlation_id": result.CorrelationID,
		"events":         len(result.Events),
		"duration_ms":    c.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		payload["error"] = err.Error()
		c.telemetry.Record(ctx, TelemetryTransportCommandFailed, payload)
		return result, err
	}
	c.telemetry.Record(ctx, TelemetryTransportCommand, payload)
	return result, nil
}
