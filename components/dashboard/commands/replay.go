package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	gocommand "github.com/goliatone/go-command"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Script is an ordered list of commands stored as YAML.
type Script struct {
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step names a command type and its payload.
type Step struct {
	Command       string         `yaml:"command" json:"command"`
	CorrelationID string         `yaml:"correlationId,omitempty" json:"correlationId,omitempty"`
	Payload       map[string]any `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// Decode builds the dashboard command described by the step.
func (s Step) Decode() (dashboard.Command, error) {
	payload := make(map[string]any, len(s.Payload)+1)
	for key, value := range s.Payload {
		payload[key] = value
	}
	if s.CorrelationID != "" {
		payload["correlationId"] = s.CorrelationID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("commands: encode %s payload: %w", s.Command, err)
	}
	return dashboard.DecodeCommand(s.Command, raw)
}

// ReadScript decodes a YAML script. Unknown keys are rejected.
func ReadScript(r io.Reader) (Script, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var script Script
	if err := decoder.Decode(&script); err != nil {
		if errors.Is(err, io.EOF) {
			return Script{}, errors.New("commands: script is empty")
		}
		return Script{}, fmt.Errorf("commands: decode script: %w", err)
	}
	for i, step := range script.Steps {
		if step.Command == "" {
			return Script{}, fmt.Errorf("commands: step %d has no command", i)
		}
	}
	return script, nil
}

// ReplayInput controls a script replay.
type ReplayInput struct {
	Script          Script
	ContinueOnError bool
}

// StepResult summarizes one replayed step.
type StepResult struct {
	Command       string   `json:"command" yaml:"command"`
	CorrelationID string   `json:"correlationId" yaml:"correlationId"`
	Events        []string `json:"events" yaml:"events"`
	Error         string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ReplayReport lists the outcome of every step that ran.
type ReplayReport struct {
	Steps  []StepResult `json:"steps" yaml:"steps"`
	Failed int          `json:"failed" yaml:"failed"`
}

// ReplayCommand executes scripts against a processor in order.
type ReplayCommand struct {
	dispatch  *DispatchCommand
	telemetry Telemetry
}

// NewReplayCommand wires dependencies.
func NewReplayCommand(executor Executor, telemetry Telemetry) *ReplayCommand {
	return &ReplayCommand{
		dispatch:  NewDispatchCommand(executor, telemetry),
		telemetry: telemetryOrDiscard(telemetry),
	}
}

var _ gocommand.Commander[ReplayInput] = (*ReplayCommand)(nil)

// Execute replays the script and reports the first failure.
func (c *ReplayCommand) Execute(ctx context.Context, msg ReplayInput) error {
	_, err := c.Replay(ctx, msg)
	return err
}

// Replay runs every step. Without ContinueOnError it stops at the first
// failing step and returns its error.
func (c *ReplayCommand) Replay(ctx context.Context, msg ReplayInput) (ReplayReport, error) {
	var report ReplayReport
	var firstErr error
	for i, step := range msg.Script.Steps {
		outcome := StepResult{Command: step.Command}
		cmd, err := step.Decode()
		if err == nil {
			var result dashboard.Result
			result, err = c.dispatch.Dispatch(ctx, cmd)
			outcome.CorrelationID = result.CorrelationID
			for _, event := range result.Events {
				outcome.Events = append(outcome.Events, event.EventType())
			}
		}
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("step %d (%s): %w", i, step.Command, err)
			}
		}
		report.Steps = append(report.Steps, outcome)
		if err != nil && !msg.ContinueOnError {
			break
		}
	}
	c.telemetry.Record(ctx, TelemetryReplay, map[string]any{
		"steps":  len(report.Steps),
		"failed": report.Failed,
	})
	return report, firstErr
}
