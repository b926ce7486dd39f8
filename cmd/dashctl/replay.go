package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/commands"
	"github.com/goliatone/go-dashboard-model/pkg/backend"
)

type replayCmd struct {
	Script          string `arg:"" type:"existingfile" help:"YAML command script."`
	Fixture         string `type:"existingfile" help:"Backend fixture seeding the in-memory workspace."`
	Dashboard       string `help:"Dashboard identifier to load from the fixture before replaying."`
	Document        string `type:"existingfile" help:"Dashboard document to load before replaying."`
	ContinueOnError bool   `help:"Keep replaying after a failing step."`
	Output          string `default:"yaml" enum:"yaml,json" help:"Report format (yaml, json)."`
}

type replayOutput struct {
	Report commands.ReplayReport `json:"report" yaml:"report"`
	Title  string                `json:"title" yaml:"title"`
	Layout []string              `json:"layout" yaml:"layout"`
}

func (cmd *replayCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	script, err := readScript(cmd.Script)
	if err != nil {
		return err
	}
	mem := backend.NewMemory("local")
	if cmd.Fixture != "" {
		if mem, err = backend.LoadFixture(cmd.Fixture); err != nil {
			return err
		}
	}

	p, _, err := g.startProcessor(ctx, mem)
	if err != nil {
		return err
	}
	defer p.Close()

	switch {
	case cmd.Document != "":
		doc, err := dashboard.ReadDocument(cmd.Document)
		if err != nil {
			return err
		}
		if _, err := p.Execute(ctx, dashboard.NewLoadDashboardDocument(*doc)); err != nil {
			return fmt.Errorf("dashctl: load %s: %w", cmd.Document, err)
		}
	case cmd.Dashboard != "":
		if _, err := p.Execute(ctx, dashboard.NewLoadDashboard(dashboard.IdentifierRef(cmd.Dashboard, "analyticalDashboard"))); err != nil {
			return fmt.Errorf("dashctl: load %s: %w", cmd.Dashboard, err)
		}
	}

	replay := commands.NewReplayCommand(p, nil)
	report, replayErr := replay.Replay(ctx, commands.ReplayInput{Script: script, ContinueOnError: cmd.ContinueOnError})

	state := p.Snapshot()
	result := replayOutput{Report: report, Title: state.Title}
	for _, section := range state.Layout.Sections {
		ids := make([]string, 0, len(section.Items))
		for _, item := range section.Items {
			ids = append(ids, item.Widget.LocalIdentifier)
		}
		result.Layout = append(result.Layout, fmt.Sprintf("%s: %v", section.Header.Title, ids))
	}
	if err := writeReport(out, cmd.Output, result); err != nil {
		return err
	}
	return replayErr
}

func readScript(path string) (commands.Script, error) {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return commands.Script{}, fmt.Errorf("dashctl: open script %s: %w", path, err)
	}
	defer file.Close()
	return commands.ReadScript(file)
}

func writeReport(out io.Writer, format string, v any) error {
	if format == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}
	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("dashctl: write report: %w", err)
	}
	return encoder.Close()
}
