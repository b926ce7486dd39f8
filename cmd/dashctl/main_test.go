package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/layout"
)

func fixture(name string) string { return filepath.Join("testdata", name) }

func TestLayoutTextOutput(t *testing.T) {
	var out bytes.Buffer
	cmd := &layoutCmd{Document: fixture("dashboard.yaml"), Screen: "xl", Format: "text"}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}, &out))

	text := out.String()
	assert.Contains(t, text, "Sales overview [xl, 1400px]")
	assert.Contains(t, text, "#revenue\n")
	assert.Contains(t, text, "row 0 (440px): revenue-trend@0/8 revenue-kpi@8/4")
	assert.Contains(t, text, "#pipeline\n")
}

func TestLayoutWidthPicksScreen(t *testing.T) {
	var out bytes.Buffer
	cmd := &layoutCmd{Document: fixture("dashboard.yaml"), Screen: "xl", Width: 800, Format: "json"}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}, &out))

	var payload layout.Payload
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, layout.ScreenSM, payload.Screen)
	require.Len(t, payload.Grid.Sections, 2)
	// sm stacks every item on its own row
	assert.Len(t, payload.Grid.Sections[0].Rows, 2)
}

func TestLayoutHTMLOutput(t *testing.T) {
	var out bytes.Buffer
	cmd := &layoutCmd{Document: fixture("dashboard.yaml"), Screen: "lg", Format: "html"}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}, &out))
	assert.Contains(t, out.String(), `data-widget="revenue-trend"`)
}

func TestReplayAppliesScript(t *testing.T) {
	var out bytes.Buffer
	cmd := &replayCmd{Script: fixture("script.yaml"), Document: fixture("dashboard.yaml"), Output: "yaml"}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}, &out))

	var got replayOutput
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Quarterly sales", got.Title)
	require.Len(t, got.Report.Steps, 2)
	assert.Equal(t, "rename-1", got.Report.Steps[0].CorrelationID)
	assert.Contains(t, got.Report.Steps[1].Events, dashboard.EventLayoutChanged)
	assert.Equal(t, []string{
		"Pipeline: [pipeline-by-region]",
		"Revenue: [revenue-trend revenue-kpi]",
	}, got.Layout)
}

func TestReplayStopsAtFirstFailure(t *testing.T) {
	var out bytes.Buffer
	cmd := &replayCmd{Script: fixture("failing.yaml"), Document: fixture("dashboard.yaml"), Output: "json"}

	err := cmd.Run(context.Background(), &Globals{}, &out)
	require.Error(t, err)

	var got replayOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.Report.Failed)
	assert.Len(t, got.Report.Steps, 1)
	assert.Equal(t, "Sales overview", got.Title)
}

func TestValidateReportsEachDocument(t *testing.T) {
	var out bytes.Buffer
	cmd := &validateCmd{Paths: []string{fixture("dashboard.yaml"), fixture("broken.yaml")}}

	err := cmd.Run(context.Background(), &out)
	require.ErrorIs(t, err, errInvalidDocuments)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "✓"))
	assert.True(t, strings.HasPrefix(lines[1], "✗"))
}

func TestCommandsListsTypes(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&commandsCmd{}).Run(context.Background(), &out))
	assert.Contains(t, out.String(), dashboard.CmdMoveLayoutSection+"\n")
}
