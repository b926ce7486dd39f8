package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	core "github.com/goliatone/go-dashboard-model/components/dashboard"
)

func TestNewProcessorRunsCommands(t *testing.T) {
	p := NewProcessor(Options{})
	p.Start(context.Background())
	defer p.Close()

	cmd, err := DecodeCommand(core.CmdLoadDashboard, []byte(`{"document":{"title":"Empty","layout":{"sections":[]}}}`))
	require.NoError(t, err)

	result, err := p.Execute(context.Background(), cmd)
	require.NoError(t, err)
	require.Nil(t, result.Err)
	require.Equal(t, "Empty", p.Snapshot().Title)
}
