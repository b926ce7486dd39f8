package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/pkg/config"
)

type cli struct {
	Globals

	Layout   layoutCmd   `cmd:"" help:"Render the responsive grid of a dashboard document."`
	Replay   replayCmd   `cmd:"" help:"Replay a YAML command script against a dashboard."`
	Validate validateCmd `cmd:"" help:"Validate dashboard documents against the document schema."`
	Commands commandsCmd `cmd:"" help:"List the command types accepted by replay scripts."`
}

// Globals are shared by every subcommand.
type Globals struct {
	Config  string `type:"path" help:"Optional YAML config file (DASHBOARD_* env vars override it)."`
	Verbose bool   `short:"v" help:"Log processor activity to stderr."`
}

func (g *Globals) load() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return config.Config{}, nil, err
	}
	if !g.Verbose {
		return cfg, zap.NewNop(), nil
	}
	cfg.Log.Level = "debug"
	logger, err := cfg.NewLogger()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// startProcessor builds and starts a processor from config. The caller closes it.
func (g *Globals) startProcessor(ctx context.Context, backend dashboard.Backend) (*dashboard.Processor, *zap.Logger, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return nil, nil, err
	}
	p := dashboard.NewProcessor(cfg.ProcessorOptions(backend, logger, nil))
	p.Start(ctx)
	return p, logger, nil
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Description("Inspect, validate and script dashboards."),
		kong.UsageOnError(),
		kong.Bind(&c.Globals),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
		kong.BindTo(io.Writer(os.Stdout), (*io.Writer)(nil)),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
