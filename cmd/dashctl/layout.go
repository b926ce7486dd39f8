package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ettle/strcase"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/layout"
)

type layoutCmd struct {
	Document string `arg:"" type:"existingfile" help:"Dashboard document (YAML or JSON)."`
	Screen   string `default:"xl" enum:"xs,sm,md,lg,xl" help:"Breakpoint to render (xs, sm, md, lg, xl)."`
	Width    int    `help:"Viewport width in pixels; overrides --screen."`
	Format   string `default:"text" enum:"text,json,html" help:"Output format (text, json, html)."`
}

func (cmd *layoutCmd) Run(ctx context.Context, g *Globals, out io.Writer) error {
	doc, err := dashboard.ReadDocument(cmd.Document)
	if err != nil {
		return err
	}
	screen, err := layout.ParseScreen(cmd.Screen)
	if err != nil {
		return err
	}
	if cmd.Width > 0 {
		screen = layout.ScreenForWidth(cmd.Width)
	}

	p, logger, err := g.startProcessor(ctx, nil)
	if err != nil {
		return err
	}
	defer p.Close()
	if _, err := p.Execute(ctx, dashboard.NewLoadDashboardDocument(*doc)); err != nil {
		return fmt.Errorf("dashctl: load %s: %w", cmd.Document, err)
	}

	controller := layout.NewController(layout.ControllerOptions{Source: p, Logger: logger})
	switch cmd.Format {
	case "json":
		payload, err := controller.LayoutPayload(ctx, screen)
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	case "html":
		renderer, err := layout.NewTemplateRenderer()
		if err != nil {
			return err
		}
		controller = layout.NewController(layout.ControllerOptions{Source: p, Renderer: renderer, Logger: logger})
		return controller.RenderTemplate(ctx, screen, out)
	}
	grid, err := controller.Grid(screen)
	if err != nil {
		return err
	}
	return writeGridText(out, p.Snapshot().Title, grid)
}

func writeGridText(out io.Writer, title string, grid layout.Grid) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s, %dpx]\n", title, grid.Screen, grid.ContainerWidth)
	for _, section := range grid.Sections {
		slug := strcase.ToKebab(section.Header.Title)
		if slug == "" {
			slug = fmt.Sprintf("section-%d", section.Index)
		}
		fmt.Fprintf(&b, "#%s\n", slug)
		for i, row := range section.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, fmt.Sprintf("%s@%d/%d", cellName(cell), cell.Column, cell.Size.GridWidth))
			}
			fmt.Fprintf(&b, "  row %d (%dpx): %s\n", i, row.HeightPx(), strings.Join(cells, " "))
		}
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func cellName(cell layout.Cell) string {
	if cell.Widget.LocalIdentifier != "" {
		return cell.Widget.LocalIdentifier
	}
	if id := cell.Widget.Ref.Identifier; id != "" {
		return id
	}
	return string(cell.Widget.Type)
}
