package layout

import (
	"context"
	"embed"
	"errors"
	"io"
	"io/fs"
	"strconv"

	template "github.com/goliatone/go-template"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// DefaultTemplate is the preview template rendered by Controller.
const DefaultTemplate = "layout"

//go:embed templates/*.html
var embeddedTemplates embed.FS

// Renderer describes the template renderer contract needed by the controller.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

// NewTemplateRenderer creates a go-template renderer backed by the embedded templates.
func NewTemplateRenderer() (Renderer, error) {
	templates, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return template.NewRenderer(
		template.WithFS(templates),
		template.WithExtension(".html"),
	)
}

// StateSource exposes a consistent dashboard snapshot. *dashboard.Processor
// satisfies it.
type StateSource interface {
	Snapshot() dashboard.State
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Source   StateSource
	Renderer Renderer
	Template string
	Logger   *zap.Logger
}

// Controller turns the current dashboard state into grids and preview pages.
// It never mutates the dashboard.
type Controller struct {
	source   StateSource
	renderer Renderer
	template string
	logger   *zap.Logger
}

var errMissingSource = errors.New("layout: state source is required")

// NewController wires a state source and renderer into a controller.
func NewController(opts ControllerOptions) *Controller {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		source:   opts.Source,
		renderer: opts.Renderer,
		template: opts.Template,
		logger:   opts.Logger,
	}
}

// Grid builds the grid of the current layout for screen.
func (c *Controller) Grid(screen Screen) (Grid, error) {
	if c.source == nil {
		return Grid{}, errMissingSource
	}
	return Build(c.source.Snapshot().Layout, screen)
}

// Payload is the data handed to the preview template.
type Payload struct {
	Title   string   `json:"title"`
	Screen  Screen   `json:"screen"`
	Screens []Screen `json:"screens"`
	Grid    Grid     `json:"grid"`
}

// LayoutPayload snapshots the dashboard and builds its grid for screen.
func (c *Controller) LayoutPayload(_ context.Context, screen Screen) (Payload, error) {
	if c.source == nil {
		return Payload{}, errMissingSource
	}
	state := c.source.Snapshot()
	grid, err := Build(state.Layout, screen)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Title: state.Title, Screen: screen, Screens: Screens, Grid: grid}, nil
}

// RenderTemplate writes the preview page for screen to out.
func (c *Controller) RenderTemplate(ctx context.Context, screen Screen, out io.Writer) error {
	if c.renderer == nil {
		return errors.New("layout: renderer is required")
	}
	payload, err := c.LayoutPayload(ctx, screen)
	if err != nil {
		return err
	}
	if _, err := c.renderer.Render(c.template, templateData(payload), out); err != nil {
		c.logger.Warn("layout preview render failed", zap.String("screen", string(screen)), zap.Error(err))
		return err
	}
	return nil
}

// templateData flattens the payload into the maps the template engine walks.
// The renderer passes data through JSON, so numbers are preformatted.
func templateData(payload Payload) map[string]any {
	sections := make([]map[string]any, 0, len(payload.Grid.Sections))
	for _, section := range payload.Grid.Sections {
		rows := make([]map[string]any, 0, len(section.Rows))
		for _, row := range section.Rows {
			cells := make([]map[string]any, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, map[string]any{
					"id":     cell.Widget.Identity(),
					"type":   string(cell.Widget.Type),
					"title":  cell.Widget.Title,
					"start":  strconv.Itoa(cell.Column + 1),
					"width":  strconv.Itoa(cell.Size.GridWidth),
					"height": strconv.Itoa(cell.Height * RowHeightPx),
				})
			}
			rows = append(rows, map[string]any{"cells": cells, "height": strconv.Itoa(row.HeightPx())})
		}
		sections = append(sections, map[string]any{
			"title":       section.Header.Title,
			"description": section.Header.Description,
			"rows":        rows,
		})
	}
	screens := make([]string, 0, len(payload.Screens))
	for _, screen := range payload.Screens {
		screens = append(screens, string(screen))
	}
	return map[string]any{
		"title":           payload.Title,
		"screen":          string(payload.Screen),
		"screens":         screens,
		"container_width": strconv.Itoa(payload.Grid.ContainerWidth),
		"columns":         strconv.Itoa(dashboard.GridColumns),
		"sections":        sections,
	}
}
