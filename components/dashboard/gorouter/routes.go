package gorouter

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"

	gocommand "github.com/goliatone/go-command"
	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/httpapi"
	"github.com/goliatone/go-dashboard-model/components/dashboard/layout"
	"github.com/goliatone/go-dashboard-model/components/dashboard/queries"
)

// Config wires go-router with the dashboard command surface, queries, the
// layout preview and the event stream.
type Config[T any] struct {
	Router   router.Router[T]
	Commands httpapi.Dispatcher
	State    gocommand.Querier[queries.StateInput, dashboard.State]
	Grid     gocommand.Querier[queries.GridInput, layout.Grid]
	Preview  *layout.Controller
	Events   httpapi.EventSource
	BasePath string
	Routes   RouteConfig
}

// RouteConfig customizes the relative paths used for dashboard endpoints.
type RouteConfig struct {
	Commands  string
	State     string
	Grid      string
	Preview   string
	WebSocket string
}

// routeRegistrar is the subset of router.Router the dashboard routes need.
type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	WebSocket(path string, cfg router.WebSocketConfig, handler func(router.WebSocketContext) error) router.RouteInfo
}

// requestContext is the subset of router.Context the handlers use.
type requestContext interface {
	Context() context.Context
	Body() []byte
	Param(name string, defaultValue ...string) string
	Query(name string, defaultValue ...string) string
	SetHeader(key, value string) router.Context
	Send(body []byte) error
	JSON(code int, v any) error
}

// Register mounts dashboard routes (commands, JSON queries, preview HTML,
// WebSocket events) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.Commands == nil {
		return errors.New("gorouter: command dispatcher is required")
	}
	base := cfg.BasePath
	if base == "" {
		base = "/dashboard"
	}
	registerRoutes(cfg.Router.Group(base), cfg.handlers(), defaultRouteConfig(cfg.Routes))
	return nil
}

type handlers struct {
	commands httpapi.Dispatcher
	state    gocommand.Querier[queries.StateInput, dashboard.State]
	grid     gocommand.Querier[queries.GridInput, layout.Grid]
	preview  *layout.Controller
	events   httpapi.EventSource
}

func (cfg Config[T]) handlers() handlers {
	return handlers{
		commands: cfg.Commands,
		state:    cfg.State,
		grid:     cfg.Grid,
		preview:  cfg.Preview,
		events:   cfg.Events,
	}
}

func wrap(fn func(requestContext) error) router.HandlerFunc {
	return router.WrapHandler(func(ctx router.Context) error {
		return fn(ctx)
	})
}

func registerRoutes(r routeRegistrar, h handlers, routes RouteConfig) {
	r.Post(routes.Commands, wrap(h.command))
	if h.state != nil {
		r.Get(routes.State, wrap(h.stateSnapshot))
	}
	if h.grid != nil {
		r.Get(routes.Grid, wrap(h.gridRows))
	}
	if h.preview != nil {
		r.Get(routes.Preview, wrap(h.previewPage))
	}
	if h.events != nil {
		r.WebSocket(routes.WebSocket, router.DefaultWebSocketConfig(), h.stream)
	}
}

func (h handlers) command(ctx requestContext) error {
	commandType := ctx.Param("type")
	cmd, err := dashboard.DecodeCommand(commandType, ctx.Body())
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, httpapi.CommandResponse{
			Command: commandType,
			Events:  []dashboard.EventEnvelope{},
			Error:   dashboard.NewUserError("%s", err.Error()),
		})
	}
	result, err := h.commands.Dispatch(ctx.Context(), cmd)
	events, encodeErr := dashboard.EnvelopeEvents(result.Events)
	if encodeErr != nil {
		return respondError(ctx, http.StatusInternalServerError, encodeErr)
	}
	response := httpapi.CommandResponse{
		CorrelationID: result.CorrelationID,
		Command:       commandType,
		Events:        events,
		Error:         result.Err,
	}
	if err != nil && response.Error == nil {
		response.Error = dashboard.AsCommandError(err)
	}
	return ctx.JSON(httpapi.StatusFor(err), response)
}

func (h handlers) stateSnapshot(ctx requestContext) error {
	history, _ := strconv.ParseBool(ctx.Query("history"))
	state, err := h.state.Query(ctx.Context(), queries.StateInput{IncludeHistory: history})
	if err != nil {
		return respondError(ctx, httpapi.StatusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, state)
}

func (h handlers) gridRows(ctx requestContext) error {
	input, err := gridInput(ctx)
	if err != nil {
		return respondError(ctx, http.StatusBadRequest, err)
	}
	grid, err := h.grid.Query(ctx.Context(), input)
	if err != nil {
		return respondError(ctx, httpapi.StatusFor(err), err)
	}
	return ctx.JSON(http.StatusOK, grid)
}

func (h handlers) previewPage(ctx requestContext) error {
	input, err := gridInput(ctx)
	if err != nil {
		return respondError(ctx, http.StatusBadRequest, err)
	}
	screen, err := queries.ResolveScreen(input)
	if err != nil {
		return respondError(ctx, http.StatusBadRequest, err)
	}
	var buf bytes.Buffer
	if err := h.preview.RenderTemplate(ctx.Context(), screen, &buf); err != nil {
		return respondError(ctx, http.StatusInternalServerError, err)
	}
	ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
	return ctx.Send(buf.Bytes())
}

func (h handlers) stream(ws router.WebSocketContext) error {
	events, cancel := h.events.Subscribe(nil)
	defer cancel()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return nil
			}
			envelope, err := dashboard.EnvelopeEvent(event)
			if err != nil {
				continue
			}
			if err := ws.WriteJSON(envelope); err != nil {
				return err
			}
		case <-ws.Context().Done():
			return ws.Close()
		}
	}
}

func gridInput(ctx requestContext) (queries.GridInput, error) {
	input := queries.GridInput{Screen: ctx.Query("screen")}
	if raw := ctx.Query("width"); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil {
			return input, errors.New("width must be an integer")
		}
		input.Width = width
	}
	return input, nil
}

func respondError(ctx requestContext, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	if routes.Commands == "" {
		routes.Commands = "/commands/:type"
	}
	if routes.State == "" {
		routes.State = "/state"
	}
	if routes.Grid == "" {
		routes.Grid = "/grid"
	}
	if routes.Preview == "" {
		routes.Preview = "/preview"
	}
	if routes.WebSocket == "" {
		routes.WebSocket = "/ws"
	}
	return routes
}
