package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	gocommand "github.com/goliatone/go-command"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/layout"
	"github.com/goliatone/go-dashboard-model/components/dashboard/queries"
)

// MaxBodyBytes caps command payloads.
const MaxBodyBytes = 1 << 20

// Dispatcher executes decoded commands and reports their result.
// *commands.DispatchCommand satisfies it.
type Dispatcher interface {
	gocommand.Commander[dashboard.Command]
	Dispatch(ctx context.Context, cmd dashboard.Command) (dashboard.Result, error)
}

// Handlers exposes HTTP endpoints backed by shared commands and queries.
type Handlers struct {
	Commands      Dispatcher
	State         gocommand.Querier[queries.StateInput, dashboard.State]
	Grid          gocommand.Querier[queries.GridInput, layout.Grid]
	WidgetFilters gocommand.Querier[dashboard.QueryWidgetFilters, dashboard.WidgetFilters]
	Elements      gocommand.Querier[dashboard.QueryAttributeElements, dashboard.ElementsPage]
	Logger        *zap.Logger
}

// CommandResponse is the body returned for every command request.
type CommandResponse struct {
	CorrelationID string                    `json:"correlationId,omitempty"`
	Command       string                    `json:"command"`
	Events        []dashboard.EventEnvelope `json:"events"`
	Error         *dashboard.CommandError   `json:"error,omitempty"`
}

// StatusFor maps a command failure to an HTTP status.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if kind, ok := dashboard.BackendErrorKindOf(err); ok && kind == dashboard.BackendNotAuthenticated {
		return http.StatusUnauthorized
	}
	cmdErr := dashboard.AsCommandError(err)
	if kind, _ := cmdErr.Details["backendErrorKind"].(string); kind == string(dashboard.BackendNotAuthenticated) {
		return http.StatusUnauthorized
	}
	if cmdErr.Kind == dashboard.UserError {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleCommand decodes the body as commandType and runs it.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request, commandType string) {
	if h.Commands == nil {
		writeError(w, http.StatusNotImplemented, errors.New("commands are not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > MaxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("payload exceeds %d bytes", MaxBodyBytes))
		return
	}
	cmd, err := dashboard.DecodeCommand(commandType, body)
	if err != nil {
		writeCommand(w, http.StatusBadRequest, CommandResponse{
			Command: commandType,
			Error:   dashboard.NewUserError("%s", err.Error()),
		})
		return
	}
	if err := dashboard.ValidatePayload(cmd); err != nil {
		writeCommand(w, http.StatusBadRequest, CommandResponse{Command: commandType, Error: dashboard.AsCommandError(err)})
		return
	}

	result, err := h.Commands.Dispatch(r.Context(), cmd)
	response := CommandResponse{CorrelationID: result.CorrelationID, Command: commandType, Error: result.Err}
	if envelopes, encodeErr := dashboard.EnvelopeEvents(result.Events); encodeErr == nil {
		response.Events = envelopes
	} else {
		h.logger().Error("encode command events", zap.String("command", commandType), zap.Error(encodeErr))
	}
	if response.Events == nil {
		response.Events = []dashboard.EventEnvelope{}
	}
	if err != nil {
		if response.Error == nil {
			response.Error = dashboard.AsCommandError(err)
		}
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger().Warn("command failed", zap.String("command", commandType), zap.Error(err))
		}
		writeCommand(w, status, response)
		return
	}
	writeCommand(w, http.StatusOK, response)
}

// HandleState returns the state snapshot. ?history=true keeps the undo history.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	if h.State == nil {
		writeError(w, http.StatusNotImplemented, errors.New("state query is not configured"))
		return
	}
	history, _ := strconv.ParseBool(r.URL.Query().Get("history"))
	state, err := h.State.Query(r.Context(), queries.StateInput{IncludeHistory: history})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleGrid returns the rendered rows for ?screen= or ?width=.
func (h *Handlers) HandleGrid(w http.ResponseWriter, r *http.Request) {
	if h.Grid == nil {
		writeError(w, http.StatusNotImplemented, errors.New("grid query is not configured"))
		return
	}
	input := queries.GridInput{Screen: r.URL.Query().Get("screen")}
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("width: %w", err))
			return
		}
		input.Width = width
	}
	grid, err := h.Grid.Query(r.Context(), input)
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

// HandleWidgetFilters returns the filters applying to ?widget=<localIdentifier>.
func (h *Handlers) HandleWidgetFilters(w http.ResponseWriter, r *http.Request) {
	if h.WidgetFilters == nil {
		writeError(w, http.StatusNotImplemented, errors.New("widget filter query is not configured"))
		return
	}
	locator := dashboard.WidgetLocator{LocalIdentifier: r.URL.Query().Get("widget")}
	if ref := r.URL.Query().Get("ref"); ref != "" {
		locator.Ref = dashboard.IdentifierRef(ref, "")
	}
	filters, err := h.WidgetFilters.Query(r.Context(), dashboard.QueryWidgetFilters{Widget: locator})
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, filters)
}

// HandleAttributeElements pages the elements of ?displayForm=.
func (h *Handlers) HandleAttributeElements(w http.ResponseWriter, r *http.Request) {
	if h.Elements == nil {
		writeError(w, http.StatusNotImplemented, errors.New("elements query is not configured"))
		return
	}
	values := r.URL.Query()
	query := dashboard.QueryAttributeElements{DisplayForm: dashboard.IdentifierRef(values.Get("displayForm"), "displayForm")}
	for key, target := range map[string]*int{"limit": &query.Limit, "offset": &query.Offset} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%s: %w", key, err))
			return
		}
		*target = n
	}
	page, err := h.Elements.Query(r.Context(), query)
	if err != nil {
		writeError(w, StatusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func writeCommand(w http.ResponseWriter, status int, response CommandResponse) {
	writeJSON(w, status, response)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": dashboard.AsCommandError(err)})
}
