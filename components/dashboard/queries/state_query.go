package queries

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/layout"
)

type snapshotSource interface {
	Snapshot() dashboard.State
}

// StateInput selects which parts of the state a caller wants.
type StateInput struct {
	IncludeHistory bool
}

// StateQuery returns a consistent copy of the dashboard state.
type StateQuery struct {
	source snapshotSource
}

// NewStateQuery builds the query.
func NewStateQuery(source snapshotSource) *StateQuery {
	return &StateQuery{source: source}
}

var _ gocommand.Querier[StateInput, dashboard.State] = (*StateQuery)(nil)

// Query snapshots the state. History is dropped unless requested.
func (q *StateQuery) Query(_ context.Context, input StateInput) (dashboard.State, error) {
	if q.source == nil {
		return dashboard.State{}, errors.New("state query requires a source")
	}
	state := q.source.Snapshot()
	if !input.IncludeHistory {
		state.History = nil
	}
	return state, nil
}

// GridInput picks the breakpoint either by name or by viewport width.
type GridInput struct {
	Screen string `json:"screen" query:"screen"`
	Width  int    `json:"width" query:"width"`
}

// GridQuery renders the current layout into rows for one screen.
type GridQuery struct {
	source snapshotSource
}

// NewGridQuery builds the query.
func NewGridQuery(source snapshotSource) *GridQuery {
	return &GridQuery{source: source}
}

var _ gocommand.Querier[GridInput, layout.Grid] = (*GridQuery)(nil)

// Query resolves the screen and builds the grid. Screen wins over Width;
// with neither the xl grid is returned.
func (q *GridQuery) Query(_ context.Context, input GridInput) (layout.Grid, error) {
	if q.source == nil {
		return layout.Grid{}, errors.New("grid query requires a source")
	}
	screen, err := ResolveScreen(input)
	if err != nil {
		return layout.Grid{}, dashboard.NewUserError("%s", err.Error())
	}
	return layout.Build(q.source.Snapshot().Layout, screen)
}

// ResolveScreen maps the input to a breakpoint.
func ResolveScreen(input GridInput) (layout.Screen, error) {
	switch {
	case input.Screen != "":
		return layout.ParseScreen(input.Screen)
	case input.Width > 0:
		return layout.ScreenForWidth(input.Width), nil
	}
	return layout.ScreenXL, nil
}
