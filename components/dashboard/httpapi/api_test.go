package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
	"github.com/goliatone/go-dashboard-model/components/dashboard/commands"
	"github.com/goliatone/go-dashboard-model/components/dashboard/queries"
)

const documentBody = `{"document":{"title":"Ops","layout":{"sections":[
  {"header":{"title":"A"},"items":[{"widget":{"type":"insight","localIdentifier":"a"},"size":{"xl":{"gridWidth":6,"gridHeight":10}}}]},
  {"header":{"title":"B"},"items":[]}
]},"filterContext":{"filters":[]}}}`

func newServer(t *testing.T) (*httptest.Server, *dashboard.Processor) {
	t.Helper()
	p := dashboard.NewProcessor(dashboard.Options{})
	p.Start(context.Background())
	t.Cleanup(p.Close)
	handlers := &Handlers{
		Commands:      commands.NewDispatchCommand(p, nil),
		State:         queries.NewStateQuery(p),
		Grid:          queries.NewGridQuery(p),
		WidgetFilters: queries.NewWidgetFiltersQuery(p),
		Elements:      queries.NewAttributeElementsQuery(p),
	}
	mux := http.NewServeMux()
	Mount(mux, "/api/", handlers, &EventStream{Source: p.Events()})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, p
}

func postCommand(t *testing.T, server *httptest.Server, commandType, body string) (int, CommandResponse) {
	t.Helper()
	resp, err := http.Post(server.URL+"/api/commands/"+commandType, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded CommandResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHandleCommandReturnsEvents(t *testing.T) {
	server, p := newServer(t)

	status, body := postCommand(t, server, dashboard.CmdLoadDashboard, documentBody)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, dashboard.CmdLoadDashboard, body.Command)
	assert.NotEmpty(t, body.CorrelationID)
	require.NotEmpty(t, body.Events)
	assert.Equal(t, dashboard.EventCommandStarted, body.Events[0].Type)

	status, body = postCommand(t, server, dashboard.CmdMoveLayoutSection, `{"sectionIndex":0,"toIndex":-1}`)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body.Error)
	assert.Equal(t, "B", p.Snapshot().Layout.Sections[0].Header.Title)
}

func TestHandleCommandStatusMapping(t *testing.T) {
	server, _ := newServer(t)

	status, body := postCommand(t, server, "dashboard.unknown", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dashboard.UserError, body.Error.Kind)

	status, body = postCommand(t, server, dashboard.CmdRenameDashboard, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body.Error.Details, "fields")

	status, body = postCommand(t, server, dashboard.CmdMoveLayoutSection, `{"sectionIndex":4,"toIndex":0}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, dashboard.UserError, body.Error.Kind)
	assert.NotNil(t, body.Events)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(nil))
	assert.Equal(t, http.StatusBadRequest, StatusFor(dashboard.NewUserError("nope")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(dashboard.NewInternalError(nil, "boom")))
	auth := dashboard.NewBackendError(dashboard.BackendNotAuthenticated, nil, "token expired")
	assert.Equal(t, http.StatusUnauthorized, StatusFor(auth))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(dashboard.AsCommandError(auth)))
}

func TestQueryEndpoints(t *testing.T) {
	server, _ := newServer(t)
	postCommand(t, server, dashboard.CmdLoadDashboard, documentBody)

	resp, err := http.Get(server.URL + "/api/state")
	require.NoError(t, err)
	var state dashboard.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	resp.Body.Close()
	assert.Equal(t, "Ops", state.Title)

	resp, err = http.Get(server.URL + "/api/grid?screen=xs")
	require.NoError(t, err)
	var grid struct {
		Screen         string `json:"screen"`
		ContainerWidth int    `json:"containerWidth"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&grid))
	resp.Body.Close()
	assert.Equal(t, "xs", grid.Screen)
	assert.Equal(t, 540, grid.ContainerWidth)

	resp, err = http.Get(server.URL + "/api/grid?width=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/widget-filters?widget=ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/widget-filters?widget=a")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// no backend configured
	resp, err = http.Get(server.URL + "/api/elements?displayForm=label.region")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServeSSEStreamsFilteredEvents(t *testing.T) {
	server, p := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/events?types="+dashboard.EventDashboardRenamed, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	postCommand(t, server, dashboard.CmdLoadDashboard, documentBody)
	_, err = p.Execute(context.Background(), dashboard.NewRenameDashboard("Renamed"))
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: "+dashboard.EventDashboardRenamed+"\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	var envelope dashboard.EventEnvelope
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &envelope))
	assert.Contains(t, string(envelope.Payload), "Renamed")
}

func TestServeWebSocketStreamsEnvelopes(t *testing.T) {
	server, _ := newServer(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/events/ws?types=" + dashboard.EventDashboardLoaded
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	postCommand(t, server, dashboard.CmdLoadDashboard, documentBody)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope dashboard.EventEnvelope
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, dashboard.EventDashboardLoaded, envelope.Type)
	assert.True(t, bytes.Contains(envelope.Payload, []byte("Ops")))
}

type releaseTrackingSource struct {
	bus      *dashboard.EventBus
	once     sync.Once
	released chan struct{}
}

func (s *releaseTrackingSource) Subscribe(filter dashboard.EventFilter) (<-chan dashboard.Event, func()) {
	events, cancel := s.bus.Subscribe(filter)
	return events, func() {
		cancel()
		s.once.Do(func() { close(s.released) })
	}
}

func TestServeWebSocketReleasesSubscriptionOnClientClose(t *testing.T) {
	source := &releaseTrackingSource{bus: dashboard.NewEventBus(0), released: make(chan struct{})}
	mux := http.NewServeMux()
	Mount(mux, "/api/", nil, &EventStream{Source: source})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/events/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.NoError(t, conn.Close())

	select {
	case <-source.released:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription still held after the client closed")
	}
}
