package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// EventSource hands out event subscriptions. *dashboard.EventBus satisfies it.
type EventSource interface {
	Subscribe(filter dashboard.EventFilter) (<-chan dashboard.Event, func())
}

// EventStream streams processor events over SSE or WebSocket. Clients may
// narrow the stream with ?types=a,b and ?correlationId=.
type EventStream struct {
	Source EventSource
	Logger *zap.Logger
}

// maxClientMessage bounds frames read from stream clients, which only send
// control frames.
const maxClientMessage = 512

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FilterFromRequest builds the subscription filter from query parameters.
func FilterFromRequest(r *http.Request) dashboard.EventFilter {
	var filters []dashboard.EventFilter
	if raw := r.URL.Query().Get("types"); raw != "" {
		var types []string
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
		filters = append(filters, dashboard.EventTypes(types...))
	}
	if id := r.URL.Query().Get("correlationId"); id != "" {
		filters = append(filters, dashboard.ForCorrelation(id))
	}
	if len(filters) == 0 {
		return nil
	}
	return func(e dashboard.Event) bool {
		for _, f := range filters {
			if !f(e) {
				return false
			}
		}
		return true
	}
}

// ServeWebSocket upgrades the request and streams event envelopes as JSON.
// The subscription is released once the client closes the connection.
func (s *EventStream) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	// subscribe before the handshake completes so no event is missed
	events, cancel := s.Source.Subscribe(FilterFromRequest(r))
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			envelope, err := dashboard.EnvelopeEvent(event)
			if err != nil {
				s.logger().Error("encode event", zap.String("type", event.EventType()), zap.Error(err))
				continue
			}
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so close frames are processed, and closes
// done when the connection fails or the client goes away.
func (s *EventStream) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger().Debug("websocket read", zap.Error(err))
			}
			return
		}
	}
}

// ServeSSE provides a Server-Sent Events endpoint for processor events.
func (s *EventStream) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := s.Source.Subscribe(FilterFromRequest(r))
	defer cancel()

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := dashboard.MarshalEvent(event)
			if err != nil {
				s.logger().Error("encode event", zap.String("type", event.EventType()), zap.Error(err))
				continue
			}
			if _, err := w.Write([]byte("event: " + event.EventType() + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func (s *EventStream) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
