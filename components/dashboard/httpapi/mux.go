package httpapi

import (
	"net/http"
	"strings"
)

// Mount registers the handlers on mux under prefix:
//
//	POST {prefix}/commands/{type}
//	GET  {prefix}/state
//	GET  {prefix}/grid
//	GET  {prefix}/widget-filters
//	GET  {prefix}/elements
//	GET  {prefix}/events        (SSE)
//	GET  {prefix}/events/ws     (WebSocket)
func Mount(mux *http.ServeMux, prefix string, h *Handlers, stream *EventStream) {
	prefix = strings.TrimRight(prefix, "/")
	if h != nil {
		mux.HandleFunc("POST "+prefix+"/commands/{type}", func(w http.ResponseWriter, r *http.Request) {
			h.HandleCommand(w, r, r.PathValue("type"))
		})
		mux.HandleFunc("GET "+prefix+"/state", h.HandleState)
		mux.HandleFunc("GET "+prefix+"/grid", h.HandleGrid)
		mux.HandleFunc("GET "+prefix+"/widget-filters", h.HandleWidgetFilters)
		mux.HandleFunc("GET "+prefix+"/elements", h.HandleAttributeElements)
	}
	if stream != nil && stream.Source != nil {
		mux.HandleFunc("GET "+prefix+"/events", stream.ServeSSE)
		mux.HandleFunc("GET "+prefix+"/events/ws", stream.ServeWebSocket)
	}
}
