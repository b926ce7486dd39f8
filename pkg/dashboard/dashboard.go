// Package dashboard re-exports the core processor for consumers outside this module.
package dashboard

import (
	core "github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Processor exposes the underlying components/dashboard.Processor type.
type Processor = core.Processor

// Options re-export for convenience.
type Options = core.Options

type (
	Command  = core.Command
	Event    = core.Event
	Result   = core.Result
	State    = core.State
	Backend  = core.Backend
	Document = core.DashboardDocument
)

// NewProcessor proxies to the internal constructor.
func NewProcessor(opts Options) *Processor {
	return core.NewProcessor(opts)
}

// DecodeCommand proxies to the internal wire decoder.
func DecodeCommand(commandType string, data []byte) (Command, error) {
	return core.DecodeCommand(commandType, data)
}

// ReadDocument proxies to the internal document loader.
func ReadDocument(path string) (*Document, error) {
	return core.ReadDocument(path)
}
