package dashboard

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configures the Processor. Every collaborator is optional.
type Options struct {
	Backend       Backend
	Logger        *zap.Logger
	Telemetry     Telemetry
	MailboxSize   int
	HistoryLimit  int
	EventBuffer   int
	QueryCacheTTL time.Duration
	Clock         func() time.Time
	NewID         func() string
}

const (
	defaultMailboxSize   = 64
	defaultEventBuffer   = 64
	defaultQueryCacheTTL = 5 * time.Minute
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Telemetry = normalizeTelemetry(o.Telemetry)
	if o.MailboxSize <= 0 {
		o.MailboxSize = defaultMailboxSize
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.QueryCacheTTL == 0 {
		o.QueryCacheTTL = defaultQueryCacheTTL
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// HandlerFunc runs one command inside its turn.
type HandlerFunc func(t *Turn, cmd Command) error

// Processor serializes dashboard commands. Handlers start in dispatch order
// and run their synchronous sections one at a time; they interleave only
// while suspended in Turn.Await. Queries read the state concurrently.
type Processor struct {
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	state State

	hmu      sync.RWMutex
	handlers map[string]HandlerFunc
	queries  map[string]queryHandler

	turn    chan struct{}
	mailbox chan envelope
	bus     *EventBus
	cache   *QueryCache

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
	wg        sync.WaitGroup
}

type envelope struct {
	ctx           context.Context
	cmd           Command
	correlationID string
	pending       *Pending
}

// NewProcessor builds a processor with safe defaults. Call Start before
// dispatching.
func NewProcessor(opts Options) *Processor {
	opts = opts.withDefaults()
	p := &Processor{
		opts:     opts,
		logger:   opts.Logger.Named("dashboard"),
		state:    newState(),
		handlers: make(map[string]HandlerFunc),
		queries:  make(map[string]queryHandler),
		turn:     make(chan struct{}, 1),
		mailbox:  make(chan envelope, opts.MailboxSize),
		bus:      NewEventBus(opts.EventBuffer),
		cache:    NewQueryCache(opts.QueryCacheTTL, opts.Clock),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	registerBuiltinHandlers(p)
	registerBuiltinQueries(p)
	return p
}

// RegisterHandler installs or replaces the handler for a command type.
func (p *Processor) RegisterHandler(commandType string, fn HandlerFunc) {
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.handlers[commandType] = fn
}

func register[C Command](p *Processor, fn func(*Turn, C) error) {
	var zero C
	p.RegisterHandler(zero.CommandType(), func(t *Turn, cmd Command) error {
		if typed, ok := any(cmd).(C); ok {
			return fn(t, typed)
		}
		if typed, ok := any(cmd).(*C); ok && typed != nil {
			return fn(t, *typed)
		}
		return NewInternalError(nil, "handler for %s received %T", zero.CommandType(), cmd)
	})
}

func (p *Processor) handler(commandType string) (HandlerFunc, bool) {
	p.hmu.RLock()
	defer p.hmu.RUnlock()
	fn, ok := p.handlers[commandType]
	return fn, ok
}

// Events returns the processor's event bus.
func (p *Processor) Events() *EventBus {
	return p.bus
}

// Backend returns the configured backend, if any.
func (p *Processor) Backend() Backend {
	return p.opts.Backend
}

// Snapshot returns a deep copy of the current state.
func (p *Processor) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Clone()
}

// Start launches the mailbox loop. The loop stops when ctx ends or Close is called.
func (p *Processor) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.startOnce.Do(func() {
		p.started.Store(true)
		go p.loop(ctx)
	})
}

// Close stops the loop, waits for in-flight handlers and closes the event bus.
func (p *Processor) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.started.Load() {
			<-p.stopped
		}
		p.wg.Wait()
		p.bus.Close()
	})
}

func (p *Processor) loop(ctx context.Context) {
	defer func() {
		close(p.stopped)
		p.drain()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case env := <-p.mailbox:
			if err := p.acquire(ctx); err != nil {
				env.pending.resolve(closedResult(env, err))
				return
			}
			p.wg.Add(1)
			go p.run(env)
		}
	}
}

func (p *Processor) drain() {
	for {
		select {
		case env := <-p.mailbox:
			env.pending.resolve(closedResult(env, errProcessorClosed))
		default:
			return
		}
	}
}

func closedResult(env envelope, err error) Result {
	return Result{
		CorrelationID: env.correlationID,
		Command:       env.cmd.CommandType(),
		Err:           NewInternalError(err, "command %s not processed", env.cmd.CommandType()),
	}
}

func (p *Processor) acquire(ctx context.Context) error {
	select {
	case p.turn <- struct{}{}:
		return nil
	case <-p.done:
		return errProcessorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) release() {
	<-p.turn
}

// Dispatch queues a command and returns immediately. The correlation id is
// the command's own, else the one on ctx, else a fresh uuid.
func (p *Processor) Dispatch(ctx context.Context, cmd Command) (*Pending, error) {
	if cmd == nil {
		return nil, errNilCommand
	}
	if !p.started.Load() {
		return nil, errProcessorStopped
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id := cmd.Correlation()
	if id == "" {
		if fromCtx, ok := CorrelationFromContext(ctx); ok {
			id = fromCtx
		} else {
			id = p.opts.NewID()
		}
	}
	pending := &Pending{CorrelationID: id, done: make(chan struct{})}
	select {
	case <-p.stopped:
		return nil, errProcessorClosed
	default:
	}
	select {
	case p.mailbox <- envelope{ctx: ctx, cmd: cmd, correlationID: id, pending: pending}:
		return pending, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stopped:
		return nil, errProcessorClosed
	}
}

// Execute dispatches cmd and waits for its result. A failed command returns
// its *CommandError as error alongside the result.
func (p *Processor) Execute(ctx context.Context, cmd Command) (Result, error) {
	pending, err := p.Dispatch(ctx, cmd)
	if err != nil {
		return Result{}, err
	}
	result := pending.Wait(ctx)
	if result.Err != nil {
		return result, result.Err
	}
	return result, nil
}

func (p *Processor) run(env envelope) {
	defer p.wg.Done()
	commandType := env.cmd.CommandType()
	t := &Turn{
		p:             p,
		ctx:           ContextWithCorrelation(env.ctx, env.correlationID),
		correlationID: env.correlationID,
		command:       env.cmd,
		held:          true,
	}
	logger := p.logger.With(zap.String("correlation_id", env.correlationID), zap.String("command", commandType))
	start := p.opts.Clock()

	handler, ok := p.handler(commandType)
	if !ok {
		reason := fmt.Sprintf("no handler registered for %q", commandType)
		t.Emit(&CommandRejected{Command: commandType, Reason: reason})
		p.release()
		logger.Warn("command rejected")
		p.opts.Telemetry.Record(t.ctx, TelemetryCommandRejected, map[string]any{
			"command":        commandType,
			"correlation_id": env.correlationID,
		})
		env.pending.resolve(Result{
			CorrelationID: env.correlationID,
			Command:       commandType,
			Events:        t.events,
			Err:           NewUserError("%s", reason),
		})
		return
	}

	logger.Debug("command started")
	err := p.execute(t, handler)
	if t.held {
		p.release()
		t.held = false
	}
	elapsed := p.opts.Clock().Sub(start)

	result := Result{CorrelationID: env.correlationID, Command: commandType}
	payload := map[string]any{
		"command":        commandType,
		"correlation_id": env.correlationID,
		"duration_ms":    durationMillis(start, start.Add(elapsed)),
	}
	if err != nil {
		cmdErr := AsCommandError(err)
		result.Err = cmdErr
		t.Emit(&CommandFailed{Command: commandType, Error: cmdErr})
		logger.Warn("command failed",
			zap.String("kind", string(cmdErr.Kind)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		payload["kind"] = string(cmdErr.Kind)
		p.opts.Telemetry.Record(t.ctx, TelemetryCommandFailed, payload)
	} else {
		logger.Debug("command finished", zap.Duration("duration", elapsed), zap.Int("events", len(t.events)))
		p.opts.Telemetry.Record(t.ctx, TelemetryCommandCompleted, payload)
	}
	result.Events = t.events
	env.pending.resolve(result)
}

func (p *Processor) execute(t *Turn, handler HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewInternalError(fmt.Errorf("panic: %v", r), "command %s panicked", t.command.CommandType())
		}
	}()
	t.Emit(&CommandStarted{Command: t.command.CommandType()})
	if err := ValidatePayload(t.command); err != nil {
		return err
	}
	return handler(t, t.command)
}

// Turn is the handle a running command uses to read and change the state.
// Reads through State are consistent while the turn holds the processor;
// Await hands the processor to other commands until the awaited call returns.
type Turn struct {
	p             *Processor
	ctx           context.Context
	correlationID string
	command       Command
	held          bool
	events        []Event
}

// Context carries the correlation id of the running command.
func (t *Turn) Context() context.Context { return t.ctx }

// CorrelationID of the running command.
func (t *Turn) CorrelationID() string { return t.correlationID }

// Backend returns the processor's backend.
func (t *Turn) Backend() Backend { return t.p.opts.Backend }

// Logger returns a logger tagged with the command.
func (t *Turn) Logger() *zap.Logger {
	return t.p.logger.With(
		zap.String("correlation_id", t.correlationID),
		zap.String("command", t.command.CommandType()),
	)
}

// State returns a copy of the current state.
func (t *Turn) State() State {
	return t.state().Clone()
}

// state exposes the live state for in-turn reads. Only the turn holder
// writes, so reads need no lock.
func (t *Turn) state() *State {
	return &t.p.state
}

// Await releases the turn while fn runs and re-acquires it before returning.
// State read before Await may be stale afterwards.
func (t *Turn) Await(fn func(ctx context.Context) error) error {
	if t.held {
		t.held = false
		t.p.release()
	}
	err := fn(t.ctx)
	if acqErr := t.p.acquire(t.ctx); acqErr != nil {
		return NewInternalError(acqErr, "resume %s", t.command.CommandType())
	}
	t.held = true
	return err
}

// AwaitValue is Await for calls that produce a value.
func AwaitValue[T any](t *Turn, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := t.Await(func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Apply runs mutations as one batch under the write lock. Readers never
// observe a partially applied batch.
func (t *Turn) Apply(mutations ...Mutation) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	for _, mutate := range mutations {
		mutate(&t.p.state)
	}
}

// ApplyUndoable is Apply that records the layout and stash before-image in
// the undo history.
func (t *Turn) ApplyUndoable(mutations ...Mutation) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	state := &t.p.state
	entry := UndoEntry{
		CorrelationID: t.correlationID,
		Command:       t.command.CommandType(),
		RecordedAt:    t.p.opts.Clock(),
		Layout:        state.Layout.Clone(),
		Stash:         state.Stash.Clone(),
	}
	for _, mutate := range mutations {
		mutate(state)
	}
	history := make([]UndoEntry, 0, len(state.History)+1)
	history = append(history, entry)
	history = append(history, state.History...)
	if len(history) > t.p.opts.HistoryLimit {
		history = history[:t.p.opts.HistoryLimit]
	}
	state.History = history
}

// Emit stamps and publishes events.
func (t *Turn) Emit(events ...Event) {
	t.p.emit(t.correlationID, events...)
	t.events = append(t.events, events...)
}

func (p *Processor) emit(correlationID string, events ...Event) {
	now := p.opts.Clock()
	for _, event := range events {
		event.stamp(correlationID, now)
	}
	p.bus.Publish(events...)
}

// Pending is a dispatched command awaiting its result.
type Pending struct {
	CorrelationID string
	done          chan struct{}
	once          sync.Once
	result        Result
}

func (p *Pending) resolve(result Result) {
	p.once.Do(func() {
		p.result = result
		close(p.done)
	})
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the command finished or ctx ends.
func (p *Pending) Wait(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-p.done:
		return p.result
	case <-ctx.Done():
		return Result{
			CorrelationID: p.CorrelationID,
			Err:           NewInternalError(ctx.Err(), "wait for %s", p.CorrelationID),
		}
	}
}

// Result is the outcome of one command.
type Result struct {
	CorrelationID string        `json:"correlationId"`
	Command       string        `json:"command"`
	Events        []Event       `json:"-"`
	Err           *CommandError `json:"error,omitempty"`
}

// Failed reports whether the command failed or was rejected.
func (r Result) Failed() bool { return r.Err != nil }

// EventsOf returns the events of type E in emission order.
func EventsOf[E Event](r Result) []E {
	var out []E
	for _, event := range r.Events {
		if typed, ok := event.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}

// FirstEvent returns the first event of type E.
func FirstEvent[E Event](r Result) (E, bool) {
	for _, event := range r.Events {
		if typed, ok := event.(E); ok {
			return typed, true
		}
	}
	var zero E
	return zero, false
}
