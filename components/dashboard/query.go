package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Query is a read-only request answered from the current state or the
// backend. Queries never wait for commands.
type Query interface {
	QueryType() string
}

// Query type names.
const (
	QueryTypeWidgetFilters     = "dashboard.query.widget_filters"
	QueryTypeAttributeElements = "dashboard.query.attribute_elements"
)

// QueryWidgetFilters asks which dashboard filters apply to a widget.
type QueryWidgetFilters struct {
	Widget WidgetLocator `json:"widget"`
}

func (QueryWidgetFilters) QueryType() string { return QueryTypeWidgetFilters }

// WidgetFilters is the answer to QueryWidgetFilters.
type WidgetFilters struct {
	Attribute []AttributeFilter `json:"attributeFilters"`
	Date      *DateFilter       `json:"dateFilter,omitempty"`
}

// QueryAttributeElements pages through the elements of a display form.
type QueryAttributeElements struct {
	DisplayForm ObjRef `json:"displayForm"`
	Limit       int    `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	Offset      int    `json:"offset,omitempty" validate:"gte=0"`
}

func (QueryAttributeElements) QueryType() string { return QueryTypeAttributeElements }

type queryHandler struct {
	cached bool
	run    func(ctx context.Context, p *Processor, q Query) (any, error)
}

func registerQuery[Q Query, R any](p *Processor, cached bool, fn func(context.Context, *Processor, Q) (R, error)) {
	var zero Q
	p.hmu.Lock()
	defer p.hmu.Unlock()
	p.queries[zero.QueryType()] = queryHandler{
		cached: cached,
		run: func(ctx context.Context, p *Processor, q Query) (any, error) {
			switch typed := any(q).(type) {
			case Q:
				return fn(ctx, p, typed)
			case *Q:
				if typed != nil {
					return fn(ctx, p, *typed)
				}
			}
			return nil, NewInternalError(nil, "query %s received %T", zero.QueryType(), q)
		},
	}
}

func registerBuiltinQueries(p *Processor) {
	registerQuery(p, false, widgetFilters)
	registerQuery(p, true, attributeElements)
}

// Query answers q without entering the command mailbox. Cacheable query
// results are kept until their TTL expires or a dashboard is loaded.
func (p *Processor) Query(ctx context.Context, q Query) (any, error) {
	if q == nil {
		return nil, errNilQuery
	}
	if ctx == nil {
		ctx = context.Background()
	}
	id, ok := CorrelationFromContext(ctx)
	if !ok {
		id = p.opts.NewID()
		ctx = ContextWithCorrelation(ctx, id)
	}
	queryType := q.QueryType()
	logger := p.logger.With(zap.String("correlation_id", id), zap.String("query", queryType))
	start := p.opts.Clock()
	p.emit(id, &QueryStarted{Query: queryType})

	value, cached, err := p.runQuery(ctx, q)
	payload := map[string]any{
		"query":          queryType,
		"correlation_id": id,
		"cached":         cached,
		"duration_ms":    durationMillis(start, p.opts.Clock()),
	}
	if err != nil {
		cmdErr := AsCommandError(err)
		p.emit(id, &QueryFailed{Query: queryType, Error: cmdErr})
		logger.Warn("query failed", zap.String("kind", string(cmdErr.Kind)), zap.Error(err))
		payload["kind"] = string(cmdErr.Kind)
		p.opts.Telemetry.Record(ctx, TelemetryQueryFailed, payload)
		return nil, cmdErr
	}
	p.emit(id, &QueryCompleted{Query: queryType, Cached: cached, Result: value})
	logger.Debug("query completed", zap.Bool("cached", cached))
	p.opts.Telemetry.Record(ctx, TelemetryQueryCompleted, payload)
	return value, nil
}

func (p *Processor) runQuery(ctx context.Context, q Query) (value any, cached bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewInternalError(fmt.Errorf("panic: %v", r), "query %s panicked", q.QueryType())
		}
	}()
	p.hmu.RLock()
	handler, ok := p.queries[q.QueryType()]
	p.hmu.RUnlock()
	if !ok {
		return nil, false, NewUserError("no query registered for %q", q.QueryType())
	}
	if err := ValidatePayload(q); err != nil {
		return nil, false, err
	}
	if !handler.cached {
		value, err = handler.run(ctx, p, q)
		return value, false, err
	}
	return p.cache.GetOrLoad(queryKey(q.QueryType(), q), func() (any, error) {
		return handler.run(ctx, p, q)
	})
}

// RunQuery runs q and asserts the result type.
func RunQuery[R any](ctx context.Context, p *Processor, q Query) (R, error) {
	var zero R
	value, err := p.Query(ctx, q)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(R)
	if !ok {
		return zero, NewInternalError(nil, "query %s returned %T", q.QueryType(), value)
	}
	return typed, nil
}

func widgetFilters(_ context.Context, p *Processor, q QueryWidgetFilters) (WidgetFilters, error) {
	if q.Widget.IsZero() {
		return WidgetFilters{}, NewUserError("widget ref or local identifier is required")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	widget, ok := p.state.Widget(q.Widget)
	if !ok {
		return WidgetFilters{}, NewUserError("widget %s is not on the dashboard", q.Widget)
	}
	attrs, date := widgetAmbientFilters(p.state.FilterContext, widget)
	if attrs == nil {
		attrs = []AttributeFilter{}
	}
	return WidgetFilters{Attribute: attrs, Date: date}, nil
}

func attributeElements(ctx context.Context, p *Processor, q QueryAttributeElements) (ElementsPage, error) {
	if q.DisplayForm.IsZero() {
		return ElementsPage{}, NewUserError("display form is required")
	}
	backend := p.opts.Backend
	if backend == nil {
		return ElementsPage{}, NewInternalError(errMissingBackend, "load attribute elements")
	}
	return backend.Attributes().Elements(ctx, ElementsQuery{
		DisplayForm: q.DisplayForm,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
}
