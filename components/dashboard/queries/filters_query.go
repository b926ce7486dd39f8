package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// WidgetFiltersQuery answers which dashboard filters apply to a widget.
type WidgetFiltersQuery struct {
	processor *dashboard.Processor
}

// NewWidgetFiltersQuery builds the query.
func NewWidgetFiltersQuery(processor *dashboard.Processor) *WidgetFiltersQuery {
	return &WidgetFiltersQuery{processor: processor}
}

var _ gocommand.Querier[dashboard.QueryWidgetFilters, dashboard.WidgetFilters] = (*WidgetFiltersQuery)(nil)

// Query runs on the processor's query path, concurrently with commands.
func (q *WidgetFiltersQuery) Query(ctx context.Context, input dashboard.QueryWidgetFilters) (dashboard.WidgetFilters, error) {
	return dashboard.RunQuery[dashboard.WidgetFilters](ctx, q.processor, input)
}

// AttributeElementsQuery pages through display form elements. Results are
// cached by the processor.
type AttributeElementsQuery struct {
	processor *dashboard.Processor
}

// NewAttributeElementsQuery builds the query.
func NewAttributeElementsQuery(processor *dashboard.Processor) *AttributeElementsQuery {
	return &AttributeElementsQuery{processor: processor}
}

var _ gocommand.Querier[dashboard.QueryAttributeElements, dashboard.ElementsPage] = (*AttributeElementsQuery)(nil)

func (q *AttributeElementsQuery) Query(ctx context.Context, input dashboard.QueryAttributeElements) (dashboard.ElementsPage, error) {
	return dashboard.RunQuery[dashboard.ElementsPage](ctx, q.processor, input)
}
