package dashboard

import "context"

func registerDrillHandlers(p *Processor) {
	register(p, drill)
	register(p, func(t *Turn, cmd DrillToInsight) error { return drillToInsight(t, cmd.DrillCommand) })
	register(p, func(t *Turn, cmd DrillToDashboard) error { return drillToDashboard(t, cmd.DrillCommand) })
	register(p, func(t *Turn, cmd DrillToCustomURL) error { return drillToCustomURL(t, cmd.DrillCommand) })
	register(p, func(t *Turn, cmd DrillToAttributeURL) error { return drillToAttributeURL(t, cmd.DrillCommand) })
	register(p, func(t *Turn, cmd DrillToLegacyDashboard) error { return drillToLegacyDashboard(t, cmd.DrillCommand) })
	register(p, func(t *Turn, cmd DrillDown) error { return drillDown(t, cmd.DrillCommand) })
}

func findWidget(s *State, locator WidgetLocator) (Widget, error) {
	if locator.IsZero() {
		return Widget{}, NewUserError("widget ref or local identifier is required")
	}
	widget, ok := s.Widget(locator)
	if !ok {
		return Widget{}, NewUserError("widget %s is not on the dashboard", locator)
	}
	return widget.Clone(), nil
}

func widgetRef(widget Widget) ObjRef {
	if !widget.Ref.IsZero() {
		return widget.Ref
	}
	return IdentifierRef(widget.LocalIdentifier, "widget")
}

func expectDrillType(cmd DrillCommand, want DrillType) error {
	if cmd.Drill.Type != want {
		return NewUserError("drill definition type %q does not match %q", cmd.Drill.Type, want)
	}
	return nil
}

// drillFilters converts the intersection and merges it over the widget's
// ambient dashboard filters.
func drillFilters(s *State, widget Widget, intersection []IntersectionElement) ([]AttributeFilter, *DateFilter) {
	ambient, date := widgetAmbientFilters(s.FilterContext, widget)
	return MergeDrillFilters(ambient, ConvertIntersectionToAttributeFilters(intersection)), date
}

func drill(t *Turn, cmd Drill) error {
	widget, err := findWidget(t.state(), cmd.Widget)
	if err != nil {
		return err
	}
	t.Emit(&DrillRequested{
		Widget: widgetRef(widget),
		Event:  cmd.Event,
		Drills: MatchingDrills(widget, cmd.Event.Intersection),
	})
	return nil
}

func drillToInsight(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeToInsight); err != nil {
		return err
	}
	if cmd.Drill.Target.IsZero() {
		return NewUserError("drill to insight needs a target insight")
	}
	widget, err := findWidget(t.state(), cmd.Widget)
	if err != nil {
		return err
	}
	filters, date := drillFilters(t.state(), widget, cmd.Event.Intersection)
	t.Emit(&DrillToInsightResolved{
		Widget:     widgetRef(widget),
		Drill:      cmd.Drill,
		Insight:    cmd.Drill.Target,
		Filters:    filters,
		DateFilter: date,
	})
	return nil
}

func drillToDashboard(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeToDashboard); err != nil {
		return err
	}
	s := t.state()
	widget, err := findWidget(s, cmd.Widget)
	if err != nil {
		return err
	}
	target := cmd.Drill.Target
	if target.IsZero() {
		target = s.Ref
	}
	filters, date := drillFilters(s, widget, cmd.Event.Intersection)
	t.Emit(&DrillToDashboardResolved{
		Widget:     widgetRef(widget),
		Drill:      cmd.Drill,
		Dashboard:  target,
		TabID:      cmd.Drill.TabID,
		Filters:    filters,
		DateFilter: date,
	})
	return nil
}

func drillToCustomURL(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeToCustomURL); err != nil {
		return err
	}
	if cmd.Drill.URL == "" {
		return NewUserError("drill to custom url needs a url")
	}
	s := t.state()
	widget, err := findWidget(s, cmd.Widget)
	if err != nil {
		return err
	}
	uc := URLContext{
		Dashboard: s.Ref,
		Widget:    widgetRef(widget),
		Insight:   widget.Insight,
	}
	var attrs titleResolver
	if backend := t.Backend(); backend != nil {
		uc.WorkspaceID = backend.Workspace()
		attrs = backend.Attributes()
	}
	if extra := cmd.Event.Extra; extra != nil {
		uc.ClientID = extra["clientId"]
		uc.DataProductID = extra["dataProductId"]
	}
	url, err := AwaitValue(t, func(ctx context.Context) (string, error) {
		return ResolveCustomURL(ctx, attrs, cmd.Drill.URL, uc, cmd.Event.Intersection)
	})
	if err != nil {
		return err
	}
	t.Emit(&DrillToCustomURLResolved{Widget: widgetRef(widget), Drill: cmd.Drill, URL: url})
	return nil
}

func drillToAttributeURL(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeToAttributeURL); err != nil {
		return err
	}
	if cmd.Drill.DisplayForm.IsZero() || cmd.Drill.HyperlinkDisplayForm.IsZero() {
		return NewUserError("drill to attribute url needs a display form and a hyperlink display form")
	}
	widget, err := findWidget(t.state(), cmd.Widget)
	if err != nil {
		return err
	}
	backend := t.Backend()
	if backend == nil {
		return NewInternalError(errMissingBackend, "resolve attribute url")
	}
	attrs := backend.Attributes()
	url, err := AwaitValue(t, func(ctx context.Context) (string, error) {
		return ResolveAttributeURL(ctx, attrs, cmd.Drill, cmd.Event.Intersection)
	})
	if err != nil {
		return err
	}
	t.Emit(&DrillToAttributeURLResolved{Widget: widgetRef(widget), Drill: cmd.Drill, URL: url})
	return nil
}

func drillToLegacyDashboard(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeToLegacyDashboard); err != nil {
		return err
	}
	if cmd.Drill.Target.IsZero() {
		return NewUserError("drill to legacy dashboard needs a target dashboard")
	}
	widget, err := findWidget(t.state(), cmd.Widget)
	if err != nil {
		return err
	}
	t.Emit(&DrillToLegacyDashboardResolved{
		Widget:    widgetRef(widget),
		Drill:     cmd.Drill,
		Dashboard: cmd.Drill.Target,
		TabID:     cmd.Drill.TabID,
	})
	return nil
}

func drillDown(t *Turn, cmd DrillCommand) error {
	if err := expectDrillType(cmd, DrillTypeDown); err != nil {
		return err
	}
	if cmd.Drill.TargetAttribute.IsZero() {
		return NewUserError("drill down needs a target attribute")
	}
	widget, err := findWidget(t.state(), cmd.Widget)
	if err != nil {
		return err
	}
	filters, _ := drillFilters(t.state(), widget, cmd.Event.Intersection)
	t.Emit(&DrillDownResolved{
		Widget:          widgetRef(widget),
		Drill:           cmd.Drill,
		Insight:         widget.Insight,
		TargetAttribute: cmd.Drill.TargetAttribute,
		Filters:         filters,
	})
	return nil
}
