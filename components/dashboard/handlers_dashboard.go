package dashboard

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

func registerBuiltinHandlers(p *Processor) {
	registerDashboardHandlers(p)
	registerLayoutHandlers(p)
	registerFilterHandlers(p)
	registerDrillHandlers(p)
}

func registerDashboardHandlers(p *Processor) {
	register(p, loadDashboard)
	register(p, renameDashboard)
	register(p, saveDashboard)
	register(p, exportDashboardToPDF)
	register(p, createScheduledEmail)
}

func requireLoaded(s *State) error {
	if !s.Loaded {
		return NewUserError("%s", errNoDashboard.Error())
	}
	return nil
}

func requireBackend(t *Turn, action string) (Backend, error) {
	backend := t.Backend()
	if backend == nil {
		return nil, NewInternalError(errMissingBackend, "%s", action)
	}
	return backend, nil
}

func loadDashboard(t *Turn, cmd LoadDashboard) error {
	var doc DashboardDocument
	if cmd.Document != nil {
		doc = cmd.Document.Clone()
	} else {
		if cmd.Ref.IsZero() {
			return NewUserError("dashboard ref or document is required")
		}
		backend, err := requireBackend(t, "load dashboard")
		if err != nil {
			return err
		}
		doc, err = AwaitValue(t, func(ctx context.Context) (DashboardDocument, error) {
			return backend.Dashboards().LoadDashboard(ctx, cmd.Ref)
		})
		if err != nil {
			if kind, ok := BackendErrorKindOf(err); ok && kind == BackendNoData {
				return NewUserError("dashboard %s does not exist", cmd.Ref).WithDetails(map[string]any{"backendErrorKind": string(kind)})
			}
			return err
		}
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return NewUserError("%s", err.Error())
	}
	normalizeLayout(&doc.Layout)

	fc, fixes := SanitizeFilterContext(doc.FilterContext)
	logger := t.Logger()
	for _, fix := range fixes {
		logger.Warn("filter context sanitized",
			zap.String("filter", fix.FilterLocalIdentifier),
			zap.String("parent", fix.Parent),
			zap.String("reason", fix.Reason),
		)
	}

	t.Apply(func(st *State) {
		next := newState()
		next.Loaded = true
		next.Ref = doc.Ref
		next.Title = doc.Title
		next.Description = doc.Description
		next.Version = doc.Version
		next.Updated = doc.Updated
		next.Layout = doc.Layout.Clone()
		next.FilterContext = fc.Clone()
		*st = next
	})
	t.p.cache.Clear()
	t.Emit(&DashboardLoaded{
		Dashboard:     doc.Ref,
		Title:         doc.Title,
		Layout:        doc.Layout,
		FilterContext: fc,
		Fixes:         fixes,
	})
	return nil
}

// normalizeLayout gives every section a non-nil item list and clamps
// out-of-range authored widths.
func normalizeLayout(layout *Layout) {
	for si := range layout.Sections {
		section := &layout.Sections[si]
		if section.Items == nil {
			section.Items = []Item{}
		}
		for ii := range section.Items {
			size := &section.Items[ii].Size.XL
			size.GridWidth = clampWidth(size.GridWidth)
		}
	}
}

func renameDashboard(t *Turn, cmd RenameDashboard) error {
	s := t.state()
	if err := requireLoaded(s); err != nil {
		return err
	}
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return NewUserError("dashboard title must not be blank")
	}
	previous := s.Title
	t.Apply(func(st *State) {
		st.Title = title
	})
	t.Emit(&DashboardRenamed{Title: title, PreviousTitle: previous})
	return nil
}

func saveDashboard(t *Turn, _ SaveDashboard) error {
	if err := requireLoaded(t.state()); err != nil {
		return err
	}
	backend, err := requireBackend(t, "save dashboard")
	if err != nil {
		return err
	}
	doc := t.state().Document()
	saved, err := AwaitValue(t, func(ctx context.Context) (DashboardDocument, error) {
		return backend.Dashboards().SaveDashboard(ctx, doc)
	})
	if err != nil {
		return err
	}
	t.Apply(func(st *State) {
		if !saved.Ref.IsZero() {
			st.Ref = saved.Ref
		}
		if saved.Updated != nil {
			updated := *saved.Updated
			st.Updated = &updated
		}
	})
	t.Emit(&DashboardSaved{Dashboard: saved.Clone()})
	return nil
}

func loadPermissions(t *Turn, backend Backend) (Permissions, error) {
	return AwaitValue(t, func(ctx context.Context) (Permissions, error) {
		return backend.Permissions().Permissions(ctx)
	})
}

func exportDashboardToPDF(t *Turn, _ ExportDashboardToPDF) error {
	if err := requireLoaded(t.state()); err != nil {
		return err
	}
	backend, err := requireBackend(t, "export dashboard")
	if err != nil {
		return err
	}
	perms, err := loadPermissions(t, backend)
	if err != nil {
		return err
	}
	if !perms.CanExportPDF {
		return NewUserError("exporting dashboards to PDF is not permitted")
	}
	s := t.state()
	req := ExportRequest{Dashboard: s.Ref, Title: s.Title}
	for _, item := range s.FilterContext.Filters {
		req.Filters = append(req.Filters, item.Clone())
	}
	t.Emit(&ExportToPDFRequested{Dashboard: s.Ref})
	result, err := AwaitValue(t, func(ctx context.Context) (ExportResult, error) {
		return backend.Exports().ExportDashboardToPDF(ctx, req)
	})
	if err != nil {
		return err
	}
	t.Emit(&ExportToPDFResolved{Result: result})
	return nil
}

func createScheduledEmail(t *Turn, cmd CreateScheduledEmail) error {
	if err := requireLoaded(t.state()); err != nil {
		return err
	}
	backend, err := requireBackend(t, "create scheduled email")
	if err != nil {
		return err
	}
	perms, err := loadPermissions(t, backend)
	if err != nil {
		return err
	}
	if !perms.CanCreateScheduledMail {
		return NewUserError("creating scheduled emails is not permitted")
	}
	schedule := cmd.Schedule
	schedule.Recipients = append([]string(nil), cmd.Schedule.Recipients...)
	schedule.Attachments = append([]string(nil), cmd.Schedule.Attachments...)
	if schedule.Dashboard.IsZero() {
		schedule.Dashboard = t.state().Ref
	}
	if len(schedule.Attachments) == 0 {
		schedule.Attachments = []string{"pdf"}
	}
	created, err := AwaitValue(t, func(ctx context.Context) (ScheduledMail, error) {
		return backend.ScheduledMail().CreateScheduledMail(ctx, schedule)
	})
	if err != nil {
		return err
	}
	t.Emit(&ScheduledEmailCreated{Schedule: created})
	return nil
}
