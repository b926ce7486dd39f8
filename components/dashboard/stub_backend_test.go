package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	workspace string

	mu           sync.Mutex
	dashboards   map[string]DashboardDocument
	displayForms map[string]DisplayForm
	elements     map[string][]AttributeElement
	permissions  Permissions
	saved        []DashboardDocument
	exports      []ExportRequest
	mails        []ScheduledMail

	// displayFormGate, when set, blocks DisplayForm until closed. entered
	// receives a value each time a call reaches the gate.
	displayFormGate chan struct{}
	entered         chan struct{}

	elementCalls atomic.Int32
}

func newStubBackend() *stubBackend {
	b := &stubBackend{
		workspace:    "ws-1",
		dashboards:   map[string]DashboardDocument{},
		displayForms: map[string]DisplayForm{},
		elements:     map[string][]AttributeElement{},
		permissions:  Permissions{CanExportPDF: true, CanCreateScheduledMail: true, CanManageDashboard: true},
	}
	for _, name := range []string{"region", "city", "product"} {
		b.addDisplayForm(name, "Title "+name)
	}
	b.elements["label.region"] = []AttributeElement{
		{URI: "/elements?id=1", Title: "East"},
		{URI: "/elements?id=2", Title: "West"},
		{URI: "/elements?id=3", Title: "North & South"},
	}
	return b
}

func (b *stubBackend) addDisplayForm(name, title string) {
	id := "label." + name
	b.displayForms[id] = DisplayForm{
		Ref:        IdentifierRef(id, "displayForm"),
		Identifier: id,
		Title:      title,
		Attribute:  IdentifierRef("attr."+name, "attribute"),
	}
}

func (b *stubBackend) Workspace() string                   { return b.workspace }
func (b *stubBackend) Dashboards() DashboardsService       { return stubDashboards{b} }
func (b *stubBackend) Attributes() AttributesService       { return stubAttributes{b} }
func (b *stubBackend) Exports() ExportsService             { return stubExports{b} }
func (b *stubBackend) ScheduledMail() ScheduledMailService { return stubMail{b} }
func (b *stubBackend) Permissions() PermissionsService     { return stubPermissions{b} }

type stubDashboards struct{ b *stubBackend }

func (s stubDashboards) LoadDashboard(_ context.Context, ref ObjRef) (DashboardDocument, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	doc, ok := s.b.dashboards[ref.Identifier]
	if !ok {
		return DashboardDocument{}, NewBackendError(BackendNoData, nil, "dashboard %s not found", ref)
	}
	return doc.Clone(), nil
}

func (s stubDashboards) SaveDashboard(_ context.Context, doc DashboardDocument) (DashboardDocument, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if doc.Ref.IsZero() {
		doc.Ref = IdentifierRef("saved-"+strconv.Itoa(len(s.b.saved)+1), "analyticalDashboard")
	}
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc.Updated = &updated
	s.b.saved = append(s.b.saved, doc.Clone())
	s.b.dashboards[doc.Ref.Identifier] = doc.Clone()
	return doc, nil
}

type stubAttributes struct{ b *stubBackend }

func (s stubAttributes) DisplayForm(ctx context.Context, ref ObjRef) (DisplayForm, error) {
	if s.b.displayFormGate != nil {
		if s.b.entered != nil {
			s.b.entered <- struct{}{}
		}
		select {
		case <-s.b.displayFormGate:
		case <-ctx.Done():
			return DisplayForm{}, ctx.Err()
		}
	}
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	df, ok := s.b.displayForms[ref.Identifier]
	if !ok {
		return DisplayForm{}, NewBackendError(BackendNoData, nil, "display form %s not found", ref)
	}
	return df, nil
}

func (s stubAttributes) Elements(_ context.Context, q ElementsQuery) (ElementsPage, error) {
	s.b.elementCalls.Add(1)
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	all := s.b.elements[q.DisplayForm.Identifier]
	if len(q.URIs) > 0 {
		var matched []AttributeElement
		for _, el := range all {
			for _, uri := range q.URIs {
				if el.URI == uri {
					matched = append(matched, el)
				}
			}
		}
		all = matched
	}
	page := ElementsPage{Offset: q.Offset, Limit: q.Limit, TotalCount: len(all)}
	start := min(q.Offset, len(all))
	end := len(all)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(all))
	}
	page.Items = append([]AttributeElement{}, all[start:end]...)
	return page, nil
}

type stubExports struct{ b *stubBackend }

func (s stubExports) ExportDashboardToPDF(_ context.Context, req ExportRequest) (ExportResult, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.exports = append(s.b.exports, req)
	return ExportResult{URI: "/exports/" + req.Dashboard.Identifier + ".pdf", FileName: req.Title + ".pdf"}, nil
}

type stubMail struct{ b *stubBackend }

func (s stubMail) CreateScheduledMail(_ context.Context, mail ScheduledMail) (ScheduledMail, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	mail.Ref = IdentifierRef(fmt.Sprintf("schedule-%d", len(s.b.mails)+1), "scheduledMail")
	s.b.mails = append(s.b.mails, mail)
	return mail, nil
}

type stubPermissions struct{ b *stubBackend }

func (s stubPermissions) Permissions(context.Context) (Permissions, error) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	return s.b.permissions, nil
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func testClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestProcessor(t *testing.T, backend Backend, configure ...func(*Options)) *Processor {
	t.Helper()
	opts := Options{
		Backend: backend,
		NewID:   sequentialIDs(),
		Clock:   testClock,
	}
	for _, fn := range configure {
		fn(&opts)
	}
	p := NewProcessor(opts)
	p.Start(context.Background())
	t.Cleanup(p.Close)
	return p
}

func testItem(id string, width int) Item {
	return Item{
		Widget: Widget{Type: WidgetInsight, LocalIdentifier: id, Insight: IdentifierRef("insight-"+id, "insight")},
		Size:   ItemSize{XL: SizeInfo{GridWidth: width, GridHeight: 10}},
	}
}

func attributeFilterItem(id, displayForm string, parents ...string) FilterContextItem {
	filter := &AttributeFilter{
		LocalIdentifier: id,
		DisplayForm:     IdentifierRef(displayForm, "displayForm"),
		Negative:        true,
		SelectionMode:   SelectionMulti,
	}
	for _, parent := range parents {
		filter.FilterElementsBy = append(filter.FilterElementsBy, ParentFilter{FilterLocalIdentifier: parent})
	}
	return FilterContextItem{AttributeFilter: filter}
}

// testDocument has three sections titled A, B and C.
func testDocument() DashboardDocument {
	return DashboardDocument{
		Version: DocumentVersion,
		Ref:     IdentifierRef("sales", "analyticalDashboard"),
		Title:   "Sales",
		Layout: Layout{Sections: []Section{
			{Header: SectionHeader{Title: "A"}, Items: []Item{testItem("a1", 6), testItem("a2", 6)}},
			{Header: SectionHeader{Title: "B"}, Items: []Item{testItem("y", 4), testItem("z", 4)}},
			{Header: SectionHeader{Title: "C"}, Items: []Item{testItem("c1", 12)}},
		}},
		FilterContext: FilterContext{Filters: []FilterContextItem{
			{DateFilter: &DateFilter{Type: DateFilterRelative, Granularity: "GDC.time.month", From: "-11", To: "0"}},
			attributeFilterItem("region", "label.region"),
			attributeFilterItem("city", "label.city", "region"),
		}},
	}
}

func loadTestDocument(t *testing.T, p *Processor, doc DashboardDocument) {
	t.Helper()
	_, err := p.Execute(context.Background(), NewLoadDashboardDocument(doc))
	require.NoError(t, err)
}

func mustExecute(t *testing.T, p *Processor, cmd Command) Result {
	t.Helper()
	result, err := p.Execute(context.Background(), cmd)
	require.NoError(t, err)
	return result
}

func executeErr(t *testing.T, p *Processor, cmd Command) *CommandError {
	t.Helper()
	result, err := p.Execute(context.Background(), cmd)
	require.Error(t, err)
	require.NotNil(t, result.Err)
	return result.Err
}

func sectionTitles(s State) []string {
	out := make([]string, 0, len(s.Layout.Sections))
	for _, section := range s.Layout.Sections {
		out = append(out, section.Header.Title)
	}
	return out
}

func itemIDs(section Section) []string {
	out := make([]string, 0, len(section.Items))
	for _, item := range section.Items {
		out = append(out, item.Widget.LocalIdentifier)
	}
	return out
}
