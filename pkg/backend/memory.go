package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Fixture seeds a Memory backend.
type Fixture struct {
	Workspace    string                                  `yaml:"workspace"`
	Permissions  dashboard.Permissions                   `yaml:"permissions"`
	Dashboards   []dashboard.DashboardDocument           `yaml:"dashboards"`
	DisplayForms []dashboard.DisplayForm                 `yaml:"displayForms"`
	Elements     map[string][]dashboard.AttributeElement `yaml:"elements"`
}

// Memory is an in-process Backend used by demos, the CLI and tests.
type Memory struct {
	workspace string
	clock     func() time.Time

	mu           sync.RWMutex
	permissions  dashboard.Permissions
	dashboards   map[string]dashboard.DashboardDocument
	displayForms map[string]dashboard.DisplayForm
	elements     map[string][]dashboard.AttributeElement
	exports      []dashboard.ExportRequest
	mails        []dashboard.ScheduledMail
	saves        int
}

var _ dashboard.Backend = (*Memory)(nil)

// NewMemory builds an empty backend with every permission granted.
func NewMemory(workspace string) *Memory {
	return &Memory{
		workspace: workspace,
		clock:     time.Now,
		permissions: dashboard.Permissions{
			CanExportPDF:           true,
			CanCreateScheduledMail: true,
			CanManageDashboard:     true,
		},
		dashboards:   map[string]dashboard.DashboardDocument{},
		displayForms: map[string]dashboard.DisplayForm{},
		elements:     map[string][]dashboard.AttributeElement{},
	}
}

// NewMemoryFromFixture seeds a backend from a decoded fixture.
func NewMemoryFromFixture(f Fixture) (*Memory, error) {
	workspace := f.Workspace
	if workspace == "" {
		workspace = "default"
	}
	m := NewMemory(workspace)
	m.permissions = f.Permissions
	for i, doc := range f.Dashboards {
		if doc.Ref.Identifier == "" {
			return nil, fmt.Errorf("backend: fixture dashboard %d has no identifier", i)
		}
		if doc.Version == "" {
			doc.Version = dashboard.DocumentVersion
		}
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("backend: fixture dashboard %s: %w", doc.Ref.Identifier, err)
		}
		m.dashboards[doc.Ref.Identifier] = doc.Clone()
	}
	for _, df := range f.DisplayForms {
		m.PutDisplayForm(df)
	}
	for id, elements := range f.Elements {
		m.elements[id] = append([]dashboard.AttributeElement(nil), elements...)
	}
	return m, nil
}

// DecodeFixture parses a YAML fixture. Unknown fields are rejected.
func DecodeFixture(r io.Reader) (Fixture, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var f Fixture
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, errors.New("backend: fixture is empty")
		}
		return f, fmt.Errorf("backend: parse fixture: %w", err)
	}
	return f, nil
}

// LoadFixture reads a fixture file and builds a Memory backend from it.
func LoadFixture(path string) (*Memory, error) {
	file, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("backend: open fixture %s: %w", path, err)
	}
	defer file.Close()
	f, err := DecodeFixture(file)
	if err != nil {
		return nil, err
	}
	return NewMemoryFromFixture(f)
}

// WithClock overrides the clock stamping saved documents.
func (m *Memory) WithClock(clock func() time.Time) *Memory {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// PutDashboard stores a document keyed by its identifier.
func (m *Memory) PutDashboard(doc dashboard.DashboardDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboards[doc.Ref.Identifier] = doc.Clone()
}

// PutDisplayForm registers a display form.
func (m *Memory) PutDisplayForm(df dashboard.DisplayForm) {
	if df.Identifier == "" {
		df.Identifier = df.Ref.Identifier
	}
	if df.Ref.IsZero() {
		df.Ref = dashboard.IdentifierRef(df.Identifier, "displayForm")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayForms[df.Identifier] = df
}

// PutElements replaces the elements of a display form.
func (m *Memory) PutElements(displayForm string, elements ...dashboard.AttributeElement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elements[displayForm] = append([]dashboard.AttributeElement(nil), elements...)
}

// SetPermissions replaces the workspace permissions.
func (m *Memory) SetPermissions(p dashboard.Permissions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions = p
}

// DashboardIDs lists the stored dashboards sorted by identifier.
func (m *Memory) DashboardIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.dashboards))
	for id := range m.dashboards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Exported returns the export requests received so far.
func (m *Memory) Exported() []dashboard.ExportRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dashboard.ExportRequest(nil), m.exports...)
}

// Mails returns the scheduled mails created so far.
func (m *Memory) Mails() []dashboard.ScheduledMail {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]dashboard.ScheduledMail(nil), m.mails...)
}

func (m *Memory) Workspace() string                             { return m.workspace }
func (m *Memory) Dashboards() dashboard.DashboardsService       { return memoryDashboards{m} }
func (m *Memory) Attributes() dashboard.AttributesService       { return memoryAttributes{m} }
func (m *Memory) Exports() dashboard.ExportsService             { return memoryExports{m} }
func (m *Memory) ScheduledMail() dashboard.ScheduledMailService { return memoryMail{m} }
func (m *Memory) Permissions() dashboard.PermissionsService     { return memoryPermissions{m} }

type memoryDashboards struct{ m *Memory }

func (s memoryDashboards) LoadDashboard(ctx context.Context, ref dashboard.ObjRef) (dashboard.DashboardDocument, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.DashboardDocument{}, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	doc, ok := s.m.dashboards[ref.Identifier]
	if !ok {
		return dashboard.DashboardDocument{}, dashboard.NewBackendError(dashboard.BackendNoData, nil, "dashboard %s not found", ref)
	}
	return doc.Clone(), nil
}

func (s memoryDashboards) SaveDashboard(ctx context.Context, doc dashboard.DashboardDocument) (dashboard.DashboardDocument, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.DashboardDocument{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if !s.m.permissions.CanManageDashboard {
		return dashboard.DashboardDocument{}, dashboard.NewBackendError(dashboard.BackendProtectedData, nil, "saving dashboards is not permitted")
	}
	s.m.saves++
	if doc.Ref.IsZero() {
		doc.Ref = dashboard.IdentifierRef(fmt.Sprintf("dashboard-%d", s.m.saves), "analyticalDashboard")
	}
	updated := s.m.clock().UTC()
	doc.Updated = &updated
	s.m.dashboards[doc.Ref.Identifier] = doc.Clone()
	return doc.Clone(), nil
}

type memoryAttributes struct{ m *Memory }

func (s memoryAttributes) DisplayForm(ctx context.Context, ref dashboard.ObjRef) (dashboard.DisplayForm, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.DisplayForm{}, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if df, ok := s.m.displayForms[ref.Identifier]; ok {
		return df, nil
	}
	if ref.URI != "" {
		for _, df := range s.m.displayForms {
			if df.URI == ref.URI {
				return df, nil
			}
		}
	}
	return dashboard.DisplayForm{}, dashboard.NewBackendError(dashboard.BackendNoData, nil, "display form %s not found", ref)
}

func (s memoryAttributes) Elements(ctx context.Context, q dashboard.ElementsQuery) (dashboard.ElementsPage, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.ElementsPage{}, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if _, ok := s.m.displayForms[q.DisplayForm.Identifier]; !ok {
		return dashboard.ElementsPage{}, dashboard.NewBackendError(dashboard.BackendNoData, nil, "display form %s not found", q.DisplayForm)
	}
	all := s.m.elements[q.DisplayForm.Identifier]
	if len(q.URIs) > 0 {
		wanted := make(map[string]struct{}, len(q.URIs))
		for _, uri := range q.URIs {
			wanted[uri] = struct{}{}
		}
		matched := make([]dashboard.AttributeElement, 0, len(q.URIs))
		for _, el := range all {
			if _, ok := wanted[el.URI]; ok {
				matched = append(matched, el)
			}
		}
		all = matched
	}
	start := min(q.Offset, len(all))
	end := len(all)
	if q.Limit > 0 {
		end = min(start+q.Limit, len(all))
	}
	return dashboard.ElementsPage{
		Items:      append([]dashboard.AttributeElement{}, all[start:end]...),
		Offset:     q.Offset,
		Limit:      q.Limit,
		TotalCount: len(all),
	}, nil
}

type memoryExports struct{ m *Memory }

func (s memoryExports) ExportDashboardToPDF(ctx context.Context, req dashboard.ExportRequest) (dashboard.ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.ExportResult{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if !s.m.permissions.CanExportPDF {
		return dashboard.ExportResult{}, dashboard.NewBackendError(dashboard.BackendProtectedData, nil, "pdf export is not permitted")
	}
	s.m.exports = append(s.m.exports, req)
	name := req.Title
	if name == "" {
		name = req.Dashboard.Identifier
	}
	return dashboard.ExportResult{
		URI:      fmt.Sprintf("/exports/%s/%d.pdf", req.Dashboard.Identifier, len(s.m.exports)),
		FileName: name + ".pdf",
	}, nil
}

type memoryMail struct{ m *Memory }

func (s memoryMail) CreateScheduledMail(ctx context.Context, mail dashboard.ScheduledMail) (dashboard.ScheduledMail, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.ScheduledMail{}, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if !s.m.permissions.CanCreateScheduledMail {
		return dashboard.ScheduledMail{}, dashboard.NewBackendError(dashboard.BackendProtectedData, nil, "scheduling mails is not permitted")
	}
	mail.Ref = dashboard.IdentifierRef(fmt.Sprintf("schedule-%d", len(s.m.mails)+1), "scheduledMail")
	s.m.mails = append(s.m.mails, mail)
	return mail, nil
}

type memoryPermissions struct{ m *Memory }

func (s memoryPermissions) Permissions(ctx context.Context) (dashboard.Permissions, error) {
	if err := ctx.Err(); err != nil {
		return dashboard.Permissions{}, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.m.permissions, nil
}
