package dashboard

import (
	"context"
	"time"
)

// Backend aggregates the workspace scoped services the processor consumes.
// Every call may suspend; failures are reported as *BackendError.
type Backend interface {
	Workspace() string
	Dashboards() DashboardsService
	Attributes() AttributesService
	Exports() ExportsService
	ScheduledMail() ScheduledMailService
	Permissions() PermissionsService
}

// DashboardsService loads and persists dashboard documents.
type DashboardsService interface {
	LoadDashboard(ctx context.Context, ref ObjRef) (DashboardDocument, error)
	SaveDashboard(ctx context.Context, doc DashboardDocument) (DashboardDocument, error)
}

// AttributesService resolves display forms and their elements.
type AttributesService interface {
	DisplayForm(ctx context.Context, ref ObjRef) (DisplayForm, error)
	Elements(ctx context.Context, query ElementsQuery) (ElementsPage, error)
}

// ExportsService renders dashboards to downloadable files.
type ExportsService interface {
	ExportDashboardToPDF(ctx context.Context, req ExportRequest) (ExportResult, error)
}

// ScheduledMailService stores scheduled email exports.
type ScheduledMailService interface {
	CreateScheduledMail(ctx context.Context, mail ScheduledMail) (ScheduledMail, error)
}

// PermissionsService returns the current user's workspace permissions.
type PermissionsService interface {
	Permissions(ctx context.Context) (Permissions, error)
}

// DashboardDocument is the persisted dashboard shape.
type DashboardDocument struct {
	Version       string        `json:"version,omitempty" yaml:"version,omitempty"`
	Ref           ObjRef        `json:"ref" yaml:"ref"`
	Title         string        `json:"title" yaml:"title"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty"`
	Layout        Layout        `json:"layout" yaml:"layout"`
	FilterContext FilterContext `json:"filterContext" yaml:"filterContext"`
	Updated       *time.Time    `json:"updated,omitempty" yaml:"updated,omitempty"`
}

// Clone deep copies the document.
func (d DashboardDocument) Clone() DashboardDocument {
	out := d
	out.Layout = d.Layout.Clone()
	out.FilterContext = d.FilterContext.Clone()
	if d.Updated != nil {
		updated := *d.Updated
		out.Updated = &updated
	}
	return out
}

// DisplayForm describes an attribute label.
type DisplayForm struct {
	Ref        ObjRef `json:"ref" yaml:"ref"`
	Identifier string `json:"identifier" yaml:"identifier"`
	URI        string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Title      string `json:"title" yaml:"title"`
	Attribute  ObjRef `json:"attribute" yaml:"attribute"`
}

// ElementsQuery asks for the elements of a display form.
type ElementsQuery struct {
	DisplayForm ObjRef   `json:"displayForm"`
	URIs        []string `json:"uris,omitempty"`
	Limit       int      `json:"limit,omitempty" validate:"gte=0,lte=1000"`
	Offset      int      `json:"offset,omitempty" validate:"gte=0"`
}

// AttributeElement is a single attribute value.
type AttributeElement struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

// ElementsPage is a page of attribute elements.
type ElementsPage struct {
	Items      []AttributeElement `json:"items"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
	TotalCount int                `json:"totalCount"`
}

// Clone copies the page and its items.
func (p ElementsPage) Clone() ElementsPage {
	if p.Items != nil {
		p.Items = append([]AttributeElement(nil), p.Items...)
	}
	return p
}

func (p ElementsPage) cloneResult() any { return p.Clone() }

// ExportRequest describes a dashboard export.
type ExportRequest struct {
	Dashboard ObjRef              `json:"dashboard"`
	Title     string              `json:"title"`
	Filters   []FilterContextItem `json:"filters,omitempty"`
}

// ExportResult points at the rendered file.
type ExportResult struct {
	URI      string `json:"uri"`
	FileName string `json:"fileName,omitempty"`
}

// ScheduledMail configures a recurring dashboard export by email.
type ScheduledMail struct {
	Ref         ObjRef   `json:"ref,omitempty" yaml:"ref,omitempty"`
	Title       string   `json:"title" yaml:"title" validate:"required,max=255"`
	Subject     string   `json:"subject" yaml:"subject" validate:"required,max=255"`
	Body        string   `json:"body,omitempty" yaml:"body,omitempty" validate:"max=10000"`
	Recipients  []string `json:"recipients" yaml:"recipients" validate:"required,min=1,dive,email"`
	Cron        string   `json:"cron" yaml:"cron" validate:"required"`
	Timezone    string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Attachments []string `json:"attachments,omitempty" yaml:"attachments,omitempty" validate:"dive,oneof=pdf csv xlsx"`
	Dashboard   ObjRef   `json:"dashboard,omitempty" yaml:"dashboard,omitempty"`
}

// Permissions is the subset of workspace permissions the dashboard checks.
type Permissions struct {
	CanExportPDF           bool `json:"canExportPdf" yaml:"canExportPdf"`
	CanCreateScheduledMail bool `json:"canCreateScheduledMail" yaml:"canCreateScheduledMail"`
	CanManageDashboard     bool `json:"canManageDashboard" yaml:"canManageDashboard"`
}
