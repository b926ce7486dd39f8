// Package backend provides dashboard.Backend implementations: a REST client
// guarded by a circuit breaker and an in-memory store seeded from YAML.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// HTTPConfig configures the HTTP backend client.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Workspace  string
	HTTPClient *http.Client
	Breaker    BreakerConfig
	// Schemas validates dashboard documents before they are decoded.
	// Defaults to a validator with the embedded document schema.
	Schemas *dashboard.SchemaValidator
	Logger  *zap.Logger
}

// HTTPClient talks to a remote analytics workspace via REST endpoints.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	workspace string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
	schemas   *dashboard.SchemaValidator
	logger    *zap.Logger
}

var _ dashboard.Backend = (*HTTPClient)(nil)

// NewHTTPClient builds a client for one workspace.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend: base url is required")
	}
	if cfg.Workspace == "" {
		return nil, errors.New("backend: workspace is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	schemas := cfg.Schemas
	if schemas == nil {
		schemas = dashboard.NewSchemaValidator()
	}
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		workspace: cfg.Workspace,
		client:    httpClient,
		breaker:   newBreaker(cfg.Breaker.withDefaults("backend:"+cfg.Workspace), logger),
		schemas:   schemas,
		logger:    logger.Named("backend"),
	}, nil
}

func (c *HTTPClient) Workspace() string                             { return c.workspace }
func (c *HTTPClient) Dashboards() dashboard.DashboardsService       { return httpDashboards{c} }
func (c *HTTPClient) Attributes() dashboard.AttributesService       { return httpAttributes{c} }
func (c *HTTPClient) Exports() dashboard.ExportsService             { return httpExports{c} }
func (c *HTTPClient) ScheduledMail() dashboard.ScheduledMailService { return httpMail{c} }
func (c *HTTPClient) Permissions() dashboard.PermissionsService     { return httpPermissions{c} }

func (c *HTTPClient) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, "workspaces", url.PathEscape(c.workspace))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return "/api/v1/" + strings.Join(escaped, "/")
}

// do runs one request through the breaker and returns the raw body.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		c.logger.Debug("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, breakerError(err)
	}
	return result.([]byte), nil
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, dashboard.NewBackendError(dashboard.BackendUnexpected, err, "encode %s payload", path)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, dashboard.NewBackendError(dashboard.BackendUnexpected, err, "build request %s", path)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dashboard.NewBackendError(dashboard.BackendUnexpected, err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dashboard.NewBackendError(dashboard.BackendUnexpectedResponse, err, "read %s response", path)
	}
	if resp.StatusCode >= 300 {
		return nil, dashboard.NewBackendError(KindForStatus(resp.StatusCode), nil,
			"%s %s: remote error %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// KindForStatus maps an HTTP status to a backend error kind.
func KindForStatus(status int) dashboard.BackendErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return dashboard.BackendNotAuthenticated
	case status == http.StatusForbidden:
		return dashboard.BackendProtectedData
	case status == http.StatusNotFound:
		return dashboard.BackendNoData
	case status == http.StatusRequestEntityTooLarge:
		return dashboard.BackendDataTooLarge
	case status == http.StatusNotImplemented:
		return dashboard.BackendNotImplemented
	case status == http.StatusMethodNotAllowed:
		return dashboard.BackendNotSupported
	case status >= 400 && status < 500:
		return dashboard.BackendUnexpectedResponse
	}
	return dashboard.BackendUnexpected
}

func decode[T any](data []byte, what string) (T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return out, dashboard.NewBackendError(dashboard.BackendUnexpectedResponse, err, "decode %s", what)
	}
	return out, nil
}

type httpDashboards struct{ c *HTTPClient }

func (s httpDashboards) LoadDashboard(ctx context.Context, ref dashboard.ObjRef) (dashboard.DashboardDocument, error) {
	if ref.Identifier == "" {
		return dashboard.DashboardDocument{}, dashboard.NewBackendError(dashboard.BackendNotSupported, nil, "dashboard %s has no identifier", ref)
	}
	data, err := s.c.do(ctx, http.MethodGet, s.c.path("dashboards", ref.Identifier), nil)
	if err != nil {
		return dashboard.DashboardDocument{}, err
	}
	if err := s.c.schemas.Validate(dashboard.DocumentSchema, data); err != nil {
		return dashboard.DashboardDocument{}, dashboard.NewBackendError(dashboard.BackendUnexpectedResponse, err, "dashboard %s", ref)
	}
	doc, err := decode[dashboard.DashboardDocument](data, "dashboard")
	if err != nil {
		return doc, err
	}
	if doc.Ref.IsZero() {
		doc.Ref = ref
	}
	return doc, nil
}

func (s httpDashboards) SaveDashboard(ctx context.Context, doc dashboard.DashboardDocument) (dashboard.DashboardDocument, error) {
	method, path := http.MethodPost, s.c.path("dashboards")
	if doc.Ref.Identifier != "" {
		method, path = http.MethodPut, s.c.path("dashboards", doc.Ref.Identifier)
	}
	data, err := s.c.do(ctx, method, path, doc)
	if err != nil {
		return dashboard.DashboardDocument{}, err
	}
	return decode[dashboard.DashboardDocument](data, "saved dashboard")
}

type httpAttributes struct{ c *HTTPClient }

func (s httpAttributes) DisplayForm(ctx context.Context, ref dashboard.ObjRef) (dashboard.DisplayForm, error) {
	data, err := s.c.do(ctx, http.MethodGet, s.c.path("displayForms", ref.Identifier), nil)
	if err != nil {
		return dashboard.DisplayForm{}, err
	}
	return decode[dashboard.DisplayForm](data, "display form")
}

func (s httpAttributes) Elements(ctx context.Context, query dashboard.ElementsQuery) (dashboard.ElementsPage, error) {
	data, err := s.c.do(ctx, http.MethodPost, s.c.path("elements"), query)
	if err != nil {
		return dashboard.ElementsPage{}, err
	}
	return decode[dashboard.ElementsPage](data, "elements")
}

type httpExports struct{ c *HTTPClient }

func (s httpExports) ExportDashboardToPDF(ctx context.Context, req dashboard.ExportRequest) (dashboard.ExportResult, error) {
	data, err := s.c.do(ctx, http.MethodPost, s.c.path("exports", "pdf"), req)
	if err != nil {
		return dashboard.ExportResult{}, err
	}
	return decode[dashboard.ExportResult](data, "export")
}

type httpMail struct{ c *HTTPClient }

func (s httpMail) CreateScheduledMail(ctx context.Context, mail dashboard.ScheduledMail) (dashboard.ScheduledMail, error) {
	data, err := s.c.do(ctx, http.MethodPost, s.c.path("scheduledMails"), mail)
	if err != nil {
		return dashboard.ScheduledMail{}, err
	}
	return decode[dashboard.ScheduledMail](data, "scheduled mail")
}

type httpPermissions struct{ c *HTTPClient }

func (s httpPermissions) Permissions(ctx context.Context) (dashboard.Permissions, error) {
	data, err := s.c.do(ctx, http.MethodGet, s.c.path("permissions"), nil)
	if err != nil {
		return dashboard.Permissions{}, err
	}
	return decode[dashboard.Permissions](data, "permissions")
}

// String identifies the client in logs.
func (c *HTTPClient) String() string {
	return fmt.Sprintf("backend.HTTPClient(%s, %s)", c.baseURL, c.workspace)
}
