package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

func newTestClient(t *testing.T, handler http.Handler, breaker BreakerConfig) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewHTTPClient(HTTPConfig{
		BaseURL:   server.URL,
		APIKey:    "secret",
		Workspace: "ws-1",
		Breaker:   breaker,
	})
	require.NoError(t, err)
	return client
}

func TestNewHTTPClientRequiresBaseURLAndWorkspace(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{Workspace: "ws"})
	require.Error(t, err)
	_, err = NewHTTPClient(HTTPConfig{BaseURL: "http://x"})
	require.Error(t, err)
}

func TestHTTPClientLoadsDashboard(t *testing.T) {
	var auth, path string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"version":"1","title":"Sales","layout":{"sections":[]},"filterContext":{"filters":[]}}`))
	}), BreakerConfig{})

	doc, err := client.Dashboards().LoadDashboard(context.Background(), dashboard.IdentifierRef("sales", "analyticalDashboard"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "/api/v1/workspaces/ws-1/dashboards/sales", path)
	assert.Equal(t, "Sales", doc.Title)
	assert.Equal(t, "sales", doc.Ref.Identifier)
}

func TestHTTPClientRejectsMalformedDocument(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":42}`))
	}), BreakerConfig{})

	_, err := client.Dashboards().LoadDashboard(context.Background(), dashboard.IdentifierRef("sales", ""))
	kind, ok := dashboard.BackendErrorKindOf(err)
	require.True(t, ok)
	assert.Equal(t, dashboard.BackendUnexpectedResponse, kind)
}

func TestHTTPClientMapsStatusToKind(t *testing.T) {
	cases := map[int]dashboard.BackendErrorKind{
		http.StatusUnauthorized:          dashboard.BackendNotAuthenticated,
		http.StatusForbidden:             dashboard.BackendProtectedData,
		http.StatusNotFound:              dashboard.BackendNoData,
		http.StatusRequestEntityTooLarge: dashboard.BackendDataTooLarge,
		http.StatusNotImplemented:        dashboard.BackendNotImplemented,
		http.StatusTeapot:                dashboard.BackendUnexpectedResponse,
		http.StatusBadGateway:            dashboard.BackendUnexpected,
	}
	for status, want := range cases {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", status)
		}), BreakerConfig{})

		_, err := client.Permissions().Permissions(context.Background())
		kind, ok := dashboard.BackendErrorKindOf(err)
		require.True(t, ok, "status %d", status)
		assert.Equal(t, want, kind, "status %d", status)
	}
}

func TestHTTPClientPostsElementsQuery(t *testing.T) {
	var got dashboard.ElementsQuery
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workspaces/ws-1/elements", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"items":[{"uri":"/e/1","title":"East"}],"offset":0,"limit":1,"totalCount":4}`))
	}), BreakerConfig{})

	page, err := client.Attributes().Elements(context.Background(), dashboard.ElementsQuery{
		DisplayForm: dashboard.IdentifierRef("label.region", "displayForm"),
		Limit:       1,
	})
	require.NoError(t, err)
	assert.Equal(t, "label.region", got.DisplayForm.Identifier)
	assert.Equal(t, 4, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "East", page.Items[0].Title)
}

func TestHTTPClientSaveUsesPutForExistingDashboards(t *testing.T) {
	var methods []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"ref":{"identifier":"d-1"},"title":"Saved","layout":{"sections":[]}}`))
	}), BreakerConfig{})
	ctx := context.Background()

	saved, err := client.Dashboards().SaveDashboard(ctx, dashboard.DashboardDocument{Title: "New"})
	require.NoError(t, err)
	_, err = client.Dashboards().SaveDashboard(ctx, saved)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/v1/workspaces/ws-1/dashboards",
		"PUT /api/v1/workspaces/ws-1/dashboards/d-1",
	}, methods)
}

func TestBreakerOpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	status := http.StatusNotFound
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "fail", status)
	}), BreakerConfig{MinRequests: 2, FailureThreshold: 0.4})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Permissions().Permissions(ctx)
		kind, _ := dashboard.BackendErrorKindOf(err)
		assert.Equal(t, dashboard.BackendNoData, kind)
	}
	assert.Equal(t, int32(3), calls.Load())

	status = http.StatusInternalServerError
	for i := 0; i < 2; i++ {
		_, _ = client.Permissions().Permissions(ctx)
	}
	before := calls.Load()
	_, err := client.Permissions().Permissions(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
	assert.Equal(t, before, calls.Load())
}

func TestCommandErrorCarriesBackendKind(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "login", http.StatusUnauthorized)
	}), BreakerConfig{})

	_, err := client.Dashboards().LoadDashboard(context.Background(), dashboard.IdentifierRef("x", ""))
	cmdErr := dashboard.AsCommandError(err)
	assert.Equal(t, dashboard.InternalError, cmdErr.Kind)
	assert.Equal(t, string(dashboard.BackendNotAuthenticated), cmdErr.Details["backendErrorKind"])
}
