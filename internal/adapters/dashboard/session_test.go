package dashboard

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bnema/mlab-cli/internal/adapters/dashboard/dashboardtest"
	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, baseURL string) ports.DashboardSession {
	t.Helper()

	client, err := New(Config{BaseURL: baseURL})
	require.NoError(t, err)

	session, err := client.NewSession()
	require.NoError(t, err)
	return session
}

func mustCredentials(t *testing.T, name, password string) domain.Credentials {
	t.Helper()

	creds, err := domain.NewCredentials(name, password)
	require.NoError(t, err)
	return creds
}

func loggedInSession(t *testing.T, server *dashboardtest.Server) (ports.DashboardSession, string) {
	t.Helper()

	session := newTestSession(t, server.URL)
	require.NoError(t, session.Login(context.Background(), mustCredentials(t, dashboardtest.DefaultUsername, dashboardtest.DefaultPassword)))

	csrf, err := session.FetchCSRFToken(context.Background())
	require.NoError(t, err)
	return session, csrf
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BaseURL: "ftp://mlab.com"})
	assert.ErrorContains(t, err, "http or https")

	_, err = New(Config{BaseURL: "https://"})
	assert.ErrorContains(t, err, "host is required")
}

func TestLoginStoresSessionCookie(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session, csrf := loggedInSession(t, server)

	assert.Equal(t, "csrf-sid-1", csrf)

	accountID, err := session.FetchAccountID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dashboardtest.DefaultAccountID, accountID)
}

func TestLoginReportsInvalidCredentialsOnRedirectToLogin(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session := newTestSession(t, server.URL)

	err := session.Login(context.Background(), mustCredentials(t, "u", "wrong"))
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLoginResponseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		location string
		wantErr  error
	}{
		{name: "not found", status: http.StatusNotFound, wantErr: domain.ErrInvalidCredentials},
		{name: "redirect home", status: http.StatusFound, location: "/home"},
		{name: "plain ok", status: http.StatusOK},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrTransport},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/dologin", r.URL.Path)
				assert.Equal(t, "r=", r.URL.RawQuery)
				if tc.location != "" {
					w.Header().Set("Location", tc.location)
				}
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)

			err := newTestSession(t, server.URL).Login(context.Background(), mustCredentials(t, "u", "p"))
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestFetchCSRFTokenWithoutSessionReportsExpiry(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session := newTestSession(t, server.URL)

	_, err := session.FetchCSRFToken(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestFetchAccountIDReportsMissingMarker(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{HideAccountID: true})
	session, _ := loggedInSession(t, server)

	_, err := session.FetchAccountID(context.Background())
	assert.ErrorIs(t, err, domain.ErrAccountIDNotFound)
}

func TestCreateListAndDeleteDeployment(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session, csrf := loggedInSession(t, server)
	ctx := context.Background()

	created, err := session.CreateDeployment(ctx, dashboardtest.DefaultAccountID, csrf, ports.DeploymentRequest{
		Name:     "db1",
		Region:   "us-east-1",
		Plan:     domain.DefaultPlan,
		Provider: domain.DefaultProvider,
		Version:  domain.DefaultVersion,
	})
	require.NoError(t, err)
	assert.Equal(t, "db1", created.Name)
	assert.Equal(t, "us-east-1", created.Region)
	assert.Equal(t, domain.DefaultPlan, created.PlanType)
	assert.Equal(t, "mongodb://ds000001.mlab.test:40001", created.URIAddress)
	assert.Contains(t, created.URITemplate, "{username}:{password}@")

	listed, err := session.ListDeployments(ctx, dashboardtest.DefaultAccountID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, created, listed[0])

	status, err := session.DeploymentStatus(ctx, csrf, "db1")
	require.NoError(t, err)
	assert.True(t, status.State.IsProvisioned())

	require.NoError(t, session.DeleteDatabase(ctx, csrf, "db1"))
	assert.False(t, server.HasDeployment("db1"))
}

func TestCreateDeploymentWithForeignCSRFIsRejected(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session, _ := loggedInSession(t, server)

	_, err := session.CreateDeployment(context.Background(), dashboardtest.DefaultAccountID, "csrf-sid-99", ports.DeploymentRequest{Name: "db1", Region: "us-east-1"})
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.Equal(t, 1, server.CSRFMismatches())
}

func TestExpiredSessionIsReported(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	server.AddDeployment("db1", "us-east-1")
	session, csrf := loggedInSession(t, server)
	server.ExpireSessions()

	err := session.DeleteDatabase(context.Background(), csrf, "db1")
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
	assert.True(t, server.HasDeployment("db1"))
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	server.AddDeployment("db1", "us-east-1")
	session, csrf := loggedInSession(t, server)
	ctx := context.Background()

	require.NoError(t, session.AddUser(ctx, csrf, "db1", domain.DatabaseUser{Name: "a", Password: "x"}))
	users, err := session.ListUsers(ctx, "db1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, users)

	require.NoError(t, session.RemoveUser(ctx, csrf, "db1", "a"))
	users, err = session.ListUsers(ctx, "db1")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestAddUserSendsFormFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/adddbuser", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("CSRF_TOKEN"))
		assert.Equal(t, "db 1", r.PostForm.Get("db"))
		assert.Equal(t, "#users", r.PostForm.Get("tab"))
		assert.Equal(t, "reader", r.PostForm.Get("username"))
		assert.Equal(t, "pw", r.PostForm.Get("password"))
		assert.Equal(t, "pw", r.PostForm.Get("password2"))
		assert.Equal(t, "readOnly", r.PostForm.Get("readOnly"))

		w.Header().Set("Location", "/databases/"+url.PathEscape("db 1")+"#users")
		w.WriteHeader(http.StatusFound)
	}))
	t.Cleanup(server.Close)

	err := newTestSession(t, server.URL).AddUser(context.Background(), "tok", "db 1", domain.DatabaseUser{Name: "reader", Password: "pw", ReadOnly: true})
	assert.NoError(t, err)
}

func TestFormPostRequiresMatchingRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		location string
		wantErr  error
	}{
		{name: "expected target", status: http.StatusFound, location: "/home"},
		{name: "absolute expected target", status: http.StatusSeeOther, location: "https://mlab.example/home"},
		{name: "other target", status: http.StatusFound, location: "/databases/db1", wantErr: errUnexpectedRedirect},
		{name: "login redirect", status: http.StatusFound, location: "/login/", wantErr: domain.ErrSessionExpired},
		{name: "ok without redirect", status: http.StatusOK, wantErr: errMissingRedirect},
		{name: "forbidden", status: http.StatusForbidden, wantErr: domain.ErrSessionExpired},
		{name: "server error", status: http.StatusInternalServerError, wantErr: domain.ErrTransport},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.location != "" {
					w.Header().Set("Location", tc.location)
				}
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)

			err := newTestSession(t, server.URL).DeleteDatabase(context.Background(), "tok", "db1")
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestLogoutPostsTokenAndInvalidatesSession(t *testing.T) {
	t.Parallel()

	server := dashboardtest.New(t, dashboardtest.Options{})
	session, csrf := loggedInSession(t, server)

	require.NoError(t, session.Logout(context.Background(), csrf))
	assert.Equal(t, 0, server.ActiveSessions())

	_, err := session.FetchAccountID(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestCSRFHeadersAreSentVerbatim(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.Header.Get("CSRF_TOKEN"))
		_, present := r.Header["X-Requested-With"]
		assert.True(t, present)
		_, _ = io.WriteString(w, `{"loggedState":"provisioning"}`)
	}))
	t.Cleanup(server.Close)

	status, err := newTestSession(t, server.URL).DeploymentStatus(context.Background(), "tok", "db1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeploymentState("provisioning"), status.State)
	assert.False(t, status.State.IsProvisioned())
}

func TestListDeploymentsFallsBackToMapKeyForName(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mlab-api/accounts/acct-1/deployments", r.URL.Path)
		_, _ = io.WriteString(w, `{"b":{"_id":"2","connectionInfo":{"uriComponents":{"serverAddresses":[]}}},"a":{"_id":"1","name":"a"}}`)
	}))
	t.Cleanup(server.Close)

	databases, err := newTestSession(t, server.URL).ListDeployments(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, databases, 2)
	assert.Equal(t, "a", databases[0].Name)
	assert.Equal(t, "b", databases[1].Name)
	assert.Empty(t, databases[1].URIAddress)
}

func TestBodyErrorTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantLen int
	}{
		{name: "ascii", body: strings.Repeat("a", 300), wantLen: 200},
		{name: "two byte rune straddles limit", body: strings.Repeat("a", 199) + strings.Repeat("é", 10), wantLen: 199},
		{name: "three byte runes", body: strings.Repeat("€", 100), wantLen: 198},
		{name: "short body kept", body: "  nope  ", wantLen: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := bodyError([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, utf8.ValidString(err.Error()))
			assert.Len(t, err.Error(), tt.wantLen)
		})
	}
}

func TestBodyErrorEmptyBody(t *testing.T) {
	t.Parallel()

	assert.NoError(t, bodyError([]byte(" \n\t ")))
}
