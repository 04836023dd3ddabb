package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bnema/mlab-cli/internal/domain"
	"github.com/bnema/mlab-cli/internal/ports"
	"github.com/rs/zerolog"
)

const (
	loginPath        = "/dologin"
	logoutPath       = "/logout"
	csrfPath         = "/csrf.js"
	wizardPath       = "/create/wizard"
	deletePath       = "/delete"
	addUserPath      = "/adddbuser"
	removeUserPath   = "/deletedbuser"
	homeLocation     = "/home"
	loginLocation    = "/login/"
	usersTabFragment = "#users"

	csrfHeader      = "CSRF_TOKEN"
	csrfFetchHeader = "FETCH-CSRF-TOKEN"
	requestedWith   = "X-REQUESTED-WITH"

	maxBodyErrorBytes = 200
)

var (
	errUnexpectedRedirect = errors.New("unexpected redirect target")
	errMissingRedirect    = errors.New("expected a redirect")
)

// Session is one browser-like dashboard session backed by a single cookie jar.
type Session struct {
	baseURL *url.URL
	http    *http.Client
	log     zerolog.Logger
}

var _ ports.DashboardSession = (*Session)(nil)

type response struct {
	status   int
	location string
	body     []byte
}

type deploymentSchema struct {
	ID             string               `json:"_id"`
	Name           string               `json:"name"`
	Provider       string               `json:"provider"`
	Region         string               `json:"region"`
	PlanType       string               `json:"planType"`
	Version        string               `json:"mongodbVersion"`
	DisplayLabel   string               `json:"mlabDisplayLabel"`
	ConnectionInfo connectionInfoSchema `json:"connectionInfo"`
}

type connectionInfoSchema struct {
	URITemplate   string `json:"uriTemplate"`
	URIComponents struct {
		ServerAddresses []string `json:"serverAddresses"`
	} `json:"uriComponents"`
}

type createDeploymentSchema struct {
	DBName         string `json:"dbName"`
	Region         string `json:"region"`
	Plan           string `json:"plan"`
	Provider       string `json:"provider"`
	MongoDBVersion string `json:"mongodbVersion"`
}

type statusSchema struct {
	LoggedState string `json:"loggedState"`
}

type userSchema struct {
	User string `json:"user"`
}

func (s *Session) Login(ctx context.Context, creds domain.Credentials) error {
	form := url.Values{}
	form.Set("username", creds.Name())
	form.Set("password", creds.Password())

	resp, err := s.postForm(ctx, loginPath, url.Values{"r": {""}}, form)
	if err != nil {
		return &domain.TransportError{Op: "login", Err: err}
	}

	switch {
	case resp.status == http.StatusNotFound:
		return domain.ErrInvalidCredentials
	case isRedirect(resp.status) && isLoginLocation(resp.location):
		return domain.ErrInvalidCredentials
	case isSuccess(resp.status), isRedirect(resp.status):
		return nil
	default:
		return &domain.TransportError{Op: "login", StatusCode: resp.status}
	}
}

func (s *Session) Logout(ctx context.Context, csrfToken string) error {
	form := url.Values{}
	form.Set(csrfHeader, csrfToken)

	resp, err := s.do(ctx, http.MethodPost, logoutPath, "="+url.QueryEscape(csrfToken), strings.NewReader(form.Encode()), formHeader())
	if err != nil {
		return &domain.TransportError{Op: "logout", Err: err}
	}

	return expectRedirect("logout", resp, loginLocation)
}

func (s *Session) FetchCSRFToken(ctx context.Context) (string, error) {
	header := http.Header{}
	header[csrfFetchHeader] = []string{"1"}

	resp, err := s.do(ctx, http.MethodPost, csrfPath, "", nil, header)
	if err != nil {
		return "", &domain.TransportError{Op: "fetch csrf token", Err: err}
	}
	if err := expectOK("fetch csrf token", resp); err != nil {
		return "", err
	}

	token, ok := ParseCSRFToken(string(resp.body))
	if !ok {
		return "", errors.New("csrf token missing from response body")
	}

	return token, nil
}

func (s *Session) FetchAccountID(ctx context.Context) (string, error) {
	resp, err := s.do(ctx, http.MethodGet, wizardPath, "", nil, nil)
	if err != nil {
		return "", &domain.TransportError{Op: "fetch account id", Err: err}
	}
	if err := expectOK("fetch account id", resp); err != nil {
		return "", err
	}

	accountID, ok := ParseAccountID(string(resp.body))
	if !ok {
		return "", domain.ErrAccountIDNotFound
	}

	return accountID, nil
}

func (s *Session) ListDeployments(ctx context.Context, accountID string) ([]domain.Database, error) {
	resp, err := s.do(ctx, http.MethodGet, deploymentsPath(accountID), "", nil, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "list deployments", Err: err}
	}
	if err := expectOK("list deployments", resp); err != nil {
		return nil, err
	}

	var payload map[string]deploymentSchema
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("decode deployments: %w", err)
	}

	databases := make([]domain.Database, 0, len(payload))
	for name, entry := range payload {
		databases = append(databases, fromDeploymentSchema(entry, name))
	}
	sort.Slice(databases, func(i, j int) bool { return databases[i].Name < databases[j].Name })

	return databases, nil
}

func (s *Session) CreateDeployment(ctx context.Context, accountID, csrfToken string, req ports.DeploymentRequest) (domain.Database, error) {
	payload, err := json.Marshal(createDeploymentSchema{
		DBName:         req.Name,
		Region:         req.Region,
		Plan:           req.Plan,
		Provider:       req.Provider,
		MongoDBVersion: req.Version,
	})
	if err != nil {
		return domain.Database{}, fmt.Errorf("encode deployment request: %w", err)
	}

	header := csrfHeaders(csrfToken)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")

	resp, err := s.do(ctx, http.MethodPost, deploymentsPath(accountID), "", bytes.NewReader(payload), header)
	if err != nil {
		return domain.Database{}, &domain.TransportError{Op: "create deployment", Err: err}
	}
	if err := expectOK("create deployment", resp); err != nil {
		return domain.Database{}, err
	}

	var created deploymentSchema
	if err := json.Unmarshal(resp.body, &created); err != nil {
		return domain.Database{}, fmt.Errorf("decode created deployment: %w", err)
	}

	return fromDeploymentSchema(created, req.Name), nil
}

func (s *Session) DeploymentStatus(ctx context.Context, csrfToken, name string) (domain.DeploymentStatus, error) {
	resp, err := s.do(ctx, http.MethodGet, databasePath(name)+"/status", "", nil, csrfHeaders(csrfToken))
	if err != nil {
		return domain.DeploymentStatus{}, &domain.TransportError{Op: "get status", Err: err}
	}
	if err := expectOK("get status", resp); err != nil {
		return domain.DeploymentStatus{}, err
	}

	var status statusSchema
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return domain.DeploymentStatus{}, fmt.Errorf("decode status: %w", err)
	}

	return domain.DeploymentStatus{Name: name, State: domain.DeploymentState(status.LoggedState)}, nil
}

func (s *Session) DeleteDatabase(ctx context.Context, csrfToken, name string) error {
	form := url.Values{}
	form.Set("db", name)

	resp, err := s.postForm(ctx, deletePath, csrfQuery(csrfToken), form)
	if err != nil {
		return &domain.TransportError{Op: "remove database", Err: err}
	}

	return expectRedirect("remove database", resp, homeLocation)
}

func (s *Session) ListUsers(ctx context.Context, database string) ([]string, error) {
	resp, err := s.do(ctx, http.MethodGet, databasePath(database)+"/users", "mode=raw", nil, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "list users", Err: err}
	}
	if err := expectOK("list users", resp); err != nil {
		return nil, err
	}

	var payload []userSchema
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	users := make([]string, 0, len(payload))
	for _, entry := range payload {
		users = append(users, entry.User)
	}

	return users, nil
}

func (s *Session) AddUser(ctx context.Context, csrfToken, database string, user domain.DatabaseUser) error {
	form := url.Values{}
	form.Set("db", database)
	form.Set("tab", usersTabFragment)
	form.Set("username", user.Name)
	form.Set("password", user.Password)
	form.Set("password2", user.Password)
	if user.ReadOnly {
		form.Set("readOnly", "readOnly")
	}

	resp, err := s.postForm(ctx, addUserPath, csrfQuery(csrfToken), form)
	if err != nil {
		return &domain.TransportError{Op: "add user", Err: err}
	}

	return expectRedirect("add user", resp, databasePageLocation(database))
}

func (s *Session) RemoveUser(ctx context.Context, csrfToken, database, username string) error {
	form := url.Values{}
	form.Set("db", database)
	form.Set("tab", usersTabFragment)
	form.Set("username", username)

	resp, err := s.postForm(ctx, removeUserPath, csrfQuery(csrfToken), form)
	if err != nil {
		return &domain.TransportError{Op: "remove user", Err: err}
	}

	return expectRedirect("remove user", resp, databasePageLocation(database))
}

func (s *Session) postForm(ctx context.Context, path string, query url.Values, form url.Values) (response, error) {
	return s.do(ctx, http.MethodPost, path, query.Encode(), strings.NewReader(form.Encode()), formHeader())
}

func (s *Session) do(ctx context.Context, method, path, rawQuery string, body io.Reader, header http.Header) (response, error) {
	endpoint := *s.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path
	endpoint.RawPath = ""
	endpoint.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	for key, values := range header {
		req.Header[key] = values
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("perform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}

	s.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("dashboard request")

	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     payload,
	}, nil
}

func expectOK(op string, resp response) error {
	if isSuccess(resp.status) {
		return nil
	}
	if sessionExpired(resp) {
		return fmt.Errorf("%w: %w", domain.ErrSessionExpired, &domain.TransportError{Op: op, StatusCode: resp.status, Location: resp.location})
	}

	return &domain.TransportError{Op: op, StatusCode: resp.status, Err: bodyError(resp.body)}
}

// expectRedirect treats a post as applied only when the dashboard redirects
// to want.
func expectRedirect(op string, resp response, want string) error {
	if isRedirect(resp.status) && locationMatches(resp.location, want) {
		return nil
	}
	if sessionExpired(resp) {
		return fmt.Errorf("%w: %w", domain.ErrSessionExpired, &domain.TransportError{Op: op, StatusCode: resp.status, Location: resp.location})
	}
	if isRedirect(resp.status) {
		return &domain.TransportError{Op: op, StatusCode: resp.status, Location: resp.location, Err: errUnexpectedRedirect}
	}
	if isSuccess(resp.status) {
		return &domain.TransportError{Op: op, StatusCode: resp.status, Err: errMissingRedirect}
	}

	return &domain.TransportError{Op: op, StatusCode: resp.status, Err: bodyError(resp.body)}
}

func sessionExpired(resp response) bool {
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return true
	}
	return isRedirect(resp.status) && isLoginLocation(resp.location)
}

func isSuccess(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func isRedirect(status int) bool {
	return status >= http.StatusMultipleChoices && status < http.StatusBadRequest
}

func isLoginLocation(location string) bool {
	return strings.HasPrefix(locationPath(location), "/login")
}

func locationMatches(location, want string) bool {
	got := locationPath(location)
	if strings.Contains(want, "#") {
		if parsed, err := url.Parse(location); err == nil && parsed.Fragment != "" {
			got += "#" + parsed.Fragment
		}
	}
	return got == want
}

func locationPath(location string) string {
	parsed, err := url.Parse(location)
	if err != nil {
		return location
	}
	return parsed.EscapedPath()
}

func bodyError(body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}
	if len(trimmed) > maxBodyErrorBytes {
		cut := maxBodyErrorBytes
		for cut > 0 && !utf8.RuneStart(trimmed[cut]) {
			cut--
		}
		trimmed = trimmed[:cut]
	}
	return errors.New(trimmed)
}

func formHeader() http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return header
}

func csrfHeaders(csrfToken string) http.Header {
	header := http.Header{}
	header[csrfHeader] = []string{csrfToken}
	header[requestedWith] = []string{""}
	return header
}

func csrfQuery(csrfToken string) url.Values {
	return url.Values{csrfHeader: {csrfToken}}
}

func deploymentsPath(accountID string) string {
	return "/mlab-api/accounts/" + url.PathEscape(accountID) + "/deployments"
}

func databasePath(name string) string {
	return "/portal-api/databases/" + url.PathEscape(name)
}

func databasePageLocation(name string) string {
	return "/databases/" + url.PathEscape(name) + usersTabFragment
}

func fromDeploymentSchema(entry deploymentSchema, fallbackName string) domain.Database {
	name := entry.Name
	if name == "" {
		name = fallbackName
	}

	var address string
	if servers := entry.ConnectionInfo.URIComponents.ServerAddresses; len(servers) > 0 {
		address = "mongodb://" + servers[0]
	}

	return domain.Database{
		Name:         name,
		ID:           entry.ID,
		Provider:     entry.Provider,
		Region:       entry.Region,
		PlanType:     entry.PlanType,
		Version:      entry.Version,
		DisplayLabel: entry.DisplayLabel,
		URITemplate:  entry.ConnectionInfo.URITemplate,
		URIAddress:   address,
	}
}
