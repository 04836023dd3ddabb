// Package dashboardtest runs an in-process imitation of the hosting dashboard
// for tests. It keeps cookie sessions, CSRF tokens, deployments and users in
// memory and answers with the same redirects the real dashboard issues.
package dashboardtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"
)

// Route patterns, usable with Calls.
const (
	Login            = "POST /dologin"
	Logout           = "POST /logout"
	CSRF             = "POST /csrf.js"
	Wizard           = "GET /create/wizard"
	ListDeployments  = "GET /mlab-api/accounts/{account}/deployments"
	CreateDeployment = "POST /mlab-api/accounts/{account}/deployments"
	Status           = "GET /portal-api/databases/{name}/status"
	Delete           = "POST /delete"
	ListUsers        = "GET /portal-api/databases/{name}/users"
	AddUser          = "POST /adddbuser"
	RemoveUser       = "POST /deletedbuser"
)

const (
	DefaultUsername  = "u"
	DefaultPassword  = "p"
	DefaultAccountID = "acct-1"

	sessionCookie = "JSESSIONID"
)

type Options struct {
	Username  string
	Password  string
	AccountID string
	// ProvisionAfter is the number of status polls answered with
	// "provisioning" before a deployment reports ready.
	ProvisionAfter int
	LoginDelay     time.Duration
	// HideAccountID serves a wizard page without the account marker.
	HideAccountID bool
	FailLogout    bool
}

type deployment struct {
	ID       string
	Name     string
	Region   string
	Plan     string
	Provider string
	Version  string
	Address  string
	polls    int
}

// Server is a fake dashboard. All knobs are safe to change while requests are
// in flight.
type Server struct {
	URL string

	server *httptest.Server

	mu                 sync.Mutex
	opts               Options
	sessions           map[string]bool
	nextSession        int
	nextDeployment     int
	deployments        map[string]*deployment
	users              map[string][]string
	calls              map[string]int
	csrfMismatches     int
	ignoreUserAdds     bool
	ignoreUserRemovals bool
}

// New starts a fake dashboard that is closed when the test ends.
func New(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.AccountID == "" {
		opts.AccountID = DefaultAccountID
	}

	s := &Server{
		opts:        opts,
		sessions:    make(map[string]bool),
		deployments: make(map[string]*deployment),
		users:       make(map[string][]string),
		calls:       make(map[string]int),
	}

	mux := http.NewServeMux()
	s.handle(mux, Login, s.login)
	s.handle(mux, Logout, s.logout)
	s.handle(mux, CSRF, s.csrf)
	s.handle(mux, Wizard, s.wizard)
	s.handle(mux, ListDeployments, s.listDeployments)
	s.handle(mux, CreateDeployment, s.createDeployment)
	s.handle(mux, Status, s.status)
	s.handle(mux, Delete, s.delete)
	s.handle(mux, ListUsers, s.listUsers)
	s.handle(mux, AddUser, s.addUser)
	s.handle(mux, RemoveUser, s.removeUser)

	s.server = httptest.NewServer(mux)
	s.URL = s.server.URL
	t.Cleanup(s.server.Close)

	return s
}

// Calls reports how many requests matched the route pattern.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// CSRFMismatches counts requests whose CSRF token did not belong to the
// session cookie they were sent with.
func (s *Server) CSRFMismatches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfMismatches
}

// ExpireSessions invalidates every cookie issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid := range s.sessions {
		s.sessions[sid] = false
	}
}

func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := 0
	for _, valid := range s.sessions {
		if valid {
			active++
		}
	}
	return active
}

// IgnoreUserAdds makes user creation redirect as if it worked without
// creating the user.
func (s *Server) IgnoreUserAdds(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreUserAdds = ignore
}

// IgnoreUserRemovals makes user removal redirect as if it worked while
// keeping the user.
func (s *Server) IgnoreUserRemovals(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreUserRemovals = ignore
}

// AddDeployment seeds an already provisioned deployment.
func (s *Server) AddDeployment(name, region string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dep := s.newDeployment(name, region, "aws-sandbox-v2", "AWS", "3.4.15")
	dep.polls = s.opts.ProvisionAfter
}

func (s *Server) HasDeployment(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deployments[name]
	return ok
}

func (s *Server) SetUsers(database string, users ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[database] = append([]string(nil), users...)
}

func (s *Server) Users(database string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users[database]...)
}

func (s *Server) handle(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		s.mu.Unlock()
		handler(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.opts.LoginDelay > 0 {
		time.Sleep(s.opts.LoginDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.PostForm.Get("username") != s.opts.Username || r.PostForm.Get("password") != s.opts.Password {
		redirect(w, "/login/?error=invalid")
		return
	}

	s.nextSession++
	sid := fmt.Sprintf("sid-%d", s.nextSession)
	s.sessions[sid] = true

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
	redirect(w, "/home")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.opts.FailLogout {
		http.Error(w, "logout unavailable", http.StatusInternalServerError)
		return
	}
	if !s.checkCSRF(w, sid, r.PostForm.Get("CSRF_TOKEN")) {
		return
	}

	s.sessions[sid] = false
	redirect(w, "/login/")
}

func (s *Server) csrf(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if r.Header.Get("FETCH-CSRF-TOKEN") != "1" {
		http.Error(w, "missing fetch header", http.StatusBadRequest)
		return
	}

	_, _ = fmt.Fprintf(w, "CSRF_TOKEN:%s", csrfFor(sid))
}

func (s *Server) wizard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session(w, r); !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if s.opts.HideAccountID {
		_, _ = fmt.Fprint(w, "<html><script>var wizard = {};</script></html>")
		return
	}
	_, _ = fmt.Fprintf(w, "<html><script>var wizard = {\n  accountId: %q,\n  plans: []\n};</script></html>", s.opts.AccountID)
}

func (s *Server) listDeployments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session(w, r); !ok {
		return
	}
	if r.PathValue("account") != s.opts.AccountID {
		http.NotFound(w, r)
		return
	}

	payload := make(map[string]any, len(s.deployments))
	for name, dep := range s.deployments {
		payload[name] = deploymentJSON(dep)
	}
	writeJSON(w, payload)
}

func (s *Server) createDeployment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(w, sid, r.Header.Get("CSRF_TOKEN")) {
		return
	}
	if r.PathValue("account") != s.opts.AccountID {
		http.NotFound(w, r)
		return
	}

	var req struct {
		DBName         string `json:"dbName"`
		Region         string `json:"region"`
		Plan           string `json:"plan"`
		Provider       string `json:"provider"`
		MongoDBVersion string `json:"mongodbVersion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DBName == "" || req.Region == "" {
		http.Error(w, "dbName and region are required", http.StatusBadRequest)
		return
	}
	if _, exists := s.deployments[req.DBName]; exists {
		http.Error(w, "deployment exists", http.StatusConflict)
		return
	}

	dep := s.newDeployment(req.DBName, req.Region, req.Plan, req.Provider, req.MongoDBVersion)
	writeJSON(w, deploymentJSON(dep))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(w, sid, r.Header.Get("CSRF_TOKEN")) {
		return
	}

	dep, exists := s.deployments[r.PathValue("name")]
	if !exists {
		http.NotFound(w, r)
		return
	}

	state := "provisioning"
	if dep.polls >= s.opts.ProvisionAfter {
		state = "provisoned"
	}
	dep.polls++

	writeJSON(w, map[string]string{"loggedState": state})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(w, sid, r.URL.Query().Get("CSRF_TOKEN")) {
		return
	}

	name := r.PostForm.Get("db")
	if _, exists := s.deployments[name]; !exists {
		http.NotFound(w, r)
		return
	}
	delete(s.deployments, name)
	delete(s.users, name)

	redirect(w, "/home")
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.session(w, r); !ok {
		return
	}
	if r.URL.Query().Get("mode") != "raw" {
		http.Error(w, "unsupported mode", http.StatusBadRequest)
		return
	}

	users := s.users[r.PathValue("name")]
	payload := make([]map[string]string, 0, len(users))
	for _, user := range users {
		payload = append(payload, map[string]string{"user": user, "db": r.PathValue("name")})
	}
	writeJSON(w, payload)
}

func (s *Server) addUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(w, sid, r.URL.Query().Get("CSRF_TOKEN")) {
		return
	}

	db := r.PostForm.Get("db")
	username := r.PostForm.Get("username")
	if username == "" || r.PostForm.Get("password") != r.PostForm.Get("password2") {
		redirect(w, "/databases/"+url.PathEscape(db)+"?error=1#users")
		return
	}
	if !s.ignoreUserAdds && !contains(s.users[db], username) {
		s.users[db] = append(s.users[db], username)
		sort.Strings(s.users[db])
	}

	redirect(w, "/databases/"+url.PathEscape(db)+"#users")
}

func (s *Server) removeUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sid, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(w, sid, r.URL.Query().Get("CSRF_TOKEN")) {
		return
	}

	db := r.PostForm.Get("db")
	username := r.PostForm.Get("username")
	if !s.ignoreUserRemovals {
		kept := s.users[db][:0]
		for _, user := range s.users[db] {
			if user != username {
				kept = append(kept, user)
			}
		}
		s.users[db] = kept
	}

	redirect(w, "/databases/"+url.PathEscape(db)+"#users")
}

// session must be called with s.mu held. It answers with a login redirect
// when the request carries no live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil || !s.sessions[cookie.Value] {
		redirect(w, "/login/")
		return "", false
	}
	return cookie.Value, true
}

// checkCSRF must be called with s.mu held.
func (s *Server) checkCSRF(w http.ResponseWriter, sid, token string) bool {
	if token != csrfFor(sid) {
		s.csrfMismatches++
		http.Error(w, "csrf token mismatch", http.StatusForbidden)
		return false
	}
	return true
}

// newDeployment must be called with s.mu held.
func (s *Server) newDeployment(name, region, plan, provider, version string) *deployment {
	s.nextDeployment++
	dep := &deployment{
		ID:       fmt.Sprintf("dep-%d", s.nextDeployment),
		Name:     name,
		Region:   region,
		Plan:     plan,
		Provider: provider,
		Version:  version,
		Address:  fmt.Sprintf("ds%06d.mlab.test:%d", s.nextDeployment, 40000+s.nextDeployment),
	}
	s.deployments[name] = dep
	return dep
}

func deploymentJSON(dep *deployment) map[string]any {
	return map[string]any{
		"_id":              dep.ID,
		"name":             dep.Name,
		"provider":         dep.Provider,
		"region":           dep.Region,
		"planType":         dep.Plan,
		"mongodbVersion":   dep.Version,
		"mlabDisplayLabel": "Sandbox",
		"connectionInfo": map[string]any{
			"uriTemplate": fmt.Sprintf("mongodb://{username}:{password}@%s/%s", dep.Address, dep.Name),
			"uriComponents": map[string]any{
				"serverAddresses": []string{dep.Address},
			},
		},
	}
}

func csrfFor(sid string) string {
	return "csrf-" + sid
}

func redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusFound)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
