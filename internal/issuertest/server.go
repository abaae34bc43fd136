package issuertest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/credential"
	"github.com/golang-jwt/jwt/v5"
)

// CorrelationHeader is echoed back by the fake API.
const CorrelationHeader = "X-Correlation-ID"

type grant struct {
	role   string
	userID string
}

// Server is a fake portal API and issuer.
type Server struct {
	*httptest.Server

	secret    []byte
	accessTTL time.Duration

	mu            sync.Mutex
	seq           int
	access        map[string]grant
	refresh       map[string]grant
	codes         map[string]string
	loginRole     string
	rejectRefresh bool
	failProfile   bool
	rejectAPI     bool
	refreshGate   chan struct{}
	apiAuth       []string
	correlation   []string

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	loginCalls   atomic.Int64
	profileCalls atomic.Int64
	apiCalls     atomic.Int64
}

// New starts a fake server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		secret:    []byte("issuertest-signing-key-0123456789"),
		accessTTL: 15 * time.Minute,
		access:    make(map[string]grant),
		refresh:   make(map[string]grant),
		codes:     make(map[string]string),
		loginRole: "applicant",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auth/dev-login", s.handleDevLogin)
	mux.HandleFunc("GET /api/v1/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/callback", s.handleCallback)
	mux.HandleFunc("POST /api/v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/v1/auth/me", s.handleMe)
	mux.HandleFunc("/api/v1/applications", s.handleApplications)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIBaseURL is the portal API root.
func (s *Server) APIBaseURL() string { return s.URL + "/api/v1" }

// IssuerURL is the issuer root.
func (s *Server) IssuerURL() string { return s.URL + "/api/v1/auth" }

// SetAccessTTL changes the lifetime of newly issued access credentials.
func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	s.accessTTL = d
	s.mu.Unlock()
}

// SetLoginRole sets the role granted by dev-login when no role is requested.
func (s *Server) SetLoginRole(role string) {
	s.mu.Lock()
	s.loginRole = role
	s.mu.Unlock()
}

// SetRejectRefresh makes every refresh exchange fail with 401.
func (s *Server) SetRejectRefresh(v bool) {
	s.mu.Lock()
	s.rejectRefresh = v
	s.mu.Unlock()
}

// SetFailProfile makes /auth/me fail with 500.
func (s *Server) SetFailProfile(v bool) {
	s.mu.Lock()
	s.failProfile = v
	s.mu.Unlock()
}

// SetRejectAPI makes the business API answer 401 regardless of the credential.
func (s *Server) SetRejectAPI(v bool) {
	s.mu.Lock()
	s.rejectAPI = v
	s.mu.Unlock()
}

// HoldRefresh blocks refresh exchanges until the returned release is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Issue mints a valid pair for role without going through HTTP.
func (s *Server) Issue(role string) credential.Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(grant{role: role, userID: "user-" + role})
}

// Code registers an authorization code that the callback endpoint exchanges
// for a pair with role.
func (s *Server) Code(role string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	code := fmt.Sprintf("code-%d", s.seq)
	s.codes[code] = role
	return code
}

// Expire invalidates an access credential as if it had timed out.
func (s *Server) Expire(access string) {
	s.mu.Lock()
	delete(s.access, access)
	s.mu.Unlock()
}

// RefreshValid reports whether the refresh credential is still redeemable.
func (s *Server) RefreshValid(refresh string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[refresh]
	return ok
}

func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }
func (s *Server) LogoutCalls() int64  { return s.logoutCalls.Load() }
func (s *Server) LoginCalls() int64   { return s.loginCalls.Load() }
func (s *Server) ProfileCalls() int64 { return s.profileCalls.Load() }
func (s *Server) APICalls() int64     { return s.apiCalls.Load() }

// APIAuthorizations returns the Authorization headers seen by the business API.
func (s *Server) APIAuthorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.apiAuth...)
}

// CorrelationIDs returns the correlation headers seen by the business API.
func (s *Server) CorrelationIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.correlation...)
}

func (s *Server) issueLocked(g grant) credential.Pair {
	s.seq++
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  g.userID,
		"role": g.role,
		"type": "access",
		"jti":  fmt.Sprintf("a-%d", s.seq),
		"iat":  now.Unix(),
		"exp":  now.Add(s.accessTTL).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	refresh := fmt.Sprintf("refresh-%d", s.seq)
	s.access[access] = g
	s.refresh[refresh] = g
	return credential.Pair{Access: access, Refresh: refresh}
}

func (s *Server) bearer(r *http.Request) (grant, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return grant{}, false
	}
	tok := strings.TrimPrefix(h, "Bearer ")
	s.mu.Lock()
	g, ok := s.access[tok]
	s.mu.Unlock()
	if !ok {
		return grant{}, false
	}
	parsed, err := jwt.Parse(tok, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return grant{}, false
	}
	return g, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenResponse(p credential.Pair, ttl time.Duration) map[string]any {
	return map[string]any{
		"access_token":  p.Access,
		"refresh_token": p.Refresh,
		"token_type":    "bearer",
		"expires_in":    int(ttl.Seconds()),
	}
}

func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	s.mu.Lock()
	role := r.URL.Query().Get("role")
	if role == "" {
		role = s.loginRole
	}
	p := s.issueLocked(grant{role: role, userID: "user-" + role})
	ttl := s.accessTTL
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, tokenResponse(p, ttl))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	target := r.URL.Query().Get("redirect_uri")
	if target == "" {
		http.Redirect(w, r, "/api/v1/auth/dev-login", http.StatusFound)
		return
	}
	s.mu.Lock()
	role := s.loginRole
	s.mu.Unlock()
	http.Redirect(w, r, target+"?code="+s.Code(role), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	s.mu.Lock()
	role, ok := s.codes[code]
	delete(s.codes, code)
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid code"})
		return
	}
	p := s.issueLocked(grant{role: role, userID: "user-" + role})
	ttl := s.accessTTL
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, tokenResponse(p, ttl))
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad body"})
		return
	}

	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.refresh[body.RefreshToken]
	if s.rejectRefresh || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid refresh token"})
		return
	}
	delete(s.refresh, body.RefreshToken)
	p := s.issueLocked(g)
	writeJSON(w, http.StatusOK, tokenResponse(p, s.accessTTL))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	var body refreshBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	delete(s.refresh, body.RefreshToken)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.profileCalls.Add(1)
	g, ok := s.bearer(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "not authenticated"})
		return
	}
	s.mu.Lock()
	fail := s.failProfile
	s.mu.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "profile unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              g.userID,
		"email":           g.userID + "@example.org",
		"display_name":    "Test " + g.role,
		"first_name":      "Test",
		"last_name":       g.role,
		"role":            g.role,
		"organization_id": nil,
		"is_active":       true,
		"last_login":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	s.apiCalls.Add(1)
	s.mu.Lock()
	s.apiAuth = append(s.apiAuth, r.Header.Get("Authorization"))
	s.correlation = append(s.correlation, r.Header.Get(CorrelationHeader))
	reject := s.rejectAPI
	s.mu.Unlock()

	w.Header().Set(CorrelationHeader, r.Header.Get(CorrelationHeader))
	g, ok := s.bearer(r)
	if reject || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "not authenticated"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]string{{"id": "app-1", "owner": g.userID}},
			"total": 1,
		})
	case http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
			return
		}
		payload["owner"] = g.userID
		writeJSON(w, http.StatusCreated, payload)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
