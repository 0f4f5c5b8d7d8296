// Package authapitest provides an in-process fake of the finance backend's
// auth service for tests and the soak tool. It speaks the same JSON shapes,
// status codes and token scheme as the real service.
package authapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerlane/sessionkit/authapi"
)

type account struct {
	user     authapi.User
	password string
}

// Server is a fake auth service. The zero value is not usable; call
// [NewServer].
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	accounts  map[int64]*account
	tokens    map[string]int64
	nextID    int64
	nextToken int
	hits      map[string]int
	themes    []string
	onProfile func(token string)
	failNext  map[string]int
}

// NewServer starts a fake service. Close it when done.
func NewServer() *Server {
	s := &Server{
		accounts: make(map[int64]*account),
		tokens:   make(map[string]int64),
		hits:     make(map[string]int),
		failNext: make(map[string]int),
		nextID:   1,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", s.handleLogin)
	mux.HandleFunc("/api/auth/register/", s.handleRegister)
	mux.HandleFunc("/api/auth/me/", s.handleProfile)
	mux.HandleFunc("/api/auth/profile/", s.handleProfile)
	mux.HandleFunc("/api/auth/settings/", s.handleSettings)
	mux.HandleFunc("/api/", s.handleDomain)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL is the API base URL, suitable for authapi.New.
func (s *Server) URL() string { return s.srv.URL + "/api" }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// AddUser registers an account and returns the stored user (with its id).
func (s *Server) AddUser(u authapi.User, password string) authapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
	}
	if u.ID >= s.nextID {
		s.nextID = u.ID + 1
	}
	if u.ThemePreference == "" {
		u.ThemePreference = authapi.ThemeSystem
	}
	if u.CurrencyPreference == "" {
		u.CurrencyPreference = authapi.CurrencyUSD
	}
	s.accounts[u.ID] = &account{user: u, password: password}
	return u
}

// SetUser replaces the server-side profile of u.ID, as if edited elsewhere.
func (s *Server) SetUser(u authapi.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[u.ID]; ok {
		a.user = u
	}
}

// User returns the server-side profile for id.
func (s *Server) User(id int64) (authapi.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return authapi.User{}, false
	}
	return a.user, true
}

// IssueToken makes token valid for userID.
func (s *Server) IssueToken(userID int64, token string) {
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
}

// Revoke invalidates token; subsequent requests carrying it receive 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.tokens = make(map[string]int64)
	s.mu.Unlock()
}

// OnProfile installs fn to run before every profile GET is answered. It runs
// outside the server lock so it may block.
func (s *Server) OnProfile(fn func(token string)) {
	s.mu.Lock()
	s.onProfile = fn
	s.mu.Unlock()
}

// FailNext makes the next n requests to path (e.g. "auth/settings/") fail
// with 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	s.failNext[strings.Trim(path, "/")] = n
	s.mu.Unlock()
}

// Hits reports how many requests reached path (e.g. "auth/profile/").
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[strings.Trim(path, "/")]
}

// ThemeUpdates lists every theme_preference written through the settings
// endpoint, in order.
func (s *Server) ThemeUpdates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.themes...)
}

// record counts the hit and reports whether an injected failure is due.
func (s *Server) record(r *http.Request) bool {
	p := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[p]++
	if s.failNext[p] > 0 {
		s.failNext[p]--
		return true
	}
	return false
}

func (s *Server) authenticate(r *http.Request) (string, *account, bool) {
	h := r.Header.Get("Authorization")
	tok, ok := strings.CutPrefix(h, "Token ")
	if !ok || tok == "" {
		return "", nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[tok]
	if !ok {
		return "", nil, false
	}
	a, ok := s.accounts[id]
	return tok, a, ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.record(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed."})
		return
	}
	var in struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	s.mu.Lock()
	var found *account
	for _, a := range s.accounts {
		if (strings.Contains(in.Identifier, "@") && a.user.Email == in.Identifier) || a.user.Username == in.Identifier {
			found = a
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User not found"})
		return
	}
	if found.password != in.Password {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid credentials"})
		return
	}
	tok := s.mintTokenLocked(found.user.ID)
	user := found.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, authapi.LoginResult{Token: tok, User: user})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.record(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	var in authapi.Registration
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	fields := map[string][]string{}
	if in.Username == "" {
		fields["username"] = []string{"This field is required."}
	}
	if in.Password == "" {
		fields["password"] = []string{"This field is required."}
	} else if len(in.Password) < 8 {
		fields["password"] = []string{"This password is too short. It must contain at least 8 characters."}
	}

	s.mu.Lock()
	for _, a := range s.accounts {
		if in.Username != "" && a.user.Username == in.Username {
			fields["username"] = []string{"A user with that username already exists."}
		}
	}
	if len(fields) > 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}
	u := authapi.User{
		ID:                 s.nextID,
		Username:           in.Username,
		Email:              in.Email,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		PhoneNumber:        in.PhoneNumber,
		ThemePreference:    authapi.ThemeSystem,
		CurrencyPreference: authapi.CurrencyUSD,
		EmailNotifications: true,
	}
	s.nextID++
	s.accounts[u.ID] = &account{user: u, password: in.Password}
	tok := s.mintTokenLocked(u.ID)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, authapi.RegisterResult{Token: tok, JWT: mintJWT(u.ID), User: u})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.record(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	tok, a, ok := s.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		hook := s.onProfile
		s.mu.Unlock()
		if hook != nil {
			hook(tok)
		}
		// The token may have been revoked while the hook held the request.
		if _, a, ok = s.authenticate(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
			return
		}
		s.mu.Lock()
		u := a.user
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, u)
	case http.MethodPatch:
		s.patchProfile(w, r, a)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method not allowed."})
	}
}

func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request, a *account) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Validation failed"})
			return
		}
		s.mu.Lock()
		if fh, ok := r.MultipartForm.File["profile_picture"]; ok && len(fh) > 0 {
			a.user.ProfilePicture = "/media/profile_pictures/" + fh[0].Filename
		} else if strings.EqualFold(r.FormValue("remove_profile_picture"), "true") {
			a.user.ProfilePicture = ""
		}
		u := a.user
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, u)
		return
	}

	var upd authapi.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	details := map[string][]string{}
	if upd.ThemePreference != nil && !authapi.ValidTheme(*upd.ThemePreference) {
		details["theme_preference"] = []string{fmt.Sprintf("%q is not a valid choice.", *upd.ThemePreference)}
	}
	if upd.CurrencyPreference != nil && !authapi.ValidCurrency(*upd.CurrencyPreference) {
		details["currency_preference"] = []string{fmt.Sprintf("%q is not a valid choice.", *upd.CurrencyPreference)}
	}
	if len(details) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Validation failed", "details": details})
		return
	}

	s.mu.Lock()
	u := &a.user
	setString(&u.Username, upd.Username)
	setString(&u.Email, upd.Email)
	setString(&u.FirstName, upd.FirstName)
	setString(&u.LastName, upd.LastName)
	setString(&u.PhoneNumber, upd.PhoneNumber)
	setString(&u.ThemePreference, upd.ThemePreference)
	setString(&u.CurrencyPreference, upd.CurrencyPreference)
	if upd.EmailNotifications != nil {
		u.EmailNotifications = *upd.EmailNotifications
	}
	out := *u
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.record(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	_, a, ok := s.authenticate(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}
	var in authapi.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}
	if in.ThemePreference != nil && !authapi.ValidTheme(*in.ThemePreference) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{
			"theme_preference": {fmt.Sprintf("%q is not a valid choice.", *in.ThemePreference)},
		})
		return
	}

	s.mu.Lock()
	if in.ThemePreference != nil {
		a.user.ThemePreference = *in.ThemePreference
		s.themes = append(s.themes, *in.ThemePreference)
	}
	setString(&a.user.CurrencyPreference, in.CurrencyPreference)
	if in.EmailNotifications != nil {
		a.user.EmailNotifications = *in.EmailNotifications
	}
	out := authapi.Settings{
		EmailNotifications: &a.user.EmailNotifications,
		ThemePreference:    &a.user.ThemePreference,
		CurrencyPreference: &a.user.CurrencyPreference,
	}
	data, _ := json.Marshal(out)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleDomain stands in for every non-auth endpoint: it only checks the
// credential.
func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	if s.record(r) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Server error"})
		return
	}
	if _, _, ok := s.authenticate(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid token."})
		return
	}
	writeJSON(w, http.StatusOK, []any{})
}

func (s *Server) mintTokenLocked(userID int64) string {
	s.nextToken++
	tok := fmt.Sprintf("tok-%d-%d", userID, s.nextToken)
	s.tokens[tok] = userID
	return tok
}

var jwtSecret = []byte("authapitest-signing-key")

func mintJWT(userID int64) authapi.JWTPair {
	now := time.Now()
	sign := func(ttl time.Duration, kind string) string {
		tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"token_type": kind,
			"user_id":    userID,
			"iat":        now.Unix(),
			"exp":        now.Add(ttl).Unix(),
		}).SignedString(jwtSecret)
		return tok
	}
	return authapi.JWTPair{Access: sign(5*time.Minute, "access"), Refresh: sign(24*time.Hour, "refresh")}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
