// Package bskytest runs an in-process fake of the XRPC endpoints skypost
// calls, for tests.
package bskytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/thand-io/skypost/internal/models"
)

const (
	Password   = "app-password"
	AccessJwt  = "access-1"
	RefreshJwt = "refresh-1"
)

// Server is a fake personal data server. Handlers can be overridden per
// test; every call is recorded by method name.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	calls    map[string]int
	records  []json.RawMessage
	handlers map[string]http.HandlerFunc

	// Account served by the default handlers
	Account models.SessionData
	// Handle -> DID for resolveHandle
	Handles map[string]string
	// Access tokens getSession accepts
	ValidAccess map[string]bool
	// Access tokens getSession reports as expired
	ExpiredAccess map[string]bool
	// Refresh tokens refreshSession accepts
	ValidRefresh map[string]bool
}

func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		calls:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
		Account: models.SessionData{
			AccessJwt:  AccessJwt,
			RefreshJwt: RefreshJwt,
			Handle:     "alice.test",
			Did:        "did:plc:alice",
		},
		Handles:       map[string]string{"alice.test": "did:plc:alice"},
		ValidAccess:   map[string]bool{AccessJwt: true},
		ExpiredAccess: map[string]bool{},
		ValidRefresh:  map[string]bool{RefreshJwt: true},
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

// Handle replaces the handler for one XRPC method.
func (s *Server) Handle(method string, handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
}

func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Records returns the raw record bodies passed to createRecord.
func (s *Server) Records() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.records...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/xrpc/")

	s.mu.Lock()
	s.calls[method]++
	handler, ok := s.handlers[method]
	s.mu.Unlock()

	if ok {
		handler(w, r)
		return
	}

	switch method {
	case "com.atproto.server.createSession":
		s.createSession(w, r)
	case "com.atproto.server.getSession":
		s.getSession(w, r)
	case "com.atproto.server.refreshSession":
		s.refreshSession(w, r)
	case "com.atproto.identity.resolveHandle":
		s.resolveHandle(w, r)
	case "com.atproto.repo.createRecord":
		s.createRecord(w, r)
	default:
		WriteError(w, http.StatusNotImplemented, "MethodNotImplemented", method)
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if input.Identifier != s.Account.Handle || input.Password != Password {
		WriteError(w, http.StatusUnauthorized, "AuthenticationRequired", "Invalid identifier or password")
		return
	}
	WriteJSON(w, http.StatusOK, s.Account)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	s.mu.Lock()
	valid, expired := s.ValidAccess[token], s.ExpiredAccess[token]
	s.mu.Unlock()

	switch {
	case expired:
		WriteError(w, http.StatusBadRequest, "ExpiredToken", "Token has expired")
	case !valid:
		WriteError(w, http.StatusUnauthorized, "InvalidToken", "Token could not be verified")
	default:
		WriteJSON(w, http.StatusOK, map[string]any{
			"handle": s.Account.Handle,
			"did":    s.Account.Did,
			"active": true,
		})
	}
}

func (s *Server) refreshSession(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	s.mu.Lock()
	valid := s.ValidRefresh[token]
	s.mu.Unlock()

	if !valid {
		WriteError(w, http.StatusBadRequest, "ExpiredToken", "Refresh token has expired")
		return
	}

	refreshed := s.Account
	refreshed.AccessJwt = "access-2"
	refreshed.RefreshJwt = "refresh-2"

	s.mu.Lock()
	s.ValidAccess[refreshed.AccessJwt] = true
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, refreshed)
}

func (s *Server) resolveHandle(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	s.mu.Lock()
	did, ok := s.Handles[handle]
	s.mu.Unlock()

	if !ok {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", "Unable to resolve handle")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"did": did})
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	token := bearer(r)
	s.mu.Lock()
	valid := s.ValidAccess[token]
	s.mu.Unlock()

	if !valid {
		WriteError(w, http.StatusUnauthorized, "InvalidToken", "Token could not be verified")
		return
	}

	var input struct {
		Repo       string          `json:"repo"`
		Collection string          `json:"collection"`
		Record     json.RawMessage `json:"record"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if input.Repo != s.Account.Did {
		WriteError(w, http.StatusBadRequest, "InvalidRequest", "repo does not match session")
		return
	}

	s.mu.Lock()
	s.records = append(s.records, input.Record)
	s.mu.Unlock()

	WriteJSON(w, http.StatusOK, models.PostResult{
		Uri: "at://" + input.Repo + "/" + input.Collection + "/3kabc",
		Cid: "bafyreib",
	})
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteError(w http.ResponseWriter, status int, name string, message string) {
	WriteJSON(w, status, map[string]string{"error": name, "message": message})
}
