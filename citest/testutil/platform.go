// Package testutil provides an in-memory mock of the hackwave platform API
// for integration tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/hackwave/hackwave/pkg/types"
)

const sessionCookieName = "hw_session"

// Platform is a mock platform server: cookie-backed sessions, bearer tokens,
// and a push endpoint tests can inject events into.
type Platform struct {
	Server *httptest.Server

	mu        sync.Mutex
	passwords map[string]string
	users     map[string]*types.User
	suspended map[string]string
	mfa       map[string]string // email -> required code

	sessions     map[string]string // cookie value -> email
	tokens       map[string]string // bearer -> email
	tokenCounter int

	refreshCount int32
	loginCount   int32

	streams map[chan string]struct{}
}

// NewPlatform starts a mock platform.
func NewPlatform() *Platform {
	p := &Platform{
		passwords: make(map[string]string),
		users:     make(map[string]*types.User),
		suspended: make(map[string]string),
		mfa:       make(map[string]string),
		sessions:  make(map[string]string),
		tokens:    make(map[string]string),
		streams:   make(map[chan string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", p.handleLogin)
	mux.HandleFunc("/auth/refresh", p.handleRefresh)
	mux.HandleFunc("/auth/logout", p.handleLogout)
	mux.HandleFunc("/auth/me", p.handleMe)
	mux.HandleFunc("/auth/stream", p.handleStream)

	p.Server = httptest.NewServer(mux)
	return p
}

// Close shuts the server down.
func (p *Platform) Close() {
	p.Server.Close()
}

// URL returns the platform origin.
func (p *Platform) URL() string {
	return p.Server.URL
}

// AddUser registers an account.
func (p *Platform) AddUser(email, password string, user *types.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwords[email] = password
	p.users[email] = user
}

// SuspendUser marks an account suspended with the given reason.
func (p *Platform) SuspendUser(email, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended[email] = reason
}

// RefreshCount reports how many refresh exchanges the server handled.
func (p *Platform) RefreshCount() int32 {
	return atomic.LoadInt32(&p.refreshCount)
}

// StreamConnections reports the number of live push connections.
func (p *Platform) StreamConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

// PushEvent delivers a named event on every live push connection.
func (p *Platform) PushEvent(eventType, data string) {
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.streams {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (p *Platform) mintToken(email string) string {
	p.tokenCounter++
	token := fmt.Sprintf("bearer-%d", p.tokenCounter)
	p.tokens[token] = email
	return token
}

func (p *Platform) writeError(w http.ResponseWriter, status int, detail types.ErrorDetail) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.ErrorBody{Error: detail})
}

func (p *Platform) handleLogin(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&p.loginCount, 1)

	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		p.writeError(w, http.StatusBadRequest, types.ErrorDetail{Code: "bad_request", Message: "malformed body"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if reason, banned := p.suspended[req.Email]; banned {
		w.Header().Set("Content-Type", "application/json")
		p.writeError(w, http.StatusForbidden, types.ErrorDetail{
			Code:    types.CodeAccountSuspended,
			Message: "account suspended",
			Reason:  reason,
		})
		return
	}
	if p.passwords[req.Email] != req.Password {
		p.writeError(w, http.StatusUnauthorized, types.ErrorDetail{
			Code:    types.CodeInvalidCredential,
			Message: "invalid email or password",
		})
		return
	}

	cookie := fmt.Sprintf("session-%s-%d", req.Email, p.tokenCounter)
	p.sessions[cookie] = req.Email
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: cookie, HttpOnly: true})

	json.NewEncoder(w).Encode(types.AuthResponse{
		Token: p.mintToken(req.Email),
		User:  p.users[req.Email],
	})
}

func (p *Platform) sessionEmail(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	email, ok := p.sessions[cookie.Value]
	return email, ok
}

func (p *Platform) handleRefresh(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&p.refreshCount, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	email, ok := p.sessionEmail(r)
	if !ok {
		p.writeError(w, http.StatusUnauthorized, types.ErrorDetail{Code: "no_session", Message: "no session"})
		return
	}
	if reason, banned := p.suspended[email]; banned {
		p.writeError(w, http.StatusForbidden, types.ErrorDetail{
			Code:    types.CodeAccountSuspended,
			Message: "account suspended",
			Reason:  reason,
		})
		return
	}
	json.NewEncoder(w).Encode(types.AuthResponse{Token: p.mintToken(email)})
}

func (p *Platform) handleLogout(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		delete(p.sessions, cookie.Value)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Platform) handleMe(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	auth := r.Header.Get("Authorization")
	if len(auth) < 8 {
		p.writeError(w, http.StatusUnauthorized, types.ErrorDetail{Code: "no_token", Message: "missing bearer"})
		return
	}
	email, ok := p.tokens[auth[len("Bearer "):]]
	if !ok {
		p.writeError(w, http.StatusUnauthorized, types.ErrorDetail{Code: "bad_token", Message: "unknown bearer"})
		return
	}
	if reason, banned := p.suspended[email]; banned {
		p.writeError(w, http.StatusForbidden, types.ErrorDetail{
			Code:    types.CodeAccountSuspended,
			Message: "account suspended",
			Reason:  reason,
		})
		return
	}
	json.NewEncoder(w).Encode(p.users[email])
}

func (p *Platform) handleStream(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	if _, ok := p.sessionEmail(r); !ok {
		p.mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	ch := make(chan string, 32)
	p.streams[ch] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.streams, ch)
		p.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)

	fmt.Fprintf(w, "event: %s\ndata: {}\n\n", types.EventConnected)
	flusher.Flush()

	for {
		select {
		case frame := <-ch:
			fmt.Fprint(w, frame)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
