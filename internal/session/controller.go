// Package session implements the client-side session state machine: login and
// logout, single-flight credential refresh, suspension handling, and the
// coupling between the authenticated state and the push-event stream.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackwave/hackwave/internal/api"
	"github.com/hackwave/hackwave/internal/config"
	"github.com/hackwave/hackwave/internal/credential"
	"github.com/hackwave/hackwave/internal/event"
	"github.com/hackwave/hackwave/internal/logging"
	"github.com/hackwave/hackwave/internal/stream"
	"github.com/hackwave/hackwave/pkg/types"
)

// Status is the session state.
type Status int32

const (
	StatusAnonymous Status = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Controller is the session state machine. It composes the credential store,
// the refresh coordinator, the REST transport, the push channel and the event
// router; everything above it obtains credentials and live events through its
// surface only.
//
// The stream is live exactly while the controller is authenticated. The two
// reserved push event types (token refresh, session revocation) are consumed
// here; all other event types are routed to feature subscribers.
type Controller struct {
	api       *api.Client
	creds     *credential.Store
	refresher *RefreshCoordinator
	router    *event.Router
	stream    *stream.Channel
	log       zerolog.Logger

	mu               sync.Mutex
	status           Status
	user             *types.User
	suspensionReason string
}

// NewController wires a controller from configuration.
func NewController(cfg *config.Config) (*Controller, error) {
	client, err := api.NewClient(cfg.BaseURL, cfg.RequestTimeout())
	if err != nil {
		return nil, err
	}

	creds := credential.NewStore()
	c := &Controller{
		api:       client,
		creds:     creds,
		refresher: NewRefreshCoordinator(client, creds),
		router:    event.NewRouter(),
		log:       logging.For("session"),
		status:    StatusAnonymous,
	}

	c.stream = stream.NewChannel(cfg.BaseURL, client.StreamHTTPClient(), stream.Config{
		InitialDelay: cfg.Stream.InitialDelay(),
		MaxDelay:     cfg.Stream.MaxDelay(),
	}, c.handleStreamEvent)

	// A server-closed stream cycle restarts only while still authenticated.
	c.stream.OnTimeout(func() {
		if c.Status() == StatusAuthenticated {
			c.stream.Start()
		}
	})

	// Any authenticated call can surface a ban.
	client.OnSuspension(c.Suspend)

	return c, nil
}

// Status returns the current session status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// User returns the current identity, or nil while unauthenticated.
func (c *Controller) User() *types.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SuspensionReason returns the server-declared reason while suspended.
func (c *Controller) SuspensionReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspensionReason
}

// Router returns the event router features subscribe on.
func (c *Controller) Router() *event.Router {
	return c.router
}

// Credentials returns the credential store for reactive consumers.
func (c *Controller) Credentials() *credential.Store {
	return c.creds
}

// API returns the REST transport for feature calls outside the session core.
func (c *Controller) API() *api.Client {
	return c.api
}

// StreamState reports the push channel state.
func (c *Controller) StreamState() stream.State {
	return c.stream.State()
}

// Start performs the silent session restore at process start. A one-time
// bootstrap token (carried by the initial navigation or environment) is
// adopted directly; otherwise the cookie-backed refresh decides whether a
// session exists. Ends Authenticated or Anonymous; never errors.
func (c *Controller) Start(ctx context.Context, bootstrapToken string) {
	c.setStatus(StatusAuthenticating)

	token := bootstrapToken
	if token != "" {
		c.creds.Set(token)
	} else {
		var ok bool
		token, ok = c.refresher.Refresh(ctx)
		if !ok {
			c.becomeAnonymous()
			return
		}
	}

	user, err := c.api.Me(ctx, token)
	if err != nil {
		if apiErr, ok := api.AsError(err); ok && apiErr.IsSuspension() {
			// Suspend already ran via the transport hook.
			return
		}
		c.log.Debug().Err(err).Msg("identity fetch failed during restore")
		c.becomeAnonymous()
		return
	}

	c.adopt(token, user)
}

// Login authenticates with email and password. Transport failures return an
// error and leave the session anonymous; everything the server decided is
// expressed in the Result.
func (c *Controller) Login(ctx context.Context, email, password string) (*Result, error) {
	prev := c.Status()
	c.setStatus(StatusAuthenticating)

	resp, err := c.api.Login(ctx, email, password)
	if err != nil {
		return c.resolveAuthError(prev, err, false)
	}

	if resp.MFARequired {
		c.setStatus(StatusAnonymous)
		return &Result{Outcome: OutcomeMFARequired}, nil
	}

	c.adopt(resp.Token, resp.User)
	return &Result{Outcome: OutcomeOK, User: resp.User}, nil
}

// VerifyMFA completes a pending login with the second factor.
func (c *Controller) VerifyMFA(ctx context.Context, code string) (*Result, error) {
	prev := c.Status()
	c.setStatus(StatusAuthenticating)

	resp, err := c.api.VerifyMFA(ctx, code)
	if err != nil {
		return c.resolveAuthError(prev, err, true)
	}

	c.adopt(resp.Token, resp.User)
	return &Result{Outcome: OutcomeOK, User: resp.User}, nil
}

// Register creates an account. The platform signs new accounts in directly.
func (c *Controller) Register(ctx context.Context, req types.RegisterRequest) (*Result, error) {
	prev := c.Status()
	c.setStatus(StatusAuthenticating)

	resp, err := c.api.Register(ctx, req)
	if err != nil {
		return c.resolveAuthError(prev, err, false)
	}

	c.adopt(resp.Token, resp.User)
	return &Result{Outcome: OutcomeOK, User: resp.User}, nil
}

// resolveAuthError translates a failed auth exchange into the outcome
// vocabulary. prev restores a pre-existing suspension: a failed re-login
// attempt never clears the Suspended state, only a successful one does.
// mfa selects the MFA-specific reading of a 401.
func (c *Controller) resolveAuthError(prev Status, err error, mfa bool) (*Result, error) {
	settle := func() {
		if prev == StatusSuspended {
			c.setStatus(StatusSuspended)
			return
		}
		c.setStatus(StatusAnonymous)
	}

	apiErr, ok := api.AsError(err)
	if !ok {
		// Transport failure; the caller may retry.
		settle()
		return nil, err
	}

	switch {
	case apiErr.IsSuspension():
		c.Suspend(apiErr.Reason)
		return &Result{Outcome: OutcomeSuspended, Reason: apiErr.Reason, Message: apiErr.Message}, nil
	case apiErr.IsRateLimited():
		settle()
		return &Result{Outcome: OutcomeRateLimited, RetryAfter: apiErr.RetryAfter, Message: apiErr.Message}, nil
	case mfa && apiErr.Status == http.StatusUnauthorized:
		settle()
		return &Result{Outcome: OutcomeSessionExpired, Message: apiErr.Message}, nil
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusBadRequest:
		settle()
		return &Result{Outcome: OutcomeRejected, Message: apiErr.Message}, nil
	default:
		settle()
		return nil, err
	}
}

// Token is the platform-wide choke point for obtaining a bearer credential.
// It returns the in-memory credential when present and otherwise delegates to
// the refresh coordinator, so concurrent callers share one refresh exchange.
func (c *Controller) Token(ctx context.Context) (string, bool) {
	if c.Status() == StatusSuspended {
		return "", false
	}
	if tok, ok := c.creds.Get(); ok {
		return tok, true
	}
	return c.refresher.Refresh(ctx)
}

// Logout notifies the server best-effort, then unconditionally clears all
// local session state. It always succeeds locally.
func (c *Controller) Logout(ctx context.Context) {
	tok, _ := c.creds.Get()
	if err := c.api.Logout(ctx, tok); err != nil {
		c.log.Debug().Err(err).Msg("server logout failed, clearing locally anyway")
	}
	c.becomeAnonymous()
}

// ForgotPassword requests a password reset email.
func (c *Controller) ForgotPassword(ctx context.Context, email string) error {
	return c.api.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password using an emailed reset token.
func (c *Controller) ResetPassword(ctx context.Context, token, password string) error {
	return c.api.ResetPassword(ctx, token, password)
}

// VerifyEmail confirms an email address using an emailed token.
func (c *Controller) VerifyEmail(ctx context.Context, token string) error {
	return c.api.VerifyEmail(ctx, token)
}

// Close releases the live resources (stream connection, router) without
// touching the server-side session.
func (c *Controller) Close() {
	c.stream.Stop()
	c.router.Close()
}

// Suspend transitions to Suspended and tears the session down. Entered from
// login responses, from 403s on any authenticated call, and from revocation
// push events. Only Logout or a fresh successful Login leaves the state.
func (c *Controller) Suspend(reason string) {
	c.mu.Lock()
	if c.status == StatusSuspended {
		if c.suspensionReason == "" {
			c.suspensionReason = reason
		}
		c.mu.Unlock()
		return
	}
	c.status = StatusSuspended
	c.suspensionReason = reason
	c.user = nil
	c.mu.Unlock()

	c.log.Warn().Str("reason", reason).Msg("account suspended")
	c.creds.Clear()
	c.stream.Stop()
}

// adopt installs a fresh credential and identity and brings the stream up.
func (c *Controller) adopt(token string, user *types.User) {
	c.creds.Set(token)

	c.mu.Lock()
	c.status = StatusAuthenticated
	c.user = user
	c.suspensionReason = ""
	c.mu.Unlock()

	c.stream.Start()
}

// becomeAnonymous clears all local session state and stops the stream.
func (c *Controller) becomeAnonymous() {
	c.mu.Lock()
	c.status = StatusAnonymous
	c.user = nil
	c.suspensionReason = ""
	c.mu.Unlock()

	c.creds.Clear()
	c.stream.Stop()
}

func (c *Controller) setStatus(status Status) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// handleStreamEvent is the stream sink. The two reserved event types are
// consumed here; everything else goes to the router untouched.
func (c *Controller) handleStreamEvent(ev types.StreamEvent) {
	switch ev.Type {
	case types.EventTokenRefresh:
		var data types.TokenRefreshData
		if err := json.Unmarshal(ev.Data, &data); err != nil || data.Token == "" {
			c.log.Warn().Err(err).Msg("malformed token refresh event")
			return
		}
		// Server-pushed rotation; adopt without a refresh round trip.
		c.creds.Set(data.Token)

	case types.EventSessionRevoked:
		var data types.SessionRevokedData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			c.log.Warn().Err(err).Msg("malformed session revoked event")
		}
		if data.SuspensionReason != "" {
			c.Suspend(data.SuspensionReason)
			return
		}
		c.log.Info().Str("reason", data.Reason).Msg("session revoked by server")
		c.becomeAnonymous()

	default:
		c.router.Dispatch(ev)
	}
}
