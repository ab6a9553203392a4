// Package api is the REST transport for the hackwave platform. It owns the
// http.Client and its cookie jar; the long-lived session cookie lives in the
// jar and is never read by client logic.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hackwave/hackwave/internal/logging"
	"github.com/hackwave/hackwave/pkg/types"
)

// Client issues authenticated REST calls against the platform origin.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	// onSuspension is invoked whenever any call observes a suspension
	// response, so the session layer learns about bans that happen outside
	// the login flow.
	onSuspension func(reason string)
}

// NewClient creates a client for the given origin. The cookie jar holds the
// httpOnly session cookie across refresh and logout calls.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		log: logging.For("api"),
	}, nil
}

// BaseURL returns the platform origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// StreamHTTPClient returns a client that shares the cookie jar but carries no
// per-request timeout. The push connection is long-lived by design; the REST
// timeout would sever it.
func (c *Client) StreamHTTPClient() *http.Client {
	return &http.Client{Jar: c.http.Jar}
}

// OnSuspension registers the hook called when any call hits a suspension
// response. At most one hook; the session controller owns it.
func (c *Client) OnSuspension(fn func(reason string)) {
	c.onSuspension = fn
}

// Login posts credentials and returns the new bearer token and user, or
// MFARequired when a second factor is pending.
func (c *Client) Login(ctx context.Context, email, password string) (*types.AuthResponse, error) {
	var out types.AuthResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", types.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns the initial authenticated state.
func (c *Client) Register(ctx context.Context, req types.RegisterRequest) (*types.AuthResponse, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA completes a pending login with the second factor. The pending
// session rides on the cookie jar.
func (c *Client) VerifyMFA(ctx context.Context, code string) (*types.AuthResponse, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify-mfa", "", types.VerifyMFARequest{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges the session cookie for a fresh bearer token.
func (c *Client) Refresh(ctx context.Context) (*types.AuthResponse, error) {
	var out types.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the server-side session. The bearer may already be
// absent; the session cookie is what the server revokes.
func (c *Client) Logout(ctx context.Context, bearer string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", bearer, nil, nil)
}

// Me fetches the identity behind a bearer token.
func (c *Client) Me(ctx context.Context, bearer string) (*types.User, error) {
	var out types.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", bearer, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", types.ForgotPasswordRequest{Email: email}, nil)
}

// ResetPassword sets a new password using an emailed reset token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", "", types.ResetPasswordRequest{Token: token, Password: password}, nil)
}

// VerifyEmail confirms an email address using an emailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/verify-email", "", types.VerifyEmailRequest{Token: token}, nil)
}

// do runs one exchange: JSON body in, JSON body out, error envelope on
// non-2xx. Each request carries a ULID for log correlation.
func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := ulid.Make().String()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.log.Debug().Str("method", method).Str("path", path).Str("requestId", requestID).Msg("api request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	apiErr := &Error{
		Status:  resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}

	var envelope types.ErrorBody
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil && len(data) > 0 {
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Reason = envelope.Error.Reason
			if envelope.Error.Message != "" {
				apiErr.Message = envelope.Error.Message
			}
			if envelope.Error.RetryAfter > 0 {
				apiErr.RetryAfter = time.Duration(envelope.Error.RetryAfter) * time.Second
			}
		}
	}
	if apiErr.RetryAfter == 0 {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
	}

	c.log.Debug().Int("status", apiErr.Status).Str("code", apiErr.Code).Msg("api error response")

	if apiErr.IsSuspension() && c.onSuspension != nil {
		c.onSuspension(apiErr.Reason)
	}
	return apiErr
}
