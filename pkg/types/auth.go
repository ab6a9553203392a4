package types

// User is the authenticated account identity.
// Replaced wholesale on every successful authentication or identity fetch.
type User struct {
	ID              string `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	EmailVerified   bool   `json:"emailVerified"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Error codes returned by the platform inside error envelopes.
const (
	CodeAccountSuspended  = "account_suspended"
	CodeInvalidCredential = "invalid_credentials"
	CodeMFARequired       = "mfa_required"
	CodeMFASessionExpired = "mfa_session_expired"
	CodeRateLimited       = "rate_limited"
)

// LoginRequest is the POST /auth/login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the POST /auth/register payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// VerifyMFARequest is the POST /auth/verify-mfa payload. The pending login
// session is carried by cookie, only the second factor goes in the body.
type VerifyMFARequest struct {
	Code string `json:"code"`
}

// ForgotPasswordRequest is the POST /auth/forgot-password payload.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the POST /auth/reset-password payload.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// VerifyEmailRequest is the POST /auth/verify-email payload.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// AuthResponse is the success body of login, register, MFA verification and
// refresh. Token is the opaque short-lived bearer credential; the long-lived
// session cookie rides on the response headers and is never surfaced here.
type AuthResponse struct {
	Token       string `json:"token,omitempty"`
	User        *User  `json:"user,omitempty"`
	MFARequired bool   `json:"mfaRequired,omitempty"`
}

// ErrorBody is the error envelope the platform returns on non-2xx responses.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code plus human-readable fields.
type ErrorDetail struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds, rate limiting only
}
