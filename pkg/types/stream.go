package types

import "encoding/json"

// Stream event types delivered over the push channel. The auth.* and system.*
// types are consumed internally; everything else is routed to feature
// subscribers untouched.
const (
	EventTokenRefresh   = "auth.token.refresh"
	EventSessionRevoked = "auth.session.revoked"
	EventConnected      = "system.connected"
	EventHeartbeat      = "system.heartbeat"
	EventTimeout        = "system.timeout"
)

// StreamEvent is one named event from the push channel. Data is left raw so
// feature subscribers decode their own payload shapes.
type StreamEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TokenRefreshData is the payload of auth.token.refresh events.
type TokenRefreshData struct {
	Token string `json:"token"`
}

// SessionRevokedData is the payload of auth.session.revoked events.
// SuspensionReason is set when the revocation is a ban rather than a plain
// remote logout.
type SessionRevokedData struct {
	Reason           string `json:"reason,omitempty"`
	SuspensionReason string `json:"suspensionReason,omitempty"`
}
