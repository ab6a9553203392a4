package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/hackwave/hackwave/pkg/types"
)

// Error is a non-2xx platform response decoded into its error envelope.
type Error struct {
	Status     int
	Code       string
	Message    string
	Reason     string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("api: %s (%d)", e.Message, e.Status)
}

// IsSuspension reports whether the response declares the account suspended.
func (e *Error) IsSuspension() bool {
	return e.Status == 403 && e.Code == types.CodeAccountSuspended
}

// IsRateLimited reports whether the response is a rate-limit rejection.
func (e *Error) IsRateLimited() bool {
	return e.Status == 429
}

// AsError extracts an *Error from err, if present.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
