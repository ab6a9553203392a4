package session

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/hackwave/hackwave/internal/api"
	"github.com/hackwave/hackwave/internal/credential"
	"github.com/hackwave/hackwave/internal/logging"
)

// RefreshCoordinator wraps the cookie-backed refresh exchange with
// single-flight deduplication: while one refresh is in flight, every
// concurrent caller awaits that same exchange and observes its outcome. A
// settled refresh leaves no pending handle behind, so the next call starts a
// fresh attempt.
type RefreshCoordinator struct {
	api   *api.Client
	creds *credential.Store
	group singleflight.Group
	log   zerolog.Logger
}

// NewRefreshCoordinator creates a coordinator writing into the given store.
func NewRefreshCoordinator(client *api.Client, creds *credential.Store) *RefreshCoordinator {
	return &RefreshCoordinator{
		api:   client,
		creds: creds,
		log:   logging.For("refresh"),
	}
}

// Refresh obtains a fresh credential using the session cookie. Returns the
// credential, or ok=false when the session could not be refreshed - transport
// failures and rejected sessions both resolve to "not authenticated" rather
// than escalating.
func (r *RefreshCoordinator) Refresh(ctx context.Context) (string, bool) {
	v, _, _ := r.group.Do("refresh", func() (any, error) {
		return r.refreshOnce(), nil
	})
	if ctx.Err() != nil {
		return "", false
	}
	token, _ := v.(string)
	return token, token != ""
}

// refreshOnce performs the single network exchange shared by all waiters.
// It runs on its own context: the exchange outcome is shared, so an
// individual caller's cancellation must not poison it. The http.Client's
// request timeout still bounds the call.
func (r *RefreshCoordinator) refreshOnce() string {
	epoch := r.creds.Epoch()

	resp, err := r.api.Refresh(context.Background())
	if err != nil || resp.Token == "" {
		r.log.Debug().Err(err).Msg("refresh failed, treating as unauthenticated")
		// Clear unless something mutated the store mid-flight; a logout that
		// raced us already cleared it, and a newer login must not be wiped.
		r.creds.SetIfEpoch(epoch, "")
		return ""
	}

	if !r.creds.SetIfEpoch(epoch, resp.Token) {
		// The store changed while we were on the wire. Whatever wrote it owns
		// the session now; do not resurrect our result.
		r.log.Debug().Msg("dropping late refresh result")
		tok, _ := r.creds.Get()
		return tok
	}
	return resp.Token
}
