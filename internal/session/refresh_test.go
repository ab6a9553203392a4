package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackwave/hackwave/internal/api"
	"github.com/hackwave/hackwave/internal/credential"
	"github.com/hackwave/hackwave/pkg/types"
)

func newRefreshFixture(t *testing.T, handler http.HandlerFunc) (*RefreshCoordinator, *credential.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := api.NewClient(srv.URL, 5*time.Second)
	require.NoError(t, err)

	creds := credential.NewStore()
	return NewRefreshCoordinator(client, creds), creds
}

func TestRefresh_ConcurrentCallersShareOneExchange(t *testing.T) {
	var exchanges int32
	coord, creds := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&exchanges, 1)
		time.Sleep(50 * time.Millisecond) // hold the flight open so callers pile up
		json.NewEncoder(w).Encode(types.AuthResponse{Token: "minted-1"})
	})

	const callers = 10
	results := make([]string, callers)
	oks := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], oks[i] = coord.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&exchanges), "N concurrent callers must share one network exchange")
	for i := range results {
		assert.True(t, oks[i])
		assert.Equal(t, "minted-1", results[i])
	}

	stored, ok := creds.Get()
	require.True(t, ok)
	assert.Equal(t, "minted-1", stored)
}

func TestRefresh_SettledFlightAllowsFreshAttempt(t *testing.T) {
	var exchanges int32
	coord, _ := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&exchanges, 1)
		json.NewEncoder(w).Encode(types.AuthResponse{Token: map[int32]string{1: "first", 2: "second"}[n]})
	})

	tok, ok := coord.Refresh(context.Background())
	require.True(t, ok)
	assert.Equal(t, "first", tok)

	tok, ok = coord.Refresh(context.Background())
	require.True(t, ok)
	assert.Equal(t, "second", tok)

	assert.Equal(t, int32(2), atomic.LoadInt32(&exchanges))
}

func TestRefresh_FailureClearsStoreAndResolvesAbsent(t *testing.T) {
	coord, creds := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	creds.Set("stale")

	_, ok := coord.Refresh(context.Background())
	assert.False(t, ok, "refresh failure resolves to absent, not an error")

	_, ok = creds.Get()
	assert.False(t, ok, "failed refresh clears the store")
}

func TestRefresh_LateResultDoesNotSurviveConcurrentLogout(t *testing.T) {
	inFlight := make(chan struct{})
	coord, creds := newRefreshFixture(t, func(w http.ResponseWriter, r *http.Request) {
		close(inFlight)
		time.Sleep(60 * time.Millisecond)
		json.NewEncoder(w).Encode(types.AuthResponse{Token: "late-arrival"})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		coord.Refresh(context.Background())
	}()

	<-inFlight
	creds.Clear() // logout while the refresh is on the wire
	<-done

	_, ok := creds.Get()
	assert.False(t, ok, "late refresh result must not resurrect a cleared credential")
}
