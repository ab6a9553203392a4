// Package credential holds the short-lived bearer credential in memory.
//
// The credential is never written to durable storage: a fresh process always
// starts absent and re-derives the credential via the refresh endpoint.
package credential

import "sync"

// Store is the single owner of the in-memory credential. All reads and writes
// go through it; nothing else caches the token.
//
// Every mutation bumps an epoch counter. Callers that start a slow operation
// (a network refresh) capture the epoch first and apply the result with
// SetIfEpoch, so a late-arriving result cannot resurrect a credential that a
// concurrent logout already cleared.
type Store struct {
	mu       sync.Mutex
	token    string
	epoch    uint64
	watchers map[chan string]struct{}
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{watchers: make(map[chan string]struct{})}
}

// Get returns the current credential. ok is false when absent.
func (s *Store) Get() (token string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Set stores a new credential and notifies watchers.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.epoch++
	s.notifyLocked(token)
	s.mu.Unlock()
}

// Clear drops the credential and notifies watchers with an empty value.
func (s *Store) Clear() {
	s.Set("")
}

// Epoch returns the current mutation epoch.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// SetIfEpoch stores token only if no mutation happened since the given epoch
// was observed. Returns false when the write was discarded as stale.
func (s *Store) SetIfEpoch(epoch uint64, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.token = token
	s.epoch++
	s.notifyLocked(token)
	return true
}

// Watch returns a channel that receives the credential value after every
// mutation (empty string for clears). The channel is buffered; a slow watcher
// misses intermediate values rather than blocking mutations.
func (s *Store) Watch() <-chan string {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unwatch removes a watcher channel previously returned by Watch.
func (s *Store) Unwatch(ch <-chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for w := range s.watchers {
		if w == ch {
			delete(s.watchers, w)
			close(w)
			return
		}
	}
}

func (s *Store) notifyLocked(token string) {
	for w := range s.watchers {
		select {
		case w <- token:
		default:
			// Watcher lagging, drop the older value and push the newest.
			select {
			case <-w:
			default:
			}
			select {
			case w <- token:
			default:
			}
		}
	}
}
