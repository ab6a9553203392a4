// Package stream maintains the persistent push-event connection to the
// platform: one long-lived server-sent event stream, reconnected with
// exponential backoff, delivering named events to a single sink.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/hackwave/hackwave/internal/logging"
	"github.com/hackwave/hackwave/pkg/types"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config bounds the reconnect policy.
type Config struct {
	// InitialDelay is the first reconnect delay. Defaults to 1s.
	InitialDelay time.Duration
	// MaxDelay caps the exponential delay. Defaults to 30s.
	MaxDelay time.Duration
}

func (c *Config) defaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = 30 * time.Second
	}
}

// Sink receives every event delivered by the connection, in arrival order,
// on the connection's reader goroutine.
type Sink func(ev types.StreamEvent)

// Channel owns one persistent push connection. Start and Stop are idempotent;
// at most one live connection exists at any time. On connection errors the
// channel schedules exactly one reconnect with exponential backoff
// (1s, 2s, 4s, ... capped at 30s) and resets the schedule after a successful
// open. A server-sent timeout event closes the stream cleanly without
// counting toward backoff.
type Channel struct {
	url    string
	client *http.Client
	sink   Sink
	log    zerolog.Logger

	// onTimeout, when set, is called after a server-initiated clean close so
	// the owning controller can decide whether to start a fresh cycle.
	onTimeout func()

	mu       sync.Mutex
	state    State
	attempts int
	bo       *backoff.ExponentialBackOff
	timer    *time.Timer
	cancel   context.CancelFunc
	gen      uint64
}

// NewChannel creates a channel for the given origin. The http.Client is
// shared with the REST transport so the stream request carries the session
// cookie. Events are delivered to sink.
func NewChannel(baseURL string, client *http.Client, cfg Config, sink Sink) *Channel {
	cfg.defaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialDelay
	bo.Multiplier = 2
	bo.MaxInterval = cfg.MaxDelay
	// The reconnect schedule is driven by the delay cap, never by elapsed
	// time, and must be deterministic for a given attempt count.
	bo.MaxElapsedTime = 0
	bo.RandomizationFactor = 0
	bo.Reset()

	return &Channel{
		url:    baseURL + "/auth/stream",
		client: client,
		sink:   sink,
		log:    logging.For("stream"),
		bo:     bo,
	}
}

// OnTimeout registers the hook called after a server-initiated clean close.
func (c *Channel) OnTimeout(fn func()) {
	c.mu.Lock()
	c.onTimeout = fn
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the consecutive failed-connection count.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Start opens the connection. No-op while already connecting or connected.
func (c *Channel) Start() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.clearTimerLocked()
	c.state = StateConnecting
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, gen)
}

// Stop tears down the connection and cancels any pending reconnect timer.
// Idempotent; a stopped channel never reconnects on its own.
func (c *Channel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

func (c *Channel) teardownLocked() {
	c.clearTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = StateDisconnected
}

func (c *Channel) clearTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) run(ctx context.Context, gen uint64) {
	connID := ulid.Make().String()
	log := c.log.With().Str("connId", connID).Logger()

	body, err := c.connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Debug().Err(err).Msg("stream connect failed")
		c.connectionFailed(gen)
		return
	}
	defer body.Close()

	c.mu.Lock()
	if gen != c.gen {
		// Stopped while the dial was in flight.
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.attempts = 0
	c.bo.Reset()
	c.mu.Unlock()

	log.Info().Msg("stream connected")

	err = c.readEvents(ctx, gen, body)
	if ctx.Err() != nil || errors.Is(err, errServerTimeout) {
		return
	}
	log.Debug().Err(err).Msg("stream read ended")
	c.connectionFailed(gen)
}

func (c *Channel) connect(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	return resp.Body, nil
}

// errServerTimeout marks a server-initiated clean close.
var errServerTimeout = errors.New("server timeout event")

// readEvents parses the text/event-stream body until it ends. Events are
// delivered to the sink in arrival order.
func (c *Channel) readEvents(ctx context.Context, gen uint64, body io.Reader) error {
	reader := bufio.NewReader(body)
	var eventType string
	var eventData strings.Builder

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Empty line terminates one event.
		if line == "" {
			if eventType != "" || eventData.Len() > 0 {
				if done := c.deliver(gen, eventType, eventData.String()); done {
					return errServerTimeout
				}
			}
			eventType = ""
			eventData.Reset()
			continue
		}

		// SSE comment lines are connection keepalives.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			// Consecutive data lines form one payload joined by newlines.
			if eventData.Len() > 0 {
				eventData.WriteByte('\n')
			}
			eventData.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
}

// deliver handles one parsed event. Returns true when the server asked for a
// clean close.
func (c *Channel) deliver(gen uint64, eventType, data string) bool {
	switch eventType {
	case types.EventHeartbeat, types.EventConnected:
		// Keepalive traffic; no state change, not routed.
		return false
	case types.EventTimeout:
		c.log.Debug().Msg("server timeout, closing stream")
		c.mu.Lock()
		var onTimeout func()
		// A frame already buffered when Stop ran must not restart the cycle.
		if gen == c.gen {
			c.teardownLocked()
			onTimeout = c.onTimeout
		}
		c.mu.Unlock()
		if onTimeout != nil {
			onTimeout()
		}
		return true
	}

	if c.sink != nil {
		c.sink(types.StreamEvent{Type: eventType, Data: json.RawMessage(data)})
	}
	return false
}

// connectionFailed schedules exactly one reconnect for the current cycle.
func (c *Channel) connectionFailed(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state == StateDisconnected {
		return
	}

	c.state = StateError
	delay := c.bo.NextBackOff()
	c.attempts++

	c.log.Debug().
		Int("attempt", c.attempts).
		Dur("delay", delay).
		Msg("stream reconnect scheduled")

	c.clearTimerLocked()
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stale := gen != c.gen || c.state != StateError
		c.mu.Unlock()
		if stale {
			return
		}
		c.Start()
	})
}
