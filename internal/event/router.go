// Package event routes named push events to feature subscribers using
// watermill infrastructure with a direct handler registry on top.
package event

import (
	"reflect"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/hackwave/hackwave/pkg/types"
)

// Handler receives events for a subscribed type.
type Handler func(ev types.StreamEvent)

// subscription is one registered handler. The id is the subscription's
// identity; the code pointer is kept only so Unsubscribe can locate a
// subscription when the caller did not hold on to the handle.
type subscription struct {
	id  uint64
	key uintptr
	fn  Handler
}

// Router is the typed publish/subscribe registry layered on the raw stream.
// Dispatch is synchronous and in registration order; handlers run to
// completion before the next event is delivered.
//
// Events are also forwarded to a watermill gochannel topic named after the
// event type, for consumers that prefer channel-based subscriptions or a
// future distributed backend.
type Router struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
	pubsub   *gochannel.GoChannel
	closed   bool
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		handlers: make(map[string][]subscription),
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// handlerKey is the handler's code pointer. Distinct closures over the same
// function body share it, so it cannot tell two such subscribers apart; it is
// only a fallback for Unsubscribe when the subscription handle was not kept.
func handlerKey(fn Handler) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// Subscribe registers fn for the given event type and returns the handle that
// removes exactly this subscription. Every call registers independently, so
// two closures built by one code path are two subscribers; callers that must
// not double-register keep the handle instead of re-subscribing.
func (r *Router) Subscribe(eventType string, fn Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return func() {}
	}

	r.nextID++
	id := r.nextID
	r.handlers[eventType] = append(r.handlers[eventType], subscription{id: id, key: handlerKey(fn), fn: fn})
	return func() { r.unsubscribeID(eventType, id) }
}

// Unsubscribe removes the most recent subscription of fn for the given event
// type, matched by code pointer. When several live closures share a function
// body the match is ambiguous; such callers use the handle returned by
// Subscribe instead.
func (r *Router) Unsubscribe(eventType string, fn Handler) {
	key := handlerKey(fn)

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.handlers[eventType]
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].key == key {
			r.removeLocked(eventType, subs, i)
			return
		}
	}
}

func (r *Router) unsubscribeID(eventType string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.handlers[eventType]
	for i, sub := range subs {
		if sub.id == id {
			r.removeLocked(eventType, subs, i)
			return
		}
	}
}

// removeLocked drops the subscription at i. Removing the last handler for a
// type drops the type's bucket entirely so long sessions do not accumulate
// empty entries.
func (r *Router) removeLocked(eventType string, subs []subscription, i int) {
	subs = append(subs[:i], subs[i+1:]...)
	if len(subs) == 0 {
		delete(r.handlers, eventType)
		return
	}
	r.handlers[eventType] = subs
}

// HasSubscribers reports whether any handler is registered for the type.
func (r *Router) HasSubscribers(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[eventType]) > 0
}

// Dispatch delivers an event to every handler registered for its exact type,
// in registration order, on the calling goroutine. Unknown types are a no-op.
func (r *Router) Dispatch(ev types.StreamEvent) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return
	}
	subs := r.handlers[ev.Type]
	fns := make([]Handler, len(subs))
	for i, sub := range subs {
		fns[i] = sub.fn
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}

	msg := message.NewMessage(watermill.NewUUID(), []byte(ev.Data))
	_ = r.pubsub.Publish(ev.Type, msg)
}

// PubSub returns the underlying watermill GoChannel for channel-based
// subscriptions.
func (r *Router) PubSub() *gochannel.GoChannel {
	return r.pubsub
}

// Close drops all handlers and closes the underlying pub/sub.
func (r *Router) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.handlers = make(map[string][]subscription)
	r.mu.Unlock()

	return r.pubsub.Close()
}
