// Package eventbus implements the in-process typed publish/subscribe
// mechanism of §4.B: subscribers grouped by event type, invoked in
// registration order, isolated from each other's panics/errors, with every
// event optionally appended to a rotating JSON-lines log.
package eventbus

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Type is the closed set of domain event types (§4.B).
type Type string

const (
	GraphUpdated Type = "GRAPH_UPDATED"
	NodeReady    Type = "NODE_READY"
	NodeStarted  Type = "NODE_STARTED"
	NodeFinished Type = "NODE_FINISHED"
	NodeFailed   Type = "NODE_FAILED"
	RunComplete  Type = "RUN_COMPLETE"
)

// Event is one published domain event.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Handler reacts to one event. A Handler must not block for long: slow
// work belongs on the handler's own goroutine (§5, "handlers that would
// perform slow work must dispatch onto their own workers").
type Handler func(Event)

// Bus is a per-workspace publish/subscribe registry plus an optional
// append-only log.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Type][]Handler
	logger      *zap.SugaredLogger
	log         *rotatingLog // nil if no log file configured
}

// New creates a Bus. logPath empty means pub/sub only, no disk log.
func New(logPath string, rotateBytes int64, logger *zap.SugaredLogger) (*Bus, error) {
	b := &Bus{
		subscribers: make(map[Type][]Handler),
		logger:      logger,
	}
	if logPath != "" {
		rl, err := newRotatingLog(logPath, rotateBytes)
		if err != nil {
			return nil, err
		}
		b.log = rl
	}
	return b, nil
}

// Subscribe registers handler for events of the given type, appended after
// any previously registered handlers for that type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], h)
}

// UnsubscribeAll removes all handlers, used when a workspace is destroyed
// (§3, "Destruction ... clears event subscriptions").
func (b *Bus) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[Type][]Handler)
}

// Emit appends the event to the log (if configured) then invokes every
// subscriber for its type, in registration order, isolating panics so one
// failing subscriber does not prevent later ones from running.
func (b *Bus) Emit(t Type, payload any) {
	ev := Event{Type: t, Timestamp: time.Now(), Payload: payload}

	if b.log != nil {
		if err := b.log.Append(ev); err != nil && b.logger != nil {
			b.logger.Warnw("failed to append event to log", "type", t, "error", err)
		}
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[t]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(t, h, ev)
	}
}

func (b *Bus) invoke(t Type, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Errorw("event subscriber panicked", "type", t, "panic", r)
		}
	}()
	h(ev)
}

// Close releases the underlying log file handle, if any.
func (b *Bus) Close() error {
	if b.log != nil {
		return b.log.Close()
	}
	return nil
}
