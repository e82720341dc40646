// Package notify provides the notification board that carries asynchronous
// link signals (beacon lost, associated) from the management entity to
// whoever subscribed to them.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Category identifies a kind of notification.
type Category uint8

const (
	// CategoryLinkLost is published when the station stops hearing
	// beacons from its access point.
	CategoryLinkLost Category = iota + 1

	// CategoryAssociated is published after the station associates.
	CategoryAssociated
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLinkLost:
		return "LINK_LOST"
	case CategoryAssociated:
		return "ASSOCIATED"
	default:
		return fmt.Sprintf("CATEGORY(%d)", uint8(c))
	}
}

// Notification is one published signal.
type Notification struct {
	Category Category
	Time     time.Time

	// Station is the address of the station the signal concerns.
	Station string

	// Detail is free-form context such as the BSSID involved.
	Detail string
}

// Handler receives notifications. Handlers run in the publisher's goroutine
// and must not block.
type Handler func(n Notification)

// Board is an in-memory publish/subscribe board. Publish is synchronous.
type Board struct {
	mu       sync.RWMutex
	handlers map[Category][]handlerEntry
	nextID   uint64
	logger   *slog.Logger
}

type handlerEntry struct {
	id      uint64
	handler Handler
}

// NewBoard creates an empty board. A nil logger discards.
func NewBoard(logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Board{
		handlers: make(map[Category][]handlerEntry),
		logger:   logger,
	}
}

// Subscribe registers a handler for one category. The returned function
// removes it; calling it more than once is harmless.
func (b *Board) Subscribe(category Category, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[category] = append(b.handlers[category], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[category]
		for i, e := range entries {
			if e.id == id {
				b.handlers[category] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers n to every handler subscribed to its category, in
// subscription order. A zero Time is set to now.
func (b *Board) Publish(n Notification) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	b.mu.RLock()
	entries := make([]handlerEntry, len(b.handlers[n.Category]))
	copy(entries, b.handlers[n.Category])
	b.mu.RUnlock()

	b.logger.Debug("publishing notification",
		"category", n.Category.String(), "station", n.Station, "subscribers", len(entries))

	for _, e := range entries {
		b.safeCall(e.handler, n)
	}
}

// Subscribers returns the number of handlers for a category.
func (b *Board) Subscribers(category Category) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[category])
}

func (b *Board) safeCall(handler Handler, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification handler panicked",
				"category", n.Category.String(),
				"station", n.Station,
				"panic", r,
			)
		}
	}()
	handler(n)
}
