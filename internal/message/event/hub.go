// Package event provides an in-memory hub for user-scoped tracking events.
package event

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/msgbridge/internal/storage"
)

const (
	// DefaultBufferSize is the default per-subscriber channel buffer.
	DefaultBufferSize = 64
)

// Event is one tracked occurrence, as recorded through storage.Store.Track.
type Event struct {
	Type       string          `json:"type"`
	UserID     string          `json:"user_id"`
	Properties json.RawMessage `json:"properties,omitempty"`
	At         time.Time       `json:"at"`
}

// Publisher publishes events to subscribers.
type Publisher interface {
	Publish(event Event)
}

// Subscriber subscribes to user-scoped events.
type Subscriber interface {
	Subscribe(userID string, buffer int) (string, <-chan Event, func())
}

// Hub is an in-process pub/sub dispatcher for user-scoped events.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]map[string]chan Event
}

// NewHub creates an empty event hub.
func NewHub() *Hub {
	return &Hub{
		streams: map[string]map[string]chan Event{},
	}
}

// Publish broadcasts one event to all subscribers of the same user.
// Slow subscribers miss events instead of blocking the publisher.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.streams[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers one subscriber for a user.
// It returns a stream ID, a read-only event channel and a cancel function.
func (h *Hub) Subscribe(userID string, buffer int) (string, <-chan Event, func()) {
	userID = strings.TrimSpace(userID)
	if h == nil || userID == "" {
		ch := make(chan Event)
		close(ch)
		return "", ch, func() {}
	}
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	streamID := uuid.NewString()
	ch := make(chan Event, buffer)

	h.mu.Lock()
	streams, ok := h.streams[userID]
	if !ok {
		streams = map[string]chan Event{}
		h.streams[userID] = streams
	}
	streams[streamID] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			streams := h.streams[userID]
			if current, ok := streams[streamID]; ok {
				delete(streams, streamID)
				close(current)
			}
			if len(streams) == 0 {
				delete(h.streams, userID)
			}
			h.mu.Unlock()
		})
	}

	return streamID, ch, cancel
}

// Subscribers reports how many streams are open for a user.
func (h *Hub) Subscribers(userID string) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[strings.TrimSpace(userID)])
}

type publishingStore struct {
	storage.Store
	pub Publisher
}

// Publishing returns a store that publishes every successful Track call to pub.
func Publishing(store storage.Store, pub Publisher) storage.Store {
	if pub == nil {
		return store
	}
	return &publishingStore{Store: store, pub: pub}
}

func (s *publishingStore) Track(ctx context.Context, userID, name string, properties map[string]any) error {
	if err := s.Store.Track(ctx, userID, name, properties); err != nil {
		return err
	}
	var raw json.RawMessage
	if len(properties) > 0 {
		if data, err := json.Marshal(properties); err == nil {
			raw = data
		}
	}
	s.pub.Publish(Event{Type: name, UserID: userID, Properties: raw, At: time.Now().UTC()})
	return nil
}
