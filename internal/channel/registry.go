package channel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry holds the channels served by the bridge, keyed by channel ID.
// It must be created via NewRegistry and passed explicitly to components that need it.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: map[string]Channel{},
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(ch Channel) error {
	if ch == nil {
		return errors.New("channel is nil")
	}
	id := normalizeID(ch.ID())
	if id == "" {
		return errors.New("channel id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[id]; exists {
		return fmt.Errorf("channel already registered: %s", id)
	}
	r.channels[id] = ch
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(ch Channel) {
	if err := r.Register(ch); err != nil {
		panic(err)
	}
}

// Unregister removes a channel from the registry.
func (r *Registry) Unregister(id string) bool {
	id = normalizeID(id)
	if id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[id]; !exists {
		return false
	}
	delete(r.channels, id)
	return true
}

// Get returns the channel registered under id.
func (r *Registry) Get(id string) (Channel, bool) {
	id = normalizeID(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Lookup is Get returning ErrChannelNotFound for unknown ids.
func (r *Registry) Lookup(id string) (Channel, error) {
	ch, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	return ch, nil
}

// List returns all registered channels ordered by id.
func (r *Registry) List() []Channel {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Channel, 0, len(ids))
	for _, id := range ids {
		if ch, ok := r.channels[id]; ok {
			items = append(items, ch)
		}
	}
	return items
}

// IDs returns all registered channel ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]string, 0, len(r.channels))
	for id := range r.channels {
		items = append(items, id)
	}
	slices.Sort(items)
	return items
}

func normalizeID(raw string) string {
	return strings.TrimSpace(strings.ToLower(raw))
}
