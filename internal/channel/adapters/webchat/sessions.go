package webchat

import (
	"sync"

	"github.com/memohai/msgbridge/internal/message"
)

// sessions maps a session id to the outbound buffer of its in-flight exchange.
//
// Two concurrent exchanges for the same id share one table entry: the later open replaces
// the earlier buffer as the target of Send, and the first release removes the entry for both.
// Clients are expected to use a session serially.
type sessions struct {
	mu      sync.Mutex
	buffers map[string]*buffer
}

type buffer struct {
	mu       sync.Mutex
	messages []message.Message
}

func newSessions() *sessions {
	return &sessions{buffers: map[string]*buffer{}}
}

// open registers an empty buffer for id. release removes the entry and must be called once
// the exchange ends.
func (s *sessions) open(id string) (buf *buffer, release func()) {
	buf = &buffer{messages: []message.Message{}}
	s.mu.Lock()
	s.buffers[id] = buf
	s.mu.Unlock()
	return buf, func() {
		s.mu.Lock()
		delete(s.buffers, id)
		s.mu.Unlock()
	}
}

// drain returns the buffered messages in append order and empties the buffer.
func (b *buffer) drain() []message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.messages
	b.messages = []message.Message{}
	return out
}

// push appends msg to the buffer registered for id and reports whether one was registered.
func (s *sessions) push(id string, msg message.Message) bool {
	s.mu.Lock()
	buf, ok := s.buffers[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	buf.messages = append(buf.messages, msg)
	return true
}

func (s *sessions) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}
