// Package conversation keeps bounded per-conversation message history.
package conversation

import (
	"sync"
	"time"

	"github.com/bull/medrag/internal/storage"
)

const (
	DefaultMaxHistoryLength = 10
	DefaultContextWindow    = 24 * time.Hour
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Sources   []storage.SearchHit // Evidence the assistant answer was grounded on
}

// Options configures a Store.
type Options struct {
	MaxHistoryLength int
	ContextWindow    time.Duration
	Now              func() time.Time // Clock, defaults to time.Now
}

// Store holds the history of every conversation. Each conversation has its own
// lock; operations on different ids never wait for each other beyond a map lookup.
type Store struct {
	mu    sync.Mutex
	convs map[string]*conversation

	maxLength int
	window    time.Duration
	now       func() time.Time
}

type conversation struct {
	mu       sync.Mutex
	messages []Message
	removed  bool // Set once the entry is unlinked from the store map
}

// NewStore creates a store. Zero options select the defaults.
func NewStore(opts Options) *Store {
	if opts.MaxHistoryLength <= 0 {
		opts.MaxHistoryLength = DefaultMaxHistoryLength
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		convs:     make(map[string]*conversation),
		maxLength: opts.MaxHistoryLength,
		window:    opts.ContextWindow,
		now:       opts.Now,
	}
}

// AddMessage appends msg to the conversation and prunes it.
func (s *Store) AddMessage(id string, msg Message) {
	s.AddMessages(id, msg)
}

// AddMessages appends msgs in one critical section, so a user question and its
// answer are never interleaved with another writer, then prunes.
func (s *Store) AddMessages(id string, msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	for {
		c := s.getOrCreate(id)

		c.mu.Lock()
		if c.removed {
			// Cleared or swept between lookup and lock; start over with a fresh entry.
			c.mu.Unlock()
			continue
		}
		c.messages = append(c.messages, msgs...)
		c.messages = prune(c.messages, s.cutoff(), s.maxLength)
		c.mu.Unlock()
		return
	}
}

// GetConversation returns a copy of the conversation's messages, oldest first.
// Unknown ids yield an empty slice.
func (s *Store) GetConversation(id string) []Message {
	s.mu.Lock()
	c, ok := s.convs[id]
	s.mu.Unlock()
	if !ok {
		return []Message{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := s.cutoff()
	out := make([]Message, 0, len(c.messages))
	for _, m := range c.messages {
		if m.Timestamp.After(cutoff) {
			out = append(out, m)
		}
	}
	return out
}

// ClearConversation removes all history for id.
func (s *Store) ClearConversation(id string) {
	s.mu.Lock()
	c, ok := s.convs[id]
	delete(s.convs, id)
	s.mu.Unlock()

	if ok {
		c.mu.Lock()
		c.removed = true
		c.messages = nil
		c.mu.Unlock()
	}
}

// MaxHistoryLength returns the number of messages kept per conversation.
func (s *Store) MaxHistoryLength() int {
	return s.maxLength
}

// ActiveConversations returns the number of conversations with at least one
// message inside the context window.
func (s *Store) ActiveConversations() int {
	s.mu.Lock()
	convs := make([]*conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, c)
	}
	s.mu.Unlock()

	cutoff := s.cutoff()
	active := 0
	for _, c := range convs {
		c.mu.Lock()
		if n := len(c.messages); n > 0 && c.messages[n-1].Timestamp.After(cutoff) {
			active++
		}
		c.mu.Unlock()
	}
	return active
}

// Sweep prunes every conversation and drops the ones left empty.
// It returns the number of conversations removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.cutoff()
	removed := 0
	for id, c := range s.convs {
		c.mu.Lock()
		c.messages = prune(c.messages, cutoff, s.maxLength)
		if len(c.messages) == 0 {
			c.removed = true
			delete(s.convs, id)
			removed++
		}
		c.mu.Unlock()
	}
	return removed
}

func (s *Store) getOrCreate(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	return c
}

func (s *Store) cutoff() time.Time {
	return s.now().Add(-s.window)
}

// prune keeps messages newer than cutoff, then the last maxLength of those.
func prune(messages []Message, cutoff time.Time, maxLength int) []Message {
	kept := messages[:0]
	for _, m := range messages {
		if m.Timestamp.After(cutoff) {
			kept = append(kept, m)
		}
	}
	if len(kept) > maxLength {
		kept = kept[len(kept)-maxLength:]
	}
	// Copy so the dropped prefix of the backing array can be collected.
	out := make([]Message, len(kept))
	copy(out, kept)
	return out
}
