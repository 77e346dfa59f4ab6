package model

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the request status of the conversation.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusStreaming
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusStreaming:
		return "streaming"
	default:
		return "idle"
	}
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotReactable      = errors.New("message cannot take a reaction")
)

// Snapshot is a point-in-time copy of the store. Observers may keep it.
type Snapshot struct {
	Messages []Message
	Status   Status
	// Buffer holds the partial agent reply; meaningful only while streaming.
	Buffer string
}

// HasBuffer reports whether an agent reply is being received.
func (s Snapshot) HasBuffer() bool {
	return s.Status == StatusStreaming
}

// Observer receives every state change, in order. It runs on the goroutine
// that made the change and must not mutate the store itself.
type Observer func(Snapshot)

// Store holds the conversation, the request status and the streaming buffer.
// It is the single source of truth the UI renders from.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	status   Status
	buffer   string

	// notifyMu keeps deliveries in mutation order
	notifyMu  sync.Mutex
	observers map[int]Observer
	nextID    int

	now func() time.Time
}

// NewStore creates a store holding messages, usually SeedMessages().
func NewStore(messages []Message) *Store {
	s := &Store{
		observers: make(map[int]Observer),
		now:       time.Now,
	}
	s.messages = s.stamp(messages)
	return s
}

func (s *Store) stamp(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		if out[i].Timestamp.IsZero() {
			out[i].Timestamp = s.now()
		}
	}
	return out
}

// Subscribe registers fn for future changes. The returned func unregisters it.
func (s *Store) Subscribe(fn Observer) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.observers[id] = fn

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.observers, id)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	snap := Snapshot{Messages: messages, Status: s.status}
	if s.status == StatusStreaming {
		snap.Buffer = s.buffer
	}
	return snap
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// mutate applies fn under the write lock and, if it succeeds, notifies
// observers with the resulting state.
func (s *Store) mutate(fn func() error) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	for _, id := range s.observerIDs() {
		s.observers[id](snap)
	}
	return nil
}

// observerIDs returns ids in subscription order. Caller holds notifyMu.
func (s *Store) observerIDs() []int {
	ids := make([]int, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if _, ok := s.observers[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// AppendUserMessage appends a user message and returns its index.
func (s *Store) AppendUserMessage(text string) int {
	var idx int
	_ = s.mutate(func() error {
		s.messages = append(s.messages, Message{Author: AuthorUser, Text: text, Timestamp: s.now()})
		idx = len(s.messages) - 1
		return nil
	})
	return idx
}

// BeginAgentReply moves idle to pending.
func (s *Store) BeginAgentReply() error {
	return s.mutate(func() error {
		if s.status != StatusIdle {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, StatusPending)
		}
		s.status = StatusPending
		return nil
	})
}

// StartStreaming moves pending to streaming with an empty buffer.
func (s *Store) StartStreaming() error {
	return s.mutate(func() error {
		if s.status != StatusPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, StatusStreaming)
		}
		s.status = StatusStreaming
		s.buffer = ""
		return nil
	})
}

// AppendToBuffer adds a decoded piece of the reply being received.
func (s *Store) AppendToBuffer(chunk string) error {
	return s.mutate(func() error {
		if s.status != StatusStreaming {
			return fmt.Errorf("%w: append while %s", ErrInvalidTransition, s.status)
		}
		s.buffer += chunk
		return nil
	})
}

// CommitAgentMessage appends the final agent reply, drops the buffer and
// returns to idle. It returns the new message index.
func (s *Store) CommitAgentMessage(text string) int {
	var idx int
	_ = s.mutate(func() error {
		s.messages = append(s.messages, Message{Author: AuthorAgent, Text: text, Timestamp: s.now()})
		idx = len(s.messages) - 1
		s.buffer = ""
		s.status = StatusIdle
		return nil
	})
	return idx
}

// CommitErrorMessage records a failed cycle: the user's question (unless it
// is already the last message) followed by errorText from the agent.
func (s *Store) CommitErrorMessage(userText, errorText string) {
	_ = s.mutate(func() error {
		n := len(s.messages)
		if n == 0 || s.messages[n-1].Author != AuthorUser || s.messages[n-1].Text != userText {
			s.messages = append(s.messages, Message{Author: AuthorUser, Text: userText, Timestamp: s.now()})
		}
		s.messages = append(s.messages, Message{Author: AuthorAgent, Text: errorText, Timestamp: s.now()})
		s.buffer = ""
		s.status = StatusIdle
		return nil
	})
}

// Abandon returns to idle without committing anything.
func (s *Store) Abandon() {
	_ = s.mutate(func() error {
		s.buffer = ""
		s.status = StatusIdle
		return nil
	})
}

// ToggleReaction sets r on the agent message at index, or clears it when the
// message already has r. It returns the reaction now in effect.
func (s *Store) ToggleReaction(index int, r Reaction) (Reaction, error) {
	var result Reaction
	err := s.mutate(func() error {
		if index < 0 || index >= len(s.messages) {
			return fmt.Errorf("%w: index %d out of range", ErrNotReactable, index)
		}
		msg := &s.messages[index]
		if msg.Author != AuthorAgent {
			return fmt.Errorf("%w: message %d is from %s", ErrNotReactable, index, msg.Author)
		}
		if r == ReactionNone || msg.Reaction == r {
			msg.Reaction = ReactionNone
		} else {
			msg.Reaction = r
		}
		result = msg.Reaction
		return nil
	})
	return result, err
}

// Reset replaces the whole conversation, e.g. when switching sessions.
// It is only allowed while idle.
func (s *Store) Reset(messages []Message) error {
	stamped := s.stamp(messages)
	return s.mutate(func() error {
		if s.status != StatusIdle {
			return fmt.Errorf("%w: reset while %s", ErrInvalidTransition, s.status)
		}
		s.messages = stamped
		s.buffer = ""
		return nil
	})
}
