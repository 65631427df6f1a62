package realtime

import (
	"sync"

	"github.com/google/uuid"

	"zorssms/models"
)

type State int

const (
	Unidentified State = iota
	Identified
	Closed
)

func (s State) String() string {
	switch s {
	case Unidentified:
		return "unidentified"
	case Identified:
		return "identified"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Sender writes events to the underlying transport.
type Sender interface {
	Send(ev models.Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ev models.Event) error

func (f SenderFunc) Send(ev models.Event) error { return f(ev) }

// Session is one realtime connection. It starts Unidentified, becomes
// Identified once bound to a user and ends Closed.
type Session struct {
	id  string
	out Sender

	mu     sync.Mutex
	state  State
	userID string
}

func NewSession(out Sender) *Session {
	return &Session{id: uuid.NewString(), out: out}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Send(ev models.Event) error {
	return s.out.Send(ev)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the bound user, empty until identified.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) identity() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.userID
}

func (s *Session) bind(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.state = Identified
	s.userID = userID
	return true
}

// close marks the session closed and reports whether it was open.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Closed {
		return false
	}
	s.state = Closed
	return true
}
