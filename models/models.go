package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

// Friend is a user as seen from another user's friend list.
type Friend struct {
	User
	Online bool `json:"online"`
}

type Message struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the whole durable state: users keyed by id, friend ids keyed by
// owner in insertion order, messages keyed by conversation key in append order.
type Snapshot struct {
	Users    map[string]User      `json:"users"`
	Friends  map[string][]string  `json:"friends"`
	Messages map[string][]Message `json:"messages"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Users:    make(map[string]User),
		Friends:  make(map[string][]string),
		Messages: make(map[string][]Message),
	}
}

// Normalize replaces absent collections with empty ones.
func (s *Snapshot) Normalize() *Snapshot {
	if s.Users == nil {
		s.Users = make(map[string]User)
	}
	if s.Friends == nil {
		s.Friends = make(map[string][]string)
	}
	if s.Messages == nil {
		s.Messages = make(map[string][]Message)
	}
	return s
}

// ConversationKey identifies the conversation between a and b regardless of
// argument order.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
