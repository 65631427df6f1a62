//go:generate mockgen -source=store.go -destination=mocks/mock_persister.go -package=mocks

// Package store holds the authoritative in-memory state of users, friend
// edges and conversations. Every mutation is serialised by a single lock and
// mirrored to a Persister before the lock is released.
package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"zorssms/models"
)

// Persister mirrors store mutations to durable storage.
type Persister interface {
	SaveUser(u models.User) error
	AddFriendship(a, b string) error
	RemoveFriendship(a, b string) error
	AppendMessage(key string, m models.Message) error
}

type Limits struct {
	MaxNameLength    int // runes
	MaxBioLength     int // runes
	MaxAvatarBytes   int
	MaxMessageLength int // runes
}

func DefaultLimits() Limits {
	return Limits{
		MaxNameLength:    64,
		MaxBioLength:     500,
		MaxAvatarBytes:   5 << 20,
		MaxMessageLength: 4000,
	}
}

type Store struct {
	mu       sync.Mutex
	users    map[string]models.User
	friends  map[string][]string
	messages map[string][]models.Message

	persist      Persister
	logger       *zap.Logger
	limits       Limits
	now          func() time.Time
	newUserID    func() string
	newMessageID func() string
}

type Option func(*Store)

func WithLimits(l Limits) Option {
	return func(s *Store) { s.limits = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithUserIDs(gen func() string) Option {
	return func(s *Store) { s.newUserID = gen }
}

// New builds a store from a loaded snapshot. A nil snapshot starts empty and a
// nil persister keeps state in memory only.
func New(snap *models.Snapshot, persist Persister, logger *zap.Logger, opts ...Option) *Store {
	if snap == nil {
		snap = models.NewSnapshot()
	}
	snap.Normalize()
	if persist == nil {
		persist = nopPersister{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{
		users:        make(map[string]models.User, len(snap.Users)),
		friends:      make(map[string][]string, len(snap.Friends)),
		messages:     make(map[string][]models.Message, len(snap.Messages)),
		persist:      persist,
		logger:       logger,
		limits:       DefaultLimits(),
		now:          time.Now,
		newUserID:    generateUserID,
		newMessageID: generateMessageID,
	}
	for _, opt := range opts {
		opt(s)
	}

	for id, u := range snap.Users {
		u.ID = id
		s.users[id] = u
	}
	for key, msgs := range snap.Messages {
		s.messages[key] = append([]models.Message(nil), msgs...)
	}
	s.loadFriends(snap.Friends)

	return s
}

// loadFriends copies adjacency lists and drops edges that break the friend
// invariants: unknown users, self edges, duplicates and one-sided edges.
func (s *Store) loadFriends(adj map[string][]string) {
	has := func(a, b string) bool {
		for _, id := range adj[a] {
			if id == b {
				return true
			}
		}
		return false
	}

	dropped := 0
	for owner, ids := range adj {
		if _, ok := s.users[owner]; !ok {
			dropped += len(ids)
			continue
		}
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			_, known := s.users[id]
			if !known || id == owner || seen[id] || !has(id, owner) {
				dropped++
				if known && id != owner && !has(id, owner) {
					if err := s.persist.RemoveFriendship(owner, id); err != nil {
						s.logger.Error("failed to drop one-sided friend edge", zap.String("owner", owner), zap.String("friend", id), zap.Error(err))
					}
				}
				continue
			}
			seen[id] = true
			s.friends[owner] = append(s.friends[owner], id)
		}
	}
	if dropped > 0 {
		s.logger.Warn("dropped invalid friend edges on load", zap.Int("count", dropped))
	}
}

// save runs a persistence call and logs its failure. The in-memory mutation
// stays in place either way.
func (s *Store) save(op string, fn func() error) {
	if err := fn(); err != nil {
		s.logger.Error("failed to persist mutation", zap.String("op", op), zap.Error(err))
	}
}

type Stats struct {
	Users         int
	Conversations int
	Messages      int
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Users: len(s.users), Conversations: len(s.messages)}
	for _, msgs := range s.messages {
		st.Messages += len(msgs)
	}
	return st
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := models.NewSnapshot()
	for id, u := range s.users {
		snap.Users[id] = u
	}
	for id, ids := range s.friends {
		snap.Friends[id] = append([]string(nil), ids...)
	}
	for key, msgs := range s.messages {
		snap.Messages[key] = append([]models.Message(nil), msgs...)
	}
	return snap
}

type nopPersister struct{}

func (nopPersister) SaveUser(models.User) error { return nil }
func (nopPersister) AddFriendship(string, string) error { return nil }
func (nopPersister) RemoveFriendship(string, string) error { return nil }
func (nopPersister) AppendMessage(string, models.Message) error { return nil }
