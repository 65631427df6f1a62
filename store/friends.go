package store

import (
	"zorssms/apperr"
	"zorssms/models"
)

// AddFriend inserts a symmetric edge and returns both endpoints.
func (s *Store) AddFriend(requesterID, targetID string) (requester, target models.User, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requester, ok := s.users[requesterID]
	if !ok {
		return models.User{}, models.User{}, apperr.ErrRequesterNotFound
	}
	target, ok = s.users[targetID]
	if !ok {
		return models.User{}, models.User{}, apperr.ErrTargetNotFound
	}
	if requesterID == targetID {
		return models.User{}, models.User{}, apperr.ErrSelfFriend
	}
	if s.hasEdge(requesterID, targetID) {
		return models.User{}, models.User{}, apperr.ErrAlreadyFriends
	}

	s.friends[requesterID] = append(s.friends[requesterID], targetID)
	if !s.hasEdge(targetID, requesterID) {
		s.friends[targetID] = append(s.friends[targetID], requesterID)
	}
	s.save("add_friend", func() error { return s.persist.AddFriendship(requesterID, targetID) })

	return requester, target, nil
}

// RemoveFriend drops the edge on both sides. Removing an edge that does not
// exist is a no-op; removed reports whether anything changed.
func (s *Store) RemoveFriend(requesterID, targetID string) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[requesterID]; !ok {
		return false, apperr.ErrRequesterNotFound
	}

	removed = s.dropEdge(requesterID, targetID)
	if s.dropEdge(targetID, requesterID) {
		removed = true
	}
	if removed {
		s.save("remove_friend", func() error { return s.persist.RemoveFriendship(requesterID, targetID) })
	}
	return removed, nil
}

// FriendIDs returns the friend ids of userID in edge insertion order.
func (s *Store) FriendIDs(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.friends[userID]...)
}

// Friends returns the friends of userID in edge insertion order.
func (s *Store) Friends(userID string) []models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.friends[userID]
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *Store) AreFriends(a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasEdge(a, b)
}

func (s *Store) hasEdge(owner, friend string) bool {
	for _, id := range s.friends[owner] {
		if id == friend {
			return true
		}
	}
	return false
}

func (s *Store) dropEdge(owner, friend string) bool {
	ids := s.friends[owner]
	for i, id := range ids {
		if id == friend {
			s.friends[owner] = append(ids[:i:i], ids[i+1:]...)
			return true
		}
	}
	return false
}
