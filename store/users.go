package store

import (
	"strings"
	"unicode/utf8"

	"zorssms/apperr"
	"zorssms/models"
)

// Register creates a user with a fresh id and empty profile.
func (s *Store) Register(displayName string) (models.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return models.User{}, apperr.ErrEmptyName
	}
	if utf8.RuneCountInString(name) > s.limits.MaxNameLength {
		return models.User{}, apperr.ErrNameTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := ""
	for i := 0; i < maxIDAttempts; i++ {
		candidate := s.newUserID()
		if _, taken := s.users[candidate]; !taken && candidate != "" {
			id = candidate
			break
		}
	}
	if id == "" {
		return models.User{}, apperr.Internal("could not allocate a user id")
	}

	user := models.User{
		ID:        id,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	s.users[id] = user
	s.save("register", func() error { return s.persist.SaveUser(user) })

	return user, nil
}

func (s *Store) Get(id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

func (s *Store) UpdateBio(id, bio string) (models.User, error) {
	if utf8.RuneCountInString(bio) > s.limits.MaxBioLength {
		return models.User{}, apperr.ErrBioTooLong
	}
	return s.updateUser(id, "update_bio", func(u *models.User) { u.Bio = bio })
}

// UpdateAvatar replaces the avatar blob. Friends are notified by the caller.
func (s *Store) UpdateAvatar(id, avatar string) (models.User, error) {
	if len(avatar) > s.limits.MaxAvatarBytes {
		return models.User{}, apperr.ErrAvatarTooLarge
	}
	return s.updateUser(id, "update_avatar", func(u *models.User) { u.Avatar = avatar })
}

func (s *Store) updateUser(id, op string, mutate func(*models.User)) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.ErrUserNotFound
	}
	mutate(&user)
	s.users[id] = user
	s.save(op, func() error { return s.persist.SaveUser(user) })

	return user, nil
}
