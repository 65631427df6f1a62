package store

import (
	"strings"
	"unicode/utf8"

	"zorssms/apperr"
	"zorssms/models"
)

// ConversationKey is the same for (a, b) and (b, a).
func ConversationKey(a, b string) string {
	return models.ConversationKey(a, b)
}

// Append stores a message from fromID to toID. Timestamps never go backwards
// within one conversation.
func (s *Store) Append(fromID, toID, text string) (models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return models.Message{}, apperr.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.limits.MaxMessageLength {
		return models.Message{}, apperr.ErrMessageTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[fromID]; !ok {
		return models.Message{}, apperr.ErrUserNotFound
	}
	if _, ok := s.users[toID]; !ok {
		return models.Message{}, apperr.ErrRecipientNotFound
	}

	key := ConversationKey(fromID, toID)
	log := s.messages[key]

	ts := s.now().UTC()
	if n := len(log); n > 0 && ts.Before(log[n-1].Timestamp) {
		ts = log[n-1].Timestamp
	}

	msg := models.Message{
		ID:        s.newMessageID(),
		FromID:    fromID,
		ToID:      toID,
		Text:      text,
		Timestamp: ts,
	}
	s.messages[key] = append(log, msg)
	s.save("append_message", func() error { return s.persist.AppendMessage(key, msg) })

	return msg, nil
}

// History returns the conversation between a and b in stored order.
func (s *Store) History(a, b string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.messages[ConversationKey(a, b)]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out
}
