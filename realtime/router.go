// Package realtime binds connections to users and fans domain events out to
// the online friends they concern.
package realtime

import (
	"go.uber.org/zap"

	"zorssms/apperr"
	"zorssms/models"
	"zorssms/presence"
	"zorssms/store"
)

type Router struct {
	store    *store.Store
	presence *presence.Registry
	logger   *zap.Logger
}

func NewRouter(st *store.Store, reg *presence.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{store: st, presence: reg, logger: logger}
}

func (r *Router) Store() *store.Store { return r.store }

func (r *Router) Presence() *presence.Registry { return r.presence }

// Identify binds s to userID, announces the user to online friends and sends
// the friend list back to s.
func (r *Router) Identify(s *Session, userID string) error {
	user, err := r.store.Get(userID)
	if err != nil {
		return err
	}

	state, current := s.identity()
	switch {
	case state == Closed:
		return apperr.ErrConnectionClosed
	case state == Identified && current != userID:
		return apperr.ErrAlreadyIdentified
	}

	if !s.bind(userID) {
		return apperr.ErrConnectionClosed
	}
	replaced := r.presence.Bind(userID, s)
	if s.State() == Closed {
		// Disconnect ran between bind and Bind
		r.presence.Unbind(s)
		return apperr.ErrConnectionClosed
	}
	if replaced != nil {
		r.logger.Info("connection replaced", zap.String("user", userID), zap.String("old_conn", replaced.ID()), zap.String("conn", s.ID()))
	}

	if state == Unidentified {
		r.presence.PublishAll(r.store.FriendIDs(userID), models.Event{
			Type: models.EventUserOnline,
			Data: models.Presence{UserID: user.ID, UserName: user.Name},
		})
		r.logger.Info("user online", zap.String("user", userID), zap.String("name", user.Name), zap.String("conn", s.ID()))
	}

	r.send(s, models.Event{Type: models.EventFriendsList, Data: r.ListFriends(userID)})
	return nil
}

// SendMessage stores a message from the session's user and routes it. fromID
// may be empty, in which case the bound user is the sender.
func (r *Router) SendMessage(s *Session, fromID, toID, text string) (models.Message, error) {
	state, bound := s.identity()
	if state != Identified {
		return models.Message{}, apperr.ErrNotIdentified
	}
	if fromID != "" && fromID != bound {
		r.logger.Warn("rejected message with foreign sender", zap.String("user", bound), zap.String("from", fromID))
		return models.Message{}, apperr.ErrSenderMismatch
	}

	msg, err := r.store.Append(bound, toID, text)
	if err != nil {
		return models.Message{}, err
	}

	sender, err := r.store.Get(bound)
	if err == nil {
		r.presence.Publish(toID, models.Event{
			Type: models.EventMessageReceived,
			Data: models.ReceivedMessage{Message: msg, SenderName: sender.Name},
		})
	}
	r.send(s, models.Event{Type: models.EventMessageSent, Data: msg})

	r.logger.Debug("message routed", zap.String("from", bound), zap.String("to", toID), zap.String("id", msg.ID))
	return msg, nil
}

// Typing forwards a typing notification. It never fails; notifications for
// offline recipients or from a foreign sender are dropped.
func (r *Router) Typing(s *Session, fromID, toID string, active bool) {
	state, bound := s.identity()
	if state != Identified || (fromID != "" && fromID != bound) {
		return
	}

	evType := models.EventUserStopTyping
	if active {
		evType = models.EventUserTyping
	}
	r.presence.Publish(toID, models.Event{Type: evType, Data: models.Typing{FromID: bound}})
}

// Disconnect closes s. If s still owns its user's presence entry the user goes
// offline and online friends are told.
func (r *Router) Disconnect(s *Session) {
	if !s.close() {
		return
	}

	userID, ok := r.presence.Unbind(s)
	if !ok {
		return
	}

	r.announceOffline(userID, s.ID())
}

// announceOffline tells online friends that userID left, unless a newer
// connection identified as userID in the meantime.
func (r *Router) announceOffline(userID, connID string) {
	if r.presence.IsOnline(userID) {
		r.logger.Debug("offline skipped, user reconnected", zap.String("user", userID), zap.String("conn", connID))
		return
	}

	name := ""
	if user, err := r.store.Get(userID); err == nil {
		name = user.Name
	}
	r.presence.PublishAll(r.store.FriendIDs(userID), models.Event{
		Type: models.EventUserOffline,
		Data: models.Presence{UserID: userID, UserName: name},
	})
	r.logger.Info("user offline", zap.String("user", userID), zap.String("name", name), zap.String("conn", connID))
}

// Fail reports err to s as an error event.
func (r *Router) Fail(s *Session, op string, err error) {
	r.send(s, models.Event{
		Type: models.EventError,
		Data: models.ErrorEvent{Op: op, Code: string(apperr.CodeOf(err)), Message: apperr.MessageOf(err)},
	})
}

func (r *Router) send(s *Session, ev models.Event) {
	if err := s.Send(ev); err != nil {
		r.logger.Debug("dropped event", zap.String("conn", s.ID()), zap.String("type", ev.Type), zap.Error(err))
	}
}
