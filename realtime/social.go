package realtime

import (
	"go.uber.org/zap"

	"zorssms/models"
)

// GetUser returns a user with its current online flag.
func (r *Router) GetUser(id string) (models.Friend, error) {
	user, err := r.store.Get(id)
	if err != nil {
		return models.Friend{}, err
	}
	return models.Friend{User: user, Online: r.presence.IsOnline(id)}, nil
}

// ListFriends returns the friends of userID in insertion order with their
// online flag probed now.
func (r *Router) ListFriends(userID string) []models.Friend {
	friends := r.store.Friends(userID)
	out := make([]models.Friend, 0, len(friends))
	for _, u := range friends {
		out = append(out, models.Friend{User: u, Online: r.presence.IsOnline(u.ID)})
	}
	return out
}

// AddFriend creates the edge and tells both endpoints about each other.
func (r *Router) AddFriend(requesterID, targetID string) error {
	requester, target, err := r.store.AddFriend(requesterID, targetID)
	if err != nil {
		return err
	}

	r.presence.Publish(requesterID, models.Event{
		Type: models.EventFriendAdded,
		Data: models.FriendAdded{FriendID: target.ID, FriendName: target.Name, FriendOnline: r.presence.IsOnline(target.ID)},
	})
	r.presence.Publish(targetID, models.Event{
		Type: models.EventFriendAdded,
		Data: models.FriendAdded{FriendID: requester.ID, FriendName: requester.Name, FriendOnline: r.presence.IsOnline(requester.ID)},
	})

	r.logger.Info("friend added", zap.String("user", requesterID), zap.String("friend", targetID))
	return nil
}

// RemoveFriend drops the edge on both sides. The requester is always told;
// the other side only when an edge existed.
func (r *Router) RemoveFriend(requesterID, targetID string) error {
	removed, err := r.store.RemoveFriend(requesterID, targetID)
	if err != nil {
		return err
	}

	r.presence.Publish(requesterID, models.Event{
		Type: models.EventFriendRemoved,
		Data: models.FriendRemoved{FriendID: targetID},
	})
	if removed {
		r.presence.Publish(targetID, models.Event{
			Type: models.EventFriendRemoved,
			Data: models.FriendRemoved{FriendID: requesterID},
		})
		r.logger.Info("friend removed", zap.String("user", requesterID), zap.String("friend", targetID))
	}
	return nil
}

// UpdateAvatar stores the avatar and pushes it to online friends.
func (r *Router) UpdateAvatar(userID, avatar string) (models.User, error) {
	user, err := r.store.UpdateAvatar(userID, avatar)
	if err != nil {
		return models.User{}, err
	}
	r.AvatarChanged(user)
	return user, nil
}

func (r *Router) AvatarChanged(user models.User) {
	n := r.presence.PublishAll(r.store.FriendIDs(user.ID), models.Event{
		Type: models.EventFriendAvatarUpdated,
		Data: models.AvatarUpdated{UserID: user.ID, Avatar: user.Avatar, UserName: user.Name},
	})
	r.logger.Debug("avatar fan-out", zap.String("user", user.ID), zap.Int("delivered", n))
}
