package protocol

import (
	"time"

	"zorssms/models"
)

const TimeFormat = time.RFC3339Nano

// Line packet types for server pushed events.
const (
	TypeList       = "list"
	TypeMsg        = "msg"
	TypeSent       = "sent"
	TypeOn         = "on"
	TypeOff        = "off"
	TypeFriendAdd  = "fadd"
	TypeFriendDel  = "fdel"
	TypeAvatar     = "avatar"
	TypeTyping     = "typing"
	TypeStopTyping = "stoptyping"
	TypeFail       = "fail"
	TypeHistory    = "hist"
)

const (
	statusOnline  = "on"
	statusOffline = "off"
)

func onOff(online bool) string {
	if online {
		return statusOnline
	}
	return statusOffline
}

// FriendRecord is one friend in a list packet: id|name|on.
func FriendRecord(f models.Friend) string {
	return Record(f.ID, f.Name, onOff(f.Online))
}

// MessageRecord is one message in a hist packet: msg|id|from|to|text|timestamp.
func MessageRecord(m models.Message) string {
	return Record(TypeMsg, m.ID, m.FromID, m.ToID, m.Text, m.Timestamp.Format(TimeFormat))
}

// FormatEvent encodes ev as a single line. ok is false for events the line
// protocol does not carry.
func FormatEvent(ev models.Event) (line string, ok bool) {
	switch data := ev.Data.(type) {
	case []models.Friend:
		items := make([]string, 0, len(data))
		for _, f := range data {
			items = append(items, FriendRecord(f))
		}
		return FormatRawList(TypeList, nil, items), true

	case models.ReceivedMessage:
		return FormatFields(TypeMsg, data.ID, data.FromID, data.SenderName, data.Text, data.Timestamp.Format(TimeFormat)), true

	case models.Message:
		return FormatFields(TypeSent, data.ID, data.ToID, data.Text, data.Timestamp.Format(TimeFormat)), true

	case models.Presence:
		switch ev.Type {
		case models.EventUserOnline:
			return FormatFields(TypeOn, data.UserID, data.UserName), true
		case models.EventUserOffline:
			return FormatFields(TypeOff, data.UserID, data.UserName), true
		}

	case models.FriendAdded:
		return FormatFields(TypeFriendAdd, data.FriendID, data.FriendName, onOff(data.FriendOnline)), true

	case models.FriendRemoved:
		return FormatFields(TypeFriendDel, data.FriendID), true

	case models.AvatarUpdated:
		return FormatFields(TypeAvatar, data.UserID, data.UserName, data.Avatar), true

	case models.Typing:
		switch ev.Type {
		case models.EventUserTyping:
			return FormatFields(TypeTyping, data.FromID), true
		case models.EventUserStopTyping:
			return FormatFields(TypeStopTyping, data.FromID), true
		}

	case models.ErrorEvent:
		return FormatFields(TypeFail, data.Op, data.Message), true
	}
	return "", false
}
