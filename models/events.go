package models

// Event types pushed to realtime connections.
const (
	EventFriendsList         = "friendsList"
	EventMessageSent         = "messageSent"
	EventMessageReceived     = "messageReceived"
	EventFriendAdded         = "friendAdded"
	EventFriendRemoved       = "friendRemoved"
	EventUserOnline          = "userOnline"
	EventUserOffline         = "userOffline"
	EventFriendAvatarUpdated = "friendAvatarUpdated"
	EventUserTyping          = "userTyping"
	EventUserStopTyping      = "userStopTyping"
	EventError               = "error"
)

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ReceivedMessage struct {
	Message
	SenderName string `json:"senderName"`
}

type FriendAdded struct {
	FriendID     string `json:"friendId"`
	FriendName   string `json:"friendName"`
	FriendOnline bool   `json:"friendOnline"`
}

type FriendRemoved struct {
	FriendID string `json:"friendId"`
}

type Presence struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type AvatarUpdated struct {
	UserID   string `json:"userId"`
	Avatar   string `json:"avatar"`
	UserName string `json:"userName"`
}

type Typing struct {
	FromID string `json:"fromId"`
}

type ErrorEvent struct {
	Op      string `json:"op"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
