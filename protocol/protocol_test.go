package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zorssms/models"
)

func TestEscapeUnescape(t *testing.T) {
	cases := []string{
		"plain",
		"a|b",
		"one, two",
		`back\slash`,
		"multi\nline\r\n",
		`\|,` + "\n",
		"",
	}
	for _, s := range cases {
		assert.Equal(t, s, Unescape(Escape(s)), "round trip of %q", s)
	}
	assert.Equal(t, `a\|b\,c\\d\n`, Escape("a|b,c\\d\n"))
	assert.Equal(t, `keep\x`, Unescape(`keep\x`))
	assert.Equal(t, `tail\`, Unescape(`tail\`))
}

func TestParsePacket(t *testing.T) {
	t.Run("type only", func(t *testing.T) {
		pkt, err := ParsePacket("ping\n")
		require.NoError(t, err)
		assert.Equal(t, "ping", pkt.Type)
		assert.Empty(t, pkt.Destination)
		assert.Empty(t, pkt.Content)
	})

	t.Run("type and content", func(t *testing.T) {
		pkt, err := ParsePacket("identify|USER_A\r\n")
		require.NoError(t, err)
		assert.Equal(t, "identify", pkt.Type)
		assert.Equal(t, "USER_A", pkt.Content)
	})

	t.Run("destination and escaped content", func(t *testing.T) {
		pkt, err := ParsePacket(`msg|USER_B|Hello\, World\|!` + "\n")
		require.NoError(t, err)
		assert.Equal(t, "msg", pkt.Type)
		assert.Equal(t, "USER_B", pkt.Destination)
		assert.Equal(t, "Hello, World|!", pkt.Content)
	})

	t.Run("bare separators stay in content", func(t *testing.T) {
		pkt, err := ParsePacket(`msg|USER_B|price: 5|10 dollars\, each|` + "\n")
		require.NoError(t, err)
		assert.Equal(t, "USER_B", pkt.Destination)
		assert.Equal(t, "price: 5|10 dollars, each|", pkt.Content)
	})

	t.Run("empty line", func(t *testing.T) {
		_, err := ParsePacket("\n")
		assert.ErrorIs(t, err, ErrInvalidPacket)
	})
}

func TestFormatFields(t *testing.T) {
	assert.Equal(t, "pong\n", FormatFields("pong"))
	assert.Equal(t, "fail|msg|bad\\|input\n", FormatFields("fail", "msg", "bad|input"))
	assert.Equal(t, "ok||x\n", FormatFields("ok", "", "x"))
}

func TestFormatRawList(t *testing.T) {
	items := []string{Record("USER_A", "Al|ce", "on"), Record("USER_B", "Bob", "off")}
	assert.Equal(t, "list|USER_A|Al\\|ce|on,USER_B|Bob|off\n", FormatRawList("list", nil, items))
	assert.Equal(t, "hist|USER_B|\n", FormatRawList("hist", []string{"USER_B"}, nil))
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := models.Message{ID: "MSG_1", FromID: "USER_A", ToID: "USER_B", Text: "hi, there", Timestamp: ts}

	cases := []struct {
		name string
		ev   models.Event
		want string
	}{
		{
			name: "friends list",
			ev: models.Event{Type: models.EventFriendsList, Data: []models.Friend{
				{User: models.User{ID: "USER_B", Name: "Bob"}, Online: true},
				{User: models.User{ID: "USER_C", Name: "Carol"}},
			}},
			want: "list|USER_B|Bob|on,USER_C|Carol|off\n",
		},
		{
			name: "empty friends list",
			ev:   models.Event{Type: models.EventFriendsList, Data: []models.Friend{}},
			want: "list|\n",
		},
		{
			name: "message received",
			ev:   models.Event{Type: models.EventMessageReceived, Data: models.ReceivedMessage{Message: msg, SenderName: "Alice"}},
			want: "msg|MSG_1|USER_A|Alice|hi\\, there|2024-05-01T12:00:00Z\n",
		},
		{
			name: "message sent",
			ev:   models.Event{Type: models.EventMessageSent, Data: msg},
			want: "sent|MSG_1|USER_B|hi\\, there|2024-05-01T12:00:00Z\n",
		},
		{
			name: "online",
			ev:   models.Event{Type: models.EventUserOnline, Data: models.Presence{UserID: "USER_A", UserName: "Alice"}},
			want: "on|USER_A|Alice\n",
		},
		{
			name: "offline",
			ev:   models.Event{Type: models.EventUserOffline, Data: models.Presence{UserID: "USER_A", UserName: "Alice"}},
			want: "off|USER_A|Alice\n",
		},
		{
			name: "friend added",
			ev:   models.Event{Type: models.EventFriendAdded, Data: models.FriendAdded{FriendID: "USER_B", FriendName: "Bob"}},
			want: "fadd|USER_B|Bob|off\n",
		},
		{
			name: "friend removed",
			ev:   models.Event{Type: models.EventFriendRemoved, Data: models.FriendRemoved{FriendID: "USER_B"}},
			want: "fdel|USER_B\n",
		},
		{
			name: "avatar",
			ev:   models.Event{Type: models.EventFriendAvatarUpdated, Data: models.AvatarUpdated{UserID: "USER_A", UserName: "Alice", Avatar: "data:image/png;base64,AA=="}},
			want: "avatar|USER_A|Alice|data:image/png;base64\\,AA==\n",
		},
		{
			name: "typing",
			ev:   models.Event{Type: models.EventUserTyping, Data: models.Typing{FromID: "USER_A"}},
			want: "typing|USER_A\n",
		},
		{
			name: "stop typing",
			ev:   models.Event{Type: models.EventUserStopTyping, Data: models.Typing{FromID: "USER_A"}},
			want: "stoptyping|USER_A\n",
		},
		{
			name: "error",
			ev:   models.Event{Type: models.EventError, Data: models.ErrorEvent{Op: "msg", Code: "NOT_FOUND", Message: "recipient not found"}},
			want: "fail|msg|recipient not found\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, ok := FormatEvent(tc.ev)
			require.True(t, ok)
			assert.Equal(t, tc.want, line)
		})
	}

	_, ok := FormatEvent(models.Event{Type: "unknown", Data: 42})
	assert.False(t, ok)
}

func TestMessageRecord(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 500, time.UTC)
	rec := MessageRecord(models.Message{ID: "MSG_1", FromID: "USER_A", ToID: "USER_B", Text: "a|b", Timestamp: ts})
	assert.Equal(t, "msg|MSG_1|USER_A|USER_B|a\\|b|2024-05-01T12:00:00.0000005Z", rec)
}
