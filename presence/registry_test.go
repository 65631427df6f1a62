package presence

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zorssms/models"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []models.Event
	fail   bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ev models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) received() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.events...)
}

func TestBindAndUnbind(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{id: "c1"}

	assert.Nil(t, r.Bind("alice", c))
	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, 1, r.Len())

	user, ok := r.Unbind(c)
	require.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.False(t, r.IsOnline("alice"))

	_, ok = r.Unbind(c)
	assert.False(t, ok)
}

func TestBind_LastConnectionWins(t *testing.T) {
	r := NewRegistry()
	first := &fakeConn{id: "c1"}
	second := &fakeConn{id: "c2"}

	r.Bind("alice", first)
	replaced := r.Bind("alice", second)
	assert.Equal(t, first, replaced)

	got, ok := r.Conn("alice")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID())

	// the stale connection closing must not take alice offline
	_, ok = r.Unbind(first)
	assert.False(t, ok)
	assert.True(t, r.IsOnline("alice"))

	user, ok := r.Unbind(second)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.False(t, r.IsOnline("alice"))
}

func TestBind_RebindingConnectionToAnotherUser(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{id: "c1"}

	r.Bind("alice", c)
	r.Bind("bob", c)

	assert.False(t, r.IsOnline("alice"))
	assert.True(t, r.IsOnline("bob"))
	assert.Equal(t, []string{"bob"}, r.Users())
}

func TestPublish(t *testing.T) {
	r := NewRegistry()
	alice := &fakeConn{id: "c1"}
	bob := &fakeConn{id: "c2", fail: true}
	r.Bind("alice", alice)
	r.Bind("bob", bob)

	ev := models.Event{Type: models.EventUserOnline}
	assert.True(t, r.Publish("alice", ev))
	assert.False(t, r.Publish("bob", ev))
	assert.False(t, r.Publish("carol", ev))

	n := r.PublishAll([]string{"alice", "bob", "carol"}, ev)
	assert.Equal(t, 1, n)
	assert.Len(t, alice.received(), 2)
	assert.Equal(t, []string{"alice", "bob"}, r.Users())
}
