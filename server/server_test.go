package server

import (
	"bufio"
	"net"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zorssms/models"
	"zorssms/presence"
	"zorssms/realtime"
	"zorssms/store"
)

// setupTestServer creates a server over an empty in-memory store
func setupTestServer(t *testing.T, tweak ...func(*ServerConfig)) (*Server, *store.Store) {
	t.Helper()

	limits := store.DefaultLimits()
	limits.MaxAvatarBytes = 64 << 10
	st := store.New(nil, nil, nil, store.WithLimits(limits))
	router := realtime.NewRouter(st, presence.NewRegistry(), nil)

	config := &ServerConfig{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   2 * time.Second,
		MaxAvatarBytes: limits.MaxAvatarBytes,
	}
	for _, fn := range tweak {
		fn(config)
	}

	return New(router, config, nil), st
}

func registerUser(t *testing.T, st *store.Store, name string) models.User {
	t.Helper()
	u, err := st.Register(name)
	require.NoError(t, err)
	return u
}

// testClient is the client end of a net.Pipe served by handleConnection
type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func connect(t *testing.T, srv *Server) *testClient {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	go srv.handleConnection(serverConn)
	t.Cleanup(func() { clientConn.Close() })

	return &testClient{conn: clientConn, reader: bufio.NewReader(clientConn)}
}

func (c *testClient) send(t *testing.T, request string) {
	t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := c.conn.Write([]byte(request + "\n"))
	require.NoError(t, err)
}

func (c *testClient) read(t *testing.T) string {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.reader.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}

func (c *testClient) identify(t *testing.T, userID string) string {
	t.Helper()
	c.send(t, "identify|"+userID)
	list := c.read(t)
	require.Equal(t, "ok|identify", c.read(t))
	return list
}

func TestPing(t *testing.T) {
	srv, _ := setupTestServer(t)
	client := connect(t, srv)

	client.send(t, "ping")
	assert.Equal(t, "pong", client.read(t))
}

func TestUnknownPacket(t *testing.T) {
	srv, _ := setupTestServer(t)
	client := connect(t, srv)

	client.send(t, "reg|someone|secret")
	assert.Equal(t, "fail|unknown packet type", client.read(t))

	client.send(t, "")
	client.send(t, "ping")
	assert.Equal(t, "pong", client.read(t))
}

func TestHelp(t *testing.T) {
	srv, _ := setupTestServer(t)
	client := connect(t, srv)

	client.send(t, "help")
	assert.Equal(t, "help|ping,identify,msg,typing,stoptyping,hist,list,bye,help", client.read(t))
}

func TestIdentify(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	client := connect(t, srv)

	client.send(t, "identify")
	assert.Equal(t, "fail|identify|user id required", client.read(t))

	client.send(t, "identify|USER_NOBODY00")
	assert.Equal(t, "fail|identify|user not found", client.read(t))

	assert.Equal(t, "list|", client.identify(t, alice.ID))
	assert.True(t, srv.router.Presence().IsOnline(alice.ID))
}

func TestCommandsRequireIdentify(t *testing.T) {
	srv, st := setupTestServer(t)
	bob := registerUser(t, st, "Bob")
	client := connect(t, srv)

	client.send(t, "msg|"+bob.ID+"|hello")
	assert.Equal(t, "fail|msg|connection is not identified", client.read(t))

	client.send(t, "hist|"+bob.ID)
	assert.Equal(t, "fail|hist|connection is not identified", client.read(t))

	client.send(t, "list")
	assert.Equal(t, "fail|list|connection is not identified", client.read(t))

	// typing is dropped silently
	client.send(t, "typing|"+bob.ID)
	client.send(t, "ping")
	assert.Equal(t, "pong", client.read(t))
}

func TestConversation(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	bob := registerUser(t, st, "Bob")
	_, _, err := st.AddFriend(alice.ID, bob.ID)
	require.NoError(t, err)

	a := connect(t, srv)
	b := connect(t, srv)

	assert.Equal(t, "list|"+bob.ID+"|Bob|off", a.identify(t, alice.ID))

	// friends hear about Bob before Bob gets his own list
	b.send(t, "identify|"+bob.ID)
	assert.Equal(t, "on|"+bob.ID+"|Bob", a.read(t))
	assert.Equal(t, "list|"+alice.ID+"|Alice|on", b.read(t))
	assert.Equal(t, "ok|identify", b.read(t))

	a.send(t, "msg|"+bob.ID+"|hello, bob")
	received := b.read(t)
	assert.True(t, strings.HasPrefix(received, "msg|MSG_"), received)
	assert.Contains(t, received, "|"+alice.ID+"|Alice|hello\\, bob|")
	sent := a.read(t)
	assert.True(t, strings.HasPrefix(sent, "sent|MSG_"), sent)
	assert.Contains(t, sent, "|"+bob.ID+"|hello\\, bob|")

	a.send(t, "msg|"+bob.ID+"|")
	assert.Equal(t, "fail|msg|message text cannot be empty", a.read(t))

	a.send(t, "msg|USER_NOBODY00|hi")
	assert.Equal(t, "fail|msg|recipient not found", a.read(t))

	b.send(t, "typing|"+alice.ID)
	assert.Equal(t, "typing|"+bob.ID, a.read(t))
	b.send(t, "stoptyping|"+alice.ID)
	assert.Equal(t, "stoptyping|"+bob.ID, a.read(t))

	b.send(t, "hist|"+alice.ID)
	hist := b.read(t)
	assert.True(t, strings.HasPrefix(hist, "hist|"+alice.ID+"|msg|MSG_"), hist)
	assert.Contains(t, hist, "|"+alice.ID+"|"+bob.ID+"|hello\\, bob|")

	b.send(t, "hist|USER_NOBODY00")
	assert.Equal(t, "fail|hist|user not found", b.read(t))

	a.send(t, "list")
	assert.Equal(t, "list|"+bob.ID+"|Bob|on", a.read(t))

	b.send(t, "bye")
	assert.Equal(t, "bye", b.read(t))
	assert.Equal(t, "off|"+bob.ID+"|Bob", a.read(t))

	assert.Eventually(t, func() bool {
		return !srv.router.Presence().IsOnline(bob.ID)
	}, time.Second, 10*time.Millisecond)
}

func TestFriendEventsReachLineClients(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	bob := registerUser(t, st, "Bob")

	a := connect(t, srv)
	a.identify(t, alice.ID)

	done := make(chan error, 1)
	go func() { done <- srv.router.AddFriend(bob.ID, alice.ID) }()
	assert.Equal(t, "fadd|"+bob.ID+"|Bob|off", a.read(t))
	require.NoError(t, <-done)

	go func() { done <- srv.router.RemoveFriend(bob.ID, alice.ID) }()
	assert.Equal(t, "fdel|"+bob.ID, a.read(t))
	require.NoError(t, <-done)
}

func TestIdleTimeout(t *testing.T) {
	srv, _ := setupTestServer(t, func(c *ServerConfig) { c.ReadTimeout = 100 * time.Millisecond })
	client := connect(t, srv)

	assert.Equal(t, "bye|timeout", client.read(t))
}

func TestShutdown(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	client := connect(t, srv)
	client.identify(t, alice.ID)

	done := make(chan struct{})
	go func() {
		srv.Shutdown("maintenance", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
		close(done)
	}()

	assert.Equal(t, "bye|maintenance|2030-01-01T00:00:00Z", client.read(t))
	<-done
	assert.False(t, srv.router.Presence().IsOnline(alice.ID))
}

func TestGetStats(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	client := connect(t, srv)
	client.identify(t, alice.ID)

	stats := srv.GetStats()
	assert.Contains(t, stats, "connections=1")
	assert.Contains(t, stats, "tcp=1")
	assert.Contains(t, stats, "online="+alice.ID)
	assert.Contains(t, stats, "users=1")
}

func TestMessageTextKeepsBareSeparators(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	bob := registerUser(t, st, "Bob")

	client := connect(t, srv)
	client.identify(t, alice.ID)

	client.send(t, "msg|"+bob.ID+"|price: 5|10 dollars")
	sent := client.read(t)
	assert.Contains(t, sent, "|"+bob.ID+"|price: 5\\|10 dollars|")

	history := st.History(alice.ID, bob.ID)
	require.Len(t, history, 1)
	assert.Equal(t, "price: 5|10 dollars", history[0].Text)
}

func TestOversizedLineIsRejected(t *testing.T) {
	srv, _ := setupTestServer(t, func(c *ServerConfig) { c.MaxLineBytes = 1024 })
	client := connect(t, srv)

	go func() {
		// the server hangs up mid-write
		client.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		client.conn.Write([]byte(strings.Repeat("x", 64<<10) + "\n"))
	}()

	assert.Equal(t, "bye|error|line too long", client.read(t))

	client.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err := client.reader.ReadString('\n')
	assert.Error(t, err)
}

func TestLongestMessageFitsDefaultLineLimit(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	bob := registerUser(t, st, "Bob")

	client := connect(t, srv)
	client.identify(t, alice.ID)

	text := strings.Repeat("ж|", store.DefaultLimits().MaxMessageLength/2)
	client.send(t, "msg|"+bob.ID+"|"+text)
	assert.True(t, strings.HasPrefix(client.read(t), "sent|MSG_"))
	assert.Equal(t, text, st.History(alice.ID, bob.ID)[0].Text)
}

func TestGetStats_OnlineUsersSorted(t *testing.T) {
	srv, st := setupTestServer(t)
	alice := registerUser(t, st, "Alice")
	bob := registerUser(t, st, "Bob")

	connect(t, srv).identify(t, bob.ID)
	connect(t, srv).identify(t, alice.ID)

	ids := []string{alice.ID, bob.ID}
	sort.Strings(ids)
	assert.Contains(t, srv.GetStats(), ",online="+strings.Join(ids, ";")+",")
}
