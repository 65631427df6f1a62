package server

import (
	"strings"

	"go.uber.org/zap"

	"zorssms/apperr"
	"zorssms/models"
	"zorssms/protocol"
	"zorssms/realtime"
)

// handlePacket dispatches one inbound line. It returns false when the
// connection should end.
func (s *Server) handlePacket(c *tcpConn, pkt *protocol.Packet) bool {
	switch pkt.Type {
	case "ping":
		c.reply("pong")
	case "identify":
		s.handleIdentify(c, pkt)
	case "msg":
		s.handleMessage(c, pkt)
	case "typing":
		s.handleTyping(c, pkt, true)
	case "stoptyping":
		s.handleTyping(c, pkt, false)
	case "hist":
		s.handleHistory(c, pkt)
	case "list":
		s.handleList(c)
	case "bye":
		s.handleBye(c)
		return false
	case "help":
		s.handleHelp(c)
	default:
		c.fail("", "unknown packet type")
	}
	return true
}

// target returns the single user id argument of TYPE|id or TYPE|id|...
func target(pkt *protocol.Packet) string {
	if pkt.Destination != "" {
		return pkt.Destination
	}
	return pkt.Content
}

func (s *Server) handleIdentify(c *tcpConn, pkt *protocol.Packet) {
	userID := target(pkt)
	if userID == "" {
		c.fail("identify", "user id required")
		return
	}

	if err := s.router.Identify(c.sess, userID); err != nil {
		c.logger.Info("identify rejected", zap.String("user", userID), zap.Error(err))
		c.failErr("identify", err)
		return
	}
	c.ok("identify")
}

// handleMessage handles msg|toId|text. The stored message is confirmed with a
// sent line rather than ok.
func (s *Server) handleMessage(c *tcpConn, pkt *protocol.Packet) {
	toID, text := pkt.Destination, pkt.Content
	if toID == "" {
		toID, text = pkt.Content, ""
	}
	if toID == "" {
		c.fail("msg", "recipient required")
		return
	}

	if _, err := s.router.SendMessage(c.sess, "", toID, text); err != nil {
		c.failErr("msg", err)
	}
}

func (s *Server) handleTyping(c *tcpConn, pkt *protocol.Packet, active bool) {
	s.router.Typing(c.sess, "", target(pkt), active)
}

// handleHistory answers hist|friendId with hist|friendId|msg|id|from|to|text|ts,...
func (s *Server) handleHistory(c *tcpConn, pkt *protocol.Packet) {
	if c.sess.State() != realtime.Identified {
		c.failErr("hist", apperr.ErrNotIdentified)
		return
	}

	friendID := target(pkt)
	if friendID == "" {
		c.fail("hist", "user id required")
		return
	}
	st := s.router.Store()
	if !st.Exists(friendID) {
		c.failErr("hist", apperr.ErrUserNotFound)
		return
	}

	history := st.History(c.sess.UserID(), friendID)
	items := make([]string, 0, len(history))
	for _, m := range history {
		items = append(items, protocol.MessageRecord(m))
	}
	c.write(protocol.FormatRawList(protocol.TypeHistory, []string{friendID}, items))
}

func (s *Server) handleList(c *tcpConn) {
	if c.sess.State() != realtime.Identified {
		c.failErr("list", apperr.ErrNotIdentified)
		return
	}
	c.Send(models.Event{Type: models.EventFriendsList, Data: s.router.ListFriends(c.sess.UserID())})
}

func (s *Server) handleBye(c *tcpConn) {
	c.reply("bye")
	c.logger.Info("client said bye", zap.String("user", c.sess.UserID()))
}

func (s *Server) handleHelp(c *tcpConn) {
	commands := []string{
		"ping",
		"identify",
		"msg",
		"typing",
		"stoptyping",
		"hist",
		"list",
		"bye",
		"help",
	}
	c.write(protocol.FormatRawList("help", nil, []string{strings.Join(commands, ",")}))
}
