package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"zorssms/apperr"
	"zorssms/models"
	"zorssms/protocol"
	"zorssms/realtime"
)

// tcpConn is one line protocol client. Writes are serialized because events
// for the user arrive from other connections' goroutines.
type tcpConn struct {
	conn         net.Conn
	sess         *realtime.Session
	writeTimeout time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool
}

func (c *tcpConn) session() *realtime.Session { return c.sess }

func (c *tcpConn) kind() string { return "tcp" }

// Send encodes ev as a line. Events without a line form are skipped.
func (c *tcpConn) Send(ev models.Event) error {
	line, ok := protocol.FormatEvent(ev)
	if !ok {
		return nil
	}
	return c.write(line)
}

func (c *tcpConn) write(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return apperr.ErrConnectionClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("write failed", zap.Error(err))
		return err
	}
	return nil
}

func (c *tcpConn) reply(pktType string, fields ...string) {
	c.write(protocol.FormatFields(pktType, fields...))
}

func (c *tcpConn) ok(op string) {
	c.reply("ok", op)
}

func (c *tcpConn) fail(op, description string) {
	if op == "" {
		c.reply("fail", description)
		return
	}
	c.reply("fail", op, description)
}

func (c *tcpConn) failErr(op string, err error) {
	c.fail(op, apperr.MessageOf(err))
}

func (c *tcpConn) bye(reason, details string) {
	var fields []string
	if reason != "" {
		fields = append(fields, reason)
		if details != "" {
			fields = append(fields, details)
		}
	}
	c.reply("bye", fields...)
	c.close()
}

func (c *tcpConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}

func (s *Server) handleConnection(nc net.Conn) {
	c := &tcpConn{
		conn:         nc,
		writeTimeout: s.config.WriteTimeout,
	}
	c.sess = realtime.NewSession(c)
	c.logger = s.logger.With(zap.String("conn", c.sess.ID()), zap.String("remote", nc.RemoteAddr().String()))

	s.track(c)
	c.logger.Info("client connected", zap.String("transport", "tcp"))

	defer func() {
		s.untrack(c)
		s.router.Disconnect(c.sess)
		c.close()
		c.logger.Info("client disconnected", zap.String("user", c.sess.UserID()))
	}()

	scanner := bufio.NewScanner(nc)
	scanner.Buffer(make([]byte, 0, min(4096, s.config.MaxLineBytes)), s.config.MaxLineBytes)
	for {
		nc.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		if !scanner.Scan() {
			err := scanner.Err()
			var netErr net.Error
			switch {
			case err == nil:
				// EOF
			case errors.Is(err, bufio.ErrTooLong):
				c.logger.Warn("line too long", zap.Int("limit", s.config.MaxLineBytes))
				c.bye("error", "line too long")
			case errors.As(err, &netErr) && netErr.Timeout():
				c.logger.Info("idle timeout")
				c.bye("timeout", "")
			case !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe):
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pkt, err := protocol.ParsePacket(line)
		if err != nil {
			c.logger.Debug("parse error", zap.Error(err), zap.String("line", line))
			c.fail("", "invalid packet format")
			continue
		}

		if !s.handlePacket(c, pkt) {
			return
		}
	}
}
