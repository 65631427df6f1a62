package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"zorssms/apperr"
	"zorssms/models"
	"zorssms/realtime"
)

const (
	wsSendBuffer   = 64
	wsPingInterval = 25 * time.Second
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errUnknownEvent   = apperr.Validation("unknown event type")
)

// inbound is a client to server websocket frame.
type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type messagePayload struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Text   string `json:"text"`
}

// wsConn is one websocket client. Events are queued on send and written by
// writeLoop; a full queue drops the event.
type wsConn struct {
	conn         *websocket.Conn
	sess         *realtime.Session
	send         chan models.Event
	writeTimeout time.Duration
	logger       *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *wsConn) session() *realtime.Session { return c.sess }

func (c *wsConn) kind() string { return "ws" }

func (c *wsConn) Send(ev models.Event) error {
	select {
	case <-c.ctx.Done():
		return apperr.ErrConnectionClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.String("type", ev.Type), zap.Error(err))
			}
		}
	}
}

func (c *wsConn) keepAliveLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, c.writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil && c.ctx.Err() == nil {
				c.logger.Info("ping failed", zap.Error(err))
				c.close(websocket.StatusGoingAway, "timeout")
				return
			}
		}
	}
}

func (c *wsConn) bye(reason, details string) {
	msg := reason
	if details != "" {
		msg += "|" + details
	}
	c.close(websocket.StatusGoingAway, msg)
}

func (c *wsConn) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close(code, reason)
		c.cancel()
	})
}

func (s *Server) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, o := range s.config.CORSOrigins {
		if o == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
		o = strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, o)
	}
	if len(opts.OriginPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}
	return opts
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return // Accept already wrote the response
	}
	conn.SetReadLimit(int64(s.config.MaxAvatarBytes)*2 + 1<<20)

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		conn:         conn,
		send:         make(chan models.Event, wsSendBuffer),
		writeTimeout: s.config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	c.sess = realtime.NewSession(c)
	c.logger = s.logger.With(zap.String("conn", c.sess.ID()), zap.String("remote", r.RemoteAddr))

	s.track(c)
	c.logger.Info("client connected", zap.String("transport", "ws"))

	defer func() {
		s.untrack(c)
		s.router.Disconnect(c.sess)
		c.close(websocket.StatusNormalClosure, "")
		c.logger.Info("client disconnected", zap.String("user", c.sess.UserID()))
	}()

	go c.writeLoop()
	go c.keepAliveLoop()

	for {
		var in inbound
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.logger.Debug("read failed", zap.Error(err))
			}
			return
		}
		s.dispatch(c, in)
	}
}

func (s *Server) dispatch(c *wsConn, in inbound) {
	switch in.Type {
	case "userConnect", "identify":
		userID, err := identifyTarget(in.Data)
		if err == nil {
			err = s.router.Identify(c.sess, userID)
		}
		if err != nil {
			c.logger.Info("identify rejected", zap.String("user", userID), zap.Error(err))
			s.router.Fail(c.sess, in.Type, err)
		}

	case "sendMessage":
		var p messagePayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			s.router.Fail(c.sess, in.Type, errBadJSON)
			return
		}
		if _, err := s.router.SendMessage(c.sess, p.FromID, p.ToID, p.Text); err != nil {
			s.router.Fail(c.sess, in.Type, err)
		}

	case "typing", "stopTyping":
		var p messagePayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return
		}
		s.router.Typing(c.sess, p.FromID, p.ToID, in.Type == "typing")

	default:
		s.router.Fail(c.sess, in.Type, errUnknownEvent)
	}
}

// identifyTarget accepts either "USER_X" or {"userId":"USER_X"}.
func identifyTarget(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		var obj struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", errBadJSON
		}
		id = obj.UserID
	}
	if id == "" {
		return "", errMissingField
	}
	return id, nil
}
