package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"zorssms/realtime"
)

type Server struct {
	router *realtime.Router
	config *ServerConfig
	logger *zap.Logger

	mu       sync.RWMutex
	conns    map[string]conn
	listener net.Listener
	http     *http.Server
}

type ServerConfig struct {
	Port           int
	TCPPort        int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	MaxAvatarBytes int
	MaxLineBytes   int // longest accepted line protocol line
}

// Room for a maximum length message with every rune escaped.
const defaultMaxLineBytes = 64 << 10

// conn is a live transport connection the server can say goodbye to.
type conn interface {
	session() *realtime.Session
	kind() string
	bye(reason, details string)
}

func New(router *realtime.Router, config *ServerConfig, logger *zap.Logger) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 120 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 30 * time.Second
	}
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = defaultMaxLineBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		router: router,
		config: config,
		logger: logger,
		conns:  make(map[string]conn),
	}
}

// Start serves the line protocol (when TCPPort is set) and HTTP until one of
// them fails or Shutdown is called.
func (s *Server) Start() error {
	errc := make(chan error, 2)

	if s.config.TCPPort > 0 {
		listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.config.TCPPort))
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.listener = listener
		s.mu.Unlock()

		s.logger.Info("line protocol listening", zap.Int("port", s.config.TCPPort))
		go func() { errc <- s.serveTCP(listener) }()
	}

	httpSrv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = httpSrv
	s.mu.Unlock()

	s.logger.Info("http listening", zap.Int("port", s.config.Port))
	go func() {
		err := httpSrv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errc <- err
	}()

	return <-errc
}

func (s *Server) serveTCP(listener net.Listener) error {
	for {
		c, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		go s.handleConnection(c)
	}
}

func (s *Server) track(c conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c.session().ID()] = c
}

func (s *Server) untrack(c conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c.session().ID())
}

// Shutdown says bye to every client with the given reason, closes them and
// stops the listeners. completionTime may be zero.
func (s *Server) Shutdown(reason string, completionTime time.Time) {
	s.mu.Lock()
	conns := make([]conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	listener, httpSrv := s.listener, s.http
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	var details string
	if !completionTime.IsZero() {
		details = completionTime.UTC().Format("2006-01-02T15:04:05Z")
	}
	for _, c := range conns {
		c.bye(reason, details)
		s.router.Disconnect(c.session())
	}

	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	s.logger.Info("server stopped", zap.String("reason", reason), zap.Int("connections", len(conns)))
}

// GetStats returns server statistics as a formatted string
func (s *Server) GetStats() string {
	s.mu.RLock()
	tcp, ws := 0, 0
	for _, c := range s.conns {
		if c.kind() == "tcp" {
			tcp++
		} else {
			ws++
		}
	}
	s.mu.RUnlock()

	reg := s.router.Presence()
	users := reg.Users()
	st := s.router.Store().Stats()

	return "connections=" + strconv.Itoa(tcp+ws) +
		",tcp=" + strconv.Itoa(tcp) +
		",ws=" + strconv.Itoa(ws) +
		",online=" + strings.Join(users, ";") +
		",users=" + strconv.Itoa(st.Users) +
		",conversations=" + strconv.Itoa(st.Conversations) +
		",messages=" + strconv.Itoa(st.Messages)
}
