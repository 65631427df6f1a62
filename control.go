package main

import (
	"bufio"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"zorssms/db"
	"zorssms/server"
	"zorssms/store"
)

type shutdownRequest struct {
	reason     string
	completion time.Time
}

// controller serves the local management socket, one command per connection:
//
//	stats
//	export|path
//	shutdown|reason|RFC3339 completion time
type controller struct {
	srv    *server.Server
	store  *store.Store
	logger *zap.Logger
	quit   chan<- shutdownRequest
}

func (c *controller) listen(path string) (net.Listener, error) {
	// Remove a stale socket file
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	c.logger.Info("control socket listening", zap.String("path", path))
	return listener, nil
}

func (c *controller) serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		go c.handle(conn)
	}
}

func (c *controller) handle(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}

	line = strings.TrimSpace(line)
	parts := strings.SplitN(line, "|", 3)

	switch parts[0] {
	case "stats":
		conn.Write([]byte("OK|" + c.srv.GetStats() + "\n"))

	case "export":
		if len(parts) < 2 || parts[1] == "" {
			conn.Write([]byte("ERROR|Path required\n"))
			return
		}
		if err := db.WriteSnapshotFile(parts[1], c.store.Snapshot()); err != nil {
			c.logger.Error("export failed", zap.String("path", parts[1]), zap.Error(err))
			conn.Write([]byte("ERROR|" + err.Error() + "\n"))
			return
		}
		c.logger.Info("state exported", zap.String("path", parts[1]))
		conn.Write([]byte("OK|Exported\n"))

	case "shutdown":
		req := shutdownRequest{reason: "maintenance"}
		if len(parts) >= 2 && parts[1] != "" {
			req.reason = parts[1]
		}
		if len(parts) >= 3 && parts[2] != "" {
			t, err := time.Parse(time.RFC3339, parts[2])
			if err != nil {
				conn.Write([]byte("ERROR|Invalid completion time\n"))
				return
			}
			req.completion = t
		}

		conn.Write([]byte("OK|Shutting down\n"))
		c.logger.Info("shutdown requested", zap.String("reason", req.reason), zap.Time("completion", req.completion))
		select {
		case c.quit <- req:
		default:
			// already shutting down
		}

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
