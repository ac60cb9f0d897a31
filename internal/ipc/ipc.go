package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const SocketPath = "/tmp/purple.sock"

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Handler func(ctx context.Context, msg ControlMessage) Reply

// Server answers one JSON ControlMessage per connection with one Reply.
type Server struct {
	path    string
	handler Handler
	ln      net.Listener
}

var ErrInUse = errors.New("socket in use")

// Listen binds path, replacing a stale socket file. A socket that still
// accepts connections belongs to a live server and is left alone.
func Listen(path string, handler Handler) (*Server, error) {
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrInUse, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, handler: handler, ln: ln}, nil
}

// Serve accepts connections until ctx is done, then removes the socket.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.ln.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				os.Remove(s.path)
				return nil
			}
			log.Warn("Accept failed", "err", err)
			continue
		}
		go s.handle(ctx, conn)
	}
}

func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Debug("Bad control message", "err", err)
		return
	}

	reply := s.handler(ctx, msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		log.Debug("Failed to reply", "err", err)
	}
}

func Send(ctx context.Context, path, cmd string) (Reply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var r Reply
	if err := json.NewDecoder(conn).Decode(&r); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return r, nil
}
