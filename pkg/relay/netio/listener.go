package netio

import (
	"net"
	"strconv"
	"time"
)

// SocketConfig holds the values that turn a port string into a listening
// endpoint and shape every connection accepted from it.
type SocketConfig struct {
	// Port is the decimal TCP port to listen on.
	Port string

	// Backlog is the pending-connection queue length handed to listen(2).
	// Honored on Linux; elsewhere the runtime default applies.
	Backlog int

	// Timeout bounds each read or write primitive on accepted sockets.
	// Zero disables deadlines.
	Timeout time.Duration

	// Linger is the SO_LINGER value in seconds applied at accept time.
	// Negative leaves the system default.
	Linger int

	// AcceptTimeout bounds a single accept when the listener supports
	// deadlines, so the caller can poll for shutdown. Zero blocks.
	AcceptTimeout time.Duration

	// NoDelay disables Nagle's algorithm on accepted TCP connections.
	NoDelay bool
}

// DefaultSocketConfig mirrors the reference deployment: port 8080, backlog 4,
// 8 second read/write timeout.
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		Port:          "8080",
		Backlog:       4,
		Timeout:       8 * time.Second,
		Linger:        -1,
		AcceptTimeout: 5 * time.Second,
		NoDelay:       true,
	}
}

func (c SocketConfig) port() (int, error) {
	if c.Port == "" {
		return 0, ErrInvalidPort
	}
	p, err := strconv.Atoi(c.Port)
	if err != nil || p < 0 || p > 65535 {
		return 0, ErrInvalidPort
	}
	return p, nil
}

// ServerSocket is the listening endpoint. Its only core-facing operation is
// AcceptConnection.
type ServerSocket struct {
	ln  net.Listener
	cfg SocketConfig
}

// Listen binds a listening endpoint from cfg.
func Listen(cfg SocketConfig) (*ServerSocket, error) {
	p, err := cfg.port()
	if err != nil {
		return nil, opError("listen", err)
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultSocketConfig().Backlog
	}
	ln, err := listen(p, cfg.Backlog)
	if err != nil {
		return nil, opError("listen", err)
	}
	return &ServerSocket{ln: ln, cfg: cfg}, nil
}

// NewServerSocket wraps an existing listener, e.g. an in-memory one.
func NewServerSocket(ln net.Listener, cfg SocketConfig) *ServerSocket {
	return &ServerSocket{ln: ln, cfg: cfg}
}

// Addr returns the bound address.
func (s *ServerSocket) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops the endpoint; a blocked AcceptConnection returns net.ErrClosed.
func (s *ServerSocket) Close() error {
	return s.ln.Close()
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// AcceptConnection waits for the next connection. On failure the returned
// socket is invalid (never nil) and the error is an *OpError.
func (s *ServerSocket) AcceptConnection() (*ClientSocket, error) {
	if s.cfg.AcceptTimeout > 0 {
		if d, ok := s.ln.(deadliner); ok {
			_ = d.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout))
		}
	}

	conn, err := s.ln.Accept()
	if err != nil {
		return &ClientSocket{}, opError("accept", err)
	}

	if err := applyAcceptOptions(conn, s.cfg); err != nil {
		conn.Close()
		return &ClientSocket{}, opError("accept", err)
	}
	return NewClientSocket(conn, s.cfg.Timeout), nil
}
