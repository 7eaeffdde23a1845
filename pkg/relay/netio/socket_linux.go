//go:build linux

package netio

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listen creates the socket by hand so the configured backlog reaches
// listen(2); net.Listen always uses somaxconn.
func listen(port, backlog int) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	var sa unix.Sockaddr = &unix.SockaddrInet6{Port: port}
	if errors.Is(err, unix.EAFNOSUPPORT) {
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
		sa = &unix.SockaddrInet4{Port: port}
	} else if err == nil {
		// Dual-stack: accept IPv4-mapped peers too.
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	}
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	f := os.NewFile(uintptr(fd), "relay-listener")
	defer f.Close() // FileListener dups the descriptor
	return net.FileListener(f)
}

// applyAcceptOptions sets per-connection socket options once, right after
// accept. Connections that are not TCP (pipes, in-memory listeners) are left
// untouched.
func applyAcceptOptions(conn net.Conn, cfg SocketConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var optErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
				optErr = os.NewSyscallError("setsockopt", err)
				return
			}
		}
		if cfg.Linger >= 0 {
			l := &unix.Linger{Onoff: 1, Linger: int32(cfg.Linger)}
			if err := unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, l); err != nil {
				optErr = os.NewSyscallError("setsockopt", err)
			}
		}
	})
	if err != nil {
		return err
	}
	return optErr
}
