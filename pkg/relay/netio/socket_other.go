//go:build !linux

package netio

import (
	"net"
	"strconv"
)

func listen(port, _ int) (net.Listener, error) {
	return net.Listen("tcp", ":"+strconv.Itoa(port))
}

func applyAcceptOptions(conn net.Conn, cfg SocketConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if cfg.NoDelay {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	if cfg.Linger >= 0 {
		return tcpConn.SetLinger(cfg.Linger)
	}
	return nil
}
