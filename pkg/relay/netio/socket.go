// Package netio is the transport boundary of the relay core: fixed-capacity
// buffers and the three socket primitives the HTTP layer is written against
// (read exactly K bytes, read until a delimiter, write exactly K bytes).
package netio

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultReadBufferSize is the size of the pooled bufio.Reader behind each
// accepted connection.
const DefaultReadBufferSize = 4096

var bufioReaderPool = sync.Pool{
	New: func() interface{} {
		return bufio.NewReaderSize(nil, DefaultReadBufferSize)
	},
}

func getBufioReader(r io.Reader) *bufio.Reader {
	br := bufioReaderPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

func putBufioReader(br *bufio.Reader) {
	if br != nil {
		br.Reset(nil)
		bufioReaderPool.Put(br)
	}
}

// noCopy trips `go vet -copylocks` when a ClientSocket is copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// ClientSocket owns one accepted connection. It is move-only: hand it around
// by pointer and use Take to transfer ownership. Close releases the
// connection; it is safe to call more than once.
type ClientSocket struct {
	_ noCopy

	conn    net.Conn
	rd      *bufio.Reader
	timeout time.Duration
}

// NewClientSocket adopts conn. timeout bounds every primitive (zero disables
// deadlines) and is fixed for the socket's lifetime.
func NewClientSocket(conn net.Conn, timeout time.Duration) *ClientSocket {
	if conn == nil {
		return &ClientSocket{}
	}
	return &ClientSocket{
		conn:    conn,
		rd:      getBufioReader(conn),
		timeout: timeout,
	}
}

// Valid reports whether the socket still owns a connection.
func (s *ClientSocket) Valid() bool {
	return s != nil && s.conn != nil
}

// Take moves ownership into a new ClientSocket and leaves s invalid.
func (s *ClientSocket) Take() *ClientSocket {
	if !s.Valid() {
		return &ClientSocket{}
	}
	moved := &ClientSocket{conn: s.conn, rd: s.rd, timeout: s.timeout}
	s.conn, s.rd = nil, nil
	return moved
}

// RemoteAddr returns the peer address, or "" for an invalid socket.
func (s *ClientSocket) RemoteAddr() string {
	if !s.Valid() {
		return ""
	}
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close releases the connection.
func (s *ClientSocket) Close() error {
	if !s.Valid() {
		return nil
	}
	err := s.conn.Close()
	putBufioReader(s.rd)
	s.conn, s.rd = nil, nil
	return err
}

// ReadExact replaces buf's content with exactly k bytes from the peer.
func (s *ClientSocket) ReadExact(k int, buf *FixedBuffer) error {
	if !s.Valid() {
		return opError("read", ErrInvalidSocket)
	}
	buf.Clear()
	if k == 0 {
		return nil
	}
	dst, err := buf.tail(k)
	if err != nil {
		return opError("read", err)
	}
	if err := s.armRead(); err != nil {
		return opError("read", err)
	}
	if _, err := io.ReadFull(s.rd, dst); err != nil {
		buf.Clear()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return opError("read", ErrPeerClosed)
		}
		return opError("read", err)
	}
	buf.length = k
	return nil
}

// ReadUntil replaces buf's content with the bytes preceding the next delim.
// The delimiter is consumed but not stored. It returns the stored count.
func (s *ClientSocket) ReadUntil(delim byte, buf *FixedBuffer) (int, error) {
	if !s.Valid() {
		return 0, opError("read-until", ErrInvalidSocket)
	}
	buf.Clear()
	if err := s.armRead(); err != nil {
		return 0, opError("read-until", err)
	}
	for {
		chunk, err := s.rd.ReadSlice(delim)
		data := chunk
		if err == nil {
			data = chunk[:len(chunk)-1]
		}

		dst, terr := buf.tail(len(data))
		if terr != nil {
			return 0, opError("read-until", terr)
		}
		copy(dst, data)
		buf.length += len(data)

		switch {
		case err == nil:
			return buf.length, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			buf.Clear()
			return 0, opError("read-until", ErrPeerClosed)
		default:
			buf.Clear()
			return 0, opError("read-until", err)
		}
	}
}

// WriteExact sends the first k occupied bytes of buf.
func (s *ClientSocket) WriteExact(k int, buf *FixedBuffer) error {
	if !s.Valid() {
		return opError("write", ErrInvalidSocket)
	}
	if k < 0 || k > buf.Len() {
		return opError("write", ErrCapacityExceeded)
	}
	if k == 0 {
		return nil
	}
	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return opError("write", err)
		}
	}
	n, err := s.conn.Write(buf.Bytes()[:k])
	if err != nil {
		return opError("write", err)
	}
	if n != k {
		return opError("write", ErrShortWrite)
	}
	return nil
}

func (s *ClientSocket) armRead() error {
	if s.timeout <= 0 {
		return nil
	}
	return s.conn.SetReadDeadline(time.Now().Add(s.timeout))
}
