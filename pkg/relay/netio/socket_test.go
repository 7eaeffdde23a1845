package netio

import (
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockConn is a testify mock standing in for an accepted connection.
type MockConn struct {
	mock.Mock
}

func (m *MockConn) Read(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Write(p []byte) (int, error) {
	args := m.Called(p)
	return args.Int(0), args.Error(1)
}

func (m *MockConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConn) LocalAddr() net.Addr                { return &net.TCPAddr{} }
func (m *MockConn) RemoteAddr() net.Addr               { return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4242} }
func (m *MockConn) SetDeadline(t time.Time) error      { return nil }
func (m *MockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *MockConn) SetWriteDeadline(t time.Time) error { return nil }

// pipeSocket returns a server-side socket and the client end of an in-memory
// connection. The client end is written from a goroutine by the caller.
func pipeSocket(t *testing.T, timeout time.Duration) (*ClientSocket, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	sock := NewClientSocket(server, timeout)
	t.Cleanup(func() {
		sock.Close()
		client.Close()
	})
	return sock, client
}

func TestClientSocketCloseIsOwnershipScoped(t *testing.T) {
	conn := new(MockConn)
	conn.On("Close").Return(nil).Once()

	sock := NewClientSocket(conn, 0)
	require.True(t, sock.Valid())

	assert.NoError(t, sock.Close())
	assert.NoError(t, sock.Close())
	assert.False(t, sock.Valid())

	conn.AssertExpectations(t)
}

func TestClientSocketTakeTransfersOwnership(t *testing.T) {
	conn := new(MockConn)
	conn.On("Close").Return(nil).Once()

	original := NewClientSocket(conn, 0)
	moved := original.Take()

	assert.False(t, original.Valid())
	assert.True(t, moved.Valid())
	assert.Equal(t, "10.0.0.1:4242", moved.RemoteAddr())

	// Closing the moved-from socket must not touch the connection.
	assert.NoError(t, original.Close())
	conn.AssertNotCalled(t, "Close")

	assert.NoError(t, moved.Close())
	conn.AssertExpectations(t)
}

func TestClientSocketInvalidOperations(t *testing.T) {
	var sock ClientSocket
	buf := NewFixedBuffer(8)

	_, err := sock.ReadUntil('\n', buf)
	assert.ErrorIs(t, err, ErrInvalidSocket)
	assert.ErrorIs(t, sock.ReadExact(1, buf), ErrInvalidSocket)
	assert.ErrorIs(t, sock.WriteExact(0, buf), ErrInvalidSocket)
	assert.Equal(t, "", sock.RemoteAddr())
}

func TestClientSocketReadUntil(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	go client.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))

	buf := NewFixedBuffer(64)
	n, err := sock.ReadUntil('\n', buf)
	require.NoError(t, err)
	assert.Equal(t, len("GET / HTTP/1.1\r"), n)
	assert.Equal(t, "GET / HTTP/1.1\r", buf.String())

	n, err = sock.ReadUntil('\n', buf)
	require.NoError(t, err)
	assert.Equal(t, "Host: x\r", buf.String())
	assert.Equal(t, 8, n)
}

func TestClientSocketReadUntilLongerThanReadBuffer(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	line := strings.Repeat("a", DefaultReadBufferSize+100)
	go client.Write([]byte(line + "\n"))

	buf := NewFixedBuffer(2 * DefaultReadBufferSize)
	n, err := sock.ReadUntil('\n', buf)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Equal(t, line, buf.String())
}

func TestClientSocketReadUntilCapacityViolation(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	go client.Write([]byte("0123456789abcdef\n"))

	buf := NewFixedBuffer(8)
	_, err := sock.ReadUntil('\n', buf)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 0, buf.Len())
}

func TestClientSocketReadUntilPeerClosed(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	go func() {
		client.Write([]byte("partial"))
		client.Close()
	}()

	buf := NewFixedBuffer(64)
	_, err := sock.ReadUntil('\n', buf)
	assert.ErrorIs(t, err, ErrPeerClosed)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "read-until", opErr.Op)
}

func TestClientSocketReadUntilTimeout(t *testing.T) {
	sock, _ := pipeSocket(t, 20*time.Millisecond)

	buf := NewFixedBuffer(64)
	_, err := sock.ReadUntil('\n', buf)
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.True(t, opErr.Timeout())
}

func TestClientSocketReadExact(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	go client.Write([]byte("hello world"))

	buf := NewFixedBuffer(16)
	require.NoError(t, sock.ReadExact(5, buf))
	assert.Equal(t, "hello", buf.String())

	require.NoError(t, sock.ReadExact(6, buf))
	assert.Equal(t, " world", buf.String())

	require.NoError(t, sock.ReadExact(0, buf))
	assert.Equal(t, 0, buf.Len())
}

func TestClientSocketReadExactRejectsOversize(t *testing.T) {
	sock, _ := pipeSocket(t, time.Second)
	buf := NewFixedBuffer(4)
	assert.ErrorIs(t, sock.ReadExact(4, buf), ErrCapacityExceeded)
}

func TestClientSocketReadExactPeerClosed(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)
	go func() {
		client.Write([]byte("abc"))
		client.Close()
	}()

	buf := NewFixedBuffer(16)
	assert.ErrorIs(t, sock.ReadExact(10, buf), ErrPeerClosed)
	assert.Equal(t, 0, buf.Len())
}

func TestClientSocketWriteExact(t *testing.T) {
	sock, client := pipeSocket(t, time.Second)

	buf := NewFixedBuffer(32)
	buf.LoadString("HTTP/1.1 200 OK\r\n")

	done := make(chan []byte)
	go func() {
		got := make([]byte, 8)
		io.ReadFull(client, got)
		done <- got
	}()

	require.NoError(t, sock.WriteExact(8, buf))
	assert.Equal(t, "HTTP/1.1", string(<-done))

	assert.ErrorIs(t, sock.WriteExact(buf.Len()+1, buf), ErrCapacityExceeded)
}

func TestClientSocketWriteExactTransportFailure(t *testing.T) {
	conn := new(MockConn)
	conn.On("Write", mock.Anything).Return(0, errors.New("broken pipe")).Once()
	conn.On("Close").Return(nil)

	sock := NewClientSocket(conn, time.Second)
	defer sock.Close()

	buf := NewFixedBuffer(8)
	buf.LoadString("abc")

	err := sock.WriteExact(3, buf)
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "write", opErr.Op)
	conn.AssertExpectations(t)
}
