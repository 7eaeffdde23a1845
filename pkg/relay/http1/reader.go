package http1

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
	"github.com/watt-toolkit/relay/pkg/relay/uri"
)

// Reader parses requests off one connection at a time. Its line buffer and
// URL parser are reused across requests and connections.
type Reader struct {
	sock   *netio.ClientSocket
	line   *netio.FixedBuffer
	parser *uri.Parser
}

// NewReader returns a Reader whose request and header lines are bounded by
// lineSize bytes. lineSize <= 0 selects DefaultHeaderBufferSize.
func NewReader(lineSize int) *Reader {
	if lineSize <= 0 {
		lineSize = DefaultHeaderBufferSize
	}
	return &Reader{
		line:   netio.NewFixedBuffer(lineSize),
		parser: uri.NewParser(),
	}
}

// Reset binds the reader to sock. The socket stays owned by the caller.
func (r *Reader) Reset(sock *netio.ClientSocket) {
	r.sock = sock
	r.line.Clear()
}

// Next overwrites req with the next request on the connection.
func (r *Reader) Next(req *Request) error {
	req.Reset()

	if err := r.parseTop(req); err != nil {
		return err
	}
	if err := r.parseHeaders(req.Headers); err != nil {
		return err
	}
	return r.parseBody(req)
}

// readLine reads one '\n'-terminated line and drops a trailing '\r'.
func (r *Reader) readLine() ([]byte, error) {
	if _, err := r.sock.ReadUntil('\n', r.line); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(r.line.Bytes(), []byte{'\r'}), nil
}

func (r *Reader) parseTop(req *Request) error {
	line, err := r.readLine()
	if err != nil {
		return err
	}

	method, rest, ok := cutSpace(line)
	if !ok {
		return ErrMalformedRequestLine
	}
	target, version, ok := cutSpace(rest)
	if !ok || len(version) == 0 || bytes.ContainsAny(version, " \t") {
		return ErrMalformedRequestLine
	}

	req.Method = ParseMethod(method)
	req.Schema = ParseSchema(version)

	r.parser.Reset(string(target))
	u, err := r.parser.Parse()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTarget, err)
	}
	req.URL = u
	return nil
}

func (r *Reader) parseHeaders(h Headers) error {
	for n := 0; ; n++ {
		line, err := r.readLine()
		if err != nil {
			return err
		}
		if len(line) == 0 {
			return nil
		}
		if n == MaxHeaders {
			return ErrTooManyHeaders
		}

		name, value, ok := splitHeader(line)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		h.Set(string(name), string(value))
	}
}

// parseBody reads Content-Length bytes. Anything but a positive run of
// decimal digits means no body.
func (r *Reader) parseBody(req *Request) error {
	v := req.Headers.Get("Content-Length")
	if v == "" || v[0] < '0' || v[0] > '9' {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil
	}
	return r.sock.ReadExact(n, req.Body)
}

// splitHeader separates a header line into name and value. The usual form is
// "Name: value"; a bare "Name value" is also accepted. The name never keeps
// its colon.
func splitHeader(line []byte) (name, value []byte, ok bool) {
	colon := bytes.IndexByte(line, ':')
	space := bytes.IndexAny(line, " \t")

	switch {
	case colon > 0 && (space < 0 || colon < space):
		name, value = line[:colon], line[colon+1:]
	case space > 0:
		name, value = line[:space], line[space:]
		name = bytes.TrimSuffix(name, []byte{':'})
	default:
		return nil, nil, false
	}

	if len(name) == 0 {
		return nil, nil, false
	}
	return name, bytes.Trim(value, " \t"), true
}

// cutSpace splits b around its first run of spaces or tabs.
func cutSpace(b []byte) (before, after []byte, ok bool) {
	i := bytes.IndexAny(b, " \t")
	if i <= 0 {
		return nil, nil, false
	}
	return b[:i], bytes.TrimLeft(b[i:], " \t"), true
}
