// Package http1 reads HTTP/1.x requests from and writes responses to a
// netio.ClientSocket using fixed-capacity buffers. Request and Response are
// long-lived and overwritten for each exchange on a connection.
package http1

import (
	"github.com/watt-toolkit/relay/pkg/relay/netio"
	"github.com/watt-toolkit/relay/pkg/relay/uri"
)

const (
	// DefaultHeaderBufferSize bounds a single request or header line.
	DefaultHeaderBufferSize = 1024

	// DefaultBodyBufferSize bounds a message body.
	DefaultBodyBufferSize = 4096

	// DefaultWriteBufferSize bounds a serialized response head.
	DefaultWriteBufferSize = 2048

	// MaxHeaders caps the number of header lines in one request.
	MaxHeaders = 64

	// KeepAliveToken is the Connection value that keeps a connection open.
	KeepAliveToken = "Keep-Alive"

	// CloseToken is the Connection value sent when the connection ends.
	CloseToken = "close"
)

// Request is a parsed HTTP/1.x request.
type Request struct {
	Schema  Schema
	Method  Method
	URL     uri.URL
	Headers Headers
	Body    *netio.FixedBuffer
}

// NewRequest allocates a Request with a body buffer of bodySize bytes.
func NewRequest(bodySize int) *Request {
	return &Request{
		Headers: make(Headers, 16),
		Body:    netio.NewFixedBuffer(bodySize),
	}
}

// Reset clears the request for reuse without releasing its storage.
func (r *Request) Reset() {
	r.Schema = SchemaUnknown
	r.Method = MethodUnknown
	r.URL = uri.URL{}
	r.Headers.Reset()
	r.Body.Clear()
}

// KeepAlive reports whether the client asked for a persistent connection.
// Only the exact value "Keep-Alive" counts.
func (r *Request) KeepAlive() bool {
	return r.Headers.Get("Connection") == KeepAliveToken
}

// Response is an HTTP/1.x response ready for a Writer.
type Response struct {
	Schema Schema
	Status Status

	// Reason overrides the standard phrase for Status when non-empty.
	Reason string

	Headers Headers
	Body    *netio.FixedBuffer
}

// NewResponse allocates a Response with a body buffer of bodySize bytes.
func NewResponse(bodySize int) *Response {
	return &Response{
		Headers: make(Headers, 8),
		Body:    netio.NewFixedBuffer(bodySize),
	}
}

// Reset clears the response for reuse without releasing its storage.
func (r *Response) Reset() {
	r.Schema = SchemaUnknown
	r.Status = StatusUnknown
	r.Reason = ""
	r.Headers.Reset()
	r.Body.Clear()
}

// ReasonPhrase returns Reason, falling back to the standard phrase.
func (r *Response) ReasonPhrase() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Status.Reason()
}
