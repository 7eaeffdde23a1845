package http1

import (
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

var (
	crlf     = []byte("\r\n")
	colonSep = []byte(": ")
)

// Writer serializes responses onto one connection at a time.
//
// The head (status line, headers, blank line) is assembled in a pooled
// scratch buffer and size-checked before anything reaches the socket, so a
// rejected response leaves the connection untouched. When head and body fit
// together in the write buffer they go out in a single write.
type Writer struct {
	sock *netio.ClientSocket
	out  *netio.FixedBuffer
	keys []string
}

// NewWriter returns a Writer with a write buffer of size bytes. size <= 0
// selects DefaultWriteBufferSize.
func NewWriter(size int) *Writer {
	if size <= 0 {
		size = DefaultWriteBufferSize
	}
	return &Writer{
		out:  netio.NewFixedBuffer(size),
		keys: make([]string, 0, 16),
	}
}

// Reset binds the writer to sock. The socket stays owned by the caller.
func (w *Writer) Reset(sock *netio.ClientSocket) {
	w.sock = sock
	w.out.Clear()
}

// Write sends res. Headers are emitted in lexical order.
func (w *Writer) Write(res *Response) error {
	if !res.Status.Valid() {
		return ErrInvalidStatus
	}
	if res.Schema == SchemaUnknown {
		return ErrInvalidSchema
	}

	head := bytebufferpool.Get()
	defer bytebufferpool.Put(head)
	w.appendHead(head, res)

	bodyLen := 0
	if res.Body != nil {
		bodyLen = res.Body.Len()
	}

	if head.Len() >= w.out.Cap() {
		return ErrHeadTooLarge
	}

	// Head and body together fit: one write.
	if head.Len()+bodyLen < w.out.Cap() {
		if bodyLen > 0 {
			head.Write(res.Body.Bytes())
		}
		if err := w.out.Load(head.B); err != nil {
			return err
		}
		return w.sock.WriteExact(w.out.Len(), w.out)
	}

	if err := w.out.Load(head.B); err != nil {
		return err
	}
	if err := w.sock.WriteExact(w.out.Len(), w.out); err != nil {
		return err
	}
	return w.sock.WriteExact(bodyLen, res.Body)
}

func (w *Writer) appendHead(b *bytebufferpool.ByteBuffer, res *Response) {
	b.WriteString(res.Schema.String())
	b.WriteByte(' ')
	b.B = strconv.AppendInt(b.B, int64(res.Status.Code()), 10)
	b.WriteByte(' ')
	b.WriteString(res.ReasonPhrase())
	b.Write(crlf)

	w.keys = res.Headers.AppendKeys(w.keys[:0])
	for _, k := range w.keys {
		b.WriteString(k)
		b.Write(colonSep)
		b.WriteString(res.Headers[k])
		b.Write(crlf)
	}
	b.Write(crlf)
}
