package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/watt-toolkit/relay/pkg/relay/http1"
	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

// State is a step of the per-connection state machine.
type State uint8

const (
	StateIdle State = iota
	StateMeet
	StateRequest
	StateProcess
	StateReply

	// StateRepeat serves another request on the same connection.
	StateRepeat

	// StateRetry backs off after a placeholder task, then meets again.
	StateRetry

	StateClose
	StateEnd
)

var stateNames = [...]string{
	StateIdle:    "idle",
	StateMeet:    "meet",
	StateRequest: "request",
	StateProcess: "process",
	StateReply:   "reply",
	StateRepeat:  "repeat",
	StateRetry:   "retry",
	StateClose:   "close",
	StateEnd:     "end",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Processor turns a request into a response. It is the single policy point
// of the server.
type Processor interface {
	Process(req *http1.Request, res *http1.Response)
}

// Close reasons, used as log fields and metric labels.
const (
	closeDone       = "done"
	closePeerClosed = "peer_closed"
	closeTimeout    = "timeout"
	closeIO         = "io"
	closeParse      = "parse"
	closeWrite      = "write"
)

// Worker drives connections through the state machine
//
//	idle -> meet -> request -> process -> reply -> {repeat | close}
//
// where repeat returns to request, close returns to meet, and meet -> end is
// the only way out. A Worker owns its Reader, Writer, Request, Response and
// the active connection; none of them are shared.
type Worker struct {
	id      int
	queue   *Queue
	proc    Processor
	backoff time.Duration

	reader *http1.Reader
	writer *http1.Writer
	req    *http1.Request
	res    *http1.Response

	sess    *netio.ClientSocket
	persist bool
	reason  string

	ctx     context.Context
	span    trace.Span
	started time.Time

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewWorker allocates a worker and all of its per-connection buffers.
func NewWorker(id int, queue *Queue, proc Processor, cfg Config, logger *slog.Logger, metrics *Metrics, tracer trace.Tracer) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		id:      id,
		queue:   queue,
		proc:    proc,
		backoff: cfg.RetryBackoff,
		reader:  http1.NewReader(cfg.HeaderBufferSize),
		writer:  http1.NewWriter(cfg.WriteBufferSize),
		req:     http1.NewRequest(cfg.BodyBufferSize),
		res:     http1.NewResponse(cfg.BodyBufferSize),
		logger:  logger.With("component", "worker", "worker", id),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Run executes the state machine until a halt task is popped. ctx parents
// the per-request spans; cancelling it does not stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	w.ctx = ctx
	state := StateIdle
	for state != StateEnd {
		w.metrics.stateEntered(state)
		state = w.step(state)
	}
	w.metrics.stateEntered(StateEnd)
	w.logger.Debug("worker exiting")
	return nil
}

func (w *Worker) step(s State) State {
	switch s {
	case StateIdle:
		return StateMeet
	case StateMeet:
		return w.meet()
	case StateRequest:
		return w.request()
	case StateProcess:
		return w.process()
	case StateReply:
		return w.reply()
	case StateRepeat:
		return StateRequest
	case StateRetry:
		time.Sleep(w.backoff)
		return StateMeet
	case StateClose:
		return w.close()
	default:
		panic("server: worker in state " + s.String())
	}
}

func (w *Worker) meet() State {
	t := w.queue.Pop()
	w.metrics.setQueueDepth(w.queue.Len())

	switch {
	case t.Tag == TaskHalt:
		return StateEnd
	case t.Tag == TaskPlaceholder || !t.Sock.Valid():
		t.Sock.Close()
		return StateRetry
	}

	w.sess = t.Sock.Take()
	w.reader.Reset(w.sess)
	w.writer.Reset(w.sess)
	w.metrics.workerBusy(1)
	w.logger.Debug("connection adopted", "remote", w.sess.RemoteAddr())
	return StateRequest
}

func (w *Worker) request() State {
	if err := w.reader.Next(w.req); err != nil {
		w.reason = classify(err)
		if w.reason != closePeerClosed {
			w.logger.Debug("request failed", "reason", w.reason, "error", err)
		}
		return StateClose
	}
	return StateProcess
}

func (w *Worker) process() State {
	w.started = time.Now()
	_, w.span = w.tracer.Start(w.ctx, "relay.request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", w.req.Method.String()),
			attribute.String("url.path", w.req.URL.Path),
			attribute.String("network.protocol.version", w.req.Schema.String()),
		),
	)

	w.res.Reset()
	w.proc.Process(w.req, w.res)
	w.persist = w.res.Headers.Get("Connection") == http1.KeepAliveToken
	return StateReply
}

func (w *Worker) reply() State {
	err := w.writer.Write(w.res)

	w.span.SetAttributes(attribute.Int("http.response.status_code", w.res.Status.Code()))
	if err != nil {
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, "write failed")
	}
	w.span.End()

	if err != nil {
		w.reason = closeWrite
		w.logger.Debug("reply failed", "error", err)
		return StateClose
	}

	w.metrics.requestServed(w.req.Method, w.res.Status, time.Since(w.started))
	if w.persist {
		return StateRepeat
	}
	w.reason = closeDone
	return StateClose
}

func (w *Worker) close() State {
	w.metrics.connClosed(w.reason)
	w.metrics.workerBusy(-1)

	if err := w.sess.Close(); err != nil {
		w.logger.Debug("close failed", "error", err)
	}
	w.sess = nil
	w.reader.Reset(nil)
	w.writer.Reset(nil)
	w.persist = false
	w.reason = ""
	return StateMeet
}

func classify(err error) string {
	var opErr *netio.OpError
	switch {
	case errors.Is(err, netio.ErrPeerClosed):
		return closePeerClosed
	case errors.As(err, &opErr) && opErr.Timeout():
		return closeTimeout
	case http1.IsIOError(err):
		return closeIO
	default:
		return closeParse
	}
}
