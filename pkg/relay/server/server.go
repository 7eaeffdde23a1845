// Package server runs the relay core: one Producer accepting connections
// into a bounded Queue and a fixed pool of Workers, each driving one
// connection at a time through the HTTP/1.x state machine.
package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/relay/pkg/relay/http1"
)

const tracerName = "github.com/watt-toolkit/relay/pkg/relay/server"

// Config holds the worker pool and queue settings.
type Config struct {
	// Workers is the fixed number of worker goroutines.
	// Default: 2
	Workers int

	// QueueCapacity bounds the task queue.
	// Default: 4
	QueueCapacity int

	// RetryBackoff is how long a worker waits after a placeholder task.
	// Default: 1 second
	RetryBackoff time.Duration

	// PushRetries is how many extra times the producer offers an accepted
	// connection to a full queue before dropping it.
	// Default: 3
	PushRetries int

	// PushRetryWait is the pause between push attempts.
	// Default: 10 milliseconds
	PushRetryWait time.Duration

	// HeaderBufferSize bounds a single request or header line.
	// Default: 1024 bytes
	HeaderBufferSize int

	// BodyBufferSize bounds request and response bodies.
	// Default: 4096 bytes
	BodyBufferSize int

	// WriteBufferSize bounds the serialized response head.
	// Default: 2048 bytes
	WriteBufferSize int

	// ServerName is sent in the Server header of every response.
	// Default: "relay/0.1"
	ServerName string
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:          2,
		QueueCapacity:    4,
		RetryBackoff:     time.Second,
		PushRetries:      3,
		PushRetryWait:    10 * time.Millisecond,
		HeaderBufferSize: http1.DefaultHeaderBufferSize,
		BodyBufferSize:   http1.DefaultBodyBufferSize,
		WriteBufferSize:  http1.DefaultWriteBufferSize,
		ServerName:       "relay/0.1",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.PushRetries < 0 {
		c.PushRetries = 0
	}
	if c.HeaderBufferSize <= 0 {
		c.HeaderBufferSize = d.HeaderBufferSize
	}
	if c.BodyBufferSize <= 0 {
		c.BodyBufferSize = d.BodyBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	return c
}

// Listener is the listening endpoint the server owns.
type Listener interface {
	Acceptor
	Close() error
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics sink. Default: none.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracerProvider sets where request spans go. Default, or when tp is
// nil: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithProcessor replaces the default Router.
func WithProcessor(p Processor) Option {
	return func(s *Server) { s.proc = p }
}

// Server assembles the queue, the producer and the workers.
type Server struct {
	cfg      Config
	listener Listener
	queue    *Queue
	proc     Processor
	stop     atomic.Bool

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New builds a server around ln. Unless WithProcessor is given, requests are
// served by NewRouter(cfg.ServerName).
func New(cfg Config, ln Listener, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		listener: ln,
		queue:    NewQueue(cfg.QueueCapacity),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.proc == nil {
		s.proc = NewRouter(cfg.ServerName)
	}
	return s
}

// Run serves until ctx is cancelled or Stop is called, then waits for the
// producer and every worker to exit. It returns nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("server starting",
		"workers", s.cfg.Workers,
		"queue_capacity", s.cfg.QueueCapacity,
	)

	var g errgroup.Group
	for id := 0; id < s.cfg.Workers; id++ {
		w := NewWorker(id, s.queue, s.proc, s.cfg, s.logger, s.metrics, s.tracer)
		g.Go(func() error { return w.Run(ctx) })
	}
	producer := NewProducer(s.listener, s.queue, &s.stop, s.cfg, s.logger, s.metrics)
	g.Go(producer.Run)

	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-finished:
		}
		s.Stop()
	}()

	err := g.Wait()
	close(finished)
	s.logger.Info("server stopped")
	return err
}

// Stop sets the shutdown flag and closes the listener so a blocked accept
// returns. It is safe to call more than once.
func (s *Server) Stop() {
	if s.stop.Swap(true) {
		return
	}
	if err := s.listener.Close(); err != nil {
		s.logger.Debug("listener close", "error", err)
	}
}

// Stopping reports whether shutdown has begun.
func (s *Server) Stopping() bool {
	return s.stop.Load()
}
