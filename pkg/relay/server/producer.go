package server

import (
	"errors"
	"log/slog"
	"net"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

// Acceptor is the listening endpoint as the Producer sees it. On failure it
// returns an invalid (never nil) socket alongside the error.
type Acceptor interface {
	AcceptConnection() (*netio.ClientSocket, error)
}

// Producer accepts connections and feeds them to the workers through the
// queue. It polls a shared stop flag once per accept; after the flag is set
// it empties the queue and pushes one halt task per consumer.
type Producer struct {
	acceptor  Acceptor
	queue     *Queue
	stop      *atomic.Bool
	consumers int

	pushRetries   int
	pushRetryWait time.Duration

	logger  *slog.Logger
	metrics *Metrics
}

// NewProducer wires a Producer. stop is owned by the caller; setting it is
// the only way to end Run.
func NewProducer(acceptor Acceptor, queue *Queue, stop *atomic.Bool, cfg Config, logger *slog.Logger, metrics *Metrics) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		acceptor:      acceptor,
		queue:         queue,
		stop:          stop,
		consumers:     cfg.Workers,
		pushRetries:   cfg.PushRetries,
		pushRetryWait: cfg.PushRetryWait,
		logger:        logger.With("component", "producer"),
		metrics:       metrics,
	}
}

// Run accepts until the stop flag is observed, then delivers the halt tasks.
// It always returns nil; the error result fits errgroup.
func (p *Producer) Run() error {
	for !p.stop.Load() {
		sock, err := p.acceptor.AcceptConnection()
		if err == nil {
			p.push(Task{Sock: sock, Tag: TaskNormal})
			continue
		}

		sock.Close()
		if p.stop.Load() {
			break
		}

		var opErr *netio.OpError
		switch {
		case errors.As(err, &opErr) && opErr.Timeout():
			// Accept deadline: just a chance to re-check the flag.
			continue
		case errors.Is(err, net.ErrClosed):
			p.logger.Warn("listener closed underneath producer, shutting down")
			p.stop.Store(true)
		default:
			p.logger.Warn("accept failed", "error", err)
			p.push(Task{Sock: sock, Tag: TaskPlaceholder})
		}
	}

	p.shutdown()
	return nil
}

// push offers t to the queue, retrying a bounded number of times. A task that
// still does not fit has its connection closed.
func (p *Producer) push(t Task) {
	for attempt := 0; ; attempt++ {
		if p.queue.TryPush(t) {
			p.metrics.taskPushed(t.Tag)
			p.metrics.setQueueDepth(p.queue.Len())
			return
		}
		if attempt >= p.pushRetries || p.stop.Load() {
			break
		}
		p.wait()
	}

	p.metrics.taskRejected()
	if t.Tag == TaskNormal {
		p.logger.Warn("queue full, dropping connection", "remote", t.Sock.RemoteAddr())
	}
	t.Sock.Close()
}

func (p *Producer) shutdown() {
	dropped := p.queue.ClearAll()
	for _, t := range dropped {
		t.Sock.Close()
	}
	p.metrics.setQueueDepth(0)
	p.logger.Info("shutting down", "dropped", len(dropped), "consumers", p.consumers)

	// Every halt must land: a worker that never sees one never exits.
	for sent := 0; sent < p.consumers; {
		if p.queue.TryPush(Task{Tag: TaskHalt}) {
			p.metrics.taskPushed(TaskHalt)
			sent++
			continue
		}
		p.wait()
	}
}

func (p *Producer) wait() {
	if p.pushRetryWait <= 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(p.pushRetryWait)
}
