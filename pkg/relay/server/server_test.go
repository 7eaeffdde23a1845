package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/watt-toolkit/relay/pkg/relay/http1"
	"github.com/watt-toolkit/relay/pkg/relay/netio"
)

type runningServer struct {
	srv     *Server
	ln      *fasthttputil.InmemoryListener
	client  *fasthttp.Client
	metrics *Metrics
	cancel  context.CancelFunc
	errc    chan error
}

func startServer(t *testing.T, cfg Config, opts ...Option) *runningServer {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	metrics := NewMetrics(prometheus.NewRegistry())
	opts = append([]Option{WithLogger(discardLogger()), WithMetrics(metrics)}, opts...)
	srv := New(cfg, netio.NewServerSocket(ln, netio.DefaultSocketConfig()), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	rs := &runningServer{
		srv:     srv,
		ln:      ln,
		metrics: metrics,
		cancel:  cancel,
		errc:    make(chan error, 1),
		client: &fasthttp.Client{
			Dial: func(string) (net.Conn, error) { return ln.Dial() },
		},
	}
	go func() { rs.errc <- srv.Run(ctx) }()
	t.Cleanup(func() { rs.stop(t) })
	return rs
}

func (rs *runningServer) stop(t *testing.T) {
	rs.cancel()
	select {
	case err := <-rs.errc:
		assert.NoError(t, err)
		rs.errc <- nil
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func (rs *runningServer) do(t *testing.T, method, target string, body string) *fasthttp.Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod(method)
	req.SetRequestURI("http://relay.test" + target)
	req.SetConnectionClose()
	if body != "" {
		req.SetBodyString(body)
	}

	res := &fasthttp.Response{}
	require.NoError(t, rs.client.DoTimeout(req, res, 2*time.Second))
	return res
}

func TestServerEndToEnd(t *testing.T) {
	rs := startServer(t, DefaultConfig())

	res := rs.do(t, "GET", "/", "")
	assert.Equal(t, 200, res.StatusCode())
	assert.Equal(t, HelloBody, string(res.Body()))
	assert.Equal(t, "relay/0.1", string(res.Header.Peek("Server")))

	res = rs.do(t, "GET", "/missing", "")
	assert.Equal(t, 404, res.StatusCode())
	assert.Empty(t, res.Body())

	res = rs.do(t, "PUT", "/", "data")
	assert.Equal(t, 501, res.StatusCode())

	res = rs.do(t, "POST", "/", "data")
	assert.Equal(t, 501, res.StatusCode())

	res = rs.do(t, "HEAD", "/", "")
	assert.Equal(t, 200, res.StatusCode())
	assert.Empty(t, res.Body())

	assert.Equal(t, 1.0, testutil.ToFloat64(rs.metrics.requests.WithLabelValues("GET", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rs.metrics.requests.WithLabelValues("UNKNOWN", "501")))
}

func TestServerKeepAliveOnOneConnection(t *testing.T) {
	rs := startServer(t, DefaultConfig())

	conn, err := rs.ln.Dial()
	require.NoError(t, err)
	defer conn.Close()

	raw := strings.Repeat("GET / HTTP/1.1\r\nConnection: Keep-Alive\r\n\r\n", 3)
	_, err = conn.Write([]byte(raw))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	for i := 0; i < 3; i++ {
		var res fasthttp.Response
		require.NoError(t, res.Read(br), "response %d", i)
		assert.Equal(t, HelloBody, string(res.Body()))
		assert.False(t, res.ConnectionClose())
	}
}

func TestServerCustomProcessor(t *testing.T) {
	router := NewRouter("custom")
	router.GET("/api/echo", func(req *http1.Request, res *http1.Response) {
		msg, _ := req.URL.Param("msg")
		Respond(res, http1.StatusOK, "text/plain", []byte(msg))
	})
	rs := startServer(t, DefaultConfig(), WithProcessor(router))

	res := rs.do(t, "GET", "/api/echo?msg=hi&count=10", "")
	assert.Equal(t, 200, res.StatusCode())
	assert.Equal(t, "hi", string(res.Body()))
	assert.Equal(t, "custom", string(res.Header.Peek("Server")))
}

func TestServerShutdownWithIdleWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 8
	cfg.QueueCapacity = 2
	rs := startServer(t, cfg)

	rs.stop(t)
	assert.True(t, rs.srv.Stopping())
	assert.Equal(t, 8.0, testutil.ToFloat64(rs.metrics.tasksPushed.WithLabelValues("halt")))
}

func TestServerNilTracerProviderUsesGlobal(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()
	defer ln.Close()

	var srv *Server
	require.NotPanics(t, func() {
		srv = New(DefaultConfig(), netio.NewServerSocket(ln, netio.DefaultSocketConfig()), WithTracerProvider(nil))
	})
	assert.NotNil(t, srv.tracer)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{PushRetries: -3}.withDefaults()
	d := DefaultConfig()
	assert.Equal(t, d.Workers, cfg.Workers)
	assert.Equal(t, d.QueueCapacity, cfg.QueueCapacity)
	assert.Equal(t, d.RetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, 0, cfg.PushRetries)
	assert.Equal(t, d.BodyBufferSize, cfg.BodyBufferSize)
	assert.Equal(t, "", cfg.ServerName, "an empty server name is kept and suppresses the header")
}
