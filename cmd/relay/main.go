// Command relay runs the HTTP/1.x worker-pool server.
//
// Configuration comes from built-in defaults, then the optional -config JSON
// file, then any flags given explicitly on the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watt-toolkit/relay/pkg/relay/config"
	"github.com/watt-toolkit/relay/pkg/relay/http1"
	"github.com/watt-toolkit/relay/pkg/relay/netio"
	"github.com/watt-toolkit/relay/pkg/relay/server"
	"github.com/watt-toolkit/relay/pkg/relay/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := cfg.Telemetry()
	logger, stopLogs, err := telemetry.NewLogger(ctx, tel)
	if err != nil {
		return err
	}
	tp, stopTraces, err := telemetry.NewTracerProvider(ctx, tel)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := telemetry.Join(stopTraces, stopLogs)(sctx); err != nil {
			fmt.Fprintln(os.Stderr, "relay: telemetry shutdown:", err)
		}
	}()
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := server.NewMetrics(reg)
	if cfg.MetricsAddr != "" {
		ms := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer ms.Close()
	}

	ln, err := netio.Listen(cfg.Socket())
	if err != nil {
		return err
	}
	srvCfg := cfg.Server()
	logger.Info("relay listening",
		"addr", ln.Addr().String(),
		"workers", srvCfg.Workers,
		"queue_capacity", srvCfg.QueueCapacity,
	)

	srv := server.New(srvCfg, ln,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithTracerProvider(tp),
		server.WithProcessor(newRouter(srvCfg.ServerName)),
	)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("relay stopped")
	return nil
}

func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	path := fs.String("config", "", "JSON configuration file")
	addr := fs.String("addr", "", "listening port, e.g. :8080")
	workers := fs.Int("workers", 0, "worker pool size")
	queue := fs.Int("queue", 0, "task queue capacity")
	metricsAddr := fs.String("metrics", "", "serve /metrics on this address")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.DefaultConfig()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return config.Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "workers":
			cfg.Workers = *workers
		case "queue":
			cfg.QueueCapacity = *queue
		case "metrics":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	ms := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return ms
}

// newRouter serves "/" plus a JSON echo of the query parameters.
func newRouter(serverName string) *server.Router {
	r := server.NewRouter(serverName)
	r.GET("/api/echo", func(req *http1.Request, res *http1.Response) {
		params := map[string]string{}
		if req.URL.HasParams() {
			params = req.URL.Params()
		}
		body, err := json.Marshal(struct {
			Path   string            `json:"path"`
			Params map[string]string `json:"params"`
		}{req.URL.Path, params})
		if err != nil {
			server.Respond(res, http1.StatusInternalServerError, "text/plain", nil)
			return
		}
		server.Respond(res, http1.StatusOK, "application/json", body)
	})
	return r
}
