// Package config loads the relay configuration: built-in defaults, an
// optional JSON file on top, then command-line overrides applied by the
// caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
	"github.com/watt-toolkit/relay/pkg/relay/server"
	"github.com/watt-toolkit/relay/pkg/relay/telemetry"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Duration is a time.Duration that reads and writes JSON as a Go duration
// string ("1.5s"). Plain numbers are taken as nanoseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("config: duration must be a string or integer: %s", b)
		}
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	*d = Duration(v)
	return nil
}

// Config is the full runtime configuration.
type Config struct {
	// Addr is the listening port, optionally with a leading colon (":8080").
	// The server listens on all interfaces.
	// Default: ":8080"
	Addr string `json:"addr"`

	// Backlog is the listen(2) queue length.
	// Default: 4
	Backlog int `json:"backlog"`

	// SocketTimeout bounds each read or write on an accepted connection.
	// Default: 8s
	SocketTimeout Duration `json:"socket_timeout"`

	// Linger is the SO_LINGER seconds for accepted connections; negative
	// keeps the system default.
	// Default: -1
	Linger *int `json:"linger,omitempty"`

	// AcceptTimeout bounds one accept so shutdown is noticed promptly.
	// Default: 5s
	AcceptTimeout Duration `json:"accept_timeout"`

	// Workers is the fixed size of the worker pool.
	// Default: 2
	Workers int `json:"workers"`

	// QueueCapacity bounds the task queue.
	// Default: 4
	QueueCapacity int `json:"queue_capacity"`

	// RetryBackoff is the worker pause after a failed accept.
	// Default: 1s
	RetryBackoff Duration `json:"retry_backoff"`

	// PushRetries is how many extra times a full queue is retried before an
	// accepted connection is dropped.
	// Default: 3
	PushRetries *int `json:"push_retries,omitempty"`

	// PushRetryWait is the pause between push attempts.
	// Default: 10ms
	PushRetryWait Duration `json:"push_retry_wait"`

	// ServerName is sent as the Server header. Empty suppresses it.
	// Default: "relay/0.1"
	ServerName *string `json:"server_name,omitempty"`

	// MetricsAddr is where /metrics is served. Empty disables it.
	// Default: ""
	MetricsAddr string `json:"metrics_addr"`

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string `json:"log_level"`

	// LogFormat is "text" or "json".
	// Default: "text"
	LogFormat string `json:"log_format"`

	// OTLPEndpoint is the OTLP/gRPC collector (host:port) for logs and
	// traces. Empty keeps logs local and disables tracing export.
	// Default: ""
	OTLPEndpoint string `json:"otlp_endpoint"`

	// ServiceName identifies this process to the collector.
	// Default: "relay"
	ServiceName string `json:"service_name"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	srv := server.DefaultConfig()
	sock := netio.DefaultSocketConfig()
	linger := sock.Linger
	retries := srv.PushRetries
	name := srv.ServerName
	return Config{
		Addr:          ":" + sock.Port,
		Backlog:       sock.Backlog,
		SocketTimeout: Duration(sock.Timeout),
		Linger:        &linger,
		AcceptTimeout: Duration(sock.AcceptTimeout),
		Workers:       srv.Workers,
		QueueCapacity: srv.QueueCapacity,
		RetryBackoff:  Duration(srv.RetryBackoff),
		PushRetries:   &retries,
		PushRetryWait: Duration(srv.PushRetryWait),
		ServerName:    &name,
		LogLevel:      "info",
		LogFormat:     "text",
		ServiceName:   "relay",
	}
}

// Normalize fills zero-valued fields from DefaultConfig.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.Backlog == 0 {
		c.Backlog = d.Backlog
	}
	if c.SocketTimeout == 0 {
		c.SocketTimeout = d.SocketTimeout
	}
	if c.Linger == nil {
		c.Linger = d.Linger
	}
	if c.AcceptTimeout == 0 {
		c.AcceptTimeout = d.AcceptTimeout
	}
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	if c.PushRetries == nil {
		c.PushRetries = d.PushRetries
	}
	if c.PushRetryWait == 0 {
		c.PushRetryWait = d.PushRetryWait
	}
	if c.ServerName == nil {
		c.ServerName = d.ServerName
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.ServiceName == "" {
		c.ServiceName = d.ServiceName
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := c.port(); err != nil {
		add("addr %q: want [:]port", c.Addr)
	}
	if c.Backlog <= 0 {
		add("backlog must be positive, got %d", c.Backlog)
	}
	if c.Workers <= 0 {
		add("workers must be positive, got %d", c.Workers)
	}
	if c.QueueCapacity <= 0 {
		add("queue_capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.PushRetries != nil && *c.PushRetries < 0 {
		add("push_retries must not be negative, got %d", *c.PushRetries)
	}
	for name, d := range map[string]Duration{
		"socket_timeout":  c.SocketTimeout,
		"accept_timeout":  c.AcceptTimeout,
		"retry_backoff":   c.RetryBackoff,
		"push_retry_wait": c.PushRetryWait,
	} {
		if d < 0 {
			add("%s must not be negative", name)
		}
	}
	if _, err := c.Level(); err != nil {
		add("log_level %q", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		add("log_format %q: want text or json", c.LogFormat)
	}
	return errors.Join(errs...)
}

// Load reads path as JSON over DefaultConfig. Unknown fields are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSON over DefaultConfig and normalizes the result.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

func (c Config) port() (string, error) {
	p := strings.TrimPrefix(c.Addr, ":")
	n, err := strconv.Atoi(p)
	if err != nil || n < 0 || n > 65535 {
		return "", netio.ErrInvalidPort
	}
	return p, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// Socket returns the listening endpoint settings.
func (c Config) Socket() netio.SocketConfig {
	sc := netio.DefaultSocketConfig()
	if p, err := c.port(); err == nil {
		sc.Port = p
	}
	sc.Backlog = c.Backlog
	sc.Timeout = time.Duration(c.SocketTimeout)
	sc.AcceptTimeout = time.Duration(c.AcceptTimeout)
	if c.Linger != nil {
		sc.Linger = *c.Linger
	}
	return sc
}

// Server returns the worker pool settings.
func (c Config) Server() server.Config {
	sc := server.DefaultConfig()
	sc.Workers = c.Workers
	sc.QueueCapacity = c.QueueCapacity
	sc.RetryBackoff = time.Duration(c.RetryBackoff)
	sc.PushRetryWait = time.Duration(c.PushRetryWait)
	if c.PushRetries != nil {
		sc.PushRetries = *c.PushRetries
	}
	if c.ServerName != nil {
		sc.ServerName = *c.ServerName
	}
	return sc
}

// Telemetry returns the logging and tracing settings.
func (c Config) Telemetry() telemetry.Options {
	level, _ := c.Level()
	return telemetry.Options{
		ServiceName: c.ServiceName,
		Endpoint:    c.OTLPEndpoint,
		Level:       level,
		Format:      c.LogFormat,
	}
}
