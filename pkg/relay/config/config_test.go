package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watt-toolkit/relay/pkg/relay/netio"
	"github.com/watt-toolkit/relay/pkg/relay/server"
)

func TestDefaultConfigMatchesPackages(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, netio.DefaultSocketConfig(), cfg.Socket())
	assert.Equal(t, server.DefaultConfig(), cfg.Server())

	tel := cfg.Telemetry()
	assert.Equal(t, "relay", tel.ServiceName)
	assert.Equal(t, slog.LevelInfo, tel.Level)
	assert.Equal(t, "text", tel.Format)
	assert.Empty(t, tel.Endpoint)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"addr": ":9090",
		"socket_timeout": "250ms",
		"workers": 6,
		"retry_backoff": 1000000,
		"push_retries": 0,
		"server_name": "",
		"log_level": "debug",
		"log_format": "json",
		"otlp_endpoint": "collector:4317"
	}`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	sock := cfg.Socket()
	assert.Equal(t, "9090", sock.Port)
	assert.Equal(t, 250*time.Millisecond, sock.Timeout)
	assert.Equal(t, 4, sock.Backlog, "unset fields keep their default")

	srv := cfg.Server()
	assert.Equal(t, 6, srv.Workers)
	assert.Equal(t, time.Millisecond, srv.RetryBackoff)
	assert.Equal(t, 0, srv.PushRetries, "an explicit zero is not replaced by the default")
	assert.Equal(t, "", srv.ServerName)

	tel := cfg.Telemetry()
	assert.Equal(t, slog.LevelDebug, tel.Level)
	assert.Equal(t, "json", tel.Format)
	assert.Equal(t, "collector:4317", tel.Endpoint)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown field", `{"workerz": 3}`},
		{"bad duration", `{"retry_backoff": "soon"}`},
		{"duration type", `{"retry_backoff": true}`},
		{"syntax", `{"workers": }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "localhost"
	cfg.Workers = -1
	cfg.QueueCapacity = -2
	cfg.PushRetryWait = Duration(-time.Second)
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)

	var joined interface{ Unwrap() []error }
	require.True(t, errors.As(err, &joined))
	assert.Len(t, joined.Unwrap(), 6)

	for _, want := range []string{"addr", "workers", "queue_capacity", "push_retry_wait", "log_level", "log_format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.Normalize()
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"queue_capacity": 16, "metrics_addr": ":9100"}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Server().QueueCapacity)
	assert.Equal(t, ":9100", cfg.MetricsAddr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDurationJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(b))

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"2m"`)))
	assert.Equal(t, Duration(2*time.Minute), d)
	require.NoError(t, d.UnmarshalJSON([]byte(`42`)))
	assert.Equal(t, Duration(42), d)
}
