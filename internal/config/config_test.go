package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()
	require.Equal(t, "fs", cfg.Blob.Backend)
	require.Equal(t, 10, cfg.Client.QueueCap)
	require.Equal(t, 48*time.Hour, cfg.Publisher.Window())
	require.Equal(t, "UTC", cfg.Scheduler.Location().String())
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slop.yaml")
	raw := []byte(`
logging:
  format: json
http:
  addr: ":9090"
  requestTimeout: 5s
scheduler:
  timezone: Europe/Berlin
  delta: ""
consensus:
  baseThreshold: 3.0
client:
  flushInterval: 1m
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databaseDSNEnv, "file:test.db")
	t.Setenv(databaseDrvEnv, "sqlite")
	t.Setenv(blobBackendEnv, " S3 ")
	t.Setenv(blobBucketEnv, "slop-artifacts")
	t.Setenv(dataDirEnv, "/tmp/slop")

	cfg := Load()
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, 5*time.Second, cfg.HTTP.RequestTimeout)
	require.Equal(t, 100, cfg.HTTP.MaxBatchSize)
	require.Equal(t, "Europe/Berlin", cfg.Scheduler.Location().String())
	require.Empty(t, cfg.Scheduler.Delta)
	require.Equal(t, "0 3 * * *", cfg.Scheduler.Evaluation)
	require.InDelta(t, 3.0, cfg.Consensus.BaseThreshold, 1e-9)
	require.Equal(t, time.Minute, cfg.Client.FlushInterval)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "s3", cfg.Blob.Backend)
	require.Equal(t, filepath.Join("/tmp/slop", "queue.db"), cfg.Client.QueuePath())
	require.NoError(t, cfg.Validate())
}

func TestLoadBadFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unterminated"), 0o600))
	t.Setenv(configPathEnv, path)

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Blob.Backend = "gcs"
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.HTTP.MaxBatchSize = 5
	require.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Blob.Backend = "ftp"
	require.Error(t, cfg.Validate())
}
