package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Bridge.StrictCast)
	assert.True(t, cfg.Bridge.AllowND)
	assert.Equal(t, BackendHeap, cfg.Memory.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.RuntimeOptions())
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
bridge:
  strict_cast: false
memory:
  backend: mmap
  mmap_threshold: 4096
  limit: 1048576
log:
  level: debug
stress:
  workers: 3
`))
	require.NoError(t, err)

	assert.False(t, cfg.Bridge.StrictCast)
	assert.True(t, cfg.Bridge.AllowND, "unset fields keep their defaults")
	assert.Equal(t, BackendMmap, cfg.Memory.Backend)
	assert.Equal(t, 4096, cfg.Memory.MmapThreshold)
	assert.Equal(t, int64(1<<20), cfg.Memory.Limit)
	assert.Equal(t, 1000, cfg.Stress.Iterations)
	assert.Len(t, cfg.RuntimeOptions(), 2)

	opts := cfg.ConverterOptions()
	assert.False(t, opts.StrictCast)
	assert.True(t, opts.AllowND)

	pc := cfg.ParallelConfig()
	assert.Equal(t, 3, pc.NumWorkers)
	assert.True(t, pc.Enabled)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("memory: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")

	_, err = Parse([]byte(`
memory:
  backend: gpu
  limit: -1
log:
  level: chatty
stress:
  iterations: 0
`))
	require.Error(t, err)
	for _, want := range []string{"memory.backend", "memory.limit", "log.level", "stress.iterations"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvVar, "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(t.TempDir(), "ndbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bridge:\n  allow_nd: false\n"), 0o644))
	t.Setenv(EnvVar, path)

	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.Bridge.AllowND)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	cfg.Log.Development = true
	cfg.Log.Level = "debug"
	logger, err = cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
