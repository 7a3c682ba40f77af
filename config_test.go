package strux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty gets defaults", Config{}, false},
		{"explicit values", Config{Compression: "zstd", LogLevel: "debug"}, false},
		{"unknown compression", Config{Compression: "gzip"}, true},
		{"unknown log level", Config{LogLevel: "verbose"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.cfg.Compression)
			assert.NotEmpty(t, tt.cfg.LogLevel)
		})
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Run("defaults when unset", func(t *testing.T) {
		t.Setenv(EnvCompression, "")
		t.Setenv(EnvLogLevel, "")

		cfg, err := LoadConfigFromEnvironment()
		require.NoError(t, err)
		assert.Equal(t, DefaultCompression, cfg.Compression)
		assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	})

	t.Run("reads variables", func(t *testing.T) {
		t.Setenv(EnvCompression, "lz4")
		t.Setenv(EnvLogLevel, "warn")

		cfg, err := LoadConfigFromEnvironment()
		require.NoError(t, err)
		assert.Equal(t, "lz4", cfg.Compression)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Setenv(EnvCompression, "bzip2")

		_, err := LoadConfigFromEnvironment()
		require.Error(t, err)
	})
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strux.yaml")
		require.NoError(t, os.WriteFile(path, []byte("compression: zstd\nlog_level: error\n"), 0o644))

		cfg, err := LoadConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "zstd", cfg.Compression)
		assert.Equal(t, "error", cfg.LogLevel)
	})

	t.Run("partial file gets defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strux.yaml")
		require.NoError(t, os.WriteFile(path, []byte("compression: lz4\n"), 0o644))

		cfg, err := LoadConfigFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "lz4", cfg.Compression)
		assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "strux.yaml")
		require.NoError(t, os.WriteFile(path, []byte("compression: [broken\n"), 0o644))

		_, err := LoadConfigFromFile(path)
		require.Error(t, err)
	})
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(storePath(t), ModeReadWriteCreate, WithCompression("gzip"))
	require.Error(t, err)

	_, err = Open(storePath(t), ModeReadWriteCreate, WithConfig(Config{LogLevel: "loud"}))
	require.Error(t, err)
}
