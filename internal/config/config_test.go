package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8787", cfg.Server.Addr)
	assert.Equal(t, "/data", cfg.Data.Dir)
	assert.Equal(t, "ollama", cfg.Synthesis.Provider)
	assert.Equal(t, "llama3.2:latest", cfg.Synthesis.OllamaModel)
	assert.Equal(t, "osint_scans", cfg.Mirror.Database)
	assert.Equal(t, 5*time.Minute, cfg.Tools.Timeout.Std())
	assert.Equal(t, "theharvester:latest", cfg.Tools.HarvesterImage)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8787", cfg.Server.Addr)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
synthesis:
  provider: gemini
  timeout: 90s
tools:
  timeout: 2m
  searxng_url: http://searx.lan
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "gemini", cfg.Synthesis.Provider)
	assert.Equal(t, 90*time.Second, cfg.Synthesis.Timeout.Std())
	assert.Equal(t, 2*time.Minute, cfg.Tools.Timeout.Std())
	assert.Equal(t, "http://searx.lan", cfg.Tools.SearxNGURL)

	// Untouched sections keep their defaults.
	assert.Equal(t, "/data", cfg.Data.Dir)
}

func TestLoadMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOOM_ADDR", ":7000")
	t.Setenv("OLLAMA_URL", "http://ollama.lan:11434")
	t.Setenv("COUCHDB_URL", "http://couch.lan:5984")
	t.Setenv("ODOO_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "http://ollama.lan:11434", cfg.Synthesis.OllamaURL)
	assert.Equal(t, "http://couch.lan:5984", cfg.Mirror.URL)
	assert.Equal(t, "hunter2", cfg.CRM.Password)
}

func TestDurationYAML(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		require.NoError(t, yaml.Unmarshal([]byte("timeout: 1m30s"), &out))
		assert.Equal(t, 90*time.Second, out.Timeout.Std())
	})

	t.Run("invalid form", func(t *testing.T) {
		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		assert.Error(t, yaml.Unmarshal([]byte("timeout: soon"), &out))
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := yaml.Marshal(Duration(90 * time.Second))
		require.NoError(t, err)
		assert.Equal(t, "1m30s\n", string(data))
	})
}
