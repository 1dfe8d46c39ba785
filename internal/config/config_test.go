package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENT_CONFIG_FILE", "")
	t.Setenv("STORE_SLUG", "pizzaria")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pizzaria", cfg.StoreSlug)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, 15*time.Second, cfg.OrderRequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.OrderRetryInterval)
	assert.Equal(t, 2*time.Minute, cfg.OrderRetryWindow)
	assert.Equal(t, "sabores", cfg.FlavorMarker)
}

func TestLoadRequiresSlug(t *testing.T) {
	t.Setenv("AGENT_CONFIG_FILE", "")
	t.Setenv("STORE_SLUG", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := "STORE_SLUG: burgers\nORDER_RETRY_WINDOW: 90s\nCORS_ALLOWED_ORIGINS:\n  - http://a.test\n  - http://b.test\nSTORAGE_DRIVER: redis\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("AGENT_CONFIG_FILE", path)
	t.Setenv("STORE_SLUG", "")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "burgers", cfg.StoreSlug)
	assert.Equal(t, 90*time.Second, cfg.OrderRetryWindow)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CorsAllowedOrigins)
	assert.Equal(t, "memory", cfg.StorageDriver)
}

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("AGENT_CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDoesNotKeepFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE_SLUG: burgers\n"), 0o600))
	t.Setenv("STORE_SLUG", "")

	t.Setenv("AGENT_CONFIG_FILE", path)
	_, err := Load()
	require.NoError(t, err)

	t.Setenv("AGENT_CONFIG_FILE", "")
	_, err = Load()
	assert.Error(t, err, "slug from the earlier file must not leak into this load")
}

func TestLoadConcurrently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("STORE_SLUG: burgers\n"), 0o600))
	t.Setenv("AGENT_CONFIG_FILE", path)
	t.Setenv("STORE_SLUG", "")

	var wg sync.WaitGroup
	slugs := make([]string, 8)
	for i := range slugs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg, err := Load()
			if err == nil {
				slugs[i] = cfg.StoreSlug
			}
		}(i)
	}
	wg.Wait()
	for _, slug := range slugs {
		assert.Equal(t, "burgers", slug)
	}
}
