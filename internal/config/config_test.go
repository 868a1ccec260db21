package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
source_server: src
target_server: dst
servers:
  src:
    url: https://src.example.com
    token: "${TEST_SRC_TOKEN}"
  dst:
    url: https://dst.example.com
    username: deploy
    password: "${TEST_DST_PASS}"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.ParallelWorkers)
	assert.Equal(t, 30, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 100000, cfg.PageSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "curl", cfg.Dialect)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 3, cfg.RetryPolicy().MaxAttempts)
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML+`
parallel_workers: 8
request_timeout: 90
retry_attempts: 5
page_size: 500
dialect: jf
repo_type: local
verify_after_push: true
`))
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ParallelWorkers)
	assert.Equal(t, 90, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, "jf", cfg.Dialect)
	assert.Equal(t, "local", cfg.RepoType)
	assert.True(t, cfg.VerifyAfterPush)
}

func TestProfileResolvesEnvCredentials(t *testing.T) {
	t.Setenv("TEST_SRC_TOKEN", "token-from-env")
	t.Setenv("TEST_DST_PASS", "pass-from-env")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	src, err := cfg.Profile("src")
	require.NoError(t, err)
	assert.Equal(t, "token-from-env", src.Token)

	dst, err := cfg.Profile("dst")
	require.NoError(t, err)
	assert.Equal(t, "deploy", dst.Username)
	assert.Equal(t, "pass-from-env", dst.Password)

	_, err = cfg.Profile("missing")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"missing source server", `
target_server: dst
servers:
  dst: {url: https://dst.example.com}
`},
		{"undefined server reference", `
source_server: src
target_server: dst
servers:
  src: {url: https://src.example.com}
`},
		{"invalid url", `
source_server: src
target_server: dst
servers:
  src: {url: "not a url"}
  dst: {url: https://dst.example.com}
`},
		{"negative workers", validYAML + "parallel_workers: -1\n"},
		{"unknown dialect", validYAML + "dialect: wget\n"},
		{"unknown repo type", validYAML + "repo_type: cosmic\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
