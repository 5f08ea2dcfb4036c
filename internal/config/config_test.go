package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	RegisterBatchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvPrefix+"ENV", "")
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.True(t, cfg.Headless)
	assert.False(t, cfg.Diagnostics)
	assert.Equal(t, DefaultSessionTimeout, cfg.Timeout)
	assert.Equal(t, DefaultContainerWait, cfg.Timings.ContainerWait)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_HeadfulEnablesDiagnostics(t *testing.T) {
	t.Setenv(EnvPrefix+"ENV", "")
	cfg, err := Load(newCmd(t, "--headful"))
	require.NoError(t, err)

	assert.False(t, cfg.Headless)
	assert.True(t, cfg.Diagnostics)
}

func TestLoad_DevelopmentEnvEnablesDiagnostics(t *testing.T) {
	t.Setenv(EnvPrefix+"ENV", "development")
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.Diagnostics)
}

func TestLoad_ExplicitDiagnosticsWins(t *testing.T) {
	t.Setenv(EnvPrefix+"ENV", "")
	cfg, err := Load(newCmd(t, "--headful", "--diagnostics=false"))
	require.NoError(t, err)
	assert.False(t, cfg.Diagnostics)
}

func TestLoad_FlagsAndEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"PROXY", "http://env:8080")
	t.Setenv(EnvPrefix+"USER_AGENT", "env-agent")

	cfg, err := Load(newCmd(t,
		"--proxy", "socks5://flag:1080",
		"--timeout", "90s",
		"-H", "Accept-Language: de",
		"--block", "https://example.com/beacon",
		"-c", "4",
		"--verbose",
	))
	require.NoError(t, err)

	assert.Equal(t, "socks5://flag:1080", cfg.Proxy)
	assert.Equal(t, "env-agent", cfg.UserAgent)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"Accept-Language: de"}, cfg.Headers)
	assert.Equal(t, []string{"https://example.com/beacon"}, cfg.BlockPatterns)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_ExpandsHomePaths(t *testing.T) {
	homedir.DisableCache = true
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvPrefix+"LOG_FILE", "~/logs/revscrape.log")

	cfg, err := Load(newCmd(t, "--diagnostics-dir", "~/snaps"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs", "revscrape.log"), cfg.LogFile)
	assert.Equal(t, filepath.Join(home, "snaps"), cfg.DiagnosticsDir)
}

func TestLoad_CachePath(t *testing.T) {
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultCachePath(), cfg.CachePath)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)

	path := filepath.Join(t.TempDir(), "reviews-cache.db")
	cfg, err = Load(newCmd(t, "--cache", path))
	require.NoError(t, err)
	assert.Equal(t, path, cfg.CachePath)

	cfg, err = Load(newCmd(t, "--cache", path, "--no-cache"))
	require.NoError(t, err)
	assert.Empty(t, cfg.CachePath)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(newCmd(t, "--timeout", "soon"))
	assert.Error(t, err)

	_, err = Load(newCmd(t, "-c", "50"))
	assert.Error(t, err)

	_, err = Load(newCmd(t, "-H", "nocolon"))
	assert.Error(t, err)
}

func TestDiagnosticsDefault(t *testing.T) {
	assert.False(t, DiagnosticsDefault(true, ""))
	assert.True(t, DiagnosticsDefault(false, ""))
	assert.True(t, DiagnosticsDefault(true, "Development"))
	assert.False(t, DiagnosticsDefault(true, "production"))
}
