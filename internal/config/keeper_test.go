package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeeperEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvConfigFile, EnvTierPaths, EnvBrowserBin, EnvHeadless,
		EnvUserDataDir, EnvLoginUserDataDir, EnvTargetURL, EnvProbeURL,
		EnvCookieDomain, EnvNavTimeout, EnvMemoryCeilingMB,
		EnvMemoryExportPercent, EnvRotationCeiling, EnvLoginTimeout,
		EnvWatchdogSchedule, EnvRepersistInterval, EnvWebhookURL,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearKeeperEnv(t)

	cfg, warnings, err := Load()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, cfg.TierPaths)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 60*time.Second, cfg.NavTimeout)
	assert.Equal(t, 1024, cfg.MemoryCeilingMB)
	assert.InDelta(t, 0.8, cfg.MemoryExportFraction, 0.001)
	assert.Equal(t, 6*time.Hour, cfg.RotationCeiling)
	assert.Equal(t, 15*time.Minute, cfg.LoginTimeout)
	assert.Equal(t, "@every 5m", cfg.WatchdogSchedule)
	assert.Equal(t, time.Hour, cfg.RepersistInterval)
	assert.Empty(t, cfg.WebhookURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearKeeperEnv(t)
	t.Setenv(EnvTierPaths, "/var/a.txt, /var/b.txt,")
	t.Setenv(EnvHeadless, "false")
	t.Setenv(EnvNavTimeout, "30s")
	t.Setenv(EnvMemoryCeilingMB, "2048")
	t.Setenv(EnvMemoryExportPercent, "50")
	t.Setenv(EnvWatchdogSchedule, "@every 1m")
	t.Setenv(EnvWebhookURL, "https://hooks.example.com/abc")

	cfg, warnings, err := Load()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{"/var/a.txt", "/var/b.txt"}, cfg.TierPaths)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.NavTimeout)
	assert.Equal(t, 2048, cfg.MemoryCeilingMB)
	assert.InDelta(t, 0.5, cfg.MemoryExportFraction, 0.001)
	assert.Equal(t, "@every 1m", cfg.WatchdogSchedule)
	assert.Equal(t, "https://hooks.example.com/abc", cfg.WebhookURL)
}

func TestLoadInvalidValuesFallBackWithWarnings(t *testing.T) {
	clearKeeperEnv(t)
	t.Setenv(EnvNavTimeout, "not-a-duration")
	t.Setenv(EnvMemoryCeilingMB, "64") // below minimum
	t.Setenv(EnvWatchdogSchedule, "every five minutes")

	cfg, warnings, err := Load()

	require.NoError(t, err)
	assert.Len(t, warnings, 3)
	assert.Equal(t, 60*time.Second, cfg.NavTimeout)
	assert.Equal(t, 1024, cfg.MemoryCeilingMB)
	assert.Equal(t, "@every 5m", cfg.WatchdogSchedule)
}

func TestLoadCountsFallbacksPerField(t *testing.T) {
	clearKeeperEnv(t)
	t.Setenv(EnvNavTimeout, "soon")

	cm := configMetrics()
	fallbacksBefore := testutil.ToFloat64(cm.FallbacksTotal.WithLabelValues("nav_timeout"))
	errorsBefore := testutil.ToFloat64(cm.ValidationErrorsTotal.WithLabelValues("nav_timeout"))

	_, warnings, err := Load()

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, fallbacksBefore+1,
		testutil.ToFloat64(cm.FallbacksTotal.WithLabelValues("nav_timeout")))
	assert.Equal(t, errorsBefore+1,
		testutil.ToFloat64(cm.ValidationErrorsTotal.WithLabelValues("nav_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cm.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(cm.LoadTimestamp), 0.0)
}

func TestLoadClearsFallbackGauge(t *testing.T) {
	clearKeeperEnv(t)
	cm := configMetrics()
	cm.SetFallbackActive(true)

	_, warnings, err := Load()

	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Zero(t, testutil.ToFloat64(cm.FallbackActive))
}

func TestLoadYAMLFile(t *testing.T) {
	clearKeeperEnv(t)
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	body := `
tier_paths:
  - /mnt/primary/cookies.txt
  - /mnt/backup/cookies.txt
headless: false
nav_timeout: 45s
memory_ceiling_mb: 1536
memory_export_percent: 70
webhook_url: https://hooks.example.com/file
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv(EnvConfigFile, path)

	cfg, _, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"/mnt/primary/cookies.txt", "/mnt/backup/cookies.txt"}, cfg.TierPaths)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 45*time.Second, cfg.NavTimeout)
	assert.Equal(t, 1536, cfg.MemoryCeilingMB)
	assert.InDelta(t, 0.7, cfg.MemoryExportFraction, 0.001)
	assert.Equal(t, "https://hooks.example.com/file", cfg.WebhookURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	clearKeeperEnv(t)
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nav_timeout: 45s\nlog_level: debug\n"), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvNavTimeout, "90s")

	cfg, _, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.NavTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileFails(t *testing.T) {
	clearKeeperEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))

	_, _, err := Load()

	assert.Error(t, err)
}

func TestLoadBadDurationInFileFails(t *testing.T) {
	clearKeeperEnv(t)
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rotation_ceiling: six hours\n"), 0o600))
	t.Setenv(EnvConfigFile, path)

	_, _, err := Load()

	assert.Error(t, err)
}
