// Package config assembles the keeper's runtime configuration from an
// optional YAML file overlaid by environment variables. Loading is
// fail-open: invalid values fall back to defaults with a warning, so a
// typo in one variable never prevents the process from starting.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	pkgconfig "session-keeper/internal/pkg/config"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvConfigFile          = "KEEPER_CONFIG_FILE"
	EnvTierPaths           = "KEEPER_TIER_PATHS"
	EnvBrowserBin          = "KEEPER_BROWSER_BIN"
	EnvHeadless            = "KEEPER_HEADLESS"
	EnvUserDataDir         = "KEEPER_USER_DATA_DIR"
	EnvLoginUserDataDir    = "KEEPER_LOGIN_USER_DATA_DIR"
	EnvTargetURL           = "KEEPER_TARGET_URL"
	EnvProbeURL            = "KEEPER_PROBE_URL"
	EnvCookieDomain        = "KEEPER_COOKIE_DOMAIN"
	EnvNavTimeout          = "KEEPER_NAV_TIMEOUT"
	EnvMemoryCeilingMB     = "KEEPER_MEMORY_CEILING_MB"
	EnvMemoryExportPercent = "KEEPER_MEMORY_EXPORT_PERCENT"
	EnvRotationCeiling     = "KEEPER_ROTATION_CEILING"
	EnvLoginTimeout        = "KEEPER_LOGIN_TIMEOUT"
	EnvWatchdogSchedule    = "KEEPER_WATCHDOG_SCHEDULE"
	EnvRepersistInterval   = "KEEPER_REPERSIST_INTERVAL"
	EnvWebhookURL          = "KEEPER_WEBHOOK_URL"
	EnvMetricsAddr         = "KEEPER_METRICS_ADDR"
	EnvLogLevel            = "KEEPER_LOG_LEVEL"
)

// Defaults.
const (
	defaultUserDataDir      = "/data/browser-profile"
	defaultLoginUserDataDir = "/data/browser-profile-login"
	defaultTargetURL        = "https://www.youtube.com"
	defaultProbeURL         = "https://www.youtube.com"
	defaultCookieDomain     = "youtube.com"
	defaultNavTimeout       = 60 * time.Second
	defaultMemoryCeilingMB  = 1024
	defaultExportPercent    = 80
	defaultRotationCeiling  = 6 * time.Hour
	defaultLoginTimeout     = 15 * time.Minute
	defaultWatchdogSchedule = "@every 5m"
	defaultRepersist        = time.Hour
	defaultMetricsAddr      = ":9090"
	defaultLogLevel         = "info"
)

// Config is the fully resolved keeper configuration.
type Config struct {
	// TierPaths are the persisted artifact locations in priority order.
	// Empty means the store's built-in defaults.
	TierPaths []string

	BrowserBin       string
	Headless         bool
	UserDataDir      string
	LoginUserDataDir string
	TargetURL        string
	ProbeURL         string
	CookieDomain     string
	NavTimeout       time.Duration

	MemoryCeilingMB      int
	MemoryExportFraction float64
	RotationCeiling      time.Duration
	LoginTimeout         time.Duration

	WatchdogSchedule  string
	RepersistInterval time.Duration

	// WebhookURL is the alert endpoint; empty disables alerting.
	WebhookURL string

	MetricsAddr string
	LogLevel    string
}

// fileConfig is the YAML shape. Every field is optional; set fields
// become the defaults the environment can still override.
type fileConfig struct {
	TierPaths        []string `yaml:"tier_paths"`
	BrowserBin       string   `yaml:"browser_bin"`
	Headless         *bool    `yaml:"headless"`
	UserDataDir      string   `yaml:"user_data_dir"`
	LoginUserDataDir string   `yaml:"login_user_data_dir"`
	TargetURL        string   `yaml:"target_url"`
	ProbeURL         string   `yaml:"probe_url"`
	CookieDomain     string   `yaml:"cookie_domain"`
	NavTimeout       string   `yaml:"nav_timeout"`
	MemoryCeilingMB  int      `yaml:"memory_ceiling_mb"`
	ExportPercent    int      `yaml:"memory_export_percent"`
	RotationCeiling  string   `yaml:"rotation_ceiling"`
	LoginTimeout     string   `yaml:"login_timeout"`
	WatchdogSchedule string   `yaml:"watchdog_schedule"`
	Repersist        string   `yaml:"repersist_interval"`
	WebhookURL       string   `yaml:"webhook_url"`
	MetricsAddr      string   `yaml:"metrics_addr"`
	LogLevel         string   `yaml:"log_level"`
}

// Load metrics are constructed once per process: the underlying
// registration panics on duplicate names and Load runs again on reload.
var (
	metricsOnce sync.Once
	loadMetrics *pkgconfig.ConfigMetrics
)

func configMetrics() *pkgconfig.ConfigMetrics {
	metricsOnce.Do(func() {
		loadMetrics = pkgconfig.NewConfigMetrics("keeper")
	})
	return loadMetrics
}

// Load resolves the configuration: built-in defaults, then the YAML file
// named by KEEPER_CONFIG_FILE (if any), then environment variables.
// Returns the config plus any fallback warnings for the caller to log.
func Load() (*Config, []string, error) {
	cfg := defaults()
	cm := configMetrics()

	var warnings []string

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.applyFile(path); err != nil {
			cm.RecordValidationError("config_file")
			return nil, nil, err
		}
	}

	warnings = append(warnings, cfg.applyEnv(cm)...)

	cm.RecordLoadTimestamp()
	cm.SetFallbackActive(len(warnings) > 0)

	return cfg, warnings, nil
}

func defaults() *Config {
	return &Config{
		Headless:             true,
		UserDataDir:          defaultUserDataDir,
		LoginUserDataDir:     defaultLoginUserDataDir,
		TargetURL:            defaultTargetURL,
		ProbeURL:             defaultProbeURL,
		CookieDomain:         defaultCookieDomain,
		NavTimeout:           defaultNavTimeout,
		MemoryCeilingMB:      defaultMemoryCeilingMB,
		MemoryExportFraction: float64(defaultExportPercent) / 100,
		RotationCeiling:      defaultRotationCeiling,
		LoginTimeout:         defaultLoginTimeout,
		WatchdogSchedule:     defaultWatchdogSchedule,
		RepersistInterval:    defaultRepersist,
		MetricsAddr:          defaultMetricsAddr,
		LogLevel:             defaultLogLevel,
	}
}

// applyFile overlays a YAML file. File errors are hard failures: an
// explicitly named config file that cannot be read or parsed is an
// operator mistake worth stopping for.
func (c *Config) applyFile(path string) error {
	// #nosec G304 -- path comes from the operator's own environment
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(fc.TierPaths) > 0 {
		c.TierPaths = fc.TierPaths
	}
	if fc.BrowserBin != "" {
		c.BrowserBin = fc.BrowserBin
	}
	if fc.Headless != nil {
		c.Headless = *fc.Headless
	}
	if fc.UserDataDir != "" {
		c.UserDataDir = fc.UserDataDir
	}
	if fc.LoginUserDataDir != "" {
		c.LoginUserDataDir = fc.LoginUserDataDir
	}
	if fc.TargetURL != "" {
		c.TargetURL = fc.TargetURL
	}
	if fc.ProbeURL != "" {
		c.ProbeURL = fc.ProbeURL
	}
	if fc.CookieDomain != "" {
		c.CookieDomain = fc.CookieDomain
	}
	if fc.MemoryCeilingMB > 0 {
		c.MemoryCeilingMB = fc.MemoryCeilingMB
	}
	if fc.ExportPercent > 0 {
		c.MemoryExportFraction = float64(fc.ExportPercent) / 100
	}
	if fc.WatchdogSchedule != "" {
		c.WatchdogSchedule = fc.WatchdogSchedule
	}
	if fc.WebhookURL != "" {
		c.WebhookURL = fc.WebhookURL
	}
	if fc.MetricsAddr != "" {
		c.MetricsAddr = fc.MetricsAddr
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}

	durations := []struct {
		raw    string
		target *time.Duration
	}{
		{fc.NavTimeout, &c.NavTimeout},
		{fc.RotationCeiling, &c.RotationCeiling},
		{fc.LoginTimeout, &c.LoginTimeout},
		{fc.Repersist, &c.RepersistInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q in config file %s: %w", d.raw, path, err)
		}
		*d.target = parsed
	}

	return nil
}

// applyEnv overlays environment variables on top of the current values,
// collecting fallback warnings instead of failing. Each applied fallback
// is also counted on the config metrics under its field name.
func (c *Config) applyEnv(cm *pkgconfig.ConfigMetrics) []string {
	var warnings []string

	collect := func(field string, res pkgconfig.ConfigLoadResult) pkgconfig.ConfigLoadResult {
		warnings = append(warnings, res.Warnings...)
		if res.FallbackApplied {
			cm.RecordValidationError(field)
			cm.RecordFallback(field)
		}
		return res
	}

	if raw := os.Getenv(EnvTierPaths); raw != "" {
		var paths []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		if len(paths) > 0 {
			c.TierPaths = paths
		}
	}

	c.BrowserBin = pkgconfig.LoadEnvString(EnvBrowserBin, c.BrowserBin)
	c.UserDataDir = pkgconfig.LoadEnvString(EnvUserDataDir, c.UserDataDir)
	c.LoginUserDataDir = pkgconfig.LoadEnvString(EnvLoginUserDataDir, c.LoginUserDataDir)
	c.TargetURL = pkgconfig.LoadEnvString(EnvTargetURL, c.TargetURL)
	c.ProbeURL = pkgconfig.LoadEnvString(EnvProbeURL, c.ProbeURL)
	c.CookieDomain = pkgconfig.LoadEnvString(EnvCookieDomain, c.CookieDomain)
	c.WebhookURL = pkgconfig.LoadEnvString(EnvWebhookURL, c.WebhookURL)
	c.MetricsAddr = pkgconfig.LoadEnvString(EnvMetricsAddr, c.MetricsAddr)
	c.LogLevel = pkgconfig.LoadEnvString(EnvLogLevel, c.LogLevel)

	headless := collect("headless", pkgconfig.LoadEnvBool(EnvHeadless, c.Headless))
	c.Headless = headless.Value.(bool)

	navTimeout := collect("nav_timeout",
		pkgconfig.LoadEnvDuration(EnvNavTimeout, c.NavTimeout, pkgconfig.ValidatePositiveDuration))
	c.NavTimeout = navTimeout.Value.(time.Duration)

	ceiling := collect("memory_ceiling_mb",
		pkgconfig.LoadEnvInt(EnvMemoryCeilingMB, c.MemoryCeilingMB, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 128, 16384)
		}))
	c.MemoryCeilingMB = ceiling.Value.(int)

	percent := collect("memory_export_percent",
		pkgconfig.LoadEnvInt(EnvMemoryExportPercent, int(c.MemoryExportFraction*100), func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 100)
		}))
	c.MemoryExportFraction = float64(percent.Value.(int)) / 100

	rotation := collect("rotation_ceiling",
		pkgconfig.LoadEnvDuration(EnvRotationCeiling, c.RotationCeiling, pkgconfig.ValidatePositiveDuration))
	c.RotationCeiling = rotation.Value.(time.Duration)

	loginTimeout := collect("login_timeout",
		pkgconfig.LoadEnvDuration(EnvLoginTimeout, c.LoginTimeout, pkgconfig.ValidatePositiveDuration))
	c.LoginTimeout = loginTimeout.Value.(time.Duration)

	schedule := collect("watchdog_schedule",
		pkgconfig.LoadEnvWithFallback(EnvWatchdogSchedule, c.WatchdogSchedule, pkgconfig.ValidateCronSchedule))
	c.WatchdogSchedule = schedule.Value.(string)

	repersist := collect("repersist_interval",
		pkgconfig.LoadEnvDuration(EnvRepersistInterval, c.RepersistInterval, pkgconfig.ValidatePositiveDuration))
	c.RepersistInterval = repersist.Value.(time.Duration)

	return warnings
}
