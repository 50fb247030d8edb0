// Package session owns the lifecycle of the managed browser resource: the
// single serialization lock, export with its protection rule, the watchdog,
// and the exclusive manual login session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"session-keeper/internal/browser"
	"session-keeper/internal/domain/entity"
)

// State is the resource lifecycle state as tracked by the manager. The
// resource itself can only assert liveness through a probe.
type State int

const (
	StateStopped State = iota
	StateRunning
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCrashed:
		return "crashed"
	default:
		return "stopped"
	}
}

// ArtifactStore is the persistence surface the manager needs.
type ArtifactStore interface {
	Save(data []byte) (int, []string)
	LoadArtifact() (*entity.Artifact, error)
}

// Breaker gates and observes the expensive refresh path.
type Breaker interface {
	CanExecute() bool
	RecordSuccess()
	RecordFailure()
	IsOpen() bool
}

// Metrics is the subset of the keeper metrics the manager records.
type Metrics interface {
	RecordRestart(reason string)
	RecordExportRejection()
	SetArtifactRecords(count int)
}

// Health is the resource health snapshot.
type Health struct {
	Running       bool
	State         State
	UptimeSeconds int64
	MemoryMB      int
	NeedsRestart  bool
	Reason        string
}

// Config holds the manager's resource ceilings.
type Config struct {
	// MemoryCeilingMB forces a restart when the browser tree exceeds it.
	MemoryCeilingMB int

	// MemoryExportFraction of the ceiling triggers a proactive export.
	MemoryExportFraction float64

	// RotationCeiling forces a scheduled restart at this uptime.
	RotationCeiling time.Duration

	// LoginTimeout auto-expires an unattended manual login session.
	LoginTimeout time.Duration
}

// DefaultConfig returns the production ceilings.
func DefaultConfig() Config {
	return Config{
		MemoryCeilingMB:      1024,
		MemoryExportFraction: 0.8,
		RotationCeiling:      6 * time.Hour,
		LoginTimeout:         15 * time.Minute,
	}
}

// Manager wraps the browser resource. All resource operations serialize on
// one mutex: the resource is not reentrant, so start, stop, restart,
// refresh and health may never overlap. Artifact reads go straight to the
// store and never take this lock.
type Manager struct {
	mu          sync.Mutex
	driver      browser.Driver
	loginDriver browser.Driver
	store       ArtifactStore
	breaker     Breaker
	metrics     Metrics
	logger      *slog.Logger
	cfg         Config

	state            State
	startedAt        time.Time
	lastRefreshAt    time.Time
	needsManualLogin bool
	restarts         int

	loginActive    bool
	loginStartedAt time.Time
	loginExpire    *time.Timer
}

// NewManager creates a manager around the persistent driver. loginDriver
// backs manual login sessions and may be nil when visual login is not
// deployed.
func NewManager(driver, loginDriver browser.Driver, st ArtifactStore, br Breaker, m Metrics, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		driver:      driver,
		loginDriver: loginDriver,
		store:       st,
		breaker:     br,
		metrics:     m,
		logger:      logger,
		cfg:         cfg,
	}
}

// Start launches the resource and seeds it with the stored artifact so it
// continues the existing session. Starting a running resource is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx)
}

func (m *Manager) startLocked(ctx context.Context) error {
	if m.state == StateRunning {
		return nil
	}
	if m.loginActive {
		return entity.ErrResourceBusy
	}

	if err := m.driver.Start(ctx); err != nil {
		m.state = StateCrashed
		return fmt.Errorf("start resource: %w", err)
	}
	m.state = StateRunning
	m.startedAt = time.Now()

	if artifact, err := m.store.LoadArtifact(); err == nil {
		if err := m.driver.SeedCredentials(ctx, artifact.Cookies); err != nil {
			m.logger.Warn("seeding stored session failed", "error", err)
		}
	} else {
		m.logger.Warn("no stored artifact to seed", "error", err)
	}

	m.logger.Info("resource started")
	return nil
}

// Stop tears the resource down, exporting the current session first when
// export is true. Returns the exported record count.
func (m *Manager) Stop(ctx context.Context, export bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx, export)
}

func (m *Manager) stopLocked(ctx context.Context, export bool) (int, error) {
	if m.state == StateStopped {
		return 0, nil
	}

	// A crashed resource still holds a stale handle and a dead process
	// tree; it must go through driver teardown or the next Start fails
	// against the "already running" contract. Export is skipped: the
	// process is not answering.
	count := 0
	if export && m.state == StateRunning {
		var err error
		count, err = m.exportLocked(ctx, m.driver)
		if err != nil {
			m.logger.Warn("export before stop failed", "error", err)
		}
	}

	if err := m.driver.Stop(ctx); err != nil {
		m.logger.Warn("resource stop reported error", "error", err)
	}
	m.state = StateStopped
	m.logger.Info("resource stopped", "exported_records", count)
	return count, nil
}

// Restart is stop-with-export followed by start. reason feeds the restart
// metric.
func (m *Manager) Restart(ctx context.Context, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartLocked(ctx, reason)
}

func (m *Manager) restartLocked(ctx context.Context, reason string) error {
	if m.loginActive {
		return entity.ErrResourceBusy
	}

	if _, err := m.stopLocked(ctx, true); err != nil {
		m.logger.Warn("stop during restart failed", "error", err)
	}
	if err := m.startLocked(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	m.restarts++
	m.metrics.RecordRestart(reason)
	m.logger.Info("resource restarted", "reason", reason, "total_restarts", m.restarts)
	return nil
}

// RefreshAndExport drives the refresh interaction and exports the rotated
// session records. On a detected sign-out it attempts one bounded
// auto-relogin (re-seeding the stored session) before giving up. The
// outcome is reported to the circuit breaker.
func (m *Manager) RefreshAndExport(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loginActive {
		return 0, entity.ErrResourceBusy
	}
	if m.state != StateRunning {
		return 0, fmt.Errorf("resource not running (state=%s)", m.state)
	}

	count, err := m.refreshLocked(ctx)
	if err != nil {
		m.breaker.RecordFailure()
		return 0, err
	}
	m.breaker.RecordSuccess()
	m.lastRefreshAt = time.Now()
	return count, nil
}

func (m *Manager) refreshLocked(ctx context.Context) (int, error) {
	if err := m.driver.RefreshNavigate(ctx); err != nil {
		return 0, fmt.Errorf("refresh navigation: %w", err)
	}

	cookies, err := m.driver.ReadCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("read session records: %w", err)
	}

	if requiredCount(cookies) == 0 {
		authenticated, probeErr := m.driver.ProbeAuthenticated(ctx)
		m.logger.Warn("no required records after refresh",
			"probe_authenticated", authenticated,
			"probe_error", probeErr)

		cookies, err = m.autoReloginLocked(ctx)
		if err != nil {
			return 0, err
		}
	}

	return m.exportRecords(cookies)
}

// autoReloginLocked re-seeds the stored session and retries the refresh
// once. A second empty read means the session is genuinely gone and only a
// manual login can fix it.
func (m *Manager) autoReloginLocked(ctx context.Context) ([]entity.Cookie, error) {
	artifact, loadErr := m.store.LoadArtifact()
	if loadErr == nil {
		if err := m.driver.SeedCredentials(ctx, artifact.Cookies); err != nil {
			m.logger.Warn("re-seeding during auto-relogin failed", "error", err)
		}
		if err := m.driver.RefreshNavigate(ctx); err != nil {
			return nil, fmt.Errorf("auto-relogin navigation: %w", err)
		}
		cookies, err := m.driver.ReadCredentials(ctx)
		if err != nil {
			return nil, fmt.Errorf("read after auto-relogin: %w", err)
		}
		if requiredCount(cookies) > 0 {
			m.logger.Info("auto-relogin recovered the session")
			return cookies, nil
		}
	}

	m.needsManualLogin = true
	m.metrics.RecordExportRejection()
	return nil, fmt.Errorf("session gone after auto-relogin: %w", entity.ErrNoSession)
}

// ForceExport exports the current resource state on demand.
func (m *Manager) ForceExport(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	driver := m.driver
	if m.loginActive {
		driver = m.loginDriver
	} else if m.state != StateRunning {
		return 0, fmt.Errorf("resource not running (state=%s)", m.state)
	}
	return m.exportLocked(ctx, driver)
}

// exportLocked reads the driver's records and persists them, enforcing the
// protection rule: a read with zero required records never overwrites a
// stored artifact that has any.
func (m *Manager) exportLocked(ctx context.Context, driver browser.Driver) (int, error) {
	cookies, err := driver.ReadCredentials(ctx)
	if err != nil {
		return 0, fmt.Errorf("read session records: %w", err)
	}
	return m.exportRecords(cookies)
}

func (m *Manager) exportRecords(cookies []entity.Cookie) (int, error) {
	artifact := entity.NewArtifact(cookies)

	if artifact.RequiredCount() == 0 {
		m.needsManualLogin = true
		m.metrics.RecordExportRejection()
		m.logger.Warn("export rejected: no required records in browser state",
			"total_records", len(cookies))
		return 0, fmt.Errorf("export rejected: %w", entity.ErrNoSession)
	}

	ok, failed := m.store.Save(artifact.Encode())
	if ok == 0 {
		return 0, fmt.Errorf("no tier persisted the artifact (failed: %v)", failed)
	}
	m.metrics.SetArtifactRecords(artifact.Len())
	m.logger.Info("artifact exported",
		"records", artifact.Len(),
		"required", artifact.RequiredCount(),
		"tiers_ok", ok)
	return artifact.Len(), nil
}

// GetHealth probes the resource and reports its health snapshot.
func (m *Manager) GetHealth(ctx context.Context) Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRunning {
		return Health{State: m.state, Reason: "resource " + m.state.String()}
	}

	if !m.driver.ProbeLiveness(ctx) {
		m.state = StateCrashed
		return Health{State: StateCrashed, NeedsRestart: true, Reason: "liveness probe failed"}
	}

	h := Health{
		Running:       true,
		State:         StateRunning,
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
	}
	if mem, err := m.driver.MemoryMB(); err == nil {
		h.MemoryMB = mem
	} else {
		m.logger.Debug("memory read failed", "error", err)
	}

	switch {
	case m.cfg.MemoryCeilingMB > 0 && h.MemoryMB > m.cfg.MemoryCeilingMB:
		h.NeedsRestart = true
		h.Reason = "memory over ceiling"
	case m.cfg.RotationCeiling > 0 && time.Since(m.startedAt) > m.cfg.RotationCeiling:
		h.NeedsRestart = true
		h.Reason = "uptime over rotation ceiling"
	}
	return h
}

// ProbeAuthenticated runs the cheap auth probe through the resource lock.
func (m *Manager) ProbeAuthenticated(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loginActive {
		return false, entity.ErrResourceBusy
	}
	if m.state != StateRunning {
		return false, fmt.Errorf("resource not running (state=%s)", m.state)
	}
	return m.driver.ProbeAuthenticated(ctx)
}

// NeedsManualLogin reports whether only a manual login can restore the
// session.
func (m *Manager) NeedsManualLogin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.needsManualLogin
}

// ManualSessionActive reports whether an exclusive login session holds the
// resource.
func (m *Manager) ManualSessionActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginActive
}

// LastRefreshAt returns the time of the last successful refresh-and-export.
func (m *Manager) LastRefreshAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRefreshAt
}

// StateNow returns the tracked lifecycle state.
func (m *Manager) StateNow() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func requiredCount(cookies []entity.Cookie) int {
	n := 0
	for _, c := range cookies {
		if c.IsRequired() {
			n++
		}
	}
	return n
}
