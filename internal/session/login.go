package session

import (
	"context"
	"fmt"
	"time"
)

// StartLogin begins an exclusive manual login session: the persistent
// resource is stopped (exporting its session first) and the login driver is
// launched for the operator. The session auto-expires after the configured
// timeout if it is never explicitly stopped.
func (m *Manager) StartLogin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loginActive {
		return fmt.Errorf("manual login session already active")
	}
	if m.loginDriver == nil {
		return fmt.Errorf("manual login not configured")
	}

	if _, err := m.stopLocked(ctx, true); err != nil {
		m.logger.Warn("stop before manual login failed", "error", err)
	}

	if err := m.loginDriver.Start(ctx); err != nil {
		// The persistent resource comes back up so the keeper keeps running.
		if startErr := m.startLocked(ctx); startErr != nil {
			m.logger.Error("resource restart after failed login start", "error", startErr)
		}
		return fmt.Errorf("start login session: %w", err)
	}

	m.loginActive = true
	m.loginStartedAt = time.Now()
	m.loginExpire = time.AfterFunc(m.cfg.LoginTimeout, func() {
		m.logger.Warn("manual login session expired", "timeout", m.cfg.LoginTimeout.String())
		if _, err := m.StopLogin(context.Background()); err != nil {
			m.logger.Error("expiring login session failed", "error", err)
		}
	})

	m.logger.Info("manual login session started", "timeout", m.cfg.LoginTimeout.String())
	return nil
}

// StopLogin ends the manual login session: exports the session records the
// operator produced, tears the login driver down, and restarts the
// persistent resource. Idempotent: stopping an inactive session is a no-op.
// Returns the exported record count; a successful export clears the
// needs-manual-login flag.
func (m *Manager) StopLogin(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loginActive {
		return 0, nil
	}
	if m.loginExpire != nil {
		m.loginExpire.Stop()
		m.loginExpire = nil
	}

	count, exportErr := m.exportLocked(ctx, m.loginDriver)
	if exportErr != nil {
		m.logger.Warn("export from login session failed", "error", exportErr)
	} else if count > 0 {
		m.needsManualLogin = false
		m.logger.Info("manual login produced a fresh session", "records", count)
	}

	if err := m.loginDriver.Stop(ctx); err != nil {
		m.logger.Warn("login driver stop reported error", "error", err)
	}
	m.loginActive = false

	if err := m.startLocked(ctx); err != nil {
		m.logger.Error("resource restart after login session failed", "error", err)
	}

	return count, exportErr
}

// LoginSessionInfo reports whether a login session is active and when it
// started.
func (m *Manager) LoginSessionInfo() (active bool, startedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginActive, m.loginStartedAt
}
