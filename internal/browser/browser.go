// Package browser defines the capability surface of the managed browser
// resource and provides the rod-based implementation. The session manager
// only ever talks to the Driver interface, so a different backend (or a
// test fake) can be swapped in without touching the resilience logic.
package browser

import (
	"context"
	"time"

	"session-keeper/internal/domain/entity"
)

// Driver is the managed browser resource. Implementations are NOT required
// to be safe for concurrent use; the session manager serializes all calls
// behind its resource lock.
type Driver interface {
	// Start launches the resource. Fails if it is already running.
	Start(ctx context.Context) error

	// Stop tears the resource down. Stopping a stopped resource is a no-op.
	Stop(ctx context.Context) error

	// Restart is stop-then-start.
	Restart(ctx context.Context) error

	// RefreshNavigate drives the resource through the refresh interaction
	// that makes the remote site rotate its session records.
	RefreshNavigate(ctx context.Context) error

	// ReadCredentials reads the current session records out of the
	// resource state.
	ReadCredentials(ctx context.Context) ([]entity.Cookie, error)

	// SeedCredentials loads stored session records into the resource so a
	// fresh process continues the existing session.
	SeedCredentials(ctx context.Context, cookies []entity.Cookie) error

	// ProbeLiveness is a cheap is-the-process-alive check.
	ProbeLiveness(ctx context.Context) bool

	// ProbeAuthenticated checks whether the resource still appears signed
	// in. Best-effort; the caller decides how much to trust it.
	ProbeAuthenticated(ctx context.Context) (bool, error)

	// MemoryMB reports the resident memory of the resource process tree.
	MemoryMB() (int, error)
}

// Config holds the settings for the rod backend.
type Config struct {
	// Bin is the browser binary path; empty lets the launcher resolve it.
	Bin string

	// Headless controls whether the browser runs without a display.
	Headless bool

	// NoSandbox disables the browser sandbox, required in most containers.
	NoSandbox bool

	// UserDataDir is the persistent profile directory. A persistent
	// profile is what lets the session survive a browser restart.
	UserDataDir string

	// TargetURL is the page navigated during a refresh interaction.
	TargetURL string

	// ProbeURL is the cheap page used by the authentication probe.
	ProbeURL string

	// CookieDomain filters exported records to the site's domain and its
	// subdomains. Empty exports everything.
	CookieDomain string

	// NavigationTimeout bounds every navigation and probe.
	NavigationTimeout time.Duration
}

// DefaultConfig returns the settings used in production deployments.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NoSandbox:         true,
		UserDataDir:       "/data/browser-profile",
		TargetURL:         "https://www.youtube.com",
		ProbeURL:          "https://www.youtube.com",
		CookieDomain:      "youtube.com",
		NavigationTimeout: 60 * time.Second,
	}
}
