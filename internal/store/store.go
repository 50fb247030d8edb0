// Package store persists the credential artifact across an ordered chain of
// file tiers with a memory cache in front and an environment bootstrap
// behind. Readers always get the freshest copy that still validates.
package store

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"

	"session-keeper/internal/domain/entity"
)

// DefaultTierPaths is the tier chain used when no configuration overrides
// it. Order is significance: the first tier is the primary copy consumers
// read, the later tiers are fallbacks on progressively cheaper storage.
var DefaultTierPaths = []string{
	"/data/cookies.txt",
	"/tmp/cookies_backup.txt",
	"/data/cookies_shadow.txt",
}

// BootstrapEnv names the environment variable holding a base64 artifact
// used to seed a fresh deployment that has no tier files yet.
const BootstrapEnv = "KEEPER_COOKIES_B64"

// Store is the tiered artifact store. Save and Load are safe for
// concurrent use.
type Store struct {
	tierPaths    []string
	bootstrapEnv string
	cache        *memoryCache
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTierPaths overrides the default tier chain.
func WithTierPaths(paths []string) Option {
	return func(s *Store) {
		if len(paths) > 0 {
			s.tierPaths = paths
		}
	}
}

// WithBootstrapEnv overrides the bootstrap environment variable name.
func WithBootstrapEnv(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.bootstrapEnv = name
		}
	}
}

// New creates a Store with the default tier chain and cache TTL.
func New(logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		tierPaths:    DefaultTierPaths,
		bootstrapEnv: BootstrapEnv,
		cache:        newMemoryCache(defaultCacheTTL),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TierPaths returns a copy of the configured tier chain.
func (s *Store) TierPaths() []string {
	out := make([]string, len(s.tierPaths))
	copy(out, s.tierPaths)
	return out
}

// Save writes content to every tier via write-temp-then-rename and updates
// the memory cache unconditionally, even when every tier write fails. It
// returns the number of tiers written and the paths that failed; a save
// with at least one successful tier is considered durable.
func (s *Store) Save(data []byte) (int, []string) {
	s.cache.Put(data)

	succeeded := 0
	var failed []string
	for _, path := range s.tierPaths {
		if err := writeTier(path, data); err != nil {
			s.logger.Warn("tier write failed", "path", path, "error", err)
			failed = append(failed, path)
			continue
		}
		succeeded++
	}

	s.logger.Info("artifact saved",
		"tiers_ok", succeeded,
		"tiers_failed", len(failed),
		"bytes", len(data))
	return succeeded, failed
}

// Load resolves the freshest valid artifact: memory cache first, then each
// tier in order, then the bootstrap environment variable. A bootstrap hit
// is re-saved to the tiers so the next load comes from disk. Returns
// entity.ErrNotFound when no source yields valid content.
func (s *Store) Load() ([]byte, error) {
	if data, ok := s.cache.Get(); ok {
		if entity.Valid(data) {
			return data, nil
		}
		// A stale session may have rotted in place; fall through to disk.
		s.cache.Invalidate()
	}

	for _, path := range s.tierPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !entity.Valid(data) {
			s.logger.Warn("tier content failed validation", "path", path)
			continue
		}
		s.cache.Put(data)
		return data, nil
	}

	if data, ok := s.loadBootstrap(); ok {
		s.logger.Info("artifact recovered from bootstrap environment")
		s.Save(data)
		return data, nil
	}

	return nil, fmt.Errorf("no valid artifact in cache, tiers or bootstrap: %w", entity.ErrNotFound)
}

// LoadArtifact is Load plus decoding into the domain type.
func (s *Store) LoadArtifact() (*entity.Artifact, error) {
	data, err := s.Load()
	if err != nil {
		return nil, err
	}
	return entity.Decode(data)
}

// Repersist re-saves the best stored copy to every tier. Used by the
// disaster-recovery loop and by emergency handling when the mint is
// unavailable and the stored artifact is all there is.
func (s *Store) Repersist() (int, error) {
	data, err := s.Load()
	if err != nil {
		return 0, err
	}
	ok, failed := s.Save(data)
	if ok == 0 {
		return 0, fmt.Errorf("repersist wrote no tiers (failed: %v)", failed)
	}
	return ok, nil
}

// CacheInfo exposes the cache freshness snapshot for status reporting.
func (s *Store) CacheInfo() (hash string, age int64, ok bool) {
	return s.cache.Info()
}

func (s *Store) loadBootstrap() ([]byte, bool) {
	raw := os.Getenv(s.bootstrapEnv)
	if raw == "" {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		s.logger.Warn("bootstrap content is not valid base64", "error", err)
		return nil, false
	}
	// The decoded bytes are seeded verbatim: trimming would break the
	// byte-identical round trip consumers rely on.
	if !entity.Valid(data) {
		s.logger.Warn("bootstrap content failed validation")
		return nil, false
	}
	return data, true
}

func writeTier(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create tier directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("atomic write: %w", err)
	}
	return nil
}
