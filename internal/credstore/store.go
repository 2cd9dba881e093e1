package credstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Persister is the durable key-value layer behind the store. Load returns
// the zero Credential when nothing is persisted.
type Persister interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, c Credential) error
	Clear(ctx context.Context) error
}

// Store is the in-memory credential snapshot with write-through persistence.
type Store struct {
	// writeMu serialises Set/Clear/Reload so the persisted copy is written
	// in the same order as the in-memory commits. mu guards the snapshot
	// only, so readers never wait on I/O.
	writeMu   sync.Mutex
	mu        sync.RWMutex
	cred      Credential
	gen       uint64
	persister Persister
	logger    *slog.Logger
}

// Open creates a store and rehydrates it from p. No validation is done:
// an expired token is only discovered when the backend rejects it. A
// persisted copy that cannot be read is logged and treated as absent.
func Open(ctx context.Context, p Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{persister: p, logger: logger}

	cred, err := p.Load(ctx)
	if err != nil {
		logger.Warn("ignoring unreadable persisted credential",
			slog.String("error", err.Error()),
		)

		return s
	}

	s.cred = cred

	logger.Debug("credential rehydrated",
		slog.Bool("authenticated", cred.Authenticated()),
		slog.Bool("has_refresh_token", cred.HasRefreshToken()),
	)

	return s
}

// Get returns the current snapshot. It never blocks on I/O.
func (s *Store) Get() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred
}

// Current returns the snapshot together with its generation.
func (s *Store) Current() (Credential, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cred, s.gen
}

// Generation returns a counter bumped by every Set, Clear and Reload that
// changed the snapshot.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.gen
}

// IsAuthenticated reports whether an access token is present.
func (s *Store) IsAuthenticated() bool {
	return s.Get().Authenticated()
}

// Set replaces the snapshot and persists it. The in-memory snapshot is
// committed even when persistence fails; the error is returned so the
// caller can surface it.
func (s *Store) Set(ctx context.Context, c Credential) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.cred = c
	s.gen++
	s.mu.Unlock()

	if err := s.persister.Save(ctx, c); err != nil {
		s.logger.Warn("failed to persist credential", slog.String("error", err.Error()))
		return fmt.Errorf("credstore: persisting credential: %w", err)
	}

	return nil
}

// Clear drops both tokens from memory and from the persisted copy. The
// user profile is not the store's concern; the session controller clears it.
func (s *Store) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	wasSet := !s.cred.IsZero()
	s.cred = Credential{}
	s.gen++
	s.mu.Unlock()

	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted credential", slog.String("error", err.Error()))
		return fmt.Errorf("credstore: clearing credential: %w", err)
	}

	if wasSet {
		s.logger.Debug("credential cleared")
	}

	return nil
}

// Reload re-reads the persisted copy and adopts it if it differs from the
// in-memory snapshot. Used when another process changed the token file.
// Reports whether the snapshot changed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cred, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("credstore: reloading credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cred.equal(s.cred) {
		return false, nil
	}

	s.cred = cred
	s.gen++

	s.logger.Info("credential changed on disk, reloaded",
		slog.Bool("authenticated", cred.Authenticated()),
	)

	return true, nil
}
