package credstore

import (
	"context"
	"sync"
)

// MemoryPersister keeps the credential in process memory. Used for
// ephemeral sessions and tests.
type MemoryPersister struct {
	mu    sync.Mutex
	cred  Credential
	saves int
}

// NewMemoryPersister returns a persister seeded with c.
func NewMemoryPersister(c Credential) *MemoryPersister {
	return &MemoryPersister{cred: c}
}

// Load implements Persister.
func (m *MemoryPersister) Load(_ context.Context) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cred, nil
}

// Save implements Persister.
func (m *MemoryPersister) Save(_ context.Context, c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = c
	m.saves++

	return nil
}

// Clear implements Persister.
func (m *MemoryPersister) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cred = Credential{}

	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saves
}
