package service

import (
	"sync"

	"github.com/olusolaa/cloud-reconciler/internal/core/domain"
)

// identityLocks serializes concurrent reconcile calls against the same
// ResourceIdentity. Operations on different identities proceed freely.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the identity's lock is held and returns the
// release function.
func (l *identityLocks) acquire(id domain.ResourceIdentity) func() {
	key := id.String()

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
