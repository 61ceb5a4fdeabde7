// Package lock implementa ports.TenantLocker: en memoria para un solo proceso
// y sobre Redis para varias réplicas del servicio.
package lock

import (
	"context"
	"sync"

	"github.com/jhoicas/tenant-billing-api/internal/application/ports"
)

// MemoryLocker lock por tenant dentro del proceso.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]uint64
	seq  uint64
}

// NewMemoryLocker crea el locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]uint64)}
}

// Acquire devuelve ports.ErrLockHeld si el tenant ya está bloqueado.
func (m *MemoryLocker) Acquire(_ context.Context, tenantID string) (ports.Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[tenantID]; ok {
		return nil, ports.ErrLockHeld
	}
	m.seq++
	m.held[tenantID] = m.seq
	return &memoryLock{owner: m, tenantID: tenantID, token: m.seq}, nil
}

type memoryLock struct {
	owner    *MemoryLocker
	tenantID string
	token    uint64
}

func (l *memoryLock) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if l.owner.held[l.tenantID] == l.token {
		delete(l.owner.held, l.tenantID)
	}
	return nil
}
