// Package cache mantiene en memoria las respuestas del gate de módulos.
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ModuleChecker fuente de verdad de isModuleEnabled.
type ModuleChecker interface {
	IsModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error)
}

// LookupRecorder recibe aciertos y fallos de la caché (métricas).
type LookupRecorder interface {
	EntitlementLookup(hit bool)
}

const keySep = "\x00"

// EntitlementCache envuelve un ModuleChecker con LRU expirable.
// Las consultas concurrentes a la misma clave se resuelven una sola vez.
// Invalidate descarta las entradas del tenant tras cualquier escritura.
type EntitlementCache struct {
	next     ModuleChecker
	lru      *lru.LRU[string, bool]
	group    singleflight.Group
	recorder LookupRecorder
	gen      atomic.Uint64
}

// NewEntitlementCache construye la caché. size <= 0 usa 4096; ttl <= 0 usa 30 s.
func NewEntitlementCache(next ModuleChecker, size int, ttl time.Duration, recorder LookupRecorder) *EntitlementCache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &EntitlementCache{
		next:     next,
		lru:      lru.NewLRU[string, bool](size, nil, ttl),
		recorder: recorder,
	}
}

// IsModuleEnabled responde desde la caché o consulta la fuente.
// Los errores no se cachean.
func (c *EntitlementCache) IsModuleEnabled(ctx context.Context, tenantID, moduleID string) (bool, error) {
	key := tenantID + keySep + moduleID
	if v, ok := c.lru.Get(key); ok {
		c.record(true)
		return v, nil
	}
	c.record(false)

	gen := c.gen.Load()
	v, err, _ := c.group.Do(key, func() (any, error) {
		enabled, err := c.next.IsModuleEnabled(ctx, tenantID, moduleID)
		if err != nil {
			return false, err
		}
		// Una invalidación durante la consulta deja el resultado sin cachear.
		if c.gen.Load() == gen {
			c.lru.Add(key, enabled)
		}
		return enabled, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Invalidate descarta las entradas del tenant.
func (c *EntitlementCache) Invalidate(tenantID string) {
	c.gen.Add(1)
	prefix := tenantID + keySep
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Len cantidad de entradas vigentes.
func (c *EntitlementCache) Len() int { return c.lru.Len() }

func (c *EntitlementCache) record(hit bool) {
	if c.recorder != nil {
		c.recorder.EntitlementLookup(hit)
	}
}
