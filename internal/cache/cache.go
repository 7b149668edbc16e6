// Package cache ofrece una caché en memoria con TTL para respuestas de
// venues. Es puramente una optimización: el sistema debe ser correcto con
// la caché deshabilitada.
package cache

import (
	"sync"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

type entry struct {
	markets []domain.NormalizedMarket
	expires time.Time
}

// Markets cachea resultados de FetchMarkets por clave "venue:query".
// Con ttl <= 0 la caché queda deshabilitada y Get nunca acierta.
type Markets struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewMarkets crea la caché con el TTL dado.
func NewMarkets(ttl time.Duration) *Markets {
	return &Markets{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get devuelve la entrada cacheada si existe y no expiró.
func (c *Markets) Get(key string) ([]domain.NormalizedMarket, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.markets, true
}

// Put guarda la entrada con expiración ahora+TTL.
func (c *Markets) Put(key string, markets []domain.NormalizedMarket) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{markets: markets, expires: c.now().Add(c.ttl)}
}

// Purge elimina todas las entradas expiradas.
func (c *Markets) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}

// Len devuelve el número de entradas, expiradas incluidas.
func (c *Markets) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
