package source

import (
	"sync"
	"time"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

// DefaultTTL bounds how long a source's fetch result is served without
// contacting the backend again.
const DefaultTTL = 60 * time.Second

// cache is the per-source fetch cache. Exclusively owned by its loader;
// the aggregator never touches it. Entries are copied on the way in and
// out so callers cannot mutate the cached slice.
type cache struct {
	mu        sync.Mutex
	tools     []domain.Tool
	fetchedAt time.Time
	ttl       time.Duration
}

func newCache(ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &cache{ttl: ttl}
}

// get returns the cached tools iff the entry is still fresh.
func (c *cache) get(now time.Time) ([]domain.Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchedAt.IsZero() || now.Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return domain.CloneTools(c.tools), true
}

func (c *cache) set(tools []domain.Tool, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = domain.CloneTools(tools)
	c.fetchedAt = now
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = nil
	c.fetchedAt = time.Time{}
}
