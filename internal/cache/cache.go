package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/usermgmt/internal/domain/user"
)

// Cache is a small TTL map. Writers call Clear so readers never see a list
// that predates their own change.
type Cache[V any] struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]entry[V]
	now func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time
}

func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cache[V]{
		ttl: ttl,
		m:   make(map[string]entry[V]),
		now: time.Now,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return zero, false
	}

	return e.val, true
}

func (c *Cache[V]) Set(key string, val V) {
	c.mu.Lock()
	c.m[key] = entry[V]{val: val, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Cache[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]entry[V])
	c.mu.Unlock()
}

// ListKey turns a listing filter into a cache key. Search is matched
// case-insensitively by every store, so only its case is folded.
func ListKey(f user.ListFilter) string {
	s, by, v := "", "", ""
	if f.Search != nil {
		s = strings.ToLower(*f.Search)
	}
	if f.FilterBy != nil && f.Value != nil {
		by = *f.FilterBy
		v = *f.Value
	}
	return "users:list:v1:search=" + strconv.Quote(s) + ":by=" + by + ":value=" + strconv.Quote(v)
}
