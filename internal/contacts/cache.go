package contacts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matheus3301/imsg/internal/bus"
)

// Lookuper finds a display name for a handle. Resolver implements it.
type Lookuper interface {
	Lookup(ctx context.Context, id string) (string, bool)
}

// Resolved is the payload of names.resolved events.
type Resolved struct {
	ID   string
	Name string
}

// CacheOptions tunes background resolution.
type CacheOptions struct {
	// MaxConcurrent bounds lookups running at once.
	MaxConcurrent int
	// RetryAfter is how long a miss is remembered before the id may be
	// looked up again. Zero never retries.
	RetryAfter time.Duration
}

// Cache memoizes names for the life of the process. Entries are never
// evicted. Resolve fills it in the background and announces each new name
// on the bus.
type Cache struct {
	lookup     Lookuper
	bus        *bus.Bus
	log        *zap.Logger
	retryAfter time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	names   map[string]string
	misses  map[string]time.Time
	pending map[string]struct{}

	group  singleflight.Group
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCache(lookup Lookuper, b *bus.Bus, log *zap.Logger, opts CacheOptions) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		lookup:     lookup,
		bus:        b,
		log:        log,
		retryAfter: opts.RetryAfter,
		now:        time.Now,
		names:      make(map[string]string),
		misses:     make(map[string]time.Time),
		pending:    make(map[string]struct{}),
		sem:        make(chan struct{}, opts.MaxConcurrent),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Name returns the cached name for id.
func (c *Cache) Name(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

// Len returns the number of cached names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Resolve starts a background lookup for id unless it is cached, already
// pending, or missed recently. It never blocks.
func (c *Cache) Resolve(id string) {
	if !LooksResolvable(id) || c.ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	if !c.shouldLookup(id) {
		c.mu.Unlock()
		return
	}
	c.pending[id] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_, _ = c.resolve(c.ctx, id)
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()
}

// ResolveNow looks id up and waits for the answer. Concurrent callers for
// the same id share one lookup.
func (c *Cache) ResolveNow(ctx context.Context, id string) (string, bool) {
	if name, ok := c.Name(id); ok {
		return name, true
	}
	return c.resolve(ctx, id)
}

// caller holds c.mu.
func (c *Cache) shouldLookup(id string) bool {
	if _, ok := c.names[id]; ok {
		return false
	}
	if _, ok := c.pending[id]; ok {
		return false
	}
	if at, ok := c.misses[id]; ok {
		return c.retryAfter > 0 && c.now().Sub(at) >= c.retryAfter
	}
	return true
}

func (c *Cache) resolve(ctx context.Context, id string) (string, bool) {
	v, _, _ := c.group.Do(id, func() (any, error) {
		select {
		case c.sem <- struct{}{}:
		case <-ctx.Done():
			return "", nil
		}
		defer func() { <-c.sem }()

		name, ok := c.lookup.Lookup(ctx, id)
		c.store(id, name, ok)
		return name, nil
	})
	name, _ := v.(string)
	return name, name != ""
}

func (c *Cache) store(id, name string, ok bool) {
	c.mu.Lock()
	if !ok {
		c.misses[id] = c.now()
		c.mu.Unlock()
		c.log.Debug("no contact name", zap.String("id", id))
		return
	}
	_, had := c.names[id]
	c.names[id] = name
	delete(c.misses, id)
	c.mu.Unlock()

	if !had {
		c.bus.Emit(bus.KindNameResolved, Resolved{ID: id, Name: name})
	}
}

// Close cancels pending lookups and waits for them to finish.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}
