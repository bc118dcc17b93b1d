// internal/web/registry.go
//
// Browser-session registry.
//
// Context
// -------
// One *session.Manager exists per session cookie.  The registry restores it
// lazily from the cookie's store scope, keeps it in a sync.Map, and evicts it
// on idle TTL or LRU pressure.  Eviction only drops the in-memory manager;
// the next request restores it from the store again.
//
// A manager with live subscribers (an open /events stream) or with a request
// still holding it is never evicted.  Two managers over one store scope would
// each serialize their own transitions and overwrite each other's commits.
//
// Workflow
// --------
//  1. reg := web.NewRegistry(backend, client, cfg.Sessions, log)
//  2. go reg.Run(ctx)                    // eviction loop
//  3. m, release, err := reg.Acquire(ctx, sid)   // from the Sessions middleware
//     defer release()
package web

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/bookshelf/internal/api"
	"github.com/yanizio/bookshelf/internal/config"
	"github.com/yanizio/bookshelf/internal/metrics"
	"github.com/yanizio/bookshelf/internal/session"
	"github.com/yanizio/bookshelf/internal/store"
)

// Registry maps session ids to managers.  Safe for concurrent use.
type Registry struct {
	backend store.Backend
	client  *api.Client
	log     *zap.SugaredLogger

	grp singleflight.Group
	m   sync.Map // sid → *entry

	idleTTL    time.Duration
	maxEntries int
	interval   time.Duration
	now        func() time.Time
}

type entry struct {
	mgr      *session.Manager
	lastSeen atomic.Int64
	inUse    atomic.Int32 // requests holding mgr; -1 once evicted
}

func (e *entry) touch(t time.Time) { e.lastSeen.Store(t.UnixNano()) }

// pin marks the entry in use.  It fails once Evict has claimed the entry.
func (e *entry) pin() bool {
	for {
		n := e.inUse.Load()
		if n < 0 {
			return false
		}
		if e.inUse.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (e *entry) unpin() { e.inUse.Add(-1) }

// claim succeeds only for an idle entry, and makes every later pin fail.
func (e *entry) claim() bool { return e.inUse.CompareAndSwap(0, -1) }

// NewRegistry returns an empty registry.  Call Run to start eviction.
func NewRegistry(b store.Backend, c *api.Client, cfg config.Sessions, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		backend:    b,
		client:     c,
		log:        log,
		idleTTL:    cfg.IdleTTL,
		maxEntries: cfg.MaxEntries,
		interval:   cfg.EvictInterval,
		now:        time.Now,
	}
}

// Get returns the manager for sid, restoring it on first use.  The manager
// is not pinned; request paths use Acquire.
func (r *Registry) Get(ctx context.Context, sid string) (*session.Manager, error) {
	m, release, err := r.Acquire(ctx, sid)
	if err != nil {
		return nil, err
	}
	release()
	return m, nil
}

// Acquire returns the manager for sid and pins it against eviction until
// release is called.  release is safe to call more than once.
func (r *Registry) Acquire(ctx context.Context, sid string) (*session.Manager, func(), error) {
	for {
		ent, err := r.load(ctx, sid)
		if err != nil {
			return nil, nil, err
		}
		if !ent.pin() {
			// Evicted between load and pin; the next load restores it.
			continue
		}
		ent.touch(r.now())
		var once sync.Once
		return ent.mgr, func() { once.Do(ent.unpin) }, nil
	}
}

func (r *Registry) load(ctx context.Context, sid string) (*entry, error) {
	if v, ok := r.m.Load(sid); ok {
		return v.(*entry), nil
	}

	v, err, _ := r.grp.Do(sid, func() (any, error) {
		// Double-check after singleflight barrier.
		if v, ok := r.m.Load(sid); ok {
			return v.(*entry), nil
		}
		mgr := session.New(context.WithoutCancel(ctx), store.Scope(r.backend, sid), r.client, r.log.With("sid", sid))
		ent := &entry{mgr: mgr}
		ent.touch(r.now())
		r.m.Store(sid, ent)
		metrics.BrowserSessionsActive.Inc()
		return ent, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// Len reports how many managers are held in memory.
func (r *Registry) Len() int {
	n := 0
	r.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Run evicts every interval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Evict()
		}
	}
}

// Evict runs one idle pass and one LRU pass and returns how many managers
// it dropped.
func (r *Registry) Evict() int {
	now := r.now().UnixNano()
	evicted := 0

	// ----------------------------------------------------------------
	// Idle eviction pass
	// ----------------------------------------------------------------
	type kv struct {
		sid string
		ent *entry
		at  int64
	}
	var live []kv
	r.m.Range(func(key, value any) bool {
		ent := value.(*entry)
		if ent.mgr.Subscribers() > 0 || ent.inUse.Load() != 0 {
			return true
		}
		at := ent.lastSeen.Load()
		if idle := time.Duration(now - at); r.idleTTL > 0 && idle > r.idleTTL {
			if r.drop(key.(string), ent, "idle", idle) {
				evicted++
			}
			return true
		}
		live = append(live, kv{sid: key.(string), ent: ent, at: at})
		return true
	})

	// ----------------------------------------------------------------
	// LRU eviction pass
	// ----------------------------------------------------------------
	excess := r.Len() - r.maxEntries
	if r.maxEntries > 0 && excess > 0 {
		sort.Slice(live, func(i, j int) bool { return live[i].at < live[j].at })
		for i := 0; excess > 0 && i < len(live); i++ {
			if r.drop(live[i].sid, live[i].ent, "lru", time.Duration(now-live[i].at)) {
				evicted++
				excess--
			}
		}
	}
	return evicted
}

// drop removes ent unless a request pinned it after the Range snapshot.
func (r *Registry) drop(sid string, ent *entry, reason string, idle time.Duration) bool {
	if !ent.claim() {
		return false
	}
	if !r.m.CompareAndDelete(sid, ent) {
		return false
	}
	metrics.BrowserSessionsActive.Dec()
	metrics.BrowserSessionsEvictedTotal.Inc()
	r.log.Debugw("browser session evicted", "sid", sid, "reason", reason, "idle", idle.Truncate(time.Second))
	return true
}
