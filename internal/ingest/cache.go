package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinodismyname/biofarmaka/config"
	"golang.org/x/sync/singleflight"
)

// LoadGate coordinates capacity for source loads (backed by runtime.Controller).
type LoadGate interface {
	AcquireLoad(ctx context.Context) error
	ReleaseLoad()
}

// Observer receives snapshot lifecycle events for telemetry.
type Observer interface {
	SnapshotLoaded(ds *Dataset, took time.Duration)
	SnapshotFailed(err error, took time.Duration)
	SnapshotEvicted(id string)
}

type entry struct {
	ds          *Dataset
	fingerprint string
	expiresAt   time.Time
}

// Cache memoizes one Dataset per version of the source files. A version is
// the path, size and modification time of every source. Idle snapshots
// expire after the TTL.
type Cache struct {
	mu           sync.RWMutex
	current      *entry
	loader       *Loader
	ttl          time.Duration
	cleanupEvery time.Duration
	clock        func() time.Time
	gate         LoadGate
	observer     Observer
	group        singleflight.Group
	loads        atomic.Int64
	stopCh       chan struct{}
	stopOnce     sync.Once
	cleanupWG    sync.WaitGroup
}

// NewCache constructs a snapshot cache over loader.
// Pass ttl or cleanupEvery <= 0 to use defaults from config.
// Gate can be nil for tests; clock defaults to time.Now when nil.
func NewCache(loader *Loader, ttl, cleanupEvery time.Duration, gate LoadGate, clock func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = config.DefaultSnapshotIdleTTL
	}
	if cleanupEvery <= 0 {
		cleanupEvery = config.DefaultSnapshotCleanupPeriod
	}
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		loader:       loader,
		ttl:          ttl,
		cleanupEvery: cleanupEvery,
		clock:        clock,
		gate:         gate,
		stopCh:       make(chan struct{}),
	}
}

// WithObserver attaches lifecycle callbacks.
func (c *Cache) WithObserver(o Observer) *Cache {
	c.observer = o
	return c
}

// Start launches periodic eviction of the expired snapshot.
func (c *Cache) Start() {
	c.cleanupWG.Add(1)
	ticker := time.NewTicker(c.cleanupEvery)
	go func() {
		defer c.cleanupWG.Done()
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.EvictExpired()
			}
		}
	}()
}

// Close stops background cleanup and drops the cached snapshot.
func (c *Cache) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	done := make(chan struct{})
	go func() { c.cleanupWG.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return nil
}

// Current returns the snapshot for the present source version, loading it
// when the sources changed or the previous snapshot expired. Concurrent
// callers share a single load.
func (c *Cache) Current(ctx context.Context) (*Dataset, error) {
	fp := c.loader.Fingerprint()
	now := c.clock()

	c.mu.Lock()
	if e := c.current; e != nil && e.fingerprint == fp && !now.After(e.expiresAt) {
		e.expiresAt = now.Add(c.ttl)
		ds := e.ds
		c.mu.Unlock()
		return ds, nil
	}
	c.mu.Unlock()

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := c.group.DoChan(fp, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), fp)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) load(ctx context.Context, fp string) (*Dataset, error) {
	if c.gate != nil {
		if err := c.gate.AcquireLoad(ctx); err != nil {
			return nil, err
		}
		defer c.gate.ReleaseLoad()
	}

	start := c.clock()
	ld, err := c.loader.Load(ctx)
	if err == nil {
		var ds *Dataset
		ds, err = Build(ld, c.clock())
		if err == nil {
			ds.Fingerprint = fp
			c.loads.Add(1)
			c.mu.Lock()
			c.current = &entry{ds: ds, fingerprint: fp, expiresAt: c.clock().Add(c.ttl)}
			c.mu.Unlock()
			if c.observer != nil {
				c.observer.SnapshotLoaded(ds, c.clock().Sub(start))
			}
			return ds, nil
		}
	}
	if c.observer != nil {
		c.observer.SnapshotFailed(err, c.clock().Sub(start))
	}
	return nil, err
}

// EvictExpired drops the snapshot when it is past its TTL.
func (c *Cache) EvictExpired() {
	now := c.clock()
	c.mu.Lock()
	e := c.current
	if e == nil || !now.After(e.expiresAt) {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()
	if c.observer != nil {
		c.observer.SnapshotEvicted(e.ds.ID)
	}
}

// Cached reports whether a snapshot is currently held.
func (c *Cache) Cached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Loads returns the number of successful loads performed.
func (c *Cache) Loads() int64 { return c.loads.Load() }

// Fingerprint identifies the current version of every source file.
func (l *Loader) Fingerprint() string {
	parts := make([]string, 0, len(l.sources.Clusters)+1)
	for _, src := range l.sources.All() {
		info, err := os.Stat(src.Path)
		if err != nil {
			parts = append(parts, src.Path+":absent")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", src.Path, info.Size(), info.ModTime().UnixNano()))
	}
	return strings.Join(parts, "|")
}
