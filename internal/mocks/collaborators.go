package mocks

import (
	"context"
	"path"
	"sync"
	"time"

	"imgtasks/internal/cache"
	"imgtasks/internal/events"
	"imgtasks/internal/models"
	"imgtasks/internal/storage"
	"imgtasks/internal/store"
	"imgtasks/internal/transform"
)

// Recorder collects a cross-component operation log so tests can assert
// ordering, e.g. cache invalidation before event publication.
type Recorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *Recorder) Record(op string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

var _ store.JobClient = (*JobClient)(nil)

// JobClient records enqueued jobs.
type JobClient struct {
	mu   sync.Mutex
	Jobs []EnqueuedJob
	Err  error
}

type EnqueuedJob struct {
	TaskID         string
	SourceLocation string
}

func (c *JobClient) EnqueueResizeJob(_ context.Context, taskID, sourceLocation string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Jobs = append(c.Jobs, EnqueuedJob{TaskID: taskID, SourceLocation: sourceLocation})
	return nil
}

func (c *JobClient) Close() error { return nil }

var _ cache.Backend = (*CacheBackend)(nil)

// CacheBackend is an in-memory cache.Backend. TTLs are honored lazily on
// Get; deletions are reported to the Recorder when one is attached.
type CacheBackend struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	Recorder *Recorder
	GetErr   error
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCacheBackend() *CacheBackend {
	return &CacheBackend{entries: make(map[string]cacheEntry)}
}

func (b *CacheBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.GetErr != nil {
		return nil, b.GetErr
	}
	entry, ok := b.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(b.entries, key)
		return nil, cache.ErrMiss
	}
	return entry.data, nil
}

func (b *CacheBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry := cacheEntry{data: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	b.entries[key] = entry
	return nil
}

func (b *CacheBackend) DeleteByPattern(_ context.Context, pattern string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(b.entries, key)
		}
	}
	b.Recorder.Record("invalidate:" + pattern)
	return nil
}

// Contains reports whether key currently holds a live entry.
func (b *CacheBackend) Contains(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[key]
	if !ok {
		return false
	}
	return entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt)
}

var _ events.Publisher = (*Publisher)(nil)

// Publisher records published lifecycle events.
type Publisher struct {
	mu       sync.Mutex
	Events   []events.Event
	Recorder *Recorder
}

func (p *Publisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
	p.Recorder.Record("publish:" + string(event.Kind))
}

func (p *Publisher) Kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]events.Kind, len(p.Events))
	for i, ev := range p.Events {
		kinds[i] = ev.Kind
	}
	return kinds
}

var _ storage.ArtifactStore = (*ArtifactStore)(nil)

// ArtifactStore relocates nothing; it deterministically rewrites locations
// so tests can assert on them, or fails when Err is set.
type ArtifactStore struct {
	Err error
}

func (a *ArtifactStore) RelocateSource(taskID, sourceLocation string) (string, error) {
	if a.Err != nil {
		return "", a.Err
	}
	return "/data/tasks/" + taskID + "/source" + path.Ext(sourceLocation), nil
}

func (a *ArtifactStore) VariantDir(taskID string) (string, error) {
	if a.Err != nil {
		return "", a.Err
	}
	return "/data/tasks/" + taskID + "/variants", nil
}

var _ transform.Transformer = (*Transformer)(nil)

// Transformer returns canned outputs or a canned error.
type Transformer struct {
	Outputs []models.TaskOutput
	Err     error
	Calls   int
}

func (t *Transformer) Transform(_ context.Context, sourceLocation, outputDir string) ([]models.TaskOutput, error) {
	t.Calls++
	if t.Err != nil {
		return nil, t.Err
	}
	return t.Outputs, nil
}
