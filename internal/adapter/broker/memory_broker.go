// Package broker implements ports.Broker in-process, built on the
// lock-free xsync map and the eventbus pub/sub primitive this repo
// already uses for fan-out. It is a stand-in for a real Redis-like
// store: every operation is safe for concurrent use, keys expire on
// their own TTL via a background janitor, and channels are EventBus
// instances created lazily per name.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/idkny/sale-sofia/internal/core/ports"
	"github.com/idkny/sale-sofia/pkg/eventbus"
)

type kvEntry struct {
	value     []byte
	counter   int64
	expiresAt time.Time // zero means no expiry
}

func (e *kvEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryBroker is an in-process ports.Broker. Safe for concurrent use.
type MemoryBroker struct {
	mu    sync.Mutex
	kv    map[string]*kvEntry
	hash  map[string]map[string]*kvEntry
	queue map[string]chan []byte

	channels *xsync.Map[string, *eventbus.EventBus[[]byte]]

	queueCap int

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// New creates a MemoryBroker whose queues buffer up to queueCapacity
// payloads before Enqueue blocks, and whose janitor sweeps expired keys
// every janitorInterval.
func New(queueCapacity int, janitorInterval time.Duration) *MemoryBroker {
	if queueCapacity <= 0 {
		queueCapacity = 1024
	}
	b := &MemoryBroker{
		kv:          make(map[string]*kvEntry),
		hash:        make(map[string]map[string]*kvEntry),
		queue:       make(map[string]chan []byte),
		channels:    xsync.NewMap[string, *eventbus.EventBus[[]byte]](),
		queueCap:    queueCapacity,
		janitorStop: make(chan struct{}),
	}
	if janitorInterval > 0 {
		go b.janitor(janitorInterval)
	}
	return b
}

func (b *MemoryBroker) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.janitorStop:
			return
		case <-ticker.C:
			b.sweepExpired()
		}
	}
}

func (b *MemoryBroker) sweepExpired() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, e := range b.kv {
		if e.expired(now) {
			delete(b.kv, k)
		}
	}
}

// Ping always succeeds for the in-process broker; it exists so callers
// written against a networked broker still have a liveness check to call.
func (b *MemoryBroker) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (b *MemoryBroker) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := &kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	b.kv[key] = e
	return nil
}

func (b *MemoryBroker) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.kv[key]
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *MemoryBroker) Incr(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.kv[key]
	if !ok || e.expired(time.Now()) {
		e = &kvEntry{}
		if ttl > 0 {
			e.expiresAt = time.Now().Add(ttl)
		}
		b.kv[key] = e
	}
	e.counter += delta
	return e.counter, nil
}

func (b *MemoryBroker) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.kv, key)
	return nil
}

func (b *MemoryBroker) HSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hash[key]
	if !ok {
		h = make(map[string]*kvEntry)
		b.hash[key] = h
	}
	e := &kvEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	h[field] = e
	return nil
}

func (b *MemoryBroker) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hash[key]
	if !ok {
		return map[string][]byte{}, nil
	}
	now := time.Now()
	out := make(map[string][]byte, len(h))
	for field, e := range h {
		if !e.expired(now) {
			out[field] = e.value
		}
	}
	return out, nil
}

func (b *MemoryBroker) queueFor(name string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.queue[name]
	if !ok {
		ch = make(chan []byte, b.queueCap)
		b.queue[name] = ch
	}
	return ch
}

func (b *MemoryBroker) Enqueue(ctx context.Context, queue string, payload []byte) error {
	ch := b.queueFor(queue)
	select {
	case ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Dequeue(ctx context.Context, queue string, wait time.Duration) ([]byte, bool, error) {
	ch := b.queueFor(queue)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case payload := <-ch:
		return payload, true, nil
	case <-timer.C:
		return nil, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (b *MemoryBroker) busFor(channel string) *eventbus.EventBus[[]byte] {
	bus, _ := b.channels.LoadOrStore(channel, eventbus.New[[]byte]())
	return bus
}

func (b *MemoryBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.busFor(channel).Publish(payload)
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	ch, cleanup := b.busFor(channel).Subscribe(ctx)
	return ch, cleanup, nil
}

func (b *MemoryBroker) Close() error {
	b.janitorOnce.Do(func() { close(b.janitorStop) })
	b.channels.Range(func(name string, bus *eventbus.EventBus[[]byte]) bool {
		bus.Shutdown()
		return true
	})
	return nil
}

var _ ports.Broker = (*MemoryBroker)(nil)
