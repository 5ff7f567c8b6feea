// Package infra provides small shared concurrency helpers.
package infra

import "sync"

// Group suppresses duplicate in-flight work per key. Concurrent callers
// for the same key wait for the first call and receive its result, so
// expensive construction runs at most once at a time per key.
type Group[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*call[V]
}

type call[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// Do executes fn, ensuring only one execution is in flight for key at a
// time. Duplicate callers block until the original completes and share
// its result. The third return reports whether the result was shared.
func (g *Group[K, V]) Do(key K, fn func() (V, error)) (V, error, bool) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*call[V])
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := new(call[V])
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err, false
}

// Forget drops any record of an in-flight call for key. Future Do calls
// for the key execute fn rather than waiting.
func (g *Group[K, V]) Forget(key K) {
	g.mu.Lock()
	delete(g.calls, key)
	g.mu.Unlock()
}
