package mutcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ResourceFetcher runs the remote read behind a passive Resource.
type ResourceFetcher[V any] func(ctx context.Context, key Key) (V, error)

// Resource is the passive counterpart of Mutation: it fetches automatically
// on bind and rebind, adopts shared-cache changes for its key as they are
// committed, and serves as the key's revalidator. Concurrent revalidations
// coalesce; only the imperative Trigger path is exempt from deduplication.
type Resource[V any] struct {
	cache Cache[V]
	fetch ResourceFetcher[V]

	sf singleflight.Group

	mu      sync.Mutex
	key     Key
	data    V
	hasData bool
	err     error
	loading bool
	closed  bool
	unsub   func()
	unreg   func()
}

var _ Revalidator = (*Resource[struct{}])(nil)

// NewResource binds a passive reader to key and starts its initial fetch in
// the background. A zero key leaves the resource idle until Rebind.
func NewResource[V any](c Cache[V], key Key, fetch ResourceFetcher[V]) *Resource[V] {
	r := &Resource[V]{cache: c, fetch: fetch}
	r.Rebind(key)
	return r
}

// Rebind switches the resource to a new key and refetches. Unlike a
// Mutation, binding a key IS the fetch trigger here.
func (r *Resource[V]) Rebind(key Key) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	if r.unreg != nil {
		r.unreg()
		r.unreg = nil
	}
	r.key = key
	if key.IsZero() {
		r.mu.Unlock()
		return
	}
	r.unsub = r.cache.Subscribe(key, r.onChange)
	r.unreg = r.cache.RegisterRevalidator(key, r)
	r.loading = true
	r.mu.Unlock()

	go func() {
		ctx := context.Background()
		// serve whatever the shared cache already holds, then refresh
		if v, ok, err := r.cache.Read(ctx, key); err == nil && ok {
			r.adopt(key, v)
		}
		r.Revalidate(ctx)
	}()
}

// Revalidate refetches the bound key. Overlapping calls for the same key
// share one fetch. A settle whose token was superseded (say, by a mutation
// that populated the cache meanwhile) is discarded everywhere.
func (r *Resource[V]) Revalidate(ctx context.Context) {
	r.mu.Lock()
	key := r.key
	if key.IsZero() || r.closed {
		r.mu.Unlock()
		return
	}
	r.loading = true
	r.mu.Unlock()

	_, _, _ = r.sf.Do(key.canonical(), func() (any, error) {
		tok, err := r.cache.BeginToken(ctx, key)
		if err != nil {
			r.settleErr(key, err)
			return nil, nil
		}

		v, ferr := r.fetch(ctx, key)
		if ferr != nil {
			if r.cache.CurrentToken(ctx, key) == tok {
				r.settleErr(key, ferr)
			}
			return nil, nil
		}

		// token-checked: a newer mutation's value is never overwritten here
		_ = r.cache.WriteWithToken(ctx, key, v, tok, 0)
		if r.cache.CurrentToken(ctx, key) == tok {
			r.adopt(key, v)
		}
		return nil, nil
	})

	r.mu.Lock()
	r.loading = false
	r.mu.Unlock()
}

// Close detaches the resource. Late settles are discarded silently.
func (r *Resource[V]) Close() {
	r.mu.Lock()
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	if r.unreg != nil {
		r.unreg()
		r.unreg = nil
	}
	r.closed = true
	r.mu.Unlock()
}

// Data returns the last adopted value, if any.
func (r *Resource[V]) Data() (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, r.hasData
}

// Err returns the error of the last failed revalidation, nil after success.
func (r *Resource[V]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// IsLoading reports whether a fetch for the bound key is in flight.
func (r *Resource[V]) IsLoading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Key returns the currently bound key.
func (r *Resource[V]) Key() Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.key
}

// onChange runs on every committed cache write/clear for the bound key.
// A write adopts the new value; a clear keeps the last known value (the
// next revalidation replaces it).
func (r *Resource[V]) onChange(k Key) {
	r.mu.Lock()
	key := r.key
	closed := r.closed
	r.mu.Unlock()
	if closed || !key.Equal(k) {
		return
	}
	if v, ok, err := r.cache.Read(context.Background(), k); err == nil && ok {
		r.adopt(k, v)
	}
}

func (r *Resource[V]) adopt(key Key, v V) {
	r.mu.Lock()
	if !r.closed && r.key.Equal(key) {
		r.data = v
		r.hasData = true
		r.err = nil
	}
	r.mu.Unlock()
}

func (r *Resource[V]) settleErr(key Key, err error) {
	r.mu.Lock()
	if !r.closed && r.key.Equal(key) {
		// keep prior data; last known good value stays renderable
		r.err = err
	}
	r.mu.Unlock()
}
