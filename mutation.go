package mutcache

import (
	"context"
	"sync"
	"time"
)

// Fetcher runs the remote operation behind a Mutation. It receives the bound
// key (tuple parts positionally via key.Parts()) and the trigger-time
// argument appended last.
type Fetcher[V, A any] func(ctx context.Context, key Key, arg A) (V, error)

// State is a snapshot of a Mutation's local request state.
// Data survives a failed settle so callers can keep rendering the last
// known good value next to Err.
type State[V any] struct {
	Data       V
	HasData    bool
	Err        error
	IsMutating bool
}

// TriggerOptions configure a single Trigger call; they are never persisted
// across calls.
type TriggerOptions[V any] struct {
	// SkipRevalidate suppresses the background revalidation that otherwise
	// follows every successful trigger.
	SkipRevalidate bool

	// PopulateCache writes the fetch result into the shared cache under the
	// bound key (token-checked, so a superseded trigger never pollutes it).
	PopulateCache bool

	// Populate merges the fetch result with the currently cached value and
	// writes the merged value. Setting it implies PopulateCache.
	Populate func(result, current V) V

	// TTL for the populated entry; 0 uses the cache default.
	TTL time.Duration

	// OnSuccess/OnError fire exactly once per settled, non-superseded call,
	// after local state has been updated. Errors are also returned from
	// Trigger itself; both observation channels are kept.
	OnSuccess func(data V, key Key)
	OnError   func(err error, key Key)
}

// MutateOptions configure a single Mutate call.
type MutateOptions struct {
	// SkipRevalidate suppresses the background revalidation that otherwise
	// follows every direct write.
	SkipRevalidate bool

	// TTL for the written entry; 0 uses the cache default.
	TTL time.Duration
}

// Mutation is the imperative controller for one key: it runs a fetch only
// when explicitly triggered (never on construction, never on rebinding)
// and owns its local {data, err, isMutating} state. The local state is
// deliberately independent of the shared cache; only PopulateCache bridges
// the two.
type Mutation[V, A any] struct {
	cache Cache[V]
	fetch Fetcher[V, A]

	mu      sync.Mutex
	key     Key
	data    V
	hasData bool
	err     error
	// pending is the token of the newest unsettled trigger for the bound
	// key; 0 = none. IsMutating tracks the current token only: once the
	// newest trigger settles, a superseded older one still in flight no
	// longer counts as mutating.
	pending uint64
	closed  bool
}

// NewMutation binds a controller to key. Binding never invokes fetch.
// An unbound (zero) key is a valid disabled state: Trigger no-ops.
func NewMutation[V, A any](c Cache[V], key Key, fetch Fetcher[V, A]) *Mutation[V, A] {
	return &Mutation[V, A]{cache: c, fetch: fetch, key: key}
}

// Bind changes the bound key. It never invokes fetch and keeps local state;
// settles of requests dispatched under the previous key are discarded.
func (m *Mutation[V, A]) Bind(key Key) {
	m.mu.Lock()
	m.key = key
	m.pending = 0 // tokens are per key; old dispatches settle as discards
	m.mu.Unlock()
}

// Key returns the currently bound key.
func (m *Mutation[V, A]) Key() Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key
}

// Trigger dispatches the fetch with (key, arg). Every call invokes the
// fetch; triggers are never deduplicated, even while a prior call for the
// same key is still pending. The returned value/error always belongs to this
// call; a superseded call still settles to its caller but touches no state.
func (m *Mutation[V, A]) Trigger(ctx context.Context, arg A, opts *TriggerOptions[V]) (V, error) {
	var zero V

	m.mu.Lock()
	key := m.key
	if key.IsZero() || m.closed {
		m.mu.Unlock()
		return zero, nil
	}
	m.mu.Unlock()

	tok, err := m.cache.BeginToken(ctx, key)
	if err != nil {
		m.settleErr(ctx, key, tok, err, true)
		return zero, err
	}

	// record the dispatch before invoking the fetch so IsMutating is
	// visible for the whole time the request is in flight
	m.mu.Lock()
	if tok > m.pending {
		m.pending = tok
	}
	m.mu.Unlock()

	res, ferr := m.fetch(ctx, key, arg)

	if ferr != nil {
		if m.settleErr(ctx, key, tok, ferr, false) && opts != nil && opts.OnError != nil {
			opts.OnError(ferr, key)
		}
		return zero, ferr
	}

	if !m.settleData(ctx, key, tok, res) {
		// superseded or closed: no state update, no cache write, no callbacks
		return res, nil
	}

	if opts != nil && (opts.PopulateCache || opts.Populate != nil) {
		value := res
		if opts.Populate != nil {
			current, _, _ := m.cache.Read(ctx, key)
			value = opts.Populate(res, current)
		}
		// WriteWithToken re-checks currency, so a racing newer write wins
		_ = m.cache.WriteWithToken(ctx, key, value, tok, opts.TTL)
	}

	if opts == nil || !opts.SkipRevalidate {
		m.cache.RequestRevalidate(ctx, key)
	}
	if opts != nil && opts.OnSuccess != nil {
		opts.OnSuccess(res, key)
	}
	return res, nil
}

// Mutate writes value straight into the shared cache under a fresh token,
// superseding any in-flight fetch for the key, and then requests a background
// revalidation unless SkipRevalidate is set. It never invokes the bound fetch
// and never touches isMutating.
func (m *Mutation[V, A]) Mutate(ctx context.Context, value V, opts *MutateOptions) error {
	m.mu.Lock()
	key := m.key
	closed := m.closed
	m.mu.Unlock()
	if key.IsZero() || closed {
		return nil
	}

	var ttl time.Duration
	if opts != nil {
		ttl = opts.TTL
	}
	if err := m.cache.Write(ctx, key, value, ttl); err != nil {
		return err
	}
	if opts == nil || !opts.SkipRevalidate {
		m.cache.RequestRevalidate(ctx, key)
	}
	return nil
}

// Reset clears local data, error and the pending state. Idempotent; the
// shared cache is left untouched.
func (m *Mutation[V, A]) Reset() {
	var zero V
	m.mu.Lock()
	m.data = zero
	m.hasData = false
	m.err = nil
	m.pending = 0
	m.mu.Unlock()
}

// Close detaches the controller. In-flight triggers settling afterwards are
// discarded silently: their callers still get a return value, but no state
// is written.
func (m *Mutation[V, A]) Close() {
	m.mu.Lock()
	m.closed = true
	m.pending = 0
	m.mu.Unlock()
}

// Data returns the last successful trigger result, if any.
func (m *Mutation[V, A]) Data() (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, m.hasData
}

// Err returns the error of the last failed trigger, nil after a success.
func (m *Mutation[V, A]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// IsMutating reports whether the newest dispatched trigger is still in
// flight. A superseded older trigger does not count.
func (m *Mutation[V, A]) IsMutating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != 0
}

// Snapshot returns a consistent copy of the local state.
func (m *Mutation[V, A]) Snapshot() State[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State[V]{Data: m.data, HasData: m.hasData, Err: m.err, IsMutating: m.pending != 0}
}

// settleData commits a successful settle. Returns false when the settle is
// stale: a newer token exists, the key was rebound, or the controller closed.
// The whole settle runs under mu, the same lock the dispatch path records
// its token with, so an older settle can never slip past a newer dispatch.
func (m *Mutation[V, A]) settleData(ctx context.Context, key Key, tok uint64, v V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sameKey := m.key.Equal(key)
	if sameKey && tok >= m.pending {
		m.pending = 0
	}
	if m.closed || !sameKey {
		return false
	}
	if m.pending != 0 && tok < m.pending {
		return false
	}
	if m.cache.CurrentToken(ctx, key) != tok {
		return false
	}
	m.data = v
	m.hasData = true
	m.err = nil
	return true
}

// settleErr commits a failed settle; prior data is preserved so callers can
// render the last known good value alongside the error. force skips the
// token checks (used when the dispatch itself failed before a token existed).
func (m *Mutation[V, A]) settleErr(ctx context.Context, key Key, tok uint64, err error, force bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sameKey := m.key.Equal(key)
	if sameKey && tok >= m.pending {
		m.pending = 0
	}
	if m.closed || !sameKey {
		return false
	}
	if !force {
		if m.pending != 0 && tok < m.pending {
			return false
		}
		if m.cache.CurrentToken(ctx, key) != tok {
			return false
		}
	}
	m.err = err
	return true
}
