package mutcache

import (
	"context"
	"time"

	cd "github.com/unkn0wn-root/mutcache/codec"
	st "github.com/unkn0wn-root/mutcache/store"
	tk "github.com/unkn0wn-root/mutcache/token"
)

type SetCostFunc func(key string, raw []byte) int64

// Revalidator is the capability the cache invokes when a mutation (or any
// other writer) requests a background refetch for a key. A passive Resource
// registers itself; external coordinators may register their own.
type Revalidator interface {
	Revalidate(ctx context.Context)
}

// Cache is the shared, key-addressed cache every Mutation and Resource for a
// given resource family coordinates through. All writes are freshness-checked
// against the per-key request token, so a slower in-flight fetch can never
// overwrite a newer value.
type Cache[V any] interface {
	Enabled() bool
	Close(context.Context) error

	// Read returns the cached value for key. Corrupt or undecodable entries
	// self-heal: they are deleted and reported as a miss.
	Read(ctx context.Context, key Key) (v V, ok bool, err error)

	// Write allocates a fresh request token and writes value under it,
	// superseding every in-flight request for the key. ttl=0 uses the
	// configured default.
	Write(ctx context.Context, key Key, value V, ttl time.Duration) error

	// WriteWithToken writes only if token is still the key's current token;
	// a superseded write is silently dropped.
	WriteWithToken(ctx context.Context, key Key, value V, token uint64, ttl time.Duration) error

	// Clear bumps the key's token and deletes the entry. The bump alone
	// already invalidates in-flight writes even if the delete fails.
	Clear(ctx context.Context, key Key) error

	// BeginToken allocates and installs a new request token for the key.
	BeginToken(ctx context.Context, key Key) (uint64, error)
	// CurrentToken returns the key's latest token; missing or errored => 0.
	CurrentToken(ctx context.Context, key Key) uint64

	// Subscribe registers a change listener for the key, fired after every
	// committed write or clear. Listeners must be cheap and non-blocking.
	Subscribe(key Key, fn func(Key)) (cancel func())

	// RegisterRevalidator registers a background-refetch capability for the
	// key, invoked by RequestRevalidate.
	RegisterRevalidator(key Key, r Revalidator) (cancel func())

	// RequestRevalidate asks every registered revalidator for the key to
	// refetch in the background. It never blocks on the refetch itself.
	RequestRevalidate(ctx context.Context, key Key)
}

// Options tune the behavior of the generic cache.
// Only Namespace, Store and Codec are required; others have sensible defaults.
type Options[V any] struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "user", "profile", "order"
	Store     st.Store
	Codec     cd.Codec[V]

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	DefaultTTL      time.Duration // entries; 0 => 10m
	CleanupInterval time.Duration // token sweep; 0 => 1h
	TokenRetention  time.Duration // 0 => 30d
	Disabled        bool          // default false (enabled)
	ComputeSetCost  SetCostFunc   // default 1
	Tokens          tk.Tracker    // nil => token.NewLocal (in-process)
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
