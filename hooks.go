package mutcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A cache write was dropped because its request token was superseded
	// by a newer dispatch for the same key.
	StaleWriteDropped(storageKey string, token, current uint64)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Store returned ok=false on Set (backpressure/eviction).
	StoreSetRejected(storageKey string)

	// A background revalidation was requested for a key; listeners is the
	// number of registered revalidators that will run.
	RevalidateRequested(storageKey string, listeners int)

	// Tracker errors. op ∈ {"begin", "current"}.
	TokenError(op, storageKey string, err error)

	// Both token bump and delete failed during Clear (likely backend outage).
	ClearOutage(key string, bumpErr, delErr error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StaleWriteDropped(string, uint64, uint64) {}
func (NopHooks) SelfHeal(string, string)                  {}
func (NopHooks) StoreSetRejected(string)                  {}
func (NopHooks) RevalidateRequested(string, int)          {}
func (NopHooks) TokenError(string, string, error)         {}
func (NopHooks) ClearOutage(string, error, error)         {}

var _ Hooks = NopHooks{}
