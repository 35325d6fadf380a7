package mutcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	cd "github.com/unkn0wn-root/mutcache/codec"
	"github.com/unkn0wn-root/mutcache/internal/util"
	"github.com/unkn0wn-root/mutcache/internal/wire"
	st "github.com/unkn0wn-root/mutcache/store"
	tk "github.com/unkn0wn-root/mutcache/token"
)

const (
	defaultTokenRetention = 30 * 24 * time.Hour
	defaultSweep          = time.Hour
)

type cache[V any] struct {
	ns             string
	store          st.Store
	codec          cd.Codec[V]
	log            Logger
	hooks          Hooks
	enabled        bool
	defaultTTL     time.Duration
	sweepInterval  time.Duration
	tokenRetention time.Duration
	computeSetCost SetCostFunc
	tokens         tk.Tracker

	subMu  sync.Mutex
	subSeq uint64
	subs   map[string]map[uint64]func(Key)
	revs   map[string]map[uint64]Revalidator
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("mutcache: store is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("mutcache: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("mutcache: namespace is required")
	}

	c := &cache[V]{
		ns:      opts.Namespace,
		store:   opts.Store,
		codec:   opts.Codec,
		enabled: !opts.Disabled,
		subs:    make(map[string]map[uint64]func(Key)),
		revs:    make(map[string]map[uint64]Revalidator),
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, 10*time.Minute)
	c.sweepInterval = coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
	c.tokenRetention = coalesce[time.Duration](opts.TokenRetention, defaultTokenRetention)

	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(_ string, _ []byte) int64 { return 1 }
	}

	if opts.Tokens != nil {
		c.tokens = opts.Tokens
	} else {
		// default to in-process tokens with periodic cleanup
		c.tokens = tk.NewLocal(c.sweepInterval, c.tokenRetention)
	}

	return c, nil
}

func (c *cache[V]) Enabled() bool { return c.enabled }

func (c *cache[V]) Close(ctx context.Context) error {
	// Close token tracker first (best effort)
	if c.tokens != nil {
		_ = c.tokens.Close(ctx)
	}
	if c.store != nil {
		return c.store.Close(ctx)
	}
	return nil
}

func (c *cache[V]) Read(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	if !c.enabled || key.IsZero() {
		return zero, false, nil
	}
	k := c.entryKey(key)
	raw, ok, err := c.store.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	_, payload, err := wire.Decode(raw)
	if err != nil {
		_ = c.store.Del(ctx, k) // self-heal corrupt
		c.hooks.SelfHeal(k, "corrupt")
		return zero, false, nil
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		_ = c.store.Del(ctx, k) // self-heal
		c.hooks.SelfHeal(k, "value_decode")
		return zero, false, nil
	}
	return v, true, nil
}

func (c *cache[V]) Write(ctx context.Context, key Key, value V, ttl time.Duration) error {
	if !c.enabled || key.IsZero() {
		return nil
	}
	tok, err := c.BeginToken(ctx, key)
	if err != nil {
		return err
	}
	return c.WriteWithToken(ctx, key, value, tok, ttl)
}

func (c *cache[V]) WriteWithToken(ctx context.Context, key Key, value V, token uint64, ttl time.Duration) error {
	if !c.enabled || key.IsZero() {
		return nil
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	k := c.entryKey(key)
	cur := c.currentToken(ctx, k)
	if cur != token {
		// a newer request superseded this writer; drop the stale write
		c.hooks.StaleWriteDropped(k, token, cur)
		c.log.Debug("write skipped (superseded token)", Fields{"key": key.String(), "token": token, "current": cur})
		return nil
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	frame := wire.Encode(token, payload)
	ok, err := c.store.Set(ctx, k, frame, c.computeSetCost(k, frame), ttl)
	if err != nil {
		return err
	}
	if !ok {
		c.hooks.StoreSetRejected(k)
		c.log.Debug("write rejected by store (pressure)", Fields{"key": key.String()})
		return nil
	}
	c.notify(k, key)
	return nil
}

func (c *cache[V]) Clear(ctx context.Context, key Key) error {
	if !c.enabled || key.IsZero() {
		return nil
	}
	k := c.entryKey(key)
	_, bumpErr := c.tokens.Begin(ctx, k)
	if bumpErr != nil {
		c.hooks.TokenError("begin", k, bumpErr)
	}
	delErr := c.store.Del(ctx, k)
	if bumpErr != nil && delErr != nil {
		// neither the token moved nor the entry went away; the key may keep
		// serving a stale value, so surface it
		c.hooks.ClearOutage(k, bumpErr, delErr)
		return &ClearError{Key: k, BumpErr: bumpErr, DelErr: delErr}
	}
	c.log.Debug("cleared key (bumped token + deleted entry)", Fields{"key": key.String()})
	c.notify(k, key)
	return nil
}

// BeginToken works even when the cache is disabled: request identity is
// what keeps overlapping fetches safe, with or without a populated store.
func (c *cache[V]) BeginToken(ctx context.Context, key Key) (uint64, error) {
	if key.IsZero() {
		return 0, nil
	}
	k := c.entryKey(key)
	t, err := c.tokens.Begin(ctx, k)
	if err != nil {
		c.hooks.TokenError("begin", k, err)
		return 0, err
	}
	return t, nil
}

func (c *cache[V]) CurrentToken(ctx context.Context, key Key) uint64 {
	if key.IsZero() {
		return 0
	}
	return c.currentToken(ctx, c.entryKey(key))
}

func (c *cache[V]) currentToken(ctx context.Context, storageKey string) uint64 {
	t, err := c.tokens.Current(ctx, storageKey)
	if err != nil {
		// Conservative: treat as 0 so in-flight writes get dropped
		c.hooks.TokenError("current", storageKey, err)
		c.log.Warn("token snapshot error", Fields{"key": storageKey, "err": err})
		return 0
	}
	return t
}

func (c *cache[V]) Subscribe(key Key, fn func(Key)) func() {
	if key.IsZero() || fn == nil {
		return func() {}
	}
	k := c.entryKey(key)
	c.subMu.Lock()
	c.subSeq++
	id := c.subSeq
	if c.subs[k] == nil {
		c.subs[k] = make(map[uint64]func(Key))
	}
	c.subs[k][id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		if m := c.subs[k]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(c.subs, k)
			}
		}
		c.subMu.Unlock()
	}
}

func (c *cache[V]) RegisterRevalidator(key Key, r Revalidator) func() {
	if key.IsZero() || r == nil {
		return func() {}
	}
	k := c.entryKey(key)
	c.subMu.Lock()
	c.subSeq++
	id := c.subSeq
	if c.revs[k] == nil {
		c.revs[k] = make(map[uint64]Revalidator)
	}
	c.revs[k][id] = r
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		if m := c.revs[k]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(c.revs, k)
			}
		}
		c.subMu.Unlock()
	}
}

func (c *cache[V]) RequestRevalidate(ctx context.Context, key Key) {
	if key.IsZero() {
		return
	}
	k := c.entryKey(key)
	c.subMu.Lock()
	targets := make([]Revalidator, 0, len(c.revs[k]))
	for _, r := range c.revs[k] {
		targets = append(targets, r)
	}
	c.subMu.Unlock()

	c.hooks.RevalidateRequested(k, len(targets))
	if len(targets) == 0 {
		return
	}
	// detach from the caller's deadline; revalidation outlives the trigger
	bg := context.WithoutCancel(ctx)
	for _, r := range targets {
		go r.Revalidate(bg)
	}
}

// notify fires change listeners synchronously after a committed write/clear.
// Listeners must be cheap; offload anything slow.
func (c *cache[V]) notify(storageKey string, key Key) {
	c.subMu.Lock()
	fns := make([]func(Key), 0, len(c.subs[storageKey]))
	for _, fn := range c.subs[storageKey] {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
}

func (c *cache[V]) entryKey(key Key) string {
	// isolate by namespace
	return util.EntryKey("ent:"+c.ns, key.Parts())
}
