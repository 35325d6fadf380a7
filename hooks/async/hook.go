// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/mutcache"
//	"github.com/unkn0wn-root/mutcache/codec"
//	"github.com/unkn0wn-root/mutcache/hooks/async"
//	"github.com/unkn0wn-root/mutcache/hooks/sloghook"
//	"github.com/unkn0wn-root/mutcache/token"
//
// )
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{
//	    StaleDropEvery: 10, // sample logs: ~every 10th dropped stale write
//	    SelfHealEvery:  1,  // log every self-heal
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := mutcache.New[User](mutcache.Options[User]{
//	    Namespace: "app:prod:user",
//	    Store:     store,
//	    Codec:     codec.JSON[User]{},
//	    Tokens:    token.NewRedisWithTTL(rdb, "app:prod:user", 24*time.Hour),
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/mutcache"
)

type Hooks struct {
	inner mutcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ mutcache.Hooks = (*Hooks)(nil)

func New(inner mutcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) StaleWriteDropped(k string, tok, cur uint64) {
	h.try(func() { h.inner.StaleWriteDropped(k, tok, cur) })
}
func (h *Hooks) SelfHeal(k, r string)      { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) StoreSetRejected(k string) { h.try(func() { h.inner.StoreSetRejected(k) }) }
func (h *Hooks) RevalidateRequested(k string, n int) {
	h.try(func() { h.inner.RevalidateRequested(k, n) })
}
func (h *Hooks) TokenError(op, k string, err error) {
	h.try(func() { h.inner.TokenError(op, k, err) })
}
func (h *Hooks) ClearOutage(k string, be, de error) {
	h.try(func() { h.inner.ClearOutage(k, be, de) })
}
