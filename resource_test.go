package mutcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestResourceFetchesOnBindAndRebind: binding IS the trigger for a passive
// resource, unlike a Mutation.
func TestResourceFetchesOnBindAndRebind(t *testing.T) {
	cc := newStringCache(t, "passive")

	var calls atomic.Int64
	r := NewResource(cc, K("a"), func(_ context.Context, key Key) (string, error) {
		calls.Add(1)
		return "val:" + key.String(), nil
	})
	defer r.Close()

	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "val:a"
	})
	if calls.Load() == 0 {
		t.Fatalf("bind did not fetch")
	}

	before := calls.Load()
	r.Rebind(K("b"))
	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "val:b"
	})
	if calls.Load() <= before {
		t.Fatalf("rebind did not fetch")
	}
}

// TestResourceObservesPopulatedMutationThenRevalidation walks the
// populate-then-revalidate flow end to end: the reader sees the mutation's
// value the moment the trigger settles, then the background-revalidated
// value once that resolves.
func TestResourceObservesPopulatedMutationThenRevalidation(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "popflow")

	releaseReval := make(chan struct{})
	var calls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		if calls.Add(1) == 1 {
			return "initial", nil
		}
		<-releaseReval
		return "revalidated", nil
	})
	defer r.Close()

	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "initial"
	})

	m := NewMutation(cc, K("k"), func(context.Context, Key, string) (string, error) {
		return "mutated", nil
	})
	if _, err := m.Trigger(ctx, "x", &TriggerOptions[string]{PopulateCache: true}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	// populate commits before the background revalidation can settle
	if v, ok := r.Data(); !ok || v != "mutated" {
		t.Fatalf("reader must observe the mutation's value immediately, got %q ok=%v", v, ok)
	}
	if v, ok, _ := cc.Read(ctx, K("k")); !ok || v != "mutated" {
		t.Fatalf("cache must hold the mutation's value, got %q ok=%v", v, ok)
	}

	close(releaseReval)
	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "revalidated"
	})
	waitFor(t, time.Second, func() bool {
		v, ok, _ := cc.Read(ctx, K("k"))
		return ok && v == "revalidated"
	})
}

// TestResourceNeverRegressesToOlderInFlightValue: a revalidation already in
// flight when a newer mutation lands must lose the race everywhere.
func TestResourceNeverRegressesToOlderInFlightValue(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "noregress")

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		if calls.Add(1) == 1 {
			return "v1", nil
		}
		entered <- struct{}{}
		<-release
		return "stale", nil
	})
	defer r.Close()

	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "v1"
	})

	revalDone := make(chan struct{})
	go func() {
		r.Revalidate(ctx)
		close(revalDone)
	}()
	<-entered // slow revalidation holds its token and is suspended

	m := NewMutation(cc, K("k"), func(context.Context, Key, string) (string, error) {
		return "mutated", nil
	})
	if _, err := m.Trigger(ctx, "x", &TriggerOptions[string]{PopulateCache: true, SkipRevalidate: true}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if v, ok := r.Data(); !ok || v != "mutated" {
		t.Fatalf("reader must adopt the mutation's value, got %q ok=%v", v, ok)
	}

	close(release)
	<-revalDone

	// the older settle must not have overwritten anything
	if v, ok, _ := cc.Read(ctx, K("k")); !ok || v != "mutated" {
		t.Fatalf("older revalidation overwrote cache: %q ok=%v", v, ok)
	}
	if v, _ := r.Data(); v != "mutated" {
		t.Fatalf("older revalidation overwrote reader state: %q", v)
	}
}

// TestResourceRevalidationsCoalesce: overlapping revalidations share one
// fetch (unlike Trigger, which never deduplicates).
func TestResourceRevalidationsCoalesce(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "coalesce")

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var calls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		if calls.Add(1) == 1 {
			return "seed", nil
		}
		entered <- struct{}{}
		<-release
		return "refreshed", nil
	})
	defer r.Close()

	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "seed"
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Revalidate(ctx)
	}()
	<-entered

	// latecomers join the in-flight fetch instead of dispatching their own
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Revalidate(ctx)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 2 {
		t.Fatalf("fetch invocations: got %d want 2 (seed + one shared revalidation)", got)
	}
	if v, _ := r.Data(); v != "refreshed" {
		t.Fatalf("coalesced revalidation did not land: %q", v)
	}
}

// TestResourceAndMutationStatesIndependent: shared key, different fetch
// functions. Neither side's local state leaks into the other without
// explicit cache population.
func TestResourceAndMutationStatesIndependent(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "independent")

	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		return "passive", nil
	})
	defer r.Close()
	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "passive"
	})

	m := NewMutation(cc, K("k"), func(context.Context, Key, string) (string, error) {
		return "active", nil
	})
	if _, ok := m.Data(); ok {
		t.Fatalf("resource value leaked into mutation state")
	}

	if _, err := m.Trigger(ctx, "x", &TriggerOptions[string]{SkipRevalidate: true}); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if v, _ := m.Data(); v != "active" {
		t.Fatalf("mutation data: %q", v)
	}
	if v, _ := r.Data(); v != "passive" {
		t.Fatalf("mutation without populate leaked into reader: %q", v)
	}
}

// TestResourceKeepsLastGoodOnError: a failed revalidation surfaces the error
// but keeps the previous value renderable.
func TestResourceKeepsLastGoodOnError(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "lastgood")

	fail := errors.New("backend down")
	var calls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		if calls.Add(1) == 1 {
			return "good", nil
		}
		return "", fail
	})
	defer r.Close()

	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "good"
	})

	r.Revalidate(ctx)
	if !errors.Is(r.Err(), fail) {
		t.Fatalf("err not surfaced: %v", r.Err())
	}
	if v, ok := r.Data(); !ok || v != "good" {
		t.Fatalf("last good value lost: %q ok=%v", v, ok)
	}
}

// TestResourceAdoptsDirectMutateWrite: Mutate commits synchronously and the
// reader adopts it without any fetch.
func TestResourceAdoptsDirectMutateWrite(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "adopt")

	var rcalls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		rcalls.Add(1)
		return "fetched", nil
	})
	defer r.Close()
	waitFor(t, time.Second, func() bool {
		_, ok := r.Data()
		return ok
	})
	before := rcalls.Load()

	m := NewMutation(cc, K("k"), func(context.Context, Key, string) (string, error) {
		t.Error("Mutate must not invoke any fetch")
		return "", nil
	})
	if err := m.Mutate(ctx, "pushed", &MutateOptions{SkipRevalidate: true}); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	if v, _ := r.Data(); v != "pushed" {
		t.Fatalf("reader did not adopt the direct write, got %q", v)
	}
	if rcalls.Load() != before {
		t.Fatalf("direct write caused a fetch")
	}
}

// TestMutateDefaultTriggersRevalidation: a direct write with default options
// asks registered readers to refetch in the background.
func TestMutateDefaultTriggersRevalidation(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "mutreval")

	var calls atomic.Int64
	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		if calls.Add(1) == 1 {
			return "initial", nil
		}
		return "refetched", nil
	})
	defer r.Close()
	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "initial"
	})

	m := NewMutation(cc, K("k"), func(context.Context, Key, string) (string, error) {
		t.Error("Mutate must not invoke any fetch")
		return "", nil
	})
	if err := m.Mutate(ctx, "direct", nil); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	// the write itself is adopted synchronously; the revalidation lands after
	waitFor(t, time.Second, func() bool {
		v, ok := r.Data()
		return ok && v == "refetched"
	})
	if v, ok, _ := cc.Read(ctx, K("k")); !ok || v != "refetched" {
		t.Fatalf("revalidated value not cached: %q ok=%v", v, ok)
	}
}

// TestResourceCloseStopsAdoption.
func TestResourceCloseStopsAdoption(t *testing.T) {
	ctx := context.Background()
	cc := newStringCache(t, "rclose")

	r := NewResource(cc, K("k"), func(context.Context, Key) (string, error) {
		return "v", nil
	})
	waitFor(t, time.Second, func() bool {
		_, ok := r.Data()
		return ok
	})

	r.Close()
	if err := cc.Write(ctx, K("k"), "after-close", 0); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if v, _ := r.Data(); v != "v" {
		t.Fatalf("closed resource adopted a write: %q", v)
	}
}
