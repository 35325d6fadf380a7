// Package mutcache implements a revalidating fetch cache with an explicit,
// imperative mutation channel on top of a shared, key-addressed store.
// Race safety comes from per-key request tokens: every dispatched fetch or
// mutation captures a fresh token, and whichever settles with a superseded
// token is ignored, at the local-state boundary and at the cache-write
// boundary alike. The most recent write always wins, even when an older
// in-flight fetch finishes later.
//
// Components:
//   - Store: byte store with TTL (e.g. memory, Ristretto, BigCache, Redis).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - token.Tracker: request token counter per logical key. Local
//     (in-process) by default, optional Redis implementation for
//     multi-replica / restart persistence.
//   - Mutation[V, A]: imperative controller; fetches only on Trigger.
//   - Resource[V]: passive reader; fetches on bind and on revalidation.
//
// Keys:
//
//	ent:<ns>:<key>  - cache entries (composite key parts joined canonically)
//	tok:<ns>:<key>  - Redis-backed tokens (see token package)
//
// Trigger pattern:
//
//	m := mutcache.NewMutation(cc, mutcache.K("user", "42"), fetchUser)
//	v, err := m.Trigger(ctx, arg, &mutcache.TriggerOptions[User]{PopulateCache: true})
package mutcache
