// Package registry implements the partial-registration protocol that merges
// independently generated navigation fragments into one query-ready index.
//
// Fragments arrive in arbitrary order from independent producers (one per
// documented crate). A consumer may attach before or after any given fragment:
// fragments registered before the consumer attaches are buffered and delivered
// as a single batch on attach; fragments registered afterwards are delivered
// incrementally, one delta per registration. The merged index is append-only
// for the registry's lifetime.
package registry

import (
	"sort"
	"sync"
)

// Fragment is one producer's batch of key→items contributions. It is treated
// as immutable once passed to Register. Producer identifies the originating
// crate; it is unique per fragment in practice, but the registry does not rely
// on that.
type Fragment[T any] struct {
	Producer string
	Entries  map[string][]T
}

// Consumer receives merged entries. The first invocation after Attach carries
// the full merged index accumulated so far; every later invocation carries
// exactly one fragment's entries.
type Consumer[T any] func(batch map[string][]T)

type state int

const (
	// stateBuffering: no consumer yet; fragments queue in pending.
	stateBuffering state = iota
	// stateAttached: fragments merge and stream to the consumer directly.
	stateAttached
)

// Registry accumulates fragments and exposes the merged view. Entries for a
// key are the concatenation of every registered fragment's entries for that
// key, in registration order. Nothing is ever deduplicated, reordered, or
// removed: registering the same fragment twice visibly doubles its entries,
// which downstream callers rely on.
//
// All methods are safe for concurrent use; operations serialize on one mutex,
// so the ordering guarantee holds: if Register(f1) returns before Register(f2)
// is called, f1's entries precede f2's for every shared key.
type Registry[T any] struct {
	mu        sync.Mutex
	state     state
	merged    map[string][]T
	pending   []Fragment[T]
	producers []string
	consumer  Consumer[T]
}

// New creates an empty registry in the buffering state.
func New[T any]() *Registry[T] {
	return &Registry[T]{merged: make(map[string][]T)}
}

// Register submits a fragment. It never fails for a well-formed fragment;
// malformed input is the loader's problem, not the registry's. If a consumer
// is attached, the fragment's entries are merged into the index and the
// consumer receives exactly this fragment's entries. Otherwise the fragment is
// buffered until the first Attach.
func (r *Registry[T]) Register(f Fragment[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.producers = append(r.producers, f.Producer)

	if r.state == stateBuffering {
		r.pending = append(r.pending, f)
		return
	}

	r.merge(f)
	if r.consumer != nil {
		r.consumer(copyEntries(f.Entries))
	}
}

// Attach sets the active consumer. The first call flushes all buffered
// fragments into the merged index in their original registration order and
// delivers the complete result as one batch (empty map if nothing has been
// registered). Subsequent calls replace the consumer (last writer wins) but
// re-deliver nothing: already-sent data is never replayed.
func (r *Registry[T]) Attach(c Consumer[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateAttached {
		r.consumer = c
		return
	}

	for _, f := range r.pending {
		r.merge(f)
	}
	r.pending = nil
	r.state = stateAttached
	r.consumer = c

	if c != nil {
		c(copyEntries(r.merged))
	}
}

// Lookup returns the merged entries for key in registration order. Unknown
// keys yield an empty sequence, never an error. While buffering, pending
// fragments are folded into the result so Lookup is indistinguishable from a
// deferred merge.
func (r *Registry[T]) Lookup(key string) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := append([]T(nil), r.merged[key]...)
	for _, f := range r.pending {
		items = append(items, f.Entries[key]...)
	}
	return items
}

// Keys returns every known key in lexicographic order.
func (r *Registry[T]) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(r.merged))
	for k := range r.merged {
		seen[k] = true
	}
	for _, f := range r.pending {
		for k := range f.Entries {
			seen[k] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Producers returns the producer ids of every registered fragment, in
// registration order. Duplicates appear as often as they registered.
func (r *Registry[T]) Producers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.producers...)
}

// Attached reports whether a consumer has been attached.
func (r *Registry[T]) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateAttached
}

// merge concatenates f's entries onto the merged index. Caller holds mu.
func (r *Registry[T]) merge(f Fragment[T]) {
	for key, items := range f.Entries {
		r.merged[key] = append(r.merged[key], items...)
	}
}

// copyEntries shallow-copies a batch so consumers cannot mutate registry
// state through the maps they receive.
func copyEntries[T any](entries map[string][]T) map[string][]T {
	out := make(map[string][]T, len(entries))
	for k, v := range entries {
		out[k] = append([]T(nil), v...)
	}
	return out
}
