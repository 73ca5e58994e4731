package registry

import (
	"reflect"
	"sync"
	"testing"
)

// recorder captures every batch a consumer receives.
type recorder struct {
	batches []map[string][]string
}

func (r *recorder) consume(batch map[string][]string) {
	r.batches = append(r.batches, batch)
}

func frag(producer string, entries map[string][]string) Fragment[string] {
	return Fragment[string]{Producer: producer, Entries: entries}
}

func TestAttachAfterRegister_DeliversOneBatch(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("crate1", map[string][]string{"TraitX": {"a"}, "TraitY": {"b"}}))
	r.Register(frag("crate2", map[string][]string{"TraitX": {"c"}}))

	var rec recorder
	r.Attach(rec.consume)

	if len(rec.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(rec.batches))
	}
	want := map[string][]string{"TraitX": {"a", "c"}, "TraitY": {"b"}}
	if !reflect.DeepEqual(rec.batches[0], want) {
		t.Fatalf("initial batch = %v, want %v", rec.batches[0], want)
	}
}

func TestRegisterAfterAttach_DeliversDeltaOnly(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("crate1", map[string][]string{"TraitX": {"item1"}}))

	var rec recorder
	r.Attach(rec.consume)

	r.Register(frag("crate2", map[string][]string{"TraitX": {"item2"}, "TraitY": {"item3"}}))

	if len(rec.batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(rec.batches))
	}
	wantFirst := map[string][]string{"TraitX": {"item1"}}
	if !reflect.DeepEqual(rec.batches[0], wantFirst) {
		t.Errorf("initial batch = %v, want %v", rec.batches[0], wantFirst)
	}
	wantDelta := map[string][]string{"TraitX": {"item2"}, "TraitY": {"item3"}}
	if !reflect.DeepEqual(rec.batches[1], wantDelta) {
		t.Errorf("incremental batch = %v, want %v (delta only, no resend)", rec.batches[1], wantDelta)
	}

	if got, want := r.Lookup("TraitX"), []string{"item1", "item2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup(TraitX) = %v, want %v", got, want)
	}
	if got, want := r.Lookup("TraitY"), []string{"item3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup(TraitY) = %v, want %v", got, want)
	}
}

func TestLookup_ConcatenatesInRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("p1", map[string][]string{"k": {"a", "b"}}))
	r.Register(frag("p2", map[string][]string{"k": {"c"}}))

	if got, want := r.Lookup("k"), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup(k) = %v, want %v", got, want)
	}

	// Order must survive the attach flush too.
	r.Attach(func(map[string][]string) {})
	if got, want := r.Lookup("k"), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup(k) after attach = %v, want %v", got, want)
	}
}

func TestLookup_UnknownKeyIsEmpty(t *testing.T) {
	t.Parallel()

	r := New[string]()
	if got := r.Lookup("nope"); len(got) != 0 {
		t.Fatalf("Lookup(unknown) = %v, want empty", got)
	}
	r.Register(frag("p", map[string][]string{"k": {"a"}}))
	if got := r.Lookup("nope"); len(got) != 0 {
		t.Fatalf("Lookup(unknown) = %v, want empty", got)
	}
}

// Duplicate registration must double entries, not be silently fixed by
// deduplication: callers rely on pure insertion-order concatenation.
func TestRegisterSameFragmentTwice_DoublesEntries(t *testing.T) {
	t.Parallel()

	f := frag("crate1", map[string][]string{"k1": {"a"}, "k2": {"b", "c"}})

	r := New[string]()
	r.Register(f)
	r.Register(f)

	if got, want := r.Lookup("k1"), []string{"a", "a"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup(k1) = %v, want %v", got, want)
	}
	if got, want := r.Lookup("k2"), []string{"b", "c", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Lookup(k2) = %v, want %v", got, want)
	}
}

func TestAttachWithNothingRegistered_EmptyInitialBatch(t *testing.T) {
	t.Parallel()

	r := New[string]()

	var rec recorder
	r.Attach(rec.consume)

	if len(rec.batches) != 1 || len(rec.batches[0]) != 0 {
		t.Fatalf("initial batch = %v, want one empty batch", rec.batches)
	}

	r.Register(frag("p", map[string][]string{"k": {"a"}}))
	if len(rec.batches) != 2 {
		t.Fatalf("got %d batches after register, want 2", len(rec.batches))
	}
	if got, want := rec.batches[1], map[string][]string{"k": {"a"}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("incremental batch = %v, want %v", got, want)
	}
}

func TestReattach_ReplacesConsumerWithoutReplay(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("p1", map[string][]string{"k": {"a"}}))

	var first, second recorder
	r.Attach(first.consume)
	r.Attach(second.consume)

	if len(second.batches) != 0 {
		t.Fatalf("second consumer received %v before any new fragment, want nothing", second.batches)
	}

	r.Register(frag("p2", map[string][]string{"k": {"b"}}))

	if len(first.batches) != 1 {
		t.Errorf("first consumer got %d batches, want 1 (replaced before delta)", len(first.batches))
	}
	if len(second.batches) != 1 {
		t.Fatalf("second consumer got %d batches, want 1", len(second.batches))
	}
	if got, want := second.batches[0], map[string][]string{"k": {"b"}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("second consumer batch = %v, want %v", got, want)
	}
}

func TestLookupWhileBuffering_SeesPendingFragments(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("p", map[string][]string{"k": {"a", "b"}}))

	// The merge may be deferred internally, but Lookup must not reveal that.
	if got, want := r.Lookup("k"), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Lookup(k) before attach = %v, want %v", got, want)
	}
	if r.Attached() {
		t.Fatal("Attached() = true before any Attach")
	}
}

func TestKeysAndProducers(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Register(frag("zeta", map[string][]string{"b": {"1"}}))
	r.Register(frag("alpha", map[string][]string{"a": {"2"}, "c": {"3"}}))
	r.Attach(func(map[string][]string) {})
	r.Register(frag("zeta", map[string][]string{"a": {"4"}}))

	if got, want := r.Keys(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	// Registration order, duplicates included.
	if got, want := r.Producers(), []string{"zeta", "alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Producers() = %v, want %v", got, want)
	}
}

func TestConsumerBatchIsACopy(t *testing.T) {
	t.Parallel()

	r := New[string]()
	r.Attach(func(batch map[string][]string) {
		for k := range batch {
			batch[k] = nil
		}
	})
	r.Register(frag("p", map[string][]string{"k": {"a"}}))

	if got, want := r.Lookup("k"), []string{"a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("consumer mutation leaked into index: Lookup(k) = %v, want %v", got, want)
	}
}

func TestConcurrentRegister_AllEntriesLand(t *testing.T) {
	t.Parallel()

	r := New[int]()
	r.Attach(func(map[string][]int) {})

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(v int) {
			defer wg.Done()
			r.Register(Fragment[int]{Producer: "p", Entries: map[string][]int{"k": {v}}})
		}(i)
	}
	wg.Wait()

	if got := r.Lookup("k"); len(got) != n {
		t.Fatalf("Lookup(k) has %d entries, want %d", len(got), n)
	}
}
