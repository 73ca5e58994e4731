package index

import (
	"reflect"
	"testing"
)

func TestImplementorIndex_LookupOrder(t *testing.T) {
	t.Parallel()

	ix := NewImplementorIndex()
	ix.Register("serde", map[string][]Implementor{
		"core::fmt::Debug": {
			{Signature: "impl Debug for Value", TypePaths: []string{"serde_json::Value"}},
		},
	})
	ix.Register("tokio", map[string][]Implementor{
		"core::fmt::Debug": {
			{Signature: "impl Debug for JoinError", TypePaths: []string{"tokio::task::JoinError"}},
			{Signature: "impl<T> Debug for JoinHandle<T> where T: Debug", Synthetic: true,
				TypePaths: []string{"tokio::task::JoinHandle"}},
		},
	})

	got := ix.Lookup("core::fmt::Debug")
	if len(got) != 3 {
		t.Fatalf("got %d implementors, want 3", len(got))
	}
	if got[0].Signature != "impl Debug for Value" {
		t.Errorf("first implementor = %q, want serde's (registration order)", got[0].Signature)
	}
	// Synthetic impls keep their storage position; no reordering.
	if !got[2].Synthetic {
		t.Errorf("third implementor should be the synthetic one, got %+v", got[2])
	}

	if got := ix.Lookup("core::fmt::Display"); len(got) != 0 {
		t.Errorf("Lookup(unknown trait) = %v, want empty", got)
	}
	if got, want := ix.Traits(), []string{"core::fmt::Debug"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Traits() = %v, want %v", got, want)
	}
}

func TestSidebarIndex_LookupAndAttach(t *testing.T) {
	t.Parallel()

	ix := NewSidebarIndex()
	ix.Register("serde", map[string][]SidebarItem{
		"serde::de": {
			{Kind: KindTrait, Name: "Deserialize", Summary: "A data structure that can be deserialized."},
			{Kind: KindStruct, Name: "IgnoredAny"},
		},
	})

	var batches []map[string][]SidebarItem
	ix.Attach(func(batch map[string][]SidebarItem) {
		batches = append(batches, batch)
	})
	if len(batches) != 1 {
		t.Fatalf("got %d batches on attach, want 1", len(batches))
	}

	ix.Register("serde", map[string][]SidebarItem{
		"serde::de": {{Kind: KindFn, Name: "value"}},
	})
	if len(batches) != 2 {
		t.Fatalf("got %d batches after register, want 2", len(batches))
	}

	items := ix.Lookup("serde::de")
	want := []SidebarItem{
		{Kind: KindTrait, Name: "Deserialize", Summary: "A data structure that can be deserialized."},
		{Kind: KindStruct, Name: "IgnoredAny"},
		{Kind: KindFn, Name: "value"},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("Lookup(serde::de) = %v, want %v", items, want)
	}
}

func TestGroupByKind(t *testing.T) {
	t.Parallel()

	items := []SidebarItem{
		{Kind: KindStruct, Name: "B"},
		{Kind: KindTrait, Name: "T"},
		{Kind: KindStruct, Name: "A"},
		{Kind: KindFn, Name: "f"},
	}
	groups := GroupByKind(items)

	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	// Order within a group follows the input sequence, not name order.
	if got, want := groups[KindStruct], []SidebarItem{{Kind: KindStruct, Name: "B"}, {Kind: KindStruct, Name: "A"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("struct group = %v, want %v", got, want)
	}
	if len(groups[KindTrait]) != 1 || len(groups[KindFn]) != 1 {
		t.Errorf("unexpected group sizes: %v", groups)
	}

	// Grouping is a projection; the input stays untouched and empty input is fine.
	if g := GroupByKind(nil); len(g) != 0 {
		t.Errorf("GroupByKind(nil) = %v, want empty", g)
	}
}
