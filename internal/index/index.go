// Package index defines the two navigation indexes built on the
// partial-registration registry: the implementor index (trait path →
// implementing types) and the sidebar index (module path → member symbols).
// Both share the registry's merge mechanics and differ only in payload.
package index

import "github.com/cratenav/cratenav/internal/registry"

// Implementor describes one type implementing a trait. Signature is the
// pre-rendered impl markup (generics and where clauses included) produced by
// the doc generator; the index treats it as opaque text. Synthetic marks
// compiler-generated blanket impls; the renderer presents those differently,
// but storage order makes no distinction.
type Implementor struct {
	Signature string   `json:"signature"`
	Synthetic bool     `json:"synthetic"`
	TypePaths []string `json:"types"`
}

// ImplementorIndex maps trait paths to their known implementors.
type ImplementorIndex struct {
	reg *registry.Registry[Implementor]
}

// NewImplementorIndex returns an empty implementor index.
func NewImplementorIndex() *ImplementorIndex {
	return &ImplementorIndex{reg: registry.New[Implementor]()}
}

// Register submits one producer's trait→implementors contributions.
func (ix *ImplementorIndex) Register(producer string, entries map[string][]Implementor) {
	ix.reg.Register(registry.Fragment[Implementor]{Producer: producer, Entries: entries})
}

// Attach sets the consumer that receives merged implementor batches.
func (ix *ImplementorIndex) Attach(c registry.Consumer[Implementor]) { ix.reg.Attach(c) }

// Lookup returns the implementors of traitPath in registration order; empty
// if the trait has no known implementors yet.
func (ix *ImplementorIndex) Lookup(traitPath string) []Implementor {
	return ix.reg.Lookup(traitPath)
}

// Traits returns every trait path with at least one registered implementor.
func (ix *ImplementorIndex) Traits() []string { return ix.reg.Keys() }

// Producers returns the producer ids of every registered fragment in
// registration order.
func (ix *ImplementorIndex) Producers() []string { return ix.reg.Producers() }

// ItemKind classifies a sidebar member the way rustdoc does.
type ItemKind string

const (
	KindEnum     ItemKind = "enum"
	KindStruct   ItemKind = "struct"
	KindTrait    ItemKind = "trait"
	KindMacro    ItemKind = "macro"
	KindMod      ItemKind = "mod"
	KindType     ItemKind = "type"
	KindFn       ItemKind = "fn"
	KindConstant ItemKind = "constant"
	KindUnion    ItemKind = "union"
)

// SidebarItem is one named symbol belonging to a module.
type SidebarItem struct {
	Kind    ItemKind `json:"kind"`
	Name    string   `json:"name"`
	Summary string   `json:"summary,omitempty"`
}

// SidebarIndex maps module paths to their member symbols.
type SidebarIndex struct {
	reg *registry.Registry[SidebarItem]
}

// NewSidebarIndex returns an empty sidebar index.
func NewSidebarIndex() *SidebarIndex {
	return &SidebarIndex{reg: registry.New[SidebarItem]()}
}

// Register submits one producer's module→members contributions.
func (ix *SidebarIndex) Register(producer string, entries map[string][]SidebarItem) {
	ix.reg.Register(registry.Fragment[SidebarItem]{Producer: producer, Entries: entries})
}

// Attach sets the consumer that receives merged sidebar batches.
func (ix *SidebarIndex) Attach(c registry.Consumer[SidebarItem]) { ix.reg.Attach(c) }

// Lookup returns the members of modulePath in registration order. Grouping by
// kind is the caller's projection, see GroupByKind.
func (ix *SidebarIndex) Lookup(modulePath string) []SidebarItem {
	return ix.reg.Lookup(modulePath)
}

// Modules returns every module path with at least one registered member.
func (ix *SidebarIndex) Modules() []string { return ix.reg.Keys() }

// Producers returns the producer ids of every registered fragment in
// registration order.
func (ix *SidebarIndex) Producers() []string { return ix.reg.Producers() }

// GroupByKind buckets sidebar items by their declared kind, preserving the
// order within each bucket. Pure projection over a Lookup result; the index
// itself stores flat per-module sequences so its merge rule stays uniform with
// the implementor index.
func GroupByKind(items []SidebarItem) map[ItemKind][]SidebarItem {
	groups := make(map[ItemKind][]SidebarItem)
	for _, it := range items {
		groups[it.Kind] = append(groups[it.Kind], it)
	}
	return groups
}
