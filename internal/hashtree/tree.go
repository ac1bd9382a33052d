// Package hashtree defines the Tree contract the core treats as an external
// black box (§4.1, §6) and supplies a concrete, deterministic reference
// implementation so the Reconciler and its tests have something real to
// diff against.
package hashtree

import "github.com/gaurav-dalvi/aci-integration-module/internal/types"

// Tree summarizes one tenant's resources as a content-addressed structure.
// Implementations are value-equal iff their RootFullHash matches, and the
// core never mutates one: it only reads RootFullHash/Empty/Dummy and calls
// Diff.
type Tree interface {
	// RootFullHash is a stable fingerprint of the tree's entire contents.
	RootFullHash() string
	// Empty reports whether the tree carries no resources at all.
	Empty() bool
	// Dummy reports whether this is a pruned/placeholder root rather than a
	// tree that has genuinely been observed empty. The dissent rule in the
	// Reconciler (§4.4, §9) distinguishes the two, so implementations must
	// carry this bit verbatim rather than collapsing it into Empty.
	Dummy() bool
	// Diff returns the ordered ResourceKeys that differ between the
	// receiver and other: Add holds keys the receiver has with content
	// other lacks or disagrees with; Remove holds keys other has that the
	// receiver lacks entirely. See DESIGN.md for why content-changed keys
	// surface only in Add (the Dispatcher's create path is an upsert).
	Diff(other Tree) Diff
}

// Diff is the add/remove pair a Tree.Diff call produces.
type Diff struct {
	Add    []types.ResourceKey
	Remove []types.ResourceKey
}

// View is a mapping from tenant to that tenant's Tree, produced and
// consumed by Universes (§2, §3).
type View map[types.TenantID]Tree

// Get returns the tree for a tenant and whether it was present in the view.
func (v View) Get(tenant types.TenantID) (Tree, bool) {
	t, ok := v[tenant]
	return t, ok
}

// EmptyOrDummy reports whether the view has no entry for tenant, or has one
// that is empty or a dummy placeholder. Used by the skip_dummy reconciler
// option (§4.4).
func (v View) EmptyOrDummy(tenant types.TenantID) bool {
	t, ok := v[tenant]
	if !ok {
		return true
	}
	return t.Empty() || t.Dummy()
}
