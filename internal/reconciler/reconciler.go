// Package reconciler implements the symmetric diff-and-apply engine (§4.4):
// given two universes, compute per-tenant deltas, hydrate them into full
// resources, push them through the target universe, and coordinate
// tenant-deletion voting.
//
// Go has no abstract base class to hang reconcile as a template method on
// the Universe type, so it is a free function taking universe.Universe
// values instead — the same "operate over an interface" shape the teacher
// uses for its storage.Storage abstraction.
package reconciler

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/gaurav-dalvi/aci-integration-module/internal/convert"
	"github.com/gaurav-dalvi/aci-integration-module/internal/dispatcher"
	"github.com/gaurav-dalvi/aci-integration-module/internal/hashtree"
	"github.com/gaurav-dalvi/aci-integration-module/internal/logging"
	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
	"github.com/gaurav-dalvi/aci-integration-module/internal/universe"
)

// DeleteVotes is the tenant-deletion consensus set mutated by reconcile
// (§3, §5): for a given tenant, the set of universe instances that have
// voted it deletable. It is owned by the orchestrator, never by the core,
// and is safe for concurrent use by multiple reconcile calls: a single mutex
// serializes every update across all tenants, which satisfies I2's
// per-tenant serialization.
type DeleteVotes struct {
	mu    sync.Mutex
	votes map[types.TenantID]map[string]bool
}

// NewDeleteVotes returns an empty vote set.
func NewDeleteVotes() *DeleteVotes {
	return &DeleteVotes{votes: make(map[types.TenantID]map[string]bool)}
}

// Vote records self as voting to delete tenant.
func (d *DeleteVotes) Vote(tenant types.TenantID, self string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.votes[tenant] == nil {
		d.votes[tenant] = make(map[string]bool)
	}
	d.votes[tenant][self] = true
}

// Withdraw removes self's vote for tenant, if any — the "dissent" operation
// that enforces I2.
func (d *DeleteVotes) Withdraw(tenant types.TenantID, self string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.votes[tenant], self)
}

// HasVote reports whether self currently votes to delete tenant.
func (d *DeleteVotes) HasVote(tenant types.TenantID, self string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.votes[tenant][self]
}

// Voters returns the current set of universes voting to delete tenant.
func (d *DeleteVotes) Voters(tenant types.TenantID) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.votes[tenant]))
	for v := range d.votes[tenant] {
		out = append(out, v)
	}
	return out
}

// Options tunes a reconcile pass (§4.4 step 3, §9 Open Questions).
type Options struct {
	// AlwaysVoteDeletion makes every served tenant vote to delete,
	// regardless of its tree's content.
	AlwaysVoteDeletion bool
	// SkipDummy votes to delete any tenant whose tree is empty-or-dummy,
	// without further comparison against the peer.
	SkipDummy bool
}

// Result is the outcome of one reconcile call: the creates/deletes that
// were pushed (for observability/tests), and whether anything was pushed at
// all.
type Result struct {
	Tenant   types.TenantID
	Created  []types.ResourceKey
	Deleted  []types.ResourceKey
	Pushed   bool
	Failures []dispatcher.ItemFailure
}

// Reconcile drives self toward other, mutating votes as needed, and
// returns one Result per tenant considered. self identifies this universe
// instance in the DeleteVotes set.
func Reconcile(ctx context.Context, self universe.Universe, selfName string, other universe.Universe, votes *DeleteVotes, opts Options) ([]Result, error) {
	passID := uuid.NewString()
	logging.Debugf("reconciler: pass=%s self=%s starting", passID, selfName)

	mine := self.State()
	theirs, err := other.GetOptimizedState(ctx, mine)
	if err != nil {
		return nil, fmt.Errorf("reconciler: get_optimized_state: %w", err)
	}

	var results []Result

	for tenant := range mine {
		voteDeletion(tenant, mine, theirs, selfName, votes, opts)
	}

	for tenant := range intersect(mine, theirs) {
		mineTree, _ := mine.Get(tenant)
		theirTree, ok := theirs.Get(tenant)
		if !ok {
			continue
		}

		diff := theirTree.Diff(mineTree)

		r := Result{Tenant: tenant, Created: diff.Add, Deleted: diff.Remove}

		if len(diff.Add) == 0 && len(diff.Remove) == 0 {
			results = append(results, r)
			continue
		}

		createResources, err := other.GetResources(ctx, tenant, diff.Add)
		if err != nil {
			return nil, fmt.Errorf("reconciler: get_resources for tenant %s: %w", tenant, err)
		}
		deleteResources, err := self.GetResourcesForDelete(ctx, tenant, diff.Remove)
		if err != nil {
			return nil, fmt.Errorf("reconciler: get_resources_for_delete for tenant %s: %w", tenant, err)
		}

		batch := dispatcher.Batch{
			Create: resourcesToCreateItems(createResources),
			Delete: deleteResources,
		}

		r.Failures = self.PushResources(ctx, tenant, batch)
		r.Pushed = true
		for _, f := range r.Failures {
			logging.Warnf("reconciler: pass=%s tenant=%s method=%s failed: %v", passID, tenant, f.Method, f.Err)
		}
		results = append(results, r)
	}

	logging.Debugf("reconciler: pass=%s self=%s finished tenants=%d", passID, selfName, len(results))
	return results, nil
}

// voteDeletion implements §4.4 step 3's four-way branch.
func voteDeletion(tenant types.TenantID, mine, theirs hashtree.View, selfName string, votes *DeleteVotes, opts Options) {
	if opts.AlwaysVoteDeletion {
		votes.Vote(tenant, selfName)
		return
	}
	if opts.SkipDummy && mine.EmptyOrDummy(tenant) {
		votes.Vote(tenant, selfName)
		return
	}

	mineTree, ok := mine.Get(tenant)
	if !ok || !mineTree.Empty() {
		return
	}

	theirTree, ok := theirs.Get(tenant)
	if !ok || theirTree.Empty() {
		votes.Vote(tenant, selfName)
		return
	}

	// Self is empty but the peer has content: withdraw any prior vote
	// (the dissent operation enforcing I2).
	votes.Withdraw(tenant, selfName)
}

// intersect returns the tenants present in both views — the set reconcile
// iterates over (§4.4 step 2: tenants only in theirs are handled by the
// optimized-state contract diffing against an implicit empty receiver
// tree, not by explicit enumeration here).
func intersect(a, b hashtree.View) map[types.TenantID]bool {
	out := make(map[types.TenantID]bool)
	for t := range a {
		if _, ok := b[t]; ok {
			out[t] = true
		}
	}
	return out
}

// resourcesToCreateItems adapts hydrated native Resources into the
// convert.Item shape dispatcher.Push expects for its Create bucket. The
// Reconciler hydrates through other.GetResources before pushing, so these
// items are already in native form; convert.Convert's type-keyed identity
// extraction is idempotent over resources that already carry an Identity,
// so routing them back through convert here is a no-op pass-through rather
// than a second, different conversion.
func resourcesToCreateItems(resources []types.Resource) []convert.Item {
	items := make([]convert.Item, len(resources))
	for i, r := range resources {
		attrs := make(map[string]any, len(r.Attributes)+1)
		for k, v := range r.Attributes {
			attrs[k] = v
		}
		for j, attr := range identityAttrNames(r.Type) {
			if j < len(r.Identity) {
				attrs[attr] = r.Identity[j]
			}
		}
		items[i] = convert.Item{Type: r.Type, Attributes: attrs}
	}
	return items
}

func identityAttrNames(resourceType string) []string {
	switch resourceType {
	case "Tenant":
		return []string{"tenant"}
	case "BridgeDomain", "EPG":
		return []string{"tenant", "name"}
	case "Subnet":
		return []string{"tenant", "bridge_domain", "cidr"}
	default:
		return nil
	}
}
