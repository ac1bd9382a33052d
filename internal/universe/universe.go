// Package universe defines the Universe abstraction (§4.3) and its two
// concrete variants: DesiredUniverse, which reads from the intent store, and
// DesiredOperationalUniverse, restricted to operational sub-state such as
// faults. Both share the dispatcher's push path and the Failure Ledger's
// retry accounting.
package universe

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gaurav-dalvi/aci-integration-module/internal/dispatcher"
	"github.com/gaurav-dalvi/aci-integration-module/internal/hashtree"
	"github.com/gaurav-dalvi/aci-integration-module/internal/ledger"
	"github.com/gaurav-dalvi/aci-integration-module/internal/logging"
	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

// defaultAbort is the Go analogue of the original implementation's
// perform_harakiri: log the reason at Errorf and terminate the process. It
// runs only on a system-critical Failure Ledger outcome (§6, §7).
func defaultAbort(format string, args ...any) {
	logging.Errorf(format, args...)
	os.Exit(1)
}

// Universe is the contract every side of a reconciliation pair implements
// (§4.3). Reconcile itself is defined once, over this interface, in
// package reconciler — Go has no abstract base class to hang a template
// method on, so the free function plays that role instead.
type Universe interface {
	Serve(tenants []types.TenantID)
	Observe(ctx context.Context) error
	State() hashtree.View
	GetOptimizedState(ctx context.Context, other hashtree.View) (hashtree.View, error)
	GetResources(ctx context.Context, tenant types.TenantID, keys []types.ResourceKey) ([]types.Resource, error)
	GetResourcesForDelete(ctx context.Context, tenant types.TenantID, keys []types.ResourceKey) ([]types.Resource, error)
	PushResources(ctx context.Context, tenant types.TenantID, batch dispatcher.Batch) []dispatcher.ItemFailure
	CleanupState(ctx context.Context, tenant types.TenantID) error
	Reset(ctx context.Context, tenants []types.TenantID) error

	CreationSucceeded(id types.ObjectID)
	CreationFailed(id types.ObjectID, kind types.ErrorKind, err error) ledger.Outcome
	DeletionFailed(id types.ObjectID, kind types.ErrorKind, err error) ledger.Outcome
}

// Source abstracts the backing intent store a DesiredUniverse reads from
// and writes through. internal/store.Store satisfies it directly; tests use
// an in-memory fake.
type Source interface {
	// FindChanged returns, for each served tenant, a Tree built from
	// stored resources — the store's side of §6's find_changed contract.
	// lastKnownRootHash lets a real backend skip unchanged tenants; the
	// reference Source ignores it and always recomputes.
	FindChanged(ctx context.Context, tenants []types.TenantID, lastKnownRootHash map[types.TenantID]string, operational bool) (hashtree.View, error)
	// Resources returns every stored resource for a tenant, keyed by its
	// full ResourceKey path.
	Resources(ctx context.Context, tenant types.TenantID) (map[string]types.Resource, map[string]types.ResourceKey, error)

	// MarkSynced implements §6's set_resource_sync_synced.
	MarkSynced(ctx context.Context, tenant types.TenantID, id types.ObjectID) error
	// MarkSyncError implements §6's set_resource_sync_error(msg).
	MarkSyncError(ctx context.Context, tenant types.TenantID, id types.ObjectID, reason string) error

	dispatcher.Manager
}

// Base implements the parts of Universe that are identical across
// DesiredUniverse and DesiredOperationalUniverse: served-set bookkeeping,
// observe/state against a Source, resource hydration with dedup, and
// ledger delegation. Concrete types embed it and add anything that differs
// (GetResourcesForDelete's lighter payload, in the operational case).
type Base struct {
	mu      sync.RWMutex
	src     Source
	ledger  *ledger.Ledger
	tenants []types.TenantID
	abort   func(format string, args ...any)

	operational bool
	view        hashtree.View
}

// NewBase constructs the shared machinery. operational selects whether
// FindChanged is called in operational mode (DesiredOperationalUniverse).
func NewBase(src Source, l *ledger.Ledger, operational bool) *Base {
	return &Base{src: src, ledger: l, operational: operational, abort: defaultAbort}
}

// SetAbortFunc overrides the process-abort primitive a system-critical
// Failure Ledger outcome invokes, in place of the default log-and-os.Exit
// behavior. A command wires its own fatal-error helper here; a test wires a
// recording stub so it can observe the abort without actually exiting.
func (b *Base) SetAbortFunc(f func(format string, args ...any)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.abort = f
}

func (b *Base) Serve(tenants []types.TenantID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tenants = append([]types.TenantID(nil), tenants...)
}

// Observe refreshes b.view from the Source for every served tenant.
func (b *Base) Observe(ctx context.Context) error {
	b.mu.RLock()
	tenants := append([]types.TenantID(nil), b.tenants...)
	b.mu.RUnlock()

	view, err := b.src.FindChanged(ctx, tenants, nil, b.operational)
	if err != nil {
		return fmt.Errorf("universe: observe: %w", err)
	}

	b.mu.Lock()
	b.view = view
	b.mu.Unlock()
	return nil
}

// State returns the most recently observed view. Per §4.3, a lazy universe
// may trigger a read here instead; this reference implementation always
// reads eagerly in Observe, so State is a plain accessor.
func (b *Base) State() hashtree.View {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

// GetOptimizedState re-reads the served tenants from the Source, passing
// other's root hashes so a Source may omit tenants whose hash matches. Base
// itself filters nothing; the reference Source ignores lastKnownRootHash and
// returns every served tenant.
func (b *Base) GetOptimizedState(ctx context.Context, other hashtree.View) (hashtree.View, error) {
	b.mu.RLock()
	tenants := append([]types.TenantID(nil), b.tenants...)
	b.mu.RUnlock()

	lastKnown := make(map[types.TenantID]string, len(other))
	for t, tree := range other {
		lastKnown[t] = tree.RootFullHash()
	}

	view, err := b.src.FindChanged(ctx, tenants, lastKnown, b.operational)
	if err != nil {
		return nil, fmt.Errorf("universe: get_optimized_state: %w", err)
	}
	return view, nil
}

// GetResources hydrates keys into Resources, deduplicating by identity
// tuple (extended with fault code for fault keys) per §4.5's P4.
func (b *Base) GetResources(ctx context.Context, tenant types.TenantID, keys []types.ResourceKey) ([]types.Resource, error) {
	resources, _, err := b.src.Resources(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("universe: get_resources: %w", err)
	}

	seen := make(map[types.ObjectID]bool)
	var out []types.Resource
	for _, key := range keys {
		dis, err := types.Dissect(key)
		if err != nil {
			logging.Warnf("universe: skipping malformed key %s: %v", key, err)
			continue
		}

		r, ok := resources[key.String()]
		if !ok {
			// Unknown/unobserved resource types are passed through as
			// identity-only shells rather than failing the batch. A fault
			// key's dissection yields its parent's type, so the shell must
			// be tagged as a fault explicitly rather than inheriting it.
			shellType := dis.Type
			if dis.IsFault {
				shellType = types.FaultTypeSentinel
			}
			r = types.Resource{Type: shellType, Identity: dis.IDs}
			if dis.IsFault {
				r.Attributes = map[string]any{types.AttrFaultCode: dis.FaultCode}
			}
		}

		id := r.ObjectID()
		if dis.IsFault {
			id = id.DedupKey(dis.FaultCode)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out, nil
}

// GetResourcesForDelete is identical to GetResources in the reference
// DesiredUniverse; DesiredOperationalUniverse overrides it with a lighter
// payload.
func (b *Base) GetResourcesForDelete(ctx context.Context, tenant types.TenantID, keys []types.ResourceKey) ([]types.Resource, error) {
	return b.GetResources(ctx, tenant, keys)
}

// PushResources runs the dispatcher's push path against the Source acting
// as Manager, then drives every item's outcome through the Failure Ledger
// and persists the resulting sync state (§4.2, §6, §7): this is the
// "calling path" collaborator that observes each item's outcome, since Base
// is the only thing that holds both the ledger and the Source together.
func (b *Base) PushResources(ctx context.Context, tenant types.TenantID, batch dispatcher.Batch) []dispatcher.ItemFailure {
	attempted := dispatcher.ObjectIDs(batch)
	failures := dispatcher.Push(ctx, tenant, batch, b.src)

	failed := make(map[types.ObjectID]bool, len(failures))
	for _, f := range failures {
		if f.ObjectID == (types.ObjectID{}) {
			continue
		}
		failed[f.ObjectID] = true
		switch outcome := b.ledger.OnFailure(f.ObjectID, f.Kind); outcome {
		case ledger.OutcomeSyncError:
			if err := b.src.MarkSyncError(ctx, tenant, f.ObjectID, f.Err.Error()); err != nil {
				logging.Warnf("universe: tenant=%s object=%s mark sync_error: %v", tenant, f.ObjectID, err)
			}
		case ledger.OutcomeAbort:
			b.abortOn(tenant, f.ObjectID, f.Err)
		}
	}
	for _, id := range attempted {
		if failed[id] {
			continue
		}
		b.ledger.OnSuccess(id)
		if err := b.src.MarkSynced(ctx, tenant, id); err != nil {
			logging.Warnf("universe: tenant=%s object=%s mark sync_synced: %v", tenant, id, err)
		}
	}
	return failures
}

// abortOn logs a system-critical outcome at Errorf and invokes the
// configured abort primitive (§6, §7: the agent terminates only here).
func (b *Base) abortOn(tenant types.TenantID, id types.ObjectID, err error) {
	b.mu.RLock()
	abort := b.abort
	b.mu.RUnlock()
	abort("universe: tenant=%s object=%s system-critical failure, terminating: %v", tenant, id, err)
}

// CleanupState purges a tenant's durable intent-store state.
func (b *Base) CleanupState(ctx context.Context, tenant types.TenantID) error {
	resources, keys, err := b.src.Resources(ctx, tenant)
	if err != nil {
		return fmt.Errorf("universe: cleanup_state: %w", err)
	}
	for path := range resources {
		key := keys[path]
		dis, err := types.Dissect(key)
		if err != nil {
			continue
		}
		shellType := dis.Type
		var attrs map[string]any
		if dis.IsFault {
			shellType = types.FaultTypeSentinel
			attrs = map[string]any{types.AttrFaultCode: dis.FaultCode}
		}
		if err := b.src.Remove(ctx, tenant, types.Resource{Type: shellType, Identity: dis.IDs, Attributes: attrs}); err != nil {
			logging.Warnf("universe: cleanup_state: failed removing %s: %v", path, err)
		}
	}
	return nil
}

// Reset brings the served tenants back to a clean baseline by re-observing
// from scratch.
func (b *Base) Reset(ctx context.Context, tenants []types.TenantID) error {
	b.Serve(tenants)
	return b.Observe(ctx)
}

func (b *Base) CreationSucceeded(id types.ObjectID) {
	b.ledger.OnSuccess(id)
}

// CreationFailed and DeletionFailed expose the Failure Ledger directly for
// callers outside the push path (§4.3); PushResources itself already drives
// the ledger for every item it pushes, so these exist for a caller that
// observed an outcome some other way (for example, the controller-side
// universe this core's push path doesn't implement). Both still act on a
// system-critical outcome the same way PushResources does, since the ledger's
// abort contract (§6, §7) doesn't depend on which path observed the failure.
func (b *Base) CreationFailed(id types.ObjectID, kind types.ErrorKind, err error) ledger.Outcome {
	outcome := b.ledger.OnFailure(id, kind)
	if outcome == ledger.OutcomeAbort {
		b.abortOn("", id, err)
	}
	return outcome
}

func (b *Base) DeletionFailed(id types.ObjectID, kind types.ErrorKind, err error) ledger.Outcome {
	outcome := b.ledger.OnFailure(id, kind)
	if outcome == ledger.OutcomeAbort {
		b.abortOn("", id, err)
	}
	return outcome
}

// DesiredUniverse reads full tenant state from the intent store.
type DesiredUniverse struct {
	*Base
}

// NewDesiredUniverse constructs a DesiredUniverse over src.
func NewDesiredUniverse(src Source, l *ledger.Ledger) *DesiredUniverse {
	return &DesiredUniverse{Base: NewBase(src, l, false)}
}

// DesiredOperationalUniverse restricts hydration to operational sub-state
// (faults): GetResourcesForDelete returns only the identity needed to clear
// a fault, not the full resource payload.
type DesiredOperationalUniverse struct {
	*Base
}

// NewDesiredOperationalUniverse constructs the operational variant over src.
func NewDesiredOperationalUniverse(src Source, l *ledger.Ledger) *DesiredOperationalUniverse {
	return &DesiredOperationalUniverse{Base: NewBase(src, l, true)}
}

// GetResourcesForDelete overrides Base's to return identity-only shells,
// since deleting a fault only requires knowing which one to clear, not its
// full attribute set.
func (d *DesiredOperationalUniverse) GetResourcesForDelete(ctx context.Context, tenant types.TenantID, keys []types.ResourceKey) ([]types.Resource, error) {
	seen := make(map[types.ObjectID]bool)
	var out []types.Resource
	for _, key := range keys {
		dis, err := types.Dissect(key)
		if err != nil {
			logging.Warnf("universe: skipping malformed key %s: %v", key, err)
			continue
		}
		r := types.Resource{Type: dis.Type, Identity: dis.IDs}
		id := r.ObjectID()
		if dis.IsFault {
			id = id.DedupKey(dis.FaultCode)
			r.Type = types.FaultTypeSentinel
			r.Attributes = map[string]any{
				types.AttrFaultCode: dis.FaultCode,
			}
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out, nil
}
