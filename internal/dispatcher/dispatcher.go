// Package dispatcher implements the Resource Dispatcher push path (§4.5):
// the outbound half of a universe that converts foreign-model items into
// native Resources, separates faults from ordinary resources, and applies
// each one through a Manager — catching and reporting per-item failures so
// one bad item never poisons the batch, the same discipline the teacher's
// internal/importer.ImportIssues applies per-issue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaurav-dalvi/aci-integration-module/internal/convert"
	"github.com/gaurav-dalvi/aci-integration-module/internal/dn"
	"github.com/gaurav-dalvi/aci-integration-module/internal/logging"
	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

// Manager is the underlying state sink a universe pushes through: the
// target universe's native CRUD plus fault attach/detach.
type Manager interface {
	Upsert(ctx context.Context, tenant types.TenantID, r types.Resource) error
	Remove(ctx context.Context, tenant types.TenantID, r types.Resource) error
	SetFault(ctx context.Context, tenant types.TenantID, parent types.Resource, fault types.Fault) error
	ClearFault(ctx context.Context, tenant types.TenantID, parent types.Resource, fault types.Fault) error
}

// Batch is the two-bucket payload the Reconciler hands to push_resources.
// Create items are in the peer universe's foreign format; Delete items are
// already native Resources.
type Batch struct {
	Create []convert.Item
	Delete []types.Resource
}

// ItemFailure records one item that failed during a push, alongside the
// method ("create" or "delete") it failed under, the classified ErrorKind,
// and — when a native Resource was successfully identified before the
// failure — the ObjectID the Failure Ledger tracks it by. ObjectID is the
// zero value for a conversion failure, since no Resource identity exists
// yet to track (§7: a per-item batch error with no object to charge it to).
type ItemFailure struct {
	Method   string
	Item     any
	Err      error
	Kind     types.ErrorKind
	ObjectID types.ObjectID
}

// Classify maps a push-path error to the closed ErrorKind taxonomy §4.2
// dispatches on. A malformed item (ErrInvalidItem) can never succeed on
// retry, so it surrenders immediately; a canceled/expired context is the
// per-operation deadline described in §5, always worth retrying; anything
// else from the underlying Manager is treated as unknown rather than
// assumed transient, since this core has no visibility into why a fabric
// controller or SQL driver call failed.
func Classify(err error) types.ErrorKind {
	switch {
	case err == nil:
		return types.ErrorUnknown
	case errors.Is(err, convert.ErrInvalidItem):
		return types.ErrorOperationCritical
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.ErrorTransient
	default:
		return types.ErrorUnknown
	}
}

// ObjectIDs returns the Failure Ledger identity of every item a Push call
// against batch will attempt, regardless of outcome — callers use this to
// credit ledger.OnSuccess to whichever of those IDs do not show up among
// Push's returned failures.
func ObjectIDs(batch Batch) []types.ObjectID {
	var out []types.ObjectID
	for _, result := range convert.Convert(batch.Create) {
		if result.Err != nil {
			continue
		}
		for _, r := range result.Resources {
			out = append(out, objectIDFor(r))
		}
	}
	for _, r := range batch.Delete {
		out = append(out, objectIDFor(r))
	}
	return out
}

func objectIDFor(r types.Resource) types.ObjectID {
	if fault, ok := r.AsFault(); ok {
		return fault.Resource.ObjectID().DedupKey(fault.FaultCode)
	}
	return r.ObjectID()
}

// Push applies batch against manager for tenant, converting create items
// through convert.Convert and recovering fault parents via dn. It returns
// every per-item failure rather than stopping at the first.
func Push(ctx context.Context, tenant types.TenantID, batch Batch, mgr Manager) []ItemFailure {
	var failures []ItemFailure

	results := convert.Convert(batch.Create)
	for i, result := range results {
		if result.Err != nil {
			failures = append(failures, ItemFailure{Method: "create", Item: batch.Create[i], Err: result.Err, Kind: Classify(result.Err)})
			continue
		}
		for _, r := range result.Resources {
			if err := applyOne(ctx, tenant, "create", r, mgr); err != nil {
				logging.Warnf("dispatcher: create failed for tenant=%s type=%s: %v", tenant, r.Type, err)
				failures = append(failures, ItemFailure{Method: "create", Item: r, Err: err, Kind: Classify(err), ObjectID: objectIDFor(r)})
			}
		}
	}

	for _, r := range batch.Delete {
		if err := applyOne(ctx, tenant, "delete", r, mgr); err != nil {
			logging.Warnf("dispatcher: delete failed for tenant=%s type=%s: %v", tenant, r.Type, err)
			failures = append(failures, ItemFailure{Method: "delete", Item: r, Err: err, Kind: Classify(err), ObjectID: objectIDFor(r)})
		}
	}

	return failures
}

func applyOne(ctx context.Context, tenant types.TenantID, method string, r types.Resource, mgr Manager) (err error) {
	defer func() {
		// A single item's converter/manager call panicking must not take
		// down the rest of the batch; translate it into a returned error
		// instead (§9 Open Question (b): log a canonical string, not a
		// language-specific exception attribute).
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispatcher: panic processing item: %v", rec)
		}
	}()

	if !r.IsFault() {
		if method == "create" {
			return mgr.Upsert(ctx, tenant, r)
		}
		return mgr.Remove(ctx, tenant, r)
	}

	fault, ok := r.AsFault()
	if !ok {
		return fmt.Errorf("dispatcher: malformed fault resource")
	}

	parent, err := recoverFaultParent(fault)
	if err != nil {
		return err
	}

	if method == "create" {
		return mgr.SetFault(ctx, tenant, parent, fault)
	}
	return mgr.ClearFault(ctx, tenant, parent, fault)
}

// recoverFaultParent implements §9's "Fault-parent recovery": strip the
// fault segment from the external identifier, rebuild the parent DN, and
// run it back through convert to get a native parent Resource.
func recoverFaultParent(fault types.Fault) (types.Resource, error) {
	segments, err := dn.DecomposeWithType(fault.ExternalIdentifier, types.FaultTypeSentinel)
	if err != nil {
		return types.Resource{}, fmt.Errorf("dispatcher: decompose fault dn: %w", err)
	}
	parentTypes, parentNames := dn.StripLeaf(segments)
	if len(parentTypes) == 0 {
		return types.Resource{}, fmt.Errorf("dispatcher: fault dn %q has no parent segment", fault.ExternalIdentifier)
	}

	parentType := parentTypes[len(parentTypes)-1]
	item := convert.Item{
		Type:       parentType,
		Attributes: parentAttrs(parentTypes, parentNames),
	}
	results := convert.Convert([]convert.Item{item})
	if results[0].Err != nil {
		return types.Resource{}, fmt.Errorf("dispatcher: convert fault parent: %w", results[0].Err)
	}
	if len(results[0].Resources) == 0 {
		return types.Resource{}, fmt.Errorf("dispatcher: convert fault parent produced no resource")
	}
	return results[0].Resources[0], nil
}

// parentAttrs builds the attribute bag convert.Convert expects for each
// known resource type's identity layout, keyed positionally by segment
// type: "tenant" always comes from the Tenant segment, and the leaf
// segment's name supplies the type-specific identity key ("name" for
// BridgeDomain/EPG). A BridgeDomain segment sets both "name" (its own
// identity key, when BridgeDomain is itself the recovered parent type) and
// "bridge_domain" (the key a descendant Subnet's identity layout expects),
// since the same segment plays both roles depending on how deep the
// original DN went.
func parentAttrs(segTypes, segNames []string) map[string]any {
	attrs := make(map[string]any, len(segTypes))
	for i, t := range segTypes {
		switch t {
		case "Tenant":
			attrs["tenant"] = segNames[i]
		case "BridgeDomain":
			attrs["name"] = segNames[i]
			attrs["bridge_domain"] = segNames[i]
		case "EPG":
			attrs["name"] = segNames[i]
		case "Subnet":
			attrs["cidr"] = segNames[i]
		}
	}
	return attrs
}
