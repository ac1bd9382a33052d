// Package types holds the data model shared across the reconciliation core:
// tenants, resources, faults, and the closed error-kind taxonomy the Failure
// Ledger dispatches on.
package types

import "strings"

// TenantID is an opaque identifier for a tenant. Tenants are the unit of
// partitioning: reconciliation runs independently per tenant.
type TenantID string

// FaultTypeSentinel is the discriminating Type value that marks a Resource
// as a Fault rather than a normal domain object. Dissecting a ResourceKey
// whose leaf carries this type yields the fault's parent key instead.
const FaultTypeSentinel = "faultInst"

// Resource is a domain object: a discriminating type tag, an ordered set of
// identity attributes, and a bag of other attributes. BridgeDomain, Subnet,
// and EPG are all represented this way; Fault specializes it.
type Resource struct {
	Type       string
	Identity   []string
	Attributes map[string]any
}

// ObjectID returns the identity the Failure Ledger uses to track an object:
// (type-name, identity-attributes…), stable across otherwise-equal resources
// even when their other attributes differ.
func (r Resource) ObjectID() ObjectID {
	return ObjectID{Type: r.Type, Identity: strings.Join(r.Identity, "|")}
}

// Fault is a diagnostic record attached to a parent Resource, distinguished
// by FaultCode. ExternalIdentifier is the distinguished name (DN) of the
// fault in the foreign (controller) model; ParentDN is recovered from it by
// the Resource Dispatcher.
type Fault struct {
	Resource
	ExternalIdentifier string
	FaultCode          string
	ParentDN           string
}

// IsFault reports whether r represents a fault rather than a plain resource.
func (r Resource) IsFault() bool {
	return r.Type == FaultTypeSentinel
}

// Fault-specific data travels inside a plain Resource's Attributes, since a
// hydrated ResourceKey only ever produces a types.Resource; these keys are
// the contract between convert and the dispatcher for reading it back out.
const (
	AttrFaultCode          = "fault_code"
	AttrExternalIdentifier = "external_identifier"
	AttrParentDN           = "parent_dn"
)

// AsFault extracts the Fault view of r if r.IsFault() and its required
// attributes are present.
func (r Resource) AsFault() (Fault, bool) {
	if !r.IsFault() {
		return Fault{}, false
	}
	extID, _ := r.Attributes[AttrExternalIdentifier].(string)
	code, _ := r.Attributes[AttrFaultCode].(string)
	if extID == "" || code == "" {
		return Fault{}, false
	}
	parentDN, _ := r.Attributes[AttrParentDN].(string)
	return Fault{Resource: r, ExternalIdentifier: extID, FaultCode: code, ParentDN: parentDN}, true
}

// ObjectID is the Failure Ledger's notion of "the same object" across
// attempts: a type name plus its joined identity attributes. For faults, the
// identity is extended with the fault code so distinct faults on the same
// parent don't collide (see DedupKey).
type ObjectID struct {
	Type     string
	Identity string
}

// DedupKey extends an ObjectID's identity with a fault code, matching the
// per-call dedup rule in get_resources (§4.5): two keys that resolve to the
// same parent but different fault codes must remain distinct.
func (o ObjectID) DedupKey(faultCode string) ObjectID {
	if faultCode == "" {
		return o
	}
	return ObjectID{Type: o.Type, Identity: o.Identity + "|fault|" + faultCode}
}

// ErrorKind is the closed taxonomy the Failure Ledger dispatches on. It is a
// tagged variant by design (§9 Design Notes): no open registry, no string
// comparisons scattered through the codebase.
type ErrorKind int

const (
	// ErrorUnknown is handled identically to ErrorTransient: retry until
	// max_operation_retry, subject to retry_cooldown.
	ErrorUnknown ErrorKind = iota
	// ErrorTransient marks a failure expected to resolve on its own.
	ErrorTransient
	// ErrorOperationCritical surrenders the object immediately (no retry).
	ErrorOperationCritical
	// ErrorSystemCritical aborts the agent process.
	ErrorSystemCritical
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTransient:
		return "transient"
	case ErrorOperationCritical:
		return "operation-critical"
	case ErrorSystemCritical:
		return "system-critical"
	case ErrorUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// SyncState is the per-object marker the intent store records.
type SyncState int

const (
	SyncUnknown SyncState = iota
	SyncSynced
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncSynced:
		return "sync_synced"
	case SyncError:
		return "sync_error"
	default:
		return "sync_unknown"
	}
}
