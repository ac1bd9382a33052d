// Package ledger implements the Failure Ledger (§4.2): a per-object record
// of consecutive failures that gates accounting behind a fixed retry_cooldown
// window and escalates to a terminal outcome once an object's error kind or
// attempt count says so.
//
// §4.2 and invariant I3 specify a fixed cooldown window, not a growing
// backoff schedule: a failure only increments the count if the previous
// counted failure was at least retry_cooldown ago; failures observed inside
// the window are logged but left out of the count entirely. Connection-level
// retry/backoff (internal/store's cenkalti/backoff use against the SQL
// driver) is a different concern from this object-level accounting and is
// not reused here — see DESIGN.md.
package ledger

import (
	"sync"
	"time"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

// Outcome is the result of recording a failure against an object.
type Outcome int

const (
	// OutcomeRetry means the object remains eligible for another attempt;
	// it may or may not have counted against the retry budget (§4.2, I3).
	OutcomeRetry Outcome = iota
	// OutcomeSyncError means the object has exhausted its retries (or hit
	// an operation-critical error) and must be marked sync_error.
	OutcomeSyncError
	// OutcomeAbort means a system-critical error occurred and the agent
	// process must stop processing entirely.
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSyncError:
		return "sync_error"
	case OutcomeAbort:
		return "abort"
	default:
		return "retry"
	}
}

// record is the ledger's bookkeeping for a single object (§3's
// FailureRecord: `(object_id) → (count, last_ts)`).
type record struct {
	count  int
	lastTS time.Time
}

// Ledger tracks consecutive failures per ObjectID and decides, on each
// failure, whether the object should be retried, surrendered as sync_error,
// or should abort the whole agent.
type Ledger struct {
	mu            sync.Mutex
	records       map[types.ObjectID]*record
	maxRetry      int
	retryCooldown time.Duration
	clock         func() time.Time
}

// Option customizes a Ledger at construction time.
type Option func(*Ledger)

// WithClock overrides the ledger's notion of "now", for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// New builds a Ledger that allows up to maxRetry counted failures for
// transient/unknown errors, spaced at least cooldown apart, before
// escalating to sync_error (§4.2, I4).
func New(maxRetry int, cooldown time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		records:       make(map[types.ObjectID]*record),
		maxRetry:      maxRetry,
		retryCooldown: cooldown,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ObjectIDOf extends id with a fault code the same way Resource.ObjectID's
// DedupKey does, so a ledger keyed purely on ObjectID still distinguishes
// faults on the same parent.
func ObjectIDOf(r types.Resource, faultCode string) types.ObjectID {
	return r.ObjectID().DedupKey(faultCode)
}

// OnSuccess clears any failure history for id. Called after a push-path
// operation succeeds.
func (l *Ledger) OnSuccess(id types.ObjectID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
}

// OnFailure records a failure of the given kind against id and returns the
// resulting Outcome (§4.2):
//
//   - system-critical always aborts, regardless of attempt count or cooldown.
//   - operation-critical always surrenders immediately ("surrender").
//   - transient/unknown ("retry until max") only counts if the object's last
//     counted failure was at least retry_cooldown ago (I3); a failure
//     observed inside the window is a no-op for accounting, still returning
//     OutcomeRetry. Once the count reaches maxRetry, the object escalates to
//     sync_error and its record is cleared (I4).
func (l *Ledger) OnFailure(id types.ObjectID, kind types.ErrorKind) Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch kind {
	case types.ErrorSystemCritical:
		return OutcomeAbort
	case types.ErrorOperationCritical:
		delete(l.records, id)
		return OutcomeSyncError
	case types.ErrorTransient, types.ErrorUnknown:
		now := l.clock()
		rec, ok := l.records[id]
		if !ok {
			rec = &record{}
			l.records[id] = rec
		}
		if rec.lastTS.IsZero() || now.Sub(rec.lastTS) >= l.retryCooldown {
			rec.count++
			rec.lastTS = now
		}
		if rec.count >= l.maxRetry {
			delete(l.records, id)
			return OutcomeSyncError
		}
		return OutcomeRetry
	default:
		// Unknown error kinds are a no-op per §4.2.
		return OutcomeRetry
	}
}

// Attempts returns how many counted failures are on record for id.
func (l *Ledger) Attempts(id types.ObjectID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[id]; ok {
		return rec.count
	}
	return 0
}

// Ready reports whether id's cooldown has elapsed since its last counted
// failure. An object with no recorded failures is always ready.
func (l *Ledger) Ready(id types.ObjectID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return true
	}
	return l.clock().Sub(rec.lastTS) >= l.retryCooldown
}
