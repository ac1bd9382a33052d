package ledger

import (
	"testing"
	"time"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestOnFailureRetriesUntilMaxThenSyncError(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, time.Second, WithClock(fixedClock(&now)))
	id := types.ObjectID{Type: "BridgeDomain", Identity: "t1|bd1"}

	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeRetry {
		t.Fatalf("attempt 1 = %v, want retry", got)
	}
	now = now.Add(time.Second)
	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeSyncError {
		t.Fatalf("attempt 2 = %v, want sync_error", got)
	}
	if l.Attempts(id) != 0 {
		t.Fatal("attempts must reset after escalation")
	}
}

// TestOnFailureScenarioSix pins down spec.md §8 scenario 6: max_operation_
// retry=3, retry_cooldown=10s, four successive transient failures at
// t=0,11,22,33s escalate to sync_error on the third call (t=22); the fourth
// starts a fresh cycle rather than re-escalating, since the record was
// already cleared.
func TestOnFailureScenarioSix(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(3, 10*time.Second, WithClock(fixedClock(&now)))
	id := types.ObjectID{Type: "BridgeDomain", Identity: "t1|bd1"}

	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeRetry {
		t.Fatalf("t=0: got %v, want retry", got)
	}
	now = time.Unix(11, 0)
	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeRetry {
		t.Fatalf("t=11: got %v, want retry", got)
	}
	now = time.Unix(22, 0)
	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeSyncError {
		t.Fatalf("t=22: got %v, want sync_error", got)
	}
	now = time.Unix(33, 0)
	if got := l.OnFailure(id, types.ErrorTransient); got != OutcomeRetry {
		t.Fatalf("t=33: got %v, want retry (fresh cycle after escalation cleared the record)", got)
	}
	if l.Attempts(id) != 1 {
		t.Fatalf("attempts after t=33 = %d, want 1", l.Attempts(id))
	}
}

// TestOnFailureWithinCooldownIsNotCounted pins down I3: a failure observed
// before retry_cooldown has elapsed since the last counted one does not
// increment the attempt count.
func TestOnFailureWithinCooldownIsNotCounted(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(5, 10*time.Second, WithClock(fixedClock(&now)))
	id := types.ObjectID{Type: "Subnet", Identity: "t1|s1"}

	l.OnFailure(id, types.ErrorTransient)
	if l.Attempts(id) != 1 {
		t.Fatalf("attempts after first failure = %d, want 1", l.Attempts(id))
	}

	now = time.Unix(5, 0) // still inside the 10s cooldown
	l.OnFailure(id, types.ErrorTransient)
	if l.Attempts(id) != 1 {
		t.Fatalf("attempts after within-cooldown failure = %d, want still 1", l.Attempts(id))
	}

	now = time.Unix(10, 0) // cooldown has just elapsed
	l.OnFailure(id, types.ErrorTransient)
	if l.Attempts(id) != 2 {
		t.Fatalf("attempts after cooldown elapsed = %d, want 2", l.Attempts(id))
	}
}

func TestOperationCriticalSurrendersImmediately(t *testing.T) {
	l := New(5, time.Second)
	id := types.ObjectID{Type: "Subnet", Identity: "t1|s1"}
	if got := l.OnFailure(id, types.ErrorOperationCritical); got != OutcomeSyncError {
		t.Fatalf("got %v, want sync_error on first operation-critical failure", got)
	}
}

func TestSystemCriticalAborts(t *testing.T) {
	l := New(5, time.Second)
	id := types.ObjectID{Type: "EPG", Identity: "t1|e1"}
	if got := l.OnFailure(id, types.ErrorSystemCritical); got != OutcomeAbort {
		t.Fatalf("got %v, want abort", got)
	}
}

func TestOnSuccessClearsHistory(t *testing.T) {
	l := New(1, time.Second)
	id := types.ObjectID{Type: "BridgeDomain", Identity: "t1|bd1"}
	l.OnFailure(id, types.ErrorTransient)
	l.OnSuccess(id)
	if l.Attempts(id) != 0 {
		t.Fatal("OnSuccess must clear attempt history")
	}
	if !l.Ready(id) {
		t.Fatal("object with cleared history must be ready")
	}
}

func TestReadyRespectsCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(5, time.Hour, WithClock(fixedClock(&now)))
	id := types.ObjectID{Type: "BridgeDomain", Identity: "t1|bd1"}

	l.OnFailure(id, types.ErrorTransient)
	if l.Ready(id) {
		t.Fatal("object must not be ready immediately after a failure with nonzero cooldown")
	}

	now = now.Add(time.Hour)
	if !l.Ready(id) {
		t.Fatal("object must become ready once the cooldown elapses")
	}
}

func TestUnknownKindBehavesLikeTransient(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, time.Second, WithClock(fixedClock(&now)))
	id := types.ObjectID{Type: "BridgeDomain", Identity: "t1|bd1"}
	if got := l.OnFailure(id, types.ErrorUnknown); got != OutcomeRetry {
		t.Fatalf("first unknown-kind failure = %v, want retry", got)
	}
	now = now.Add(time.Second)
	if got := l.OnFailure(id, types.ErrorUnknown); got != OutcomeSyncError {
		t.Fatalf("second unknown-kind failure = %v, want sync_error", got)
	}
}

func TestObjectIDOfExtendsWithFaultCode(t *testing.T) {
	r := types.Resource{Type: "BridgeDomain", Identity: []string{"t1", "bd1"}}
	a := ObjectIDOf(r, "F0001")
	b := ObjectIDOf(r, "F0002")
	if a == b {
		t.Fatal("distinct fault codes on the same parent must produce distinct ObjectIDs")
	}
	if a == r.ObjectID() {
		t.Fatal("a fault's ObjectID must differ from its parent's")
	}
}
