package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("driver: bad connection"), true},
		{errors.New("connection refused"), true},
		{errors.New("mysql: gone away"), true},
		{errors.New("syntax error near SELECT"), false},
		{errors.New("duplicate entry for key 'PRIMARY'"), false},
	}
	for _, c := range cases {
		if got := isRetryableError(c.err); got != c.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestParseSyncState(t *testing.T) {
	if parseSyncState("sync_synced") != types.SyncSynced {
		t.Fatal("expected sync_synced to round-trip")
	}
	if parseSyncState("sync_error") != types.SyncError {
		t.Fatal("expected sync_error to round-trip")
	}
	if parseSyncState("garbage") != types.SyncUnknown {
		t.Fatal("unrecognized state should map to SyncUnknown")
	}
}

func TestResourceKeyForMatchesSourceConventions(t *testing.T) {
	r := types.Resource{Type: "BridgeDomain", Identity: []string{"t1", "bd1"}}
	key := resourceKeyFor("t1", r)
	if got, want := key.String(), "Tenant|t1/BridgeDomain|t1|bd1"; got != want {
		t.Fatalf("resourceKeyFor = %q, want %q", got, want)
	}
	if got := splitKeyPath(key.String()).String(); got != key.String() {
		t.Fatalf("splitKeyPath did not round-trip: %q != %q", got, key.String())
	}
}

func TestFaultKeyForCarriesFaultCodeAsLeaf(t *testing.T) {
	parent := types.Resource{Type: "BridgeDomain", Identity: []string{"t1", "bd1"}}
	fault := types.Fault{FaultCode: "F0123"}
	key := faultKeyFor("t1", parent, fault)
	if got, want := key.Leaf(), "faultInst|F0123"; got != want {
		t.Fatalf("faultKeyFor leaf = %q, want %q", got, want)
	}
}

func TestFaultsOnlyFiltersNonFaultResources(t *testing.T) {
	resources := map[string]types.Resource{
		"a": {Type: "BridgeDomain"},
		"b": {Type: types.FaultTypeSentinel},
	}
	keys := map[string]types.ResourceKey{
		"a": {"Tenant|t1", "BridgeDomain|bd1"},
		"b": {"Tenant|t1", "BridgeDomain|bd1", "faultInst|F1"},
	}
	fr, fk := faultsOnly(resources, keys)
	if len(fr) != 1 || len(fk) != 1 {
		t.Fatalf("faultsOnly = %+v/%+v, want exactly the fault entry", fr, fk)
	}
	if _, ok := fr["b"]; !ok {
		t.Fatal("expected fault entry to survive the filter")
	}
}

func TestSchemaStatementsAreWellFormed(t *testing.T) {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.HasPrefix(stmt, "CREATE TABLE") {
			t.Fatalf("unexpected schema statement: %q", stmt)
		}
	}
}
