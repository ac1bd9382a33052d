package types

import (
	"reflect"
	"testing"
)

func TestDissectPlainKey(t *testing.T) {
	key := ResourceKey{"Tenant|t1", "BridgeDomain|bd1"}

	got, err := Dissect(key)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if got.Type != "BridgeDomain" {
		t.Fatalf("Type = %q, want BridgeDomain", got.Type)
	}
	if !reflect.DeepEqual(got.IDs, []string{"t1", "bd1"}) {
		t.Fatalf("IDs = %v", got.IDs)
	}
	if got.IsFault {
		t.Fatal("IsFault = true for a plain key")
	}
}

func TestDissectFaultKey(t *testing.T) {
	key := ResourceKey{"Tenant|t1", "BridgeDomain|bd1", "faultInst|F0123"}

	got, err := Dissect(key)
	if err != nil {
		t.Fatalf("Dissect: %v", err)
	}
	if got.Type != "BridgeDomain" {
		t.Fatalf("Type = %q, want BridgeDomain (the fault's parent)", got.Type)
	}
	if !reflect.DeepEqual(got.IDs, []string{"t1", "bd1"}) {
		t.Fatalf("IDs = %v, want parent ids only", got.IDs)
	}
	if !got.IsFault || got.FaultCode != "F0123" {
		t.Fatalf("IsFault/FaultCode = %v/%q", got.IsFault, got.FaultCode)
	}
}

func TestParentDropsLeaf(t *testing.T) {
	key := ResourceKey{"Tenant|t1", "BridgeDomain|bd1", "faultInst|F0123"}
	parent := key.Parent()
	want := ResourceKey{"Tenant|t1", "BridgeDomain|bd1"}
	if !reflect.DeepEqual(parent, want) {
		t.Fatalf("Parent = %v, want %v", parent, want)
	}
}

func TestDissectEmptyKey(t *testing.T) {
	if _, err := Dissect(nil); err != ErrEmptyKey {
		t.Fatalf("err = %v, want ErrEmptyKey", err)
	}
}

func TestObjectIDDedupKey(t *testing.T) {
	r := Resource{Type: "BridgeDomain", Identity: []string{"t1", "bd1"}}
	plain := r.ObjectID()
	withFault := plain.DedupKey("F0123")
	if plain == withFault {
		t.Fatal("DedupKey did not distinguish the fault")
	}
	again := plain.DedupKey("F0123")
	if withFault != again {
		t.Fatal("DedupKey is not stable for the same fault code")
	}
}
