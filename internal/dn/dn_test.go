package dn

import (
	"reflect"
	"testing"
)

func TestDecomposeWithTypeFault(t *testing.T) {
	segs, err := DecomposeWithType("uni/tn-t1/BD-bd1/fault-F0123", "faultInst")
	if err != nil {
		t.Fatalf("DecomposeWithType: %v", err)
	}
	want := []Segment{
		{Type: "Tenant", Name: "t1"},
		{Type: "BridgeDomain", Name: "bd1"},
		{Type: "faultInst", Name: "F0123"},
	}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("segments = %+v, want %+v", segs, want)
	}
}

func TestStripLeafThenRebuildDN(t *testing.T) {
	segs, err := DecomposeWithType("uni/tn-t1/BD-bd1/fault-F0123", "faultInst")
	if err != nil {
		t.Fatalf("DecomposeWithType: %v", err)
	}
	parentTypes, parentNames := StripLeaf(segs)
	got, err := DN(parentTypes, parentNames)
	if err != nil {
		t.Fatalf("DN: %v", err)
	}
	if got != "uni/tn-t1/BD-bd1" {
		t.Fatalf("rebuilt parent DN = %q", got)
	}
}

func TestDecomposeMalformedDN(t *testing.T) {
	if _, err := DecomposeWithType("uni/garbage", "faultInst"); err == nil {
		t.Fatal("expected an error for a segment with no recognizable prefix")
	}
}

func TestDNMismatchedLengths(t *testing.T) {
	if _, err := DN([]string{"Tenant"}, nil); err == nil {
		t.Fatal("expected an error for mismatched type/name lengths")
	}
}
