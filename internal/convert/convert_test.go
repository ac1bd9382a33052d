package convert

import (
	"strings"
	"testing"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

func TestConvertBridgeDomain(t *testing.T) {
	results := Convert([]Item{{
		Type: "BridgeDomain",
		Attributes: map[string]any{
			"tenant": "t1",
			"name":   "bd1",
			"mtu":    1500,
		},
	}})
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	r := results[0].Resources[0]
	if r.Type != "BridgeDomain" {
		t.Fatalf("Type = %q", r.Type)
	}
	if len(r.Identity) != 2 || r.Identity[0] != "t1" || r.Identity[1] != "bd1" {
		t.Fatalf("Identity = %v", r.Identity)
	}
}

func TestConvertMissingIdentityAttributeErrors(t *testing.T) {
	results := Convert([]Item{{Type: "BridgeDomain", Attributes: map[string]any{"tenant": "t1"}}})
	if results[0].Err == nil {
		t.Fatal("expected an error for a missing identity attribute")
	}
}

func TestConvertUnknownTypePassesThroughAsShell(t *testing.T) {
	results := Convert([]Item{{Type: "SomeFutureMO", Attributes: map[string]any{"x": 1}}})
	if results[0].Err != nil {
		t.Fatalf("unknown type should not error: %v", results[0].Err)
	}
	if results[0].Resources[0].Type != "SomeFutureMO" {
		t.Fatalf("Type = %q", results[0].Resources[0].Type)
	}
}

func TestConvertFault(t *testing.T) {
	results := Convert([]Item{{
		Type: types.FaultTypeSentinel,
		Attributes: map[string]any{
			types.AttrFaultCode:          "F0123",
			types.AttrExternalIdentifier: "uni/tn-t1/BD-bd1/fault-F0123",
		},
	}})
	if results[0].Err != nil {
		t.Fatalf("convert fault: %v", results[0].Err)
	}
	fault, ok := results[0].Resources[0].AsFault()
	if !ok {
		t.Fatal("expected AsFault to succeed")
	}
	if fault.FaultCode != "F0123" {
		t.Fatalf("FaultCode = %q", fault.FaultCode)
	}
}

func TestConvertFaultMissingAttributesErrors(t *testing.T) {
	results := Convert([]Item{{Type: types.FaultTypeSentinel, Attributes: map[string]any{}}})
	if results[0].Err == nil {
		t.Fatal("expected an error when fault attributes are missing")
	}
}

func TestConvertTruncatesOverlongDisplayName(t *testing.T) {
	overlong := strings.Repeat("some", 15) // 60 chars
	want := strings.Repeat("some", 14) + "som" // 59 chars

	results := Convert([]Item{{
		Type: "BridgeDomain",
		Attributes: map[string]any{
			"tenant":       "t1",
			"name":         "bd1",
			"display_name": overlong,
		},
	}})
	if results[0].Err != nil {
		t.Fatalf("convert: %v", results[0].Err)
	}
	got, _ := results[0].Resources[0].Attributes["display_name"].(string)
	if got != want {
		t.Fatalf("display_name = %q (len %d), want %q (len %d)", got, len(got), want, len(want))
	}
}

func TestConvertLeavesShortDisplayNameUntouched(t *testing.T) {
	results := Convert([]Item{{
		Type: "BridgeDomain",
		Attributes: map[string]any{
			"tenant":       "t1",
			"name":         "bd1",
			"display_name": "short name",
		},
	}})
	if results[0].Err != nil {
		t.Fatalf("convert: %v", results[0].Err)
	}
	if got := results[0].Resources[0].Attributes["display_name"]; got != "short name" {
		t.Fatalf("display_name = %v, want unchanged", got)
	}
}

func TestConvertBatchIsolatesFailures(t *testing.T) {
	results := Convert([]Item{
		{Type: "BridgeDomain", Attributes: map[string]any{"tenant": "t1", "name": "bd1"}},
		{Type: "BridgeDomain", Attributes: map[string]any{"tenant": "t1"}},
		{Type: "BridgeDomain", Attributes: map[string]any{"tenant": "t1", "name": "bd2"}},
	})
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatal("good items must still convert despite a bad item in the same batch")
	}
	if results[1].Err == nil {
		t.Fatal("the malformed item must still report its own error")
	}
}
