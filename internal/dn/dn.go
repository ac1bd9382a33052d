// Package dn implements the foreign distinguished-name decomposer the spec
// treats as a consumed external interface (§6): decomposing a DN into typed
// segments and reconstructing a DN from segments. The Resource Dispatcher
// uses it to recover a fault's parent object (§4.5, §9 "Fault-parent
// recovery").
//
// ACI-style DNs are slash-separated, each segment prefixed by a short tag
// identifying its type, e.g. "uni/tn-t1/BD-bd1/fault-F0123". This package
// assumes that shape; a different fabric controller would supply its own
// decomposer meeting the same contract.
package dn

import (
	"fmt"
	"strings"
)

// Segment is one typed component of a distinguished name.
type Segment struct {
	Type string
	Name string
}

var segmentPrefixes = map[string]string{
	"Tenant":       "tn-",
	"BridgeDomain": "BD-",
	"Subnet":       "subnet-",
	"EPG":          "epg-",
}

var prefixToType = func() map[string]string {
	m := make(map[string]string, len(segmentPrefixes))
	for typ, prefix := range segmentPrefixes {
		m[prefix] = typ
	}
	return m
}()

// ErrMalformedDN is returned when a DN cannot be decomposed into segments.
type ErrMalformedDN struct {
	DN  string
	Why string
}

func (e *ErrMalformedDN) Error() string {
	return fmt.Sprintf("dn: malformed dn %q: %s", e.DN, e.Why)
}

// DecomposeWithType splits a DN into its typed segments, treating the final
// segment as leafType regardless of its literal prefix — this is how a fault
// DN's trailing "fault-<code>" component is recovered even though "fault" is
// not one of the ordinary segmentPrefixes.
func DecomposeWithType(distinguishedName, leafType string) ([]Segment, error) {
	trimmed := strings.TrimPrefix(distinguishedName, "uni/")
	if trimmed == "" {
		return nil, &ErrMalformedDN{DN: distinguishedName, Why: "empty after stripping uni/ root"}
	}
	parts := strings.Split(trimmed, "/")

	segments := make([]Segment, 0, len(parts))
	for i, part := range parts {
		if i == len(parts)-1 {
			_, name, ok := splitPrefixed(part)
			if !ok {
				return nil, &ErrMalformedDN{DN: distinguishedName, Why: fmt.Sprintf("leaf segment %q has no recognizable prefix", part)}
			}
			segments = append(segments, Segment{Type: leafType, Name: name})
			continue
		}
		prefix, name, ok := splitPrefixed(part)
		if !ok {
			return nil, &ErrMalformedDN{DN: distinguishedName, Why: fmt.Sprintf("segment %q has no recognizable prefix", part)}
		}
		typ, known := prefixToType[prefix]
		if !known {
			return nil, &ErrMalformedDN{DN: distinguishedName, Why: fmt.Sprintf("segment %q has unknown prefix %q", part, prefix)}
		}
		segments = append(segments, Segment{Type: typ, Name: name})
	}
	return segments, nil
}

func splitPrefixed(part string) (prefix, name string, ok bool) {
	idx := strings.Index(part, "-")
	if idx < 0 {
		return "", "", false
	}
	return part[:idx+1], part[idx+1:], true
}

// DN reconstructs a distinguished name from parallel segment-type and
// segment-name slices, the inverse of DecomposeWithType for the non-leaf
// portion. Types without a known prefix are rendered as "<type>-<name>"
// with the type lowercased, so a "faultInst" segment becomes
// "faultinst-<name>", not "fault-<name>".
func DN(segmentTypes, segmentNames []string) (string, error) {
	if len(segmentTypes) != len(segmentNames) {
		return "", fmt.Errorf("dn: %d types but %d names", len(segmentTypes), len(segmentNames))
	}
	parts := make([]string, 0, len(segmentTypes)+1)
	parts = append(parts, "uni")
	for i, typ := range segmentTypes {
		prefix, ok := segmentPrefixes[typ]
		if !ok {
			prefix = strings.ToLower(typ) + "-"
		}
		parts = append(parts, prefix+segmentNames[i])
	}
	return strings.Join(parts, "/"), nil
}

// StripLeaf removes the final segment from a decomposed DN's pieces,
// returning the parent's segment types and names — the operation the
// dispatcher performs to go from a fault DN to its parent DN.
func StripLeaf(segments []Segment) (types, names []string) {
	if len(segments) == 0 {
		return nil, nil
	}
	parent := segments[:len(segments)-1]
	types = make([]string, len(parent))
	names = make([]string, len(parent))
	for i, s := range parent {
		types[i] = s.Type
		names[i] = s.Name
	}
	return types, names
}
