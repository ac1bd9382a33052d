package hashtree

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/gaurav-dalvi/aci-integration-module/internal/types"
)

// base36Alphabet mirrors the encoding the teacher repo uses for its own
// content-derived identifiers: denser than hex, URL- and log-line-safe.
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}
	str := string(chars)
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

func contentHash(path string, attrs map[string]any) string {
	var b strings.Builder
	b.WriteString(path)
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, attrs[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return encodeBase36(sum[:], 16)
}

// leaf is one entry in a MerkleTree: a path (the joined ResourceKey) mapped
// to the resource it names and the content hash that summarizes it.
type leaf struct {
	key  types.ResourceKey
	hash string
}

// MerkleTree is the reference Tree implementation. It is not the hash-tree
// library the spec treats as external (§4.1); it exists so the Reconciler
// and its tests have a real, deterministic Tree to exercise.
type MerkleTree struct {
	leaves map[string]leaf
	dummy  bool
}

// New builds a MerkleTree from a set of resources, keyed by their full
// ResourceKey path. Two resources at the same key are the last-write-wins.
func New(resources map[string]types.Resource, keys map[string]types.ResourceKey) *MerkleTree {
	t := &MerkleTree{leaves: make(map[string]leaf, len(resources))}
	for path, r := range resources {
		key := keys[path]
		if key == nil {
			key = types.ResourceKey{path}
		}
		t.leaves[key.String()] = leaf{key: key, hash: contentHash(key.String(), r.Attributes)}
	}
	return t
}

// NewDummy returns a pruned/placeholder tree: Empty() and Dummy() both
// report true, but the two remain logically distinct markers as required by
// §9 (the dissent rule depends on it).
func NewDummy() *MerkleTree {
	return &MerkleTree{dummy: true}
}

// NewEmpty returns a tree that has genuinely been observed to have no
// resources, as opposed to a dummy placeholder that was never examined.
func NewEmpty() *MerkleTree {
	return &MerkleTree{leaves: make(map[string]leaf)}
}

// Put inserts or replaces the resource at key and returns the tree for
// chaining. It exists for tests that build trees incrementally.
func (t *MerkleTree) Put(key types.ResourceKey, r types.Resource) *MerkleTree {
	if t.leaves == nil {
		t.leaves = make(map[string]leaf)
	}
	t.leaves[key.String()] = leaf{key: key.Clone(), hash: contentHash(key.String(), r.Attributes)}
	t.dummy = false
	return t
}

func (t *MerkleTree) RootFullHash() string {
	if t == nil || len(t.leaves) == 0 {
		if t != nil && t.dummy {
			return "dummy"
		}
		return "empty"
	}
	paths := make([]string, 0, len(t.leaves))
	for p := range t.leaves {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "%s=%s;", p, t.leaves[p].hash)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return encodeBase36(sum[:], 24)
}

func (t *MerkleTree) Empty() bool {
	return t == nil || len(t.leaves) == 0
}

func (t *MerkleTree) Dummy() bool {
	return t != nil && t.dummy
}

// Diff implements Tree.Diff. Add holds paths the receiver has that other
// lacks, or whose content hash disagrees with other's; Remove holds paths
// other has that the receiver lacks entirely. See DESIGN.md "Tree.Diff
// asymmetry" for why a content-only change surfaces solely as Add.
func (t *MerkleTree) Diff(other Tree) Diff {
	o, ok := other.(*MerkleTree)
	if !ok || o == nil {
		o = NewEmpty()
	}

	var d Diff
	addPaths := make([]string, 0)
	for path, l := range t.leaves {
		if ol, ok := o.leaves[path]; !ok || ol.hash != l.hash {
			addPaths = append(addPaths, path)
		}
	}
	sort.Strings(addPaths)
	for _, p := range addPaths {
		d.Add = append(d.Add, t.leaves[p].key)
	}

	removePaths := make([]string, 0)
	for path := range o.leaves {
		if _, ok := t.leaves[path]; !ok {
			removePaths = append(removePaths, path)
		}
	}
	sort.Strings(removePaths)
	for _, p := range removePaths {
		d.Remove = append(d.Remove, o.leaves[p].key)
	}

	return d
}
