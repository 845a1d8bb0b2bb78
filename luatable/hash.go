package luatable

import (
	"math"
	"reflect"

	"github.com/plaidvm/luacore/value"
)

// hashValue computes the hash-part bucket hash for a key. Strings reuse
// their own precomputed hash (an *strtab.String, reached via the
// value.Object interface and a narrow method hook so luatable doesn't need
// to import strtab — see hasher below); numbers hash their bit pattern
// (an integer and its equal float, e.g. 2 and 2.0, normalize to the same
// key before reaching here, so they never need to collide by construction);
// everything else hashes object identity.
func hashValue(v value.Value) uint64 {
	switch {
	case v.IsNil():
		return 0
	case v.Tag() == boolFalseTag:
		return 1
	case v.Tag() == boolTrueTag:
		return 2
	}

	if i, ok := v.AsIntegerStrict(); ok {
		return splitmix64(uint64(i))
	}
	if f, ok := v.AsFloatStrict(); ok {
		return splitmix64(math.Float64bits(f))
	}
	if obj, ok := v.Object(); ok {
		if h, ok := obj.(hasher); ok {
			return h.Hash()
		}
		return identityHash(obj)
	}
	return 0
}

// hasher lets an Object (in practice *strtab.String) supply its own
// precomputed hash instead of falling back to identity hashing.
type hasher interface {
	Hash() uint64
}

func identityHash(obj value.Object) uint64 {
	return splitmix64(uint64(reflect.ValueOf(obj).Pointer()))
}

// splitmix64 is a small, fast integer mixer used to spread low-entropy
// keys (small integers, pointer addresses that are typically
// allocation-aligned) across hash buckets.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x = x ^ (x >> 31)
	return x
}

// boolFalseTag/boolTrueTag mirror value.TagFalse/value.TagTrue without
// importing value's internals beyond the exported Tag type (both are
// package value types; this indirection just keeps the switch above
// readable).
const (
	boolFalseTag = value.TagFalse
	boolTrueTag  = value.TagTrue
)
