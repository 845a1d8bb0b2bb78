// Package strtab implements the string interner: short strings are
// deduplicated via a chained hash table so that every short string a
// program observes is backed by exactly one object (spec.md §3.2, §4.2);
// long strings are allocated fresh and compare by content instead.
package strtab

import (
	"hash/maphash"

	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

// ShortStringLimit is the byte-length cutoff above which a string is
// allocated as a long string and never interned, per spec.md §3.2.
const ShortStringLimit = 40

// String is a GC-managed string object: its bytes, its precomputed hash,
// an intrusive next-in-bucket pointer (nil once unlinked), and whether it
// is short (interned) or long (content-compared only).
type String struct {
	gc.Header
	bytes []byte
	hash  uint64
	short bool
	next  *String // intrusive singly-linked bucket chain; short strings only
}

// GCHeader implements gc.Collectible.
func (s *String) GCHeader() *gc.Header { return &s.Header }

// GCTag implements value.Object.
func (s *String) GCTag() value.Tag {
	if s.short {
		return value.TagShortString
	}
	return value.TagLongString
}

// Bytes returns the string's raw content.
func (s *String) Bytes() []byte { return s.bytes }

// String implements fmt.Stringer for debug output.
func (s *String) String() string { return string(s.bytes) }

// Len returns the byte length.
func (s *String) Len() int { return len(s.bytes) }

// Hash returns the precomputed content hash.
func (s *String) Hash() uint64 { return s.hash }

// Equal implements value.Object's optional equality hook: short strings
// have already been deduplicated by Interner.Create, so equal content
// implies the same *String pointer and this reduces to identity; long
// strings compare by content since they are never deduped.
func (s *String) Equal(other value.Object) bool {
	o, ok := other.(*String)
	if !ok {
		return false
	}
	if s == o {
		return true
	}
	if s.short || o.short {
		return false // distinct short-string objects are never equal
	}
	return s.hash == o.hash && string(s.bytes) == string(o.bytes)
}

// Interner owns the bucket-chained hash table backing short-string
// deduplication, plus the arena both short and long strings are allocated
// from (so the collector can sweep them uniformly).
type Interner struct {
	seed    maphash.Seed
	buckets []*String
	count   int
	pool    *gc.Arena[*String]
}

// NewInterner constructs an empty interner with an initial bucket count
// that is always a power of two, per spec.md §4.2's resize policy.
func NewInterner() *Interner {
	return &Interner{
		seed:    maphash.MakeSeed(),
		buckets: make([]*String, 16),
		pool:    gc.NewArena[*String](256),
	}
}

// Pool exposes the backing arena so the VM can register it with the
// collector as a sweep target.
func (in *Interner) Pool() *gc.Arena[*String] { return in.pool }

func (in *Interner) hash(b []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(in.seed)
	h.Write(b)
	return h.Sum64()
}

// Create interns (or allocates fresh, for long strings) a string with the
// given content. Short strings walk the bucket chain for a content match
// before allocating; on a miss the new object is linked at the bucket
// head. Long strings skip interning entirely, per spec.md §4.2.
func (in *Interner) Create(content []byte) *String {
	h := in.hash(content)

	if len(content) > ShortStringLimit {
		return in.pool.New(&String{bytes: append([]byte(nil), content...), hash: h, short: false})
	}

	idx := h & uint64(len(in.buckets)-1)
	for s := in.buckets[idx]; s != nil; s = s.next {
		if s.hash == h && string(s.bytes) == string(content) {
			return s
		}
	}

	s := in.pool.New(&String{bytes: append([]byte(nil), content...), hash: h, short: true})
	s.next = in.buckets[idx]
	in.buckets[idx] = s
	in.count++

	if in.loadFactor() > 1.0 {
		in.grow()
	}

	return s
}

// CreateString is a convenience wrapper returning a ready-to-use Value.
func (in *Interner) CreateString(content string) value.Value {
	return value.FromObject(in.Create([]byte(content)))
}

// Fixed interns s (if not already) and marks it exempt from sweep; used at
// VM construction time for metamethod event names and other VM-lifetime
// strings (spec.md §4.2, §4.7).
func (in *Interner) Fixed(content string) *String {
	s := in.Create([]byte(content))
	s.SetFixed()
	return s
}

func (in *Interner) loadFactor() float64 {
	return float64(in.count) / float64(len(in.buckets))
}

// grow doubles the bucket count (power-of-two growth, per spec.md §4.2)
// and rehashes every short string into its new bucket.
func (in *Interner) grow() {
	newBuckets := make([]*String, len(in.buckets)*2)
	mask := uint64(len(newBuckets) - 1)

	for _, head := range in.buckets {
		for s := head; s != nil; {
			next := s.next
			idx := s.hash & mask
			s.next = newBuckets[idx]
			newBuckets[idx] = s
			s = next
		}
	}

	in.buckets = newBuckets
}

// unlink removes a short string from its bucket chain; called directly by
// Interner.Sweep (the generic gc.Arena doesn't know about intern buckets)
// when a short string is about to be freed.
func (in *Interner) unlink(s *String) {
	idx := s.hash & uint64(len(in.buckets)-1)
	if in.buckets[idx] == s {
		in.buckets[idx] = s.next
		s.next = nil
		in.count--
		return
	}
	for cur := in.buckets[idx]; cur != nil; cur = cur.next {
		if cur.next == s {
			cur.next = s.next
			s.next = nil
			in.count--
			return
		}
	}
}

// Sweep implements gc.Pool: it delegates to the backing arena's Sweep
// (which frees unmarked, non-fixed *String objects) but first needs to
// know *which* objects are about to be freed so their intern-chain bucket
// links can be removed (spec.md §4.7: "Short strings removed from the
// arena are also unlinked from their intern-chain bucket"). It does this
// by sweeping a snapshot check itself rather than delegating blindly to
// Arena.Sweep, since only Interner knows about bucket chains.
func (in *Interner) Sweep() int {
	freed := 0
	in.pool.Each(func(s *String) {
		if s.Fixed() || s.Marked() {
			return
		}
		if s.short {
			in.unlink(s)
		}
	})
	freed = in.pool.Sweep()
	return freed
}
