// Package luatable implements the Lua table: an array part for dense
// positive-integer keys plus a hash part with Brent's-variation collision
// chaining, a metatable pointer, and the fasttm absent-metamethod cache
// (spec.md §3.3, §4.3).
package luatable

import (
	"math"

	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

// node is one hash-part slot: a key/value pair plus the slot index (into
// Table.hash, not a pointer offset as in the C source) of the next node in
// its collision chain. next == noNext (-1) marks the end of a chain; this
// keeps spec.md's intrusive-chain shape while staying memory-safe.
type node struct {
	key   value.Value
	val   value.Value
	next  int32 // index into Table.hash, or -1 for "no next"
	inUse bool
}

const noNext = -1

// TmCount is the number of distinct metamethod event kinds the fasttm cache
// tracks. vm.TmKind values index into Table.absent up to this bound.
const TmCount = 32

// Table is the runtime's associative array/record hybrid.
type Table struct {
	gc.Header

	array []value.Value // array part: array[i] holds key i+1

	hash     []node
	hashUsed int

	metatable *Table

	// absent caches, per spec.md §4.3/§4.6, whether metatable[event] is
	// known to be nil for each TmKind; cleared unconditionally on any
	// metatable mutation. Indexed by an integer the vm package defines
	// (vm.TmKind); luatable has no opinion on what the indices mean.
	absent [TmCount]bool

	// weakKeys/weakValues implement the __mode weak-table extension
	// (spec.md §9 design note; supplemented per SPEC_FULL.md §E).
	weakKeys   bool
	weakValues bool
}

// GCHeader implements gc.Collectible.
func (t *Table) GCHeader() *gc.Header { return &t.Header }

// GCTag implements value.Object.
func (t *Table) GCTag() value.Tag { return value.TagTable }

// New constructs a table with the given initial array and hash capacity
// hints (spec.md §6.2 create_table(array_size, hash_size)).
func New(arraySize, hashSize int) *Table {
	t := &Table{}
	if arraySize > 0 {
		t.array = make([]value.Value, arraySize)
	}
	if hashSize > 0 {
		t.resizeHash(nextPow2(hashSize))
	}
	return t
}

func nextPow2(n int) int {
	if n <= 0 {
		return 0
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// normalizeKey implements spec.md §3.3's integer-valued-float-key rule:
// 1.0 used as a key is the same key as the integer 1.
func normalizeKey(k value.Value) (value.Value, error) {
	if k.IsNil() {
		return k, errNilKey
	}
	if f, ok := k.AsFloatStrict(); ok {
		if math.IsNaN(f) {
			return k, errNaNKey
		}
		if i, ok := k.AsInteger(); ok {
			return value.Integer(i), nil
		}
	}
	return k, nil
}

var (
	errNilKey = tableError{"table index is nil"}
	errNaNKey = tableError{"table index is NaN"}
)

type tableError struct{ msg string }

func (e tableError) Error() string { return e.msg }

// RawGet implements §4.3's raw_get: array-part fast path for in-range
// integer keys, otherwise a hash-part lookup. No metamethod dispatch.
func (t *Table) RawGet(key value.Value) value.Value {
	if i, ok := key.AsIntegerStrict(); ok && i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}
	if i, ok := key.AsInteger(); ok && i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}

	nk, err := normalizeKey(key)
	if err != nil {
		return value.Nil
	}
	if i, ok := nk.AsIntegerStrict(); ok && i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}
	return t.getHash(nk)
}

// GetInt is the integer-key fast path used by the GETI opcode.
func (t *Table) GetInt(i int64) value.Value {
	if i >= 1 && int(i) <= len(t.array) {
		return t.array[i-1]
	}
	return t.getHash(value.Integer(i))
}

func (t *Table) getHash(key value.Value) value.Value {
	if len(t.hash) == 0 {
		return value.Nil
	}
	idx := t.mainPosition(key)
	for idx != noNext {
		n := &t.hash[idx]
		if n.inUse && value.RawEqual(n.key, key) {
			return n.val
		}
		idx = n.next
	}
	return value.Nil
}

// mainPosition returns the hash-part slot a key's hash maps to, per
// spec.md's GLOSSARY "Main position."
func (t *Table) mainPosition(key value.Value) int32 {
	if len(t.hash) == 0 {
		return noNext
	}
	h := hashValue(key)
	return int32(h & uint64(len(t.hash)-1))
}

// RawSet implements §4.3's raw_set algorithm, including Brent's variation:
// on collision, if the node occupying a key's main position does not
// itself belong there (it was itself a displaced collision), it is moved
// aside to a free slot so the new key can take the main position its hash
// dictates, keeping chain length close to optimal.
func (t *Table) RawSet(key value.Value, val value.Value) error {
	nk, err := normalizeKey(key)
	if err != nil {
		return err
	}

	if i, ok := nk.AsIntegerStrict(); ok && i >= 1 {
		if int(i) <= len(t.array) {
			t.array[i-1] = val
			gc.Barrier(t)
			return nil
		}
		if int(i) == len(t.array)+1 && !val.IsNil() {
			t.growArray(int(i))
			// migrate first: a stale hash-part node for key i (e.g. set
			// before the array ever reached this far) must not be allowed
			// to clobber the value being written right now.
			t.migrateFromHash()
			t.array[i-1] = val
			gc.Barrier(t)
			return nil
		}
	}

	t.setHash(nk, val)
	gc.Barrier(t)
	return nil
}

// SetInt is the integer-key fast path used by the SETI opcode.
func (t *Table) SetInt(i int64, val value.Value) {
	_ = t.RawSet(value.Integer(i), val)
}

func (t *Table) growArray(minLen int) {
	if minLen <= len(t.array) {
		return
	}
	next := make([]value.Value, minLen)
	copy(next, t.array)
	t.array = next
}

// migrateFromHash pulls any now-array-range integer keys out of the hash
// part after the array part grows, keeping raw_get's array fast path
// authoritative (spec.md §3.3: "Array-part/hash-part reapportioning ...
// maximizes array-part utilization").
func (t *Table) migrateFromHash() {
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse {
			continue
		}
		if ik, ok := n.key.AsIntegerStrict(); ok && ik >= 1 && int(ik) <= len(t.array) {
			t.array[ik-1] = n.val
			t.removeHashNode(int32(i))
		}
	}
}

func (t *Table) setHash(key value.Value, val value.Value) {
	if len(t.hash) == 0 {
		if val.IsNil() {
			return
		}
		t.resizeHash(4)
	}

	mp := t.mainPosition(key)

	// Key already present: overwrite in place (removing on nil, per
	// spec.md "Setting a key to nil marks the slot empty but does not
	// shrink").
	for idx := mp; idx != noNext; {
		n := &t.hash[idx]
		if n.inUse && value.RawEqual(n.key, key) {
			if val.IsNil() {
				n.val = value.Nil
				return
			}
			n.val = val
			return
		}
		if !n.inUse {
			break
		}
		idx = n.next
	}

	if val.IsNil() {
		return // deleting an absent key is a no-op
	}

	mpNode := &t.hash[mp]
	if !mpNode.inUse {
		mpNode.key, mpNode.val, mpNode.next, mpNode.inUse = key, val, noNext, true
		t.hashUsed++
		return
	}

	// Occupant exists. If it doesn't belong at its own main position (it
	// was itself relocated there as a collision of some other key), Brent's
	// variation moves it aside so the new key can take its rightful main
	// position.
	if t.mainPosition(mpNode.key) != mp {
		t.displaceAndInsert(mp, key, val)
		return
	}

	// Occupant belongs here: chain the new key off a free slot.
	free := t.findFreeSlot()
	if free == noNext {
		t.grow()
		t.setHash(key, val)
		return
	}
	t.linkNewNode(mp, free, key, val)
}

// displaceAndInsert relocates the node currently at idx (which does not
// belong at its own main position) to a free slot, re-links whoever was
// pointing at it, then installs (key, val) at idx — Brent's variation.
func (t *Table) displaceAndInsert(idx int32, key, val value.Value) {
	free := t.findFreeSlot()
	if free == noNext {
		t.grow()
		t.setHash(key, val)
		return
	}

	occupant := t.hash[idx]
	occupantMain := t.mainPosition(occupant.key)

	// Re-link the chain starting at occupant's true main position so it
	// points at the occupant's new home (free) instead of idx.
	prev := occupantMain
	for t.hash[prev].next != idx {
		prev = t.hash[prev].next
	}
	t.hash[prev].next = free
	t.hash[free] = occupant

	t.hash[idx] = node{key: key, val: val, next: noNext, inUse: true}
	t.hashUsed++
}

func (t *Table) findFreeSlot() int32 {
	for i := len(t.hash) - 1; i >= 0; i-- {
		if !t.hash[i].inUse {
			return int32(i)
		}
	}
	return noNext
}

func (t *Table) linkNewNode(head int32, free int32, key, val value.Value) {
	t.hash[free] = node{key: key, val: val, next: noNext, inUse: true}
	// append to the end of head's chain
	idx := head
	for t.hash[idx].next != noNext {
		idx = t.hash[idx].next
	}
	t.hash[idx].next = free
	t.hashUsed++
}

// removeHashNode physically frees slot idx, re-linking its collision
// chain so no other node is orphaned. A node is only ever chained to by
// its main position's chain, so the node's own main position tells us
// where to start looking for whoever points at it (the same walk
// displaceAndInsert uses when relocating a node).
func (t *Table) removeHashNode(idx int32) {
	victim := t.hash[idx]
	mp := t.mainPosition(victim.key)

	if mp == idx {
		// idx is the chain's home slot: lookups always start here, so it
		// can't simply go empty while a chain continues past it. Promote
		// the next node into idx's place instead of unlinking around idx.
		if victim.next == noNext {
			t.hash[idx] = node{next: noNext}
		} else {
			nxt := victim.next
			t.hash[idx] = t.hash[nxt]
			t.hash[nxt] = node{next: noNext}
		}
		t.hashUsed--
		return
	}

	prev := mp
	for t.hash[prev].next != idx {
		prev = t.hash[prev].next
	}
	t.hash[prev].next = victim.next
	t.hash[idx] = node{next: noNext}
	t.hashUsed--
}

// resizeHash allocates a fresh hash part of the given power-of-two size
// and rehashes every live entry into it.
func (t *Table) resizeHash(size int) {
	old := t.hash
	t.hash = make([]node, size)
	for i := range t.hash {
		t.hash[i].next = noNext
	}
	t.hashUsed = 0
	for _, n := range old {
		if n.inUse {
			t.setHash(n.key, n.val)
		}
	}
}

// grow rehashes to the next power-of-two hash size, per spec.md §4.3's
// "When the hash part has no free slot, it is rehashed to the next
// power-of-two size."
func (t *Table) grow() {
	size := len(t.hash) * 2
	if size == 0 {
		size = 4
	}
	t.resizeHash(size)
}

// Len implements the `#t` length operator: a binary search across the
// array part for the border between non-nil and nil, per spec.md §4.3.
// If the array's last slot is non-nil, the border may extend into the
// hash part (an unbound search), matching Lua's own `luaH_getn`.
func (t *Table) Len() int64 {
	n := len(t.array)
	if n > 0 && t.array[n-1].IsNil() {
		// binary search for a border i such that array[i-1] != nil and
		// array[i] == nil
		lo, hi := 0, n
		for hi-lo > 1 {
			mid := (lo + hi) / 2
			if t.array[mid-1].IsNil() {
				hi = mid
			} else {
				lo = mid
			}
		}
		return int64(lo)
	}
	if n > 0 && !t.array[n-1].IsNil() {
		// array part is full: the border may continue into the hash part.
		if t.getHash(value.Integer(int64(n)+1)).IsNil() {
			return int64(n)
		}
		// unbound search: double until we find a nil, then binary search
		i, j := int64(n), int64(n)*2
		for !t.getHash(value.Integer(j)).IsNil() {
			i = j
			if j > math.MaxInt64/2 {
				// degenerate: linear scan rather than overflow
				for !t.getHash(value.Integer(i + 1)).IsNil() {
					i++
				}
				return i
			}
			j *= 2
		}
		for j-i > 1 {
			m := (i + j) / 2
			if t.getHash(value.Integer(m)).IsNil() {
				j = m
			} else {
				i = m
			}
		}
		return i
	}
	return 0
}

// GetMetatable returns the table's metatable, or nil.
func (t *Table) GetMetatable() *Table { return t.metatable }

// SetMetatable installs mt as the table's metatable (or clears it if mt is
// nil) and unconditionally clears the fasttm absent cache, per spec.md
// §3.3: "cleared unconditionally on any metatable mutation."
func (t *Table) SetMetatable(mt *Table) {
	t.metatable = mt
	for i := range t.absent {
		t.absent[i] = false
	}
	gc.Barrier(t)
}

// AbsentTM reports whether event kind k is cached as "known absent."
func (t *Table) AbsentTM(k int) bool {
	if k < 0 || k >= TmCount {
		return false
	}
	return t.absent[k]
}

// SetAbsentTM caches that event kind k is known absent on this table's
// metatable.
func (t *Table) SetAbsentTM(k int) {
	if k >= 0 && k < TmCount {
		t.absent[k] = true
	}
}

// SetWeak configures the table's __mode weak-reference behavior
// (SPEC_FULL.md §E).
func (t *Table) SetWeak(keys, values bool) {
	t.weakKeys, t.weakValues = keys, values
}

// WeakKeys and WeakValues report the table's __mode configuration.
func (t *Table) WeakKeys() bool   { return t.weakKeys }
func (t *Table) WeakValues() bool { return t.weakValues }

// Iter calls fn for every live (key, value) pair, array part first (in
// index order) then hash part (in slot order) — the "lazy sequence"
// spec.md §4.3's iter_all describes. fn returning false stops iteration
// early.
func (t *Table) Iter(fn func(key, val value.Value) bool) {
	for i, v := range t.array {
		if v.IsNil() {
			continue
		}
		if !fn(value.Integer(int64(i+1)), v) {
			return
		}
	}
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse || n.val.IsNil() {
			continue
		}
		if !fn(n.key, n.val) {
			return
		}
	}
}

// Trace implements gc.Traceable: every array slot, every live hash node's
// key and value, and the metatable (if any) are reachable referents.
func (t *Table) Trace(mark func(value.Value)) {
	for _, v := range t.array {
		mark(v)
	}
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse {
			continue
		}
		mark(n.key)
		mark(n.val)
	}
	if t.metatable != nil {
		mark(value.FromObject(t.metatable))
	}
}

// SweepWeak removes bindings whose key or value is a not-yet-marked GC
// object, per the table's __mode configuration. Must run after the mark
// phase but before Sweep frees the now-unreferenced objects, per spec.md
// §9's design note on weak references.
func (t *Table) SweepWeak(isMarked func(value.Value) bool) {
	if !t.weakKeys && !t.weakValues {
		return
	}
	if t.weakKeys {
		for i := range t.array {
			// array-part keys are always integers, i.e. never GC objects,
			// so weak keys never apply to the array part.
			_ = i
		}
	}
	for i := range t.hash {
		n := &t.hash[i]
		if !n.inUse {
			continue
		}
		if t.weakKeys && !isMarked(n.key) {
			t.removeHashNode(int32(i))
			continue
		}
		if t.weakValues && !isMarked(n.val) {
			n.val = value.Nil
		}
	}
	if t.weakValues {
		for i := range t.array {
			if !t.array[i].IsNil() && !isMarked(t.array[i]) {
				t.array[i] = value.Nil
			}
		}
	}
}
