package gc

import "github.com/plaidvm/luacore/value"

// Traceable is implemented by any Collectible that holds references to
// other values the mark phase must follow: tables (keys, values,
// metatable), closures (upvalues, prototype constants), upvalues (closed
// owned slot), threads (their own register stack, open-upvalue list,
// to-be-closed list). Strings implement only Collectible, never Traceable
// — they have no outgoing references (spec.md §4.7).
type Traceable interface {
	Collectible
	Trace(mark func(value.Value))
}

// Root is implemented by whatever owns the collector's GC roots: the VM
// state (global table, string metatable, registry) and the currently live
// thread stack. TraceRoots must push every directly-reachable Value.
type Root interface {
	TraceRoots(mark func(value.Value))
}

// Pool is the sweep-half of an Arena[T], type-erased so the Collector can
// hold a heterogeneous slice of arenas (one per GC object kind) without
// generic parameters leaking into its own type.
type Pool interface {
	Sweep() int
}

// Stats summarizes one collection cycle.
type Stats struct {
	Freed int
}

// Collector drives one full mark-sweep cycle over a caller-supplied set of
// roots and pools. It holds no state of its own between cycles beyond the
// allocation-debt counter (see debt.go) — all liveness state lives in the
// object headers themselves.
type Collector struct {
	Debt Debt
}

// Collect performs one stop-the-world mark-sweep cycle: push every root's
// direct referents onto a gray worklist, drain the worklist by tracing
// each object's own referents, then sweep every pool. Cycles, shared
// substructure, and self-references are all handled correctly by the
// mark-bit transition in Header.Mark (it only returns true, and so only
// enqueues, the first time an object is seen).
func (c *Collector) Collect(roots []Root, pools []Pool) Stats {
	var gray []Traceable

	mark := func(v value.Value) {
		obj, ok := v.Object()
		if !ok {
			return
		}
		coll, ok := obj.(Collectible)
		if !ok {
			return
		}
		if !coll.GCHeader().Mark() {
			return // already marked this cycle
		}
		if t, ok := obj.(Traceable); ok {
			gray = append(gray, t)
		}
	}

	for _, r := range roots {
		r.TraceRoots(mark)
	}

	for len(gray) > 0 {
		n := len(gray) - 1
		obj := gray[n]
		gray = gray[:n]
		obj.Trace(mark)
	}

	freed := 0
	for _, p := range pools {
		freed += p.Sweep()
	}

	c.Debt.AfterCollection()
	return Stats{Freed: freed}
}

// Barrier is called by any mutation that stores a reference into a
// GC-managed container (table raw_set, closure/upvalue rebind). Under the
// stop-the-world collector implemented here it is a deliberate no-op: every
// object reachable at the start of a cycle is either still gray/black or
// hasn't been swept yet, so there is nothing to re-queue mid-mutation.
// spec.md §4.7/§9 note that barrier semantics only become meaningful for an
// incremental or generational collector; this hook exists so that
// extension can be made later without touching the existing call sites —
// every raw_set in package luatable already calls gc.Barrier. Upvalue
// writes and closure construction in package vm do not call it.
func Barrier(container Collectible) {
	_ = container
}
