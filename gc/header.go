// Package gc implements the runtime's stop-the-world mark-sweep collector:
// a GC header embedded in every collectible object, a generic per-type
// arena with a free list, and a Collector that drives mark and sweep over
// whatever pools and roots it is given.
package gc

// Header is embedded by every GC-managed object (string, table, closure,
// upvalue, thread, userdata). It carries exactly the bits spec.md §3.7
// names: a mark bit, an age byte for a future generational extension, and
// a fixed bit exempting the object from sweep.
type Header struct {
	marked bool
	age    uint8
	fixed  bool
}

// Marked reports whether the mark phase has already visited this object in
// the current cycle.
func (h *Header) Marked() bool { return h.marked }

// Mark sets the mark bit. Returns true if this call transitioned the
// object from unmarked to marked (the caller should enqueue referents only
// on that transition, to avoid retracing already-visited objects).
func (h *Header) Mark() bool {
	if h.marked {
		return false
	}
	h.marked = true
	return true
}

// ClearMark resets the mark bit; Arena.Sweep calls it on every surviving
// object so the next cycle starts from "everything unmarked."
func (h *Header) ClearMark() { h.marked = false }

// Fixed reports whether sweep must never free this object.
func (h *Header) Fixed() bool { return h.fixed }

// SetFixed marks the object exempt from sweep (used for metamethod event
// name strings and other VM-lifetime objects, spec.md §4.7).
func (h *Header) SetFixed() { h.fixed = true }

// Age returns the header's generational age counter. luacore's collector is
// pure mark-sweep (spec.md §9 permits either); Age is carried so a future
// generational extension has somewhere to record survival counts without a
// layout change.
func (h *Header) Age() uint8 { return h.age }

// Bump increments the age counter, saturating rather than wrapping.
func (h *Header) Bump() {
	if h.age < 255 {
		h.age++
	}
}
