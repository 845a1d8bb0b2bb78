// Package value implements the runtime's tagged value representation: the
// 16-byte-intent union of a type tag plus either an immediate payload (bool,
// integer, float bit pattern) or a reference to a garbage-collected object.
package value

import "math"

// Tag identifies the dynamic type carried by a Value.
type Tag uint8

const (
	TagNil Tag = iota
	TagFalse
	TagTrue
	TagInteger
	TagFloat
	TagShortString
	TagLongString
	TagTable
	TagLuaFunction
	TagCFunction
	TagNativeClosure
	TagLightUserdata
	TagFullUserdata
	TagThread
)

// String returns the Lua-visible type name for the tag, the form `type(v)`
// would report.
func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagFalse, TagTrue:
		return "boolean"
	case TagInteger, TagFloat:
		return "number"
	case TagShortString, TagLongString:
		return "string"
	case TagTable:
		return "table"
	case TagLuaFunction, TagCFunction, TagNativeClosure:
		return "function"
	case TagLightUserdata, TagFullUserdata:
		return "userdata"
	case TagThread:
		return "thread"
	default:
		return "<unknown>"
	}
}

// Object is implemented by every garbage-collected value kind (strings,
// tables, closures, upvalues, threads, userdata). It is the seam that lets
// package value hold a reference to an object defined in a higher-level
// package (strtab.String, luatable.Table, vm.Closure, ...) without value
// importing any of them back.
type Object interface {
	// GCTag reports which Tag a Value wrapping this object should carry.
	// Strings report TagShortString or TagLongString depending on their
	// own interning state; everything else reports a fixed tag.
	GCTag() Tag
}

// Value is the runtime's universal value type. Primitives are held directly
// in the tag+bits pair; everything else is a reference to an Object.
//
// A genuine 16-byte packed struct (as real Lua implementations use) isn't
// expressible in portable Go without unsafe tricks that would fight the
// garbage collector; this struct is the idiomatic Go rendition of the same
// idea — a small fixed set of fields, only one of which (obj) is ever a
// pointer, so non-reference values never need a heap allocation of their
// own.
type Value struct {
	tag Tag
	bits uint64
	obj  Object
}

// Nil is the single canonical nil value.
var Nil = Value{tag: TagNil}

// True and False are the two canonical boolean values.
var (
	True  = Value{tag: TagTrue}
	False = Value{tag: TagFalse}
)

// Boolean returns True or False.
func Boolean(b bool) Value {
	if b {
		return True
	}
	return False
}

// Integer wraps a Lua integer.
func Integer(i int64) Value {
	return Value{tag: TagInteger, bits: uint64(i)}
}

// Float wraps a Lua float.
func Float(f float64) Value {
	return Value{tag: TagFloat, bits: math.Float64bits(f)}
}

// FromObject wraps a GC object, taking its tag from Object.GCTag.
func FromObject(obj Object) Value {
	if obj == nil {
		return Nil
	}
	return Value{tag: obj.GCTag(), obj: obj}
}

// CFunction wraps a host-provided native function pointer. CFunction values
// carry no owned upvalues of their own (a bare function pointer); a
// GC-managed host function is a vm.Closure built by vm.NewGoClosure and
// wrapped with FromObject instead.
type CFunc func(args []Value) ([]Value, error)

type cfuncObject struct{ fn CFunc }

func (cfuncObject) GCTag() Tag { return TagCFunction }

// Call invokes the wrapped function, implementing Callable.
func (c cfuncObject) Call(args []Value) ([]Value, error) { return c.fn(args) }

// Callable is implemented by any Object that can be invoked directly
// without going through the interpreter loop (bare host function
// pointers; vm.Closure implements its own richer calling convention
// instead of this interface, since it also needs a *State).
type Callable interface {
	Call(args []Value) ([]Value, error)
}

// CFunction wraps a bare host function pointer as a Value.
func CFunction(fn CFunc) Value {
	return Value{tag: TagCFunction, obj: cfuncObject{fn: fn}}
}

// Tag reports the value's dynamic type tag.
func (v Value) Tag() Tag { return v.tag }

// IsNil reports whether v is the nil value.
func (v Value) IsNil() bool { return v.tag == TagNil }

// IsTruthy implements Lua's truthiness rule: everything except nil and
// false is truthy, including 0, 0.0 and the empty string.
func (v Value) IsTruthy() bool { return v.tag != TagNil && v.tag != TagFalse }

// IsBoolean, IsNumber, IsInteger, IsFloat, IsString, IsTable, IsFunction,
// IsThread, IsUserdata: tag-class predicates.
func (v Value) IsBoolean() bool { return v.tag == TagTrue || v.tag == TagFalse }
func (v Value) IsNumber() bool  { return v.tag == TagInteger || v.tag == TagFloat }
func (v Value) IsInteger() bool { return v.tag == TagInteger }
func (v Value) IsFloat() bool   { return v.tag == TagFloat }
func (v Value) IsString() bool  { return v.tag == TagShortString || v.tag == TagLongString }
func (v Value) IsTable() bool   { return v.tag == TagTable }
func (v Value) IsFunction() bool {
	return v.tag == TagLuaFunction || v.tag == TagCFunction || v.tag == TagNativeClosure
}
func (v Value) IsThread() bool { return v.tag == TagThread }
func (v Value) IsUserdata() bool {
	return v.tag == TagLightUserdata || v.tag == TagFullUserdata
}

// AsBoolean extracts a bool; ok is false on tag mismatch.
func (v Value) AsBoolean() (b bool, ok bool) {
	switch v.tag {
	case TagTrue:
		return true, true
	case TagFalse:
		return false, true
	default:
		return false, false
	}
}

// AsIntegerStrict extracts an int64 only when the tag is exactly Integer.
func (v Value) AsIntegerStrict() (int64, bool) {
	if v.tag != TagInteger {
		return 0, false
	}
	return int64(v.bits), true
}

// AsFloatStrict extracts a float64 only when the tag is exactly Float.
func (v Value) AsFloatStrict() (float64, bool) {
	if v.tag != TagFloat {
		return 0, false
	}
	return math.Float64frombits(v.bits), true
}

// AsNumber widens integers to float and passes floats through; fails on any
// other tag.
func (v Value) AsNumber() (float64, bool) {
	switch v.tag {
	case TagInteger:
		return float64(int64(v.bits)), true
	case TagFloat:
		return math.Float64frombits(v.bits), true
	default:
		return 0, false
	}
}

// AsInteger implements Lua's "usable as an integer" rule: the Integer tag
// always qualifies; a Float qualifies iff it is finite and equal to its own
// truncation (so 3.0 converts but 3.5 and NaN/Inf do not).
func (v Value) AsInteger() (int64, bool) {
	switch v.tag {
	case TagInteger:
		return int64(v.bits), true
	case TagFloat:
		f := math.Float64frombits(v.bits)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		t := math.Trunc(f)
		if t != f {
			return 0, false
		}
		return int64(t), true
	default:
		return 0, false
	}
}

// Object returns the referenced GC object and true, or (nil, false) for a
// primitive value.
func (v Value) Object() (Object, bool) {
	if v.obj == nil {
		return nil, false
	}
	return v.obj, true
}

// RawEqual implements Lua's raw equality (no metamethod dispatch):
// numbers compare by numeric value regardless of int/float tag, strings by
// their own Equal hook (short strings are pointer-interned so this reduces
// to identity; long strings compare by content), everything else by
// identity of the underlying Object.
func RawEqual(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		// Prefer an exact integer compare when both sides hold integers so
		// that large magnitudes immune to float rounding compare correctly.
		if ai, aok := a.AsIntegerStrict(); aok {
			if bi, bok := b.AsIntegerStrict(); bok {
				return ai == bi
			}
		}
		af, _ := a.AsNumber()
		bf, _ := b.AsNumber()
		return af == bf // NaN != NaN falls out of IEEE-754 == here
	}

	if a.tag != b.tag {
		return false
	}

	switch a.tag {
	case TagNil:
		return true
	case TagTrue, TagFalse:
		return true
	case TagShortString, TagLongString:
		if eq, ok := a.obj.(interface{ Equal(Object) bool }); ok {
			return eq.Equal(b.obj)
		}
		return a.obj == b.obj
	default:
		return a.obj == b.obj
	}
}
