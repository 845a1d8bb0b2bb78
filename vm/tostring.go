package vm

import (
	"fmt"

	"github.com/plaidvm/luacore/value"
)

// ToDisplayString renders v the way Lua's print/tostring would for values
// with no __tostring metamethod: nil/boolean/number literally, strings by
// content, everything else as "<type>: <identity>" (spec.md §6.3's
// default __tostring fallback). Callers wanting __tostring dispatch
// should use State.Len-style metamethod lookup first and fall back to
// this for the common case.
func ToDisplayString(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.Tag() == value.TagTrue:
		return "true"
	case v.Tag() == value.TagFalse:
		return "false"
	}
	if i, ok := v.AsIntegerStrict(); ok {
		return fmt.Sprintf("%d", i)
	}
	if f, ok := v.AsFloatStrict(); ok {
		return fmt.Sprintf("%.14g", f)
	}
	if v.IsString() {
		obj, _ := v.Object()
		return fmt.Sprint(obj)
	}
	obj, ok := v.Object()
	if !ok {
		return "?"
	}
	return fmt.Sprintf("%s: %p", v.Tag(), obj)
}
