package vm

import (
	"github.com/pkg/errors"

	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/luatable"
	"github.com/plaidvm/luacore/strtab"
	"github.com/plaidvm/luacore/value"
)

// State is the Host->VM entry point (spec.md §6): it owns string
// interning, the GC-managed object pools, the global table, the shared
// string metatable, and the main coroutine every top-level call runs on.
// It implements gc.Root so a Collector can trace it directly.
type State struct {
	Interner *strtab.Interner
	Collector *gc.Collector

	tablePool   *gc.Arena[*luatable.Table]
	closurePool *gc.Arena[*Closure]
	upvalPool   *gc.Arena[*Upvalue]
	coroPool    *gc.Arena[*Coroutine]

	Globals    *luatable.Table
	stringMeta *luatable.Table
	tmNames    [tmKindCount]value.Value

	main    *Coroutine
	current *Coroutine
}

// NewState constructs a fresh VM with empty globals and no loaded
// libraries; nothing in this repository loads a standard library into it
// (cmd/luacore runs its demo prototypes against the bare State).
func NewState() *State {
	s := &State{
		Interner:    strtab.NewInterner(),
		Collector:   &gc.Collector{Debt: gc.NewDebt(gc.DefaultPause, gc.DefaultStepMultiplier)},
		tablePool:   gc.NewArena[*luatable.Table](64),
		closurePool: gc.NewArena[*Closure](64),
		upvalPool:   gc.NewArena[*Upvalue](64),
		coroPool:    gc.NewArena[*Coroutine](8),
	}
	s.Globals = s.NewTable(0, 32)
	s.stringMeta = s.NewTable(0, 4)
	for k := TmKind(0); k < tmKindCount; k++ {
		s.tmNames[k] = value.FromObject(s.Interner.Fixed(tmEventNames[k]))
	}
	return s
}

// NewTable allocates a GC-managed table through the state's table pool.
func (s *State) NewTable(arraySize, hashSize int) *luatable.Table {
	return s.tablePool.New(luatable.New(arraySize, hashSize))
}

// NewClosure allocates a Lua closure over proto, resolving its upvalues
// against enclosing (the currently-running frame), through the state's
// closure pool.
func (s *State) NewClosure(proto *Prototype, enclosing *Frame) *Closure {
	return s.closurePool.New(NewLuaClosure(proto, enclosing))
}

// NewGoClosure registers a host function as a GC-managed closure (so it
// can be stored in tables/upvalues like any other function value).
func (s *State) NewGoClosure(name string, fn GoFunc) *Closure {
	return s.closurePool.New(NewGoClosure(name, fn))
}

// NewCoroutine allocates a coroutine wrapping entry, through the state's
// coroutine pool.
func (s *State) NewCoroutine(entry *Closure) *Coroutine {
	return s.coroPool.New(NewCoroutine(entry))
}

// SetStringMetatable installs the one metatable shared by every string
// value (for the `("x"):upper()` method-call sugar spec.md §6.3 notes).
func (s *State) SetStringMetatable(mt *luatable.Table) { s.stringMeta = mt }

// CurrentFrame returns the innermost active frame of the currently
// running thread, or nil if nothing is running — used by diag.Traceback.
func (s *State) CurrentFrame() *Frame {
	if s.current == nil {
		return nil
	}
	return s.current.frame
}

// Collect runs one stop-the-world mark-sweep cycle over every pool this
// state owns.
func (s *State) Collect() gc.Stats {
	return s.Collector.Collect([]gc.Root{s}, []gc.Pool{
		s.Interner, s.tablePool, s.closurePool, s.upvalPool, s.coroPool,
	})
}

// TraceRoots implements gc.Root: the global table, the shared string
// metatable, the fixed metamethod-name strings, and every live
// coroutine's own register stack (via Coroutine.Trace, invoked because
// *Coroutine is itself Traceable and reachable by marking it here).
func (s *State) TraceRoots(mark func(value.Value)) {
	mark(value.FromObject(s.Globals))
	mark(value.FromObject(s.stringMeta))
	for _, n := range s.tmNames {
		mark(n)
	}
	if s.main != nil {
		mark(value.FromObject(s.main))
	}
	for co := s.current; co != nil; co = co.caller {
		mark(value.FromObject(co))
	}
}

// Call runs cl (Lua or Go) with args on the main thread, starting it if
// this is the state's first call.
func (s *State) Call(cl *Closure, args []value.Value) ([]value.Value, error) {
	if s.main == nil {
		s.main = s.NewCoroutine(cl)
		s.main.started = true // the main thread is driven directly, not via Resume's goroutine handshake
		s.current = s.main
	}
	return s.callClosure(cl, args, s.main)
}

// CallValue calls any callable Value: a Closure (Lua or Go), a bare
// value.Callable (value.CFunction), or a value whose metatable defines
// __call (spec.md §6.3).
func (s *State) CallValue(fn value.Value, args []value.Value) ([]value.Value, error) {
	obj, ok := fn.Object()
	if !ok {
		return nil, errors.Errorf("attempt to call a %s value", fn.Tag())
	}
	switch o := obj.(type) {
	case *Closure:
		co := s.current
		if co == nil {
			co = s.main
		}
		return s.callClosure(o, args, co)
	case value.Callable:
		return o.Call(args)
	}
	h := s.tm(fn, TmCall)
	if h.IsNil() {
		return nil, errors.Errorf("attempt to call a %s value", fn.Tag())
	}
	return s.CallValue(h, append([]value.Value{fn}, args...))
}

// PCall invokes fn the way Lua's pcall does: a returned runtime error, or
// an unforeseen Go panic escaping the interpreter loop, is caught and
// reported as (false, {message}) instead of propagating to the caller
// (spec.md §6.4). On success it reports (true, results...).
func (s *State) PCall(fn value.Value, args []value.Value) (ok bool, results []value.Value) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			msg, isErr := r.(error)
			if isErr {
				results = []value.Value{s.Interner.CreateString(msg.Error())}
			} else {
				results = []value.Value{s.Interner.CreateString(errors.Errorf("%v", r).Error())}
			}
		}
	}()

	res, err := s.CallValue(fn, args)
	if err != nil {
		return false, []value.Value{s.Interner.CreateString(err.Error())}
	}
	return true, res
}

// callClosure is the single implementation both Call and CallValue funnel
// through: Go closures invoke their GoFunc directly; Lua closures get a
// fresh frame pushed onto co's register stack and run through the
// interpreter loop (interp.go).
func (s *State) callClosure(cl *Closure, args []value.Value, co *Coroutine) ([]value.Value, error) {
	if cl.Go != nil {
		return cl.Go(s, args)
	}

	stk := co.stack
	f := stk.PushFrame(cl, co.frame)
	bindArgs(f, cl.Proto, args)
	co.frame = f

	results, err := s.interp(f)

	stk.PopFrame(f)
	co.frame = f.parent
	return results, err
}

// bindArgs copies call arguments into a fresh frame's parameter registers
// and stashes any surplus as varargs for a vararg function (spec.md §5.2's
// NumParams/IsVararg, OP_VARARGPREP's runtime behavior).
func bindArgs(f *Frame, proto *Prototype, args []value.Value) {
	for i := 0; i < proto.NumParams; i++ {
		if i < len(args) {
			f.SetReg(i, args[i])
		} else {
			f.SetReg(i, value.Nil)
		}
	}
	if proto.IsVararg && len(args) > proto.NumParams {
		f.varargs = append([]value.Value(nil), args[proto.NumParams:]...)
	}
}
