package vm

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

// CoroutineStatus mirrors Lua's coroutine.status strings (spec.md §5.5).
type CoroutineStatus int

const (
	StatusSuspended CoroutineStatus = iota
	StatusRunning
	StatusNormal // resumed another coroutine and is waiting for it
	StatusDead
)

func (st CoroutineStatus) String() string {
	switch st {
	case StatusSuspended:
		return "suspended"
	case StatusRunning:
		return "running"
	case StatusNormal:
		return "normal"
	default:
		return "dead"
	}
}

// Coroutine is one cooperatively-scheduled thread of execution: its own
// register stack and call-frame chain, plus the resume/yield state
// machine spec.md §5.5 describes.
//
// luacore has no continuation-passing interpreter loop, so suspending mid
// instruction the way a C implementation longjmps out of its call stack
// isn't directly portable. Instead each coroutine body runs on its own
// goroutine, and resume/yield is a blocking handshake over two
// unbuffered channels — exactly one goroutine is ever runnable at a time,
// so this stays cooperative (not parallel) despite using real goroutines;
// it's the idiomatic Go answer to "a call stack that can be suspended and
// resumed," in place of the fiber/ucontext tricks other language runtimes
// use. Recorded as an Open Question decision in DESIGN.md.
type Coroutine struct {
	gc.Header
	id     uuid.UUID
	entry  *Closure
	stack  *Stack
	frame  *Frame // innermost active frame on stack; nil when none is running
	status CoroutineStatus
	caller *Coroutine

	started  bool
	toCo     chan []value.Value
	fromCo   chan coResult
}

type coResult struct {
	vals []value.Value
	err  error
	done bool
}

// errNotACoroutine guards Yield being called outside any running
// coroutine (the main thread has no goroutine of its own to suspend).
var errNotACoroutine = errors.New("attempt to yield from outside a coroutine")

// NewCoroutine creates a fresh, suspended coroutine that will invoke
// entry with the arguments passed to its first Resume.
func NewCoroutine(entry *Closure) *Coroutine {
	return &Coroutine{
		id:     uuid.New(),
		entry:  entry,
		stack:  NewStack(),
		status: StatusSuspended,
		toCo:   make(chan []value.Value),
		fromCo: make(chan coResult),
	}
}

// GCHeader implements gc.Collectible.
func (co *Coroutine) GCHeader() *gc.Header { return &co.Header }

// GCTag implements value.Object.
func (co *Coroutine) GCTag() value.Tag { return value.TagThread }

// Status reports the coroutine's current resume/yield state.
func (co *Coroutine) Status() CoroutineStatus { return co.status }

// Trace implements gc.Traceable: every live register on this coroutine's
// own stack is a root relative to this thread (spec.md §5.5, §4.7's
// per-thread roots).
func (co *Coroutine) Trace(mark func(value.Value)) {
	for _, v := range co.stack.regs {
		mark(v)
	}
}

// Resume transfers control to co: on the first call it starts co's body
// running on its own goroutine with args as the entry closure's
// arguments; on later calls args become coroutine.yield's return values.
// It blocks until co next yields, returns, or errors.
func (s *State) Resume(co *Coroutine, args []value.Value) ([]value.Value, error) {
	if co.status == StatusDead {
		return nil, errors.New("cannot resume dead coroutine")
	}
	if co.status == StatusRunning || co.status == StatusNormal {
		return nil, errors.New("cannot resume non-suspended coroutine")
	}

	prev := s.current
	if prev != nil {
		prev.status = StatusNormal
	}
	co.caller = prev
	co.status = StatusRunning
	s.current = co

	if !co.started {
		co.started = true
		go func() {
			results, err := s.callClosure(co.entry, args, co)
			co.fromCo <- coResult{vals: results, err: err, done: true}
		}()
	} else {
		co.toCo <- args
	}

	res := <-co.fromCo

	s.current = prev
	if prev != nil {
		prev.status = StatusRunning
	}
	if res.done || res.err != nil {
		co.status = StatusDead
	} else {
		co.status = StatusSuspended
	}
	return res.vals, res.err
}

// Yield suspends the currently running coroutine, handing vals back to
// whoever called Resume, and blocks until the next Resume hands back its
// own argument list.
func (s *State) Yield(vals []value.Value) ([]value.Value, error) {
	co := s.current
	if co == nil {
		return nil, errNotACoroutine
	}
	co.fromCo <- coResult{vals: vals, done: false}
	return <-co.toCo, nil
}
