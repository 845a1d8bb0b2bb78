// Package diag renders runtime diagnostics: the error taxonomy a failed
// call can surface (spec.md §7) and the call-stack traceback attached to
// an uncaught error (spec.md §6.4), in the colored, source-line-anchored
// style the teacher's feedback package uses for compile-time diagnostics
// (_examples/isaacev-Plaid_v1/feedback/message.go) — adapted here from a
// lexer-span renderer to a call-frame renderer, since luacore has no
// source text of its own to quote, only prototype source names and lines.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/plaidvm/luacore/vm"
)

// Kind classifies a runtime error the way spec.md §7's taxonomy does.
type Kind string

const (
	KindRuntime       Kind = "runtime error"
	KindType          Kind = "type error"
	KindArithmetic    Kind = "arithmetic error"
	KindIndex         Kind = "index error"
	KindCall          Kind = "call error"
	KindStackOverflow Kind = "stack overflow"
	KindSyntax        Kind = "assembly error" // malformed hand-built bytecode, not source syntax
)

// Error is a classified runtime error carrying the traceback captured at
// the point it was raised (spec.md §6.4: "an uncaught error captures the
// call chain active at the point it was raised, not at the point it is
// finally reported").
type Error struct {
	Kind      Kind
	Cause     error
	Traceback []Frame
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

// Unwrap lets errors.Is/errors.As see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Frame is one line of a rendered traceback.
type Frame struct {
	Name string
	Source string
	Line int
}

// Wrap classifies a raw error from the vm package into a Kind, attaching
// a traceback snapshotted from s's current call chain. Call this at the
// point an error first escapes the interpreter loop (vm.State.Call),
// not at a pcall boundary further up — tracebacks are captured where
// raised, per spec.md §6.4.
func Wrap(kind Kind, s *vm.State, cause error) *Error {
	return &Error{Kind: kind, Cause: cause, Traceback: Traceback(s)}
}

// Classify guesses a Kind from a plain error's message when the call site
// didn't already know which taxonomy bucket it belongs to (e.g. an error
// bubbling up from luatable or value rather than vm itself).
func Classify(cause error) Kind {
	msg := cause.Error()
	switch {
	case strings.Contains(msg, "arithmetic") || strings.Contains(msg, "perform"):
		return KindArithmetic
	case strings.Contains(msg, "index"):
		return KindIndex
	case strings.Contains(msg, "call"):
		return KindCall
	case strings.Contains(msg, "stack overflow"):
		return KindStackOverflow
	default:
		return KindRuntime
	}
}

// Traceback walks s's active frame chain, innermost first, producing one
// Frame per activation record (spec.md §6.4).
func Traceback(s *vm.State) []Frame {
	var out []Frame
	for f := s.CurrentFrame(); f != nil; f = f.Parent() {
		name := f.Closure().Name
		if name == "" {
			name = "?"
		}
		out = append(out, Frame{
			Name:   name,
			Source: f.Closure().Proto.Source,
			Line:   f.Closure().Proto.LineAt(f.PC()),
		})
	}
	return out
}

// Render formats e as colored (or plain, when withColor is false)
// multi-line text: a severity header, then one indented line per
// traceback frame, matching the teacher's "header, then detail lines"
// shape (feedback.makeMessage) without needing source-span quoting.
func Render(e *Error, withColor bool) string {
	color.NoColor = !withColor
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	blue := color.New(color.FgBlue).SprintFunc()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", red("error:"), e.Kind)
	fmt.Fprintf(&b, "  %s\n", e.Cause)
	for _, fr := range e.Traceback {
		fmt.Fprintf(&b, "  %s %s:%d: in %s\n", blue("-->"), fr.Source, fr.Line, fr.Name)
	}
	return b.String()
}

// Recover turns a panic value (the interpreter loop never panics on Lua
// runtime conditions, but an internal invariant violation or an unguarded
// Go runtime panic, e.g. a stray index-out-of-range, still might) into an
// *Error of KindRuntime, for pcall's boundary (spec.md §6.4: "pcall
// recovers from both classified runtime errors and Go-level panics
// escaping the interpreter").
func Recover(s *vm.State, r interface{}) *Error {
	cause, ok := r.(error)
	if !ok {
		cause = errors.Errorf("%v", r)
	}
	return Wrap(KindRuntime, s, errors.WithStack(cause))
}
