package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plaidvm/luacore/luatable"
	"github.com/plaidvm/luacore/value"
	"github.com/plaidvm/luacore/vm"
)

// buildAdd assembles `return a + b` for two parameters.
func buildAdd() *vm.Prototype {
	as := vm.NewAssembler("=add")
	as.Params(2, false)
	as.MaxStack(3)
	as.ABC(vm.OpAdd, 2, 0, 1, false)
	as.ABC(vm.OpReturn1, 2, 0, 0, false)
	return as.Finish()
}

func TestArithmeticIntFloatInteraction(t *testing.T) {
	s := vm.NewState()
	cl := s.NewClosure(buildAdd(), nil)

	results, err := s.Call(cl, []value.Value{value.Integer(2), value.Integer(3)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.Integer(5), results[0])

	results, err = s.Call(cl, []value.Value{value.Integer(2), value.Float(0.5)})
	require.NoError(t, err)
	f, ok := results[0].AsFloatStrict()
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
}

func TestTableArrayGrowthThroughBytecode(t *testing.T) {
	// return (function() local t = {}; t[1]=10; t[2]=20; return t end)()
	as := vm.NewAssembler("=table-growth")
	as.Params(0, false)
	as.MaxStack(3)
	ten := as.Const(value.Integer(10))
	twenty := as.Const(value.Integer(20))

	as.ABC(vm.OpNewTable, 0, 0, 0, false)
	as.ABx(vm.OpLoadK, 1, ten)
	as.ABC(vm.OpSetI, 0, 1, 1, false) // t[1] = R1
	as.ABx(vm.OpLoadK, 1, twenty)
	as.ABC(vm.OpSetI, 0, 2, 1, false) // t[2] = R1
	as.ABC(vm.OpReturn1, 0, 0, 0, false)

	s := vm.NewState()
	cl := s.NewClosure(as.Finish(), nil)
	results, err := s.Call(cl, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	obj, ok := results[0].Object()
	require.True(t, ok)
	tbl := obj.(*luatable.Table)
	assert.Equal(t, int64(2), tbl.Len())
	assert.Equal(t, value.Integer(10), tbl.RawGet(value.Integer(1)))
	assert.Equal(t, value.Integer(20), tbl.RawGet(value.Integer(2)))
}

func TestUpvalueCaptureSharedBetweenClosures(t *testing.T) {
	// Outer frame register 0 holds a counter; two inner closures both
	// capture it as upvalue 0: one increments it (GETUPVAL+ADD+SETUPVAL),
	// the other reads it (GETUPVAL+RETURN1).
	incAs := vm.NewAssembler("=inc")
	incAs.Params(0, false)
	incAs.MaxStack(2)
	one := incAs.Const(value.Integer(1))
	incAs.ABC(vm.OpGetUpval, 0, 0, 0, false)
	incAs.ABx(vm.OpLoadK, 1, one)
	incAs.ABC(vm.OpAdd, 0, 0, 1, false)
	incAs.ABC(vm.OpSetUpval, 0, 0, 0, false)
	incAs.ABC(vm.OpReturn0, 0, 0, 0, false)
	incProto := incAs.Finish()
	incProto.Upvalues = []vm.UpvalDesc{{Name: "counter", InStack: true, Index: 0}}

	readAs := vm.NewAssembler("=read")
	readAs.Params(0, false)
	readAs.MaxStack(1)
	readAs.ABC(vm.OpGetUpval, 0, 0, 0, false)
	readAs.ABC(vm.OpReturn1, 0, 0, 0, false)
	readProto := readAs.Finish()
	readProto.Upvalues = []vm.UpvalDesc{{Name: "counter", InStack: true, Index: 0}}

	outer := vm.NewAssembler("=outer")
	outer.Params(0, false)
	outer.MaxStack(3)
	zero := outer.Const(value.Integer(0))
	outer.ABx(vm.OpLoadK, 0, zero)
	incIdx := outer.ChildProto(incProto)
	readIdx := outer.ChildProto(readProto)
	outer.ABx(vm.OpClosure, 1, incIdx)
	outer.ABx(vm.OpClosure, 2, readIdx)
	// call inc() twice, then call read() and return its result
	outer.ABC(vm.OpCall, 1, 1, 1, false)
	outer.ABC(vm.OpCall, 1, 1, 1, false)
	outer.ABC(vm.OpCall, 2, 1, 2, false)
	outer.ABC(vm.OpReturn1, 2, 0, 0, false)

	s := vm.NewState()
	cl := s.NewClosure(outer.Finish(), nil)
	results, err := s.Call(cl, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, value.Integer(2), results[0])
}

func TestIndexMetamethodChain(t *testing.T) {
	s := vm.NewState()
	base := s.NewTable(0, 1)
	require.NoError(t, base.RawSet(s.Interner.CreateString("greeting"), s.Interner.CreateString("hi")))

	mid := s.NewTable(0, 1)
	midMeta := s.NewTable(0, 1)
	require.NoError(t, midMeta.RawSet(s.Interner.CreateString("__index"), value.FromObject(base)))
	mid.SetMetatable(midMeta)

	leaf := s.NewTable(0, 0)
	leafMeta := s.NewTable(0, 1)
	require.NoError(t, leafMeta.RawSet(s.Interner.CreateString("__index"), value.FromObject(mid)))
	leaf.SetMetatable(leafMeta)

	v, err := s.Index(value.FromObject(leaf), s.Interner.CreateString("greeting"))
	require.NoError(t, err)
	assert.True(t, v.IsString())
}

func TestCoroutineYieldResume(t *testing.T) {
	s := vm.NewState()
	entry := s.NewGoClosure("gen", func(s *vm.State, args []value.Value) ([]value.Value, error) {
		first, err := s.Yield([]value.Value{value.Integer(1)})
		if err != nil {
			return nil, err
		}
		_ = first
		_, err = s.Yield([]value.Value{value.Integer(2)})
		if err != nil {
			return nil, err
		}
		return []value.Value{value.Integer(3)}, nil
	})

	co := s.NewCoroutine(entry)

	r1, err := s.Resume(co, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Integer(1), r1[0])
	assert.Equal(t, vm.StatusSuspended, co.Status())

	r2, err := s.Resume(co, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Integer(2), r2[0])

	r3, err := s.Resume(co, nil)
	require.NoError(t, err)
	assert.Equal(t, value.Integer(3), r3[0])
	assert.Equal(t, vm.StatusDead, co.Status())
}

func TestPCallCatchesRuntimeError(t *testing.T) {
	s := vm.NewState()
	boom := s.NewGoClosure("boom", func(s *vm.State, args []value.Value) ([]value.Value, error) {
		return nil, assertErr{}
	})

	ok, results := s.PCall(value.FromObject(boom), nil)
	assert.False(t, ok)
	require.Len(t, results, 1)
	assert.True(t, results[0].IsString())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
