package gc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plaidvm/luacore/gc"
	"github.com/plaidvm/luacore/value"
)

type fakeObj struct {
	gc.Header
	refs []*fakeObj
}

func (o *fakeObj) GCHeader() *gc.Header { return &o.Header }
func (o *fakeObj) GCTag() value.Tag     { return value.TagLightUserdata }
func (o *fakeObj) Trace(mark func(value.Value)) {
	for _, r := range o.refs {
		mark(value.FromObject(r))
	}
}

type fakeRoot struct{ roots []*fakeObj }

func (r *fakeRoot) TraceRoots(mark func(value.Value)) {
	for _, o := range r.roots {
		mark(value.FromObject(o))
	}
}

func TestArenaReusesFreedSlots(t *testing.T) {
	arena := gc.NewArena[*fakeObj](4)
	a := arena.New(&fakeObj{})
	b := arena.New(&fakeObj{})
	_ = b
	assert.Equal(t, 2, arena.Len())

	// nothing marked: both get swept
	freed := arena.Sweep()
	assert.Equal(t, 2, freed)
	assert.Equal(t, 0, arena.Len())

	_ = a
	c := arena.New(&fakeObj{})
	assert.Equal(t, 1, arena.Len())
	assert.NotNil(t, c)
}

func TestFixedObjectsSurviveSweep(t *testing.T) {
	arena := gc.NewArena[*fakeObj](4)
	obj := arena.New(&fakeObj{})
	obj.SetFixed()
	freed := arena.Sweep()
	assert.Equal(t, 0, freed)
}

func TestCollectorMarksTransitiveReferences(t *testing.T) {
	arena := gc.NewArena[*fakeObj](4)
	leaf := arena.New(&fakeObj{})
	mid := arena.New(&fakeObj{refs: []*fakeObj{leaf}})
	unreachable := arena.New(&fakeObj{})
	_ = unreachable

	root := &fakeRoot{roots: []*fakeObj{mid}}
	c := &gc.Collector{}
	stats := c.Collect([]gc.Root{root}, []gc.Pool{arena})

	assert.Equal(t, 1, stats.Freed) // only `unreachable`
	assert.Equal(t, 2, arena.Len())
}

func TestHeaderMarkOnlyTransitionsOnce(t *testing.T) {
	var h gc.Header
	assert.True(t, h.Mark())
	assert.False(t, h.Mark())
	h.ClearMark()
	assert.True(t, h.Mark())
}
