package strtab_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plaidvm/luacore/strtab"
)

func TestShortStringsAreInterned(t *testing.T) {
	in := strtab.NewInterner()
	a := in.Create([]byte("hello"))
	b := in.Create([]byte("hello"))
	assert.Same(t, a, b)
}

func TestLongStringsAreNotInterned(t *testing.T) {
	in := strtab.NewInterner()
	long := strings.Repeat("x", strtab.ShortStringLimit+1)
	a := in.Create([]byte(long))
	b := in.Create([]byte(long))
	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
}

func TestFixedSurvivesSweep(t *testing.T) {
	in := strtab.NewInterner()
	s := in.Fixed("__index")
	freed := in.Sweep()
	assert.Equal(t, 0, freed)
	assert.True(t, s.Marked() == false) // Fixed strings skip the mark requirement entirely
}

func TestSweepFreesUnreferencedShortStrings(t *testing.T) {
	in := strtab.NewInterner()
	in.Create([]byte("throwaway"))
	freed := in.Sweep()
	assert.Equal(t, 1, freed)

	again := in.Create([]byte("throwaway"))
	assert.NotNil(t, again)
}

func TestGrowRehashesAllBuckets(t *testing.T) {
	in := strtab.NewInterner()
	seen := map[string]*strtab.String{}
	for i := 0; i < 200; i++ {
		s := in.Create([]byte{byte('a' + i%26), byte('0' + i%10), byte(i)})
		seen[string(s.Bytes())] = s
	}
	for content, want := range seen {
		got := in.Create([]byte(content))
		assert.Same(t, want, got)
	}
}
