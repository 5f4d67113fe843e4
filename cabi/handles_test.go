package cabi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLifecycle(t *testing.T) {
	tbl := NewTable[*Value]()
	v := NewMap()
	h := tbl.Put(v)
	require.NotZero(t, h)
	assert.Same(t, v, tbl.Get("get", h))
	assert.Equal(t, 1, tbl.Len())

	got, ok := tbl.Take("free", h)
	require.True(t, ok)
	assert.Same(t, v, got)
	assert.Equal(t, 0, tbl.Len())

	_, ok = tbl.Take("free", 0)
	assert.False(t, ok, "freeing null is a no-op")
}

func TestTableHandlesAreNotReused(t *testing.T) {
	tbl := NewTable[int]()
	a := tbl.Put(1)
	_, _ = tbl.Take("free", a)
	b := tbl.Put(2)
	assert.NotEqual(t, a, b)
}

func TestTableViolations(t *testing.T) {
	tbl := NewTable[int]()
	h := tbl.Put(1)
	_, _ = tbl.Take("free", h)

	assert.PanicsWithValue(t, ContractViolation{Op: "get", Reason: "null handle"}, func() { tbl.Get("get", 0) })
	assert.Panics(t, func() { tbl.Get("get", h) })
	assert.Panics(t, func() { tbl.Take("free", h) })
}
