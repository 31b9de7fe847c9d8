package table

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/smog/pkg/object"
)

// key returns the same *object.String instance for the same text within a
// test, the way gc.CopyString's interning guarantees in real use — Table
// compares keys by identity, not content, since every caller is expected
// to hand it already-interned strings.
var internCache = map[string]*object.String{}

func key(s string) *object.String {
	if existing, ok := internCache[s]; ok {
		return existing
	}
	str := object.NewStringFromBytes([]byte(s))
	internCache[s] = str
	return str
}

func TestSetGetDelete(t *testing.T) {
	tbl := New()
	a := key("alpha")

	isNew := tbl.Set(a, object.Number(1))
	assert.True(t, isNew)

	v, ok := tbl.Get(a)
	assert.True(t, ok)
	assert.Equal(t, float64(1), v.AsNumber())

	isNew = tbl.Set(a, object.Number(2))
	assert.False(t, isNew)
	v, _ = tbl.Get(a)
	assert.Equal(t, float64(2), v.AsNumber())

	assert.True(t, tbl.Delete(a))
	_, ok = tbl.Get(a)
	assert.False(t, ok)
	assert.False(t, tbl.Delete(a))
}

func TestTombstoneDoesNotBreakProbeChain(t *testing.T) {
	tbl := New()
	keys := make([]*object.String, 0, 20)
	for i := 0; i < 20; i++ {
		k := key(string(rune('a' + i)))
		keys = append(keys, k)
		tbl.Set(k, object.Number(float64(i)))
	}

	// Delete several entries, then confirm every surviving key (including
	// ones whose probe sequence passed through a now-tombstoned slot) is
	// still reachable.
	for i := 0; i < 20; i += 2 {
		tbl.Delete(keys[i])
	}
	for i := 1; i < 20; i += 2 {
		v, ok := tbl.Get(keys[i])
		assert.True(t, ok, "key %d should still be found", i)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestGrowPreservesEntries(t *testing.T) {
	tbl := New()
	const n = 200
	keys := make([]*object.String, n)
	for i := 0; i < n; i++ {
		keys[i] = key(string(rune('A')) + string(rune(i)))
		tbl.Set(keys[i], object.Number(float64(i)))
	}
	for i := 0; i < n; i++ {
		v, ok := tbl.Get(keys[i])
		assert.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
}

func TestFindString(t *testing.T) {
	tbl := New()
	a := key("hello")
	tbl.Set(a, object.Bool(true))

	found := tbl.FindString([]byte("hello"), object.HashBytes([]byte("hello")))
	assert.Same(t, a, found)

	assert.Nil(t, tbl.FindString([]byte("nope"), object.HashBytes([]byte("nope"))))
}

func TestRemoveWhite(t *testing.T) {
	tbl := New()
	marked := key("kept")
	marked.SetMarked(true)
	unmarked := key("gone")

	tbl.Set(marked, object.Bool(true))
	tbl.Set(unmarked, object.Bool(true))

	tbl.RemoveWhite()

	_, ok := tbl.Get(marked)
	assert.True(t, ok)
	_, ok = tbl.Get(unmarked)
	assert.False(t, ok)
}

func TestAddAll(t *testing.T) {
	src := New()
	src.Set(key("a"), object.Number(1))
	src.Set(key("b"), object.Number(2))

	dst := New()
	dst.Set(key("a"), object.Number(0))
	AddAll(dst, src)

	v, _ := dst.Get(key("a"))
	assert.Equal(t, float64(1), v.AsNumber())
	v, _ = dst.Get(key("b"))
	assert.Equal(t, float64(2), v.AsNumber())
}
