// Package table implements the open-addressed hash table used for global
// variables, instance fields, and the VM's string intern set (spec §4.D).
//
// Entries are kept in a flat slice rather than a linked structure so probing
// stays cache-friendly; deletions leave a tombstone behind so that a probe
// sequence broken by an earlier delete still finds entries inserted after
// it. Every key is a *object.String, compared by hash then by identity —
// interning guarantees equal strings share one *object.String, so pointer
// equality is content equality.
package table

import "github.com/kristofer/smog/pkg/object"

const maxLoadFactor = 0.75

// entry is one slot in the backing array. A nil Key marks the slot empty;
// tombstone distinguishes "never used" (stop probing) from "deleted"
// (a live entry further down the probe sequence may still be found).
type entry struct {
	Key       *object.String
	Value     object.Value
	tombstone bool
}

// Table is clox's Table struct (spec §4.D) translated directly: Count
// includes tombstones (so the load-factor check fires growth at the right
// point), entries grows by doubling starting from 8.
type Table struct {
	count   int
	entries []entry
}

// New returns an empty table. The backing array is allocated lazily on
// first Set, matching clox's capacity-starts-at-zero behavior.
func New() *Table {
	return &Table{}
}

// Len reports the number of live (non-tombstone) entries.
func (t *Table) Len() int {
	live := 0
	for i := range t.entries {
		if t.entries[i].Key != nil && !t.entries[i].tombstone {
			live++
		}
	}
	return live
}

// Get returns the value stored for key, if any.
func (t *Table) Get(key *object.String) (object.Value, bool) {
	if len(t.entries) == 0 {
		return object.Nil(), false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return object.Nil(), false
	}
	return e.Value, true
}

// Set stores value under key, growing the table first if the load factor
// would exceed 0.75. Returns true if this created a new entry, false if it
// overwrote an existing one — mirroring clox's tableSet return value.
func (t *Table) Set(key *object.String, value object.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoadFactor {
		t.grow(growCapacity(len(t.entries)))
	}

	e := findEntry(t.entries, key)
	isNew := e.Key == nil
	if isNew && !e.tombstone {
		t.count++
	}
	e.Key = key
	e.Value = value
	e.tombstone = false
	return isNew
}

// Delete removes key's entry, leaving a tombstone so later probes past this
// slot still reach entries inserted after it.
func (t *Table) Delete(key *object.String) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = object.Bool(false)
	e.tombstone = true
	return true
}

// AddAll copies every live entry of src into dst. Nothing in this module
// calls it: OP_INHERIT copies a superclass's methods with Each and Set.
func AddAll(dst, src *Table) {
	for i := range src.entries {
		e := &src.entries[i]
		if e.Key != nil && !e.tombstone {
			dst.Set(e.Key, e.Value)
		}
	}
}

// FindString looks a string up by its raw bytes, hash, and length rather
// than by an already-interned *object.String — it's the primitive the
// intern table uses to discover whether an equal string already exists
// before allocating a new one (spec §4.E).
func (t *Table) FindString(chars []byte, hash uint32) *object.String {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.Key == nil {
			if !e.tombstone {
				return nil
			}
		} else if e.Key.Hash == hash && e.Key.Len() == len(chars) && string(e.Key.Bytes[:len(chars)]) == string(chars) {
			return e.Key
		}
		index = (index + 1) & mask
	}
}

// RemoveWhite deletes every entry whose key is unmarked — the intern
// table's weak-reference sweep (spec §4.E): a string interned but now
// unreachable from any root must not keep itself alive by being in this
// table.
func (t *Table) RemoveWhite() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil && !e.tombstone && !e.Key.Marked() {
			e.Key = nil
			e.Value = object.Bool(false)
			e.tombstone = true
		}
	}
}

// Each calls fn for every live entry, in slot order. Used by the collector
// to mark a table's contents (MarkTable, and class method tables in
// blacken) and by OP_INHERIT to copy a superclass's methods.
func (t *Table) Each(fn func(key *object.String, v object.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil && !e.tombstone {
			fn(e.Key, e.Value)
		}
	}
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// grow reallocates entries to newCapacity and reinserts every live entry,
// dropping tombstones — identical to clox's adjustCapacity, which is why
// Count is recomputed from scratch afterward instead of carried forward.
func (t *Table) grow(newCapacity int) {
	fresh := make([]entry, newCapacity)
	liveCount := 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.Key == nil || old.tombstone {
			continue
		}
		dst := findEntry(fresh, old.Key)
		dst.Key = old.Key
		dst.Value = old.Value
		liveCount++
	}
	t.entries = fresh
	t.count = liveCount
}

// findEntry runs clox's linear-probe search over entries, returning the
// slot where key lives or where it should be inserted: the first tombstone
// seen along the probe sequence, or the first truly empty slot if no
// tombstone was seen first.
func findEntry(entries []entry, key *object.String) *entry {
	mask := uint32(len(entries) - 1)
	index := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[index]
		switch {
		case e.Key == nil:
			if !e.tombstone {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		case e.Key == key:
			return e
		}
		index = (index + 1) & mask
	}
}
