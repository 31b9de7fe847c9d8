// Package gc implements the single allocation hook and the tri-colour
// mark-sweep collector that owns every heap object created while a program
// runs (spec §4.E). Neither the VM nor the compiler ever allocates an
// object.Obj directly — they go through GC's New* constructors, so every
// live object is reachable from gc.objects and counted in bytesAllocated.
//
// pkg/gc sits below pkg/vm and pkg/compiler in the import graph (both of
// those import gc, not the other way around), so the set of GC roots is
// expressed as the RootSource interface rather than a concrete dependency
// on *vm.VM or *compiler.Compiler.
package gc

import (
	"log/slog"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/table"
)

// HeapGrowFactor is clox's GC_HEAP_GROW_FACTOR: after a collection, the
// next one is triggered once bytesAllocated reaches this multiple of what
// survived the current one.
const HeapGrowFactor = 2

// initialNextGC is clox's first threshold, 1 MiB, chosen so a program's
// early allocations don't trigger a pointless collection before there is
// anything worth reclaiming.
const initialNextGC = 1 << 20

// RootSource lets a component that holds long-lived object references
// participate in marking without gc importing that component's package.
// *vm.VM and *compiler.Compiler each implement this.
type RootSource interface {
	MarkRoots(gc *GC)
}

// GC is the collector and the sole owner of the live-object list and the
// string intern table. One GC is shared by a VM and whatever Compiler is
// currently feeding it bytecode.
type GC struct {
	objects object.Obj
	strings *table.Table

	bytesAllocated int64
	nextGC         int64

	grey      []object.Obj
	tempRoots []object.Obj

	vm         RootSource
	compiler   RootSource
	initString *object.String

	stress bool
	logger *slog.Logger
}

// Option configures a GC at construction time.
type Option func(*GC)

// WithStress forces a full collection before every allocation — spec
// §4.E's DEBUG_STRESS_GC build flag, exposed here as a runtime switch so
// tests can exercise the collector on every allocation without a build tag.
func WithStress(stress bool) Option {
	return func(g *GC) { g.stress = stress }
}

// WithLogger attaches a structured logger that receives one debug-level
// record after each collection cycle (bytes before and after, new
// threshold). A nil logger (the default) disables this entirely.
func WithLogger(logger *slog.Logger) Option {
	return func(g *GC) { g.logger = logger }
}

// New returns a GC with an empty object list and intern table.
func New(opts ...Option) *GC {
	g := &GC{
		strings: table.New(),
		nextGC:  initialNextGC,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.initString = g.CopyString([]byte("init"))
	return g
}

// SetRoots registers the VM and compiler whose live state must be scanned
// on every collection. Compiler may be nil between compilations (spec
// §4.G: markCompilerRoots is only meaningful while compiling).
func (g *GC) SetRoots(vm, compiler RootSource) {
	g.vm = vm
	g.compiler = compiler
}

// Strings returns the intern table, so the VM can look up/define globals
// keyed by the same interned strings the collector tracks.
func (g *GC) Strings() *table.Table { return g.strings }

// InitString is the interned "init" string the VM looks up in a class's
// method table when constructing an instance (spec §4.E root list, item
// 5). The compiler recognises init by the method's Go string name instead.
func (g *GC) InitString() *object.String { return g.initString }

// BytesAllocated reports the collector's running estimate of live heap
// size, for diagnostics and tests of the growth heuristic.
func (g *GC) BytesAllocated() int64 { return g.bytesAllocated }

func sizeOf(o object.Obj) int64 {
	switch v := o.(type) {
	case *object.String:
		return int64(24 + len(v.Bytes))
	case *object.Function:
		return 48
	case *object.Native:
		return 32
	case *object.Closure:
		return int64(24 + 8*len(v.Upvalues))
	case *object.Upvalue:
		return 32
	case *object.Class:
		return 24
	case *object.Instance:
		return 24
	case *object.BoundMethod:
		return 32
	default:
		return 16
	}
}

// register links a freshly built object into the live list, charges its
// estimated size against bytesAllocated, and — mirroring reallocate's
// "growing allocation may trigger collect_garbage" rule — runs a
// collection first when the new total would cross next_gc (or always,
// under stress mode).
func (g *GC) register(o object.Obj) {
	size := sizeOf(o)
	if g.stress || g.bytesAllocated+size > g.nextGC {
		g.Collect()
	}
	o.SetNext(g.objects)
	g.objects = o
	g.bytesAllocated += size
}

// pushTemp/popTemp implement the "push the new object as a temporary root"
// discipline spec §4.E requires of every multi-step allocation helper.
// The spec's original pushes onto the VM's operand stack; that isn't
// available here (gc cannot import vm without creating a cycle), so the
// same guarantee is provided by a root stack private to the collector —
// any object pushed here is marked exactly like a stack slot would be,
// for exactly as long as it takes the helper to finish linking the object
// into a durable root (see DESIGN.md, Open Question decisions).
func (g *GC) pushTemp(o object.Obj) { g.tempRoots = append(g.tempRoots, o) }
func (g *GC) popTemp()              { g.tempRoots = g.tempRoots[:len(g.tempRoots)-1] }

// CopyString interns a new string built from a copy of chars, or returns
// the existing interned String if an equal one already exists (spec
// §4.C/§4.E's `copy` entry point).
func (g *GC) CopyString(chars []byte) *object.String {
	hash := object.HashBytes(chars)
	if existing := g.strings.FindString(chars, hash); existing != nil {
		return existing
	}
	s := object.NewStringFromBytes(chars)
	g.register(s)
	g.pushTemp(s)
	g.strings.Set(s, object.Bool(true))
	g.popTemp()
	return s
}

// TakeString interns a buffer the caller already owns. If an equal string
// is already interned, the caller's buffer is simply dropped (Go's GC
// reclaims it; there is no explicit free to perform) and the interned
// String is returned instead — spec §4.E's `take` entry point.
func (g *GC) TakeString(bufWithNul []byte) *object.String {
	chars := bufWithNul[:len(bufWithNul)-1]
	hash := object.HashBytes(chars)
	if existing := g.strings.FindString(chars, hash); existing != nil {
		return existing
	}
	s := object.AdoptBytes(bufWithNul)
	g.register(s)
	g.pushTemp(s)
	g.strings.Set(s, object.Bool(true))
	g.popTemp()
	return s
}

// NewFunction allocates an empty, GC-tracked Function.
func (g *GC) NewFunction() *object.Function {
	f := object.NewFunction()
	g.register(f)
	return f
}

// NewNative allocates a GC-tracked native-function wrapper.
func (g *GC) NewNative(name string, fn object.NativeFn) *object.Native {
	n := object.NewNative(name, fn)
	g.register(n)
	return n
}

// NewClosure allocates a GC-tracked closure over fn.
func (g *GC) NewClosure(fn *object.Function) *object.Closure {
	c := object.NewClosure(fn)
	g.register(c)
	return c
}

// NewUpvalue allocates a GC-tracked open upvalue pointing at the stack
// cell slot, whose absolute stack index is slotIndex.
func (g *GC) NewUpvalue(slot *object.Value, slotIndex int) *object.Upvalue {
	u := object.NewUpvalue(slot, slotIndex)
	g.register(u)
	return u
}

// NewClass allocates a GC-tracked class named name, with its own (also
// newly allocated) method table — the same pkg/table.Table type an
// instance's field table uses.
func (g *GC) NewClass(name *object.String) *object.Class {
	c := object.NewClass(name, table.New())
	g.register(c)
	return c
}

// NewInstance allocates a GC-tracked instance of class, with its own
// (also newly allocated) field table.
func (g *GC) NewInstance(class *object.Class) *object.Instance {
	i := object.NewInstance(class, table.New())
	g.register(i)
	return i
}

// NewBoundMethod allocates a GC-tracked method bound to receiver.
func (g *GC) NewBoundMethod(receiver object.Value, method *object.Closure) *object.BoundMethod {
	b := object.NewBoundMethod(receiver, method)
	g.register(b)
	return b
}

// MarkObject greys o: sets its mark bit and pushes it onto the grey stack
// for blacken to process, unless it is already marked (every object
// is greyed at most once per cycle).
func (g *GC) MarkObject(o object.Obj) {
	if o == nil || o.Marked() {
		return
	}
	o.SetMarked(true)
	g.grey = append(g.grey, o)
}

// MarkValue marks v's referenced object, if v holds one; Nil/Bool/Number
// values carry nothing for the collector to trace.
func (g *GC) MarkValue(v object.Value) {
	if v.IsObject() {
		g.MarkObject(v.AsObject())
	}
}

// MarkTable marks every live key and value in t (spec §4.E: "a table is
// marked by marking each occupied key and value").
func (g *GC) MarkTable(t *table.Table) {
	if t == nil {
		return
	}
	t.Each(func(key *object.String, v object.Value) {
		g.MarkObject(key)
		g.MarkValue(v)
	})
}

// Collect runs one full mark-sweep cycle: mark roots, trace to a fixed
// point, weaken the intern table, sweep, and recompute next_gc.
func (g *GC) Collect() {
	before := g.bytesAllocated
	g.markRoots()
	g.traceReferences()
	g.strings.RemoveWhite()
	g.sweep()
	g.nextGC = g.bytesAllocated * HeapGrowFactor
	if g.logger != nil {
		g.logger.Debug("gc collect",
			"before", before, "after", g.bytesAllocated, "next_gc", g.nextGC)
	}
}

func (g *GC) markRoots() {
	for _, o := range g.tempRoots {
		g.MarkObject(o)
	}
	if g.vm != nil {
		g.vm.MarkRoots(g)
	}
	if g.compiler != nil {
		g.compiler.MarkRoots(g)
	}
	g.MarkObject(g.initString)
}

// traceReferences drains the grey stack, blackening each object in turn.
// blacken may grey further objects, so this loops until the stack
// is empty rather than iterating it once.
func (g *GC) traceReferences() {
	for len(g.grey) > 0 {
		o := g.grey[len(g.grey)-1]
		g.grey = g.grey[:len(g.grey)-1]
		g.blacken(o)
	}
}

// blacken marks every object a given object variant directly references,
// per the per-variant list in spec §4.E.
func (g *GC) blacken(o object.Obj) {
	switch v := o.(type) {
	case *object.String, *object.Native:
		// no references to trace.
	case *object.Function:
		if v.Name != nil {
			g.MarkObject(v.Name)
		}
		if chunk, ok := v.Chunk.(*bytecode.Chunk); ok {
			for _, c := range chunk.Constants {
				g.MarkValue(c)
			}
		}
	case *object.Closure:
		g.MarkObject(v.Function)
		for _, uv := range v.Upvalues {
			if uv != nil {
				g.MarkObject(uv)
			}
		}
	case *object.Upvalue:
		g.MarkValue(v.Closed)
	case *object.Class:
		g.MarkObject(v.Name)
		v.Methods.Each(func(name *object.String, val object.Value) {
			g.MarkObject(name)
			g.MarkValue(val)
		})
	case *object.Instance:
		g.MarkObject(v.Class)
		if fields, ok := v.Fields.(*table.Table); ok {
			g.MarkTable(fields)
		}
	case *object.BoundMethod:
		g.MarkValue(v.Receiver)
		g.MarkObject(v.Method)
	}
}

// sweep walks the live-object list once: survivors are unmarked for the
// next cycle and kept, the rest are unlinked. Go's own collector reclaims
// the memory once nothing here still references them; sweep's job is
// solely to maintain bytesAllocated and the objects list's accuracy as a
// liveness oracle, which is what RemoveWhite and the next cycle's roots
// depend on.
func (g *GC) sweep() {
	var head, tail object.Obj
	var freed int64
	for o := g.objects; o != nil; {
		next := o.Next()
		if o.Marked() {
			o.SetMarked(false)
			o.SetNext(nil)
			if tail == nil {
				head = o
			} else {
				tail.SetNext(o)
			}
			tail = o
		} else {
			freed += sizeOf(o)
		}
		o = next
	}
	g.objects = head
	g.bytesAllocated -= freed
}
