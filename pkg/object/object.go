package object

import (
	"fmt"
)

// ObjType tags the concrete variant behind an Obj reference.
type ObjType uint8

const (
	ObjString ObjType = iota
	ObjFunction
	ObjNative
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
)

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "String"
	case ObjFunction:
		return "Function"
	case ObjNative:
		return "Native"
	case ObjClosure:
		return "Closure"
	case ObjUpvalue:
		return "Upvalue"
	case ObjClass:
		return "Class"
	case ObjInstance:
		return "Instance"
	case ObjBoundMethod:
		return "BoundMethod"
	default:
		return "Unknown"
	}
}

// Obj is satisfied by every heap object variant. It exposes exactly the
// bookkeeping the allocator and the collector need: a type tag, the
// tri-colour mark bit, and the intrusive "next" link that threads every
// live object through the VM's object list (spec §3, "Object header").
//
// is_marked is always false outside a collection cycle: Mark sets it
// during the mark phase, and Sweep clears it on every object it decides to
// keep.
type Obj interface {
	ObjType() ObjType
	Marked() bool
	SetMarked(bool)
	Next() Obj
	SetNext(Obj)
	String() string
}

// header is embedded in every concrete object variant, giving each the
// bookkeeping fields Obj requires without repeating the boilerplate.
type header struct {
	typ    ObjType
	marked bool
	next   Obj
}

func (h *header) ObjType() ObjType   { return h.typ }
func (h *header) Marked() bool       { return h.marked }
func (h *header) SetMarked(m bool)   { h.marked = m }
func (h *header) Next() Obj          { return h.next }
func (h *header) SetNext(n Obj)      { h.next = n }

// String is an immutable, interned byte sequence. Bytes carries a
// trailing NUL (length+1 bytes total) purely so host-side display code
// that expects a C-string-shaped buffer has one to hand; every Go-side
// consumer should use Chars(), not Bytes directly.
type String struct {
	header
	Bytes []byte // length+1 bytes, NUL-terminated
	Hash  uint32
}

// Chars returns the string's content without the trailing NUL.
func (s *String) Chars() string { return string(s.Bytes[:len(s.Bytes)-1]) }

// Len returns the string's length in bytes, excluding the NUL terminator.
func (s *String) Len() int { return len(s.Bytes) - 1 }

func (s *String) String() string { return s.Chars() }

// fnvOffsetBasis and fnvPrime are the 32-bit FNV-1a constants spec §4.C
// pins exactly. hash/fnv in the standard library computes the identical
// hash; this is spelled out by hand (as clox's object.c does) so the
// four-line loop is visibly the same algorithm a reviewer would find in
// hash/fnv.New32a(), not a divergent one.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// HashBytes computes the FNV-1a hash of chars, per spec §4.C.
func HashBytes(chars []byte) uint32 {
	h := fnvOffsetBasis
	for _, b := range chars {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return h
}

// NewStringFromBytes allocates a String wrapping a copy of chars. It does
// not intern — interning (and the GC-safety push/pop of the allocation
// helper contract, spec §4.E) is the job of pkg/gc's CopyString/TakeString,
// which are the only sanctioned way to produce a *String.
func NewStringFromBytes(chars []byte) *String {
	buf := make([]byte, len(chars)+1)
	copy(buf, chars)
	return &String{header: header{typ: ObjString}, Bytes: buf, Hash: HashBytes(chars)}
}

// AdoptBytes wraps an already-heap-allocated, NUL-terminated buffer
// (length+1, matching spec §4.C) without copying — the `take` entry point.
func AdoptBytes(bufWithNul []byte) *String {
	return &String{header: header{typ: ObjString}, Bytes: bufWithNul, Hash: HashBytes(bufWithNul[:len(bufWithNul)-1])}
}

// Function is a compiled, not-yet-closed-over chunk of code: a top-level
// script or a `fun` body. Chunk holds *bytecode.Chunk but is typed
// interface{} here to avoid an object<->bytecode import cycle — the same
// trick the nooga/paserati retrieval uses for Closure.Fn, for the same
// reason (Chunk's constant pool holds object.Value, so bytecode already
// imports object; object cannot import back).
type Function struct {
	header
	Arity        int
	UpvalueCount int
	Chunk        interface{} // *bytecode.Chunk
	Name         *String     // nil for the top-level script
}

func NewFunction() *Function {
	return &Function{header: header{typ: ObjFunction}}
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars())
}

// NativeFn is a host-supplied callable: (args) -> (result, error).
// A non-nil error becomes a runtime error exactly like any other VM fault.
type NativeFn func(args []Value) (Value, error)

// Native wraps a host function so it can be stored in a Value and called
// like any other callee.
type Native struct {
	header
	Name string
	Fn   NativeFn
}

func NewNative(name string, fn NativeFn) *Native {
	return &Native{header: header{typ: ObjNative}, Name: name, Fn: fn}
}

func (n *Native) String() string { return "<native fn>" }

// Upvalue is the indirection that lets closures share a captured local.
// While IsClosed is false the upvalue is "open": Location points at a live
// stack slot (owned by the VM, not by the upvalue). Closing it copies the
// slot's value into Closed and the upvalue becomes self-contained.
type Upvalue struct {
	header
	Location *Value // points into the operand stack while open
	Closed   Value  // holds the value once closed
	IsClosed bool
	Slot     int      // absolute stack index Location points at, while open
	NextOpen *Upvalue // next node in vm's open-upvalue list (descending Slot)
}

// NewUpvalue allocates an open upvalue pointing at slot, the stack cell
// at absolute index slotIndex. Go forbids ordering comparisons between
// pointers, so the VM's open-upvalue list is kept sorted by this integer
// index rather than by comparing *Value addresses directly.
func NewUpvalue(slot *Value, slotIndex int) *Upvalue {
	return &Upvalue{header: header{typ: ObjUpvalue}, Location: slot, Slot: slotIndex}
}

// Get returns the upvalue's current value, whether open or closed.
func (u *Upvalue) Get() Value {
	if u.IsClosed {
		return u.Closed
	}
	return *u.Location
}

// Set writes through to the stack slot (open) or the closed cell (closed).
func (u *Upvalue) Set(v Value) {
	if u.IsClosed {
		u.Closed = v
		return
	}
	*u.Location = v
}

// Close promotes an open upvalue: the stack slot's value is copied in and
// Location is redirected to the closed cell, exactly as spec §3 requires.
func (u *Upvalue) Close() {
	if u.IsClosed {
		return
	}
	u.Closed = *u.Location
	u.IsClosed = true
	u.Location = &u.Closed
}

func (u *Upvalue) String() string { return "upvalue" }

// Closure pairs a Function with the upvalues it captured at creation time.
// Multiple closures may share an Upvalue object (that's the whole point).
type Closure struct {
	header
	Function *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function) *Closure {
	return &Closure{header: header{typ: ObjClosure}, Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
}

func (c *Closure) String() string { return c.Function.String() }

// Class is a named bag of methods. Methods are Values wrapping *Closure,
// keyed by interned method-name *String, stored in the same open-addressed
// hash table type (pkg/table.Table) spec.md's data model specifies for
// "globals, instance fields, class methods, and the intern set" — passed
// in as a FieldTable by NewClass's caller (gc.NewClass) rather than
// constructed here, since object must not import table (table already
// imports object, for Value and *String).
type Class struct {
	header
	Name    *String
	Methods FieldTable
}

// FieldTable is satisfied by pkg/table.Table; kept as an interface here so
// object need not import table. Used for both Class.Methods and
// Instance.Fields, the two per-object tables spec.md's data model gives
// the same table type.
type FieldTable interface {
	Get(key *String) (Value, bool)
	Set(key *String, v Value) bool
	Delete(key *String) bool
	Each(func(key *String, v Value))
}

func NewClass(name *String, methods FieldTable) *Class {
	return &Class{header: header{typ: ObjClass}, Name: name, Methods: methods}
}

func (c *Class) String() string { return c.Name.Chars() }

// Instance is a live object: a class pointer plus a field table. Fields
// are looked up by name through the same table.Table used for globals, so
// spec §4.D's Get/Set/Delete semantics apply uniformly.
type Instance struct {
	header
	Class  *Class
	Fields FieldTable
}

func NewInstance(class *Class, fields FieldTable) *Instance {
	return &Instance{header: header{typ: ObjInstance}, Class: class, Fields: fields}
}

func (i *Instance) String() string { return fmt.Sprintf("%s instance", i.Class.Name.Chars()) }

// BoundMethod is a closure pre-bound to a receiver — what `instance.method`
// evaluates to when not immediately called.
type BoundMethod struct {
	header
	Receiver Value
	Method   *Closure
}

func NewBoundMethod(receiver Value, method *Closure) *BoundMethod {
	return &BoundMethod{header: header{typ: ObjBoundMethod}, Receiver: receiver, Method: method}
}

func (b *BoundMethod) String() string { return b.Method.String() }

// IsString/AsString etc. are tiny helpers for call sites that only care
// whether a Value happens to wrap a given object variant.
func IsString(v Value) bool       { return isObjType(v, ObjString) }
func IsFunction(v Value) bool     { return isObjType(v, ObjFunction) }
func IsNative(v Value) bool       { return isObjType(v, ObjNative) }
func IsClosure(v Value) bool      { return isObjType(v, ObjClosure) }
func IsClass(v Value) bool        { return isObjType(v, ObjClass) }
func IsInstance(v Value) bool     { return isObjType(v, ObjInstance) }
func IsBoundMethod(v Value) bool  { return isObjType(v, ObjBoundMethod) }

func isObjType(v Value, t ObjType) bool {
	return v.IsObject() && v.AsObject() != nil && v.AsObject().ObjType() == t
}

func AsString(v Value) *String           { return v.AsObject().(*String) }
func AsFunction(v Value) *Function       { return v.AsObject().(*Function) }
func AsNative(v Value) *Native           { return v.AsObject().(*Native) }
func AsClosure(v Value) *Closure         { return v.AsObject().(*Closure) }
func AsClass(v Value) *Class             { return v.AsObject().(*Class) }
func AsInstance(v Value) *Instance       { return v.AsObject().(*Instance) }
func AsBoundMethod(v Value) *BoundMethod { return v.AsObject().(*BoundMethod) }
