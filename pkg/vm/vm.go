// Package vm implements the bytecode dispatch loop: call frames, the
// operand stack, global/upvalue resolution, and every opcode's runtime
// behavior (spec §4.F). It keeps the teacher's fixed operand stack and
// pkg/vm/vm.go's New()/Run() idiom (push and pop here do no bounds checks
// of their own; the frame limit in call bounds the stack) while replacing the teacher's
// string-selector message dispatch with direct opcode handlers, and adds
// the call-frame/upvalue/class machinery the teacher's Smalltalk VM
// never needed (grounded on original_source/VM.C/vm.c).
package vm

import (
	"fmt"
	"io"

	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/gc"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/table"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the base index into the VM's shared stack
// where this call's locals (slot 0 is the receiver/callee) begin.
type CallFrame struct {
	closure *object.Closure
	ip      int
	slots   int
}

// VM is a single-threaded bytecode interpreter. One VM owns one GC, one
// globals table, and the open-upvalue chain threading every closure
// currently sharing a not-yet-closed stack slot.
type VM struct {
	frames     [framesMax]CallFrame
	frameCount int

	stack    [stackMax]object.Value
	stackTop int

	globals      *table.Table
	gc           *gc.GC
	openUpvalues *object.Upvalue

	stdout   io.Writer
	debugger *Debugger
}

// AttachDebugger wires d into this VM's dispatch loop: every instruction
// is checked against d's breakpoints/step mode before it runs. Pass nil
// to detach.
func (vm *VM) AttachDebugger(d *Debugger) { vm.debugger = d }

// New returns a VM allocating through g and writing `print` output to
// stdout. g is shared with whatever Compiler feeds this VM bytecode, so
// interned strings and allocation bookkeeping stay consistent across
// repeated REPL compiles.
func New(g *gc.GC, stdout io.Writer) *VM {
	vm := &VM{globals: table.New(), gc: g, stdout: stdout}
	g.SetRoots(vm, nil)
	vm.DefineStandardNatives()
	return vm
}

// MarkRoots implements gc.RootSource: the operand stack, every frame's
// closure, every open upvalue, and the globals table are exactly the
// roots spec §4.E's mark phase lists (items 1-4; init_string and the
// compiler's roots are supplied by gc.GC and Compiler respectively).
func (vm *VM) MarkRoots(g *gc.GC) {
	for i := 0; i < vm.stackTop; i++ {
		g.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		g.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		g.MarkObject(uv)
	}
	g.MarkTable(vm.globals)
}

func (vm *VM) push(v object.Value) { vm.stack[vm.stackTop] = v; vm.stackTop++ }
func (vm *VM) pop() object.Value   { vm.stackTop--; return vm.stack[vm.stackTop] }
func (vm *VM) peek(distance int) object.Value { return vm.stack[vm.stackTop-1-distance] }

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles and runs source in one call, the shape a REPL or a
// `smog run` invocation wants.
func (vm *VM) Interpret(source string) (object.Value, error) {
	c := compiler.New(vm.gc)
	vm.gc.SetRoots(vm, c)
	fn, err := c.Compile(source)
	vm.gc.SetRoots(vm, nil)
	if err != nil {
		return object.Nil(), err
	}
	return vm.Run(fn)
}

// Run wraps fn in a closure, calls it, and drives the dispatch loop to
// completion, returning the top-of-stack value left by its implicit or
// explicit top-level `return`.
func (vm *VM) Run(fn *object.Function) (object.Value, error) {
	vm.resetStack()
	vm.push(object.FromObject(fn))
	closure := vm.gc.NewClosure(fn)
	vm.pop()
	vm.push(object.FromObject(closure))
	if err := vm.call(closure, 0); err != nil {
		return object.Nil(), err
	}
	return vm.dispatch()
}

// RunChunk runs a bare chunk loaded from a `.sg` file, the path `smog run
// file.sg` takes: unlike Interpret/Run it has no source and no Function
// wrapper yet, so one is built here. name is not used: the wrapper is
// unnamed, so it displays as "<script>" and traces read "in script".
//
// ReadChunk's constants are plain, non-interned object.String values
// (bytecode can't import gc: gc already imports bytecode, so the reverse
// would cycle). Every String constant is re-interned here, once, before
// the chunk ever runs, so `.sg`-loaded literals compare equal by `==` to
// both each other and any runtime string with the same bytes, same as
// every String this VM produces any other way. The wrapper function sits
// on the stack meanwhile, so a collection between two re-interned
// constants keeps the earlier ones.
func (vm *VM) RunChunk(chunk *bytecode.Chunk, name string) (object.Value, error) {
	fn := vm.gc.NewFunction()
	fn.Chunk = chunk
	fn.Arity = 0
	fn.UpvalueCount = 0

	vm.push(object.FromObject(fn))
	for i, v := range chunk.Constants {
		if object.IsString(v) {
			chunk.Constants[i] = object.FromObject(vm.gc.CopyString([]byte(object.AsString(v).Chars())))
		}
	}
	vm.pop()
	return vm.Run(fn)
}

func (vm *VM) currentFrame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) chunk(frame *CallFrame) *bytecode.Chunk {
	ch, _ := frame.closure.Function.Chunk.(*bytecode.Chunk)
	return ch
}

func (vm *VM) readByte(frame *CallFrame) byte {
	b := vm.chunk(frame).Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readUint16(frame *CallFrame) int {
	hi := vm.readByte(frame)
	lo := vm.readByte(frame)
	return int(hi)<<8 | int(lo)
}

func (vm *VM) readConstant(frame *CallFrame) object.Value {
	return vm.chunk(frame).Constants[vm.readByte(frame)]
}

func (vm *VM) readString(frame *CallFrame) *object.String {
	return object.AsString(vm.readConstant(frame))
}

func (vm *VM) line(frame *CallFrame) int {
	ch := vm.chunk(frame)
	idx := frame.ip - 1
	if idx < 0 || idx >= len(ch.Lines) {
		return 0
	}
	return ch.Lines[idx]
}

func (vm *VM) stackTrace() []string {
	trace := make([]string, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		ch := fn.Chunk.(*bytecode.Chunk)
		ln := 0
		if frame.ip-1 >= 0 && frame.ip-1 < len(ch.Lines) {
			ln = ch.Lines[frame.ip-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars() + "()"
		}
		trace = append(trace, fmt.Sprintf("[line %d] in %s", ln, name))
	}
	return trace
}

func (vm *VM) runtimeError(format string, args ...interface{}) *RuntimeError {
	return runtimeErrorf(vm.stackTrace(), format, args...)
}

// dispatch is the interpreter's main loop: fetch-decode-execute over the
// current frame's chunk until an OP_RETURN unwinds the last frame.
func (vm *VM) dispatch() (object.Value, error) {
	frame := vm.currentFrame()
	for {
		if vm.debugger != nil {
			if !vm.debugger.beforeInstruction(frame) {
				return object.Nil(), vm.runtimeError("execution halted by debugger")
			}
		}
		op := bytecode.Opcode(vm.readByte(frame))
		switch op {
		case bytecode.OpConstant:
			vm.push(vm.readConstant(frame))

		case bytecode.OpNil:
			vm.push(object.Nil())
		case bytecode.OpTrue:
			vm.push(object.Bool(true))
		case bytecode.OpFalse:
			vm.push(object.Bool(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := int(vm.readByte(frame))
			vm.push(vm.stack[frame.slots+slot])
		case bytecode.OpSetLocal:
			slot := int(vm.readByte(frame))
			vm.stack[frame.slots+slot] = vm.peek(0)

		case bytecode.OpGetGlobal:
			name := vm.readString(frame)
			v, ok := vm.globals.Get(name)
			if !ok {
				return object.Nil(), vm.runtimeError("Undefined variable '%s'.", name.Chars())
			}
			vm.push(v)
		case bytecode.OpDefineGlobal:
			name := vm.readString(frame)
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OpSetGlobal:
			name := vm.readString(frame)
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return object.Nil(), vm.runtimeError("Undefined variable '%s'.", name.Chars())
			}

		case bytecode.OpGetUpvalue:
			slot := int(vm.readByte(frame))
			vm.push(frame.closure.Upvalues[slot].Get())
		case bytecode.OpSetUpvalue:
			slot := int(vm.readByte(frame))
			frame.closure.Upvalues[slot].Set(vm.peek(0))

		case bytecode.OpGetProperty:
			if err := vm.getProperty(frame); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpSetProperty:
			if err := vm.setProperty(frame); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpGetSuper:
			name := vm.readString(frame)
			superclass := object.AsClass(vm.pop())
			if err := vm.bindMethod(superclass, name); err != nil {
				return object.Nil(), err
			}

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(object.Bool(object.Equal(a, b)))
		case bytecode.OpGreater, bytecode.OpLess:
			if err := vm.compare(op); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpAdd:
			if err := vm.add(); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
			if err := vm.arithmetic(op); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpNot:
			vm.push(object.Bool(vm.pop().IsFalsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return object.Nil(), vm.runtimeError("Operand must be a number.")
			}
			vm.push(object.Number(-vm.pop().AsNumber()))

		case bytecode.OpPrint:
			fmt.Fprintln(vm.stdout, vm.pop().String())

		case bytecode.OpJump:
			offset := vm.readUint16(frame)
			frame.ip += offset
		case bytecode.OpJumpIfFalse:
			offset := vm.readUint16(frame)
			if vm.peek(0).IsFalsey() {
				frame.ip += offset
			}
		case bytecode.OpLoop:
			offset := vm.readUint16(frame)
			frame.ip -= offset

		case bytecode.OpCall:
			argCount := int(vm.readByte(frame))
			if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
				return object.Nil(), err
			}
			frame = vm.currentFrame()

		case bytecode.OpInvoke:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			if err := vm.invoke(name, argCount); err != nil {
				return object.Nil(), err
			}
			frame = vm.currentFrame()

		case bytecode.OpSuperInvoke:
			name := vm.readString(frame)
			argCount := int(vm.readByte(frame))
			superclass := object.AsClass(vm.pop())
			if err := vm.invokeFromClass(superclass, name, argCount); err != nil {
				return object.Nil(), err
			}
			frame = vm.currentFrame()

		case bytecode.OpClosure:
			fn := object.AsFunction(vm.readConstant(frame))
			closure := vm.gc.NewClosure(fn)
			vm.push(object.FromObject(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(frame)
				index := int(vm.readByte(frame))
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + index)
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.pop()

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(frame.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return result, nil
			}
			vm.stackTop = frame.slots
			vm.push(result)
			frame = vm.currentFrame()

		case bytecode.OpClass:
			name := vm.readString(frame)
			vm.push(object.FromObject(vm.gc.NewClass(name)))
		case bytecode.OpInherit:
			if err := vm.inherit(); err != nil {
				return object.Nil(), err
			}
		case bytecode.OpMethod:
			vm.defineMethod(vm.readString(frame))

		default:
			return object.Nil(), vm.runtimeError("unknown opcode %d", op)
		}
	}
}
