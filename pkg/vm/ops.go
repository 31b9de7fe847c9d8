package vm

import (
	"github.com/kristofer/smog/pkg/bytecode"
	"github.com/kristofer/smog/pkg/object"
)

// add implements `+`, which spec §4.F overloads for both numbers and
// string concatenation — two strings concatenate into a new interned
// string via TakeString, two numbers sum, anything else is a type error.
func (vm *VM) add() error {
	b, a := vm.peek(0), vm.peek(1)
	switch {
	case object.IsString(a) && object.IsString(b):
		vm.pop()
		vm.pop()
		left := object.AsString(a).Chars()
		right := object.AsString(b).Chars()
		buf := make([]byte, len(left)+len(right)+1)
		copy(buf, left)
		copy(buf[len(left):], right)
		vm.push(object.FromObject(vm.gc.TakeString(buf)))
		return nil
	case a.IsNumber() && b.IsNumber():
		vm.pop()
		vm.pop()
		vm.push(object.Number(a.AsNumber() + b.AsNumber()))
		return nil
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) arithmetic(op bytecode.Opcode) error {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.OpSubtract:
		vm.push(object.Number(x - y))
	case bytecode.OpMultiply:
		vm.push(object.Number(x * y))
	case bytecode.OpDivide:
		vm.push(object.Number(x / y))
	}
	return nil
}

func (vm *VM) compare(op bytecode.Opcode) error {
	b, a := vm.peek(0), vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	vm.pop()
	vm.pop()
	x, y := a.AsNumber(), b.AsNumber()
	if op == bytecode.OpGreater {
		vm.push(object.Bool(x > y))
	} else {
		vm.push(object.Bool(x < y))
	}
	return nil
}

// getProperty reads `object.name`: an instance field shadows a method of
// the same name; otherwise a method is found and bound into a
// BoundMethod (spec §3 "BoundMethod").
func (vm *VM) getProperty(frame *CallFrame) error {
	receiver := vm.peek(0)
	if !receiver.IsObject() || !object.IsInstance(receiver) {
		return vm.runtimeError("Only instances have properties.")
	}
	instance := object.AsInstance(receiver)
	name := vm.readString(frame)
	if v, ok := instance.Fields.Get(name); ok {
		vm.pop()
		vm.push(v)
		return nil
	}
	return vm.bindMethod(instance.Class, name)
}

func (vm *VM) setProperty(frame *CallFrame) error {
	receiver := vm.peek(1)
	if !receiver.IsObject() || !object.IsInstance(receiver) {
		return vm.runtimeError("Only instances have fields.")
	}
	instance := object.AsInstance(receiver)
	name := vm.readString(frame)
	instance.Fields.Set(name, vm.peek(0))
	value := vm.pop()
	vm.pop()
	vm.push(value)
	return nil
}
