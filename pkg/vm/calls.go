package vm

import "github.com/kristofer/smog/pkg/object"

// call pushes a new CallFrame for closure, checking arity and the fixed
// frame-stack depth (spec §4.F: frames[64]) before doing so.
func (vm *VM) call(closure *object.Closure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.frames[vm.frameCount] = CallFrame{
		closure: closure,
		ip:      0,
		slots:   vm.stackTop - argCount - 1,
	}
	vm.frameCount++
	return nil
}

// callValue dispatches OP_CALL's callee, which may be a plain closure, a
// native function, a class (construction), or a bound method.
func (vm *VM) callValue(callee object.Value, argCount int) error {
	if !callee.IsObject() {
		return vm.runtimeError("Can only call functions and classes.")
	}
	switch callee.AsObject().ObjType() {
	case object.ObjClosure:
		return vm.call(object.AsClosure(callee), argCount)
	case object.ObjNative:
		native := object.AsNative(callee)
		args := vm.stack[vm.stackTop-argCount : vm.stackTop]
		result, err := native.Fn(args)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		vm.stackTop -= argCount + 1
		vm.push(result)
		return nil
	case object.ObjClass:
		class := object.AsClass(callee)
		instance := vm.gc.NewInstance(class)
		vm.stack[vm.stackTop-argCount-1] = object.FromObject(instance)
		if initializer, ok := class.Methods.Get(vm.gc.InitString()); ok {
			return vm.call(object.AsClosure(initializer), argCount)
		}
		if argCount != 0 {
			return vm.runtimeError("Expected 0 arguments but got %d.", argCount)
		}
		return nil
	case object.ObjBoundMethod:
		bound := object.AsBoundMethod(callee)
		vm.stack[vm.stackTop-argCount-1] = bound.Receiver
		return vm.call(bound.Method, argCount)
	default:
		return vm.runtimeError("Can only call functions and classes.")
	}
}

// invoke fuses `receiver.name(args)`: look up name on the receiver's own
// fields first (a stored closure there shadows a method, matching
// clox's field-before-method lookup), then fall back to the class's
// method table without allocating an intermediate BoundMethod.
func (vm *VM) invoke(name *object.String, argCount int) error {
	receiver := vm.peek(argCount)
	if !receiver.IsObject() || !object.IsInstance(receiver) {
		return vm.runtimeError("Only instances have methods.")
	}
	instance := object.AsInstance(receiver)
	if v, ok := instance.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = v
		return vm.callValue(v, argCount)
	}
	return vm.invokeFromClass(instance.Class, name, argCount)
}

func (vm *VM) invokeFromClass(class *object.Class, name *object.String, argCount int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars())
	}
	return vm.call(object.AsClosure(method), argCount)
}

// bindMethod looks up name on class and, if found, wraps it with the
// value currently on top of the stack (the instance) as an
// object.BoundMethod, replacing that top-of-stack value.
func (vm *VM) bindMethod(class *object.Class, name *object.String) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError("Undefined property '%s'.", name.Chars())
	}
	bound := vm.gc.NewBoundMethod(vm.peek(0), object.AsClosure(method))
	vm.pop()
	vm.push(object.FromObject(bound))
	return nil
}

// captureUpvalue returns the open upvalue for the stack slot at absolute
// index slot, reusing one already open for that slot if the open-upvalue
// list (kept sorted by descending Slot, as clox keeps it sorted by
// descending stack address) already has one.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.Slot > slot {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Slot == slot {
		return cur
	}

	created := vm.gc.NewUpvalue(&vm.stack[slot], slot)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues promotes every open upvalue at or above stack slot last
// into a closed one, detaching it from the VM's stack-scanning list —
// run when a block scope ends or a function returns (spec §4.F).
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot >= last {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.NextOpen
	}
}

func (vm *VM) inherit() error {
	superclassVal := vm.peek(1)
	if !object.IsClass(superclassVal) {
		return vm.runtimeError("Superclass must be a class.")
	}
	superclass := object.AsClass(superclassVal)
	subclass := object.AsClass(vm.peek(0))
	superclass.Methods.Each(func(name *object.String, v object.Value) {
		subclass.Methods.Set(name, v)
	})
	vm.pop()
	return nil
}

func (vm *VM) defineMethod(name *object.String) {
	method := vm.peek(0)
	class := object.AsClass(vm.peek(1))
	class.Methods.Set(name, method)
	vm.pop()
}
