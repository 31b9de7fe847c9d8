package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"time"

	"github.com/kristofer/smog/pkg/object"
)

// DefineNative installs a native function under name in the globals
// table, wrapped the way every other global is (spec §4.F, "natives" are
// ordinary globals whose value happens to be an ObjNative). The one
// native the retrieved original source actually defines is `clock`
// (vm.c's clockNative); sha256/randomInt/dateNow are this port's own
// small stdlib, adapted from the teacher's crypto/random/date-time
// primitives (pkg/vm/primitives.go) minus the HTTP/compression/JSON
// surface nothing in this language's feature set calls.
func (vm *VM) DefineNative(name string, fn object.NativeFn) {
	nameStr := vm.gc.CopyString([]byte(name))
	vm.push(object.FromObject(nameStr))
	native := vm.gc.NewNative(name, fn)
	vm.pop()
	vm.globals.Set(nameStr, object.FromObject(native))
}

// DefineStandardNatives installs the small built-in function set every
// program gets for free. sha256 and dateNow close over vm.gc so their
// result strings are interned (vm.gc.CopyString) exactly like every other
// String the VM produces, rather than built as bare, ungoverned
// object.String values the GC can't see and the intern table doesn't
// know about.
func (vm *VM) DefineStandardNatives() {
	vm.DefineNative("clock", nativeClock)
	vm.DefineNative("sha256", vm.nativeSHA256)
	vm.DefineNative("randomInt", nativeRandomInt)
	vm.DefineNative("dateNow", vm.nativeDateNow)
}

func nativeClock(args []object.Value) (object.Value, error) {
	if len(args) != 0 {
		return object.Nil(), fmt.Errorf("clock() takes no arguments")
	}
	return object.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// nativeSHA256 hashes its single string argument, returning the lowercase
// hex digest — adapted from the teacher's pkg/vm/primitives.go sha256
// helper, which used the same stdlib crypto/sha256 call.
func (vm *VM) nativeSHA256(args []object.Value) (object.Value, error) {
	if len(args) != 1 || !object.IsString(args[0]) {
		return object.Nil(), fmt.Errorf("sha256() takes one string argument")
	}
	sum := sha256.Sum256([]byte(object.AsString(args[0]).Chars()))
	digest := vm.gc.CopyString([]byte(hex.EncodeToString(sum[:])))
	return object.FromObject(digest), nil
}

// nativeRandomInt(low, high) returns an integer in [low, high) — adapted
// from the teacher's randomInt: primitive, narrowed from Smalltalk's
// keyword-message form to a plain two-argument call.
func nativeRandomInt(args []object.Value) (object.Value, error) {
	if len(args) != 2 || !args[0].IsNumber() || !args[1].IsNumber() {
		return object.Nil(), fmt.Errorf("randomInt() takes two number arguments")
	}
	low, high := int(args[0].AsNumber()), int(args[1].AsNumber())
	if high <= low {
		return object.Nil(), fmt.Errorf("randomInt() requires high > low")
	}
	return object.Number(float64(low + rand.Intn(high-low))), nil
}

func (vm *VM) nativeDateNow(args []object.Value) (object.Value, error) {
	if len(args) != 0 {
		return object.Nil(), fmt.Errorf("dateNow() takes no arguments")
	}
	stamp := vm.gc.CopyString([]byte(time.Now().UTC().Format(time.RFC3339)))
	return object.FromObject(stamp), nil
}
