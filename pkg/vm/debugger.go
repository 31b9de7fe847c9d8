package vm

import (
	"bufio"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/kristofer/smog/pkg/bytecode"
)

// Debugger is a line-oriented breakpoint debugger adapted from the
// teacher's pkg/vm/debugger.go (same Breakpoints/StepMode/Enabled shape,
// same prompt-driven command loop), retargeted from the Smalltalk VM's
// Instruction-indexed breakpoints to this VM's per-frame byte offsets.
// It is a thin observer: it never mutates dispatch, only prints and
// optionally blocks before an instruction runs.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
	in          *bufio.Scanner
}

// NewDebugger attaches a disabled debugger to vm; call Enable to turn it
// on before running.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[int]bool), in: bufio.NewScanner(os.Stdin)}
}

func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

// SetBreakpoint arms a break at the given byte offset within whatever
// chunk is currently executing.
func (d *Debugger) SetBreakpoint(offset int) { d.breakpoints[offset] = true }
func (d *Debugger) ClearBreakpoint(offset int) { delete(d.breakpoints, offset) }

// beforeInstruction is called by the dispatch loop (when a debugger is
// attached and enabled) just before executing the instruction at
// frame.ip. It blocks on a breakpoint or in step mode, printing the
// current instruction and a minimal stack dump, and reading a single
// command: (c)ontinue, (s)tep, (p)rint stack, (q)uit.
func (d *Debugger) beforeInstruction(frame *CallFrame) bool {
	if !d.enabled {
		return true
	}
	if !d.stepMode && !d.breakpoints[frame.ip] {
		return true
	}

	ch := d.vm.chunk(frame)
	fmt.Println(color.YellowString("-- breakpoint at offset %d --", frame.ip))
	row, _ := bytecode.DisassembleOne(ch, frame.ip)
	fmt.Println(row)
	d.printStack()

	for d.in.Scan() {
		switch d.in.Text() {
		case "c", "continue":
			d.stepMode = false
			return true
		case "s", "step":
			d.stepMode = true
			return true
		case "p", "print":
			d.printStack()
		case "q", "quit":
			return false
		default:
			fmt.Println("commands: c(ontinue), s(tep), p(rint), q(uit)")
		}
	}
	return false
}

func (d *Debugger) printStack() {
	fmt.Print(color.CyanString("stack: "))
	for i := 0; i < d.vm.stackTop; i++ {
		fmt.Printf("[ %s ]", d.vm.stack[i].String())
	}
	fmt.Println()
}
