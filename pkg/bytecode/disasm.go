package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/kristofer/smog/pkg/object"
)

// Disassemble renders every instruction in c as a table: offset, source
// line (blanked when it repeats the previous instruction's, as clox's
// disassembler does), opcode mnemonic, and decoded operands. name labels
// the table, typically the enclosing function's display name.
func Disassemble(c *Chunk, name string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", color.New(color.Bold).Sprintf("== %s ==", name))

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"OFFSET", "LINE", "OP", "OPERANDS"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	prevLine := -1
	offset := 0
	for offset < len(c.Code) {
		row, next := disassembleInstruction(c, offset)
		line := fmt.Sprintf("%d", c.Lines[offset])
		if c.Lines[offset] == prevLine {
			line = "|"
		}
		prevLine = c.Lines[offset]
		table.Append([]string{fmt.Sprintf("%04d", offset), line, row.mnemonic, row.operands})
		offset = next
	}
	table.Render()
	return buf.String()
}

type instructionRow struct {
	mnemonic string
	operands string
}

// DisassembleOne formats the single instruction at offset, for a
// debugger's step-by-step display, returning the formatted line and the
// offset of the following instruction.
func DisassembleOne(c *Chunk, offset int) (string, int) {
	row, next := disassembleInstruction(c, offset)
	return fmt.Sprintf("%04d  %-18s %s", offset, row.mnemonic, row.operands), next
}

func disassembleInstruction(c *Chunk, offset int) (instructionRow, int) {
	op := Opcode(c.Code[offset])
	switch op {
	case OpNil, OpTrue, OpFalse, OpPop, OpEqual, OpGreater, OpLess,
		OpAdd, OpSubtract, OpMultiply, OpDivide, OpNot, OpNegate,
		OpPrint, OpCloseUpvalue, OpReturn, OpInherit:
		return instructionRow{op.String(), ""}, offset + 1

	case OpConstant:
		idx := int(c.Code[offset+1])
		return instructionRow{op.String(), fmt.Sprintf("%d '%s'", idx, c.Constants[idx])}, offset + 2

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		slot := int(c.Code[offset+1])
		return instructionRow{op.String(), fmt.Sprintf("%d", slot)}, offset + 2

	case OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty, OpSetProperty,
		OpClass, OpMethod, OpGetSuper:
		idx := int(c.Code[offset+1])
		return instructionRow{op.String(), fmt.Sprintf("%d '%s'", idx, c.Constants[idx])}, offset + 2

	case OpInvoke, OpSuperInvoke:
		idx := int(c.Code[offset+1])
		argc := int(c.Code[offset+2])
		return instructionRow{op.String(), fmt.Sprintf("(%d args) %d '%s'", argc, idx, c.Constants[idx])}, offset + 3

	case OpJump, OpJumpIfFalse:
		jump := int(binary.BigEndian.Uint16(c.Code[offset+1 : offset+3]))
		return instructionRow{op.String(), fmt.Sprintf("-> %04d", offset+3+jump)}, offset + 3

	case OpLoop:
		jump := int(binary.BigEndian.Uint16(c.Code[offset+1 : offset+3]))
		return instructionRow{op.String(), fmt.Sprintf("-> %04d", offset+3-jump)}, offset + 3

	case OpClosure:
		idx := int(c.Code[offset+1])
		next := offset + 2
		desc := fmt.Sprintf("%d '%s'", idx, c.Constants[idx])
		upvalueCount := 0
		if constant := c.Constants[idx]; object.IsFunction(constant) {
			upvalueCount = object.AsFunction(constant).UpvalueCount
		}
		for i := 0; i < upvalueCount; i++ {
			isLocal := c.Code[next]
			index := c.Code[next+1]
			kind := "upvalue"
			if isLocal != 0 {
				kind = "local"
			}
			desc += fmt.Sprintf(" (%s %d)", kind, index)
			next += 2
		}
		return instructionRow{op.String(), desc}, next

	default:
		return instructionRow{fmt.Sprintf("unknown opcode %d", op), ""}, offset + 1
	}
}
