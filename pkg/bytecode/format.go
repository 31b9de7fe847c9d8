package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kristofer/smog/pkg/object"
)

// The .sg container lets `smog compile` persist a compiled chunk and
// `smog run file.sg` / `smog disassemble` load it back without
// recompiling. Layout, magic number, and version scheme follow the
// teacher's original pkg/bytecode/format.go; the body was re-specified
// for this Chunk shape (line table + Value-tagged constant pool) since
// the teacher's constants were plain interface{} literals.
const (
	magic         = "SMOG"
	formatVersion = uint8(2)
)

const (
	constTagNil = iota
	constTagBool
	constTagNumber
	constTagString
)

// WriteTo serializes c in the .sg format: a 5-byte header (magic +
// version), the constant pool, the line table, then the code bytes.
// Only nil, bool, number and string constants are persisted: a
// function-valued constant makes WriteTo return an error, so a chunk
// holding nested function chunks does not round-trip; see ReadChunk.
func (c *Chunk) WriteTo(w io.Writer) (int64, error) {
	var written int64

	n, err := io.WriteString(w, magic)
	written += int64(n)
	if err != nil {
		return written, err
	}
	if err := binary.Write(w, binary.BigEndian, formatVersion); err != nil {
		return written, err
	}
	written++

	if err := writeConstants(w, c.Constants, &written); err != nil {
		return written, err
	}
	if err := writeUint32(w, uint32(len(c.Lines)), &written); err != nil {
		return written, err
	}
	for _, line := range c.Lines {
		if err := writeUint32(w, uint32(line), &written); err != nil {
			return written, err
		}
	}
	if err := writeUint32(w, uint32(len(c.Code)), &written); err != nil {
		return written, err
	}
	n, err = w.Write(c.Code)
	written += int64(n)
	return written, err
}

func writeConstants(w io.Writer, constants []object.Value, written *int64) error {
	if err := writeUint32(w, uint32(len(constants)), written); err != nil {
		return err
	}
	for _, v := range constants {
		if err := writeConstant(w, v, written); err != nil {
			return err
		}
	}
	return nil
}

func writeConstant(w io.Writer, v object.Value, written *int64) error {
	switch {
	case v.IsNil():
		return writeByte(w, constTagNil, written)
	case v.IsBool():
		if err := writeByte(w, constTagBool, written); err != nil {
			return err
		}
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		return writeByte(w, b, written)
	case v.IsNumber():
		if err := writeByte(w, constTagNumber, written); err != nil {
			return err
		}
		return binary.Write(&countingWriter{w, written}, binary.BigEndian, v.AsNumber())
	case v.IsObject() && object.IsString(v):
		if err := writeByte(w, constTagString, written); err != nil {
			return err
		}
		chars := []byte(object.AsString(v).Chars())
		if err := writeUint32(w, uint32(len(chars)), written); err != nil {
			return err
		}
		n, err := w.Write(chars)
		*written += int64(n)
		return err
	default:
		return fmt.Errorf("bytecode: constant of type %T is not persistable in a .sg file", v.AsObject())
	}
}

// ReadChunk deserializes a chunk written by WriteTo. The returned chunk's
// string constants are allocated directly, not interned (this package
// can't import pkg/gc: gc already imports bytecode, and the reverse would
// cycle) — callers that run the chunk must re-intern every string
// constant via gc.CopyString first. vm.RunChunk does exactly this before
// executing a loaded .sg file.
func ReadChunk(r io.Reader) (*Chunk, error) {
	header := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("bytecode: reading header: %w", err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, fmt.Errorf("bytecode: not a smog chunk (bad magic)")
	}
	if header[len(magic)] != formatVersion {
		return nil, fmt.Errorf("bytecode: unsupported format version %d", header[len(magic)])
	}

	constants, err := readConstants(r)
	if err != nil {
		return nil, err
	}

	lineCount, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	lines := make([]int, lineCount)
	for i := range lines {
		v, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		lines[i] = int(v)
	}

	codeLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, fmt.Errorf("bytecode: reading code: %w", err)
	}

	return &Chunk{Code: code, Lines: lines, Constants: constants}, nil
}

func readConstants(r io.Reader) ([]object.Value, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	constants := make([]object.Value, count)
	for i := range constants {
		v, err := readConstant(r)
		if err != nil {
			return nil, err
		}
		constants[i] = v
	}
	return constants, nil
}

func readConstant(r io.Reader) (object.Value, error) {
	tag := make([]byte, 1)
	if _, err := io.ReadFull(r, tag); err != nil {
		return object.Nil(), fmt.Errorf("bytecode: reading constant tag: %w", err)
	}
	switch tag[0] {
	case constTagNil:
		return object.Nil(), nil
	case constTagBool:
		b := make([]byte, 1)
		if _, err := io.ReadFull(r, b); err != nil {
			return object.Nil(), err
		}
		return object.Bool(b[0] != 0), nil
	case constTagNumber:
		var f float64
		if err := binary.Read(r, binary.BigEndian, &f); err != nil {
			return object.Nil(), err
		}
		return object.Number(f), nil
	case constTagString:
		n, err := readUint32(r)
		if err != nil {
			return object.Nil(), err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return object.Nil(), err
		}
		return object.FromObject(object.NewStringFromBytes(buf)), nil
	default:
		return object.Nil(), fmt.Errorf("bytecode: unknown constant tag %d", tag[0])
	}
}

func writeByte(w io.Writer, b byte, written *int64) error {
	n, err := w.Write([]byte{b})
	*written += int64(n)
	return err
}

func writeUint32(w io.Writer, v uint32, written *int64) error {
	return binary.Write(&countingWriter{w, written}, binary.BigEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

// countingWriter tallies bytes written through binary.Write, which
// otherwise gives no count back to the caller.
type countingWriter struct {
	w       io.Writer
	written *int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.written += int64(n)
	return n, err
}
