package cpu

import (
	"iter"
)

// Program is an assembled CHIP-8 program.
type Program struct {
	Opcodes []Opcode
}

// Debug locates an address within a program line.
type Debug struct {
	*Opcode
	Index int // Byte offset of the address within the line.
}

// Debug returns the line that generated the byte at addr. The Opcode is nil
// if no line covers the address.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n := range prog.Opcodes {
		op := &prog.Opcodes[n]
		if int(addr) >= op.Ip && int(addr) < op.Ip+op.Size() {
			dbg = Debug{
				Opcode: op,
				Index:  int(addr) - op.Ip,
			}
			break
		}
	}

	return
}

// Binary returns the program image to load at PROGRAM_START.
func (prog *Program) Binary() (bin []byte) {
	for _, op := range prog.Opcodes {
		offset := op.Ip - PROGRAM_START
		if offset < 0 {
			continue
		}
		if len(bin) < offset {
			bin = append(bin, make([]byte, offset-len(bin))...)
		}
		bin = append(bin[:offset], op.Bytes()...)
	}

	return
}

// Codes iterates over the instructions of the program, by address.
func (prog *Program) Codes() iter.Seq2[uint16, Code] {
	return func(yield func(addr uint16, code Code) bool) {
		for _, op := range prog.Opcodes {
			addr := uint16(op.Ip)
			for n, code := range op.Codes {
				if !yield(addr+uint16(2*n), code) {
					return
				}
			}
		}
	}
}
