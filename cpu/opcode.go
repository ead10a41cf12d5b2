package cpu

import (
	"fmt"
)

// CodeOp is one of the canonical CHIP-8 operations.
type CodeOp int

const (
	OP_UNKNOWN   = CodeOp(iota) // ????
	OP_SYS                      // 0NNN sys
	OP_CLS                      // 00E0 cls
	OP_RET                      // 00EE ret
	OP_JP                       // 1NNN jp
	OP_CALL                     // 2NNN call
	OP_SE_IMM                   // 3XKK se
	OP_SNE_IMM                  // 4XKK sne
	OP_SE_REG                   // 5XY0 se
	OP_LD_IMM                   // 6XKK ld
	OP_ADD_IMM                  // 7XKK add
	OP_LD_REG                   // 8XY0 ld
	OP_OR                       // 8XY1 or
	OP_AND                      // 8XY2 and
	OP_XOR                      // 8XY3 xor
	OP_ADD_REG                  // 8XY4 add
	OP_SUB                      // 8XY5 sub
	OP_SHR                      // 8XY6 shr
	OP_SUBN                     // 8XY7 subn
	OP_SHL                      // 8XYE shl
	OP_SNE_REG                  // 9XY0 sne
	OP_LD_I                     // ANNN ld
	OP_JP_V0                    // BNNN jp
	OP_RND                      // CXKK rnd
	OP_DRW                      // DXYN drw
	OP_SKP                      // EX9E skp
	OP_SKNP                     // EXA1 sknp
	OP_LD_VX_DT                 // FX07 ld
	OP_LD_VX_K                  // FX0A ld
	OP_LD_DT_VX                 // FX15 ld
	OP_LD_ST_VX                 // FX18 ld
	OP_ADD_I                    // FX1E add
	OP_LD_F                     // FX29 ld
	OP_LD_B                     // FX33 ld
	OP_LD_MEM_VX                // FX55 ld
	OP_LD_VX_MEM                // FX65 ld
	OP_COUNT
)

// codeForm is the operand layout of an instruction word.
type codeForm int

const (
	FORM_NONE = codeForm(iota) // ....
	FORM_NNN                   // .NNN
	FORM_XKK                   // .XKK
	FORM_XY                    // .XY.
	FORM_XYN                   // .XYN
	FORM_X                     // .X..
)

type opInfo struct {
	name string   // Mnemonic.
	word uint16   // Instruction word with all operand fields zero.
	form codeForm // Operand layout.
	text string   // Assembler syntax, operands as fmt verbs.
}

var _opInfo = [OP_COUNT]opInfo{
	OP_UNKNOWN:   {"????", 0x0000, FORM_NONE, ""},
	OP_SYS:       {"sys", 0x0000, FORM_NNN, "sys 0x%03x"},
	OP_CLS:       {"cls", 0x00e0, FORM_NONE, "cls"},
	OP_RET:       {"ret", 0x00ee, FORM_NONE, "ret"},
	OP_JP:        {"jp", 0x1000, FORM_NNN, "jp 0x%03x"},
	OP_CALL:      {"call", 0x2000, FORM_NNN, "call 0x%03x"},
	OP_SE_IMM:    {"se", 0x3000, FORM_XKK, "se v%x 0x%02x"},
	OP_SNE_IMM:   {"sne", 0x4000, FORM_XKK, "sne v%x 0x%02x"},
	OP_SE_REG:    {"se", 0x5000, FORM_XY, "se v%x v%x"},
	OP_LD_IMM:    {"ld", 0x6000, FORM_XKK, "ld v%x 0x%02x"},
	OP_ADD_IMM:   {"add", 0x7000, FORM_XKK, "add v%x 0x%02x"},
	OP_LD_REG:    {"ld", 0x8000, FORM_XY, "ld v%x v%x"},
	OP_OR:        {"or", 0x8001, FORM_XY, "or v%x v%x"},
	OP_AND:       {"and", 0x8002, FORM_XY, "and v%x v%x"},
	OP_XOR:       {"xor", 0x8003, FORM_XY, "xor v%x v%x"},
	OP_ADD_REG:   {"add", 0x8004, FORM_XY, "add v%x v%x"},
	OP_SUB:       {"sub", 0x8005, FORM_XY, "sub v%x v%x"},
	OP_SHR:       {"shr", 0x8006, FORM_XY, "shr v%x v%x"},
	OP_SUBN:      {"subn", 0x8007, FORM_XY, "subn v%x v%x"},
	OP_SHL:       {"shl", 0x800e, FORM_XY, "shl v%x v%x"},
	OP_SNE_REG:   {"sne", 0x9000, FORM_XY, "sne v%x v%x"},
	OP_LD_I:      {"ld", 0xa000, FORM_NNN, "ld i 0x%03x"},
	OP_JP_V0:     {"jp", 0xb000, FORM_NNN, "jp v0 0x%03x"},
	OP_RND:       {"rnd", 0xc000, FORM_XKK, "rnd v%x 0x%02x"},
	OP_DRW:       {"drw", 0xd000, FORM_XYN, "drw v%x v%x %d"},
	OP_SKP:       {"skp", 0xe09e, FORM_X, "skp v%x"},
	OP_SKNP:      {"sknp", 0xe0a1, FORM_X, "sknp v%x"},
	OP_LD_VX_DT:  {"ld", 0xf007, FORM_X, "ld v%x dt"},
	OP_LD_VX_K:   {"ld", 0xf00a, FORM_X, "ld v%x k"},
	OP_LD_DT_VX:  {"ld", 0xf015, FORM_X, "ld dt v%x"},
	OP_LD_ST_VX:  {"ld", 0xf018, FORM_X, "ld st v%x"},
	OP_ADD_I:     {"add", 0xf01e, FORM_X, "add i v%x"},
	OP_LD_F:      {"ld", 0xf029, FORM_X, "ld f v%x"},
	OP_LD_B:      {"ld", 0xf033, FORM_X, "ld b v%x"},
	OP_LD_MEM_VX: {"ld", 0xf055, FORM_X, "ld [i] v%x"},
	OP_LD_VX_MEM: {"ld", 0xf065, FORM_X, "ld v%x [i]"},
}

// String returns the mnemonic of the operation.
func (op CodeOp) String() string {
	if op < 0 || op >= OP_COUNT {
		return _opInfo[OP_UNKNOWN].name
	}
	return _opInfo[op].name
}

// Opcode represents a line of assembled code with its source location and generated bytes.
type Opcode struct {
	LineNo    int      // Source line.
	Ip        int      // Address of the first byte.
	Words     []string // Source words after equate substitution.
	Codes     []Code   // Instructions, nil for data lines.
	Data      []byte   // Bytes from .byte, .word and .org.
	LinkLabel string   // Label to link into the last instruction's address field.
}

// Size returns the number of bytes the line occupies.
func (op *Opcode) Size() int {
	return 2*len(op.Codes) + len(op.Data)
}

// Bytes returns the encoded line.
func (op *Opcode) Bytes() (data []byte) {
	data = make([]byte, 0, op.Size())
	for _, code := range op.Codes {
		data = append(data, byte(code.Word>>8), byte(code.Word))
	}
	data = append(data, op.Data...)
	return
}

// Code is a decoded instruction word. All operand fields are extracted once,
// whether or not the operation uses them.
type Code struct {
	Word uint16 // Raw instruction word.
	Op   CodeOp // Decoded operation.
	X    uint8  // Register index in bits 11-8.
	Y    uint8  // Register index in bits 7-4.
	N    uint8  // Nibble in bits 3-0.
	KK   uint8  // Byte in bits 7-0.
	NNN  uint16 // Address in bits 11-0.
}

// Decode decodes an instruction word. Words that match no canonical
// operation decode to OP_UNKNOWN.
func Decode(word uint16) (code Code) {
	code = Code{
		Word: word,
		X:    uint8((word >> 8) & 0xf),
		Y:    uint8((word >> 4) & 0xf),
		N:    uint8(word & 0xf),
		KK:   uint8(word & 0xff),
		NNN:  word & 0xfff,
	}
	code.Op = decodeOp(word)
	return
}

// decodeOp selects the operation by top nibble, then by bottom nibble or
// bottom byte for the families that share a top nibble.
func decodeOp(word uint16) CodeOp {
	switch word >> 12 {
	case 0x0:
		switch word {
		case 0x00e0:
			return OP_CLS
		case 0x00ee:
			return OP_RET
		}
		return OP_SYS
	case 0x1:
		return OP_JP
	case 0x2:
		return OP_CALL
	case 0x3:
		return OP_SE_IMM
	case 0x4:
		return OP_SNE_IMM
	case 0x5:
		if word&0xf == 0 {
			return OP_SE_REG
		}
	case 0x6:
		return OP_LD_IMM
	case 0x7:
		return OP_ADD_IMM
	case 0x8:
		switch word & 0xf {
		case 0x0:
			return OP_LD_REG
		case 0x1:
			return OP_OR
		case 0x2:
			return OP_AND
		case 0x3:
			return OP_XOR
		case 0x4:
			return OP_ADD_REG
		case 0x5:
			return OP_SUB
		case 0x6:
			return OP_SHR
		case 0x7:
			return OP_SUBN
		case 0xe:
			return OP_SHL
		}
	case 0x9:
		if word&0xf == 0 {
			return OP_SNE_REG
		}
	case 0xa:
		return OP_LD_I
	case 0xb:
		return OP_JP_V0
	case 0xc:
		return OP_RND
	case 0xd:
		return OP_DRW
	case 0xe:
		switch word & 0xff {
		case 0x9e:
			return OP_SKP
		case 0xa1:
			return OP_SKNP
		}
	case 0xf:
		switch word & 0xff {
		case 0x07:
			return OP_LD_VX_DT
		case 0x0a:
			return OP_LD_VX_K
		case 0x15:
			return OP_LD_DT_VX
		case 0x18:
			return OP_LD_ST_VX
		case 0x1e:
			return OP_ADD_I
		case 0x29:
			return OP_LD_F
		case 0x33:
			return OP_LD_B
		case 0x55:
			return OP_LD_MEM_VX
		case 0x65:
			return OP_LD_VX_MEM
		}
	}

	return OP_UNKNOWN
}

// MakeCode encodes an operation. The immediate is interpreted according to
// the operation's layout: NNN, KK or N. Unused operands are ignored.
func MakeCode(op CodeOp, x, y uint8, imm uint16) Code {
	if op <= OP_UNKNOWN || op >= OP_COUNT {
		return Decode(imm)
	}

	info := _opInfo[op]
	word := info.word
	switch info.form {
	case FORM_NNN:
		word |= imm & 0xfff
	case FORM_XKK:
		word |= (uint16(x&0xf) << 8) | (imm & 0xff)
	case FORM_XY:
		word |= (uint16(x&0xf) << 8) | (uint16(y&0xf) << 4)
	case FORM_XYN:
		word |= (uint16(x&0xf) << 8) | (uint16(y&0xf) << 4) | (imm & 0xf)
	case FORM_X:
		word |= uint16(x&0xf) << 8
	}

	return Decode(word)
}

// String returns the assembly language representation of this instruction.
func (code Code) String() (out string) {
	if code.Op <= OP_UNKNOWN || code.Op >= OP_COUNT {
		return fmt.Sprintf(".word 0x%04x", code.Word)
	}

	info := _opInfo[code.Op]
	switch info.form {
	case FORM_NONE:
		out = info.text
	case FORM_NNN:
		out = fmt.Sprintf(info.text, code.NNN)
	case FORM_XKK:
		out = fmt.Sprintf(info.text, code.X, code.KK)
	case FORM_XY:
		out = fmt.Sprintf(info.text, code.X, code.Y)
	case FORM_XYN:
		out = fmt.Sprintf(info.text, code.X, code.Y, code.N)
	case FORM_X:
		out = fmt.Sprintf(info.text, code.X)
	}

	return
}

// SetsFlag returns true if the operation defines VF.
func (op CodeOp) SetsFlag() bool {
	switch op {
	case OP_ADD_REG, OP_SUB, OP_SHR, OP_SUBN, OP_SHL, OP_DRW:
		return true
	}
	return false
}
