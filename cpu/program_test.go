package cpu

import (
	"maps"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgram_Debug(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{
		Opcodes: []Opcode{
			{LineNo: 1, Ip: 0x200, Words: []string{"ld", "v0", "0x10"},
				Codes: []Code{MakeCode(OP_LD_IMM, 0, 0, 0x10)}},
			{LineNo: 2, Ip: 0x202, Words: []string{"ld", "v1", "0x20"},
				Codes: []Code{MakeCode(OP_LD_IMM, 1, 0, 0x20)}},
			{LineNo: 3, Ip: 0x204, Words: []string{"add", "v0", "v1"},
				Codes: []Code{MakeCode(OP_ADD_REG, 0, 1, 0)}},
		},
	}

	dbg := prog.Debug(0x200)
	assert.NotNil(dbg.Opcode)
	assert.Equal(1, dbg.Opcode.LineNo)
	assert.Equal(0, dbg.Index)

	dbg = prog.Debug(0x203)
	assert.NotNil(dbg.Opcode)
	assert.Equal(2, dbg.Opcode.LineNo)
	assert.Equal(1, dbg.Index)

	dbg = prog.Debug(0x204)
	assert.NotNil(dbg.Opcode)
	assert.Equal(3, dbg.Opcode.LineNo)
	assert.Equal(0, dbg.Index)
}

func TestProgram_Debug_NotFound(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{
		Opcodes: []Opcode{
			{LineNo: 1, Ip: 0x200, Words: []string{"cls"},
				Codes: []Code{MakeCode(OP_CLS, 0, 0, 0)}},
		},
	}

	dbg := prog.Debug(0x210)
	assert.Nil(dbg.Opcode)
	assert.Equal(0, dbg.Index)

	dbg = prog.Debug(0x1fe)
	assert.Nil(dbg.Opcode)
}

func TestProgram_Debug_Data(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader("cls\nsprite: .byte 1 2 3 4 5\nret\n"))
	assert.NoError(err)

	dbg := prog.Debug(0x206)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(2, dbg.Opcode.LineNo)
		assert.Equal(4, dbg.Index)
		assert.Equal(5, dbg.Opcode.Size())
	}

	dbg = prog.Debug(0x207)
	if assert.NotNil(dbg.Opcode) {
		assert.Equal(3, dbg.Opcode.LineNo)
	}
}

func TestProgram_Binary(t *testing.T) {
	assert := assert.New(t)

	prog := &Program{
		Opcodes: []Opcode{
			{LineNo: 1, Ip: 0x200, Codes: []Code{MakeCode(OP_JP, 0, 0, 0x206)}},
			{LineNo: 2, Ip: 0x206, Data: []byte{0xaa, 0xbb}},
		},
	}

	assert.Equal([]byte{0x12, 0x06, 0, 0, 0, 0, 0xaa, 0xbb}, prog.Binary())
	assert.Nil((&Program{}).Binary())
}

func TestProgram_Codes(t *testing.T) {
	assert := assert.New(t)

	asm := &Assembler{}
	prog, err := asm.Parse(strings.NewReader("ld v0 1\n.byte 0xff 0xff\nadd v0 v0\n"))
	assert.NoError(err)

	codes := maps.Collect(prog.Codes())
	assert.Equal(map[uint16]Code{
		0x200: Decode(0x6001),
		0x204: Decode(0x8004),
	}, codes)

	count := 0
	for range prog.Codes() {
		count++
		break
	}
	assert.Equal(1, count)
}
