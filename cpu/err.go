package cpu

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	// Cpu errors
	ErrPcBounds        = errors.New(f("program counter out of memory"))
	ErrStackEmpty      = errors.New(f("stack empty"))
	ErrStackFull       = errors.New(f("stack full"))
	ErrMemoryBounds    = errors.New(f("memory access out of bounds"))
	ErrMemoryProtected = errors.New(f("write to reserved memory"))
	ErrRomTooLarge     = errors.New(f("rom too large"))

	// Instruction decode errors
	ErrOpcodeUnknown = errors.New(f("opcode unknown"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrMacroSyntax        = errors.New(f(".macro syntax"))
	ErrMacroNesting       = errors.New(f(".macro in .macro prohibited"))
	ErrMacroDuplicate     = errors.New(f(".macro duplicated"))
	ErrMacroLonely        = errors.New(f(".macro without .endm"))
	ErrMacroLonelyEndm    = errors.New(f(".endm without .macro"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrOpcodeValueMissing = errors.New(f("value missing"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrRegisterInvalid    = errors.New(f("register invalid"))
	ErrValueRange         = errors.New(f("value out of range"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrOriginBackwards    = errors.New(f(".org moves backwards"))
)

// IsFatal returns true if the error must stop execution of the current
// program. Unknown opcodes are reported but are not fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrOpcodeUnknown)
}

// ErrAddress is the program counter at which a fetch failed.
type ErrAddress uint16

func (ea ErrAddress) Error() string {
	return f("fetch at 0x%03x", uint16(ea))
}

// ErrOpcode locates a failing instruction.
type ErrOpcode struct {
	Code  Code   // Decoded instruction.
	Pc    uint16 // Address the instruction was fetched from.
	Depth int    // Stack depth when the instruction was executed.
}

func (eo ErrOpcode) Error() string {
	return f("bad opcode 0x%04x '%v' at 0x%03x (stack %d)", eo.Code.Word, eo.Code.String(), eo.Pc, eo.Depth)
}

func (eo ErrOpcode) Is(err error) (ok bool) {
	_, ok = err.(ErrOpcode)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

type ErrMacro struct {
	Macro string
	Line  int
	Err   error
}

func (err ErrMacro) Error() string {
	return f("macro %v line %v %v", err.Macro, err.Line, err.Err.Error())
}

func (err ErrMacro) Unwrap() error {
	return err.Err
}
