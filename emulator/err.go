package emulator

import (
	"github.com/ezrec/chip8/translate"
)

var f = translate.From

// ErrRuntime indicates the location of a fatal runtime error.
type ErrRuntime struct {
	Ip     uint16 // Address of the failing instruction.
	Word   uint16 // Instruction word at Ip, 0 if Ip is out of memory.
	Depth  int    // Stack depth at the failing instruction.
	LineNo int    // Source line, 0 if there is no listing.
	Err    error
}

func (err *ErrRuntime) Error() string {
	if err.LineNo > 0 {
		return f("line %d 0x%03x: %v", err.LineNo, err.Ip, err.Err)
	}
	return f("0x%03x: %v", err.Ip, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
