// Package cpu implements the CHIP-8 virtual machine and an assembler for it.
//
// The machine has 4096 bytes of memory with the hexadecimal font installed
// at FONT_START and programs loaded at PROGRAM_START, sixteen 8-bit
// registers (v0-vf, with vf as the flag register), a 12-bit index register
// (I), a sixteen entry return stack, delay and sound timers, a 64x32
// monochrome display and a sixteen key keypad.
//
// Each cycle fetches a big-endian instruction word, decodes it into a Code
// and dispatches it to the handler for its CodeOp. Behaviour that differs
// between historical interpreters is selected with Quirks.
//
// The assembler provides a CHIP-8 assembly language with macros, labels,
// equates, and compile-time expression evaluation.
package cpu
