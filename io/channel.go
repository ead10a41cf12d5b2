// Package io provides the collaborators that surround the CHIP-8 core:
// loading program images (Rom), consuming frames (Screen) and producing
// keypad states (Tape).
package io

import (
	"github.com/ezrec/chip8/cpu"
)

// Display consumes frames produced by the machine.
type Display interface {
	// Show displays a frame of cpu.DISPLAY_SIZE pixels, row major.
	Show(frame []uint32) error
}

// Keypad produces the keypad state for each frame.
type Keypad interface {
	// Next returns the keys held for the next frame. ok is false when the
	// producer is exhausted.
	Next() (keys [cpu.KEY_COUNT]bool, ok bool, err error)
}
