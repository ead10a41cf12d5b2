package io

import (
	"errors"

	"github.com/ezrec/chip8/translate"
)

var f = translate.From

var (
	// Rom errors
	ErrRomEmpty = errors.New(f("rom empty"))
)

// ErrTapeKey reports an invalid key in a tape.
type ErrTapeKey struct {
	LineNo int
	Word   string
}

func (err *ErrTapeKey) Error() string {
	return f("tape line %d: '%v' is not a key", err.LineNo, err.Word)
}
