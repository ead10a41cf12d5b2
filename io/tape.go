package io

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ezrec/chip8/cpu"
)

// Tape provides scripted keypad input, one line per frame.
//
// Each line lists the hexadecimal keys held during that frame, separated by
// whitespace. An empty line, or a line of "-", holds no keys. Text after a
// '#' is ignored.
type Tape struct {
	Input io.Reader

	scanner *bufio.Scanner
	lineNo  int
}

var _ Keypad = (*Tape)(nil)

// Rewind restarts the tape. The Input must have been repositioned by the
// caller.
func (tc *Tape) Rewind() {
	tc.scanner = nil
	tc.lineNo = 0
}

// Next returns the keys held for the next frame.
func (tc *Tape) Next() (keys [cpu.KEY_COUNT]bool, ok bool, err error) {
	if tc.Input == nil {
		return
	}

	if tc.scanner == nil {
		tc.scanner = bufio.NewScanner(tc.Input)
	}

	if !tc.scanner.Scan() {
		err = tc.scanner.Err()
		return
	}
	tc.lineNo++

	line, _, _ := strings.Cut(tc.scanner.Text(), "#")
	for _, word := range strings.Fields(line) {
		if word == "-" {
			continue
		}
		key, perr := strconv.ParseUint(word, 16, 8)
		if perr != nil || key >= cpu.KEY_COUNT {
			err = &ErrTapeKey{LineNo: tc.lineNo, Word: word}
			return
		}
		keys[key] = true
	}

	ok = true
	return
}
