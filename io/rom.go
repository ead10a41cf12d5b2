package io

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/ezrec/chip8/cpu"
)

// ROM_LIMIT is the largest program image that fits in program memory.
const ROM_LIMIT = cpu.MEMORY_SIZE - cpu.PROGRAM_START

// ReadRom reads a program image. Images larger than ROM_LIMIT are rejected
// with cpu.ErrRomTooLarge.
func ReadRom(r io.Reader) (data []byte, err error) {
	data, err = io.ReadAll(io.LimitReader(r, ROM_LIMIT+1))
	if err != nil {
		data = nil
		return
	}

	switch {
	case len(data) == 0:
		err = ErrRomEmpty
		data = nil
	case len(data) > ROM_LIMIT:
		err = fmt.Errorf("%w: more than %v bytes", cpu.ErrRomTooLarge, ROM_LIMIT)
		data = nil
	}

	return
}

// OpenRom reads a program image from a file system.
func OpenRom(fsys fs.FS, name string) (data []byte, err error) {
	inf, err := fsys.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	data, err = ReadRom(inf)
	if err != nil {
		err = fmt.Errorf("%v: %w", name, err)
		return
	}

	return
}
