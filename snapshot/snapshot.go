// Package snapshot saves and restores the complete state of a CHIP-8 machine.
//
// A snapshot is a fixed header followed by a snappy compressed body:
//
//	header
//	  [4]byte  magic "C8SS"
//	  uint32   format version
//	body (snappy stream)
//	  [16]uint8   V0-VF
//	  uint16      I
//	  uint16      Pc
//	  uint8       Sp
//	  [16]uint16  stack
//	  uint8       delay timer
//	  uint8       sound timer
//	  uint16      keypad, bit N is key N
//	  uint8       key wait active
//	  uint8       key wait key
//	  [4096]uint8 memory
//	  [256]uint8  display, 1 bit per pixel, MSB first
//
// All multi-byte values are big-endian.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/ezrec/chip8/cpu"
)

const (
	SNAPSHOT_MAGIC   = "C8SS"
	SNAPSHOT_VERSION = 1

	DISPLAY_BYTES = cpu.DISPLAY_SIZE / 8
)

var (
	ErrMagic   = errors.New("snapshot: bad magic")
	ErrVersion = errors.New("snapshot: unsupported version")
	ErrStack   = errors.New("snapshot: stack pointer out of range")
	ErrKey     = errors.New("snapshot: key out of range")
)

var _options = &struc.Options{Order: binary.BigEndian}

// Header leads every snapshot.
type Header struct {
	Magic   string `struc:"[4]byte"`
	Version uint32
}

// State is the packed machine state.
type State struct {
	Register [cpu.REGISTER_COUNT]uint8
	I        uint16
	Pc       uint16
	Sp       uint8
	Stack    [cpu.STACK_LIMIT]uint16
	Delay    uint8
	Sound    uint8
	Keypad   uint16
	WaitOn   uint8
	WaitKey  uint8
	Memory   [cpu.MEMORY_SIZE]uint8
	Display  [DISPLAY_BYTES]uint8
}

// capture copies the machine state out of the cpu.
func capture(c *cpu.Cpu) (state *State) {
	state = &State{
		Register: c.Register,
		I:        c.I,
		Pc:       c.Pc,
		Sp:       c.Stack.Sp,
		Stack:    c.Stack.Data,
		Delay:    c.Delay,
		Sound:    c.Sound,
		WaitKey:  c.KeyWait.Key,
		Memory:   c.Memory,
	}

	if c.KeyWait.Active {
		state.WaitOn = 1
	}

	for key, down := range c.Keypad {
		if down {
			state.Keypad |= 1 << key
		}
	}

	for n, pixel := range c.Display {
		if pixel != cpu.PIXEL_OFF {
			state.Display[n/8] |= 0x80 >> (n % 8)
		}
	}

	return
}

// restore copies a validated state into the cpu.
func (state *State) restore(c *cpu.Cpu) {
	c.Register = state.Register
	c.I = state.I
	c.Pc = state.Pc
	c.Stack.Sp = state.Sp
	c.Stack.Data = state.Stack
	c.Delay = state.Delay
	c.Sound = state.Sound
	c.KeyWait = cpu.KeyWait{Active: state.WaitOn != 0, Key: state.WaitKey}
	c.Memory = state.Memory

	for key := range c.Keypad {
		c.Keypad[key] = state.Keypad&(1<<key) != 0
	}

	for n := range c.Display {
		if state.Display[n/8]&(0x80>>(n%8)) != 0 {
			c.Display[n] = cpu.PIXEL_ON
		} else {
			c.Display[n] = cpu.PIXEL_OFF
		}
	}
}

func (state *State) validate() error {
	if int(state.Sp) > cpu.STACK_LIMIT {
		return errors.Wrapf(ErrStack, "sp %d", state.Sp)
	}
	if state.WaitOn != 0 && int(state.WaitKey) >= cpu.KEY_COUNT {
		return errors.Wrapf(ErrKey, "key %d", state.WaitKey)
	}
	return nil
}

// Save writes a snapshot of the cpu to w.
func Save(w io.Writer, c *cpu.Cpu) error {
	header := &Header{
		Magic:   SNAPSHOT_MAGIC,
		Version: SNAPSHOT_VERSION,
	}
	if err := struc.PackWithOptions(w, header, _options); err != nil {
		return errors.Wrap(err, "failed to pack header")
	}

	zw := snappy.NewBufferedWriter(w)
	if err := struc.PackWithOptions(zw, capture(c), _options); err != nil {
		return errors.Wrap(err, "failed to pack state")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush state")
	}

	return nil
}

// Load restores the cpu from a snapshot read from r. On any error the cpu
// is left untouched.
func Load(r io.Reader, c *cpu.Cpu) error {
	var header Header
	if err := struc.UnpackWithOptions(r, &header, _options); err != nil {
		return errors.Wrap(err, "failed to unpack header")
	}
	if header.Magic != SNAPSHOT_MAGIC {
		return errors.Wrapf(ErrMagic, "%q", header.Magic)
	}
	if header.Version != SNAPSHOT_VERSION {
		return errors.Wrapf(ErrVersion, "version %d", header.Version)
	}

	var state State
	zr := snappy.NewReader(r)
	if err := struc.UnpackWithOptions(zr, &state, _options); err != nil {
		return errors.Wrap(err, "failed to unpack state")
	}
	if err := state.validate(); err != nil {
		return err
	}

	state.restore(c)

	return nil
}

// Bytes returns a snapshot of the cpu as a byte slice.
func Bytes(c *cpu.Cpu) (data []byte, err error) {
	var buf bytes.Buffer
	err = Save(&buf, c)
	if err != nil {
		return
	}

	data = buf.Bytes()
	return
}
