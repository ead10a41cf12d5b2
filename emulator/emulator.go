// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"context"
	"fmt"
	"iter"
	"log"
	"maps"
	"sync"
	"time"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/internal"
)

const (
	CLOCK_HZ = 700 // Default instruction rate.
	TIMER_HZ = 60  // Delay and sound timer rate, also the frame rate.
)

var _emulator_defines = map[string]string{
	"CLOCK_HZ": fmt.Sprintf("%v", CLOCK_HZ),
	"TIMER_HZ": fmt.Sprintf("%v", TIMER_HZ),
}

// Emulator state. CPU + ROM + pacing.
//
// The Emulator methods are safe for concurrent use. The embedded Cpu may be
// used directly only while Run is not active; otherwise use Do.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	Log      *log.Logger  // Destination for logging, log.Default() if nil.
	ClockHz  int          // Instructions per second.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Reference to the currently running program listing.
	Rom      []byte       // Program image, reloaded on Reset.

	mutex    sync.Mutex
	reported map[uint16]bool // Addresses of unknown opcodes already logged.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		ClockHz: CLOCK_HZ,
		Cpu:     cpu.NewCpu(),
		Program: &cpu.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

func (emu *Emulator) logger() *log.Logger {
	if emu.Log != nil {
		return emu.Log
	}
	return log.Default()
}

// Load sets the program image and resets the machine.
func (emu *Emulator) Load(rom []byte) (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	old := emu.Rom
	emu.Rom = rom

	err = emu.reset()
	if err != nil {
		emu.Rom = old
		_ = emu.reset()
		return
	}

	return
}

// LoadProgram loads the binary image of an assembled program, and keeps
// the listing for LineNo.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	err = emu.Load(prog.Binary())
	if err != nil {
		return
	}

	emu.mutex.Lock()
	emu.Program = prog
	emu.mutex.Unlock()

	return
}

// Reset the machine and reload the ROM.
func (emu *Emulator) Reset() (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	err = emu.reset()
	return
}

func (emu *Emulator) reset() (err error) {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Log = emu.Log

	emu.Cpu.Reset()
	err = emu.Cpu.Load(emu.Rom)
	if err != nil {
		return
	}

	clear(emu.reported)

	return
}

// Do calls fn with the Cpu while holding the emulator lock.
func (emu *Emulator) Do(fn func(c *cpu.Cpu) error) error {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return fn(emu.Cpu)
}

// Ticks returns the total ticks since a reset.
func (emu *Emulator) Ticks() int {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Ticks
}

// LineNo returns the source line number for the next instruction, or 0.
func (emu *Emulator) LineNo() int {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.lineNo()
}

func (emu *Emulator) lineNo() int {
	if emu.Program == nil {
		return 0
	}

	dbg := emu.Program.Debug(emu.Cpu.Pc)
	if dbg.Opcode == nil {
		return 0
	}

	return dbg.Opcode.LineNo
}

// Tick performs a single instruction cycle.
//
// Unknown opcodes are logged once per address and otherwise ignored. Fatal
// errors are returned as an *ErrRuntime.
func (emu *Emulator) Tick() (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	err = emu.tick()
	return
}

func (emu *Emulator) tick() (err error) {
	c := emu.Cpu
	c.Verbose = emu.Verbose

	pc := c.Pc
	depth := c.Stack.Depth()
	lineno := emu.lineNo()

	err = c.Tick()
	if err == nil {
		return
	}

	if !cpu.IsFatal(err) {
		if !emu.reported[pc] {
			if emu.reported == nil {
				emu.reported = make(map[uint16]bool)
			}
			emu.reported[pc] = true
			emu.logger().Printf("chip8: %v", err)
		}
		err = nil
		return
	}

	var word uint16
	if int(pc)+1 < cpu.MEMORY_SIZE {
		word = uint16(c.Memory[pc])<<8 | uint16(c.Memory[pc+1])
	}

	err = &ErrRuntime{Ip: pc, Word: word, Depth: depth, LineNo: lineno, Err: err}
	return
}

// Step runs up to count instruction cycles, stopping at the first error.
func (emu *Emulator) Step(count int) (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	for range count {
		err = emu.tick()
		if err != nil {
			return
		}
	}

	return
}

// RunFrame runs one frame: ClockHz/TIMER_HZ cycles followed by a timer tick.
func (emu *Emulator) RunFrame() (err error) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	cycles := emu.ClockHz / TIMER_HZ
	if cycles < 1 {
		cycles = 1
	}

	for range cycles {
		err = emu.tick()
		if err != nil {
			return
		}
	}

	emu.Cpu.TickTimers()

	return
}

// TickTimers decrements the delay and sound timers.
func (emu *Emulator) TickTimers() {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Cpu.TickTimers()
}

// SoundActive returns true while the sound timer is running.
func (emu *Emulator) SoundActive() bool {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.SoundActive()
}

// SetKey sets the state of a keypad key.
func (emu *Emulator) SetKey(key int, down bool) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Cpu.SetKey(key, down)
}

// SetKeys sets the state of every keypad key.
func (emu *Emulator) SetKeys(keys [cpu.KEY_COUNT]bool) {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Cpu.Keypad = keys
}

// ReleaseAll releases every key.
func (emu *Emulator) ReleaseAll() {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	emu.Cpu.ReleaseAll()
}

// Screen returns a copy of the framebuffer.
func (emu *Emulator) Screen() []uint32 {
	emu.mutex.Lock()
	defer emu.mutex.Unlock()

	return emu.Cpu.Frame()
}

// Run executes frames at TIMER_HZ until the context is cancelled or a fatal
// error occurs. After each frame, onFrame (if not nil) is called without the
// lock held; a non-nil return stops Run with that error.
func (emu *Emulator) Run(ctx context.Context, onFrame func(emu *Emulator) error) (err error) {
	ticker := time.NewTicker(time.Second / TIMER_HZ)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err = emu.RunFrame()
		if err != nil {
			return
		}

		if onFrame != nil {
			err = onFrame(emu)
			if err != nil {
				return
			}
		}
	}
}
