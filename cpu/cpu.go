package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand"
	"strings"
)

var _cpu_defines = map[string]string{
	"MEMORY_SIZE":     fmt.Sprintf("%#x", MEMORY_SIZE),
	"PROGRAM_START":   fmt.Sprintf("%#x", PROGRAM_START),
	"FONT_START":      fmt.Sprintf("%#x", FONT_START),
	"FONT_GLYPH_SIZE": fmt.Sprintf("%d", FONT_GLYPH_SIZE),
	"DISPLAY_WIDTH":   fmt.Sprintf("%d", DISPLAY_WIDTH),
	"DISPLAY_HEIGHT":  fmt.Sprintf("%d", DISPLAY_HEIGHT),
	"STACK_LIMIT":     fmt.Sprintf("%d", STACK_LIMIT),
}

// KeyWait tracks an LD VX, K instruction in progress.
type KeyWait struct {
	Active bool  // A key went down and has not been released yet.
	Key    uint8 // The key that went down.
}

// Cpu is the CHIP-8 machine state and interpreter.
//
// A Cpu performs no locking. Callers that render or poll input from other
// goroutines must serialize access themselves.
type Cpu struct {
	Verbose bool        // Set to enable verbose logging.
	Log     *log.Logger // Destination for verbose logging, log.Default() if nil.
	Quirks  Quirks      // Interpreter behaviour variants.
	Random  Random      // Source for RND, math/rand if nil.

	Register [REGISTER_COUNT]uint8 // V0-VF.
	Memory   [MEMORY_SIZE]uint8    // Address space.
	I        uint16                // Index register.
	Pc       uint16                // Program counter.
	Stack    Stack                 // Return address stack.
	Delay    uint8                 // Delay timer.
	Sound    uint8                 // Sound timer.
	Display  [DISPLAY_SIZE]uint32  // Framebuffer, PIXEL_ON or PIXEL_OFF.
	Keypad   [KEY_COUNT]bool       // Key states.
	KeyWait  KeyWait               // LD VX, K progress.

	Ticks int // Cycles executed since reset.
}

// NewCpu creates a new CPU in its reset state.
func NewCpu() (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Reset()

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

func (cpu *Cpu) logger() *log.Logger {
	if cpu.Log != nil {
		return cpu.Log
	}
	return log.Default()
}

// Reset the CPU state.
// - Clears registers, stack, timers, keypad, display and memory.
// - Installs the font.
// - Sets the program counter to the start of program memory.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		cpu.logger().Printf("cpu: reset")
	}

	clear(cpu.Register[:])
	clear(cpu.Memory[:])
	clear(cpu.Display[:])
	clear(cpu.Keypad[:])
	cpu.Stack.Reset()
	cpu.KeyWait = KeyWait{}
	cpu.I = 0
	cpu.Delay = 0
	cpu.Sound = 0
	cpu.Ticks = 0

	copy(cpu.Memory[FONT_START:], Font[:])

	cpu.Pc = PROGRAM_START
}

// Load copies a program into memory at PROGRAM_START. Nothing is copied
// if the program does not fit.
func (cpu *Cpu) Load(data []byte) (err error) {
	if PROGRAM_START+len(data) > MEMORY_SIZE {
		err = fmt.Errorf("%w: %v > %v", ErrRomTooLarge, len(data), MEMORY_SIZE-PROGRAM_START)
		return
	}

	copy(cpu.Memory[PROGRAM_START:], data)

	if cpu.Verbose {
		cpu.logger().Printf("cpu: loaded %d bytes", len(data))
	}

	return
}

// FetchCode reads the instruction at the program counter and advances it.
func (cpu *Cpu) FetchCode() (code Code, err error) {
	pc := cpu.Pc
	if int(pc)+1 >= MEMORY_SIZE {
		err = errors.Join(ErrAddress(pc), ErrPcBounds)
		return
	}

	word := uint16(cpu.Memory[pc])<<8 | uint16(cpu.Memory[pc+1])
	cpu.Pc = pc + 2

	code = Decode(word)
	return
}

// Tick executes a single instruction cycle: fetch, decode and execute.
//
// Fatal errors leave the machine as it was before the failing instruction
// executed. An unknown opcode is returned as an error for reporting, but
// the cycle otherwise behaves as a no-op; see IsFatal.
func (cpu *Cpu) Tick() (err error) {
	code, err := cpu.FetchCode()
	if err != nil {
		return
	}

	err = cpu.Execute(code)
	return
}

// Execute executes a single decoded instruction. The program counter must
// already point past the instruction.
func (cpu *Cpu) Execute(code Code) (err error) {
	pc := cpu.Pc - 2
	depth := cpu.Stack.Depth()

	defer func() {
		if err != nil {
			err = errors.Join(ErrOpcode{Code: code, Pc: pc, Depth: depth}, err)
		}
	}()

	if cpu.Verbose {
		cpu.logger().Printf("%03x: %v", pc, code)
	}

	op := code.Op
	if op < 0 || op >= OP_COUNT {
		op = OP_UNKNOWN
	}

	err = _execTable[op](cpu, code)
	if IsFatal(err) {
		return
	}

	cpu.Ticks++

	return
}

// TickTimers decrements the delay and sound timers. It is called at 60Hz,
// between cycles.
func (cpu *Cpu) TickTimers() {
	if cpu.Delay > 0 {
		cpu.Delay--
	}
	if cpu.Sound > 0 {
		cpu.Sound--
	}
}

// SoundActive returns true while the sound timer is running.
func (cpu *Cpu) SoundActive() bool {
	return cpu.Sound > 0
}

// SetKey sets the state of a keypad key. Keys outside 0x0-0xF are ignored.
func (cpu *Cpu) SetKey(key int, down bool) {
	if key < 0 || key >= KEY_COUNT {
		return
	}
	cpu.Keypad[key] = down
}

// ReleaseAll releases every key.
func (cpu *Cpu) ReleaseAll() {
	clear(cpu.Keypad[:])
}

// Key returns the state of a keypad key.
func (cpu *Cpu) Key(key int) bool {
	if key < 0 || key >= KEY_COUNT {
		return false
	}
	return cpu.Keypad[key]
}

// Pixel returns true if the pixel at (x, y) is lit.
func (cpu *Cpu) Pixel(x, y int) bool {
	if x < 0 || x >= DISPLAY_WIDTH || y < 0 || y >= DISPLAY_HEIGHT {
		return false
	}
	return cpu.Display[y*DISPLAY_WIDTH+x] != PIXEL_OFF
}

// Frame returns a copy of the framebuffer.
func (cpu *Cpu) Frame() (frame []uint32) {
	frame = make([]uint32, DISPLAY_SIZE)
	copy(frame, cpu.Display[:])
	return
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"pc", "i", "sp", "stack", "dt", "st",
		"v0", "v1", "v2", "v3", "v4", "v5", "v6", "v7",
		"v8", "v9", "va", "vb", "vc", "vd", "ve", "vf",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "pc":
			strval = fmt.Sprintf("0x%03X", cpu.Pc)
		case "i":
			strval = fmt.Sprintf("0x%03X", cpu.I)
		case "sp":
			strval = fmt.Sprintf("%d", cpu.Stack.Sp)
		case "stack":
			val, ok := cpu.Stack.Peek()
			if ok {
				strval = fmt.Sprintf("0x%03X", val)
			} else {
				strval = "-----"
			}
		case "dt":
			strval = fmt.Sprintf("0x%02X", cpu.Delay)
		case "st":
			strval = fmt.Sprintf("0x%02X", cpu.Sound)
		default:
			val := cpu.Register[registerIndex(reg)]
			strval = fmt.Sprintf("0x%02X", val)
		}
		text += fmt.Sprintf("% 5s: %v\n", reg, strval)
	}

	return
}

// registerIndex returns the index of a register name v0-vf, or -1.
func registerIndex(name string) int {
	if len(name) != 2 || (name[0] != 'v' && name[0] != 'V') {
		return -1
	}

	c := name[1]
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}

	return -1
}

// DumpMemory returns a hex dump of count bytes starting at addr, 16 bytes
// per line. The range is clipped to the end of memory.
func (cpu *Cpu) DumpMemory(addr uint16, count int) string {
	var sb strings.Builder

	end := int(addr) + count
	if end > MEMORY_SIZE {
		end = MEMORY_SIZE
	}

	for i := int(addr); i < end; i++ {
		switch {
		case i == int(addr):
			fmt.Fprintf(&sb, "%03x:", i)
		case (i-int(addr))%16 == 0:
			fmt.Fprintf(&sb, "\n%03x:", i)
		}
		fmt.Fprintf(&sb, " %02x", cpu.Memory[i])
	}
	if end > int(addr) {
		sb.WriteString("\n")
	}

	return sb.String()
}

// DumpDisplay returns the framebuffer as text, '#' for lit pixels and '.'
// for dark ones.
func (cpu *Cpu) DumpDisplay() string {
	var sb strings.Builder

	sb.Grow((DISPLAY_WIDTH + 1) * DISPLAY_HEIGHT)
	for y := range DISPLAY_HEIGHT {
		for x := range DISPLAY_WIDTH {
			if cpu.Display[y*DISPLAY_WIDTH+x] != PIXEL_OFF {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// randomByte returns a random value for RND.
func (cpu *Cpu) randomByte() uint8 {
	if cpu.Random != nil {
		return uint8(cpu.Random.Intn(256))
	}
	return uint8(rand.Intn(256))
}
