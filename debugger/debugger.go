// Package debugger provides breakpoints, memory watchpoints and register
// status for a CHIP-8 machine.
package debugger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/ezrec/chip8/cpu"
)

var (
	_colorSame = ansi.ColorCode("default:default")
	_colorNew  = ansi.ColorCode("default+bu:default")
)

// Breakpoint stops execution before the instruction at Addr.
type Breakpoint struct {
	Addr uint16
}

// Watchpoint reports changes to the Size bytes starting at Addr.
type Watchpoint struct {
	Addr uint16
	Size int
}

// Contains returns true if addr is watched.
func (wp Watchpoint) Contains(addr uint16) bool {
	return addr >= wp.Addr && int(addr) < int(wp.Addr)+wp.Size
}

// Hit is a triggered watchpoint.
type Hit struct {
	Watchpoint
	Old []byte // Bytes before the cycle.
	New []byte // Bytes after the cycle.
}

func (hit Hit) String() string {
	return fmt.Sprintf("watch 0x%03x: % x -> % x", hit.Addr, hit.Old, hit.New)
}

// Debugger state.
type Debugger struct {
	Break bool // If set, the next ShouldBreak returns true.
	Color bool // If set, Status marks changes with ANSI colours.

	Breakpoints []Breakpoint
	Watchpoints []Watchpoint

	last *status // Registers at the last Status.
}

// AddBreakpoint adds a breakpoint, returning false if it already exists.
func (dbg *Debugger) AddBreakpoint(addr uint16) (ok bool) {
	bp := Breakpoint{Addr: addr}
	if slices.Contains(dbg.Breakpoints, bp) {
		return
	}

	dbg.Breakpoints = append(dbg.Breakpoints, bp)
	return true
}

// RemoveBreakpoint removes the n'th breakpoint.
func (dbg *Debugger) RemoveBreakpoint(n int) (ok bool) {
	if n < 0 || n >= len(dbg.Breakpoints) {
		return
	}

	dbg.Breakpoints = slices.Delete(dbg.Breakpoints, n, n+1)
	return true
}

// AddWatchpoint adds a watchpoint, returning false if it already exists or
// does not fit in memory.
func (dbg *Debugger) AddWatchpoint(addr uint16, size int) (ok bool) {
	if size < 1 || int(addr)+size > cpu.MEMORY_SIZE {
		return
	}

	wp := Watchpoint{Addr: addr, Size: size}
	if slices.Contains(dbg.Watchpoints, wp) {
		return
	}

	dbg.Watchpoints = append(dbg.Watchpoints, wp)
	return true
}

// RemoveWatchpoint removes the n'th watchpoint.
func (dbg *Debugger) RemoveWatchpoint(n int) (ok bool) {
	if n < 0 || n >= len(dbg.Watchpoints) {
		return
	}

	dbg.Watchpoints = slices.Delete(dbg.Watchpoints, n, n+1)
	return true
}

// ShouldBreak is checked before each cycle. It returns true, and clears
// Break, if Break is set or the program counter is at a breakpoint.
func (dbg *Debugger) ShouldBreak(c *cpu.Cpu) bool {
	if dbg.Break {
		dbg.Break = false
		return true
	}

	return slices.Contains(dbg.Breakpoints, Breakpoint{Addr: c.Pc})
}

// Step runs one cycle, and returns the watchpoints whose memory changed.
func (dbg *Debugger) Step(c *cpu.Cpu) (hits []Hit, err error) {
	before := make([][]byte, len(dbg.Watchpoints))
	for n, wp := range dbg.Watchpoints {
		before[n] = slices.Clone(c.Memory[wp.Addr : int(wp.Addr)+wp.Size])
	}

	err = c.Tick()

	for n, wp := range dbg.Watchpoints {
		after := c.Memory[wp.Addr : int(wp.Addr)+wp.Size]
		if slices.Equal(before[n], after) {
			continue
		}
		hits = append(hits, Hit{Watchpoint: wp, Old: before[n], New: slices.Clone(after)})
	}

	return
}

// status is a snapshot of the registers shown by Status.
type status struct {
	pc, i  uint16
	sp     uint8
	dt, st uint8
	v      [cpu.REGISTER_COUNT]uint8
}

func capture(c *cpu.Cpu) *status {
	return &status{
		pc: c.Pc,
		i:  c.I,
		sp: c.Stack.Sp,
		dt: c.Delay,
		st: c.Sound,
		v:  c.Register,
	}
}

// field formats one register, marking it if it changed.
func (dbg *Debugger) field(name string, digits int, value, old uint16, changed bool) string {
	text := fmt.Sprintf("%0*x", digits, value)
	switch {
	case !changed:
		return fmt.Sprintf(" %2s %s", name, text)
	case !dbg.Color:
		return fmt.Sprintf("+%2s %s", name, text)
	}

	// Highlight only the changed digits.
	prev := fmt.Sprintf("%0*x", digits, old)
	var sb strings.Builder
	fmt.Fprintf(&sb, " %s%2s%s ", _colorNew, name, ansi.Reset)
	for n := range text {
		if text[n] != prev[n] {
			sb.WriteString(_colorNew)
		} else {
			sb.WriteString(_colorSame)
		}
		sb.WriteByte(text[n])
	}
	sb.WriteString(ansi.Reset)

	return sb.String()
}

// Status returns the register state. Registers that changed since the
// previous Status are marked.
func (dbg *Debugger) Status(c *cpu.Cpu) string {
	now := capture(c)
	old := dbg.last
	if old == nil {
		old = now
	}
	dbg.last = now

	var sb strings.Builder

	sb.WriteString(dbg.field("pc", 3, now.pc, old.pc, now.pc != old.pc))
	sb.WriteString(dbg.field("i", 3, now.i, old.i, now.i != old.i))
	sb.WriteString(dbg.field("sp", 2, uint16(now.sp), uint16(old.sp), now.sp != old.sp))
	sb.WriteString(dbg.field("dt", 2, uint16(now.dt), uint16(old.dt), now.dt != old.dt))
	sb.WriteString(dbg.field("st", 2, uint16(now.st), uint16(old.st), now.st != old.st))
	sb.WriteByte('\n')

	for n := range cpu.REGISTER_COUNT {
		name := fmt.Sprintf("v%x", n)
		sb.WriteString(dbg.field(name, 2, uint16(now.v[n]), uint16(old.v[n]), now.v[n] != old.v[n]))
		if n%8 == 7 {
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}
