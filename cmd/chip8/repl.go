package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/debugger"
	"github.com/ezrec/chip8/emulator"
	chipio "github.com/ezrec/chip8/io"
	"github.com/ezrec/chip8/snapshot"
	"github.com/ezrec/chip8/translate"
)

const (
	CONTINUE_FRAMES = 60 * 60 // Frame limit for an unbounded continue.
	MEM_COUNT       = 64      // Default byte count for mem.
)

var (
	errUsage   = errors.New("usage")
	errCommand = errors.New("unknown command, try 'help'")
)

// Repl is the interactive debugger.
type Repl struct {
	Emu    *emulator.Emulator
	Dbg    *debugger.Debugger
	Output io.Writer
	Fs     chipio.CreateFS // Location of snapshot files.

	last string // Last command, repeated by an empty line.
}

const _replHelp = `step [N]                 run N instructions (default 1)
continue [FRAMES]        run until a breakpoint or watchpoint
break add ADDR           add a breakpoint
break rm N               remove breakpoint N
break list               list breakpoints
watch add ADDR [SIZE]    watch SIZE bytes (default 1) of memory
watch rm N               remove watchpoint N
watch list               list watchpoints
regs                     show registers
mem ADDR [N]             dump N bytes of memory
screen                   show the display
save FILE                save a snapshot
load FILE                load a snapshot
reset                    reset and reload the program
quit                     exit
`

func parseAddr(word string) (addr uint16, err error) {
	value, err := strconv.ParseUint(word, 0, 16)
	if err != nil || value >= cpu.MEMORY_SIZE {
		err = fmt.Errorf("'%v' is not an address", word)
		return
	}

	addr = uint16(value)
	return
}

func parseCount(word string) (count int, err error) {
	value, err := strconv.ParseUint(word, 0, 31)
	if err != nil || value == 0 {
		err = fmt.Errorf("'%v' is not a count", word)
		return
	}

	count = int(value)
	return
}

func (r *Repl) printf(format string, args ...any) {
	translate.Fprintf(r.Output, format, args...)
}

// Prompt shows the program counter and source line.
func (r *Repl) Prompt() string {
	pc := r.Emu.Cpu.Pc
	lineno := r.Emu.LineNo()
	if lineno != 0 {
		return fmt.Sprintf("0x%03x:%d> ", pc, lineno)
	}
	return fmt.Sprintf("0x%03x> ", pc)
}

// Exec runs one command line.
func (r *Repl) Exec(line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if len(line) == 0 {
		line = r.last
	}
	r.last = line

	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "h", "help", "?":
		r.printf("%s", _replHelp)
	case "s", "step":
		err = r.step(args)
	case "c", "continue":
		err = r.cont(args)
	case "b", "break":
		err = r.breakpoint(args)
	case "w", "watch":
		err = r.watchpoint(args)
	case "r", "regs":
		err = r.Emu.Do(func(c *cpu.Cpu) error {
			r.printf("%s", r.Dbg.Status(c))
			return nil
		})
	case "m", "mem":
		err = r.mem(args)
	case "screen":
		screen := &chipio.Screen{Output: r.Output, On: "#", Off: ".", Border: true}
		err = screen.Show(r.Emu.Screen())
	case "save":
		err = r.save(args)
	case "load":
		err = r.load(args)
	case "reset":
		err = r.Emu.Reset()
	case "q", "quit", "exit":
		quit = true
	default:
		err = fmt.Errorf("%v: %w", cmd, errCommand)
	}

	return
}

// report prints watchpoint hits and non-fatal errors of a cycle.
func (r *Repl) report(hits []debugger.Hit, err error) (stop bool, fatal error) {
	for _, hit := range hits {
		r.printf("%v\n", hit)
		stop = true
	}

	if err != nil {
		if cpu.IsFatal(err) {
			fatal = err
			stop = true
			return
		}
		r.printf("%v\n", err)
	}

	return
}

func (r *Repl) step(args []string) (err error) {
	count := 1
	switch len(args) {
	case 0:
	case 1:
		count, err = parseCount(args[0])
		if err != nil {
			return
		}
	default:
		return fmt.Errorf("%w: step [N]", errUsage)
	}

	err = r.Emu.Do(func(c *cpu.Cpu) (err error) {
		for range count {
			hits, terr := r.Dbg.Step(c)
			stop, fatal := r.report(hits, terr)
			if fatal != nil {
				return fatal
			}
			if stop {
				break
			}
		}
		r.printf("%s", r.Dbg.Status(c))
		return
	})

	return
}

func (r *Repl) cont(args []string) (err error) {
	frames := CONTINUE_FRAMES
	switch len(args) {
	case 0:
	case 1:
		frames, err = parseCount(args[0])
		if err != nil {
			return
		}
	default:
		return fmt.Errorf("%w: continue [FRAMES]", errUsage)
	}

	cycles := max(r.Emu.ClockHz/emulator.TIMER_HZ, 1)

	err = r.Emu.Do(func(c *cpu.Cpu) (err error) {
		first := true
		for range frames {
			for range cycles {
				// The instruction at a breakpoint we are stopped on runs.
				if !first && r.Dbg.ShouldBreak(c) {
					r.printf("break 0x%03x\n", c.Pc)
					r.printf("%s", r.Dbg.Status(c))
					return
				}
				first = false

				hits, terr := r.Dbg.Step(c)
				stop, fatal := r.report(hits, terr)
				if fatal != nil {
					return fatal
				}
				if stop {
					r.printf("%s", r.Dbg.Status(c))
					return
				}
			}
			c.TickTimers()
		}
		r.printf("%s", r.Dbg.Status(c))
		return
	})

	return
}

func (r *Repl) breakpoint(args []string) (err error) {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "a", "add":
		if len(args) != 2 {
			return fmt.Errorf("%w: break add ADDR", errUsage)
		}
		var addr uint16
		addr, err = parseAddr(args[1])
		if err != nil {
			return
		}
		if r.Dbg.AddBreakpoint(addr) {
			r.printf("breakpoint added [0x%03x]\n", addr)
		}
	case "r", "rm":
		if len(args) != 2 {
			return fmt.Errorf("%w: break rm N", errUsage)
		}
		n, perr := strconv.Atoi(args[1])
		if perr != nil || !r.Dbg.RemoveBreakpoint(n) {
			return fmt.Errorf("'%v' is not a breakpoint", args[1])
		}
		r.printf("breakpoint removed [%d]\n", n)
	case "l", "ls", "list":
		for n, bp := range r.Dbg.Breakpoints {
			r.printf("#%d: 0x%03x\n", n, bp.Addr)
		}
	default:
		err = fmt.Errorf("%w: break [add|rm|list]", errUsage)
	}

	return
}

func (r *Repl) watchpoint(args []string) (err error) {
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "a", "add":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("%w: watch add ADDR [SIZE]", errUsage)
		}
		var addr uint16
		addr, err = parseAddr(args[1])
		if err != nil {
			return
		}
		size := 1
		if len(args) == 3 {
			size, err = parseCount(args[2])
			if err != nil {
				return
			}
		}
		if r.Dbg.AddWatchpoint(addr, size) {
			r.printf("watchpoint added [0x%03x] (%d)\n", addr, size)
		}
	case "r", "rm":
		if len(args) != 2 {
			return fmt.Errorf("%w: watch rm N", errUsage)
		}
		n, perr := strconv.Atoi(args[1])
		if perr != nil || !r.Dbg.RemoveWatchpoint(n) {
			return fmt.Errorf("'%v' is not a watchpoint", args[1])
		}
		r.printf("watchpoint removed [%d]\n", n)
	case "l", "ls", "list":
		for n, wp := range r.Dbg.Watchpoints {
			r.printf("#%d: 0x%03x (%d)\n", n, wp.Addr, wp.Size)
		}
	default:
		err = fmt.Errorf("%w: watch [add|rm|list]", errUsage)
	}

	return
}

func (r *Repl) mem(args []string) (err error) {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: mem ADDR [N]", errUsage)
	}

	addr, err := parseAddr(args[0])
	if err != nil {
		return
	}

	count := MEM_COUNT
	if len(args) == 2 {
		count, err = parseCount(args[1])
		if err != nil {
			return
		}
	}

	err = r.Emu.Do(func(c *cpu.Cpu) error {
		r.printf("%s", c.DumpMemory(addr, count))
		return nil
	})

	return
}

func (r *Repl) save(args []string) (err error) {
	if len(args) != 1 {
		return fmt.Errorf("%w: save FILE", errUsage)
	}

	var data []byte
	err = r.Emu.Do(func(c *cpu.Cpu) (err error) {
		data, err = snapshot.Bytes(c)
		return
	})
	if err != nil {
		return
	}

	err = chipio.WriteFile(r.Fs, args[0], data)
	if err != nil {
		return
	}

	r.printf("saved %v\n", args[0])
	return
}

func (r *Repl) load(args []string) (err error) {
	if len(args) != 1 {
		return fmt.Errorf("%w: load FILE", errUsage)
	}

	inf, err := r.Fs.Open(args[0])
	if err != nil {
		return
	}
	defer inf.Close()

	err = r.Emu.Do(func(c *cpu.Cpu) error {
		return snapshot.Load(inf, c)
	})
	if err != nil {
		return
	}

	r.printf("loaded %v\n", args[0])
	return
}

// Run reads and executes commands until quit or end of input.
func (r *Repl) Run(rl *readline.Instance) (err error) {
	for {
		rl.SetPrompt(r.Prompt())

		var line string
		line, err = rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			r.last = ""
			continue
		case errors.Is(err, io.EOF):
			err = nil
			return
		case err != nil:
			return
		}

		quit, xerr := r.Exec(line)
		if xerr != nil {
			r.printf("%v\n", xerr)
		}
		if quit {
			return
		}
	}
}
