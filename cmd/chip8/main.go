// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/chzyer/readline"

	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/debugger"
	"github.com/ezrec/chip8/emulator"
	chipio "github.com/ezrec/chip8/io"
)

var errQuit = errors.New("quit")

func main() {
	var compile string
	var rom string
	var save string
	var headless bool
	var input string
	var frames int
	var hz int
	var debug bool
	var verbose bool
	var configPath string
	var quirks string

	flag.StringVar(&compile, "c", "", ".asm file to assemble")
	flag.StringVar(&rom, "r", "", ".ch8 program image to load")
	flag.StringVar(&save, "s", "", "Save the assembled program image, do not execute")
	flag.BoolVar(&headless, "headless", false, "Run without a terminal, printing the final frame")
	flag.StringVar(&input, "i", "", "Keypad tape for headless mode, '-' for stdin")
	flag.IntVar(&frames, "frames", 0, "Frames to run in headless mode, 0 to run until the tape ends")
	flag.IntVar(&hz, "hz", 0, "Instructions per second")
	flag.BoolVar(&debug, "d", false, "Start the debugger")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")
	flag.StringVar(&configPath, "config", "", "Configuration file")
	flag.StringVar(&quirks, "quirks", "", "Quirks preset: modern, cosmac or chip48")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}

	if hz > 0 {
		config.ClockHz = hz
	}

	if len(quirks) != 0 {
		preset, ok := cpu.QuirksNamed(quirks)
		if !ok {
			log.Fatalf("%v: unknown quirks preset '%v', expected one of %v", os.Args[0], quirks, cpu.QuirksNames())
		}
		config.Quirks = preset
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.ClockHz = config.ClockHz
	emu.Cpu.Quirks = config.Quirks

	switch {
	case len(compile) != 0:
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: verbose}
		for key, value := range emu.Defines() {
			asm.Predefine(key, value)
		}

		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if len(save) != 0 {
			dir, name := chipio.Split(save)
			err = chipio.WriteFile(dir, name, prog.Binary())
			if err != nil {
				log.Fatalf("%v: %v", save, err)
			}
			return
		}

		err = emu.LoadProgram(prog)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	case len(rom) != 0:
		if len(save) != 0 {
			log.Fatalf("%v: -s needs -c", os.Args[0])
		}

		dir, name := chipio.Split(rom)
		data, err := chipio.OpenRom(dir, name)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}

		err = emu.Load(data)
		if err != nil {
			log.Fatalf("%v: %v", rom, err)
		}
	default:
		log.Fatalf("%v: one of -c or -r is required", os.Args[0])
	}

	switch {
	case debug:
		err = runDebugger(emu, config)
	case headless:
		err = runHeadless(emu, input, frames)
	default:
		err = runTerminal(emu)
	}

	if err != nil {
		log.Fatalf("%v: %v", os.Args[0], err)
	}
}

func runDebugger(emu *emulator.Emulator, config Config) (err error) {
	color := UseColor(config.Color, os.Stdout)

	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		HistoryFile:     HistoryPath(),
		Stdout:          Stdout(color),
	})
	if err != nil {
		return
	}
	defer rl.Close()

	repl := &Repl{
		Emu:    emu,
		Dbg:    &debugger.Debugger{Color: color},
		Output: rl.Stdout(),
		Fs:     chipio.DirFS("."),
	}

	err = repl.Run(rl)
	return
}

func runHeadless(emu *emulator.Emulator, input string, frames int) (err error) {
	var keypad chipio.Keypad

	switch input {
	case "":
		if frames == 0 {
			err = errors.New("headless mode needs -frames or -i")
			return
		}
	case "-":
		keypad = &chipio.Tape{Input: os.Stdin}
	default:
		var inf *os.File
		inf, err = os.Open(input)
		if err != nil {
			return
		}
		defer inf.Close()
		keypad = &chipio.Tape{Input: inf}
	}

	screen := &chipio.Screen{Output: os.Stdout, Border: true}

	err = RunHeadless(emu, keypad, screen, frames)
	return
}

func runTerminal(emu *emulator.Emulator) (err error) {
	term, err := NewTerminal()
	if err != nil {
		return
	}
	defer term.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = emu.Run(ctx, func(emu *emulator.Emulator) (err error) {
		keys, ok, err := term.Next()
		if err != nil {
			return
		}
		if !ok {
			return errQuit
		}
		emu.SetKeys(keys)

		term.Sound = emu.SoundActive()
		err = term.Show(emu.Screen())
		return
	})
	if errors.Is(err, errQuit) {
		err = nil
	}

	return
}
