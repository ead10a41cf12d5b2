package main

import (
	"fmt"

	"github.com/nsf/termbox-go"

	"github.com/ezrec/chip8/cpu"
	chipio "github.com/ezrec/chip8/io"
)

// KEY_HOLD is how many frames a key stays down after a press. Terminals
// report presses only, never releases.
const KEY_HOLD = 6

// The COSMAC VIP keypad on the left hand side of a QWERTY keyboard.
//
//	1 2 3 C      1 2 3 4
//	4 5 6 D  ->  q w e r
//	7 8 9 E      a s d f
//	A 0 B F      z x c v
var _termKeys = map[rune]int{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// Terminal shows the display, and reads the keypad, on a termbox terminal.
// Each character cell shows two pixels, one above the other.
type Terminal struct {
	Sound bool // If set, the status line shows the sound timer is active.

	held   [cpu.KEY_COUNT]int
	events chan termbox.Event
	done   chan struct{}
}

var _ chipio.Display = (*Terminal)(nil)
var _ chipio.Keypad = (*Terminal)(nil)

// NewTerminal takes over the terminal.
func NewTerminal() (term *Terminal, err error) {
	err = termbox.Init()
	if err != nil {
		return
	}
	termbox.SetInputMode(termbox.InputEsc)

	term = &Terminal{
		events: make(chan termbox.Event, 16),
		done:   make(chan struct{}),
	}

	go term.poll()

	return
}

func (term *Terminal) poll() {
	for {
		ev := termbox.PollEvent()
		if ev.Type == termbox.EventInterrupt {
			return
		}
		select {
		case term.events <- ev:
		case <-term.done:
			return
		}
	}
}

// Close restores the terminal.
func (term *Terminal) Close() {
	close(term.done)
	termbox.Interrupt()
	termbox.Close()
}

// press handles a key event, returning false to quit.
func (term *Terminal) press(ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return false
	}

	key, ok := _termKeys[ev.Ch]
	if ok {
		term.held[key] = KEY_HOLD
	}

	return true
}

// Next returns the keys held for the next frame. ok is false once the user
// has asked to quit.
func (term *Terminal) Next() (keys [cpu.KEY_COUNT]bool, ok bool, err error) {
	for n := range term.held {
		if term.held[n] > 0 {
			term.held[n]--
		}
	}

	for {
		select {
		case ev := <-term.events:
			switch ev.Type {
			case termbox.EventError:
				err = ev.Err
				return
			case termbox.EventKey:
				if !term.press(ev) {
					return
				}
			}
			continue
		default:
		}
		break
	}

	for n, count := range term.held {
		keys[n] = count > 0
	}

	ok = true
	return
}

// Show draws a frame, and the status line below it.
func (term *Terminal) Show(frame []uint32) (err error) {
	color := func(x, y int) termbox.Attribute {
		n := y*cpu.DISPLAY_WIDTH + x
		if n < len(frame) && frame[n] != cpu.PIXEL_OFF {
			return termbox.ColorWhite
		}
		return termbox.ColorBlack
	}

	for y := 0; y < cpu.DISPLAY_HEIGHT; y += 2 {
		for x := range cpu.DISPLAY_WIDTH {
			termbox.SetCell(x, y/2, '▀', color(x, y), color(x, y+1))
		}
	}

	status := "esc: quit"
	if term.Sound {
		status = fmt.Sprintf("%-*s", cpu.DISPLAY_WIDTH-4, status) + "BEEP"
	}
	row := cpu.DISPLAY_HEIGHT / 2
	for x := range cpu.DISPLAY_WIDTH {
		ch := ' '
		if x < len(status) {
			ch = rune(status[x])
		}
		termbox.SetCell(x, row, ch, termbox.ColorDefault, termbox.ColorDefault)
	}

	err = termbox.Flush()
	return
}
