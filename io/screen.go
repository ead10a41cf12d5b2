package io

import (
	"bufio"
	"io"
	"strings"

	"github.com/ezrec/chip8/cpu"
)

const (
	SCREEN_ON  = "█"
	SCREEN_OFF = " "
)

// Screen renders frames as text, one line per display row.
type Screen struct {
	Output io.Writer
	On     string // Text for a lit pixel, SCREEN_ON if empty.
	Off    string // Text for a dark pixel, SCREEN_OFF if empty.
	Border bool   // If set, frames the display with a border.
}

var _ Display = (*Screen)(nil)

// Show writes a frame to the output.
func (sc *Screen) Show(frame []uint32) (err error) {
	on, off := sc.On, sc.Off
	if len(on) == 0 {
		on = SCREEN_ON
	}
	if len(off) == 0 {
		off = SCREEN_OFF
	}

	w := bufio.NewWriter(sc.Output)

	edge := "+" + strings.Repeat("-", cpu.DISPLAY_WIDTH) + "+\n"
	if sc.Border {
		w.WriteString(edge)
	}

	for y := range cpu.DISPLAY_HEIGHT {
		if sc.Border {
			w.WriteByte('|')
		}
		for x := range cpu.DISPLAY_WIDTH {
			n := y*cpu.DISPLAY_WIDTH + x
			if n < len(frame) && frame[n] != cpu.PIXEL_OFF {
				w.WriteString(on)
			} else {
				w.WriteString(off)
			}
		}
		if sc.Border {
			w.WriteByte('|')
		}
		w.WriteByte('\n')
	}

	if sc.Border {
		w.WriteString(edge)
	}

	err = w.Flush()
	return
}
