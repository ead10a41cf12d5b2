package main

import (
	"github.com/ezrec/chip8/cpu"
	"github.com/ezrec/chip8/emulator"
	chipio "github.com/ezrec/chip8/io"
)

// RunHeadless runs frames as fast as possible, taking keys from keypad (if
// not nil), then shows the final frame on display.
//
// With frames at zero, it runs until the keypad is exhausted. Otherwise it
// runs exactly frames frames, holding no keys once the keypad is exhausted.
func RunHeadless(emu *emulator.Emulator, keypad chipio.Keypad, display chipio.Display, frames int) (err error) {
	for n := 0; frames == 0 || n < frames; n++ {
		if keypad != nil {
			keys, ok, kerr := keypad.Next()
			if kerr != nil {
				return kerr
			}
			if !ok {
				if frames == 0 {
					break
				}
				keypad = nil
				keys = [cpu.KEY_COUNT]bool{}
			}
			emu.SetKeys(keys)
		} else if frames == 0 {
			break
		}

		err = emu.RunFrame()
		if err != nil {
			return
		}
	}

	err = display.Show(emu.Screen())
	return
}
