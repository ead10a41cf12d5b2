package cpu

// Memory map and machine geometry.
const (
	MEMORY_SIZE     = 4096  // Bytes of addressable memory.
	PROGRAM_START   = 0x200 // First byte of program memory; below is reserved.
	FONT_START      = 0x050 // Address of the hexadecimal font glyphs.
	FONT_GLYPH_SIZE = 5     // Bytes per glyph.
	ADDRESS_MASK    = 0xfff // Valid range of the index register.

	REGISTER_COUNT = 16  // General purpose registers V0-VF.
	REGISTER_FLAG  = 0xf // VF, the carry/borrow/collision flag.
	KEY_COUNT      = 16  // Hexadecimal keypad.

	DISPLAY_WIDTH  = 64
	DISPLAY_HEIGHT = 32
	DISPLAY_SIZE   = DISPLAY_WIDTH * DISPLAY_HEIGHT

	PIXEL_OFF = uint32(0)
	PIXEL_ON  = uint32(0xffffffff)
)

// Font holds the 4x5 glyphs for the hexadecimal digits 0-F.
var Font = [16 * FONT_GLYPH_SIZE]uint8{
	0xf0, 0x90, 0x90, 0x90, 0xf0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xf0, 0x10, 0xf0, 0x80, 0xf0, // 2
	0xf0, 0x10, 0xf0, 0x10, 0xf0, // 3
	0x90, 0x90, 0xf0, 0x10, 0x10, // 4
	0xf0, 0x80, 0xf0, 0x10, 0xf0, // 5
	0xf0, 0x80, 0xf0, 0x90, 0xf0, // 6
	0xf0, 0x10, 0x20, 0x40, 0x40, // 7
	0xf0, 0x90, 0xf0, 0x90, 0xf0, // 8
	0xf0, 0x90, 0xf0, 0x10, 0xf0, // 9
	0xf0, 0x90, 0xf0, 0x90, 0x90, // A
	0xe0, 0x90, 0xe0, 0x90, 0xe0, // B
	0xf0, 0x80, 0x80, 0x80, 0xf0, // C
	0xe0, 0x90, 0x90, 0x90, 0xe0, // D
	0xf0, 0x80, 0xf0, 0x80, 0xf0, // E
	0xf0, 0x80, 0xf0, 0x80, 0x80, // F
}

// checkRead verifies that count bytes starting at addr are in memory.
func (cpu *Cpu) checkRead(addr uint16, count int) (err error) {
	if int(addr)+count > MEMORY_SIZE {
		err = ErrMemoryBounds
	}
	return
}

// checkWrite verifies that count bytes starting at addr are in program memory.
func (cpu *Cpu) checkWrite(addr uint16, count int) (err error) {
	if addr < PROGRAM_START {
		err = ErrMemoryProtected
		return
	}
	return cpu.checkRead(addr, count)
}
