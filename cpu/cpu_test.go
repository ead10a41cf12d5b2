package cpu

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fixedRandom always returns the same value.
type fixedRandom struct {
	value int
}

func (fr *fixedRandom) Intn(n int) int {
	return fr.value % n
}

// testCpu returns a reset Cpu with the instruction words loaded.
func testCpu(t *testing.T, words ...uint16) (cpu *Cpu) {
	cpu = NewCpu()
	cpu.Random = &fixedRandom{value: 0xa5}

	data := make([]byte, 0, 2*len(words))
	for _, word := range words {
		data = append(data, byte(word>>8), byte(word))
	}

	err := cpu.Load(data)
	if err != nil {
		t.Fatal(err)
	}

	return
}

// runTicks executes count cycles, failing the test on any error.
func runTicks(t *testing.T, cpu *Cpu, count int) {
	for n := range count {
		err := cpu.Tick()
		if err != nil {
			t.Fatalf("tick %d: %v", n, err)
		}
	}
}

func TestNewCpu(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.Equal(uint16(PROGRAM_START), cpu.Pc)
	assert.Equal(Font[:], cpu.Memory[FONT_START:FONT_START+len(Font)])
	assert.True(cpu.Stack.Empty())
	assert.Equal(uint16(0), cpu.I)

	for _, pixel := range cpu.Display {
		assert.Equal(PIXEL_OFF, pixel)
	}
}

func TestReset(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x6022, 0x2300)
	runTicks(t, cpu, 2)
	cpu.Delay = 7
	cpu.Sound = 9
	cpu.Display[10] = PIXEL_ON
	cpu.SetKey(3, true)
	cpu.Memory[0x800] = 0x55

	cpu.Reset()

	fresh := NewCpu()
	fresh.Random = cpu.Random
	assert.Equal(*fresh, *cpu)
}

func TestLoad(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load([]byte{0x60, 0x22}))
	assert.Equal(uint8(0x60), cpu.Memory[0x200])
	assert.Equal(uint8(0x22), cpu.Memory[0x201])

	full := bytes.Repeat([]byte{0xaa}, MEMORY_SIZE-PROGRAM_START)
	assert.NoError(cpu.Load(full))
	assert.Equal(uint8(0xaa), cpu.Memory[MEMORY_SIZE-1])

	cpu.Reset()
	err := cpu.Load(append(full, 0xbb))
	assert.ErrorIs(err, ErrRomTooLarge)
	assert.Equal(uint8(0), cpu.Memory[PROGRAM_START])
}

func TestLoadAddRun(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	assert.NoError(cpu.Load([]byte{0x60, 0x22, 0x70, 0x22}))

	runTicks(t, cpu, 2)

	assert.Equal(uint8(0x44), cpu.Register[0])
	for n := 1; n < REGISTER_COUNT; n++ {
		assert.Equal(uint8(0), cpu.Register[n], "v%x", n)
	}
	assert.Equal(uint16(0x204), cpu.Pc)
	assert.Equal(2, cpu.Ticks)
}

func TestFetchBounds(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.Pc = MEMORY_SIZE - 1

	err := cpu.Tick()
	assert.ErrorIs(err, ErrPcBounds)
	assert.True(IsFatal(err))
	assert.Equal(uint16(MEMORY_SIZE-1), cpu.Pc)

	cpu.Pc = MEMORY_SIZE - 2
	assert.NoError(cpu.Tick())
}

func TestAddRegister(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name  string
		a, b  uint8
		sum   uint8
		carry uint8
	}){
		{"zero", 0, 0, 0, 0},
		{"simple", 0x12, 0x34, 0x46, 0},
		{"edge", 0xff, 0x00, 0xff, 0},
		{"carry", 0xff, 0x01, 0x00, 1},
		{"max", 0xff, 0xff, 0xfe, 1},
	}

	for _, entry := range table {
		cpu := testCpu(t, 0x8014)
		cpu.Register[0] = entry.a
		cpu.Register[1] = entry.b
		runTicks(t, cpu, 1)

		assert.Equal(entry.sum, cpu.Register[0], entry.name)
		assert.Equal(entry.carry, cpu.Register[REGISTER_FLAG], entry.name)
	}
}

func TestSubtract(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		word   uint16
		a, b   uint8
		result uint8
		flag   uint8
	}){
		{"sub", 0x8015, 0x30, 0x10, 0x20, 1},
		{"sub_equal", 0x8015, 0x30, 0x30, 0x00, 1},
		{"sub_borrow", 0x8015, 0x10, 0x30, 0xe0, 0},
		{"subn", 0x8017, 0x10, 0x30, 0x20, 1},
		{"subn_equal", 0x8017, 0x30, 0x30, 0x00, 1},
		{"subn_borrow", 0x8017, 0x30, 0x10, 0xe0, 0},
	}

	for _, entry := range table {
		cpu := testCpu(t, entry.word)
		cpu.Register[0] = entry.a
		cpu.Register[1] = entry.b
		runTicks(t, cpu, 1)

		assert.Equal(entry.result, cpu.Register[0], entry.name)
		assert.Equal(entry.flag, cpu.Register[REGISTER_FLAG], entry.name)
	}
}

func TestFlagDestination(t *testing.T) {
	assert := assert.New(t)

	// With VF as the destination the flag is the final value.
	cpu := testCpu(t, 0x8f14)
	cpu.Register[0xf] = 0xff
	cpu.Register[1] = 0x02
	runTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[0xf])

	cpu = testCpu(t, 0x8f15)
	cpu.Register[0xf] = 0x10
	cpu.Register[1] = 0x20
	runTicks(t, cpu, 1)
	assert.Equal(uint8(0), cpu.Register[0xf])
}

func TestShift(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		quirks Quirks
		word   uint16
		vx, vy uint8
		result uint8
		flag   uint8
	}){
		{"shr", Quirks{}, 0x8016, 0x81, 0x00, 0x40, 1},
		{"shr_even", Quirks{}, 0x8016, 0x80, 0x00, 0x40, 0},
		{"shl", Quirks{}, 0x801e, 0x81, 0x00, 0x02, 1},
		{"shl_low", Quirks{}, 0x801e, 0x41, 0x00, 0x82, 0},
		{"shr_vy", Quirks{ShiftUsesVy: true}, 0x8016, 0x00, 0x03, 0x01, 1},
		{"shl_vy", Quirks{ShiftUsesVy: true}, 0x801e, 0x00, 0xc0, 0x80, 1},
	}

	for _, entry := range table {
		cpu := testCpu(t, entry.word)
		cpu.Quirks = entry.quirks
		cpu.Register[0] = entry.vx
		cpu.Register[1] = entry.vy
		runTicks(t, cpu, 1)

		assert.Equal(entry.result, cpu.Register[0], entry.name)
		assert.Equal(entry.flag, cpu.Register[REGISTER_FLAG], entry.name)
	}
}

func TestLogic(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name   string
		word   uint16
		result uint8
	}){
		{"ld", 0x8010, 0x0f},
		{"or", 0x8011, 0x3f},
		{"and", 0x8012, 0x0c},
		{"xor", 0x8013, 0x33},
	}

	for _, entry := range table {
		for _, reset := range []bool{false, true} {
			cpu := testCpu(t, entry.word)
			cpu.Quirks.LogicResetsVF = reset
			cpu.Register[0] = 0x3c
			cpu.Register[1] = 0x0f
			cpu.Register[REGISTER_FLAG] = 0x77
			runTicks(t, cpu, 1)

			assert.Equal(entry.result, cpu.Register[0], entry.name)

			flag := uint8(0x77)
			if reset && entry.word&0xf != 0 {
				flag = 0
			}
			assert.Equal(flag, cpu.Register[REGISTER_FLAG], entry.name)
		}
	}
}

func TestImmediate(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x6af0, 0x7a20, 0x6f09, 0x7f01)
	runTicks(t, cpu, 4)

	assert.Equal(uint8(0x10), cpu.Register[0xa])
	assert.Equal(uint8(0x0a), cpu.Register[0xf])
}

func TestSkip(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		name string
		word uint16
		skip bool
	}){
		{"se_imm_match", 0x3012, true},
		{"se_imm_miss", 0x3013, false},
		{"sne_imm_match", 0x4012, false},
		{"sne_imm_miss", 0x4013, true},
		{"se_reg_match", 0x5010, true},
		{"se_reg_miss", 0x5020, false},
		{"sne_reg_match", 0x9010, false},
		{"sne_reg_miss", 0x9020, true},
		{"skp_down", 0xe39e, true},
		{"skp_up", 0xe49e, false},
		{"sknp_down", 0xe3a1, false},
		{"sknp_up", 0xe4a1, true},
	}

	for _, entry := range table {
		cpu := testCpu(t, entry.word)
		cpu.Register[0] = 0x12
		cpu.Register[1] = 0x12
		cpu.Register[2] = 0x34
		cpu.Register[3] = 0x15 // Key 5, via the low nibble.
		cpu.Register[4] = 0x06
		cpu.SetKey(5, true)
		runTicks(t, cpu, 1)

		pc := uint16(0x202)
		if entry.skip {
			pc = 0x204
		}
		assert.Equal(pc, cpu.Pc, entry.name)
	}
}

func TestJumpCall(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t,
		0x2206, // 200: call 0x206
		0x6101, // 202: ld v1 0x01
		0x1202, // 204: jp 0x202
		0x6007, // 206: ld v0 0x07
		0x00ee, // 208: ret
	)

	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x206), cpu.Pc)
	assert.Equal(1, cpu.Stack.Depth())

	runTicks(t, cpu, 2)
	assert.Equal(uint16(0x202), cpu.Pc)
	assert.True(cpu.Stack.Empty())
	assert.Equal(uint8(0x07), cpu.Register[0])

	for range 10 {
		runTicks(t, cpu, 1)
		assert.Equal(uint16(0), cpu.Pc%2)
	}
	assert.Equal(uint8(0x01), cpu.Register[1])
}

func TestJumpOffset(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xb300)
	cpu.Register[0] = 0x10
	cpu.Register[3] = 0x20
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x310), cpu.Pc)

	cpu = testCpu(t, 0xb300)
	cpu.Quirks.JumpUsesVx = true
	cpu.Register[0] = 0x10
	cpu.Register[3] = 0x20
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x320), cpu.Pc)

	cpu = testCpu(t, 0xbfff)
	cpu.Register[0] = 0x10
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x100f), cpu.Pc)
	assert.ErrorIs(cpu.Tick(), ErrPcBounds)
}

func TestStackErrors(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x00ee)
	err := cpu.Tick()
	assert.ErrorIs(err, ErrStackEmpty)
	assert.ErrorIs(err, ErrOpcode{})
	assert.True(IsFatal(err))

	var opErr ErrOpcode
	assert.True(errors.As(err, &opErr))
	assert.Equal(uint16(0x200), opErr.Pc)
	assert.Equal(uint16(0x00ee), opErr.Code.Word)

	// Recursive call overflows on the 17th push.
	cpu = testCpu(t, 0x2200)
	runTicks(t, cpu, STACK_LIMIT)
	assert.True(cpu.Stack.Full())

	before := *cpu
	err = cpu.Tick()
	assert.ErrorIs(err, ErrStackFull)
	assert.True(IsFatal(err))
	assert.Equal(before.Stack, cpu.Stack)
	assert.Equal(before.Ticks, cpu.Ticks)
}

func TestUnknownOpcode(t *testing.T) {
	assert := assert.New(t)

	for _, word := range []uint16{0x5011, 0x9012, 0x800f, 0xe000, 0xf0ff} {
		cpu := testCpu(t, word)
		for n := range REGISTER_COUNT {
			cpu.Register[n] = uint8(n * 3)
		}

		before := *cpu
		err := cpu.Tick()
		assert.ErrorIs(err, ErrOpcodeUnknown, "%04x", word)
		assert.False(IsFatal(err))

		before.Pc += 2
		before.Ticks++
		assert.Equal(before, *cpu, "%04x", word)

		// The machine continues after an unknown opcode.
		assert.NoError(cpu.Tick())
	}
}

func TestSys(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x0123)
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x202), cpu.Pc)
}

func TestClearScreen(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x00e0, 0x00e0)
	for n := range cpu.Display {
		if n%3 == 0 {
			cpu.Display[n] = PIXEL_ON
		}
	}

	runTicks(t, cpu, 1)
	for _, pixel := range cpu.Frame() {
		assert.Equal(PIXEL_OFF, pixel)
	}

	runTicks(t, cpu, 1)
	assert.False(cpu.Pixel(0, 0))
}

func TestDraw(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t,
		0xf029, // ld f v0
		0xd125, // drw v1 v2 5
		0xd125, // drw v1 v2 5
	)
	cpu.Register[0] = 0x0
	cpu.Register[1] = 10
	cpu.Register[2] = 4

	runTicks(t, cpu, 2)
	assert.Equal(uint16(FONT_START), cpu.I)
	assert.Equal(uint8(0), cpu.Register[REGISTER_FLAG])

	// Glyph "0": f0 90 90 90 f0
	assert.True(cpu.Pixel(10, 4))
	assert.True(cpu.Pixel(13, 4))
	assert.False(cpu.Pixel(14, 4))
	assert.True(cpu.Pixel(10, 5))
	assert.False(cpu.Pixel(11, 5))
	assert.True(cpu.Pixel(13, 8))

	runTicks(t, cpu, 1)
	assert.Equal(uint8(1), cpu.Register[REGISTER_FLAG])
	for _, pixel := range cpu.Frame() {
		assert.Equal(PIXEL_OFF, pixel)
	}
}

func TestDrawEdges(t *testing.T) {
	assert := assert.New(t)

	sprite := []byte{0xff, 0xff}

	// Starting coordinates wrap.
	cpu := testCpu(t, 0xd012)
	copy(cpu.Memory[0x300:], sprite)
	cpu.I = 0x300
	cpu.Register[0] = 64 + 2
	cpu.Register[1] = 32 + 3
	runTicks(t, cpu, 1)
	assert.True(cpu.Pixel(2, 3))
	assert.True(cpu.Pixel(9, 4))
	assert.False(cpu.Pixel(10, 3))

	// Pixels past the edge are clipped.
	cpu = testCpu(t, 0xd012)
	copy(cpu.Memory[0x300:], sprite)
	cpu.I = 0x300
	cpu.Register[0] = 60
	cpu.Register[1] = 31
	runTicks(t, cpu, 1)
	assert.True(cpu.Pixel(63, 31))
	assert.False(cpu.Pixel(0, 31))
	assert.False(cpu.Pixel(60, 0))

	// Or wrapped.
	cpu = testCpu(t, 0xd012)
	cpu.Quirks.WrapSprites = true
	copy(cpu.Memory[0x300:], sprite)
	cpu.I = 0x300
	cpu.Register[0] = 60
	cpu.Register[1] = 31
	runTicks(t, cpu, 1)
	assert.True(cpu.Pixel(63, 31))
	assert.True(cpu.Pixel(3, 31))
	assert.True(cpu.Pixel(0, 0))
	assert.False(cpu.Pixel(4, 0))
}

func TestDrawBounds(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xd00f)
	cpu.I = MEMORY_SIZE - 4
	cpu.Memory[MEMORY_SIZE-1] = 0xff

	err := cpu.Tick()
	assert.ErrorIs(err, ErrMemoryBounds)
	assert.True(IsFatal(err))
	for _, pixel := range cpu.Display {
		assert.Equal(PIXEL_OFF, pixel)
	}

	cpu = testCpu(t, 0xd000)
	cpu.Register[REGISTER_FLAG] = 1
	runTicks(t, cpu, 1)
	assert.Equal(uint8(0), cpu.Register[REGISTER_FLAG])
}

func TestTimers(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x6003, 0xf015, 0xf018, 0xf107)
	runTicks(t, cpu, 3)
	assert.Equal(uint8(3), cpu.Delay)
	assert.Equal(uint8(3), cpu.Sound)
	assert.True(cpu.SoundActive())

	cpu.TickTimers()
	runTicks(t, cpu, 1)
	assert.Equal(uint8(2), cpu.Register[1])

	cpu.TickTimers()
	cpu.TickTimers()
	cpu.TickTimers()
	assert.Equal(uint8(0), cpu.Delay)
	assert.Equal(uint8(0), cpu.Sound)
	assert.False(cpu.SoundActive())
}

func TestWaitKey(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xf30a)

	runTicks(t, cpu, 3)
	assert.Equal(uint16(0x200), cpu.Pc)
	assert.False(cpu.KeyWait.Active)

	cpu.SetKey(0xb, true)
	runTicks(t, cpu, 2)
	assert.Equal(uint16(0x200), cpu.Pc)
	assert.True(cpu.KeyWait.Active)
	assert.Equal(uint8(0xb), cpu.KeyWait.Key)

	cpu.SetKey(0xb, false)
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x202), cpu.Pc)
	assert.Equal(uint8(0xb), cpu.Register[3])
	assert.False(cpu.KeyWait.Active)
}

func TestIndex(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xaffe, 0xf01e, 0xf029)
	cpu.Register[0] = 0x13
	cpu.Register[REGISTER_FLAG] = 0x42

	runTicks(t, cpu, 2)
	assert.Equal(uint16(0x011), cpu.I)
	assert.Equal(uint8(0x42), cpu.Register[REGISTER_FLAG])

	runTicks(t, cpu, 1)
	assert.Equal(uint16(FONT_START+3*FONT_GLYPH_SIZE), cpu.I)
}

func TestBcd(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xa300, 0xf533)
	cpu.Register[5] = 254
	runTicks(t, cpu, 2)
	assert.Equal([]uint8{2, 5, 4}, cpu.Memory[0x300:0x303])

	cpu = testCpu(t, 0xa100, 0xf533)
	runTicks(t, cpu, 1)
	err := cpu.Tick()
	assert.ErrorIs(err, ErrMemoryProtected)
	assert.Equal(uint8(0), cpu.Memory[0x100])

	cpu = testCpu(t, 0xaffe, 0xf533)
	runTicks(t, cpu, 1)
	assert.ErrorIs(cpu.Tick(), ErrMemoryBounds)
}

func TestLoadStore(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xa300, 0xf355, 0xa400, 0xf265)
	copy(cpu.Register[:], []uint8{1, 2, 3, 4, 5})
	copy(cpu.Memory[0x400:], []uint8{9, 8, 7, 6})

	runTicks(t, cpu, 2)
	assert.Equal([]uint8{1, 2, 3, 4, 0}, cpu.Memory[0x300:0x305])
	assert.Equal(uint16(0x300), cpu.I)

	runTicks(t, cpu, 2)
	assert.Equal([]uint8{9, 8, 7, 4, 5}, cpu.Register[:5])
	assert.Equal(uint16(0x400), cpu.I)

	cpu = testCpu(t, 0xa300, 0xf355, 0xf065)
	cpu.Quirks.LoadStoreIncrementsI = true
	runTicks(t, cpu, 2)
	assert.Equal(uint16(0x304), cpu.I)
	runTicks(t, cpu, 1)
	assert.Equal(uint16(0x305), cpu.I)

	cpu = testCpu(t, 0xa1ff, 0xf155)
	runTicks(t, cpu, 1)
	assert.ErrorIs(cpu.Tick(), ErrMemoryProtected)

	cpu = testCpu(t, 0xaffe, 0xf265)
	runTicks(t, cpu, 1)
	assert.ErrorIs(cpu.Tick(), ErrMemoryBounds)
	assert.Equal(uint8(0), cpu.Register[0])
}

func TestRandom(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0xc20f, 0xc3ff)
	runTicks(t, cpu, 2)
	assert.Equal(uint8(0x05), cpu.Register[2])
	assert.Equal(uint8(0xa5), cpu.Register[3])
}

func TestKeypad(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu()
	cpu.SetKey(0xf, true)
	cpu.SetKey(16, true)
	cpu.SetKey(-1, true)
	assert.True(cpu.Key(0xf))
	assert.False(cpu.Key(16))

	cpu.ReleaseAll()
	assert.False(cpu.Key(0xf))
}

func TestVerbose(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer

	cpu := testCpu(t, 0x6022)
	cpu.Verbose = true
	cpu.Log = log.New(&buf, "", 0)
	runTicks(t, cpu, 1)

	assert.Equal("200: ld v0 0x22\n", buf.String())
}

func TestDumps(t *testing.T) {
	assert := assert.New(t)

	cpu := testCpu(t, 0x6022, 0x2300)
	runTicks(t, cpu, 2)

	text := cpu.String()
	assert.Contains(text, "   pc: 0x300\n")
	assert.Contains(text, "stack: 0x204\n")
	assert.Contains(text, "   v0: 0x22\n")

	assert.Equal("200: 60 22 23 00\n", cpu.DumpMemory(0x200, 4))
	assert.Equal("ffe: 00 00\n", cpu.DumpMemory(0xffe, 16))
	assert.Equal(2, strings.Count(cpu.DumpMemory(0x200, 17), "\n"))

	display := cpu.DumpDisplay()
	assert.Equal(DISPLAY_HEIGHT, strings.Count(display, "\n"))
	assert.NotContains(display, "#")
}
