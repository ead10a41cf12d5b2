package cpu

// execFunc executes one decoded operation against the machine state.
//
// A handler that returns a fatal error must not have modified any state.
type execFunc func(cpu *Cpu, code Code) error

var _execTable [OP_COUNT]execFunc

func init() {
	_execTable = [OP_COUNT]execFunc{
		OP_UNKNOWN:   execUnknown,
		OP_SYS:       execSys,
		OP_CLS:       execCls,
		OP_RET:       execRet,
		OP_JP:        execJp,
		OP_CALL:      execCall,
		OP_SE_IMM:    execSeImm,
		OP_SNE_IMM:   execSneImm,
		OP_SE_REG:    execSeReg,
		OP_LD_IMM:    execLdImm,
		OP_ADD_IMM:   execAddImm,
		OP_LD_REG:    execLdReg,
		OP_OR:        execOr,
		OP_AND:       execAnd,
		OP_XOR:       execXor,
		OP_ADD_REG:   execAddReg,
		OP_SUB:       execSub,
		OP_SHR:       execShr,
		OP_SUBN:      execSubn,
		OP_SHL:       execShl,
		OP_SNE_REG:   execSneReg,
		OP_LD_I:      execLdI,
		OP_JP_V0:     execJpV0,
		OP_RND:       execRnd,
		OP_DRW:       execDrw,
		OP_SKP:       execSkp,
		OP_SKNP:      execSknp,
		OP_LD_VX_DT:  execLdVxDt,
		OP_LD_VX_K:   execLdVxK,
		OP_LD_DT_VX:  execLdDtVx,
		OP_LD_ST_VX:  execLdStVx,
		OP_ADD_I:     execAddI,
		OP_LD_F:      execLdF,
		OP_LD_B:      execLdB,
		OP_LD_MEM_VX: execLdMemVx,
		OP_LD_VX_MEM: execLdVxMem,
	}
}

func execUnknown(cpu *Cpu, code Code) error {
	return ErrOpcodeUnknown
}

// 0NNN: machine code routines are not supported.
func execSys(cpu *Cpu, code Code) error {
	return nil
}

func execCls(cpu *Cpu, code Code) error {
	clear(cpu.Display[:])
	return nil
}

func execRet(cpu *Cpu, code Code) error {
	addr, ok := cpu.Stack.Pop()
	if !ok {
		return ErrStackEmpty
	}
	cpu.Pc = addr
	return nil
}

func execJp(cpu *Cpu, code Code) error {
	cpu.Pc = code.NNN
	return nil
}

func execCall(cpu *Cpu, code Code) error {
	if !cpu.Stack.Push(cpu.Pc) {
		return ErrStackFull
	}
	cpu.Pc = code.NNN
	return nil
}

// skipIf skips the next instruction when cond holds.
func (cpu *Cpu) skipIf(cond bool) {
	if cond {
		cpu.Pc += 2
	}
}

func execSeImm(cpu *Cpu, code Code) error {
	cpu.skipIf(cpu.Register[code.X] == code.KK)
	return nil
}

func execSneImm(cpu *Cpu, code Code) error {
	cpu.skipIf(cpu.Register[code.X] != code.KK)
	return nil
}

func execSeReg(cpu *Cpu, code Code) error {
	cpu.skipIf(cpu.Register[code.X] == cpu.Register[code.Y])
	return nil
}

func execSneReg(cpu *Cpu, code Code) error {
	cpu.skipIf(cpu.Register[code.X] != cpu.Register[code.Y])
	return nil
}

func execLdImm(cpu *Cpu, code Code) error {
	cpu.Register[code.X] = code.KK
	return nil
}

// 7XKK never touches VF.
func execAddImm(cpu *Cpu, code Code) error {
	cpu.Register[code.X] += code.KK
	return nil
}

func execLdReg(cpu *Cpu, code Code) error {
	cpu.Register[code.X] = cpu.Register[code.Y]
	return nil
}

// logic stores a bitwise result, clearing VF afterwards with the COSMAC quirk.
func (cpu *Cpu) logic(x uint8, value uint8) {
	cpu.Register[x] = value
	if cpu.Quirks.LogicResetsVF {
		cpu.Register[REGISTER_FLAG] = 0
	}
}

func execOr(cpu *Cpu, code Code) error {
	cpu.logic(code.X, cpu.Register[code.X]|cpu.Register[code.Y])
	return nil
}

func execAnd(cpu *Cpu, code Code) error {
	cpu.logic(code.X, cpu.Register[code.X]&cpu.Register[code.Y])
	return nil
}

func execXor(cpu *Cpu, code Code) error {
	cpu.logic(code.X, cpu.Register[code.X]^cpu.Register[code.Y])
	return nil
}

// arith stores a truncated result in VX, then the flag in VF. The flag is
// written last so it survives when X is VF.
func (cpu *Cpu) arith(x uint8, result uint16, flag bool) {
	cpu.Register[x] = uint8(result & 0xff)
	if flag {
		cpu.Register[REGISTER_FLAG] = 1
	} else {
		cpu.Register[REGISTER_FLAG] = 0
	}
}

func execAddReg(cpu *Cpu, code Code) error {
	sum := uint16(cpu.Register[code.X]) + uint16(cpu.Register[code.Y])
	cpu.arith(code.X, sum, sum > 0xff)
	return nil
}

func execSub(cpu *Cpu, code Code) error {
	vx, vy := cpu.Register[code.X], cpu.Register[code.Y]
	cpu.arith(code.X, uint16(vx-vy), vx >= vy)
	return nil
}

func execSubn(cpu *Cpu, code Code) error {
	vx, vy := cpu.Register[code.X], cpu.Register[code.Y]
	cpu.arith(code.X, uint16(vy-vx), vy >= vx)
	return nil
}

// shiftSource returns the value a shift operates on.
func (cpu *Cpu) shiftSource(code Code) uint8 {
	if cpu.Quirks.ShiftUsesVy {
		return cpu.Register[code.Y]
	}
	return cpu.Register[code.X]
}

func execShr(cpu *Cpu, code Code) error {
	src := cpu.shiftSource(code)
	cpu.arith(code.X, uint16(src>>1), src&0x01 != 0)
	return nil
}

func execShl(cpu *Cpu, code Code) error {
	src := cpu.shiftSource(code)
	cpu.arith(code.X, uint16(src)<<1, src&0x80 != 0)
	return nil
}

func execLdI(cpu *Cpu, code Code) error {
	cpu.I = code.NNN
	return nil
}

// BNNN may leave the program counter past the end of memory; the next
// fetch reports it.
func execJpV0(cpu *Cpu, code Code) error {
	reg := uint8(0)
	if cpu.Quirks.JumpUsesVx {
		reg = code.X
	}
	cpu.Pc = code.NNN + uint16(cpu.Register[reg])
	return nil
}

func execRnd(cpu *Cpu, code Code) error {
	cpu.Register[code.X] = cpu.randomByte() & code.KK
	return nil
}

// DXYN XORs an 8xN sprite from I onto the display. The starting position
// wraps around the display; pixels past the right and bottom edges are
// clipped unless Quirks.WrapSprites is set. VF is set if a lit pixel was
// turned off. N of zero draws nothing.
func execDrw(cpu *Cpu, code Code) error {
	rows := int(code.N)
	if err := cpu.checkRead(cpu.I, rows); err != nil {
		return err
	}

	x0 := int(cpu.Register[code.X]) % DISPLAY_WIDTH
	y0 := int(cpu.Register[code.Y]) % DISPLAY_HEIGHT
	wrap := cpu.Quirks.WrapSprites

	collision := false
	for row := range rows {
		y := y0 + row
		if y >= DISPLAY_HEIGHT {
			if !wrap {
				break
			}
			y %= DISPLAY_HEIGHT
		}

		bits := cpu.Memory[int(cpu.I)+row]
		for col := range 8 {
			if bits&(0x80>>col) == 0 {
				continue
			}
			x := x0 + col
			if x >= DISPLAY_WIDTH {
				if !wrap {
					break
				}
				x %= DISPLAY_WIDTH
			}
			cell := &cpu.Display[y*DISPLAY_WIDTH+x]
			if *cell != PIXEL_OFF {
				collision = true
			}
			*cell ^= PIXEL_ON
		}
	}

	cpu.arith(REGISTER_FLAG, 0, collision)
	return nil
}

func execSkp(cpu *Cpu, code Code) error {
	cpu.skipIf(cpu.Keypad[cpu.Register[code.X]&0xf])
	return nil
}

func execSknp(cpu *Cpu, code Code) error {
	cpu.skipIf(!cpu.Keypad[cpu.Register[code.X]&0xf])
	return nil
}

func execLdVxDt(cpu *Cpu, code Code) error {
	cpu.Register[code.X] = cpu.Delay
	return nil
}

// FX0A re-executes itself until a key has been pressed and released, then
// stores that key in VX.
func execLdVxK(cpu *Cpu, code Code) error {
	wait := &cpu.KeyWait

	if wait.Active {
		if !cpu.Keypad[wait.Key] {
			cpu.Register[code.X] = wait.Key
			*wait = KeyWait{}
			return nil
		}
	} else {
		for key, down := range cpu.Keypad {
			if down {
				*wait = KeyWait{Active: true, Key: uint8(key)}
				break
			}
		}
	}

	cpu.Pc -= 2
	return nil
}

func execLdDtVx(cpu *Cpu, code Code) error {
	cpu.Delay = cpu.Register[code.X]
	return nil
}

func execLdStVx(cpu *Cpu, code Code) error {
	cpu.Sound = cpu.Register[code.X]
	return nil
}

// FX1E keeps I within the address space and never touches VF.
func execAddI(cpu *Cpu, code Code) error {
	cpu.I = (cpu.I + uint16(cpu.Register[code.X])) & ADDRESS_MASK
	return nil
}

func execLdF(cpu *Cpu, code Code) error {
	cpu.I = FONT_START + uint16(cpu.Register[code.X]&0xf)*FONT_GLYPH_SIZE
	return nil
}

func execLdB(cpu *Cpu, code Code) error {
	if err := cpu.checkWrite(cpu.I, 3); err != nil {
		return err
	}

	value := cpu.Register[code.X]
	cpu.Memory[cpu.I+0] = value / 100
	cpu.Memory[cpu.I+1] = (value / 10) % 10
	cpu.Memory[cpu.I+2] = value % 10
	return nil
}

// advanceI applies the load/store quirk after FX55/FX65.
func (cpu *Cpu) advanceI(count int) {
	if cpu.Quirks.LoadStoreIncrementsI {
		cpu.I = (cpu.I + uint16(count)) & ADDRESS_MASK
	}
}

func execLdMemVx(cpu *Cpu, code Code) error {
	count := int(code.X) + 1
	if err := cpu.checkWrite(cpu.I, count); err != nil {
		return err
	}

	copy(cpu.Memory[cpu.I:], cpu.Register[:count])
	cpu.advanceI(count)
	return nil
}

func execLdVxMem(cpu *Cpu, code Code) error {
	count := int(code.X) + 1
	if err := cpu.checkRead(cpu.I, count); err != nil {
		return err
	}

	copy(cpu.Register[:count], cpu.Memory[cpu.I:])
	cpu.advanceI(count)
	return nil
}
