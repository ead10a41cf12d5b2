// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Macro represents a macro definition in the assembly language.
type Macro struct {
	LineNo int      // Line number of the macro definition.
	Args   []string // Arguments for the macro.
	Lines  []string // Lines of macro text to expand.
}

// Assembler is a single pass macro assembler for CHIP-8 programs.
//
// Mnemonics follow the common CHIP-8 technical reference: `ld v0, 0x22`,
// `drw v1, v2, 5`, `ld [i], v3` and so on. Commas are optional.
type Assembler struct {
	Verbose bool     // If set, verbosely logs the assembler actions.
	Opcode  []Opcode // List of generated opcodes.

	predefine  map[string]string   // Predefines
	Label      map[string]int      // Map of jump labels to addresses.
	Equate     map[string]string   // Map of equates.
	Macro      map[string](*Macro) // Map of macros.
	expansions int                 // Macro expansions so far, for @ labels.
}

var (
	reCharacter  = regexp.MustCompile(`'\\?[^']'`)
	reExpression = regexp.MustCompile(`\$\([^\$]*\)`)
	reLabel      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// Predefine defines a new equate or redefines an existing equate, applied
// at the start of every Parse.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// valueOf returns the value of a simple word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	invert := false
	if strings.HasPrefix(word, "~") {
		invert = true
		word = word[1:]
	}

	value, err = strconv.ParseInt(word, 0, 32)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	if invert {
		value = ^value
	}

	return
}

// immediate returns a value that fits in a field of the given bit width.
// Negative values down to half the field range are accepted in two's
// complement.
func (asm *Assembler) immediate(word string, bits int) (value uint16, err error) {
	v64, err := asm.valueOf(word)
	if err != nil {
		return
	}

	limit := int64(1) << bits
	if v64 < -limit/2 || v64 >= limit {
		err = ErrValueRange
		return
	}

	value = uint16(v64 & (limit - 1))
	return
}

// register returns the index of a vN register word.
func (asm *Assembler) register(word string) (x uint8, err error) {
	index := registerIndex(word)
	if index < 0 {
		err = ErrRegisterInvalid
		return
	}

	x = uint8(index)
	return
}

// address returns a 12 bit address, or the label to link it to.
func (asm *Assembler) address(word string) (addr uint16, label string, err error) {
	if reLabel.MatchString(word) && registerIndex(word) < 0 {
		label = word
		return
	}

	addr, err = asm.immediate(word, 12)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v64 int64
		v64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			err = nil
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// expandCharacters replaces 'c' literals with their decimal value.
func expandCharacters(line string) string {
	return reCharacter.ReplaceAllStringFunc(line, func(word string) string {
		str := word[1 : len(word)-1]
		if str[0] == '\\' {
			switch str[1:] {
			case "\\":
				str = "\\"
			case "n":
				str = "\n"
			case "r":
				str = "\r"
			case "e":
				str = "\033"
			default:
				return word
			}
		} else if len(str) != 1 {
			return word
		}
		return fmt.Sprintf("%v", str[0])
	})
}

// parseLine parses a single line into words, handling equates, labels and
// macro expansion.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	line = expandCharacters(line)

	// Do $() evaluations
	line = reExpression.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%#v", value)
	})
	if err != nil {
		return
	}

	words = strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		asm.Label[label] = asm.currentIp()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	// .macro processing
	macro, ok := asm.Macro[words[0]]
	if ok {
		name := words[0]

		args := words[1:]
		if len(args) != len(macro.Args) {
			err = ErrMacroSyntax
			return
		}
		// Turn args into equs
		old_equate := maps.Clone(asm.Equate)
		for n, arg := range macro.Args {
			asm.Equate[arg] = args[n]
		}
		defer func() { asm.Equate = old_equate }()

		asm.expansions++
		local := fmt.Sprintf("_%v_%v_", name, asm.expansions)

		for n, line := range macro.Lines {
			lineno := macro.LineNo + n

			line = strings.ReplaceAll(line, "@", local)
			words, err = asm.parseLine(line, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				return
			}

			err = asm.parseWords(words, lineno)
			if err != nil {
				err = &ErrMacro{Macro: name, Line: lineno, Err: err}
				return
			}
		}

		words = nil
		return
	}

	return
}

// currentIp gets the address of the next byte to assemble.
func (asm *Assembler) currentIp() int {
	if len(asm.Opcode) == 0 {
		return PROGRAM_START
	}

	last := &asm.Opcode[len(asm.Opcode)-1]

	return last.Ip + last.Size()
}

// Parse parses an input stream into a Program containing opcodes.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {

	scanner := bufio.NewScanner(input)

	var line string
	var lineno int
	var macro *Macro

	defer func() {
		if err != nil {
			err = &ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	asm.Label = make(map[string]int, 16)
	asm.Opcode = asm.Opcode[:0]
	asm.Macro = make(map[string](*Macro))
	asm.Equate = maps.Clone(_cpu_defines)
	asm.Equate["LINENO"] = "0"
	asm.expansions = 0
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		text_comment := strings.Split(text, ";")
		line = strings.TrimSpace(text_comment[0])
		words := strings.Fields(line)

		// .macro NAME arg...
		if len(words) > 0 && words[0] == ".macro" {
			if macro != nil {
				err = ErrMacroNesting
				return
			}
			if len(words) < 2 {
				err = ErrMacroSyntax
				return
			}
			_, ok := asm.Macro[words[1]]
			if ok {
				err = ErrMacroDuplicate
				return
			}
			macro = &Macro{
				LineNo: lineno + 1,
			}
			if len(words) > 2 {
				macro.Args = words[2:]
			}
			asm.Macro[words[1]] = macro
			continue
		}

		if len(words) > 0 && words[0] == ".endm" {
			if macro == nil {
				err = ErrMacroLonelyEndm
				return
			}
			macro = nil
			continue
		}

		if macro != nil {
			macro.Lines = append(macro.Lines, line)
			continue
		}

		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if macro != nil {
		err = ErrMacroLonely
		return
	}

	// Final linking of jump labels.
	for n := range asm.Opcode {
		op := &asm.Opcode[n]

		if len(op.LinkLabel) == 0 || len(op.Codes) == 0 {
			continue
		}

		lineno = op.LineNo
		line = strings.Join(op.Words, " ")

		addr, ok := asm.Label[op.LinkLabel]
		if !ok {
			err = ErrLabelMissing(op.LinkLabel)
			return
		}
		if addr > ADDRESS_MASK {
			err = ErrValueRange
			return
		}

		linked := &op.Codes[len(op.Codes)-1]
		*linked = Decode((linked.Word &^ ADDRESS_MASK) | uint16(addr))
	}

	prog = &Program{
		Opcodes: append([]Opcode(nil), asm.Opcode...),
	}

	return
}

// Operand keyword maps.
var (
	// se/sne: register-register and register-immediate forms.
	_skipMap = map[string][2]CodeOp{
		"se":  {OP_SE_REG, OP_SE_IMM},
		"sne": {OP_SNE_REG, OP_SNE_IMM},
	}

	// Register to register ALU operations.
	_aluMap = map[string]CodeOp{
		"or":   OP_OR,
		"and":  OP_AND,
		"xor":  OP_XOR,
		"sub":  OP_SUB,
		"subn": OP_SUBN,
	}

	// Shifts, with an optional source register.
	_shiftMap = map[string]CodeOp{
		"shr": OP_SHR,
		"shl": OP_SHL,
	}

	// ld TARGET, vX
	_ldToMap = map[string]CodeOp{
		"dt":  OP_LD_DT_VX,
		"st":  OP_LD_ST_VX,
		"f":   OP_LD_F,
		"b":   OP_LD_B,
		"[i]": OP_LD_MEM_VX,
	}

	// ld vX, SOURCE
	_ldFromMap = map[string]CodeOp{
		"dt":  OP_LD_VX_DT,
		"k":   OP_LD_VX_K,
		"[i]": OP_LD_VX_MEM,
	}

	// Key operations.
	_keyMap = map[string]CodeOp{
		"skp":  OP_SKP,
		"sknp": OP_SKNP,
	}
)

// argCount verifies the number of operands.
func argCount(args []string, min, max int) (err error) {
	switch {
	case len(args) < min:
		err = ErrOpcodeValueMissing
	case len(args) > max:
		err = ErrOpcodeExtraArgs
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Code
	var data []byte
	var label string

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if err != nil || (len(codes) == 0 && len(data) == 0) {
			return
		}
		opcode := Opcode{
			LineNo:    lineno,
			Ip:        asm.currentIp(),
			Words:     initial_words,
			Codes:     codes,
			Data:      data,
			LinkLabel: label,
		}
		asm.Opcode = append(asm.Opcode, opcode)
	}()

	mnemonic := words[0]
	args := words[1:]

	// reg reads the vX operand at index n.
	reg := func(n int) (x uint8) {
		if err == nil {
			x, err = asm.register(args[n])
		}
		return
	}

	// addr reads an address operand at index n, recording any label.
	addr := func(n int) (nnn uint16) {
		if err == nil {
			nnn, label, err = asm.address(args[n])
		}
		return
	}

	// imm reads an immediate operand at index n.
	imm := func(n int, bits int) (value uint16) {
		if err == nil {
			value, err = asm.immediate(args[n], bits)
		}
		return
	}

	emit := func(op CodeOp, x, y uint8, value uint16) {
		if err == nil {
			codes = append(codes, MakeCode(op, x, y, value))
		}
	}

	isReg := func(n int) bool {
		return registerIndex(args[n]) >= 0
	}

	switch mnemonic {
	case ".byte", ".word":
		if err = argCount(args, 1, len(args)); err != nil {
			return
		}
		bits := 8
		if mnemonic == ".word" {
			bits = 16
		}
		for n := range args {
			value := imm(n, bits)
			if err != nil {
				return
			}
			if bits == 16 {
				data = append(data, byte(value>>8))
			}
			data = append(data, byte(value))
		}
	case ".org":
		if err = argCount(args, 1, 1); err != nil {
			return
		}
		var origin int64
		origin, err = asm.valueOf(args[0])
		if err != nil {
			return
		}
		here := asm.currentIp()
		switch {
		case origin > MEMORY_SIZE:
			err = ErrValueRange
		case origin < int64(here):
			err = ErrOriginBackwards
		default:
			data = make([]byte, int(origin)-here)
		}
	case "cls":
		if err = argCount(args, 0, 0); err == nil {
			emit(OP_CLS, 0, 0, 0)
		}
	case "ret":
		if err = argCount(args, 0, 0); err == nil {
			emit(OP_RET, 0, 0, 0)
		}
	case "sys", "call":
		if err = argCount(args, 1, 1); err != nil {
			return
		}
		op := OP_SYS
		if mnemonic == "call" {
			op = OP_CALL
		}
		emit(op, 0, 0, addr(0))
	case "jp":
		if err = argCount(args, 1, 2); err != nil {
			return
		}
		if len(args) == 1 {
			emit(OP_JP, 0, 0, addr(0))
			return
		}
		if reg(0) != 0 {
			err = ErrOpcodeInvalid
			return
		}
		emit(OP_JP_V0, 0, 0, addr(1))
	case "se", "sne":
		if err = argCount(args, 2, 2); err != nil {
			return
		}
		ops := _skipMap[mnemonic]
		if isReg(1) {
			emit(ops[0], reg(0), reg(1), 0)
		} else {
			emit(ops[1], reg(0), 0, imm(1, 8))
		}
	case "ld":
		if err = argCount(args, 2, 2); err != nil {
			return
		}
		if args[0] == "i" {
			emit(OP_LD_I, 0, 0, addr(1))
			return
		}
		if op, ok := _ldToMap[args[0]]; ok {
			emit(op, reg(1), 0, 0)
			return
		}
		if op, ok := _ldFromMap[args[1]]; ok {
			emit(op, reg(0), 0, 0)
			return
		}
		if isReg(1) {
			emit(OP_LD_REG, reg(0), reg(1), 0)
		} else {
			emit(OP_LD_IMM, reg(0), 0, imm(1, 8))
		}
	case "add":
		if err = argCount(args, 2, 2); err != nil {
			return
		}
		switch {
		case args[0] == "i":
			emit(OP_ADD_I, reg(1), 0, 0)
		case isReg(1):
			emit(OP_ADD_REG, reg(0), reg(1), 0)
		default:
			emit(OP_ADD_IMM, reg(0), 0, imm(1, 8))
		}
	case "or", "and", "xor", "sub", "subn":
		if err = argCount(args, 2, 2); err == nil {
			emit(_aluMap[mnemonic], reg(0), reg(1), 0)
		}
	case "shr", "shl":
		if err = argCount(args, 1, 2); err != nil {
			return
		}
		x := reg(0)
		y := x
		if len(args) == 2 {
			y = reg(1)
		}
		emit(_shiftMap[mnemonic], x, y, 0)
	case "rnd":
		if err = argCount(args, 2, 2); err == nil {
			emit(OP_RND, reg(0), 0, imm(1, 8))
		}
	case "drw":
		if err = argCount(args, 3, 3); err == nil {
			emit(OP_DRW, reg(0), reg(1), imm(2, 4))
		}
	case "skp", "sknp":
		if err = argCount(args, 1, 1); err == nil {
			emit(_keyMap[mnemonic], reg(0), 0, 0)
		}
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}
