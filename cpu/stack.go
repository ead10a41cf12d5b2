package cpu

const (
	STACK_LIMIT = 16 // Maximum stack depth
)

// Stack is the fixed-capacity return address stack.
type Stack struct {
	Data [STACK_LIMIT]uint16
	Sp   uint8 // Number of entries in use, 0 to STACK_LIMIT.
}

// Push a return address. Returns false, leaving the stack unchanged, if
// the stack is full.
func (s *Stack) Push(value uint16) (ok bool) {
	if s.Full() {
		return
	}

	s.Data[s.Sp] = value
	s.Sp++
	return true
}

func (s *Stack) Pop() (value uint16, ok bool) {
	value, ok = s.Peek()
	if ok {
		s.Sp--
		s.Data[s.Sp] = 0
	}
	return
}

func (s *Stack) Empty() bool {
	return s.Sp == 0
}

func (s *Stack) Full() bool {
	return int(s.Sp) >= STACK_LIMIT
}

func (s *Stack) Peek() (value uint16, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[s.Sp-1], true
}

// Depth returns the number of entries on the stack.
func (s *Stack) Depth() int {
	return int(s.Sp)
}

func (s *Stack) Reset() {
	clear(s.Data[:])
	s.Sp = 0
}
