package compiler

const maxLocals = 256

// local is one entry of a scope's flat locals array. depth is the scope
// depth the local belongs to; it is -1 between the point the local is
// declared and the point its initializer finishes compiling, which is what
// lets resolve flag a variable referencing itself.
type local struct {
	name  string
	depth int
}

// scope tracks the locals visible to a single function body. Globals never
// go through here: they live in the VM's globals map and are resolved by
// name at runtime.
type scope struct {
	locals     [maxLocals]local
	localCount int
	depth      int
}

// newScope reserves slot 0 for the callee itself: every CallFrame's
// slotsBase points at that value, so real parameters and locals start at
// slot 1. This mirrors the VM's calling convention, which lays the callee
// down on the stack before its arguments.
func newScope() *scope {
	s := &scope{}
	s.locals[0] = local{name: "", depth: 0}
	s.localCount = 1
	return s
}

func (s *scope) beginScope() {
	s.depth++
}

// endScope pops every local declared at the scope now closing and reports
// how many were popped, so the caller can emit the matching OpPop count.
func (s *scope) endScope() int {
	s.depth--

	popped := 0
	for s.localCount > 0 && s.locals[s.localCount-1].depth > s.depth {
		s.localCount--
		popped++
	}
	return popped
}

func (s *scope) addLocal(name string) (uint8, bool) {
	if s.localCount >= maxLocals {
		return 0, false
	}
	s.locals[s.localCount] = local{name: name, depth: -1}
	slot := uint8(s.localCount)
	s.localCount++
	return slot, true
}

func (s *scope) markInitialized() {
	s.locals[s.localCount-1].depth = s.depth
}

// localsAboveDepth counts locals declared deeper than depth, without
// removing them: used to compute how many OpPop instructions a break or
// continue needs before it jumps, since the enclosing block hasn't run its
// own endScope yet.
func (s *scope) localsAboveDepth(depth int) int {
	n := 0
	for i := s.localCount - 1; i >= 0 && s.locals[i].depth > depth; i-- {
		n++
	}
	return n
}

// resolve looks up name among the currently visible locals, innermost scope
// first. ok is false when name isn't a local at all, in which case the
// caller falls back to treating it as a global. uninitialized is true when
// name resolves to a local still mid-declaration, i.e. `let x = x;`.
func (s *scope) resolve(name string) (slot uint8, uninitialized bool, ok bool) {
	for i := s.localCount - 1; i >= 0; i-- {
		l := &s.locals[i]
		if l.name == name {
			return uint8(i), l.depth == -1, true
		}
	}
	return 0, false, false
}
