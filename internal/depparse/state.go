package depparse

// Root is the head index of tokens attached to the artificial root.
const Root = -1

// none marks an empty bookkeeping entry: no head, no label, no dependent.
const none = -2

// State is one partial arc-eager derivation. Per-token bookkeeping is stored
// at index token+1 so that slot 0 describes the root.
type State struct {
	stack     []int
	next      int
	n         int
	heads     []int
	labels    []int
	leftmost  []int
	rightmost []int

	score  float64
	parent int
}

func (s *State) init(n int) {
	s.n = n
	s.next = 0
	s.stack = append(s.stack[:0], Root)
	s.heads = fill(s.heads, n+1, none)
	s.labels = fill(s.labels, n+1, none)
	s.leftmost = fill(s.leftmost, n+1, none)
	s.rightmost = fill(s.rightmost, n+1, none)
	s.score = 0
	s.parent = -1
}

func (s *State) copyFrom(p *State) {
	s.n = p.n
	s.next = p.next
	s.stack = append(s.stack[:0], p.stack...)
	s.heads = append(s.heads[:0], p.heads...)
	s.labels = append(s.labels[:0], p.labels...)
	s.leftmost = append(s.leftmost[:0], p.leftmost...)
	s.rightmost = append(s.rightmost[:0], p.rightmost...)
	s.score = p.score
	s.parent = p.parent
}

func fill(buf []int, n, v int) []int {
	buf = buf[:0]
	for i := 0; i < n; i++ {
		buf = append(buf, v)
	}
	return buf
}

func (s *State) top() int {
	return s.stack[len(s.stack)-1]
}

func (s *State) bufferEmpty() bool {
	return s.next >= s.n
}

// Terminal reports whether the buffer is exhausted and only the root is left
// on the stack.
func (s *State) Terminal() bool {
	return s.bufferEmpty() && len(s.stack) == 1
}

func (s *State) hasHead(tok int) bool {
	return s.heads[tok+1] != none
}

// Legal reports whether a may be applied to s.
func (s *State) Legal(a Action) bool {
	switch a.Kind {
	case Shift, ArcRight:
		return !s.bufferEmpty()
	case ArcLeft:
		top := s.top()
		return !s.bufferEmpty() && top != Root && !s.hasHead(top)
	case Reduce:
		top := s.top()
		return top != Root && (s.hasHead(top) || s.bufferEmpty())
	default:
		return false
	}
}

// apply performs a, which must be legal.
func (s *State) apply(a Action) {
	switch a.Kind {
	case Shift:
		s.stack = append(s.stack, s.next)
		s.next++
	case ArcRight:
		b := s.next
		s.attach(s.top(), b, a.Label)
		s.stack = append(s.stack, b)
		s.next++
	case ArcLeft:
		s.attach(s.next, s.top(), a.Label)
		s.stack = s.stack[:len(s.stack)-1]
	case Reduce:
		s.stack = s.stack[:len(s.stack)-1]
	}
}

func (s *State) attach(head, dep, label int) {
	s.heads[dep+1] = head
	s.labels[dep+1] = label
	h := head + 1
	if s.leftmost[h] == none || dep < s.leftmost[h] {
		s.leftmost[h] = dep
	}
	if s.rightmost[h] == none || dep > s.rightmost[h] {
		s.rightmost[h] = dep
	}
}

// Score is the cumulative score of the derivation.
func (s *State) Score() float64 { return s.score }

// Head returns the head assigned to tok and whether one is assigned.
func (s *State) Head(tok int) (int, bool) {
	h := s.heads[tok+1]
	return h, h != none
}

// Stack returns the stack, bottom first. The slice must not be modified.
func (s *State) Stack() []int { return s.stack }

// Next returns the index of the first buffer token.
func (s *State) Next() int { return s.next }
