package depparse

// StatePool is an arena of parser states addressed by index. Freed slots go
// on a free list and keep their buffers, so steady-state parsing does not
// allocate new states.
type StatePool struct {
	slots []*State
	free  []int
	live  int
}

// Alloc returns the index of an unused slot. Its contents are stale until the
// caller initialises them.
func (p *StatePool) Alloc() int {
	p.live++
	if n := len(p.free); n > 0 {
		i := p.free[n-1]
		p.free = p.free[:n-1]
		return i
	}
	p.slots = append(p.slots, &State{})
	return len(p.slots) - 1
}

func (p *StatePool) Free(i int) {
	p.free = append(p.free, i)
	p.live--
}

// Get returns the state in slot i. The pointer stays valid across Alloc.
func (p *StatePool) Get(i int) *State {
	return p.slots[i]
}

// Reset frees every slot.
func (p *StatePool) Reset() {
	p.free = p.free[:0]
	for i := len(p.slots) - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	p.live = 0
}

// Live returns the number of allocated slots.
func (p *StatePool) Live() int { return p.live }

// Cap returns the number of slots ever created.
func (p *StatePool) Cap() int { return len(p.slots) }
