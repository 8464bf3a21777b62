package proc

import "github.com/sarchlab/pgtrace/hooking"

// Grow changes the logical size of the address space by delta bytes and
// returns the size before the change. No memory is allocated or mapped: the
// pages in the new range are backed by the fault handler on first touch, and
// touching them before that faults.
//
// The size is not checked against any limit. A fault handler refuses to back
// addresses that are not usable.
func (p *Process) Grow(delta int64) uint64 {
	p.mustNotBeReleased()

	oldSize := p.size
	p.size = uint64(int64(oldSize) + delta)

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosGrow,
		Item:   GrowEvent{Delta: delta, OldSize: oldSize, NewSize: p.size},
	})

	return oldSize
}

// Sbrk is the system call form of Grow. It returns the start of the newly
// added region.
func (p *Process) Sbrk(delta int64) uint64 {
	return p.Grow(delta)
}
