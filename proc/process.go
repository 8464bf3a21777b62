// Package proc models a user process as seen by the memory subsystem: a
// private page table and a logical size.
package proc

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/vm"
)

// PID stands for Process ID.
type PID uint32

// Fixed virtual layout at the top of every address space.
const (
	// TrapframeVAddr is where the kernel-only trapframe page is mapped.
	TrapframeVAddr = vm.MaxVA - 2*vm.PageSize
)

// ErrNoFaultHandler is returned when a page fault occurs in a process that has
// no fault handler.
var ErrNoFaultHandler = errors.New("no page fault handler")

// AccessKind tells how memory is being accessed.
type AccessKind int

// Kinds of memory accesses.
const (
	AccessLoad AccessKind = iota
	AccessStore
)

func (k AccessKind) String() string {
	switch k {
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	}

	return fmt.Sprintf("AccessKind(%d)", int(k))
}

// A FaultHandler materializes the page that backs a faulting address.
type FaultHandler interface {
	HandleFault(p *Process, vAddr uint64, kind AccessKind) error
}

// A Process owns a root page table and a logical size. The size says how much
// of the address space the process may use; how much of it is backed by
// physical memory is only known to the page table.
//
// A Process is not safe for concurrent use. Each process is driven by one
// caller at a time.
type Process struct {
	hooking.HookableBase

	pid          PID
	name         string
	mem          vm.PhysicalMemory
	root         vm.Frame
	size         uint64
	stackTop     uint64
	faultHandler FaultHandler
	released     bool
}

// PID returns the process ID.
func (p *Process) PID() PID {
	return p.pid
}

// Name returns the name of the process.
func (p *Process) Name() string {
	return p.name
}

// Root returns the frame of the root page table.
func (p *Process) Root() vm.Frame {
	return p.root
}

// Memory returns the physical memory that backs the process.
func (p *Process) Memory() vm.PhysicalMemory {
	return p.mem
}

// Size returns the logical size of the address space.
func (p *Process) Size() uint64 {
	return p.size
}

// StackTop returns the highest address of the user stack, or 0 if no image is
// loaded.
func (p *Process) StackTop() uint64 {
	return p.stackTop
}

// Released tells whether Release has been called.
func (p *Process) Released() bool {
	return p.released
}

// SetFaultHandler replaces the fault handler.
func (p *Process) SetFaultHandler(h FaultHandler) {
	p.faultHandler = h
}

// LoadImage maps an initial image the way exec does: numTextPages pages of
// program text and data starting at address 0, one guard page without user
// access, then numStackPages pages of stack. All pages are backed eagerly.
// The logical size ends at the top of the stack.
func (p *Process) LoadImage(numTextPages, numStackPages int) error {
	if p.size != 0 {
		panic("image already loaded")
	}

	textSize := uint64(numTextPages) * vm.PageSize
	err := p.mapEager(0, textSize,
		vm.FlagRead|vm.FlagWrite|vm.FlagExec|vm.FlagUser)
	if err != nil {
		return fmt.Errorf("loading text: %w", err)
	}

	guard := textSize
	err = p.mapEager(guard, vm.PageSize, vm.FlagRead|vm.FlagWrite)
	if err != nil {
		return fmt.Errorf("loading guard page: %w", err)
	}

	stackBase := guard + vm.PageSize
	stackSize := uint64(numStackPages) * vm.PageSize
	err = p.mapEager(stackBase, stackSize,
		vm.FlagRead|vm.FlagWrite|vm.FlagUser)
	if err != nil {
		return fmt.Errorf("loading stack: %w", err)
	}

	p.size = stackBase + stackSize
	p.stackTop = p.size

	return nil
}

func (p *Process) mapEager(vAddr, size uint64, perm vm.PTEFlag) error {
	for offset := uint64(0); offset < size; offset += vm.PageSize {
		frame, err := p.mem.AllocFrame()
		if err != nil {
			return err
		}

		err = vm.Map(p.mem, p.root, vAddr+offset, frame.Address(),
			vm.PageSize, perm)
		if err != nil {
			p.mem.FreeFrame(frame)
			return err
		}
	}

	return nil
}

// HandlePageFault asks the fault handler to back the page that contains
// vAddr.
func (p *Process) HandlePageFault(vAddr uint64, kind AccessKind) error {
	p.mustNotBeReleased()

	err := ErrNoFaultHandler
	if p.faultHandler != nil {
		err = p.faultHandler.HandleFault(p, vAddr, kind)
	}

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosPageFault,
		Item:   FaultEvent{VAddr: vAddr, Kind: kind, Err: err},
	})

	return err
}

// Release frees every page and table of the process, including pages that
// are not accessible from user mode. The process cannot be used afterwards.
func (p *Process) Release() error {
	p.mustNotBeReleased()

	inUse := framesInUse(p.mem)

	vm.FreeTables(p.mem, p.root, true)
	p.released = true

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosRelease,
		Item:   ReleaseEvent{FramesFreed: inUse - framesInUse(p.mem)},
	})

	return nil
}

func (p *Process) mustNotBeReleased() {
	if p.released {
		panic(fmt.Sprintf("%s is already released", p.name))
	}
}

type frameCounter interface {
	NumFramesInUse() uint64
}

func framesInUse(mem vm.PhysicalMemory) uint64 {
	if c, ok := mem.(frameCounter); ok {
		return c.NumFramesInUse()
	}

	return 0
}
