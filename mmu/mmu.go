// Package mmu simulates the memory management unit that user code runs
// behind. It translates user accesses through the page table of a process,
// raises page faults, and updates accessed and dirty bits as hardware does.
package mmu

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

// HookPosAccess is triggered after each successful page access.
var HookPosAccess = &hooking.HookPos{Name: "MMUAccess"}

// ErrUnresolvedFault is returned when an access still faults after the fault
// handler reported success.
var ErrUnresolvedFault = errors.New("page fault not resolved")

// AccessEvent is the item of HookPosAccess.
type AccessEvent struct {
	PID   proc.PID
	Kind  proc.AccessKind
	VAddr uint64
	PAddr uint64
}

func (e AccessEvent) String() string {
	return fmt.Sprintf("pid %d %s 0x%x -> 0x%x", e.PID, e.Kind, e.VAddr, e.PAddr)
}

// A PageFaultError reports a fault that the process could not recover from.
type PageFaultError struct {
	PID   proc.PID
	Kind  proc.AccessKind
	VAddr uint64
	Err   error
}

func (e *PageFaultError) Error() string {
	return fmt.Sprintf("pid %d: %s page fault at 0x%x: %v",
		e.PID, e.Kind, e.VAddr, e.Err)
}

func (e *PageFaultError) Unwrap() error {
	return e.Err
}

// Comp is the default mmu implementation.
type Comp struct {
	hooking.HookableBase

	name            string
	maxFaultRetries int

	numLoads  uint64
	numStores uint64
	numFaults uint64
}

// Name returns the name of the MMU.
func (c *Comp) Name() string {
	return c.name
}

// Load reads len(buf) bytes at vAddr on behalf of the process.
func (c *Comp) Load(p *proc.Process, vAddr uint64, buf []byte) error {
	c.numLoads++

	return c.access(p, vAddr, buf, proc.AccessLoad)
}

// Store writes data at vAddr on behalf of the process.
func (c *Comp) Store(p *proc.Process, vAddr uint64, data []byte) error {
	c.numStores++

	return c.access(p, vAddr, data, proc.AccessStore)
}

// LoadUint32 reads a little-endian 32-bit word.
func (c *Comp) LoadUint32(p *proc.Process, vAddr uint64) (uint32, error) {
	buf := make([]byte, 4)

	err := c.Load(p, vAddr, buf)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf), nil
}

// StoreUint32 writes a little-endian 32-bit word.
func (c *Comp) StoreUint32(p *proc.Process, vAddr uint64, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)

	return c.Store(p, vAddr, buf)
}

// LoadUint64 reads a little-endian 64-bit word.
func (c *Comp) LoadUint64(p *proc.Process, vAddr uint64) (uint64, error) {
	buf := make([]byte, 8)

	err := c.Load(p, vAddr, buf)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// NumLoads returns how many loads were issued.
func (c *Comp) NumLoads() uint64 {
	return c.numLoads
}

// NumStores returns how many stores were issued.
func (c *Comp) NumStores() uint64 {
	return c.numStores
}

// NumFaults returns how many page faults were raised.
func (c *Comp) NumFaults() uint64 {
	return c.numFaults
}

func (c *Comp) access(
	p *proc.Process,
	vAddr uint64,
	buf []byte,
	kind proc.AccessKind,
) error {
	for len(buf) > 0 {
		page, err := c.translate(p, vAddr, kind)
		if err != nil {
			return err
		}

		var n int
		if kind == proc.AccessStore {
			n = copy(page[vm.PageOffset(vAddr):], buf)
		} else {
			n = copy(buf, page[vm.PageOffset(vAddr):])
		}

		buf = buf[n:]
		vAddr += uint64(n)
	}

	return nil
}

func (c *Comp) translate(
	p *proc.Process,
	vAddr uint64,
	kind proc.AccessKind,
) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		pte, found := vm.Lookup(p.Memory(), p.Root(), vAddr)
		if found && permits(*pte, kind) {
			c.markUsed(pte, kind)
			c.traceAccess(p, vAddr, *pte, kind)

			return p.Memory().Bytes(pte.Frame()), nil
		}

		if attempt >= c.maxFaultRetries {
			return nil, &PageFaultError{
				PID: p.PID(), Kind: kind, VAddr: vAddr, Err: ErrUnresolvedFault,
			}
		}

		c.numFaults++

		err := p.HandlePageFault(vAddr, kind)
		if err != nil {
			return nil, &PageFaultError{
				PID: p.PID(), Kind: kind, VAddr: vAddr, Err: err,
			}
		}
	}
}

func permits(pte vm.PTE, kind proc.AccessKind) bool {
	if !pte.HasFlags(vm.FlagUser) {
		return false
	}

	if kind == proc.AccessStore {
		return pte.HasFlags(vm.FlagWrite)
	}

	return pte.HasFlags(vm.FlagRead)
}

func (c *Comp) markUsed(pte *vm.PTE, kind proc.AccessKind) {
	if kind == proc.AccessStore {
		pte.SetFlags(vm.FlagAccessed | vm.FlagDirty)
		return
	}

	pte.SetFlags(vm.FlagAccessed)
}

func (c *Comp) traceAccess(
	p *proc.Process,
	vAddr uint64,
	pte vm.PTE,
	kind proc.AccessKind,
) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosAccess,
		Item: AccessEvent{
			PID:   p.PID(),
			Kind:  kind,
			VAddr: vAddr,
			PAddr: pte.PAddr() + vm.PageOffset(vAddr),
		},
	})
}
