// Package pager backs lazily grown memory on first touch.
package pager

import (
	"errors"
	"fmt"

	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

// ErrSegFault is returned for faults that cannot be satisfied because the
// address is outside the process or the page forbids the access.
var ErrSegFault = errors.New("segmentation fault")

// DefaultPerm is the permission of pages backed on demand.
const DefaultPerm = vm.FlagRead | vm.FlagWrite | vm.FlagUser

// A DemandPager is a proc.FaultHandler that allocates a zero-filled frame for
// any page below the logical size of the faulting process and maps it with
// DefaultPerm.
type DemandPager struct {
	numPagesBacked uint64
	numRefused     uint64
}

// NewDemandPager creates a DemandPager.
func NewDemandPager() *DemandPager {
	return &DemandPager{}
}

// HandleFault maps a fresh frame at the page that contains vAddr.
func (d *DemandPager) HandleFault(
	p *proc.Process,
	vAddr uint64,
	kind proc.AccessKind,
) error {
	if vAddr >= p.Size() {
		d.numRefused++
		return fmt.Errorf("%w: %s at 0x%x beyond size 0x%x",
			ErrSegFault, kind, vAddr, p.Size())
	}

	pte, found := vm.Lookup(p.Memory(), p.Root(), vAddr)
	if found {
		d.numRefused++
		return fmt.Errorf("%w: %s at 0x%x not permitted by %s",
			ErrSegFault, kind, vAddr, pte.Flags())
	}

	frame, err := p.Memory().AllocFrame()
	if err != nil {
		return err
	}

	err = vm.Map(p.Memory(), p.Root(), vm.PageRoundDown(vAddr),
		frame.Address(), vm.PageSize, DefaultPerm)
	if err != nil {
		p.Memory().FreeFrame(frame)
		return err
	}

	d.numPagesBacked++

	return nil
}

// NumPagesBacked returns how many pages the pager has mapped.
func (d *DemandPager) NumPagesBacked() uint64 {
	return d.numPagesBacked
}

// NumRefused returns how many faults the pager refused.
func (d *DemandPager) NumRefused() uint64 {
	return d.numRefused
}
