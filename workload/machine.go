// Package workload runs user programs against a simulated machine and
// reports what the page table looks like while they run.
package workload

import (
	"github.com/sarchlab/pgtrace/mmu"
	"github.com/sarchlab/pgtrace/pager"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

// UserMemory performs memory accesses on behalf of a process.
type UserMemory interface {
	Load(p *proc.Process, vAddr uint64, buf []byte) error
	Store(p *proc.Process, vAddr uint64, data []byte) error
	LoadUint32(p *proc.Process, vAddr uint64) (uint32, error)
	StoreUint32(p *proc.Process, vAddr uint64, v uint32) error
	LoadUint64(p *proc.Process, vAddr uint64) (uint64, error)
}

// A Machine bundles the physical memory, the demand pager and the MMU that
// processes run on.
type Machine struct {
	Memory *vm.Memory
	Pager  *pager.DemandPager
	MMU    *mmu.Comp

	nextPID proc.PID
}

// NewMachine creates a machine with the given number of physical frames.
func NewMachine(numFrames uint64) (*Machine, error) {
	mem, err := vm.MakeMemoryBuilder().WithNumFrames(numFrames).Build()
	if err != nil {
		return nil, err
	}

	m := &Machine{
		Memory:  mem,
		Pager:   pager.NewDemandPager(),
		MMU:     mmu.MakeBuilder().Build("MMU"),
		nextPID: 1,
	}

	return m, nil
}

// Spawn creates a process with one page of program text and one page of
// stack, the way a small user program is loaded.
func (m *Machine) Spawn() (*proc.Process, error) {
	p, err := proc.MakeBuilder().
		WithMemory(m.Memory).
		WithFaultHandler(m.Pager).
		Build(m.nextPID)
	if err != nil {
		return nil, err
	}

	m.nextPID++

	err = p.LoadImage(1, 1)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Close releases the physical memory of the machine.
func (m *Machine) Close() error {
	return m.Memory.Close()
}
