package proc

import (
	"fmt"

	"github.com/sarchlab/pgtrace/vm"
)

// A Builder can build processes.
type Builder struct {
	mem          vm.PhysicalMemory
	faultHandler FaultHandler
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{}
}

// WithMemory sets the physical memory that backs the process.
func (b Builder) WithMemory(mem vm.PhysicalMemory) Builder {
	b.mem = mem
	return b
}

// WithFaultHandler sets the handler that backs pages on first touch.
func (b Builder) WithFaultHandler(h FaultHandler) Builder {
	b.faultHandler = h
	return b
}

// Build creates a process with an empty address space. Only the trapframe,
// which is not accessible from user mode, is mapped.
func (b Builder) Build(pid PID) (*Process, error) {
	if b.mem == nil {
		panic("process requires physical memory")
	}

	p := &Process{
		pid:          pid,
		name:         fmt.Sprintf("Proc[%d]", pid),
		mem:          b.mem,
		faultHandler: b.faultHandler,
	}

	root, err := b.mem.AllocFrame()
	if err != nil {
		return nil, fmt.Errorf("allocating root page table: %w", err)
	}
	p.root = root

	trapframe, err := b.mem.AllocFrame()
	if err != nil {
		b.mem.FreeFrame(root)
		return nil, fmt.Errorf("allocating trapframe: %w", err)
	}

	err = vm.Map(b.mem, root, TrapframeVAddr, trapframe.Address(),
		vm.PageSize, vm.FlagRead|vm.FlagWrite)
	if err != nil {
		b.mem.FreeFrame(trapframe)
		vm.FreeTables(b.mem, root, false)

		return nil, fmt.Errorf("mapping trapframe: %w", err)
	}

	return p, nil
}
