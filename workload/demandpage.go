package workload

import (
	"fmt"
	"io"

	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

const intSize = 4

// DemandPageConfig configures the DemandPage workload.
type DemandPageConfig struct {
	// NumElements is the length of the integer array.
	NumElements int

	// Stride says how many elements are written between two page table
	// prints.
	Stride int
}

// DefaultDemandPageConfig uses an array of 5000 integers and prints every
// 1000 elements.
func DefaultDemandPageConfig() DemandPageConfig {
	return DemandPageConfig{NumElements: 5000, Stride: 1000}
}

// A Snapshot is the set of user pages mapped when the workload printed the
// page table.
type Snapshot struct {
	Element  int
	Mappings []vm.Mapping
}

// DemandPageResult summarizes a DemandPage run.
type DemandPageResult struct {
	ArrayAddr  uint64
	FinalValue uint32
	Snapshots  []Snapshot
}

// DemandPage grows the process by an integer array and fills it by copying
// each element from the previous one. The page table is printed every Stride
// elements and once at the end, showing pages appear as they are touched.
func DemandPage(
	m UserMemory,
	p *proc.Process,
	cfg DemandPageConfig,
	out io.Writer,
) (DemandPageResult, error) {
	if cfg.NumElements <= 0 || cfg.Stride <= 0 {
		return DemandPageResult{}, fmt.Errorf(
			"invalid demand page config %+v", cfg)
	}

	res := DemandPageResult{}
	glob := p.Sbrk(int64(cfg.NumElements * intSize))
	res.ArrayAddr = glob

	err := m.StoreUint32(p, glob, 2)
	if err != nil {
		return res, err
	}

	fmt.Fprintf(out, "global addr from user space: %x\n", glob)

	for i := 1; i < cfg.NumElements; i++ {
		elem := glob + uint64(i)*intSize

		v, err := m.LoadUint32(p, elem-intSize)
		if err != nil {
			return res, err
		}

		err = m.StoreUint32(p, elem, v)
		if err != nil {
			return res, err
		}

		if i%cfg.Stride == 0 {
			err = snapshot(p, i, out, &res)
			if err != nil {
				return res, err
			}
		}
	}

	fmt.Fprintln(out, "Printing final page table:")

	err = snapshot(p, cfg.NumElements, out, &res)
	if err != nil {
		return res, err
	}

	last := glob + uint64(cfg.NumElements-1)*intSize
	res.FinalValue, err = m.LoadUint32(p, last)
	if err != nil {
		return res, err
	}

	fmt.Fprintf(out, "Value: %d\n", res.FinalValue)

	return res, nil
}

func snapshot(
	p *proc.Process,
	element int,
	out io.Writer,
	res *DemandPageResult,
) error {
	err := p.PgtPrint(out)
	if err != nil {
		return err
	}

	res.Snapshots = append(res.Snapshots, Snapshot{
		Element:  element,
		Mappings: vm.Mappings(p.Memory(), p.Root()),
	})

	return nil
}
