package workload

import (
	"fmt"
	"io"

	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

// PageAccessConfig configures the PageAccess workload.
type PageAccessConfig struct {
	// NumPages is the size of the array in pages and the number of pages
	// queried.
	NumPages int

	// Touch lists the pages that are modified between the two queries.
	Touch []int
}

// DefaultPageAccessConfig allocates 32 pages and modifies pages 11, 15 and
// 30.
func DefaultPageAccessConfig() PageAccessConfig {
	return PageAccessConfig{NumPages: 32, Touch: []int{11, 15, 30}}
}

// PageAccessResult summarizes a PageAccess run.
type PageAccessResult struct {
	ArrayAddr  uint64
	Reset      vm.AccessBitmap
	AfterTouch vm.AccessBitmap
}

// PageAccess grows the process by an array of pages, queries the access
// bitmap once to reset it, increments one byte in each touched page, and
// queries again. The second bitmap is read back from user memory and printed
// page by page.
func PageAccess(
	m UserMemory,
	p *proc.Process,
	cfg PageAccessConfig,
	out io.Writer,
) (PageAccessResult, error) {
	res := PageAccessResult{}

	if cfg.NumPages < 0 {
		return res, fmt.Errorf("invalid page count %d", cfg.NumPages)
	}

	arr := p.Sbrk(int64(cfg.NumPages) * vm.PageSize)
	res.ArrayAddr = arr
	bitmapAddr := p.StackTop() - vm.AccessBitmapSize

	var err error
	res.Reset, err = queryAccess(m, p, arr, cfg.NumPages, bitmapAddr)
	if err != nil {
		return res, err
	}

	for _, page := range cfg.Touch {
		err = incrementByte(m, p, arr+uint64(page)*vm.PageSize)
		if err != nil {
			return res, err
		}
	}

	res.AfterTouch, err = queryAccess(m, p, arr, cfg.NumPages, bitmapAddr)
	if err != nil {
		return res, err
	}

	printAccessReport(out, res.AfterTouch, vm.MaxAccessPages)

	return res, nil
}

func queryAccess(
	m UserMemory,
	p *proc.Process,
	start uint64,
	numPages int,
	bitmapAddr uint64,
) (vm.AccessBitmap, error) {
	err := p.PgAccess(start, numPages, bitmapAddr)
	if err != nil {
		return 0, err
	}

	v, err := m.LoadUint64(p, bitmapAddr)
	if err != nil {
		return 0, err
	}

	return vm.AccessBitmap(v), nil
}

func incrementByte(m UserMemory, p *proc.Process, vAddr uint64) error {
	buf := make([]byte, 1)

	err := m.Load(p, vAddr, buf)
	if err != nil {
		return err
	}

	buf[0]++

	return m.Store(p, vAddr, buf)
}

func printAccessReport(out io.Writer, bitmap vm.AccessBitmap, numPages int) {
	for i := 0; i < numPages; i++ {
		if bitmap.Dirty(i) {
			fmt.Fprintf(out, "pgaccess: page %d is dirty  ", i)
		} else {
			fmt.Fprintf(out, "pgaccess: page %d is not dirty  ", i)
		}

		if bitmap.Accessed(i) {
			fmt.Fprintf(out, "pgaccess: page %d is accessed  ", i)
		} else {
			fmt.Fprintf(out, "pgaccess: page %d is not accessed  ", i)
		}

		fmt.Fprintln(out)
	}
}
