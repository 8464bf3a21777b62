package proc

import (
	"io"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/vm"
)

// PgtPrint writes one line for every valid, user-accessible page of the
// process, in increasing virtual address order.
func (p *Process) PgtPrint(w io.Writer) error {
	p.mustNotBeReleased()

	_, err := vm.PrintMappings(w, p.mem, p.root)
	if err != nil {
		return err
	}

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosPageTablePrint,
		Item:   PageTablePrintEvent{Mappings: vm.Mappings(p.mem, p.root)},
	})

	return nil
}

// AccessReport returns the dirty and accessed status of up to
// vm.MaxAccessPages pages starting at start, and clears their accessed bits.
func (p *Process) AccessReport(start uint64, numPages int) (vm.AccessBitmap, error) {
	p.mustNotBeReleased()

	bitmap, err := vm.ReportAccess(p.mem, p.root, start, numPages)
	if err != nil {
		return 0, err
	}

	p.InvokeHook(hooking.HookCtx{
		Domain: p,
		Pos:    HookPosAccessReport,
		Item: AccessReportEvent{
			Start:     start,
			Requested: numPages,
			Reported:  vm.ClampAccessPages(numPages),
			Bitmap:    bitmap,
		},
	})

	return bitmap, nil
}

// PgAccess is the system call form of AccessReport. The bitmap is stored as
// 8 bytes at the user address dst.
func (p *Process) PgAccess(start uint64, numPages int, dst uint64) error {
	bitmap, err := p.AccessReport(start, numPages)
	if err != nil {
		return err
	}

	return p.CopyOut(dst, bitmap.Bytes())
}
