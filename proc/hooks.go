package proc

import (
	"fmt"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/vm"
)

// Hook positions triggered by a Process.
var (
	HookPosGrow           = &hooking.HookPos{Name: "Grow"}
	HookPosPageFault      = &hooking.HookPos{Name: "PageFault"}
	HookPosAccessReport   = &hooking.HookPos{Name: "AccessReport"}
	HookPosPageTablePrint = &hooking.HookPos{Name: "PageTablePrint"}
	HookPosRelease        = &hooking.HookPos{Name: "Release"}
)

// GrowEvent is the item of HookPosGrow.
type GrowEvent struct {
	Delta   int64
	OldSize uint64
	NewSize uint64
}

func (e GrowEvent) String() string {
	return fmt.Sprintf("size 0x%x -> 0x%x (%+d)", e.OldSize, e.NewSize, e.Delta)
}

// FaultEvent is the item of HookPosPageFault.
type FaultEvent struct {
	VAddr uint64
	Kind  AccessKind
	Err   error
}

func (e FaultEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s fault at 0x%x: %v", e.Kind, e.VAddr, e.Err)
	}

	return fmt.Sprintf("%s fault at 0x%x", e.Kind, e.VAddr)
}

// AccessReportEvent is the item of HookPosAccessReport.
type AccessReportEvent struct {
	Start     uint64
	Requested int
	Reported  int
	Bitmap    vm.AccessBitmap
}

func (e AccessReportEvent) String() string {
	return fmt.Sprintf("%d of %d pages at 0x%x: %s",
		e.Reported, e.Requested, e.Start, e.Bitmap)
}

// PageTablePrintEvent is the item of HookPosPageTablePrint.
type PageTablePrintEvent struct {
	Mappings []vm.Mapping
}

func (e PageTablePrintEvent) String() string {
	return fmt.Sprintf("%d user pages mapped", len(e.Mappings))
}

// ReleaseEvent is the item of HookPosRelease.
type ReleaseEvent struct {
	FramesFreed uint64
}

func (e ReleaseEvent) String() string {
	return fmt.Sprintf("%d frames freed", e.FramesFreed)
}
