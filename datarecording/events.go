package datarecording

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/proc"
)

// Tables written by an EventRecorder.
const (
	TableGrowEvents    = "grow_events"
	TableFaultEvents   = "fault_events"
	TableAccessReports = "access_reports"
	TableMappings      = "mappings"
	TableReleases      = "releases"
)

// GrowEntry is a row of the grow_events table. Sizes are hexadecimal text
// since a shrinking process can wrap its size above the signed range of SQLite
// integers.
type GrowEntry struct {
	ID      string
	PID     uint32
	Delta   int64
	OldSize string
	NewSize string
}

// FaultEntry is a row of the fault_events table. The faulting address is
// hexadecimal text, as user code can touch any 64-bit address.
type FaultEntry struct {
	ID    string
	PID   uint32
	VAddr string
	Kind  string
	Error string
}

// AccessReportEntry is a row of the access_reports table. The start address
// and the bitmap are kept as hexadecimal text since SQLite integers are
// signed.
type AccessReportEntry struct {
	ID        string
	PID       uint32
	Start     string
	Requested int
	Reported  int
	Bitmap    string
}

// MappingEntry is a row of the mappings table. All the rows printed by one
// page table print share the same Snapshot.
type MappingEntry struct {
	ID       string
	PID      uint32
	Snapshot string
	Index    int
	VAddr    uint64
	PAddr    uint64
	Flags    uint64
}

// ReleaseEntry is a row of the releases table.
type ReleaseEntry struct {
	ID          string
	PID         uint32
	FramesFreed uint64
}

// EventRecorder is a hook that turns process events into database rows.
type EventRecorder struct {
	recorder DataRecorder
}

// NewEventRecorder creates the event tables in the recorder.
func NewEventRecorder(recorder DataRecorder) *EventRecorder {
	recorder.CreateTable(TableGrowEvents, GrowEntry{})
	recorder.CreateTable(TableFaultEvents, FaultEntry{})
	recorder.CreateTable(TableAccessReports, AccessReportEntry{})
	recorder.CreateTable(TableMappings, MappingEntry{})
	recorder.CreateTable(TableReleases, ReleaseEntry{})

	return &EventRecorder{recorder: recorder}
}

// Func records the event carried by the hook context. Events from domains
// other than processes are ignored.
func (r *EventRecorder) Func(ctx hooking.HookCtx) {
	p, ok := ctx.Domain.(*proc.Process)
	if !ok {
		return
	}

	pid := uint32(p.PID())

	switch e := ctx.Item.(type) {
	case proc.GrowEvent:
		r.recorder.InsertData(TableGrowEvents, GrowEntry{
			ID:      xid.New().String(),
			PID:     pid,
			Delta:   e.Delta,
			OldSize: hex(e.OldSize),
			NewSize: hex(e.NewSize),
		})
	case proc.FaultEvent:
		r.recordFault(pid, e)
	case proc.AccessReportEvent:
		r.recorder.InsertData(TableAccessReports, AccessReportEntry{
			ID:        xid.New().String(),
			PID:       pid,
			Start:     hex(e.Start),
			Requested: e.Requested,
			Reported:  e.Reported,
			Bitmap:    e.Bitmap.String(),
		})
	case proc.PageTablePrintEvent:
		r.recordMappings(pid, e)
	case proc.ReleaseEvent:
		r.recorder.InsertData(TableReleases, ReleaseEntry{
			ID:          xid.New().String(),
			PID:         pid,
			FramesFreed: e.FramesFreed,
		})
	}
}

func (r *EventRecorder) recordFault(pid uint32, e proc.FaultEvent) {
	entry := FaultEntry{
		ID:    xid.New().String(),
		PID:   pid,
		VAddr: hex(e.VAddr),
		Kind:  e.Kind.String(),
	}

	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	r.recorder.InsertData(TableFaultEvents, entry)
}

func (r *EventRecorder) recordMappings(pid uint32, e proc.PageTablePrintEvent) {
	snapshot := xid.New().String()

	for _, m := range e.Mappings {
		r.recorder.InsertData(TableMappings, MappingEntry{
			ID:       xid.New().String(),
			PID:      pid,
			Snapshot: snapshot,
			Index:    m.Index,
			VAddr:    m.VAddr,
			PAddr:    m.PAddr,
			Flags:    uint64(m.Entry.Flags()),
		})
	}
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}
