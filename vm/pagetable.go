package vm

// A PageTable is one level of the translation tree. It occupies exactly one
// physical frame.
type PageTable [EntriesPerTable]PTE

// IsEmpty tells if no entry of the table is valid.
func (t *PageTable) IsEmpty() bool {
	for _, pte := range t {
		if pte.Valid() {
			return false
		}
	}

	return true
}

// PhysicalMemory provides the frames that back page tables and data pages.
// Every table of a process is reached from its root through exactly one
// entry, so frames are never shared between tables.
type PhysicalMemory interface {
	// AllocFrame returns a zero-filled frame.
	AllocFrame() (Frame, error)

	// FreeFrame returns a frame to the free pool.
	FreeFrame(frame Frame)

	// Table interprets a frame as a page table.
	Table(frame Frame) *PageTable

	// Bytes returns the content of a frame.
	Bytes(frame Frame) []byte
}
