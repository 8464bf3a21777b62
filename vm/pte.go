package vm

// PTEFlag is one of the flag bits of a page table entry.
type PTEFlag uint64

// Sv39 flag bits.
const (
	FlagValid    PTEFlag = 1 << 0
	FlagRead     PTEFlag = 1 << 1
	FlagWrite    PTEFlag = 1 << 2
	FlagExec     PTEFlag = 1 << 3
	FlagUser     PTEFlag = 1 << 4
	FlagGlobal   PTEFlag = 1 << 5
	FlagAccessed PTEFlag = 1 << 6
	FlagDirty    PTEFlag = 1 << 7

	flagMask PTEFlag = 0x3ff
)

// String lists the flags the way debuggers print RISC-V entries, for example
// "da-u-wrv" with a dash for every clear bit from D down to V.
func (f PTEFlag) String() string {
	const letters = "vrwxugad"

	buf := make([]byte, len(letters))
	for i := range letters {
		c := byte('-')
		if f&(1<<i) != 0 {
			c = letters[i]
		}

		buf[len(letters)-1-i] = c
	}

	return string(buf)
}

const (
	ppnShift = 10
	ppnMask  = (uint64(1) << 44) - 1
)

// A PTE is one entry of a page table. It encodes a physical frame and a set of
// flags. Entries in levels 2 and 1 point to the next table; entries in level 0
// point to data pages.
type PTE uint64

// MakePTE creates an entry that points to the frame and carries the flags.
func MakePTE(frame Frame, flags PTEFlag) PTE {
	return PTE((uint64(frame)&ppnMask)<<ppnShift | uint64(flags&flagMask))
}

// HasFlags returns true if all the given flags are set.
func (pte PTE) HasFlags(flags PTEFlag) bool {
	return PTEFlag(pte)&flags == flags
}

// HasAnyFlag returns true if at least one of the given flags is set.
func (pte PTE) HasAnyFlag(flags PTEFlag) bool {
	return PTEFlag(pte)&flags != 0
}

// SetFlags sets the given flags.
func (pte *PTE) SetFlags(flags PTEFlag) {
	*pte = PTE(PTEFlag(*pte) | flags&flagMask)
}

// ClearFlags unsets the given flags.
func (pte *PTE) ClearFlags(flags PTEFlag) {
	*pte = PTE(PTEFlag(*pte) &^ (flags & flagMask))
}

// Flags returns all the flag bits of the entry.
func (pte PTE) Flags() PTEFlag {
	return PTEFlag(pte) & flagMask
}

// Frame returns the physical frame the entry points to.
func (pte PTE) Frame() Frame {
	return Frame((uint64(pte) >> ppnShift) & ppnMask)
}

// SetFrame points the entry to another frame, keeping the flags.
func (pte *PTE) SetFrame(frame Frame) {
	*pte = MakePTE(frame, pte.Flags())
}

// PAddr returns the physical address of the frame the entry points to.
func (pte PTE) PAddr() uint64 {
	return pte.Frame().Address()
}

// Valid tells if the entry can be used for translation.
func (pte PTE) Valid() bool {
	return pte.HasFlags(FlagValid)
}

// IsLeaf tells if a valid entry maps a page rather than pointing to the next
// level table. Sv39 marks table pointers by leaving R, W and X clear.
func (pte PTE) IsLeaf() bool {
	return pte.HasAnyFlag(FlagRead | FlagWrite | FlagExec)
}

// UserAccessible tells if the entry is valid and usable from user mode.
func (pte PTE) UserAccessible() bool {
	return pte.HasFlags(FlagValid | FlagUser)
}

// Dirty tells if the page was written since the dirty bit was last cleared.
func (pte PTE) Dirty() bool {
	return pte.HasFlags(FlagDirty)
}

// Accessed tells if the page was referenced since the accessed bit was last
// cleared.
func (pte PTE) Accessed() bool {
	return pte.HasFlags(FlagAccessed)
}
