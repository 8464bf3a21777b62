package vm

import "fmt"

// Walk returns the level-0 entry that maps the page containing vAddr.
//
// When an intermediate table is missing, Walk installs a zero-filled one if
// alloc is true, or fails with ErrInvalidMapping otherwise. The returned
// entry itself may be invalid; callers decide what an invalid leaf means.
func Walk(
	mem PhysicalMemory,
	root Frame,
	vAddr uint64,
	alloc bool,
) (*PTE, error) {
	if vAddr >= MaxVA {
		return nil, ErrAddressOutOfRange
	}

	table := mem.Table(root)
	for level := NumLevels - 1; level > 0; level-- {
		pte := &table[LevelIndex(vAddr, level)]

		if pte.Valid() {
			if pte.IsLeaf() {
				return nil, ErrSuperpage
			}

			table = mem.Table(pte.Frame())
			continue
		}

		if !alloc {
			return nil, ErrInvalidMapping
		}

		frame, err := mem.AllocFrame()
		if err != nil {
			return nil, err
		}

		*pte = MakePTE(frame, FlagValid)
		table = mem.Table(frame)
	}

	return &table[LevelIndex(vAddr, 0)], nil
}

// Lookup returns the valid leaf entry that maps vAddr without creating any
// table. The bool return value indicates if such an entry exists.
func Lookup(mem PhysicalMemory, root Frame, vAddr uint64) (*PTE, bool) {
	pte, err := Walk(mem, root, vAddr, false)
	if err != nil || !pte.Valid() {
		return nil, false
	}

	return pte, true
}

// Translate returns the physical address that a user-accessible virtual
// address maps to.
func Translate(mem PhysicalMemory, root Frame, vAddr uint64) (uint64, error) {
	pte, found := Lookup(mem, root, vAddr)
	if !found {
		return 0, fmt.Errorf("translating 0x%x: %w", vAddr, ErrInvalidMapping)
	}

	if !pte.HasFlags(FlagUser) {
		return 0, fmt.Errorf("translating 0x%x: %w", vAddr, ErrNotUserAccessible)
	}

	return pte.PAddr() + PageOffset(vAddr), nil
}

// Map creates leaf entries for the pages in [vAddr, vAddr+size) pointing to
// consecutive physical pages starting at pAddr. Both addresses and the size
// must be page aligned. Mapping a page twice fails with ErrRemap.
func Map(
	mem PhysicalMemory,
	root Frame,
	vAddr, pAddr, size uint64,
	perm PTEFlag,
) error {
	if size == 0 {
		panic("mapping an empty range")
	}

	if !IsPageAligned(vAddr) || !IsPageAligned(pAddr) || !IsPageAligned(size) {
		return ErrMisaligned
	}

	for offset := uint64(0); offset < size; offset += PageSize {
		pte, err := Walk(mem, root, vAddr+offset, true)
		if err != nil {
			return fmt.Errorf("mapping 0x%x: %w", vAddr+offset, err)
		}

		if pte.Valid() {
			return fmt.Errorf("mapping 0x%x: %w", vAddr+offset, ErrRemap)
		}

		*pte = MakePTE(FrameFromAddress(pAddr+offset), perm|FlagValid)
	}

	return nil
}

// Unmap removes the leaf entries of numPages pages starting at vAddr. Pages
// that were never mapped are skipped, since lazily grown regions are usually
// only partially backed. If free is true the backing frames are released.
func Unmap(
	mem PhysicalMemory,
	root Frame,
	vAddr uint64,
	numPages uint64,
	free bool,
) error {
	if !IsPageAligned(vAddr) {
		return ErrMisaligned
	}

	for i := uint64(0); i < numPages; i++ {
		pte, found := Lookup(mem, root, vAddr+i*PageSize)
		if !found {
			continue
		}

		if !pte.IsLeaf() {
			panic("unmapping an entry that is not a leaf")
		}

		if free {
			mem.FreeFrame(pte.Frame())
		}

		*pte = 0
	}

	return nil
}

// FreeTables releases the table at root and every table below it. If
// freeLeaves is true, the frames that leaf entries point to are released as
// well, whatever their permissions. Otherwise all leaf mappings must have been
// removed before.
func FreeTables(mem PhysicalMemory, root Frame, freeLeaves bool) {
	table := mem.Table(root)
	for i := range table {
		pte := table[i]
		if !pte.Valid() {
			continue
		}

		switch {
		case !pte.IsLeaf():
			FreeTables(mem, pte.Frame(), freeLeaves)
		case freeLeaves:
			mem.FreeFrame(pte.Frame())
		default:
			panic("freeing a page table that still maps a page")
		}

		table[i] = 0
	}

	mem.FreeFrame(root)
}
