package vm

// Sv39 geometry. Only 4 KiB leaf pages are supported.
const (
	Log2PageSize    = 12
	PageSize        = 1 << Log2PageSize
	NumLevels       = 3
	EntriesPerTable = 512

	levelBits = 9
	levelMask = EntriesPerTable - 1

	// MaxVA is one bit less than the full Sv39 range, so that addresses never
	// need sign extension.
	MaxVA uint64 = 1 << (levelBits*NumLevels + Log2PageSize - 1)
)

// LevelShift returns the bit position of the index that selects an entry in a
// table of the given level.
func LevelShift(level int) uint {
	return uint(Log2PageSize + levelBits*level)
}

// LevelIndex extracts the table index that the virtual address uses at the
// given level.
func LevelIndex(vAddr uint64, level int) int {
	return int((vAddr >> LevelShift(level)) & levelMask)
}

// MakeVAddr reconstructs the virtual address of the page selected by the
// level-2, level-1 and level-0 indices.
func MakeVAddr(i, j, k int) uint64 {
	return uint64(i)<<LevelShift(2) |
		uint64(j)<<LevelShift(1) |
		uint64(k)<<LevelShift(0)
}

// PageRoundDown aligns the address to the start of its page.
func PageRoundDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// PageRoundUp aligns the address to the start of the next page unless it is
// already aligned.
func PageRoundUp(addr uint64) uint64 {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// PageOffset returns the offset of the address within its page.
func PageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}

// IsPageAligned tells if the address is the first byte of a page.
func IsPageAligned(addr uint64) bool {
	return PageOffset(addr) == 0
}
