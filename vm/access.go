package vm

import (
	"encoding/binary"
	"fmt"
)

// MaxAccessPages is the number of pages an AccessBitmap can describe. Each
// page takes two bits of a 64-bit word.
const MaxAccessPages = 32

// AccessBitmapSize is the number of bytes an AccessBitmap occupies in user
// memory.
const AccessBitmapSize = 8

// AccessBitmap packs the status of up to MaxAccessPages consecutive pages.
// Bit 2i tells if page i is dirty and bit 2i+1 tells if page i was accessed.
type AccessBitmap uint64

// Dirty tells if page i was reported as written.
func (b AccessBitmap) Dirty(i int) bool {
	return b.bit(2 * i)
}

// Accessed tells if page i was reported as referenced.
func (b AccessBitmap) Accessed(i int) bool {
	return b.bit(2*i + 1)
}

func (b AccessBitmap) bit(pos int) bool {
	if pos < 0 || pos >= 2*MaxAccessPages {
		return false
	}

	return b&(1<<uint(pos)) != 0
}

func (b *AccessBitmap) markDirty(i int) {
	*b |= 1 << uint(2*i)
}

func (b *AccessBitmap) markAccessed(i int) {
	*b |= 1 << uint(2*i+1)
}

// Bytes encodes the bitmap the way it is stored in user memory.
func (b AccessBitmap) Bytes() []byte {
	buf := make([]byte, AccessBitmapSize)
	binary.LittleEndian.PutUint64(buf, uint64(b))

	return buf
}

// AccessBitmapFromBytes decodes a bitmap stored in user memory.
func AccessBitmapFromBytes(buf []byte) (AccessBitmap, error) {
	if len(buf) != AccessBitmapSize {
		return 0, fmt.Errorf(
			"access bitmap must be %d bytes, got %d", AccessBitmapSize, len(buf))
	}

	return AccessBitmap(binary.LittleEndian.Uint64(buf)), nil
}

// String prints the bitmap as a fixed-width hexadecimal word.
func (b AccessBitmap) String() string {
	return fmt.Sprintf("0x%016x", uint64(b))
}

// ClampAccessPages bounds a requested page count to what an AccessBitmap can
// hold. Negative counts become zero.
func ClampAccessPages(numPages int) int {
	return min(max(numPages, 0), MaxAccessPages)
}

// ReportAccess reads the dirty and accessed bits of up to MaxAccessPages pages
// starting at the page-aligned address start. Counts above the maximum are
// truncated.
//
// After reading a page, its accessed bit is cleared so that the next report
// only shows accesses made in between. Dirty bits are left as they are. Pages
// without a valid leaf entry are reported as neither dirty nor accessed.
func ReportAccess(
	mem PhysicalMemory,
	root Frame,
	start uint64,
	numPages int,
) (AccessBitmap, error) {
	if !IsPageAligned(start) {
		return 0, fmt.Errorf("reporting access at 0x%x: %w", start, ErrMisaligned)
	}

	var bitmap AccessBitmap

	numPages = ClampAccessPages(numPages)
	for i := 0; i < numPages; i++ {
		vAddr := start + uint64(i)*PageSize
		if vAddr < start {
			break
		}

		pte, found := Lookup(mem, root, vAddr)
		if !found {
			continue
		}

		if pte.Dirty() {
			bitmap.markDirty(i)
		}

		if pte.Accessed() {
			bitmap.markAccessed(i)
		}

		pte.ClearFlags(FlagAccessed)
	}

	return bitmap, nil
}
