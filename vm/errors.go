package vm

import "errors"

var (
	// ErrInvalidMapping is returned when a non-allocating walk reaches a
	// table entry that is not valid, or when translating an unmapped address.
	ErrInvalidMapping = errors.New("virtual address is not mapped")

	// ErrAddressOutOfRange is returned for virtual addresses at or above
	// MaxVA.
	ErrAddressOutOfRange = errors.New("virtual address out of range")

	// ErrOutOfMemory is returned when no free physical frame is left.
	ErrOutOfMemory = errors.New("out of physical memory")

	// ErrRemap is returned when mapping a page that is already mapped.
	ErrRemap = errors.New("virtual address already mapped")

	// ErrMisaligned is returned when an address or size that must be page
	// aligned is not.
	ErrMisaligned = errors.New("address is not page aligned")

	// ErrNotUserAccessible is returned when translating an address that is
	// mapped without the user flag.
	ErrNotUserAccessible = errors.New("page is not user accessible")

	// ErrSuperpage is returned when the walk meets a leaf entry above level
	// 0.
	ErrSuperpage = errors.New("superpage mappings are not supported")
)
