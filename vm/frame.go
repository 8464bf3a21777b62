package vm

import "math"

// Frame is the number of a physical page frame.
type Frame uint64

// InvalidFrame is returned when no frame can be provided.
const InvalidFrame = Frame(math.MaxUint64)

// Valid tells if the frame number refers to a frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of the frame.
func (f Frame) Address() uint64 {
	return uint64(f) << Log2PageSize
}

// FrameFromAddress returns the frame that contains the physical address.
func FrameFromAddress(pAddr uint64) Frame {
	return Frame(pAddr >> Log2PageSize)
}
