package vm

import (
	"fmt"
	"unsafe"
)

// Memory is an arena of physical frames. Frames are numbered from a base
// frame so that physical addresses look like those of a real machine.
type Memory struct {
	base      Frame
	numFrames uint64
	data      []byte
	release   func([]byte) error

	allocated []bool
	freeList  []Frame
	nextFresh uint64
	numInUse  uint64
}

// A MemoryBuilder can build Memory.
type MemoryBuilder struct {
	baseAddr  uint64
	numFrames uint64
}

// MakeMemoryBuilder creates a builder with the default configuration: 32 MiB
// of memory starting at physical address 0x80000000.
func MakeMemoryBuilder() MemoryBuilder {
	return MemoryBuilder{
		baseAddr:  0x80000000,
		numFrames: 8192,
	}
}

// WithBaseAddr sets the physical address of the first frame.
func (b MemoryBuilder) WithBaseAddr(addr uint64) MemoryBuilder {
	b.baseAddr = addr
	return b
}

// WithNumFrames sets how many frames the memory holds.
func (b MemoryBuilder) WithNumFrames(n uint64) MemoryBuilder {
	b.numFrames = n
	return b
}

// Build creates the memory.
func (b MemoryBuilder) Build() (*Memory, error) {
	if !IsPageAligned(b.baseAddr) {
		panic("memory base address must be page aligned")
	}

	if b.numFrames == 0 {
		panic("memory must hold at least one frame")
	}

	data, release, err := allocArena(int(b.numFrames * PageSize))
	if err != nil {
		return nil, fmt.Errorf("allocating physical memory: %w", err)
	}

	m := &Memory{
		base:      FrameFromAddress(b.baseAddr),
		numFrames: b.numFrames,
		data:      data,
		release:   release,
		allocated: make([]bool, b.numFrames),
	}

	return m, nil
}

// Close gives the backing storage back to the host.
func (m *Memory) Close() error {
	if m.data == nil {
		return nil
	}

	err := m.release(m.data)
	m.data = nil

	return err
}

// AllocFrame hands out a zero-filled frame. Freed frames are reused first.
func (m *Memory) AllocFrame() (Frame, error) {
	var index uint64

	switch {
	case len(m.freeList) > 0:
		last := len(m.freeList) - 1
		index = uint64(m.freeList[last] - m.base)
		m.freeList = m.freeList[:last]
	case m.nextFresh < m.numFrames:
		index = m.nextFresh
		m.nextFresh++
	default:
		return InvalidFrame, ErrOutOfMemory
	}

	m.allocated[index] = true
	m.numInUse++

	frame := m.base + Frame(index)
	clear(m.Bytes(frame))

	return frame, nil
}

// FreeFrame returns a frame to the memory. Freeing a frame that is not
// allocated panics.
func (m *Memory) FreeFrame(frame Frame) {
	index := m.indexOf(frame)
	if !m.allocated[index] {
		panic(fmt.Sprintf("freeing frame 0x%x that is not allocated", frame))
	}

	m.allocated[index] = false
	m.numInUse--
	m.freeList = append(m.freeList, frame)
}

// Table interprets the frame as a page table.
func (m *Memory) Table(frame Frame) *PageTable {
	offset := m.indexOf(frame) * PageSize
	return (*PageTable)(unsafe.Pointer(&m.data[offset]))
}

// Bytes returns the content of the frame.
func (m *Memory) Bytes(frame Frame) []byte {
	offset := m.indexOf(frame) * PageSize
	return m.data[offset : offset+PageSize : offset+PageSize]
}

// Contains tells if the frame belongs to this memory.
func (m *Memory) Contains(frame Frame) bool {
	return frame >= m.base && uint64(frame-m.base) < m.numFrames
}

// NumFrames returns the capacity of the memory in frames.
func (m *Memory) NumFrames() uint64 {
	return m.numFrames
}

// NumFramesInUse returns how many frames are currently allocated.
func (m *Memory) NumFramesInUse() uint64 {
	return m.numInUse
}

func (m *Memory) indexOf(frame Frame) uint64 {
	if !m.Contains(frame) {
		panic(fmt.Sprintf("frame 0x%x is outside physical memory", frame))
	}

	return uint64(frame - m.base)
}
