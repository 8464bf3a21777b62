package vm

import (
	"fmt"
	"io"
)

// A Mapping is a valid, user-accessible leaf entry found by Enumerate.
type Mapping struct {
	// Index is the position of the entry in its level-0 table.
	Index int
	VAddr uint64
	PAddr uint64
	Entry PTE
}

// Enumerate calls fn for every valid, user-accessible leaf entry reachable
// from root, in increasing virtual address order. An invalid entry at level 2
// or 1 skips the whole subtree below it. Enumeration stops early when fn
// returns false.
func Enumerate(mem PhysicalMemory, root Frame, fn func(Mapping) bool) {
	enumerateTable(mem, root, NumLevels-1, 0, fn)
}

func enumerateTable(
	mem PhysicalMemory,
	frame Frame,
	level int,
	prefix uint64,
	fn func(Mapping) bool,
) bool {
	table := mem.Table(frame)

	for index, pte := range table {
		if !pte.Valid() {
			continue
		}

		vAddr := prefix | uint64(index)<<LevelShift(level)

		if level > 0 {
			if pte.IsLeaf() {
				continue
			}

			if !enumerateTable(mem, pte.Frame(), level-1, vAddr, fn) {
				return false
			}

			continue
		}

		if !pte.HasFlags(FlagUser) {
			continue
		}

		mapping := Mapping{
			Index: index,
			VAddr: vAddr,
			PAddr: pte.PAddr(),
			Entry: pte,
		}
		if !fn(mapping) {
			return false
		}
	}

	return true
}

// Mappings collects all the mappings that Enumerate reports.
func Mappings(mem PhysicalMemory, root Frame) []Mapping {
	var mappings []Mapping

	Enumerate(mem, root, func(m Mapping) bool {
		mappings = append(mappings, m)
		return true
	})

	return mappings
}

// String formats the mapping as one line of the page table trace.
func (m Mapping) String() string {
	return fmt.Sprintf(
		"PTE No: %d, Virtual page address: 0x%016x, Physical page address: 0x%016x",
		m.Index, m.VAddr, m.PAddr)
}

// PrintMappings writes one trace line per mapping and returns how many lines
// were written.
func PrintMappings(w io.Writer, mem PhysicalMemory, root Frame) (int, error) {
	var (
		count int
		err   error
	)

	Enumerate(mem, root, func(m Mapping) bool {
		_, err = fmt.Fprintln(w, m.String())
		if err != nil {
			return false
		}

		count++

		return true
	})

	return count, err
}
