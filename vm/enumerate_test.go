package vm

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// countingMemory counts how many tables the enumeration reads.
type countingMemory struct {
	*Memory
	tableReads int
}

func (m *countingMemory) Table(frame Frame) *PageTable {
	m.tableReads++
	return m.Memory.Table(frame)
}

var _ = Describe("Enumerate", func() {
	var (
		mem  *Memory
		root Frame
	)

	mapPage := func(vAddr uint64, perm PTEFlag) Frame {
		frame, err := mem.AllocFrame()
		Expect(err).ToNot(HaveOccurred())
		Expect(Map(mem, root, vAddr, frame.Address(), PageSize, perm)).
			To(Succeed())

		return frame
	}

	BeforeEach(func() {
		mem = newTestMemory(64)
		root, _ = mem.AllocFrame()
	})

	It("should report nothing for an empty table", func() {
		Expect(Mappings(mem, root)).To(BeEmpty())
	})

	It("should report user pages in increasing order", func() {
		vAddrs := []uint64{
			MakeVAddr(2, 0, 0),
			MakeVAddr(0, 0, 3),
			MakeVAddr(0, 1, 0),
			MakeVAddr(0, 0, 1),
		}
		frames := map[uint64]Frame{}
		for _, v := range vAddrs {
			frames[v] = mapPage(v, FlagRead|FlagWrite|FlagUser)
		}

		mappings := Mappings(mem, root)

		Expect(mappings).To(HaveLen(4))
		Expect(mappings[0].VAddr).To(Equal(MakeVAddr(0, 0, 1)))
		Expect(mappings[1].VAddr).To(Equal(MakeVAddr(0, 0, 3)))
		Expect(mappings[2].VAddr).To(Equal(MakeVAddr(0, 1, 0)))
		Expect(mappings[3].VAddr).To(Equal(MakeVAddr(2, 0, 0)))
		Expect(mappings[1].Index).To(Equal(3))
		for _, m := range mappings {
			Expect(m.PAddr).To(Equal(frames[m.VAddr].Address()))
		}
	})

	It("should reconstruct every mapped address exactly once", func() {
		vAddrs := []uint64{0x0, 0x1000, 0x3f_ffe0_0000, 0x40_0000, 0x2_0000_0000}
		for _, v := range vAddrs {
			mapPage(v, FlagRead|FlagUser)
		}

		seen := map[uint64]int{}
		Enumerate(mem, root, func(m Mapping) bool {
			seen[m.VAddr]++
			return true
		})

		Expect(seen).To(HaveLen(len(vAddrs)))
		for _, v := range vAddrs {
			Expect(seen[v]).To(Equal(1))
		}
	})

	It("should skip pages without user access", func() {
		mapPage(0x1000, FlagRead|FlagUser)
		mapPage(0x2000, FlagRead|FlagWrite)

		mappings := Mappings(mem, root)

		Expect(mappings).To(HaveLen(1))
		Expect(mappings[0].VAddr).To(Equal(uint64(0x1000)))
	})

	It("should only visit tables reachable through valid entries", func() {
		mapPage(MakeVAddr(0, 0, 0), FlagRead|FlagUser)
		mapPage(MakeVAddr(5, 7, 0), FlagRead|FlagUser)
		counting := &countingMemory{Memory: mem}

		Mappings(counting, root)

		Expect(counting.tableReads).To(Equal(5))
	})

	It("should stop when asked to", func() {
		mapPage(0x1000, FlagRead|FlagUser)
		mapPage(0x2000, FlagRead|FlagUser)

		calls := 0
		Enumerate(mem, root, func(m Mapping) bool {
			calls++
			return false
		})

		Expect(calls).To(Equal(1))
	})

	It("should not modify the table", func() {
		mapPage(0x1000, FlagRead|FlagUser|FlagAccessed|FlagDirty)
		before := *mem.Table(root)

		Mappings(mem, root)

		Expect(*mem.Table(root)).To(Equal(before))
		pte, _ := Lookup(mem, root, 0x1000)
		Expect(pte.Accessed()).To(BeTrue())
	})

	It("should print one line per page", func() {
		frame := mapPage(0x3000, FlagRead|FlagUser)
		mapPage(MakeVAddr(1, 0, 2), FlagRead|FlagUser)
		buf := new(bytes.Buffer)

		count, err := PrintMappings(buf, mem, root)

		Expect(err).ToNot(HaveOccurred())
		Expect(count).To(Equal(2))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(frame.Address()).To(Equal(uint64(0x80001000)))
		Expect(lines[0]).To(Equal(
			"PTE No: 3, Virtual page address: 0x0000000000003000, " +
				"Physical page address: 0x0000000080001000"))
		Expect(lines[1]).To(HavePrefix(
			"PTE No: 2, Virtual page address: 0x0000000040002000, "))
	})
})
