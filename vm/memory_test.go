package vm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Memory", func() {
	var mem *Memory

	BeforeEach(func() {
		mem = newTestMemory(4)
	})

	It("should number frames from the base address", func() {
		frame, err := mem.AllocFrame()

		Expect(err).ToNot(HaveOccurred())
		Expect(frame.Address()).To(Equal(uint64(0x80000000)))
		Expect(mem.NumFramesInUse()).To(Equal(uint64(1)))
	})

	It("should hand out zeroed frames", func() {
		frame, _ := mem.AllocFrame()
		mem.Bytes(frame)[10] = 0xff
		mem.FreeFrame(frame)

		again, err := mem.AllocFrame()

		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(Equal(frame))
		Expect(mem.Bytes(again)[10]).To(Equal(byte(0)))
	})

	It("should report exhaustion", func() {
		for i := 0; i < 4; i++ {
			_, err := mem.AllocFrame()
			Expect(err).ToNot(HaveOccurred())
		}

		frame, err := mem.AllocFrame()

		Expect(err).To(MatchError(ErrOutOfMemory))
		Expect(frame.Valid()).To(BeFalse())
	})

	It("should panic on double free", func() {
		frame, _ := mem.AllocFrame()
		mem.FreeFrame(frame)

		Expect(func() { mem.FreeFrame(frame) }).To(Panic())
	})

	It("should panic on frames outside the memory", func() {
		Expect(func() { mem.Bytes(Frame(3)) }).To(Panic())
		Expect(mem.Contains(Frame(3))).To(BeFalse())
	})

	It("should view a frame as a page table", func() {
		frame, _ := mem.AllocFrame()
		table := mem.Table(frame)

		table[1] = MakePTE(Frame(0x80001), FlagValid)

		Expect(mem.Bytes(frame)[8]).To(Equal(byte(0x01)))
		Expect(table.IsEmpty()).To(BeFalse())
	})
})
