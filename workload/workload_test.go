package workload

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

var _ = Describe("Workloads", func() {
	var (
		machine *Machine
		p       *proc.Process
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		machine, err = NewMachine(256)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(machine.Close)

		p, err = machine.Spawn()
		Expect(err).ToNot(HaveOccurred())

		out = new(bytes.Buffer)
	})

	Context("DemandPage", func() {
		arrayPages := func(snap Snapshot, base, size uint64) []uint64 {
			pages := []uint64{}
			for _, m := range snap.Mappings {
				if m.VAddr >= vm.PageRoundDown(base) && m.VAddr < base+size {
					pages = append(pages, m.VAddr)
				}
			}
			return pages
		}

		It("should back the array one page at a time", func() {
			cfg := DefaultDemandPageConfig()

			res, err := DemandPage(machine.MMU, p, cfg, out)

			Expect(err).ToNot(HaveOccurred())
			Expect(res.FinalValue).To(Equal(uint32(2)))
			Expect(res.Snapshots).To(HaveLen(5))

			size := uint64(cfg.NumElements * 4)
			prev := []uint64{}
			for i, snap := range res.Snapshots {
				pages := arrayPages(snap, res.ArrayAddr, size)
				Expect(pages).To(HaveLen(i + 1))
				Expect(pages[:len(prev)]).To(Equal(prev))
				for _, va := range pages {
					Expect(vm.IsPageAligned(va)).To(BeTrue())
				}
				prev = pages
			}

			Expect(machine.Pager.NumPagesBacked()).To(Equal(uint64(5)))
			Expect(out.String()).To(ContainSubstring("Printing final page table:"))
			Expect(out.String()).To(HaveSuffix("Value: 2\n"))
		})

		It("should print the array address first", func() {
			_, err := DemandPage(machine.MMU, p,
				DemandPageConfig{NumElements: 10, Stride: 100}, out)

			Expect(err).ToNot(HaveOccurred())
			Expect(out.String()).To(HavePrefix("global addr from user space: 3000\n"))
		})

		It("should reject an empty array", func() {
			_, err := DemandPage(machine.MMU, p,
				DemandPageConfig{NumElements: 0, Stride: 1}, out)

			Expect(err).To(HaveOccurred())
		})
	})

	Context("PageAccess", func() {
		It("should report only the modified pages", func() {
			res, err := PageAccess(machine.MMU, p, DefaultPageAccessConfig(), out)

			Expect(err).ToNot(HaveOccurred())
			Expect(res.Reset).To(Equal(vm.AccessBitmap(0)))
			Expect(res.AfterTouch).To(Equal(
				vm.AccessBitmap(3<<22 | 3<<30 | 3<<60)))

			for i := 0; i < 32; i++ {
				touched := i == 11 || i == 15 || i == 30
				Expect(res.AfterTouch.Dirty(i)).To(Equal(touched))
				Expect(res.AfterTouch.Accessed(i)).To(Equal(touched))
			}
		})

		It("should render one line per page", func() {
			_, err := PageAccess(machine.MMU, p, DefaultPageAccessConfig(), out)

			Expect(err).ToNot(HaveOccurred())
			lines := bytes.Split(bytes.TrimSuffix(out.Bytes(), []byte("\n")),
				[]byte("\n"))
			Expect(lines).To(HaveLen(32))
			Expect(string(lines[11])).To(Equal(
				"pgaccess: page 11 is dirty  pgaccess: page 11 is accessed  "))
			Expect(string(lines[12])).To(Equal(
				"pgaccess: page 12 is not dirty  " +
					"pgaccess: page 12 is not accessed  "))
		})

		It("should report nothing when no page is touched", func() {
			res, err := PageAccess(machine.MMU, p,
				PageAccessConfig{NumPages: 32}, out)

			Expect(err).ToNot(HaveOccurred())
			Expect(res.AfterTouch).To(Equal(vm.AccessBitmap(0)))
		})

		It("should fail when touching a page beyond the array", func() {
			_, err := PageAccess(machine.MMU, p,
				PageAccessConfig{NumPages: 2, Touch: []int{4}}, out)

			Expect(err).To(HaveOccurred())
		})
	})
})
