package mmu

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/pgtrace/hooking"
	"github.com/sarchlab/pgtrace/pager"
	"github.com/sarchlab/pgtrace/proc"
	"github.com/sarchlab/pgtrace/vm"
)

var _ = Describe("MMU", func() {
	var (
		mem  *vm.Memory
		mmu  *Comp
		p    *proc.Process
		base uint64
	)

	leaf := func(vAddr uint64) *vm.PTE {
		pte, found := vm.Lookup(mem, p.Root(), vAddr)
		Expect(found).To(BeTrue())

		return pte
	}

	BeforeEach(func() {
		var err error
		mem, err = vm.MakeMemoryBuilder().WithNumFrames(128).Build()
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(mem.Close)

		p, err = proc.MakeBuilder().
			WithMemory(mem).
			WithFaultHandler(pager.NewDemandPager()).
			Build(1)
		Expect(err).ToNot(HaveOccurred())
		Expect(p.LoadImage(1, 1)).To(Succeed())
		base = p.Grow(8 * vm.PageSize)

		mmu = MakeBuilder().Build("MMU")
	})

	It("should fault in a page on first store and mark it dirty", func() {
		err := mmu.StoreUint32(p, base+0x10, 0xdeadbeef)

		Expect(err).ToNot(HaveOccurred())
		Expect(mmu.NumFaults()).To(Equal(uint64(1)))
		Expect(leaf(base).Dirty()).To(BeTrue())
		Expect(leaf(base).Accessed()).To(BeTrue())

		v, err := mmu.LoadUint32(p, base+0x10)
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(uint32(0xdeadbeef)))
		Expect(mmu.NumFaults()).To(Equal(uint64(1)))
	})

	It("should only mark loads as accessed", func() {
		v, err := mmu.LoadUint64(p, base+vm.PageSize)

		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(BeZero())
		Expect(leaf(base + vm.PageSize).Accessed()).To(BeTrue())
		Expect(leaf(base + vm.PageSize).Dirty()).To(BeFalse())
	})

	It("should split accesses that cross pages", func() {
		err := mmu.Store(p, base+vm.PageSize-2, []byte{1, 2, 3, 4})

		Expect(err).ToNot(HaveOccurred())
		Expect(mmu.NumFaults()).To(Equal(uint64(2)))
		Expect(leaf(base).Dirty()).To(BeTrue())
		Expect(leaf(base + vm.PageSize).Dirty()).To(BeTrue())

		buf := make([]byte, 4)
		Expect(mmu.Load(p, base+vm.PageSize-2, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should surface segmentation faults", func() {
		err := mmu.StoreUint32(p, p.Size()+0x100, 1)

		var faultErr *PageFaultError
		Expect(errors.As(err, &faultErr)).To(BeTrue())
		Expect(faultErr.VAddr).To(Equal(p.Size() + 0x100))
		Expect(faultErr.Kind).To(Equal(proc.AccessStore))
		Expect(err).To(MatchError(pager.ErrSegFault))
	})

	It("should fault on the guard page", func() {
		_, err := mmu.LoadUint32(p, vm.PageSize)

		Expect(err).To(MatchError(pager.ErrSegFault))
	})

	It("should fault on stores to read-only pages", func() {
		pte, found := vm.Lookup(mem, p.Root(), 0)
		Expect(found).To(BeTrue())
		pte.ClearFlags(vm.FlagWrite)

		err := mmu.StoreUint32(p, 0, 1)

		Expect(err).To(MatchError(pager.ErrSegFault))
		Expect(pte.Dirty()).To(BeFalse())
	})

	It("should count loads and stores", func() {
		Expect(mmu.StoreUint32(p, base, 1)).To(Succeed())
		_, err := mmu.LoadUint32(p, base)
		Expect(err).ToNot(HaveOccurred())

		Expect(mmu.NumStores()).To(Equal(uint64(1)))
		Expect(mmu.NumLoads()).To(Equal(uint64(1)))
	})

	It("should trace accesses when hooked", func() {
		counter := hooking.NewPosCounter()
		mmu.AcceptHook(counter)

		Expect(mmu.StoreUint32(p, base, 1)).To(Succeed())

		Expect(counter.Counts()).To(HaveKeyWithValue(HookPosAccess.Name, uint64(1)))
	})

	Context("with a fault handler that does nothing", func() {
		var (
			mockCtrl *gomock.Controller
			handler  *MockFaultHandler
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			handler = NewMockFaultHandler(mockCtrl)
			p.SetFaultHandler(handler)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should give up after the configured retries", func() {
			mmu = MakeBuilder().WithMaxFaultRetries(2).Build("MMU")
			handler.EXPECT().
				HandleFault(p, base, proc.AccessLoad).
				Return(nil).
				Times(2)

			_, err := mmu.LoadUint32(p, base)

			Expect(err).To(MatchError(ErrUnresolvedFault))
			Expect(mmu.NumFaults()).To(Equal(uint64(2)))
		})
	})

	It("should refuse to build without retries", func() {
		Expect(func() { MakeBuilder().WithMaxFaultRetries(0).Build("MMU") }).
			To(Panic())
	})
})
