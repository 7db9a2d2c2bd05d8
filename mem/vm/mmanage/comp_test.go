package mmanage

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

func pageOf(v int32) []int32 {
	data := make([]int32, 8)
	for i := range data {
		data[i] = v
	}

	return data
}

var _ = Describe("Builder", func() {
	It("should record the settings in the region", func() {
		region, _ := vm.NewRegion("R", vm.DefaultGeometry())

		c := MakeBuilder().
			WithRegion(region).
			WithBackingStore(pagefile.NewMemoryStore(pagefile.Layout{
				NumPages: 128,
				PageSize: 8,
			}, 1)).
			WithAlgorithm(vm.Clock).
			WithAgeInterval(7).
			Build("MManage")

		Expect(c.Name()).To(Equal("MManage"))
		Expect(region.Adm.Algorithm).To(Equal(vm.Clock))
		Expect(region.Adm.AgeInterval).To(Equal(uint64(7)))
		Expect(region.Adm.ManagerID).To(HavePrefix("MManage."))
	})

	It("should panic without a backing store", func() {
		region, _ := vm.NewRegion("R", vm.DefaultGeometry())

		Expect(func() {
			MakeBuilder().WithRegion(region).Build("MManage")
		}).To(Panic())
	})
})

var _ = Describe("Comp", func() {
	var (
		mockCtrl     *gomock.Controller
		backingStore *MockBackingStore
		registry     *vm.Registry
		region       *vm.Region
		c            *Comp
		events       []vm.FaultEvent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		backingStore = NewMockBackingStore(mockCtrl)
		registry = vm.NewRegistry()
		region, _ = registry.Create("R", vm.Geometry{
			PageSize:     8,
			VirtualSize:  32,
			PhysicalSize: 16,
		})

		c = MakeBuilder().
			WithRegistry(registry).
			WithRegion(region).
			WithBackingStore(backingStore).
			Build("MManage")

		events = nil
		c.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == vm.HookPosPageFault {
				events = append(events, ctx.Item.(vm.FaultEvent))
			}
		}))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	Context("when a frame is free", func() {
		It("should load the page into the lowest free frame", func() {
			backingStore.EXPECT().Fetch(2).Return(pageOf(42), nil)

			err := c.handlePageFault(2)

			Expect(err).NotTo(HaveOccurred())
			entry := region.Table.Lookup(2)
			Expect(entry.Present).To(BeTrue())
			Expect(entry.Frame).To(Equal(0))
			Expect(entry.Dirty).To(BeFalse())
			Expect(region.FrameData(0)).To(Equal(pageOf(42)))
			Expect(region.Adm.FaultCount).To(Equal(uint64(1)))
			Expect(region.Adm.EvictionCount).To(BeZero())
			Expect(region.Adm.RequestedPage).To(Equal(2))
			Expect(events).To(HaveLen(1))
			Expect(events[0].AllocatedFrame).To(Equal(0))
			Expect(events[0].EvictedFrame).To(Equal(vm.NoFrame))
			Expect(events[0].EvictedPage).To(Equal(vm.NoPage))
		})
	})

	Context("when all frames are in use", func() {
		BeforeEach(func() {
			backingStore.EXPECT().Fetch(0).Return(pageOf(10), nil)
			backingStore.EXPECT().Fetch(1).Return(pageOf(11), nil)
			Expect(c.handlePageFault(0)).To(Succeed())
			Expect(c.handlePageFault(1)).To(Succeed())
		})

		It("should evict a clean page without writing it back", func() {
			backingStore.EXPECT().Fetch(2).Return(pageOf(12), nil)

			Expect(c.handlePageFault(2)).To(Succeed())

			Expect(region.Table.Lookup(0).Present).To(BeFalse())
			Expect(region.Table.Lookup(2).Frame).To(Equal(0))
			Expect(region.FrameData(0)).To(Equal(pageOf(12)))
			Expect(region.Adm.EvictionCount).To(Equal(uint64(1)))
			Expect(events[2].EvictedPage).To(Equal(0))
			Expect(events[2].EvictedFrame).To(Equal(0))
			Expect(events[2].WroteBack).To(BeFalse())
		})

		It("should write a dirty victim back before reusing the frame", func() {
			region.FrameData(0)[3] = 99
			region.Table.SetDirty(0)
			written := pageOf(10)
			written[3] = 99

			gomock.InOrder(
				backingStore.EXPECT().Store(0, written).Return(nil),
				backingStore.EXPECT().Fetch(2).Return(pageOf(12), nil),
			)

			Expect(c.handlePageFault(2)).To(Succeed())

			Expect(region.Table.Lookup(0).Dirty).To(BeFalse())
			Expect(events[2].WroteBack).To(BeTrue())
		})

		It("should follow FIFO order", func() {
			backingStore.EXPECT().Fetch(2).Return(pageOf(12), nil)
			backingStore.EXPECT().Fetch(3).Return(pageOf(13), nil)

			Expect(c.handlePageFault(2)).To(Succeed())
			Expect(c.handlePageFault(3)).To(Succeed())

			Expect(region.Table.PageInFrame(0)).To(Equal(2))
			Expect(region.Table.PageInFrame(1)).To(Equal(3))
			Expect(region.Adm.NextVictim).To(Equal(0))
			Expect(region.Adm.FaultCount).To(Equal(uint64(4)))
			Expect(region.Adm.EvictionCount).To(Equal(uint64(2)))
			Expect(region.Table.CheckInvariants()).To(Succeed())
		})

		It("should report a failed write-back", func() {
			region.Table.SetDirty(0)
			backingStore.EXPECT().Store(0, gomock.Any()).
				Return(errors.New("disk full"))

			err := c.handlePageFault(2)

			Expect(err).To(MatchError(ContainSubstring("disk full")))
		})
	})

	It("should not fetch a page that is already present", func() {
		backingStore.EXPECT().Fetch(1).Return(pageOf(1), nil).Times(1)

		Expect(c.handlePageFault(1)).To(Succeed())
		Expect(c.handlePageFault(1)).To(Succeed())

		Expect(region.Adm.FaultCount).To(Equal(uint64(1)))
	})

	It("should reject pages outside the address space", func() {
		err := c.handlePageFault(4)

		Expect(err).To(MatchError(ErrInvalidPage))
	})

	It("should reject short pages from the backing store", func() {
		backingStore.EXPECT().Fetch(0).Return([]int32{1, 2}, nil)

		err := c.handlePageFault(0)

		Expect(err).To(HaveOccurred())
		Expect(region.Table.Lookup(0).Present).To(BeFalse())
	})

	Context("when running", func() {
		var (
			ctx    context.Context
			cancel context.CancelFunc
			runErr chan error
		)

		BeforeEach(func() {
			ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
			runErr = make(chan error, 1)

			go func() { runErr <- c.Run(ctx) }()
		})

		AfterEach(func() {
			cancel()
		})

		It("should release the waiter once the page is loaded", func() {
			backingStore.EXPECT().Fetch(3).Return(pageOf(3), nil)

			completion, err := region.Channel().PostFault(3)
			Expect(err).NotTo(HaveOccurred())
			Expect(completion.Wait(ctx)).To(Succeed())

			region.Lock()
			Expect(region.Table.Lookup(3).Present).To(BeTrue())
			region.Unlock()

			Expect(region.Channel().PostTerminate()).To(Succeed())
			Eventually(runErr).Should(Receive(BeNil()))
		})

		It("should hand an invalid page error to the waiter and keep running", func() {
			completion, err := region.Channel().PostFault(17)
			Expect(err).NotTo(HaveOccurred())
			Expect(completion.Wait(ctx)).To(MatchError(ErrInvalidPage))

			Consistently(runErr, 50*time.Millisecond).ShouldNot(Receive())
			Expect(region.Channel().IsTerminated()).To(BeFalse())
		})

		It("should stop when the backing store fails", func() {
			backingStore.EXPECT().Fetch(0).Return(nil, errors.New("io error"))

			completion, err := region.Channel().PostFault(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(completion.Wait(ctx)).To(MatchError(ContainSubstring("io error")))

			Eventually(runErr).Should(Receive(MatchError(ContainSubstring("io error"))))
			Expect(region.Channel().IsTerminated()).To(BeTrue())
		})

		It("should dump the page table", func() {
			dumps := make(chan vm.RegionSnapshot, 1)
			c.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				if ctx.Pos == vm.HookPosPageTableDump {
					dumps <- ctx.Item.(vm.RegionSnapshot)
				}
			}))

			Expect(region.Channel().PostDump()).To(Succeed())

			var snapshot vm.RegionSnapshot
			Eventually(dumps).Should(Receive(&snapshot))
			Expect(snapshot.Key).To(Equal("R"))
			Expect(snapshot.PageTable.Entries).To(HaveLen(4))
		})

		It("should tear down the region on terminate", func() {
			Expect(region.Channel().PostTerminate()).To(Succeed())

			Eventually(runErr).Should(Receive(BeNil()))
			Expect(region.Channel().IsTerminated()).To(BeTrue())
			_, err := registry.Attach("R")
			Expect(err).To(MatchError(vm.ErrRegionNotFound))
		})

		It("should tear down the region when the context is done", func() {
			cancel()

			Eventually(runErr).Should(Receive(MatchError(context.Canceled)))
			Expect(region.Channel().IsTerminated()).To(BeTrue())
		})
	})
})
