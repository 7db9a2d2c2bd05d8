package vmaccess

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/pagefile"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/mmanage"
)

type fixture struct {
	registry *vm.Registry
	region   *vm.Region
	store    *pagefile.MemoryStore
	manager  *mmanage.Comp
	runErr   chan error
}

func startManager(
	ctx context.Context,
	g vm.Geometry,
	algorithm vm.Algorithm,
	ageInterval uint64,
) *fixture {
	f := &fixture{registry: vm.NewRegistry(), runErr: make(chan error, 1)}

	var err error
	f.region, err = f.registry.Create("R", g)
	Expect(err).NotTo(HaveOccurred())

	f.store = pagefile.NewMemoryStore(pagefile.Layout{
		NumPages: g.NumPages(),
		PageSize: g.PageSize,
	}, pagefile.DefaultSeed)

	f.manager = mmanage.MakeBuilder().
		WithRegistry(f.registry).
		WithRegion(f.region).
		WithBackingStore(f.store).
		WithAlgorithm(algorithm).
		WithAgeInterval(ageInterval).
		Build("MManage")

	go func() { f.runErr <- f.manager.Run(ctx) }()

	return f
}

var smallGeometry = vm.Geometry{
	PageSize:     8,
	VirtualSize:  32,
	PhysicalSize: 16,
}

var _ = Describe("Comp", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		f      *fixture
		c      *Comp
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	})

	AfterEach(func() {
		cancel()
	})

	Context("with FIFO replacement", func() {
		BeforeEach(func() {
			f = startManager(ctx, smallGeometry, vm.FIFO, vm.DefaultAgeInterval)

			var err error
			c, err = MakeBuilder().Attach(f.registry, "R", "VMAccess")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should read what was written", func() {
			Expect(c.Write(ctx, 13, 77)).To(Succeed())

			value, err := c.Read(ctx, 13)

			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(int32(77)))
		})

		It("should read the initial content of the backing store", func() {
			want, _ := f.store.Fetch(2)

			value, err := c.Read(ctx, 2*8+5)

			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(want[5]))
		})

		It("should keep values across evictions", func() {
			Expect(c.Write(ctx, 3, -5)).To(Succeed())

			for _, addr := range []int{8, 16, 24} {
				_, err := c.Read(ctx, addr)
				Expect(err).NotTo(HaveOccurred())
			}

			f.region.Lock()
			Expect(f.region.Table.Lookup(0).Present).To(BeFalse())
			f.region.Unlock()
			Expect(f.store.NumStores()).To(Equal(1))

			value, err := c.Read(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(int32(-5)))
		})

		It("should fault only once for repeated reads", func() {
			first, err := c.Read(ctx, 9)
			Expect(err).NotTo(HaveOccurred())
			before := f.region.Snapshot().PageTable.Entries[1]

			for i := 0; i < 3; i++ {
				value, err := c.Read(ctx, 9)
				Expect(err).NotTo(HaveOccurred())
				Expect(value).To(Equal(first))
			}

			snapshot := f.region.Snapshot()
			after := snapshot.PageTable.Entries[1]
			Expect(snapshot.Adm.FaultCount).To(Equal(uint64(1)))
			Expect(snapshot.Adm.AccessCount).To(Equal(uint64(4)))
			Expect(after.Present).To(BeTrue())
			Expect(after.Frame).To(Equal(before.Frame))
			Expect(after.Dirty).To(BeFalse())
			Expect(after.Dirty).To(Equal(before.Dirty))
			Expect(after.Referenced).To(BeTrue())
			Expect(after.Referenced).To(Equal(before.Referenced))
		})

		It("should set the referenced and dirty flags", func() {
			_, err := c.Read(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Write(ctx, 8, 1)).To(Succeed())

			snapshot := f.region.Snapshot()
			Expect(snapshot.PageTable.Entries[0].Referenced).To(BeTrue())
			Expect(snapshot.PageTable.Entries[0].Dirty).To(BeFalse())
			Expect(snapshot.PageTable.Entries[1].Dirty).To(BeTrue())
		})

		It("should reject invalid addresses", func() {
			_, err := c.Read(ctx, -1)
			Expect(err).To(MatchError(ErrInvalidAddress))

			err = c.Write(ctx, 32, 0)
			Expect(err).To(MatchError(ErrInvalidAddress))

			Expect(f.region.Snapshot().Adm.AccessCount).To(BeZero())
		})

		It("should report a terminated manager", func() {
			Expect(f.region.Channel().PostTerminate()).To(Succeed())
			Eventually(f.runErr).Should(Receive(BeNil()))

			_, err := c.Read(ctx, 0)

			Expect(err).To(MatchError(vm.ErrTerminated))
		})

		It("should serve concurrent callers", func() {
			var wg sync.WaitGroup
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()

					for page := 0; page < 4; page++ {
						addr := page*8 + i
						Expect(c.Write(ctx, addr, int32(addr*10))).To(Succeed())
					}
				}(i)
			}
			wg.Wait()

			for page := 0; page < 4; page++ {
				for i := 0; i < 4; i++ {
					addr := page*8 + i
					value, err := c.Read(ctx, addr)
					Expect(err).NotTo(HaveOccurred())
					Expect(value).To(Equal(int32(addr * 10)))
				}
			}

			f.region.Lock()
			defer f.region.Unlock()
			Expect(f.region.Table.CheckInvariants()).To(Succeed())
		})
	})

	Context("with two translators on one region", func() {
		It("should let both make progress", func() {
			f = startManager(ctx, smallGeometry, vm.Clock, vm.DefaultAgeInterval)
			a := MakeBuilder().WithRegion(f.region).Build("A")
			b := MakeBuilder().WithRegion(f.region).Build("B")

			var wg sync.WaitGroup
			for _, t := range []*Comp{a, b} {
				wg.Add(1)
				go func(t *Comp) {
					defer GinkgoRecover()
					defer wg.Done()

					for i := 0; i < 64; i++ {
						_, err := t.Read(ctx, (i*7)%32)
						Expect(err).NotTo(HaveOccurred())
					}
				}(t)
			}
			wg.Wait()

			Expect(f.region.Snapshot().Adm.AccessCount).To(Equal(uint64(128)))
		})
	})

	Context("with aging replacement", func() {
		It("should refresh the ages every interval", func() {
			f = startManager(ctx, smallGeometry, vm.Aging, 2)
			c = MakeBuilder().WithRegion(f.region).Build("VMAccess")

			_, err := c.Read(ctx, 0)
			Expect(err).NotTo(HaveOccurred())

			entry := f.region.Snapshot().PageTable.Entries[0]
			Expect(entry.Referenced).To(BeTrue())
			Expect(entry.Age).To(BeZero())

			_, err = c.Read(ctx, 1)
			Expect(err).NotTo(HaveOccurred())

			entry = f.region.Snapshot().PageTable.Entries[0]
			Expect(entry.Referenced).To(BeFalse())
			Expect(entry.Age).To(Equal(uint8(0x80)))
		})
	})

	Context("without a manager", func() {
		It("should time out", func() {
			region, _ := vm.NewRegion("Orphan", smallGeometry)
			c = MakeBuilder().
				WithRegion(region).
				WithFaultTimeout(20 * time.Millisecond).
				Build("VMAccess")

			_, err := c.Read(ctx, 0)

			Expect(err).To(MatchError(ErrFaultTimeout))
		})
	})

	It("should refuse a poll interval that is not positive", func() {
		region, _ := vm.NewRegion("Orphan", smallGeometry)

		for _, d := range []time.Duration{0, -time.Millisecond} {
			Expect(func() {
				MakeBuilder().
					WithRegion(region).
					WithPollInterval(d).
					Build("VMAccess")
			}).To(Panic())
		}
	})

	It("should fail to attach to an unknown region", func() {
		_, err := MakeBuilder().Attach(vm.NewRegistry(), "None", "VMAccess")

		Expect(err).To(MatchError(vm.ErrRegionNotFound))
	})
})
