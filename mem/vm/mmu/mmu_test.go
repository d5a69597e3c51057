package mmu

import (
	"context"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/replacement"
	"github.com/sarchlab/pagesim/sim"
	"go.uber.org/mock/gomock"
)

func access(pid vm.PID, page uint64) *vm.PageAccessReq {
	return vm.PageAccessReqBuilder{}.
		WithPID(pid).
		WithPageNum(page).
		Build()
}

func completed(pid vm.PID) *vm.ProcessCompletedMsg {
	return vm.ProcessCompletedMsgBuilder{}.WithPID(pid).Build()
}

func eventsOfKind(events []Event, kind EventKind) []Event {
	var selected []Event
	for _, e := range events {
		if e.Kind == kind {
			selected = append(selected, e)
		}
	}

	return selected
}

var _ = Describe("MMU", func() {
	var (
		builder Builder
		mmu     *Comp
		events  []Event
	)

	build := func() {
		mmu = builder.Build("MMU")
		events = nil
		mmu.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			events = append(events, ctx.Detail.(Event))
		}))
	}

	handleAll := func(msgs ...vm.Msg) {
		for _, msg := range msgs {
			Expect(mmu.Handle(msg)).To(Succeed())
		}
	}

	BeforeEach(func() {
		builder = MakeBuilder().
			WithNumFrames(2).
			WithPageRange(8).
			WithProcesses(0, 1).
			WithInvariantChecking(true).
			WithLogger(log.New(GinkgoWriter, "", 0))
		build()
	})

	It("should fault and evict the least recently used page", func() {
		handleAll(access(0, 0), access(0, 1), access(0, 2), access(0, 0))

		stats := mmu.Stats()
		Expect(stats.Faults).To(Equal(uint64(4)))
		Expect(stats.Hits).To(Equal(uint64(0)))
		Expect(stats.Evictions).To(Equal(uint64(2)))

		evictions := eventsOfKind(events, EventEvict)
		Expect(evictions).To(HaveLen(2))
		Expect(evictions[0].VictimPage).To(Equal(uint64(0)))
		Expect(evictions[0].Frame).To(Equal(0))
		Expect(evictions[1].VictimPage).To(Equal(uint64(1)))
		Expect(evictions[1].Frame).To(Equal(1))

		Expect(mmu.Snapshot().PageTables[0]).To(Equal([]vm.Page{
			{PID: 0, PageNum: 2, Frame: 0},
			{PID: 0, PageNum: 0, Frame: 1},
		}))
	})

	It("should refresh recency on hits", func() {
		handleAll(access(0, 0), access(0, 1), access(0, 0), access(0, 2))

		evictions := eventsOfKind(events, EventEvict)
		Expect(evictions).To(HaveLen(1))
		Expect(evictions[0].VictimPage).To(Equal(uint64(1)))
		Expect(mmu.Stats().Hits).To(Equal(uint64(1)))
	})

	It("should keep the frame of a page on repeated hits", func() {
		handleAll(access(0, 3), access(0, 5))

		for i := 0; i < 5; i++ {
			handleAll(access(0, 3))
		}

		for _, hit := range eventsOfKind(events, EventHit) {
			Expect(hit.Frame).To(Equal(0))
		}
		Expect(mmu.Stats().Faults).To(Equal(uint64(2)))
		Expect(mmu.Stats().Hits).To(Equal(uint64(5)))
		Expect(mmu.Snapshot().EvictionOrder).To(Equal([]int{1, 0}))
	})

	It("should take the lowest free frame", func() {
		handleAll(access(1, 7), access(0, 7))

		faults := eventsOfKind(events, EventFault)
		Expect(faults[0].Frame).To(Equal(0))
		Expect(faults[1].Frame).To(Equal(1))
		Expect(faults[1].Evicted).To(BeFalse())
	})

	It("should keep processes' pages apart", func() {
		handleAll(access(0, 4), access(1, 4))

		Expect(mmu.Stats().Faults).To(Equal(uint64(2)))
	})

	It("should evict pages of other processes", func() {
		handleAll(access(0, 1), access(1, 1), access(1, 2))

		evict := eventsOfKind(events, EventEvict)[0]
		Expect(evict.VictimPID).To(Equal(vm.PID(0)))
		Expect(evict.VictimPage).To(Equal(uint64(1)))
		Expect(evict.PID).To(Equal(vm.PID(1)))

		_, found := mmu.pageTable.Find(0, 1)
		Expect(found).To(BeFalse())

		stats := mmu.Stats()
		Expect(stats.Processes[0].Evicted).To(Equal(uint64(1)))
	})

	It("should emit the eviction before the fault it serves", func() {
		handleAll(access(0, 0), access(0, 1))
		events = nil

		handleAll(access(0, 2))

		Expect(events).To(HaveLen(3))
		Expect(events[0].Kind).To(Equal(EventRequest))
		Expect(events[1].Kind).To(Equal(EventEvict))
		Expect(events[2].Kind).To(Equal(EventFault))
		Expect(events[2].Evicted).To(BeTrue())
		Expect(events[2].VictimPage).To(Equal(uint64(0)))
		Expect(events[2].NumOwned).To(Equal(2))
		Expect(events[2].NumFree).To(Equal(0))
		Expect(events[2].Seq).To(BeNumerically(">", events[1].Seq))
	})

	Context("when processes share four frames", func() {
		BeforeEach(func() {
			builder = builder.WithNumFrames(4)
			build()
		})

		checkTrace := func() {
			Expect(mmu.Stats().Faults).To(Equal(uint64(8)))
			Expect(mmu.Stats().Evictions).To(Equal(uint64(4)))
			for _, e := range events {
				Expect(e.NumOwned).To(BeNumerically("<=", 4))
				Expect(e.NumOwned + e.NumFree).To(Equal(4))
			}
		}

		It("should fault once per distinct page when run one by one", func() {
			for page := uint64(0); page < 4; page++ {
				handleAll(access(0, page))
			}
			Expect(mmu.Stats().Evictions).To(BeZero())

			for page := uint64(4); page < 8; page++ {
				handleAll(access(1, page))
			}

			checkTrace()
		})

		It("should fault once per distinct page when interleaved", func() {
			for i := uint64(0); i < 4; i++ {
				handleAll(access(0, i), access(1, i+4))
			}

			checkTrace()
		})
	})

	It("should not change any state on completion", func() {
		handleAll(access(0, 0), access(0, 1))
		before := mmu.Snapshot()

		handleAll(completed(0))

		Expect(mmu.Snapshot()).To(Equal(before))
		Expect(mmu.Finished(0)).To(BeTrue())
		Expect(mmu.Finished(1)).To(BeFalse())
		Expect(mmu.Stats().Completed).To(Equal(uint64(1)))
		Expect(events[len(events)-1].Kind).To(Equal(EventComplete))
	})

	It("should drop requests from unknown processes", func() {
		handleAll(access(9, 0), completed(9))

		stats := mmu.Stats()
		Expect(stats.Dropped).To(Equal(uint64(2)))
		Expect(stats.Requests).To(BeZero())
		Expect(mmu.Snapshot().NumResident()).To(BeZero())
		Expect(events[0].Kind).To(Equal(EventDrop))
		Expect(events[0].Reason).To(Equal("unknown process"))
	})

	It("should drop requests for pages out of range", func() {
		handleAll(access(0, 8))

		Expect(mmu.Stats().Dropped).To(Equal(uint64(1)))
		Expect(mmu.Stats().Faults).To(BeZero())
		Expect(events).To(HaveLen(1))
		Expect(events[0].Reason).To(Equal("page out of range"))
	})

	It("should drop nil messages", func() {
		var req *vm.PageAccessReq
		var done *vm.ProcessCompletedMsg

		handleAll(req, done, nil)

		stats := mmu.Stats()
		Expect(stats.Dropped).To(Equal(uint64(3)))
		Expect(stats.Requests).To(BeZero())
		Expect(events).To(HaveLen(3))
		for _, e := range events {
			Expect(e.Kind).To(Equal(EventDrop))
			Expect(e.Reason).To(Equal("nil message"))
		}
	})

	It("should accept processes registered later", func() {
		mmu.RegisterProcess(7)

		handleAll(access(7, 0))

		Expect(mmu.Stats().Faults).To(Equal(uint64(1)))
	})

	It("should report broken invariants with the last consistent state", func() {
		handleAll(access(0, 0))
		mmu.victimFinder.Remove(0)

		err := mmu.Handle(completed(0))

		Expect(err).To(HaveOccurred())
		violation, ok := err.(*InvariantViolation)
		Expect(ok).To(BeTrue())
		Expect(violation.Invariant).To(Equal("frame accounting"))
		Expect(violation.LastConsistent).NotTo(BeNil())
		Expect(violation.LastConsistent.NumResident()).To(Equal(1))
		Expect(violation.LastConsistent.EvictionOrder).To(Equal([]int{0}))
	})

	It("should detect page tables that disagree with the frame table", func() {
		handleAll(access(0, 0))
		mmu.pageTable.Remove(0, 0)
		mmu.pageTable.Insert(vm.Page{PID: 0, PageNum: 0, Frame: 1})

		err := mmu.Handle(completed(1))

		Expect(err).To(BeAssignableToTypeOf(&InvariantViolation{}))
	})

	Context("with the fifo policy", func() {
		BeforeEach(func() {
			builder = builder.WithPolicy("fifo")
			build()
		})

		It("should evict the earliest loaded page despite hits", func() {
			handleAll(access(0, 0), access(0, 1), access(0, 0), access(0, 2))

			evict := eventsOfKind(events, EventEvict)[0]
			Expect(evict.VictimPage).To(Equal(uint64(0)))
		})
	})

	Context("when running", func() {
		It("should drain the buffer after it is closed", func() {
			requests := mmu.Requests()
			requests.Push(access(0, 0))
			requests.Push(access(1, 0))
			requests.Push(completed(0))
			requests.Close()

			err := mmu.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(mmu.Stats().Faults).To(Equal(uint64(2)))
			Expect(mmu.Finished(0)).To(BeTrue())
		})

		It("should keep running after a nil message", func() {
			var req *vm.PageAccessReq
			requests := mmu.Requests()
			requests.Push(req)
			requests.Push(nil)
			requests.Push(access(0, 0))
			requests.Close()

			err := mmu.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(mmu.Stats().Dropped).To(Equal(uint64(2)))
			Expect(mmu.Stats().Faults).To(Equal(uint64(1)))
		})

		It("should stop when the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(
				context.Background(), 10*time.Millisecond)
			defer cancel()

			err := mmu.Run(ctx)

			Expect(err).To(MatchError(context.DeadlineExceeded))
		})

		It("should leave queued requests once cancelled", func() {
			requests := mmu.Requests()
			requests.Push(access(0, 0))
			requests.Push(access(0, 1))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := mmu.Run(ctx)

			Expect(err).To(MatchError(context.Canceled))
			Expect(mmu.Stats().Requests).To(BeZero())
			Expect(requests.Size()).To(Equal(2))
		})

		It("should stop on an invariant violation", func() {
			handleAll(access(0, 0))
			mmu.victimFinder.Remove(0)
			mmu.Requests().Push(completed(0))
			mmu.Requests().Close()

			err := mmu.Run(context.Background())

			Expect(err).To(BeAssignableToTypeOf(&InvariantViolation{}))
		})
	})
})

var _ = Describe("MMU with mocked collaborators", func() {
	var (
		mockCtrl  *gomock.Controller
		pageTable *MockPageTable
		hook      *MockHook
		vf        *replacement.LRUVictimFinder
		mmu       *Comp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		pageTable = NewMockPageTable(mockCtrl)
		hook = NewMockHook(mockCtrl)
		vf = replacement.NewLRUVictimFinder()

		mmu = MakeBuilder().
			WithPageTable(pageTable).
			WithVictimFinder(vf).
			WithProcesses(1).
			WithLogger(log.New(GinkgoWriter, "", 0)).
			Build("MMU")
		mmu.AcceptHook(hook)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should only touch the eviction order on a hit", func() {
		vf.Load(0)
		vf.Load(2)
		pageTable.EXPECT().
			Find(vm.PID(1), uint64(3)).
			Return(vm.Page{PID: 1, PageNum: 3, Frame: 0}, true)

		gomock.InOrder(
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosReqReceived))
			}),
			hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosPageHit))
				Expect(ctx.Detail.(Event).Frame).To(Equal(0))
			}),
		)

		Expect(mmu.Handle(access(1, 3))).To(Succeed())

		Expect(vf.Order()).To(Equal([]int{2, 0}))
	})

	It("should insert the page on a fault", func() {
		pageTable.EXPECT().
			Find(vm.PID(1), uint64(3)).
			Return(vm.Page{}, false)
		pageTable.EXPECT().
			Insert(vm.Page{PID: 1, PageNum: 3, Frame: 0})
		hook.EXPECT().Func(gomock.Any()).Times(2)

		Expect(mmu.Handle(access(1, 3))).To(Succeed())

		Expect(vf.Order()).To(Equal([]int{0}))
	})

	It("should not consult the page table for dropped requests", func() {
		hook.EXPECT().Func(gomock.Any()).Do(func(ctx sim.HookCtx) {
			Expect(ctx.Pos).To(Equal(HookPosReqDropped))
		})

		Expect(mmu.Handle(access(2, 3))).To(Succeed())
	})
})
