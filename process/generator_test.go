package process

import (
	"context"
	"errors"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

type recordingNotifier struct {
	ready []vm.PID
}

func (n *recordingNotifier) NotifyReady(pid vm.PID) {
	n.ready = append(n.ready, pid)
}

type countingProgress struct {
	issued uint64
}

func (p *countingProgress) IncrementInProgress(amount uint64) {
	p.issued += amount
}

type rejectingAdmitter struct{}

func (rejectingAdmitter) Admit(context.Context, vm.PID) error {
	return errors.New("rejected")
}

func (rejectingAdmitter) Release(vm.PID) {}

func drain(b sim.Buffer) []vm.Msg {
	var msgs []vm.Msg
	for {
		item, ok := b.TryPop()
		if !ok {
			return msgs
		}

		msgs = append(msgs, item.(vm.Msg))
	}
}

var _ = Describe("Generator", func() {
	var (
		output  sim.Buffer
		builder Builder
	)

	BeforeEach(func() {
		output = sim.NewBuffer("Requests")
		builder = MakeBuilder().
			WithPID(2).
			WithLength(20).
			WithPageRange(6).
			WithSeed(42).
			WithThinkTime(0, 0).
			WithOutput(output).
			WithLogger(log.New(GinkgoWriter, "", 0))
	})

	It("should draw the reference string within the page range", func() {
		g := builder.Build("Process[2]")

		refs := g.References()
		Expect(refs).To(HaveLen(20))
		for _, page := range refs {
			Expect(page).To(BeNumerically("<", 6))
		}
	})

	It("should draw the same references for the same seed", func() {
		g1 := builder.Build("Process[2]")
		g2 := builder.Build("Process[2]")
		g3 := builder.WithSeed(7).Build("Process[2]")

		Expect(g1.References()).To(Equal(g2.References()))
		Expect(g1.References()).NotTo(Equal(g3.References()))
	})

	It("should expose the references without building a generator", func() {
		g := builder.Build("Process[2]")

		Expect(ReferencesFor(42, 2, 20, 6)).To(Equal(g.References()))
	})

	It("should draw different references for different processes", func() {
		g1 := builder.Build("Process[2]")
		g2 := builder.WithPID(3).Build("Process[3]")

		Expect(g1.References()).NotTo(Equal(g2.References()))
	})

	It("should send every reference in order and then complete", func() {
		notifier := &recordingNotifier{}
		progress := &countingProgress{}
		g := builder.
			WithReferences([]uint64{3, 1, 3}).
			WithNotifier(notifier).
			WithProgress(progress).
			Build("Process[2]")

		Expect(g.Run(context.Background())).To(Succeed())

		msgs := drain(output)
		Expect(msgs).To(HaveLen(4))
		for i, page := range []uint64{3, 1, 3} {
			req := msgs[i].(*vm.PageAccessReq)
			Expect(req.PID).To(Equal(vm.PID(2)))
			Expect(req.PageNum).To(Equal(page))
		}
		Expect(msgs[3]).To(BeAssignableToTypeOf(&vm.ProcessCompletedMsg{}))
		Expect(msgs[3].Meta().PID).To(Equal(vm.PID(2)))

		Expect(notifier.ready).To(Equal([]vm.PID{2, 2, 2}))
		Expect(progress.issued).To(Equal(uint64(3)))
		Expect(g.State()).To(Equal(Finished))
	})

	It("should complete an empty reference string", func() {
		g := builder.WithLength(0).Build("Process[2]")

		Expect(g.Run(context.Background())).To(Succeed())

		msgs := drain(output)
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0]).To(BeAssignableToTypeOf(&vm.ProcessCompletedMsg{}))
	})

	It("should hand out a copy of its state", func() {
		g := builder.WithLength(0).Build("Process[2]")

		before := g.Inspect().(*GeneratorState)
		Expect(g.Run(context.Background())).To(Succeed())
		after := g.Inspect().(*GeneratorState)

		Expect(before.State).To(Equal("running"))
		Expect(after.State).To(Equal("finished"))
		Expect(after.PID).To(Equal(vm.PID(2)))
		Expect(after.Name).To(Equal("Process[2]"))
	})

	It("should stop thinking when cancelled and still complete", func() {
		g := builder.
			WithThinkTime(time.Hour, 0).
			Build("Process[2]")
		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := g.Run(ctx)

		Expect(err).To(MatchError(context.Canceled))
		msgs := drain(output)
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1]).To(BeAssignableToTypeOf(&vm.ProcessCompletedMsg{}))
	})

	It("should not send requests if not admitted", func() {
		g := builder.WithAdmitter(rejectingAdmitter{}).Build("Process[2]")

		Expect(g.Run(context.Background())).NotTo(Succeed())

		msgs := drain(output)
		Expect(msgs).To(HaveLen(1))
		Expect(g.State()).To(Equal(Finished))
	})

	It("should panic without an output", func() {
		Expect(func() {
			MakeBuilder().Build("Process[0]")
		}).To(Panic())
	})
})
