package scheduler

import (
	"context"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pagesim/mem/vm"
)

var _ = Describe("Tracker", func() {
	var tracker *Tracker

	BeforeEach(func() {
		tracker = NewTracker("Scheduler", nil,
			log.New(GinkgoWriter, "", 0))
	})

	It("should count readiness notifications", func() {
		tracker.NotifyReady(1)
		tracker.NotifyReady(0)
		tracker.NotifyReady(1)

		Expect(tracker.ReadyCounts()).To(Equal([]ReadyCount{
			{PID: 0, Ready: 1},
			{PID: 1, Ready: 2},
		}))
	})

	It("should admit everyone by default", func() {
		for pid := vm.PID(0); pid < 10; pid++ {
			Expect(tracker.Admit(context.Background(), pid)).To(Succeed())
		}
	})

	It("should run until terminated", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		go func() {
			tracker.Run(ctx)
			close(done)
		}()

		Eventually(tracker.Running).Should(BeTrue())
		Consistently(done, 20*time.Millisecond).ShouldNot(BeClosed())

		cancel()

		Eventually(done).Should(BeClosed())
		Expect(tracker.Running()).To(BeFalse())
	})
})

var _ = Describe("MaxActivePolicy", func() {
	var policy *MaxActivePolicy

	BeforeEach(func() {
		policy = NewMaxActivePolicy(2)
	})

	It("should admit up to the limit", func() {
		Expect(policy.Admit(context.Background(), 0)).To(Succeed())
		Expect(policy.Admit(context.Background(), 1)).To(Succeed())
		Expect(policy.NumActive()).To(Equal(2))
	})

	It("should block beyond the limit until a slot frees", func() {
		Expect(policy.Admit(context.Background(), 0)).To(Succeed())
		Expect(policy.Admit(context.Background(), 1)).To(Succeed())

		admitted := make(chan error, 1)
		go func() {
			admitted <- policy.Admit(context.Background(), 2)
		}()

		Consistently(admitted, 20*time.Millisecond).ShouldNot(Receive())

		policy.Release(0)

		Eventually(admitted).Should(Receive(BeNil()))
		Expect(policy.NumActive()).To(Equal(2))
	})

	It("should give up waiting when the context is done", func() {
		Expect(policy.Admit(context.Background(), 0)).To(Succeed())
		Expect(policy.Admit(context.Background(), 1)).To(Succeed())

		ctx, cancel := context.WithTimeout(
			context.Background(), 10*time.Millisecond)
		defer cancel()

		Expect(policy.Admit(ctx, 2)).To(MatchError(context.DeadlineExceeded))
	})

	It("should ignore releases of processes that were not admitted", func() {
		policy.Release(5)

		Expect(policy.NumActive()).To(BeZero())
	})

	It("should be usable through the tracker", func() {
		tracker := NewTracker("Scheduler", policy,
			log.New(GinkgoWriter, "", 0))

		Expect(tracker.Admit(context.Background(), 3)).To(Succeed())
		Expect(policy.NumActive()).To(Equal(1))

		tracker.Release(3)
		Expect(policy.NumActive()).To(BeZero())
	})
})
