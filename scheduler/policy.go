package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/sarchlab/pagesim/mem/vm"
)

// An AdmissionPolicy decides when processes may run and observes their
// readiness. It is the place to plug in real scheduling decisions without
// changing the MMU.
type AdmissionPolicy interface {
	// Admit blocks until the process may start or ctx is done.
	Admit(ctx context.Context, pid vm.PID) error

	// Release tells that the process no longer runs.
	Release(pid vm.PID)

	// OnReady is told that the process has a request pending.
	OnReady(pid vm.PID)
}

// PassThroughPolicy admits every process immediately.
type PassThroughPolicy struct{}

// Admit returns immediately.
func (PassThroughPolicy) Admit(ctx context.Context, _ vm.PID) error {
	return ctx.Err()
}

// Release does nothing.
func (PassThroughPolicy) Release(vm.PID) {}

// OnReady does nothing.
func (PassThroughPolicy) OnReady(vm.PID) {}

// MaxActivePolicy lets at most a fixed number of processes run at the same
// time. Processes that wait are admitted in no particular order.
type MaxActivePolicy struct {
	slots chan struct{}

	lock   sync.Mutex
	active map[vm.PID]bool
}

// NewMaxActivePolicy creates a policy that admits at most n processes at once.
func NewMaxActivePolicy(n int) *MaxActivePolicy {
	if n <= 0 {
		panic(fmt.Sprintf("max active processes must be positive, got %d", n))
	}

	return &MaxActivePolicy{
		slots:  make(chan struct{}, n),
		active: make(map[vm.PID]bool),
	}
}

// Admit waits for a free slot.
func (p *MaxActivePolicy) Admit(ctx context.Context, pid vm.PID) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	p.active[pid] = true

	return nil
}

// Release frees the slot of an admitted process.
func (p *MaxActivePolicy) Release(pid vm.PID) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.active[pid] {
		return
	}

	delete(p.active, pid)
	<-p.slots
}

// OnReady does nothing.
func (p *MaxActivePolicy) OnReady(vm.PID) {}

// NumActive returns the number of admitted processes.
func (p *MaxActivePolicy) NumActive() int {
	p.lock.Lock()
	defer p.lock.Unlock()

	return len(p.active)
}
