// Package scheduler provides the admission and readiness tracker that sits
// between the processes and the MMU.
package scheduler

import (
	"context"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// ReadyCount is the number of readiness notifications of one process.
type ReadyCount struct {
	PID   vm.PID `json:"pid"`
	Ready uint64 `json:"ready"`
}

// A Tracker watches the processes for the whole run. It forwards admission and
// readiness to its policy and waits for the termination signal.
type Tracker struct {
	sim.NamedBase

	policy AdmissionPolicy
	logger *log.Logger

	lock    sync.Mutex
	ready   map[vm.PID]uint64
	running bool
}

// NewTracker creates a tracker. A nil policy means PassThroughPolicy.
func NewTracker(
	name string,
	policy AdmissionPolicy,
	logger *log.Logger,
) *Tracker {
	if policy == nil {
		policy = PassThroughPolicy{}
	}

	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	return &Tracker{
		NamedBase: sim.MakeNamedBase(name),
		policy:    policy,
		logger:    logger,
		ready:     make(map[vm.PID]uint64),
	}
}

// Run blocks until ctx is done. Cancelling ctx is the termination signal.
func (t *Tracker) Run(ctx context.Context) {
	t.setRunning(true)
	t.logger.Printf("%s started.", t.Name())

	<-ctx.Done()

	t.setRunning(false)
	t.logger.Printf("%s terminating.", t.Name())
}

func (t *Tracker) setRunning(running bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.running = running
}

// Running tells if Run has started and not yet observed termination.
func (t *Tracker) Running() bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.running
}

// NotifyReady records that a process has a request pending.
func (t *Tracker) NotifyReady(pid vm.PID) {
	t.lock.Lock()
	t.ready[pid]++
	t.lock.Unlock()

	t.policy.OnReady(pid)
}

// Admit asks the policy whether the process may start.
func (t *Tracker) Admit(ctx context.Context, pid vm.PID) error {
	return t.policy.Admit(ctx, pid)
}

// Release tells the policy that the process has stopped.
func (t *Tracker) Release(pid vm.PID) {
	t.policy.Release(pid)
}

// ReadyCounts returns the readiness notifications per process.
func (t *Tracker) ReadyCounts() []ReadyCount {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.readyCountsLocked()
}

func (t *Tracker) readyCountsLocked() []ReadyCount {
	counts := make([]ReadyCount, 0, len(t.ready))
	for pid, n := range t.ready {
		counts = append(counts, ReadyCount{PID: pid, Ready: n})
	}

	sort.Slice(counts, func(i, j int) bool {
		return counts[i].PID < counts[j].PID
	})

	return counts
}

// TrackerState is a copy of a tracker.
type TrackerState struct {
	Name    string
	Running bool
	Ready   []ReadyCount
}

// Inspect returns a *TrackerState taken under the tracker lock.
func (t *Tracker) Inspect() any {
	t.lock.Lock()
	defer t.lock.Unlock()

	return &TrackerState{
		Name:    t.Name(),
		Running: t.running,
		Ready:   t.readyCountsLocked(),
	}
}
