// Package process models the simulated processes. Each process owns a fixed
// reference string and replays it against the MMU.
package process

import (
	"context"
	"log"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// State is the completion state of a process.
type State int

// A process is running until it has sent its completion marker.
const (
	Running State = iota
	Finished
)

func (s State) String() string {
	if s == Finished {
		return "finished"
	}

	return "running"
}

// ReadinessNotifier is told every time a process has a request ready.
type ReadinessNotifier interface {
	NotifyReady(pid vm.PID)
}

// Admitter decides when a process may start sending requests.
type Admitter interface {
	Admit(ctx context.Context, pid vm.PID) error
	Release(pid vm.PID)
}

// Progress is told how many references a process has issued and not yet had
// handled.
type Progress interface {
	IncrementInProgress(amount uint64)
}

// A Generator is a simulated process. It pushes one page access request for
// every page of its reference string, waiting a random think time after each
// one, and then pushes a completion marker.
type Generator struct {
	sim.NamedBase

	pid        vm.PID
	references []uint64
	thinkBase  time.Duration
	thinkRange time.Duration
	rng        *rand.Rand

	output   sim.Buffer
	notifier ReadinessNotifier
	admitter Admitter
	progress Progress
	logger   *log.Logger

	state atomic.Int32
}

// PID returns the process ID.
func (g *Generator) PID() vm.PID {
	return g.pid
}

// References returns a copy of the reference string.
func (g *Generator) References() []uint64 {
	return append([]uint64(nil), g.references...)
}

// State returns whether the generator has finished.
func (g *Generator) State() State {
	return State(g.state.Load())
}

// GeneratorState is a copy of a generator.
type GeneratorState struct {
	Name       string
	PID        vm.PID
	References []uint64
	State      string
}

// Inspect returns a *GeneratorState.
func (g *Generator) Inspect() any {
	return &GeneratorState{
		Name:       g.Name(),
		PID:        g.pid,
		References: g.References(),
		State:      g.State().String(),
	}
}

// Run issues the whole reference string and the completion marker. It returns
// early with ctx.Err() if ctx is done, but still sends the completion marker
// so that the MMU learns that the process has ended.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Printf("Process %d created, refs: %v", g.pid, g.references)

	if err := g.admitter.Admit(ctx, g.pid); err != nil {
		g.complete()
		return err
	}
	defer g.admitter.Release(g.pid)

	var err error
	for _, page := range g.references {
		g.notifier.NotifyReady(g.pid)

		if g.progress != nil {
			g.progress.IncrementInProgress(1)
		}

		g.output.Push(vm.PageAccessReqBuilder{}.
			WithPID(g.pid).
			WithPageNum(page).
			WithSendTime(time.Now()).
			Build())

		err = g.think(ctx)
		if err != nil {
			break
		}
	}

	g.logger.Printf("Process %d finished.", g.pid)
	g.complete()

	return err
}

func (g *Generator) complete() {
	g.output.Push(vm.ProcessCompletedMsgBuilder{}.
		WithPID(g.pid).
		WithSendTime(time.Now()).
		Build())
	g.state.Store(int32(Finished))
}

func (g *Generator) think(ctx context.Context) error {
	d := g.thinkBase
	if g.thinkRange > 0 {
		d += time.Duration(g.rng.Int64N(int64(g.thinkRange)))
	}

	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyReady(vm.PID) {}

type noopAdmitter struct{}

func (noopAdmitter) Admit(context.Context, vm.PID) error { return nil }

func (noopAdmitter) Release(vm.PID) {}
