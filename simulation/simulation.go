// Package simulation wires the processes, the scheduler and the MMU into a
// runnable paging simulation.
package simulation

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/process"
	"github.com/sarchlab/pagesim/scheduler"
	"github.com/sarchlab/pagesim/sim"
	"github.com/sarchlab/pagesim/tracing"
)

// A Simulation owns every component of one run.
type Simulation struct {
	sim.NamedBase

	id      string
	stagger time.Duration
	drain   bool
	logger  *log.Logger

	requests   sim.Buffer
	engine     *mmu.Comp
	tracker    *scheduler.Tracker
	generators []*process.Generator
	references map[vm.PID][]uint64

	collector    *tracing.EventCollector
	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	monitor      *monitoring.Monitor
	monitorURL   string
	progress     *progressHook
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the MMU.
func (s *Simulation) Engine() *mmu.Comp {
	return s.engine
}

// Tracker returns the scheduler.
func (s *Simulation) Tracker() *scheduler.Tracker {
	return s.tracker
}

// Generators returns the simulated processes.
func (s *Simulation) Generators() []*process.Generator {
	return s.generators
}

// Requests returns the buffer between the processes and the MMU.
func (s *Simulation) Requests() sim.Buffer {
	return s.requests
}

// GetDataRecorder returns the data recorder, or nil if events are not
// recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring server once the
// simulation has started.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// Run starts the MMU and the scheduler, starts the processes one stagger
// apart and waits for all of them to finish. It then raises the termination
// signal and, unless draining is off, waits until the MMU has handled every
// request. A Simulation can only run once.
func (s *Simulation) Run(ctx context.Context) (RunReport, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.monitor != nil {
		s.monitorURL = s.monitor.StartServer()
	}

	engineCtx, stopEngine := context.WithCancel(ctx)
	defer stopEngine()

	engineDone := make(chan error, 1)
	go func() {
		err := s.engine.Run(engineCtx)
		if err != nil && engineCtx.Err() == nil {
			cancel()
		}
		engineDone <- err
	}()

	trackerCtx, stopTracker := context.WithCancel(ctx)
	trackerDone := make(chan struct{})
	go func() {
		s.tracker.Run(trackerCtx)
		close(trackerDone)
	}()

	s.runGenerators(ctx)

	stopTracker()
	<-trackerDone

	if !s.drain {
		stopEngine()
	}
	s.requests.Close()
	engineErr := <-engineDone

	report := s.report(time.Since(start))

	if s.dbTracer != nil {
		s.dbTracer.RecordStats(report.Stats)
	}

	return report, s.runError(ctx, engineErr)
}

func (s *Simulation) runGenerators(ctx context.Context) {
	var wg sync.WaitGroup

	for i, g := range s.generators {
		if i > 0 && sleep(ctx, s.stagger) != nil {
			break
		}

		wg.Add(1)
		go func(g *process.Generator) {
			defer wg.Done()

			err := g.Run(ctx)
			if err != nil {
				s.logger.Printf("%s stopped: %s", g.Name(), err)
			}
		}(g)
	}

	wg.Wait()
}

func (s *Simulation) runError(ctx context.Context, engineErr error) error {
	var violation *mmu.InvariantViolation
	if errors.As(engineErr, &violation) {
		return engineErr
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.drain && errors.Is(engineErr, context.Canceled) {
		return nil
	}

	return engineErr
}

func (s *Simulation) report(d time.Duration) RunReport {
	r := RunReport{
		ID:         s.id,
		Stats:      s.engine.Stats(),
		References: make(map[vm.PID][]uint64, len(s.references)),
		Final:      s.engine.Snapshot(),
		Ready:      s.tracker.ReadyCounts(),
		Undrained:  s.requests.Size(),
		Duration:   d,
	}

	for pid, refs := range s.references {
		r.References[pid] = append([]uint64(nil), refs...)
	}

	if s.collector != nil {
		r.Trace = s.collector.Events()
	}

	return r
}

// Terminate releases the data recorder and the monitoring server.
func (s *Simulation) Terminate() {
	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := s.monitor.StopServer(ctx)
		if err != nil {
			s.logger.Printf("monitor did not stop: %s", err)
		}
	}

	if s.dataRecorder != nil {
		s.dataRecorder.Close()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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

// progressHook moves a request of a process from in progress to finished
// once the MMU has received it, and removes the bar of a process from the
// monitor once the process has completed.
type progressHook struct {
	monitor *monitoring.Monitor
	bars    map[vm.PID]*monitoring.ProgressBar
}

func (h *progressHook) Func(ctx sim.HookCtx) {
	e, ok := ctx.Detail.(mmu.Event)
	if !ok {
		return
	}

	bar, found := h.bars[e.PID]
	if !found {
		return
	}

	switch e.Kind {
	case mmu.EventRequest:
		bar.MoveInProgressToFinished(1)
	case mmu.EventComplete:
		h.monitor.CompleteProgressBar(bar)
	}
}
