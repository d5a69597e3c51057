package simulation

import (
	"sort"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/tracing"
)

// A ReplayDriver feeds a fixed sequence of messages to an MMU from a single
// goroutine. The resulting trace only depends on the sequence.
type ReplayDriver struct {
	engine     *mmu.Comp
	references map[vm.PID][]uint64
	collector  *tracing.EventCollector
}

// NewReplayDriver creates a driver that replays the reference strings into
// the engine.
func NewReplayDriver(
	engine *mmu.Comp,
	references map[vm.PID][]uint64,
) *ReplayDriver {
	d := &ReplayDriver{
		engine:     engine,
		references: references,
		collector:  tracing.NewEventCollector(),
	}

	engine.AcceptHook(d.collector)

	return d
}

// Engine returns the MMU being driven.
func (d *ReplayDriver) Engine() *mmu.Comp {
	return d.engine
}

// Run sends the reference strings round-robin, one reference of each
// process in PID order per round. A process's completion marker follows its
// last reference.
func (d *ReplayDriver) Run() (RunReport, error) {
	return d.Replay(Interleave(d.references))
}

// Replay sends the messages in order. It stops at the first error.
func (d *ReplayDriver) Replay(msgs []vm.Msg) (RunReport, error) {
	start := time.Now()

	for _, msg := range msgs {
		if err := d.engine.Handle(msg); err != nil {
			return d.report(start), err
		}
	}

	return d.report(start), nil
}

func (d *ReplayDriver) report(start time.Time) RunReport {
	r := RunReport{
		Stats:      d.engine.Stats(),
		References: make(map[vm.PID][]uint64, len(d.references)),
		Final:      d.engine.Snapshot(),
		Trace:      d.collector.Events(),
		Duration:   time.Since(start),
	}

	for pid, refs := range d.references {
		r.References[pid] = append([]uint64(nil), refs...)
	}

	return r
}

// Interleave lays out the reference strings round-robin in PID order.
func Interleave(references map[vm.PID][]uint64) []vm.Msg {
	pids := make([]vm.PID, 0, len(references))
	longest := 0
	for pid, refs := range references {
		pids = append(pids, pid)
		longest = max(longest, len(refs))
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	var msgs []vm.Msg
	for round := 0; round < longest; round++ {
		for _, pid := range pids {
			refs := references[pid]
			if round >= len(refs) {
				continue
			}

			msgs = append(msgs, vm.PageAccessReqBuilder{}.
				WithPID(pid).
				WithPageNum(refs[round]).
				Build())

			if round == len(refs)-1 {
				msgs = append(msgs, vm.ProcessCompletedMsgBuilder{}.
					WithPID(pid).
					Build())
			}
		}
	}

	for _, pid := range pids {
		if len(references[pid]) == 0 {
			msgs = append(msgs, vm.ProcessCompletedMsgBuilder{}.
				WithPID(pid).
				Build())
		}
	}

	return msgs
}

// MessagesFromTrace rebuilds the message sequence that an MMU received from
// its trace. Replaying the messages into a fresh MMU with the same
// configuration reproduces the trace. A dropped completion marker comes back
// as a dropped access to page 0.
func MessagesFromTrace(events []mmu.Event) []vm.Msg {
	var msgs []vm.Msg

	for _, e := range events {
		switch e.Kind {
		case mmu.EventRequest, mmu.EventDrop:
			msgs = append(msgs, vm.PageAccessReqBuilder{}.
				WithPID(e.PID).
				WithPageNum(e.PageNum).
				Build())
		case mmu.EventComplete:
			msgs = append(msgs, vm.ProcessCompletedMsgBuilder{}.
				WithPID(e.PID).
				Build())
		}
	}

	return msgs
}
