package tracing

import (
	"sync"
	"time"

	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/sim"
)

type eventTableEntry struct {
	Seq        uint64
	Kind       string
	ReqID      string
	PID        uint32
	PageNum    uint64
	Frame      int
	Evicted    bool
	VictimPID  uint32
	VictimPage uint64
	NumOwned   int
	NumFree    int
	Reason     string
	WallTime   float64
}

type processStatsEntry struct {
	PID      uint32
	Requests uint64
	Hits     uint64
	Faults   uint64
	Evicted  uint64
	Finished bool
}

// DBTracer is a hook that stores the events into a data recorder.
type DBTracer struct {
	mu        sync.Mutex
	backend   datarecording.DataRecorder
	tableName string
	startTime time.Time
	statsDone bool
}

// NewDBTracer creates a DBTracer and the tables it writes into.
func NewDBTracer(
	backend datarecording.DataRecorder,
	tableName string,
) *DBTracer {
	if tableName == "" {
		tableName = "paging_events"
	}

	t := &DBTracer{
		backend:   backend,
		tableName: tableName,
		startTime: time.Now(),
	}

	backend.CreateTable(tableName, eventTableEntry{})

	return t
}

// Func records the event.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	e, ok := eventOf(ctx)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.backend.InsertData(t.tableName, eventTableEntry{
		Seq:        e.Seq,
		Kind:       e.Kind.String(),
		ReqID:      e.ReqID,
		PID:        uint32(e.PID),
		PageNum:    e.PageNum,
		Frame:      e.Frame,
		Evicted:    e.Evicted,
		VictimPID:  uint32(e.VictimPID),
		VictimPage: e.VictimPage,
		NumOwned:   e.NumOwned,
		NumFree:    e.NumFree,
		Reason:     e.Reason,
		WallTime:   time.Since(t.startTime).Seconds(),
	})
}

// RecordStats writes the per-process summary of a run. It can only be called
// once.
func (t *DBTracer) RecordStats(stats mmu.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statsDone {
		panic("stats already recorded")
	}
	t.statsDone = true

	table := t.tableName + "_process_stats"
	t.backend.CreateTable(table, processStatsEntry{})

	for _, p := range stats.Processes {
		t.backend.InsertData(table, processStatsEntry{
			PID:      uint32(p.PID),
			Requests: p.Requests,
			Hits:     p.Hits,
			Faults:   p.Faults,
			Evicted:  p.Evicted,
			Finished: p.Finished,
		})
	}

	t.backend.Flush()
}
