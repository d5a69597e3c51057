package tracing

import (
	"fmt"
	"math"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
)

// TraceSummary counts the outcomes found in a trace.
type TraceSummary struct {
	Requests  uint64
	Hits      uint64
	Faults    uint64
	Evictions uint64
	Completed uint64
	Dropped   uint64
}

// A TraceChecker rebuilds the MMU state from a trace and verifies that every
// event is consistent with it.
type TraceChecker struct {
	numFrames int
	lru       bool

	pageTables map[vm.PID]map[uint64]int
	owners     map[int]vm.Owner
	lastAccess map[int]uint64
	lastSeq    uint64

	pending    *mmu.Event
	pendingHit bool
	evicted    *mmu.Event

	summary TraceSummary
}

// NewTraceChecker creates a checker for an MMU with numFrames frames. If lru is
// set, every eviction must pick the least recently accessed frame.
func NewTraceChecker(numFrames int, lru bool) *TraceChecker {
	return &TraceChecker{
		numFrames:  numFrames,
		lru:        lru,
		pageTables: make(map[vm.PID]map[uint64]int),
		owners:     make(map[int]vm.Owner),
		lastAccess: make(map[int]uint64),
	}
}

// CheckTrace verifies a whole trace.
func CheckTrace(
	events []mmu.Event,
	numFrames int,
	lru bool,
) (TraceSummary, error) {
	c := NewTraceChecker(numFrames, lru)

	for _, e := range events {
		if err := c.Check(e); err != nil {
			return c.summary, err
		}
	}

	if err := c.Finish(); err != nil {
		return c.summary, err
	}

	return c.summary, nil
}

// Summary returns the counts so far.
func (c *TraceChecker) Summary() TraceSummary {
	return c.summary
}

// Check verifies the next event of the trace.
func (c *TraceChecker) Check(e mmu.Event) error {
	if e.Seq <= c.lastSeq {
		return c.errorf(e, "sequence number does not increase")
	}
	c.lastSeq = e.Seq

	err := c.checkOrder(e)
	if err != nil {
		return err
	}

	switch e.Kind {
	case mmu.EventRequest:
		err = c.request(e)
	case mmu.EventHit:
		err = c.hit(e)
	case mmu.EventEvict:
		err = c.evict(e)
	case mmu.EventFault:
		err = c.fault(e)
	case mmu.EventComplete:
		c.summary.Completed++
	case mmu.EventDrop:
		c.summary.Dropped++
	default:
		err = c.errorf(e, "unknown event kind")
	}

	if err != nil {
		return err
	}

	return c.checkCapacity(e)
}

// Finish reports an error if the trace ends in the middle of a request.
func (c *TraceChecker) Finish() error {
	if c.pending != nil {
		return c.errorf(*c.pending, "request has no outcome")
	}

	return nil
}

func (c *TraceChecker) errorf(e mmu.Event, format string, args ...any) error {
	return fmt.Errorf("event %d (%s): %s",
		e.Seq, e.Kind, fmt.Sprintf(format, args...))
}

func (c *TraceChecker) checkOrder(e mmu.Event) error {
	switch e.Kind {
	case mmu.EventHit, mmu.EventFault, mmu.EventEvict:
		if c.pending == nil {
			return c.errorf(e, "outcome without a request")
		}

		if c.pending.PID != e.PID || c.pending.PageNum != e.PageNum {
			return c.errorf(e, "outcome for process %d page %d, "+
				"but process %d page %d was requested",
				e.PID, e.PageNum, c.pending.PID, c.pending.PageNum)
		}
	default:
		if c.pending != nil {
			return c.errorf(e, "request %d has no outcome", c.pending.Seq)
		}
	}

	return nil
}

func (c *TraceChecker) request(e mmu.Event) error {
	c.summary.Requests++

	_, resident := c.pageTables[e.PID][e.PageNum]
	c.pending = &e
	c.pendingHit = resident

	return nil
}

func (c *TraceChecker) hit(e mmu.Event) error {
	if !c.pendingHit {
		return c.errorf(e, "hit on a page that is not resident")
	}

	frame := c.pageTables[e.PID][e.PageNum]
	if frame != e.Frame {
		return c.errorf(e, "hit in frame %d, but the page is in frame %d",
			e.Frame, frame)
	}

	c.summary.Hits++
	c.lastAccess[e.Frame] = e.Seq
	c.pending = nil

	return nil
}

func (c *TraceChecker) evict(e mmu.Event) error {
	if c.pendingHit {
		return c.errorf(e, "eviction for a resident page")
	}

	if c.evicted != nil {
		return c.errorf(e, "two evictions for one request")
	}

	if len(c.owners) != c.numFrames {
		return c.errorf(e, "eviction while %d frames are free",
			c.numFrames-len(c.owners))
	}

	owner, owned := c.owners[e.Frame]
	if !owned || owner.PID != e.VictimPID || owner.PageNum != e.VictimPage {
		return c.errorf(e, "frame %d is not owned by process %d page %d",
			e.Frame, e.VictimPID, e.VictimPage)
	}

	if c.lru {
		if err := c.victimMustBeLeastRecent(e); err != nil {
			return err
		}
	}

	delete(c.pageTables[e.VictimPID], e.VictimPage)
	c.owners[e.Frame] = vm.Owner{PID: e.PID, PageNum: e.PageNum}
	c.summary.Evictions++
	c.evicted = &e

	return nil
}

func (c *TraceChecker) victimMustBeLeastRecent(e mmu.Event) error {
	oldest := uint64(math.MaxUint64)
	oldestFrame := -1

	for frame := range c.owners {
		if c.lastAccess[frame] < oldest {
			oldest = c.lastAccess[frame]
			oldestFrame = frame
		}
	}

	if oldestFrame != e.Frame {
		return c.errorf(e, "evicted frame %d (last access %d), "+
			"but frame %d was accessed least recently (%d)",
			e.Frame, c.lastAccess[e.Frame], oldestFrame, oldest)
	}

	return nil
}

func (c *TraceChecker) fault(e mmu.Event) error {
	if c.pendingHit {
		return c.errorf(e, "fault on a resident page")
	}

	if e.Evicted {
		if err := c.evictedFrameMustMatch(e); err != nil {
			return err
		}
	} else {
		if err := c.frameMustBeLowestFree(e); err != nil {
			return err
		}

		c.owners[e.Frame] = vm.Owner{PID: e.PID, PageNum: e.PageNum}
	}

	table, found := c.pageTables[e.PID]
	if !found {
		table = make(map[uint64]int)
		c.pageTables[e.PID] = table
	}
	table[e.PageNum] = e.Frame

	c.summary.Faults++
	c.lastAccess[e.Frame] = e.Seq
	c.pending = nil
	c.evicted = nil

	return nil
}

func (c *TraceChecker) evictedFrameMustMatch(e mmu.Event) error {
	if c.evicted == nil {
		return c.errorf(e, "fault claims an eviction that did not happen")
	}

	if c.evicted.Frame != e.Frame ||
		c.evicted.VictimPID != e.VictimPID ||
		c.evicted.VictimPage != e.VictimPage {
		return c.errorf(e, "fault does not match eviction %d",
			c.evicted.Seq)
	}

	return nil
}

func (c *TraceChecker) frameMustBeLowestFree(e mmu.Event) error {
	if c.evicted != nil {
		return c.errorf(e, "fault ignores eviction %d", c.evicted.Seq)
	}

	for frame := 0; frame < c.numFrames; frame++ {
		if _, owned := c.owners[frame]; owned {
			continue
		}

		if frame != e.Frame {
			return c.errorf(e, "took frame %d, but frame %d is free",
				e.Frame, frame)
		}

		return nil
	}

	return c.errorf(e, "took frame %d, but no frame is free", e.Frame)
}

func (c *TraceChecker) checkCapacity(e mmu.Event) error {
	if e.NumOwned > c.numFrames {
		return c.errorf(e, "%d frames owned, capacity is %d",
			e.NumOwned, c.numFrames)
	}

	if e.NumOwned+e.NumFree != c.numFrames {
		return c.errorf(e, "%d owned and %d free frames do not add up to %d",
			e.NumOwned, e.NumFree, c.numFrames)
	}

	if e.NumOwned != len(c.owners) {
		return c.errorf(e, "%d frames owned, but the trace implies %d",
			e.NumOwned, len(c.owners))
	}

	return nil
}
