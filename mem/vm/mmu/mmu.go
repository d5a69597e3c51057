// Package mmu provides the paging engine. It resolves every page access as a
// hit or a page fault and evicts pages when all the physical frames are in
// use.
package mmu

import (
	"context"
	"log"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/replacement"
	"github.com/sarchlab/pagesim/sim"
)

// ProcessStats summarizes the requests of one process.
type ProcessStats struct {
	PID      vm.PID `json:"pid"`
	Requests uint64 `json:"requests"`
	Hits     uint64 `json:"hits"`
	Faults   uint64 `json:"faults"`
	Evicted  uint64 `json:"evicted"`
	Finished bool   `json:"finished"`
}

// Stats summarizes the requests the MMU has handled.
type Stats struct {
	Requests  uint64         `json:"requests"`
	Hits      uint64         `json:"hits"`
	Faults    uint64         `json:"faults"`
	Evictions uint64         `json:"evictions"`
	Dropped   uint64         `json:"dropped"`
	Completed uint64         `json:"completed"`
	Processes []ProcessStats `json:"processes"`
}

// Comp is the paging engine. It is the single consumer of the request buffer
// and the only writer of the page tables, the frame table and the eviction
// order.
type Comp struct {
	*sim.HookableBase
	sim.NamedBase

	requests sim.Buffer
	logger   *log.Logger

	faultLatency time.Duration
	serviceDelay time.Duration
	pageRange    uint64

	lock            sync.Mutex
	pageTable       vm.PageTable
	frames          *vm.FrameTable
	victimFinder    replacement.VictimFinder
	processes       map[vm.PID]*ProcessStats
	stats           Stats
	nextSeq         uint64
	checkInvariants bool
	lastConsistent  *Snapshot
}

// RegisterProcess makes the MMU accept requests from a process.
func (c *Comp) RegisterProcess(pid vm.PID) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, found := c.processes[pid]; !found {
		c.processes[pid] = &ProcessStats{PID: pid}
	}
}

// Run consumes the request buffer until the buffer is closed and drained, or
// until ctx is done. A nil error means that every request was handled.
func (c *Comp) Run(ctx context.Context) error {
	c.logger.Printf("%s started.", c.Name())
	defer c.logger.Printf("%s stopped.", c.Name())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, ok := c.requests.Pop(ctx)
		if !ok {
			return ctx.Err()
		}

		msg, ok := item.(vm.Msg)
		if !ok && item != nil {
			log.Panicf("%s cannot handle item of type %s",
				c.Name(), reflect.TypeOf(item))
		}

		faulted, err := c.handle(msg)
		if err != nil {
			return err
		}

		if err := c.wait(ctx, msg, faulted); err != nil {
			return err
		}
	}
}

// Handle resolves one message without modeling any latency.
func (c *Comp) Handle(msg vm.Msg) error {
	_, err := c.handle(msg)
	return err
}

func (c *Comp) wait(ctx context.Context, msg vm.Msg, faulted bool) error {
	if _, isAccess := msg.(*vm.PageAccessReq); !isAccess {
		return nil
	}

	d := c.serviceDelay
	if faulted {
		d += c.faultLatency
	}

	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// handle runs lookup, decision and mutation in a single critical section.
func (c *Comp) handle(msg vm.Msg) (faulted bool, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	switch msg := msg.(type) {
	case nil:
		c.drop(msg, "nil message")
	case *vm.PageAccessReq:
		if msg == nil {
			c.drop(msg, "nil message")
			break
		}

		faulted = c.handlePageAccess(msg)
	case *vm.ProcessCompletedMsg:
		if msg == nil {
			c.drop(msg, "nil message")
			break
		}

		c.handleCompletion(msg)
	default:
		log.Panicf("%s cannot handle message of type %s",
			c.Name(), reflect.TypeOf(msg))
	}

	if c.checkInvariants {
		if err := c.checkInvariantsLocked(); err != nil {
			return false, err
		}

		snapshot := c.snapshotLocked()
		c.lastConsistent = &snapshot
	}

	return faulted, nil
}

func (c *Comp) handlePageAccess(req *vm.PageAccessReq) (faulted bool) {
	proc, known := c.processes[req.PID]
	if !known {
		c.drop(req, "unknown process")
		return false
	}

	if req.PageNum >= c.pageRange {
		c.drop(req, "page out of range")
		return false
	}

	c.stats.Requests++
	proc.Requests++
	c.emit(req, Event{
		Kind:    EventRequest,
		PID:     req.PID,
		PageNum: req.PageNum,
		Frame:   -1,
	})

	page, found := c.pageTable.Find(req.PID, req.PageNum)
	if found {
		c.doHit(req, proc, page)
		return false
	}

	c.doFault(req, proc)

	return true
}

func (c *Comp) doHit(req *vm.PageAccessReq, proc *ProcessStats, page vm.Page) {
	c.victimFinder.Touch(page.Frame)
	c.stats.Hits++
	proc.Hits++

	c.emit(req, Event{
		Kind:    EventHit,
		PID:     req.PID,
		PageNum: req.PageNum,
		Frame:   page.Frame,
	})
}

func (c *Comp) doFault(req *vm.PageAccessReq, proc *ProcessStats) {
	c.stats.Faults++
	proc.Faults++

	owner := vm.Owner{PID: req.PID, PageNum: req.PageNum}
	faultEvent := Event{
		Kind:    EventFault,
		PID:     req.PID,
		PageNum: req.PageNum,
	}

	frame, ok := c.frames.AllocateFree(owner)
	if !ok {
		var victim vm.Owner
		frame, victim = c.evict(req, owner)

		faultEvent.Evicted = true
		faultEvent.VictimPID = victim.PID
		faultEvent.VictimPage = victim.PageNum
	}

	c.pageTable.Insert(vm.Page{
		PID:     req.PID,
		PageNum: req.PageNum,
		Frame:   frame,
	})
	c.victimFinder.Load(frame)

	faultEvent.Frame = frame
	c.emit(req, faultEvent)
}

// evict takes the frame at the head of the eviction order away from its
// current page and gives it to owner.
func (c *Comp) evict(
	req *vm.PageAccessReq,
	owner vm.Owner,
) (frame int, victim vm.Owner) {
	frame, ok := c.victimFinder.Victim()
	if !ok {
		log.Panicf("%s has no free frame and no resident frame", c.Name())
	}

	victim = c.frames.Reassign(frame, owner)
	c.pageTable.Remove(victim.PID, victim.PageNum)

	c.stats.Evictions++
	if victimProc, found := c.processes[victim.PID]; found {
		victimProc.Evicted++
	}

	c.emit(req, Event{
		Kind:       EventEvict,
		PID:        req.PID,
		PageNum:    req.PageNum,
		Frame:      frame,
		Evicted:    true,
		VictimPID:  victim.PID,
		VictimPage: victim.PageNum,
	})

	return frame, victim
}

func (c *Comp) handleCompletion(msg *vm.ProcessCompletedMsg) {
	proc, known := c.processes[msg.PID]
	if !known {
		c.drop(msg, "unknown process")
		return
	}

	if !proc.Finished {
		proc.Finished = true
		c.stats.Completed++
	}

	c.emit(msg, Event{
		Kind:  EventComplete,
		PID:   msg.PID,
		Frame: -1,
	})
}

func (c *Comp) drop(msg vm.Msg, reason string) {
	c.stats.Dropped++

	e := Event{
		Kind:   EventDrop,
		PID:    metaOf(msg).PID,
		Frame:  -1,
		Reason: reason,
	}

	if req, ok := msg.(*vm.PageAccessReq); ok && req != nil {
		e.PageNum = req.PageNum
	}

	c.emit(msg, e)
}

func (c *Comp) emit(msg vm.Msg, e Event) {
	c.nextSeq++
	e.Seq = c.nextSeq
	e.ReqID = metaOf(msg).ID
	e.NumOwned = c.frames.NumOwned()
	e.NumFree = c.frames.NumFree()

	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    hookPosByKind[e.Kind],
		Item:   msg,
		Detail: e,
	})
}

func metaOf(msg vm.Msg) vm.MsgMeta {
	if msg == nil {
		return vm.MsgMeta{}
	}

	return msg.Meta()
}

// Stats returns a copy of the counters.
func (c *Comp) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.statsLocked()
}

func (c *Comp) statsLocked() Stats {
	stats := c.stats
	stats.Processes = make([]ProcessStats, 0, len(c.processes))
	for _, p := range c.processes {
		stats.Processes = append(stats.Processes, *p)
	}

	sort.Slice(stats.Processes, func(i, j int) bool {
		return stats.Processes[i].PID < stats.Processes[j].PID
	})

	return stats
}

// Snapshot returns a copy of the page tables, the frame table and the
// eviction order.
func (c *Comp) Snapshot() Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.snapshotLocked()
}

// State is a copy of the MMU taken in a single critical section.
type State struct {
	Name            string
	NumFrames       int
	PageRange       uint64
	FaultLatency    time.Duration
	ServiceDelay    time.Duration
	CheckInvariants bool
	Stats           Stats
	Snapshot        Snapshot
}

// Inspect returns a *State. Readers on other goroutines inspect the copy
// instead of the fields of the MMU.
func (c *Comp) Inspect() any {
	c.lock.Lock()
	defer c.lock.Unlock()

	return &State{
		Name:            c.Name(),
		NumFrames:       c.frames.Capacity(),
		PageRange:       c.pageRange,
		FaultLatency:    c.faultLatency,
		ServiceDelay:    c.serviceDelay,
		CheckInvariants: c.checkInvariants,
		Stats:           c.statsLocked(),
		Snapshot:        c.snapshotLocked(),
	}
}

// Finished tells if the MMU has received the completion marker of a process.
func (c *Comp) Finished(pid vm.PID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	proc, found := c.processes[pid]

	return found && proc.Finished
}

// NumFrames returns the number of physical frames.
func (c *Comp) NumFrames() int {
	return c.frames.Capacity()
}

// PageRange returns the number of pages each process may access.
func (c *Comp) PageRange() uint64 {
	return c.pageRange
}
