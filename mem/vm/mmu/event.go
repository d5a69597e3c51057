package mmu

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// A list of hook poses that the MMU invokes hooks at. The Detail field of the
// hook context is always an Event.
var (
	HookPosReqReceived      = &sim.HookPos{Name: "MMU Req Received"}
	HookPosPageHit          = &sim.HookPos{Name: "MMU Page Hit"}
	HookPosPageFault        = &sim.HookPos{Name: "MMU Page Fault"}
	HookPosPageEvict        = &sim.HookPos{Name: "MMU Page Evict"}
	HookPosProcessCompleted = &sim.HookPos{Name: "MMU Process Completed"}
	HookPosReqDropped       = &sim.HookPos{Name: "MMU Req Dropped"}
)

// EventKind tells what happened to a request.
type EventKind int

// All the kinds of events the MMU reports.
const (
	EventRequest EventKind = iota
	EventHit
	EventFault
	EventEvict
	EventComplete
	EventDrop
)

var eventKindNames = map[EventKind]string{
	EventRequest:  "request",
	EventHit:      "hit",
	EventFault:    "fault",
	EventEvict:    "evict",
	EventComplete: "complete",
	EventDrop:     "drop",
}

func (k EventKind) String() string {
	name, ok := eventKindNames[k]
	if !ok {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}

	return name
}

// An Event is one entry of the MMU's observable trace. Events are numbered by
// Seq in the order the MMU changes its state. The Seq of the hit or fault
// event of a frame is the frame's last access time.
//
// For EventEvict, PID and PageNum name the incoming page while VictimPID and
// VictimPage name the page leaving Frame. The EventFault that follows carries
// Evicted set and the same victim.
type Event struct {
	Seq        uint64
	Kind       EventKind
	ReqID      string
	PID        vm.PID
	PageNum    uint64
	Frame      int
	Evicted    bool
	VictimPID  vm.PID
	VictimPage uint64
	NumOwned   int
	NumFree    int
	Reason     string
}

func (e Event) String() string {
	switch e.Kind {
	case EventRequest:
		return fmt.Sprintf("Process %d requests page %d", e.PID, e.PageNum)
	case EventHit:
		return fmt.Sprintf("Page hit: Process %d Page %d in Frame %d",
			e.PID, e.PageNum, e.Frame)
	case EventFault:
		return fmt.Sprintf(
			"Page Fault handled for Process %d, Page %d -> Frame %d",
			e.PID, e.PageNum, e.Frame)
	case EventEvict:
		return fmt.Sprintf(
			"Replaced Frame %d of Process %d Page %d with Process %d Page %d",
			e.Frame, e.VictimPID, e.VictimPage, e.PID, e.PageNum)
	case EventComplete:
		return fmt.Sprintf("Process %d completed.", e.PID)
	case EventDrop:
		return fmt.Sprintf("Dropped request %s of Process %d Page %d: %s",
			e.ReqID, e.PID, e.PageNum, e.Reason)
	default:
		return e.Kind.String()
	}
}

var hookPosByKind = map[EventKind]*sim.HookPos{
	EventRequest:  HookPosReqReceived,
	EventHit:      HookPosPageHit,
	EventFault:    HookPosPageFault,
	EventEvict:    HookPosPageEvict,
	EventComplete: HookPosProcessCompleted,
	EventDrop:     HookPosReqDropped,
}
