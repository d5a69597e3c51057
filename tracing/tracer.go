// Package tracing turns the MMU hook invocations into an event trace. The
// trace can be printed, kept in memory, written to CSV or SQLite, and checked
// for consistency.
package tracing

import (
	"log"
	"sync"

	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/sim"
)

// eventOf extracts the MMU event from a hook context. The bool return value is
// false for hook invocations that do not carry an event.
func eventOf(ctx sim.HookCtx) (mmu.Event, bool) {
	e, ok := ctx.Detail.(mmu.Event)
	return e, ok
}

// An EventLogger prints one line per event.
type EventLogger struct {
	sim.LogHookBase
}

// NewEventLogger creates an EventLogger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger
	return h
}

// Func prints the event.
func (l *EventLogger) Func(ctx sim.HookCtx) {
	e, ok := eventOf(ctx)
	if !ok {
		return
	}

	l.Print(e.String())
}

// An EventCollector keeps every event in memory.
type EventCollector struct {
	lock   sync.Mutex
	events []mmu.Event
}

// NewEventCollector creates an empty EventCollector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Func records the event.
func (c *EventCollector) Func(ctx sim.HookCtx) {
	e, ok := eventOf(ctx)
	if !ok {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.events = append(c.events, e)
}

// Events returns a copy of the recorded events in order.
func (c *EventCollector) Events() []mmu.Event {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]mmu.Event(nil), c.events...)
}
