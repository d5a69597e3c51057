package mmu

import (
	"fmt"

	"github.com/sarchlab/pagesim/mem/vm"
)

// Snapshot is a copy of the MMU state.
type Snapshot struct {
	Frames        []vm.FrameState      `json:"frames"`
	PageTables    map[vm.PID][]vm.Page `json:"page_tables"`
	EvictionOrder []int                `json:"eviction_order"`
}

// NumResident returns the number of owned frames in the snapshot.
func (s Snapshot) NumResident() int {
	n := 0
	for _, f := range s.Frames {
		if f.Owned {
			n++
		}
	}

	return n
}

// InvariantViolation reports that the MMU state has become inconsistent. It
// carries the last snapshot that passed all the checks.
type InvariantViolation struct {
	Invariant      string
	Detail         string
	LastConsistent *Snapshot
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %q violated: %s", e.Invariant, e.Detail)
}

func (c *Comp) snapshotLocked() Snapshot {
	s := Snapshot{
		Frames:        c.frames.Frames(),
		PageTables:    make(map[vm.PID][]vm.Page),
		EvictionOrder: c.victimFinder.Order(),
	}

	for _, pid := range c.pageTable.PIDs() {
		pages := c.pageTable.Pages(pid)
		if len(pages) > 0 {
			s.PageTables[pid] = pages
		}
	}

	return s
}

func (c *Comp) violation(invariant, format string, args ...any) error {
	return &InvariantViolation{
		Invariant:      invariant,
		Detail:         fmt.Sprintf(format, args...),
		LastConsistent: c.lastConsistent,
	}
}

// checkInvariantsLocked verifies that the frame table, the page tables and
// the eviction order agree with each other.
func (c *Comp) checkInvariantsLocked() error {
	capacity := c.frames.Capacity()
	numFree := c.frames.NumFree()
	numTracked := c.victimFinder.Len()

	if numFree+numTracked != capacity {
		return c.violation("frame accounting",
			"%d free frames and %d tracked frames do not add up to %d",
			numFree, numTracked, capacity)
	}

	if c.frames.NumOwned() != c.pageTable.NumPages() {
		return c.violation("residency",
			"%d owned frames but %d resident pages",
			c.frames.NumOwned(), c.pageTable.NumPages())
	}

	for _, f := range c.frames.Frames() {
		if !f.Owned {
			continue
		}

		page, found := c.pageTable.Find(f.Owner.PID, f.Owner.PageNum)
		if !found || page.Frame != f.Frame {
			return c.violation("frame to page",
				"frame %d is owned by process %d page %d, "+
					"but the page table does not map it back",
				f.Frame, f.Owner.PID, f.Owner.PageNum)
		}
	}

	for _, pid := range c.pageTable.PIDs() {
		for _, page := range c.pageTable.Pages(pid) {
			owner, owned := c.frames.Owner(page.Frame)
			if !owned || owner.PID != pid || owner.PageNum != page.PageNum {
				return c.violation("page to frame",
					"process %d page %d maps to frame %d, "+
						"which is not owned by it",
					pid, page.PageNum, page.Frame)
			}
		}
	}

	for _, frame := range c.victimFinder.Order() {
		if frame < 0 || frame >= capacity {
			return c.violation("eviction order",
				"frame %d in the eviction order does not exist", frame)
		}

		if _, owned := c.frames.Owner(frame); !owned {
			return c.violation("eviction order",
				"free frame %d is in the eviction order", frame)
		}
	}

	return nil
}
