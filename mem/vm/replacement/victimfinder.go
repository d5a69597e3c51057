// Package replacement provides the page replacement policies that decide
// which resident frame to evict when no frame is free.
package replacement

import (
	"container/list"
	"fmt"
)

// A VictimFinder keeps the resident frames in eviction order.
type VictimFinder interface {
	// Load records that a frame has just received a new page.
	Load(frame int)

	// Touch records a hit on a resident frame.
	Touch(frame int)

	// Victim returns the frame to evict next. The bool return value is false
	// if no frame is resident.
	Victim() (int, bool)

	// Remove forgets a frame.
	Remove(frame int)

	// Len returns the number of resident frames tracked.
	Len() int

	// Order returns the tracked frames, next victim first.
	Order() []int
}

// NewVictimFinder creates a victim finder by policy name. Supported names are
// "lru" and "fifo".
func NewVictimFinder(policy string) (VictimFinder, error) {
	switch policy {
	case "lru", "LRU", "":
		return NewLRUVictimFinder(), nil
	case "fifo", "FIFO":
		return NewFIFOVictimFinder(), nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", policy)
	}
}

// orderedFrames is a doubly linked list of frames with a frame-to-node index.
// The front of the list is the next victim.
type orderedFrames struct {
	frames *list.List
	index  map[int]*list.Element
}

func newOrderedFrames() orderedFrames {
	return orderedFrames{
		frames: list.New(),
		index:  make(map[int]*list.Element),
	}
}

func (o *orderedFrames) moveToBack(frame int) {
	elem, found := o.index[frame]
	if found {
		o.frames.MoveToBack(elem)
		return
	}

	o.index[frame] = o.frames.PushBack(frame)
}

func (o *orderedFrames) front() (int, bool) {
	elem := o.frames.Front()
	if elem == nil {
		return 0, false
	}

	return elem.Value.(int), true
}

func (o *orderedFrames) remove(frame int) {
	elem, found := o.index[frame]
	if !found {
		panic(fmt.Sprintf("frame %d is not tracked", frame))
	}

	o.frames.Remove(elem)
	delete(o.index, frame)
}

func (o *orderedFrames) mustContain(frame int) {
	if _, found := o.index[frame]; !found {
		panic(fmt.Sprintf("frame %d is not tracked", frame))
	}
}

func (o *orderedFrames) len() int {
	return o.frames.Len()
}

func (o *orderedFrames) order() []int {
	order := make([]int, 0, o.frames.Len())
	for e := o.frames.Front(); e != nil; e = e.Next() {
		order = append(order, e.Value.(int))
	}

	return order
}
