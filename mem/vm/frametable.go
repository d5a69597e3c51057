package vm

import (
	"container/heap"
	"fmt"
)

// An Owner identifies the page that occupies a frame.
type Owner struct {
	PID     PID    `json:"pid"`
	PageNum uint64 `json:"page_num"`
}

// FrameState describes one physical frame.
type FrameState struct {
	Frame int   `json:"frame"`
	Owned bool  `json:"owned"`
	Owner Owner `json:"owner"`
}

// A FrameTable tracks the fixed pool of physical frames. Every frame is either
// free or owned by exactly one page. FrameTable is not safe for concurrent
// use; the MMU guards it with its own lock.
type FrameTable struct {
	owners []Owner
	owned  []bool
	free   freeFrames
}

// NewFrameTable creates a frame table with numFrames free frames.
func NewFrameTable(numFrames int) *FrameTable {
	if numFrames <= 0 {
		panic("number of frames must be positive")
	}

	t := &FrameTable{
		owners: make([]Owner, numFrames),
		owned:  make([]bool, numFrames),
		free:   make(freeFrames, numFrames),
	}

	for i := range t.free {
		t.free[i] = i
	}
	heap.Init(&t.free)

	return t
}

// Capacity returns the total number of frames.
func (t *FrameTable) Capacity() int {
	return len(t.owners)
}

// NumFree returns the number of free frames.
func (t *FrameTable) NumFree() int {
	return t.free.Len()
}

// NumOwned returns the number of owned frames.
func (t *FrameTable) NumOwned() int {
	return t.Capacity() - t.free.Len()
}

// AllocateFree assigns the lowest-index free frame to owner. The bool return
// value is false if no frame is free.
func (t *FrameTable) AllocateFree(owner Owner) (int, bool) {
	if t.free.Len() == 0 {
		return 0, false
	}

	frame := heap.Pop(&t.free).(int)
	t.owners[frame] = owner
	t.owned[frame] = true

	return frame, true
}

// Reassign moves an owned frame to a new owner and returns the previous owner.
func (t *FrameTable) Reassign(frame int, owner Owner) Owner {
	t.frameMustBeOwned(frame)

	prev := t.owners[frame]
	t.owners[frame] = owner

	return prev
}

// Release returns an owned frame to the free pool.
func (t *FrameTable) Release(frame int) Owner {
	t.frameMustBeOwned(frame)

	prev := t.owners[frame]
	t.owners[frame] = Owner{}
	t.owned[frame] = false
	heap.Push(&t.free, frame)

	return prev
}

// Owner returns the owner of a frame. The bool return value is false if the
// frame is free.
func (t *FrameTable) Owner(frame int) (Owner, bool) {
	t.frameMustBeInRange(frame)

	return t.owners[frame], t.owned[frame]
}

// Frames returns the state of every frame ordered by frame index.
func (t *FrameTable) Frames() []FrameState {
	states := make([]FrameState, len(t.owners))
	for i := range t.owners {
		states[i] = FrameState{
			Frame: i,
			Owned: t.owned[i],
			Owner: t.owners[i],
		}
	}

	return states
}

func (t *FrameTable) frameMustBeInRange(frame int) {
	if frame < 0 || frame >= len(t.owners) {
		panic(fmt.Sprintf("frame %d out of range [0, %d)",
			frame, len(t.owners)))
	}
}

func (t *FrameTable) frameMustBeOwned(frame int) {
	t.frameMustBeInRange(frame)

	if !t.owned[frame] {
		panic(fmt.Sprintf("frame %d is free", frame))
	}
}

// freeFrames is a min-heap of frame indices.
type freeFrames []int

func (h freeFrames) Len() int           { return len(h) }
func (h freeFrames) Less(i, j int) bool { return h[i] < h[j] }
func (h freeFrames) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *freeFrames) Push(x any) {
	*h = append(*h, x.(int))
}

func (h *freeFrames) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
