package replacement

// FIFOVictimFinder evicts the frame that was loaded the earliest. Hits do not
// change the order.
type FIFOVictimFinder struct {
	frames orderedFrames
}

// NewFIFOVictimFinder returns a newly constructed fifo victim finder
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return &FIFOVictimFinder{frames: newOrderedFrames()}
}

// Load moves the frame to the end of the queue.
func (e *FIFOVictimFinder) Load(frame int) {
	e.frames.moveToBack(frame)
}

// Touch checks that the frame is tracked and otherwise does nothing.
func (e *FIFOVictimFinder) Touch(frame int) {
	e.frames.mustContain(frame)
}

// Victim returns the earliest loaded frame.
func (e *FIFOVictimFinder) Victim() (int, bool) {
	return e.frames.front()
}

// Remove forgets a frame.
func (e *FIFOVictimFinder) Remove(frame int) {
	e.frames.remove(frame)
}

// Len returns the number of tracked frames.
func (e *FIFOVictimFinder) Len() int {
	return e.frames.len()
}

// Order returns the frames in load order.
func (e *FIFOVictimFinder) Order() []int {
	return e.frames.order()
}
