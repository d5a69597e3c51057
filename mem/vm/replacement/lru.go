package replacement

// LRUVictimFinder evicts the least recently used frame. Both loads and hits
// make a frame the most recently used one, so frames leave in ascending order
// of last access.
type LRUVictimFinder struct {
	frames orderedFrames
}

// NewLRUVictimFinder returns a newly constructed lru victim finder
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{frames: newOrderedFrames()}
}

// Load makes the frame the most recently used one.
func (e *LRUVictimFinder) Load(frame int) {
	e.frames.moveToBack(frame)
}

// Touch makes a resident frame the most recently used one.
func (e *LRUVictimFinder) Touch(frame int) {
	e.frames.mustContain(frame)
	e.frames.moveToBack(frame)
}

// Victim returns the least recently used frame.
func (e *LRUVictimFinder) Victim() (int, bool) {
	return e.frames.front()
}

// Remove forgets a frame.
func (e *LRUVictimFinder) Remove(frame int) {
	e.frames.remove(frame)
}

// Len returns the number of tracked frames.
func (e *LRUVictimFinder) Len() int {
	return e.frames.len()
}

// Order returns the frames from least to most recently used.
func (e *LRUVictimFinder) Order() []int {
	return e.frames.order()
}
