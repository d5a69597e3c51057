package sim

import (
	"context"
	"log"
	"sync"
)

// HookPosBufPush marks when an element is pushed into the buffer.
var HookPosBufPush = &HookPos{Name: "Buffer Push"}

// HookPosBufPop marks when an element is popped from the buffer.
var HookPosBufPop = &HookPos{Name: "Buffer Pop"}

// A Buffer is an unbounded fifo queue that many producers can push into and a
// single consumer pops from. The relative order of the elements pushed by one
// goroutine is preserved.
type Buffer interface {
	Named
	Hookable

	// Push appends an element. It never blocks. Pushing into a closed buffer
	// panics.
	Push(e interface{})

	// Pop removes the oldest element. It blocks until an element is
	// available. The bool return value is false if the buffer is closed and
	// drained, or if ctx is done.
	Pop(ctx context.Context) (interface{}, bool)

	// TryPop removes the oldest element without blocking.
	TryPop() (interface{}, bool)

	// Close marks that no more elements will be pushed. Elements already in
	// the buffer can still be popped.
	Close()

	Size() int
}

// NewBuffer creates a default buffer object.
func NewBuffer(name string) Buffer {
	NameMustBeValid(name)

	return &bufferImpl{
		name:   name,
		notify: make(chan struct{}, 1),
	}
}

type bufferImpl struct {
	HookableBase

	name string

	lock     sync.Mutex
	elements []interface{}
	closed   bool
	notify   chan struct{}
}

// Name returns the name of the buffer.
func (b *bufferImpl) Name() string {
	return b.name
}

func (b *bufferImpl) Push(e interface{}) {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		log.Panicf("push to closed buffer %s", b.name)
	}

	b.elements = append(b.elements, e)
	b.lock.Unlock()

	b.wakeUp()

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{
			Domain: b,
			Pos:    HookPosBufPush,
			Item:   e,
		})
	}
}

func (b *bufferImpl) wakeUp() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *bufferImpl) Pop(ctx context.Context) (interface{}, bool) {
	for {
		e, ok, closed := b.tryPop()
		if ok {
			return e, true
		}

		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-b.notify:
		}
	}
}

func (b *bufferImpl) TryPop() (interface{}, bool) {
	e, ok, _ := b.tryPop()
	return e, ok
}

func (b *bufferImpl) tryPop() (e interface{}, ok bool, closed bool) {
	b.lock.Lock()

	if len(b.elements) == 0 {
		closed = b.closed
		b.lock.Unlock()
		return nil, false, closed
	}

	e = b.elements[0]
	b.elements[0] = nil
	b.elements = b.elements[1:]
	b.lock.Unlock()

	if b.NumHooks() > 0 {
		b.InvokeHook(HookCtx{
			Domain: b,
			Pos:    HookPosBufPop,
			Item:   e,
		})
	}

	return e, true, false
}

func (b *bufferImpl) Close() {
	b.lock.Lock()
	b.closed = true
	b.lock.Unlock()

	b.wakeUp()
}

func (b *bufferImpl) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return len(b.elements)
}
