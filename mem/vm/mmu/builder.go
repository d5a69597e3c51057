package mmu

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/replacement"
	"github.com/sarchlab/pagesim/sim"
)

// A Builder can build MMU component
type Builder struct {
	numFrames       int
	pageRange       uint64
	processes       []vm.PID
	policy          string
	victimFinder    replacement.VictimFinder
	pageTable       vm.PageTable
	requests        sim.Buffer
	faultLatency    time.Duration
	serviceDelay    time.Duration
	checkInvariants bool
	logger          *log.Logger
}

// MakeBuilder creates a new builder
func MakeBuilder() Builder {
	return Builder{
		numFrames: 4,
		pageRange: 8,
		policy:    "lru",
	}
}

// WithNumFrames sets the number of physical frames.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithPageRange sets the number of pages each process may access. Requests
// for pages outside [0, n) are dropped.
func (b Builder) WithPageRange(n uint64) Builder {
	b.pageRange = n
	return b
}

// WithProcesses sets the processes that the MMU accepts requests from.
// Requests from other processes are dropped.
func (b Builder) WithProcesses(pids ...vm.PID) Builder {
	b.processes = append([]vm.PID(nil), pids...)
	return b
}

// WithPolicy sets the replacement policy by name, "lru" or "fifo".
func (b Builder) WithPolicy(policy string) Builder {
	b.policy = policy
	return b
}

// WithVictimFinder sets the victim finder directly. It overrides WithPolicy.
func (b Builder) WithVictimFinder(vf replacement.VictimFinder) Builder {
	b.victimFinder = vf
	return b
}

// WithPageTable sets the page table that the MMU uses.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithRequests sets the buffer that the MMU consumes.
func (b Builder) WithRequests(requests sim.Buffer) Builder {
	b.requests = requests
	return b
}

// WithFaultLatency sets how long the MMU spends servicing a page fault.
func (b Builder) WithFaultLatency(d time.Duration) Builder {
	b.faultLatency = d
	return b
}

// WithServiceDelay sets how long the MMU rests after each page access.
func (b Builder) WithServiceDelay(d time.Duration) Builder {
	b.serviceDelay = d
	return b
}

// WithInvariantChecking makes the MMU verify its state after every message.
func (b Builder) WithInvariantChecking(on bool) Builder {
	b.checkInvariants = on
	return b
}

// WithLogger sets the logger for lifecycle messages.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numFrames <= 0 {
		panic(fmt.Sprintf("number of frames must be positive, got %d",
			b.numFrames))
	}

	if b.pageRange == 0 {
		panic("page range must be positive")
	}

	if b.faultLatency < 0 || b.serviceDelay < 0 {
		panic("latencies must not be negative")
	}
}

// Build returns a newly created MMU component
func (b Builder) Build(name string) *Comp {
	b.parametersMustBeValid()

	c := &Comp{
		HookableBase:    sim.NewHookableBase(),
		NamedBase:       sim.MakeNamedBase(name),
		requests:        b.requests,
		logger:          b.logger,
		faultLatency:    b.faultLatency,
		serviceDelay:    b.serviceDelay,
		pageRange:       b.pageRange,
		pageTable:       b.pageTable,
		frames:          vm.NewFrameTable(b.numFrames),
		victimFinder:    b.victimFinder,
		processes:       make(map[vm.PID]*ProcessStats),
		checkInvariants: b.checkInvariants,
	}

	if c.requests == nil {
		c.requests = sim.NewBuffer(name + ".Requests")
	}

	if c.logger == nil {
		c.logger = log.New(os.Stderr, "", 0)
	}

	if c.pageTable == nil {
		c.pageTable = vm.NewPageTable()
	}

	b.createVictimFinder(c)

	for _, pid := range b.processes {
		c.processes[pid] = &ProcessStats{PID: pid}
	}

	if c.checkInvariants {
		snapshot := c.snapshotLocked()
		c.lastConsistent = &snapshot
	}

	return c
}

func (b Builder) createVictimFinder(c *Comp) {
	if c.victimFinder != nil {
		return
	}

	vf, err := replacement.NewVictimFinder(b.policy)
	if err != nil {
		panic(err)
	}

	c.victimFinder = vf
}

// Requests returns the buffer the MMU consumes.
func (c *Comp) Requests() sim.Buffer {
	return c.requests
}
