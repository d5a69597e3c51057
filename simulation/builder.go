package simulation

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/xid"
	"github.com/sarchlab/pagesim/datarecording"
	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/monitoring"
	"github.com/sarchlab/pagesim/process"
	"github.com/sarchlab/pagesim/scheduler"
	"github.com/sarchlab/pagesim/sim"
	"github.com/sarchlab/pagesim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	numProcesses    int
	refLength       int
	pageRange       uint64
	numFrames       int
	seed            uint64
	stagger         time.Duration
	thinkBase       time.Duration
	thinkJitter     time.Duration
	faultLatency    time.Duration
	serviceDelay    time.Duration
	policy          string
	maxActive       int
	checkInvariants bool
	collectTrace    bool
	logBuffer       bool
	logger          *log.Logger
	tracers         []sim.Hook
	dbOn            bool
	dbPath          string
	monitorOn       bool
	monitorPort     int
	openBrowser     bool
	drain           bool
}

// MakeBuilder creates a new builder. The defaults run 3 processes with 15
// references each over 8 pages against 4 frames, with the timing of a
// classroom demo.
func MakeBuilder() Builder {
	return Builder{
		numProcesses: 3,
		refLength:    15,
		pageRange:    8,
		numFrames:    4,
		seed:         42,
		stagger:      20 * time.Millisecond,
		thinkBase:    50 * time.Millisecond,
		thinkJitter:  50 * time.Millisecond,
		faultLatency: 100 * time.Millisecond,
		serviceDelay: 10 * time.Millisecond,
		policy:       "lru",
		drain:        true,
	}
}

// WithNumProcesses sets the number of simulated processes.
func (b Builder) WithNumProcesses(n int) Builder {
	b.numProcesses = n
	return b
}

// WithRefLength sets the length of the reference string of every process.
func (b Builder) WithRefLength(n int) Builder {
	b.refLength = n
	return b
}

// WithPageRange sets the number of pages each process may access.
func (b Builder) WithPageRange(n uint64) Builder {
	b.pageRange = n
	return b
}

// WithNumFrames sets the number of physical frames.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithSeed sets the seed of the reference strings and the think times.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithStagger sets the delay between the starts of two processes.
func (b Builder) WithStagger(d time.Duration) Builder {
	b.stagger = d
	return b
}

// WithThinkTime sets the delay of a process after each request to base plus a
// random duration in [0, jitter).
func (b Builder) WithThinkTime(base, jitter time.Duration) Builder {
	b.thinkBase = base
	b.thinkJitter = jitter
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

// WithoutDelays removes every modeled delay. The interleaving of the processes
// is then up to the Go scheduler.
func (b Builder) WithoutDelays() Builder {
	b.stagger = 0
	b.thinkBase = 0
	b.thinkJitter = 0
	b.faultLatency = 0
	b.serviceDelay = 0

	return b
}

// WithPolicy sets the page replacement policy, "lru" or "fifo".
func (b Builder) WithPolicy(policy string) Builder {
	b.policy = policy
	return b
}

// WithMaxActive limits how many processes may run at the same time. Zero
// means no limit.
func (b Builder) WithMaxActive(n int) Builder {
	b.maxActive = n
	return b
}

// WithInvariantChecking makes the MMU verify its state after every request.
func (b Builder) WithInvariantChecking(on bool) Builder {
	b.checkInvariants = on
	return b
}

// WithTraceCollection keeps every MMU event in the report.
func (b Builder) WithTraceCollection() Builder {
	b.collectTrace = true
	return b
}

// WithBufferLogging logs every message pushed into or popped from the request
// buffer.
func (b Builder) WithBufferLogging() Builder {
	b.logBuffer = true
	return b
}

// WithLogger sets the logger of every component, including the event log.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

// WithTracer adds a hook to the MMU.
func (b Builder) WithTracer(hook sim.Hook) Builder {
	b.tracers = append(append([]sim.Hook(nil), b.tracers...), hook)
	return b
}

// WithDataRecorder records the MMU events into path + ".sqlite3". An empty
// path means a generated name.
func (b Builder) WithDataRecorder(path string) Builder {
	b.dbOn = true
	b.dbPath = path

	return b
}

// WithMonitor starts the monitoring server on the given port while the
// simulation runs. Port 0 means a random port.
func (b Builder) WithMonitor(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithBrowser opens the monitor in a browser.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithoutDrain makes the simulation stop the MMU as soon as every process has
// finished, leaving unhandled requests in the buffer.
func (b Builder) WithoutDrain() Builder {
	b.drain = false
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.numProcesses <= 0 {
		panic(fmt.Sprintf("number of processes must be positive, got %d",
			b.numProcesses))
	}

	if b.refLength < 0 {
		panic(fmt.Sprintf("reference length must not be negative, got %d",
			b.refLength))
	}

	if b.maxActive < 0 {
		panic(fmt.Sprintf("max active processes must not be negative, got %d",
			b.maxActive))
	}

	if b.stagger < 0 {
		panic("stagger must not be negative")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build(name string) *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		NamedBase:  sim.MakeNamedBase(name),
		id:         xid.New().String(),
		stagger:    b.stagger,
		drain:      b.drain,
		logger:     b.logger,
		references: make(map[vm.PID][]uint64),
	}

	if s.logger == nil {
		s.logger = log.New(os.Stderr, "", 0)
	}

	s.requests = sim.NewBuffer(name + ".Requests")
	if b.logBuffer {
		s.requests.AcceptHook(tracing.NewBufferMsgLogger(s.logger))
	}
	s.tracker = scheduler.NewTracker(
		name+".Scheduler", b.admissionPolicy(), s.logger)
	s.engine = b.buildEngine(name, s.requests, s.logger)

	b.attachTracers(s)

	if b.monitorOn {
		b.createMonitor(s)
	}

	b.buildGenerators(name, s)

	return s
}

func (b Builder) admissionPolicy() scheduler.AdmissionPolicy {
	if b.maxActive > 0 {
		return scheduler.NewMaxActivePolicy(b.maxActive)
	}

	return scheduler.PassThroughPolicy{}
}

func (b Builder) pids() []vm.PID {
	pids := make([]vm.PID, b.numProcesses)
	for i := range pids {
		pids[i] = vm.PID(i)
	}

	return pids
}

func (b Builder) buildEngine(
	name string,
	requests sim.Buffer,
	logger *log.Logger,
) *mmu.Comp {
	return mmu.MakeBuilder().
		WithNumFrames(b.numFrames).
		WithPageRange(b.pageRange).
		WithProcesses(b.pids()...).
		WithPolicy(b.policy).
		WithRequests(requests).
		WithFaultLatency(b.faultLatency).
		WithServiceDelay(b.serviceDelay).
		WithInvariantChecking(b.checkInvariants).
		WithLogger(logger).
		Build(name + ".MMU")
}

func (b Builder) attachTracers(s *Simulation) {
	s.engine.AcceptHook(tracing.NewEventLogger(s.logger))

	if b.collectTrace {
		s.collector = tracing.NewEventCollector()
		s.engine.AcceptHook(s.collector)
	}

	for _, t := range b.tracers {
		s.engine.AcceptHook(t)
	}

	if b.dbOn {
		s.dataRecorder = datarecording.New(b.dbPath)
		s.dbTracer = tracing.NewDBTracer(s.dataRecorder, "")
		s.engine.AcceptHook(s.dbTracer)
	}
}

func (b Builder) createMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
	if b.openBrowser {
		s.monitor.WithBrowser()
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterScheduler(s.tracker)
	s.monitor.RegisterComponent(s.engine)
	s.monitor.RegisterComponent(s.tracker)

	s.progress = &progressHook{
		monitor: s.monitor,
		bars:    make(map[vm.PID]*monitoring.ProgressBar),
	}
	s.engine.AcceptHook(s.progress)
}

func (b Builder) buildGenerators(name string, s *Simulation) {
	for _, pid := range b.pids() {
		procName := fmt.Sprintf("%s.Process[%d]", name, pid)

		pb := process.MakeBuilder().
			WithPID(pid).
			WithLength(b.refLength).
			WithPageRange(b.pageRange).
			WithSeed(b.seed).
			WithThinkTime(b.thinkBase, b.thinkJitter).
			WithOutput(s.requests).
			WithNotifier(s.tracker).
			WithAdmitter(s.tracker).
			WithLogger(s.logger)

		if s.monitor != nil {
			bar := s.monitor.CreateProgressBar(procName, uint64(b.refLength))
			s.progress.bars[pid] = bar
			pb = pb.WithProgress(bar)
		}

		g := pb.Build(procName)
		s.generators = append(s.generators, g)
		s.references[pid] = g.References()

		if s.monitor != nil {
			s.monitor.RegisterComponent(g)
		}
	}
}

// BuildReplayDriver builds a single-threaded driver that feeds the same
// reference strings as the simulation to a fresh MMU, one reference per
// process in turn.
func (b Builder) BuildReplayDriver(name string) *ReplayDriver {
	b.parametersMustBeValid()

	logger := b.logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	engine := mmu.MakeBuilder().
		WithNumFrames(b.numFrames).
		WithPageRange(b.pageRange).
		WithProcesses(b.pids()...).
		WithPolicy(b.policy).
		WithInvariantChecking(b.checkInvariants).
		WithLogger(logger).
		Build(name + ".MMU")

	engine.AcceptHook(tracing.NewEventLogger(logger))
	for _, t := range b.tracers {
		engine.AcceptHook(t)
	}

	references := make(map[vm.PID][]uint64)
	for _, pid := range b.pids() {
		references[pid] = process.ReferencesFor(
			b.seed, pid, b.refLength, b.pageRange)
	}

	return NewReplayDriver(engine, references)
}
