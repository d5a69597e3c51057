package process

import (
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/sim"
)

// A Builder can build generators.
type Builder struct {
	pid        vm.PID
	length     int
	pageRange  uint64
	seed       uint64
	references []uint64
	thinkBase  time.Duration
	thinkRange time.Duration
	output     sim.Buffer
	notifier   ReadinessNotifier
	admitter   Admitter
	progress   Progress
	logger     *log.Logger
}

// MakeBuilder creates a builder with the default settings: 15 references over
// 8 pages, and a think time between 50ms and 100ms.
func MakeBuilder() Builder {
	return Builder{
		length:     15,
		pageRange:  8,
		thinkBase:  50 * time.Millisecond,
		thinkRange: 50 * time.Millisecond,
	}
}

// WithPID sets the process ID.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// WithLength sets the length of the random reference string.
func (b Builder) WithLength(n int) Builder {
	b.length = n
	return b
}

// WithPageRange sets the number of distinct pages the process draws from.
func (b Builder) WithPageRange(n uint64) Builder {
	b.pageRange = n
	return b
}

// WithSeed sets the seed of the reference string and the think times.
func (b Builder) WithSeed(seed uint64) Builder {
	b.seed = seed
	return b
}

// WithReferences sets an explicit reference string instead of a random one.
func (b Builder) WithReferences(refs []uint64) Builder {
	b.references = append([]uint64(nil), refs...)
	return b
}

// WithThinkTime sets the delay after each request to base plus a uniformly
// random duration in [0, jitter).
func (b Builder) WithThinkTime(base, jitter time.Duration) Builder {
	b.thinkBase = base
	b.thinkRange = jitter
	return b
}

// WithOutput sets the buffer that the requests are pushed into.
func (b Builder) WithOutput(output sim.Buffer) Builder {
	b.output = output
	return b
}

// WithNotifier sets who is told when a request is ready.
func (b Builder) WithNotifier(n ReadinessNotifier) Builder {
	b.notifier = n
	return b
}

// WithAdmitter sets who decides when the process may start.
func (b Builder) WithAdmitter(a Admitter) Builder {
	b.admitter = a
	return b
}

// WithProgress sets the progress tracker of the process.
func (b Builder) WithProgress(p Progress) Builder {
	b.progress = p
	return b
}

// WithLogger sets the logger for lifecycle messages.
func (b Builder) WithLogger(logger *log.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.output == nil {
		panic("generator output is not set")
	}

	if b.references == nil {
		if b.length < 0 {
			panic(fmt.Sprintf("reference length must not be negative, got %d",
				b.length))
		}

		if b.pageRange == 0 {
			panic("page range must be positive")
		}
	}

	if b.thinkBase < 0 || b.thinkRange < 0 {
		panic("think time must not be negative")
	}
}

// Build creates a generator. The reference string is drawn here, so it only
// depends on the seed and the PID.
func (b Builder) Build(name string) *Generator {
	b.parametersMustBeValid()

	rng := rand.New(rand.NewPCG(b.seed, uint64(b.pid)))

	g := &Generator{
		NamedBase:  sim.MakeNamedBase(name),
		pid:        b.pid,
		references: b.references,
		thinkBase:  b.thinkBase,
		thinkRange: b.thinkRange,
		rng:        rng,
		output:     b.output,
		notifier:   b.notifier,
		admitter:   b.admitter,
		progress:   b.progress,
		logger:     b.logger,
	}

	if g.references == nil {
		g.references = GenerateReferences(rng, b.length, b.pageRange)
	}

	if g.notifier == nil {
		g.notifier = noopNotifier{}
	}

	if g.admitter == nil {
		g.admitter = noopAdmitter{}
	}

	if g.logger == nil {
		g.logger = log.New(os.Stderr, "", 0)
	}

	return g
}

// ReferencesFor returns the reference string that a generator built with the
// same seed, PID, length and page range issues.
func ReferencesFor(seed uint64, pid vm.PID, n int, pageRange uint64) []uint64 {
	rng := rand.New(rand.NewPCG(seed, uint64(pid)))
	return GenerateReferences(rng, n, pageRange)
}

// GenerateReferences draws n page numbers uniformly from [0, pageRange).
func GenerateReferences(rng *rand.Rand, n int, pageRange uint64) []uint64 {
	refs := make([]uint64, n)
	for i := range refs {
		refs[i] = rng.Uint64N(pageRange)
	}

	return refs
}
