package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/simulation"
	"github.com/sarchlab/pagesim/tracing"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a paging simulation and print a summary.",
		Long: "`run` starts the processes, the scheduler and the MMU, waits " +
			"for every process to finish, and prints the hit and fault " +
			"counts. Every flag can also be set with a " + envPrefix +
			"<FLAG> variable.",
		Args: cobra.NoArgs,
		RunE: runSimulation,
	}

	f := runCmd.Flags()
	f.Int("processes", 3, "Number of simulated processes.")
	f.Int("ref-len", 15, "Length of the reference string of each process.")
	f.Uint64("page-range", 8, "Number of pages each process may access.")
	f.Int("frames", 4, "Number of physical frames.")
	f.Uint64("seed", 42, "Seed of the reference strings and think times.")
	f.String("policy", "lru", "Page replacement policy, lru or fifo.")
	f.Int("max-active", 0,
		"Maximum number of processes running at once, 0 for no limit.")
	f.Duration("think-time", 50*time.Millisecond,
		"Minimum delay of a process between two requests.")
	f.Duration("think-jitter", 50*time.Millisecond,
		"Maximum random delay added to the think time.")
	f.Duration("fault-latency", 100*time.Millisecond,
		"Time the MMU spends on a page fault.")
	f.Duration("service-delay", 10*time.Millisecond,
		"Time the MMU rests after each request.")
	f.Duration("stagger", 20*time.Millisecond,
		"Delay between the starts of two processes.")
	f.Bool("check", false, "Check the MMU state after every request.")
	f.Bool("verify", false, "Verify the whole event trace after the run.")
	f.Bool("no-drain", false,
		"Stop the MMU as soon as every process has finished.")
	f.String("db", "", "Record the events into DB.sqlite3.")
	f.String("csv", "", "Write the events into CSV.csv.")
	f.Bool("monitor", false, "Serve the simulation state over HTTP.")
	f.Int("monitor-port", 0, "Port of the monitor, 0 for a random port.")
	f.Bool("open-browser", false, "Open the monitor in a browser.")
	f.Bool("quiet", false, "Do not print the event log.")
	f.Bool("log-buffer", false, "Log every message through the request buffer.")

	return runCmd
}

type runOptions struct {
	processes    int
	refLen       int
	pageRange    uint64
	frames       int
	seed         uint64
	policy       string
	maxActive    int
	thinkTime    time.Duration
	thinkJitter  time.Duration
	faultLatency time.Duration
	serviceDelay time.Duration
	stagger      time.Duration
	check        bool
	verify       bool
	noDrain      bool
	db           string
	csv          string
	monitor      bool
	monitorPort  int
	openBrowser  bool
	quiet        bool
	logBuffer    bool
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	f := cmd.Flags()
	o := runOptions{}

	errs := []error{}
	collect := func(err error) {
		errs = append(errs, err)
	}

	var err error
	o.processes, err = f.GetInt("processes")
	collect(err)
	o.refLen, err = f.GetInt("ref-len")
	collect(err)
	o.pageRange, err = f.GetUint64("page-range")
	collect(err)
	o.frames, err = f.GetInt("frames")
	collect(err)
	o.seed, err = f.GetUint64("seed")
	collect(err)
	o.policy, err = f.GetString("policy")
	collect(err)
	o.maxActive, err = f.GetInt("max-active")
	collect(err)
	o.thinkTime, err = f.GetDuration("think-time")
	collect(err)
	o.thinkJitter, err = f.GetDuration("think-jitter")
	collect(err)
	o.faultLatency, err = f.GetDuration("fault-latency")
	collect(err)
	o.serviceDelay, err = f.GetDuration("service-delay")
	collect(err)
	o.stagger, err = f.GetDuration("stagger")
	collect(err)
	o.check, err = f.GetBool("check")
	collect(err)
	o.verify, err = f.GetBool("verify")
	collect(err)
	o.noDrain, err = f.GetBool("no-drain")
	collect(err)
	o.db, err = f.GetString("db")
	collect(err)
	o.csv, err = f.GetString("csv")
	collect(err)
	o.monitor, err = f.GetBool("monitor")
	collect(err)
	o.monitorPort, err = f.GetInt("monitor-port")
	collect(err)
	o.openBrowser, err = f.GetBool("open-browser")
	collect(err)
	o.quiet, err = f.GetBool("quiet")
	collect(err)
	o.logBuffer, err = f.GetBool("log-buffer")
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return o, err
	}

	return o, o.validate()
}

func (o runOptions) validate() error {
	switch {
	case o.processes <= 0:
		return fmt.Errorf("--processes must be positive, got %d", o.processes)
	case o.refLen < 0:
		return fmt.Errorf("--ref-len must not be negative, got %d", o.refLen)
	case o.pageRange == 0:
		return errors.New("--page-range must be positive")
	case o.frames <= 0:
		return fmt.Errorf("--frames must be positive, got %d", o.frames)
	case o.policy != "lru" && o.policy != "fifo":
		return fmt.Errorf("--policy must be lru or fifo, got %q", o.policy)
	case o.maxActive < 0:
		return fmt.Errorf("--max-active must not be negative, got %d",
			o.maxActive)
	case o.thinkTime < 0 || o.thinkJitter < 0 || o.faultLatency < 0 ||
		o.serviceDelay < 0 || o.stagger < 0:
		return errors.New("durations must not be negative")
	case o.openBrowser && !o.monitor:
		return errors.New("--open-browser requires --monitor")
	}

	return nil
}

func (o runOptions) builder(logger *log.Logger) simulation.Builder {
	b := simulation.MakeBuilder().
		WithNumProcesses(o.processes).
		WithRefLength(o.refLen).
		WithPageRange(o.pageRange).
		WithNumFrames(o.frames).
		WithSeed(o.seed).
		WithPolicy(o.policy).
		WithMaxActive(o.maxActive).
		WithThinkTime(o.thinkTime, o.thinkJitter).
		WithFaultLatency(o.faultLatency).
		WithServiceDelay(o.serviceDelay).
		WithStagger(o.stagger).
		WithInvariantChecking(o.check).
		WithLogger(logger)

	if o.verify {
		b = b.WithTraceCollection()
	}

	if o.logBuffer {
		b = b.WithBufferLogging()
	}

	if o.noDrain {
		b = b.WithoutDrain()
	}

	if o.db != "" {
		b = b.WithDataRecorder(o.db)
	}

	if o.monitor {
		b = b.WithMonitor(o.monitorPort)
	}

	if o.openBrowser {
		b = b.WithBrowser()
	}

	return b
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	o, err := readRunOptions(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	logger := log.New(cmd.ErrOrStderr(), "", 0)
	if o.quiet {
		logger = log.New(io.Discard, "", 0)
	}

	b := o.builder(logger)

	var csvWriter *tracing.CSVTraceWriter
	if o.csv != "" {
		csvWriter = tracing.NewCSVTraceWriter(o.csv)
		csvWriter.Init()
		defer csvWriter.Close()

		b = b.WithTracer(csvWriter)
	}

	s := b.Build("Sim")
	defer s.Terminate()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, runErr := s.Run(ctx)

	var violation *mmu.InvariantViolation
	if errors.As(runErr, &violation) {
		printViolation(out, violation)
		return runErr
	}

	if err := report.Print(out); err != nil {
		return err
	}

	if o.verify {
		summary, err := tracing.CheckTrace(
			report.Trace, o.frames, o.policy == "lru")
		if err != nil {
			return fmt.Errorf("trace verification failed: %w", err)
		}

		fmt.Fprintf(out, "Trace verified: %d events, %d faults, %d evictions\n",
			len(report.Trace), summary.Faults, summary.Evictions)
	}

	return runErr
}

func printViolation(w io.Writer, v *mmu.InvariantViolation) {
	fmt.Fprintf(w, "Simulation aborted: %s\n", v)

	if v.LastConsistent == nil {
		return
	}

	fmt.Fprintln(w, "Last consistent frames:")
	for _, f := range v.LastConsistent.Frames {
		if !f.Owned {
			fmt.Fprintf(w, "  Frame %d: free\n", f.Frame)
			continue
		}

		fmt.Fprintf(w, "  Frame %d: Process %d Page %d\n",
			f.Frame, f.Owner.PID, f.Owner.PageNum)
	}
}
