package main

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/process"
	"github.com/sarchlab/pagesim/simulation"
	"github.com/spf13/cobra"
)

func newCompareCmd() *cobra.Command {
	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the FIFO and LRU page faults over a range of frames.",
		Long: "`compare` draws the reference strings once and replays them " +
			"through a fresh FIFO MMU and a fresh LRU MMU for every frame " +
			"count in the range, then prints the faults of both policies.",
		Args: cobra.NoArgs,
		RunE: comparePolicies,
	}

	f := compareCmd.Flags()
	f.Int("processes", 1, "Number of simulated processes.")
	f.Int("ref-len", 30, "Length of the reference string of each process.")
	f.Uint64("page-range", 10, "Number of pages each process may access.")
	f.Uint64("seed", 42, "Seed of the reference strings.")
	f.Int("min-frames", 1, "Smallest number of physical frames.")
	f.Int("max-frames", 7, "Largest number of physical frames.")
	f.Bool("log-events", false, "Print the event log of every replay.")

	return compareCmd
}

type compareOptions struct {
	processes int
	refLen    int
	pageRange uint64
	seed      uint64
	minFrames int
	maxFrames int
	logEvents bool
}

func readCompareOptions(cmd *cobra.Command) (compareOptions, error) {
	f := cmd.Flags()
	o := compareOptions{}

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
	o.seed, err = f.GetUint64("seed")
	collect(err)
	o.minFrames, err = f.GetInt("min-frames")
	collect(err)
	o.maxFrames, err = f.GetInt("max-frames")
	collect(err)
	o.logEvents, err = f.GetBool("log-events")
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return o, err
	}

	return o, o.validate()
}

func (o compareOptions) validate() error {
	switch {
	case o.processes <= 0:
		return fmt.Errorf("--processes must be positive, got %d", o.processes)
	case o.refLen < 0:
		return fmt.Errorf("--ref-len must not be negative, got %d", o.refLen)
	case o.pageRange == 0:
		return errors.New("--page-range must be positive")
	case o.minFrames <= 0:
		return fmt.Errorf("--min-frames must be positive, got %d",
			o.minFrames)
	case o.maxFrames < o.minFrames:
		return fmt.Errorf("--max-frames must not be below --min-frames, "+
			"got %d < %d", o.maxFrames, o.minFrames)
	}

	return nil
}

func comparePolicies(cmd *cobra.Command, _ []string) error {
	o, err := readCompareOptions(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	logger := log.New(io.Discard, "", 0)
	if o.logEvents {
		logger = log.New(cmd.ErrOrStderr(), "", 0)
	}

	b := simulation.MakeBuilder().
		WithoutDelays().
		WithNumProcesses(o.processes).
		WithRefLength(o.refLen).
		WithPageRange(o.pageRange).
		WithSeed(o.seed).
		WithLogger(logger)

	printReferences(out, o)

	rows, err := b.ComparePolicies("Compare", o.minFrames, o.maxFrames)
	if err != nil {
		return err
	}

	return simulation.PrintComparison(out, rows)
}

func printReferences(w io.Writer, o compareOptions) {
	fmt.Fprintln(w, "Reference strings:")
	for i := 0; i < o.processes; i++ {
		pid := vm.PID(i)
		fmt.Fprintf(w, "  Process %d: %v\n", pid,
			process.ReferencesFor(o.seed, pid, o.refLen, o.pageRange))
	}

	fmt.Fprintln(w)
}
