package simulation

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/sarchlab/pagesim/mem/vm"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/scheduler"
)

// A RunReport is the outcome of one run.
type RunReport struct {
	ID         string
	Stats      mmu.Stats
	References map[vm.PID][]uint64
	Final      mmu.Snapshot
	Ready      []scheduler.ReadyCount
	Trace      []mmu.Event

	// Undrained is the number of requests left unhandled in the buffer.
	Undrained int
	Duration  time.Duration
}

// FaultRate returns the share of requests that faulted.
func (r RunReport) FaultRate() float64 {
	if r.Stats.Requests == 0 {
		return 0
	}

	return float64(r.Stats.Faults) / float64(r.Stats.Requests)
}

// Print writes a human readable summary.
func (r RunReport) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "PID\tRequests\tHits\tFaults\tEvicted\tFinished\t\n")
	for _, p := range r.Stats.Processes {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%t\t\n",
			p.PID, p.Requests, p.Hits, p.Faults, p.Evicted, p.Finished)
	}
	fmt.Fprintf(tw, "all\t%d\t%d\t%d\t%d\t%d/%d\t\n",
		r.Stats.Requests, r.Stats.Hits, r.Stats.Faults, r.Stats.Evictions,
		r.Stats.Completed, len(r.Stats.Processes))

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nFault rate: %.2f%%, dropped: %d, undrained: %d, took %s\n",
		100*r.FaultRate(), r.Stats.Dropped, r.Undrained,
		r.Duration.Round(time.Millisecond))

	fmt.Fprintln(w, "Final frames:")
	for _, f := range r.Final.Frames {
		if !f.Owned {
			fmt.Fprintf(w, "  Frame %d: free\n", f.Frame)
			continue
		}

		fmt.Fprintf(w, "  Frame %d: Process %d Page %d\n",
			f.Frame, f.Owner.PID, f.Owner.PageNum)
	}

	pids := make([]vm.PID, 0, len(r.References))
	for pid := range r.References {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	fmt.Fprintln(w, "Reference strings:")
	for _, pid := range pids {
		fmt.Fprintf(w, "  Process %d: %v\n", pid, r.References[pid])
	}

	return nil
}
