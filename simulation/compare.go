package simulation

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// A PolicyComparison holds the page faults of both replacement policies on
// the same references with the same number of frames.
type PolicyComparison struct {
	Frames     int
	FIFOFaults uint64
	LRUFaults  uint64
}

// ComparePolicies replays the reference strings of the builder through a
// fresh FIFO MMU and a fresh LRU MMU for every frame count from minFrames to
// maxFrames. The policy and the frame count set on the builder are ignored.
func (b Builder) ComparePolicies(
	name string,
	minFrames, maxFrames int,
) ([]PolicyComparison, error) {
	if minFrames <= 0 || maxFrames < minFrames {
		return nil, fmt.Errorf("invalid frame range [%d, %d]",
			minFrames, maxFrames)
	}

	rows := make([]PolicyComparison, 0, maxFrames-minFrames+1)
	for frames := minFrames; frames <= maxFrames; frames++ {
		fifo, err := b.countFaults(name, frames, "fifo")
		if err != nil {
			return rows, err
		}

		lru, err := b.countFaults(name, frames, "lru")
		if err != nil {
			return rows, err
		}

		rows = append(rows, PolicyComparison{
			Frames:     frames,
			FIFOFaults: fifo,
			LRUFaults:  lru,
		})
	}

	return rows, nil
}

func (b Builder) countFaults(
	name string,
	frames int,
	policy string,
) (uint64, error) {
	driverName := fmt.Sprintf("%s.%s[%d]",
		name, strings.ToUpper(policy), frames)
	d := b.WithNumFrames(frames).WithPolicy(policy).
		BuildReplayDriver(driverName)

	report, err := d.Run()

	return report.Stats.Faults, err
}

// PrintComparison writes the comparison as a table.
func PrintComparison(w io.Writer, rows []PolicyComparison) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "Frames\tFIFO faults\tLRU faults\t\n")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t\n", r.Frames, r.FIFOFaults, r.LRUFaults)
	}

	return tw.Flush()
}
