package tracing

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/pagesim/mem/vm/mmu"
	"github.com/sarchlab/pagesim/sim"
	"github.com/tebeka/atexit"
)

// CSVTraceWriter is a hook that stores the events into a CSV file.
type CSVTraceWriter struct {
	lock sync.Mutex
	path string
	file *os.File
	w    *csv.Writer

	events     []mmu.Event
	bufferSize int
}

// NewCSVTraceWriter creates a new CSVTraceWriter. The file is path + ".csv";
// an empty path means a generated name.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the csv file. It panics if the file already exists.
func (t *CSVTraceWriter) Init() {
	if t.path == "" {
		t.path = "pagesim_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	t.file = file
	t.w = csv.NewWriter(file)

	t.mustWrite([]string{
		"Seq", "Kind", "PID", "Page", "Frame",
		"VictimPID", "VictimPage", "Owned", "Free", "Reason",
	})

	atexit.Register(t.Close)
}

// Func buffers the event.
func (t *CSVTraceWriter) Func(ctx sim.HookCtx) {
	e, ok := eventOf(ctx)
	if !ok {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.events = append(t.events, e)
	if len(t.events) >= t.bufferSize {
		t.flushLocked()
	}
}

// Flush writes the buffered events to the file.
func (t *CSVTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flushLocked()
}

func (t *CSVTraceWriter) flushLocked() {
	if t.w == nil {
		return
	}

	for _, e := range t.events {
		victimPID, victimPage := "", ""
		if e.Evicted {
			victimPID = strconv.FormatUint(uint64(e.VictimPID), 10)
			victimPage = strconv.FormatUint(e.VictimPage, 10)
		}

		t.mustWrite([]string{
			strconv.FormatUint(e.Seq, 10),
			e.Kind.String(),
			strconv.FormatUint(uint64(e.PID), 10),
			strconv.FormatUint(e.PageNum, 10),
			strconv.Itoa(e.Frame),
			victimPID,
			victimPage,
			strconv.Itoa(e.NumOwned),
			strconv.Itoa(e.NumFree),
			e.Reason,
		})
	}

	t.events = nil

	t.w.Flush()
	if err := t.w.Error(); err != nil {
		panic(err)
	}
}

// Close flushes and closes the file.
func (t *CSVTraceWriter) Close() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.file == nil {
		return
	}

	t.flushLocked()

	err := t.file.Close()
	if err != nil {
		panic(err)
	}

	t.file = nil
	t.w = nil
}

func (t *CSVTraceWriter) mustWrite(record []string) {
	if err := t.w.Write(record); err != nil {
		panic(err)
	}
}
