package tracing

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/tebeka/atexit"
)

type csvRecord struct {
	where string
	evt   vm.FaultEvent
}

// CSVTracer stores the page faults in a CSV file. Page table dumps are not
// recorded.
type CSVTracer struct {
	lock       sync.Mutex
	path       string
	file       *os.File
	records    []csvRecord
	bufferSize int
}

// NewCSVTracer creates a CSVTracer that writes into path.csv. An empty path
// selects a unique name.
func NewCSVTracer(path string) *CSVTracer {
	return &CSVTracer{
		path:       path,
		bufferSize: 1000,
	}
}

// Path returns the name of the CSV file.
func (t *CSVTracer) Path() string {
	return t.path + ".csv"
}

// Init creates the CSV file. It panics if the file already exists.
func (t *CSVTracer) Init() {
	if t.path == "" {
		t.path = "vmsim_faults_" + xid.New().String()
	}

	filename := t.Path()

	_, err := os.Stat(filename)
	if err == nil {
		log.Panicf("file %s already exists", filename)
	}

	file, err := os.Create(filename)
	if err != nil {
		log.Panic(err)
	}
	t.file = file

	fmt.Fprintf(file, "Where, FaultCount, AccessCount, EvictionCount, "+
		"RequestedPage, AllocatedFrame, EvictedFrame, EvictedPage, WroteBack\n")

	atexit.Register(func() {
		err := t.Close()
		if err != nil {
			log.Panic(err)
		}
	})
}

// PageFault buffers the fault.
func (t *CSVTracer) PageFault(where string, evt vm.FaultEvent) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.records = append(t.records, csvRecord{where: where, evt: evt})
	if len(t.records) >= t.bufferSize {
		t.flush()
	}
}

// PageTableDump does nothing.
func (t *CSVTracer) PageTableDump(string, vm.RegionSnapshot) {}

// Flush writes the buffered faults to the file.
func (t *CSVTracer) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.flush()
}

func (t *CSVTracer) flush() {
	if t.file == nil {
		return
	}

	for _, r := range t.records {
		fmt.Fprintf(t.file, "%s, %d, %d, %d, %d, %d, %d, %d, %t\n",
			r.where,
			r.evt.FaultCount,
			r.evt.AccessCount,
			r.evt.EvictionCount,
			r.evt.RequestedPage,
			r.evt.AllocatedFrame,
			r.evt.EvictedFrame,
			r.evt.EvictedPage,
			r.evt.WroteBack,
		)
	}

	t.records = nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (t *CSVTracer) Close() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.file == nil {
		return nil
	}

	t.flush()

	err := t.file.Close()
	t.file = nil

	return err
}
