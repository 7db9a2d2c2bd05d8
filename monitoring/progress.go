package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how many cells a workload has processed. The workload
// updates it while the monitor reads it.
type ProgressBar struct {
	lock      sync.Mutex
	id        string
	name      string
	startTime time.Time
	total     uint64
	finished  uint64
}

type progressRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Fraction  float64   `json:"fraction"`
}

// IncrementFinished adds to the number of finished items.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.finished += amount
}

// Finished returns the number of finished items.
func (b *ProgressBar) Finished() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.finished
}

// Fraction returns the finished share of the total, between 0 and 1.
func (b *ProgressBar) Fraction() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.fraction()
}

func (b *ProgressBar) fraction() float64 {
	if b.total == 0 {
		return 1
	}

	f := float64(b.finished) / float64(b.total)
	if f > 1 {
		return 1
	}

	return f
}

func (b *ProgressBar) record() progressRecord {
	b.lock.Lock()
	defer b.lock.Unlock()

	return progressRecord{
		ID:        b.id,
		Name:      b.name,
		StartTime: b.startTime,
		Total:     b.total,
		Finished:  b.finished,
		Fraction:  b.fraction(),
	}
}
