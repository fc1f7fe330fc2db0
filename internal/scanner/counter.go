package scanner

import (
	"sync"
	"time"
)

// DailyCounter is the scanner's process-level daily buy-signal counter
// (spec §4.2 gate 3). It rolls over automatically at the local date
// boundary; no persistence, since a scanner restart mid-session starting
// from zero only makes the gate more permissive by at most one session's
// already-emitted count, and the executor's own daily counter backstops it.
type DailyCounter struct {
	mu    sync.Mutex
	day   string
	count int
}

func NewDailyCounter() *DailyCounter {
	return &DailyCounter{}
}

func (d *DailyCounter) rolloverLocked(now time.Time) {
	day := now.Format("2006-01-02")
	if d.day != day {
		d.day = day
		d.count = 0
	}
}

// Count returns today's running count.
func (d *DailyCounter) Count(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	return d.count
}

// Inc records one more emission today.
func (d *DailyCounter) Inc(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rolloverLocked(now)
	d.count++
}
