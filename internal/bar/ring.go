// Package bar implements the Buy Scanner's and Price Monitor's per-code
// minute-bar aggregation (spec §4.2 "Bar aggregator"): a ring buffer of
// the last 120 one-minute bars, updated tick-by-tick and frozen at minute
// rollover. Generalized from the teacher's in-memory bookkeeping style in
// internal/watcher/watcher.go (a single mutex-guarded map keyed by
// ticker), adapted here to per-code ring buffers keyed the same way.
package bar

import (
	"sync"
	"time"

	"github.com/korea-trading-core/core/internal/model"
)

const Capacity = 120

// Ring holds the last Capacity closed one-minute bars for one stock code
// plus the bar currently being built.
type Ring struct {
	mu      sync.RWMutex
	closed  []model.MinuteBar // oldest first, len <= Capacity
	current *model.MinuteBar
}

func NewRing() *Ring {
	return &Ring{closed: make([]model.MinuteBar, 0, Capacity)}
}

// ApplyTick folds t into the ring: if t falls in the current bar's
// minute, it updates that bar in place; otherwise the current bar is
// frozen into closed (evicting the oldest if at capacity) and a new bar
// is opened for t's minute.
func (r *Ring) ApplyTick(t model.PriceTick) {
	minute := t.Timestamp.Truncate(time.Minute)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.current = &model.MinuteBar{StockCode: t.StockCode, MinuteTS: minute}
	} else if !r.current.MinuteTS.Equal(minute) {
		r.closed = append(r.closed, *r.current)
		if len(r.closed) > Capacity {
			r.closed = r.closed[len(r.closed)-Capacity:]
		}
		r.current = &model.MinuteBar{StockCode: t.StockCode, MinuteTS: minute}
	}
	r.current.ApplyTick(t)
}

// Bars returns a snapshot of the closed bars followed by the in-progress
// current bar (if any), oldest first — the view strategies and
// indicators evaluate against.
func (r *Ring) Bars() []model.MinuteBar {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.MinuteBar, len(r.closed), len(r.closed)+1)
	copy(out, r.closed)
	if r.current != nil {
		out = append(out, *r.current)
	}
	return out
}

// Len reports how many bars (closed + in-progress) are currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.closed)
	if r.current != nil {
		n++
	}
	return n
}

// Registry is the scanner/monitor's map of per-code Rings, guarded by a
// single mutex for map access only (each Ring guards its own contents).
type Registry struct {
	mu    sync.Mutex
	rings map[model.StockCode]*Ring
}

func NewRegistry() *Registry {
	return &Registry{rings: make(map[model.StockCode]*Ring)}
}

// Get returns the Ring for code, creating it on first access.
func (reg *Registry) Get(code model.StockCode) *Ring {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rings[code]
	if !ok {
		r = NewRing()
		reg.rings[code] = r
	}
	return r
}

// Closes extracts the closing prices from bars, oldest first, for
// indicator math.
func Closes(bars []model.MinuteBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.Close.Float64()
	}
	return out
}

// Highs extracts the high prices from bars, oldest first.
func Highs(bars []model.MinuteBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.High.Float64()
	}
	return out
}

// Lows extracts the low prices from bars, oldest first.
func Lows(bars []model.MinuteBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i], _ = b.Low.Float64()
	}
	return out
}

// Volumes extracts the volumes from bars, oldest first.
func Volumes(bars []model.MinuteBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}
