package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// RpsCounter counts elements and calculates the rate since the first
// Add and since the last Tick.
type RpsCounter struct {
	counter   int64
	mu        sync.Mutex
	start     time.Time
	lastTick  time.Time
	lastValue int64
	lastRps   float64
}

func NewRpsCounter() *RpsCounter {
	return &RpsCounter{}
}

func (r *RpsCounter) Add(n int) {
	if n <= 0 {
		return
	}
	atomic.AddInt64(&r.counter, int64(n))
	r.mu.Lock()
	if r.start.IsZero() {
		r.start = time.Now()
	}
	r.mu.Unlock()
}

func (r *RpsCounter) Value() int64 {
	return atomic.LoadInt64(&r.counter)
}

// Tick updates the rate since the previous Tick.
func (r *RpsCounter) Tick(now time.Time) {
	v := r.Value()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.lastTick.IsZero() {
		if d := now.Sub(r.lastTick).Seconds(); d > 0 {
			r.lastRps = float64(v-r.lastValue) / d
		}
	}
	r.lastTick = now
	r.lastValue = v
}

// LastRps returns the rate between the last two ticks.
func (r *RpsCounter) LastRps() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRps
}

// Rps returns the average rate since the first Add.
func (r *RpsCounter) Rps(now time.Time) float64 {
	r.mu.Lock()
	start := r.start
	r.mu.Unlock()
	if start.IsZero() {
		return 0
	}
	d := now.Sub(start).Seconds()
	if d <= 0 {
		return 0
	}
	return float64(r.Value()) / d
}
