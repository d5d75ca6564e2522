// Package admission implements the counting permit pool that bounds how many
// lookups are in flight at once.
package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed is returned by Acquire once the pool has been torn down.
	ErrPoolClosed = errors.New("permit pool closed")
)

// Stats is a snapshot of pool activity.
type Stats struct {
	Capacity      int
	InUse         int64
	PeakInUse     int64
	TotalAcquired int64
	TotalReleased int64
	TotalWait     time.Duration
}

// Pool is a fixed-capacity counting semaphore.
type Pool struct {
	slots     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	inUse         atomic.Int64
	peakInUse     atomic.Int64
	totalAcquired atomic.Int64
	totalReleased atomic.Int64
	totalWaitNs   atomic.Int64
}

// NewPool creates a pool with the given capacity. Capacities below 1 are
// raised to 1.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = 1
	}

	permitsCapacity.Set(float64(capacity))

	return &Pool{
		slots:  make(chan struct{}, capacity),
		closed: make(chan struct{}),
	}
}

// Permit represents one slot taken from a Pool. It must be released exactly
// once; further calls to Release are no-ops.
type Permit struct {
	pool *Pool
	once sync.Once
}

// Acquire blocks until a slot is free, the pool is closed or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (*Permit, error) {
	// A closed pool never hands out slots, even if one is free.
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	start := time.Now()

	select {
	case p.slots <- struct{}{}:
	case <-p.closed:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire permit: %w", ctx.Err())
	}

	wait := time.Since(start)
	p.totalWaitNs.Add(wait.Nanoseconds())
	p.totalAcquired.Add(1)
	permitWaitSeconds.Observe(wait.Seconds())

	current := p.inUse.Add(1)
	p.updatePeak(current)
	permitsInUse.Set(float64(current))

	return &Permit{pool: p}, nil
}

// Release returns the slot to the pool and wakes at most one waiter.
func (pm *Permit) Release() {
	if pm == nil {
		return
	}
	pm.once.Do(func() {
		p := pm.pool
		current := p.inUse.Add(-1)
		p.totalReleased.Add(1)
		permitsInUse.Set(float64(current))
		<-p.slots
	})
}

// Close tears the pool down. Pending and future Acquire calls fail with
// ErrPoolClosed; permits already handed out can still be released.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}

// Capacity returns the fixed number of slots.
func (p *Pool) Capacity() int {
	return cap(p.slots)
}

// InUse returns the number of acquired but unreleased permits.
func (p *Pool) InUse() int64 {
	return p.inUse.Load()
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Capacity:      p.Capacity(),
		InUse:         p.inUse.Load(),
		PeakInUse:     p.peakInUse.Load(),
		TotalAcquired: p.totalAcquired.Load(),
		TotalReleased: p.totalReleased.Load(),
		TotalWait:     time.Duration(p.totalWaitNs.Load()),
	}
}

// updatePeak records current as the new peak if it is higher.
func (p *Pool) updatePeak(current int64) {
	for {
		peak := p.peakInUse.Load()
		if current <= peak {
			return
		}
		if p.peakInUse.CompareAndSwap(peak, current) {
			return
		}
	}
}
