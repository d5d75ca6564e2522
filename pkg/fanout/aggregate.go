package fanout

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrAggregateFrozen is returned by Add once collection has finished.
var ErrAggregateFrozen = errors.New("aggregate is frozen")

// Aggregate is the run-level result. Successes are in completion order.
type Aggregate struct {
	Successes []Finding
	Failures  int
}

// Total returns the number of outcomes folded into the aggregate.
func (a Aggregate) Total() int {
	return len(a.Successes) + a.Failures
}

// Present returns the successes whose payload is not the "absent" value,
// preserving order.
func (a Aggregate) Present() []Finding {
	present := make([]Finding, 0, len(a.Successes))
	for _, f := range a.Successes {
		if !f.Absent() {
			present = append(present, f)
		}
	}
	return present
}

// SortByID orders Successes by identifier. It is an explicit post-processing
// step; the aggregator itself never reorders.
func (a *Aggregate) SortByID() {
	sort.SliceStable(a.Successes, func(i, j int) bool {
		return a.Successes[i].ID < a.Successes[j].ID
	})
}

// Aggregator folds outcomes into an Aggregate. Add is safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	agg      Aggregate
	frozen   bool
	expected int
	logger   zerolog.Logger
}

// NewAggregator creates an empty aggregator. expected is only used for
// progress logging; pass 0 when unknown.
func NewAggregator(expected int) *Aggregator {
	return &Aggregator{
		agg:      Aggregate{Successes: make([]Finding, 0, expected)},
		expected: expected,
		logger:   log.With().Str("component", "aggregator").Logger(),
	}
}

// Add folds one outcome into the aggregate.
func (a *Aggregator) Add(o Outcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		return ErrAggregateFrozen
	}

	if o.IsFound() {
		a.agg.Successes = append(a.agg.Successes, Finding{
			ID:      o.Target.ID,
			Name:    o.Target.Name,
			Payload: o.Payload,
		})
	} else {
		a.agg.Failures++
	}

	// Progress logging every 50 outcomes
	if done := a.agg.Total(); a.expected > 0 && done%50 == 0 {
		a.logger.Info().
			Int("done", done).
			Int("total", a.expected).
			Float64("progress_pct", float64(done)/float64(a.expected)*100).
			Msg("Progress")
	}

	return nil
}

// Collect drains outcomes until the channel is closed, then freezes and
// returns the aggregate.
func (a *Aggregator) Collect(outcomes <-chan Outcome) Aggregate {
	for o := range outcomes {
		// Add only fails after Freeze, which runs below.
		_ = a.Add(o)
	}
	return a.Freeze()
}

// Freeze stops further additions and returns the final aggregate.
func (a *Aggregator) Freeze() Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
	return a.snapshot()
}

// Snapshot returns a copy of the current aggregate.
func (a *Aggregator) Snapshot() Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot()
}

func (a *Aggregator) snapshot() Aggregate {
	successes := make([]Finding, len(a.agg.Successes))
	copy(successes, a.agg.Successes)
	return Aggregate{Successes: successes, Failures: a.agg.Failures}
}
