package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/spycheck/pkg/admission"
	"github.com/Sternrassler/spycheck/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Sternrassler/spycheck/pkg/fanout"

// Lookuper is the remote lookup the supervisor fans out. *client.Client
// implements it.
type Lookuper interface {
	Lookup(ctx context.Context, id string) (*client.Response, error)
	// URL returns the address Lookup requests for id.
	URL(id string) string
}

// Supervisor spawns and drains one unit of work per target.
type Supervisor struct {
	lookup Lookuper
	pool   *admission.Pool
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewSupervisor creates a supervisor that gates every lookup on pool.
func NewSupervisor(lookup Lookuper, pool *admission.Pool) *Supervisor {
	return &Supervisor{
		lookup: lookup,
		pool:   pool,
		logger: log.With().Str("component", "supervisor").Logger(),
		tracer: otel.Tracer(tracerName),
	}
}

// Run fans out over targets and returns the frozen aggregate once every
// unit has completed.
func (s *Supervisor) Run(ctx context.Context, targets []Target) Aggregate {
	start := time.Now()
	defer func() {
		runDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	agg := NewAggregator(len(targets)).Collect(s.Start(ctx, targets))

	s.logger.Info().
		Int("targets", len(targets)).
		Int("found", len(agg.Successes)).
		Int("failed", agg.Failures).
		Dur("duration", time.Since(start)).
		Msg("Run complete")

	return agg
}

// Start spawns one goroutine per target and returns a channel that yields
// each outcome in completion order. The channel is closed after exactly
// len(targets) outcomes have been sent.
func (s *Supervisor) Start(ctx context.Context, targets []Target) <-chan Outcome {
	outcomes := make(chan Outcome, len(targets))

	s.logger.Info().
		Int("targets", len(targets)).
		Int("concurrency", s.pool.Capacity()).
		Msg("Starting fan-out")

	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		tasksInFlight.Inc()
		go func(target Target) {
			defer wg.Done()
			defer tasksInFlight.Dec()
			outcomes <- s.runUnit(ctx, target)
		}(target)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	return outcomes
}

// runUnit executes one unit of work. It always returns exactly one outcome.
func (s *Supervisor) runUnit(ctx context.Context, target Target) (out Outcome) {
	ctx, span := s.tracer.Start(ctx, "check", trace.WithAttributes(
		attribute.String("id", target.ID),
		attribute.String("name", target.Name),
	))
	defer span.End()

	logger := s.logger.With().Str("id", target.ID).Str("name", target.Name).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Unit of work panicked")
			out = Failed(target, fmt.Errorf("%w: %v", ErrTaskPanic, r))
		}
		recordOutcome(span, out)
	}()

	permit, err := s.pool.Acquire(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Couldn't acquire permit")
		return Failed(target, fmt.Errorf("acquire permit: %w", err))
	}
	// Release is idempotent; the deferred call only matters if Lookup panics.
	defer permit.Release()

	logger.Info().Str("url", s.lookup.URL(target.ID)).Msg("Requesting")
	resp, err := s.lookup.Lookup(ctx, target.ID)
	permit.Release()

	if err != nil {
		logger.Error().Err(err).Msg("Lookup failed")
		return Failed(target, fmt.Errorf("lookup: %w", err))
	}

	return classify(logger, target, resp)
}

// classify turns a raw response into an outcome.
func classify(logger zerolog.Logger, target Target, resp *client.Response) Outcome {
	if !resp.Success() {
		logger.Error().Int("status", resp.StatusCode).Msg("API response")
		return Failed(target, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	logger.Debug().
		Int("size", len(resp.Body)).
		Bool("from_cache", resp.FromCache).
		Msg("Got response")

	if !json.Valid(resp.Body) {
		logger.Error().Int("size", len(resp.Body)).Msg("Couldn't parse API response")
		return Failed(target, ErrMalformedPayload)
	}

	payload := make(json.RawMessage, len(resp.Body))
	copy(payload, resp.Body)

	if IsAbsent(payload) {
		logger.Info().Msg("Not found")
	} else {
		logger.Info().Msg("Found")
	}

	return Found(target, payload)
}

// recordOutcome updates metrics and the unit's span.
func recordOutcome(span trace.Span, out Outcome) {
	switch {
	case !out.IsFound():
		outcomesTotal.WithLabelValues("failed").Inc()
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	case IsAbsent(out.Payload):
		outcomesTotal.WithLabelValues("absent").Inc()
		span.SetAttributes(attribute.Bool("found", false))
	default:
		outcomesTotal.WithLabelValues("found").Inc()
		span.SetAttributes(attribute.Bool("found", true))
	}
}
