package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	batchDispatchedSubject = "muster.batches.dispatched"
	batchConvergedSubject  = "muster.batches.converged"
)

// RunnerOptions configure a Runner. Zero values select defaults; Bus is
// optional and nil disables lifecycle events.
type RunnerOptions struct {
	PollInterval time.Duration
	MaxAttempts  int
	PollWorkers  int
	Bus          Publisher
	Logger       *log.Logger

	// Confirm, when set, is called after the availability check with the
	// reachable set, the full availability map and the unresolved specs.
	// Returning an error aborts the batch before dispatch.
	Confirm func(available []ResolvedTarget, availability map[string]bool, unresolved []TargetSpec) error
}

// Runner wires the resolution, availability, dispatch, convergence and
// aggregation stages into the single batch entry point.
type Runner struct {
	resolver   *Resolver
	checker    *AvailabilityChecker
	dispatcher *Dispatcher
	poller     *Poller
	bus        Publisher
	logger     *log.Logger
	confirm    func(available []ResolvedTarget, availability map[string]bool, unresolved []TargetSpec) error
	tracer     trace.Tracer
	now        func() time.Time
}

// NewRunner creates a runner over the inventory and execution channel
// collaborators.
func NewRunner(inv Inventory, ch Channel, opts RunnerOptions) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	resolver, err := NewResolver(inv, logger)
	if err != nil {
		return nil, err
	}
	checker, err := NewAvailabilityChecker(ch, logger)
	if err != nil {
		return nil, err
	}
	dispatcher, err := NewDispatcher(ch, logger)
	if err != nil {
		return nil, err
	}
	poller, err := NewPoller(ch, logger, PollerOptions{
		Interval:    opts.PollInterval,
		MaxAttempts: opts.MaxAttempts,
		Workers:     opts.PollWorkers,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		resolver:   resolver,
		checker:    checker,
		dispatcher: dispatcher,
		poller:     poller,
		bus:        opts.Bus,
		logger:     logger,
		confirm:    opts.Confirm,
		tracer:     otel.Tracer("muster/dispatch"),
		now:        time.Now,
	}, nil
}

// RunBatch resolves specs, checks availability, dispatches cmd to every
// reachable target and polls to convergence. The report lists every
// requested selector's fate: resolved-and-succeeded, resolved-and-failed,
// unresolved, or unavailable. Stage failures (resolution, availability,
// dispatch) abort with a nil report; an empty available set returns the
// partial report alongside EmptyBatchError.
func (r *Runner) RunBatch(ctx context.Context, specs []TargetSpec, cmd Command) (*BatchReport, error) {
	if r == nil {
		return nil, errors.New("nil runner")
	}
	if len(specs) == 0 {
		return nil, errors.New("at least one target spec is required")
	}

	runID := uuid.New()
	ctx, span := r.tracer.Start(ctx, "dispatch.run_batch", trace.WithAttributes(
		attribute.String("muster.run_id", runID.String()),
		attribute.Int("muster.requested", len(specs)),
	))
	defer span.End()

	resolved, unresolved, err := r.resolver.Resolve(ctx, specs)
	if err != nil {
		metricBatches.WithLabelValues("aborted").Inc()
		return nil, err
	}

	if len(resolved) == 0 {
		report := Aggregate(len(specs), nil, nil, nil)
		report.RunID = runID
		report.Unresolved = unresolved
		metricBatches.WithLabelValues("aborted").Inc()
		return &report, &EmptyBatchError{Requested: len(specs)}
	}

	availability, err := r.checker.Check(ctx, resolved)
	if err != nil {
		metricBatches.WithLabelValues("aborted").Inc()
		return nil, err
	}

	outcomes := make(map[string]TargetOutcome, len(resolved))
	var available []ResolvedTarget
	for _, t := range resolved {
		if availability[t.CanonicalID] {
			available = append(available, t)
			continue
		}
		outcomes[t.CanonicalID] = TargetOutcome{
			Target:        t,
			Status:        StatusUnavailable,
			Message:       "target not reachable through execution channel",
			LastCheckedAt: r.now().UTC(),
		}
	}

	if len(available) == 0 {
		report := Aggregate(len(specs), resolved, availability, outcomes)
		report.RunID = runID
		report.Unresolved = unresolved
		metricBatches.WithLabelValues("aborted").Inc()
		return &report, &EmptyBatchError{Requested: len(specs)}
	}

	if r.confirm != nil {
		if err := r.confirm(available, availability, unresolved); err != nil {
			metricBatches.WithLabelValues("aborted").Inc()
			return nil, err
		}
	}

	batch, err := r.dispatcher.Dispatch(ctx, runID, available, cmd)
	if err != nil {
		metricBatches.WithLabelValues("aborted").Inc()
		return nil, err
	}

	r.publish(ctx, batchDispatchedSubject, map[string]any{
		"run_id":   runID,
		"batch_id": batch.BatchID,
		"document": cmd.Document,
		"targets":  len(available),
	})

	start := r.now()
	polled := r.poller.Converge(ctx, batch)
	metricConvergence.Observe(r.now().Sub(start).Seconds())

	for id, out := range polled {
		outcomes[id] = out
	}

	report := Aggregate(len(specs), resolved, availability, outcomes)
	report.RunID = runID
	report.BatchID = batch.BatchID
	report.Unresolved = unresolved

	for _, out := range report.PerTarget {
		metricTargets.WithLabelValues(string(out.Status)).Inc()
	}
	metricBatches.WithLabelValues("converged").Inc()

	r.publish(ctx, batchConvergedSubject, map[string]any{
		"run_id":    runID,
		"batch_id":  batch.BatchID,
		"requested": report.Requested,
		"resolved":  report.Resolved,
		"available": report.Available,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})

	return &report, nil
}

func (r *Runner) publish(ctx context.Context, subject string, payload map[string]any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(ctx, subject, payload); err != nil {
		r.logger.Printf("WARN publish %s: %v", subject, err)
	}
}
