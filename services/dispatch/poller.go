package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	// DefaultPollInterval and DefaultMaxAttempts give the historical
	// five-minute convergence ceiling.
	DefaultPollInterval = 10 * time.Second
	DefaultMaxAttempts  = 30
	DefaultPollWorkers  = 8

	// maxDetailLen caps channel error detail carried into outcome
	// messages. Channel output can echo command payloads.
	maxDetailLen = 256
)

// PollerOptions tune the convergence loop. Zero values select defaults.
type PollerOptions struct {
	Interval    time.Duration
	MaxAttempts int
	Workers     int
}

// Poller drives every dispatched target to a terminal status by repeated
// invocation-status queries, bounded by an attempt budget.
type Poller struct {
	ch          Channel
	logger      *log.Logger
	interval    time.Duration
	maxAttempts int
	workers     int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) bool
}

// NewPoller creates a poller bound to the provided channel.
func NewPoller(ch Channel, logger *log.Logger, opts PollerOptions) (*Poller, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultPollWorkers
	}
	return &Poller{
		ch:          ch,
		logger:      logger,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		workers:     opts.Workers,
		now:         time.Now,
		sleep:       sleepCtx,
	}, nil
}

type pollResult struct {
	id     string
	status InvocationStatus
	err    error
}

// Converge polls per-target invocation status until every target is
// terminal or the attempt budget is exhausted. Targets whose status never
// becomes terminal are marked timed out; on cancellation every non-terminal
// target is marked timed out and the map is returned immediately. Each
// target's result depends only on its own observed statuses, never on
// sibling targets.
func (p *Poller) Converge(ctx context.Context, batch *CommandBatch) map[string]TargetOutcome {
	outcomes := make(map[string]TargetOutcome, len(batch.Targets))
	for _, t := range batch.Targets {
		outcomes[t.CanonicalID] = TargetOutcome{Target: t, Status: StatusPending}
	}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			if !p.sleep(ctx, p.interval) {
				p.markNonTerminal(outcomes, "convergence cancelled before terminal status")
				return outcomes
			}
		}

		pending := nonTerminalIDs(outcomes)
		if len(pending) == 0 {
			return outcomes
		}

		metricPollRounds.Inc()
		p.pollRound(ctx, batch.BatchID, pending, outcomes)

		if ctx.Err() != nil {
			p.markNonTerminal(outcomes, "convergence cancelled before terminal status")
			return outcomes
		}

		remaining := len(nonTerminalIDs(outcomes))
		p.logger.Printf("INFO poll round %d/%d: %d of %d targets pending",
			attempt, p.maxAttempts, remaining, len(outcomes))
		if remaining == 0 {
			return outcomes
		}
	}

	p.markNonTerminal(outcomes, fmt.Sprintf("no terminal status after %d attempts", p.maxAttempts))
	return outcomes
}

// pollRound queries every pending target concurrently with bounded
// parallelism and merges results under a single writer.
func (p *Poller) pollRound(ctx context.Context, batchID string, pending []string, outcomes map[string]TargetOutcome) {
	results := make(chan pollResult, len(pending))
	sem := make(chan struct{}, p.workers)

	var wg sync.WaitGroup
	for _, id := range pending {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			status, err := p.ch.InvocationStatus(ctx, batchID, id)
			results <- pollResult{id: id, status: status, err: err}
		}(id)
	}
	wg.Wait()
	close(results)

	for res := range results {
		p.applyResult(outcomes, res)
	}
}

func (p *Poller) applyResult(outcomes map[string]TargetOutcome, res pollResult) {
	out, ok := outcomes[res.id]
	if !ok || out.Status.Terminal() {
		return
	}
	out.LastCheckedAt = p.now().UTC()

	switch {
	case res.err != nil && errors.Is(res.err, ErrTargetNotRegistered):
		out.Status = StatusError
		out.Message = "target not registered with execution channel"
	case res.err != nil:
		// Transient query failure: status unchanged, retried next round.
		out.Message = "status query failed: " + truncateDetail(res.err.Error())
	default:
		out.Status, out.Message = mapInvocationStatus(res.status)
	}

	outcomes[res.id] = out
}

// mapInvocationStatus translates the channel's raw status vocabulary into
// the outcome state machine.
func mapInvocationStatus(raw InvocationStatus) (Status, string) {
	switch raw.Code {
	case "Success":
		return StatusSucceeded, "command completed"
	case "Failed", "Cancelled", "TimedOut":
		detail := truncateDetail(raw.Detail)
		if detail == "" {
			detail = fmt.Sprintf("channel reported %s", raw.Code)
		}
		return StatusFailed, detail
	case "Pending":
		return StatusPending, ""
	case "InProgress", "Delayed", "Cancelling":
		return StatusInProgress, ""
	default:
		return StatusError, fmt.Sprintf("unrecognized channel status %q", raw.Code)
	}
}

func (p *Poller) markNonTerminal(outcomes map[string]TargetOutcome, message string) {
	for id, out := range outcomes {
		if out.Status.Terminal() {
			continue
		}
		out.Status = StatusTimedOut
		out.Message = message
		out.LastCheckedAt = p.now().UTC()
		outcomes[id] = out
	}
}

func nonTerminalIDs(outcomes map[string]TargetOutcome) []string {
	var ids []string
	for id, out := range outcomes {
		if !out.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
