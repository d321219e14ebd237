package dispatch

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Dispatcher submits one command to all reachable targets as a single
// logical batch.
type Dispatcher struct {
	ch     Channel
	logger *log.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher bound to the provided channel.
func NewDispatcher(ch Channel, logger *log.Logger) (*Dispatcher, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{ch: ch, logger: logger, now: time.Now}, nil
}

// Dispatch submits cmd addressed to the full target set and returns the
// batch correlating all subsequent status queries. Execution is
// asynchronous. An empty target set or a rejected submission leaves no
// partial batch behind.
func (d *Dispatcher) Dispatch(ctx context.Context, runID uuid.UUID, targets []ResolvedTarget, cmd Command) (*CommandBatch, error) {
	if d == nil {
		return nil, errors.New("nil dispatcher")
	}
	if len(targets) == 0 {
		return nil, &EmptyBatchError{}
	}

	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.CanonicalID)
	}

	batchID, err := d.ch.SubmitBatch(ctx, ids, cmd)
	if err != nil {
		return nil, &DispatchError{Err: err}
	}

	// Command text may embed sensitive material; log only the shape.
	d.logger.Printf("INFO dispatched batch %s (document %q) to %d targets", batchID, cmd.Document, len(targets))

	return &CommandBatch{
		BatchID:     batchID,
		RunID:       runID,
		CommandText: cmd.Text,
		Targets:     append([]ResolvedTarget(nil), targets...),
		IssuedAt:    d.now().UTC(),
	}, nil
}
