package dispatch

import (
	"context"
	"errors"
	"log"
)

// AvailabilityChecker classifies resolved targets as reachable or not by
// intersecting them with the execution channel's registration listing.
type AvailabilityChecker struct {
	ch     Channel
	logger *log.Logger
}

// NewAvailabilityChecker creates a checker bound to the provided channel.
func NewAvailabilityChecker(ch Channel, logger *log.Logger) (*AvailabilityChecker, error) {
	if ch == nil {
		return nil, errors.New("channel is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AvailabilityChecker{ch: ch, logger: logger}, nil
}

// Check returns reachability per canonical id. The registration listing is
// accumulated across every page before any target is concluded unreachable.
// A listing failure aborts; reachability is never guessed.
func (c *AvailabilityChecker) Check(ctx context.Context, targets []ResolvedTarget) (map[string]bool, error) {
	if c == nil {
		return nil, errors.New("nil availability checker")
	}

	registered := make(map[string]struct{})
	token := ""
	for {
		ids, next, err := c.ch.ListRegisteredTargets(ctx, token)
		if err != nil {
			return nil, &AvailabilityCheckError{Err: err}
		}
		for _, id := range ids {
			registered[id] = struct{}{}
		}
		if next == "" {
			break
		}
		token = next
	}

	result := make(map[string]bool, len(targets))
	reachable := 0
	for _, t := range targets {
		_, ok := registered[t.CanonicalID]
		result[t.CanonicalID] = ok
		if ok {
			reachable++
		}
	}

	c.logger.Printf("INFO availability: %d of %d targets reachable", reachable, len(targets))
	return result, nil
}
