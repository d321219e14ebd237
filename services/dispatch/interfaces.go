package dispatch

import "context"

// LifecycleRunning is the inventory lifecycle state of targets eligible for
// tag-selector expansion.
const LifecycleRunning = "running"

// TagMatch is one inventory entry returned by a tag-selector query.
type TagMatch struct {
	CanonicalID    string
	Label          string
	LifecycleState string
}

// Inventory maps addresses and tags to canonical target ids.
type Inventory interface {
	// LookupByAddress returns the canonical id for a network address, or
	// ok=false when no target carries the address.
	LookupByAddress(ctx context.Context, address string) (canonicalID string, ok bool, err error)

	// LookupByTag returns every target carrying the tag pair, with its
	// lifecycle state. Callers filter on lifecycle.
	LookupByTag(ctx context.Context, key, value string) ([]TagMatch, error)
}

// InvocationStatus is the channel-native status for one target within a
// batch, in the channel's raw vocabulary.
type InvocationStatus struct {
	Code   string
	Detail string
}

// Channel is the remote-execution service: registration listing, batch
// submission, and per-target invocation status. Implementations must be
// safe for concurrent use; the poller queries targets in parallel.
type Channel interface {
	// ListRegisteredTargets returns one page of registered canonical ids.
	// Pass an empty pageToken for the first page; a returned empty
	// nextToken ends the listing.
	ListRegisteredTargets(ctx context.Context, pageToken string) (ids []string, nextToken string, err error)

	// SubmitBatch addresses cmd to the full target set and returns the
	// correlation id for subsequent status queries. Execution is
	// asynchronous; this does not block for completion.
	SubmitBatch(ctx context.Context, targetIDs []string, cmd Command) (batchID string, err error)

	// InvocationStatus returns the raw status of one target within a
	// batch. Returns an error wrapping ErrTargetNotRegistered when the
	// channel has no record of the target.
	InvocationStatus(ctx context.Context, batchID, targetID string) (InvocationStatus, error)
}

// Publisher emits batch lifecycle events. Satisfied by pkg/bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}
