package dispatch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SpecKind discriminates how a TargetSpec addresses machines.
type SpecKind string

const (
	SpecExplicitID SpecKind = "id"
	SpecAddress    SpecKind = "address"
	SpecTag        SpecKind = "tag"
)

// TargetSpec is one raw selector as supplied by the caller: an explicit
// canonical id, a network address, or a metadata tag pair.
type TargetSpec struct {
	Kind     SpecKind
	Value    string
	TagKey   string
	TagValue string
}

// ExplicitID returns a spec naming a target by its canonical id.
func ExplicitID(id string) TargetSpec {
	return TargetSpec{Kind: SpecExplicitID, Value: id}
}

// Address returns a spec naming a target by network address.
func Address(addr string) TargetSpec {
	return TargetSpec{Kind: SpecAddress, Value: addr}
}

// Tag returns a spec selecting every target carrying the given tag pair.
func Tag(key, value string) TargetSpec {
	return TargetSpec{Kind: SpecTag, TagKey: key, TagValue: value}
}

func (s TargetSpec) String() string {
	switch s.Kind {
	case SpecExplicitID:
		return fmt.Sprintf("id:%s", s.Value)
	case SpecAddress:
		return fmt.Sprintf("address:%s", s.Value)
	case SpecTag:
		return fmt.Sprintf("tag:%s=%s", s.TagKey, s.TagValue)
	default:
		return fmt.Sprintf("unknown:%s", s.Value)
	}
}

// ResolvedTarget is one target after resolution to its canonical id.
type ResolvedTarget struct {
	CanonicalID string
	Label       string
	Source      TargetSpec
}

// Status is the per-target outcome state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
	StatusTimedOut    Status = "timed_out"
)

// Terminal reports whether the status can never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusError, StatusUnavailable, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Command is the administrative command submitted to the execution channel.
// Text carries only non-secret command material; secret values travel in
// Params so the channel substitutes them server-side instead of the command
// line embedding them.
type Command struct {
	Document string
	Text     string
	Params   map[string]string
	Comment  string
}

// CommandBatch correlates one submission across all of its targets.
// Immutable once issued.
type CommandBatch struct {
	BatchID     string
	RunID       uuid.UUID
	CommandText string
	Targets     []ResolvedTarget
	IssuedAt    time.Time
}

// TargetOutcome tracks one target's progression through the status machine.
type TargetOutcome struct {
	Target        ResolvedTarget
	Status        Status
	Message       string
	LastCheckedAt time.Time
}

// BatchReport is the final reconciliation of requested, resolved, available
// and terminal-status sets.
type BatchReport struct {
	RunID      uuid.UUID                `json:"run_id"`
	BatchID    string                   `json:"batch_id,omitempty"`
	Requested  int                      `json:"requested"`
	Resolved   int                      `json:"resolved"`
	Available  int                      `json:"available"`
	Succeeded  int                      `json:"succeeded"`
	Failed     int                      `json:"failed"`
	PerTarget  map[string]TargetOutcome `json:"per_target"`
	Unresolved []TargetSpec             `json:"unresolved,omitempty"`
}
