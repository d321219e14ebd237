package dispatch

import "testing"

func TestAggregate(t *testing.T) {
	resolved := []ResolvedTarget{
		{CanonicalID: "i-1"},
		{CanonicalID: "i-2"},
		{CanonicalID: "i-3"},
		{CanonicalID: "i-4"},
	}
	availability := map[string]bool{"i-1": true, "i-2": true, "i-3": true, "i-4": false}
	outcomes := map[string]TargetOutcome{
		"i-1": {Status: StatusSucceeded},
		"i-2": {Status: StatusFailed, Message: "exit 1"},
		"i-3": {Status: StatusTimedOut},
		"i-4": {Status: StatusUnavailable},
	}

	report := Aggregate(6, resolved, availability, outcomes)

	if report.Requested != 6 {
		t.Errorf("requested = %d, want 6", report.Requested)
	}
	if report.Resolved != 4 {
		t.Errorf("resolved = %d, want 4", report.Resolved)
	}
	if report.Available != 3 {
		t.Errorf("available = %d, want 3", report.Available)
	}
	if report.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", report.Succeeded)
	}
	if report.Failed != 3 {
		t.Errorf("failed = %d, want 3", report.Failed)
	}
	if len(report.PerTarget) != 4 {
		t.Errorf("per-target entries = %d, want 4", len(report.PerTarget))
	}
}

func TestAggregateCountsPartitionAvailableSet(t *testing.T) {
	// With every resolved target available, succeeded and failed must
	// partition the available set exactly.
	resolved := []ResolvedTarget{
		{CanonicalID: "i-1"},
		{CanonicalID: "i-2"},
		{CanonicalID: "i-3"},
	}
	availability := map[string]bool{"i-1": true, "i-2": true, "i-3": true}
	outcomes := map[string]TargetOutcome{
		"i-1": {Status: StatusSucceeded},
		"i-2": {Status: StatusSucceeded},
		"i-3": {Status: StatusError},
	}

	report := Aggregate(3, resolved, availability, outcomes)

	if report.Succeeded+report.Failed != report.Available {
		t.Errorf("succeeded(%d)+failed(%d) != available(%d)",
			report.Succeeded, report.Failed, report.Available)
	}
}

func TestAggregateMissingOutcomePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for resolved target without outcome")
		}
	}()
	Aggregate(1, []ResolvedTarget{{CanonicalID: "i-1"}}, nil, nil)
}

func TestAggregateNonTerminalOutcomePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-terminal outcome")
		}
	}()
	Aggregate(1,
		[]ResolvedTarget{{CanonicalID: "i-1"}},
		map[string]bool{"i-1": true},
		map[string]TargetOutcome{"i-1": {Status: StatusInProgress}},
	)
}
