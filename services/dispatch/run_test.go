package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return f.err
}

func testRunner(t *testing.T, inv Inventory, ch Channel, opts RunnerOptions) *Runner {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Millisecond
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	r, err := NewRunner(inv, ch, opts)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunBatchAllSucceed(t *testing.T) {
	inv := &fakeInventory{}
	ch := &fakeChannel{
		pages: [][]string{{"i-1", "i-2"}},
		statuses: map[string][]statusStep{
			"i-1": {success()},
			"i-2": {success()},
		},
	}
	bus := &fakePublisher{}
	r := testRunner(t, inv, ch, RunnerOptions{Bus: bus})

	report, err := r.RunBatch(context.Background(),
		[]TargetSpec{ExplicitID("i-1"), ExplicitID("i-2")},
		Command{Text: "uptime"})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if report.Requested != 2 || report.Resolved != 2 || report.Available != 2 {
		t.Errorf("counts = %d/%d/%d, want 2/2/2",
			report.Requested, report.Resolved, report.Available)
	}
	if report.Succeeded != 2 || report.Failed != 0 {
		t.Errorf("succeeded/failed = %d/%d, want 2/0", report.Succeeded, report.Failed)
	}
	if report.BatchID == "" {
		t.Error("report missing batch id")
	}
	if len(bus.subjects) != 2 {
		t.Fatalf("published %d events, want 2", len(bus.subjects))
	}
	if bus.subjects[0] != batchDispatchedSubject || bus.subjects[1] != batchConvergedSubject {
		t.Errorf("event subjects = %v", bus.subjects)
	}
}

func TestRunBatchNothingResolves(t *testing.T) {
	inv := &fakeInventory{}
	ch := &fakeChannel{}
	r := testRunner(t, inv, ch, RunnerOptions{})

	report, err := r.RunBatch(context.Background(),
		[]TargetSpec{Address("10.0.0.99")},
		Command{Text: "uptime"})

	var emptyErr *EmptyBatchError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("error = %v, want EmptyBatchError", err)
	}
	if report == nil {
		t.Fatal("expected partial report")
	}
	if len(report.Unresolved) != 1 {
		t.Errorf("unresolved = %d, want 1", len(report.Unresolved))
	}
	if ch.submitted != nil {
		t.Error("command submitted with nothing resolved")
	}
}

func TestRunBatchUnavailableCountsFailed(t *testing.T) {
	inv := &fakeInventory{}
	ch := &fakeChannel{
		pages: [][]string{{"i-1"}},
		statuses: map[string][]statusStep{
			"i-1": {success()},
		},
	}
	r := testRunner(t, inv, ch, RunnerOptions{})

	report, err := r.RunBatch(context.Background(),
		[]TargetSpec{ExplicitID("i-1"), ExplicitID("i-2")},
		Command{Text: "uptime"})
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if report.Available != 1 {
		t.Errorf("available = %d, want 1", report.Available)
	}
	if report.Succeeded != 1 || report.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", report.Succeeded, report.Failed)
	}
	if got := report.PerTarget["i-2"].Status; got != StatusUnavailable {
		t.Errorf("status[i-2] = %q, want unavailable", got)
	}
	// Only the reachable target is handed to the channel.
	if len(ch.submitted) != 1 || ch.submitted[0] != "i-1" {
		t.Errorf("submitted = %v, want [i-1]", ch.submitted)
	}
}

func TestRunBatchConfirmAborts(t *testing.T) {
	inv := &fakeInventory{}
	ch := &fakeChannel{pages: [][]string{{"i-1"}}}
	declined := errors.New("operator declined")
	r := testRunner(t, inv, ch, RunnerOptions{
		Confirm: func([]ResolvedTarget, map[string]bool, []TargetSpec) error {
			return declined
		},
	})

	report, err := r.RunBatch(context.Background(),
		[]TargetSpec{ExplicitID("i-1")},
		Command{Text: "uptime"})
	if !errors.Is(err, declined) {
		t.Fatalf("error = %v, want confirmation error", err)
	}
	if report != nil {
		t.Error("report returned for aborted batch")
	}
	if ch.submitted != nil {
		t.Error("command submitted after declined confirmation")
	}
}

func TestRunBatchNoSpecs(t *testing.T) {
	r := testRunner(t, &fakeInventory{}, &fakeChannel{}, RunnerOptions{})
	if _, err := r.RunBatch(context.Background(), nil, Command{Text: "uptime"}); err == nil {
		t.Fatal("expected error for empty spec list")
	}
}
