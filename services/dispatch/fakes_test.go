package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type fakeInventory struct {
	addresses map[string]string
	tags      map[string][]TagMatch
	err       error
}

func (f *fakeInventory) LookupByAddress(_ context.Context, address string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.addresses[address]
	return id, ok, nil
}

func (f *fakeInventory) LookupByTag(_ context.Context, key, value string) ([]TagMatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tags[key+"="+value], nil
}

type statusStep struct {
	status InvocationStatus
	err    error
}

// fakeChannel scripts registration pages, submission behaviour and
// per-target status sequences. The last status step repeats once the
// sequence is exhausted.
type fakeChannel struct {
	mu sync.Mutex

	pages     [][]string
	listErr   error
	batchID   string
	submitErr error
	statuses  map[string][]statusStep

	submitted   []string
	statusCalls map[string]int
}

func (f *fakeChannel) ListRegisteredTargets(_ context.Context, pageToken string) ([]string, string, error) {
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	page := 0
	if pageToken != "" {
		var err error
		page, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", err
		}
	}
	if page >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if page+1 < len(f.pages) {
		next = strconv.Itoa(page + 1)
	}
	return f.pages[page], next, nil
}

func (f *fakeChannel) SubmitBatch(_ context.Context, targetIDs []string, _ Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append([]string(nil), targetIDs...)
	if f.batchID == "" {
		f.batchID = "batch-1"
	}
	return f.batchID, nil
}

func (f *fakeChannel) InvocationStatus(_ context.Context, _, targetID string) (InvocationStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusCalls == nil {
		f.statusCalls = make(map[string]int)
	}
	steps, ok := f.statuses[targetID]
	if !ok || len(steps) == 0 {
		return InvocationStatus{}, fmt.Errorf("no scripted status for %s", targetID)
	}
	idx := f.statusCalls[targetID]
	f.statusCalls[targetID]++
	if idx >= len(steps) {
		idx = len(steps) - 1
	}
	step := steps[idx]
	return step.status, step.err
}

func (f *fakeChannel) calls(targetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls[targetID]
}

func success() statusStep {
	return statusStep{status: InvocationStatus{Code: "Success"}}
}

func inProgress() statusStep {
	return statusStep{status: InvocationStatus{Code: "InProgress"}}
}
