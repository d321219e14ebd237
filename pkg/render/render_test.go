package render

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"muster/services/dispatch"
)

func TestRenderSummary(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	report := dispatch.BatchReport{
		RunID:     uuid.MustParse("3a0c5c2e-46a6-4a7a-9cfd-000000000001"),
		BatchID:   "cmd-42",
		Requested: 3,
		Resolved:  2,
		Available: 2,
		Succeeded: 1,
		Failed:    1,
	}
	failures := []dispatch.TargetOutcome{
		{
			Target:  dispatch.ResolvedTarget{CanonicalID: "i-2", Label: "web-2 (10.0.0.8)"},
			Status:  dispatch.StatusFailed,
			Message: "exit 1",
		},
	}

	out, err := e.Render("summary.tmpl", map[string]any{
		"Report":     report,
		"Unresolved": []string{"address 10.0.0.99"},
		"Failures":   failures,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"batch cmd-42",
		"requested: 3",
		"succeeded: 1",
		"address 10.0.0.99",
		"web-2 (10.0.0.8)",
		"exit 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderResolve(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}

	type row struct {
		Target    dispatch.ResolvedTarget
		Reachable bool
	}
	out, err := e.Render("resolve.tmpl", map[string]any{
		"Rows": []row{
			{Target: dispatch.ResolvedTarget{CanonicalID: "i-1", Label: "web-1"}, Reachable: true},
			{Target: dispatch.ResolvedTarget{CanonicalID: "i-2", Label: "web-2"}, Reachable: false},
		},
		"Unresolved": []string{},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if !strings.Contains(out, "i-1") || !strings.Contains(out, "reachable") {
		t.Errorf("rendered resolve output missing reachable row:\n%s", out)
	}
	if !strings.Contains(out, "UNREACHABLE") {
		t.Errorf("rendered resolve output missing unreachable marker:\n%s", out)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Render("missing.tmpl", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
