package dispatch

import (
	"context"
	"errors"
	"testing"
)

func TestResolve(t *testing.T) {
	inv := &fakeInventory{
		addresses: map[string]string{"10.0.0.5": "i-5"},
		tags: map[string][]TagMatch{
			"env=prod": {
				{CanonicalID: "i-7", Label: "web-1 (10.0.0.7)", LifecycleState: "running"},
				{CanonicalID: "i-8", Label: "web-2 (10.0.0.8)", LifecycleState: "stopped"},
			},
		},
	}

	tests := []struct {
		name           string
		specs          []TargetSpec
		wantIDs        []string
		wantUnresolved int
	}{
		{
			name:    "explicit ids pass through",
			specs:   []TargetSpec{ExplicitID("i-1"), ExplicitID("i-2")},
			wantIDs: []string{"i-1", "i-2"},
		},
		{
			name:    "address resolves via inventory",
			specs:   []TargetSpec{Address("10.0.0.5")},
			wantIDs: []string{"i-5"},
		},
		{
			name:           "unmatched address reported unresolved",
			specs:          []TargetSpec{Address("10.0.0.99")},
			wantUnresolved: 1,
		},
		{
			name:    "tag expands to running targets only",
			specs:   []TargetSpec{Tag("env", "prod")},
			wantIDs: []string{"i-7"},
		},
		{
			name:           "tag with no running match is unresolved",
			specs:          []TargetSpec{Tag("env", "staging")},
			wantUnresolved: 1,
		},
		{
			name:    "duplicates collapse to one target",
			specs:   []TargetSpec{ExplicitID("i-5"), Address("10.0.0.5")},
			wantIDs: []string{"i-5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(inv, nil)
			if err != nil {
				t.Fatal(err)
			}
			resolved, unresolved, err := r.Resolve(context.Background(), tt.specs)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(unresolved) != tt.wantUnresolved {
				t.Fatalf("unresolved = %d, want %d", len(unresolved), tt.wantUnresolved)
			}
			if len(resolved) != len(tt.wantIDs) {
				t.Fatalf("resolved = %d targets, want %d", len(resolved), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if resolved[i].CanonicalID != want {
					t.Errorf("resolved[%d] = %s, want %s", i, resolved[i].CanonicalID, want)
				}
			}
		})
	}
}

func TestResolveLabelSpecificity(t *testing.T) {
	inv := &fakeInventory{
		addresses: map[string]string{"10.0.0.7": "i-7"},
		tags: map[string][]TagMatch{
			"env=prod": {{CanonicalID: "i-7", Label: "web-1 (10.0.0.7)", LifecycleState: "running"}},
		},
	}
	r, err := NewResolver(inv, nil)
	if err != nil {
		t.Fatal(err)
	}

	resolved, _, err := r.Resolve(context.Background(), []TargetSpec{
		Tag("env", "prod"),
		Address("10.0.0.7"),
		ExplicitID("i-7"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolved) != 1 {
		t.Fatalf("resolved = %d targets, want 1", len(resolved))
	}
	if resolved[0].Label != "i-7" {
		t.Fatalf("label = %q, want explicit id label", resolved[0].Label)
	}
	if resolved[0].Source.Kind != SpecExplicitID {
		t.Fatalf("source kind = %q, want explicit id", resolved[0].Source.Kind)
	}
}

func TestResolveTransportFailure(t *testing.T) {
	inv := &fakeInventory{err: errors.New("connection refused")}
	r, err := NewResolver(inv, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, _, err = r.Resolve(context.Background(), []TargetSpec{Address("10.0.0.5")})
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error = %v, want ResolutionError", err)
	}
}
