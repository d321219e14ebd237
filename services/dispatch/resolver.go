package dispatch

import (
	"context"
	"errors"
	"log"
	"sort"
)

// label specificity ranks: explicit id > address > tag match name.
var specRank = map[SpecKind]int{
	SpecExplicitID: 3,
	SpecAddress:    2,
	SpecTag:        1,
}

// Resolver turns heterogeneous target specs into a deduplicated set of
// canonical targets via the inventory collaborator.
type Resolver struct {
	inv    Inventory
	logger *log.Logger
}

// NewResolver creates a resolver bound to the provided inventory.
func NewResolver(inv Inventory, logger *log.Logger) (*Resolver, error) {
	if inv == nil {
		return nil, errors.New("inventory is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{inv: inv, logger: logger}, nil
}

// Resolve maps specs to canonical targets. Specs with no inventory match are
// returned in unresolved, never silently dropped. Only inventory transport
// failures produce an error.
func (r *Resolver) Resolve(ctx context.Context, specs []TargetSpec) ([]ResolvedTarget, []TargetSpec, error) {
	if r == nil {
		return nil, nil, errors.New("nil resolver")
	}

	byID := make(map[string]ResolvedTarget)
	var order []string
	var unresolved []TargetSpec

	keep := func(t ResolvedTarget) {
		existing, ok := byID[t.CanonicalID]
		if !ok {
			byID[t.CanonicalID] = t
			order = append(order, t.CanonicalID)
			return
		}
		if specRank[t.Source.Kind] > specRank[existing.Source.Kind] {
			byID[t.CanonicalID] = t
		}
	}

	for _, spec := range specs {
		switch spec.Kind {
		case SpecExplicitID:
			keep(ResolvedTarget{CanonicalID: spec.Value, Label: spec.Value, Source: spec})

		case SpecAddress:
			id, ok, err := r.inv.LookupByAddress(ctx, spec.Value)
			if err != nil {
				return nil, nil, &ResolutionError{Spec: spec, Err: err}
			}
			if !ok {
				unresolved = append(unresolved, spec)
				continue
			}
			keep(ResolvedTarget{CanonicalID: id, Label: spec.Value, Source: spec})

		case SpecTag:
			matches, err := r.inv.LookupByTag(ctx, spec.TagKey, spec.TagValue)
			if err != nil {
				return nil, nil, &ResolutionError{Spec: spec, Err: err}
			}
			found := false
			for _, m := range matches {
				if m.LifecycleState != LifecycleRunning {
					continue
				}
				label := m.Label
				if label == "" {
					label = m.CanonicalID
				}
				keep(ResolvedTarget{CanonicalID: m.CanonicalID, Label: label, Source: spec})
				found = true
			}
			if !found {
				unresolved = append(unresolved, spec)
			}

		default:
			unresolved = append(unresolved, spec)
		}
	}

	sort.Strings(order)
	resolved := make([]ResolvedTarget, 0, len(order))
	for _, id := range order {
		resolved = append(resolved, byID[id])
	}

	r.logger.Printf("INFO resolved %d targets from %d specs (%d unresolved)",
		len(resolved), len(specs), len(unresolved))

	return resolved, unresolved, nil
}
