package dispatch

import "fmt"

// Aggregate reconciles the requested, resolved, available, and
// terminal-status sets into one report. Pure; input-shape violations are
// programming errors and panic.
//
// Succeeded counts only StatusSucceeded; every other terminal status
// (failed, error, unavailable, timed out) counts as failed, so
// report.Failed == 0 means every requested target that could be reached
// converged successfully.
func Aggregate(requested int, resolved []ResolvedTarget, availability map[string]bool, outcomes map[string]TargetOutcome) BatchReport {
	report := BatchReport{
		Requested: requested,
		Resolved:  len(resolved),
		PerTarget: make(map[string]TargetOutcome, len(resolved)),
	}

	for _, t := range resolved {
		out, ok := outcomes[t.CanonicalID]
		if !ok {
			panic(fmt.Sprintf("dispatch: no outcome for resolved target %s", t.CanonicalID))
		}
		if !out.Status.Terminal() {
			panic(fmt.Sprintf("dispatch: non-terminal outcome %q for target %s", out.Status, t.CanonicalID))
		}

		if availability[t.CanonicalID] {
			report.Available++
		}

		switch out.Status {
		case StatusSucceeded:
			report.Succeeded++
		default:
			report.Failed++
		}

		report.PerTarget[t.CanonicalID] = out
	}

	return report
}
