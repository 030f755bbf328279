// Package execution implements the Execution Simulator: a
// deterministic, side-effect-free state machine that turns approved
// Recommendations into a per-recommendation status report. Dry-run is
// the only mode this implementation exercises; the real-write branch
// is a future extension point, kept as an explicit terminal state
// rather than an unreachable default.
package execution

import (
	"fmt"

	"github.com/adinsight/adinsight/pkg/types"
)

// SessionView is the narrow slice of Session state the simulator
// needs: the recommendations pending execution, and whether an ad
// identity is still known within the session (it may have aged out of
// the Session's frozen AdSummary set between recommend and execute).
type SessionView interface {
	Recommendations() []types.Recommendation
	KnownAdID(adID string) bool
}

// Execute runs the state machine over every Recommendation in
// session, honoring an optional approval allowlist.
// A nil or empty approvedAdIDs means every recommendation is approved.
// Calling Execute repeatedly with the same session and approvedAdIDs
// produces byte-identical results — required by the idempotence
// invariant.
func Execute(session SessionView, approvedAdIDs []string, dryRun bool) []types.ExecutionResult {
	approved := approvalSet(approvedAdIDs)

	recommendations := session.Recommendations()
	results := make([]types.ExecutionResult, 0, len(recommendations))
	for _, rec := range recommendations {
		results = append(results, executeOne(session, rec, approved, dryRun))
	}
	return results
}

func executeOne(session SessionView, rec types.Recommendation, approved map[string]bool, dryRun bool) types.ExecutionResult {
	if len(approved) > 0 && !approved[rec.AdID] {
		return types.ExecutionResult{
			AdID:    rec.AdID,
			Status:  types.ExecutionSkipped,
			Message: "not approved",
			DryRun:  dryRun,
		}
	}

	if !session.KnownAdID(rec.AdID) {
		return types.ExecutionResult{
			AdID:    rec.AdID,
			Status:  types.ExecutionFailed,
			Message: fmt.Sprintf("ad %s no longer present in session", rec.AdID),
			DryRun:  dryRun,
		}
	}

	if dryRun {
		return types.ExecutionResult{
			AdID:    rec.AdID,
			Status:  types.ExecutionSuccess,
			Message: fmt.Sprintf("dry run: would %s to %s (%.0f%%)", rec.Action, rec.ProposedNewSpend.String(), rec.ProposedChangePct),
			DryRun:  true,
		}
	}

	// Live execution against the advertising platform is not wired up
	// yet; the branch exists so a future platform client slots in here
	// without changing the simulator's public shape.
	return types.ExecutionResult{
		AdID:    rec.AdID,
		Status:  types.ExecutionFailed,
		Message: "live execution is not implemented",
		DryRun:  false,
	}
}

func approvalSet(adIDs []string) map[string]bool {
	set := make(map[string]bool, len(adIDs))
	for _, id := range adIDs {
		set[id] = true
	}
	return set
}
