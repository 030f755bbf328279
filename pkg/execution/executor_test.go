package execution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/adinsight/adinsight/pkg/types"
)

type fakeSession struct {
	recommendations []types.Recommendation
	knownAdIDs      map[string]bool
}

func (s *fakeSession) Recommendations() []types.Recommendation { return s.recommendations }
func (s *fakeSession) KnownAdID(adID string) bool               { return s.knownAdIDs[adID] }

func rec(adID string) types.Recommendation {
	return types.Recommendation{
		AdID:             adID,
		Action:           types.ActionReduce,
		ProposedNewSpend: decimal.NewFromInt(400),
		ProposedChangePct: -20,
	}
}

func TestExecute_DryRunSucceedsForKnownApprovedAd(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1")},
		knownAdIDs:      map[string]bool{"ad-1": true},
	}
	results := Execute(session, nil, true)
	assert.Len(t, results, 1)
	assert.Equal(t, types.ExecutionSuccess, results[0].Status)
	assert.True(t, results[0].DryRun)
}

func TestExecute_SkipsAdsNotInApprovalAllowlist(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1"), rec("ad-2")},
		knownAdIDs:      map[string]bool{"ad-1": true, "ad-2": true},
	}
	results := Execute(session, []string{"ad-1"}, true)
	require := map[string]types.ExecutionStatus{"ad-1": types.ExecutionSuccess, "ad-2": types.ExecutionSkipped}
	for _, r := range results {
		assert.Equal(t, require[r.AdID], r.Status)
	}
}

func TestExecute_EmptyAllowlistApprovesEverything(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1")},
		knownAdIDs:      map[string]bool{"ad-1": true},
	}
	results := Execute(session, []string{}, true)
	assert.Equal(t, types.ExecutionSuccess, results[0].Status)
}

func TestExecute_FailsWhenAdNoLongerKnown(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1")},
		knownAdIDs:      map[string]bool{},
	}
	results := Execute(session, nil, true)
	assert.Equal(t, types.ExecutionFailed, results[0].Status)
}

func TestExecute_ApprovalCheckedBeforeKnownAdCheck(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1")},
		knownAdIDs:      map[string]bool{},
	}
	results := Execute(session, []string{"ad-2"}, true)
	assert.Equal(t, types.ExecutionSkipped, results[0].Status)
}

func TestExecute_LiveExecutionReportsFailed(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1")},
		knownAdIDs:      map[string]bool{"ad-1": true},
	}
	results := Execute(session, nil, false)
	assert.Equal(t, types.ExecutionFailed, results[0].Status)
	assert.False(t, results[0].DryRun)
}

func TestExecute_IsIdempotent(t *testing.T) {
	session := &fakeSession{
		recommendations: []types.Recommendation{rec("ad-1"), rec("ad-2")},
		knownAdIDs:      map[string]bool{"ad-1": true},
	}
	first := Execute(session, nil, true)
	second := Execute(session, nil, true)
	assert.Equal(t, first, second)
}
