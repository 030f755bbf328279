package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinsight/adinsight/internal/adierrors"
	"github.com/adinsight/adinsight/pkg/types"
)

func TestNew_AssignsUUIDAndTTL(t *testing.T) {
	s := New("acme", 30, time.Hour)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "acme", s.Tenant())
	assert.Equal(t, 30, s.WindowDays())
	assert.False(t, s.Expired(time.Now()))
}

func TestSession_Expired(t *testing.T) {
	s := New("acme", 30, time.Minute)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Minute)))
}

func TestSession_Touch_ResetsIdleClock(t *testing.T) {
	s := New("acme", 30, time.Minute)
	future := time.Now().Add(2 * time.Minute)
	s.Touch(future)
	assert.False(t, s.Expired(future.Add(30*time.Second)))
}

func TestSession_SummariesAndKnownAdID(t *testing.T) {
	s := New("acme", 30, time.Hour)
	s.SetSummaries([]types.AdSummary{{AdID: "ad-1"}, {AdID: "ad-2"}})
	assert.True(t, s.KnownAdID("ad-1"))
	assert.False(t, s.KnownAdID("ad-3"))
	assert.Len(t, s.Summaries(), 2)
}

func TestSession_BaselinesRoundTrip(t *testing.T) {
	s := New("acme", 30, time.Hour)
	s.SetBaseline(types.AccountBaseline{Metric: types.MetricROAS, Mean: 3.0, Sufficient: true})
	baselines := s.Baselines()
	assert.Equal(t, 3.0, baselines[types.MetricROAS].Mean)
}

func TestSession_VerdictLookup(t *testing.T) {
	s := New("acme", 30, time.Hour)
	s.SetVerdict(types.RootCauseVerdict{AnomalyAdID: "ad-1", Tag: types.RootCauseTracking})
	v, ok := s.Verdict("ad-1")
	assert.True(t, ok)
	assert.Equal(t, types.RootCauseTracking, v.Tag)

	_, ok = s.Verdict("ad-2")
	assert.False(t, ok)
}

func TestSession_RecommendationsRoundTrip(t *testing.T) {
	s := New("acme", 30, time.Hour)
	s.SetRecommendations([]types.Recommendation{{AdID: "ad-1", Action: types.ActionPause}})
	assert.Len(t, s.Recommendations(), 1)
}

func TestStore_PutGetRelease(t *testing.T) {
	store := NewStore()
	s := New("acme", 30, time.Hour)
	store.Put(s)

	got, err := store.Get(s.ID())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())

	store.Release(s.ID())
	_, err = store.Get(s.ID())
	require.Error(t, err)
	kind, ok := adierrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, adierrors.KindSessionExpired, kind)
}

func TestStore_Get_UnknownSessionIsSessionExpired(t *testing.T) {
	store := NewStore()
	_, err := store.Get("does-not-exist")
	require.Error(t, err)
	kind, ok := adierrors.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, adierrors.KindSessionExpired, kind)
}

func TestStore_Get_EvictsExpiredSession(t *testing.T) {
	store := NewStore()
	s := New("acme", 30, time.Millisecond)
	store.Put(s)
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(s.ID())
	require.Error(t, err)
	assert.Equal(t, 0, store.Count())
}

func TestStore_Count(t *testing.T) {
	store := NewStore()
	store.Put(New("acme", 30, time.Hour))
	store.Put(New("acme", 30, time.Hour))
	assert.Equal(t, 2, store.Count())
}
