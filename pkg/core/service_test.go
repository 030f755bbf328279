package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adinsight/adinsight/internal/config"
	"github.com/adinsight/adinsight/pkg/anomaly"
	"github.com/adinsight/adinsight/pkg/baseline"
	"github.com/adinsight/adinsight/pkg/metrics"
	"github.com/adinsight/adinsight/pkg/metricstore"
	"github.com/adinsight/adinsight/pkg/notify"
	"github.com/adinsight/adinsight/pkg/session"
	"github.com/adinsight/adinsight/pkg/tenant"
	"github.com/adinsight/adinsight/pkg/types"
)

// fakeWarehouse implements the core.warehouse interface entirely
// in-memory so service tests never touch Postgres or Redis.
type fakeWarehouse struct {
	summaries []types.AdSummary
	series    map[string][]metricstore.DailyPoint
	totals    map[types.Metric][]metricstore.DailyPoint
}

func (f *fakeWarehouse) FetchAdSummaries(ctx context.Context, warehouseView string, windowDays int) ([]types.AdSummary, metricstore.DropReport, error) {
	return f.summaries, metricstore.DropReport{}, nil
}

func (f *fakeWarehouse) FetchDailySeries(ctx context.Context, warehouseView, adID string, metric types.Metric, windowDays int) ([]metricstore.DailyPoint, error) {
	return f.series[adID], nil
}

func (f *fakeWarehouse) FetchAccountDailyTotals(ctx context.Context, warehouseView string, metric types.Metric, windowDays int) ([]metricstore.DailyPoint, error) {
	return f.totals[metric], nil
}

func summary(adID string, spend, roas float64) types.AdSummary {
	return types.AdSummary{
		AdID:         adID,
		TotalSpend:   decimal.NewFromFloat(spend),
		WeightedROAS: roas,
		WeightedCTR:  0.02,
		DaysActive:   30,
	}
}

func testRegistry(t *testing.T) *tenant.Registry {
	t.Helper()
	reg, err := tenant.New([]tenant.Record{{Code: "acme", WarehouseView: "warehouse.acme_daily", DisplayName: "Acme"}})
	require.NoError(t, err)
	return reg
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Anomaly = config.AnomalyConfig{ThresholdSigma: 2.0, MinSampleSize: 3, MinSpend: 100, MaxPerMetric: 50}
	cfg.RCA = config.RCAConfig{MaxSteps: 6, Concurrency: 2}
	cfg.Session = config.SessionConfig{TTLSeconds: 3600}
	return cfg
}

func newTestService(t *testing.T, wh *fakeWarehouse) *Service {
	t.Helper()
	cfg := testConfig()
	return &Service{
		cfg:        cfg,
		logger:     logrus.New(),
		tenants:    testRegistry(t),
		adapter:    wh,
		baselines:  baseline.New(cfg.Anomaly.MinSampleSize),
		anomalyCfg: anomaly.Config{ThresholdSigma: cfg.Anomaly.ThresholdSigma, MinSpend: cfg.Anomaly.MinSpend, MaxPerMetric: cfg.Anomaly.MaxPerMetric},
		model:      deterministicModel{},
		notifier:   notify.NoopNotifier{},
		metrics:    metrics.New(),
		sessions:   session.NewStore(),
		sessionTTL: time.Hour,
	}
}

// manyNormalAds returns n ads with unremarkable, near-identical ROAS
// so the baseline is sufficient and none of them anomalous on their own.
func manyNormalAds(n int) []types.AdSummary {
	ads := make([]types.AdSummary, n)
	for i := range ads {
		ads[i] = summary("normal", 500, 3.0)
		ads[i].AdID = "normal-" + string(rune('a'+i))
	}
	return ads
}

func TestAnalyze_UnknownTenantIsRejected(t *testing.T) {
	s := newTestService(t, &fakeWarehouse{})
	_, err := s.Analyze(context.Background(), "doesnotexist", 30, "")
	assert.Error(t, err)
}

func TestAnalyze_WindowOutOfRangeIsRejected(t *testing.T) {
	s := newTestService(t, &fakeWarehouse{})
	_, err := s.Analyze(context.Background(), "acme", 0, "")
	assert.Error(t, err)
}

func TestAnalyze_CreatesSessionWithDetectedAnomalies(t *testing.T) {
	ads := manyNormalAds(10)
	spike := summary("spike-1", 5000, 20.0)
	wh := &fakeWarehouse{summaries: append(ads, spike)}

	s := newTestService(t, wh)
	result, err := s.Analyze(context.Background(), "acme", 30, "")
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, 11, result.AdCount)
	assert.GreaterOrEqual(t, result.AnomalyCount, 1)
	assert.False(t, result.InsufficientData)
}

func TestAnalyze_InsufficientDataWhenBelowMinSampleSize(t *testing.T) {
	wh := &fakeWarehouse{summaries: manyNormalAds(2)}
	s := newTestService(t, wh)

	result, err := s.Analyze(context.Background(), "acme", 30, "")
	require.NoError(t, err)
	assert.True(t, result.InsufficientData)
	assert.Equal(t, 0, result.AnomalyCount)
}

func TestRecommend_UnknownSessionIsSessionExpired(t *testing.T) {
	s := newTestService(t, &fakeWarehouse{})
	_, err := s.Recommend(context.Background(), "does-not-exist", false)
	assert.Error(t, err)
}

func TestRecommend_ProducesOneRecommendationPerClassifiedAd(t *testing.T) {
	ads := manyNormalAds(10)
	spike := summary("spike-1", 5000, 20.0)
	wh := &fakeWarehouse{summaries: append(ads, spike), series: map[string][]metricstore.DailyPoint{}, totals: map[types.Metric][]metricstore.DailyPoint{}}

	s := newTestService(t, wh)
	analyzed, err := s.Analyze(context.Background(), "acme", 30, "")
	require.NoError(t, err)
	require.Greater(t, analyzed.AnomalyCount, 0)
	require.Less(t, analyzed.AnomalyCount, len(wh.summaries))

	recommended, err := s.Recommend(context.Background(), analyzed.SessionID, false)
	require.NoError(t, err)
	assert.Len(t, recommended.Recommendations, len(wh.summaries))

	var sawNormalAd bool
	for _, r := range recommended.Recommendations {
		if r.AdID == "normal-a" {
			sawNormalAd = true
		}
	}
	assert.True(t, sawNormalAd, "a non-anomalous ad should still receive a recommendation")

	total := 0
	for _, n := range recommended.CountsByAction {
		total += n
	}
	assert.Equal(t, len(recommended.Recommendations), total)
}

func TestExecute_UnknownSessionIsSessionExpired(t *testing.T) {
	s := newTestService(t, &fakeWarehouse{})
	_, err := s.Execute(context.Background(), "does-not-exist", nil, true)
	assert.Error(t, err)
}

func TestExecute_DryRunSucceedsForEveryRecommendation(t *testing.T) {
	ads := manyNormalAds(10)
	spike := summary("spike-1", 5000, 20.0)
	wh := &fakeWarehouse{summaries: append(ads, spike), series: map[string][]metricstore.DailyPoint{}, totals: map[types.Metric][]metricstore.DailyPoint{}}

	s := newTestService(t, wh)
	analyzed, err := s.Analyze(context.Background(), "acme", 30, "")
	require.NoError(t, err)
	_, err = s.Recommend(context.Background(), analyzed.SessionID, false)
	require.NoError(t, err)

	executed, err := s.Execute(context.Background(), analyzed.SessionID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, len(executed.Results), executed.CountsByStatus[types.ExecutionSuccess])
}
