// Package core wires the Metric Store Adapter, Baseline Engine,
// Anomaly Detector, RCA Orchestrator, Recommendation Generator, and
// Execution Simulator into the three logical operations the outer
// service layer calls: analyze, recommend, and execute. It owns the
// Session store and is the only package that depends on every other
// domain package at once.
package core

import (
	"context"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adinsight/adinsight/internal/config"
	"github.com/adinsight/adinsight/pkg/ai/llm"
	"github.com/adinsight/adinsight/pkg/anomaly"
	"github.com/adinsight/adinsight/pkg/baseline"
	"github.com/adinsight/adinsight/pkg/execution"
	"github.com/adinsight/adinsight/pkg/metrics"
	"github.com/adinsight/adinsight/pkg/metricstore"
	"github.com/adinsight/adinsight/pkg/notify"
	"github.com/adinsight/adinsight/pkg/probes"
	"github.com/adinsight/adinsight/pkg/rca"
	"github.com/adinsight/adinsight/pkg/recommend"
	"github.com/adinsight/adinsight/pkg/session"
	"github.com/adinsight/adinsight/pkg/telemetry"
	"github.com/adinsight/adinsight/pkg/tenant"
	"github.com/adinsight/adinsight/pkg/types"
)

// warehouse is the subset of *metricstore.Adapter the core depends
// on: per-ad summaries for analyze, plus the probes.Fetcher shape the
// diagnostic probes need for recommend. Declaring it here (rather than
// depending on the concrete Adapter) lets service tests substitute a
// fake warehouse without a real Postgres/Redis pair.
type warehouse interface {
	FetchAdSummaries(ctx context.Context, warehouseView string, windowDays int) ([]types.AdSummary, metricstore.DropReport, error)
	probes.Fetcher
}

// Service is the process-wide entry point for the diagnostic pipeline.
type Service struct {
	cfg        *config.Config
	logger     *logrus.Logger
	tenants    *tenant.Registry
	adapter    warehouse
	baselines  *baseline.Engine
	anomalyCfg anomaly.Config
	model      llm.Client
	notifier   notify.Notifier
	metrics    *metrics.Metrics
	sessions   *session.Store
	sessionTTL time.Duration
}

// New wires every component from a loaded Config. db/cache may be nil
// in tests that never reach the warehouse.
func New(cfg *config.Config, logger *logrus.Logger, tenants *tenant.Registry, db *sqlx.DB, cache *redis.Client) (*Service, error) {
	model, err := llm.NewClient(cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	return &Service{
		cfg:       cfg,
		logger:    logger,
		tenants:   tenants,
		adapter:   metricstore.New(db, cache, logger),
		baselines: baseline.New(cfg.Anomaly.MinSampleSize),
		anomalyCfg: anomaly.Config{
			ThresholdSigma: cfg.Anomaly.ThresholdSigma,
			MinSpend:       cfg.Anomaly.MinSpend,
			MaxPerMetric:   cfg.Anomaly.MaxPerMetric,
		},
		model:      model,
		notifier:   notify.New(cfg.Notify, logger),
		metrics:    m,
		sessions:   session.NewStore(),
		sessionTTL: time.Duration(cfg.Session.TTLSeconds) * time.Second,
	}, nil
}

// AnalyzeSummary is analyze's response payload alongside the new
// Session identifier.
type AnalyzeSummary struct {
	SessionID        string
	AdCount          int
	AnomalyCount     int
	DroppedRecords   int
	Baselines        map[types.Metric]types.AccountBaseline
	InsufficientData bool
}

// Analyze resolves tenant to a warehouse view, fetches its ad
// summaries, computes account baselines, detects anomalies, opens a
// new Session pinning the result, and fires a best-effort Slack
// notification when extreme anomalies were found. sourceHint is
// accepted for forward compatibility with multi-warehouse tenants but
// is not otherwise interpreted — every tenant in the registry
// currently resolves to exactly one warehouse view.
func (s *Service) Analyze(ctx context.Context, tenantCode string, windowDays int, sourceHint string) (AnalyzeSummary, error) {
	rec, err := s.tenants.Resolve(tenantCode)
	if err != nil {
		return AnalyzeSummary{}, err
	}
	if err := metricstore.ValidateWindow(windowDays); err != nil {
		return AnalyzeSummary{}, err
	}

	ctx, span := telemetry.StartWarehouseSpan(ctx, "fetch_ad_summaries", tenantCode)
	summaries, dropReport, err := s.adapter.FetchAdSummaries(ctx, rec.WarehouseView, windowDays)
	telemetry.EndWithError(span, err)
	if err != nil {
		return AnalyzeSummary{}, err
	}

	baselines := s.baselines.ComputeAll(summaries)
	anomalies := anomaly.Detect(summaries, baselines, s.anomalyCfg)

	for _, a := range anomalies {
		s.metrics.AnomaliesDetected.WithLabelValues(string(a.Metric), string(a.Severity)).Inc()
	}

	sess := session.New(tenantCode, windowDays, s.sessionTTL)
	sess.SetSummaries(summaries)
	for _, b := range baselines {
		sess.SetBaseline(b)
	}
	sess.SetAnomalies(anomalies)
	s.sessions.Put(sess)

	notify.NotifyAsync(s.notifier, notify.SessionInfo{ID: sess.ID(), Tenant: tenantCode}, anomalies, s.logger)

	insufficient := true
	for _, b := range baselines {
		if b.Sufficient {
			insufficient = false
			break
		}
	}

	return AnalyzeSummary{
		SessionID:        sess.ID(),
		AdCount:          len(summaries),
		AnomalyCount:     len(anomalies),
		DroppedRecords:   dropReport.DroppedRecords,
		Baselines:        baselines,
		InsufficientData: insufficient,
	}, nil
}

// RecommendSummary aggregates recommend's per-action outcome counts
// and dollar totals.
type RecommendSummary struct {
	Recommendations       []types.Recommendation
	CountsByAction        map[types.Action]int
	TotalPotentialSavings float64
	TotalPotentialRevenue float64
}

// Recommend diagnoses every anomaly in the named Session (strictly
// after detection, per the Session's ordering guarantee), then
// classifies every classified ad in the session — anomalous or not —
// into a Recommendation. A good-ROAS winner never produces an anomaly
// (the Anomaly Detector only flags bad/unknown polarity), but it still
// gets a Recommendation; it just never receives a RootCauseVerdict,
// since nothing needed diagnosing. useModelReasoning selects whether
// the RCA Orchestrator's probe selection is driven by the configured
// language model or by a deterministic stand-in that proposes the full
// probe catalog up front — useful for rule-based/offline runs where an
// LLM backend isn't available or desired.
func (s *Service) Recommend(ctx context.Context, sessionID string, useModelReasoning bool) (RecommendSummary, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return RecommendSummary{}, err
	}
	sess.Touch(time.Now())

	model := s.model
	if !useModelReasoning {
		model = deterministicModel{}
	}
	runner := newProbeRunner(s.adapter, s.warehouseViewFor(sess.Tenant()))
	orchestrator := rca.New(model, runner, s.cfg.RCA.MaxSteps, rca.DefaultDeadline)

	anomalies := sess.Anomalies()
	verdicts := make([]types.RootCauseVerdict, len(anomalies))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RCA.Concurrency)

	for i, a := range anomalies {
		i, a := i, a
		g.Go(func() error {
			verdict, err := orchestrator.Diagnose(gctx, a, sess.WindowDays())
			if err != nil {
				return err
			}
			verdicts[i] = verdict
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecommendSummary{}, err
	}
	for i := range anomalies {
		sess.SetVerdict(verdicts[i])
	}

	baselines := sess.Baselines()
	summaries := sess.Summaries()
	recs := make([]types.Recommendation, 0, len(summaries))
	for _, summary := range summaries {
		pseudo := types.Anomaly{AdSummary: summary}

		var verdictPtr *types.RootCauseVerdict
		if v, ok := sess.Verdict(summary.AdID); ok {
			verdictPtr = &v
		}

		rec := recommend.Generate(pseudo, verdictPtr, baselines[types.MetricROAS])
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].AdID < recs[j].AdID
	})
	sess.SetRecommendations(recs)

	summary := RecommendSummary{Recommendations: recs, CountsByAction: map[types.Action]int{}}
	for _, r := range recs {
		summary.CountsByAction[r.Action]++
		delta, _ := r.ExpectedRevenueDelta.Float64()
		if delta < 0 {
			summary.TotalPotentialSavings += -delta
		} else {
			summary.TotalPotentialRevenue += delta
		}
	}
	return summary, nil
}

// ExecuteSummary aggregates execute's per-status outcome counts.
type ExecuteSummary struct {
	Results        []types.ExecutionResult
	CountsByStatus map[types.ExecutionStatus]int
}

// Execute runs the Execution Simulator over the named Session's
// recommendations.
func (s *Service) Execute(ctx context.Context, sessionID string, approvedAdIDs []string, dryRun bool) (ExecuteSummary, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return ExecuteSummary{}, err
	}
	sess.Touch(time.Now())

	results := execution.Execute(sess, approvedAdIDs, dryRun)

	summary := ExecuteSummary{Results: results, CountsByStatus: map[types.ExecutionStatus]int{}}
	for _, r := range results {
		summary.CountsByStatus[r.Status]++
		s.metrics.ExecutionResults.WithLabelValues(string(r.Status)).Inc()
	}
	return summary, nil
}

// warehouseViewFor resolves a tenant code back to its warehouse view.
// Session only remembers the tenant code, not the resolved view, so
// recommend re-resolves it through the same registry analyze used.
func (s *Service) warehouseViewFor(tenantCode string) string {
	rec, err := s.tenants.Resolve(tenantCode)
	if err != nil {
		return ""
	}
	return rec.WarehouseView
}
