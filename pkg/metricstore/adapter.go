// Package metricstore implements the Metric Store Adapter (spec
// §4.1): a read-through-cached, circuit-broken façade over a
// per-tenant Postgres warehouse view. It is the only component that
// talks to the warehouse; everything above it works with
// pkg/types.AdRecord and pkg/types.AdSummary.
package metricstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	adierrors "github.com/adinsight/adinsight/internal/adierrors"
	"github.com/adinsight/adinsight/pkg/shared/logging"
	"github.com/adinsight/adinsight/pkg/types"
)

// retrySchedule is the fixed backoff schedule of spec §4.1: after the
// first attempt, up to three retries waiting 100ms, 400ms, 1600ms.
var retrySchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// cacheTTL is the default read-through cache lifetime for a
// (tenant, window) query result.
const cacheTTL = 60 * time.Second

// Adapter is the Metric Store Adapter. Safe for concurrent use; the
// underlying *sqlx.DB and *redis.Client pools are themselves
// concurrency-safe.
type Adapter struct {
	db      *sqlx.DB
	cache   *redis.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// New wraps an already-open *sqlx.DB and *redis.Client (nil cache
// disables read-through caching entirely, degrading gracefully to
// warehouse-only reads).
func New(db *sqlx.DB, cache *redis.Client, logger *logrus.Logger) *Adapter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metricstore",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Adapter{db: db, cache: cache, breaker: breaker, logger: logger}
}

func (a *Adapter) readCache(ctx context.Context, key string) ([]byte, bool) {
	if a.cache == nil {
		return nil, false
	}
	val, err := a.cache.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (a *Adapter) writeCache(ctx context.Context, key string, summaries []types.AdSummary) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, cacheTTL).Err(); err != nil && a.logger != nil {
		a.logger.WithFields(logging.DatabaseFields("cache_write", key).ToLogrus()).WithError(err).Warn("read-through cache write failed")
	}
}

func decodeSummaries(data []byte, out *[]types.AdSummary) error {
	return json.Unmarshal(data, out)
}

// adSummaryRow mirrors the warehouse view's column shape: every
// numeric column arrives as a string because the view is defined over
// a reporting export that doesn't guarantee numeric typing end to end.
type adSummaryRow struct {
	AdID          string         `db:"ad_id"`
	DisplayName   string         `db:"display_name"`
	Provider      string         `db:"provider"`
	Market        string         `db:"market"`
	Status        string         `db:"status"`
	TotalSpend    string         `db:"total_spend"`
	WeightedROAS  string         `db:"weighted_roas"`
	WeightedCTR   string         `db:"weighted_ctr"`
	CPA           sql.NullString `db:"cpa"`
	DaysActive    int            `db:"days_active"`
	FirstActive   time.Time      `db:"first_active"`
	LastActive    time.Time      `db:"last_active"`
	DailyBudget   sql.NullString `db:"daily_budget"`
}

// DropReport counts warehouse rows that failed to parse and were
// dropped rather than coerced to zero (spec §9, Open Question 1).
type DropReport struct {
	DroppedRecords int
}

// FetchAdSummaries returns the per-ad aggregate rows for a tenant's
// warehouse view over the trailing windowDays, along with a report of
// any rows dropped due to unparseable numeric columns.
func (a *Adapter) FetchAdSummaries(ctx context.Context, warehouseView string, windowDays int) ([]types.AdSummary, DropReport, error) {
	cacheKey := "adinsight:summaries:" + warehouseView + ":" + strconv.Itoa(windowDays)

	if cached, ok := a.readCache(ctx, cacheKey); ok {
		var summaries []types.AdSummary
		if err := decodeSummaries(cached, &summaries); err == nil {
			return summaries, DropReport{}, nil
		}
	}

	rows, err := a.queryWithResilience(ctx, warehouseView, windowDays)
	if err != nil {
		return nil, DropReport{}, err
	}

	summaries, dropped := parseRows(rows)
	a.writeCache(ctx, cacheKey, summaries)

	return summaries, DropReport{DroppedRecords: dropped}, nil
}

func (a *Adapter) queryWithResilience(ctx context.Context, warehouseView string, windowDays int) ([]adSummaryRow, error) {
	query := `SELECT ad_id, display_name, provider, market, status, total_spend,
		weighted_roas, weighted_ctr, cpa, days_active, first_active, last_active, daily_budget
		FROM ` + warehouseView + ` WHERE window_days <= $1`

	op := func() ([]adSummaryRow, error) {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			var rows []adSummaryRow
			if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), windowDays); err != nil {
				return nil, err
			}
			return rows, nil
		})
		if err != nil {
			return nil, err
		}
		return result.([]adSummaryRow), nil
	}

	rows, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&fixedScheduleBackOff{schedule: retrySchedule}),
		backoff.WithMaxTries(uint(len(retrySchedule)+1)),
	)
	if err != nil {
		return nil, adierrors.UpstreamUnavailable("fetch ad summaries", err)
	}
	return rows, nil
}

func parseRows(rows []adSummaryRow) ([]types.AdSummary, int) {
	summaries := make([]types.AdSummary, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		summary, ok := parseRow(row)
		if !ok {
			dropped++
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, dropped
}

func parseRow(row adSummaryRow) (types.AdSummary, bool) {
	spend, err := decimal.NewFromString(row.TotalSpend)
	if err != nil {
		return types.AdSummary{}, false
	}
	roas, err := strconv.ParseFloat(row.WeightedROAS, 64)
	if err != nil {
		return types.AdSummary{}, false
	}
	ctr, err := strconv.ParseFloat(row.WeightedCTR, 64)
	if err != nil {
		return types.AdSummary{}, false
	}

	summary := types.AdSummary{
		AdID:         row.AdID,
		DisplayName:  row.DisplayName,
		Provider:     types.Provider(row.Provider),
		Market:       row.Market,
		Status:       types.CampaignStatus(row.Status),
		TotalSpend:   spend,
		WeightedROAS: roas,
		WeightedCTR:  ctr,
		DaysActive:   row.DaysActive,
		FirstActive:  row.FirstActive,
		LastActive:   row.LastActive,
	}

	if row.CPA.Valid {
		cpa, err := strconv.ParseFloat(row.CPA.String, 64)
		if err != nil {
			return types.AdSummary{}, false
		}
		summary.CPA = cpa
		summary.HasCPA = true
	}

	if row.DailyBudget.Valid {
		budget, err := decimal.NewFromString(row.DailyBudget.String)
		if err != nil {
			return types.AdSummary{}, false
		}
		summary.DailyBudget = budget
		summary.HasDailyBudget = true
	}

	return summary, true
}

// fixedScheduleBackOff replays a fixed slice of durations instead of
// computing an exponential curve, matching the exact 100/400/1600ms
// schedule the spec mandates rather than backoff.NewExponentialBackOff's
// default curve.
type fixedScheduleBackOff struct {
	schedule []time.Duration
	attempt  int
}

func (f *fixedScheduleBackOff) NextBackOff() time.Duration {
	if f.attempt >= len(f.schedule) {
		return backoff.Stop
	}
	d := f.schedule[f.attempt]
	f.attempt++
	return d
}

// ValidateWindow enforces the [1, 365] window bound shared by every
// Metric Store Adapter operation.
func ValidateWindow(windowDays int) error {
	if windowDays < 1 || windowDays > 365 {
		return adierrors.WindowOutOfRange(windowDays)
	}
	return nil
}

// DailyPoint is one (date, value) observation in a time series.
type DailyPoint struct {
	Date  time.Time
	Value float64
}

type dailyPointRow struct {
	Day   time.Time `db:"day"`
	Value string    `db:"value"`
}

// FetchDailySeries returns the ordered daily series for one ad and
// metric, used by probes for trend analysis. The returned slice is a
// one-shot snapshot; callers needing it twice must retain it
// themselves rather than calling again expecting identical warehouse
// state.
func (a *Adapter) FetchDailySeries(ctx context.Context, warehouseView, adID string, metric types.Metric, windowDays int) ([]DailyPoint, error) {
	if err := ValidateWindow(windowDays); err != nil {
		return nil, err
	}
	query := `SELECT day, value FROM ` + warehouseView + `_daily
		WHERE ad_id = $1 AND metric = $2 AND window_days <= $3 ORDER BY day ASC`
	return a.fetchDailyPoints(ctx, query, adID, string(metric), windowDays)
}

// FetchAccountDailyTotals returns the ordered account-wide daily
// series for one metric, used by the seasonality probe. The CPM-spike
// probe reads the per-ad series from FetchDailySeries instead.
func (a *Adapter) FetchAccountDailyTotals(ctx context.Context, warehouseView string, metric types.Metric, windowDays int) ([]DailyPoint, error) {
	if err := ValidateWindow(windowDays); err != nil {
		return nil, err
	}
	query := `SELECT day, value FROM ` + warehouseView + `_account_daily
		WHERE metric = $1 AND window_days <= $2 ORDER BY day ASC`
	return a.fetchDailyPoints(ctx, query, string(metric), windowDays)
}

func (a *Adapter) fetchDailyPoints(ctx context.Context, query string, args ...interface{}) ([]DailyPoint, error) {
	op := func() ([]dailyPointRow, error) {
		result, err := a.breaker.Execute(func() (interface{}, error) {
			var rows []dailyPointRow
			if err := a.db.SelectContext(ctx, &rows, a.db.Rebind(query), args...); err != nil {
				return nil, err
			}
			return rows, nil
		})
		if err != nil {
			return nil, err
		}
		return result.([]dailyPointRow), nil
	}

	rows, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&fixedScheduleBackOff{schedule: retrySchedule}),
		backoff.WithMaxTries(uint(len(retrySchedule)+1)),
	)
	if err != nil {
		return nil, adierrors.UpstreamUnavailable("fetch daily series", err)
	}

	points := make([]DailyPoint, 0, len(rows))
	for _, row := range rows {
		v, err := strconv.ParseFloat(row.Value, 64)
		if err != nil {
			continue
		}
		points = append(points, DailyPoint{Date: row.Day, Value: v})
	}
	return points, nil
}
