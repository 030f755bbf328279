package core

import (
	"context"
	"fmt"

	"github.com/adinsight/adinsight/pkg/probes"
	"github.com/adinsight/adinsight/pkg/types"
)

// probeRunner adapts pkg/probes' six differently-shaped functions to
// rca.ProbeRunner's single uniform Run method. BudgetExhaustion needs
// the anomaly's full AdSummary (for its daily-budget fields) rather
// than just an AdID, and Seasonality runs at the account level with no
// AdID at all; both are pulled out of the anomaly here so rca never
// has to know about the asymmetry.
type probeRunner struct {
	fetcher       probes.Fetcher
	warehouseView string
}

func newProbeRunner(fetcher probes.Fetcher, warehouseView string) *probeRunner {
	return &probeRunner{fetcher: fetcher, warehouseView: warehouseView}
}

func (r *probeRunner) Run(ctx context.Context, probe types.ProbeName, anomaly types.Anomaly, windowDays int) (types.Evidence, error) {
	adID := anomaly.AdSummary.AdID

	switch probe {
	case types.ProbeCPMSpike:
		return probes.CPMSpike(ctx, r.fetcher, r.warehouseView, adID, windowDays)
	case types.ProbeCreativeFatigue:
		return probes.CreativeFatigue(ctx, r.fetcher, r.warehouseView, adID, windowDays)
	case types.ProbeLandingPage:
		return probes.LandingPage(ctx, r.fetcher, r.warehouseView, adID, windowDays)
	case types.ProbeTracking:
		return probes.Tracking(ctx, r.fetcher, r.warehouseView, adID, windowDays)
	case types.ProbeBudgetExhaustion:
		return probes.BudgetExhaustion(ctx, r.fetcher, r.warehouseView, anomaly.AdSummary, windowDays)
	case types.ProbeSeasonality:
		return probes.Seasonality(ctx, r.fetcher, r.warehouseView, anomaly.Metric, windowDays)
	default:
		return types.Evidence{}, fmt.Errorf("unknown probe %q", probe)
	}
}
