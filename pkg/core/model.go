package core

import (
	"context"

	"github.com/adinsight/adinsight/pkg/ai/llm"
	"github.com/adinsight/adinsight/pkg/types"
)

// deterministicModel stands in for llm.Client when a caller asks
// recommend to skip model reasoning. It still speaks the "model
// proposes, code disposes" protocol the orchestrator expects: its
// first Step proposes the full probe catalog in one shot, and once
// every probe has reported back it proposes nothing further, handing
// control to the orchestrator's deterministic resolver. No network
// call and no actual reasoning happens here.
type deterministicModel struct{}

var _ llm.Client = deterministicModel{}

func (deterministicModel) Step(ctx context.Context, req llm.StepRequest) (llm.StepResponse, error) {
	if len(req.ToolResults) > 0 {
		return llm.StepResponse{}, nil
	}

	calls := make([]llm.ToolCall, len(types.AllProbes))
	for i, probe := range types.AllProbes {
		calls[i] = llm.ToolCall{Probe: probe, AdID: req.Anomaly.AdSummary.AdID}
	}
	return llm.StepResponse{ToolCalls: calls}, nil
}
