package handlers

import (
	"context"
	"log/slog"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/rules"
)

// RuleHandler resolves a turn against the rule engine. The optional LLM
// assist only runs for non-flow turns where deterministic matching failed.
type RuleHandler struct {
	engine *rules.Engine
	assist *rules.Assist
}

// NewRuleHandler wraps an engine snapshot. assist may be nil.
func NewRuleHandler(engine *rules.Engine, assist *rules.Assist) *RuleHandler {
	return &RuleHandler{engine: engine, assist: assist}
}

func (h *RuleHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	result := &Result{
		Query:          req.Query,
		Intent:         classify.IntentRule,
		Classification: req.Classification,
	}
	if h.engine == nil {
		return result, nil
	}

	flowCtx := rules.FromMap(req.FlowState)
	match := h.engine.Match(req.Query, flowCtx)

	if match == nil && h.assist != nil && flowCtx == nil {
		assisted, err := h.assist.Match(ctx, h.engine, req.Query)
		if err != nil {
			slog.Warn("rule assist failed", "error", err)
		} else {
			match = assisted
		}
	}

	if match == nil {
		return result, nil
	}

	result.Answer = strPtr(match.Response)
	result.RuleMatched = strPtr(match.Rule.Name)
	result.Metadata.NextFlowContext = match.NextFlowContext
	result.Metadata.FlowBound = match.FlowBound
	return result, nil
}
