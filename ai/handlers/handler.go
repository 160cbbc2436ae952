// Package handlers implements the per-intent message handlers the
// orchestrator dispatches to. Handlers never persist anything; the
// orchestrator is the sole writer.
package handlers

import (
	"context"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/ai/rules"
	"github.com/queryon/queryon/store"
)

// Request is one classified turn handed to a handler.
type Request struct {
	Query string

	// History is the recent conversation, oldest first.
	History []llm.Message

	// FlowState is the conversation's raw flow state. Handlers treat it as
	// read-only and return replacements through Metadata.
	FlowState map[string]any

	// AvailabilitySlots are free HH:MM start times for the day the flow is
	// booking, injected by the orchestrator when it can compute them.
	AvailabilitySlots []string

	// Classification is the cascade verdict that routed here, nil for
	// short-circuited rule turns.
	Classification *classify.Result
}

// TurnMetrics is the per-turn timing block the orchestrator assembles.
type TurnMetrics struct {
	ClassificationMs int64  `json:"classification_ms"`
	HandlerMs        int64  `json:"handler_ms"`
	TotalMs          int64  `json:"total_ms"`
	LLMCalls         int64  `json:"llm_calls"`
	ClassifierLayer  string `json:"classifier_layer"`
}

// Metadata carries handler side-channel output back to the orchestrator.
type Metadata struct {
	// NextFlowContext is a scripted-rule transition. Nil with FlowBound set
	// means the matched rule terminated its flow.
	NextFlowContext *rules.FlowContext
	FlowBound       bool

	// ModeState is the full replacement flow state after a mode-flow turn.
	// Only meaningful when ModeChanged is true; an empty map clears it.
	ModeState   store.FlowState
	ModeChanged bool

	// Extracted lists the mode fields captured this turn.
	Extracted map[string]string

	// Confirmed is set when the extract block carried {"confirmed": true}.
	Confirmed bool

	// Error notes a recovered handler-internal failure.
	Error string
}

// Result is a handler's answer for one turn. A nil Answer means the handler
// produced nothing and the orchestrator's fallback policy applies; a non-nil
// empty Answer is deliberate silence.
type Result struct {
	Query          string
	Intent         classify.Intent
	Answer         *string
	Sources        []rag.Source
	RuleMatched    *string
	ToolCalled     *string
	Classification *classify.Result
	Metrics        *TurnMetrics
	Metadata       Metadata
}

// Handler handles one intent category.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Result, error)
}

func strPtr(s string) *string { return &s }
