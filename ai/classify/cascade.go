package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/queryon/queryon/ai/core/llm"
)

// Config captures the snapshot-scoped knobs for one cascade instance. A new
// Cascade is built whenever rules, tools or the orchestrator config change;
// the embedding classifier and the cache are shared across rebuilds.
type Config struct {
	RuleDescriptions   []string
	ToolDescriptions   []string
	EmbeddingThreshold float64
	LLMTimeout         time.Duration
	DefaultIntent      Intent
}

// TurnSignals carries the per-turn context the later layers use.
type TurnSignals struct {
	History        []llm.Message
	PreviousIntent Intent
	FlowActive     bool
}

// Cascade chains the three classifier layers. Any layer may be nil; a later
// layer only runs when every earlier one missed its floor.
type Cascade struct {
	pre       *PreClassifier
	embedding *EmbeddingClassifier
	llm       *LLMClassifier
	cfg       Config
}

// NewCascade assembles a cascade from whichever layers are available.
func NewCascade(pre *PreClassifier, emb *EmbeddingClassifier, llmClassifier *LLMClassifier, cfg Config) *Cascade {
	return &Cascade{pre: pre, embedding: emb, llm: llmClassifier, cfg: cfg}
}

// Classify runs the layers in order and returns the first accepted verdict.
// It always returns a non-nil result; when every layer is unavailable the
// default intent comes back at confidence 0 so the low-confidence policy
// applies.
func (c *Cascade) Classify(ctx context.Context, query string, turn *TurnSignals) *Result {
	if turn == nil {
		turn = &TurnSignals{}
	}

	if c.pre != nil {
		if r := c.pre.Classify(query); r != nil {
			return r
		}
	}

	if c.embedding != nil && c.embedding.Ready() {
		r, err := c.embedding.Classify(ctx, query)
		switch {
		case err != nil:
			slog.Warn("embedding classification failed", "error", err)
		case r.Confidence >= c.cfg.EmbeddingThreshold:
			return r
		}
	}

	if c.llm != nil {
		return c.llm.Classify(ctx, query, &ClassifyOptions{
			RuleDescriptions: c.cfg.RuleDescriptions,
			ToolDescriptions: c.cfg.ToolDescriptions,
			History:          turn.History,
			PreviousIntent:   turn.PreviousIntent,
			FlowActive:       turn.FlowActive,
			Timeout:          c.cfg.LLMTimeout,
			DefaultIntent:    c.cfg.DefaultIntent,
		})
	}

	intent := c.cfg.DefaultIntent
	if intent == "" {
		intent = IntentDirect
	}
	return &Result{Intent: intent, Confidence: 0, Layer: LayerDefault, Reasoning: "no classifier available"}
}
