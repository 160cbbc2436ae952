package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/queryon/queryon/ai/core/llm"
)

const classifierSystemPrompt = "You route customer messages for a small business assistant. " +
	"You respond with your reasoning in a <thinking> block followed by exactly one line of JSON."

// ClassifyOptions carries the per-turn signals the classification prompt
// embeds.
type ClassifyOptions struct {
	// RuleDescriptions and ToolDescriptions come from the active config
	// snapshot, formatted one per entry as "name: description".
	RuleDescriptions []string
	ToolDescriptions []string

	// History is the last few turns. When non-empty the cache is bypassed:
	// the same words can classify differently mid-conversation.
	History []llm.Message

	// PreviousIntent biases follow-up turns toward the prior intent.
	PreviousIntent Intent

	// FlowActive biases classification toward rule while a scripted flow
	// is collecting fields.
	FlowActive bool

	Timeout       time.Duration
	DefaultIntent Intent
}

// LLMClassifier is the final cascade layer. Verdicts for history-free
// queries are memoised in the cache.
type LLMClassifier struct {
	llm   llm.Service
	cache *Cache
}

// NewLLMClassifier wraps an LLM service. cache may be nil to disable
// memoisation.
func NewLLMClassifier(svc llm.Service, cache *Cache) *LLMClassifier {
	return &LLMClassifier{llm: svc, cache: cache}
}

// Classify asks the LLM for a verdict. It never returns an error: timeouts
// yield the configured default intent at confidence 0 and malformed replies
// yield direct at confidence 0.
func (c *LLMClassifier) Classify(ctx context.Context, query string, opts *ClassifyOptions) *Result {
	if opts == nil {
		opts = &ClassifyOptions{}
	}
	defaultIntent := opts.DefaultIntent
	if defaultIntent == "" {
		defaultIntent = IntentDirect
	}

	useCache := c.cache != nil && len(opts.History) == 0
	if useCache {
		if cached, ok := c.cache.Get(query); ok {
			return &cached
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []llm.Message{
		llm.SystemPrompt(classifierSystemPrompt),
		llm.UserMessage(buildClassifierPrompt(query, opts)),
	}

	reply, _, err := c.llm.Chat(cctx, messages)
	if err != nil {
		reason := "classification failed: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "classification timed out"
		}
		slog.Warn("llm classification failed", "error", err)
		return &Result{Intent: defaultIntent, Confidence: 0, Layer: LayerLLM, Reasoning: reason}
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		slog.Warn("unparseable classification reply", "error", err)
		return &Result{Intent: IntentDirect, Confidence: 0, Layer: LayerLLM, Reasoning: "parse error: " + err.Error()}
	}

	intent, ok := ParseIntent(verdict.Intent)
	if !ok {
		return &Result{Intent: IntentDirect, Confidence: 0, Layer: LayerLLM, Reasoning: fmt.Sprintf("parse error: unknown intent %q", verdict.Intent)}
	}

	confidence := verdict.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	result := Result{Intent: intent, Confidence: confidence, Layer: LayerLLM, Reasoning: verdict.Reasoning}
	if useCache {
		c.cache.Set(query, result)
	}
	return &result
}

type llmVerdict struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseVerdict tolerates thinking blocks, markdown fences and prose around
// the JSON line.
func parseVerdict(reply string) (*llmVerdict, error) {
	if idx := strings.LastIndex(reply, "</thinking>"); idx != -1 {
		reply = reply[idx+len("</thinking>"):]
	}
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")

	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var v llmVerdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return nil, fmt.Errorf("decode verdict: %w", err)
	}
	return &v, nil
}

func buildClassifierPrompt(query string, opts *ClassifyOptions) string {
	var sb strings.Builder

	sb.WriteString("Classify the customer message into exactly one intent.\n\n")
	sb.WriteString("Intents:\n")
	sb.WriteString("- rag: answerable from the business knowledge base or documents\n")
	sb.WriteString("- direct: small talk or a general question the assistant answers alone\n")
	sb.WriteString("- rule: matches a configured FAQ answer or scripted flow\n")
	sb.WriteString("- tool: needs an external tool call\n\n")

	if len(opts.RuleDescriptions) > 0 {
		sb.WriteString("Configured rules:\n")
		for _, d := range opts.RuleDescriptions {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
		sb.WriteString("\n")
	}
	if len(opts.ToolDescriptions) > 0 {
		sb.WriteString("Available tools:\n")
		for _, d := range opts.ToolDescriptions {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
		sb.WriteString("\n")
	}
	if len(opts.History) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, m := range opts.History {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
		sb.WriteString("\n")
	}
	if opts.PreviousIntent != "" {
		fmt.Fprintf(&sb, "The previous turn was classified as %s; follow-ups usually keep the same intent.\n", opts.PreviousIntent)
	}
	if opts.FlowActive {
		sb.WriteString("A scripted flow is collecting information right now; prefer rule unless the message is clearly unrelated.\n")
	}

	fmt.Fprintf(&sb, "\nCustomer message: %q\n\n", query)
	sb.WriteString("Reason briefly inside <thinking></thinking>, then emit exactly one line of JSON: ")
	sb.WriteString(`{"intent": "...", "confidence": 0.0, "reasoning": "..."}`)

	return sb.String()
}
