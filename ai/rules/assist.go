package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryon/queryon/ai/core/llm"
)

const assistPromptHeader = `You match a user message to exactly one of the rules below, or to none.
Rules:
`

const assistPromptFooter = `
Reply with a single line of JSON and nothing else:
{"rule_id": <id or null>, "confidence": <0.0-1.0>}
`

// Assist asks the LLM to pick among the standalone rules when deterministic
// matching failed. Matches below the confidence threshold are discarded.
type Assist struct {
	llm       llm.Service
	threshold float64
}

// NewAssist builds an assist helper. A non-positive threshold defaults to 0.7.
func NewAssist(svc llm.Service, threshold float64) *Assist {
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Assist{llm: svc, threshold: threshold}
}

type assistVerdict struct {
	RuleID     *int32  `json:"rule_id"`
	Confidence float64 `json:"confidence"`
}

// Match asks the LLM to choose a standalone rule for the query. Returns nil
// when no rule clears the threshold or the reply cannot be parsed.
func (a *Assist) Match(ctx context.Context, engine *Engine, query string) (*Match, error) {
	candidates := engine.StandaloneRules()
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(assistPromptHeader)
	for _, rule := range candidates {
		fmt.Fprintf(&sb, "- id=%d name=%q description=%q\n", rule.ID, rule.Name, rule.Description)
	}
	sb.WriteString(assistPromptFooter)

	messages := []llm.Message{
		llm.SystemPrompt(sb.String()),
		llm.UserMessage(query),
	}

	reply, _, err := a.llm.Chat(ctx, messages)
	if err != nil {
		return nil, err
	}

	verdict, err := parseAssistVerdict(reply)
	if err != nil {
		slog.Warn("rule assist reply not parseable", "error", err)
		return nil, nil
	}
	if verdict.RuleID == nil || verdict.Confidence < a.threshold {
		return nil, nil
	}

	for _, rule := range candidates {
		if rule.ID == *verdict.RuleID {
			return &Match{
				Rule:     rule,
				Response: Render(rule.ResponseTemplate, rule.Variables),
			}, nil
		}
	}
	slog.Warn("rule assist picked unknown rule", "rule_id", *verdict.RuleID)
	return nil, nil
}

func parseAssistVerdict(reply string) (*assistVerdict, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var verdict assistVerdict
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}
