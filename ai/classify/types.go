// Package classify implements the layered intent classifier: a keyword
// pre-classifier, an embedding prototype classifier and an LLM classifier,
// chained by Cascade. Each layer only fires when the earlier ones missed.
package classify

import "strings"

// Intent is the routing category a user message resolves to.
type Intent string

const (
	IntentRAG       Intent = "rag"
	IntentDirect    Intent = "direct"
	IntentRule      Intent = "rule"
	IntentTool      Intent = "tool"
	IntentCharacter Intent = "character"
)

// Layer names recorded on classification results.
const (
	LayerKeyword   = "keyword"
	LayerEmbedding = "embedding"
	LayerLLM       = "llm"
	LayerDefault   = "default"
)

// Result is one classification verdict.
type Result struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Layer      string  `json:"layer"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ParseIntent maps free-form LLM output to a known intent.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentRAG:
		return IntentRAG, true
	case IntentDirect:
		return IntentDirect, true
	case IntentRule:
		return IntentRule, true
	case IntentTool:
		return IntentTool, true
	case IntentCharacter:
		return IntentCharacter, true
	default:
		return "", false
	}
}

// normalizeQuery lowercases and trims a query for keyword matching and cache
// keys. Dotted capital I is folded first so Turkish input lowercases cleanly.
var turkishLower = strings.NewReplacer("İ", "i", "I", "ı")

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(turkishLower.Replace(q)))
}
