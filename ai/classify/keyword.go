package classify

import (
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// Pre-classifier confidences. A rule keyword hit outranks a tool trigger,
// which outranks a knowledge-base signal.
const (
	ruleHitConfidence = 0.95
	toolHitConfidence = 0.90
	ragHitConfidence  = 0.85
)

// defaultRAGSignals are phrases that point at the knowledge base. The list
// covers Turkish and English; deployments can extend it.
var defaultRAGSignals = []string{
	"doküman", "dokuman", "belge", "katalog", "broşür", "brosur",
	"kılavuz", "kilavuz", "sözleşme", "sozlesme", "bilgi bankası",
	"document", "manual", "catalog", "brochure", "knowledge base",
	"according to", "policy", "terms",
}

type toolTrigger struct {
	name    string
	phrases []string
}

// PreClassifier is the zero-latency keyword layer. It is rebuilt whenever
// the active rule or tool set changes; instances are immutable after New.
type PreClassifier struct {
	ruleKeywords []string
	toolTriggers []toolTrigger
	ragSignals   []string
}

// NewPreClassifier harvests keywords from the active rules' plain-text
// triggers and the enabled tools' trigger phrases. Wildcard and regex
// triggers carry no harvestable keyword and are skipped.
func NewPreClassifier(rules []*store.Rule, tools []*store.ToolConfig, extraRAGSignals []string) *PreClassifier {
	p := &PreClassifier{}

	for _, rule := range rules {
		for _, trigger := range rule.TriggerPatterns {
			trimmed := strings.TrimSpace(trigger)
			if trimmed == "" || trimmed == "*" || strings.HasPrefix(trimmed, "r:") {
				continue
			}
			p.ruleKeywords = append(p.ruleKeywords, normalizeQuery(trimmed))
		}
	}

	for _, tool := range tools {
		if !tool.Enabled || len(tool.Triggers) == 0 {
			continue
		}
		phrases := make([]string, 0, len(tool.Triggers))
		for _, t := range tool.Triggers {
			if t = strings.TrimSpace(t); t != "" {
				phrases = append(phrases, normalizeQuery(t))
			}
		}
		if len(phrases) > 0 {
			p.toolTriggers = append(p.toolTriggers, toolTrigger{name: tool.Name, phrases: phrases})
		}
	}

	p.ragSignals = append(p.ragSignals, defaultRAGSignals...)
	for _, s := range extraRAGSignals {
		if s = strings.TrimSpace(s); s != "" {
			p.ragSignals = append(p.ragSignals, normalizeQuery(s))
		}
	}

	return p
}

// Classify returns a verdict when a keyword hits, nil otherwise.
func (p *PreClassifier) Classify(query string) *Result {
	q := normalizeQuery(query)
	if q == "" {
		return nil
	}

	for _, kw := range p.ruleKeywords {
		if strings.Contains(q, kw) {
			return &Result{
				Intent:     IntentRule,
				Confidence: ruleHitConfidence,
				Layer:      LayerKeyword,
				Reasoning:  fmt.Sprintf("rule trigger %q", kw),
			}
		}
	}

	for _, tool := range p.toolTriggers {
		for _, phrase := range tool.phrases {
			if strings.Contains(q, phrase) {
				return &Result{
					Intent:     IntentTool,
					Confidence: toolHitConfidence,
					Layer:      LayerKeyword,
					Reasoning:  fmt.Sprintf("tool %s trigger %q", tool.name, phrase),
				}
			}
		}
	}

	for _, signal := range p.ragSignals {
		if strings.Contains(q, signal) {
			return &Result{
				Intent:     IntentRAG,
				Confidence: ragHitConfidence,
				Layer:      LayerKeyword,
				Reasoning:  fmt.Sprintf("knowledge signal %q", signal),
			}
		}
	}

	return nil
}
