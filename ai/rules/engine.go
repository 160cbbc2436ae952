// Package rules implements the deterministic rule matcher: standalone FAQ
// rules, multi-step flow rules with step gating and wildcard choices, and
// safe template rendering. An Engine is an immutable snapshot of the active
// rules; rule edits build a new engine and swap the reference.
package rules

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/queryon/queryon/store"
)

// Match is the outcome of a successful rule lookup. For flow-bound rules
// FlowBound is true and NextFlowContext carries the transition: a non-nil
// context advances the flow, a nil context terminates it. Standalone matches
// leave the flow state untouched.
type Match struct {
	Rule            *store.Rule
	Response        string
	NextFlowContext *FlowContext
	FlowBound       bool
}

type compiledPattern struct {
	raw      string
	regex    *regexp.Regexp
	matchAny bool
}

type compiledRule struct {
	rule     *store.Rule
	patterns []compiledPattern
}

type flowStep struct {
	flowID string
	step   string
}

// Engine matches user queries against a fixed snapshot of rules. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	standalone []*compiledRule
	flowEntry  []*compiledRule
	// byStep indexes flow rules by the step they define; byRequired indexes
	// them by the step the user must be at for the rule to fire.
	byStep     map[flowStep][]*compiledRule
	byRequired map[flowStep][]*compiledRule
}

// NewEngine builds an engine from the given rules. Rules are ordered by
// priority descending with insertion order as the tie-break. Invalid regexp
// patterns are logged and skipped; a rule whose patterns are all invalid can
// never match.
func NewEngine(ruleList []*store.Rule) *Engine {
	sorted := make([]*store.Rule, len(ruleList))
	copy(sorted, ruleList)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	e := &Engine{
		byStep:     make(map[flowStep][]*compiledRule),
		byRequired: make(map[flowStep][]*compiledRule),
	}

	for _, rule := range sorted {
		cr := &compiledRule{rule: rule, patterns: compilePatterns(rule)}

		if rule.FlowID == nil {
			e.standalone = append(e.standalone, cr)
			continue
		}

		if rule.StepKey == nil {
			slog.Warn("flow rule has no step key, skipping", "rule", rule.Name)
			continue
		}

		key := flowStep{flowID: *rule.FlowID, step: *rule.StepKey}
		e.byStep[key] = append(e.byStep[key], cr)

		if rule.RequiredStep == nil {
			e.flowEntry = append(e.flowEntry, cr)
		} else {
			req := flowStep{flowID: *rule.FlowID, step: *rule.RequiredStep}
			e.byRequired[req] = append(e.byRequired[req], cr)
		}
	}

	return e
}

func compilePatterns(rule *store.Rule) []compiledPattern {
	patterns := make([]compiledPattern, 0, len(rule.TriggerPatterns))
	for _, raw := range rule.TriggerPatterns {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			patterns = append(patterns, compiledPattern{raw: trimmed, matchAny: true})
			continue
		}
		if expr, ok := strings.CutPrefix(trimmed, "r:"); ok {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				slog.Warn("invalid rule regexp pattern, skipping", "rule", rule.Name, "pattern", expr, "error", err)
				continue
			}
			patterns = append(patterns, compiledPattern{raw: trimmed, regex: re})
			continue
		}
		patterns = append(patterns, compiledPattern{raw: strings.ToLower(trimmed)})
	}
	return patterns
}

func (cr *compiledRule) matches(query string) bool {
	lower := strings.ToLower(query)
	for _, p := range cr.patterns {
		switch {
		case p.matchAny:
			return true
		case p.regex != nil:
			if p.regex.MatchString(query) {
				return true
			}
		default:
			if strings.Contains(lower, p.raw) {
				return true
			}
		}
	}
	return false
}

// Match finds at most one rule for the query. With an active flow context the
// order is: choice resolution on the current step, then step-gated flow
// rules, then standalone rules as the mid-flow escape hatch. Without a flow
// context, standalone rules run first, then flow entry rules. Empty queries
// match nothing.
func (e *Engine) Match(query string, flowCtx *FlowContext) *Match {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}

	if flowCtx != nil && flowCtx.FlowID != "" {
		if m := e.matchChoice(q, flowCtx); m != nil {
			return m
		}
		if m := e.matchFlowStep(q, flowCtx); m != nil {
			return m
		}
		return e.matchList(q, e.standalone)
	}

	if m := e.matchList(q, e.standalone); m != nil {
		return m
	}
	return e.matchFlow(q, e.flowEntry, nil)
}

// matchChoice resolves the user's answer against the choice map offered by
// the current step, then jumps to the chosen step's highest-priority rule.
func (e *Engine) matchChoice(query string, ctx *FlowContext) *Match {
	current := flowStep{flowID: ctx.FlowID, step: ctx.CurrentStep}
	for _, cr := range e.byStep[current] {
		if len(cr.rule.NextSteps) == 0 {
			continue
		}
		target, ok := resolveChoice(query, cr.rule.NextSteps)
		if !ok {
			continue
		}
		for _, targetRule := range e.byStep[flowStep{flowID: ctx.FlowID, step: target}] {
			return e.flowTransition(targetRule, query, ctx)
		}
	}
	return nil
}

func (e *Engine) matchFlowStep(query string, ctx *FlowContext) *Match {
	key := flowStep{flowID: ctx.FlowID, step: ctx.CurrentStep}
	return e.matchFlow(query, e.byRequired[key], ctx)
}

func (e *Engine) matchFlow(query string, candidates []*compiledRule, prev *FlowContext) *Match {
	for _, cr := range candidates {
		if cr.matches(query) {
			return e.flowTransition(cr, query, prev)
		}
	}
	return nil
}

func (e *Engine) matchList(query string, candidates []*compiledRule) *Match {
	for _, cr := range candidates {
		if cr.matches(query) {
			return &Match{
				Rule:     cr.rule,
				Response: Render(cr.rule.ResponseTemplate, cr.rule.Variables),
			}
		}
	}
	return nil
}

// flowTransition builds the match for a flow-bound rule. A rule without
// next_steps is terminal and clears the flow; otherwise the new context
// lands on the rule's own step, records the raw query as the selection made
// at the previous step and carries prior data forward.
func (e *Engine) flowTransition(cr *compiledRule, query string, prev *FlowContext) *Match {
	m := &Match{
		Rule:      cr.rule,
		Response:  Render(cr.rule.ResponseTemplate, cr.rule.Variables),
		FlowBound: true,
	}
	if len(cr.rule.NextSteps) == 0 {
		return m
	}

	next := prev.Clone()
	if next == nil {
		next = &FlowContext{}
	}
	next.FlowID = *cr.rule.FlowID
	if prev != nil && prev.CurrentStep != "" {
		if next.Selections == nil {
			next.Selections = make(map[string]string)
		}
		next.Selections[prev.CurrentStep] = query
	}
	next.CurrentStep = *cr.rule.StepKey
	m.NextFlowContext = next
	return m
}

// resolveChoice matches the query against the choice keys of a next_steps
// map. Keys of one or two characters must match a whole word so that "a"
// does not fire inside "merhaba"; longer keys match as substrings. The "*"
// key is the catch-all, consulted only if no explicit key matched.
func resolveChoice(query string, nextSteps map[string]string) (string, bool) {
	keys := make([]string, 0, len(nextSteps))
	for k := range nextSteps {
		if k != "*" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		if matchChoiceKey(query, key) {
			return nextSteps[key], true
		}
	}
	if target, ok := nextSteps["*"]; ok {
		return target, true
	}
	return "", false
}

func matchChoiceKey(query, key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return false
	}
	q := strings.ToLower(query)
	if len([]rune(k)) <= 2 {
		for _, word := range splitWords(q) {
			if word == k {
				return true
			}
		}
		return false
	}
	return strings.Contains(q, k)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// StandaloneRules returns the standalone rules in match order, for the
// LLM-assisted picker and keyword harvesting.
func (e *Engine) StandaloneRules() []*store.Rule {
	out := make([]*store.Rule, 0, len(e.standalone))
	for _, cr := range e.standalone {
		out = append(out, cr.rule)
	}
	return out
}

// RuleCount returns how many rules the engine holds.
func (e *Engine) RuleCount() int {
	n := len(e.standalone)
	for _, rs := range e.byStep {
		n += len(rs)
	}
	return n
}
