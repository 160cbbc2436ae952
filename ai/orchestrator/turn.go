package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/flow"
	"github.com/queryon/queryon/ai/handlers"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/ai/rules"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// Classifier layers recorded for rule short-circuits, alongside the
// cascade's own layer names.
const (
	layerFlowRule   = "flow_rule"
	layerRulesFirst = "rules_first"
)

// defaultHistoryTurns bounds the prompt history when the config carries no
// limit of its own.
const defaultHistoryTurns = 10

// Canned Turkish texts for turns no handler could answer.
const (
	clarificationText  = "Tam olarak anlayamadım. Ne yapmak istediğinizi biraz daha açabilir misiniz?"
	apologyText        = "Üzgünüm, şu anda yanıt veremiyorum. Lütfen biraz sonra tekrar deneyin."
	ragUnavailableText = "Bilgi kaynağımıza şu anda erişemiyorum. Sorunuzu birazdan tekrar sorabilir misiniz?"
)

// Response is the outcome of one processed turn, ready for a channel
// adapter to deliver.
type Response struct {
	ConversationID int32
	MessageID      int32
	Answer         string

	// Silent marks a deliberate empty answer; adapters send nothing.
	Silent bool

	Intent             classify.Intent
	Confidence         float64
	NeedsClarification bool
	FallbackUsed       bool
	RuleMatched        *string
	Sources            []rag.Source
	Metrics            *handlers.TurnMetrics
}

// turn carries the working state of one ProcessMessage call.
type turn struct {
	cfg          *store.OrchestratorConfig
	conversation *store.Conversation
	p            pipeline
	modeCfg      *flow.ModeConfig

	query      string
	history    []llm.Message
	lastIntent classify.Intent
	flowState  map[string]any

	classification     *classify.Result
	result             *handlers.Result
	intent             classify.Intent
	needsClarification bool
	fallbackUsed       bool
	events             []*store.MessageEvent
	extraMeta          store.JSONMap

	classificationMs int64
	handlerMs        int64
}

// ProcessMessage runs one user message through classification, dispatch and
// persistence and returns the assistant's reply. The user message is
// committed before any handler runs, so it survives handler failures and is
// visible to concurrent readers while the turn is still being processed.
func (o *Orchestrator) ProcessMessage(ctx context.Context, conversationID int32, query string) (*Response, error) {
	started := time.Now()
	ctx, llmCalls := llm.WithCallCounter(ctx)

	cfg, err := o.store.GetOrchestratorConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load orchestrator config")
	}
	conversation, err := o.store.GetConversation(ctx, &store.FindConversation{ID: &conversationID})
	if err != nil {
		return nil, errors.Wrap(err, "load conversation")
	}
	if conversation == nil {
		return nil, errs.Newf(errs.KindNotFound, "conversation %d not found", conversationID)
	}
	if conversation.Status != store.ConversationActive {
		return nil, errs.Newf(errs.KindConflict, "conversation %d is %s", conversationID, conversation.Status)
	}

	limit := int(cfg.MaxConversationTurns)
	if limit <= 0 {
		limit = defaultHistoryTurns
	}
	recent, err := o.store.GetRecentMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}

	if _, err := o.store.CreateMessage(ctx, &store.Message{
		ConversationID: conversationID,
		Role:           store.RoleUser,
		Content:        query,
	}); err != nil {
		return nil, errors.Wrap(err, "persist user message")
	}
	if err := o.store.IncrementMessageCount(ctx, conversationID); err != nil {
		return nil, errors.Wrap(err, "count user message")
	}

	t := &turn{
		cfg:          cfg,
		conversation: conversation,
		p:            o.snapshot(),
		modeCfg: &flow.ModeConfig{
			AppointmentFields: flow.ParseFields(cfg.AppointmentFields),
			OrderFields:       flow.ParseFields(cfg.OrderFields),
			OrderModeEnabled:  cfg.OrderModeEnabled,
		},
		query:      query,
		history:    llmHistory(recent),
		lastIntent: lastAssistantIntent(recent),
		flowState:  map[string]any(conversation.FlowState),
	}

	classifyStart := time.Now()
	o.classifyTurn(ctx, t)
	t.classificationMs = time.Since(classifyStart).Milliseconds()
	classificationCalls := llmCalls.Load()

	handlerStart := time.Now()
	o.dispatch(ctx, t)
	t.handlerMs = time.Since(handlerStart).Milliseconds()

	newState, stateChanged := resolveFlowState(t)
	if t.result.Metadata.Confirmed {
		newState = o.finalizeIntake(ctx, t, newState)
		stateChanged = true
	}

	totalCalls := llmCalls.Load()
	t.result.Metrics = &handlers.TurnMetrics{
		ClassificationMs: t.classificationMs,
		HandlerMs:        t.handlerMs,
		TotalMs:          time.Since(started).Milliseconds(),
		LLMCalls:         totalCalls,
		ClassifierLayer:  t.classification.Layer,
	}

	saved, err := o.persistTurn(ctx, t)
	if err != nil {
		return nil, err
	}
	if stateChanged {
		if err := o.store.UpdateFlowState(ctx, conversationID, newState); err != nil {
			return nil, errors.Wrap(err, "write flow state")
		}
	}

	o.metrics.RecordTurn(string(t.intent), t.classification.Layer, t.fallbackUsed,
		time.Duration(t.classificationMs)*time.Millisecond,
		time.Duration(t.handlerMs)*time.Millisecond)
	o.metrics.RecordLLMCalls("classification", classificationCalls)
	o.metrics.RecordLLMCalls("handler", totalCalls-classificationCalls)
	o.flushCacheMetrics()

	answer := ""
	if t.result.Answer != nil {
		answer = *t.result.Answer
	}
	return &Response{
		ConversationID:     conversationID,
		MessageID:          saved.ID,
		Answer:             answer,
		Silent:             t.result.Answer != nil && answer == "",
		Intent:             t.intent,
		Confidence:         t.classification.Confidence,
		NeedsClarification: t.needsClarification,
		FallbackUsed:       t.fallbackUsed,
		RuleMatched:        t.result.RuleMatched,
		Sources:            t.result.Sources,
		Metrics:            t.result.Metrics,
	}, nil
}

// classifyTurn resolves the turn's classification, trying the flow-bound and
// rules-first short circuits before the layered cascade. A short-circuit hit
// produces the final result directly from the rendered rule.
func (o *Orchestrator) classifyTurn(ctx context.Context, t *turn) {
	flowCtx := rules.FromMap(t.flowState)

	if flowCtx != nil && t.p.engine != nil {
		if match := t.p.engine.Match(t.query, flowCtx); match != nil {
			t.ruleMatch(match, layerFlowRule, "active flow step matched")
			return
		}
	}
	if flowCtx == nil && t.cfg.RulesFirst && t.p.engine != nil {
		if match := t.p.engine.Match(t.query, nil); match != nil {
			t.ruleMatch(match, layerRulesFirst, "rules-first match")
			return
		}
	}

	if t.p.cascade == nil {
		t.classification = &classify.Result{
			Intent:    defaultIntent(t.cfg),
			Layer:     classify.LayerDefault,
			Reasoning: "no classifier configured",
		}
		return
	}
	t.classification = t.p.cascade.Classify(ctx, t.query, &classify.TurnSignals{
		History:        t.history,
		PreviousIntent: t.lastIntent,
		FlowActive:     flowActive(t.flowState),
	})
}

func (t *turn) ruleMatch(match *rules.Match, layer, reasoning string) {
	t.classification = &classify.Result{
		Intent:     classify.IntentRule,
		Confidence: 1,
		Layer:      layer,
		Reasoning:  reasoning,
	}
	t.intent = classify.IntentRule
	t.result = &handlers.Result{
		Query:          t.query,
		Intent:         classify.IntentRule,
		Answer:         ptr(match.Response),
		RuleMatched:    ptr(match.Rule.Name),
		Classification: t.classification,
		Metadata: handlers.Metadata{
			NextFlowContext: match.NextFlowContext,
			FlowBound:       match.FlowBound,
		},
	}
}

// dispatch applies the confidence policy, picks a handler and runs it,
// including the RAG-to-direct fallback and the final apology.
func (o *Orchestrator) dispatch(ctx context.Context, t *turn) {
	if t.result != nil {
		return
	}
	t.intent = t.classification.Intent

	if t.classification.Confidence < t.cfg.MinConfidence {
		t.events = append(t.events, event(store.EventLowConfidence, store.JSONMap{
			"confidence": t.classification.Confidence,
			"threshold":  t.cfg.MinConfidence,
			"strategy":   t.cfg.LowConfidenceStrategy,
		}))
		if t.cfg.LowConfidenceStrategy == "ask_user" {
			t.needsClarification = true
			t.result = &handlers.Result{
				Query:          t.query,
				Intent:         t.intent,
				Answer:         ptr(clarificationText),
				Classification: t.classification,
			}
			return
		}
		if fallback := defaultIntent(t.cfg); fallback != t.intent {
			t.addFallbackEvent(string(t.intent), string(fallback), "low confidence")
			t.intent = fallback
		}
	}

	if t.intent == classify.IntentRAG && t.p.rag == nil {
		if t.cfg.WhenRAGUnavailable == "ask_user" || t.p.llm == nil {
			t.result = &handlers.Result{
				Query:          t.query,
				Intent:         t.intent,
				Answer:         ptr(ragUnavailableText),
				Classification: t.classification,
				Metadata:       handlers.Metadata{Error: "rag service unavailable"},
			}
			return
		}
		t.addFallbackEvent("rag", "direct", "rag service unavailable")
		t.extra("fallback_from_intent", "rag")
		t.fallbackUsed = true
		t.intent = classify.IntentDirect
	}

	if !t.available(t.intent) {
		if fallback := defaultIntent(t.cfg); fallback != t.intent && t.available(fallback) {
			t.addFallbackEvent(string(t.intent), string(fallback), "intent unavailable")
			t.fallbackUsed = true
			t.intent = fallback
		}
	}

	req := &handlers.Request{
		Query:             t.query,
		History:           t.history,
		FlowState:         t.flowState,
		AvailabilitySlots: o.availabilitySlots(ctx, t),
		Classification:    t.classification,
	}
	t.result = o.runHandler(ctx, t, t.intent, req)

	// An empty knowledge-base answer falls through to the direct handler
	// when the config allows it.
	if t.intent == classify.IntentRAG && t.result != nil && t.result.Answer == nil &&
		t.cfg.FallbackToDirect && t.p.llm != nil {
		t.addFallbackEvent("rag", "direct", "knowledge base had no answer")
		t.extra("fallback_from_intent", "rag")
		t.fallbackUsed = true
		t.intent = classify.IntentDirect
		if direct := o.runHandler(ctx, t, classify.IntentDirect, req); direct != nil {
			t.result = direct
		}
	}

	if t.result == nil {
		t.result = &handlers.Result{Query: t.query, Intent: t.intent, Classification: t.classification}
	}
	if t.result.Answer == nil {
		t.fallbackUsed = true
		t.result.Answer = ptr(apologyText)
		if t.result.Metadata.Error == "" {
			t.result.Metadata.Error = "no handler produced an answer"
		}
	}
}

func (o *Orchestrator) runHandler(ctx context.Context, t *turn, intent classify.Intent, req *handlers.Request) *handlers.Result {
	var h handlers.Handler
	switch intent {
	case classify.IntentRule:
		h = handlers.NewRuleHandler(t.p.engine, t.p.assist)
	case classify.IntentRAG:
		h = handlers.NewRAGHandler(t.p.rag)
	case classify.IntentDirect:
		h = handlers.NewDirectHandler(t.p.llm, t.cfg.CharacterSystemPrompt)
	case classify.IntentTool:
		h = handlers.NewToolHandler(t.p.registry)
	case classify.IntentCharacter:
		h = handlers.NewCharacterHandler(t.p.llm, t.cfg.CharacterSystemPrompt, t.cfg.Restrictions, t.modeCfg)
	default:
		return nil
	}
	result, err := h.Handle(ctx, req)
	if err != nil {
		slog.Error("handler failed", "intent", intent, "error", err)
		return nil
	}
	return result
}

// available reports whether an intent is enabled by config and has a live
// backing service in this snapshot.
func (t *turn) available(intent classify.Intent) bool {
	if !intentEnabled(t.cfg.EnabledIntents, intent) {
		return false
	}
	switch intent {
	case classify.IntentRule:
		return t.p.engine != nil && t.p.engine.RuleCount() > 0
	case classify.IntentRAG:
		return t.p.rag != nil
	case classify.IntentTool:
		return t.p.registry != nil && t.p.registry.Len() > 0
	case classify.IntentDirect, classify.IntentCharacter:
		return t.p.llm != nil
	default:
		return false
	}
}

// intentEnabled treats an empty enabled list as everything enabled.
func intentEnabled(enabled []string, intent classify.Intent) bool {
	if len(enabled) == 0 {
		return true
	}
	for _, e := range enabled {
		if classify.Intent(e) == intent {
			return true
		}
	}
	return false
}

// availabilitySlots asks the scheduler for free start times once the flow
// has a date, so the character handler can offer real slots.
func (o *Orchestrator) availabilitySlots(ctx context.Context, t *turn) []string {
	if o.scheduler == nil {
		return nil
	}
	mode, _ := t.flowState[flow.KeyActiveMode].(string)
	if mode != flow.ModeAppointment && mode != flow.ModeReschedule {
		return nil
	}
	sub, _ := t.flowState[mode].(map[string]any)
	date := stringField(sub, "event_date")
	if date == "" || date == flow.Skip {
		return nil
	}
	slots, err := o.scheduler.SlotsFor(ctx, stringField(sub, flow.FieldArtist), date, stringField(sub, flow.FieldEventType))
	if err != nil {
		slog.Warn("availability lookup failed", "date", date, "error", err)
		return nil
	}
	return slots
}

// persistTurn writes the assistant message and its event log. Event log
// failures are logged, not fatal: the reply already exists.
func (o *Orchestrator) persistTurn(ctx context.Context, t *turn) (*store.Message, error) {
	answer := ""
	if t.result.Answer != nil {
		answer = *t.result.Answer
	}
	saved, err := o.store.CreateMessage(ctx, &store.Message{
		ConversationID:     t.conversation.ID,
		Role:               store.RoleAssistant,
		Content:            answer,
		Intent:             ptr(string(t.intent)),
		Confidence:         ptr(t.classification.Confidence),
		ClassifierLayer:    ptr(t.classification.Layer),
		RuleMatched:        t.result.RuleMatched,
		ToolCalled:         t.result.ToolCalled,
		FallbackUsed:       ptr(t.fallbackUsed),
		NeedsClarification: ptr(t.needsClarification),
		TotalMs:            ptr(t.result.Metrics.TotalMs),
		Sources:            sourceMaps(t.result.Sources),
		ExtraMetadata:      t.extraMeta,
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist assistant message")
	}
	if err := o.store.IncrementMessageCount(ctx, t.conversation.ID); err != nil {
		return nil, errors.Wrap(err, "count assistant message")
	}

	events := make([]*store.MessageEvent, 0, len(t.events)+3)
	events = append(events, event(store.EventClassificationResult, store.JSONMap{
		"intent":     string(t.classification.Intent),
		"confidence": t.classification.Confidence,
		"layer":      t.classification.Layer,
		"reasoning":  t.classification.Reasoning,
	}))
	if t.result.RuleMatched != nil {
		events = append(events, event(store.EventRuleMatched, store.JSONMap{"rule": *t.result.RuleMatched}))
	}
	if len(t.result.Sources) > 0 {
		events = append(events, event(store.EventRAGSearch, store.JSONMap{
			"source_count": len(t.result.Sources),
			"top_score":    t.result.Sources[0].Score,
		}))
	}
	events = append(events, t.events...)
	events = append(events, event(store.EventMetrics, store.JSONMap{
		"classification_ms": t.result.Metrics.ClassificationMs,
		"handler_ms":        t.result.Metrics.HandlerMs,
		"total_ms":          t.result.Metrics.TotalMs,
		"llm_calls":         t.result.Metrics.LLMCalls,
	}))
	for _, ev := range events {
		ev.MessageID = saved.ID
	}
	if err := o.store.LogEvents(ctx, events); err != nil {
		slog.Error("event log write failed", "message", saved.ID, "error", err)
	}
	return saved, nil
}

func event(eventType store.EventType, data store.JSONMap) *store.MessageEvent {
	return &store.MessageEvent{EventType: eventType, Data: data}
}

func (t *turn) addFallbackEvent(from, to, reason string) {
	t.events = append(t.events, event(store.EventFallbackTriggered, store.JSONMap{
		"from":   from,
		"to":     to,
		"reason": reason,
	}))
}

func (t *turn) setAnswer(text string) {
	t.result.Answer = ptr(text)
}

func (t *turn) extra(key string, v any) {
	if t.extraMeta == nil {
		t.extraMeta = store.JSONMap{}
	}
	t.extraMeta[key] = v
}

// resolveFlowState decides the next stored flow state. A scripted rule's
// transition wins; otherwise a mode handler's replacement applies.
func resolveFlowState(t *turn) (store.FlowState, bool) {
	md := t.result.Metadata
	if md.FlowBound {
		if md.NextFlowContext == nil {
			return nil, true
		}
		return store.FlowState(md.NextFlowContext.ToMap()), true
	}
	if md.ModeChanged {
		if len(md.ModeState) == 0 {
			return nil, true
		}
		return md.ModeState, true
	}
	return store.FlowState(t.flowState), false
}

// flowActive reports whether either flow family has unfinished state.
func flowActive(state map[string]any) bool {
	if len(state) == 0 {
		return false
	}
	if mode, _ := state[flow.KeyActiveMode].(string); mode != "" {
		return true
	}
	return rules.FromMap(state) != nil
}

// llmHistory converts stored rows to chat messages, oldest first. System
// rows are operator notes and stay out of the prompt.
func llmHistory(recent []*store.Message) []llm.Message {
	out := make([]llm.Message, 0, len(recent))
	for _, m := range recent {
		switch m.Role {
		case store.RoleUser:
			out = append(out, llm.UserMessage(m.Content))
		case store.RoleAssistant:
			out = append(out, llm.AssistantMessage(m.Content))
		}
	}
	return out
}

func lastAssistantIntent(recent []*store.Message) classify.Intent {
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		if m.Role != store.RoleAssistant || m.Intent == nil {
			continue
		}
		if intent, ok := classify.ParseIntent(*m.Intent); ok {
			return intent
		}
	}
	return ""
}

func sourceMaps(sources []rag.Source) []store.JSONMap {
	if len(sources) == 0 {
		return nil
	}
	out := make([]store.JSONMap, 0, len(sources))
	for _, s := range sources {
		out = append(out, store.JSONMap{"title": s.Title, "snippet": s.Snippet, "score": s.Score})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
