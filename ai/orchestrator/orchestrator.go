// Package orchestrator runs the message pipeline: classification, rule
// short-circuits, handler dispatch, fallback policy, persistence and intake
// finalisation. It is the only component that writes conversation state;
// handlers stay side-effect free.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/core/embedding"
	"github.com/queryon/queryon/ai/core/llm"
	"github.com/queryon/queryon/ai/metrics"
	"github.com/queryon/queryon/ai/rag"
	"github.com/queryon/queryon/ai/rules"
	"github.com/queryon/queryon/ai/tools"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/store"
)

// Scheduler answers availability questions for appointment flows. The
// server's availability service implements it; a nil scheduler disables slot
// suggestions and reschedule conflict checks.
type Scheduler interface {
	// SlotsFor returns free HH:MM start times for one day.
	SlotsFor(ctx context.Context, artist, date, service string) ([]string, error)

	// HasConflict reports whether the given slot overlaps an existing
	// appointment or calendar block. excludeAppointmentID exempts the
	// appointment being rescheduled from the check.
	HasConflict(ctx context.Context, artist, date, timeStr, service string, excludeAppointmentID *int32) (bool, error)

	// Reserve records the appointment's slot as a booked calendar block,
	// replacing any block the appointment already holds.
	Reserve(ctx context.Context, artist, date, timeStr, service string, appointmentID int32) error
}

// Options wires the orchestrator's collaborators. Store is required, the
// rest degrade gracefully when absent.
type Options struct {
	Store     store.TurnStore
	LLM       llm.Service
	Embedder  embedding.Service
	RAG       rag.Service
	Scheduler Scheduler
	Metrics   *metrics.Exporter
	Webhooks  *webhook.Dispatcher

	// RuleAssistThreshold enables LLM-assisted rule matching when positive.
	RuleAssistThreshold float64
}

// Orchestrator processes conversation turns. The swappable collaborators sit
// behind mu so admin reloads never race an in-flight turn.
type Orchestrator struct {
	store     store.TurnStore
	metrics   *metrics.Exporter
	webhooks  *webhook.Dispatcher
	scheduler Scheduler

	// The embedding classifier and the verdict cache survive reloads so
	// warmed prototypes and memoised classifications are not thrown away.
	embedClassifier *classify.EmbeddingClassifier
	classifyCache   *classify.Cache
	assistThreshold float64

	seenCacheHits   atomic.Int64
	seenCacheMisses atomic.Int64

	mu       sync.RWMutex
	llm      llm.Service
	rag      rag.Service
	engine   *rules.Engine
	assist   *rules.Assist
	cascade  *classify.Cascade
	registry *tools.Registry
}

// New builds an orchestrator and performs the initial load of rules, tools
// and classifier configuration.
func New(ctx context.Context, opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errs.New(errs.KindConfiguration, "orchestrator requires a store")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewExporter(metrics.DefaultConfig())
	}
	if opts.Webhooks == nil {
		opts.Webhooks = webhook.NewDispatcher(opts.Metrics)
	}

	o := &Orchestrator{
		store:           opts.Store,
		metrics:         opts.Metrics,
		webhooks:        opts.Webhooks,
		scheduler:       opts.Scheduler,
		classifyCache:   classify.NewCache(0, 0),
		assistThreshold: opts.RuleAssistThreshold,
		llm:             opts.LLM,
		rag:             opts.RAG,
	}
	if opts.Embedder != nil {
		o.embedClassifier = classify.NewEmbeddingClassifier(opts.Embedder)
	}
	if err := o.Reload(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// Reload rebuilds the rule engine, tool registry and classifier cascade from
// current store contents. Admin mutations call it after committing changes.
func (o *Orchestrator) Reload(ctx context.Context) error {
	cfg, err := o.store.GetOrchestratorConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "load orchestrator config")
	}
	ruleList, err := o.store.ListActiveRules(ctx)
	if err != nil {
		return errors.Wrap(err, "load active rules")
	}
	enabled := true
	toolConfigs, err := o.store.ListToolConfigs(ctx, &store.FindToolConfig{Enabled: &enabled})
	if err != nil {
		return errors.Wrap(err, "load tool configs")
	}
	registry, err := tools.NewRegistry(toolConfigs)
	if err != nil {
		return errors.Wrap(err, "build tool registry")
	}
	engine := rules.NewEngine(ruleList)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.engine = engine
	o.registry = registry
	o.assist = nil
	if o.assistThreshold > 0 && o.llm != nil {
		o.assist = rules.NewAssist(o.llm, o.assistThreshold)
	}
	o.cascade = o.newCascadeLocked(cfg, ruleList, registry)
	slog.Info("orchestrator reloaded", "rules", engine.RuleCount(), "tools", registry.Len())
	return nil
}

func (o *Orchestrator) newCascadeLocked(cfg *store.OrchestratorConfig, ruleList []*store.Rule, registry *tools.Registry) *classify.Cascade {
	pre := classify.NewPreClassifier(ruleList, registry.Configs(), nil)
	var llmLayer *classify.LLMClassifier
	if o.llm != nil {
		llmLayer = classify.NewLLMClassifier(o.llm, o.classifyCache)
	}
	return classify.NewCascade(pre, o.embedClassifier, llmLayer, classify.Config{
		RuleDescriptions:   ruleDescriptions(ruleList),
		ToolDescriptions:   registry.Descriptions(),
		EmbeddingThreshold: cfg.EmbeddingConfidenceThreshold,
		LLMTimeout:         time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		DefaultIntent:      defaultIntent(cfg),
	})
}

// WarmupClassifier embeds the intent prototypes so the embedding layer can
// vote. Run it on a background goroutine at startup; classification works
// without it, the embedding layer just stays cold.
func (o *Orchestrator) WarmupClassifier(ctx context.Context) error {
	if o.embedClassifier == nil {
		return nil
	}
	return o.embedClassifier.Warmup(ctx, nil)
}

// SwapLLM replaces the chat model after an admin activates a different one.
// The cascade and the rule assist are rebuilt against the new client.
func (o *Orchestrator) SwapLLM(ctx context.Context, svc llm.Service) error {
	o.mu.Lock()
	o.llm = svc
	o.mu.Unlock()
	return o.Reload(ctx)
}

// SwapEmbedder replaces the embedding client behind the L2 classifier.
// Prototypes embed lazily, so callers should follow up with WarmupClassifier.
func (o *Orchestrator) SwapEmbedder(ctx context.Context, svc embedding.Service) error {
	o.mu.Lock()
	if svc != nil {
		o.embedClassifier = classify.NewEmbeddingClassifier(svc)
	} else {
		o.embedClassifier = nil
	}
	o.mu.Unlock()
	return o.Reload(ctx)
}

// SwapRAG replaces the retrieval service. nil disables knowledge answers.
func (o *Orchestrator) SwapRAG(svc rag.Service) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rag = svc
}

// pipeline is a consistent view of the swappable collaborators for one turn.
type pipeline struct {
	llm      llm.Service
	rag      rag.Service
	engine   *rules.Engine
	assist   *rules.Assist
	cascade  *classify.Cascade
	registry *tools.Registry
}

func (o *Orchestrator) snapshot() pipeline {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return pipeline{
		llm:      o.llm,
		rag:      o.rag,
		engine:   o.engine,
		assist:   o.assist,
		cascade:  o.cascade,
		registry: o.registry,
	}
}

// flushCacheMetrics publishes the verdict cache's counter deltas.
func (o *Orchestrator) flushCacheMetrics() {
	hits, misses := o.classifyCache.Stats()
	o.metrics.AddCacheStats("classification",
		hits-o.seenCacheHits.Swap(hits),
		misses-o.seenCacheMisses.Swap(misses))
}

// ruleDescriptions renders rules as "name: description" lines for the L3
// classifier prompt; rules without a description list by name alone.
func ruleDescriptions(ruleList []*store.Rule) []string {
	out := make([]string, 0, len(ruleList))
	for _, r := range ruleList {
		if r.Description != "" {
			out = append(out, r.Name+": "+r.Description)
			continue
		}
		out = append(out, r.Name)
	}
	return out
}

func defaultIntent(cfg *store.OrchestratorConfig) classify.Intent {
	if intent, ok := classify.ParseIntent(cfg.DefaultIntent); ok {
		return intent
	}
	return classify.IntentDirect
}

func ptr[T any](v T) *T { return &v }
