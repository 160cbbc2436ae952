package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/queryon/queryon/ai/core/embedding"
)

// PrototypeExamples maps each intent to curated example queries. The
// examples are embedded once at warmup and every incoming query is scored
// against them.
type PrototypeExamples map[Intent][]string

// DefaultPrototypeExamples covers Turkish and English phrasing for the four
// classifiable intents.
func DefaultPrototypeExamples() PrototypeExamples {
	return PrototypeExamples{
		IntentRAG: {
			"fiyat listenizde neler var",
			"hizmetleriniz hakkında detaylı bilgi alabilir miyim",
			"kataloğunuzda gelin paketi var mı",
			"what services do you offer",
			"do you have a price list",
			"tell me about your packages",
		},
		IntentDirect: {
			"merhaba",
			"teşekkür ederim",
			"nasılsınız",
			"hello there",
			"thank you so much",
			"can you help me",
		},
		IntentRule: {
			"çalışma saatleriniz nedir",
			"adresiniz nerede",
			"hangi günler açıksınız",
			"what are your opening hours",
			"where are you located",
			"randevu almak istiyorum",
		},
		IntentTool: {
			"kargom nerede",
			"sipariş durumumu sorgula",
			"hava durumu nasıl",
			"track my order",
			"check the status of my delivery",
			"what is the weather like",
		},
	}
}

type prototype struct {
	intent  Intent
	vectors [][]float32
}

// EmbeddingClassifier scores queries against per-intent prototype vectors.
// Warmup must complete before Classify returns verdicts; until then the
// cascade skips this layer.
type EmbeddingClassifier struct {
	embedder embedding.Service

	mu         sync.RWMutex
	prototypes []prototype
	ready      atomic.Bool
}

// NewEmbeddingClassifier wraps the embedding service. The classifier is not
// usable until Warmup has run.
func NewEmbeddingClassifier(embedder embedding.Service) *EmbeddingClassifier {
	return &EmbeddingClassifier{embedder: embedder}
}

// Ready reports whether prototype vectors are loaded.
func (c *EmbeddingClassifier) Ready() bool {
	return c.ready.Load()
}

// Warmup embeds the example queries, one batch per intent, at most four
// batches in flight. Safe to call again to refresh the prototypes.
func (c *EmbeddingClassifier) Warmup(ctx context.Context, examples PrototypeExamples) error {
	if len(examples) == 0 {
		examples = DefaultPrototypeExamples()
	}

	intents := make([]Intent, 0, len(examples))
	for intent := range examples {
		intents = append(intents, intent)
	}
	sort.Slice(intents, func(i, j int) bool { return intents[i] < intents[j] })

	protos := make([]prototype, len(intents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, intent := range intents {
		texts := examples[intent]
		if len(texts) == 0 {
			continue
		}
		g.Go(func() error {
			vectors, err := c.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed %s prototypes: %w", intent, err)
			}
			protos[i] = prototype{intent: intent, vectors: vectors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	loaded := protos[:0]
	for _, p := range protos {
		if len(p.vectors) > 0 {
			loaded = append(loaded, p)
		}
	}

	c.mu.Lock()
	c.prototypes = loaded
	c.mu.Unlock()
	c.ready.Store(len(loaded) > 0)

	slog.Info("embedding classifier warmed up", "intents", len(loaded))
	return nil
}

// Classify embeds the query and picks the intent whose prototypes are
// nearest on average. Confidence is the winning mean similarity; the margin
// to the runner-up is surfaced in the reasoning.
func (c *EmbeddingClassifier) Classify(ctx context.Context, query string) (*Result, error) {
	if !c.ready.Load() {
		return nil, fmt.Errorf("embedding classifier not warmed up")
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	c.mu.RLock()
	protos := c.prototypes
	c.mu.RUnlock()

	var best, second float64
	var bestIntent Intent
	best, second = -1, -1
	for _, p := range protos {
		var sum float64
		for _, pv := range p.vectors {
			sum += float64(cosineSimilarity(vector, pv))
		}
		mean := sum / float64(len(p.vectors))
		switch {
		case mean > best:
			second = best
			best = mean
			bestIntent = p.intent
		case mean > second:
			second = mean
		}
	}
	if bestIntent == "" {
		return nil, fmt.Errorf("no prototypes loaded")
	}

	margin := best - second
	if second < 0 {
		margin = best
	}

	return &Result{
		Intent:     bestIntent,
		Confidence: best,
		Layer:      LayerEmbedding,
		Reasoning:  fmt.Sprintf("mean prototype similarity %.3f, margin %.3f", best, margin),
	}, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct float32
	var normA float32
	var normB float32

	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
