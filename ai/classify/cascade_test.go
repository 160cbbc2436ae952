package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

func TestCascade_PreClassifierShortCircuits(t *testing.T) {
	mock := &scriptedLLM{reply: `{"intent": "direct", "confidence": 0.9, "reasoning": ""}`}
	pre := NewPreClassifier([]*store.Rule{activeRule("randevu")}, nil, nil)
	c := NewCascade(pre, nil, NewLLMClassifier(mock, nil), Config{})

	r := c.Classify(context.Background(), "randevu almak istiyorum", nil)
	assert.Equal(t, IntentRule, r.Intent)
	assert.Equal(t, LayerKeyword, r.Layer)
	assert.Zero(t, mock.calls)
}

func TestCascade_EmbeddingAcceptedAboveThreshold(t *testing.T) {
	examples, emb := protoExamples()
	embC := NewEmbeddingClassifier(emb)
	require.NoError(t, embC.Warmup(context.Background(), examples))

	mock := &scriptedLLM{reply: `{"intent": "direct", "confidence": 0.9, "reasoning": ""}`}
	c := NewCascade(nil, embC, NewLLMClassifier(mock, nil), Config{EmbeddingThreshold: 0.9})

	r := c.Classify(context.Background(), "near rule", nil)
	assert.Equal(t, IntentRule, r.Intent)
	assert.Equal(t, LayerEmbedding, r.Layer)
	assert.Zero(t, mock.calls)
}

func TestCascade_EmbeddingBelowThresholdFallsToLLM(t *testing.T) {
	examples, emb := protoExamples()
	embC := NewEmbeddingClassifier(emb)
	require.NoError(t, embC.Warmup(context.Background(), examples))

	mock := &scriptedLLM{reply: `{"intent": "rag", "confidence": 0.75, "reasoning": "kb"}`}
	c := NewCascade(nil, embC, NewLLMClassifier(mock, nil), Config{EmbeddingThreshold: 0.9})

	r := c.Classify(context.Background(), "ambiguous", nil)
	assert.Equal(t, IntentRAG, r.Intent)
	assert.Equal(t, LayerLLM, r.Layer)
	assert.Equal(t, 1, mock.calls)
}

func TestCascade_EmbeddingNotReadySkipped(t *testing.T) {
	_, emb := protoExamples()
	embC := NewEmbeddingClassifier(emb) // never warmed up

	mock := &scriptedLLM{reply: `{"intent": "direct", "confidence": 0.8, "reasoning": ""}`}
	c := NewCascade(nil, embC, NewLLMClassifier(mock, nil), Config{EmbeddingThreshold: 0.5})

	r := c.Classify(context.Background(), "herhangi bir şey", nil)
	assert.Equal(t, LayerLLM, r.Layer)
	assert.Equal(t, 1, mock.calls)
}

func TestCascade_NoLayersReturnsDefault(t *testing.T) {
	c := NewCascade(nil, nil, nil, Config{DefaultIntent: IntentCharacter})

	r := c.Classify(context.Background(), "merhaba", nil)
	assert.Equal(t, IntentCharacter, r.Intent)
	assert.Zero(t, r.Confidence)
	assert.Equal(t, LayerDefault, r.Layer)
}

func TestCascade_SignalsForwardedToLLM(t *testing.T) {
	mock := &scriptedLLM{reply: `{"intent": "rule", "confidence": 0.9, "reasoning": ""}`}
	cache := NewCache(10, time.Minute)
	c := NewCascade(nil, nil, NewLLMClassifier(mock, cache), Config{
		RuleDescriptions: []string{"hours: opening hours"},
		LLMTimeout:       5 * time.Second,
		DefaultIntent:    IntentDirect,
	})

	turn := &TurnSignals{PreviousIntent: IntentRule, FlowActive: true}
	r := c.Classify(context.Background(), "devam edelim", turn)
	assert.Equal(t, IntentRule, r.Intent)
	assert.Equal(t, 1, mock.calls)
}
