package classify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns canned vectors per text so similarity is
// deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func protoExamples() (PrototypeExamples, *fakeEmbedder) {
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"rule one":   {1, 0},
		"rule two":   {0.9, 0.1},
		"direct one": {0, 1},
		"direct two": {0.1, 0.9},
		"near rule":  {1, 0},
		"ambiguous":  {0.707, 0.707},
	}}
	examples := PrototypeExamples{
		IntentRule:   {"rule one", "rule two"},
		IntentDirect: {"direct one", "direct two"},
	}
	return examples, emb
}

func TestEmbeddingClassifier_NotReadyBeforeWarmup(t *testing.T) {
	_, emb := protoExamples()
	c := NewEmbeddingClassifier(emb)

	assert.False(t, c.Ready())
	_, err := c.Classify(context.Background(), "near rule")
	assert.Error(t, err)
}

func TestEmbeddingClassifier_Classify(t *testing.T) {
	examples, emb := protoExamples()
	c := NewEmbeddingClassifier(emb)
	require.NoError(t, c.Warmup(context.Background(), examples))
	require.True(t, c.Ready())

	r, err := c.Classify(context.Background(), "near rule")
	require.NoError(t, err)
	assert.Equal(t, IntentRule, r.Intent)
	assert.Equal(t, LayerEmbedding, r.Layer)
	assert.Greater(t, r.Confidence, 0.99)
	assert.Contains(t, r.Reasoning, "margin")
}

func TestEmbeddingClassifier_AmbiguousQueryScoresLow(t *testing.T) {
	examples, emb := protoExamples()
	c := NewEmbeddingClassifier(emb)
	require.NoError(t, c.Warmup(context.Background(), examples))

	r, err := c.Classify(context.Background(), "ambiguous")
	require.NoError(t, err)
	// Equidistant from both prototype sets: mean similarity well below a
	// usable acceptance threshold.
	assert.Less(t, r.Confidence, 0.8)
}

func TestEmbeddingClassifier_WarmupFailure(t *testing.T) {
	c := NewEmbeddingClassifier(&fakeEmbedder{vectors: map[string][]float32{}})
	err := c.Warmup(context.Background(), PrototypeExamples{IntentRule: {"missing"}})
	assert.Error(t, err)
	assert.False(t, c.Ready())
}
