package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_NormalisedKeys(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set("Merhaba Dünya", Result{Intent: IntentDirect, Confidence: 0.6, Layer: LayerLLM})

	r, ok := c.Get("  merhaba dünya ")
	assert.True(t, ok)
	assert.Equal(t, IntentDirect, r.Intent)

	_, ok = c.Get("başka bir şey")
	assert.False(t, ok)
}

func TestCache_Stats(t *testing.T) {
	c := NewCache(10, time.Minute)
	c.Set("q", Result{Intent: IntentRule})

	c.Get("q")
	c.Get("q")
	c.Get("missing")

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, c.Size())
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)
	c.Set("q", Result{Intent: IntentRule})

	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get("q")
	assert.False(t, ok)
}
