package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_KeepsShortDocumentWhole(t *testing.T) {
	text := "Kına gecesi paketi 4500 TL.\n\nPakete kına malzemeleri dahildir."

	chunks := Chunk(text, 200)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "4500 TL")
	assert.Contains(t, chunks[0], "malzemeleri dahildir")
}

func TestChunk_SplitsOnParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("saç ve makyaj hizmeti. ", 10) // ~230 runes
	text := para + "\n\n" + para + "\n\n" + para

	chunks := Chunk(text, 300)

	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300)
		assert.False(t, strings.HasPrefix(c, " "))
	}
}

func TestChunk_OversizedParagraphFallsBackToSentences(t *testing.T) {
	sentence := "Gelin başı paketine saç, makyaj ve türban dahildir."
	para := strings.TrimSpace(strings.Repeat(sentence+" ", 12))

	chunks := Chunk(para, 200)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
		// Sentence boundaries survive: every chunk ends on a full stop.
		assert.True(t, strings.HasSuffix(c, "."), "chunk %q should end at a sentence", c)
	}
}

func TestChunk_HardCutsUnbrokenText(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks := Chunk(text, 1000)

	require.Len(t, chunks, 3)
	assert.Equal(t, 1000, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 1000, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[2]))
}

func TestChunk_RuneBudgetCountsRunesNotBytes(t *testing.T) {
	// Turkish text where byte length far exceeds rune length.
	text := strings.Repeat("ığüşöçİ", 100) // 700 runes, 1300 bytes

	chunks := Chunk(text, 700)

	require.Len(t, chunks, 1)
}

func TestChunk_EmptyInput(t *testing.T) {
	assert.Empty(t, Chunk("", 100))
	assert.Empty(t, Chunk("   \n\n  \n", 100))
}

func TestChunk_DefaultBudget(t *testing.T) {
	text := strings.Repeat("b", 3000)

	chunks := Chunk(text, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, defaultChunkRunes, utf8.RuneCountInString(chunks[0]))
}
