package rag

import (
	"strings"
	"unicode/utf8"
)

// defaultChunkRunes bounds one chunk. Sized in runes, not tokens, so the
// limit holds for any embedding provider regardless of its tokenizer.
const defaultChunkRunes = 1200

// Chunk splits document text into embedding-sized pieces. Paragraphs are
// kept together while they fit, oversized paragraphs fall back to sentence
// splits and pathological unbroken text to hard rune cuts. maxRunes <= 0
// selects the default budget. Whitespace-only input yields no chunks.
func Chunk(text string, maxRunes int) []string {
	if maxRunes <= 0 {
		maxRunes = defaultChunkRunes
	}

	var chunks []string
	var sb strings.Builder
	size := 0

	flush := func() {
		if piece := strings.TrimSpace(sb.String()); piece != "" {
			chunks = append(chunks, piece)
		}
		sb.Reset()
		size = 0
	}

	for _, para := range splitParagraphs(text) {
		n := utf8.RuneCountInString(para)
		if n > maxRunes {
			flush()
			chunks = append(chunks, splitOversized(para, maxRunes)...)
			continue
		}
		if size > 0 && size+n+2 > maxRunes {
			flush()
		}
		if size > 0 {
			sb.WriteString("\n\n")
			size += 2
		}
		sb.WriteString(para)
		size += n
	}
	flush()

	return chunks
}

func splitParagraphs(text string) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

// splitOversized breaks one paragraph that exceeds the budget, preferring
// sentence boundaries and hard-cutting only sentences that are themselves
// longer than the budget.
func splitOversized(para string, maxRunes int) []string {
	var pieces []string
	var sb strings.Builder
	size := 0

	flush := func() {
		if piece := strings.TrimSpace(sb.String()); piece != "" {
			pieces = append(pieces, piece)
		}
		sb.Reset()
		size = 0
	}

	for _, sentence := range splitSentences(para) {
		n := utf8.RuneCountInString(sentence)
		if n > maxRunes {
			flush()
			pieces = append(pieces, hardCut(sentence, maxRunes)...)
			continue
		}
		if size > 0 && size+n+1 > maxRunes {
			flush()
		}
		if size > 0 {
			sb.WriteByte(' ')
			size++
		}
		sb.WriteString(sentence)
		size += n
	}
	flush()

	return pieces
}

// splitSentences cuts after ., !, ? or newline followed by whitespace.
// Decimal points and abbreviation dots survive because they are not followed
// by a space.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t') {
				if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		case '\n':
			if s := strings.TrimSpace(string(runes[start:i])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func hardCut(text string, maxRunes int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += maxRunes {
		end := start + maxRunes
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
