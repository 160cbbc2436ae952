// Package rag answers customer questions from the embedded knowledge base.
package rag

import "context"

// Source is one retrieved snippet backing an answer.
type Source struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// Service is the retrieval interface the orchestrator consumes. An empty
// answer with a nil error means the knowledge base had nothing relevant.
type Service interface {
	// Ask retrieves the best chunks for the query and synthesises a
	// grounded answer over them.
	Ask(ctx context.Context, query string) (string, []Source, error)

	// Search returns the ranked chunks without synthesis. topK <= 0 uses
	// the configured default.
	Search(ctx context.Context, query string, topK int) ([]Source, error)
}
