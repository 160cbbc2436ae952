package store

import "github.com/pkg/errors"

// Sentinel errors drivers wrap so callers can branch without string matching.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrVectorUnsupported marks vector operations on drivers without vector
	// support (SQLite). The RAG layer degrades to the unavailable path.
	ErrVectorUnsupported = errors.New("vector search not supported by this driver")
)
