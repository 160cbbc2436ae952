package store

// KnowledgeDocument is one ingested text document in the knowledge base.
type KnowledgeDocument struct {
	Title      string
	SourceName string
	MimeType   string
	ChunkCount int32
	CreatedTs  int64
	ID         int32
}

type FindKnowledgeDocument struct {
	ID    *int32
	Title *string
	Limit *int
}

type DeleteKnowledgeDocument struct {
	ID int32
}

// DocumentChunk is one embedded slice of a knowledge document.
// Chunks cascade-delete with their document.
type DocumentChunk struct {
	DocumentID int32
	ChunkIndex int32
	Content    string
	Embedding  []float32
	CreatedTs  int64
	ID         int32
}

// ChunkSearchOptions drives the pgvector similarity search.
type ChunkSearchOptions struct {
	Vector   []float32
	TopK     int
	MinScore float64
}

// ChunkWithScore is a search hit with its cosine similarity score.
type ChunkWithScore struct {
	Chunk *DocumentChunk
	Title string // owning document title, for source attribution
	Score float64
}
