package store

// LLMConfig is one row of the llms table. Exactly one row is active; the
// admin surface activates a row and the orchestrator hot-swaps its client.
type LLMConfig struct {
	Name        string
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int32
	IsActive    bool
	CreatedTs   int64
	UpdatedTs   int64
	ID          int32
}

type FindLLMConfig struct {
	ID       *int32
	IsActive *bool
}

type UpdateLLMConfig struct {
	Name        *string
	Provider    *string
	Model       *string
	APIKey      *string
	BaseURL     *string
	Temperature *float64
	MaxTokens   *int32
	IsActive    *bool
	UpdatedTs   *int64
	ID          int32
}

type DeleteLLMConfig struct {
	ID int32
}

// EmbeddingModelConfig mirrors LLMConfig for the embedding provider.
type EmbeddingModelConfig struct {
	Name       string
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	VectorSize int32
	IsActive   bool
	CreatedTs  int64
	UpdatedTs  int64
	ID         int32
}

type FindEmbeddingModelConfig struct {
	ID       *int32
	IsActive *bool
}

type UpdateEmbeddingModelConfig struct {
	Name       *string
	Provider   *string
	Model      *string
	APIKey     *string
	BaseURL    *string
	VectorSize *int32
	IsActive   *bool
	UpdatedTs  *int64
	ID         int32
}

// RAGConfig is the single retrieval config row (id = 1).
type RAGConfig struct {
	TopK         int32
	MinScore     float64
	AnswerPrompt string
	UpdatedTs    int64
	ID           int32
}

type UpdateRAGConfig struct {
	TopK         *int32
	MinScore     *float64
	AnswerPrompt *string
	UpdatedTs    *int64
}
