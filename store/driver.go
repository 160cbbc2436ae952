package store

import (
	"context"
	"database/sql"
)

// Driver is the interface every storage backend implements. Postgres is the
// production driver; SQLite is supported best-effort for development.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	IsInitialized(ctx context.Context) (bool, error)

	// Conversations
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error
	// IncrementMessageCount bumps message_count and last_message_at in one
	// statement so concurrent turns on the same conversation serialise.
	IncrementMessageCount(ctx context.Context, conversationID int32, lastMessageAt int64) error

	// Messages and events
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	DeleteMessage(ctx context.Context, delete *DeleteMessage) error
	CreateMessageEvents(ctx context.Context, events []*MessageEvent) error
	ListMessageEvents(ctx context.Context, find *FindMessageEvent) ([]*MessageEvent, error)

	// Rules
	CreateRule(ctx context.Context, create *Rule) (*Rule, error)
	ListRules(ctx context.Context, find *FindRule) ([]*Rule, error)
	UpdateRule(ctx context.Context, update *UpdateRule) (*Rule, error)
	DeleteRule(ctx context.Context, delete *DeleteRule) error

	// Orchestrator config (single row, id = 1)
	GetOrchestratorConfig(ctx context.Context) (*OrchestratorConfig, error)
	UpdateOrchestratorConfig(ctx context.Context, update *UpdateOrchestratorConfig) (*OrchestratorConfig, error)

	// Appointments and orders
	CreateAppointment(ctx context.Context, create *Appointment, numberPrefix string) (*Appointment, error)
	ListAppointments(ctx context.Context, find *FindAppointment) ([]*Appointment, error)
	UpdateAppointment(ctx context.Context, update *UpdateAppointment) (*Appointment, error)
	DeleteAppointment(ctx context.Context, delete *DeleteAppointment) error
	CreateOrder(ctx context.Context, create *Order) (*Order, error)
	ListOrders(ctx context.Context, find *FindOrder) ([]*Order, error)
	UpdateOrder(ctx context.Context, update *UpdateOrder) (*Order, error)
	DeleteOrder(ctx context.Context, delete *DeleteOrder) error

	// Calendar
	CreateCalendarResource(ctx context.Context, create *CalendarResource) (*CalendarResource, error)
	ListCalendarResources(ctx context.Context, find *FindCalendarResource) ([]*CalendarResource, error)
	UpdateCalendarResource(ctx context.Context, update *UpdateCalendarResource) (*CalendarResource, error)
	DeleteCalendarResource(ctx context.Context, delete *DeleteCalendarResource) error
	CreateCalendarBlock(ctx context.Context, create *CalendarBlock) (*CalendarBlock, error)
	ListCalendarBlocks(ctx context.Context, find *FindCalendarBlock) ([]*CalendarBlock, error)
	DeleteCalendarBlock(ctx context.Context, delete *DeleteCalendarBlock) error

	// Tools
	CreateToolConfig(ctx context.Context, create *ToolConfig) (*ToolConfig, error)
	ListToolConfigs(ctx context.Context, find *FindToolConfig) ([]*ToolConfig, error)
	UpdateToolConfig(ctx context.Context, update *UpdateToolConfig) (*ToolConfig, error)
	DeleteToolConfig(ctx context.Context, delete *DeleteToolConfig) error

	// Model configs
	CreateLLMConfig(ctx context.Context, create *LLMConfig) (*LLMConfig, error)
	ListLLMConfigs(ctx context.Context, find *FindLLMConfig) ([]*LLMConfig, error)
	UpdateLLMConfig(ctx context.Context, update *UpdateLLMConfig) (*LLMConfig, error)
	DeleteLLMConfig(ctx context.Context, delete *DeleteLLMConfig) error
	CreateEmbeddingModelConfig(ctx context.Context, create *EmbeddingModelConfig) (*EmbeddingModelConfig, error)
	ListEmbeddingModelConfigs(ctx context.Context, find *FindEmbeddingModelConfig) ([]*EmbeddingModelConfig, error)
	UpdateEmbeddingModelConfig(ctx context.Context, update *UpdateEmbeddingModelConfig) (*EmbeddingModelConfig, error)
	GetRAGConfig(ctx context.Context) (*RAGConfig, error)
	UpdateRAGConfig(ctx context.Context, update *UpdateRAGConfig) (*RAGConfig, error)

	// Knowledge base
	CreateKnowledgeDocument(ctx context.Context, create *KnowledgeDocument) (*KnowledgeDocument, error)
	ListKnowledgeDocuments(ctx context.Context, find *FindKnowledgeDocument) ([]*KnowledgeDocument, error)
	DeleteKnowledgeDocument(ctx context.Context, delete *DeleteKnowledgeDocument) error
	CreateDocumentChunks(ctx context.Context, chunks []*DocumentChunk) error
	// SearchDocumentChunks runs a vector similarity search. SQLite returns a
	// typed vectorstore error; callers degrade to the RAG-unavailable path.
	SearchDocumentChunks(ctx context.Context, opts *ChunkSearchOptions) ([]*ChunkWithScore, error)
}
