package store

import "context"

// TurnStore is the slice of the store the orchestrator needs to process one
// conversation turn. *Store satisfies it; orchestrator tests substitute an
// in-memory fake.
type TurnStore interface {
	// GetConversation loads the conversation a turn belongs to.
	GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error)

	// GetRecentMessages returns the newest messages oldest-first.
	GetRecentMessages(ctx context.Context, conversationID int32, limit int) ([]*Message, error)

	// CreateMessage appends a message row.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)

	// IncrementMessageCount bumps the conversation's message counter.
	IncrementMessageCount(ctx context.Context, conversationID int32) error

	// LogEvents writes the per-message event log in one batch.
	LogEvents(ctx context.Context, events []*MessageEvent) error

	// UpdateFlowState replaces the conversation's flow state; nil clears it.
	UpdateFlowState(ctx context.Context, conversationID int32, state FlowState) error

	// GetOrchestratorConfig returns the singleton pipeline config.
	GetOrchestratorConfig(ctx context.Context) (*OrchestratorConfig, error)

	// ListActiveRules returns active rules in priority order.
	ListActiveRules(ctx context.Context) ([]*Rule, error)

	// ListToolConfigs returns tool configs matching the filter.
	ListToolConfigs(ctx context.Context, find *FindToolConfig) ([]*ToolConfig, error)

	// CreateAppointment persists a confirmed appointment and assigns its
	// reference number.
	CreateAppointment(ctx context.Context, create *Appointment, numberPrefix string) (*Appointment, error)

	// GetAppointmentByNumber resolves a customer-quoted reference number.
	GetAppointmentByNumber(ctx context.Context, apptNumber string) (*Appointment, error)

	// UpdateAppointment applies a partial update.
	UpdateAppointment(ctx context.Context, update *UpdateAppointment) (*Appointment, error)

	// CreateOrder persists a confirmed order.
	CreateOrder(ctx context.Context, create *Order) (*Order, error)
}

var _ TurnStore = (*Store)(nil)
