package store

// Platform identifies the channel a conversation arrived on.
type Platform string

const (
	PlatformWeb      Platform = "web"
	PlatformCLI      Platform = "cli"
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformAPI      Platform = "api"
)

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationClosed   ConversationStatus = "closed"
	ConversationArchived ConversationStatus = "archived"
)

// FlowState is the per-conversation flow snapshot persisted as JSON. It holds
// the active mode name plus one sub-mapping per mode, and the rule-flow
// context under the flow id. Shape is owned by the ai layer; the store treats
// it as opaque.
type FlowState map[string]any

// Conversation is one chat thread with a single contact on a single channel.
type Conversation struct {
	UID           string
	Platform      Platform
	ChannelID     *string
	Name          *string
	Surname       *string
	Phone         *string
	Email         *string
	Username      *string
	Status        ConversationStatus
	FlowState     FlowState // nil when no flow is active
	MessageCount  int32
	LastMessageAt int64
	CreatedTs     int64
	UpdatedTs     int64
	ID            int32
}

type FindConversation struct {
	ID        *int32
	UID       *string
	Platform  *Platform
	ChannelID *string
	Status    *ConversationStatus
	Limit     *int
	Offset    *int
}

type UpdateConversation struct {
	Name          *string
	Surname       *string
	Phone         *string
	Email         *string
	Username      *string
	Status        *ConversationStatus
	FlowState     *FlowState // pointer-to-nil-map clears the flow state
	LastMessageAt *int64
	UpdatedTs     *int64
	ID            int32
}

type DeleteConversation struct {
	ID int32
}
