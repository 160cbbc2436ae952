package store

// MessageRole is who authored a message row.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// EventType labels a MessageEvent row.
type EventType string

const (
	EventClassificationResult EventType = "classification_result"
	EventRuleMatched          EventType = "rule_matched"
	EventFallbackTriggered    EventType = "fallback_triggered"
	EventLowConfidence        EventType = "low_confidence"
	EventRAGSearch            EventType = "rag_search"
	EventMetrics              EventType = "metrics"
)

// JSONMap is an opaque structured payload column.
type JSONMap map[string]any

// Message is one turn in a conversation. The intent, confidence, classifier
// and fallback fields are populated on assistant rows only and stay NULL on
// user and system rows.
type Message struct {
	Role               MessageRole
	Content            string
	Intent             *string
	Confidence         *float64
	ClassifierLayer    *string
	RuleMatched        *string
	ToolCalled         *string
	FallbackUsed       *bool
	NeedsClarification *bool
	TotalMs            *int64
	Sources            []JSONMap
	ExtraMetadata      JSONMap
	CreatedTs          int64
	ConversationID     int32
	ID                 int32
}

type FindMessage struct {
	ID             *int32
	ConversationID *int32
	Role           *MessageRole
	Limit          *int
	Offset         *int
	// OrderDesc returns newest first; default ordering is created_ts ASC with
	// id ASC as the same-batch tie-break.
	OrderDesc bool
}

type DeleteMessage struct {
	ID int32
}

// MessageEvent is a granular action log entry attached to one message.
type MessageEvent struct {
	EventType EventType
	Data      JSONMap
	CreatedTs int64
	MessageID int32
	ID        int32
}

type FindMessageEvent struct {
	MessageID *int32
	EventType *EventType
}
