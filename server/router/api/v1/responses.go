package v1

import (
	"github.com/queryon/queryon/store"
)

// Wire shapes for the admin surface. Store models stay tag-free; these
// structs pin the JSON contract and keep credentials out of responses.

// ConversationResponse is one conversation in admin listings.
type ConversationResponse struct {
	ID            int32           `json:"id"`
	UID           string          `json:"uid"`
	Platform      store.Platform  `json:"platform"`
	ChannelID     *string         `json:"channel_id,omitempty"`
	Name          *string         `json:"name,omitempty"`
	Surname       *string         `json:"surname,omitempty"`
	Phone         *string         `json:"phone,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Username      *string         `json:"username,omitempty"`
	Status        string          `json:"status"`
	FlowState     store.FlowState `json:"flow_state,omitempty"`
	MessageCount  int32           `json:"message_count"`
	LastMessageAt int64           `json:"last_message_at"`
	CreatedTs     int64           `json:"created_ts"`
	UpdatedTs     int64           `json:"updated_ts"`
}

func convertConversation(c *store.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:            c.ID,
		UID:           c.UID,
		Platform:      c.Platform,
		ChannelID:     c.ChannelID,
		Name:          c.Name,
		Surname:       c.Surname,
		Phone:         c.Phone,
		Email:         c.Email,
		Username:      c.Username,
		Status:        string(c.Status),
		FlowState:     c.FlowState,
		MessageCount:  c.MessageCount,
		LastMessageAt: c.LastMessageAt,
		CreatedTs:     c.CreatedTs,
		UpdatedTs:     c.UpdatedTs,
	}
}

// MessageEventResponse is one pipeline event attached to a message.
type MessageEventResponse struct {
	ID        int32         `json:"id"`
	EventType string        `json:"event_type"`
	Data      store.JSONMap `json:"data,omitempty"`
	CreatedTs int64         `json:"created_ts"`
}

// MessageResponse is one conversation turn with its optional event log.
type MessageResponse struct {
	ID                 int32                   `json:"id"`
	ConversationID     int32                   `json:"conversation_id"`
	Role               string                  `json:"role"`
	Content            string                  `json:"content"`
	Intent             *string                 `json:"intent,omitempty"`
	Confidence         *float64                `json:"confidence,omitempty"`
	ClassifierLayer    *string                 `json:"classifier_layer,omitempty"`
	RuleMatched        *string                 `json:"rule_matched,omitempty"`
	ToolCalled         *string                 `json:"tool_called,omitempty"`
	FallbackUsed       *bool                   `json:"fallback_used,omitempty"`
	NeedsClarification *bool                   `json:"needs_clarification,omitempty"`
	TotalMs            *int64                  `json:"total_ms,omitempty"`
	Sources            []store.JSONMap         `json:"sources,omitempty"`
	ExtraMetadata      store.JSONMap           `json:"extra_metadata,omitempty"`
	CreatedTs          int64                   `json:"created_ts"`
	Events             []*MessageEventResponse `json:"events,omitempty"`
}

func convertMessage(m *store.Message, events []*store.MessageEvent) *MessageResponse {
	out := &MessageResponse{
		ID:                 m.ID,
		ConversationID:     m.ConversationID,
		Role:               string(m.Role),
		Content:            m.Content,
		Intent:             m.Intent,
		Confidence:         m.Confidence,
		ClassifierLayer:    m.ClassifierLayer,
		RuleMatched:        m.RuleMatched,
		ToolCalled:         m.ToolCalled,
		FallbackUsed:       m.FallbackUsed,
		NeedsClarification: m.NeedsClarification,
		TotalMs:            m.TotalMs,
		Sources:            m.Sources,
		ExtraMetadata:      m.ExtraMetadata,
		CreatedTs:          m.CreatedTs,
	}
	for _, e := range events {
		out.Events = append(out.Events, &MessageEventResponse{
			ID:        e.ID,
			EventType: string(e.EventType),
			Data:      e.Data,
			CreatedTs: e.CreatedTs,
		})
	}
	return out
}

// RuleResponse is one rule row.
type RuleResponse struct {
	ID               int32             `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	TriggerPatterns  []string          `json:"trigger_patterns"`
	ResponseTemplate string            `json:"response_template"`
	Variables        map[string]string `json:"variables,omitempty"`
	Priority         int32             `json:"priority"`
	IsActive         bool              `json:"is_active"`
	FlowID           *string           `json:"flow_id,omitempty"`
	StepKey          *string           `json:"step_key,omitempty"`
	RequiredStep     *string           `json:"required_step,omitempty"`
	NextSteps        map[string]string `json:"next_steps,omitempty"`
	CreatedTs        int64             `json:"created_ts"`
	UpdatedTs        int64             `json:"updated_ts"`
}

func convertRule(r *store.Rule) *RuleResponse {
	return &RuleResponse{
		ID:               r.ID,
		Name:             r.Name,
		Description:      r.Description,
		TriggerPatterns:  r.TriggerPatterns,
		ResponseTemplate: r.ResponseTemplate,
		Variables:        r.Variables,
		Priority:         r.Priority,
		IsActive:         r.IsActive,
		FlowID:           r.FlowID,
		StepKey:          r.StepKey,
		RequiredStep:     r.RequiredStep,
		NextSteps:        r.NextSteps,
		CreatedTs:        r.CreatedTs,
		UpdatedTs:        r.UpdatedTs,
	}
}

// AppointmentResponse is one appointment row.
type AppointmentResponse struct {
	ID             int32         `json:"id"`
	ApptNumber     string        `json:"appt_number"`
	ConversationID *int32        `json:"conversation_id,omitempty"`
	Status         string        `json:"status"`
	ContactName    *string       `json:"contact_name,omitempty"`
	ContactPhone   *string       `json:"contact_phone,omitempty"`
	ContactEmail   *string       `json:"contact_email,omitempty"`
	Service        *string       `json:"service,omitempty"`
	Location       *string       `json:"location,omitempty"`
	Artist         *string       `json:"artist,omitempty"`
	EventDate      *string       `json:"event_date,omitempty"`
	EventTime      *string       `json:"event_time,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	Summary        *string       `json:"summary,omitempty"`
	ExtraFields    store.JSONMap `json:"extra_fields,omitempty"`
	CreatedTs      int64         `json:"created_ts"`
	UpdatedTs      int64         `json:"updated_ts"`
}

func convertAppointment(a *store.Appointment) *AppointmentResponse {
	return &AppointmentResponse{
		ID:             a.ID,
		ApptNumber:     a.ApptNumber,
		ConversationID: a.ConversationID,
		Status:         string(a.Status),
		ContactName:    a.ContactName,
		ContactPhone:   a.ContactPhone,
		ContactEmail:   a.ContactEmail,
		Service:        a.Service,
		Location:       a.Location,
		Artist:         a.Artist,
		EventDate:      a.EventDate,
		EventTime:      a.EventTime,
		Notes:          a.Notes,
		Summary:        a.Summary,
		ExtraFields:    a.ExtraFields,
		CreatedTs:      a.CreatedTs,
		UpdatedTs:      a.UpdatedTs,
	}
}

// OrderResponse is one order row.
type OrderResponse struct {
	ID             int32         `json:"id"`
	ConversationID *int32        `json:"conversation_id,omitempty"`
	Status         string        `json:"status"`
	ContactName    *string       `json:"contact_name,omitempty"`
	ContactPhone   *string       `json:"contact_phone,omitempty"`
	ContactEmail   *string       `json:"contact_email,omitempty"`
	Service        *string       `json:"service,omitempty"`
	Location       *string       `json:"location,omitempty"`
	EventDate      *string       `json:"event_date,omitempty"`
	EventTime      *string       `json:"event_time,omitempty"`
	Notes          *string       `json:"notes,omitempty"`
	Summary        *string       `json:"summary,omitempty"`
	ExtraFields    store.JSONMap `json:"extra_fields,omitempty"`
	CreatedTs      int64         `json:"created_ts"`
	UpdatedTs      int64         `json:"updated_ts"`
}

func convertOrder(o *store.Order) *OrderResponse {
	return &OrderResponse{
		ID:             o.ID,
		ConversationID: o.ConversationID,
		Status:         string(o.Status),
		ContactName:    o.ContactName,
		ContactPhone:   o.ContactPhone,
		ContactEmail:   o.ContactEmail,
		Service:        o.Service,
		Location:       o.Location,
		EventDate:      o.EventDate,
		EventTime:      o.EventTime,
		Notes:          o.Notes,
		Summary:        o.Summary,
		ExtraFields:    o.ExtraFields,
		CreatedTs:      o.CreatedTs,
		UpdatedTs:      o.UpdatedTs,
	}
}

// CalendarResourceResponse is one bookable resource. Provider credentials
// never leave the server; HasCredentials says whether any are stored.
type CalendarResourceResponse struct {
	ID               int32                        `json:"id"`
	Name             string                       `json:"name"`
	ResourceType     string                       `json:"resource_type"`
	ResourceName     string                       `json:"resource_name"`
	CalendarType     store.CalendarType           `json:"calendar_type"`
	WorkingHours     map[string]store.DaySchedule `json:"working_hours,omitempty"`
	ServiceDurations map[string]int               `json:"service_durations,omitempty"`
	ExternalID       *string                      `json:"external_id,omitempty"`
	HasCredentials   bool                         `json:"has_credentials"`
	CreatedTs        int64                        `json:"created_ts"`
	UpdatedTs        int64                        `json:"updated_ts"`
}

func convertCalendarResource(r *store.CalendarResource) *CalendarResourceResponse {
	return &CalendarResourceResponse{
		ID:               r.ID,
		Name:             r.Name,
		ResourceType:     r.ResourceType,
		ResourceName:     r.ResourceName,
		CalendarType:     r.CalendarType,
		WorkingHours:     r.WorkingHours,
		ServiceDurations: r.ServiceDurations,
		ExternalID:       r.ExternalID,
		HasCredentials:   len(r.Credentials) > 0,
		CreatedTs:        r.CreatedTs,
		UpdatedTs:        r.UpdatedTs,
	}
}

// CalendarBlockResponse is one busy interval.
type CalendarBlockResponse struct {
	ID            int32           `json:"id"`
	ResourceID    int32           `json:"resource_id"`
	Date          string          `json:"date"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	BlockType     store.BlockType `json:"block_type"`
	AppointmentID *int32          `json:"appointment_id,omitempty"`
	CreatedTs     int64           `json:"created_ts"`
}

func convertCalendarBlock(b *store.CalendarBlock) *CalendarBlockResponse {
	return &CalendarBlockResponse{
		ID:            b.ID,
		ResourceID:    b.ResourceID,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		BlockType:     b.BlockType,
		AppointmentID: b.AppointmentID,
		CreatedTs:     b.CreatedTs,
	}
}

// ToolResponse is one registered tool.
type ToolResponse struct {
	ID          int32         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Endpoint    string        `json:"endpoint"`
	Schema      store.JSONMap `json:"schema,omitempty"`
	Triggers    []string      `json:"triggers,omitempty"`
	Enabled     bool          `json:"enabled"`
	CreatedTs   int64         `json:"created_ts"`
	UpdatedTs   int64         `json:"updated_ts"`
}

func convertTool(t *store.ToolConfig) *ToolResponse {
	return &ToolResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Endpoint:    t.Endpoint,
		Schema:      t.Schema,
		Triggers:    t.Triggers,
		Enabled:     t.Enabled,
		CreatedTs:   t.CreatedTs,
		UpdatedTs:   t.UpdatedTs,
	}
}

// KnowledgeDocumentResponse is one ingested document.
type KnowledgeDocumentResponse struct {
	ID         int32  `json:"id"`
	Title      string `json:"title"`
	SourceName string `json:"source_name,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	ChunkCount int32  `json:"chunk_count"`
	CreatedTs  int64  `json:"created_ts"`
}

func convertKnowledgeDocument(d *store.KnowledgeDocument) *KnowledgeDocumentResponse {
	return &KnowledgeDocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		SourceName: d.SourceName,
		MimeType:   d.MimeType,
		ChunkCount: d.ChunkCount,
		CreatedTs:  d.CreatedTs,
	}
}

// OrchestratorConfigResponse is the behavioural config row. The webhook
// secret is echoed back because the admin key already gates this surface and
// the admin is the party that set it.
type OrchestratorConfigResponse struct {
	RulesFirst                   bool            `json:"rules_first"`
	FallbackToDirect             bool            `json:"fallback_to_direct"`
	DefaultIntent                string          `json:"default_intent"`
	EnabledIntents               []string        `json:"enabled_intents"`
	MinConfidence                float64         `json:"min_confidence"`
	EmbeddingConfidenceThreshold float64         `json:"embedding_confidence_threshold"`
	LowConfidenceStrategy        string          `json:"low_confidence_strategy"`
	WhenRAGUnavailable           string          `json:"when_rag_unavailable"`
	LLMTimeoutSeconds            int32           `json:"llm_timeout_seconds"`
	MaxConversationTurns         int32           `json:"max_conversation_turns"`
	AppointmentFields            []store.JSONMap `json:"appointment_fields,omitempty"`
	OrderFields                  []store.JSONMap `json:"order_fields,omitempty"`
	OrderModeEnabled             bool            `json:"order_mode_enabled"`
	Restrictions                 string          `json:"restrictions,omitempty"`
	CharacterSystemPrompt        string          `json:"character_system_prompt,omitempty"`
	AppointmentWebhookURL        string          `json:"appointment_webhook_url,omitempty"`
	AppointmentWebhookSecret     string          `json:"appointment_webhook_secret,omitempty"`
	UpdatedTs                    int64           `json:"updated_ts"`
}

func convertOrchestratorConfig(cfg *store.OrchestratorConfig) *OrchestratorConfigResponse {
	return &OrchestratorConfigResponse{
		RulesFirst:                   cfg.RulesFirst,
		FallbackToDirect:             cfg.FallbackToDirect,
		DefaultIntent:                cfg.DefaultIntent,
		EnabledIntents:               cfg.EnabledIntents,
		MinConfidence:                cfg.MinConfidence,
		EmbeddingConfidenceThreshold: cfg.EmbeddingConfidenceThreshold,
		LowConfidenceStrategy:        cfg.LowConfidenceStrategy,
		WhenRAGUnavailable:           cfg.WhenRAGUnavailable,
		LLMTimeoutSeconds:            cfg.LLMTimeoutSeconds,
		MaxConversationTurns:         cfg.MaxConversationTurns,
		AppointmentFields:            cfg.AppointmentFields,
		OrderFields:                  cfg.OrderFields,
		OrderModeEnabled:             cfg.OrderModeEnabled,
		Restrictions:                 cfg.Restrictions,
		CharacterSystemPrompt:        cfg.CharacterSystemPrompt,
		AppointmentWebhookURL:        cfg.AppointmentWebhookURL,
		AppointmentWebhookSecret:     cfg.AppointmentWebhookSecret,
		UpdatedTs:                    cfg.UpdatedTs,
	}
}

// RAGConfigResponse is the retrieval config row.
type RAGConfigResponse struct {
	TopK         int32   `json:"top_k"`
	MinScore     float64 `json:"min_score"`
	AnswerPrompt string  `json:"answer_prompt,omitempty"`
	UpdatedTs    int64   `json:"updated_ts"`
}

func convertRAGConfig(cfg *store.RAGConfig) *RAGConfigResponse {
	return &RAGConfigResponse{
		TopK:         cfg.TopK,
		MinScore:     cfg.MinScore,
		AnswerPrompt: cfg.AnswerPrompt,
		UpdatedTs:    cfg.UpdatedTs,
	}
}

// LLMConfigResponse is one chat model row. API keys stay server-side.
type LLMConfigResponse struct {
	ID          int32   `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int32   `json:"max_tokens"`
	IsActive    bool    `json:"is_active"`
	CreatedTs   int64   `json:"created_ts"`
	UpdatedTs   int64   `json:"updated_ts"`
}

func convertLLMConfig(m *store.LLMConfig) *LLMConfigResponse {
	return &LLMConfigResponse{
		ID:          m.ID,
		Name:        m.Name,
		Provider:    m.Provider,
		Model:       m.Model,
		BaseURL:     m.BaseURL,
		Temperature: m.Temperature,
		MaxTokens:   m.MaxTokens,
		IsActive:    m.IsActive,
		CreatedTs:   m.CreatedTs,
		UpdatedTs:   m.UpdatedTs,
	}
}

// EmbeddingConfigResponse is one embedding model row.
type EmbeddingConfigResponse struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	VectorSize int32  `json:"vector_size"`
	IsActive   bool   `json:"is_active"`
	CreatedTs  int64  `json:"created_ts"`
	UpdatedTs  int64  `json:"updated_ts"`
}

func convertEmbeddingConfig(m *store.EmbeddingModelConfig) *EmbeddingConfigResponse {
	return &EmbeddingConfigResponse{
		ID:         m.ID,
		Name:       m.Name,
		Provider:   m.Provider,
		Model:      m.Model,
		BaseURL:    m.BaseURL,
		VectorSize: m.VectorSize,
		IsActive:   m.IsActive,
		CreatedTs:  m.CreatedTs,
		UpdatedTs:  m.UpdatedTs,
	}
}
