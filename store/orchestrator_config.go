package store

// OrchestratorConfig is the single behavioural config row (id = 1). Field
// collection configs are stored as raw JSON and validated into typed structs
// by the orchestrator on load.
type OrchestratorConfig struct {
	RulesFirst                   bool
	FallbackToDirect             bool
	DefaultIntent                string
	EnabledIntents               []string
	MinConfidence                float64
	EmbeddingConfidenceThreshold float64
	LowConfidenceStrategy        string // "fallback" or "ask_user"
	WhenRAGUnavailable           string // "direct" or "ask_user"
	LLMTimeoutSeconds            int32
	MaxConversationTurns         int32
	AppointmentFields            []JSONMap
	OrderFields                  []JSONMap
	OrderModeEnabled             bool
	Restrictions                 string
	CharacterSystemPrompt        string
	AppointmentWebhookURL        string
	AppointmentWebhookSecret     string
	UpdatedTs                    int64
	ID                           int32
}

type UpdateOrchestratorConfig struct {
	RulesFirst                   *bool
	FallbackToDirect             *bool
	DefaultIntent                *string
	EnabledIntents               *[]string
	MinConfidence                *float64
	EmbeddingConfidenceThreshold *float64
	LowConfidenceStrategy        *string
	WhenRAGUnavailable           *string
	LLMTimeoutSeconds            *int32
	MaxConversationTurns         *int32
	AppointmentFields            *[]JSONMap
	OrderFields                  *[]JSONMap
	OrderModeEnabled             *bool
	Restrictions                 *string
	CharacterSystemPrompt        *string
	AppointmentWebhookURL        *string
	AppointmentWebhookSecret     *string
	UpdatedTs                    *int64
}
