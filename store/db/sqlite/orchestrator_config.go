package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/queryon/queryon/store"
)

// GetOrchestratorConfig reads the single behavioural config row. The row is
// seeded by the migration, so a missing row is a real error.
func (d *DB) GetOrchestratorConfig(ctx context.Context) (*store.OrchestratorConfig, error) {
	query := `
		SELECT id, rules_first, fallback_to_direct, default_intent, enabled_intents,
		       min_confidence, embedding_confidence_threshold, low_confidence_strategy,
		       when_rag_unavailable, llm_timeout_seconds, max_conversation_turns,
		       appointment_fields, order_fields, order_mode_enabled, restrictions,
		       character_system_prompt, appointment_webhook_url, appointment_webhook_secret,
		       updated_ts
		FROM orchestrator_config
		WHERE id = 1
	`

	var config store.OrchestratorConfig
	var intentsJSON, appointmentFieldsJSON, orderFieldsJSON string

	if err := d.db.QueryRowContext(ctx, query).Scan(
		&config.ID,
		&config.RulesFirst,
		&config.FallbackToDirect,
		&config.DefaultIntent,
		&intentsJSON,
		&config.MinConfidence,
		&config.EmbeddingConfidenceThreshold,
		&config.LowConfidenceStrategy,
		&config.WhenRAGUnavailable,
		&config.LLMTimeoutSeconds,
		&config.MaxConversationTurns,
		&appointmentFieldsJSON,
		&orderFieldsJSON,
		&config.OrderModeEnabled,
		&config.Restrictions,
		&config.CharacterSystemPrompt,
		&config.AppointmentWebhookURL,
		&config.AppointmentWebhookSecret,
		&config.UpdatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to get orchestrator config: %w", err)
	}

	if err := json.Unmarshal([]byte(intentsJSON), &config.EnabledIntents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal enabled_intents: %w", err)
	}
	if err := json.Unmarshal([]byte(appointmentFieldsJSON), &config.AppointmentFields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal appointment_fields: %w", err)
	}
	if err := json.Unmarshal([]byte(orderFieldsJSON), &config.OrderFields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order_fields: %w", err)
	}
	return &config, nil
}

func (d *DB) UpdateOrchestratorConfig(ctx context.Context, update *store.UpdateOrchestratorConfig) (*store.OrchestratorConfig, error) {
	set, args := []string{}, []any{}

	if update.RulesFirst != nil {
		set, args = append(set, "rules_first = "+placeholder(len(args)+1)), append(args, *update.RulesFirst)
	}
	if update.FallbackToDirect != nil {
		set, args = append(set, "fallback_to_direct = "+placeholder(len(args)+1)), append(args, *update.FallbackToDirect)
	}
	if update.DefaultIntent != nil {
		set, args = append(set, "default_intent = "+placeholder(len(args)+1)), append(args, *update.DefaultIntent)
	}
	if update.EnabledIntents != nil {
		buf, err := json.Marshal(*update.EnabledIntents)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal enabled_intents: %w", err)
		}
		set, args = append(set, "enabled_intents = "+placeholder(len(args)+1)), append(args, string(buf))
	}
	if update.MinConfidence != nil {
		set, args = append(set, "min_confidence = "+placeholder(len(args)+1)), append(args, *update.MinConfidence)
	}
	if update.EmbeddingConfidenceThreshold != nil {
		set, args = append(set, "embedding_confidence_threshold = "+placeholder(len(args)+1)), append(args, *update.EmbeddingConfidenceThreshold)
	}
	if update.LowConfidenceStrategy != nil {
		set, args = append(set, "low_confidence_strategy = "+placeholder(len(args)+1)), append(args, *update.LowConfidenceStrategy)
	}
	if update.WhenRAGUnavailable != nil {
		set, args = append(set, "when_rag_unavailable = "+placeholder(len(args)+1)), append(args, *update.WhenRAGUnavailable)
	}
	if update.LLMTimeoutSeconds != nil {
		set, args = append(set, "llm_timeout_seconds = "+placeholder(len(args)+1)), append(args, *update.LLMTimeoutSeconds)
	}
	if update.MaxConversationTurns != nil {
		set, args = append(set, "max_conversation_turns = "+placeholder(len(args)+1)), append(args, *update.MaxConversationTurns)
	}
	if update.AppointmentFields != nil {
		buf, err := json.Marshal(*update.AppointmentFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal appointment_fields: %w", err)
		}
		set, args = append(set, "appointment_fields = "+placeholder(len(args)+1)), append(args, string(buf))
	}
	if update.OrderFields != nil {
		buf, err := json.Marshal(*update.OrderFields)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order_fields: %w", err)
		}
		set, args = append(set, "order_fields = "+placeholder(len(args)+1)), append(args, string(buf))
	}
	if update.OrderModeEnabled != nil {
		set, args = append(set, "order_mode_enabled = "+placeholder(len(args)+1)), append(args, *update.OrderModeEnabled)
	}
	if update.Restrictions != nil {
		set, args = append(set, "restrictions = "+placeholder(len(args)+1)), append(args, *update.Restrictions)
	}
	if update.CharacterSystemPrompt != nil {
		set, args = append(set, "character_system_prompt = "+placeholder(len(args)+1)), append(args, *update.CharacterSystemPrompt)
	}
	if update.AppointmentWebhookURL != nil {
		set, args = append(set, "appointment_webhook_url = "+placeholder(len(args)+1)), append(args, *update.AppointmentWebhookURL)
	}
	if update.AppointmentWebhookSecret != nil {
		set, args = append(set, "appointment_webhook_secret = "+placeholder(len(args)+1)), append(args, *update.AppointmentWebhookSecret)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *update.UpdatedTs)
	}

	if len(set) == 0 {
		return d.GetOrchestratorConfig(ctx)
	}

	query := `UPDATE orchestrator_config SET ` + strings.Join(set, ", ") + ` WHERE id = 1`
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update orchestrator config: %w", err)
	}

	return d.GetOrchestratorConfig(ctx)
}
