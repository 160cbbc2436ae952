package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

func (s *APIV1Service) getOrchestratorConfig(c echo.Context) error {
	ctx := c.Request().Context()
	cfg, err := s.Store.GetOrchestratorConfig(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertOrchestratorConfig(cfg))
}

// updateOrchestratorConfig applies a partial config update. Unknown keys are logged
// and skipped so older dashboards keep working against newer servers.
func (s *APIV1Service) updateOrchestratorConfig(c echo.Context) error {
	ctx := c.Request().Context()
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxChatBody))
	if err != nil {
		return badRequest(c, "unreadable config payload")
	}
	update, unknown, err := parseConfigUpdate(body)
	if err != nil {
		return respondError(c, err)
	}
	for _, key := range unknown {
		slog.Warn("ignoring unknown config key", "key", key)
	}
	cfg, err := s.Store.UpdateOrchestratorConfig(ctx, update)
	if err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "config updated", "")
	return c.JSON(http.StatusOK, convertOrchestratorConfig(cfg))
}

func (s *APIV1Service) getRAGConfig(c echo.Context) error {
	ctx := c.Request().Context()
	cfg, err := s.Store.GetRAGConfig(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertRAGConfig(cfg))
}

// RAGConfigRequest is the partial-update payload for retrieval settings.
type RAGConfigRequest struct {
	TopK         *int32   `json:"top_k"`
	MinScore     *float64 `json:"min_score"`
	AnswerPrompt *string  `json:"answer_prompt"`
}

func (s *APIV1Service) updateRAGConfig(c echo.Context) error {
	ctx := c.Request().Context()
	req := &RAGConfigRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed rag config payload")
	}
	if req.TopK != nil && *req.TopK <= 0 {
		return badRequest(c, "top_k must be positive")
	}
	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return badRequest(c, "min_score must be within [0, 1]")
	}
	cfg, err := s.Store.UpdateRAGConfig(ctx, &store.UpdateRAGConfig{
		TopK:         req.TopK,
		MinScore:     req.MinScore,
		AnswerPrompt: req.AnswerPrompt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertRAGConfig(cfg))
}

var errUnknownConfigKey = errors.New("unknown config key")

// parseConfigUpdate decodes a partial orchestrator config document. It
// returns the typed update, the sorted list of keys it did not recognize,
// and a validation error when a recognized key carries a bad value.
func parseConfigUpdate(body []byte) (*store.UpdateOrchestratorConfig, []string, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, errs.Wrap(errs.KindValidation, "malformed config payload", err)
	}
	update := &store.UpdateOrchestratorConfig{}
	var unknown []string
	for key, value := range raw {
		err := applyConfigKey(update, key, value)
		if errors.Is(err, errUnknownConfigKey) {
			unknown = append(unknown, key)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
	}
	sort.Strings(unknown)
	if err := validateConfigUpdate(update); err != nil {
		return nil, nil, err
	}
	return update, unknown, nil
}

func applyConfigKey(update *store.UpdateOrchestratorConfig, key string, value json.RawMessage) error {
	switch key {
	case "rules_first":
		return decodeConfigValue(key, value, &update.RulesFirst)
	case "fallback_to_direct":
		return decodeConfigValue(key, value, &update.FallbackToDirect)
	case "default_intent":
		return decodeConfigValue(key, value, &update.DefaultIntent)
	case "enabled_intents":
		return decodeConfigValue(key, value, &update.EnabledIntents)
	case "min_confidence":
		return decodeConfigValue(key, value, &update.MinConfidence)
	case "embedding_confidence_threshold":
		return decodeConfigValue(key, value, &update.EmbeddingConfidenceThreshold)
	case "low_confidence_strategy":
		return decodeConfigValue(key, value, &update.LowConfidenceStrategy)
	case "when_rag_unavailable":
		return decodeConfigValue(key, value, &update.WhenRAGUnavailable)
	case "llm_timeout_seconds":
		return decodeConfigValue(key, value, &update.LLMTimeoutSeconds)
	case "max_conversation_turns":
		return decodeConfigValue(key, value, &update.MaxConversationTurns)
	case "appointment_fields":
		return decodeConfigValue(key, value, &update.AppointmentFields)
	case "order_fields":
		return decodeConfigValue(key, value, &update.OrderFields)
	case "order_mode_enabled":
		return decodeConfigValue(key, value, &update.OrderModeEnabled)
	case "restrictions":
		return decodeConfigValue(key, value, &update.Restrictions)
	case "character_system_prompt":
		return decodeConfigValue(key, value, &update.CharacterSystemPrompt)
	case "appointment_webhook_url":
		return decodeConfigValue(key, value, &update.AppointmentWebhookURL)
	case "appointment_webhook_secret":
		return decodeConfigValue(key, value, &update.AppointmentWebhookSecret)
	default:
		return errUnknownConfigKey
	}
}

func decodeConfigValue[T any](key string, raw json.RawMessage, dst **T) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return errs.Newf(errs.KindValidation, "config key %s has the wrong type", key)
	}
	*dst = &v
	return nil
}

func validateConfigUpdate(update *store.UpdateOrchestratorConfig) error {
	if update.MinConfidence != nil && (*update.MinConfidence < 0 || *update.MinConfidence > 1) {
		return errs.New(errs.KindValidation, "min_confidence must be within [0, 1]")
	}
	if update.EmbeddingConfidenceThreshold != nil && (*update.EmbeddingConfidenceThreshold < 0 || *update.EmbeddingConfidenceThreshold > 1) {
		return errs.New(errs.KindValidation, "embedding_confidence_threshold must be within [0, 1]")
	}
	if update.LowConfidenceStrategy != nil {
		switch *update.LowConfidenceStrategy {
		case "fallback", "ask_user":
		default:
			return errs.Newf(errs.KindValidation, "low_confidence_strategy must be fallback or ask_user, got %q", *update.LowConfidenceStrategy)
		}
	}
	if update.WhenRAGUnavailable != nil {
		switch *update.WhenRAGUnavailable {
		case "direct", "ask_user":
		default:
			return errs.Newf(errs.KindValidation, "when_rag_unavailable must be direct or ask_user, got %q", *update.WhenRAGUnavailable)
		}
	}
	if update.LLMTimeoutSeconds != nil && *update.LLMTimeoutSeconds <= 0 {
		return errs.New(errs.KindValidation, "llm_timeout_seconds must be positive")
	}
	if update.MaxConversationTurns != nil && *update.MaxConversationTurns <= 0 {
		return errs.New(errs.KindValidation, "max_conversation_turns must be positive")
	}
	return nil
}
