package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/store"
)

// RuleRequest is the create payload. IsActive defaults to true.
type RuleRequest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	TriggerPatterns  []string          `json:"trigger_patterns"`
	ResponseTemplate string            `json:"response_template"`
	Variables        map[string]string `json:"variables"`
	Priority         int32             `json:"priority"`
	IsActive         *bool             `json:"is_active"`
	FlowID           *string           `json:"flow_id"`
	StepKey          *string           `json:"step_key"`
	RequiredStep     *string           `json:"required_step"`
	NextSteps        map[string]string `json:"next_steps"`
}

// RuleUpdateRequest is the partial-update payload; nil fields keep their
// stored value.
type RuleUpdateRequest struct {
	Name             *string            `json:"name"`
	Description      *string            `json:"description"`
	TriggerPatterns  *[]string          `json:"trigger_patterns"`
	ResponseTemplate *string            `json:"response_template"`
	Variables        *map[string]string `json:"variables"`
	Priority         *int32             `json:"priority"`
	IsActive         *bool              `json:"is_active"`
	FlowID           *string            `json:"flow_id"`
	StepKey          *string            `json:"step_key"`
	RequiredStep     *string            `json:"required_step"`
	NextSteps        *map[string]string `json:"next_steps"`
}

func (s *APIV1Service) listRules(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := listWindow(c)
	rules, err := s.Store.ListRules(ctx, &store.FindRule{Limit: &limit, Offset: &offset})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, convertRule(rule))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createRule(c echo.Context) error {
	ctx := c.Request().Context()
	req := &RuleRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed rule payload")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}
	if len(req.TriggerPatterns) == 0 {
		return badRequest(c, "at least one trigger pattern is required")
	}
	if req.ResponseTemplate == "" {
		return badRequest(c, "response_template is required")
	}
	if req.FlowID != nil && req.StepKey == nil {
		return badRequest(c, "flow-bound rules require step_key")
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	rule, err := s.Store.CreateRule(ctx, &store.Rule{
		Name:             req.Name,
		Description:      req.Description,
		TriggerPatterns:  req.TriggerPatterns,
		ResponseTemplate: req.ResponseTemplate,
		Variables:        req.Variables,
		Priority:         req.Priority,
		IsActive:         isActive,
		FlowID:           req.FlowID,
		StepKey:          req.StepKey,
		RequiredStep:     req.RequiredStep,
		NextSteps:        req.NextSteps,
	})
	if err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "rule created", rule.Name)
	return c.JSON(http.StatusCreated, convertRule(rule))
}

func (s *APIV1Service) updateRule(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	req := &RuleUpdateRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed rule payload")
	}
	if req.TriggerPatterns != nil && len(*req.TriggerPatterns) == 0 {
		return badRequest(c, "trigger_patterns cannot be emptied")
	}
	if req.ResponseTemplate != nil && *req.ResponseTemplate == "" {
		return badRequest(c, "response_template cannot be emptied")
	}
	rule, err := s.Store.UpdateRule(ctx, &store.UpdateRule{
		ID:               id,
		Name:             req.Name,
		Description:      req.Description,
		TriggerPatterns:  req.TriggerPatterns,
		ResponseTemplate: req.ResponseTemplate,
		Variables:        req.Variables,
		Priority:         req.Priority,
		IsActive:         req.IsActive,
		FlowID:           req.FlowID,
		StepKey:          req.StepKey,
		RequiredStep:     req.RequiredStep,
		NextSteps:        req.NextSteps,
	})
	if err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "rule updated", rule.Name)
	return c.JSON(http.StatusOK, convertRule(rule))
}

func (s *APIV1Service) deleteRule(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Store.DeleteRule(ctx, &store.DeleteRule{ID: id}); err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "rule deleted", "")
	return c.NoContent(http.StatusNoContent)
}

// reloadAssistant rebuilds the engine snapshot after a mutation. The row is
// already persisted, so a rebuild failure is logged rather than surfaced; the
// orchestrator keeps serving from its previous snapshot until the next
// successful reload.
func (s *APIV1Service) reloadAssistant(ctx context.Context, reason, detail string) {
	if err := s.Assistant.Reload(ctx); err != nil {
		slog.Error("assistant reload failed", "reason", reason, "detail", detail, "error", err)
	}
}
