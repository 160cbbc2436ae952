package v1

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/tools"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// ToolRequest is the create payload. Enabled defaults to true.
type ToolRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Endpoint    string        `json:"endpoint"`
	Schema      store.JSONMap `json:"schema"`
	Triggers    []string      `json:"triggers"`
	Enabled     *bool         `json:"enabled"`
}

// ToolUpdateRequest is the partial-update payload. Names are immutable; the
// classifier prompt cache keys on them.
type ToolUpdateRequest struct {
	Description *string        `json:"description"`
	Endpoint    *string        `json:"endpoint"`
	Schema      *store.JSONMap `json:"schema"`
	Triggers    *[]string      `json:"triggers"`
	Enabled     *bool          `json:"enabled"`
}

// ToolTestRequest carries the arguments for a one-off invocation.
type ToolTestRequest struct {
	Args map[string]any `json:"args"`
}

func (s *APIV1Service) listTools(c echo.Context) error {
	ctx := c.Request().Context()
	configs, err := s.Store.ListToolConfigs(ctx, &store.FindToolConfig{})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*ToolResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, convertTool(cfg))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createTool(c echo.Context) error {
	ctx := c.Request().Context()
	req := &ToolRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed tool payload")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}
	if !validToolEndpoint(req.Endpoint) {
		return badRequest(c, "endpoint must be an absolute http or https URL")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	cfg, err := s.Store.CreateToolConfig(ctx, &store.ToolConfig{
		Name:        req.Name,
		Description: req.Description,
		Endpoint:    req.Endpoint,
		Schema:      req.Schema,
		Triggers:    req.Triggers,
		Enabled:     enabled,
	})
	if err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "tool created", cfg.Name)
	return c.JSON(http.StatusCreated, convertTool(cfg))
}

func (s *APIV1Service) updateTool(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	req := &ToolUpdateRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed tool payload")
	}
	if req.Endpoint != nil && !validToolEndpoint(*req.Endpoint) {
		return badRequest(c, "endpoint must be an absolute http or https URL")
	}
	cfg, err := s.Store.UpdateToolConfig(ctx, &store.UpdateToolConfig{
		ID:          id,
		Description: req.Description,
		Endpoint:    req.Endpoint,
		Schema:      req.Schema,
		Triggers:    req.Triggers,
		Enabled:     req.Enabled,
	})
	if err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "tool updated", cfg.Name)
	return c.JSON(http.StatusOK, convertTool(cfg))
}

func (s *APIV1Service) deleteTool(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Store.DeleteToolConfig(ctx, &store.DeleteToolConfig{ID: id}); err != nil {
		return respondError(c, err)
	}
	s.reloadAssistant(ctx, "tool deleted", "")
	return c.NoContent(http.StatusNoContent)
}

// testTool invokes the tool endpoint once with caller-supplied arguments and
// returns whatever came back. Disabled tools are testable so an admin can
// verify an endpoint before switching it on.
func (s *APIV1Service) testTool(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	cfg, err := s.toolByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	req := &ToolTestRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed test payload")
	}

	probe := *cfg
	probe.Enabled = true
	registry, err := tools.NewRegistry([]*store.ToolConfig{&probe})
	if err != nil {
		return respondError(c, err)
	}
	result, err := registry.Invoke(ctx, cfg.Name, req.Args)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tool": cfg.Name, "result": result})
}

func (s *APIV1Service) toolByID(ctx context.Context, id int32) (*store.ToolConfig, error) {
	configs, err := s.Store.ListToolConfigs(ctx, &store.FindToolConfig{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, errs.Newf(errs.KindNotFound, "tool %d not found", id)
	}
	return configs[0], nil
}

func validToolEndpoint(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
