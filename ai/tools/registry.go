// Package tools carries the admin-registered tool registry the classifier
// and the tool handler read from.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

const invokeTimeout = 15 * time.Second

// Tool is one invocable endpoint.
type Tool struct {
	Name        string
	Description string
	Endpoint    string
	Schema      store.JSONMap
	Triggers    []string
}

// Registry is an immutable snapshot of the enabled tools. Rebuild it when
// tool configs change.
type Registry struct {
	tools  []Tool
	byName map[string]int
	client *http.Client
}

// NewRegistry builds a registry from tool configs, keeping only enabled
// entries. Duplicate names are a conflict.
func NewRegistry(configs []*store.ToolConfig) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]int),
		client: &http.Client{Timeout: invokeTimeout},
	}

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if _, exists := r.byName[cfg.Name]; exists {
			return nil, errs.Newf(errs.KindConflict, "duplicate tool name %q", cfg.Name)
		}
		r.byName[cfg.Name] = len(r.tools)
		r.tools = append(r.tools, Tool{
			Name:        cfg.Name,
			Description: cfg.Description,
			Endpoint:    cfg.Endpoint,
			Schema:      cfg.Schema,
			Triggers:    cfg.Triggers,
		})
	}

	return r, nil
}

// Names returns the enabled tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	return names
}

// Descriptions returns "name: description" lines for classifier prompts.
func (r *Registry) Descriptions() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = fmt.Sprintf("%s: %s", t.Name, t.Description)
	}
	return out
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	idx, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[idx], true
}

// Len returns the number of enabled tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Configs returns the tools as store configs for the pre-classifier.
func (r *Registry) Configs() []*store.ToolConfig {
	out := make([]*store.ToolConfig, len(r.tools))
	for i, t := range r.tools {
		out[i] = &store.ToolConfig{
			Name:        t.Name,
			Description: t.Description,
			Endpoint:    t.Endpoint,
			Schema:      t.Schema,
			Triggers:    t.Triggers,
			Enabled:     true,
		}
	}
	return out
}

// Invoke POSTs the arguments to the tool endpoint and decodes the JSON
// reply. The admin test endpoint is the primary caller.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "tool %q not registered", name)
	}

	body, err := json.Marshal(args)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "encode tool arguments", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tool.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "build tool request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalService, fmt.Sprintf("invoke tool %q", name), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalService, "read tool response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.Newf(errs.KindExternalService, "tool %q returned status %d", name, resp.StatusCode)
	}

	result := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &result); err != nil {
			// Non-JSON replies are surfaced raw.
			result = map[string]any{"raw": string(payload)}
		}
	}
	return result, nil
}
