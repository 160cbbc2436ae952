package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/queryon/queryon/ai/classify"
	"github.com/queryon/queryon/ai/tools"
)

// ToolHandler surfaces the available tools. Invocation itself runs through
// the admin test endpoint; the conversational path only names what exists.
type ToolHandler struct {
	registry *tools.Registry
}

func NewToolHandler(registry *tools.Registry) *ToolHandler {
	return &ToolHandler{registry: registry}
}

func (h *ToolHandler) Handle(_ context.Context, req *Request) (*Result, error) {
	result := &Result{
		Query:          req.Query,
		Intent:         classify.IntentTool,
		Classification: req.Classification,
	}
	if h.registry == nil || h.registry.Len() == 0 {
		return result, nil
	}

	names := h.registry.Names()
	answer := fmt.Sprintf("Şu an kullanabildiğim araçlar: %s.", strings.Join(names, ", "))
	result.Answer = strPtr(answer)
	return result, nil
}
