package rules

// FlowContext is the per-conversation snapshot of a rule-driven flow: which
// flow is active, which step the user is at, the free-form data extracted so
// far and the choice the user made at each step.
type FlowContext struct {
	FlowID      string
	CurrentStep string
	Data        map[string]string
	Selections  map[string]string
}

// IsZero reports whether the context carries no information.
func (c *FlowContext) IsZero() bool {
	return c == nil || (c.FlowID == "" && c.CurrentStep == "" && len(c.Data) == 0 && len(c.Selections) == 0)
}

// ToMap converts the context into the JSON shape persisted inside a
// conversation's flow state. A zero context maps to nil.
func (c *FlowContext) ToMap() map[string]any {
	if c.IsZero() {
		return nil
	}
	m := map[string]any{
		"flow_id":      c.FlowID,
		"current_step": c.CurrentStep,
	}
	if len(c.Data) > 0 {
		data := make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			data[k] = v
		}
		m["data"] = data
	}
	if len(c.Selections) > 0 {
		selections := make(map[string]any, len(c.Selections))
		for k, v := range c.Selections {
			selections[k] = v
		}
		m["selections"] = selections
	}
	return m
}

// FromMap rebuilds a context from its persisted shape. Nil or empty input
// yields nil. Non-string values are ignored rather than failing the load.
func FromMap(m map[string]any) *FlowContext {
	if len(m) == 0 {
		return nil
	}
	c := &FlowContext{}
	if v, ok := m["flow_id"].(string); ok {
		c.FlowID = v
	}
	if v, ok := m["current_step"].(string); ok {
		c.CurrentStep = v
	}
	c.Data = stringMap(m["data"])
	c.Selections = stringMap(m["selections"])
	if c.IsZero() {
		return nil
	}
	return c
}

// Clone returns a deep copy so transitions never mutate the stored context.
func (c *FlowContext) Clone() *FlowContext {
	if c == nil {
		return nil
	}
	clone := &FlowContext{
		FlowID:      c.FlowID,
		CurrentStep: c.CurrentStep,
	}
	if c.Data != nil {
		clone.Data = make(map[string]string, len(c.Data))
		for k, v := range c.Data {
			clone.Data[k] = v
		}
	}
	if c.Selections != nil {
		clone.Selections = make(map[string]string, len(c.Selections))
		for k, v := range c.Selections {
			clone.Selections[k] = v
		}
	}
	return clone
}

func stringMap(v any) map[string]string {
	raw, ok := v.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
