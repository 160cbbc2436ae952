package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowContext_RoundTrip(t *testing.T) {
	original := &FlowContext{
		FlowID:      "hizmet",
		CurrentStep: "start",
		Data:        map[string]string{"name": "Ayşe"},
		Selections:  map[string]string{"start": "A"},
	}

	restored := FromMap(original.ToMap())
	require.NotNil(t, restored)
	assert.Equal(t, original, restored)
}

func TestFlowContext_ZeroValueMapsToNil(t *testing.T) {
	assert.Nil(t, (&FlowContext{}).ToMap())
	assert.Nil(t, (*FlowContext)(nil).ToMap())
	assert.Nil(t, FromMap(nil))
	assert.Nil(t, FromMap(map[string]any{}))
}

func TestFlowContext_FromMapIgnoresNonStrings(t *testing.T) {
	ctx := FromMap(map[string]any{
		"flow_id":      "f",
		"current_step": "s",
		"data":         map[string]any{"ok": "yes", "bad": 42},
	})
	require.NotNil(t, ctx)
	assert.Equal(t, map[string]string{"ok": "yes"}, ctx.Data)
}

func TestFlowContext_Clone(t *testing.T) {
	original := &FlowContext{
		FlowID:      "f",
		CurrentStep: "s",
		Data:        map[string]string{"k": "v"},
	}

	clone := original.Clone()
	clone.Data["k"] = "changed"
	clone.CurrentStep = "other"

	assert.Equal(t, "v", original.Data["k"])
	assert.Equal(t, "s", original.CurrentStep)
}
