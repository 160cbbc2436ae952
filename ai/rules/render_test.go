package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"hours": "09:00-17:00",
		"name":  "Queryon",
	}

	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{"simple substitution", "Saatlerimiz: {hours}", "Saatlerimiz: 09:00-17:00"},
		{"multiple placeholders", "{name}: {hours}", "Queryon: 09:00-17:00"},
		{"unknown placeholder stays literal", "Hello {missing}", "Hello {missing}"},
		{"no placeholders", "plain text", "plain text"},
		{"empty template", "", ""},
		{"repeated placeholder", "{name} {name}", "Queryon Queryon"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Render(tc.template, vars))
		})
	}
}

// Attribute and index lookups must never be evaluated; only bare identifiers
// in braces are placeholders.
func TestRender_InjectionDefence(t *testing.T) {
	vars := map[string]string{"safe": "value"}

	testCases := []string{
		"{0.__class__}",
		"{safe.__init__}",
		"{vars[secret]}",
		"{ spaced }",
		"{a-b}",
	}

	for _, template := range testCases {
		t.Run(template, func(t *testing.T) {
			assert.Equal(t, template, Render(template, vars))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	vars := map[string]string{"hours": "09:00-17:00"}
	once := Render("Saatler: {hours}", vars)
	assert.Equal(t, once, Render(once, vars))
}
