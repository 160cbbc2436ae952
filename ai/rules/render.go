package rules

import "regexp"

// Placeholders are bare identifiers in braces. Anything else, including
// attribute or index lookups, stays literal so admin-supplied templates
// cannot be used for format-string injection.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render substitutes {identifier} placeholders from vars. Placeholders with
// no matching variable remain literal.
func Render(template string, vars map[string]string) string {
	if template == "" {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}
