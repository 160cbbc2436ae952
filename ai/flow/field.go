// Package flow holds the pure functions of the field-collection engine:
// which field to ask next, when a mode is complete, how raw answers are
// validated and canonicalised, and the Turkish context block handed to the
// persona LLM. Nothing in this package touches storage.
package flow

import "github.com/queryon/queryon/store"

// Skip is the sentinel recorded for an optional field the user declined.
const Skip = "__skip__"

// Collection modes.
const (
	ModeAppointment = "appointment"
	ModeOrder       = "order"
	ModeReschedule  = "reschedule"
)

// Flow-state keys shared with the orchestrator.
const (
	KeyActiveMode = "active_mode"
	KeyConfirmed  = "confirmed"
	KeySaved      = "saved"
	KeyApptNumber = "appt_number"
)

// Validation kinds a field may declare.
const (
	ValidateText   = "text"
	ValidatePhone  = "phone"
	ValidateEmail  = "email"
	ValidateDate   = "date"
	ValidateTime   = "time"
	ValidateNumber = "number"
)

// ShowIf makes a field visible only when another field holds one of the
// given values.
type ShowIf struct {
	Field  string
	Values []string
}

// Field is one entry of a mode's field-collection config.
type Field struct {
	Key        string
	Label      string
	Question   string
	Required   bool
	Options    []string
	Validation string
	ShowIf     *ShowIf
}

// ParseFields converts the raw JSON field config rows from the orchestrator
// config into typed fields. Entries without a key are dropped.
func ParseFields(raw []store.JSONMap) []Field {
	fields := make([]Field, 0, len(raw))
	for _, m := range raw {
		f := Field{
			Key:        asString(m["key"]),
			Label:      asString(m["label"]),
			Question:   asString(m["question"]),
			Validation: asString(m["validation"]),
		}
		if f.Key == "" {
			continue
		}
		if required, ok := m["required"].(bool); ok {
			f.Required = required
		}
		f.Options = asStringSlice(m["options"])
		if cond, ok := m["show_if"].(map[string]any); ok {
			showIf := &ShowIf{Field: asString(cond["field"])}
			if s := asString(cond["value"]); s != "" {
				showIf.Values = []string{s}
			} else {
				showIf.Values = asStringSlice(cond["value"])
			}
			if showIf.Field != "" && len(showIf.Values) > 0 {
				f.ShowIf = showIf
			}
		}
		fields = append(fields, f)
	}
	return fields
}

// FieldIsVisible reports whether the field should be asked or required given
// the values collected so far. A field gated on an uncollected or skipped
// controller is invisible.
func FieldIsVisible(f Field, collected map[string]string) bool {
	if f.ShowIf == nil {
		return true
	}
	value, ok := collected[f.ShowIf.Field]
	if !ok || value == "" || value == Skip {
		return false
	}
	for _, want := range f.ShowIf.Values {
		if foldEqual(value, want) {
			return true
		}
	}
	return false
}

// NextField returns the first visible required field that is still unfilled,
// or ok=false when none remain.
func NextField(fields []Field, collected map[string]string) (Field, bool) {
	for _, f := range fields {
		if !f.Required || !FieldIsVisible(f, collected) {
			continue
		}
		if v := collected[f.Key]; v == "" || v == Skip {
			return f, true
		}
	}
	return Field{}, false
}

// NextOptionalField returns the first visible optional field the user has
// neither answered nor skipped.
func NextOptionalField(fields []Field, collected map[string]string) (Field, bool) {
	for _, f := range fields {
		if f.Required || !FieldIsVisible(f, collected) {
			continue
		}
		if _, answered := collected[f.Key]; !answered {
			return f, true
		}
	}
	return Field{}, false
}

// IsComplete reports whether every visible required field holds a non-empty,
// non-skip value.
func IsComplete(fields []Field, collected map[string]string) bool {
	_, missing := NextField(fields, collected)
	return !missing
}

// AllFieldsHandled reports whether every visible field is either filled or
// explicitly skipped.
func AllFieldsHandled(fields []Field, collected map[string]string) bool {
	for _, f := range fields {
		if !FieldIsVisible(f, collected) {
			continue
		}
		if v, ok := collected[f.Key]; !ok || v == "" {
			return false
		}
	}
	return true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
