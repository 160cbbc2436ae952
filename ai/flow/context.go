package flow

import (
	"fmt"
	"strings"
)

// ModeConfig carries the typed field configs the orchestrator loaded from
// the config row.
type ModeConfig struct {
	AppointmentFields []Field
	OrderFields       []Field
	OrderModeEnabled  bool
}

// DefaultRescheduleFields are built in: rescheduling always needs the
// reference number and the new slot.
func DefaultRescheduleFields() []Field {
	return []Field{
		{Key: "appt_number", Label: "Randevu numarası", Question: "Randevu referans numaranız nedir?", Required: true},
		{Key: "event_date", Label: "Yeni tarih", Question: "Hangi tarihe almak istersiniz?", Required: true, Validation: ValidateDate},
		{Key: "event_time", Label: "Yeni saat", Question: "Saat kaçta uygun olur?", Required: true, Validation: ValidateTime},
	}
}

// FieldsForMode resolves the field list for a mode, nil for unknown modes.
func (c *ModeConfig) FieldsForMode(mode string) []Field {
	switch mode {
	case ModeAppointment:
		return c.AppointmentFields
	case ModeOrder:
		return c.OrderFields
	case ModeReschedule:
		return DefaultRescheduleFields()
	default:
		return nil
	}
}

// ContextOptions carries data injected from outside the flow state.
type ContextOptions struct {
	// AvailabilitySlots are free HH:MM start times for the requested day.
	AvailabilitySlots []string
}

var modeTitles = map[string]string{
	ModeAppointment: "RANDEVU",
	ModeOrder:       "SİPARİŞ",
	ModeReschedule:  "RANDEVU DEĞİŞİKLİĞİ",
}

var validationHints = map[string]string{
	ValidateTime:   "saat SS:DD biçiminde",
	ValidateDate:   "tarih YYYY-AA-GG biçiminde",
	ValidatePhone:  "telefon numarası en az 10 hane",
	ValidateEmail:  "geçerli bir e-posta adresi",
	ValidateNumber: "sayı",
}

// BuildModeContext renders the Turkish status block the persona LLM sees on
// every flow turn: what has been collected, what to ask next, how the answer
// is validated, free slots when injected and the pre-computed price for
// appointment mode.
func BuildModeContext(mode string, fields []Field, collected map[string]string, confirmed, saved bool, opts *ContextOptions) string {
	title := modeTitles[mode]
	if title == "" {
		title = strings.ToUpper(mode)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s AKIŞI ===\n", title)

	sb.WriteString("Toplanan bilgiler:\n")
	anyCollected := false
	for _, f := range fields {
		if !FieldIsVisible(f, collected) {
			continue
		}
		value, ok := collected[f.Key]
		if !ok || value == "" {
			continue
		}
		anyCollected = true
		label := f.Label
		if label == "" {
			label = f.Key
		}
		if value == Skip {
			fmt.Fprintf(&sb, "- %s: (müşteri geçti)\n", label)
		} else {
			fmt.Fprintf(&sb, "- %s: %s\n", label, value)
		}
	}
	if !anyCollected {
		sb.WriteString("- (henüz bilgi yok)\n")
	}

	switch {
	case saved:
		sb.WriteString("Durum: kayıt tamamlandı.\n")
	case confirmed:
		sb.WriteString("Durum: müşteri onayladı, kayıt bekleniyor.\n")
	case IsComplete(fields, collected):
		sb.WriteString("Durum: tüm zorunlu alanlar tamam. Müşteriden kısa bir özetle ONAY iste; onaylarsa <extract>{\"confirmed\": true}</extract> gönder.\n")
		if next, ok := NextOptionalField(fields, collected); ok {
			fmt.Fprintf(&sb, "İsteğe bağlı alan sorulabilir: %q (alan: %s). Müşteri istemezse geçilebilir.\n", next.Question, next.Key)
		}
	default:
		next, _ := NextField(fields, collected)
		fmt.Fprintf(&sb, "Sıradaki soru: %q (alan: %s", next.Question, next.Key)
		if hint := validationHints[next.Validation]; hint != "" {
			fmt.Fprintf(&sb, ", beklenen: %s", hint)
		}
		if len(next.Options) > 0 {
			fmt.Fprintf(&sb, ", seçenekler: %s", strings.Join(next.Options, ", "))
		}
		sb.WriteString(")\n")
	}

	if opts != nil && len(opts.AvailabilitySlots) > 0 {
		fmt.Fprintf(&sb, "Uygun saatler: %s\n", strings.Join(opts.AvailabilitySlots, ", "))
	}

	if mode == ModeAppointment {
		if block := PriceBlock(collected); block != "" {
			sb.WriteString(block)
		}
	}

	return sb.String()
}

// ComputeModeContext is the orchestrator's entry point. It returns the
// active mode and its context block; ("", "") when no flow is active; and
// ("", reminder) when an appointment was already saved and only the
// reference number needs surfacing.
func ComputeModeContext(cfg *ModeConfig, state map[string]any, opts *ContextOptions) (string, string) {
	if len(state) == 0 {
		return "", ""
	}
	mode, _ := state[KeyActiveMode].(string)
	if mode == "" {
		return "", ""
	}
	sub, _ := state[mode].(map[string]any)
	if sub == nil {
		return "", ""
	}

	collected := make(map[string]string)
	for k, v := range sub {
		// In appointment mode appt_number is the generated reference, not a
		// collected answer.
		if mode == ModeAppointment && k == KeyApptNumber {
			continue
		}
		if s, ok := v.(string); ok {
			collected[k] = s
		}
	}
	confirmed, _ := sub[KeyConfirmed].(bool)
	saved, _ := sub[KeySaved].(bool)

	if mode == ModeAppointment && saved {
		if number, ok := sub[KeyApptNumber].(string); ok && number != "" {
			return "", fmt.Sprintf("Randevu kaydedildi. Referans numarası: %s. Müşteri sorarsa bu numarayı hatırlat.", number)
		}
	}

	fields := cfg.FieldsForMode(mode)
	if len(fields) == 0 {
		return "", ""
	}
	return mode, BuildModeContext(mode, fields, collected, confirmed, saved, opts)
}
