package flow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modeConfig() *ModeConfig {
	return &ModeConfig{
		AppointmentFields: appointmentFields(),
		OrderFields: []Field{
			{Key: "product", Label: "Ürün", Question: "Hangi ürünü istersiniz?", Required: true},
			{Key: "quantity", Label: "Adet", Question: "Kaç adet?", Required: true, Validation: ValidateNumber},
		},
		OrderModeEnabled: true,
	}
}

func TestBuildModeContext_NextQuestion(t *testing.T) {
	fields := appointmentFields()
	ctx := BuildModeContext(ModeAppointment, fields, map[string]string{"name": "Ayşe"}, false, false, nil)

	assert.Contains(t, ctx, "RANDEVU AKIŞI")
	assert.Contains(t, ctx, "Ad Soyad: Ayşe")
	assert.Contains(t, ctx, "Telefon numaranız?")
	assert.Contains(t, ctx, "telefon numarası en az 10 hane")
}

func TestBuildModeContext_OptionsListed(t *testing.T) {
	fields := appointmentFields()
	collected := map[string]string{"name": "Ayşe", "phone": "05321234567"}
	ctx := BuildModeContext(ModeAppointment, fields, collected, false, false, nil)

	assert.Contains(t, ctx, "Hangi etkinlik için?")
	assert.Contains(t, ctx, "düğün, kına, nişan")
}

func TestBuildModeContext_CompleteAsksConfirmation(t *testing.T) {
	fields := appointmentFields()
	collected := map[string]string{
		"name": "Ayşe", "phone": "05321234567", "event_type": "nişan",
		"artist": "İzel", "location": "istanbul", "event_date": "2026-06-15", "event_time": "14:00",
	}
	ctx := BuildModeContext(ModeAppointment, fields, collected, false, false, nil)

	assert.Contains(t, ctx, "ONAY")
	assert.Contains(t, ctx, `{"confirmed": true}`)
}

func TestBuildModeContext_PriceBlockInjected(t *testing.T) {
	fields := appointmentFields()
	collected := map[string]string{
		"name": "Ayşe", "phone": "05321234567", "event_type": "düğün",
		"artist": "İzel", "location": "istanbul", "event_date": "2026-06-15", "event_time": "14:00",
		"venue_address": "Kadıköy", "total_people": "3",
	}
	ctx := BuildModeContext(ModeAppointment, fields, collected, false, false, nil)

	assert.Contains(t, ctx, "FİYAT BİLGİSİ")
	assert.Contains(t, ctx, "18000 TL")
}

func TestBuildModeContext_AvailabilitySlots(t *testing.T) {
	fields := appointmentFields()
	ctx := BuildModeContext(ModeAppointment, fields, map[string]string{}, false, false, &ContextOptions{
		AvailabilitySlots: []string{"10:00", "11:00", "14:00"},
	})

	assert.Contains(t, ctx, "Uygun saatler: 10:00, 11:00, 14:00")
}

func TestBuildModeContext_SkippedFieldShown(t *testing.T) {
	fields := appointmentFields()
	collected := map[string]string{"name": "Ayşe", "notes": Skip}
	ctx := BuildModeContext(ModeAppointment, fields, collected, false, false, nil)

	assert.Contains(t, ctx, "Not: (müşteri geçti)")
}

func TestComputeModeContext(t *testing.T) {
	cfg := modeConfig()

	t.Run("no state", func(t *testing.T) {
		mode, ctx := ComputeModeContext(cfg, nil, nil)
		assert.Empty(t, mode)
		assert.Empty(t, ctx)
	})

	t.Run("no active mode", func(t *testing.T) {
		mode, ctx := ComputeModeContext(cfg, map[string]any{"something": "else"}, nil)
		assert.Empty(t, mode)
		assert.Empty(t, ctx)
	})

	t.Run("active appointment mode", func(t *testing.T) {
		state := map[string]any{
			KeyActiveMode:   ModeAppointment,
			ModeAppointment: map[string]any{"name": "Ayşe"},
		}
		mode, ctx := ComputeModeContext(cfg, state, nil)
		assert.Equal(t, ModeAppointment, mode)
		assert.Contains(t, ctx, "Ad Soyad: Ayşe")
	})

	t.Run("saved appointment surfaces the reference", func(t *testing.T) {
		state := map[string]any{
			KeyActiveMode: ModeAppointment,
			ModeAppointment: map[string]any{
				"name":        "Ayşe",
				KeySaved:      true,
				KeyApptNumber: "RND-2026-0042",
			},
		}
		mode, ctx := ComputeModeContext(cfg, state, nil)
		assert.Empty(t, mode)
		assert.Contains(t, ctx, "RND-2026-0042")
	})

	t.Run("reschedule mode uses built-in fields", func(t *testing.T) {
		state := map[string]any{
			KeyActiveMode:  ModeReschedule,
			ModeReschedule: map[string]any{"appt_number": "RND-2026-0042"},
		}
		mode, ctx := ComputeModeContext(cfg, state, nil)
		assert.Equal(t, ModeReschedule, mode)
		assert.Contains(t, ctx, "Randevu numarası: RND-2026-0042")
		assert.True(t, strings.Contains(ctx, "Hangi tarihe almak istersiniz?"))
	})

	t.Run("missing sub-map yields nothing", func(t *testing.T) {
		mode, ctx := ComputeModeContext(cfg, map[string]any{KeyActiveMode: ModeOrder}, nil)
		assert.Empty(t, mode)
		assert.Empty(t, ctx)
	})
}

func TestDefaultRescheduleFields(t *testing.T) {
	fields := DefaultRescheduleFields()
	require.Len(t, fields, 3)
	for _, f := range fields {
		assert.True(t, f.Required)
	}
	assert.Equal(t, "appt_number", fields[0].Key)
}
