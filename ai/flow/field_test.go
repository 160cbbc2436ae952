package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

func appointmentFields() []Field {
	return []Field{
		{Key: "name", Label: "Ad Soyad", Question: "Adınızı alabilir miyim?", Required: true},
		{Key: "phone", Label: "Telefon", Question: "Telefon numaranız?", Required: true, Validation: ValidatePhone},
		{Key: "event_type", Label: "Etkinlik", Question: "Hangi etkinlik için?", Required: true, Options: []string{"düğün", "kına", "nişan"}},
		{Key: "artist", Label: "Sanatçı", Question: "Hangi sanatçıyı tercih edersiniz?", Required: true, Options: []string{"İzel", "Derya"}},
		{Key: "location", Label: "Şehir", Question: "Hangi şehirde?", Required: true},
		{Key: "event_date", Label: "Tarih", Question: "Hangi tarihte?", Required: true, Validation: ValidateDate},
		{Key: "event_time", Label: "Saat", Question: "Saat kaçta?", Required: true, Validation: ValidateTime},
		{Key: "total_people", Label: "Kişi sayısı", Question: "Kaç kişi olacaksınız?", Required: false, Validation: ValidateNumber},
		{Key: "notes", Label: "Not", Question: "Eklemek istediğiniz bir not var mı?", Required: false},
		{
			Key: "venue_address", Label: "Adres", Question: "Mekan adresi nedir?", Required: true,
			ShowIf: &ShowIf{Field: "event_type", Values: []string{"düğün", "kına"}},
		},
	}
}

func TestParseFields(t *testing.T) {
	raw := []store.JSONMap{
		{
			"key":        "name",
			"label":      "Ad Soyad",
			"question":   "Adınız?",
			"required":   true,
			"validation": "text",
		},
		{
			"key":      "artist",
			"label":    "Sanatçı",
			"question": "Kim?",
			"required": true,
			"options":  []any{"İzel", "Derya"},
			"show_if":  map[string]any{"field": "event_type", "value": "düğün"},
		},
		{
			// No key: dropped.
			"label": "bozuk",
		},
	}

	fields := ParseFields(raw)
	require.Len(t, fields, 2)

	assert.Equal(t, "name", fields[0].Key)
	assert.True(t, fields[0].Required)

	assert.Equal(t, []string{"İzel", "Derya"}, fields[1].Options)
	require.NotNil(t, fields[1].ShowIf)
	assert.Equal(t, "event_type", fields[1].ShowIf.Field)
	assert.Equal(t, []string{"düğün"}, fields[1].ShowIf.Values)
}

func TestParseFields_ShowIfValueList(t *testing.T) {
	fields := ParseFields([]store.JSONMap{
		{
			"key":     "venue_address",
			"show_if": map[string]any{"field": "event_type", "value": []any{"düğün", "kına"}},
		},
	})
	require.Len(t, fields, 1)
	require.NotNil(t, fields[0].ShowIf)
	assert.Equal(t, []string{"düğün", "kına"}, fields[0].ShowIf.Values)
}

func TestFieldIsVisible(t *testing.T) {
	gated := Field{Key: "venue_address", ShowIf: &ShowIf{Field: "event_type", Values: []string{"düğün", "kına"}}}

	testCases := []struct {
		name      string
		collected map[string]string
		visible   bool
	}{
		{"controller not collected", map[string]string{}, false},
		{"controller matches", map[string]string{"event_type": "düğün"}, true},
		{"controller matches second value", map[string]string{"event_type": "kına"}, true},
		{"controller differs", map[string]string{"event_type": "nişan"}, false},
		{"controller skipped", map[string]string{"event_type": Skip}, false},
		{"fold-insensitive match", map[string]string{"event_type": "DUGUN"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.visible, FieldIsVisible(gated, tc.collected))
		})
	}

	t.Run("no condition always visible", func(t *testing.T) {
		assert.True(t, FieldIsVisible(Field{Key: "name"}, nil))
	})
}

func TestNextField(t *testing.T) {
	fields := appointmentFields()

	t.Run("first unfilled required field", func(t *testing.T) {
		next, ok := NextField(fields, map[string]string{"name": "Ayşe"})
		require.True(t, ok)
		assert.Equal(t, "phone", next.Key)
	})

	t.Run("skip on a required field does not satisfy it", func(t *testing.T) {
		next, ok := NextField(fields, map[string]string{"name": Skip})
		require.True(t, ok)
		assert.Equal(t, "name", next.Key)
	})

	t.Run("invisible fields are not asked", func(t *testing.T) {
		collected := map[string]string{
			"name": "Ayşe", "phone": "05321234567", "event_type": "nişan",
			"artist": "İzel", "location": "istanbul", "event_date": "2026-06-15", "event_time": "14:00",
		}
		_, ok := NextField(fields, collected)
		assert.False(t, ok, "venue_address is hidden for nişan")
	})

	t.Run("conditional field asked when visible", func(t *testing.T) {
		collected := map[string]string{
			"name": "Ayşe", "phone": "05321234567", "event_type": "düğün",
			"artist": "İzel", "location": "istanbul", "event_date": "2026-06-15", "event_time": "14:00",
		}
		next, ok := NextField(fields, collected)
		require.True(t, ok)
		assert.Equal(t, "venue_address", next.Key)
	})
}

func TestNextOptionalField(t *testing.T) {
	fields := appointmentFields()

	next, ok := NextOptionalField(fields, map[string]string{})
	require.True(t, ok)
	assert.Equal(t, "total_people", next.Key)

	// A skipped optional field is handled; the next one is offered.
	next, ok = NextOptionalField(fields, map[string]string{"total_people": Skip})
	require.True(t, ok)
	assert.Equal(t, "notes", next.Key)

	_, ok = NextOptionalField(fields, map[string]string{"total_people": "3", "notes": Skip})
	assert.False(t, ok)
}

func TestIsCompleteAndAllFieldsHandled(t *testing.T) {
	fields := appointmentFields()
	complete := map[string]string{
		"name": "Ayşe", "phone": "05321234567", "event_type": "nişan",
		"artist": "İzel", "location": "istanbul", "event_date": "2026-06-15", "event_time": "14:00",
	}

	assert.True(t, IsComplete(fields, complete))
	assert.False(t, AllFieldsHandled(fields, complete), "optional fields still unanswered")

	complete["total_people"] = "3"
	complete["notes"] = Skip
	assert.True(t, AllFieldsHandled(fields, complete))

	delete(complete, "phone")
	assert.False(t, IsComplete(fields, complete))
}
