package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/queryon/queryon/ai/flow"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/store"
)

// apptNumberPrefix starts every reference number customers quote back when
// rescheduling.
const apptNumberPrefix = "RND"

// finalizeIntake persists a confirmed mode flow: appointments and orders are
// created, reschedules update the referenced appointment. It returns the
// flow state to store and replaces the turn's answer with the definitive
// outcome, since only the orchestrator knows whether the write succeeded.
func (o *Orchestrator) finalizeIntake(ctx context.Context, t *turn, state store.FlowState) store.FlowState {
	mode, _ := state[flow.KeyActiveMode].(string)
	if mode == "" {
		return state
	}
	sub, _ := state[mode].(map[string]any)
	if sub == nil || !boolValue(sub[flow.KeyConfirmed]) || boolValue(sub[flow.KeySaved]) {
		return state
	}

	fields := t.modeCfg.FieldsForMode(mode)
	collected := collectedValues(sub)
	if !flow.IsComplete(fields, collected) {
		// The model confirmed too early. Back out and ask for what is
		// still missing.
		delete(sub, flow.KeyConfirmed)
		if next, ok := flow.NextField(fields, collected); ok {
			t.setAnswer(next.Question)
		}
		return state
	}

	switch mode {
	case flow.ModeAppointment:
		return o.saveAppointment(ctx, t, state, sub, fields, collected)
	case flow.ModeOrder:
		return o.saveOrder(ctx, t, state, fields, collected)
	case flow.ModeReschedule:
		return o.applyReschedule(ctx, t, state, collected)
	default:
		return state
	}
}

func (o *Orchestrator) saveAppointment(ctx context.Context, t *turn, state store.FlowState, sub map[string]any, fields []flow.Field, collected map[string]string) store.FlowState {
	summary := intakeSummary(fields, collected)
	create := &store.Appointment{
		ConversationID: &t.conversation.ID,
		Status:         store.RecordConfirmed,
		ContactName:    popField(collected, "customer_name", "name", "contact_name"),
		ContactPhone:   popField(collected, "phone", "contact_phone"),
		ContactEmail:   popField(collected, "email", "contact_email"),
		Service:        popField(collected, flow.FieldEventType, "service"),
		Location:       popField(collected, flow.FieldLocation),
		Artist:         popField(collected, flow.FieldArtist),
		EventDate:      popField(collected, "event_date", "date"),
		EventTime:      popField(collected, "event_time", "time"),
		Notes:          popField(collected, "notes", "note"),
		Summary:        &summary,
	}
	create.ExtraFields = extraFields(collected)

	appt, err := o.store.CreateAppointment(ctx, create, apptNumberPrefix)
	if err != nil {
		slog.Error("appointment save failed", "conversation", t.conversation.ID, "error", err)
		delete(sub, flow.KeyConfirmed)
		t.setAnswer("Randevunuzu kaydederken bir sorun oluştu. Lütfen tekrar onaylar mısınız?")
		return state
	}

	sub[flow.KeySaved] = true
	sub[flow.KeyApptNumber] = appt.ApptNumber
	t.extra("appt_number", appt.ApptNumber)
	t.setAnswer(fmt.Sprintf("Randevunuz oluşturuldu. Referans numaranız: %s. Değişiklik gerekirse bu numarayı yazmanız yeterli.", appt.ApptNumber))
	slog.Info("appointment created", "appt_number", appt.ApptNumber, "conversation", t.conversation.ID)

	o.reserveSlot(ctx, appt)
	o.webhooks.PostAsync(t.cfg.AppointmentWebhookURL, t.cfg.AppointmentWebhookSecret,
		webhook.EventAppointmentCreated, AppointmentPayload(appt))
	return state
}

func (o *Orchestrator) saveOrder(ctx context.Context, t *turn, state store.FlowState, fields []flow.Field, collected map[string]string) store.FlowState {
	summary := intakeSummary(fields, collected)
	create := &store.Order{
		ConversationID: &t.conversation.ID,
		Status:         store.RecordConfirmed,
		ContactName:    popField(collected, "customer_name", "name", "contact_name"),
		ContactPhone:   popField(collected, "phone", "contact_phone"),
		ContactEmail:   popField(collected, "email", "contact_email"),
		Service:        popField(collected, "product", "service", flow.FieldEventType),
		Location:       popField(collected, flow.FieldLocation, "address"),
		EventDate:      popField(collected, "event_date", "date", "delivery_date"),
		EventTime:      popField(collected, "event_time", "time", "delivery_time"),
		Notes:          popField(collected, "notes", "note"),
		Summary:        &summary,
	}
	create.ExtraFields = extraFields(collected)

	order, err := o.store.CreateOrder(ctx, create)
	if err != nil {
		slog.Error("order save failed", "conversation", t.conversation.ID, "error", err)
		if sub, _ := state[flow.ModeOrder].(map[string]any); sub != nil {
			delete(sub, flow.KeyConfirmed)
		}
		t.setAnswer("Siparişinizi kaydederken bir sorun oluştu. Lütfen tekrar onaylar mısınız?")
		return state
	}

	t.extra("order_id", order.ID)
	t.setAnswer("Siparişinizi aldım, teşekkürler. En kısa sürede sizinle iletişime geçeceğiz.")
	slog.Info("order created", "order", order.ID, "conversation", t.conversation.ID)

	delete(state, flow.KeyActiveMode)
	delete(state, flow.ModeOrder)
	if len(state) == 0 {
		return nil
	}
	return state
}

func (o *Orchestrator) applyReschedule(ctx context.Context, t *turn, state store.FlowState, collected map[string]string) store.FlowState {
	number := strings.ToUpper(strings.TrimSpace(collected[flow.KeyApptNumber]))
	appt, err := o.store.GetAppointmentByNumber(ctx, number)
	if err != nil {
		slog.Error("reschedule lookup failed", "appt_number", number, "error", err)
		unconfirm(state, flow.ModeReschedule)
		t.setAnswer("Randevunuzu şu anda güncelleyemiyorum. Lütfen biraz sonra tekrar deneyin.")
		return state
	}
	if appt == nil || appt.Status == store.RecordCancelled {
		if sub, _ := state[flow.ModeReschedule].(map[string]any); sub != nil {
			delete(sub, flow.KeyApptNumber)
			delete(sub, flow.KeyConfirmed)
		}
		t.setAnswer(fmt.Sprintf("%s numaralı bir randevu bulamadım. Referans numaranızı kontrol edip tekrar yazar mısınız?", number))
		return state
	}

	date := collected["event_date"]
	timeStr := collected["event_time"]
	if o.scheduler != nil {
		conflict, err := o.scheduler.HasConflict(ctx, strValue(appt.Artist), date, timeStr, strValue(appt.Service), &appt.ID)
		if err != nil {
			slog.Warn("reschedule conflict check failed", "appt_number", number, "error", err)
		} else if conflict {
			unconfirm(state, flow.ModeReschedule)
			t.setAnswer("Maalesef o saat dolu görünüyor. Başka bir gün veya saat önerebilir misiniz?")
			return state
		}
	}

	updated, err := o.store.UpdateAppointment(ctx, &store.UpdateAppointment{
		ID:        appt.ID,
		EventDate: &date,
		EventTime: &timeStr,
	})
	if err != nil {
		slog.Error("reschedule update failed", "appt_number", number, "error", err)
		unconfirm(state, flow.ModeReschedule)
		t.setAnswer("Randevunuzu güncellerken bir sorun oluştu. Lütfen tekrar deneyin.")
		return state
	}

	t.extra("appt_number", updated.ApptNumber)
	t.setAnswer(fmt.Sprintf("Randevunuz güncellendi. %s numaralı randevunuzun yeni zamanı: %s %s.", updated.ApptNumber, date, timeStr))
	slog.Info("appointment rescheduled", "appt_number", updated.ApptNumber, "conversation", t.conversation.ID)

	o.reserveSlot(ctx, updated)
	o.webhooks.PostAsync(t.cfg.AppointmentWebhookURL, t.cfg.AppointmentWebhookSecret,
		webhook.EventAppointmentUpdated, AppointmentPayload(updated))

	delete(state, flow.KeyActiveMode)
	delete(state, flow.ModeReschedule)
	if len(state) == 0 {
		return nil
	}
	return state
}

// reserveSlot mirrors a saved appointment into the artist's calendar as a
// booked block. Best effort: the appointment row stays authoritative.
func (o *Orchestrator) reserveSlot(ctx context.Context, appt *store.Appointment) {
	if o.scheduler == nil {
		return
	}
	date, timeStr := strValue(appt.EventDate), strValue(appt.EventTime)
	if date == "" || timeStr == "" {
		return
	}
	if err := o.scheduler.Reserve(ctx, strValue(appt.Artist), date, timeStr, strValue(appt.Service), appt.ID); err != nil {
		slog.Warn("calendar block update failed", "appt_number", appt.ApptNumber, "error", err)
	}
}

// AppointmentPayload builds the webhook data map for an appointment event.
// The admin surface reuses it so every dispatch carries the same shape.
func AppointmentPayload(appt *store.Appointment) map[string]any {
	payload := map[string]any{
		"appt_number": appt.ApptNumber,
		"status":      string(appt.Status),
	}
	put := func(key string, v *string) {
		if v != nil && *v != "" {
			payload[key] = *v
		}
	}
	put("contact_name", appt.ContactName)
	put("contact_phone", appt.ContactPhone)
	put("contact_email", appt.ContactEmail)
	put("service", appt.Service)
	put("location", appt.Location)
	put("artist", appt.Artist)
	put("event_date", appt.EventDate)
	put("event_time", appt.EventTime)
	put("notes", appt.Notes)
	if len(appt.ExtraFields) > 0 {
		payload["extra_fields"] = map[string]any(appt.ExtraFields)
	}
	return payload
}

// collectedValues extracts the string answers from a mode's sub-state,
// leaving the bookkeeping flags behind.
func collectedValues(sub map[string]any) map[string]string {
	out := make(map[string]string, len(sub))
	for k, v := range sub {
		if k == flow.KeyConfirmed || k == flow.KeySaved {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// popField removes the first present alias from collected and returns it,
// so the leftovers can land in ExtraFields. Skipped answers count as absent.
func popField(collected map[string]string, keys ...string) *string {
	for _, k := range keys {
		v, ok := collected[k]
		if !ok {
			continue
		}
		delete(collected, k)
		if v == "" || v == flow.Skip {
			continue
		}
		return &v
	}
	return nil
}

func extraFields(collected map[string]string) store.JSONMap {
	extra := store.JSONMap{}
	for k, v := range collected {
		if k == flow.KeyApptNumber || v == "" || v == flow.Skip {
			continue
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// intakeSummary is the one-line operator summary stored on the record.
func intakeSummary(fields []flow.Field, collected map[string]string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := collected[f.Key]
		if v == "" || v == flow.Skip {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Key
		}
		parts = append(parts, label+": "+v)
	}
	return strings.Join(parts, ", ")
}

func unconfirm(state store.FlowState, mode string) {
	if sub, _ := state[mode].(map[string]any); sub != nil {
		delete(sub, flow.KeyConfirmed)
	}
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
