package v1

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/store"
)

const inboundSecretHeader = "X-Webhook-Secret"

// inboundAppointment is the body an external system posts to update an
// appointment it learned about from an outbound webhook.
type inboundAppointment struct {
	ApptNumber   string  `json:"appt_number"`
	Status       *string `json:"status"`
	EventDate    *string `json:"event_date"`
	EventTime    *string `json:"event_time"`
	Artist       *string `json:"artist"`
	Service      *string `json:"service"`
	Location     *string `json:"location"`
	Notes        *string `json:"notes"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	ContactEmail *string `json:"contact_email"`
}

// handleInboundAppointment applies an appointment update pushed by the
// external system and re-dispatches the signed event so every subscriber
// sees the new state.
func (s *APIV1Service) handleInboundAppointment(c echo.Context) error {
	ctx := c.Request().Context()

	cfg, err := s.Store.GetOrchestratorConfig(ctx)
	if err != nil {
		return respondError(c, err)
	}
	secret := cfg.AppointmentWebhookSecret
	provided := c.Request().Header.Get(inboundSecretHeader)
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) != 1 {
		return respondError(c, errs.New(errs.KindUnauthorized, "invalid webhook secret"))
	}

	var in inboundAppointment
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if in.ApptNumber == "" {
		return badRequest(c, "appt_number is required")
	}
	if in.Status != nil && !validRecordStatus(*in.Status) {
		return badRequest(c, "status must be pending, confirmed or cancelled")
	}

	appt, err := s.Store.GetAppointmentByNumber(ctx, in.ApptNumber)
	if err != nil {
		return respondError(c, err)
	}
	if appt == nil {
		return respondError(c, errs.Newf(errs.KindNotFound, "appointment %s not found", in.ApptNumber))
	}

	update := &store.UpdateAppointment{
		ID:           appt.ID,
		EventDate:    in.EventDate,
		EventTime:    in.EventTime,
		Artist:       in.Artist,
		Service:      in.Service,
		Location:     in.Location,
		Notes:        in.Notes,
		ContactName:  in.ContactName,
		ContactPhone: in.ContactPhone,
		ContactEmail: in.ContactEmail,
	}
	if in.Status != nil {
		status := store.RecordStatus(*in.Status)
		update.Status = &status
	}

	updated, err := s.Store.UpdateAppointment(ctx, update)
	if err != nil {
		return respondError(c, err)
	}
	s.syncAppointmentCalendar(ctx, updated)

	event := webhook.EventAppointmentUpdated
	if updated.Status == store.RecordCancelled {
		event = webhook.EventAppointmentCancelled
	}
	s.dispatchAppointmentEvent(ctx, event, updated)

	slog.Info("appointment updated via webhook", "appt_number", updated.ApptNumber, "status", updated.Status)
	return c.JSON(http.StatusOK, convertAppointment(updated))
}

// syncAppointmentCalendar mirrors an appointment's slot into calendar
// blocks. Cancellations free the slot; anything with a full schedule gets
// its block moved. Best effort, failures only log.
func (s *APIV1Service) syncAppointmentCalendar(ctx context.Context, appt *store.Appointment) {
	if appt.Status == store.RecordCancelled {
		if err := s.Availability.Release(ctx, appt.ID); err != nil {
			slog.Warn("calendar release failed", "appt_number", appt.ApptNumber, "error", err)
		}
		return
	}
	if appt.Artist == nil || appt.EventDate == nil || appt.EventTime == nil {
		return
	}
	service := ""
	if appt.Service != nil {
		service = *appt.Service
	}
	if err := s.Availability.Reserve(ctx, *appt.Artist, *appt.EventDate, *appt.EventTime, service, appt.ID); err != nil {
		slog.Warn("calendar reserve failed", "appt_number", appt.ApptNumber, "error", err)
	}
}

func validRecordStatus(s string) bool {
	switch store.RecordStatus(s) {
	case store.RecordPending, store.RecordConfirmed, store.RecordCancelled:
		return true
	}
	return false
}
