package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/ai/orchestrator"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/webhook"
	"github.com/queryon/queryon/store"
)

// AppointmentUpdateRequest is the admin partial-update payload; nil fields
// keep their stored value.
type AppointmentUpdateRequest struct {
	Status       *string        `json:"status"`
	ContactName  *string        `json:"contact_name"`
	ContactPhone *string        `json:"contact_phone"`
	ContactEmail *string        `json:"contact_email"`
	Service      *string        `json:"service"`
	Location     *string        `json:"location"`
	Artist       *string        `json:"artist"`
	EventDate    *string        `json:"event_date"`
	EventTime    *string        `json:"event_time"`
	Notes        *string        `json:"notes"`
	Summary      *string        `json:"summary"`
	ExtraFields  *store.JSONMap `json:"extra_fields"`
}

func (s *APIV1Service) listAppointments(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := listWindow(c)
	find := &store.FindAppointment{Limit: &limit, Offset: &offset}
	if v := c.QueryParam("status"); v != "" {
		if !validRecordStatus(v) {
			return badRequest(c, "status must be pending, confirmed or cancelled")
		}
		status := store.RecordStatus(v)
		find.Status = &status
	}
	if v := c.QueryParam("artist"); v != "" {
		find.Artist = &v
	}
	if v := c.QueryParam("date"); v != "" {
		find.EventDate = &v
	}
	if v := c.QueryParam("from"); v != "" {
		find.EventDateFrom = &v
	}
	if v := c.QueryParam("to"); v != "" {
		find.EventDateTo = &v
	}
	appointments, err := s.Store.ListAppointments(ctx, find)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*AppointmentResponse, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, convertAppointment(appointment))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) getAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	appointment, err := s.appointmentByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertAppointment(appointment))
}

func (s *APIV1Service) updateAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	appointment, err := s.appointmentByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	req := &AppointmentUpdateRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed appointment payload")
	}
	if req.Status != nil && !validRecordStatus(*req.Status) {
		return badRequest(c, "status must be pending, confirmed or cancelled")
	}

	// Reject the update before persisting anything when the new slot
	// collides with another booking on the same resource.
	if req.Artist != nil || req.EventDate != nil || req.EventTime != nil {
		artist := coalesce(req.Artist, appointment.Artist)
		date := coalesce(req.EventDate, appointment.EventDate)
		timeStr := coalesce(req.EventTime, appointment.EventTime)
		if artist != nil && date != nil && timeStr != nil {
			service := ""
			if sv := coalesce(req.Service, appointment.Service); sv != nil {
				service = *sv
			}
			conflict, err := s.Availability.HasConflict(ctx, *artist, *date, *timeStr, service, &appointment.ID)
			if err != nil {
				return respondError(c, err)
			}
			if conflict {
				return respondError(c, errs.New(errs.KindConflict, "requested slot is already booked"))
			}
		}
	}

	update := &store.UpdateAppointment{
		ID:           appointment.ID,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Service:      req.Service,
		Location:     req.Location,
		Artist:       req.Artist,
		EventDate:    req.EventDate,
		EventTime:    req.EventTime,
		Notes:        req.Notes,
		Summary:      req.Summary,
		ExtraFields:  req.ExtraFields,
	}
	if req.Status != nil {
		status := store.RecordStatus(*req.Status)
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
	return c.JSON(http.StatusOK, convertAppointment(updated))
}

func (s *APIV1Service) cancelAppointment(c echo.Context) error {
	ctx := c.Request().Context()
	appointment, err := s.appointmentByRef(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if appointment.Status == store.RecordCancelled {
		return c.JSON(http.StatusOK, convertAppointment(appointment))
	}
	status := store.RecordCancelled
	updated, err := s.Store.UpdateAppointment(ctx, &store.UpdateAppointment{ID: appointment.ID, Status: &status})
	if err != nil {
		return respondError(c, err)
	}
	s.syncAppointmentCalendar(ctx, updated)
	s.dispatchAppointmentEvent(ctx, webhook.EventAppointmentCancelled, updated)
	slog.Info("appointment cancelled", "appt_number", updated.ApptNumber)
	return c.JSON(http.StatusOK, convertAppointment(updated))
}

// appointmentByRef resolves a path segment that is either the numeric row id
// or the human-readable appointment number.
func (s *APIV1Service) appointmentByRef(ctx context.Context, ref string) (*store.Appointment, error) {
	if id, err := strconv.ParseInt(ref, 10, 32); err == nil {
		id32 := int32(id)
		appointments, err := s.Store.ListAppointments(ctx, &store.FindAppointment{ID: &id32})
		if err != nil {
			return nil, err
		}
		if len(appointments) == 0 {
			return nil, errs.Newf(errs.KindNotFound, "appointment %s not found", ref)
		}
		return appointments[0], nil
	}
	appointment, err := s.Store.GetAppointmentByNumber(ctx, ref)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, errs.Newf(errs.KindNotFound, "appointment %s not found", ref)
	}
	return appointment, nil
}

// dispatchAppointmentEvent posts the signed event to the configured webhook
// URL. No-op when no URL is configured; dispatch runs in the background and
// never blocks the admin response.
func (s *APIV1Service) dispatchAppointmentEvent(ctx context.Context, event string, appt *store.Appointment) {
	cfg, err := s.Store.GetOrchestratorConfig(ctx)
	if err != nil {
		slog.Warn("webhook dispatch skipped, config unavailable", "error", err)
		return
	}
	if cfg.AppointmentWebhookURL == "" {
		return
	}
	s.Webhooks.PostAsync(cfg.AppointmentWebhookURL, cfg.AppointmentWebhookSecret,
		event, orchestrator.AppointmentPayload(appt))
}

func coalesce(override, current *string) *string {
	if override != nil {
		return override
	}
	return current
}
