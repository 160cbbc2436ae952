// Package availability computes bookable slots for calendar resources and
// guards reschedules against double booking. Free time is working hours
// minus internal calendar blocks minus, for external resources, the
// provider's busy ranges. Calendar blocks are the sole durable record of
// internal busy time; Reserve and Release keep them in step with
// appointments.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/queryon/queryon/ai/orchestrator"
	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/calendar"
	"github.com/queryon/queryon/store"
)

const (
	dateLayout = "2006-01-02"

	defaultSlotMinutes = 60
	minutesPerDay      = 24 * 60
)

// CalendarStore is the slice of the store this service reads and writes.
type CalendarStore interface {
	ListCalendarResources(ctx context.Context, find *store.FindCalendarResource) ([]*store.CalendarResource, error)
	ListCalendarBlocks(ctx context.Context, find *store.FindCalendarBlock) ([]*store.CalendarBlock, error)
	CreateCalendarBlock(ctx context.Context, create *store.CalendarBlock) (*store.CalendarBlock, error)
	DeleteCalendarBlock(ctx context.Context, delete *store.DeleteCalendarBlock) error
}

// BusyProvider fetches busy ranges for an external calendar.
type BusyProvider interface {
	FreeBusy(ctx context.Context, creds map[string]any, calendarID string, start, end time.Time) ([]calendar.BusyRange, error)
}

// Service answers slot and conflict queries. provider may be nil, which
// disables external lookups entirely.
type Service struct {
	store    CalendarStore
	provider BusyProvider
	loc      *time.Location
}

func New(st CalendarStore, provider BusyProvider, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: st, provider: provider, loc: loc}
}

// span is a half-open busy interval in minutes of day.
type span struct {
	start int
	end   int
}

// GetSlots returns the free HH:MM start times of one resource on one day.
// A closed day yields an empty list, an unknown resource a NotFound error.
func (s *Service) GetSlots(ctx context.Context, resourceID int32, date, service string, bufferMinutes int) ([]string, error) {
	res, err := s.resourceByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errs.Newf(errs.KindNotFound, "calendar resource %d not found", resourceID)
	}
	return s.slots(ctx, res, date, service, bufferMinutes)
}

// SlotsFor resolves the resource by its free-text name. An unknown or empty
// name yields no slots rather than an error, since flow answers are
// customer-typed.
func (s *Service) SlotsFor(ctx context.Context, artist, date, service string) ([]string, error) {
	res, err := s.resourceByName(ctx, artist)
	if err != nil || res == nil {
		return nil, err
	}
	return s.slots(ctx, res, date, service, 0)
}

func (s *Service) slots(ctx context.Context, res *store.CalendarResource, date, service string, bufferMinutes int) ([]string, error) {
	day, err := time.ParseInLocation(dateLayout, date, s.loc)
	if err != nil {
		return nil, errs.Newf(errs.KindValidation, "date %q is not YYYY-MM-DD", date)
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}

	schedule, ok := res.WorkingHours[strings.ToLower(day.Weekday().String())]
	if !ok || !schedule.Open || len(schedule.Slots) == 0 {
		return []string{}, nil
	}

	duration := s.slotDuration(res, service)
	total := duration + bufferMinutes

	busy, err := s.internalBusy(ctx, res.ID, date)
	if err != nil {
		return nil, err
	}
	busy = append(busy, s.externalBusy(ctx, res, day)...)

	out := []string{}
	for _, ws := range schedule.Slots {
		start, ok1 := parseClock(ws.Start)
		end, ok2 := parseClock(ws.End)
		if !ok1 || !ok2 || end <= start {
			continue
		}
		for t := start; t+total <= end; t += duration {
			if !overlapsAny(t, t+total, busy) {
				out = append(out, clock(t))
			}
		}
	}
	return out, nil
}

// HasConflict reports whether [time, time+duration) overlaps a block not
// owned by excludeAppointmentID. An artist without a calendar resource never
// conflicts.
func (s *Service) HasConflict(ctx context.Context, artist, date, timeStr, service string, excludeAppointmentID *int32) (bool, error) {
	res, err := s.resourceByName(ctx, artist)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}
	if _, err := time.ParseInLocation(dateLayout, date, s.loc); err != nil {
		return false, errs.Newf(errs.KindValidation, "date %q is not YYYY-MM-DD", date)
	}
	start, ok := parseClock(timeStr)
	if !ok {
		return false, errs.Newf(errs.KindValidation, "time %q is not HH:MM", timeStr)
	}
	end := start + s.slotDuration(res, service)

	blocks, err := s.store.ListCalendarBlocks(ctx, &store.FindCalendarBlock{ResourceID: &res.ID, Date: &date})
	if err != nil {
		return false, errors.Wrap(err, "list calendar blocks")
	}
	for _, b := range blocks {
		if excludeAppointmentID != nil && b.AppointmentID != nil && *b.AppointmentID == *excludeAppointmentID {
			continue
		}
		bs, ok1 := parseClock(b.StartTime)
		be, ok2 := parseClock(b.EndTime)
		if !ok1 || !ok2 {
			continue
		}
		if start < be && end > bs {
			return true, nil
		}
	}
	return false, nil
}

// Reserve replaces the appointment's booked block with the new slot. An
// artist without a calendar resource is a no-op so bookings still succeed
// for businesses that never configured calendars.
func (s *Service) Reserve(ctx context.Context, artist, date, timeStr, service string, appointmentID int32) error {
	res, err := s.resourceByName(ctx, artist)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	start, ok := parseClock(timeStr)
	if !ok {
		return errs.Newf(errs.KindValidation, "time %q is not HH:MM", timeStr)
	}
	end := start + s.slotDuration(res, service)
	if end > minutesPerDay {
		end = minutesPerDay
	}

	if err := s.store.DeleteCalendarBlock(ctx, &store.DeleteCalendarBlock{AppointmentID: &appointmentID}); err != nil {
		return errors.Wrap(err, "clear previous blocks")
	}
	_, err = s.store.CreateCalendarBlock(ctx, &store.CalendarBlock{
		ResourceID:    res.ID,
		Date:          date,
		StartTime:     clock(start),
		EndTime:       clock(end),
		BlockType:     store.BlockBooked,
		AppointmentID: &appointmentID,
	})
	return errors.Wrap(err, "create booked block")
}

// Release drops every block held by the appointment.
func (s *Service) Release(ctx context.Context, appointmentID int32) error {
	return s.store.DeleteCalendarBlock(ctx, &store.DeleteCalendarBlock{AppointmentID: &appointmentID})
}

func (s *Service) internalBusy(ctx context.Context, resourceID int32, date string) ([]span, error) {
	blocks, err := s.store.ListCalendarBlocks(ctx, &store.FindCalendarBlock{ResourceID: &resourceID, Date: &date})
	if err != nil {
		return nil, errors.Wrap(err, "list calendar blocks")
	}
	spans := make([]span, 0, len(blocks))
	for _, b := range blocks {
		start, ok1 := parseClock(b.StartTime)
		end, ok2 := parseClock(b.EndTime)
		if !ok1 || !ok2 || end <= start {
			continue
		}
		spans = append(spans, span{start, end})
	}
	return spans, nil
}

// externalBusy fetches provider busy time for the day, clamped to it.
// Provider failures degrade to an empty list, never fail the query.
func (s *Service) externalBusy(ctx context.Context, res *store.CalendarResource, day time.Time) []span {
	if s.provider == nil || res.CalendarType != store.CalendarExternal {
		return nil
	}
	if res.ExternalID == nil || *res.ExternalID == "" {
		return nil
	}
	dayEnd := day.AddDate(0, 0, 1)
	ranges, err := s.provider.FreeBusy(ctx, res.Credentials, *res.ExternalID, day, dayEnd)
	if err != nil {
		slog.Warn("external busy lookup failed", "resource", res.ID, "error", err)
		return nil
	}

	spans := make([]span, 0, len(ranges))
	for _, r := range ranges {
		start := r.Start.In(s.loc)
		end := r.End.In(s.loc)
		if !end.After(day) || !dayEnd.After(start) {
			continue
		}
		startMin := 0
		if start.After(day) {
			startMin = start.Hour()*60 + start.Minute()
		}
		endMin := minutesPerDay
		if end.Before(dayEnd) {
			endMin = end.Hour()*60 + end.Minute()
		}
		if endMin > startMin {
			spans = append(spans, span{startMin, endMin})
		}
	}
	return spans
}

func (s *Service) slotDuration(res *store.CalendarResource, service string) int {
	service = strings.TrimSpace(service)
	if service != "" {
		if d, ok := res.ServiceDurations[service]; ok && d > 0 {
			return d
		}
		for name, d := range res.ServiceDurations {
			if d > 0 && strings.EqualFold(name, service) {
				return d
			}
		}
	}
	if d, ok := res.ServiceDurations["default"]; ok && d > 0 {
		return d
	}
	return defaultSlotMinutes
}

func (s *Service) resourceByID(ctx context.Context, id int32) (*store.CalendarResource, error) {
	resources, err := s.store.ListCalendarResources(ctx, &store.FindCalendarResource{ID: &id})
	if err != nil {
		return nil, errors.Wrap(err, "list calendar resources")
	}
	if len(resources) == 0 {
		return nil, nil
	}
	return resources[0], nil
}

// resourceByName scans all resources case-insensitively; customer-typed
// names rarely match the stored casing.
func (s *Service) resourceByName(ctx context.Context, name string) (*store.CalendarResource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	resources, err := s.store.ListCalendarResources(ctx, &store.FindCalendarResource{})
	if err != nil {
		return nil, errors.Wrap(err, "list calendar resources")
	}
	for _, r := range resources {
		if strings.EqualFold(strings.TrimSpace(r.ResourceName), name) {
			return r, nil
		}
	}
	return nil, nil
}

func overlapsAny(start, end int, busy []span) bool {
	for _, b := range busy {
		if start < b.end && end > b.start {
			return true
		}
	}
	return false
}

func parseClock(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var (
	_ orchestrator.Scheduler = (*Service)(nil)
	_ CalendarStore          = (*store.Store)(nil)
	_ BusyProvider           = (*calendar.Client)(nil)
)
