package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/store"
)

// CalendarResourceRequest is the create payload for a bookable resource.
type CalendarResourceRequest struct {
	Name             string                       `json:"name"`
	ResourceType     string                       `json:"resource_type"`
	ResourceName     string                       `json:"resource_name"`
	CalendarType     string                       `json:"calendar_type"`
	WorkingHours     map[string]store.DaySchedule `json:"working_hours"`
	ServiceDurations map[string]int               `json:"service_durations"`
	ExternalID       *string                      `json:"external_id"`
	Credentials      store.JSONMap                `json:"credentials"`
}

// CalendarResourceUpdateRequest is the partial-update payload.
type CalendarResourceUpdateRequest struct {
	Name             *string                       `json:"name"`
	ResourceType     *string                       `json:"resource_type"`
	ResourceName     *string                       `json:"resource_name"`
	CalendarType     *string                       `json:"calendar_type"`
	WorkingHours     *map[string]store.DaySchedule `json:"working_hours"`
	ServiceDurations *map[string]int               `json:"service_durations"`
	ExternalID       *string                       `json:"external_id"`
	Credentials      *store.JSONMap                `json:"credentials"`
}

// CalendarBlockRequest is the create payload for a busy interval.
type CalendarBlockRequest struct {
	ResourceID int32  `json:"resource_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	BlockType  string `json:"block_type"`
}

// AvailabilityResponse is the open-slot listing for one resource and day.
type AvailabilityResponse struct {
	Resource string   `json:"resource"`
	Date     string   `json:"date"`
	Service  string   `json:"service,omitempty"`
	Slots    []string `json:"slots"`
}

func (s *APIV1Service) listCalendarResources(c echo.Context) error {
	ctx := c.Request().Context()
	resources, err := s.Store.ListCalendarResources(ctx, &store.FindCalendarResource{})
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*CalendarResourceResponse, 0, len(resources))
	for _, resource := range resources {
		out = append(out, convertCalendarResource(resource))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createCalendarResource(c echo.Context) error {
	ctx := c.Request().Context()
	req := &CalendarResourceRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed resource payload")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}
	if req.ResourceName == "" {
		return badRequest(c, "resource_name is required")
	}
	calendarType := store.CalendarInternal
	if req.CalendarType != "" {
		if !validCalendarType(req.CalendarType) {
			return badRequest(c, "calendar_type must be internal or external")
		}
		calendarType = store.CalendarType(req.CalendarType)
	}
	resource, err := s.Store.CreateCalendarResource(ctx, &store.CalendarResource{
		Name:             req.Name,
		ResourceType:     req.ResourceType,
		ResourceName:     req.ResourceName,
		CalendarType:     calendarType,
		WorkingHours:     req.WorkingHours,
		ServiceDurations: req.ServiceDurations,
		ExternalID:       req.ExternalID,
		Credentials:      req.Credentials,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, convertCalendarResource(resource))
}

func (s *APIV1Service) updateCalendarResource(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	req := &CalendarResourceUpdateRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed resource payload")
	}
	update := &store.UpdateCalendarResource{
		ID:               id,
		Name:             req.Name,
		ResourceType:     req.ResourceType,
		ResourceName:     req.ResourceName,
		WorkingHours:     req.WorkingHours,
		ServiceDurations: req.ServiceDurations,
		ExternalID:       req.ExternalID,
		Credentials:      req.Credentials,
	}
	if req.CalendarType != nil {
		if !validCalendarType(*req.CalendarType) {
			return badRequest(c, "calendar_type must be internal or external")
		}
		calendarType := store.CalendarType(*req.CalendarType)
		update.CalendarType = &calendarType
	}
	resource, err := s.Store.UpdateCalendarResource(ctx, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertCalendarResource(resource))
}

func (s *APIV1Service) deleteCalendarResource(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Store.DeleteCalendarResource(ctx, &store.DeleteCalendarResource{ID: id}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) listCalendarBlocks(c echo.Context) error {
	ctx := c.Request().Context()
	find := &store.FindCalendarBlock{}
	if v := c.QueryParam("resource"); v != "" {
		id, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return badRequest(c, "resource must be a numeric id")
		}
		id32 := int32(id)
		find.ResourceID = &id32
	}
	if v := c.QueryParam("date"); v != "" {
		if !validDate(v) {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		find.Date = &v
	}
	blocks, err := s.Store.ListCalendarBlocks(ctx, find)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*CalendarBlockResponse, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, convertCalendarBlock(block))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) createCalendarBlock(c echo.Context) error {
	ctx := c.Request().Context()
	req := &CalendarBlockRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed block payload")
	}
	if req.ResourceID <= 0 {
		return badRequest(c, "resource_id is required")
	}
	if !validDate(req.Date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	if !validClock(req.StartTime) || !validClock(req.EndTime) {
		return badRequest(c, "start_time and end_time must be HH:MM")
	}
	if req.EndTime <= req.StartTime {
		return badRequest(c, "end_time must be after start_time")
	}
	blockType := store.BlockBlocked
	if req.BlockType != "" {
		if !validBlockType(req.BlockType) {
			return badRequest(c, "block_type must be booked, blocked, break or buffer")
		}
		blockType = store.BlockType(req.BlockType)
	}
	block, err := s.Store.CreateCalendarBlock(ctx, &store.CalendarBlock{
		ResourceID: req.ResourceID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		BlockType:  blockType,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, convertCalendarBlock(block))
}

func (s *APIV1Service) deleteCalendarBlock(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Store.DeleteCalendarBlock(ctx, &store.DeleteCalendarBlock{ID: &id}); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// getAvailability lists open slots for one resource and day. The resource
// query param accepts either the numeric id or the lookup name.
func (s *APIV1Service) getAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	resource := c.QueryParam("resource")
	date := c.QueryParam("date")
	service := c.QueryParam("service")
	if resource == "" {
		return badRequest(c, "resource is required")
	}
	if !validDate(date) {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	var slots []string
	var err error
	if id, perr := strconv.ParseInt(resource, 10, 32); perr == nil {
		slots, err = s.Availability.GetSlots(ctx, int32(id), date, service, 0)
	} else {
		slots, err = s.Availability.SlotsFor(ctx, resource, date, service)
	}
	if err != nil {
		return respondError(c, err)
	}
	if slots == nil {
		slots = []string{}
	}
	return c.JSON(http.StatusOK, &AvailabilityResponse{
		Resource: resource,
		Date:     date,
		Service:  service,
		Slots:    slots,
	})
}

func validCalendarType(s string) bool {
	switch store.CalendarType(s) {
	case store.CalendarInternal, store.CalendarExternal:
		return true
	}
	return false
}

func validBlockType(s string) bool {
	switch store.BlockType(s) {
	case store.BlockBooked, store.BlockBlocked, store.BlockBreak, store.BlockBuffer:
		return true
	}
	return false
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
