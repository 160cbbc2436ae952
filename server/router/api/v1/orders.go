package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/store"
)

// OrderUpdateRequest is the admin partial-update payload for orders.
type OrderUpdateRequest struct {
	Status       *string        `json:"status"`
	ContactName  *string        `json:"contact_name"`
	ContactPhone *string        `json:"contact_phone"`
	ContactEmail *string        `json:"contact_email"`
	Service      *string        `json:"service"`
	Location     *string        `json:"location"`
	EventDate    *string        `json:"event_date"`
	EventTime    *string        `json:"event_time"`
	Notes        *string        `json:"notes"`
	Summary      *string        `json:"summary"`
	ExtraFields  *store.JSONMap `json:"extra_fields"`
}

func (s *APIV1Service) listOrders(c echo.Context) error {
	ctx := c.Request().Context()
	limit, offset := listWindow(c)
	find := &store.FindOrder{Limit: &limit, Offset: &offset}
	if v := c.QueryParam("status"); v != "" {
		if !validRecordStatus(v) {
			return badRequest(c, "status must be pending, confirmed or cancelled")
		}
		status := store.RecordStatus(v)
		find.Status = &status
	}
	orders, err := s.Store.ListOrders(ctx, find)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]*OrderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, convertOrder(order))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *APIV1Service) getOrder(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	order, err := s.orderByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertOrder(order))
}

func (s *APIV1Service) updateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if _, err := s.orderByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	req := &OrderUpdateRequest{}
	if err := c.Bind(req); err != nil {
		return badRequest(c, "malformed order payload")
	}
	if req.Status != nil && !validRecordStatus(*req.Status) {
		return badRequest(c, "status must be pending, confirmed or cancelled")
	}
	update := &store.UpdateOrder{
		ID:           id,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Service:      req.Service,
		Location:     req.Location,
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
	updated, err := s.Store.UpdateOrder(ctx, update)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertOrder(updated))
}

func (s *APIV1Service) orderByID(ctx context.Context, id int32) (*store.Order, error) {
	orders, err := s.Store.ListOrders(ctx, &store.FindOrder{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errs.Newf(errs.KindNotFound, "order %d not found", id)
	}
	return orders[0], nil
}
