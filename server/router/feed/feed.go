// Package feed serves the owner-facing Atom feed of upcoming appointments.
// Feed readers poll it with the admin key in the query string because they
// cannot set headers.
package feed

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/server/auth"
	"github.com/queryon/queryon/store"
)

// feedWindow caps how many upcoming appointments one poll returns.
const feedWindow = 100

type FeedService struct {
	Profile *profile.Profile
	Store   *store.Store
}

func NewFeedService(profile *profile.Profile, store *store.Store) *FeedService {
	return &FeedService{
		Profile: profile,
		Store:   store,
	}
}

func (s *FeedService) RegisterRoutes(e *echo.Echo) {
	e.GET("/feeds/appointments.atom", s.appointmentsAtom)
}

func (s *FeedService) appointmentsAtom(c echo.Context) error {
	ctx := c.Request().Context()

	key := c.Request().Header.Get(auth.KeyHeader)
	if key == "" {
		key = c.QueryParam(auth.KeyQueryParam)
	}
	if err := auth.Check(s.Profile.AdminAPIKey, key); err != nil {
		return c.String(errs.HTTPStatus(err), err.Error())
	}

	now := time.Now().In(s.Profile.Location())
	from := now.Format("2006-01-02")
	limit := feedWindow
	appointments, err := s.Store.ListAppointments(ctx, &store.FindAppointment{
		EventDateFrom: &from,
		Limit:         &limit,
	})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to load appointments")
	}

	atom, err := buildFeed(appointments, now, s.Profile.InstanceURL).ToAtom()
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to render feed")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/atom+xml; charset=utf-8")
	return c.String(http.StatusOK, atom)
}

// buildFeed renders upcoming appointments oldest-first. Cancelled rows are
// skipped; readers only care about work that is still on the calendar.
func buildFeed(appointments []*store.Appointment, now time.Time, baseURL string) *feeds.Feed {
	baseURL = strings.TrimSuffix(baseURL, "/")

	upcoming := make([]*store.Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		if appointment.Status == store.RecordCancelled {
			continue
		}
		upcoming = append(upcoming, appointment)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		if k := strings.Compare(deref(upcoming[i].EventDate), deref(upcoming[j].EventDate)); k != 0 {
			return k < 0
		}
		return deref(upcoming[i].EventTime) < deref(upcoming[j].EventTime)
	})

	feed := &feeds.Feed{
		Title:       "Upcoming appointments",
		Link:        &feeds.Link{Href: baseURL + "/feeds/appointments.atom"},
		Description: "Appointments captured by the assistant, soonest first.",
		Created:     now,
	}
	for _, appointment := range upcoming {
		feed.Items = append(feed.Items, feedItem(appointment, baseURL))
	}
	return feed
}

func feedItem(appointment *store.Appointment, baseURL string) *feeds.Item {
	title := appointment.ApptNumber
	if service := deref(appointment.Service); service != "" {
		title += " · " + service
	}
	if when := eventMoment(appointment); when != "" {
		title += " · " + when
	}

	var lines []string
	addLine := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	addLine("Status", string(appointment.Status))
	addLine("Contact", deref(appointment.ContactName))
	addLine("Phone", deref(appointment.ContactPhone))
	addLine("Service", deref(appointment.Service))
	addLine("Artist", deref(appointment.Artist))
	addLine("Location", deref(appointment.Location))
	addLine("When", eventMoment(appointment))
	addLine("Notes", deref(appointment.Notes))

	return &feeds.Item{
		Id:          appointment.ApptNumber,
		Title:       title,
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/appointments/%d", baseURL, appointment.ID)},
		Description: strings.Join(lines, "<br>"),
		Created:     time.Unix(appointment.CreatedTs, 0),
		Updated:     time.Unix(appointment.UpdatedTs, 0),
	}
}

func eventMoment(appointment *store.Appointment) string {
	date := deref(appointment.EventDate)
	if date == "" {
		return ""
	}
	if clock := deref(appointment.EventTime); clock != "" {
		return date + " " + clock
	}
	return date
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
