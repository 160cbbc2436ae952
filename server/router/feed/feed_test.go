package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/store"
)

func strp(v string) *string { return &v }

func TestBuildFeed(t *testing.T) {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	appointments := []*store.Appointment{
		{
			ID:         3,
			ApptNumber: "APT-2025-0003",
			Status:     store.RecordPending,
			Service:    strp("kapak dövme"),
			EventDate:  strp("2025-07-12"),
			EventTime:  strp("11:00"),
			CreatedTs:  now.Unix(),
			UpdatedTs:  now.Unix(),
		},
		{
			ID:          1,
			ApptNumber:  "APT-2025-0001",
			Status:      store.RecordConfirmed,
			ContactName: strp("Ayşe"),
			Service:     strp("kol dövmesi"),
			Artist:      strp("Deniz"),
			EventDate:   strp("2025-07-10"),
			EventTime:   strp("14:00"),
			CreatedTs:   now.Unix(),
			UpdatedTs:   now.Unix(),
		},
		{
			ID:         2,
			ApptNumber: "APT-2025-0002",
			Status:     store.RecordCancelled,
			EventDate:  strp("2025-07-11"),
			CreatedTs:  now.Unix(),
			UpdatedTs:  now.Unix(),
		},
	}

	feed := buildFeed(appointments, now, "https://studio.example.com/")

	require.Len(t, feed.Items, 2, "cancelled appointments stay out of the feed")
	assert.Equal(t, "APT-2025-0001", feed.Items[0].Id, "soonest first")
	assert.Equal(t, "APT-2025-0003", feed.Items[1].Id)

	first := feed.Items[0]
	assert.Equal(t, "APT-2025-0001 · kol dövmesi · 2025-07-10 14:00", first.Title)
	assert.Equal(t, "https://studio.example.com/api/v1/appointments/1", first.Link.Href)
	assert.Contains(t, first.Description, "Contact: Ayşe")
	assert.Contains(t, first.Description, "Artist: Deniz")
	assert.NotContains(t, first.Description, "Notes:")

	atom, err := feed.ToAtom()
	require.NoError(t, err)
	assert.True(t, strings.Contains(atom, "<feed"), "renders as atom")
	assert.Contains(t, atom, "APT-2025-0001")
	assert.NotContains(t, atom, "APT-2025-0002")
}

func TestBuildFeedWithoutSchedule(t *testing.T) {
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	feed := buildFeed([]*store.Appointment{
		{ID: 5, ApptNumber: "APT-2025-0005", Status: store.RecordPending, CreatedTs: now.Unix(), UpdatedTs: now.Unix()},
	}, now, "https://studio.example.com")

	require.Len(t, feed.Items, 1)
	assert.Equal(t, "APT-2025-0005", feed.Items[0].Title, "no service or date, number only")
	assert.NotContains(t, feed.Items[0].Description, "When:")
}
