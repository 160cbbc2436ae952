package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryon/queryon/internal/errs"
	"github.com/queryon/queryon/plugin/calendar"
	"github.com/queryon/queryon/store"
)

type fakeCalStore struct {
	resources []*store.CalendarResource
	blocks    []*store.CalendarBlock
	nextID    int32
}

func (f *fakeCalStore) ListCalendarResources(_ context.Context, find *store.FindCalendarResource) ([]*store.CalendarResource, error) {
	var out []*store.CalendarResource
	for _, r := range f.resources {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.ResourceName != nil && r.ResourceName != *find.ResourceName {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeCalStore) ListCalendarBlocks(_ context.Context, find *store.FindCalendarBlock) ([]*store.CalendarBlock, error) {
	var out []*store.CalendarBlock
	for _, b := range f.blocks {
		if find.ResourceID != nil && b.ResourceID != *find.ResourceID {
			continue
		}
		if find.Date != nil && b.Date != *find.Date {
			continue
		}
		if find.AppointmentID != nil && (b.AppointmentID == nil || *b.AppointmentID != *find.AppointmentID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeCalStore) CreateCalendarBlock(_ context.Context, create *store.CalendarBlock) (*store.CalendarBlock, error) {
	f.nextID++
	create.ID = f.nextID
	f.blocks = append(f.blocks, create)
	return create, nil
}

func (f *fakeCalStore) DeleteCalendarBlock(_ context.Context, del *store.DeleteCalendarBlock) error {
	kept := f.blocks[:0]
	for _, b := range f.blocks {
		if del.ID != nil && b.ID == *del.ID {
			continue
		}
		if del.AppointmentID != nil && b.AppointmentID != nil && *b.AppointmentID == *del.AppointmentID {
			continue
		}
		kept = append(kept, b)
	}
	f.blocks = kept
	return nil
}

type fakeBusyProvider struct {
	ranges []calendar.BusyRange
	err    error
	calls  int
}

func (f *fakeBusyProvider) FreeBusy(context.Context, map[string]any, string, time.Time, time.Time) ([]calendar.BusyRange, error) {
	f.calls++
	return f.ranges, f.err
}

// elifResource works 10:00-14:00 on Mondays. 2026-06-15 is a Monday.
func elifResource() *store.CalendarResource {
	return &store.CalendarResource{
		ID:           1,
		Name:         "Elif",
		ResourceType: "artist",
		ResourceName: "elif",
		CalendarType: store.CalendarInternal,
		WorkingHours: map[string]store.DaySchedule{
			"monday": {Open: true, Slots: []store.TimeSlot{{Start: "10:00", End: "14:00"}}},
			"sunday": {Open: false},
		},
		ServiceDurations: map[string]int{"kına": 120, "default": 60},
	}
}

const monday = "2026-06-15"

func TestGetSlots_WalksWorkingHours(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{elifResource()}}
	svc := New(st, nil, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, monday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "12:00", "13:00"}, slots)
}

func TestGetSlots_ServiceDurationAndBuffer(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{elifResource()}}
	svc := New(st, nil, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, monday, "kına", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "12:00"}, slots)

	// A 30-minute buffer disqualifies the 12:00 start: 12:00+150m > 14:00.
	slots, err = svc.GetSlots(context.Background(), 1, monday, "kına", 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, slots)
}

func TestGetSlots_SubtractsBlocksButNotBoundaries(t *testing.T) {
	st := &fakeCalStore{
		resources: []*store.CalendarResource{elifResource()},
		blocks: []*store.CalendarBlock{
			{ID: 1, ResourceID: 1, Date: monday, StartTime: "11:00", EndTime: "12:00", BlockType: store.BlockBooked},
		},
	}
	svc := New(st, nil, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, monday, "", 0)
	require.NoError(t, err)

	// 10:00 ends exactly when the block starts and 12:00 starts exactly
	// when it ends; neither counts as an overlap.
	assert.Equal(t, []string{"10:00", "12:00", "13:00"}, slots)
}

func TestGetSlots_ClosedDayIsEmpty(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{elifResource()}}
	svc := New(st, nil, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, "2026-06-14", "", 0)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGetSlots_UnknownResource(t *testing.T) {
	svc := New(&fakeCalStore{}, nil, time.UTC)

	_, err := svc.GetSlots(context.Background(), 99, monday, "", 0)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestGetSlots_RejectsBadDate(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{elifResource()}}
	svc := New(st, nil, time.UTC)

	_, err := svc.GetSlots(context.Background(), 1, "15.06.2026", "", 0)
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func externalResource() *store.CalendarResource {
	res := elifResource()
	res.CalendarType = store.CalendarExternal
	id := "primary"
	res.ExternalID = &id
	res.Credentials = store.JSONMap{"client_id": "c", "client_secret": "s", "refresh_token": "r"}
	return res
}

func TestGetSlots_SubtractsExternalBusy(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{externalResource()}}
	provider := &fakeBusyProvider{ranges: []calendar.BusyRange{{
		Start: time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 6, 15, 11, 30, 0, 0, time.UTC),
	}}}
	svc := New(st, provider, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, monday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"12:00", "13:00"}, slots)
	assert.Equal(t, 1, provider.calls)
}

func TestGetSlots_ProviderFailureDegrades(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{externalResource()}}
	provider := &fakeBusyProvider{err: assert.AnError}
	svc := New(st, provider, time.UTC)

	slots, err := svc.GetSlots(context.Background(), 1, monday, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00", "12:00", "13:00"}, slots)
}

func TestHasConflict_OverlapExclusionAndBoundary(t *testing.T) {
	apptID := int32(42)
	st := &fakeCalStore{
		resources: []*store.CalendarResource{elifResource()},
		blocks: []*store.CalendarBlock{{
			ID: 1, ResourceID: 1, Date: monday,
			StartTime: "14:00", EndTime: "15:00",
			BlockType: store.BlockBooked, AppointmentID: &apptID,
		}},
	}
	svc := New(st, nil, time.UTC)
	ctx := context.Background()

	// Moving another appointment onto 14:30 overlaps the existing block.
	conflict, err := svc.HasConflict(ctx, "Elif", monday, "14:30", "", nil)
	require.NoError(t, err)
	assert.True(t, conflict)

	// The appointment that owns the block may keep its own slot.
	conflict, err = svc.HasConflict(ctx, "Elif", monday, "14:30", "", &apptID)
	require.NoError(t, err)
	assert.False(t, conflict)

	// Back-to-back is allowed: 15:00 starts exactly at the block's end.
	conflict, err = svc.HasConflict(ctx, "Elif", monday, "15:00", "", nil)
	require.NoError(t, err)
	assert.False(t, conflict)

	conflict, err = svc.HasConflict(ctx, "bilinmeyen", monday, "14:30", "", nil)
	require.NoError(t, err)
	assert.False(t, conflict)
}

func TestReserve_ReplacesAppointmentBlock(t *testing.T) {
	st := &fakeCalStore{resources: []*store.CalendarResource{elifResource()}}
	svc := New(st, nil, time.UTC)
	ctx := context.Background()

	require.NoError(t, svc.Reserve(ctx, "Elif", monday, "14:00", "", 42))
	require.Len(t, st.blocks, 1)
	assert.Equal(t, "14:00", st.blocks[0].StartTime)
	assert.Equal(t, "15:00", st.blocks[0].EndTime)
	assert.Equal(t, store.BlockBooked, st.blocks[0].BlockType)

	// Rescheduling moves the block rather than stacking a second one.
	require.NoError(t, svc.Reserve(ctx, "Elif", "2026-06-16", "16:00", "", 42))
	require.Len(t, st.blocks, 1)
	assert.Equal(t, "2026-06-16", st.blocks[0].Date)
	assert.Equal(t, "16:00", st.blocks[0].StartTime)

	// No calendar for the artist means nothing to reserve.
	require.NoError(t, svc.Reserve(ctx, "bilinmeyen", monday, "10:00", "", 7))
	assert.Len(t, st.blocks, 1)
}

func TestRelease_DropsAppointmentBlocks(t *testing.T) {
	apptID := int32(42)
	other := int32(7)
	st := &fakeCalStore{blocks: []*store.CalendarBlock{
		{ID: 1, ResourceID: 1, Date: monday, StartTime: "10:00", EndTime: "11:00", AppointmentID: &apptID},
		{ID: 2, ResourceID: 1, Date: monday, StartTime: "12:00", EndTime: "13:00", AppointmentID: &other},
	}}
	svc := New(st, nil, time.UTC)

	require.NoError(t, svc.Release(context.Background(), 42))
	require.Len(t, st.blocks, 1)
	assert.EqualValues(t, 2, st.blocks[0].ID)
}
