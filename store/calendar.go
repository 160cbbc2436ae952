package store

// CalendarType distinguishes resources whose busy-time lives only in
// calendar_blocks from resources that also mirror an external provider.
type CalendarType string

const (
	CalendarInternal CalendarType = "internal"
	CalendarExternal CalendarType = "external"
)

// TimeSlot is one open interval within a working day.
type TimeSlot struct {
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// DaySchedule is the working-hours entry for one day of week.
type DaySchedule struct {
	Open  bool       `json:"open"`
	Slots []TimeSlot `json:"slots"`
}

// CalendarResource is a bookable person or asset. ResourceName is the
// free-text key used to look the resource up from a user's answer.
type CalendarResource struct {
	Name             string
	ResourceType     string
	ResourceName     string
	CalendarType     CalendarType
	WorkingHours     map[string]DaySchedule // keyed by lowercase English weekday
	ServiceDurations map[string]int         // minutes; key "default" is the fallback
	ExternalID       *string                // provider-opaque calendar identifier
	Credentials      JSONMap                // provider credentials blob
	CreatedTs        int64
	UpdatedTs        int64
	ID               int32
}

type FindCalendarResource struct {
	ID           *int32
	ResourceName *string
	CalendarType *CalendarType
	Limit        *int
}

type UpdateCalendarResource struct {
	Name             *string
	ResourceType     *string
	ResourceName     *string
	CalendarType     *CalendarType
	WorkingHours     *map[string]DaySchedule
	ServiceDurations *map[string]int
	ExternalID       *string
	Credentials      *JSONMap
	UpdatedTs        *int64
	ID               int32
}

type DeleteCalendarResource struct {
	ID int32
}

// BlockType labels a busy interval on a resource calendar.
type BlockType string

const (
	BlockBooked  BlockType = "booked"
	BlockBlocked BlockType = "blocked"
	BlockBreak   BlockType = "break"
	BlockBuffer  BlockType = "buffer"
)

// CalendarBlock is the sole durable record of internal busy-time.
// EndTime must be strictly after StartTime.
type CalendarBlock struct {
	ResourceID    int32
	Date          string // YYYY-MM-DD
	StartTime     string // HH:MM
	EndTime       string // HH:MM
	BlockType     BlockType
	AppointmentID *int32 // SET NULL when the appointment is deleted
	CreatedTs     int64
	ID            int32
}

type FindCalendarBlock struct {
	ID            *int32
	ResourceID    *int32
	Date          *string
	AppointmentID *int32
	BlockType     *BlockType
}

type DeleteCalendarBlock struct {
	ID *int32
	// AppointmentID deletes every block linked to the appointment.
	AppointmentID *int32
}
