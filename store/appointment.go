package store

// RecordStatus is the lifecycle state shared by appointments and orders.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordConfirmed RecordStatus = "confirmed"
	RecordCancelled RecordStatus = "cancelled"
)

// Appointment is one booked appointment. ApptNumber is the human-readable
// reference shaped PREFIX-YYYY-NNNN, globally unique and monotonically
// increasing within a year. It is generated inside the same transaction that
// inserts the row; the unique index is the safety net.
type Appointment struct {
	ApptNumber     string
	ConversationID *int32 // SET NULL when the conversation is deleted
	Status         RecordStatus
	ContactName    *string
	ContactPhone   *string
	ContactEmail   *string
	Service        *string
	Location       *string
	Artist         *string
	EventDate      *string // YYYY-MM-DD
	EventTime      *string // HH:MM
	Notes          *string
	Summary        *string
	ExtraFields    JSONMap
	CreatedTs      int64
	UpdatedTs      int64
	ID             int32
}

type FindAppointment struct {
	ID             *int32
	ApptNumber     *string
	ConversationID *int32
	Status         *RecordStatus
	Artist         *string
	EventDate      *string
	EventDateFrom  *string
	EventDateTo    *string
	Limit          *int
	Offset         *int
}

type UpdateAppointment struct {
	Status       *RecordStatus
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
	Service      *string
	Location     *string
	Artist       *string
	EventDate    *string
	EventTime    *string
	Notes        *string
	Summary      *string
	ExtraFields  *JSONMap
	UpdatedTs    *int64
	ID           int32
}

type DeleteAppointment struct {
	ID int32
}

// Order is one captured order. Same shape as Appointment minus the
// reference number and scheduling linkage.
type Order struct {
	ConversationID *int32
	Status         RecordStatus
	ContactName    *string
	ContactPhone   *string
	ContactEmail   *string
	Service        *string
	Location       *string
	EventDate      *string
	EventTime      *string
	Notes          *string
	Summary        *string
	ExtraFields    JSONMap
	CreatedTs      int64
	UpdatedTs      int64
	ID             int32
}

type FindOrder struct {
	ID             *int32
	ConversationID *int32
	Status         *RecordStatus
	Limit          *int
	Offset         *int
}

type UpdateOrder struct {
	Status       *RecordStatus
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
	Service      *string
	Location     *string
	EventDate    *string
	EventTime    *string
	Notes        *string
	Summary      *string
	ExtraFields  *JSONMap
	UpdatedTs    *int64
	ID           int32
}

type DeleteOrder struct {
	ID int32
}
