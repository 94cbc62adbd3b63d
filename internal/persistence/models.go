package persistence

import "time"

// Schedule represents a calendar owned by a user.
type Schedule struct {
	ID              string
	OwnerID         string
	Title           string
	Description     *string
	Color           string
	IsPublic        bool
	IsClassSchedule bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Event represents a time slot booked on a schedule.
type Event struct {
	ID               string
	ScheduleID       string
	OrganizerID      string
	Title            string
	Description      *string
	Start            time.Time
	End              time.Time
	Building         *string
	Room             *string
	Color            *string
	Status           string
	RequiresApproval bool
	Recurrence       *Recurrence
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Recurrence stores how an event repeats.
type Recurrence struct {
	Frequency string
	Weekdays  []time.Weekday
	Until     *time.Time
}

// Approval is the approval record attached to an event.
type Approval struct {
	ID               string
	EventID          string
	OrganizerID      string
	RequiresApproval bool
	Status           string
	Reason           *string
	History          []ApprovalTransition
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ApprovalTransition is one append-only history entry of an approval.
type ApprovalTransition struct {
	Sequence   int
	ApprovalID string
	Action     string
	FromStatus string
	ToStatus   string
	ActorID    string
	ActorRole  string
	Reason     *string
	At         time.Time
}

// Notification is a message delivered to a user about one of their events.
type Notification struct {
	ID        string
	UserID    string
	EventID   *string
	Kind      string
	Message   string
	ReadAt    *time.Time
	CreatedAt time.Time
}
