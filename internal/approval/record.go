package approval

import "time"

// Transition is one append-only entry in an approval history.
type Transition struct {
	Action    Action
	From      Status
	To        Status
	ActorID   string
	ActorRole Role
	Reason    string
	At        time.Time
}

// Record is the approval audit trail of a single event. Status always equals
// the To field of the last history entry.
type Record struct {
	ID               string
	EventID          string
	OrganizerID      string
	RequiresApproval bool
	Status           Status
	Reason           string
	History          []Transition
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewRecord starts the audit trail of a freshly created event with a single
// create entry. Drafts start in StatusDraft; everything else starts in the
// InitialStatus for the creating actor.
func NewRecord(id, eventID string, organizer Actor, requiresApproval, draft bool, at time.Time) Record {
	status := InitialStatus(organizer.Role, requiresApproval)
	if draft {
		status = StatusDraft
	}
	record := Record{
		ID:               id,
		EventID:          eventID,
		OrganizerID:      organizer.ID,
		RequiresApproval: requiresApproval,
		CreatedAt:        at,
	}
	record.append(Transition{
		Action:    ActionCreate,
		To:        status,
		ActorID:   organizer.ID,
		ActorRole: organizer.Role,
		At:        at,
	})
	return record
}

// Latest returns the most recent transition.
func (r Record) Latest() (Transition, bool) {
	if len(r.History) == 0 {
		return Transition{}, false
	}
	return r.History[len(r.History)-1], true
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := r
	if r.History != nil {
		out.History = make([]Transition, len(r.History))
		copy(out.History, r.History)
	}
	return out
}

func (r *Record) append(t Transition) {
	r.History = append(r.History, t)
	r.Status = t.To
	r.Reason = t.Reason
	r.UpdatedAt = t.At
}
