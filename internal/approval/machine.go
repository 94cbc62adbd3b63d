package approval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidTransition is returned when the action is not allowed from the
	// record's current status or for the acting user.
	ErrInvalidTransition = errors.New("approval: invalid transition")
	// ErrMissingReason is returned when a decline or change request carries no reason.
	ErrMissingReason = errors.New("approval: reason required")
)

// Actor identifies who requests a transition.
type Actor struct {
	ID   string
	Role Role
}

// Request describes a transition attempt against a record.
type Request struct {
	Action Action
	Actor  Actor
	Reason string
	At     time.Time
}

// Outcome is the result of applying a request. Changed is false when the
// request was an accepted no-op, in which case Transition is the zero value.
type Outcome struct {
	Record     Record
	Transition Transition
	Changed    bool
}

type actorGate int

const (
	gateAdmin actorGate = iota + 1
	gateOrganizer
)

type rule struct {
	from           Status
	action         Action
	to             Status
	gate           actorGate
	reasonRequired bool
}

// rules is the complete transition table. Submit resolves its target at
// apply time through InitialStatus, so its to field is empty.
var rules = []rule{
	{from: StatusPending, action: ActionApprove, to: StatusApproved, gate: gateAdmin},
	{from: StatusPending, action: ActionDecline, to: StatusDeclined, gate: gateAdmin, reasonRequired: true},
	{from: StatusPending, action: ActionRequestChanges, to: StatusChangesRequested, gate: gateAdmin, reasonRequired: true},
	{from: StatusChangesRequested, action: ActionResubmit, to: StatusPending, gate: gateOrganizer},
	{from: StatusDeclined, action: ActionResubmit, to: StatusPending, gate: gateOrganizer},
	{from: StatusDraft, action: ActionSubmit, gate: gateOrganizer},
}

// InitialStatus returns the status a newly submitted event starts in.
func InitialStatus(role Role, requiresApproval bool) Status {
	if role.BypassesReview() || !requiresApproval {
		return StatusApproved
	}
	return StatusPending
}

// Apply validates req against the transition table and returns the updated
// record. The input record is not modified.
func Apply(record Record, req Request) (Outcome, error) {
	if req.Action == ActionRequest {
		if record.Status == StatusPending {
			return Outcome{Record: record.Clone()}, nil
		}
		return Outcome{}, fmt.Errorf("%w: cannot request approval for a %s event", ErrInvalidTransition, record.Status)
	}

	var matched *rule
	for i := range rules {
		if rules[i].from == record.Status && rules[i].action == req.Action {
			matched = &rules[i]
			break
		}
	}
	if matched == nil {
		return Outcome{}, fmt.Errorf("%w: cannot %s a %s event", ErrInvalidTransition, req.Action, record.Status)
	}

	switch matched.gate {
	case gateAdmin:
		if req.Actor.Role != RoleAdmin {
			return Outcome{}, fmt.Errorf("%w: %s requires an admin, got %s", ErrInvalidTransition, req.Action, req.Actor.Role)
		}
	case gateOrganizer:
		if req.Actor.ID == "" || req.Actor.ID != record.OrganizerID {
			return Outcome{}, fmt.Errorf("%w: only the organizer may %s", ErrInvalidTransition, req.Action)
		}
	}

	reason := strings.TrimSpace(req.Reason)
	if matched.reasonRequired && reason == "" {
		return Outcome{}, fmt.Errorf("%w: %s", ErrMissingReason, req.Action)
	}

	to := matched.to
	if req.Action == ActionSubmit {
		to = InitialStatus(req.Actor.Role, record.RequiresApproval)
	}

	transition := Transition{
		Action:    req.Action,
		From:      record.Status,
		To:        to,
		ActorID:   req.Actor.ID,
		ActorRole: req.Actor.Role,
		Reason:    reason,
		At:        req.At,
	}

	next := record.Clone()
	next.append(transition)
	return Outcome{Record: next, Transition: transition, Changed: true}, nil
}
