package approval

import "strings"

// Status is the approval state of an event. An event carries exactly one
// status at any time.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPending          Status = "pending"
	StatusApproved         Status = "approved"
	StatusDeclined         Status = "declined"
	StatusChangesRequested Status = "changes_requested"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusDeclined, StatusChangesRequested:
		return true
	}
	return false
}

// Occupies reports whether an event in this status blocks its time slot.
// Drafts, declined events and events sent back for changes do not.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	return status, status.Valid()
}

// Role is the campus role of the acting user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a claim or flag value into a Role. Unknown values map to
// RoleStudent, the least privileged role.
func ParseRole(value string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTeacher:
		return RoleTeacher
	default:
		return RoleStudent
	}
}

// BypassesReview reports whether events created by this role skip the
// approval workflow.
func (r Role) BypassesReview() bool {
	return r == RoleAdmin
}

// Action names a requested approval transition.
type Action string

const (
	ActionCreate         Action = "create"
	ActionRequest        Action = "request"
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionDecline        Action = "decline"
	ActionRequestChanges Action = "request-changes"
	ActionResubmit       Action = "resubmit"
)

// ParseAction converts a path segment or payload value into an Action.
func ParseAction(value string) (Action, bool) {
	action := Action(strings.ToLower(strings.TrimSpace(value)))
	switch action {
	case ActionRequest, ActionSubmit, ActionApprove, ActionDecline, ActionRequestChanges, ActionResubmit:
		return action, true
	case "request_changes":
		return ActionRequestChanges, true
	}
	return "", false
}
