package application

import "github.com/Lowii-3dy/campus-sched/internal/approval"

func canViewSchedule(p Principal, schedule Schedule) bool {
	return p.IsAdmin() || schedule.OwnerID == p.UserID || schedule.IsPublic
}

func canManageSchedule(p Principal, schedule Schedule) bool {
	return p.UserID != "" && (p.IsAdmin() || schedule.OwnerID == p.UserID)
}

// canSeeEvent hides unapproved events of public schedules from visitors.
func canSeeEvent(p Principal, schedule Schedule, event Event) bool {
	if canManageSchedule(p, schedule) || (p.UserID != "" && event.OrganizerID == p.UserID) {
		return true
	}
	return schedule.IsPublic && event.Status == approval.StatusApproved
}

func canManageEvent(p Principal, schedule Schedule, event Event) bool {
	return canManageSchedule(p, schedule) || (p.UserID != "" && event.OrganizerID == p.UserID)
}
