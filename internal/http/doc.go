// Package http exposes the scheduling services over JSON.
//
// Every route except GET /healthz requires an `Authorization: Bearer <token>`
// header; RequireSession resolves it into an application.Principal. Timestamps
// are RFC 3339 in responses. Requests accept RFC 3339 or naive
// `YYYY-MM-DDTHH:MM[:SS]` values, the latter read in the configured timezone.
//
//   - /schedules, /schedules/{id}: schedule CRUD (scheduleDTO).
//   - /schedules/{id}/events, /events/{id}, PATCH /events/{id}/interval:
//     event CRUD and drag-and-drop rescheduling (eventDTO). Overlaps answer
//     409 with the conflicting event and up to three suggested slots.
//   - /schedules/{id}/day, /week, /conflicts: calendar views and the
//     pairwise conflict report.
//   - /schedules/{id}/calendar.ics: iCalendar export (GET) and import (POST).
//   - /scheduling/*: overlap and facility checks, slot suggestions and
//     conflict resolution strategies.
//   - /events/{id}/approval[/{action}], /approvals: the approval workflow.
//   - /facilities: facility bookings from the shared index.
//   - /notifications: the caller's inbox.
//
// Request/response DTOs live alongside their respective handlers.
package http
