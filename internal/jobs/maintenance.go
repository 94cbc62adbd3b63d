package jobs

import (
	"context"
	"time"
)

// Job names.
const (
	FacilityRefresh   = "facility_refresh"
	NotificationPurge = "notification_purge"
)

// FacilityRefresher rebuilds the shared facility index.
type FacilityRefresher interface {
	Refresh(ctx context.Context) error
}

// NotificationPurger deletes read notifications past their retention.
type NotificationPurger interface {
	PurgeRead(ctx context.Context, retention time.Duration) (int, error)
}

// FacilityRefreshJob keeps the facility index in step with storage.
func FacilityRefreshJob(spec string, refresher FacilityRefresher) Job {
	return Job{
		Name: FacilityRefresh,
		Spec: spec,
		Run:  refresher.Refresh,
	}
}

// NotificationPurgeJob removes notifications read longer ago than retention.
func NotificationPurgeJob(spec string, purger NotificationPurger, retention time.Duration) Job {
	return Job{
		Name: NotificationPurge,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := purger.PurgeRead(ctx, retention)
			return err
		},
	}
}
