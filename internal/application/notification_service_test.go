package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNotificationService_ReadFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	clock := testBase
	svc := NewNotificationService(store, func() time.Time { return clock }, discardLogger())

	for i, id := range []string{"n-1", "n-2", "n-3"} {
		if err := svc.Notify(ctx, Notification{ID: id, UserID: "owner", Kind: NotificationInfo, Message: id, CreatedAt: at(0, i, 0)}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}
	if err := svc.Notify(ctx, Notification{ID: "other", UserID: "visitor", Kind: NotificationInfo}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	listed, err := svc.ListNotifications(ctx, owner, false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(listed) != 3 || listed[0].ID != "n-3" {
		t.Fatalf("expected own notifications newest first, got %+v", listed)
	}

	if err := svc.MarkRead(ctx, owner, "n-1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := svc.MarkRead(ctx, owner, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign notifications must be not found, got %v", err)
	}
	unread, _ := svc.ListNotifications(ctx, owner, true)
	if len(unread) != 2 {
		t.Fatalf("expected two unread, got %d", len(unread))
	}

	count, err := svc.MarkAllRead(ctx, owner)
	if err != nil || count != 2 {
		t.Fatalf("expected two marked, got %d (%v)", count, err)
	}
	if unread, _ := svc.ListNotifications(ctx, owner, true); len(unread) != 0 {
		t.Fatalf("expected nothing unread, got %+v", unread)
	}

	if _, err := svc.ListNotifications(ctx, Principal{}, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestNotificationService_PurgeRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	clock := testBase
	svc := NewNotificationService(store, func() time.Time { return clock }, discardLogger())

	_ = svc.Notify(ctx, Notification{ID: "old", UserID: "owner"})
	_ = svc.Notify(ctx, Notification{ID: "unread", UserID: "owner"})
	if err := svc.MarkRead(ctx, owner, "old"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	_ = svc.Notify(ctx, Notification{ID: "recent", UserID: "owner"})

	clock = clock.Add(40 * 24 * time.Hour)
	if err := svc.MarkRead(ctx, owner, "recent"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	purged, err := svc.PurgeRead(ctx, 30*24*time.Hour)
	if err != nil || purged != 1 {
		t.Fatalf("expected one purged, got %d (%v)", purged, err)
	}
	left, _ := svc.ListNotifications(ctx, owner, false)
	if len(left) != 2 {
		t.Fatalf("expected unread and recent to remain, got %+v", left)
	}

	var vErr *ValidationError
	if _, err := svc.PurgeRead(ctx, 0); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	store.failWith = errStoreDown
	if _, err := svc.PurgeRead(ctx, time.Hour); !errors.Is(err, ErrCollaboratorUnavailable) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}
