package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"school_notification_bot/internal/domain/notification"
	"school_notification_bot/internal/domain/subscriber"
)

const configuredAdmin = 42

func newReviewFixture(t *testing.T) (*ReviewService, *fakeStore, *TrackedSet) {
	t.Helper()
	store := newFakeStore(submissionDoc("s1", SubmissionStatusNew))
	directory := newFakeSubscribers(
		&subscriber.Subscriber{TelegramID: 7, Role: subscriber.RoleAdmin},
		student(8, "10-A"),
	)
	tracked := NewTrackedSet()
	tracked.Add("s1")
	svc := NewReviewService(store, "applications", NewAdminService(directory, newFakeLessons(), configuredAdmin), tracked, testLog())
	svc.clock = func() time.Time { return time.Date(2024, time.September, 2, 12, 0, 0, 0, time.UTC) }
	return svc, store, tracked
}

func TestReviewAcceptAndReject(t *testing.T) {
	tests := []struct {
		kind notification.ActionKind
		want string
	}{
		{notification.ActionAccept, SubmissionStatusAccepted},
		{notification.ActionReject, SubmissionStatusRejected},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			svc, store, tracked := newReviewFixture(t)
			sub, err := svc.Apply(context.Background(), configuredAdmin, notification.Action{Kind: tt.kind, Target: "s1"})
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if sub.Name != "Olena" {
				t.Errorf("submission = %+v", sub)
			}
			if got := store.updates["s1"]["status"]; got != tt.want {
				t.Errorf("status = %v, want %s", got, tt.want)
			}
			if _, ok := store.updates["s1"]["updated_at"].(time.Time); !ok {
				t.Error("updated_at was not set")
			}
			if !tracked.Has("s1") {
				t.Error("reviewed submission must stay tracked")
			}
		})
	}
}

func TestReviewDeleteForgetsTrackedID(t *testing.T) {
	svc, store, tracked := newReviewFixture(t)
	// role admin from the directory
	if _, err := svc.Apply(context.Background(), 7, notification.Action{Kind: notification.ActionDelete, Target: "s1"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "s1" {
		t.Errorf("deleted = %v", store.deleted)
	}
	if tracked.Has("s1") {
		t.Error("deleted submission is still tracked")
	}
}

func TestReviewErrors(t *testing.T) {
	tests := []struct {
		name   string
		user   int64
		action notification.Action
		want   error
	}{
		{"student is not authorized", 8, notification.Action{Kind: notification.ActionAccept, Target: "s1"}, ErrAdminNotAuthorized},
		{"stranger is not authorized", 9, notification.Action{Kind: notification.ActionAccept, Target: "s1"}, ErrAdminNotAuthorized},
		{"missing submission", configuredAdmin, notification.Action{Kind: notification.ActionAccept, Target: "nope"}, ErrSubmissionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newReviewFixture(t)
			if _, err := svc.Apply(context.Background(), tt.user, tt.action); !errors.Is(err, tt.want) {
				t.Fatalf("Apply error = %v, want %v", err, tt.want)
			}
			if len(store.updates) != 0 || len(store.deleted) != 0 {
				t.Error("store was modified")
			}
		})
	}
}

func TestReviewWithoutStore(t *testing.T) {
	svc := NewReviewService(nil, "applications", NewAdminService(newFakeSubscribers(), newFakeLessons(), configuredAdmin), nil, testLog())
	_, err := svc.Apply(context.Background(), configuredAdmin, notification.Action{Kind: notification.ActionAccept, Target: "s1"})
	if !errors.Is(err, ErrFeedUnavailable) {
		t.Fatalf("Apply error = %v, want ErrFeedUnavailable", err)
	}
}
