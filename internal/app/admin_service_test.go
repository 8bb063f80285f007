package app

import (
	"context"
	"errors"
	"testing"

	"school_notification_bot/internal/domain/schedule"
	"school_notification_bot/internal/domain/subscriber"
	idb "school_notification_bot/internal/infra/database"
)

func TestAdminServiceAddSubscriber(t *testing.T) {
	directory := newFakeSubscribers(student(5, "9-B"))
	svc := NewAdminService(directory, newFakeLessons(), configuredAdmin)
	ctx := context.Background()

	added, err := svc.AddSubscriber(ctx, configuredAdmin, 6, "10-A", "Taras Shevchenko")
	if err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if !added.NotificationsEnabled || added.Role != subscriber.RoleStudent || added.FullName != "Taras Shevchenko" {
		t.Errorf("added = %+v", added)
	}

	if _, err := svc.AddSubscriber(ctx, configuredAdmin, 5, "9-B", ""); !errors.Is(err, ErrSubscriberAlreadyExists) {
		t.Errorf("duplicate error = %v, want ErrSubscriberAlreadyExists", err)
	}
	if _, err := svc.AddSubscriber(ctx, 5, 7, "10-A", ""); !errors.Is(err, ErrAdminNotAuthorized) {
		t.Errorf("student error = %v, want ErrAdminNotAuthorized", err)
	}
}

func TestAdminServiceSetRole(t *testing.T) {
	directory := newFakeSubscribers(student(5, "9-B"))
	svc := NewAdminService(directory, newFakeLessons(), configuredAdmin)
	ctx := context.Background()

	if err := svc.SetRole(ctx, configuredAdmin, 5, subscriber.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	// the promoted subscriber may now run admin commands
	if ok, err := svc.IsAdmin(ctx, 5); err != nil || !ok {
		t.Fatalf("IsAdmin = %v, %v", ok, err)
	}
	if err := svc.SetRole(ctx, 5, 99, subscriber.RoleAdmin); !errors.Is(err, idb.ErrSubscriberNotFound) {
		t.Errorf("unknown subscriber error = %v", err)
	}
	if err := svc.SetRole(ctx, configuredAdmin, 5, "owner"); err == nil {
		t.Error("expected error for an unknown role")
	}
}

func TestAdminServiceSetLesson(t *testing.T) {
	valid := schedule.Lesson{
		ClassName: "10-A", DayName: "mon", LessonNumber: 1,
		Subject: "Algebra", Teacher: "Ivanova", StartTime: "8:30", EndTime: "09:15",
	}
	tests := []struct {
		name   string
		mutate func(*schedule.Lesson)
	}{
		{"unknown day", func(l *schedule.Lesson) { l.DayName = "Funday" }},
		{"zero number", func(l *schedule.Lesson) { l.LessonNumber = 0 }},
		{"bad start", func(l *schedule.Lesson) { l.StartTime = "8h30" }},
		{"ends before start", func(l *schedule.Lesson) { l.EndTime = "08:00" }},
		{"missing subject", func(l *schedule.Lesson) { l.Subject = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lessons := newFakeLessons()
			svc := NewAdminService(newFakeSubscribers(), lessons, configuredAdmin)
			l := valid
			tt.mutate(&l)
			if _, err := svc.SetLesson(context.Background(), configuredAdmin, l); !errors.Is(err, ErrInvalidLesson) {
				t.Fatalf("SetLesson error = %v, want ErrInvalidLesson", err)
			}
			if len(lessons.upserts) != 0 {
				t.Error("invalid lesson was stored")
			}
		})
	}

	t.Run("normalized", func(t *testing.T) {
		lessons := newFakeLessons()
		svc := NewAdminService(newFakeSubscribers(), lessons, configuredAdmin)
		stored, err := svc.SetLesson(context.Background(), configuredAdmin, valid)
		if err != nil {
			t.Fatalf("SetLesson: %v", err)
		}
		if stored.DayName != "Monday" || stored.StartTime != "08:30" {
			t.Errorf("stored = %+v", stored)
		}
		if len(lessons.upserts) != 1 {
			t.Errorf("upserts = %d, want 1", len(lessons.upserts))
		}
	})
}

func TestSubscriptionServiceToggle(t *testing.T) {
	directory := newFakeSubscribers(student(5, "9-B"))
	svc := NewSubscriptionService(directory)
	ctx := context.Background()

	enabled, err := svc.Toggle(ctx, 5)
	if err != nil || enabled {
		t.Fatalf("Toggle = %v, %v; want false", enabled, err)
	}
	enabled, err = svc.Toggle(ctx, 5)
	if err != nil || !enabled {
		t.Fatalf("Toggle = %v, %v; want true", enabled, err)
	}
	if _, err := svc.Toggle(ctx, 6); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unknown user error = %v, want ErrNotRegistered", err)
	}
}
