package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"school_notification_bot/internal/domain/schedule"
	"school_notification_bot/internal/domain/subscriber"
	idb "school_notification_bot/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
var ErrSubscriberAlreadyExists = errors.New("subscriber with this Telegram ID already exists")
var ErrInvalidLesson = errors.New("invalid lesson")

type AdminService struct {
	subscriberRepo  subscriber.Repository
	lessonRepo      schedule.Repository
	adminTelegramID int64
}

func NewAdminService(sr subscriber.Repository, lr schedule.Repository, adminID int64) *AdminService {
	return &AdminService{
		subscriberRepo:  sr,
		lessonRepo:      lr,
		adminTelegramID: adminID,
	}
}

// IsAdmin reports whether telegramID is the configured admin or holds the admin role.
func (s *AdminService) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	if telegramID == s.adminTelegramID {
		return true, nil
	}
	sub, err := s.subscriberRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up performing user: %w", err)
	}
	return sub.IsAdmin(), nil
}

func (s *AdminService) authorize(ctx context.Context, performingAdminID int64) error {
	ok, err := s.IsAdmin(ctx, performingAdminID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminNotAuthorized
	}
	return nil
}

// AddSubscriber registers a new student with notifications enabled.
func (s *AdminService) AddSubscriber(ctx context.Context, performingAdminID, telegramID int64, className, fullName string) (*subscriber.Subscriber, error) {
	if err := s.authorize(ctx, performingAdminID); err != nil {
		return nil, err
	}
	className = strings.TrimSpace(className)
	if className == "" {
		return nil, fmt.Errorf("class name is required")
	}

	newSubscriber := &subscriber.Subscriber{
		TelegramID:           telegramID,
		FullName:             strings.TrimSpace(fullName),
		ClassName:            className,
		Role:                 subscriber.RoleStudent,
		NotificationsEnabled: true,
	}
	if err := s.subscriberRepo.Create(ctx, newSubscriber); err != nil {
		if errors.Is(err, idb.ErrDuplicateTelegramID) {
			return nil, ErrSubscriberAlreadyExists
		}
		return nil, fmt.Errorf("failed to create subscriber in repository: %w", err)
	}
	return newSubscriber, nil
}

// SetRole changes the role of an existing subscriber.
func (s *AdminService) SetRole(ctx context.Context, performingAdminID, telegramID int64, role subscriber.Role) error {
	if err := s.authorize(ctx, performingAdminID); err != nil {
		return err
	}
	if role != subscriber.RoleAdmin && role != subscriber.RoleStudent {
		return fmt.Errorf("unknown role %q", role)
	}
	if err := s.subscriberRepo.SetRole(ctx, telegramID, role); err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			return idb.ErrSubscriberNotFound
		}
		return fmt.Errorf("failed to set role in repository: %w", err)
	}
	return nil
}

func (s *AdminService) ListSubscribers(ctx context.Context, performingAdminID int64) ([]*subscriber.Subscriber, error) {
	if err := s.authorize(ctx, performingAdminID); err != nil {
		return nil, err
	}
	subs, err := s.subscriberRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}

// SetLesson validates and stores a calendar entry, replacing the lesson with
// the same class, day and number.
func (s *AdminService) SetLesson(ctx context.Context, performingAdminID int64, l schedule.Lesson) (schedule.Lesson, error) {
	if err := s.authorize(ctx, performingAdminID); err != nil {
		return schedule.Lesson{}, err
	}

	day, err := schedule.ParseDayName(l.DayName)
	if err != nil {
		return schedule.Lesson{}, fmt.Errorf("%w: %v", ErrInvalidLesson, err)
	}
	l.DayName = day
	l.ClassName = strings.TrimSpace(l.ClassName)
	if l.ClassName == "" || strings.TrimSpace(l.Subject) == "" {
		return schedule.Lesson{}, fmt.Errorf("%w: class and subject are required", ErrInvalidLesson)
	}
	if l.LessonNumber <= 0 {
		return schedule.Lesson{}, fmt.Errorf("%w: lesson number must be positive", ErrInvalidLesson)
	}
	sh, sm, err := schedule.ParseClock(l.StartTime)
	if err != nil {
		return schedule.Lesson{}, fmt.Errorf("%w: start: %v", ErrInvalidLesson, err)
	}
	eh, em, err := schedule.ParseClock(l.EndTime)
	if err != nil {
		return schedule.Lesson{}, fmt.Errorf("%w: end: %v", ErrInvalidLesson, err)
	}
	if eh*60+em <= sh*60+sm {
		return schedule.Lesson{}, fmt.Errorf("%w: lesson must end after it starts", ErrInvalidLesson)
	}
	l.StartTime = fmt.Sprintf("%02d:%02d", sh, sm)
	l.EndTime = fmt.Sprintf("%02d:%02d", eh, em)

	if err := s.lessonRepo.Upsert(ctx, l); err != nil {
		return schedule.Lesson{}, fmt.Errorf("failed to store lesson: %w", err)
	}
	return l, nil
}
