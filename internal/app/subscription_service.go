package app

import (
	"context"
	"errors"
	"fmt"

	"school_notification_bot/internal/domain/subscriber"
	idb "school_notification_bot/internal/infra/database"
)

var ErrNotRegistered = errors.New("user is not a registered subscriber")

// SubscriptionService lets subscribers inspect and flip their own opt-in flag.
type SubscriptionService struct {
	subscriberRepo subscriber.Repository
}

func NewSubscriptionService(sr subscriber.Repository) *SubscriptionService {
	return &SubscriptionService{subscriberRepo: sr}
}

func (s *SubscriptionService) Get(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	sub, err := s.subscriberRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

// Toggle flips the notification flag and returns the new value.
func (s *SubscriptionService) Toggle(ctx context.Context, telegramID int64) (bool, error) {
	sub, err := s.Get(ctx, telegramID)
	if err != nil {
		return false, err
	}
	enabled := !sub.NotificationsEnabled
	if err := s.subscriberRepo.SetNotificationsEnabled(ctx, telegramID, enabled); err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			return false, ErrNotRegistered
		}
		return false, fmt.Errorf("failed to update notification flag: %w", err)
	}
	return enabled, nil
}
