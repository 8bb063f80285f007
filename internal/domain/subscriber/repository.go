package subscriber

import "context"

// Repository defines the operations on the subscriber directory.
type Repository interface {
	Create(ctx context.Context, s *Subscriber) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*Subscriber, error)
	SetNotificationsEnabled(ctx context.Context, telegramID int64, enabled bool) error
	SetRole(ctx context.Context, telegramID int64, role Role) error
	// ListNotifiable returns every subscriber with notifications enabled, ordered by TelegramID.
	ListNotifiable(ctx context.Context) ([]*Subscriber, error)
	ListByRole(ctx context.Context, role Role) ([]*Subscriber, error)
	ListAll(ctx context.Context) ([]*Subscriber, error)
}
