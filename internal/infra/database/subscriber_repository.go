package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"school_notification_bot/internal/domain/subscriber"
)

// Custom errors
var ErrSubscriberNotFound = errors.New("subscriber not found")
var ErrDuplicateTelegramID = errors.New("subscriber with this Telegram ID already exists")

const subscriberColumns = `telegram_id, full_name, class_name, role, notifications_enabled`

type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	if s.Role == "" {
		s.Role = subscriber.RoleStudent
	}
	query := `INSERT INTO subscribers (telegram_id, full_name, class_name, role, notifications_enabled)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (telegram_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, s.TelegramID, s.FullName, s.ClassName, string(s.Role), s.NotificationsEnabled)
	if err != nil {
		return fmt.Errorf("error creating subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking created subscriber: %w", err)
	}
	if n == 0 {
		return ErrDuplicateTelegramID
	}
	return nil
}

func (r *SubscriberRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE telegram_id = $1`
	s, err := scanSubscriber(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by Telegram ID: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepository) SetNotificationsEnabled(ctx context.Context, telegramID int64, enabled bool) error {
	return r.update(ctx, `UPDATE subscribers SET notifications_enabled = $1 WHERE telegram_id = $2`, enabled, telegramID)
}

func (r *SubscriberRepository) SetRole(ctx context.Context, telegramID int64, role subscriber.Role) error {
	return r.update(ctx, `UPDATE subscribers SET role = $1 WHERE telegram_id = $2`, string(role), telegramID)
}

func (r *SubscriberRepository) update(ctx context.Context, query string, value any, telegramID int64) error {
	res, err := r.db.ExecContext(ctx, query, value, telegramID)
	if err != nil {
		return fmt.Errorf("error updating subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking updated subscriber: %w", err)
	}
	if n == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (r *SubscriberRepository) ListNotifiable(ctx context.Context) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers
               WHERE notifications_enabled = $1 ORDER BY telegram_id`
	return r.list(ctx, "notifiable", query, true)
}

func (r *SubscriberRepository) ListByRole(ctx context.Context, role subscriber.Role) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE role = $1 ORDER BY telegram_id`
	return r.list(ctx, "by role", query, string(role))
}

func (r *SubscriberRepository) ListAll(ctx context.Context) ([]*subscriber.Subscriber, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers ORDER BY telegram_id`
	return r.list(ctx, "all", query)
}

func (r *SubscriberRepository) list(ctx context.Context, what, query string, args ...any) ([]*subscriber.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s subscribers: %w", what, err)
	}
	defer rows.Close()

	subscribers := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning %s subscriber: %w", what, err)
		}
		subscribers = append(subscribers, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s subscribers: %w", what, err)
	}
	return subscribers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscriber(row rowScanner) (*subscriber.Subscriber, error) {
	s := &subscriber.Subscriber{}
	var role string
	if err := row.Scan(&s.TelegramID, &s.FullName, &s.ClassName, &role, &s.NotificationsEnabled); err != nil {
		return nil, err
	}
	s.Role = subscriber.Role(role)
	return s, nil
}
