package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"school_notification_bot/internal/domain/notification"
)

// LedgerRepository persists schedule notifications that were already sent.
// Rows are only ever inserted.
type LedgerRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

func (r *LedgerRepository) Exists(ctx context.Context, key notification.DedupKey) (bool, error) {
	query := `SELECT COUNT(*) FROM notifications_sent
               WHERE subscriber_id = $1 AND class_name = $2 AND day_name = $3 AND lesson_number = $4 AND sent_on = $5`
	var n int
	err := r.db.QueryRowContext(ctx, query, key.SubscriberID, key.ClassName, key.DayName, key.LessonNumber, key.DateString()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking ledger for %s: %w", key, err)
	}
	return n > 0, nil
}

// Record inserts key. The unique constraint makes a concurrent duplicate a no-op
// reported as false rather than an error.
func (r *LedgerRepository) Record(ctx context.Context, key notification.DedupKey) (bool, error) {
	query := `INSERT INTO notifications_sent (subscriber_id, class_name, day_name, lesson_number, sent_on, sent_at)
               VALUES ($1, $2, $3, $4, $5, $6)
               ON CONFLICT (subscriber_id, class_name, day_name, lesson_number, sent_on) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, key.SubscriberID, key.ClassName, key.DayName, key.LessonNumber, key.DateString(), r.now().UTC())
	if err != nil {
		return false, fmt.Errorf("error recording %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking recorded %s: %w", key, err)
	}
	return n > 0, nil
}
