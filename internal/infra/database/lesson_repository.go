package database

import (
	"context"
	"database/sql"
	"fmt"

	"school_notification_bot/internal/domain/schedule"
)

type LessonRepository struct {
	db *sql.DB
}

func NewLessonRepository(db *sql.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) ListByClassAndDay(ctx context.Context, className, dayName string) ([]schedule.Lesson, error) {
	query := `SELECT class_name, day_name, lesson_number, subject, teacher, start_time, end_time
               FROM lessons
               WHERE class_name = $1 AND day_name = $2
               ORDER BY lesson_number`
	rows, err := r.db.QueryContext(ctx, query, className, dayName)
	if err != nil {
		return nil, fmt.Errorf("error listing lessons for %s on %s: %w", className, dayName, err)
	}
	defer rows.Close()

	lessons := make([]schedule.Lesson, 0)
	for rows.Next() {
		var l schedule.Lesson
		if err := rows.Scan(&l.ClassName, &l.DayName, &l.LessonNumber, &l.Subject, &l.Teacher, &l.StartTime, &l.EndTime); err != nil {
			return nil, fmt.Errorf("error scanning lesson row: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson rows: %w", err)
	}
	return lessons, nil
}

// Upsert inserts a lesson or replaces the one with the same class, day and number.
func (r *LessonRepository) Upsert(ctx context.Context, l schedule.Lesson) error {
	query := `INSERT INTO lessons (class_name, day_name, lesson_number, subject, teacher, start_time, end_time)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (class_name, day_name, lesson_number)
               DO UPDATE SET subject = excluded.subject, teacher = excluded.teacher,
                             start_time = excluded.start_time, end_time = excluded.end_time`
	_, err := r.db.ExecContext(ctx, query, l.ClassName, l.DayName, l.LessonNumber, l.Subject, l.Teacher, l.StartTime, l.EndTime)
	if err != nil {
		return fmt.Errorf("error upserting lesson %d for %s on %s: %w", l.LessonNumber, l.ClassName, l.DayName, err)
	}
	return nil
}
