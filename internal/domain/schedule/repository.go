package schedule

import "context"

// Repository is the calendar store boundary.
type Repository interface {
	// ListByClassAndDay returns the lessons of className on dayName ordered by lesson number.
	ListByClassAndDay(ctx context.Context, className, dayName string) ([]Lesson, error)
	Upsert(ctx context.Context, l Lesson) error
}
