package notification

import (
	"context"
	"fmt"
	"time"
)

// DedupKey identifies one lesson occurrence notified to one subscriber.
type DedupKey struct {
	SubscriberID int64
	ClassName    string
	DayName      string
	LessonNumber int
	Date         time.Time // calendar date of the occurrence; the clock part is ignored
}

// DateString is the ledger representation of Date.
func (k DedupKey) DateString() string {
	return k.Date.Format("2006-01-02")
}

func (k DedupKey) String() string {
	return fmt.Sprintf("%d/%s/%s/%d/%s", k.SubscriberID, k.ClassName, k.DayName, k.LessonNumber, k.DateString())
}

// Ledger is the persisted, append-only record of schedule notifications already sent.
type Ledger interface {
	Exists(ctx context.Context, key DedupKey) (bool, error)
	// Record stores key. It reports false without error when key was already present.
	Record(ctx context.Context, key DedupKey) (bool, error)
}
