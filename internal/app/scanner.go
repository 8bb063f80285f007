package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"school_notification_bot/internal/domain/notification"
	"school_notification_bot/internal/domain/schedule"
	"school_notification_bot/internal/domain/subscriber"

	"github.com/sirupsen/logrus"
)

// DefaultWindows is the lookahead escalation used when none is configured.
var DefaultWindows = []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 30 * time.Minute}

// ScannerStats is a snapshot of the scanner's progress, for health reporting.
type ScannerStats struct {
	Ticks     int       `json:"ticks"`
	LastTick  time.Time `json:"last_tick"`
	LastError string    `json:"last_error,omitempty"`
	Sent      int       `json:"sent"`
}

// Scanner notifies subscribers about their next lesson.
type Scanner struct {
	subscribers subscriber.Repository
	lessons     schedule.Repository
	ledger      notification.Ledger
	delivery    *FanOut
	windows     []time.Duration
	loc         *time.Location
	clock       func() time.Time
	log         *logrus.Entry

	mu    sync.Mutex
	stats ScannerStats
}

func NewScanner(
	subscribers subscriber.Repository,
	lessons schedule.Repository,
	ledger notification.Ledger,
	delivery *FanOut,
	windows []time.Duration,
	loc *time.Location,
	log *logrus.Entry,
) *Scanner {
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scanner{
		subscribers: subscribers,
		lessons:     lessons,
		ledger:      ledger,
		delivery:    delivery,
		windows:     windows,
		loc:         loc,
		clock:       time.Now,
		log:         log,
	}
}

// Tick runs one scan against the current wall clock.
func (s *Scanner) Tick(ctx context.Context) error {
	return s.ScanAt(ctx, s.clock().In(s.loc))
}

// ScanAt runs one scan as if the wall clock read now. Errors of a single
// subscriber are logged and do not stop the scan.
func (s *Scanner) ScanAt(ctx context.Context, now time.Time) error {
	tickLog := s.log.WithFields(logrus.Fields{
		"now":     now.Format("2006-01-02 15:04:05"),
		"weekday": schedule.DayName(now),
	})
	tickLog.Debug("Checking upcoming lessons")

	subs, err := s.subscribers.ListNotifiable(ctx)
	if err != nil {
		err = fmt.Errorf("failed to list notifiable subscribers: %w", err)
		s.finishTick(now, 0, err)
		return err
	}

	days := &dayCache{lessons: s.lessons, log: tickLog, entries: make(map[string][]schedule.Occurrence)}
	sent := 0
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			s.finishTick(now, sent, err)
			return err
		}
		delivered, err := s.scanSubscriber(ctx, now, sub, days)
		if err != nil {
			tickLog.WithError(err).WithFields(logrus.Fields{
				"subscriber": sub.TelegramID,
				"class":      sub.ClassName,
			}).Error("Failed to process subscriber")
			continue
		}
		if delivered {
			sent++
		}
	}

	tickLog.WithFields(logrus.Fields{"subscribers": len(subs), "sent": sent}).Debug("Lesson check completed")
	s.finishTick(now, sent, nil)
	return nil
}

// scanSubscriber walks the windows in ascending order and stops at the first
// one holding a lesson, whether or not that lesson was already notified.
func (s *Scanner) scanSubscriber(ctx context.Context, now time.Time, sub *subscriber.Subscriber, days *dayCache) (delivered bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while scanning: %v", r)
		}
	}()

	today, err := days.get(ctx, sub.ClassName, now)
	if err != nil {
		return false, err
	}
	tomorrow, err := days.get(ctx, sub.ClassName, now.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}

	for _, window := range s.windows {
		occ, ok := findUpcoming(now, today, tomorrow, window)
		if !ok {
			continue
		}
		return s.notify(ctx, now, sub, occ, window)
	}
	return false, nil
}

func (s *Scanner) notify(ctx context.Context, now time.Time, sub *subscriber.Subscriber, occ schedule.Occurrence, window time.Duration) (bool, error) {
	key := notification.DedupKey{
		SubscriberID: sub.TelegramID,
		ClassName:    occ.ClassName,
		DayName:      occ.DayName,
		LessonNumber: occ.LessonNumber,
		Date:         occ.Date,
	}
	lessonLog := s.log.WithFields(logrus.Fields{
		"subscriber": sub.TelegramID,
		"lesson":     key.String(),
		"window":     window.String(),
		"starts_in":  occ.Start.Sub(now).Round(time.Second).String(),
	})

	sent, err := s.ledger.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if sent {
		lessonLog.Debug("Lesson already notified")
		return false, nil
	}

	report := s.delivery.DeliverTo(ctx, LessonPayload(occ), []int64{sub.TelegramID})
	if report.Succeeded == 0 {
		return false, fmt.Errorf("failed to deliver lesson notification %s: %w", key, report.Err())
	}

	// Recorded only after the send returned; a crash in between may lose this
	// row and the lesson would be announced again on the next tick.
	recorded, err := s.ledger.Record(ctx, key)
	if err != nil {
		return true, fmt.Errorf("notification %s sent but not recorded: %w", key, err)
	}
	if !recorded {
		lessonLog.Warn("Lesson notification was recorded concurrently")
	}
	lessonLog.WithField("subject", occ.Subject).Info("Lesson notification sent")
	return true, nil
}

func (s *Scanner) finishTick(now time.Time, sent int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Ticks++
	s.stats.LastTick = now
	s.stats.Sent += sent
	s.stats.LastError = ""
	if err != nil {
		s.stats.LastError = err.Error()
	}
}

// Stats returns a copy of the scanner's counters.
func (s *Scanner) Stats() ScannerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// LessonPayload renders the "lesson is coming" notification.
func LessonPayload(occ schedule.Occurrence) notification.Payload {
	return notification.Payload{
		Subject: "🔔 Your next lesson is coming up!",
		Body: fmt.Sprintf("Subject: %s\nTeacher: %s\nTime: %s - %s\n\nDon't be late! 📚",
			occ.Subject, occ.Teacher, occ.StartTime, occ.EndTime),
		Audience: notification.AudienceSubscribers,
	}
}

// dayCache memoizes a class's parsed lessons per day for the duration of one tick.
type dayCache struct {
	lessons schedule.Repository
	log     *logrus.Entry
	entries map[string][]schedule.Occurrence
}

func (c *dayCache) get(ctx context.Context, className string, day time.Time) ([]schedule.Occurrence, error) {
	dayName := schedule.DayName(day)
	cacheKey := className + "\x00" + day.Format("2006-01-02")
	if occ, ok := c.entries[cacheKey]; ok {
		return occ, nil
	}

	lessons, err := c.lessons.ListByClassAndDay(ctx, className, dayName)
	if err != nil {
		return nil, err
	}
	occurrences := make([]schedule.Occurrence, 0, len(lessons))
	for _, l := range lessons {
		occ, err := l.At(day)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"class":  l.ClassName,
				"day":    l.DayName,
				"lesson": l.LessonNumber,
			}).Warn("Skipping lesson with malformed time")
			continue
		}
		occurrences = append(occurrences, occ)
	}
	c.entries[cacheKey] = occurrences
	return occurrences, nil
}
