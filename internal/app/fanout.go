package app

import (
	"context"
	"errors"
	"fmt"

	"school_notification_bot/internal/domain/notification"
	"school_notification_bot/internal/domain/subscriber"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Failure is one recipient a fan-out pass could not reach.
type Failure struct {
	Recipient int64
	Err       error
}

// Report aggregates the outcome of one fan-out pass.
type Report struct {
	ID        string
	Audience  notification.Audience
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
}

// Err joins the per-recipient errors, or returns nil when every delivery succeeded.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("recipient %d: %w", f.Recipient, f.Err))
	}
	return errors.Join(errs...)
}

// FanOut delivers a payload to many recipients, isolating each recipient's failure.
type FanOut struct {
	directory     subscriber.Repository
	sender        notification.Sender
	fallbackAdmin int64
	log           *logrus.Entry
}

// NewFanOut creates a fan-out deliverer. fallbackAdmin, when non-zero, receives
// administrative payloads if the directory lists no administrators.
func NewFanOut(directory subscriber.Repository, sender notification.Sender, fallbackAdmin int64, log *logrus.Entry) *FanOut {
	return &FanOut{
		directory:     directory,
		sender:        sender,
		fallbackAdmin: fallbackAdmin,
		log:           log,
	}
}

// Deliver resolves the payload's audience and delivers to every recipient.
// The error is non-nil only when the recipients could not be resolved.
func (f *FanOut) Deliver(ctx context.Context, p notification.Payload) (Report, error) {
	recipients, err := f.Resolve(ctx, p.Audience)
	if err != nil {
		return Report{Audience: p.Audience}, err
	}
	if len(recipients) == 0 {
		f.log.WithField("audience", p.Audience).Warn("No recipients for notification")
	}
	return f.DeliverTo(ctx, p, recipients), nil
}

// Resolve lists the recipient identities of audience.
func (f *FanOut) Resolve(ctx context.Context, audience notification.Audience) ([]int64, error) {
	var (
		subs []*subscriber.Subscriber
		err  error
	)
	switch audience {
	case notification.AudienceAdmins:
		subs, err = f.directory.ListByRole(ctx, subscriber.RoleAdmin)
	case notification.AudienceSubscribers, "":
		subs, err = f.directory.ListNotifiable(ctx)
	case notification.AudienceAll:
		subs, err = f.directory.ListAll(ctx)
	default:
		return nil, fmt.Errorf("unknown audience %q", audience)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s recipients: %w", audience, err)
	}

	recipients := make([]int64, 0, len(subs))
	for _, s := range subs {
		recipients = append(recipients, s.TelegramID)
	}
	if len(recipients) == 0 && audience == notification.AudienceAdmins && f.fallbackAdmin != 0 {
		recipients = append(recipients, f.fallbackAdmin)
	}
	return recipients, nil
}

// DeliverTo sends p to each recipient in order. A failed recipient is
// counted and skipped; it is not retried within the pass.
func (f *FanOut) DeliverTo(ctx context.Context, p notification.Payload, recipients []int64) Report {
	report := Report{
		ID:       uuid.NewString(),
		Audience: p.Audience,
		Total:    len(recipients),
	}
	passLog := f.log.WithFields(logrus.Fields{"fanout_id": report.ID, "audience": p.Audience})

	for _, r := range recipients {
		if err := f.sendOne(ctx, r, p); err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{Recipient: r, Err: err})
			passLog.WithError(err).WithField("recipient", r).Warn("Delivery failed")
			continue
		}
		report.Succeeded++
	}

	fields := logrus.Fields{"total": report.Total, "succeeded": report.Succeeded, "failed": report.Failed}
	if report.Failed > 0 {
		passLog.WithFields(fields).Warn("Fan-out finished with failures")
	} else {
		passLog.WithFields(fields).Debug("Fan-out finished")
	}
	return report
}

// sendOne turns a panicking sender into an error so later recipients still get the payload.
func (f *FanOut) sendOne(ctx context.Context, recipient int64, p notification.Payload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return f.sender.Send(ctx, recipient, p)
}

// ReportTo sends a short summary of report to an administrator.
func (f *FanOut) ReportTo(ctx context.Context, admin int64, title string, report Report) error {
	if admin == 0 {
		return nil
	}
	p := notification.Payload{
		Subject:  title,
		Body:     fmt.Sprintf("Delivered: %d\nFailed: %d", report.Succeeded, report.Failed),
		Audience: notification.AudienceAdmins,
	}
	if err := f.sender.Send(ctx, admin, p); err != nil {
		return fmt.Errorf("failed to report fan-out %s to admin %d: %w", report.ID, admin, err)
	}
	return nil
}
