package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"school_notification_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyAnnouncement = errors.New("announcement text is empty")
	ErrDispatchStopped   = errors.New("dispatch loop is stopped")
)

// Announcement is a free-form administrator broadcast.
type Announcement struct {
	Text     string
	ImageURL string // optional
}

// AnnouncementService broadcasts administrator announcements to every
// registered subscriber and reports the totals back to the issuing admin.
type AnnouncementService struct {
	admins   *AdminService
	delivery *FanOut
	loop     Submitter
	log      *logrus.Entry
}

func NewAnnouncementService(admins *AdminService, delivery *FanOut, loop Submitter, log *logrus.Entry) *AnnouncementService {
	return &AnnouncementService{
		admins:   admins,
		delivery: delivery,
		loop:     loop,
		log:      log,
	}
}

// Announce authorizes performingAdminID and queues the broadcast on the
// dispatch loop. It returns once the broadcast is queued, not delivered.
func (s *AnnouncementService) Announce(ctx context.Context, performingAdminID int64, a Announcement) error {
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return ErrEmptyAnnouncement
	}
	if err := s.admins.authorize(ctx, performingAdminID); err != nil {
		return err
	}

	payload := AnnouncementPayload(a, performingAdminID)
	queued := s.loop.Submit(func(ctx context.Context) {
		s.broadcast(ctx, performingAdminID, payload)
	})
	if !queued {
		return ErrDispatchStopped
	}
	s.log.WithField("admin", performingAdminID).Info("Announcement queued")
	return nil
}

func (s *AnnouncementService) broadcast(ctx context.Context, admin int64, p notification.Payload) {
	announceLog := s.log.WithField("admin", admin)

	report, err := s.delivery.Deliver(ctx, p)
	if err != nil {
		announceLog.WithError(err).Error("Failed to broadcast announcement")
		failure := notification.Payload{
			Subject:  "❌ Announcement failed",
			Body:     err.Error(),
			Audience: notification.AudienceAdmins,
		}
		if sendErr := s.delivery.sender.Send(ctx, admin, failure); sendErr != nil {
			announceLog.WithError(sendErr).Warn("Failed to report announcement failure")
		}
		return
	}

	announceLog.WithFields(logrus.Fields{
		"fanout_id": report.ID,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("Announcement delivered")
	if err := s.delivery.ReportTo(ctx, admin, "✅ Announcement sent", report); err != nil {
		announceLog.WithError(err).Warn("Failed to report announcement totals")
	}
}

// AnnouncementPayload renders an announcement with a button to contact the issuing admin.
func AnnouncementPayload(a Announcement, admin int64) notification.Payload {
	return notification.Payload{
		Subject:  "📢 Announcement",
		Body:     a.Text,
		ImageURL: strings.TrimSpace(a.ImageURL),
		Link:     fmt.Sprintf("tg://user?id=%d", admin),
		LinkText: "📞 Contact",
		Audience: notification.AudienceAll,
	}
}
